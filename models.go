/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

// Beat is a scheduled prompt within a song: at Timestamp seconds into the
// track, the player must answer with the key combination described by Keys.
// Order defines schedule traversal; beats are assumed non-decreasing in
// Timestamp once sorted by Order.
type Beat struct {
	ID        string  `json:"id"`
	SongID    string  `json:"songId"`
	Timestamp float64 `json:"timestamp"`
	Keys      string  `json:"keys"`
	Order     int     `json:"order"`
}

type Song struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Author     string `json:"author"`
	Duration   string `json:"duration"` // MM:SS
	MaxStars   int    `json:"maxStars"`
	CoverImage string `json:"coverImage"`
	AudioFile  string `json:"audioFile"`
	Beats      []Beat `json:"beats"`
}

// SongProgress is the persisted best-score record for one (user, song) pair.
// StarsEarned only ever increases for the lifetime of a record; a zero-star
// run deletes the record instead of writing a zero.
type SongProgress struct {
	ID          string `json:"id"`
	UserID      string `json:"userId"`
	SongID      string `json:"songId"`
	StarsEarned int    `json:"starsEarned"`
	LastPlayed  string `json:"lastPlayed"`
	Attempts    int    `json:"attempts"`
}

type User struct {
	ID             string         `json:"id"`
	Nickname       string         `json:"nickname"`
	Email          string         `json:"email"`
	Password       string         `json:"password"` // bcrypt hash
	Avatar         string         `json:"avatar"`
	Level          int            `json:"level"`
	CompletedSongs int            `json:"completedSongs"`
	CreatedAt      string         `json:"createdAt"`
	Progress       []SongProgress `json:"progress"`
}

// PublicUser is what leaves the server: everything but the password hash.
type PublicUser struct {
	ID             string         `json:"id"`
	Nickname       string         `json:"nickname"`
	Email          string         `json:"email,omitempty"`
	Avatar         string         `json:"avatar"`
	Level          int            `json:"level"`
	CompletedSongs int            `json:"completedSongs"`
	CreatedAt      string         `json:"createdAt,omitempty"`
	Progress       []SongProgress `json:"progress"`
}

func (u *User) public() PublicUser {
	progress := u.Progress
	if progress == nil {
		progress = []SongProgress{}
	}

	return PublicUser{
		ID:             u.ID,
		Nickname:       u.Nickname,
		Email:          u.Email,
		Avatar:         u.Avatar,
		Level:          u.Level,
		CompletedSongs: u.CompletedSongs,
		CreatedAt:      u.CreatedAt,
		Progress:       progress,
	}
}

// clone deep-copies a user so store updates can be applied off to the side
// and thrown away if persisting fails.
func (u *User) clone() User {
	copied := *u
	copied.Progress = make([]SongProgress, len(u.Progress))
	copy(copied.Progress, u.Progress)
	return copied
}
