/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Progress reconciliation merges one completed run into the persisted
// best-score record for that (user, song) pair. The rule: scores only ever
// improve or vanish. A zero-star run deletes the record; a nonzero run
// raises starsEarned if it beat the record, and counts an attempt and
// refreshes lastPlayed either way.

package main

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/julienschmidt/httprouter"
)

type RunResult struct {
	Level          int
	CompletedSongs int
}

// reconcile applies one run result and returns the recomputed profile
// totals. Invoked exactly once per completed run. The store's single-writer
// lock serializes concurrent calls.
func reconcile(store *Store, userID, songID string, starsEarned int, now time.Time) (RunResult, error) {
	var result RunResult

	_, err := store.UpdateUser(userID, func(u *User) error {
		existing := -1
		for i := range u.Progress {
			if u.Progress[i].SongID == songID {
				existing = i
				break
			}
		}

		stamp := now.Format(time.RFC3339)

		switch {
		case starsEarned == 0:
			// A zero-star outcome forfeits tracked progress.
			if existing != -1 {
				u.Progress = append(u.Progress[:existing], u.Progress[existing+1:]...)
			}
		case existing != -1:
			if starsEarned > u.Progress[existing].StarsEarned {
				u.Progress[existing].StarsEarned = starsEarned
			}
			u.Progress[existing].Attempts++
			u.Progress[existing].LastPlayed = stamp
		default:
			u.Progress = append(u.Progress, SongProgress{
				ID:          "progress_" + uuid.NewString(),
				UserID:      userID,
				SongID:      songID,
				StarsEarned: starsEarned,
				LastPlayed:  stamp,
				Attempts:    1,
			})
		}

		totalStars := 0
		completed := 0
		for i := range u.Progress {
			totalStars += u.Progress[i].StarsEarned
			if u.Progress[i].StarsEarned >= 1 {
				completed++
			}
		}

		u.Level = totalStars
		u.CompletedSongs = completed

		result = RunResult{
			Level:          totalStars,
			CompletedSongs: completed,
		}

		return nil
	})
	if err != nil {
		return RunResult{}, err
	}

	return result, nil
}

type saveProgressResponse struct {
	Success        bool   `json:"success"`
	Message        string `json:"message,omitempty"`
	Level          int    `json:"level"`
	CompletedSongs int    `json:"completedSongs"`
}

// serveSaveProgress submits one run result over plain HTTP. Identity comes
// from the session cookie, never from the request body.
func serveSaveProgress(cfg *Config, store *Store, catalog *Catalog) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		userID, err := sessionUserID(store, r)
		if err != nil {
			respondJSON(cfg, w, http.StatusUnauthorized, saveProgressResponse{
				Success: false,
				Message: "Not logged in",
			})
			return
		}

		songID := r.PostFormValue("songId")
		if songID == "" {
			respondJSON(cfg, w, http.StatusOK, saveProgressResponse{
				Success: false,
				Message: "Missing songId",
			})
			return
		}
		if _, err := catalog.song(songID); err != nil {
			respondJSON(cfg, w, http.StatusNotFound, saveProgressResponse{
				Success: false,
				Message: "Song not found",
			})
			return
		}

		starsEarned, err := strconv.Atoi(r.PostFormValue("starsEarned"))
		if err != nil || starsEarned < 0 {
			respondJSON(cfg, w, http.StatusOK, saveProgressResponse{
				Success: false,
				Message: "Invalid starsEarned",
			})
			return
		}

		result, err := reconcile(store, userID, songID, starsEarned, time.Now())
		switch {
		case errors.Is(err, errUserNotFound):
			respondJSON(cfg, w, http.StatusNotFound, saveProgressResponse{
				Success: false,
				Message: "User not found",
			})
			return
		case err != nil:
			logf(cfg, "SAVE: Failed to save progress for %s: %v", userID, err)
			respondJSON(cfg, w, http.StatusInternalServerError, saveProgressResponse{
				Success: false,
				Message: "Failed to save progress",
			})
			return
		}

		logf(cfg, "SAVE: %s earned %d star(s) on %s", userID, starsEarned, songID)

		respondJSON(cfg, w, http.StatusOK, saveProgressResponse{
			Success:        true,
			Level:          result.Level,
			CompletedSongs: result.CompletedSongs,
		})
	}
}
