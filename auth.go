/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/julienschmidt/httprouter"
	"golang.org/x/crypto/bcrypt"
)

const sessionCookieName = "keybeats_session"

func setSessionCookie(cfg *Config, w http.ResponseWriter, userID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    userID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   cfg.scheme() == "https",
	})
}

func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}

// sessionUserID resolves the session cookie to a known user. Everything
// gameplay-related treats this as a precondition: no session, no run.
func sessionUserID(store *Store, r *http.Request) (string, error) {
	c, err := r.Cookie(sessionCookieName)
	if err != nil || c.Value == "" {
		return "", errUnauthenticated
	}

	if _, err := store.UserByID(c.Value); err != nil {
		return "", errUnauthenticated
	}

	return c.Value, nil
}

type registerResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	UserID  string `json:"userId,omitempty"`
}

func serveRegister(cfg *Config, store *Store) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		nickname := r.PostFormValue("nickname")
		email := r.PostFormValue("email")
		password := r.PostFormValue("password")
		avatar := r.PostFormValue("avatar")

		if nickname == "" || email == "" || password == "" || avatar == "" {
			respondJSON(cfg, w, http.StatusOK, registerResponse{
				Success: false,
				Message: "Missing required fields",
			})
			return
		}

		if store.NicknameExists(nickname) {
			respondJSON(cfg, w, http.StatusOK, registerResponse{
				Success: false,
				Message: "Nickname already exists",
			})
			return
		}
		if store.EmailExists(email) {
			respondJSON(cfg, w, http.StatusOK, registerResponse{
				Success: false,
				Message: "Email already exists",
			})
			return
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			respondJSON(cfg, w, http.StatusInternalServerError, registerResponse{
				Success: false,
				Message: "Failed to register user",
			})
			return
		}

		user := User{
			ID:        "user_" + uuid.NewString(),
			Nickname:  nickname,
			Email:     email,
			Password:  string(hash),
			Avatar:    avatar,
			CreatedAt: time.Now().Format(time.RFC3339),
			Progress:  []SongProgress{},
		}

		if err := store.AddUser(user); err != nil {
			respondJSON(cfg, w, http.StatusOK, registerResponse{
				Success: false,
				Message: err.Error(),
			})
			return
		}

		logf(cfg, "USERS: Registered %q from %s", nickname, realIP(r))

		respondJSON(cfg, w, http.StatusOK, registerResponse{
			Success: true,
			Message: "User registered successfully",
			UserID:  user.ID,
		})
	}
}

type loginResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	User    *PublicUser `json:"user,omitempty"`
}

func serveLogin(cfg *Config, store *Store) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		email := r.PostFormValue("email")
		password := r.PostFormValue("password")

		if email == "" || password == "" {
			respondJSON(cfg, w, http.StatusOK, loginResponse{
				Success: false,
				Message: "Email and password are required",
			})
			return
		}

		user, err := store.UserByEmail(email)
		if err != nil {
			respondJSON(cfg, w, http.StatusOK, loginResponse{
				Success: false,
				Message: "Email not registered",
			})
			return
		}

		if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
			respondJSON(cfg, w, http.StatusOK, loginResponse{
				Success: false,
				Message: "Incorrect password",
			})
			return
		}

		setSessionCookie(cfg, w, user.ID)

		logf(cfg, "USERS: %q logged in from %s", user.Nickname, realIP(r))

		public := user.public()

		respondJSON(cfg, w, http.StatusOK, loginResponse{
			Success: true,
			Message: "Login successful",
			User:    &public,
		})
	}
}

func serveLogout(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		clearSessionCookie(w)

		respondJSON(cfg, w, http.StatusOK, simpleResponse{Success: true})
	}
}

type existsResponse struct {
	Success bool   `json:"success"`
	Exists  bool   `json:"exists"`
	Message string `json:"message,omitempty"`
}

func serveCheckNickname(cfg *Config, store *Store) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		nickname := r.PostFormValue("nickname")
		if nickname == "" {
			respondJSON(cfg, w, http.StatusOK, existsResponse{
				Success: false,
				Message: "No nickname provided",
			})
			return
		}

		respondJSON(cfg, w, http.StatusOK, existsResponse{
			Success: true,
			Exists:  store.NicknameExists(nickname),
		})
	}
}

func serveCheckEmail(cfg *Config, store *Store) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		email := r.PostFormValue("email")
		if email == "" {
			respondJSON(cfg, w, http.StatusOK, existsResponse{
				Success: false,
				Message: "No email provided",
			})
			return
		}

		respondJSON(cfg, w, http.StatusOK, existsResponse{
			Success: true,
			Exists:  store.EmailExists(email),
		})
	}
}

type userResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	User    *PublicUser `json:"user,omitempty"`
}

func serveUser(cfg *Config, store *Store) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		userID, err := sessionUserID(store, r)
		if err != nil {
			respondJSON(cfg, w, http.StatusUnauthorized, userResponse{
				Success: false,
				Message: "Not logged in",
			})
			return
		}

		user, err := store.UserByID(userID)
		if err != nil {
			respondJSON(cfg, w, http.StatusNotFound, userResponse{
				Success: false,
				Message: "User not found",
			})
			return
		}

		public := user.public()

		respondJSON(cfg, w, http.StatusOK, userResponse{
			Success: true,
			User:    &public,
		})
	}
}

// serveUserProgress mirrors serveUser but strips the fields the profile and
// song-list pages don't need.
func serveUserProgress(cfg *Config, store *Store) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		userID, err := sessionUserID(store, r)
		if err != nil {
			respondJSON(cfg, w, http.StatusUnauthorized, userResponse{
				Success: false,
				Message: "Not logged in",
			})
			return
		}

		user, err := store.UserByID(userID)
		if err != nil {
			respondJSON(cfg, w, http.StatusNotFound, userResponse{
				Success: false,
				Message: "User not found",
			})
			return
		}

		public := user.public()
		public.Email = ""
		public.CreatedAt = ""

		respondJSON(cfg, w, http.StatusOK, userResponse{
			Success: true,
			User:    &public,
		})
	}
}
