/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// The user store keeps the whole user collection in memory and rewrites
// users.json on every mutation. Concurrency policy: one mutex, all reads and
// writes under it, so concurrent reconciliations are serialized and the
// monotonic best-score rule can't be lost to a racing full-file overwrite.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

type Store struct {
	path string

	mu    sync.Mutex
	users []User
}

// openStore loads the collection from path. An absent file is an empty
// store, not an error; unparseable contents are fatal.
func openStore(path string) (*Store, error) {
	s := &Store{path: path}

	raw, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("reading user store: %w", err)
	}

	if err := json.Unmarshal(raw, &s.users); err != nil {
		return nil, fmt.Errorf("parsing user store %s: %w", path, err)
	}

	return s, nil
}

// persistLocked rewrites the full collection through a temp file and rename,
// so a failed write never leaves a half-written users.json behind.
func (s *Store) persistLocked(users []User) error {
	raw, err := json.MarshalIndent(users, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding user store: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating data directory: %w", err)
		}
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("writing user store: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("writing user store: %w", err)
	}

	return nil
}

func (s *Store) UserByID(id string) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.users {
		if s.users[i].ID == id {
			return s.users[i].clone(), nil
		}
	}

	return User{}, fmt.Errorf("%w: %q", errUserNotFound, id)
}

func (s *Store) UserByEmail(email string) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.users {
		if strings.EqualFold(s.users[i].Email, email) {
			return s.users[i].clone(), nil
		}
	}

	return User{}, fmt.Errorf("%w: email %q", errUserNotFound, email)
}

func (s *Store) NicknameExists(nickname string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.users {
		if strings.EqualFold(s.users[i].Nickname, nickname) {
			return true
		}
	}

	return false
}

func (s *Store) EmailExists(email string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.users {
		if strings.EqualFold(s.users[i].Email, email) {
			return true
		}
	}

	return false
}

// AddUser appends a new user after re-checking uniqueness under the lock,
// so two racing registrations can't both claim a nickname or email.
func (s *Store) AddUser(u User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.users {
		if strings.EqualFold(s.users[i].Nickname, u.Nickname) {
			return fmt.Errorf("nickname %q already exists", u.Nickname)
		}
		if strings.EqualFold(s.users[i].Email, u.Email) {
			return fmt.Errorf("email %q already exists", u.Email)
		}
	}

	updated := append(append([]User{}, s.users...), u)
	if err := s.persistLocked(updated); err != nil {
		return err
	}

	s.users = updated

	return nil
}

// UpdateUser applies fn to a deep copy of the user, persists the resulting
// collection, and only then commits the copy to memory. A failed persist
// leaves the previous confirmed state untouched, in memory and on disk.
func (s *Store) UpdateUser(id string, fn func(*User) error) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	index := -1
	for i := range s.users {
		if s.users[i].ID == id {
			index = i
			break
		}
	}
	if index == -1 {
		return User{}, fmt.Errorf("%w: %q", errUserNotFound, id)
	}

	modified := s.users[index].clone()
	if err := fn(&modified); err != nil {
		return User{}, err
	}

	updated := append([]User{}, s.users...)
	updated[index] = modified

	if err := s.persistLocked(updated); err != nil {
		return User{}, err
	}

	s.users = updated

	return modified.clone(), nil
}
