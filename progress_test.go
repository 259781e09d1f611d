package main

import (
	"errors"
	"testing"
	"time"
)

func storeWithUser(t *testing.T) *Store {
	t.Helper()

	store := newTestStore(t)
	if err := store.AddUser(testUser("user_1", "Ada", "ada@example.com")); err != nil {
		t.Fatalf("AddUser: %v", err)
	}

	return store
}

func userProgress(t *testing.T, store *Store, songID string) (SongProgress, bool) {
	t.Helper()

	user, err := store.UserByID("user_1")
	if err != nil {
		t.Fatalf("UserByID: %v", err)
	}
	for _, p := range user.Progress {
		if p.SongID == songID {
			return p, true
		}
	}
	return SongProgress{}, false
}

func TestReconcileCreatesRecord(t *testing.T) {
	store := storeWithUser(t)

	result, err := reconcile(store, "user_1", "song_a", 3, time.Now())
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if result.Level != 3 || result.CompletedSongs != 1 {
		t.Fatalf("result = %+v, want level 3, completedSongs 1", result)
	}

	prog, ok := userProgress(t, store, "song_a")
	if !ok {
		t.Fatal("no record created")
	}
	if prog.StarsEarned != 3 || prog.Attempts != 1 {
		t.Fatalf("record = %+v, want 3 stars, 1 attempt", prog)
	}
	if prog.UserID != "user_1" || prog.ID == "" {
		t.Fatalf("record identity wrong: %+v", prog)
	}
}

func TestReconcileNonImprovingStillCountsAttempt(t *testing.T) {
	store := storeWithUser(t)

	mustReconcile := func(stars int) RunResult {
		t.Helper()
		result, err := reconcile(store, "user_1", "song_a", stars, time.Now())
		if err != nil {
			t.Fatalf("reconcile(%d): %v", stars, err)
		}
		return result
	}

	mustReconcile(2)
	mustReconcile(1)
	mustReconcile(2)

	prog, ok := userProgress(t, store, "song_a")
	if !ok {
		t.Fatal("record missing")
	}
	if prog.StarsEarned != 2 {
		t.Fatalf("starsEarned = %d, want 2 (monotonic max)", prog.StarsEarned)
	}
	if prog.Attempts != 3 {
		t.Fatalf("attempts = %d, want 3 (every nonzero run counts)", prog.Attempts)
	}
}

func TestReconcileImprovementRaisesStars(t *testing.T) {
	store := storeWithUser(t)

	if _, err := reconcile(store, "user_1", "song_a", 1, time.Now()); err != nil {
		t.Fatal(err)
	}
	result, err := reconcile(store, "user_1", "song_a", 4, time.Now())
	if err != nil {
		t.Fatal(err)
	}

	if result.Level != 4 {
		t.Fatalf("level = %d, want 4", result.Level)
	}

	prog, _ := userProgress(t, store, "song_a")
	if prog.StarsEarned != 4 || prog.Attempts != 2 {
		t.Fatalf("record = %+v, want 4 stars, 2 attempts", prog)
	}
}

func TestReconcileZeroDeletesRecord(t *testing.T) {
	store := storeWithUser(t)

	if _, err := reconcile(store, "user_1", "song_a", 1, time.Now()); err != nil {
		t.Fatal(err)
	}
	if _, err := reconcile(store, "user_1", "song_b", 2, time.Now()); err != nil {
		t.Fatal(err)
	}

	result, err := reconcile(store, "user_1", "song_a", 0, time.Now())
	if err != nil {
		t.Fatalf("reconcile(0): %v", err)
	}

	if _, ok := userProgress(t, store, "song_a"); ok {
		t.Fatal("zero-star run did not delete the record")
	}
	if result.Level != 2 || result.CompletedSongs != 1 {
		t.Fatalf("result = %+v, want level 2, completedSongs 1", result)
	}
}

func TestReconcileZeroWithoutRecordIsNoop(t *testing.T) {
	store := storeWithUser(t)

	result, err := reconcile(store, "user_1", "song_a", 0, time.Now())
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if result.Level != 0 || result.CompletedSongs != 0 {
		t.Fatalf("result = %+v, want zeros", result)
	}
}

func TestReconcileRecomputesProfileTotals(t *testing.T) {
	store := storeWithUser(t)

	reconcile(store, "user_1", "song_a", 3, time.Now())
	reconcile(store, "user_1", "song_b", 2, time.Now())
	reconcile(store, "user_1", "song_c", 1, time.Now())

	user, _ := store.UserByID("user_1")
	if user.Level != 6 {
		t.Fatalf("level = %d, want 6 (sum of starsEarned)", user.Level)
	}
	if user.CompletedSongs != 3 {
		t.Fatalf("completedSongs = %d, want 3", user.CompletedSongs)
	}
}

func TestReconcileUnknownUser(t *testing.T) {
	store := newTestStore(t)

	if _, err := reconcile(store, "user_ghost", "song_a", 1, time.Now()); !errors.Is(err, errUserNotFound) {
		t.Fatalf("expected errUserNotFound, got %v", err)
	}
}

func TestReconcileRefreshesLastPlayed(t *testing.T) {
	store := storeWithUser(t)

	first := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	second := time.Date(2026, 2, 2, 12, 0, 0, 0, time.UTC)

	reconcile(store, "user_1", "song_a", 3, first)
	reconcile(store, "user_1", "song_a", 1, second)

	prog, _ := userProgress(t, store, "song_a")
	if prog.LastPlayed != second.Format(time.RFC3339) {
		t.Fatalf("lastPlayed = %q, want refresh even without improvement", prog.LastPlayed)
	}
}
