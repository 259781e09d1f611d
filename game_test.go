package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// serverMsg covers every gameplay message the server can send.
type serverMsg struct {
	Type           string  `json:"type"`
	Keys           string  `json:"keys"`
	Order          int     `json:"order"`
	Timestamp      float64 `json:"timestamp"`
	Outcome        string  `json:"outcome"`
	Stars          int     `json:"stars"`
	MaxStars       int     `json:"maxStars"`
	Saved          bool    `json:"saved"`
	Level          int     `json:"level"`
	CompletedSongs int     `json:"completedSongs"`
	Message        string  `json:"message"`
}

func dialGame(t *testing.T, srv *httptest.Server, songID string, cookie *http.Cookie) (*websocket.Conn, *http.Response, error) {
	t.Helper()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/play/" + songID + "/ws"

	header := http.Header{}
	if cookie != nil {
		header.Set("Cookie", cookie.String())
	}

	return websocket.DefaultDialer.Dial(wsURL, header)
}

func readMsg(t *testing.T, conn *websocket.Conn) serverMsg {
	t.Helper()

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var msg serverMsg
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("reading server message: %v", err)
	}

	return msg
}

func sendMsg(t *testing.T, conn *websocket.Conn, msg clientMessage) {
	t.Helper()

	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("writing client message: %v", err)
	}
}

func TestGameSocketRequiresSession(t *testing.T) {
	srv, _ := newTestServer(t)

	_, resp, err := dialGame(t, srv, "song_1", nil)
	if err == nil {
		t.Fatal("unauthenticated dial succeeded")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 before upgrade, got %+v", resp)
	}
}

func TestGameSocketUnknownSong(t *testing.T) {
	srv, _ := newTestServer(t)

	userID := registerTestUser(t, srv)
	cookie := &http.Cookie{Name: sessionCookieName, Value: userID}

	_, resp, err := dialGame(t, srv, "song_ghost", cookie)
	if err == nil {
		t.Fatal("dial for unknown song succeeded")
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 before upgrade, got %+v", resp)
	}
}

func TestGameSocketFullRun(t *testing.T) {
	srv, store := newTestServer(t)

	userID := registerTestUser(t, srv)
	cookie := &http.Cookie{Name: sessionCookieName, Value: userID}

	conn, _, err := dialGame(t, srv, "song_1", cookie)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// First beat comes due.
	sendMsg(t, conn, clientMessage{Type: "tick", Time: 1.0})
	beat := readMsg(t, conn)
	if beat.Type != "beat" || beat.Keys != "A" || beat.Order != 0 {
		t.Fatalf("first presentation = %+v", beat)
	}

	// Matching key within the window.
	sendMsg(t, conn, clientMessage{Type: "key", Key: "a"})
	result := readMsg(t, conn)
	if result.Type != "result" || result.Outcome != "hit" || result.Stars != 1 {
		t.Fatalf("first resolution = %+v", result)
	}

	// Second beat, combo hit.
	sendMsg(t, conn, clientMessage{Type: "tick", Time: 2.0})
	beat = readMsg(t, conn)
	if beat.Type != "beat" || beat.Keys != "Ctrl+D" {
		t.Fatalf("second presentation = %+v", beat)
	}

	sendMsg(t, conn, clientMessage{Type: "key", Key: "d", Ctrl: true})
	result = readMsg(t, conn)
	if result.Outcome != "hit" || result.Stars != 2 {
		t.Fatalf("second resolution = %+v", result)
	}

	// Terminal signal reconciles and reports the totals.
	sendMsg(t, conn, clientMessage{Type: "ended"})
	finished := readMsg(t, conn)
	if finished.Type != "finished" {
		t.Fatalf("expected finished, got %+v", finished)
	}
	if finished.Stars != 2 || finished.MaxStars != 2 || !finished.Saved {
		t.Fatalf("finished = %+v", finished)
	}
	if finished.Level != 2 || finished.CompletedSongs != 1 {
		t.Fatalf("totals = %+v", finished)
	}

	user, err := store.UserByID(userID)
	if err != nil {
		t.Fatal(err)
	}
	if len(user.Progress) != 1 || user.Progress[0].StarsEarned != 2 || user.Progress[0].Attempts != 1 {
		t.Fatalf("stored progress = %+v", user.Progress)
	}
	if user.Level != 2 {
		t.Fatalf("level = %d, want 2", user.Level)
	}
}

func TestGameSocketWrongKeyIsMiss(t *testing.T) {
	srv, _ := newTestServer(t)

	userID := registerTestUser(t, srv)
	cookie := &http.Cookie{Name: sessionCookieName, Value: userID}

	conn, _, err := dialGame(t, srv, "song_1", cookie)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	sendMsg(t, conn, clientMessage{Type: "tick", Time: 1.0})
	if beat := readMsg(t, conn); beat.Type != "beat" {
		t.Fatalf("expected beat, got %+v", beat)
	}

	// A non-matching press commits a miss immediately.
	sendMsg(t, conn, clientMessage{Type: "key", Key: "z"})
	result := readMsg(t, conn)
	if result.Outcome != "miss" || result.Stars != 0 {
		t.Fatalf("resolution = %+v", result)
	}
}

func TestGameSocketWindowExpiryIsMiss(t *testing.T) {
	srv, _ := newTestServer(t)

	userID := registerTestUser(t, srv)
	cookie := &http.Cookie{Name: sessionCookieName, Value: userID}

	conn, _, err := dialGame(t, srv, "song_1", cookie)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	sendMsg(t, conn, clientMessage{Type: "tick", Time: 1.0})
	if beat := readMsg(t, conn); beat.Type != "beat" {
		t.Fatalf("expected beat, got %+v", beat)
	}

	// Do nothing: the response window must resolve to a miss on its own.
	result := readMsg(t, conn)
	if result.Type != "result" || result.Outcome != "miss" {
		t.Fatalf("expected timed-out miss, got %+v", result)
	}
}
