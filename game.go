// KeyBeats gameplay
//
// One websocket connection drives one run of one song for one logged-in
// user. The browser owns the audio element and pushes media-clock samples
// and raw keystrokes; the server owns the schedule, the scoring and the
// saved record.
//
// Features:
// - Per-song play routes: /play/:songid, /play/:songid/ws, /play/:songid/qr
// - Session cookie required before a run starts; no session, no socket
// - Client messages: "tick" (audio clock), "key" (keystroke), "ended"
// - Server messages: "beat" (presentation), "result" (hit/miss + stars),
//   "finished" (final stars plus recomputed level/completedSongs)
// - Response window is a real timer, cancelled on early resolution and on
//   teardown; its expiry is routed back through the session loop so the run
//   only ever advances from one goroutine
// - Abandoning the page just drops the socket; nothing is reconciled
// - In-browser QR button to share a song's play URL, backed by go-qrcode

package main

import (
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
)

// Messages coming from the game client
type clientMessage struct {
	Type  string  `json:"type"`            // "tick", "key", "ended"
	Time  float64 `json:"time,omitempty"`  // tick: audio clock, seconds
	Key   string  `json:"key,omitempty"`   // key
	Ctrl  bool    `json:"ctrl,omitempty"`  // key
	Shift bool    `json:"shift,omitempty"` // key
	Alt   bool    `json:"alt,omitempty"`   // key
}

// Messages sent to the game client
type beatMessage struct {
	Type      string  `json:"type"` // "beat"
	Keys      string  `json:"keys"`
	Order     int     `json:"order"`
	Timestamp float64 `json:"timestamp"`
}

type resultMessage struct {
	Type     string `json:"type"`    // "result"
	Outcome  string `json:"outcome"` // "hit" or "miss"
	Stars    int    `json:"stars"`
	MaxStars int    `json:"maxStars"`
}

type finishedMessage struct {
	Type           string `json:"type"` // "finished"
	Stars          int    `json:"stars"`
	MaxStars       int    `json:"maxStars"`
	Saved          bool   `json:"saved"`
	Level          int    `json:"level"`
	CompletedSongs int    `json:"completedSongs"`
	Message        string `json:"message,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type gameSession struct {
	cfg    *Config
	store  *Store
	conn   *websocket.Conn
	userID string
	songID string

	run   *Run
	timer *time.Timer

	inbound chan clientMessage
	expired chan int
	send    chan any
}

func newGameSession(cfg *Config, store *Store, conn *websocket.Conn, userID, songID string) *gameSession {
	return &gameSession{
		cfg:     cfg,
		store:   store,
		conn:    conn,
		userID:  userID,
		songID:  songID,
		inbound: make(chan clientMessage, 8),
		expired: make(chan int, 1),
		send:    make(chan any, 16),
	}
}

// RunEvents sink: the engine's signals become websocket messages.

func (gs *gameSession) BeatPresented(b Beat) {
	gs.enqueue(beatMessage{
		Type:      "beat",
		Keys:      b.Keys,
		Order:     b.Order,
		Timestamp: b.Timestamp,
	})
}

func (gs *gameSession) BeatResolved(outcome Outcome, runStars int) {
	gs.enqueue(resultMessage{
		Type:     "result",
		Outcome:  outcome.String(),
		Stars:    runStars,
		MaxStars: gs.run.MaxStars(),
	})
}

// RunFinished reconciles exactly once and reports the result. A failed save
// still delivers the local outcome; it is just flagged as unsaved.
func (gs *gameSession) RunFinished(finalStars, maxStars int) {
	msg := finishedMessage{
		Type:     "finished",
		Stars:    finalStars,
		MaxStars: maxStars,
		Saved:    true,
	}

	result, err := reconcile(gs.store, gs.userID, gs.songID, finalStars, time.Now())
	if err != nil {
		logf(gs.cfg, "SAVE: Failed to save run for %s on %s: %v", gs.userID, gs.songID, err)
		msg.Saved = false
		msg.Message = "Your result could not be saved."
	} else {
		msg.Level = result.Level
		msg.CompletedSongs = result.CompletedSongs
	}

	logf(gs.cfg, "GAMES: %s finished %s with %d/%d star(s)", gs.userID, gs.songID, finalStars, maxStars)

	gs.enqueue(msg)
}

func (gs *gameSession) enqueue(msg any) {
	select {
	case gs.send <- msg:
	default:
	}
}

func (gs *gameSession) armWindow(index int) {
	gs.timer = time.AfterFunc(gs.cfg.responseWindow, func() {
		select {
		case gs.expired <- index:
		default:
		}
	})
}

func (gs *gameSession) cancelWindow() {
	if gs.timer != nil {
		gs.timer.Stop()
		gs.timer = nil
	}
}

// loop serializes every source of run progress onto one goroutine: inbound
// client messages and window expiries. It returns when the run ends or the
// client goes away.
func (gs *gameSession) loop() {
	defer gs.teardown()

	for {
		select {
		case msg, ok := <-gs.inbound:
			if !ok {
				// Client gone mid-run: abandoned, nothing reconciled.
				return
			}

			switch msg.Type {
			case "tick":
				if index, presented := gs.run.Advance(msg.Time); presented {
					gs.armWindow(index)
				}
			case "key":
				_, resolved := gs.run.HandleKey(KeyEvent{
					Key:   msg.Key,
					Ctrl:  msg.Ctrl,
					Shift: msg.Shift,
					Alt:   msg.Alt,
				})
				if resolved {
					gs.cancelWindow()
				}
			case "ended":
				gs.cancelWindow()
				gs.run.Finish()
				return
			default:
				// ignore unknown types
			}

		case index := <-gs.expired:
			if gs.run.Expire(index) {
				gs.timer = nil
			}
		}
	}
}

func (gs *gameSession) teardown() {
	gs.cancelWindow()

	// readPump may still be mid-send; drain until it closes the channel.
	go func() {
		for range gs.inbound {
		}
	}()

	close(gs.send)
}

func (gs *gameSession) readPump() {
	defer func() {
		close(gs.inbound)
		_ = gs.conn.Close()
	}()

	for {
		var msg clientMessage
		if err := gs.conn.ReadJSON(&msg); err != nil {
			return
		}

		gs.inbound <- msg
	}
}

func (gs *gameSession) writePump() {
	defer gs.conn.Close()

	for msg := range gs.send {
		if err := gs.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

// serveGameSocket upgrades /play/:songid/ws. Session and song lookups fail
// closed before the upgrade: no partial runs.
func serveGameSocket(cfg *Config, store *Store, catalog *Catalog) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		userID, err := sessionUserID(store, r)
		if err != nil {
			http.Error(w, "not logged in", http.StatusUnauthorized)
			return
		}

		song, err := catalog.song(ps.ByName("songid"))
		if err != nil {
			http.Error(w, "song not found", http.StatusNotFound)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Println("upgrade error:", err)
			return
		}

		session := newGameSession(cfg, store, conn, userID, song.ID)

		run, err := newRun(song, session)
		if err != nil {
			logf(cfg, "GAMES: Refusing run of %s: %v", song.ID, err)
			_ = conn.Close()
			return
		}
		session.run = run

		logf(cfg, "GAMES: %s started a run of %s", userID, song.ID)

		go session.writePump()
		go session.readPump()
		session.loop()
	}
}

// qrHandler generates a PNG QR code for the current play URL using go-qrcode.
func qrHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	songID := ps.ByName("songid")
	if songID == "" {
		http.Error(w, "missing song id", http.StatusBadRequest)
		return
	}

	// Derive scheme (respecting TLS and X-Forwarded-Proto if present).
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}

	// We are at /play/:songid/qr; strip trailing "/qr" to get the play URL.
	path := strings.TrimSuffix(r.URL.Path, "/qr")

	url := scheme + "://" + r.Host + path

	const qrSize = 320 // mobile-friendly size
	png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
	if err != nil {
		http.Error(w, "qr generation failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}
