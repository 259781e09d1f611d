/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// The run engine drives one playthrough of one song. It is push-driven and
// synchronous: the session that owns it feeds it media-clock samples,
// keystrokes, window expiries and the terminal signal from a single
// goroutine, and it reports back through the RunEvents sink.
//
// Scoring rules:
//   - A beat is presented once the clock reaches its timestamp minus a small
//     lead-in, and stays live for one response window.
//   - The first response commits the beat's outcome: a matching keystroke is
//     a hit (+1 star), a non-matching keystroke or an expired window is a
//     miss (-1 star). Exactly one outcome per beat.
//   - runStars is clamped to [0, maxStars] at all times.
//   - The terminal signal finishes the run; after that nothing moves.

package main

import (
	"fmt"
)

// leadIn is how far ahead of a beat's timestamp it is presented.
const leadIn = 0.05

type Outcome int

const (
	OutcomeMiss Outcome = iota
	OutcomeHit
)

func (o Outcome) String() string {
	if o == OutcomeHit {
		return "hit"
	}
	return "miss"
}

// RunEvents receives the engine's presentation-layer signals.
type RunEvents interface {
	BeatPresented(b Beat)
	BeatResolved(outcome Outcome, runStars int)
	RunFinished(finalStars, maxStars int)
}

type Run struct {
	beats    []Beat
	combos   []Combo
	maxStars int
	events   RunEvents

	beatIndex  int
	beatActive bool
	runStars   int
	ended      bool
}

// newRun builds the engine for one song attempt. It fails closed: a song
// with no playable schedule or an unparseable combo-spec never starts a run.
func newRun(song *Song, events RunEvents) (*Run, error) {
	if song == nil || len(song.Beats) == 0 {
		return nil, fmt.Errorf("%w: song has no beats", errSongParse)
	}

	combos := make([]Combo, len(song.Beats))
	for i, beat := range song.Beats {
		combo, err := parseCombo(beat.Keys)
		if err != nil {
			return nil, fmt.Errorf("beat %d: %w", beat.Order, err)
		}
		combos[i] = combo
	}

	maxStars := song.MaxStars
	if maxStars <= 0 {
		maxStars = len(song.Beats)
	}

	return &Run{
		beats:    song.Beats,
		combos:   combos,
		maxStars: maxStars,
		events:   events,
	}, nil
}

// Advance consumes one media-clock sample. If the next scheduled beat has
// come due it is presented, and the caller must arm a response-window timer
// for the returned beat index. Samples that arrive while a beat is already
// live, or after the run has ended, present nothing.
func (r *Run) Advance(elapsed float64) (int, bool) {
	if r.ended || r.beatActive || r.beatIndex >= len(r.beats) {
		return 0, false
	}

	beat := r.beats[r.beatIndex]
	if elapsed < beat.Timestamp-leadIn {
		return 0, false
	}

	r.beatActive = true
	r.events.BeatPresented(beat)

	return r.beatIndex, true
}

// HandleKey commits the live beat's outcome from a keystroke. The first
// response wins: a non-matching press scores a miss immediately instead of
// waiting out the window. Returns false when there was no live beat to
// resolve (the caller keeps its timer).
func (r *Run) HandleKey(ev KeyEvent) (Outcome, bool) {
	if r.ended || !r.beatActive {
		return OutcomeMiss, false
	}

	outcome := OutcomeMiss
	if r.combos[r.beatIndex].matches(ev) {
		outcome = OutcomeHit
	}
	r.resolve(outcome)

	return outcome, true
}

// Expire commits a miss for beat index if it is still the live beat. Stale
// expiries, from timers the session failed to cancel in time, are ignored.
func (r *Run) Expire(index int) bool {
	if r.ended || !r.beatActive || r.beatIndex != index {
		return false
	}

	r.resolve(OutcomeMiss)

	return true
}

func (r *Run) resolve(outcome Outcome) {
	switch outcome {
	case OutcomeHit:
		r.runStars = min(r.runStars+1, r.maxStars)
	default:
		r.runStars = max(r.runStars-1, 0)
	}

	r.beatActive = false
	r.beatIndex++

	r.events.BeatResolved(outcome, r.runStars)
}

// Finish handles the timing source's terminal signal. Idempotent: only the
// first call emits RunFinished, later signals and any late input are no-ops.
func (r *Run) Finish() bool {
	if r.ended {
		return false
	}

	r.ended = true
	r.beatActive = false
	r.events.RunFinished(r.runStars, r.maxStars)

	return true
}

func (r *Run) Stars() int {
	return r.runStars
}

func (r *Run) MaxStars() int {
	return r.maxStars
}

func (r *Run) Ended() bool {
	return r.ended
}
