/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"fmt"
	"strings"
)

// Combo is a parsed combo-spec such as "A", "Ctrl+D" or "Shift+X": zero or
// more required modifiers plus at most one main key.
type Combo struct {
	ctrl  bool
	shift bool
	alt   bool
	main  string
}

// KeyEvent is one observed keystroke: the key label plus the down-state of
// each modifier at the time of the press.
type KeyEvent struct {
	Key   string `json:"key"`
	Ctrl  bool   `json:"ctrl"`
	Shift bool   `json:"shift"`
	Alt   bool   `json:"alt"`
}

// parseCombo tokenizes a combo-spec on "+", case-insensitively. Specs with
// more than one non-modifier token are rejected here, at load time, rather
// than silently resolved to one of them.
func parseCombo(spec string) (Combo, error) {
	if strings.TrimSpace(spec) == "" {
		return Combo{}, fmt.Errorf("%w: empty combo spec", errSongParse)
	}

	var combo Combo

	for _, token := range strings.Split(spec, "+") {
		token = strings.ToUpper(strings.TrimSpace(token))

		switch token {
		case "CTRL", "CONTROL":
			combo.ctrl = true
		case "SHIFT":
			combo.shift = true
		case "ALT":
			combo.alt = true
		case "":
			return Combo{}, fmt.Errorf("%w: empty token in combo spec %q", errSongParse, spec)
		default:
			if combo.main != "" {
				return Combo{}, fmt.Errorf("%w: multiple main keys in combo spec %q", errSongParse, spec)
			}
			combo.main = token
		}
	}

	return combo, nil
}

// matches reports whether an observed keystroke satisfies the combo.
// Modifier checking is subset semantics: listed modifiers must be held, but
// modifiers the spec doesn't mention may be held anyway. A combo with no
// main key matches on modifiers alone.
func (c Combo) matches(ev KeyEvent) bool {
	if c.ctrl && !ev.Ctrl {
		return false
	}
	if c.shift && !ev.Shift {
		return false
	}
	if c.alt && !ev.Alt {
		return false
	}

	if c.main == "" {
		return true
	}

	pressed := strings.ToUpper(ev.Key)
	pressed = strings.TrimPrefix(pressed, "ARROW")

	return pressed == c.main
}
