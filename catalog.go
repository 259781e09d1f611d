/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sort"

	"github.com/julienschmidt/httprouter"
)

// Catalog is the read-only song library, loaded once at startup from
// songs.json and validated so that a run can never start from bad data.
type Catalog struct {
	songs []Song
	byID  map[string]*Song
}

func loadCatalog(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading song catalog: %w", err)
	}

	var songs []Song
	if err := json.Unmarshal(raw, &songs); err != nil {
		return nil, fmt.Errorf("%w: %s: %s", errSongParse, path, err)
	}

	catalog := &Catalog{
		songs: songs,
		byID:  make(map[string]*Song, len(songs)),
	}

	for i := range catalog.songs {
		song := &catalog.songs[i]

		if song.ID == "" {
			return nil, fmt.Errorf("%w: song %d has no id", errSongParse, i)
		}
		if _, exists := catalog.byID[song.ID]; exists {
			return nil, fmt.Errorf("%w: duplicate song id %q", errSongParse, song.ID)
		}

		// Stable sort keeps original array order for equal Order values.
		sort.SliceStable(song.Beats, func(a, b int) bool {
			return song.Beats[a].Order < song.Beats[b].Order
		})

		for _, beat := range song.Beats {
			if beat.Timestamp < 0 {
				return nil, fmt.Errorf("%w: song %q beat %d has negative timestamp", errSongParse, song.ID, beat.Order)
			}
			if _, err := parseCombo(beat.Keys); err != nil {
				return nil, fmt.Errorf("song %q: %w", song.ID, err)
			}
		}

		if song.MaxStars <= 0 {
			song.MaxStars = len(song.Beats)
		}

		catalog.byID[song.ID] = song
	}

	return catalog, nil
}

func (c *Catalog) song(id string) (*Song, error) {
	song, ok := c.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", errSongNotFound, id)
	}
	return song, nil
}

func (c *Catalog) Songs() []Song {
	return c.songs
}

type songsResponse struct {
	Success bool   `json:"success"`
	Songs   []Song `json:"songs"`
}

func serveSongs(cfg *Config, catalog *Catalog) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		respondJSON(cfg, w, http.StatusOK, songsResponse{
			Success: true,
			Songs:   catalog.Songs(),
		})
	}
}
