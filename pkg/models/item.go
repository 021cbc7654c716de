// Package models defines the data structures used throughout the application
package models

import (
	"fmt"
	"time"
)

// ItemType identifies the kind of downloadable aggregate
type ItemType string

const (
	ItemTypeAlbum             ItemType = "album"
	ItemTypePlaylist          ItemType = "playlist"
	ItemTypeMix               ItemType = "mix"
	ItemTypePersonalMix       ItemType = "personal_mix"
	ItemTypeGeneratedPlaylist ItemType = "generated_playlist"
)

// Catalog table names
const (
	TableAlbums    = "albums"
	TablePlaylists = "playlists"
	TableMixes     = "mixes"
	TableSongs     = "songs"
)

// Table returns the catalog table an item of this type is stored under.
// Generated playlists share the playlists table and personal mixes share
// the mixes table.
func (t ItemType) Table() string {
	switch t {
	case ItemTypeAlbum:
		return TableAlbums
	case ItemTypePlaylist, ItemTypeGeneratedPlaylist:
		return TablePlaylists
	case ItemTypeMix, ItemTypePersonalMix:
		return TableMixes
	default:
		return ""
	}
}

// Valid reports whether t is a known item type
func (t ItemType) Valid() bool {
	return t.Table() != ""
}

// ParseItemType converts a string into an ItemType
func ParseItemType(s string) (ItemType, error) {
	t := ItemType(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown item type %q", s)
	}
	return t, nil
}

// Song represents one track embedded in a downloaded item. Songs are
// denormalized copies taken at download time, not live references.
type Song struct {
	ID       string  `json:"_id"`
	Title    string  `json:"title"`
	Artist   string  `json:"artist"`
	ImageURL string  `json:"imageUrl,omitempty"`
	HLSURL   string  `json:"hlsUrl,omitempty"`
	Duration float64 `json:"duration,omitempty"`
}

// Item is a catalog record for a downloaded album, playlist or mix
type Item struct {
	ID               string    `json:"id" db:"id"`
	UserID           string    `json:"user_id" db:"user_id"`
	Type             ItemType  `json:"type" db:"item_type"`
	Title            string    `json:"title" db:"title"`
	ImageURL         string    `json:"image_url" db:"image_url"`
	Songs            []Song    `json:"songs" db:"songs_json"`
	ServerModifiedAt time.Time `json:"server_modified_at" db:"server_modified_at"`
	DownloadedAt     time.Time `json:"downloaded_at" db:"downloaded_at"`
}

// HasSong reports whether the item's song snapshot contains the given song id
func (i *Item) HasSong(songID string) bool {
	for _, s := range i.Songs {
		if s.ID == songID {
			return true
		}
	}
	return false
}

// Download progress milestones. Progress is a coarse milestone counter,
// not byte-accurate; UI polling is calibrated to these five values.
const (
	ProgressStarted   = 0
	ProgressMetadata  = 20
	ProgressCollected = 40
	ProgressCached    = 70
	ProgressPersisted = 90
	ProgressDone      = 100
)

// UploadRegistration records one active temp-upload directory
type UploadRegistration struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Path      string    `json:"path"`
	Type      string    `json:"type"`
	StartedAt time.Time `json:"started_at"`
}
