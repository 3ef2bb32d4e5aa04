package domain

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
	"time"
)

// PlaylistMarker is the directory-name token that turns a folder into a
// folder playlist.
const PlaylistMarker = "[PLAYLIST]"

// PlaylistID is the full MD5 hex of the playlist folder's absolute path.
type PlaylistID string

// NewPlaylistID derives the playlist ID from the folder path.
func NewPlaylistID(folderPath string) PlaylistID {
	sum := md5.Sum([]byte(folderPath))
	return PlaylistID(hex.EncodeToString(sum[:]))
}

// PlaylistDisplayName strips the playlist marker from a folder base name.
func PlaylistDisplayName(baseName string) string {
	return strings.TrimSpace(strings.ReplaceAll(baseName, PlaylistMarker, ""))
}

// FolderPlaylist is a playlist sourced from a marker-named directory.
// Member songs are kept in discovery order.
type FolderPlaylist struct {
	ID      PlaylistID `json:"id"`
	Name    string     `json:"name"`
	Path    string     `json:"path"`
	SongIDs []SongID   `json:"songIds"`
}

// Library is an immutable catalogue snapshot: every song lives in exactly one
// valid album or in the standalone set, never both. Mutations produce a new
// snapshot that the library manager swaps in atomically.
type Library struct {
	Albums      map[AlbumID]*Album `json:"albums"`
	Standalone  []SongMetadata     `json:"standaloneSongs"`
	Playlists   []FolderPlaylist   `json:"folderPlaylists"`
	GeneratedAt time.Time          `json:"generatedAt"`
}

// NewLibrary returns an empty snapshot stamped with now.
func NewLibrary(now time.Time) *Library {
	return &Library{
		Albums:      make(map[AlbumID]*Album),
		GeneratedAt: now,
	}
}

// SongCount returns the total number of songs across albums and standalone.
func (l *Library) SongCount() int {
	n := len(l.Standalone)
	for _, a := range l.Albums {
		n += len(a.Songs)
	}
	return n
}

// AllSongs returns every song in the snapshot. Album songs come first in
// album-sorted order, then standalone songs.
func (l *Library) AllSongs() []SongMetadata {
	songs := make([]SongMetadata, 0, l.SongCount())
	for _, a := range l.Albums {
		songs = append(songs, a.Songs...)
	}
	songs = append(songs, l.Standalone...)
	return songs
}

// FindSong looks a song up by ID across albums and the standalone set.
func (l *Library) FindSong(id SongID) (SongMetadata, bool) {
	for _, a := range l.Albums {
		for _, s := range a.Songs {
			if s.ID == id {
				return s, true
			}
		}
	}
	for _, s := range l.Standalone {
		if s.ID == id {
			return s, true
		}
	}
	return SongMetadata{}, false
}

// FindSongByPath looks a song up by its absolute file path.
func (l *Library) FindSongByPath(path string) (SongMetadata, bool) {
	return l.FindSong(NewSongID(path))
}

// AlbumOf returns the album containing the given song, if any.
func (l *Library) AlbumOf(id SongID) (*Album, bool) {
	for _, a := range l.Albums {
		for _, s := range a.Songs {
			if s.ID == id {
				return a, true
			}
		}
	}
	return nil, false
}

// DurationsReady reports whether every song carries a known duration.
func (l *Library) DurationsReady() bool {
	for _, a := range l.Albums {
		if !a.DurationsKnown() {
			return false
		}
	}
	for _, s := range l.Standalone {
		if s.DurationSec == 0 {
			return false
		}
	}
	return true
}
