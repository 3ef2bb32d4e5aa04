package domain

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"path/filepath"
	"time"
)

// SongID is a stable identifier derived from the song's absolute file path.
type SongID string

const songIDLen = 12

// NewSongID returns the first 12 hex characters of the MD5 of path.
// Equal paths always yield equal IDs.
func NewSongID(path string) SongID {
	sum := md5.Sum([]byte(path))
	return SongID(hex.EncodeToString(sum[:])[:songIDLen])
}

// SongMetadata describes one audio file in the library. Duration, track and
// disc numbers use zero as "unknown"; the warm-up pass fills durations in
// later.
type SongMetadata struct {
	ID          SongID `json:"id"`
	Path        string `json:"path"`
	Title       string `json:"title,omitempty"`
	Artist      string `json:"artist,omitempty"`
	AlbumArtist string `json:"albumArtist,omitempty"`
	Album       string `json:"album,omitempty"`
	Year        int    `json:"year,omitempty"`
	TrackNumber int    `json:"trackNumber,omitempty"`
	DiscNumber  int    `json:"discNumber,omitempty"`
	Genre       string `json:"genre,omitempty"`
	Comment     string `json:"comment,omitempty"`
	DurationSec int    `json:"duration,omitempty"`
	BitrateKbps int    `json:"bitrate,omitempty"`
	HasArtwork  bool   `json:"hasArtwork,omitempty"`
	SizeBytes   int64  `json:"sizeBytes"`
	ModTimeMs   int64  `json:"modTimeMs"`

	// Artwork holds embedded picture bytes when the extractor found any.
	// Never serialized; the library manager caches it separately.
	Artwork []byte `json:"-"`
}

// Validate checks domain invariants for SongMetadata.
func (s SongMetadata) Validate() error {
	if s.Path == "" {
		return errors.New("song path is required")
	}
	if !filepath.IsAbs(s.Path) {
		return errors.New("song path must be absolute")
	}
	if s.ID == "" {
		return errors.New("song id is required")
	}
	if s.DurationSec < 0 {
		return errors.New("duration must not be negative")
	}
	if s.SizeBytes < 0 {
		return errors.New("sizeBytes must not be negative")
	}
	return nil
}

// DisplayTitle returns the title, falling back to the file's base name.
func (s SongMetadata) DisplayTitle() string {
	if s.Title != "" {
		return s.Title
	}
	base := filepath.Base(s.Path)
	return base[:len(base)-len(filepath.Ext(base))]
}

// ModTime converts the stored millisecond timestamp back to time.Time.
func (s SongMetadata) ModTime() time.Time {
	return time.UnixMilli(s.ModTimeMs)
}
