package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a song, album or playlist does not exist.
	ErrNotFound = errors.New("not found")

	// ErrNotConfigured is returned when no music folder has been set.
	ErrNotConfigured = errors.New("music folder not configured")

	// ErrScanBusy is returned when a scan is requested while one is running.
	// Callers treat it as a soft failure.
	ErrScanBusy = errors.New("scan already in progress")

	// ErrCacheCorrupt signals an unreadable metadata cache file. The cache is
	// reset to empty and the error logged once.
	ErrCacheCorrupt = errors.New("metadata cache corrupt")

	// ErrTranscodeUnavailable signals a missing encoder binary; quality
	// presets degrade to the original file.
	ErrTranscodeUnavailable = errors.New("transcoder unavailable")
)

// ExtractionError wraps a per-file metadata extraction failure. Scans log it
// and skip the file.
type ExtractionError struct {
	Path string
	Err  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: %v", e.Path, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }
