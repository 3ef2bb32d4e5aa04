// Package downloads implements the client-side download queue: a persistent
// FIFO of song downloads driven one at a time, with pause, resume, retry and
// cancellation.
package downloads

import (
	"time"

	"github.com/picccassso/Ariami-sub001/internal/domain"
)

// Status is a download task's lifecycle state.
type Status string

const (
	StatusPending     Status = "pending"
	StatusDownloading Status = "downloading"
	StatusPaused      Status = "paused"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
	StatusCancelled   Status = "cancelled"
)

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// CanTransition reports whether moving from s to next is a legal step.
// Pending and Failed re-enter the queue; Paused tasks re-queue on resume.
func (s Status) CanTransition(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusDownloading || next == StatusCancelled
	case StatusDownloading:
		return next == StatusPaused || next == StatusCompleted ||
			next == StatusFailed || next == StatusCancelled
	case StatusPaused:
		return next == StatusPending || next == StatusDownloading || next == StatusCancelled
	case StatusFailed:
		return next == StatusPending || next == StatusCancelled
	}
	return false
}

// TaskID derives the queue ID for a song download.
func TaskID(songID domain.SongID) string {
	return "song_" + string(songID)
}

// Task is one queued song download. BytesReceived is transient progress and
// resets when the task leaves Downloading without completing.
type Task struct {
	ID            string        `json:"id"`
	SongID        domain.SongID `json:"songId"`
	Title         string        `json:"title"`
	Artist        string        `json:"artist"`
	AlbumID       string        `json:"albumId,omitempty"`
	URL           string        `json:"url"`
	Dest          string        `json:"dest"`
	Status        Status        `json:"status"`
	BytesReceived int64         `json:"bytesReceived"`
	TotalBytes    int64         `json:"totalBytes"`
	RetryCount    int           `json:"retryCount"`
	Error         string        `json:"error,omitempty"`
	EnqueuedAt    time.Time     `json:"enqueuedAt"`
	CompletedAt   time.Time     `json:"completedAt,omitzero"`
}

// NewTask builds a pending task for a song download.
func NewTask(songID domain.SongID, title, artist, albumID, url, dest string) Task {
	return Task{
		ID:         TaskID(songID),
		SongID:     songID,
		Title:      title,
		Artist:     artist,
		AlbumID:    albumID,
		URL:        url,
		Dest:       dest,
		Status:     StatusPending,
		EnqueuedAt: time.Now(),
	}
}
