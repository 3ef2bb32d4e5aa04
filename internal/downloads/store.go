package downloads

import (
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

const storeSchemaVersion = 1

type storeDocument struct {
	Version int    `json:"version"`
	Tasks   []Task `json:"tasks"`
}

// Store persists the download queue as a single JSON document, written
// atomically on every queue change.
type Store struct {
	mu     sync.Mutex
	path   string
	logger *slog.Logger
}

func NewStore(path string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{path: path, logger: logger}
}

// Load reads the persisted queue. A missing file yields an empty queue; a
// corrupt one is reset to empty with a log line. Tasks persisted mid-transfer
// come back as pending with progress cleared.
func (s *Store) Load() []Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("download queue unreadable, starting empty",
				slog.String("path", s.path), slog.String("error", err.Error()))
		}
		return nil
	}

	var doc storeDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		s.logger.Warn("download queue corrupt, starting empty",
			slog.String("path", s.path), slog.String("error", err.Error()))
		return nil
	}

	for i := range doc.Tasks {
		if doc.Tasks[i].Status == StatusDownloading {
			doc.Tasks[i].Status = StatusPending
			doc.Tasks[i].BytesReceived = 0
		}
	}
	return doc.Tasks
}

// Save writes the queue atomically: temp file in the same directory, then
// rename over the target.
func (s *Store) Save(tasks []Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(storeDocument{Version: storeSchemaVersion, Tasks: tasks})
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}
