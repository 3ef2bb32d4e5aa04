package app

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// Settings is the owner configuration persisted in config.json.
type Settings struct {
	MusicFolder   string `json:"musicFolder"`
	SetupComplete bool   `json:"setupComplete"`
}

// SettingsStore reads and writes the owner configuration document. Saves are
// atomic (write-temp-rename); a missing or corrupt file yields zero settings
// so first run works without any setup artifacts.
type SettingsStore struct {
	path   string
	logger *slog.Logger

	mu sync.Mutex
}

func NewSettingsStore(path string, logger *slog.Logger) *SettingsStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &SettingsStore{path: path, logger: logger}
}

func (s *SettingsStore) Load() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("settings read failed", slog.String("path", s.path), slog.String("error", err.Error()))
		}
		return Settings{}
	}
	var settings Settings
	if err := json.Unmarshal(data, &settings); err != nil {
		s.logger.Warn("settings corrupt, starting empty", slog.String("path", s.path), slog.String("error", err.Error()))
		return Settings{}
	}
	return settings
}

func (s *SettingsStore) Save(settings Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(settings, "", "  ")
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
	return os.Rename(tmp, s.path)
}
