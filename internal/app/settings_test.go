package app

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSettingsRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	store := NewSettingsStore(path, nil)

	want := Settings{MusicFolder: "/srv/music", SetupComplete: true}
	if err := store.Save(want); err != nil {
		t.Fatal(err)
	}
	if got := store.Load(); got != want {
		t.Errorf("Load() = %+v, want %+v", got, want)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file left behind after save")
	}
}

func TestSettingsMissingFile(t *testing.T) {
	store := NewSettingsStore(filepath.Join(t.TempDir(), "config.json"), nil)
	if got := store.Load(); got != (Settings{}) {
		t.Errorf("Load() = %+v, want zero settings", got)
	}
}

func TestSettingsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	store := NewSettingsStore(path, nil)
	if got := store.Load(); got != (Settings{}) {
		t.Errorf("Load() = %+v, want zero settings", got)
	}
}

func TestSettingsSaveCreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "config.json")
	store := NewSettingsStore(path, nil)
	if err := store.Save(Settings{MusicFolder: "/music"}); err != nil {
		t.Fatal(err)
	}
	if got := store.Load().MusicFolder; got != "/music" {
		t.Errorf("MusicFolder = %q", got)
	}
}
