package app

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLayoutPaths(t *testing.T) {
	l, err := NewLayout("/etc/ariami", "/var/lib/ariami")
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"settings", l.SettingsPath(), "/etc/ariami/config.json"},
		{"metadata cache", l.MetadataCachePath(), "/etc/ariami/metadata_cache.json"},
		{"transcode dir", l.TranscodeCacheDir(), "/etc/ariami/transcoded_cache"},
		{"server log", l.ServerLogPath(), "/etc/ariami/server.log"},
		{"pid file", l.PIDPath(), "/etc/ariami/ariamid.pid"},
		{"downloads", l.DownloadsSongsDir(), "/var/lib/ariami/downloads/songs"},
		{"queue", l.DownloadQueuePath(), "/var/lib/ariami/downloads/queue.json"},
		{"artwork cache", l.ArtworkCacheDir(), "/var/lib/ariami/cache/artwork"},
	}
	for _, tt := range tests {
		if tt.got != filepath.FromSlash(tt.want) {
			t.Errorf("%s = %q, want %q", tt.name, tt.got, tt.want)
		}
	}
}

func TestLayoutDataDirDefaultsUnderConfig(t *testing.T) {
	l, err := NewLayout("/etc/ariami", "")
	if err != nil {
		t.Fatal(err)
	}
	if l.DataDir != filepath.FromSlash("/etc/ariami/data") {
		t.Errorf("DataDir = %q", l.DataDir)
	}
}

func TestLayoutEnsureCreatesDirs(t *testing.T) {
	base := t.TempDir()
	l, err := NewLayout(filepath.Join(base, "cfg"), filepath.Join(base, "data"))
	if err != nil {
		t.Fatal(err)
	}
	if err := l.Ensure(); err != nil {
		t.Fatal(err)
	}
	for _, dir := range []string{l.TranscodeCacheDir(), l.DownloadsSongsDir(), l.ArtworkCacheDir()} {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			t.Errorf("dir %s not created: %v", dir, err)
		}
	}
}
