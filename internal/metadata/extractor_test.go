package metadata

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/picccassso/Ariami-sub001/internal/domain"
)

// writeBareMP3 writes an untagged CBR MP3 (128 kbps, 44100 Hz) of ~10s.
func writeBareMP3(t *testing.T, dir, name string) string {
	t.Helper()
	buf := make([]byte, 160000+128)
	copy(buf, []byte{0xFF, 0xFB, 0x90, 0x00})
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestExtract_FilenameFallback(t *testing.T) {
	dir := t.TempDir()
	ex := NewExtractor(nil)

	path := writeBareMP3(t, dir, "07 - Night Drive.mp3")
	song, err := ex.Extract(path, false)
	if err != nil {
		t.Fatalf("soft extract returned error: %v", err)
	}
	if song.Title != "Night Drive" {
		t.Errorf("title = %q, want %q", song.Title, "Night Drive")
	}
	if song.TrackNumber != 7 {
		t.Errorf("track = %d, want 7", song.TrackNumber)
	}
	if song.ID != domain.NewSongID(path) {
		t.Errorf("id mismatch: %q", song.ID)
	}
	if song.DurationSec != 10 {
		t.Errorf("duration = %d, want 10", song.DurationSec)
	}
	if song.BitrateKbps != 128 {
		t.Errorf("bitrate = %d, want 128", song.BitrateKbps)
	}
}

func TestExtract_ArtistDashTitle(t *testing.T) {
	dir := t.TempDir()
	ex := NewExtractor(nil)

	path := writeBareMP3(t, dir, "Some Artist - Some Song.mp3")
	song, err := ex.Extract(path, false)
	if err != nil {
		t.Fatal(err)
	}
	if song.Artist != "Some Artist" || song.Title != "Some Song" {
		t.Errorf("artist/title = %q/%q, want %q/%q",
			song.Artist, song.Title, "Some Artist", "Some Song")
	}
}

func TestExtract_StrictModeSurfacesTagFailure(t *testing.T) {
	dir := t.TempDir()
	ex := NewExtractor(nil)

	path := writeBareMP3(t, dir, "untagged.mp3")
	if _, err := ex.Extract(path, true); err == nil {
		t.Error("strict extract of untagged file did not fail")
	} else if _, ok := err.(*domain.ExtractionError); !ok {
		t.Errorf("error type = %T, want *domain.ExtractionError", err)
	}
}

func TestExtract_MissingFile(t *testing.T) {
	ex := NewExtractor(nil)
	if _, err := ex.Extract(filepath.Join(t.TempDir(), "gone.mp3"), false); err == nil {
		t.Error("extract of missing file did not fail")
	}
}

func TestExtract_RecordsFileFingerprint(t *testing.T) {
	dir := t.TempDir()
	ex := NewExtractor(nil)

	path := writeBareMP3(t, dir, "a.mp3")
	fi, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	song, err := ex.Extract(path, false)
	if err != nil {
		t.Fatal(err)
	}
	if song.SizeBytes != fi.Size() {
		t.Errorf("sizeBytes = %d, want %d", song.SizeBytes, fi.Size())
	}
	if song.ModTimeMs != fi.ModTime().UnixMilli() {
		t.Errorf("modTimeMs = %d, want %d", song.ModTimeMs, fi.ModTime().UnixMilli())
	}
}
