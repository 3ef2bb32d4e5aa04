package metadata

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/picccassso/Ariami-sub001/internal/domain"
)

func testSong(path string) domain.SongMetadata {
	return domain.SongMetadata{
		ID:          domain.NewSongID(path),
		Path:        path,
		Title:       "Title",
		Artist:      "Artist",
		Album:       "Album",
		DurationSec: 180,
		SizeBytes:   1234,
		ModTimeMs:   99999,
	}
}

func TestCacheRoundTrip(t *testing.T) {
	cachePath := filepath.Join(t.TempDir(), "metadata_cache.json")
	c := LoadCache(cachePath, nil)

	song := testSong("/music/a.mp3")
	if err := c.Update(song.Path, 100, 1234, song); err != nil {
		t.Fatal(err)
	}
	if err := c.Save(); err != nil {
		t.Fatal(err)
	}

	reloaded := LoadCache(cachePath, nil)
	got, ok := reloaded.Lookup(song.Path, 100, 1234)
	if !ok {
		t.Fatal("fresh entry not found after reload")
	}
	want, _ := json.Marshal(song)
	gotJSON, _ := json.Marshal(got)
	if string(want) != string(gotJSON) {
		t.Errorf("round trip mismatch:\n got %s\nwant %s", gotJSON, want)
	}
}

func TestCacheLookup_StaleFingerprint(t *testing.T) {
	c := LoadCache(filepath.Join(t.TempDir(), "cache.json"), nil)
	song := testSong("/music/a.mp3")
	_ = c.Update(song.Path, 100, 1234, song)

	if _, ok := c.Lookup(song.Path, 101, 1234); ok {
		t.Error("entry with changed mtime reported fresh")
	}
	if _, ok := c.Lookup(song.Path, 100, 999); ok {
		t.Error("entry with changed size reported fresh")
	}
	if _, ok := c.Lookup("/music/other.mp3", 100, 1234); ok {
		t.Error("missing path reported fresh")
	}
}

func TestCacheCorruptFile_StartsEmpty(t *testing.T) {
	cachePath := filepath.Join(t.TempDir(), "cache.json")
	if err := os.WriteFile(cachePath, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	c := LoadCache(cachePath, nil)
	if c.Len() != 0 {
		t.Errorf("corrupt cache loaded %d entries, want 0", c.Len())
	}
}

func TestCacheUpdateDuration_PreservesUnknownFields(t *testing.T) {
	cachePath := filepath.Join(t.TempDir(), "cache.json")
	c := LoadCache(cachePath, nil)

	// Simulate an entry written by a newer version with an extra field.
	raw := json.RawMessage(`{"id":"abc","path":"/music/a.mp3","duration":0,"futureField":"keep-me"}`)
	c.ReplaceAll(map[string]CacheEntry{
		"/music/a.mp3": {MtimeMs: 1, SizeBytes: 2, Metadata: raw},
	})

	if !c.UpdateDuration("/music/a.mp3", 42) {
		t.Fatal("UpdateDuration reported no entry")
	}
	entry := c.Snapshot()["/music/a.mp3"]

	var loose map[string]any
	if err := json.Unmarshal(entry.Metadata, &loose); err != nil {
		t.Fatal(err)
	}
	if loose["duration"] != float64(42) {
		t.Errorf("duration = %v, want 42", loose["duration"])
	}
	if loose["futureField"] != "keep-me" {
		t.Errorf("unknown field lost: %v", loose["futureField"])
	}
}

func TestCacheUpdateDuration_MissingEntry(t *testing.T) {
	c := LoadCache(filepath.Join(t.TempDir(), "cache.json"), nil)
	if c.UpdateDuration("/nope.mp3", 10) {
		t.Error("UpdateDuration succeeded for missing entry")
	}
}

func TestCacheClear(t *testing.T) {
	c := LoadCache(filepath.Join(t.TempDir(), "cache.json"), nil)
	_ = c.Update("/music/a.mp3", 1, 2, testSong("/music/a.mp3"))
	c.Clear()
	if c.Len() != 0 {
		t.Errorf("Len after Clear = %d, want 0", c.Len())
	}
}

func TestCacheSave_NoTempLeftover(t *testing.T) {
	dir := t.TempDir()
	cachePath := filepath.Join(dir, "cache.json")
	c := LoadCache(cachePath, nil)
	_ = c.Update("/music/a.mp3", 1, 2, testSong("/music/a.mp3"))
	if err := c.Save(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(cachePath + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file left behind after save")
	}
}
