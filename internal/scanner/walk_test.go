package scanner

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/picccassso/Ariami-sub001/internal/testutil"
)

func TestWalk_CollectsAudioFiles(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteBareMP3(t, dir, "a.mp3")
	testutil.WriteBareMP3(t, dir, "b.flac") // content irrelevant, extension matters
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	sub := filepath.Join(dir, "sub")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	testutil.WriteBareMP3(t, sub, "c.M4A")

	result, err := Walk(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.AudioFiles) != 3 {
		t.Errorf("found %d audio files, want 3: %v", len(result.AudioFiles), result.AudioFiles)
	}
	if len(result.PlaylistDirs) != 0 {
		t.Errorf("found %d playlist dirs, want 0", len(result.PlaylistDirs))
	}
}

func TestWalk_PlaylistFolders(t *testing.T) {
	dir := t.TempDir()
	plDir := filepath.Join(dir, "My Mix [PLAYLIST]")
	if err := os.Mkdir(plDir, 0o755); err != nil {
		t.Fatal(err)
	}
	first := testutil.WriteBareMP3(t, plDir, "01.mp3")
	second := testutil.WriteBareMP3(t, plDir, "02.mp3")
	testutil.WriteBareMP3(t, dir, "loose.mp3")

	result, err := Walk(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.PlaylistDirs) != 1 {
		t.Fatalf("playlist dirs = %v, want one", result.PlaylistDirs)
	}
	members := result.PlaylistFiles[result.PlaylistDirs[0]]
	if len(members) != 2 || members[0] != first || members[1] != second {
		t.Errorf("playlist members = %v, want [%s %s]", members, first, second)
	}
}

func TestWalk_NestedPlaylistNotRegistered(t *testing.T) {
	dir := t.TempDir()
	outer := filepath.Join(dir, "Outer [PLAYLIST]")
	inner := filepath.Join(outer, "Inner [PLAYLIST]")
	if err := os.MkdirAll(inner, 0o755); err != nil {
		t.Fatal(err)
	}
	testutil.WriteBareMP3(t, inner, "deep.mp3")

	result, err := Walk(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.PlaylistDirs) != 1 || result.PlaylistDirs[0] != outer {
		t.Errorf("playlist dirs = %v, want only %s", result.PlaylistDirs, outer)
	}
	// The nested file belongs to the outer playlist.
	if n := len(result.PlaylistFiles[outer]); n != 1 {
		t.Errorf("outer playlist has %d members, want 1", n)
	}
}

func TestWalk_SymlinksNotFollowed(t *testing.T) {
	dir := t.TempDir()
	target := t.TempDir()
	testutil.WriteBareMP3(t, target, "hidden.mp3")
	if err := os.Symlink(target, filepath.Join(dir, "link")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	result, err := Walk(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.AudioFiles) != 0 {
		t.Errorf("walk followed a symlink: %v", result.AudioFiles)
	}
}

func TestIsAudioFile(t *testing.T) {
	for _, path := range []string{"x.mp3", "x.FLAC", "a/b.opus", "y.aiff"} {
		if !IsAudioFile(path) {
			t.Errorf("IsAudioFile(%q) = false", path)
		}
	}
	for _, path := range []string{"x.txt", "x.jpg", "x", "x.mp3.bak"} {
		if IsAudioFile(path) {
			t.Errorf("IsAudioFile(%q) = true", path)
		}
	}
}
