package library

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/picccassso/Ariami-sub001/internal/domain"
	"github.com/picccassso/Ariami-sub001/internal/testutil"
)

func TestProcessChanges_AddAndRemove(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteTaggedMP3(t, dir, "1.mp3", testutil.Tags{Title: "One", Artist: "Bar", Album: "Foo", Track: 1})
	doomed := testutil.WriteTaggedMP3(t, dir, "2.mp3", testutil.Tags{Title: "Two", Artist: "Bar", Album: "Foo", Track: 2})

	m := newTestManager(t, dir)
	if _, err := m.Scan(context.Background()); err != nil {
		t.Fatal(err)
	}

	added := testutil.WriteTaggedMP3(t, dir, "3.mp3", testutil.Tags{Title: "Three", Artist: "Bar", Album: "Foo", Track: 3})
	if err := os.Remove(doomed); err != nil {
		t.Fatal(err)
	}

	update := m.ProcessChanges(context.Background(), []domain.FileChange{
		{Type: domain.ChangeAdded, Path: added},
		{Type: domain.ChangeRemoved, Path: doomed},
	})
	if err := update.Validate(); err != nil {
		t.Fatal(err)
	}
	if len(update.Added) != 1 || update.Added[0] != domain.NewSongID(added) {
		t.Errorf("added = %v", update.Added)
	}
	if len(update.Removed) != 1 || update.Removed[0] != domain.NewSongID(doomed) {
		t.Errorf("removed = %v", update.Removed)
	}
	if len(update.Albums) == 0 {
		t.Error("affected albums empty")
	}

	lib := m.ApplyUpdate(update)
	album, ok := lib.Albums[domain.NewAlbumID("foo|||bar")]
	if !ok {
		t.Fatalf("album missing after update: %v", lib.Albums)
	}
	if len(album.Songs) != 2 {
		t.Fatalf("album songs = %d, want 2", len(album.Songs))
	}
	if album.Songs[0].TrackNumber != 1 || album.Songs[1].TrackNumber != 3 {
		t.Errorf("album tracks = %d,%d, want 1,3",
			album.Songs[0].TrackNumber, album.Songs[1].TrackNumber)
	}
}

func TestProcessChanges_ModifiedKnownPath(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteTaggedMP3(t, dir, "a.mp3", testutil.Tags{Title: "Old Title", Artist: "X"})

	m := newTestManager(t, dir)
	if _, err := m.Scan(context.Background()); err != nil {
		t.Fatal(err)
	}

	testutil.WriteTaggedMP3(t, dir, "a.mp3", testutil.Tags{Title: "New Title", Artist: "X"})
	update := m.ProcessChanges(context.Background(), []domain.FileChange{
		{Type: domain.ChangeModified, Path: path},
	})
	id := domain.NewSongID(path)
	if len(update.Modified) != 1 || update.Modified[0] != id {
		t.Fatalf("modified = %v, want [%s]", update.Modified, id)
	}
	if update.Songs[id].Title != "New Title" {
		t.Errorf("re-extracted title = %q", update.Songs[id].Title)
	}

	lib := m.ApplyUpdate(update)
	s, ok := lib.FindSong(id)
	if !ok || s.Title != "New Title" {
		t.Errorf("library song = %+v, want the rewritten title", s)
	}
}

func TestProcessChanges_RenameSplits(t *testing.T) {
	dir := t.TempDir()
	oldPath := testutil.WriteTaggedMP3(t, dir, "one.mp3", testutil.Tags{Title: "One", Artist: "X"})

	m := newTestManager(t, dir)
	if _, err := m.Scan(context.Background()); err != nil {
		t.Fatal(err)
	}

	newPath := filepath.Join(dir, "two.mp3")
	if err := os.Rename(oldPath, newPath); err != nil {
		t.Fatal(err)
	}

	update := m.ProcessChanges(context.Background(), []domain.FileChange{
		{Type: domain.ChangeRenamed, Path: newPath, OldPath: oldPath},
	})
	if len(update.Removed) != 1 || update.Removed[0] != domain.NewSongID(oldPath) {
		t.Errorf("removed = %v", update.Removed)
	}
	if len(update.Added) != 1 || update.Added[0] != domain.NewSongID(newPath) {
		t.Errorf("added = %v", update.Added)
	}

	lib := m.ApplyUpdate(update)
	if _, found := lib.FindSongByPath(oldPath); found {
		t.Error("old path still present after rename")
	}
	if _, found := lib.FindSongByPath(newPath); !found {
		t.Error("new path missing after rename")
	}
}

func TestProcessChanges_SingletonAlbumNotAffected(t *testing.T) {
	dir := t.TempDir()
	m := newTestManager(t, dir)
	if _, err := m.Scan(context.Background()); err != nil {
		t.Fatal(err)
	}

	added := testutil.WriteTaggedMP3(t, dir, "only.mp3",
		testutil.Tags{Title: "Only", Artist: "Solo", Album: "Novel", Track: 1})
	update := m.ProcessChanges(context.Background(), []domain.FileChange{
		{Type: domain.ChangeAdded, Path: added},
	})
	if len(update.Added) != 1 {
		t.Fatalf("added = %v, want one song", update.Added)
	}
	// One song is not enough to build an album, so no album can be affected.
	if len(update.Albums) != 0 {
		t.Errorf("affected albums = %v, want none for a singleton add", update.Albums)
	}

	lib := m.ApplyUpdate(update)
	for _, id := range update.Albums {
		if _, ok := lib.Albums[id]; !ok {
			t.Errorf("affected album %s missing from the rebuilt snapshot", id)
		}
	}
	if len(lib.Albums) != 0 || len(lib.Standalone) != 1 {
		t.Errorf("library = %d albums, %d standalone, want 0 and 1",
			len(lib.Albums), len(lib.Standalone))
	}
}

func TestProcessChanges_SecondSongPromotesAlbum(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteTaggedMP3(t, dir, "1.mp3", testutil.Tags{Title: "One", Artist: "Bar", Album: "Foo", Track: 1})

	m := newTestManager(t, dir)
	if _, err := m.Scan(context.Background()); err != nil {
		t.Fatal(err)
	}

	added := testutil.WriteTaggedMP3(t, dir, "2.mp3",
		testutil.Tags{Title: "Two", Artist: "Bar", Album: "Foo", Track: 2})
	update := m.ProcessChanges(context.Background(), []domain.FileChange{
		{Type: domain.ChangeAdded, Path: added},
	})

	wantID := domain.NewAlbumID("foo|||bar")
	found := false
	for _, id := range update.Albums {
		if id == wantID {
			found = true
		}
	}
	if !found {
		t.Fatalf("affected albums = %v, want %s for the newly built album", update.Albums, wantID)
	}

	lib := m.ApplyUpdate(update)
	if _, ok := lib.Albums[wantID]; !ok {
		t.Errorf("album %s missing after promotion", wantID)
	}
}

func TestProcessChanges_IgnoresNonAudio(t *testing.T) {
	m := newTestManager(t, t.TempDir())
	update := m.ProcessChanges(context.Background(), []domain.FileChange{
		{Type: domain.ChangeAdded, Path: "/music/cover.jpg"},
		{Type: domain.ChangeRemoved, Path: "/music/notes.txt"},
	})
	if !update.Empty() {
		t.Errorf("non-audio changes produced a delta: %+v", update)
	}
}

func TestProcessChanges_ExtractionFailureDropsEntry(t *testing.T) {
	m := newTestManager(t, t.TempDir())
	update := m.ProcessChanges(context.Background(), []domain.FileChange{
		{Type: domain.ChangeAdded, Path: "/nonexistent/ghost.mp3"},
	})
	if !update.Empty() {
		t.Errorf("unreadable file produced a delta: %+v", update)
	}
}

func TestApplyUpdate_InvalidatesCachedDurations(t *testing.T) {
	dir := t.TempDir()
	modified := testutil.WriteTaggedMP3(t, dir, "a.mp3", testutil.Tags{Title: "A", Artist: "X"})
	removed := testutil.WriteTaggedMP3(t, dir, "b.mp3", testutil.Tags{Title: "B", Artist: "X"})

	m := newTestManager(t, dir)
	if _, err := m.Scan(context.Background()); err != nil {
		t.Fatal(err)
	}

	modifiedID := domain.NewSongID(modified)
	removedID := domain.NewSongID(removed)
	m.durationCache.Put(modifiedID, 7)
	m.durationCache.Put(removedID, 9)

	testutil.WriteTaggedMP3(t, dir, "a.mp3", testutil.Tags{Title: "A2", Artist: "X"})
	if err := os.Remove(removed); err != nil {
		t.Fatal(err)
	}
	update := m.ProcessChanges(context.Background(), []domain.FileChange{
		{Type: domain.ChangeModified, Path: modified},
		{Type: domain.ChangeRemoved, Path: removed},
	})
	m.ApplyUpdate(update)

	if _, ok := m.durationCache.Get(modifiedID); ok {
		t.Error("modified song kept its stale cached duration")
	}
	if _, ok := m.durationCache.Get(removedID); ok {
		t.Error("removed song kept its cached duration")
	}
}

func TestApplyUpdate_PlaylistMembershipFollowsChanges(t *testing.T) {
	dir := t.TempDir()
	plDir := filepath.Join(dir, "Mix [PLAYLIST]")
	if err := os.Mkdir(plDir, 0o755); err != nil {
		t.Fatal(err)
	}
	testutil.WriteTaggedMP3(t, plDir, "m1.mp3", testutil.Tags{Title: "M1", Artist: "P"})

	m := newTestManager(t, dir)
	if _, err := m.Scan(context.Background()); err != nil {
		t.Fatal(err)
	}

	added := testutil.WriteTaggedMP3(t, plDir, "m2.mp3", testutil.Tags{Title: "M2", Artist: "P"})
	update := m.ProcessChanges(context.Background(), []domain.FileChange{
		{Type: domain.ChangeAdded, Path: added},
	})
	lib := m.ApplyUpdate(update)

	if len(lib.Playlists) != 1 {
		t.Fatalf("playlists = %d, want 1", len(lib.Playlists))
	}
	pl := lib.Playlists[0]
	if len(pl.SongIDs) != 2 || pl.SongIDs[1] != domain.NewSongID(added) {
		t.Errorf("playlist members = %v, want the new song appended", pl.SongIDs)
	}
}
