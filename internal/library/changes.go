package library

import (
	"context"
	"log/slog"
	"os"
	"runtime"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/picccassso/Ariami-sub001/internal/domain"
	"github.com/picccassso/Ariami-sub001/internal/scanner"
)

// ProcessChanges turns a batch of file-system events into a LibraryUpdate
// against the current snapshot. Renames are normalized to removed(old) +
// added(new); extraction failures drop the entry from the delta with a log
// line. The result's ID sets are pairwise disjoint.
func (m *Manager) ProcessChanges(ctx context.Context, changes []domain.FileChange) domain.LibraryUpdate {
	update := domain.LibraryUpdate{
		Timestamp: time.Now(),
		Songs:     make(map[domain.SongID]domain.SongMetadata),
	}
	lib := m.CurrentLibrary()
	if lib == nil {
		lib = domain.NewLibrary(time.Now())
	}

	// Reverse index so per-change album lookups are O(1).
	albumByPath := make(map[string]domain.AlbumID, lib.SongCount())
	inLibrary := make(map[string]domain.SongID, lib.SongCount())
	for id, a := range lib.Albums {
		for _, s := range a.Songs {
			albumByPath[s.Path] = id
			inLibrary[s.Path] = s.ID
		}
	}
	for _, s := range lib.Standalone {
		inLibrary[s.Path] = s.ID
	}

	// Coalesce by path, last event wins. Renames split into two entries.
	type verdict int
	const (
		keepNone verdict = iota
		keepAdded
		keepRemoved
		keepModified
	)
	final := make(map[string]verdict)
	order := make([]string, 0, len(changes))
	record := func(path string, v verdict) {
		if _, seen := final[path]; !seen {
			order = append(order, path)
		}
		final[path] = v
	}
	for _, ch := range changes {
		if !scanner.IsAudioFile(ch.Path) && !scanner.IsAudioFile(ch.OldPath) {
			continue
		}
		switch ch.Type {
		case domain.ChangeRenamed:
			if scanner.IsAudioFile(ch.OldPath) {
				record(ch.OldPath, keepRemoved)
			}
			if scanner.IsAudioFile(ch.Path) {
				record(ch.Path, keepAdded)
			}
		case domain.ChangeRemoved:
			record(ch.Path, keepRemoved)
		case domain.ChangeAdded, domain.ChangeModified:
			if _, known := inLibrary[ch.Path]; known {
				record(ch.Path, keepModified)
			} else {
				record(ch.Path, keepAdded)
			}
		}
	}

	affected := make(map[domain.AlbumID]struct{})
	touchAlbum := func(path string) {
		if id, ok := albumByPath[path]; ok {
			affected[id] = struct{}{}
		}
	}

	var (
		mu      sync.Mutex
		toFetch []string
	)
	for _, path := range order {
		switch final[path] {
		case keepRemoved:
			id, known := inLibrary[path]
			if !known {
				continue
			}
			update.Removed = append(update.Removed, id)
			touchAlbum(path)
			m.cache.Remove(path)
		case keepAdded, keepModified:
			toFetch = append(toFetch, path)
		}
	}

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(scanner.BatchSizeForCPUs(runtime.NumCPU()))
	for _, path := range toFetch {
		g.Go(func() error {
			song, err := m.extractor.Extract(path, false)
			if err != nil {
				m.logger.Warn("change extraction failed, dropping entry",
					slog.String("path", path), slog.String("error", err.Error()))
				return nil
			}
			song.Artwork = nil
			m.cache.Update(path, song.ModTimeMs, song.SizeBytes, song)

			mu.Lock()
			defer mu.Unlock()
			update.Songs[song.ID] = song
			if final[path] == keepModified {
				update.Modified = append(update.Modified, song.ID)
			} else {
				update.Added = append(update.Added, song.ID)
			}
			touchAlbum(path)
			affected[domain.NewAlbumID(domain.AlbumKey(song.Album, song.AlbumArtist, song.Artist))] = struct{}{}
			return nil
		})
	}
	_ = g.Wait()

	update.Albums = affectedAlbums(affected, lib, update)
	return update
}

// affectedAlbums filters the candidate set down to albums that exist in the
// current snapshot or will exist once the update is applied. A novel tag on
// a single added song builds no album (the song lands standalone), so its
// derived ID must not leak into the delta.
func affectedAlbums(candidates map[domain.AlbumID]struct{}, old *domain.Library, update domain.LibraryUpdate) []domain.AlbumID {
	built := scanner.BuildAlbums(scanner.Dedupe(survivingSongs(old, update)))
	out := make([]domain.AlbumID, 0, len(candidates))
	for id := range candidates {
		_, pre := old.Albums[id]
		_, post := built.Albums[id]
		if pre || post {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// survivingSongs assembles the post-update song set: the current songs minus
// removed/modified/replaced IDs, plus the delta's metadata in path order.
func survivingSongs(old *domain.Library, update domain.LibraryUpdate) []domain.SongMetadata {
	drop := make(map[domain.SongID]struct{}, len(update.Removed)+len(update.Modified))
	for _, id := range update.Removed {
		drop[id] = struct{}{}
	}
	for _, id := range update.Modified {
		drop[id] = struct{}{}
	}

	songs := make([]domain.SongMetadata, 0, old.SongCount()+len(update.Songs))
	for _, s := range old.AllSongs() {
		if _, gone := drop[s.ID]; gone {
			continue
		}
		if _, replaced := update.Songs[s.ID]; replaced {
			continue
		}
		songs = append(songs, s)
	}
	incoming := make([]domain.SongMetadata, 0, len(update.Songs))
	for _, s := range update.Songs {
		incoming = append(incoming, s)
	}
	sort.Slice(incoming, func(i, j int) bool { return incoming[i].Path < incoming[j].Path })
	return append(songs, incoming...)
}

// ApplyUpdate rebuilds the snapshot from the current song set plus the delta:
// removed and modified IDs drop out, delta metadata comes in, then the usual
// dedup and album-build pipeline runs. Playlist membership is recomputed from
// the surviving song paths. The metadata cache is persisted afterwards.
func (m *Manager) ApplyUpdate(update domain.LibraryUpdate) *domain.Library {
	if update.Empty() {
		return m.CurrentLibrary()
	}

	old := m.CurrentLibrary()
	if old == nil {
		old = domain.NewLibrary(time.Now())
	}

	deduped := scanner.Dedupe(survivingSongs(old, update))
	built := scanner.BuildAlbums(deduped)

	next := domain.NewLibrary(time.Now())
	next.Albums = built.Albums
	next.Standalone = built.Standalone
	next.Playlists = rebuildPlaylists(old.Playlists, deduped)

	m.mu.Lock()
	m.lib = next
	m.mu.Unlock()

	m.artworkCache.Purge()
	m.songArtworkCache.Purge()

	// Replaced or deleted audio must not keep serving a stale lazily-probed
	// duration; song IDs are path-derived, so the entries survive otherwise.
	for _, id := range update.Removed {
		m.durationCache.Remove(id)
	}
	for _, id := range update.Modified {
		m.durationCache.Remove(id)
	}

	if err := m.cache.Save(); err != nil {
		m.logger.Warn("metadata cache save failed", slog.String("error", err.Error()))
	}
	m.listeners.notifyScanComplete()
	return next
}

// rebuildPlaylists recomputes folder-playlist membership against the
// surviving songs: existing members keep their order, songs newly under a
// playlist folder are appended in path order.
func rebuildPlaylists(playlists []domain.FolderPlaylist, songs []domain.SongMetadata) []domain.FolderPlaylist {
	byID := make(map[domain.SongID]domain.SongMetadata, len(songs))
	for _, s := range songs {
		byID[s.ID] = s
	}

	out := make([]domain.FolderPlaylist, 0, len(playlists))
	for _, pl := range playlists {
		next := domain.FolderPlaylist{ID: pl.ID, Name: pl.Name, Path: pl.Path}
		member := make(map[domain.SongID]struct{}, len(pl.SongIDs))
		for _, id := range pl.SongIDs {
			if _, alive := byID[id]; alive {
				next.SongIDs = append(next.SongIDs, id)
				member[id] = struct{}{}
			}
		}

		var added []domain.SongMetadata
		for id, s := range byID {
			if _, already := member[id]; already {
				continue
			}
			if underDir(s.Path, pl.Path) {
				added = append(added, s)
			}
		}
		sort.Slice(added, func(i, j int) bool { return added[i].Path < added[j].Path })
		for _, s := range added {
			next.SongIDs = append(next.SongIDs, s.ID)
		}
		out = append(out, next)
	}
	return out
}

func underDir(path, dir string) bool {
	if len(path) <= len(dir) {
		return false
	}
	return path[:len(dir)] == dir && path[len(dir)] == os.PathSeparator
}
