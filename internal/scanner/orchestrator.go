package scanner

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/picccassso/Ariami-sub001/internal/domain"
	"github.com/picccassso/Ariami-sub001/internal/metadata"
	"github.com/picccassso/Ariami-sub001/internal/metrics"
)

// Stage identifies a phase of the scan pipeline. Each stage owns a fixed
// slice of the progress percentage.
type Stage string

const (
	StageCollecting Stage = "collecting" // 0-10%
	StageMetadata   Stage = "metadata"   // 10-70%
	StageDuplicates Stage = "duplicates" // 70-85%
	StageAlbums     Stage = "albums"     // 85-100%
)

// Progress is one scan progress event. Emission is coalescing: consumers may
// drop intermediate events.
type Progress struct {
	Stage      Stage   `json:"stage"`
	Current    int     `json:"current"`
	Total      int     `json:"total"`
	Percentage float64 `json:"percentage"`
	Message    string  `json:"message"`
}

// Result is the outcome of a full scan.
type Result struct {
	Library     *domain.Library
	CacheHits   int
	CacheMisses int
}

// Orchestrator runs the scan pipeline in a dedicated worker goroutine owned
// by the library manager. Metadata extraction is batched through a worker
// pool sized by the detected CPU count.
type Orchestrator struct {
	Extractor  *metadata.Extractor
	Cache      *metadata.Cache
	Logger     *slog.Logger
	BatchSize  int // 0 = derive from runtime.NumCPU()
	OnProgress func(Progress)
}

// BatchSizeForCPUs maps the CPU count to the extraction batch size.
func BatchSizeForCPUs(cpus int) int {
	switch {
	case cpus <= 2:
		return 8
	case cpus <= 4:
		return 15
	case cpus <= 8:
		return 25
	default:
		return 35
	}
}

func (o *Orchestrator) emit(p Progress) {
	if o.OnProgress != nil {
		o.OnProgress(p)
	}
}

func (o *Orchestrator) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

// Scan walks root, extracts metadata (consulting the persistent cache),
// deduplicates, builds albums and playlists, and saves the merged cache.
// Cancellation is honored between batches only.
func (o *Orchestrator) Scan(ctx context.Context, root string) (*Result, error) {
	start := time.Now()
	metrics.ScansTotal.Inc()

	o.emit(Progress{Stage: StageCollecting, Percentage: 0, Message: "collecting files"})
	walk, err := Walk(root)
	if err != nil {
		return nil, err
	}
	total := len(walk.AudioFiles)
	o.emit(Progress{Stage: StageCollecting, Current: total, Total: total, Percentage: 10,
		Message: "collected files"})

	batchSize := o.BatchSize
	if batchSize <= 0 {
		batchSize = BatchSizeForCPUs(runtime.NumCPU())
	}

	var (
		mu        sync.Mutex
		songs     = make([]domain.SongMetadata, 0, total)
		seen      = make(map[string]struct{}, total)
		processed int
		hits      int
		misses    int
	)

	for batchStart := 0; batchStart < total; batchStart += batchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := batchStart + batchSize
		if end > total {
			end = total
		}

		g, _ := errgroup.WithContext(ctx)
		g.SetLimit(batchSize)
		for _, path := range walk.AudioFiles[batchStart:end] {
			g.Go(func() error {
				song, hit, ok := o.extractOne(path)
				mu.Lock()
				defer mu.Unlock()
				processed++
				if ok {
					songs = append(songs, song)
					seen[path] = struct{}{}
					if hit {
						hits++
					} else {
						misses++
					}
				}
				o.emit(Progress{
					Stage:      StageMetadata,
					Current:    processed,
					Total:      total,
					Percentage: 10 + 60*float64(processed)/float64(max(total, 1)),
					Message:    "extracting metadata",
				})
				return nil
			})
		}
		_ = g.Wait()
	}

	o.emit(Progress{Stage: StageDuplicates, Current: total, Total: total, Percentage: 70,
		Message: "detecting duplicates"})
	deduped := Dedupe(songs)

	o.emit(Progress{Stage: StageAlbums, Current: total, Total: total, Percentage: 85,
		Message: "building albums"})
	built := BuildAlbums(deduped)

	lib := domain.NewLibrary(time.Now())
	lib.Albums = built.Albums
	lib.Standalone = built.Standalone
	lib.Playlists = buildPlaylists(walk, deduped)

	// Merge the cache down to the files seen this scan so removed files
	// drop out, then persist.
	o.pruneCache(seen)
	if err := o.Cache.Save(); err != nil {
		o.logger().Warn("metadata cache save failed", slog.String("error", err.Error()))
	}

	o.emit(Progress{Stage: StageAlbums, Current: total, Total: total, Percentage: 100,
		Message: "scan complete"})

	metrics.ScanDuration.Observe(time.Since(start).Seconds())
	metrics.LibrarySongs.Set(float64(lib.SongCount()))
	metrics.LibraryAlbums.Set(float64(len(lib.Albums)))
	o.logger().Info("scan finished",
		slog.Int("files", total),
		slog.Int("albums", len(lib.Albums)),
		slog.Int("standalone", len(lib.Standalone)),
		slog.Int("playlists", len(lib.Playlists)),
		slog.Int("cacheHits", hits),
		slog.Int("cacheMisses", misses),
		slog.Int64("durationMs", time.Since(start).Milliseconds()),
	)

	return &Result{Library: lib, CacheHits: hits, CacheMisses: misses}, nil
}

// extractOne resolves one file through the cache or the extractor.
// hit reports a cache hit; ok is false when the file had to be skipped.
func (o *Orchestrator) extractOne(path string) (song domain.SongMetadata, hit, ok bool) {
	fi, err := os.Stat(path)
	if err != nil {
		o.logger().Warn("stat failed, skipping file",
			slog.String("path", path), slog.String("error", err.Error()))
		return domain.SongMetadata{}, false, false
	}
	mtimeMs := fi.ModTime().UnixMilli()

	if cached, fresh := o.Cache.Lookup(path, mtimeMs, fi.Size()); fresh {
		metrics.MetadataCacheHits.Inc()
		return cached, true, true
	}

	song, err = o.Extractor.Extract(path, false)
	if err != nil {
		metrics.ExtractFailuresTotal.Inc()
		o.logger().Warn("extraction failed, skipping file",
			slog.String("path", path), slog.String("error", err.Error()))
		return domain.SongMetadata{}, false, false
	}
	metrics.MetadataCacheMisses.Inc()

	// Artwork bytes are served lazily by the library manager; the catalogue
	// and the cache only keep the flag.
	song.Artwork = nil

	if err := o.Cache.Update(path, mtimeMs, fi.Size(), song); err != nil {
		o.logger().Warn("cache update failed", slog.String("path", path),
			slog.String("error", err.Error()))
	}
	return song, false, true
}

func (o *Orchestrator) pruneCache(seen map[string]struct{}) {
	entries := o.Cache.Snapshot()
	for path := range entries {
		if _, ok := seen[path]; !ok {
			delete(entries, path)
		}
	}
	o.Cache.ReplaceAll(entries)
}

// buildPlaylists maps playlist folders to the song IDs that survived
// deduplication, keeping discovery order.
func buildPlaylists(walk WalkResult, songs []domain.SongMetadata) []domain.FolderPlaylist {
	surviving := make(map[domain.SongID]struct{}, len(songs))
	for _, s := range songs {
		surviving[s.ID] = struct{}{}
	}

	playlists := make([]domain.FolderPlaylist, 0, len(walk.PlaylistDirs))
	for _, dir := range walk.PlaylistDirs {
		pl := domain.FolderPlaylist{
			ID:   domain.NewPlaylistID(dir),
			Name: domain.PlaylistDisplayName(filepath.Base(dir)),
			Path: dir,
		}
		for _, path := range walk.PlaylistFiles[dir] {
			id := domain.NewSongID(path)
			if _, ok := surviving[id]; ok {
				pl.SongIDs = append(pl.SongIDs, id)
			}
		}
		playlists = append(playlists, pl)
	}
	return playlists
}
