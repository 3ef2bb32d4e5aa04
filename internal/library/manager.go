// Package library owns the in-memory catalogue: scan lifecycle, lazy
// artwork/duration resolution with bounded caches, API snapshots, and the
// listener fan-out that the HTTP and websocket layers subscribe to.
package library

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/picccassso/Ariami-sub001/internal/domain"
	"github.com/picccassso/Ariami-sub001/internal/metadata"
	"github.com/picccassso/Ariami-sub001/internal/mpeg"
	"github.com/picccassso/Ariami-sub001/internal/scanner"
)

const (
	artworkCacheSize     = 50
	songArtworkCacheSize = 100
	durationCacheSize    = 2000

	// durationUnknown marks a probed file whose duration could not be
	// determined, so broken files are not probed again.
	durationUnknown = -1

	// defaultWarmupRate paces the background duration warm-up so it stays
	// a low-priority task next to request handling.
	defaultWarmupRate = rate.Limit(50)

	// warmupFlushEvery controls how often warm-up results are folded into
	// the live snapshot and the persistent cache.
	warmupFlushEvery = 25
)

// Config carries the manager's collaborators and tunables.
type Config struct {
	MusicDir   string
	Cache      *metadata.Cache
	Extractor  *metadata.Extractor
	Logger     *slog.Logger
	BatchSize  int // 0 = derive from CPU count
	WarmupRate rate.Limit
	OnProgress func(scanner.Progress)
}

// Manager is the single in-process owner of the catalogue. Snapshots are
// immutable; every mutation builds a new Library and swaps the pointer under
// the lock, so readers always see a consistent view.
type Manager struct {
	extractor  *metadata.Extractor
	cache      *metadata.Cache
	logger     *slog.Logger
	batchSize  int
	warmupRate rate.Limit
	onProgress func(scanner.Progress)

	mu       sync.RWMutex
	musicDir string
	lib      *domain.Library
	lastScan time.Time

	scanning atomic.Bool

	artworkCache     *lruCache[domain.AlbumID, []byte]
	songArtworkCache *lruCache[domain.SongID, []byte]
	durationCache    *lruCache[domain.SongID, int]

	listeners listenerTable

	warmupMu     sync.Mutex
	warmupCancel context.CancelFunc
	warmupGen    int
}

func NewManager(cfg Config) *Manager {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	extractor := cfg.Extractor
	if extractor == nil {
		extractor = metadata.NewExtractor(logger)
	}
	warmupRate := cfg.WarmupRate
	if warmupRate <= 0 {
		warmupRate = defaultWarmupRate
	}
	return &Manager{
		extractor:        extractor,
		cache:            cfg.Cache,
		logger:           logger,
		batchSize:        cfg.BatchSize,
		warmupRate:       warmupRate,
		onProgress:       cfg.OnProgress,
		musicDir:         cfg.MusicDir,
		artworkCache:     newLRUCache[domain.AlbumID, []byte](artworkCacheSize),
		songArtworkCache: newLRUCache[domain.SongID, []byte](songArtworkCacheSize),
		durationCache:    newLRUCache[domain.SongID, int](durationCacheSize),
	}
}

// SetMusicFolder points the manager at a new root. The current snapshot stays
// in place until the next scan.
func (m *Manager) SetMusicFolder(dir string) {
	m.mu.Lock()
	m.musicDir = dir
	m.mu.Unlock()
}

// MusicFolder returns the configured root, empty when setup has not run.
func (m *Manager) MusicFolder() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.musicDir
}

// Scanning reports whether a scan is currently in flight.
func (m *Manager) Scanning() bool { return m.scanning.Load() }

// LastScan returns the completion time of the most recent successful scan.
func (m *Manager) LastScan() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastScan
}

// RegisterListener subscribes l to catalogue events.
func (m *Manager) RegisterListener(l Listener) ListenerHandle {
	return m.listeners.add(l)
}

// UnregisterListener removes a previous registration. Unknown handles are
// ignored.
func (m *Manager) UnregisterListener(h ListenerHandle) {
	m.listeners.remove(h)
}

// Scan runs the full pipeline against the configured root and swaps the new
// snapshot in. A concurrent call is a no-op: it returns the current snapshot
// together with ErrScanBusy. On success the duration warm-up is kicked off in
// the background.
func (m *Manager) Scan(ctx context.Context) (*domain.Library, error) {
	root := m.MusicFolder()
	if root == "" {
		return nil, domain.ErrNotConfigured
	}
	if !m.scanning.CompareAndSwap(false, true) {
		return m.CurrentLibrary(), domain.ErrScanBusy
	}
	defer m.scanning.Store(false)

	o := &scanner.Orchestrator{
		Extractor:  m.extractor,
		Cache:      m.cache,
		Logger:     m.logger,
		BatchSize:  m.batchSize,
		OnProgress: m.onProgress,
	}
	result, err := o.Scan(ctx, root)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.lib = result.Library
	m.lastScan = time.Now()
	m.mu.Unlock()

	m.listeners.notifyScanComplete()
	m.StartDurationWarmup(false)
	return result.Library, nil
}

// CurrentLibrary returns the live snapshot, or nil before the first scan.
func (m *Manager) CurrentLibrary() *domain.Library {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lib
}

// SongPath resolves a song ID to its absolute file path.
func (m *Manager) SongPath(id domain.SongID) (string, error) {
	lib := m.CurrentLibrary()
	if lib == nil {
		return "", domain.ErrNotFound
	}
	song, ok := lib.FindSong(id)
	if !ok {
		return "", domain.ErrNotFound
	}
	return song.Path, nil
}

// FindSongByPath looks a song up by its absolute file path.
func (m *Manager) FindSongByPath(path string) (domain.SongMetadata, bool) {
	lib := m.CurrentLibrary()
	if lib == nil {
		return domain.SongMetadata{}, false
	}
	return lib.FindSongByPath(path)
}

// AlbumArtwork returns the cover bytes for an album, probing the album's
// files lazily on first request. A miss (no song carries a picture) is cached
// too, so broken albums are not re-probed.
func (m *Manager) AlbumArtwork(id domain.AlbumID) ([]byte, error) {
	if art, ok := m.artworkCache.Get(id); ok {
		if art == nil {
			return nil, domain.ErrNotFound
		}
		return art, nil
	}

	lib := m.CurrentLibrary()
	if lib == nil {
		return nil, domain.ErrNotFound
	}
	album, ok := lib.Albums[id]
	if !ok {
		return nil, domain.ErrNotFound
	}

	for _, s := range album.Songs {
		art, err := m.extractor.Artwork(s.Path)
		if err != nil {
			m.logger.Debug("artwork probe failed",
				slog.String("path", s.Path), slog.String("error", err.Error()))
			continue
		}
		if len(art) > 0 {
			m.artworkCache.Put(id, art)
			return art, nil
		}
	}
	m.artworkCache.Put(id, nil)
	return nil, domain.ErrNotFound
}

// SongArtwork returns the embedded picture for a single song, lazily
// extracted and negatively cached like AlbumArtwork.
func (m *Manager) SongArtwork(id domain.SongID) ([]byte, error) {
	if art, ok := m.songArtworkCache.Get(id); ok {
		if art == nil {
			return nil, domain.ErrNotFound
		}
		return art, nil
	}

	path, err := m.SongPath(id)
	if err != nil {
		return nil, err
	}
	art, err := m.extractor.Artwork(path)
	if err != nil || len(art) == 0 {
		m.songArtworkCache.Put(id, nil)
		return nil, domain.ErrNotFound
	}
	m.songArtworkCache.Put(id, art)
	return art, nil
}

// SongDuration returns the duration for a song in seconds, probing the file
// on first request when the scan left it unknown. Probe failures are cached
// as unknown.
func (m *Manager) SongDuration(id domain.SongID) (int, bool) {
	lib := m.CurrentLibrary()
	if lib == nil {
		return 0, false
	}
	song, ok := lib.FindSong(id)
	if !ok {
		return 0, false
	}
	if song.DurationSec > 0 {
		return song.DurationSec, true
	}

	if secs, ok := m.durationCache.Get(id); ok {
		if secs > 0 {
			return secs, true
		}
		return 0, false
	}

	secs, ok := probeDuration(song.Path)
	if !ok {
		m.durationCache.Put(id, durationUnknown)
		return 0, false
	}
	m.durationCache.Put(id, secs)
	m.cache.UpdateDuration(song.Path, secs)
	m.applyDurations(map[domain.SongID]int{id: secs})
	return secs, true
}

// probeDuration re-reads a file's duration. Only MPEG audio supports a
// frame-level probe; other containers stay unknown.
func probeDuration(path string) (int, bool) {
	if !strings.EqualFold(filepath.Ext(path), ".mp3") {
		return 0, false
	}
	return mpeg.Duration(path)
}

// applyDurations folds resolved durations into a fresh snapshot. Albums and
// standalone slices are copied; playlists are shared since membership does
// not change.
func (m *Manager) applyDurations(updates map[domain.SongID]int) {
	if len(updates) == 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	old := m.lib
	if old == nil {
		return
	}

	next := &domain.Library{
		Albums:      make(map[domain.AlbumID]*domain.Album, len(old.Albums)),
		Standalone:  append([]domain.SongMetadata(nil), old.Standalone...),
		Playlists:   old.Playlists,
		GeneratedAt: old.GeneratedAt,
	}
	for id, a := range old.Albums {
		clone := *a
		clone.Songs = append([]domain.SongMetadata(nil), a.Songs...)
		for i := range clone.Songs {
			if secs, ok := updates[clone.Songs[i].ID]; ok {
				clone.Songs[i].DurationSec = secs
			}
		}
		next.Albums[id] = &clone
	}
	for i := range next.Standalone {
		if secs, ok := updates[next.Standalone[i].ID]; ok {
			next.Standalone[i].DurationSec = secs
		}
	}
	m.lib = next
}

// Clear drops the snapshot, the lazy caches, and the persistent metadata
// cache.
func (m *Manager) Clear() {
	m.mu.Lock()
	m.lib = nil
	m.mu.Unlock()

	m.artworkCache.Purge()
	m.songArtworkCache.Purge()
	m.durationCache.Purge()

	m.cache.Clear()
	if err := m.cache.Save(); err != nil {
		m.logger.Warn("metadata cache save failed", slog.String("error", err.Error()))
	}
}
