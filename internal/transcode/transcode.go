// Package transcode produces and caches lower-bitrate AAC variants of
// library songs for constrained clients. Artifacts live on disk under a
// bounded budget with LRU eviction by access time.
package transcode

import (
	"bytes"
	"container/heap"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/picccassso/Ariami-sub001/internal/domain"
	"github.com/picccassso/Ariami-sub001/internal/metrics"
)

// Quality selects the stream variant.
type Quality string

const (
	QualityHigh   Quality = "high" // original file, no encoding
	QualityMedium Quality = "medium"
	QualityLow    Quality = "low"
)

// ParseQuality maps the query-parameter value to a Quality. An empty value
// means high; unknown values are rejected.
func ParseQuality(s string) (Quality, bool) {
	switch Quality(strings.ToLower(s)) {
	case "", QualityHigh:
		return QualityHigh, true
	case QualityMedium:
		return QualityMedium, true
	case QualityLow:
		return QualityLow, true
	}
	return "", false
}

func bitrateFor(q Quality) string {
	if q == QualityLow {
		return "64k"
	}
	return "128k"
}

// DefaultMaxBytes is the on-disk budget for encoded artifacts.
const DefaultMaxBytes int64 = 2 << 30 // 2 GiB

// ArtifactKey derives the cache filename for a (song, quality) pair.
func ArtifactKey(songPath string, q Quality) string {
	sum := md5.Sum([]byte(songPath))
	return hex.EncodeToString(sum[:])[:16] + "-" + string(q) + ".m4a"
}

// ---- eviction min-heap (ordered by access time, oldest first) --------------

type artifactEntry struct {
	path    string
	atime   time.Time
	size    int64
	heapIdx int
}

type artifactMinHeap []*artifactEntry

func (h artifactMinHeap) Len() int           { return len(h) }
func (h artifactMinHeap) Less(i, j int) bool { return h[i].atime.Before(h[j].atime) }
func (h artifactMinHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].heapIdx = i
	h[j].heapIdx = j
}
func (h *artifactMinHeap) Push(x any) {
	e := x.(*artifactEntry)
	e.heapIdx = len(*h)
	*h = append(*h, e)
}
func (h *artifactMinHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.heapIdx = -1
	*h = old[:n-1]
	return e
}

// Transcoder owns the artifact directory. Concurrent requests for the same
// artifact collapse into one encode via a single-flight table; eviction never
// removes an artifact that a response is still reading.
type Transcoder struct {
	baseDir    string
	maxBytes   int64
	ffmpegPath string
	logger     *slog.Logger

	sf singleflight.Group

	mu        sync.Mutex
	totalSize int64
	evictHeap artifactMinHeap
	byPath    map[string]*artifactEntry
	readers   map[string]int

	lookOnce  sync.Once
	available bool
}

// New builds a Transcoder rooted at baseDir. Leftover temp files from a
// previous run are removed and existing artifacts are re-indexed.
func New(baseDir string, maxBytes int64, ffmpegPath string, logger *slog.Logger) *Transcoder {
	if logger == nil {
		logger = slog.Default()
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	_ = os.MkdirAll(baseDir, 0o755)

	t := &Transcoder{
		baseDir:    baseDir,
		maxBytes:   maxBytes,
		ffmpegPath: ffmpegPath,
		logger:     logger,
		byPath:     make(map[string]*artifactEntry),
		readers:    make(map[string]int),
	}
	t.rebuild()
	return t
}

// rebuild re-indexes artifacts left on disk by a previous run and sweeps
// orphaned temp files.
func (t *Transcoder) rebuild() {
	_ = filepath.WalkDir(t.baseDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if strings.HasSuffix(path, ".tmp") {
			_ = os.Remove(path)
			return nil
		}
		if !strings.HasSuffix(path, ".m4a") {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		t.track(path, info.Size(), info.ModTime())
		return nil
	})
	metrics.TranscodeCacheSizeBytes.Set(float64(t.totalSize))
	t.logger.Info("transcode cache indexed",
		slog.Int("artifacts", len(t.byPath)),
		slog.Int64("bytes", t.totalSize),
	)
}

// Variant resolves (songPath, quality) to a readable file path. High quality
// passes the original through. The returned release function must be called
// when the caller is done reading; it unpins the artifact for eviction.
// When the encoder is unavailable, medium and low degrade to the original.
func (t *Transcoder) Variant(ctx context.Context, songPath string, q Quality) (string, func(), error) {
	if q == QualityHigh {
		return songPath, func() {}, nil
	}
	if !t.encoderAvailable() {
		t.logger.Debug("encoder unavailable, serving original",
			slog.String("path", songPath))
		return songPath, func() {}, nil
	}

	artifact := filepath.Join(t.baseDir, ArtifactKey(songPath, q))

	if t.touch(artifact) {
		return artifact, t.acquire(artifact), nil
	}

	_, err, _ := t.sf.Do(artifact, func() (any, error) {
		// A concurrent caller may have finished while we queued.
		if t.touch(artifact) {
			return nil, nil
		}
		return nil, t.encode(ctx, songPath, artifact, q)
	})
	if err != nil {
		return "", nil, err
	}

	// Pin before enforcing the budget so a fresh artifact can never be
	// evicted ahead of its first read.
	release := t.acquire(artifact)
	t.mu.Lock()
	t.evictLocked()
	t.mu.Unlock()
	return artifact, release, nil
}

// encoderAvailable resolves the ffmpeg binary once per process.
func (t *Transcoder) encoderAvailable() bool {
	t.lookOnce.Do(func() {
		path, err := exec.LookPath(t.ffmpegPath)
		if err != nil {
			t.logger.Warn("ffmpeg not found, transcoding disabled",
				slog.String("ffmpeg", t.ffmpegPath))
			return
		}
		t.ffmpegPath = path
		t.available = true
	})
	return t.available
}

func (t *Transcoder) encode(ctx context.Context, songPath, artifact string, q Quality) error {
	metrics.TranscodeStartsTotal.Inc()
	metrics.TranscodeActiveJobs.Inc()
	defer metrics.TranscodeActiveJobs.Dec()

	tmp := artifact + ".tmp"
	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-i", songPath,
		"-vn",
		"-c:a", "aac",
		"-b:a", bitrateFor(q),
		"-movflags", "+faststart",
		"-y",
		tmp,
	}

	t.logger.Info("transcode starting",
		slog.String("input", songPath),
		slog.String("quality", string(q)),
	)

	start := time.Now()
	cmd := exec.CommandContext(ctx, t.ffmpegPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		_ = os.Remove(tmp)
		metrics.TranscodeFailuresTotal.Inc()
		msg := strings.TrimSpace(stderr.String())
		t.logger.Warn("transcode failed",
			slog.String("input", songPath),
			slog.String("error", err.Error()),
			slog.String("stderr", msg),
		)
		return fmt.Errorf("%w: ffmpeg: %s", domain.ErrTranscodeUnavailable, msg)
	}

	info, err := os.Stat(tmp)
	if err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, artifact); err != nil {
		_ = os.Remove(tmp)
		return err
	}

	t.mu.Lock()
	t.track(artifact, info.Size(), time.Now())
	t.mu.Unlock()
	metrics.TranscodeDuration.Observe(time.Since(start).Seconds())

	t.logger.Info("transcode complete",
		slog.String("output", artifact),
		slog.Duration("elapsed", time.Since(start)),
	)
	return nil
}

// track registers an artifact in the index. Callers hold t.mu except during
// construction.
func (t *Transcoder) track(path string, size int64, atime time.Time) {
	if existing, ok := t.byPath[path]; ok {
		t.totalSize += size - existing.size
		existing.size = size
		existing.atime = atime
		if existing.heapIdx >= 0 {
			heap.Fix(&t.evictHeap, existing.heapIdx)
		}
		metrics.TranscodeCacheSizeBytes.Set(float64(t.totalSize))
		return
	}
	e := &artifactEntry{path: path, atime: atime, size: size}
	heap.Push(&t.evictHeap, e)
	t.byPath[path] = e
	t.totalSize += size
	metrics.TranscodeCacheSizeBytes.Set(float64(t.totalSize))
}

// touch refreshes the access time of an indexed artifact. It reports whether
// the artifact exists and is ready to serve.
func (t *Transcoder) touch(path string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.byPath[path]
	if !ok {
		return false
	}
	e.atime = time.Now()
	heap.Fix(&t.evictHeap, e.heapIdx)
	return true
}

// acquire pins an artifact against eviction while a response reads it.
func (t *Transcoder) acquire(path string) func() {
	t.mu.Lock()
	t.readers[path]++
	t.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			t.mu.Lock()
			if t.readers[path] <= 1 {
				delete(t.readers, path)
			} else {
				t.readers[path]--
			}
			t.evictLocked()
			t.mu.Unlock()
		})
	}
}

// evictLocked removes least-recently-accessed artifacts until the budget is
// met, skipping any artifact currently pinned by a reader. Callers hold t.mu.
func (t *Transcoder) evictLocked() {
	var pinned []*artifactEntry
	for t.totalSize > t.maxBytes && t.evictHeap.Len() > 0 {
		e := heap.Pop(&t.evictHeap).(*artifactEntry)
		if t.readers[e.path] > 0 {
			pinned = append(pinned, e)
			continue
		}
		if err := os.Remove(e.path); err != nil && !os.IsNotExist(err) {
			t.logger.Warn("artifact removal failed",
				slog.String("path", e.path), slog.String("error", err.Error()))
		}
		delete(t.byPath, e.path)
		t.totalSize -= e.size
		metrics.TranscodeCacheEvictions.Inc()
	}
	for _, e := range pinned {
		heap.Push(&t.evictHeap, e)
	}
	metrics.TranscodeCacheSizeBytes.Set(float64(t.totalSize))
}

// CacheSize returns the current artifact byte total.
func (t *Transcoder) CacheSize() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.totalSize
}
