package downloads

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/picccassso/Ariami-sub001/internal/metrics"
)

const (
	// MaxRetries bounds automatic retries on transport errors.
	MaxRetries = 3
	// DefaultRetryDelay is the wait between automatic retries.
	DefaultRetryDelay = 5 * time.Second

	copyBufferSize = 32 << 10
)

// Progress is one emission on the high-frequency transfer stream.
type Progress struct {
	TaskID   string  `json:"taskId"`
	Fraction float64 `json:"fraction"`
	Bytes    int64   `json:"bytes"`
	Total    int64   `json:"total"`
}

const (
	stopNone = iota
	stopPause
	stopCancel
)

// Scheduler drives the download queue with at most one HTTP transfer in
// flight. Every queue transition is persisted through the store and published
// on the queue-change stream; byte progress goes to a separate stream that
// may drop events when the consumer lags.
type Scheduler struct {
	client     *http.Client
	store      *Store
	logger     *slog.Logger
	retryDelay time.Duration

	mu           sync.Mutex
	tasks        []*Task
	activeID     string
	cancelActive context.CancelFunc
	stopReason   int

	kick       chan struct{}
	progressCh chan Progress
	queueCh    chan []Task
}

// NewScheduler builds a scheduler over the given store. Client may be nil.
func NewScheduler(store *Store, client *http.Client, logger *slog.Logger) *Scheduler {
	if client == nil {
		client = &http.Client{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		client:     client,
		store:      store,
		logger:     logger,
		retryDelay: DefaultRetryDelay,
		kick:       make(chan struct{}, 1),
		progressCh: make(chan Progress, 64),
		queueCh:    make(chan []Task, 16),
	}
}

// Start loads the persisted queue and launches the worker. The worker stops
// when ctx is cancelled; the in-flight transfer is re-queued as pending.
func (s *Scheduler) Start(ctx context.Context) {
	loaded := s.store.Load()
	s.mu.Lock()
	s.tasks = make([]*Task, len(loaded))
	for i := range loaded {
		t := loaded[i]
		s.tasks[i] = &t
	}
	s.mu.Unlock()

	go s.loop(ctx)
	s.wake()
}

// ProgressStream delivers transfer progress. Slow consumers lose events.
func (s *Scheduler) ProgressStream() <-chan Progress { return s.progressCh }

// QueueChanges delivers a queue snapshot after every state transition.
func (s *Scheduler) QueueChanges() <-chan []Task { return s.queueCh }

// Tasks returns a snapshot of the queue in FIFO order.
func (s *Scheduler) Tasks() []Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Enqueue adds a pending task. A task with the same ID that is still live is
// left alone; a terminal one is replaced by the fresh task.
func (s *Scheduler) Enqueue(task Task) {
	s.mu.Lock()
	s.enqueueLocked(task)
	s.publishLocked()
	s.mu.Unlock()
	s.wake()
}

// EnqueueBatch adds several tasks with a single queue emission.
func (s *Scheduler) EnqueueBatch(tasks []Task) {
	s.mu.Lock()
	for _, t := range tasks {
		s.enqueueLocked(t)
	}
	s.publishLocked()
	s.mu.Unlock()
	s.wake()
}

func (s *Scheduler) enqueueLocked(task Task) {
	task.Status = StatusPending
	for i, existing := range s.tasks {
		if existing.ID != task.ID {
			continue
		}
		if !existing.Status.Terminal() {
			return
		}
		t := task
		s.tasks[i] = &t
		return
	}
	t := task
	s.tasks = append(s.tasks, &t)
}

// Pause stops the in-flight transfer, aborting it and clearing its transient
// progress. Only a downloading task can pause; pending tasks stay queued.
func (s *Scheduler) Pause(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id == s.activeID && s.cancelActive != nil {
		s.stopReason = stopPause
		s.cancelActive()
		return // the worker records the transition
	}
	t := s.findLocked(id)
	if t == nil || !t.Status.CanTransition(StatusPaused) {
		return
	}
	t.Status = StatusPaused
	s.publishLocked()
}

// Resume re-queues a paused task.
func (s *Scheduler) Resume(id string) {
	s.mu.Lock()
	t := s.findLocked(id)
	if t == nil || t.Status != StatusPaused {
		s.mu.Unlock()
		return
	}
	t.Status = StatusPending
	s.publishLocked()
	s.mu.Unlock()
	s.wake()
}

// Retry re-queues a failed task with a fresh retry budget.
func (s *Scheduler) Retry(id string) {
	s.mu.Lock()
	t := s.findLocked(id)
	if t == nil || t.Status != StatusFailed {
		s.mu.Unlock()
		return
	}
	t.Status = StatusPending
	t.RetryCount = 0
	t.Error = ""
	s.publishLocked()
	s.mu.Unlock()
	s.wake()
}

// Cancel aborts a task. The in-flight transfer's partial file is removed.
func (s *Scheduler) Cancel(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id == s.activeID && s.cancelActive != nil {
		s.stopReason = stopCancel
		s.cancelActive()
		return
	}
	t := s.findLocked(id)
	if t == nil || !t.Status.CanTransition(StatusCancelled) {
		return
	}
	t.Status = StatusCancelled
	t.BytesReceived = 0
	s.publishLocked()
}

// ClearAll cancels the in-flight transfer and empties the queue.
func (s *Scheduler) ClearAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelActive != nil {
		s.stopReason = stopCancel
		s.cancelActive()
	}
	s.tasks = nil
	s.publishLocked()
}

// DeleteAlbum removes completed downloads for one album, or for all
// standalone songs when albumID is empty, deleting their files.
func (s *Scheduler) DeleteAlbum(albumID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.tasks[:0]
	for _, t := range s.tasks {
		if t.Status == StatusCompleted && t.AlbumID == albumID {
			if err := os.Remove(t.Dest); err != nil && !os.IsNotExist(err) {
				s.logger.Warn("downloaded file removal failed",
					slog.String("path", t.Dest), slog.String("error", err.Error()))
			}
			continue
		}
		kept = append(kept, t)
	}
	s.tasks = kept
	s.publishLocked()
}

func (s *Scheduler) findLocked(id string) *Task {
	for _, t := range s.tasks {
		if t.ID == id {
			return t
		}
	}
	return nil
}

func (s *Scheduler) snapshotLocked() []Task {
	out := make([]Task, len(s.tasks))
	for i, t := range s.tasks {
		out[i] = *t
	}
	return out
}

// publishLocked persists the queue and emits a queue-change event. Callers
// hold s.mu.
func (s *Scheduler) publishLocked() {
	snapshot := s.snapshotLocked()
	if err := s.store.Save(snapshot); err != nil {
		s.logger.Warn("download queue save failed", slog.String("error", err.Error()))
	}
	select {
	case s.queueCh <- snapshot:
	default:
	}
}

func (s *Scheduler) wake() {
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

func (s *Scheduler) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.kick:
		}
		for {
			task, taskCtx := s.nextPending(ctx)
			if task == nil {
				break
			}
			s.run(ctx, taskCtx, task)
			if ctx.Err() != nil {
				return
			}
		}
	}
}

// nextPending claims the first pending task, transitioning it to
// Downloading. Returns nil when the queue has no pending work.
func (s *Scheduler) nextPending(parent context.Context) (*Task, context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.activeID != "" {
		return nil, nil
	}
	for _, t := range s.tasks {
		if t.Status != StatusPending {
			continue
		}
		t.Status = StatusDownloading
		taskCtx, cancel := context.WithCancel(parent)
		s.activeID = t.ID
		s.cancelActive = cancel
		s.stopReason = stopNone
		s.publishLocked()
		return t, taskCtx
	}
	return nil, nil
}

// run drives one task to a terminal-or-parked state, retrying transport
// errors up to MaxRetries with a fixed delay.
func (s *Scheduler) run(parent, taskCtx context.Context, task *Task) {
	for {
		err := s.download(taskCtx, task)
		if err == nil {
			s.finish(task, func(t *Task) {
				t.Status = StatusCompleted
				t.CompletedAt = time.Now()
				// Trust the bytes on disk over the advertised length.
				if info, statErr := os.Stat(t.Dest); statErr == nil {
					t.TotalBytes = info.Size()
					t.BytesReceived = info.Size()
				}
			})
			metrics.DownloadsCompletedTotal.Inc()
			s.logger.Info("download complete",
				slog.String("task", task.ID), slog.String("dest", task.Dest))
			return
		}

		if stopped := s.handleStop(task); stopped {
			return
		}
		if parent.Err() != nil {
			// Shutdown: park the task for the next run.
			s.finish(task, func(t *Task) {
				t.Status = StatusPending
				t.BytesReceived = 0
			})
			return
		}

		s.mu.Lock()
		retries := task.RetryCount
		s.mu.Unlock()
		if retries >= MaxRetries {
			s.finish(task, func(t *Task) {
				t.Status = StatusFailed
				t.Error = err.Error()
				t.BytesReceived = 0
			})
			metrics.DownloadsFailedTotal.Inc()
			s.logger.Warn("download failed",
				slog.String("task", task.ID), slog.String("error", err.Error()))
			return
		}

		s.mu.Lock()
		task.RetryCount++
		s.publishLocked()
		s.mu.Unlock()
		metrics.DownloadRetriesTotal.Inc()
		s.logger.Info("download retrying",
			slog.String("task", task.ID),
			slog.Int("attempt", task.RetryCount),
			slog.String("error", err.Error()),
		)

		select {
		case <-taskCtx.Done():
			if stopped := s.handleStop(task); stopped {
				return
			}
			s.finish(task, func(t *Task) {
				t.Status = StatusPending
				t.BytesReceived = 0
			})
			return
		case <-time.After(s.retryDelay):
		}
	}
}

// handleStop resolves a pause or cancel request that aborted the transfer.
func (s *Scheduler) handleStop(task *Task) bool {
	s.mu.Lock()
	reason := s.stopReason
	s.mu.Unlock()
	switch reason {
	case stopPause:
		s.finish(task, func(t *Task) {
			t.Status = StatusPaused
			t.BytesReceived = 0
		})
		return true
	case stopCancel:
		_ = os.Remove(task.Dest + ".part")
		s.finish(task, func(t *Task) {
			t.Status = StatusCancelled
			t.BytesReceived = 0
		})
		return true
	}
	return false
}

// finish applies a terminal-or-parked transition and releases the active
// slot.
func (s *Scheduler) finish(task *Task, mutate func(*Task)) {
	s.mu.Lock()
	mutate(task)
	s.activeID = ""
	s.cancelActive = nil
	s.stopReason = stopNone
	s.publishLocked()
	s.mu.Unlock()
}

// download transfers the task's URL to its destination through a temp file.
func (s *Scheduler) download(ctx context.Context, task *Task) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, task.URL, nil)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	total := resp.ContentLength
	s.mu.Lock()
	task.TotalBytes = total
	task.BytesReceived = 0
	s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(task.Dest), 0o755); err != nil {
		return err
	}
	part := task.Dest + ".part"
	out, err := os.Create(part)
	if err != nil {
		return err
	}

	buf := make([]byte, copyBufferSize)
	var received int64
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, writeErr := out.Write(buf[:n]); writeErr != nil {
				out.Close()
				_ = os.Remove(part)
				return writeErr
			}
			received += int64(n)
			s.emitProgress(task, received, total)
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			out.Close()
			_ = os.Remove(part)
			return readErr
		}
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(part)
		return err
	}
	return os.Rename(part, task.Dest)
}

func (s *Scheduler) emitProgress(task *Task, received, total int64) {
	s.mu.Lock()
	task.BytesReceived = received
	s.mu.Unlock()

	fraction := 0.0
	if total > 0 {
		fraction = float64(received) / float64(total)
	}
	select {
	case s.progressCh <- Progress{
		TaskID:   task.ID,
		Fraction: fraction,
		Bytes:    received,
		Total:    total,
	}:
	default:
	}
}
