package library

import (
	"context"
	"log/slog"

	"golang.org/x/time/rate"

	"github.com/picccassso/Ariami-sub001/internal/domain"
	"github.com/picccassso/Ariami-sub001/internal/metrics"
)

// StartDurationWarmup launches the background pass that resolves durations
// the scan left at zero. While a warm-up is running, further calls are no-ops
// unless force is set, which cancels the running pass and starts over.
// It reports whether a new pass was started.
func (m *Manager) StartDurationWarmup(force bool) bool {
	m.warmupMu.Lock()
	defer m.warmupMu.Unlock()

	if m.warmupCancel != nil {
		if !force {
			return false
		}
		m.warmupCancel()
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.warmupCancel = cancel
	m.warmupGen++
	go m.runWarmup(ctx, cancel, m.warmupGen)
	return true
}

// CancelDurationWarmup stops a running warm-up pass, if any.
func (m *Manager) CancelDurationWarmup() {
	m.warmupMu.Lock()
	defer m.warmupMu.Unlock()
	if m.warmupCancel != nil {
		m.warmupCancel()
	}
}

func (m *Manager) runWarmup(ctx context.Context, cancel context.CancelFunc, gen int) {
	defer func() {
		cancel()
		m.warmupMu.Lock()
		if m.warmupGen == gen {
			m.warmupCancel = nil
		}
		m.warmupMu.Unlock()
	}()

	lib := m.CurrentLibrary()
	if lib == nil {
		m.listeners.notifyWarmupComplete(0)
		return
	}

	var missing []domain.SongMetadata
	for _, s := range lib.AllSongs() {
		if s.DurationSec == 0 {
			missing = append(missing, s)
		}
	}
	if len(missing) == 0 {
		m.listeners.notifyWarmupComplete(0)
		return
	}

	limiter := rate.NewLimiter(m.warmupRate, 1)
	updates := make(map[domain.SongID]int)
	updated := 0

	for _, s := range missing {
		if err := limiter.Wait(ctx); err != nil {
			m.flushWarmup(updates)
			m.logger.Debug("duration warm-up cancelled",
				slog.Int("resolved", updated))
			return
		}

		secs, ok := probeDuration(s.Path)
		if !ok {
			m.durationCache.Put(s.ID, durationUnknown)
			continue
		}
		updates[s.ID] = secs
		updated++
		m.durationCache.Put(s.ID, secs)
		m.cache.UpdateDuration(s.Path, secs)
		metrics.WarmupUpdatesTotal.Inc()

		if len(updates) >= warmupFlushEvery {
			m.flushWarmup(updates)
			updates = make(map[domain.SongID]int)
		}
	}
	m.flushWarmup(updates)

	m.logger.Info("duration warm-up finished",
		slog.Int("candidates", len(missing)),
		slog.Int("resolved", updated),
	)
	m.listeners.notifyWarmupComplete(updated)
}

// flushWarmup folds a batch of resolved durations into the live snapshot and
// persists the metadata cache.
func (m *Manager) flushWarmup(updates map[domain.SongID]int) {
	if len(updates) == 0 {
		return
	}
	m.applyDurations(updates)
	if err := m.cache.Save(); err != nil {
		m.logger.Warn("metadata cache save failed", slog.String("error", err.Error()))
	}
}
