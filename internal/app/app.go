package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	apihttp "github.com/picccassso/Ariami-sub001/internal/api/http"
	"github.com/picccassso/Ariami-sub001/internal/domain"
	"github.com/picccassso/Ariami-sub001/internal/library"
	"github.com/picccassso/Ariami-sub001/internal/metadata"
	"github.com/picccassso/Ariami-sub001/internal/scanner"
	"github.com/picccassso/Ariami-sub001/internal/transcode"
	"github.com/picccassso/Ariami-sub001/internal/watch"
)

// App wires the music-server core into a running process: settings store,
// library manager, transcoder, folder watcher and the HTTP surface.
type App struct {
	cfg      Config
	layout   Layout
	logger   *slog.Logger
	settings *SettingsStore

	Manager    *library.Manager
	Transcoder *transcode.Transcoder
	Server     *apihttp.Server

	watcher *watch.Watcher
}

// New assembles the server from cfg. The music folder comes from the
// ARIAMI_MUSIC_DIR override or the stored owner settings; when neither is
// set the server starts unconfigured and waits for setup.
func New(cfg Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	layout, err := NewLayout(cfg.ConfigDir, cfg.DataDir)
	if err != nil {
		return nil, err
	}
	if err := layout.Ensure(); err != nil {
		return nil, err
	}

	a := &App{
		cfg:      cfg,
		layout:   layout,
		logger:   logger,
		settings: NewSettingsStore(layout.SettingsPath(), logger),
	}

	musicDir := cfg.MusicDir
	if musicDir == "" {
		musicDir = a.settings.Load().MusicFolder
	}

	a.Manager = library.NewManager(library.Config{
		MusicDir:   musicDir,
		Cache:      metadata.LoadCache(layout.MetadataCachePath(), logger),
		Extractor:  metadata.NewExtractor(logger),
		Logger:     logger,
		BatchSize:  cfg.ScanBatchSize,
		WarmupRate: rate.Limit(cfg.WarmupPerSecond),
		OnProgress: a.broadcastProgress,
	})

	a.Transcoder = transcode.New(layout.TranscodeCacheDir(), cfg.TranscodeCacheBytes, cfg.FFmpegPath, logger)

	a.Server = apihttp.NewServer(a.Manager,
		apihttp.WithTranscoder(a.Transcoder),
		apihttp.WithLogger(logger),
		apihttp.WithAllowedOrigins(cfg.CORSAllowedOrigins),
	)

	a.Manager.RegisterListener(library.ListenerFuncs{
		OnScanComplete: func() {
			a.Server.BroadcastLibraryUpdated(a.advertisedBaseURL())
		},
		OnWarmupComplete: func(updated int) {
			a.Server.BroadcastWarmupComplete(updated)
		},
	})

	return a, nil
}

// Layout exposes the resolved on-disk paths.
func (a *App) Layout() Layout {
	return a.layout
}

// Run serves HTTP until ctx is cancelled, scanning the library and watching
// the music folder in the background. It blocks and returns after graceful
// shutdown.
func (a *App) Run(ctx context.Context) error {
	if dir := a.Manager.MusicFolder(); dir != "" {
		go func() {
			if _, err := a.Manager.Scan(ctx); err != nil && !errors.Is(err, domain.ErrScanBusy) {
				a.logger.Error("startup scan failed", slog.String("error", err.Error()))
			}
		}()
		if err := a.startWatcher(ctx, dir); err != nil {
			a.logger.Warn("folder watcher unavailable", slog.String("error", err.Error()))
		}
	} else {
		a.logger.Info("music folder not configured, waiting for setup")
	}

	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           a.Server,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      0,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	a.logger.Info("server started", slog.String("addr", a.cfg.HTTPAddr))

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if a.watcher != nil {
		_ = a.watcher.Close()
	}
	a.Manager.CancelDurationWarmup()
	a.Server.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("http shutdown error", slog.String("error", err.Error()))
	}
	a.logger.Info("server stopped")
	return nil
}

func (a *App) startWatcher(ctx context.Context, dir string) error {
	debounce := time.Duration(a.cfg.WatchDebounceMS) * time.Millisecond
	w, err := watch.New(dir, debounce, a.logger, a.applyChanges)
	if err != nil {
		return err
	}
	if err := w.Start(ctx); err != nil {
		return err
	}
	a.watcher = w
	return nil
}

// applyChanges runs a debounced file-change batch through the incremental
// update path and announces the new snapshot.
func (a *App) applyChanges(changes []domain.FileChange) {
	update := a.Manager.ProcessChanges(context.Background(), changes)
	if update.Empty() {
		return
	}
	a.Manager.ApplyUpdate(update)
	a.logger.Info("library updated",
		slog.Int("added", len(update.Added)),
		slog.Int("removed", len(update.Removed)),
		slog.Int("modified", len(update.Modified)),
	)
}

func (a *App) broadcastProgress(p scanner.Progress) {
	if a.Server != nil {
		a.Server.BroadcastScanProgress(p)
	}
}

// advertisedBaseURL builds artwork link prefixes for server-initiated
// broadcasts, where no request is available to derive them from.
func (a *App) advertisedBaseURL() string {
	addr := a.cfg.HTTPAddr
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "http://" + addr
}
