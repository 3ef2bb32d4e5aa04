// Command ariamid supervises the music server: start it (foreground or
// detached with an append-only log), stop it, query its status, or trigger
// a library rescan.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"
	"time"

	arg "github.com/alexflint/go-arg"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/picccassso/Ariami-sub001/internal/app"
	"github.com/picccassso/Ariami-sub001/internal/metrics"
	"github.com/picccassso/Ariami-sub001/internal/telemetry"
)

type startCmd struct {
	Foreground bool `arg:"-f,--foreground" help:"run attached to the terminal instead of detaching"`
}

type stopCmd struct{}

type statusCmd struct{}

type rescanCmd struct{}

type args struct {
	Start  *startCmd  `arg:"subcommand:start" help:"start the music server"`
	Stop   *stopCmd   `arg:"subcommand:stop" help:"stop a detached server"`
	Status *statusCmd `arg:"subcommand:status" help:"show server and library status"`
	Rescan *rescanCmd `arg:"subcommand:rescan" help:"trigger a full library rescan"`
}

func (args) Description() string {
	return "ariamid supervises the Ariami personal music server."
}

func main() {
	var cli args
	parser := arg.MustParse(&cli)

	cfg := app.LoadConfig()
	layout, err := app.NewLayout(cfg.ConfigDir, cfg.DataDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "resolve config dir:", err)
		os.Exit(1)
	}

	switch {
	case cli.Start != nil:
		runStart(cfg, layout, cli.Start.Foreground)
	case cli.Stop != nil:
		runStop(layout)
	case cli.Status != nil:
		runStatus(cfg, layout)
	case cli.Rescan != nil:
		runRescan(cfg)
	default:
		parser.WriteHelp(os.Stderr)
		os.Exit(1)
	}
}

func runStart(cfg app.Config, layout app.Layout, foreground bool) {
	if pid, err := app.ServerPID(layout.PIDPath()); err == nil {
		fmt.Fprintf(os.Stderr, "server already running (pid %d)\n", pid)
		os.Exit(1)
	}

	if !foreground {
		detach(layout)
		return
	}

	logger := newLogger(cfg.LogLevel, cfg.LogFormat, os.Stdout)
	slog.SetDefault(logger)
	metrics.Register(prometheus.DefaultRegisterer)

	shutdownTracer, err := telemetry.Init(context.Background(), "ariamid")
	if err != nil {
		logger.Warn("otel init failed", slog.String("error", err.Error()))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	a, err := app.New(cfg, logger)
	if err != nil {
		logger.Error("startup failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		slog.String("service", "ariamid"),
		slog.String("httpAddr", cfg.HTTPAddr),
		slog.String("configDir", a.Layout().ConfigDir),
		slog.String("musicDir", a.Manager.MusicFolder()),
		slog.String("logLevel", cfg.LogLevel),
		slog.String("logFormat", cfg.LogFormat),
	)

	if err := app.WritePIDFile(layout.PIDPath(), os.Getpid()); err != nil {
		logger.Warn("pid file write failed", slog.String("error", err.Error()))
	}
	defer app.RemovePIDFile(layout.PIDPath())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Run(ctx); err != nil {
		logger.Error("server failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// detach re-executes the binary in the foreground with output appended to
// server.log, then records the child PID and returns.
func detach(layout app.Layout) {
	if err := layout.Ensure(); err != nil {
		fmt.Fprintln(os.Stderr, "prepare config dir:", err)
		os.Exit(1)
	}
	logFile, err := os.OpenFile(layout.ServerLogPath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open server.log:", err)
		os.Exit(1)
	}
	defer logFile.Close()

	self, err := os.Executable()
	if err != nil {
		fmt.Fprintln(os.Stderr, "locate executable:", err)
		os.Exit(1)
	}

	cmd := exec.Command(self, "start", "--foreground")
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	if err := cmd.Start(); err != nil {
		fmt.Fprintln(os.Stderr, "start server:", err)
		os.Exit(1)
	}
	if err := app.WritePIDFile(layout.PIDPath(), cmd.Process.Pid); err != nil {
		fmt.Fprintln(os.Stderr, "record pid:", err)
	}
	fmt.Printf("server started (pid %d), logging to %s\n", cmd.Process.Pid, layout.ServerLogPath())
	_ = cmd.Process.Release()
}

func runStop(layout app.Layout) {
	if err := app.StopServer(layout.PIDPath()); err != nil {
		if errors.Is(err, app.ErrNotRunning) {
			fmt.Fprintln(os.Stderr, "server is not running")
		} else {
			fmt.Fprintln(os.Stderr, "stop failed:", err)
		}
		os.Exit(1)
	}
	fmt.Println("server stopped")
}

func runStatus(cfg app.Config, layout app.Layout) {
	pid, err := app.ServerPID(layout.PIDPath())
	if err != nil {
		fmt.Println("server: not running")
		os.Exit(1)
	}
	fmt.Printf("server: running (pid %d)\n", pid)

	var status struct {
		Configured     bool   `json:"configured"`
		MusicFolder    string `json:"musicFolder"`
		Scanning       bool   `json:"scanning"`
		Songs          int    `json:"songs"`
		Albums         int    `json:"albums"`
		Playlists      int    `json:"playlists"`
		DurationsReady bool   `json:"durationsReady"`
		LastUpdated    string `json:"lastUpdated"`
	}
	if err := getJSON(serverBaseURL(cfg.HTTPAddr)+"/api/status", &status); err != nil {
		fmt.Fprintln(os.Stderr, "status query failed:", err)
		os.Exit(1)
	}

	if !status.Configured {
		fmt.Println("library: music folder not configured")
		return
	}
	fmt.Printf("library: %d songs, %d albums, %d playlists (%s)\n",
		status.Songs, status.Albums, status.Playlists, status.MusicFolder)
	if status.Scanning {
		fmt.Println("scan: in progress")
	}
	if !status.DurationsReady {
		fmt.Println("durations: warming up")
	}
	if status.LastUpdated != "" {
		fmt.Println("last updated:", status.LastUpdated)
	}
}

func runRescan(cfg app.Config) {
	resp, err := http.Post(serverBaseURL(cfg.HTTPAddr)+"/api/rescan", "application/json", nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, "rescan request failed:", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusAccepted:
		fmt.Println("rescan started")
	case http.StatusConflict:
		fmt.Fprintln(os.Stderr, "a scan is already running")
		os.Exit(1)
	case http.StatusPreconditionFailed:
		fmt.Fprintln(os.Stderr, "music folder not configured")
		os.Exit(1)
	default:
		fmt.Fprintf(os.Stderr, "unexpected response: %s\n", resp.Status)
		os.Exit(1)
	}
}

func serverBaseURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "http://" + addr
}

func getJSON(url string, out any) error {
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected response: %s", resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func newLogger(levelRaw, formatRaw string, w io.Writer) *slog.Logger {
	level := parseLogLevel(levelRaw)
	options := &slog.HandlerOptions{Level: level}
	format := strings.ToLower(strings.TrimSpace(formatRaw))
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, options))
	}
	return slog.New(slog.NewTextHandler(w, options))
}

func parseLogLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
