// Command ariami-pull drives downloads from a paired music server: it reads
// the library snapshot, enqueues album or song downloads into the persistent
// queue, and renders console progress until the queue drains.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	arg "github.com/alexflint/go-arg"
	"github.com/dustin/go-humanize"
	progressbar "github.com/schollz/progressbar/v3"

	"github.com/picccassso/Ariami-sub001/internal/app"
	"github.com/picccassso/Ariami-sub001/internal/domain"
	"github.com/picccassso/Ariami-sub001/internal/downloads"
)

type args struct {
	Server string   `arg:"-s,--server,env:ARIAMI_SERVER" default:"http://localhost:8080" help:"base URL of the paired server"`
	List   bool     `arg:"-l,--list" help:"list albums available on the server"`
	Albums []string `arg:"--album,separate" help:"album ID to download (repeatable)"`
	Songs  []string `arg:"--song,separate" help:"song ID to download (repeatable)"`
	All    bool     `arg:"--all" help:"download every song in the library"`
	Out    string   `arg:"-o,--out" help:"download directory (default: app data dir)"`
}

func (args) Description() string {
	return "ariami-pull downloads music from a paired Ariami server."
}

// librarySnapshot mirrors the server's /api/library JSON shape.
type librarySnapshot struct {
	Albums []struct {
		ID        string `json:"id"`
		Title     string `json:"title"`
		Artist    string `json:"artist"`
		SongCount int    `json:"songCount"`
		Duration  int    `json:"duration"`
	} `json:"albums"`
	Songs []struct {
		ID       string `json:"id"`
		Title    string `json:"title"`
		Artist   string `json:"artist"`
		AlbumID  string `json:"albumId"`
		Duration int    `json:"duration"`
	} `json:"songs"`
}

func main() {
	var cli args
	parser := arg.MustParse(&cli)

	server := strings.TrimRight(cli.Server, "/")
	lib, err := fetchLibrary(server)
	if err != nil {
		fmt.Fprintln(os.Stderr, "fetch library:", err)
		os.Exit(1)
	}

	if cli.List {
		listAlbums(lib)
		return
	}
	if !cli.All && len(cli.Albums) == 0 && len(cli.Songs) == 0 {
		parser.WriteHelp(os.Stderr)
		os.Exit(1)
	}

	cfg := app.LoadConfig()
	layout, err := app.NewLayout(cfg.ConfigDir, cfg.DataDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "resolve data dir:", err)
		os.Exit(1)
	}
	if err := layout.Ensure(); err != nil {
		fmt.Fprintln(os.Stderr, "prepare data dir:", err)
		os.Exit(1)
	}
	outDir := cli.Out
	if outDir == "" {
		outDir = layout.DownloadsSongsDir()
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		fmt.Fprintln(os.Stderr, "prepare output dir:", err)
		os.Exit(1)
	}

	tasks := selectTasks(lib, cli, server, outDir)
	if len(tasks) == 0 {
		fmt.Fprintln(os.Stderr, "nothing matched the requested albums/songs")
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	store := downloads.NewStore(layout.DownloadQueuePath(), logger)
	sched := downloads.NewScheduler(store, &http.Client{Timeout: 10 * time.Minute}, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sched.Start(ctx)
	sched.EnqueueBatch(tasks)

	go cacheArtwork(ctx, server, layout.ArtworkCacheDir(), tasks)

	fmt.Printf("downloading %d songs to %s\n", len(tasks), outDir)
	failed := watchQueue(ctx, sched)

	if failed > 0 {
		fmt.Fprintf(os.Stderr, "%d downloads failed\n", failed)
		os.Exit(1)
	}
}

func fetchLibrary(server string) (librarySnapshot, error) {
	var lib librarySnapshot
	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Get(server + "/api/library")
	if err != nil {
		return lib, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return lib, fmt.Errorf("unexpected response: %s", resp.Status)
	}
	return lib, json.NewDecoder(resp.Body).Decode(&lib)
}

func listAlbums(lib librarySnapshot) {
	albums := lib.Albums
	sort.Slice(albums, func(i, j int) bool { return albums[i].Title < albums[j].Title })
	for _, a := range albums {
		fmt.Printf("%s  %-40s  %-24s  %3d songs  %s\n",
			a.ID, clip(a.Title, 40), clip(a.Artist, 24), a.SongCount, formatDuration(a.Duration))
	}
	fmt.Printf("\n%d albums, %d songs\n", len(lib.Albums), len(lib.Songs))
}

func selectTasks(lib librarySnapshot, cli args, server, outDir string) []downloads.Task {
	wantAlbum := make(map[string]bool, len(cli.Albums))
	for _, id := range cli.Albums {
		wantAlbum[id] = true
	}
	wantSong := make(map[string]bool, len(cli.Songs))
	for _, id := range cli.Songs {
		wantSong[id] = true
	}

	var tasks []downloads.Task
	for _, s := range lib.Songs {
		if !cli.All && !wantAlbum[s.AlbumID] && !wantSong[s.ID] {
			continue
		}
		tasks = append(tasks, downloads.NewTask(
			domain.SongID(s.ID),
			s.Title,
			s.Artist,
			s.AlbumID,
			server+"/download/"+s.ID,
			filepath.Join(outDir, s.ID+".mp3"),
		))
	}
	return tasks
}

// cacheArtwork fetches cover art for the albums being downloaded into the
// local media cache. Best-effort: a missing cover is not an error.
func cacheArtwork(ctx context.Context, server, dir string, tasks []downloads.Task) {
	client := &http.Client{Timeout: 30 * time.Second}
	seen := make(map[string]bool)
	for _, t := range tasks {
		if t.AlbumID == "" || seen[t.AlbumID] {
			continue
		}
		seen[t.AlbumID] = true

		dest := filepath.Join(dir, t.AlbumID+".img")
		if _, err := os.Stat(dest); err == nil {
			continue
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, server+"/artwork/"+t.AlbumID, nil)
		if err != nil {
			continue
		}
		resp, err := client.Do(req)
		if err != nil {
			continue
		}
		if resp.StatusCode == http.StatusOK {
			data, err := io.ReadAll(resp.Body)
			if err == nil {
				_ = os.WriteFile(dest, data, 0o644)
			}
		}
		resp.Body.Close()
	}
}

// watchQueue renders one progress bar per in-flight download and returns the
// number of failed tasks once no work remains.
func watchQueue(ctx context.Context, sched *downloads.Scheduler) int {
	var (
		bar      *progressbar.ProgressBar
		barTask  string
		received int64
	)
	finishBar := func() {
		if bar != nil {
			_ = bar.Finish()
			bar = nil
			barTask = ""
		}
	}

	// Queue-change delivery is best-effort, so poll as a fallback to avoid
	// hanging on a dropped final event.
	poll := time.NewTicker(time.Second)
	defer poll.Stop()

	for {
		select {
		case <-ctx.Done():
			finishBar()
			fmt.Fprintln(os.Stderr, "interrupted, queue state saved")
			return countFailed(sched.Tasks())
		case p := <-sched.ProgressStream():
			if p.TaskID != barTask {
				finishBar()
				barTask = p.TaskID
				received = 0
				bar = newBar(sched, p)
			}
			_ = bar.Add64(p.Bytes - received)
			received = p.Bytes
		case snapshot := <-sched.QueueChanges():
			if queueDrained(snapshot) {
				finishBar()
				printSummary(snapshot)
				return countFailed(snapshot)
			}
		case <-poll.C:
			snapshot := sched.Tasks()
			if queueDrained(snapshot) {
				finishBar()
				printSummary(snapshot)
				return countFailed(snapshot)
			}
		}
	}
}

func newBar(sched *downloads.Scheduler, p downloads.Progress) *progressbar.ProgressBar {
	desc := p.TaskID
	for _, t := range sched.Tasks() {
		if t.ID == p.TaskID {
			desc = t.Title + " - " + t.Artist
			break
		}
	}
	return progressbar.NewOptions64(p.Total,
		progressbar.OptionSetDescription(clip(desc, 48)),
		progressbar.OptionShowBytes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetTheme(progressbar.ThemeASCII),
	)
}

// queueDrained reports whether no task can make further progress without an
// operator action (retry).
func queueDrained(tasks []downloads.Task) bool {
	for _, t := range tasks {
		switch t.Status {
		case downloads.StatusPending, downloads.StatusDownloading, downloads.StatusPaused:
			return false
		}
	}
	return true
}

func countFailed(tasks []downloads.Task) int {
	failed := 0
	for _, t := range tasks {
		if t.Status == downloads.StatusFailed {
			failed++
		}
	}
	return failed
}

func printSummary(tasks []downloads.Task) {
	var completed, failed int
	var bytes int64
	for _, t := range tasks {
		switch t.Status {
		case downloads.StatusCompleted:
			completed++
			bytes += t.TotalBytes
		case downloads.StatusFailed:
			failed++
			fmt.Fprintf(os.Stderr, "failed: %s - %s (%s)\n", t.Title, t.Artist, t.Error)
		}
	}
	fmt.Printf("done: %d songs, %s", completed, humanize.Bytes(uint64(bytes)))
	if failed > 0 {
		fmt.Printf(", %d failed", failed)
	}
	fmt.Println()
}

func formatDuration(seconds int) string {
	if seconds <= 0 {
		return "--:--"
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}

func clip(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
