// Package apihttp is the HTTP surface of the music server: the JSON catalogue
// API, byte-range streaming with optional transcoding, artwork endpoints, and
// the websocket event feed.
package apihttp

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/picccassso/Ariami-sub001/internal/library"
	"github.com/picccassso/Ariami-sub001/internal/scanner"
	"github.com/picccassso/Ariami-sub001/internal/transcode"
)

type Server struct {
	library        *library.Manager
	transcoder     *transcode.Transcoder
	allowedOrigins []string
	logger         *slog.Logger
	handler        http.Handler
	wsHub          *wsHub
}

type ServerOption func(*Server)

func WithTranscoder(t *transcode.Transcoder) ServerOption {
	return func(s *Server) {
		s.transcoder = t
	}
}

// WithAllowedOrigins configures the CORS allowed origins whitelist.
// When empty (default), any origin is permitted (development mode).
func WithAllowedOrigins(origins []string) ServerOption {
	return func(s *Server) {
		s.allowedOrigins = origins
	}
}

func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

func NewServer(manager *library.Manager, opts ...ServerOption) *Server {
	s := &Server{library: manager}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	s.wsHub = newWSHub(s.logger)
	go s.wsHub.run()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/library", s.handleLibrary)
	mux.HandleFunc("GET /api/library/full", s.handleLibraryFull)
	mux.HandleFunc("GET /api/album/{id}", s.handleAlbum)
	mux.HandleFunc("GET /api/playlists", s.handlePlaylists)
	mux.HandleFunc("POST /api/rescan", s.handleRescan)
	mux.HandleFunc("POST /api/pair", s.handlePair)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /stream/", s.handleStream)
	mux.HandleFunc("GET /artwork/{albumID}", s.handleAlbumArtwork)
	mux.HandleFunc("GET /song-artwork/{songID}", s.handleSongArtwork)
	mux.HandleFunc("GET /download/{songID}", s.handleDownload)
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /ws", s.handleWS)

	traced := otelhttp.NewHandler(loggingMiddleware(s.logger, mux), "ariamid",
		otelhttp.WithFilter(func(r *http.Request) bool {
			p := r.URL.Path
			return p != "/metrics" && p != "/healthz" && !strings.HasPrefix(p, "/stream/")
		}),
	)
	s.handler = recoveryMiddleware(s.logger, metricsMiddleware(corsMiddleware(s.allowedOrigins, traced)))
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Close shuts down the websocket hub, disconnecting all clients.
func (s *Server) Close() {
	if s.wsHub != nil {
		s.wsHub.Close()
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("ws upgrade failed", slog.String("error", err.Error()))
		return
	}
	client := &wsClient{
		hub:  s.wsHub,
		conn: conn,
		send: make(chan []byte, 256),
	}
	s.wsHub.register <- client
	go client.writePump()
	go client.readPump()
}

// BroadcastScanProgress pushes a scan progress event to connected clients.
func (s *Server) BroadcastScanProgress(p scanner.Progress) {
	s.wsHub.Broadcast("scan_progress", p)
}

// BroadcastLibraryUpdated pushes the refreshed catalogue snapshot after a
// scan or an incremental update.
func (s *Server) BroadcastLibraryUpdated(baseURL string) {
	s.wsHub.Broadcast("library_updated", s.library.APILibrary(baseURL))
}

// BroadcastWarmupComplete notifies clients that background duration
// resolution finished.
func (s *Server) BroadcastWarmupComplete(updated int) {
	s.wsHub.Broadcast("warmup_complete", map[string]int{"updated": updated})
}

// baseURL reconstructs the externally visible prefix for artwork links.
func baseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if forwarded := r.Header.Get("X-Forwarded-Proto"); forwarded != "" {
		scheme = forwarded
	}
	return scheme + "://" + r.Host
}

// scanContext returns the context used for operator-triggered scans. They
// outlive the triggering request on purpose.
func scanContext() context.Context {
	return context.Background()
}
