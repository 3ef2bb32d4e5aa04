package apihttp

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/picccassso/Ariami-sub001/internal/domain"
	"github.com/picccassso/Ariami-sub001/internal/library"
)

func (s *Server) handleLibrary(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.library.APILibrary(baseURL(r)))
}

func (s *Server) handleLibraryFull(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.library.APILibraryWithDurations(baseURL(r)))
}

func (s *Server) handleAlbum(w http.ResponseWriter, r *http.Request) {
	id := domain.AlbumID(r.PathValue("id"))
	detail, err := s.library.AlbumDetail(id, baseURL(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

type playlistsResponse struct {
	Playlists      []library.PlaylistView `json:"playlists"`
	DurationsReady bool                   `json:"durationsReady"`
	LastUpdated    string                 `json:"lastUpdated"`
}

func (s *Server) handlePlaylists(w http.ResponseWriter, r *http.Request) {
	view := s.library.APILibrary(baseURL(r))
	writeJSON(w, http.StatusOK, playlistsResponse{
		Playlists:      view.Playlists,
		DurationsReady: view.DurationsReady,
		LastUpdated:    view.LastUpdated,
	})
}

func (s *Server) handleRescan(w http.ResponseWriter, r *http.Request) {
	if s.library.MusicFolder() == "" {
		writeDomainError(w, domain.ErrNotConfigured)
		return
	}
	if s.library.Scanning() {
		writeDomainError(w, domain.ErrScanBusy)
		return
	}

	// Completion is announced by the manager's scan-complete listener; the
	// handler only kicks the scan off.
	go func() {
		if _, err := s.library.Scan(scanContext()); err != nil && !errors.Is(err, domain.ErrScanBusy) {
			s.logger.Error("rescan failed", slog.String("error", err.Error()))
		}
	}()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "scan started"})
}

// pairRequest is the QR pairing payload. The core accepts it as opaque
// input; trust and validation live with the pairing client.
type pairRequest struct {
	Server    string `json:"server"`
	Port      int    `json:"port"`
	SessionID string `json:"sessionId,omitempty"`
}

func (s *Server) handlePair(w http.ResponseWriter, r *http.Request) {
	var req pairRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed pairing payload")
		return
	}
	if strings.TrimSpace(req.Server) == "" || req.Port <= 0 || req.Port > 65535 {
		writeError(w, http.StatusBadRequest, "invalid_request", "pairing payload requires server and port")
		return
	}
	s.logger.Info("device paired",
		slog.String("server", req.Server),
		slog.Int("port", req.Port),
		slog.String("sessionId", req.SessionID),
	)
	writeJSON(w, http.StatusOK, map[string]string{"status": "paired"})
}

type statusResponse struct {
	Configured     bool   `json:"configured"`
	MusicFolder    string `json:"musicFolder,omitempty"`
	Scanning       bool   `json:"scanning"`
	Songs          int    `json:"songs"`
	Albums         int    `json:"albums"`
	Playlists      int    `json:"playlists"`
	DurationsReady bool   `json:"durationsReady"`
	LastUpdated    string `json:"lastUpdated"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		Configured:     s.library.MusicFolder() != "",
		MusicFolder:    s.library.MusicFolder(),
		Scanning:       s.library.Scanning(),
		DurationsReady: true,
	}
	if lib := s.library.CurrentLibrary(); lib != nil {
		resp.Songs = lib.SongCount()
		resp.Albums = len(lib.Albums)
		resp.Playlists = len(lib.Playlists)
		resp.DurationsReady = lib.DurationsReady()
	}
	if t := s.library.LastScan(); !t.IsZero() {
		resp.LastUpdated = t.UTC().Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
