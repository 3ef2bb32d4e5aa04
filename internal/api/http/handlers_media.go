package apihttp

import (
	"log/slog"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/picccassso/Ariami-sub001/internal/domain"
	"github.com/picccassso/Ariami-sub001/internal/transcode"
)

// handleStream serves song bytes with Range support. The path after /stream/
// is the URL-escaped song path relative to the music folder; an optional
// quality query selects a transcoded variant.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	rel, err := url.PathUnescape(strings.TrimPrefix(r.URL.Path, "/stream/"))
	if err != nil || rel == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "missing song path")
		return
	}

	abs, err := s.resolveMusicPath(rel)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	quality, ok := transcode.ParseQuality(r.URL.Query().Get("quality"))
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_request", "unknown quality")
		return
	}

	serve := abs
	if quality != transcode.QualityHigh && s.transcoder != nil {
		variant, release, err := s.transcoder.Variant(r.Context(), abs, quality)
		if err != nil {
			// Encoding failed; the original still plays.
			s.logger.Warn("transcode unavailable, serving original",
				slog.String("path", abs), slog.String("error", err.Error()))
		} else {
			defer release()
			serve = variant
		}
	}

	w.Header().Set("Accept-Ranges", "bytes")
	http.ServeFile(w, r, serve)
}

// resolveMusicPath joins a client-supplied relative path with the music
// folder, rejecting traversal outside it.
func (s *Server) resolveMusicPath(rel string) (string, error) {
	root := s.library.MusicFolder()
	if root == "" {
		return "", domain.ErrNotConfigured
	}
	abs := filepath.Clean(filepath.Join(root, filepath.FromSlash(rel)))
	if abs != root && !strings.HasPrefix(abs, root+string(filepath.Separator)) {
		return "", domain.ErrNotFound
	}
	return abs, nil
}

func (s *Server) handleAlbumArtwork(w http.ResponseWriter, r *http.Request) {
	id := domain.AlbumID(r.PathValue("albumID"))
	art, err := s.library.AlbumArtwork(id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	serveArtwork(w, art)
}

func (s *Server) handleSongArtwork(w http.ResponseWriter, r *http.Request) {
	id := domain.SongID(r.PathValue("songID"))
	art, err := s.library.SongArtwork(id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	serveArtwork(w, art)
}

func serveArtwork(w http.ResponseWriter, art []byte) {
	w.Header().Set("Content-Type", http.DetectContentType(art))
	w.Header().Set("Cache-Control", "public, max-age=86400")
	_, _ = w.Write(art)
}

// handleDownload serves the original file bytes as an attachment.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	id := domain.SongID(r.PathValue("songID"))
	path, err := s.library.SongPath(id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	w.Header().Set("Content-Disposition", `attachment; filename="`+filepath.Base(path)+`"`)
	http.ServeFile(w, r, path)
}
