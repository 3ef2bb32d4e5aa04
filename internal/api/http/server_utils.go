package apihttp

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/picccassso/Ariami-sub001/internal/domain"
)

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorEnvelope struct {
	Error errorPayload `json:"error"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorEnvelope{Error: errorPayload{Code: code, Message: message}})
}

// writeDomainError maps sentinel domain errors to HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "resource not found")
	case errors.Is(err, domain.ErrNotConfigured):
		writeError(w, http.StatusPreconditionFailed, "not_configured", "music folder not configured")
	case errors.Is(err, domain.ErrScanBusy):
		writeError(w, http.StatusConflict, "scan_busy", "a scan is already running")
	case errors.Is(err, domain.ErrTranscodeUnavailable):
		writeError(w, http.StatusServiceUnavailable, "transcode_unavailable", "encoder unavailable")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
