// Package api provides HTTP API handlers for the podoscan capture station.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ayusman/podoscan/internal/store"
)

// SessionHandler handles HTTP requests for persisted capture sessions.
type SessionHandler struct {
	store  *store.Store
	logger *zap.Logger
}

// NewSessionHandler creates a new SessionHandler with the given store.
func NewSessionHandler(s *store.Store, logger *zap.Logger) *SessionHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionHandler{store: s, logger: logger}
}

// ServeHTTP implements the http.Handler interface and routes requests to appropriate methods.
func (h *SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Expected paths: /api/sessions or /api/sessions/{id}
	path := strings.TrimPrefix(r.URL.Path, "/api/sessions")
	path = strings.TrimPrefix(path, "/")

	if path == "" {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.list(w, r)
		return
	}

	id := path
	switch r.Method {
	case http.MethodGet:
		h.get(w, r, id)
	case http.MethodDelete:
		h.delete(w, r, id)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

type sessionSummary struct {
	ID         string `json:"id"`
	Folder     string `json:"folder"`
	CapturedAt string `json:"captured_at"`
}

type listSessionsResponse struct {
	Sessions []sessionSummary `json:"sessions"`
}

type sessionResponse struct {
	sessionSummary
	Artifacts    []store.Artifact    `json:"artifacts"`
	Measurements []store.Measurement `json:"measurements"`
	Uploads      store.UploadSummary `json:"uploads"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func toSummary(s *store.Session) sessionSummary {
	return sessionSummary{
		ID:         s.ID,
		Folder:     s.Folder,
		CapturedAt: s.CapturedAt.Format(time.RFC3339),
	}
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// list handles GET /api/sessions and returns all sessions, newest first.
func (h *SessionHandler) list(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.store.Sessions().List()
	if err != nil {
		h.logger.Error("failed to list sessions", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to list sessions")
		return
	}

	response := listSessionsResponse{
		Sessions: make([]sessionSummary, 0, len(sessions)),
	}
	for _, s := range sessions {
		response.Sessions = append(response.Sessions, toSummary(s))
	}

	writeJSON(w, http.StatusOK, response)
}

// get handles GET /api/sessions/{id} and returns the session with its
// artifacts, measurements and upload summary.
func (h *SessionHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	sess, err := h.store.Sessions().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Session not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get session")
		return
	}

	uploads, err := h.store.Sessions().UploadStatus(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get upload status")
		return
	}

	response := sessionResponse{
		sessionSummary: toSummary(sess),
		Artifacts:      sess.Artifacts,
		Measurements:   sess.Measurements,
		Uploads:        uploads,
	}
	if response.Artifacts == nil {
		response.Artifacts = []store.Artifact{}
	}
	if response.Measurements == nil {
		response.Measurements = []store.Measurement{}
	}

	writeJSON(w, http.StatusOK, response)
}

// delete handles DELETE /api/sessions/{id}. It removes the record and the
// session's local files.
func (h *SessionHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	sess, err := h.store.Sessions().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Session not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get session")
		return
	}

	if err := h.store.Sessions().Delete(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Session not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete session")
		return
	}

	removeFiles(sess.Artifacts, h.logger)
	w.WriteHeader(http.StatusNoContent)
}

// removeFiles deletes the artifact files and then their folders when empty.
func removeFiles(artifacts []store.Artifact, logger *zap.Logger) {
	dirs := map[string]bool{}
	for _, a := range artifacts {
		if err := os.Remove(a.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Warn("failed to remove artifact", zap.String("path", a.Path), zap.Error(err))
		}
		dirs[filepath.Dir(a.Path)] = true
	}
	for dir := range dirs {
		// Left in place when it still holds other files.
		os.Remove(dir)
	}
}
