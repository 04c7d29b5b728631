package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ayusman/podoscan/internal/session"
)

// Controller is the control surface of the capture loop.
type Controller interface {
	Capture(ctx context.Context) (*session.Outcome, error)
	Quit()
	State() session.State
	Last() *session.Outcome
}

// ControlHandler serves the capture and quit signals.
type ControlHandler struct {
	ctrl    Controller
	timeout time.Duration
	logger  *zap.Logger
}

// NewControlHandler creates a new ControlHandler.
func NewControlHandler(ctrl Controller, logger *zap.Logger) *ControlHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ControlHandler{ctrl: ctrl, timeout: 10 * time.Second, logger: logger}
}

type statusResponse struct {
	State string           `json:"state"`
	Last  *session.Outcome `json:"last,omitempty"`
}

// Capture handles POST /api/capture.
func (h *ControlHandler) Capture(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	outcome, err := h.ctrl.Capture(ctx)
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, outcome)
	case errors.Is(err, session.ErrNothingToSave):
		writeError(w, http.StatusConflict, "nothing to save")
	case errors.Is(err, session.ErrNotRunning):
		writeError(w, http.StatusServiceUnavailable, "capture loop is not running")
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "capture timed out")
	default:
		h.logger.Error("capture failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to capture session")
	}
}

// Quit handles POST /api/quit.
func (h *ControlHandler) Quit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	h.ctrl.Quit()
	writeJSON(w, http.StatusAccepted, statusResponse{State: h.ctrl.State().String()})
}

// Status handles GET /api/status.
func (h *ControlHandler) Status(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, statusResponse{
		State: h.ctrl.State().String(),
		Last:  h.ctrl.Last(),
	})
}
