package server

import (
	"fmt"
	"net/http"
	"strconv"
)

// StreamHandler serves the latest overlay (or pressure view) of one camera as
// MJPEG.
type StreamHandler struct {
	feed *Feed
}

// NewStreamHandler creates a new StreamHandler reading from feed.
func NewStreamHandler(feed *Feed) *StreamHandler {
	return &StreamHandler{feed: feed}
}

// ServeHTTP streams MJPEG frames to connected clients.
// Query: camera=1|2 (default 1), view=overlay|pressure (default overlay).
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	camera := 1
	if q := r.URL.Query().Get("camera"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n < 1 || n > 2 {
			http.Error(w, "camera must be 1 or 2", http.StatusBadRequest)
			return
		}
		camera = n
	}
	pressure := false
	switch r.URL.Query().Get("view") {
	case "", "overlay":
	case "pressure":
		pressure = true
	default:
		http.Error(w, "view must be overlay or pressure", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	var lastSeq uint64
	for {
		updated := h.feed.Updated()

		if v, ok := h.feed.Latest(camera); ok && v.CycleSeq != lastSeq {
			buf := v.Overlay
			if pressure {
				buf = v.Pressure
			}
			if len(buf) > 0 {
				// Write MJPEG frame
				fmt.Fprintf(w, "--frame\r\n")
				fmt.Fprintf(w, "Content-Type: image/jpeg\r\n")
				fmt.Fprintf(w, "Content-Length: %d\r\n\r\n", len(buf))
				if _, err := w.Write(buf); err != nil {
					return
				}
				fmt.Fprintf(w, "\r\n")

				if f, ok := w.(http.Flusher); ok {
					f.Flush()
				}
			}
			lastSeq = v.CycleSeq
		}

		select {
		case <-r.Context().Done():
			return
		case <-updated:
		}
	}
}
