package server

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ayusman/podoscan/internal/session"
)

// Feed consumes the capture loop's views. It keeps the latest view per camera
// for the MJPEG stream and broadcasts each view to live clients.
type Feed struct {
	mu      sync.RWMutex
	latest  map[int]session.View
	updated chan struct{}
	live    *LiveHandler
	logger  *zap.Logger
}

// NewFeed creates an empty Feed.
func NewFeed(logger *zap.Logger) *Feed {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Feed{
		latest:  make(map[int]session.View),
		updated: make(chan struct{}),
		live:    newLiveHandler(logger),
		logger:  logger,
	}
}

// Run consumes views until ctx is done or the channel is closed.
func (f *Feed) Run(ctx context.Context, views <-chan session.View) {
	for {
		select {
		case <-ctx.Done():
			f.live.closeAll()
			return
		case v, ok := <-views:
			if !ok {
				f.live.closeAll()
				return
			}
			f.update(v)
		}
	}
}

// Latest returns the most recent view of camera.
func (f *Feed) Latest(camera int) (session.View, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	v, ok := f.latest[camera]
	return v, ok
}

// Updated returns a channel that is closed at the next update.
func (f *Feed) Updated() <-chan struct{} {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.updated
}

// Live returns the websocket handler fed by this Feed.
func (f *Feed) Live() *LiveHandler {
	return f.live
}

type liveMessage struct {
	session.View
	Timestamp int64 `json:"timestamp"`
}

func (f *Feed) update(v session.View) {
	f.mu.Lock()
	f.latest[v.Camera] = v
	close(f.updated)
	f.updated = make(chan struct{})
	f.mu.Unlock()

	msg, err := json.Marshal(liveMessage{View: v, Timestamp: time.Now().UnixMilli()})
	if err != nil {
		f.logger.Warn("failed to encode view", zap.Int("camera", v.Camera), zap.Error(err))
		return
	}
	f.live.broadcast(msg)
}
