// Package session drives the two frame sources through the vision pipeline and
// persists capture sessions on request.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ayusman/podoscan/internal/capture"
	"github.com/ayusman/podoscan/internal/store"
	"github.com/ayusman/podoscan/internal/upload"
	"github.com/ayusman/podoscan/internal/vision"
)

// Loop defaults.
const (
	DefaultFolderPrefix  = "patient"
	DefaultViewBuffer    = 4
	DefaultUploadTimeout = 30 * time.Second
)

var (
	// ErrSourceOpen is returned by Run when a frame source cannot be opened.
	ErrSourceOpen = errors.New("frame source open failed")
	// ErrSourceRead is returned by Run when a frame read fails mid-loop.
	ErrSourceRead = errors.New("frame source read failed")
	// ErrNothingToSave is returned by Capture before any frame pair was read.
	ErrNothingToSave = errors.New("nothing to save")
	// ErrNotRunning is returned by Capture when the loop is not running.
	ErrNotRunning = errors.New("capture loop is not running")
	// ErrAlreadyStarted is returned when Run is called more than once.
	ErrAlreadyStarted = errors.New("capture loop already started")
)

// State is the lifecycle state of a Capturer.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateCapturing
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateCapturing:
		return "capturing"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Config holds the collaborators and settings of a Capturer.
type Config struct {
	Sources      [2]capture.Source
	CaptureDir   string
	FolderPrefix string
	FPS          int
	Analyzer     vision.AnalyzerConfig

	// Uploader receives every persisted artifact. Nil disables uploads.
	Uploader      upload.Uploader
	UploadTimeout time.Duration

	// Store records sessions and upload outcomes. Optional.
	Store *store.Store

	Logger     *zap.Logger
	Clock      func() time.Time
	ViewBuffer int
}

// Capturer owns both frame sources for the lifetime of Run.
type Capturer struct {
	sources       [2]capture.Source
	captureDir    string
	prefix        string
	fps           int
	analyzer      vision.AnalyzerConfig
	uploader      upload.Uploader
	uploadTimeout time.Duration
	store         *store.Store
	logger        *zap.Logger
	clock         func() time.Time
	runID         string

	mu    sync.RWMutex
	state State
	last  *Outcome

	// Owned by the loop goroutine.
	latest [2]*vision.Analysis
	seq    uint64

	views     chan View
	captureCh chan captureRequest
	quitCh    chan struct{}
	quitOnce  sync.Once
	done      chan struct{}
	uploads   sync.WaitGroup
}

type captureRequest struct {
	ctx   context.Context
	reply chan captureResult
}

type captureResult struct {
	outcome *Outcome
	err     error
}

// New creates a Capturer. Both sources are required.
func New(cfg Config) (*Capturer, error) {
	for i, src := range cfg.Sources {
		if src == nil {
			return nil, fmt.Errorf("camera %d: source is required", i+1)
		}
	}
	if cfg.CaptureDir == "" {
		return nil, errors.New("capture dir is required")
	}
	if cfg.FolderPrefix == "" {
		cfg.FolderPrefix = DefaultFolderPrefix
	}
	if cfg.FPS <= 0 {
		cfg.FPS = capture.DefaultFPS
	}
	if cfg.Uploader == nil {
		cfg.Uploader = upload.Discard
	}
	if cfg.UploadTimeout <= 0 {
		cfg.UploadTimeout = DefaultUploadTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.ViewBuffer <= 0 {
		cfg.ViewBuffer = DefaultViewBuffer
	}

	return &Capturer{
		sources:       cfg.Sources,
		captureDir:    cfg.CaptureDir,
		prefix:        cfg.FolderPrefix,
		fps:           cfg.FPS,
		analyzer:      cfg.Analyzer,
		uploader:      cfg.Uploader,
		uploadTimeout: cfg.UploadTimeout,
		store:         cfg.Store,
		logger:        cfg.Logger,
		clock:         cfg.Clock,
		runID:         uuid.NewString(),
		state:         StateIdle,
		views:         make(chan View, cfg.ViewBuffer),
		captureCh:     make(chan captureRequest),
		quitCh:        make(chan struct{}),
		done:          make(chan struct{}),
	}, nil
}

// State returns the current lifecycle state.
func (c *Capturer) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *Capturer) setState(s State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = s
}

// Views returns the hand-off queue of per-camera renderings. When the queue is
// full the oldest view is dropped.
func (c *Capturer) Views() <-chan View {
	return c.views
}

// Done is closed when Run has returned.
func (c *Capturer) Done() <-chan struct{} {
	return c.done
}

// Last returns the most recently persisted session, or nil.
func (c *Capturer) Last() *Outcome {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.last
}

// Run opens both sources and runs the capture loop until Quit, context
// cancellation or a read failure. Both sources are released on every exit
// path once opened.
func (c *Capturer) Run(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	c.mu.Unlock()

	defer close(c.done)
	defer c.setState(StateStopped)

	for i, src := range c.sources {
		if err := src.Open(); err != nil {
			for _, opened := range c.sources[:i] {
				if cerr := opened.Close(); cerr != nil {
					c.logger.Warn("failed to close source", zap.Int("camera", opened.ID()), zap.Error(cerr))
				}
			}
			return fmt.Errorf("%w: camera %d: %w", ErrSourceOpen, i+1, err)
		}
		src.SetFPS(c.fps)
	}
	defer c.release()

	c.setState(StateRunning)
	c.logger.Info("capture loop started", zap.Int("fps", c.fps), zap.String("run_id", c.runID))

	ticker := time.NewTicker(time.Second / time.Duration(c.fps))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("capture loop cancelled")
			return nil
		case <-c.quitCh:
			c.logger.Info("capture loop quit")
			return nil
		case req := <-c.captureCh:
			outcome, err := c.persist(req.ctx)
			req.reply <- captureResult{outcome: outcome, err: err}
		case <-ticker.C:
			if err := c.cycle(); err != nil {
				c.logger.Error("capture loop stopped", zap.Error(err))
				return err
			}
		}
	}
}

// Quit asks the loop to stop at the next cycle boundary. Safe to call more
// than once and before Run.
func (c *Capturer) Quit() {
	c.quitOnce.Do(func() { close(c.quitCh) })
}

// Capture asks the loop to persist the most recent frame pair and blocks until
// it has been handled.
func (c *Capturer) Capture(ctx context.Context) (*Outcome, error) {
	switch c.State() {
	case StateRunning, StateCapturing:
	default:
		return nil, ErrNotRunning
	}

	req := captureRequest{ctx: ctx, reply: make(chan captureResult, 1)}
	select {
	case c.captureCh <- req:
	case <-c.done:
		return nil, ErrNotRunning
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case res := <-req.reply:
		return res.outcome, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// WaitUploads blocks until every dispatched upload has finished.
func (c *Capturer) WaitUploads() {
	c.uploads.Wait()
}

func (c *Capturer) release() {
	for _, src := range c.sources {
		if err := src.Close(); err != nil {
			c.logger.Warn("failed to close source", zap.Int("camera", src.ID()), zap.Error(err))
		}
	}
	for i, a := range c.latest {
		if a != nil {
			a.Close()
			c.latest[i] = nil
		}
	}
}
