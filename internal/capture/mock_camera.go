package capture

import (
	"fmt"
	"sync"

	"gocv.io/x/gocv"
)

// MockSource plays back scripted frames for testing. Frames are cloned on
// read so the script is never handed out.
type MockSource struct {
	id      int
	frames  []*gocv.Mat
	index   int
	loop    bool
	openErr error
	mu      sync.Mutex
	running bool

	opens  int
	closes int
	reads  int
}

// NewMockSource creates a MockSource with the given device id and frames.
func NewMockSource(id int, frames []*gocv.Mat, loop bool) *MockSource {
	return &MockSource{
		id:     id,
		frames: frames,
		loop:   loop,
	}
}

// FailOpen makes subsequent Open calls return err.
func (c *MockSource) FailOpen(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.openErr = err
}

func (c *MockSource) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.opens++
	if c.openErr != nil {
		return fmt.Errorf("%w %d: %v", ErrOpenFailed, c.id, c.openErr)
	}
	c.running = true
	c.index = 0
	return nil
}

func (c *MockSource) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closes++
	c.running = false
	return nil
}

func (c *MockSource) ReadFrame() (*gocv.Mat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return nil, ErrCameraNotOpen
	}

	if c.index >= len(c.frames) {
		if c.loop && len(c.frames) > 0 {
			c.index = 0
		} else {
			return nil, fmt.Errorf("%w: source %d has no more frames", ErrReadFailed, c.id)
		}
	}

	frame := c.frames[c.index].Clone()
	c.index++
	c.reads++

	return &frame, nil
}

func (c *MockSource) SetFPS(fps int) {}
func (c *MockSource) FPS() int       { return DefaultFPS }
func (c *MockSource) ID() int        { return c.id }

func (c *MockSource) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Calls reports how many times Open, Close and successful ReadFrame ran.
func (c *MockSource) Calls() (opens, closes, reads int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opens, c.closes, c.reads
}

// SetFrames replaces the frame sequence
func (c *MockSource) SetFrames(frames []*gocv.Mat) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = frames
	c.index = 0
}
