package session

import (
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/ayusman/podoscan/internal/geometry"
	"github.com/ayusman/podoscan/internal/heuristics"
	"github.com/ayusman/podoscan/internal/metrics"
	"github.com/ayusman/podoscan/internal/vision"
)

// View is one camera's rendering of a cycle, handed to the rendering consumer.
type View struct {
	Camera      int                            `json:"camera"`
	CycleSeq    uint64                         `json:"cycle"`
	CapturedAt  time.Time                      `json:"captured_at"`
	Measurement *geometry.Measurement          `json:"measurement,omitempty"`
	Arch        *heuristics.ArchClassification `json:"arch,omitempty"`
	Fascia      *float64                       `json:"fascia,omitempty"`
	Metatarsal  int                            `json:"metatarsal_pixels"`
	Load        heuristics.LoadSummary         `json:"load"`
	Overlay     []byte                         `json:"-"`
	Pressure    []byte                         `json:"-"`
}

// cycle reads camera 1 then camera 2, analyzes both and publishes the views.
// A read failure is returned; an analysis failure skips the cycle.
func (c *Capturer) cycle() error {
	start := time.Now()

	var frames [2]*gocv.Mat
	defer func() {
		for _, f := range frames {
			if f != nil {
				f.Close()
			}
		}
	}()

	for i, src := range c.sources {
		frame, err := src.ReadFrame()
		if err != nil {
			return fmt.Errorf("%w: camera %d: %w", ErrSourceRead, i+1, err)
		}
		frames[i] = frame
	}
	capturedAt := c.clock()

	var next [2]*vision.Analysis
	for i, frame := range frames {
		a, err := vision.Analyze(*frame, c.analyzer)
		if err != nil {
			for _, done := range next[:i] {
				done.Close()
			}
			c.logger.Warn("analysis failed, skipping cycle", zap.Int("camera", i+1), zap.Error(err))
			return nil
		}
		next[i] = a
	}

	for i, prev := range c.latest {
		if prev != nil {
			prev.Close()
		}
		c.latest[i] = next[i]
	}
	c.seq++

	for i, a := range next {
		if a.Found() {
			metrics.FeetDetectedTotal.WithLabelValues(strconv.Itoa(i + 1)).Inc()
		}
		c.publish(c.view(i+1, a, capturedAt))
	}

	metrics.CyclesTotal.Inc()
	metrics.CycleDuration.Observe(time.Since(start).Seconds())
	return nil
}

func (c *Capturer) view(camera int, a *vision.Analysis, capturedAt time.Time) View {
	v := View{
		Camera:      camera,
		CycleSeq:    c.seq,
		CapturedAt:  capturedAt,
		Measurement: a.Measurement,
		Arch:        a.Arch,
		Fascia:      a.Fascia,
		Metatarsal:  a.Load.HighLoadPixels,
		Load:        a.Load,
	}

	overlay, err := vision.EncodeJPEG(a.Overlay)
	if err != nil {
		c.logger.Warn("failed to encode overlay", zap.Int("camera", camera), zap.Error(err))
	}
	v.Overlay = overlay

	pressureView := vision.RenderPressureView(a.Pressure)
	defer pressureView.Close()
	pressure, err := vision.EncodeJPEG(pressureView)
	if err != nil {
		c.logger.Warn("failed to encode pressure view", zap.Int("camera", camera), zap.Error(err))
	}
	v.Pressure = pressure

	return v
}

// publish never blocks the loop: a full queue loses its oldest view.
func (c *Capturer) publish(v View) {
	for {
		select {
		case c.views <- v:
			return
		default:
		}
		select {
		case <-c.views:
		default:
		}
	}
}
