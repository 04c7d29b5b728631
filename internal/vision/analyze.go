package vision

import (
	"gocv.io/x/gocv"

	"github.com/ayusman/podoscan/internal/geometry"
	"github.com/ayusman/podoscan/internal/heuristics"
)

// AnalyzerConfig configures Analyze.
type AnalyzerConfig struct {
	Params     Params
	Heuristics heuristics.Config
}

// DefaultAnalyzerConfig returns the default preprocessing and heuristic settings.
func DefaultAnalyzerConfig() AnalyzerConfig {
	return AnalyzerConfig{
		Params:     DefaultParams(),
		Heuristics: heuristics.DefaultConfig(),
	}
}

// Analysis is the result of running the pipeline on one frame. It owns its
// Mats; Close releases them. Measurement, Arch and Fascia are nil when no foot
// was found.
type Analysis struct {
	Original gocv.Mat
	Overlay  gocv.Mat
	Mask     gocv.Mat
	Pressure PressureMap

	Contours    geometry.ContourSet
	Measurement *geometry.Measurement
	Arch        *heuristics.ArchClassification
	Fascia      *float64
	Load        heuristics.LoadSummary
}

// Found reports whether a dominant contour was measured.
func (a *Analysis) Found() bool {
	return a.Measurement != nil
}

// Close releases every Mat held by the analysis.
func (a *Analysis) Close() {
	a.Original.Close()
	a.Overlay.Close()
	a.Mask.Close()
	a.Pressure.Close()
}

// Analyze runs the complete per-camera pipeline on frame. The frame itself is
// not modified; the analysis keeps its own copy.
func Analyze(frame gocv.Mat, cfg AnalyzerConfig) (*Analysis, error) {
	pre, err := Preprocess(frame, cfg.Params)
	if err != nil {
		return nil, err
	}
	defer pre.Gray.Close()

	pressure, err := MapPressure(pre.Gray)
	if err != nil {
		pre.Mask.Close()
		return nil, err
	}

	a := &Analysis{
		Original: frame.Clone(),
		Mask:     pre.Mask,
		Pressure: pressure,
	}

	a.Contours = ExtractContours(a.Mask)
	if m, ok := geometry.Measure(a.Contours); ok {
		arch := heuristics.ClassifyArch(m.Box, frame.Rows(), m.Area, cfg.Heuristics)
		fascia := heuristics.EstimateFascia(m.Box, cfg.Heuristics)
		a.Measurement = m
		a.Arch = &arch
		a.Fascia = &fascia
	}
	a.Load = heuristics.Summarize(pressure.Intensities(), cfg.Heuristics)
	a.Overlay = RenderContours(frame, a.Contours, a.Measurement, a.Arch)

	return a, nil
}
