// Package heuristics derives coarse foot metrics from contour geometry and the
// intensity proxy map.
//
// Every rule in this package is a placeholder heuristic. The thresholds are
// configurable and carry no clinical derivation; results must not be read as a
// biomechanical or clinical assessment.
package heuristics

import (
	"image"

	"gonum.org/v1/gonum/stat"
)

// Config holds the heuristic constants.
type Config struct {
	// ArchHeightDivisor splits the frame height into the arch height term.
	ArchHeightDivisor float64
	// FlatDivisor scales the box height for the flat boundary.
	FlatDivisor float64
	// CavusDivisor scales the box height for the cavus boundary.
	CavusDivisor float64
	// FasciaRatio is the fascia length as a fraction of the box height.
	FasciaRatio float64
	// MetatarsalThreshold is the intensity above which a pixel counts as loaded.
	MetatarsalThreshold uint8
}

// DefaultConfig returns the placeholder constants. None of them is clinically validated.
func DefaultConfig() Config {
	return Config{
		ArchHeightDivisor:   3,
		FlatDivisor:         6,
		CavusDivisor:        3,
		FasciaRatio:         0.8,
		MetatarsalThreshold: 200,
	}
}

// ArchCategory buckets foot curvature.
type ArchCategory string

// Arch categories.
const (
	ArchFlat   ArchCategory = "flat"
	ArchNormal ArchCategory = "normal"
	ArchCavus  ArchCategory = "cavus"
)

// ArchClassification is the outcome of ClassifyArch.
type ArchClassification struct {
	Category   ArchCategory `json:"category"`
	Area       float64      `json:"area"`
	ArchHeight float64      `json:"arch_height"`
}

// ClassifyArch compares the arch height term (frameHeight / ArchHeightDivisor)
// against the bounding box height scaled by 1/FlatDivisor and 1/CavusDivisor.
// Both comparisons are strict, so a value sitting exactly on either boundary
// classifies as normal.
func ClassifyArch(box image.Rectangle, frameHeight int, area float64, cfg Config) ArchClassification {
	archHeight := float64(frameHeight) / cfg.ArchHeightDivisor
	boxHeight := float64(box.Dy())

	category := ArchNormal
	switch {
	case archHeight < boxHeight/cfg.FlatDivisor:
		category = ArchFlat
	case archHeight > boxHeight/cfg.CavusDivisor:
		category = ArchCavus
	}

	return ArchClassification{
		Category:   category,
		Area:       area,
		ArchHeight: archHeight,
	}
}

// EstimateFascia returns the estimated plantar fascia length in pixels.
func EstimateFascia(box image.Rectangle, cfg Config) float64 {
	return float64(box.Dy()) * cfg.FasciaRatio
}

// CountMetatarsalLoad counts intensities strictly above the metatarsal threshold.
func CountMetatarsalLoad(intensity []uint8, cfg Config) int {
	n := 0
	for _, v := range intensity {
		if v > cfg.MetatarsalThreshold {
			n++
		}
	}
	return n
}

// LoadSummary aggregates the intensity proxy of one frame.
type LoadSummary struct {
	HighLoadPixels int     `json:"high_load_pixels"`
	Coverage       float64 `json:"coverage"`
	Mean           float64 `json:"mean"`
	StdDev         float64 `json:"std_dev"`
}

// Summarize computes the metatarsal count together with simple intensity
// statistics. An empty input yields a zero summary.
func Summarize(intensity []uint8, cfg Config) LoadSummary {
	if len(intensity) == 0 {
		return LoadSummary{}
	}

	values := make([]float64, len(intensity))
	for i, v := range intensity {
		values[i] = float64(v)
	}
	mean, std := stat.PopMeanStdDev(values, nil)

	high := CountMetatarsalLoad(intensity, cfg)
	return LoadSummary{
		HighLoadPixels: high,
		Coverage:       float64(high) / float64(len(intensity)),
		Mean:           mean,
		StdDev:         std,
	}
}
