// Package testdata builds synthetic camera frames for tests.
package testdata

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

// Background and foreground levels used by the synthetic scenes.
const (
	Bright = 220
	Dark   = 40
)

// UniformFrame returns a BGR frame where every pixel has the given level.
func UniformFrame(rows, cols int, level uint8) *gocv.Mat {
	v := float64(level)
	mat := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(v, v, v, 0), rows, cols, gocv.MatTypeCV8UC3)
	return &mat
}

// DiskFrame returns a bright BGR frame with one filled dark disk.
func DiskFrame(rows, cols int, center image.Point, radius int) *gocv.Mat {
	frame := UniformFrame(rows, cols, Bright)
	gocv.Circle(frame, center, radius, gray(Dark), -1)
	return frame
}

// FootFrame returns a bright BGR frame with a dark, upright ellipse roughly
// shaped like a sole seen from below.
func FootFrame(rows, cols int) *gocv.Mat {
	frame := UniformFrame(rows, cols, Bright)
	center := image.Pt(cols/2, rows/2)
	axes := image.Pt(cols/8, rows/3)
	gocv.Ellipse(frame, center, axes, 0, 0, 360, gray(Dark), -1)
	return frame
}

// DiskMask returns a single-channel binary mask with one filled disk of 255.
func DiskMask(rows, cols int, center image.Point, radius int) *gocv.Mat {
	mask := gocv.NewMatWithSize(rows, cols, gocv.MatTypeCV8UC1)
	mask.SetTo(gocv.NewScalar(0, 0, 0, 0))
	gocv.Circle(&mask, center, radius, gray(255), -1)
	return &mask
}

// CloseAll releases every frame.
func CloseAll(frames ...*gocv.Mat) {
	for _, f := range frames {
		if f != nil {
			f.Close()
		}
	}
}

func gray(level uint8) color.RGBA {
	return color.RGBA{R: level, G: level, B: level, A: 0}
}
