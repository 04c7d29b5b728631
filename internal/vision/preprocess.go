// Package vision runs the per-camera image pipeline: preprocessing, contour
// extraction, the intensity proxy map and the overlays shown to the operator.
package vision

import (
	"errors"
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// ErrEmptyFrame is returned when a stage receives a frame without pixels.
var ErrEmptyFrame = errors.New("frame is empty")

// AdaptiveMethod selects how the local threshold is computed.
type AdaptiveMethod string

const (
	// AdaptiveGaussian weights the neighborhood with a Gaussian window.
	AdaptiveGaussian AdaptiveMethod = "gaussian"
	// AdaptiveMean uses the plain box mean of the neighborhood.
	AdaptiveMean AdaptiveMethod = "mean"
)

// Params configures the preprocessing stage.
type Params struct {
	BlurKernel int
	BlockSize  int
	BiasC      float64
	Adaptive   AdaptiveMethod
}

// DefaultParams returns a 5x5 blur with an 11x11 adaptive window and a bias of 2.
func DefaultParams() Params {
	return Params{
		BlurKernel: 5,
		BlockSize:  11,
		BiasC:      2,
		Adaptive:   AdaptiveGaussian,
	}
}

// Preprocessed holds the outputs of Preprocess. Both Mats belong to the caller.
type Preprocessed struct {
	Gray gocv.Mat
	Mask gocv.Mat
}

// Close releases both Mats.
func (p *Preprocessed) Close() {
	p.Gray.Close()
	p.Mask.Close()
}

// Preprocess converts frame to grayscale, smooths it and binarizes it with an
// adaptive threshold. The threshold is inverted: pixels darker than their
// neighborhood mean minus BiasC become foreground (255).
//
// Lighting varies between captures, so the threshold is always local.
func Preprocess(frame gocv.Mat, p Params) (Preprocessed, error) {
	if frame.Empty() {
		return Preprocessed{}, ErrEmptyFrame
	}

	gray, err := toGray(frame)
	if err != nil {
		return Preprocessed{}, err
	}

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(gray, &blurred, image.Point{X: p.BlurKernel, Y: p.BlurKernel}, 0, 0, gocv.BorderDefault)

	method := gocv.AdaptiveThresholdGaussian
	if p.Adaptive == AdaptiveMean {
		method = gocv.AdaptiveThresholdMean
	}

	mask := gocv.NewMat()
	gocv.AdaptiveThreshold(blurred, &mask, 255, method, gocv.ThresholdBinaryInv, p.BlockSize, float32(p.BiasC))

	return Preprocessed{Gray: gray, Mask: mask}, nil
}

// toGray returns a single-channel 8-bit copy of frame using the standard
// luminance weights.
func toGray(frame gocv.Mat) (gocv.Mat, error) {
	gray := gocv.NewMat()

	switch frame.Channels() {
	case 1:
		frame.CopyTo(&gray)
	case 3:
		gocv.CvtColor(frame, &gray, gocv.ColorBGRToGray)
	case 4:
		gocv.CvtColor(frame, &gray, gocv.ColorBGRAToGray)
	default:
		gray.Close()
		return gocv.Mat{}, fmt.Errorf("unsupported channel count %d", frame.Channels())
	}

	return gray, nil
}
