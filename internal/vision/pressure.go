package vision

import (
	"image/color"

	"gocv.io/x/gocv"
)

// PressureMap is a color-mapped view of grayscale intensity. It is a visual
// proxy only: no force sensor is involved and the colors are not a pressure
// reading.
type PressureMap struct {
	// Intensity is the min-max stretched single-channel image.
	Intensity gocv.Mat
	// Color is Intensity passed through the blue -> green -> red ramp.
	Color gocv.Mat
}

// Close releases both Mats.
func (p *PressureMap) Close() {
	p.Intensity.Close()
	p.Color.Close()
}

// Intensities returns a copy of the stretched intensity values in row-major order.
func (p *PressureMap) Intensities() []uint8 {
	return p.Intensity.ToBytes()
}

// MapPressure stretches gray to the full 0..255 range and applies the color
// ramp. A constant image has no range to stretch and keeps its value, so an
// all-black frame maps to the low end of the ramp and an all-white frame to
// the high end. The output has the same dimensions as the input.
func MapPressure(gray gocv.Mat) (PressureMap, error) {
	if gray.Empty() {
		return PressureMap{}, ErrEmptyFrame
	}

	src := gray
	if gray.Channels() != 1 {
		g, err := toGray(gray)
		if err != nil {
			return PressureMap{}, err
		}
		defer g.Close()
		src = g
	}

	lo, hi := byteRange(src.ToBytes())

	intensity := gocv.NewMat()
	if hi > lo {
		gocv.Normalize(src, &intensity, 0, 255, gocv.NormMinMax)
	} else {
		src.CopyTo(&intensity)
	}

	colored := gocv.NewMat()
	gocv.ApplyColorMap(intensity, &colored, gocv.ColormapJet)

	return PressureMap{Intensity: intensity, Color: colored}, nil
}

// RampColor returns the ramp color for intensity v.
func RampColor(v uint8) color.RGBA {
	px := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(float64(v), 0, 0, 0), 1, 1, gocv.MatTypeCV8UC1)
	defer px.Close()

	out := gocv.NewMat()
	defer out.Close()
	gocv.ApplyColorMap(px, &out, gocv.ColormapJet)

	bgr := out.GetVecbAt(0, 0)
	return color.RGBA{R: bgr[2], G: bgr[1], B: bgr[0], A: 255}
}

func byteRange(data []byte) (lo, hi uint8) {
	if len(data) == 0 {
		return 0, 0
	}
	lo, hi = data[0], data[0]
	for _, v := range data[1:] {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	return lo, hi
}
