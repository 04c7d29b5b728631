package vision

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/ayusman/podoscan/internal/geometry"
	"github.com/ayusman/podoscan/internal/heuristics"
)

// PressureCaption is stamped on every displayed pressure view.
const PressureCaption = "intensity proxy - not a pressure reading"

var (
	contourColor = color.RGBA{R: 0, G: 255, B: 0, A: 0}
	textColor    = color.RGBA{R: 0, G: 0, B: 255, A: 0}
	captionColor = color.RGBA{R: 255, G: 255, B: 255, A: 0}
)

// RenderContours draws every contour onto a copy of frame and, when a
// measurement exists, annotates it with the dimensions and the arch label.
// The caller closes the returned Mat.
func RenderContours(frame gocv.Mat, set geometry.ContourSet, m *geometry.Measurement, arch *heuristics.ArchClassification) gocv.Mat {
	overlay := gocv.NewMat()
	if frame.Channels() == 1 {
		gocv.CvtColor(frame, &overlay, gocv.ColorGrayToBGR)
	} else {
		frame.CopyTo(&overlay)
	}

	if len(set) > 0 {
		pv := toPointsVector(set)
		gocv.DrawContours(&overlay, pv, -1, contourColor, 2)
		pv.Close()
	}

	if m == nil {
		return overlay
	}

	lines := []string{
		fmt.Sprintf("Width: %dpx", m.Width),
		fmt.Sprintf("Height: %dpx", m.Height),
		fmt.Sprintf("Area: %.1fpx^2", m.Area),
	}
	if arch != nil {
		lines = append(lines, fmt.Sprintf("Arch: %s", arch.Category))
	}
	for i, line := range lines {
		gocv.PutText(&overlay, line, image.Pt(10, 30*(i+1)), gocv.FontHersheySimplex, 0.7, textColor, 2)
	}

	return overlay
}

// RenderPressureView returns a display copy of the pressure map carrying the
// proxy caption. Persisted pressure artifacts are the uncaptioned map.
func RenderPressureView(p PressureMap) gocv.Mat {
	view := p.Color.Clone()
	gocv.PutText(&view, PressureCaption, image.Pt(10, view.Rows()-12), gocv.FontHersheySimplex, 0.5, captionColor, 1)
	return view
}

// EncodeJPEG encodes m for hand-off to a rendering consumer.
func EncodeJPEG(m gocv.Mat) ([]byte, error) {
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, m)
	if err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	defer buf.Close()

	return append([]byte(nil), buf.GetBytes()...), nil
}
