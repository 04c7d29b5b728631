package geometry

import "image"

// Measurement describes the dominant contour of a frame in pixels.
type Measurement struct {
	Width     int             `json:"width"`
	Height    int             `json:"height"`
	Area      float64         `json:"area"`
	Perimeter float64         `json:"perimeter"`
	Box       image.Rectangle `json:"-"`
	Index     int             `json:"contour_index"`
}

// Measure derives a Measurement from the dominant contour of set.
// An empty set is a legitimate outcome of an empty scene and yields
// (nil, false).
func Measure(set ContourSet) (*Measurement, bool) {
	c, idx, ok := Dominant(set)
	if !ok {
		return nil, false
	}

	box := BoundingBox(c)
	return &Measurement{
		Width:     box.Dx(),
		Height:    box.Dy(),
		Area:      Area(c),
		Perimeter: Perimeter(c),
		Box:       box,
		Index:     idx,
	}, true
}
