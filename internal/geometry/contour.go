// Package geometry measures foot silhouettes from their traced boundaries.
package geometry

import (
	"image"
	"math"
)

// Contour is a closed boundary curve. The last point connects back to the
// first one.
type Contour []image.Point

// ContourSet is an ordered sequence of external contours, in the order the
// tracer encountered them.
type ContourSet []Contour

// Area returns the enclosed area of the contour using the shoelace formula.
// Orientation is ignored; fewer than three points enclose nothing.
func Area(c Contour) float64 {
	n := len(c)
	if n < 3 {
		return 0
	}

	var sum int64
	for i := 0; i < n; i++ {
		p := c[i]
		q := c[(i+1)%n]
		sum += int64(p.X)*int64(q.Y) - int64(q.X)*int64(p.Y)
	}

	return math.Abs(float64(sum)) / 2
}

// Perimeter returns the cumulative edge length of the closed path.
func Perimeter(c Contour) float64 {
	n := len(c)
	if n < 2 {
		return 0
	}

	var total float64
	for i := 0; i < n; i++ {
		p := c[i]
		q := c[(i+1)%n]
		total += math.Hypot(float64(q.X-p.X), float64(q.Y-p.Y))
	}

	return total
}

// BoundingBox returns the axis-aligned box covering every contour pixel.
// The box is pixel-inclusive: a single point yields a 1x1 box.
func BoundingBox(c Contour) image.Rectangle {
	if len(c) == 0 {
		return image.Rectangle{}
	}

	minX, minY := c[0].X, c[0].Y
	maxX, maxY := minX, minY
	for _, p := range c[1:] {
		minX = min(minX, p.X)
		minY = min(minY, p.Y)
		maxX = max(maxX, p.X)
		maxY = max(maxY, p.Y)
	}

	return image.Rect(minX, minY, maxX+1, maxY+1)
}

// Dominant returns the contour with the largest enclosed area along with its
// index. Among equal areas the earliest contour wins. ok is false for an
// empty set.
func Dominant(set ContourSet) (c Contour, index int, ok bool) {
	if len(set) == 0 {
		return nil, -1, false
	}

	index = 0
	best := Area(set[0])
	for i := 1; i < len(set); i++ {
		if a := Area(set[i]); a > best {
			best = a
			index = i
		}
	}

	return set[index], index, true
}
