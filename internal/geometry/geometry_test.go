package geometry

import (
	"image"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func square(x, y, side int) Contour {
	return Contour{
		{X: x, Y: y},
		{X: x + side, Y: y},
		{X: x + side, Y: y + side},
		{X: x, Y: y + side},
	}
}

func TestArea(t *testing.T) {
	tests := []struct {
		name string
		c    Contour
		want float64
	}{
		{name: "empty", c: nil, want: 0},
		{name: "segment", c: Contour{{0, 0}, {5, 5}}, want: 0},
		{name: "unit square", c: square(0, 0, 1), want: 1},
		{name: "offset square", c: square(10, 20, 30), want: 900},
		{name: "triangle", c: Contour{{0, 0}, {4, 0}, {0, 3}}, want: 6},
		{
			name: "clockwise square",
			c:    Contour{{0, 0}, {0, 10}, {10, 10}, {10, 0}},
			want: 100,
		},
		{
			name: "concave L",
			c:    Contour{{0, 0}, {4, 0}, {4, 1}, {1, 1}, {1, 4}, {0, 4}},
			want: 7,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Area(tt.c), 1e-9)
		})
	}
}

func TestPerimeter(t *testing.T) {
	assert.Equal(t, 0.0, Perimeter(nil))
	assert.Equal(t, 0.0, Perimeter(Contour{{3, 3}}))
	assert.InDelta(t, 40.0, Perimeter(square(0, 0, 10)), 1e-9)
	assert.InDelta(t, 12.0, Perimeter(Contour{{0, 0}, {4, 0}, {0, 3}}), 1e-9)
	// A two-point path is closed: out and back.
	assert.InDelta(t, 2*math.Sqrt2, Perimeter(Contour{{0, 0}, {1, 1}}), 1e-9)
}

func TestBoundingBox(t *testing.T) {
	box := BoundingBox(Contour{{5, 7}, {15, 7}, {15, 27}, {5, 27}})
	assert.Equal(t, image.Rect(5, 7, 16, 28), box)
	assert.Equal(t, 11, box.Dx())
	assert.Equal(t, 21, box.Dy())

	assert.Equal(t, image.Rect(3, 4, 4, 5), BoundingBox(Contour{{3, 4}}))
	assert.True(t, BoundingBox(nil).Empty())
}

func TestDominant_Empty(t *testing.T) {
	c, idx, ok := Dominant(nil)
	assert.False(t, ok)
	assert.Equal(t, -1, idx)
	assert.Nil(t, c)
}

func TestDominant_LargestWins(t *testing.T) {
	set := ContourSet{square(0, 0, 5), square(100, 100, 20), square(50, 50, 10)}

	c, idx, ok := Dominant(set)
	require.True(t, ok)
	assert.Equal(t, 1, idx)
	assert.Equal(t, set[1], c)
}

func TestDominant_TieGoesToFirst(t *testing.T) {
	first := square(0, 0, 10)
	second := square(200, 200, 10)
	set := ContourSet{square(400, 0, 2), first, second}

	for i := 0; i < 10; i++ {
		_, idx, ok := Dominant(set)
		require.True(t, ok)
		assert.Equal(t, 1, idx, "equal areas must resolve to the earliest contour")
	}
}

func TestMeasure(t *testing.T) {
	t.Run("empty scene yields no measurement", func(t *testing.T) {
		m, ok := Measure(ContourSet{})
		assert.False(t, ok)
		assert.Nil(t, m)
	})

	t.Run("dominant contour", func(t *testing.T) {
		set := ContourSet{square(0, 0, 3), {{10, 10}, {50, 10}, {50, 90}, {10, 90}}}

		m, ok := Measure(set)
		require.True(t, ok)
		assert.Equal(t, 41, m.Width)
		assert.Equal(t, 81, m.Height)
		assert.InDelta(t, 3200.0, m.Area, 1e-9)
		assert.InDelta(t, 240.0, m.Perimeter, 1e-9)
		assert.Equal(t, 1, m.Index)
		assert.GreaterOrEqual(t, m.Area, 0.0)
		assert.GreaterOrEqual(t, m.Perimeter, 0.0)
	})
}
