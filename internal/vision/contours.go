package vision

import (
	"image"

	"gocv.io/x/gocv"

	"github.com/ayusman/podoscan/internal/geometry"
)

// ExtractContours traces the outer boundaries of the foreground regions of a
// binary mask. Holes are not reported and collinear boundary pixels are
// collapsed. A mask without foreground yields an empty set.
func ExtractContours(mask gocv.Mat) geometry.ContourSet {
	if mask.Empty() || gocv.CountNonZero(mask) == 0 {
		return geometry.ContourSet{}
	}

	contours := gocv.FindContours(mask, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	points := contours.ToPoints()
	set := make(geometry.ContourSet, 0, len(points))
	for _, pts := range points {
		set = append(set, geometry.Contour(pts))
	}

	return set
}

// toPointsVector converts a contour set back to the native representation
// used by the drawing functions. The caller closes the result.
func toPointsVector(set geometry.ContourSet) gocv.PointsVector {
	pts := make([][]image.Point, len(set))
	for i, c := range set {
		pts[i] = c
	}
	return gocv.NewPointsVectorFromPoints(pts)
}
