// Package common - Bounding boxes and the box geometry shared by decoding and suppression.
package common

import "github.com/chewxy/math32"

// Area returns (x2-x1)*(y2-y1) for the box.
//
// The explicit conversions keep each product rounded to float32 so the
// compiler cannot fuse it into a neighbouring add, which keeps IoU(a, a) == 1.
func Area(b BoundingBox) float32 {
	return float32((b.X2 - b.X1) * (b.Y2 - b.Y1))
}

// IntersectionArea returns the overlapping area of a and b, or 0 when they do
// not overlap.
func IntersectionArea(a, b BoundingBox) float32 {
	w := math32.Max(0, math32.Min(a.X2, b.X2)-math32.Max(a.X1, b.X1))
	h := math32.Max(0, math32.Min(a.Y2, b.Y2)-math32.Max(a.Y1, b.Y1))
	return float32(w * h)
}

// UnionArea returns area(a) + area(b) - intersection.
func UnionArea(a, b BoundingBox, intersection float32) float32 {
	return Area(a) + Area(b) - intersection
}

// IoU returns the Intersection over Union of a and b.
//
// The union is only zero when both boxes are degenerate, in which case the
// overlap is reported as 0 instead of dividing by zero.
//
// Arguments:
//   - a: The first box.
//   - b: The second box.
//
// Returns:
//   - float32: A value between 0.0 and 1.0.
func IoU(a, b BoundingBox) float32 {
	inter := IntersectionArea(a, b)
	union := UnionArea(a, b, inter)
	if union <= 0 {
		return 0
	}
	return inter / union
}
