package common

import (
	"encoding/json"
	"fmt"
	"image"
)

// BoundingBox represents a bounding box with its label, confidence, and coordinates.
//
// Coordinates are floating-point pixels in the original image space. A box is
// scoped to a single detection request.
type BoundingBox struct {
	Label          string
	Confidence     float32
	X1, Y1, X2, Y2 float32
}

// String formats the bounding box information for display.
//
// Returns:
// - A formatted string containing object class, confidence, and coordinates.
//
// @example
// box := BoundingBox{Label: "person", Confidence: 0.95, X1: 100, Y1: 100, X2: 200, Y2: 300}
// fmt.Println(box.String()) // Object person (confidence 0.950000): (100.00, 100.00), (200.00, 300.00)
func (b *BoundingBox) String() string {
	return fmt.Sprintf("Object %s (confidence %f): (%.2f, %.2f), (%.2f, %.2f)",
		b.Label, b.Confidence, b.X1, b.Y1, b.X2, b.Y2)
}

// ToRect converts the bounding box to an image.Rectangle.
//
// This loses precision, but the box has already been scaled to the original
// image's dimensions, so only fractional pixels around the edges are dropped.
//
// Returns:
// - An image.Rectangle with canonicalized coordinates.
func (b *BoundingBox) ToRect() image.Rectangle {
	return image.Rect(int(b.X1), int(b.Y1), int(b.X2), int(b.Y2)).Canon()
}

// Area returns the area of the box in square pixels.
func (b *BoundingBox) Area() float32 {
	return Area(*b)
}

// Intersection calculates the intersection area between two bounding boxes.
//
// @example
// box1 := BoundingBox{X1: 0, Y1: 0, X2: 100, Y2: 100}
// box2 := BoundingBox{X1: 50, Y1: 50, X2: 150, Y2: 150}
// area := box1.Intersection(&box2) // 2500 (50x50 overlap)
func (b *BoundingBox) Intersection(other *BoundingBox) float32 {
	return IntersectionArea(*b, *other)
}

// Union calculates the union area between two bounding boxes.
//
// @example
// box1 := BoundingBox{X1: 0, Y1: 0, X2: 100, Y2: 100}
// box2 := BoundingBox{X1: 50, Y1: 50, X2: 150, Y2: 150}
// area := box1.Union(&box2) // 17500
func (b *BoundingBox) Union(other *BoundingBox) float32 {
	return UnionArea(*b, *other, IntersectionArea(*b, *other))
}

// IoU calculates the Intersection over Union between two bounding boxes.
//
// This metric is used for Non-Maximum Suppression (NMS) to remove duplicate detections.
//
// @example
// box1 := BoundingBox{X1: 0, Y1: 0, X2: 100, Y2: 100}
// box2 := BoundingBox{X1: 50, Y1: 50, X2: 150, Y2: 150}
// iou := box1.IoU(&box2) // ~0.143 (2500/17500)
func (b *BoundingBox) IoU(other *BoundingBox) float32 {
	return IoU(*b, *other)
}

// MarshalJSON encodes the box as [x1, y1, x2, y2, label, confidence], the
// array-of-arrays shape returned by the detect endpoint.
func (b BoundingBox) MarshalJSON() ([]byte, error) {
	return json.Marshal([]interface{}{b.X1, b.Y1, b.X2, b.Y2, b.Label, b.Confidence})
}
