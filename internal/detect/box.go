package detect

import (
	"encoding/json"
	"fmt"
)

// Box is the canonical axis-aligned box: top-left corner plus width and height
type Box struct {
	X, Y, W, H float64
}

// Area returns W*H, or 0 for degenerate boxes
func (b Box) Area() float64 {
	if b.W <= 0 || b.H <= 0 {
		return 0
	}
	return b.W * b.H
}

// MarshalJSON encodes the box as [x, y, w, h]
func (b Box) MarshalJSON() ([]byte, error) {
	return json.Marshal([4]float64{b.X, b.Y, b.W, b.H})
}

// UnmarshalJSON decodes a [x, y, w, h] array
func (b *Box) UnmarshalJSON(data []byte) error {
	var arr [4]float64
	if err := json.Unmarshal(data, &arr); err != nil {
		return fmt.Errorf("bbox must be [x, y, w, h]: %w", err)
	}
	*b = Box{X: arr[0], Y: arr[1], W: arr[2], H: arr[3]}
	return nil
}

// BoundingBox is a box in whichever convention a detector reports.
// The variants are Corner, Center and Edges; Normalize converts any of them.
type BoundingBox interface {
	boundingBox()
}

// Corner is a top-left anchored box
type Corner struct {
	X, Y, W, H float64
}

// Center is a box anchored at its centre point
type Center struct {
	CX, CY, W, H float64
}

// Edges is a box given by its min/max coordinates
type Edges struct {
	XMin, YMin, XMax, YMax float64
}

func (Corner) boundingBox() {}
func (Center) boundingBox() {}
func (Edges) boundingBox()  {}

// Normalize converts any bounding-box variant into canonical corner form
func Normalize(b BoundingBox) Box {
	switch v := b.(type) {
	case Corner:
		return Box{X: v.X, Y: v.Y, W: v.W, H: v.H}
	case Center:
		return Box{X: v.CX - v.W/2, Y: v.CY - v.H/2, W: v.W, H: v.H}
	case Edges:
		return Box{X: v.XMin, Y: v.YMin, W: v.XMax - v.XMin, H: v.YMax - v.YMin}
	default:
		return Box{}
	}
}

// IoU returns intersection-over-union of two boxes.
// Returns 0 when the boxes do not overlap or either has zero area.
func IoU(a, b Box) float64 {
	areaA, areaB := a.Area(), b.Area()
	if areaA == 0 || areaB == 0 {
		return 0
	}

	x1 := max(a.X, b.X)
	y1 := max(a.Y, b.Y)
	x2 := min(a.X+a.W, b.X+b.W)
	y2 := min(a.Y+a.H, b.Y+b.H)
	if x2 <= x1 || y2 <= y1 {
		return 0
	}

	inter := (x2 - x1) * (y2 - y1)
	return inter / (areaA + areaB - inter)
}
