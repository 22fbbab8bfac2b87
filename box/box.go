package box

import (
	"math"
)

// Corner is a bounding box in (left, top, right, bottom) form with each
// coordinate normalized to [0,1] relative to the image dimensions
type Corner struct {
	Left   float32
	Top    float32
	Right  float32
	Bottom float32
}

// Center is a bounding box in (center x, center y, width, height) form with
// the same normalization as Corner
type Center struct {
	CX float32
	CY float32
	W  float32
	H  float32
}

// Width returns the width of the box
func (c Corner) Width() float32 {
	return c.Right - c.Left
}

// Height returns the height of the box
func (c Corner) Height() float32 {
	return c.Bottom - c.Top
}

// Area returns the area of the box.  Boxes with no positive extent in either
// direction have an area of zero
func (c Corner) Area() float32 {

	w := c.Right - c.Left
	h := c.Bottom - c.Top

	if !(w > 0) || !(h > 0) {
		return 0
	}

	return w * h
}

// Center converts the box to center form
func (c Corner) Center() Center {
	return Center{
		CX: 0.5 * (c.Left + c.Right),
		CY: 0.5 * (c.Top + c.Bottom),
		W:  c.Right - c.Left,
		H:  c.Bottom - c.Top,
	}
}

// IsFinite returns false if any coordinate is NaN or infinite
func (c Corner) IsFinite() bool {
	return isFinite(c.Left) && isFinite(c.Top) &&
		isFinite(c.Right) && isFinite(c.Bottom)
}

// Clamp restricts every coordinate to [0,1] and collapses inverted edges so
// that Left <= Right and Top <= Bottom.  NaN coordinates are clamped to 0
func (c Corner) Clamp() Corner {

	out := Corner{
		Left:   clampUnit(c.Left),
		Top:    clampUnit(c.Top),
		Right:  clampUnit(c.Right),
		Bottom: clampUnit(c.Bottom),
	}

	if out.Right < out.Left {
		out.Right = out.Left
	}

	if out.Bottom < out.Top {
		out.Bottom = out.Top
	}

	return out
}

// Corner converts the box to corner form
func (c Center) Corner() Corner {
	return Corner{
		Left:   c.CX - 0.5*c.W,
		Top:    c.CY - 0.5*c.H,
		Right:  c.CX + 0.5*c.W,
		Bottom: c.CY + 0.5*c.H,
	}
}

// Clamp restricts each of the center and size values to [0,1]
func (c Center) Clamp() Center {
	return Center{
		CX: clampUnit(c.CX),
		CY: clampUnit(c.CY),
		W:  clampUnit(c.W),
		H:  clampUnit(c.H),
	}
}

// IoU calculates the Intersection over Union of two boxes.  The result is 0
// for disjoint boxes and whenever the union has no area, so degenerate and
// non-finite boxes never overlap anything
func IoU(a, b Corner) float32 {

	iw := min(a.Right, b.Right) - max(a.Left, b.Left)
	ih := min(a.Bottom, b.Bottom) - max(a.Top, b.Top)

	if !(iw > 0) || !(ih > 0) {
		return 0
	}

	intersection := iw * ih
	union := a.Area() + b.Area() - intersection

	if !(union > 0) {
		return 0
	}

	iou := intersection / union

	if !isFinite(iou) {
		return 0
	}

	return iou
}

// clampUnit restricts v to [0,1], mapping NaN to 0
func clampUnit(v float32) float32 {

	if !(v > 0) {
		return 0
	}

	if v > 1 {
		return 1
	}

	return v
}

func isFinite(v float32) bool {
	f := float64(v)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
