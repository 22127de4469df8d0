// Package bbox provides pixel-space bounding box arithmetic shared by the
// cropping and hint-extraction stages, plus conversion into the
// resolution-independent [0,1000] coordinate space reported to downstream
// consumers.
package bbox

import (
	"fmt"
	"image"
	"math"
)

// NormMax is the upper bound of the normalized coordinate space.
const NormMax = 1000

// Box is an axis-aligned, half-open pixel rectangle: x0 <= x < x1, y0 <= y < y1.
type Box struct {
	X0 int `json:"x0"`
	Y0 int `json:"y0"`
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
}

// New constructs a Box ensuring coordinate ordering.
func New(x0, y0, x1, y1 int) Box {
	if x0 > x1 {
		x0, x1 = x1, x0
	}
	if y0 > y1 {
		y0, y1 = y1, y0
	}
	return Box{X0: x0, Y0: y0, X1: x1, Y1: y1}
}

// FromRect converts an image.Rectangle.
func FromRect(r image.Rectangle) Box {
	return Box{X0: r.Min.X, Y0: r.Min.Y, X1: r.Max.X, Y1: r.Max.Y}
}

// Rect converts to an image.Rectangle.
func (b Box) Rect() image.Rectangle {
	return image.Rect(b.X0, b.Y0, b.X1, b.Y1)
}

// Width returns the box width in pixels.
func (b Box) Width() int { return b.X1 - b.X0 }

// Height returns the box height in pixels.
func (b Box) Height() int { return b.Y1 - b.Y0 }

// Empty reports whether the box has zero or negative area.
func (b Box) Empty() bool { return b.X1 <= b.X0 || b.Y1 <= b.Y0 }

// Validate returns an error unless x0 < x1 and y0 < y1.
func (b Box) Validate() error {
	if b.Empty() {
		return fmt.Errorf("degenerate box (%d,%d)-(%d,%d)", b.X0, b.Y0, b.X1, b.Y1)
	}
	return nil
}

// Union returns the smallest box containing both b and o. A union with an
// empty box yields the other operand.
func (b Box) Union(o Box) Box {
	if b.Empty() {
		return o
	}
	if o.Empty() {
		return b
	}
	return Box{
		X0: minInt(b.X0, o.X0),
		Y0: minInt(b.Y0, o.Y0),
		X1: maxInt(b.X1, o.X1),
		Y1: maxInt(b.Y1, o.Y1),
	}
}

// Pad expands the box by margin on every side. Negative margins shrink it.
func (b Box) Pad(margin int) Box {
	return Box{X0: b.X0 - margin, Y0: b.Y0 - margin, X1: b.X1 + margin, Y1: b.Y1 + margin}
}

// Clamp restricts the box to lie within bounds.
func (b Box) Clamp(bounds Box) Box {
	out := Box{
		X0: clampInt(b.X0, bounds.X0, bounds.X1),
		Y0: clampInt(b.Y0, bounds.Y0, bounds.Y1),
		X1: clampInt(b.X1, bounds.X0, bounds.X1),
		Y1: clampInt(b.Y1, bounds.Y0, bounds.Y1),
	}
	if out.X1 < out.X0 {
		out.X1 = out.X0
	}
	if out.Y1 < out.Y0 {
		out.Y1 = out.Y0
	}
	return out
}

// ContainedIn reports whether b lies fully inside bounds.
func (b Box) ContainedIn(bounds Box) bool {
	return b.X0 >= bounds.X0 && b.Y0 >= bounds.Y0 && b.X1 <= bounds.X1 && b.Y1 <= bounds.Y1
}

// Scale multiplies all coordinates by the given factors, rounding outward so
// the scaled box never loses covered pixels.
func (b Box) Scale(sx, sy float64) Box {
	return Box{
		X0: int(math.Floor(float64(b.X0) * sx)),
		Y0: int(math.Floor(float64(b.Y0) * sy)),
		X1: int(math.Ceil(float64(b.X1) * sx)),
		Y1: int(math.Ceil(float64(b.Y1) * sy)),
	}
}

// NormBox is a bounding box in the [0,1000] integer coordinate space, portable
// across rendering scales.
type NormBox struct {
	X0 int `json:"x0"`
	Y0 int `json:"y0"`
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
}

// Normalize maps a pixel box into the [0,1000] space by linear scaling against
// the given image dimensions. Results are rounded and clamped so rounding or
// edge overflow can never leave the space.
func (b Box) Normalize(width, height int) NormBox {
	if width <= 0 || height <= 0 {
		return NormBox{}
	}
	norm := func(v, extent int) int {
		n := int(math.Round(float64(v) * NormMax / float64(extent)))
		return clampInt(n, 0, NormMax)
	}
	return NormBox{
		X0: norm(b.X0, width),
		Y0: norm(b.Y0, height),
		X1: norm(b.X1, width),
		Y1: norm(b.Y1, height),
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
