// internal/layout/geometry.go
package layout

import (
	"fmt"
	"math"
)

// -- Core Structures: Box Model and Dimensions --

// Axis represents a layout direction.
type Axis int

const (
	// Horizontal axis for layout calculations.
	Horizontal Axis = iota
	// Vertical axis for layout calculations.
	Vertical
)

// Other returns the perpendicular axis.
func (a Axis) Other() Axis {
	if a == Horizontal {
		return Vertical
	}
	return Horizontal
}

// Direction is the inline base direction a subtree is solved in.
type Direction int

const (
	DirectionInherit Direction = iota
	LTR
	RTL
)

func (d Direction) String() string {
	switch d {
	case LTR:
		return "ltr"
	case RTL:
		return "rtl"
	default:
		return "inherit"
	}
}

func (d Direction) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Direction) UnmarshalText(text []byte) error {
	v, ok := ParseDirection(string(text))
	if !ok {
		return fmt.Errorf("layout: unknown direction %q", text)
	}
	*d = v
	return nil
}

// ParseDirection accepts "ltr", "rtl" and "inherit" (or empty).
func ParseDirection(s string) (Direction, bool) {
	switch s {
	case "ltr", "LTR":
		return LTR, true
	case "rtl", "RTL":
		return RTL, true
	case "", "inherit":
		return DirectionInherit, true
	}
	return DirectionInherit, false
}

type Rect struct {
	X, Y, Width, Height float64
}

// ExpandedBy returns a new rectangle expanded by the edge sizes.
func (r Rect) ExpandedBy(e Edges) Rect {
	return Rect{
		X:      r.X - e.Left,
		Y:      r.Y - e.Top,
		Width:  r.Width + e.Left + e.Right,
		Height: r.Height + e.Top + e.Bottom,
	}
}

// ShrunkBy is the inverse of ExpandedBy. Sizes never go negative.
func (r Rect) ShrunkBy(e Edges) Rect {
	return Rect{
		X:      r.X + e.Left,
		Y:      r.Y + e.Top,
		Width:  math.Max(0, r.Width-e.Left-e.Right),
		Height: math.Max(0, r.Height-e.Top-e.Bottom),
	}
}

// Edges holds resolved per-side sizes in points.
type Edges struct {
	Top, Right, Bottom, Left float64
}

// Sum returns the total size along an axis.
func (e Edges) Sum(axis Axis) float64 {
	if axis == Horizontal {
		return e.Left + e.Right
	}
	return e.Top + e.Bottom
}

// Start is the left or top edge.
func (e Edges) Start(axis Axis) float64 {
	if axis == Horizontal {
		return e.Left
	}
	return e.Top
}

// End is the right or bottom edge.
func (e Edges) End(axis Axis) float64 {
	if axis == Horizontal {
		return e.Right
	}
	return e.Bottom
}

func (e Edges) Add(o Edges) Edges {
	return Edges{Top: e.Top + o.Top, Right: e.Right + o.Right, Bottom: e.Bottom + o.Bottom, Left: e.Left + o.Left}
}

// Box is the solved geometry of one layout node. X and Y locate the border box
// relative to the parent's border box; Width and Height are the border-box size.
type Box struct {
	X, Y          float64
	Width, Height float64
	Margin        Edges
	Padding       Edges
	Border        Edges
	Direction     Direction
}

// BorderBox returns the border-box rectangle in parent coordinates.
func (b Box) BorderBox() Rect {
	return Rect{X: b.X, Y: b.Y, Width: b.Width, Height: b.Height}
}

// MarginBox returns the rectangle enclosing the margin area.
func (b Box) MarginBox() Rect {
	return b.BorderBox().ExpandedBy(b.Margin)
}

// ContentBox returns the content rectangle in parent coordinates.
func (b Box) ContentBox() Rect {
	return b.BorderBox().ShrunkBy(b.Border.Add(b.Padding))
}

// Size returns the component along an axis.
func (b Box) Size(axis Axis) float64 {
	if axis == Horizontal {
		return b.Width
	}
	return b.Height
}

// Result summarises one Solve call.
type Result struct {
	Width     float64   `json:"width"`
	Height    float64   `json:"height"`
	Direction Direction `json:"direction"`
	Nodes     int       `json:"nodes"`
}

// -- size helpers --

// undefined marks an open (unconstrained) size.
var undefined = math.NaN()

func isDefined(v float64) bool { return !math.IsNaN(v) }

// pick returns (main, cross) from (horizontal, vertical) values.
func pick(main Axis, h, v float64) (float64, float64) {
	if main == Horizontal {
		return h, v
	}
	return v, h
}

// unpick is the inverse of pick.
func unpick(main Axis, m, c float64) (h, v float64) {
	if main == Horizontal {
		return m, c
	}
	return c, m
}

func minus(v, d float64) float64 {
	if !isDefined(v) {
		return v
	}
	return math.Max(0, v-d)
}

// clampSize applies optional min/max bounds (NaN disables a bound); the result
// never drops below floor.
func clampSize(v, lo, hi, floor float64) float64 {
	if isDefined(hi) && v > hi {
		v = hi
	}
	if isDefined(lo) && v < lo {
		v = lo
	}
	return math.Max(v, floor)
}
