// internal/style/properties.go
package style

import (
	"strings"

	"github.com/xkilldash9x/domtree/internal/parser"
	"go.uber.org/zap"
)

// -- Keyword enums --

type Display int

const (
	DisplayFlex Display = iota
	DisplayBlock
	DisplayNone
)

func parseDisplay(v string) Display {
	switch v {
	case "block", "inline-block", "list-item":
		return DisplayBlock
	case "none":
		return DisplayNone
	default:
		return DisplayFlex
	}
}

type PositionType int

const (
	PositionRelative PositionType = iota
	PositionAbsolute
)

func parsePosition(v string) PositionType {
	switch v {
	case "absolute", "fixed":
		return PositionAbsolute
	default:
		return PositionRelative
	}
}

type BoxSizing int

const (
	ContentBox BoxSizing = iota
	BorderBox
)

func parseBoxSizing(v string) BoxSizing {
	if v == "border-box" {
		return BorderBox
	}
	return ContentBox
}

type FlexDirection int

const (
	FlexDirectionColumn FlexDirection = iota
	FlexDirectionColumnReverse
	FlexDirectionRow
	FlexDirectionRowReverse
)

// IsRow reports whether the main axis is horizontal.
func (d FlexDirection) IsRow() bool {
	return d == FlexDirectionRow || d == FlexDirectionRowReverse
}

// IsReverse reports whether items run against the axis.
func (d FlexDirection) IsReverse() bool {
	return d == FlexDirectionRowReverse || d == FlexDirectionColumnReverse
}

func parseFlexDirection(v string) FlexDirection {
	switch v {
	case "row":
		return FlexDirectionRow
	case "row-reverse":
		return FlexDirectionRowReverse
	case "column-reverse":
		return FlexDirectionColumnReverse
	default:
		return FlexDirectionColumn
	}
}

type FlexWrap int

const (
	FlexNoWrap FlexWrap = iota
	FlexWrapValue
	FlexWrapReverse
)

func parseFlexWrap(v string) FlexWrap {
	switch v {
	case "wrap":
		return FlexWrapValue
	case "wrap-reverse":
		return FlexWrapReverse
	default:
		return FlexNoWrap
	}
}

type JustifyContent int

const (
	JustifyFlexStart JustifyContent = iota
	JustifyFlexEnd
	JustifyCenter
	JustifySpaceBetween
	JustifySpaceAround
	JustifySpaceEvenly
)

func parseJustifyContent(v string) JustifyContent {
	switch v {
	case "flex-end", "end":
		return JustifyFlexEnd
	case "center":
		return JustifyCenter
	case "space-between":
		return JustifySpaceBetween
	case "space-around":
		return JustifySpaceAround
	case "space-evenly":
		return JustifySpaceEvenly
	default:
		return JustifyFlexStart
	}
}

// Align is shared by align-items, align-self and align-content.
// AlignAuto is only meaningful for align-self; the space-* values only for align-content.
type Align int

const (
	AlignAuto Align = iota
	AlignStretch
	AlignFlexStart
	AlignCenter
	AlignFlexEnd
	AlignBaseline
	AlignSpaceBetween
	AlignSpaceAround
	AlignSpaceEvenly
)

func parseAlign(v string, fallback Align) Align {
	switch v {
	case "stretch":
		return AlignStretch
	case "flex-start", "start":
		return AlignFlexStart
	case "center":
		return AlignCenter
	case "flex-end", "end":
		return AlignFlexEnd
	case "baseline":
		return AlignBaseline
	case "space-between":
		return AlignSpaceBetween
	case "space-around":
		return AlignSpaceAround
	case "space-evenly":
		return AlignSpaceEvenly
	case "auto":
		return AlignAuto
	default:
		return fallback
	}
}

// -- Layout style --

// LayoutStyle is the box-model and flexbox subset of a computed style, in the form the
// layout backend consumes. Lengths are already resolved except percentages.
type LayoutStyle struct {
	Display   Display
	Position  PositionType
	BoxSizing BoxSizing

	FlexDirection  FlexDirection
	FlexWrap       FlexWrap
	JustifyContent JustifyContent
	AlignItems     Align
	AlignSelf      Align
	AlignContent   Align

	FlexGrow   float64
	FlexShrink float64
	FlexBasis  Dimension

	Width, Height       Dimension
	MinWidth, MinHeight Dimension
	MaxWidth, MaxHeight Dimension

	Margin  Edges
	Padding Edges
	Border  Edges
	Inset   Edges

	RowGap, ColumnGap Dimension
}

// ZeroEdges is an Edges with every side set to zero points.
func ZeroEdges() Edges {
	return Edges{Top: Points(0), Right: Points(0), Bottom: Points(0), Left: Points(0)}
}

// DefaultLayoutStyle mirrors the initial values of a flex item inside a column container.
// Margins, padding, borders and gaps are zero; only the insets stay auto.
func DefaultLayoutStyle() LayoutStyle {
	return LayoutStyle{
		Display:        DisplayFlex,
		FlexDirection:  FlexDirectionColumn,
		JustifyContent: JustifyFlexStart,
		AlignItems:     AlignStretch,
		AlignSelf:      AlignAuto,
		AlignContent:   AlignFlexStart,
		FlexShrink:     1,
		Margin:         ZeroEdges(),
		Padding:        ZeroEdges(),
		Border:         ZeroEdges(),
		RowGap:         Points(0),
		ColumnGap:      Points(0),
	}
}

func lookup(props map[parser.Property]parser.Value, prop string) string {
	return strings.ToLower(strings.TrimSpace(string(props[parser.Property(prop)])))
}

func (e *Engine) buildLayoutStyle(props map[parser.Property]parser.Value, lc lengthContext) LayoutStyle {
	ls := DefaultLayoutStyle()

	if v := lookup(props, "display"); v != "" {
		ls.Display = parseDisplay(v)
	}
	ls.Position = parsePosition(lookup(props, "position"))
	ls.BoxSizing = parseBoxSizing(lookup(props, "box-sizing"))
	if v := lookup(props, "flex-direction"); v != "" {
		ls.FlexDirection = parseFlexDirection(v)
	}
	ls.FlexWrap = parseFlexWrap(lookup(props, "flex-wrap"))
	ls.JustifyContent = parseJustifyContent(lookup(props, "justify-content"))
	ls.AlignItems = parseAlign(lookup(props, "align-items"), AlignStretch)
	if ls.AlignItems == AlignAuto {
		ls.AlignItems = AlignStretch
	}
	ls.AlignSelf = parseAlign(lookup(props, "align-self"), AlignAuto)
	ls.AlignContent = parseAlign(lookup(props, "align-content"), AlignFlexStart)

	number := func(prop string, fallback float64) float64 {
		v := lookup(props, prop)
		if v == "" {
			return fallback
		}
		n, err := parseFloat(v)
		if err != nil || n < 0 {
			e.logger.Debug("ignoring invalid number", zap.String("property", prop), zap.String("value", v))
			return fallback
		}
		return n
	}
	ls.FlexGrow = number("flex-grow", 0)
	ls.FlexShrink = number("flex-shrink", 1)

	dim := func(prop string) Dimension {
		v := lookup(props, prop)
		d, ok := lc.dimension(v)
		if !ok {
			e.logger.Debug("ignoring invalid length", zap.String("property", prop), zap.String("value", v))
		}
		return d
	}
	ls.FlexBasis = dim("flex-basis")
	ls.Width, ls.Height = dim("width"), dim("height")
	ls.MinWidth, ls.MinHeight = dim("min-width"), dim("min-height")
	ls.MaxWidth, ls.MaxHeight = dim("max-width"), dim("max-height")

	// Padding and border have no auto; an unset side is zero.
	zeroAuto := func(d Dimension) Dimension {
		if d.IsAuto() {
			return Points(0)
		}
		return d
	}
	// An unset margin is zero; only an explicit 'auto' stays auto.
	margin := func(prop string) Dimension {
		if lookup(props, prop) == "auto" {
			return Auto
		}
		return zeroAuto(dim(prop))
	}
	ls.Margin = Edges{Top: margin("margin-top"), Right: margin("margin-right"),
		Bottom: margin("margin-bottom"), Left: margin("margin-left")}
	ls.Padding = Edges{Top: zeroAuto(dim("padding-top")), Right: zeroAuto(dim("padding-right")),
		Bottom: zeroAuto(dim("padding-bottom")), Left: zeroAuto(dim("padding-left"))}
	ls.Border = Edges{
		Top:    lc.borderWidth(lookup(props, "border-top-width")),
		Right:  lc.borderWidth(lookup(props, "border-right-width")),
		Bottom: lc.borderWidth(lookup(props, "border-bottom-width")),
		Left:   lc.borderWidth(lookup(props, "border-left-width")),
	}
	ls.Inset = Edges{Top: dim("top"), Right: dim("right"), Bottom: dim("bottom"), Left: dim("left")}
	ls.RowGap, ls.ColumnGap = zeroAuto(dim("row-gap")), zeroAuto(dim("column-gap"))

	return ls
}
