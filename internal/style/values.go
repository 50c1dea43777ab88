// internal/style/values.go
package style

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// -- Dimensions --

// Unit tags how a Dimension's value is interpreted by the layout backend.
type Unit uint8

const (
	UnitAuto Unit = iota
	UnitPoint
	UnitPercent
)

func (u Unit) String() string {
	switch u {
	case UnitPoint:
		return "pt"
	case UnitPercent:
		return "%"
	default:
		return "auto"
	}
}

// Dimension is a resolved length. Percentages are kept relative so the backend can
// resolve them against the containing box once it is known.
type Dimension struct {
	Value float64
	Unit  Unit
}

// Auto is the zero Dimension.
var Auto = Dimension{}

func Points(v float64) Dimension  { return Dimension{Value: v, Unit: UnitPoint} }
func Percent(v float64) Dimension { return Dimension{Value: v, Unit: UnitPercent} }

func (d Dimension) IsAuto() bool { return d.Unit == UnitAuto }

// Resolve converts the dimension into points against a reference length.
// It reports false for auto, and for percentages when the reference is undefined (NaN or Inf).
func (d Dimension) Resolve(reference float64) (float64, bool) {
	switch d.Unit {
	case UnitPoint:
		return d.Value, true
	case UnitPercent:
		if math.IsNaN(reference) || math.IsInf(reference, 0) {
			return 0, false
		}
		return reference * d.Value / 100, true
	default:
		return 0, false
	}
}

// ResolveOr is Resolve with a fallback for the unresolvable cases.
func (d Dimension) ResolveOr(reference, fallback float64) float64 {
	if v, ok := d.Resolve(reference); ok {
		return v
	}
	return fallback
}

func (d Dimension) String() string {
	switch d.Unit {
	case UnitPoint:
		return strconv.FormatFloat(d.Value, 'f', -1, 64) + "px"
	case UnitPercent:
		return strconv.FormatFloat(d.Value, 'f', -1, 64) + "%"
	default:
		return "auto"
	}
}

// Edges holds one Dimension per box side.
type Edges struct {
	Top, Right, Bottom, Left Dimension
}

// -- Length parsing --

// ParseLengthWithUnits resolves a CSS length to pixels. Percentages resolve against
// referenceDimension. Unknown or keyword values resolve to 0.
func ParseLengthWithUnits(value string, parentFontSize, rootFontSize, referenceDimension, viewportWidth, viewportHeight float64) float64 {
	value = strings.TrimSpace(value)
	if value == "" || value == "auto" || value == "normal" || value == "none" {
		return 0.0
	}

	parseNumeric := func(s, suffix string) (float64, bool) {
		numStr := strings.TrimSuffix(s, suffix)
		if val, err := parseFloat(numStr); err == nil {
			return val, true
		}
		return 0.0, false
	}

	if strings.HasSuffix(value, "%") {
		if percent, ok := parseNumeric(value, "%"); ok {
			return referenceDimension * (percent / 100.0)
		}
	}
	if strings.HasSuffix(value, "px") {
		if px, ok := parseNumeric(value, "px"); ok {
			return px
		}
	}
	// rem has to be checked before em.
	if strings.HasSuffix(value, "rem") {
		if val, ok := parseNumeric(value, "rem"); ok {
			return val * rootFontSize
		}
	}
	if strings.HasSuffix(value, "em") {
		if val, ok := parseNumeric(value, "em"); ok {
			return val * parentFontSize
		}
	}
	if strings.HasSuffix(value, "vw") {
		if val, ok := parseNumeric(value, "vw"); ok {
			return viewportWidth * (val / 100.0)
		}
	}
	if strings.HasSuffix(value, "vh") {
		if val, ok := parseNumeric(value, "vh"); ok {
			return viewportHeight * (val / 100.0)
		}
	}
	if strings.HasSuffix(value, "vmin") {
		if val, ok := parseNumeric(value, "vmin"); ok {
			return math.Min(viewportWidth, viewportHeight) * (val / 100.0)
		}
	}
	if strings.HasSuffix(value, "vmax") {
		if val, ok := parseNumeric(value, "vmax"); ok {
			return math.Max(viewportWidth, viewportHeight) * (val / 100.0)
		}
	}
	// Unitless values are treated as px.
	if val, err := parseFloat(value); err == nil {
		return val
	}
	return 0.0
}

// lengthContext carries the references needed to turn relative units into points.
type lengthContext struct {
	fontSize       float64
	rootFontSize   float64
	viewportWidth  float64
	viewportHeight float64
}

// dimension parses a length into a Dimension. Percentages stay relative.
// The bool is false when the value is not a length at all.
func (lc lengthContext) dimension(value string) (Dimension, bool) {
	value = strings.TrimSpace(strings.ToLower(value))
	switch value {
	case "", "auto", "none":
		return Auto, true
	}
	if _, err := parseFloat(value); err != nil {
		return Auto, false
	}
	if strings.HasSuffix(value, "%") {
		v, _ := parseFloat(strings.TrimSuffix(value, "%"))
		return Percent(v), true
	}
	return Points(ParseLengthWithUnits(value, lc.fontSize, lc.rootFontSize, 0, lc.viewportWidth, lc.viewportHeight)), true
}

// borderWidth maps the border-width keywords onto points.
func (lc lengthContext) borderWidth(value string) Dimension {
	switch strings.TrimSpace(strings.ToLower(value)) {
	case "thin":
		return Points(1)
	case "medium":
		return Points(3)
	case "thick":
		return Points(5)
	}
	d, ok := lc.dimension(value)
	if !ok || d.IsAuto() {
		return Points(0)
	}
	return d
}

// parseFloat reads the leading decimal number of s, ignoring any unit suffix.
func parseFloat(s string) (float64, error) {
	if len(s) == 0 {
		return 0, fmt.Errorf("empty string")
	}
	i := 0
	if s[0] == '-' || s[0] == '+' {
		i++
	}
	digits, dot := 0, false
	for ; i < len(s); i++ {
		ch := s[i]
		if ch >= '0' && ch <= '9' {
			digits++
			continue
		}
		if ch == '.' && !dot {
			dot = true
			continue
		}
		break
	}
	if digits == 0 {
		return 0, fmt.Errorf("invalid float format: %s", s)
	}
	v, err := strconv.ParseFloat(strings.TrimSuffix(s[:i], "."), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid float format: %s: %w", s, err)
	}
	if v == 0 {
		// Normalise -0.
		return 0, nil
	}
	return v, nil
}

// -- Colors --

// Color represents an RGBA color.
type Color struct {
	R, G, B, A uint8
}

func (c Color) String() string {
	return fmt.Sprintf("#%02x%02x%02x%02x", c.R, c.G, c.B, c.A)
}

var (
	Black       = Color{0, 0, 0, 255}
	Transparent = Color{0, 0, 0, 0}
)

var cssColors = map[string]Color{
	"black":       Black,
	"white":       {255, 255, 255, 255},
	"red":         {255, 0, 0, 255},
	"green":       {0, 128, 0, 255},
	"blue":        {0, 0, 255, 255},
	"gray":        {128, 128, 128, 255},
	"grey":        {128, 128, 128, 255},
	"silver":      {192, 192, 192, 255},
	"yellow":      {255, 255, 0, 255},
	"orange":      {255, 165, 0, 255},
	"purple":      {128, 0, 128, 255},
	"transparent": Transparent,
}

// ParseColor understands keywords, #rgb[a], #rrggbb[aa] and rgb()/rgba().
func ParseColor(value string) (Color, bool) {
	value = strings.TrimSpace(strings.ToLower(value))

	if color, ok := cssColors[value]; ok {
		return color, true
	}
	if strings.HasPrefix(value, "#") {
		return parseHexColor(value)
	}
	if strings.HasPrefix(value, "rgb") {
		return parseRGBColor(value)
	}
	return Black, false
}

func parseHexColor(hex string) (Color, bool) {
	hex = strings.TrimPrefix(hex, "#")
	var r, g, b, a uint8 = 0, 0, 0, 255

	switch len(hex) {
	case 3:
		r = hexDigit(hex[0]) * 17
		g = hexDigit(hex[1]) * 17
		b = hexDigit(hex[2]) * 17
	case 4:
		r = hexDigit(hex[0]) * 17
		g = hexDigit(hex[1]) * 17
		b = hexDigit(hex[2]) * 17
		a = hexDigit(hex[3]) * 17
	case 6:
		r = hexDigit(hex[0])<<4 | hexDigit(hex[1])
		g = hexDigit(hex[2])<<4 | hexDigit(hex[3])
		b = hexDigit(hex[4])<<4 | hexDigit(hex[5])
	case 8:
		r = hexDigit(hex[0])<<4 | hexDigit(hex[1])
		g = hexDigit(hex[2])<<4 | hexDigit(hex[3])
		b = hexDigit(hex[4])<<4 | hexDigit(hex[5])
		a = hexDigit(hex[6])<<4 | hexDigit(hex[7])
	default:
		return Color{}, false
	}
	return Color{R: r, G: g, B: b, A: a}, true
}

func hexDigit(c byte) uint8 {
	switch {
	case '0' <= c && c <= '9':
		return c - '0'
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10
	case 'A' <= c && c <= 'F':
		return c - 'A' + 10
	}
	return 0
}

var rgbRegex = regexp.MustCompile(`rgba?\((.*?)\)`)

func parseRGBColor(value string) (Color, bool) {
	matches := rgbRegex.FindStringSubmatch(value)
	if len(matches) != 2 {
		return Color{}, false
	}

	values := strings.FieldsFunc(matches[1], func(r rune) bool {
		return r == ',' || r == ' ' || r == '/'
	})
	if len(values) < 3 || len(values) > 4 {
		return Color{}, false
	}

	c := Color{
		R: parseColorComponent(values[0], false),
		G: parseColorComponent(values[1], false),
		B: parseColorComponent(values[2], false),
		A: 255,
	}
	if len(values) == 4 {
		c.A = parseColorComponent(values[3], true)
	}
	return c, true
}

func parseColorComponent(value string, isAlpha bool) uint8 {
	value = strings.TrimSpace(value)

	if strings.HasSuffix(value, "%") {
		percent, err := strconv.ParseFloat(strings.TrimSuffix(value, "%"), 64)
		if err != nil {
			return 0
		}
		return uint8(clamp(percent/100.0*255.0+0.5, 0, 255))
	}

	if isAlpha {
		val, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return 255
		}
		return uint8(clamp(val*255.0+0.5, 0, 255))
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0
	}
	return uint8(clamp(val+0.5, 0, 255))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
