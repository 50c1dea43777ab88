// internal/style/style.go
package style

import (
	"math"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/xkilldash9x/domtree/internal/parser"
	"go.uber.org/zap"
)

// -- Constants and Configuration --

const (
	BaseFontSize      = 16.0 // Default root font size.
	DefaultLineHeight = 1.2  // Default multiplier for 'line-height: normal'.
	TextWidthFactor   = 0.6  // Average glyph advance as a fraction of the font size.
)

// -- Raw style --

// Style is the raw, uncomputed style attached to a node: declarations in source order.
// The zero value is an empty style.
type Style struct {
	decls []parser.Declaration
}

// Parse builds a Style from an inline declaration list ("width: 10px; flex: 1").
func Parse(inline string) Style {
	return Style{decls: parser.ParseDeclarations(inline)}
}

// FromDeclarations builds a Style from already parsed declarations.
func FromDeclarations(decls ...parser.Declaration) Style {
	return Style{decls: slices.Clone(decls)}
}

// Declarations returns a copy of the declarations in source order.
func (s Style) Declarations() []parser.Declaration {
	return slices.Clone(s.decls)
}

func (s Style) Len() int      { return len(s.decls) }
func (s Style) IsEmpty() bool { return len(s.decls) == 0 }

// Set appends a declaration; it overrides earlier non-important ones for the same property.
func (s *Style) Set(property, value string) {
	s.decls = append(slices.Clip(s.decls), parser.Declaration{
		Property: parser.Property(strings.ToLower(strings.TrimSpace(property))),
		Value:    parser.Value(strings.TrimSpace(value)),
	})
}

// Merge returns a style holding s's declarations followed by other's.
func (s Style) Merge(other Style) Style {
	return Style{decls: slices.Concat(s.decls, other.decls)}
}

// Get returns the cascaded value of a single property.
func (s Style) Get(property string) (string, bool) {
	v, ok := s.cascade()[parser.Property(strings.ToLower(property))]
	return string(v), ok
}

func (s Style) String() string {
	var b strings.Builder
	for i, d := range s.decls {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(string(d.Property))
		b.WriteString(": ")
		b.WriteString(string(d.Value))
		if d.Important {
			b.WriteString(" !important")
		}
	}
	return b.String()
}

// cascade flattens the declarations, expanding shorthands in place. Important
// declarations beat normal ones; within the same importance the later one wins.
func (s Style) cascade() map[parser.Property]parser.Value {
	styles := make(map[parser.Property]parser.Value, len(s.decls))
	important := make(map[parser.Property]bool)
	for _, d := range s.decls {
		expanded := map[parser.Property]parser.Value{d.Property: d.Value}
		expandShorthands(expanded)
		for prop, val := range expanded {
			if important[prop] && !d.Important {
				continue
			}
			styles[prop] = val
			if d.Important {
				important[prop] = true
			}
		}
	}
	return styles
}

// -- Computed style --

// Context is what a node's style computation may depend on besides its own declarations.
type Context struct {
	// Parent is the parent's computed style, nil at the root of a computation.
	Parent *Computed
	// ViewportWidth and ViewportHeight override the engine viewport when non-zero.
	ViewportWidth, ViewportHeight float64
}

// Computed is the resolved style of one node.
type Computed struct {
	Properties map[parser.Property]parser.Value
	FontSize   float64
	LineHeight float64
	Layout     LayoutStyle
}

// Lookup returns a computed property or the fallback.
func (c Computed) Lookup(property, fallback string) string {
	if val, ok := c.Properties[parser.Property(property)]; ok {
		return string(val)
	}
	return fallback
}

// Appearance is the paint-relevant part of a computed style.
type Appearance struct {
	Color           Color
	BackgroundColor Color
	BorderColor     Color
	Opacity         float64
	Visible         bool
	FontFamily      string
	FontWeight      int
	FontSize        float64
	LineHeight      float64
	TextAlign       string
}

// -- Style Engine --

// Engine resolves raw styles into computed ones: shorthand expansion, inheritance,
// relative units and the typed layout subset.
type Engine struct {
	logger            *zap.Logger
	baseFontSize      float64
	defaultLineHeight float64
	textWidthFactor   float64
	viewportWidth     float64
	viewportHeight    float64
}

// Option configures an Engine.
type Option func(*Engine)

func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger.Named("style")
		}
	}
}

func WithBaseFontSize(px float64) Option {
	return func(e *Engine) {
		if px > 0 {
			e.baseFontSize = px
		}
	}
}

func WithDefaultLineHeight(multiplier float64) Option {
	return func(e *Engine) {
		if multiplier > 0 {
			e.defaultLineHeight = multiplier
		}
	}
}

func WithTextWidthFactor(factor float64) Option {
	return func(e *Engine) {
		if factor > 0 {
			e.textWidthFactor = factor
		}
	}
}

func WithViewport(width, height float64) Option {
	return func(e *Engine) {
		e.viewportWidth, e.viewportHeight = width, height
	}
}

// NewEngine creates a style engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		logger:            zap.NewNop(),
		baseFontSize:      BaseFontSize,
		defaultLineHeight: DefaultLineHeight,
		textWidthFactor:   TextWidthFactor,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SetViewport sets the dimensions used for viewport-relative units.
func (e *Engine) SetViewport(width, height float64) {
	e.viewportWidth = width
	e.viewportHeight = height
}

// ComputeStyle resolves raw against the context. It never fails: unknown properties are
// carried through verbatim and invalid values fall back to their initial value.
func (e *Engine) ComputeStyle(raw Style, ctx Context) Computed {
	props := raw.cascade()

	parentFontSize := e.baseFontSize
	if ctx.Parent != nil {
		inheritStyles(props, ctx.Parent.Properties)
		if ctx.Parent.FontSize > 0 {
			parentFontSize = ctx.Parent.FontSize
		}
	}

	vw, vh := e.viewportWidth, e.viewportHeight
	if ctx.ViewportWidth > 0 {
		vw = ctx.ViewportWidth
	}
	if ctx.ViewportHeight > 0 {
		vh = ctx.ViewportHeight
	}

	fontSize := parentFontSize
	if v, ok := props["font-size"]; ok {
		if fs := ParseLengthWithUnits(string(v), parentFontSize, e.baseFontSize, parentFontSize, vw, vh); fs > 0 {
			fontSize = fs
		}
	}
	props["font-size"] = px(fontSize)

	// line-height keeps its declared form so a unitless multiplier inherits as a multiplier.
	lineHeight := fontSize * e.defaultLineHeight
	if v, ok := props["line-height"]; ok {
		lineHeight = e.resolveLineHeight(string(v), fontSize, vw, vh)
	}

	lc := lengthContext{fontSize: fontSize, rootFontSize: e.baseFontSize, viewportWidth: vw, viewportHeight: vh}
	return Computed{
		Properties: props,
		FontSize:   fontSize,
		LineHeight: lineHeight,
		Layout:     e.buildLayoutStyle(props, lc),
	}
}

// ComputeAppearance derives paint metrics from a computed style.
func (e *Engine) ComputeAppearance(c Computed) Appearance {
	a := Appearance{
		Color:           Black,
		BackgroundColor: Transparent,
		BorderColor:     Black,
		Opacity:         1,
		Visible:         true,
		FontFamily:      c.Lookup("font-family", "sans-serif"),
		FontWeight:      parseFontWeight(c.Lookup("font-weight", "normal")),
		FontSize:        c.FontSize,
		LineHeight:      c.LineHeight,
		TextAlign:       c.Lookup("text-align", "start"),
	}
	if v, ok := c.Properties["color"]; ok {
		if col, ok := ParseColor(string(v)); ok {
			a.Color = col
		}
	}
	if v, ok := c.Properties["background-color"]; ok {
		if col, ok := ParseColor(string(v)); ok {
			a.BackgroundColor = col
		}
	}
	if v, ok := c.Properties["border-color"]; ok {
		if col, ok := ParseColor(string(v)); ok {
			a.BorderColor = col
		}
	} else {
		a.BorderColor = a.Color
	}
	if v, err := strconv.ParseFloat(c.Lookup("opacity", "1"), 64); err == nil {
		a.Opacity = clamp(v, 0, 1)
	}

	visibility := c.Lookup("visibility", "visible")
	if c.Layout.Display == DisplayNone || visibility == "hidden" || visibility == "collapse" || a.Opacity <= 0 {
		a.Visible = false
	}
	return a
}

// MeasureText estimates the box of a text run under c, wrapping at maxWidth when it is
// finite and positive.
func (e *Engine) MeasureText(text string, c Computed, maxWidth float64) (width, height float64) {
	fontSize := c.FontSize
	if fontSize <= 0 {
		fontSize = e.baseFontSize
	}
	lineHeight := c.LineHeight
	if lineHeight <= 0 {
		lineHeight = fontSize * e.defaultLineHeight
	}
	runes := utf8.RuneCountInString(text)
	if runes == 0 {
		return 0, 0
	}

	width = float64(runes) * fontSize * e.textWidthFactor
	if maxWidth <= 0 || math.IsInf(maxWidth, 0) || math.IsNaN(maxWidth) || width <= maxWidth {
		return width, lineHeight
	}
	lines := math.Ceil(width / maxWidth)
	return maxWidth, lines * lineHeight
}

func (e *Engine) resolveLineHeight(value string, fontSize, vw, vh float64) float64 {
	value = strings.TrimSpace(value)
	if value == "normal" {
		return fontSize * e.defaultLineHeight
	}
	if val, err := parseFloat(value); err == nil && !strings.ContainsAny(value, "px%emremvwvhvminvmax") {
		return fontSize * val
	}
	if lh := ParseLengthWithUnits(value, fontSize, e.baseFontSize, fontSize, vw, vh); lh > 0 {
		return lh
	}
	return fontSize * e.defaultLineHeight
}

var inheritableProperties = map[parser.Property]bool{
	"color": true, "font-family": true, "font-size": true, "font-weight": true,
	"line-height": true, "text-align": true, "visibility": true, "cursor": true,
}

func inheritStyles(child, parent map[parser.Property]parser.Value) {
	for prop, val := range child {
		if val == "inherit" {
			if parentVal, ok := parent[prop]; ok {
				child[prop] = parentVal
			} else {
				delete(child, prop)
			}
		}
	}
	for prop := range inheritableProperties {
		if _, exists := child[prop]; !exists {
			if val, ok := parent[prop]; ok {
				child[prop] = val
			}
		}
	}
}

func parseFontWeight(v string) int {
	switch strings.TrimSpace(strings.ToLower(v)) {
	case "normal", "":
		return 400
	case "bold":
		return 700
	case "lighter":
		return 300
	case "bolder":
		return 800
	}
	if n, err := strconv.Atoi(v); err == nil && n >= 1 && n <= 1000 {
		return n
	}
	return 400
}

func px(v float64) parser.Value {
	return parser.Value(strconv.FormatFloat(v, 'f', -1, 64) + "px")
}

// -- Shorthands --

func expandShorthands(styles map[parser.Property]parser.Value) {
	expandFlexShorthand(styles)
	expandFlexFlow(styles)
	expandGap(styles)
	expand1To4Shorthand(styles, "margin", "margin-top", "margin-right", "margin-bottom", "margin-left")
	expand1To4Shorthand(styles, "padding", "padding-top", "padding-right", "padding-bottom", "padding-left")
	expand1To4Shorthand(styles, "inset", "top", "right", "bottom", "left")

	if borderVal, ok := styles["border"]; ok {
		parts := strings.Fields(string(borderVal))
		width, styleVal, color := "", "none", ""
		for _, part := range parts {
			switch {
			case width == "" && isBorderWidth(part):
				width = part
			case part == "solid" || part == "dashed" || part == "dotted" || part == "double" || part == "none" || part == "hidden":
				styleVal = part
			default:
				if _, ok := ParseColor(part); ok {
					color = part
				}
			}
		}
		if width == "" {
			width = "medium"
			if styleVal == "none" || styleVal == "hidden" {
				width = "0"
			}
		}
		for _, side := range []string{"top", "right", "bottom", "left"} {
			styles[parser.Property("border-"+side+"-width")] = parser.Value(width)
			styles[parser.Property("border-"+side+"-style")] = parser.Value(styleVal)
		}
		if color != "" {
			styles["border-color"] = parser.Value(color)
		}
	}
	expand1To4Shorthand(styles, "border-width", "border-top-width", "border-right-width", "border-bottom-width", "border-left-width")
}

func isBorderWidth(part string) bool {
	switch part {
	case "thin", "medium", "thick":
		return true
	}
	_, err := parseFloat(part)
	return err == nil
}

func expand1To4Shorthand(styles map[parser.Property]parser.Value, shorthand, top, right, bottom, left parser.Property) {
	val, ok := styles[shorthand]
	if !ok {
		return
	}
	parts := strings.Fields(string(val))
	switch len(parts) {
	case 1:
		v1 := parser.Value(parts[0])
		styles[top], styles[right], styles[bottom], styles[left] = v1, v1, v1, v1
	case 2:
		v1, v2 := parser.Value(parts[0]), parser.Value(parts[1])
		styles[top], styles[right], styles[bottom], styles[left] = v1, v2, v1, v2
	case 3:
		v1, v2, v3 := parser.Value(parts[0]), parser.Value(parts[1]), parser.Value(parts[2])
		styles[top], styles[right], styles[bottom], styles[left] = v1, v2, v3, v2
	case 4:
		v1, v2, v3, v4 := parser.Value(parts[0]), parser.Value(parts[1]), parser.Value(parts[2]), parser.Value(parts[3])
		styles[top], styles[right], styles[bottom], styles[left] = v1, v2, v3, v4
	}
}

func expandFlexShorthand(styles map[parser.Property]parser.Value) {
	flexVal, ok := styles["flex"]
	if !ok {
		return
	}
	grow, shrink, basis := "0", "1", "auto"
	parts := strings.Fields(string(flexVal))
	isLength := func(s string) bool {
		return strings.ContainsAny(s, "px%emremvwvhvminvmax")
	}

	switch {
	case len(parts) == 1:
		switch parts[0] {
		case "none":
			grow, shrink, basis = "0", "0", "auto"
		case "auto":
			grow, shrink, basis = "1", "1", "auto"
		default:
			if _, err := parseFloat(parts[0]); err == nil && !isLength(parts[0]) {
				grow, basis = parts[0], "0"
			} else {
				grow, shrink, basis = "1", "1", parts[0]
			}
		}
	case len(parts) == 2:
		grow = parts[0]
		if _, err := parseFloat(parts[1]); err == nil && !isLength(parts[1]) {
			shrink, basis = parts[1], "0"
		} else {
			basis = parts[1]
		}
	case len(parts) >= 3:
		grow, shrink, basis = parts[0], parts[1], parts[2]
	}

	styles["flex-grow"] = parser.Value(grow)
	styles["flex-shrink"] = parser.Value(shrink)
	styles["flex-basis"] = parser.Value(basis)
}

func expandFlexFlow(styles map[parser.Property]parser.Value) {
	val, ok := styles["flex-flow"]
	if !ok {
		return
	}
	for _, part := range strings.Fields(string(val)) {
		switch part {
		case "row", "row-reverse", "column", "column-reverse":
			styles["flex-direction"] = parser.Value(part)
		case "wrap", "nowrap", "wrap-reverse":
			styles["flex-wrap"] = parser.Value(part)
		}
	}
}

func expandGap(styles map[parser.Property]parser.Value) {
	val, ok := styles["gap"]
	if !ok {
		return
	}
	parts := strings.Fields(string(val))
	switch len(parts) {
	case 1:
		styles["row-gap"], styles["column-gap"] = parser.Value(parts[0]), parser.Value(parts[0])
	case 2:
		styles["row-gap"], styles["column-gap"] = parser.Value(parts[0]), parser.Value(parts[1])
	}
}
