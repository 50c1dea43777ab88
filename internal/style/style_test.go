package style

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/domtree/internal/parser"
)

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	return NewEngine(append([]Option{WithLogger(zaptest.NewLogger(t))}, opts...)...)
}

func TestStyleCascade(t *testing.T) {
	t.Run("Later declaration wins", func(t *testing.T) {
		s := Parse("width: 10px; width: 20px")
		v, ok := s.Get("width")
		require.True(t, ok)
		assert.Equal(t, "20px", v)
	})

	t.Run("Important beats later normal", func(t *testing.T) {
		s := Parse("color: red !important; color: blue")
		v, _ := s.Get("color")
		assert.Equal(t, "red", v)
	})

	t.Run("Longhand after shorthand overrides one side", func(t *testing.T) {
		s := Parse("margin: 1px; margin-top: 5px")
		top, _ := s.Get("margin-top")
		left, _ := s.Get("margin-left")
		assert.Equal(t, "5px", top)
		assert.Equal(t, "1px", left)
	})

	t.Run("Shorthand after longhand overrides it", func(t *testing.T) {
		s := Parse("padding-left: 9px; padding: 2px 4px")
		left, _ := s.Get("padding-left")
		assert.Equal(t, "4px", left)
	})

	t.Run("Set appends without aliasing copies", func(t *testing.T) {
		base := Parse("width: 1px")
		a, b := base, base
		a.Set("height", "2px")
		b.Set("height", "3px")
		ha, _ := a.Get("height")
		hb, _ := b.Get("height")
		assert.Equal(t, "2px", ha)
		assert.Equal(t, "3px", hb)
		assert.Equal(t, 1, base.Len())
	})

	t.Run("String and merge", func(t *testing.T) {
		s := Parse("width: 1px").Merge(FromDeclarations(parser.Declaration{Property: "color", Value: "red", Important: true}))
		assert.Equal(t, "width: 1px; color: red !important", s.String())
		assert.True(t, Style{}.IsEmpty())
	})
}

func TestShorthandExpansion(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected map[string]string
	}{
		{"Margin two values", "margin: 1px 2px", map[string]string{
			"margin-top": "1px", "margin-right": "2px", "margin-bottom": "1px", "margin-left": "2px",
		}},
		{"Padding three values", "padding: 1px 2px 3px", map[string]string{
			"padding-top": "1px", "padding-right": "2px", "padding-bottom": "3px", "padding-left": "2px",
		}},
		{"Flex none", "flex: none", map[string]string{"flex-grow": "0", "flex-shrink": "0", "flex-basis": "auto"}},
		{"Flex auto", "flex: auto", map[string]string{"flex-grow": "1", "flex-shrink": "1", "flex-basis": "auto"}},
		{"Flex number", "flex: 2", map[string]string{"flex-grow": "2", "flex-shrink": "1", "flex-basis": "0"}},
		{"Flex length", "flex: 30px", map[string]string{"flex-grow": "1", "flex-shrink": "1", "flex-basis": "30px"}},
		{"Flex grow basis", "flex: 1 20%", map[string]string{"flex-grow": "1", "flex-shrink": "1", "flex-basis": "20%"}},
		{"Flex three values", "flex: 2 0 10px", map[string]string{"flex-grow": "2", "flex-shrink": "0", "flex-basis": "10px"}},
		{"Flex flow", "flex-flow: row wrap", map[string]string{"flex-direction": "row", "flex-wrap": "wrap"}},
		{"Gap pair", "gap: 4px 8px", map[string]string{"row-gap": "4px", "column-gap": "8px"}},
		{"Border", "border: 2px solid red", map[string]string{
			"border-top-width": "2px", "border-left-width": "2px", "border-top-style": "solid", "border-color": "red",
		}},
		{"Border none", "border: none", map[string]string{"border-top-width": "0", "border-bottom-style": "none"}},
		{"Border style only", "border: dashed", map[string]string{"border-right-width": "medium"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Parse(tt.input)
			for prop, want := range tt.expected {
				got, ok := s.Get(prop)
				assert.True(t, ok, "missing %s", prop)
				assert.Equal(t, want, got, prop)
			}
		})
	}
}

func TestComputeStyle_Inheritance(t *testing.T) {
	e := newTestEngine(t)

	parent := e.ComputeStyle(Parse("color: red; font-size: 20px; width: 50px; line-height: 1.5"), Context{})
	assert.Equal(t, 20.0, parent.FontSize)
	assert.Equal(t, 30.0, parent.LineHeight)

	child := e.ComputeStyle(Parse("font-size: 2em; width: inherit"), Context{Parent: &parent})
	assert.Equal(t, "red", child.Lookup("color", ""), "color is inherited")
	assert.Equal(t, 40.0, child.FontSize, "em resolves against the parent font size")
	assert.Equal(t, 60.0, child.LineHeight, "a unitless line-height inherits as a multiplier")
	assert.Equal(t, Points(50), child.Layout.Width, "explicit inherit copies a non-inherited property")

	grandchild := e.ComputeStyle(Style{}, Context{Parent: &child})
	assert.Equal(t, 40.0, grandchild.FontSize)
	assert.Equal(t, Auto, grandchild.Layout.Width, "width is not inherited implicitly")
}

func TestComputeStyle_RootDefaults(t *testing.T) {
	e := newTestEngine(t, WithBaseFontSize(10), WithDefaultLineHeight(2))
	c := e.ComputeStyle(Style{}, Context{})

	assert.Equal(t, 10.0, c.FontSize)
	assert.Equal(t, 20.0, c.LineHeight)
	assert.Equal(t, DefaultLayoutStyle().FlexDirection, c.Layout.FlexDirection)
	assert.Equal(t, Points(0), c.Layout.Margin.Top)
	assert.Equal(t, Points(0), c.Layout.Border.Left)
	assert.Equal(t, Auto, c.Layout.Width)
}

func TestComputeStyle_LayoutSubset(t *testing.T) {
	e := newTestEngine(t, WithViewport(1000, 800))
	c := e.ComputeStyle(Parse(`
		display: flex; flex-direction: row-reverse; flex-wrap: wrap;
		justify-content: space-between; align-items: center; align-self: flex-end;
		align-content: space-around; position: absolute; box-sizing: border-box;
		width: 50%; height: 10vh; min-width: 2rem; max-height: none;
		margin: 1px auto; padding: 2px; border-width: thin; top: 5px;
		flex: 2 3 40px; gap: 6px`), Context{})

	ls := c.Layout
	assert.Equal(t, DisplayFlex, ls.Display)
	assert.Equal(t, FlexDirectionRowReverse, ls.FlexDirection)
	assert.True(t, ls.FlexDirection.IsRow())
	assert.True(t, ls.FlexDirection.IsReverse())
	assert.Equal(t, FlexWrapValue, ls.FlexWrap)
	assert.Equal(t, JustifySpaceBetween, ls.JustifyContent)
	assert.Equal(t, AlignCenter, ls.AlignItems)
	assert.Equal(t, AlignFlexEnd, ls.AlignSelf)
	assert.Equal(t, AlignSpaceAround, ls.AlignContent)
	assert.Equal(t, PositionAbsolute, ls.Position)
	assert.Equal(t, BorderBox, ls.BoxSizing)
	assert.Equal(t, Percent(50), ls.Width)
	assert.Equal(t, Points(80), ls.Height)
	assert.Equal(t, Points(32), ls.MinWidth)
	assert.Equal(t, Auto, ls.MaxHeight)
	assert.Equal(t, Edges{Top: Points(1), Right: Auto, Bottom: Points(1), Left: Auto}, ls.Margin)
	assert.Equal(t, Points(2), ls.Padding.Bottom)
	assert.Equal(t, Points(1), ls.Border.Right)
	assert.Equal(t, Points(5), ls.Inset.Top)
	assert.Equal(t, Auto, ls.Inset.Left)
	assert.Equal(t, 2.0, ls.FlexGrow)
	assert.Equal(t, 3.0, ls.FlexShrink)
	assert.Equal(t, Points(40), ls.FlexBasis)
	assert.Equal(t, Points(6), ls.RowGap)
	assert.Equal(t, Points(6), ls.ColumnGap)
}

func TestComputeStyle_InvalidValuesFallBack(t *testing.T) {
	e := newTestEngine(t)
	c := e.ComputeStyle(Parse("flex-grow: lots; flex-shrink: -1; width: wide; display: grid"), Context{})

	assert.Equal(t, 0.0, c.Layout.FlexGrow)
	assert.Equal(t, 1.0, c.Layout.FlexShrink)
	assert.Equal(t, Auto, c.Layout.Width)
	assert.Equal(t, DisplayFlex, c.Layout.Display)
}

func TestComputeAppearance(t *testing.T) {
	e := newTestEngine(t)

	t.Run("Defaults", func(t *testing.T) {
		a := e.ComputeAppearance(e.ComputeStyle(Style{}, Context{}))
		assert.Equal(t, Black, a.Color)
		assert.Equal(t, Transparent, a.BackgroundColor)
		assert.Equal(t, 1.0, a.Opacity)
		assert.True(t, a.Visible)
		assert.Equal(t, 400, a.FontWeight)
		assert.Equal(t, BaseFontSize, a.FontSize)
	})

	t.Run("Explicit", func(t *testing.T) {
		a := e.ComputeAppearance(e.ComputeStyle(Parse("color: #00f; background-color: white; font-weight: bold; opacity: 0.5"), Context{}))
		assert.Equal(t, Color{0, 0, 255, 255}, a.Color)
		assert.Equal(t, a.Color, a.BorderColor, "border color follows the text color")
		assert.Equal(t, Color{255, 255, 255, 255}, a.BackgroundColor)
		assert.Equal(t, 700, a.FontWeight)
		assert.Equal(t, 0.5, a.Opacity)
	})

	t.Run("Hidden", func(t *testing.T) {
		for _, decl := range []string{"display: none", "visibility: hidden", "opacity: 0"} {
			a := e.ComputeAppearance(e.ComputeStyle(Parse(decl), Context{}))
			assert.False(t, a.Visible, decl)
		}
	})
}

func TestMeasureText(t *testing.T) {
	e := newTestEngine(t)
	c := e.ComputeStyle(Parse("font-size: 10px; line-height: 12px"), Context{})

	w, h := e.MeasureText("hello", c, 0)
	assert.InDelta(t, 30.0, w, 0.001)
	assert.InDelta(t, 12.0, h, 0.001)

	w, h = e.MeasureText("hello world!", c, 40)
	assert.InDelta(t, 40.0, w, 0.001)
	assert.InDelta(t, 24.0, h, 0.001, "72px of text wraps onto two 40px lines")

	w, h = e.MeasureText("", c, 100)
	assert.Zero(t, w)
	assert.Zero(t, h)
}
