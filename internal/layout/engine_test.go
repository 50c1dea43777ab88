package layout

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/domtree/internal/style"
)

// Helpers

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	return NewEngine(WithLogger(zaptest.NewLogger(t)), WithCapacity(16))
}

func styled(mods ...func(*style.LayoutStyle)) style.LayoutStyle {
	ls := style.DefaultLayoutStyle()
	for _, m := range mods {
		m(&ls)
	}
	return ls
}

func size(w, h float64) func(*style.LayoutStyle) {
	return func(ls *style.LayoutStyle) {
		if w >= 0 {
			ls.Width = style.Points(w)
		}
		if h >= 0 {
			ls.Height = style.Points(h)
		}
	}
}

func row(ls *style.LayoutStyle) { ls.FlexDirection = style.FlexDirectionRow }

// addNode creates a handle with the given style and appends it under parent (when not nil).
func addNode(t *testing.T, e *Engine, parent Handle, ls style.LayoutStyle) Handle {
	t.Helper()
	h := e.NewHandle()
	require.NoError(t, e.ApplyStyles(h, ls))
	if !parent.IsNil() {
		require.NoError(t, e.InsertChild(parent, h, e.ChildCount(parent)))
	}
	return h
}

func box(t *testing.T, e *Engine, h Handle) Box {
	t.Helper()
	b, err := e.Box(h)
	require.NoError(t, err)
	return b
}

// -- Tree structure --

func TestTreeOperations(t *testing.T) {
	e := newTestEngine(t)
	root := e.NewHandle()
	a, b, c := e.NewHandle(), e.NewHandle(), e.NewHandle()

	require.NoError(t, e.InsertChild(root, a, 0))
	require.NoError(t, e.InsertChild(root, b, 1))
	require.NoError(t, e.InsertChild(root, c, 0))
	assert.Equal(t, []Handle{c, a, b}, e.Children(root))
	assert.Equal(t, 3, e.ChildCount(root))

	p, ok := e.Parent(a)
	require.True(t, ok)
	assert.Equal(t, root, p)

	t.Run("Child with a parent is rejected", func(t *testing.T) {
		other := e.NewHandle()
		assert.ErrorIs(t, e.InsertChild(other, a, 0), ErrHasParent)
	})

	t.Run("Index out of range", func(t *testing.T) {
		d := e.NewHandle()
		assert.ErrorIs(t, e.InsertChild(root, d, 5), ErrIndexOutOfRange)
		assert.ErrorIs(t, e.InsertChild(root, d, -1), ErrIndexOutOfRange)
	})

	t.Run("Cycles are rejected", func(t *testing.T) {
		assert.ErrorIs(t, e.InsertChild(a, a, 0), ErrCycle)
		require.NoError(t, e.RemoveChild(root, a))
		require.NoError(t, e.InsertChild(b, a, 0))
		require.NoError(t, e.RemoveChild(root, b))
		assert.ErrorIs(t, e.InsertChild(a, b, 0), ErrCycle, "b is a's parent")
		require.NoError(t, e.InsertChild(root, b, 0))
	})

	t.Run("Remove requires the real parent", func(t *testing.T) {
		assert.ErrorIs(t, e.RemoveChild(root, a), ErrNotChild)
		require.NoError(t, e.RemoveChild(b, a))
		assert.Equal(t, 0, e.ChildCount(b))
		_, ok := e.Parent(a)
		assert.False(t, ok)
	})

	t.Run("Measure functions only on leaves", func(t *testing.T) {
		leaf := e.NewHandle()
		require.NoError(t, e.SetMeasure(leaf, func(w, h float64) (float64, float64) { return 1, 1 }))
		assert.ErrorIs(t, e.InsertChild(leaf, e.NewHandle(), 0), ErrHasMeasure)
		assert.ErrorIs(t, e.SetMeasure(root, func(w, h float64) (float64, float64) { return 1, 1 }), ErrHasChildren)
	})

	t.Run("Release orphans children and invalidates the handle", func(t *testing.T) {
		parent := e.NewHandle()
		kid := e.NewHandle()
		require.NoError(t, e.InsertChild(root, parent, 0))
		require.NoError(t, e.InsertChild(parent, kid, 0))

		e.Release(parent)
		assert.NotContains(t, e.Children(root), parent)
		_, ok := e.Parent(kid)
		assert.False(t, ok)
		_, err := e.Box(parent)
		assert.ErrorIs(t, err, ErrInvalidHandle)
		assert.ErrorIs(t, e.ApplyStyles(parent, style.DefaultLayoutStyle()), ErrInvalidHandle)
		assert.Zero(t, e.ChildCount(parent))
		assert.Nil(t, e.Children(parent))
		e.Release(parent)
	})
}

func TestSolveInvalidHandle(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.Solve(Handle{}, 100, 100, LTR)
	assert.ErrorIs(t, err, ErrInvalidHandle)
}

func TestNewHandleDefaults(t *testing.T) {
	e := newTestEngine(t)
	root := addNode(t, e, Handle{}, styled(row, size(300, 100)))
	child := e.NewHandle()
	require.NoError(t, e.InsertChild(root, child, 0))
	leaf := addNode(t, e, root, styled(size(50, -1)))

	_, err := e.Solve(root, 1000, 1000, LTR)
	require.NoError(t, err)

	cb := box(t, e, child)
	assert.Equal(t, Rect{Width: 0, Height: 100}, cb.BorderBox(), "an unstyled handle stretches")
	assert.Equal(t, Edges{}, cb.Margin)
	bx := box(t, e, leaf)
	assert.Equal(t, 0.0, bx.X, "default margins are zero, not auto")
	assert.Equal(t, 0.0, bx.Y)
	assert.Equal(t, 100.0, bx.Height)
}

// -- Flex layout --

func TestSolve_RowFixedItems(t *testing.T) {
	e := newTestEngine(t)
	root := addNode(t, e, Handle{}, styled(row, size(300, 100)))
	a := addNode(t, e, root, styled(size(50, -1)))
	b := addNode(t, e, root, styled(size(50, -1)))
	c := addNode(t, e, root, styled(size(50, -1)))

	res, err := e.Solve(root, 1000, 1000, DirectionInherit)
	require.NoError(t, err)
	assert.Equal(t, Result{Width: 300, Height: 100, Direction: LTR, Nodes: 4}, res)

	for i, h := range []Handle{a, b, c} {
		bx := box(t, e, h)
		assert.Equal(t, float64(i*50), bx.X)
		assert.Equal(t, 0.0, bx.Y)
		assert.Equal(t, 50.0, bx.Width)
		assert.Equal(t, 100.0, bx.Height, "items stretch across the cross axis")
	}
}

func TestSolve_FlexGrow(t *testing.T) {
	e := newTestEngine(t)
	root := addNode(t, e, Handle{}, styled(row, size(300, 100)))
	grow := func(g float64) func(*style.LayoutStyle) {
		return func(ls *style.LayoutStyle) { ls.FlexGrow = g; ls.FlexBasis = style.Points(0) }
	}
	a := addNode(t, e, root, styled(grow(1)))
	b := addNode(t, e, root, styled(grow(2)))

	_, err := e.Solve(root, math.NaN(), math.NaN(), LTR)
	require.NoError(t, err)

	assert.InDelta(t, 100.0, box(t, e, a).Width, epsilon)
	assert.InDelta(t, 200.0, box(t, e, b).Width, epsilon)
	assert.InDelta(t, 100.0, box(t, e, b).X, epsilon)
}

func TestSolve_FlexGrowRespectsMax(t *testing.T) {
	e := newTestEngine(t)
	root := addNode(t, e, Handle{}, styled(row, size(300, 100)))
	a := addNode(t, e, root, styled(func(ls *style.LayoutStyle) {
		ls.FlexGrow, ls.FlexBasis, ls.MaxWidth = 1, style.Points(0), style.Points(50)
	}))
	b := addNode(t, e, root, styled(func(ls *style.LayoutStyle) {
		ls.FlexGrow, ls.FlexBasis = 1, style.Points(0)
	}))

	_, err := e.Solve(root, 300, 100, LTR)
	require.NoError(t, err)

	assert.InDelta(t, 50.0, box(t, e, a).Width, epsilon)
	assert.InDelta(t, 250.0, box(t, e, b).Width, epsilon)
	assert.InDelta(t, 50.0, box(t, e, b).X, epsilon)
}

func TestSolve_FlexShrink(t *testing.T) {
	e := newTestEngine(t)
	root := addNode(t, e, Handle{}, styled(row, size(100, 10)))
	a := addNode(t, e, root, styled(size(100, -1)))
	b := addNode(t, e, root, styled(size(100, -1), func(ls *style.LayoutStyle) { ls.FlexShrink = 3 }))

	_, err := e.Solve(root, 100, 10, LTR)
	require.NoError(t, err)

	// 100px overflow split 1:3 by scaled shrink factors.
	assert.InDelta(t, 75.0, box(t, e, a).Width, epsilon)
	assert.InDelta(t, 25.0, box(t, e, b).Width, epsilon)
}

func TestSolve_JustifyAndAlignCenter(t *testing.T) {
	e := newTestEngine(t)
	root := addNode(t, e, Handle{}, styled(row, size(300, 100), func(ls *style.LayoutStyle) {
		ls.JustifyContent = style.JustifyCenter
		ls.AlignItems = style.AlignCenter
	}))
	child := addNode(t, e, root, styled(size(100, 50)))

	_, err := e.Solve(root, 300, 100, LTR)
	require.NoError(t, err)

	bx := box(t, e, child)
	assert.Equal(t, 100.0, bx.X)
	assert.Equal(t, 25.0, bx.Y)
}

func TestSolve_JustifySpaceBetween(t *testing.T) {
	e := newTestEngine(t)
	root := addNode(t, e, Handle{}, styled(row, size(300, 10), func(ls *style.LayoutStyle) {
		ls.JustifyContent = style.JustifySpaceBetween
	}))
	a := addNode(t, e, root, styled(size(50, -1)))
	b := addNode(t, e, root, styled(size(50, -1)))
	c := addNode(t, e, root, styled(size(50, -1)))

	_, err := e.Solve(root, 300, 10, LTR)
	require.NoError(t, err)

	assert.Equal(t, 0.0, box(t, e, a).X)
	assert.Equal(t, 125.0, box(t, e, b).X)
	assert.Equal(t, 250.0, box(t, e, c).X)
}

func TestSolve_RTL(t *testing.T) {
	t.Run("Row runs right to left", func(t *testing.T) {
		e := newTestEngine(t)
		root := addNode(t, e, Handle{}, styled(row, size(300, 100)))
		a := addNode(t, e, root, styled(size(50, -1)))
		b := addNode(t, e, root, styled(size(50, -1)))

		res, err := e.Solve(root, 300, 100, RTL)
		require.NoError(t, err)
		assert.Equal(t, RTL, res.Direction)

		assert.Equal(t, 250.0, box(t, e, a).X)
		assert.Equal(t, 200.0, box(t, e, b).X)
		assert.Equal(t, RTL, box(t, e, a).Direction)
	})

	t.Run("Column cross start is on the right", func(t *testing.T) {
		e := newTestEngine(t)
		root := addNode(t, e, Handle{}, styled(size(200, 100), func(ls *style.LayoutStyle) {
			ls.AlignItems = style.AlignFlexStart
		}))
		a := addNode(t, e, root, styled(size(50, 10)))

		_, err := e.Solve(root, 200, 100, RTL)
		require.NoError(t, err)
		assert.Equal(t, 150.0, box(t, e, a).X)
	})
}

func TestSolve_ColumnAutoHeight(t *testing.T) {
	e := newTestEngine(t)
	root := addNode(t, e, Handle{}, styled())
	a := addNode(t, e, root, styled(size(-1, 30)))
	b := addNode(t, e, root, styled(size(-1, 20)))

	res, err := e.Solve(root, 200, math.NaN(), LTR)
	require.NoError(t, err)
	assert.Equal(t, 200.0, res.Width, "an auto root fills the available width")
	assert.Equal(t, 50.0, res.Height, "and sizes its height to content")

	assert.Equal(t, Rect{X: 0, Y: 0, Width: 200, Height: 30}, box(t, e, a).BorderBox())
	assert.Equal(t, Rect{X: 0, Y: 30, Width: 200, Height: 20}, box(t, e, b).BorderBox())
}

func TestSolve_BoxModel(t *testing.T) {
	e := newTestEngine(t)
	all := func(v float64) style.Edges {
		d := style.Points(v)
		return style.Edges{Top: d, Right: d, Bottom: d, Left: d}
	}
	root := addNode(t, e, Handle{}, styled(size(200, 200), func(ls *style.LayoutStyle) {
		ls.Padding, ls.Border = all(10), all(5)
	}))
	child := addNode(t, e, root, styled(size(-1, 20), func(ls *style.LayoutStyle) {
		ls.Margin = all(5)
	}))

	res, err := e.Solve(root, 1000, 1000, LTR)
	require.NoError(t, err)
	assert.Equal(t, 230.0, res.Width, "content-box width grows by padding and border")

	rootBox := box(t, e, root)
	assert.Equal(t, Edges{10, 10, 10, 10}, rootBox.Padding)
	assert.Equal(t, Rect{X: 15, Y: 15, Width: 200, Height: 200}, rootBox.ContentBox())

	bx := box(t, e, child)
	assert.Equal(t, Rect{X: 20, Y: 20, Width: 190, Height: 20}, bx.BorderBox())
	assert.Equal(t, Rect{X: 15, Y: 15, Width: 200, Height: 30}, bx.MarginBox())
}

func TestSolve_BorderBoxSizing(t *testing.T) {
	e := newTestEngine(t)
	root := addNode(t, e, Handle{}, styled(size(100, 100), func(ls *style.LayoutStyle) {
		ls.BoxSizing = style.BorderBox
		ls.Padding = style.Edges{Top: style.Points(10), Right: style.Points(10), Bottom: style.Points(10), Left: style.Points(10)}
	}))

	res, err := e.Solve(root, 500, 500, LTR)
	require.NoError(t, err)
	assert.Equal(t, 100.0, res.Width)
	assert.Equal(t, Rect{X: 10, Y: 10, Width: 80, Height: 80}, box(t, e, root).ContentBox())
}

func TestSolve_Wrap(t *testing.T) {
	e := newTestEngine(t)
	root := addNode(t, e, Handle{}, styled(row, size(100, 100), func(ls *style.LayoutStyle) {
		ls.FlexWrap = style.FlexWrapValue
	}))
	a := addNode(t, e, root, styled(size(40, 10)))
	b := addNode(t, e, root, styled(size(40, 10)))
	c := addNode(t, e, root, styled(size(40, 10)))

	_, err := e.Solve(root, 100, 100, LTR)
	require.NoError(t, err)

	assert.Equal(t, Rect{X: 0, Y: 0, Width: 40, Height: 10}, box(t, e, a).BorderBox())
	assert.Equal(t, Rect{X: 40, Y: 0, Width: 40, Height: 10}, box(t, e, b).BorderBox())
	assert.Equal(t, Rect{X: 0, Y: 10, Width: 40, Height: 10}, box(t, e, c).BorderBox())
}

func TestSolve_Gap(t *testing.T) {
	e := newTestEngine(t)
	root := addNode(t, e, Handle{}, styled(row, size(200, 10), func(ls *style.LayoutStyle) {
		ls.ColumnGap = style.Points(8)
	}))
	a := addNode(t, e, root, styled(size(20, -1)))
	b := addNode(t, e, root, styled(size(20, -1)))

	_, err := e.Solve(root, 200, 10, LTR)
	require.NoError(t, err)
	assert.Equal(t, 0.0, box(t, e, a).X)
	assert.Equal(t, 28.0, box(t, e, b).X)
}

func TestSolve_AutoMargins(t *testing.T) {
	e := newTestEngine(t)
	root := addNode(t, e, Handle{}, styled(row, size(300, 100)))
	child := addNode(t, e, root, styled(size(100, 20), func(ls *style.LayoutStyle) {
		ls.Margin = style.Edges{Top: style.Auto, Right: style.Auto, Bottom: style.Auto, Left: style.Auto}
	}))

	_, err := e.Solve(root, 300, 100, LTR)
	require.NoError(t, err)

	bx := box(t, e, child)
	assert.Equal(t, 100.0, bx.X)
	assert.Equal(t, 40.0, bx.Y)
}

func TestSolve_MeasureFunc(t *testing.T) {
	e := newTestEngine(t)
	root := addNode(t, e, Handle{}, styled())
	leaf := addNode(t, e, root, styled())

	var calls int
	require.NoError(t, e.SetMeasure(leaf, func(w, h float64) (float64, float64) {
		calls++
		const natural, lineHeight = 120.0, 10.0
		if !math.IsNaN(w) && natural > w {
			return w, math.Ceil(natural/w) * lineHeight
		}
		return natural, lineHeight
	}))

	res, err := e.Solve(root, 100, math.NaN(), LTR)
	require.NoError(t, err)
	assert.Equal(t, 20.0, res.Height)
	assert.Equal(t, Rect{X: 0, Y: 0, Width: 100, Height: 20}, box(t, e, leaf).BorderBox())
	assert.Equal(t, 1, calls, "identical measurements are served from the per-solve cache")

	_, err = e.Solve(root, 100, math.NaN(), LTR)
	require.NoError(t, err)
	assert.Equal(t, 2, calls, "the cache does not outlive a solve")
}

func TestSolve_BlockStacksChildren(t *testing.T) {
	e := newTestEngine(t)
	root := addNode(t, e, Handle{}, styled(row, size(100, -1), func(ls *style.LayoutStyle) {
		ls.Display = style.DisplayBlock
	}))
	a := addNode(t, e, root, styled(size(-1, 10), func(ls *style.LayoutStyle) { ls.FlexGrow = 5 }))
	b := addNode(t, e, root, styled(size(-1, 15)))

	res, err := e.Solve(root, 100, math.NaN(), LTR)
	require.NoError(t, err)
	assert.Equal(t, 25.0, res.Height, "block children do not grow")
	assert.Equal(t, Rect{X: 0, Y: 0, Width: 100, Height: 10}, box(t, e, a).BorderBox())
	assert.Equal(t, Rect{X: 0, Y: 10, Width: 100, Height: 15}, box(t, e, b).BorderBox())
}

func TestSolve_PositionedChildren(t *testing.T) {
	e := newTestEngine(t)
	root := addNode(t, e, Handle{}, styled(row, size(200, 200)))
	abs := addNode(t, e, root, styled(size(20, 20), func(ls *style.LayoutStyle) {
		ls.Position = style.PositionAbsolute
		ls.Inset = style.Edges{Right: style.Points(10), Bottom: style.Points(10)}
	}))
	rel := addNode(t, e, root, styled(size(10, 10), func(ls *style.LayoutStyle) {
		ls.Inset = style.Edges{Left: style.Points(5), Top: style.Points(3)}
	}))
	hidden := addNode(t, e, root, styled(size(10, 10), func(ls *style.LayoutStyle) {
		ls.Display = style.DisplayNone
	}))

	res, err := e.Solve(root, 200, 200, LTR)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Nodes, "display:none subtrees are not laid out")

	assert.Equal(t, Rect{X: 170, Y: 170, Width: 20, Height: 20}, box(t, e, abs).BorderBox())
	assert.Equal(t, Rect{X: 5, Y: 3, Width: 10, Height: 10}, box(t, e, rel).BorderBox(), "absolute children do not take part in flow")
	assert.Equal(t, Box{}, box(t, e, hidden))
}

func TestAlignmentOffsets(t *testing.T) {
	tests := []struct {
		name           string
		dist           distribution
		count          int
		free           float64
		start, spacing float64
	}{
		{"start", distStart, 3, 90, 0, 0},
		{"end", distEnd, 3, 90, 90, 0},
		{"center", distCenter, 3, 90, 45, 0},
		{"between", distBetween, 3, 90, 0, 45},
		{"around", distAround, 3, 90, 15, 30},
		{"evenly", distEvenly, 2, 90, 30, 30},
		{"overflow", distCenter, 3, -10, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, spacing := alignmentOffsets(tt.dist, tt.count, tt.free)
			assert.InDelta(t, tt.start, start, epsilon)
			assert.InDelta(t, tt.spacing, spacing, epsilon)
		})
	}
}
