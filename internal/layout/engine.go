// internal/layout/engine.go
package layout

import (
	"errors"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/xkilldash9x/domtree/internal/arena"
	"github.com/xkilldash9x/domtree/internal/style"
)

var (
	ErrInvalidHandle   = errors.New("layout: invalid or released handle")
	ErrHasParent       = errors.New("layout: child already has a parent")
	ErrNotChild        = errors.New("layout: handle is not a child of the given parent")
	ErrIndexOutOfRange = errors.New("layout: child index out of range")
	ErrCycle           = errors.New("layout: insertion would create a cycle")
	ErrHasMeasure      = errors.New("layout: nodes with a measure function cannot have children")
	ErrHasChildren     = errors.New("layout: a measure function requires a childless node")
)

// Handle addresses one node of a layout backend. The zero Handle is never valid.
type Handle struct {
	id arena.ID
}

func (h Handle) IsNil() bool    { return h.id.IsNil() }
func (h Handle) String() string { return h.id.String() }

// MeasureFunc reports the content size of a leaf. Either available size may be NaN,
// meaning unconstrained.
type MeasureFunc func(availableWidth, availableHeight float64) (width, height float64)

// Backend is the layout tree a document mirrors its structure onto.
type Backend interface {
	NewHandle() Handle
	Release(h Handle)
	InsertChild(parent, child Handle, index int) error
	RemoveChild(parent, child Handle) error
	ChildCount(h Handle) int
	Children(h Handle) []Handle
	ApplyStyles(h Handle, s style.LayoutStyle) error
	SetMeasure(h Handle, fn MeasureFunc) error
	Solve(h Handle, width, height float64, dir Direction) (Result, error)
	Box(h Handle) (Box, error)
}

var _ Backend = (*Engine)(nil)

type node struct {
	style    style.LayoutStyle
	parent   Handle
	children []Handle
	measure  MeasureFunc
	box      Box

	epoch uint64
	cache map[cacheKey][2]float64
}

// Engine is an in-process flexbox backend. It is not safe for concurrent use.
type Engine struct {
	nodes  *arena.Arena[node]
	logger *zap.Logger
	epoch  uint64
	laid   int
}

// Option configures an Engine.
type Option func(*Engine)

func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger.Named("layout")
		}
	}
}

// WithCapacity pre-sizes the node store.
func WithCapacity(n int) Option {
	return func(e *Engine) {
		e.nodes = arena.New[node](arena.WithCapacity(n))
	}
}

// NewEngine creates an empty layout backend.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		nodes:  arena.New[node](),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// NewHandle allocates a detached node with default style.
func (e *Engine) NewHandle() Handle {
	return Handle{id: e.nodes.Alloc(node{style: style.DefaultLayoutStyle()})}
}

// Release detaches h from its parent, orphans its children and frees it.
// Releasing an invalid handle is a no-op.
func (e *Engine) Release(h Handle) {
	n, ok := e.nodes.TryGet(h.id)
	if !ok {
		return
	}
	if !n.parent.IsNil() {
		if p, ok := e.nodes.TryGet(n.parent.id); ok {
			p.children = slices.DeleteFunc(p.children, func(c Handle) bool { return c == h })
		}
	}
	for _, c := range n.children {
		if cn, ok := e.nodes.TryGet(c.id); ok {
			cn.parent = Handle{}
		}
	}
	e.nodes.Dealloc(h.id)
}

func (e *Engine) node(h Handle) (*node, error) {
	n, ok := e.nodes.TryGet(h.id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrInvalidHandle, h)
	}
	return n, nil
}

// mustNode resolves a handle reached through the engine's own links. A miss means
// the link structure is corrupt.
func (e *Engine) mustNode(h Handle) *node {
	n, ok := e.nodes.TryGet(h.id)
	if !ok {
		e.logger.DPanic("dangling layout link", zap.Stringer("handle", h))
		panic(fmt.Sprintf("layout: dangling link to %s", h))
	}
	return n
}

// InsertChild links child under parent at index (0..ChildCount).
func (e *Engine) InsertChild(parent, child Handle, index int) error {
	p, c, err := e.nodes.GetPair(parent.id, child.id)
	if err != nil {
		if errors.Is(err, arena.ErrAlias) {
			return fmt.Errorf("%w: %s into itself", ErrCycle, child)
		}
		return fmt.Errorf("%w: %v", ErrInvalidHandle, err)
	}
	if !c.parent.IsNil() {
		return fmt.Errorf("%w: %s", ErrHasParent, child)
	}
	if p.measure != nil {
		return fmt.Errorf("%w: %s", ErrHasMeasure, parent)
	}
	if index < 0 || index > len(p.children) {
		return fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, index, len(p.children))
	}
	for anc := p.parent; !anc.IsNil(); anc = e.mustNode(anc).parent {
		if anc == child {
			return fmt.Errorf("%w: %s is an ancestor of %s", ErrCycle, child, parent)
		}
	}

	p.children = slices.Insert(p.children, index, child)
	c.parent = parent
	return nil
}

// RemoveChild unlinks child from parent.
func (e *Engine) RemoveChild(parent, child Handle) error {
	p, err := e.node(parent)
	if err != nil {
		return err
	}
	c, err := e.node(child)
	if err != nil {
		return err
	}
	i := slices.Index(p.children, child)
	if i < 0 || c.parent != parent {
		return fmt.Errorf("%w: %s under %s", ErrNotChild, child, parent)
	}
	p.children = slices.Delete(p.children, i, i+1)
	c.parent = Handle{}
	return nil
}

// ChildCount returns 0 for an invalid handle.
func (e *Engine) ChildCount(h Handle) int {
	n, ok := e.nodes.TryGet(h.id)
	if !ok {
		return 0
	}
	return len(n.children)
}

// Children returns a copy of h's children in order.
func (e *Engine) Children(h Handle) []Handle {
	n, ok := e.nodes.TryGet(h.id)
	if !ok {
		return nil
	}
	return slices.Clone(n.children)
}

// Parent returns h's parent, if any.
func (e *Engine) Parent(h Handle) (Handle, bool) {
	n, ok := e.nodes.TryGet(h.id)
	if !ok || n.parent.IsNil() {
		return Handle{}, false
	}
	return n.parent, true
}

func (e *Engine) ApplyStyles(h Handle, s style.LayoutStyle) error {
	n, err := e.node(h)
	if err != nil {
		return err
	}
	n.style = s
	return nil
}

// Style returns the layout style last applied to h.
func (e *Engine) Style(h Handle) (style.LayoutStyle, error) {
	n, err := e.node(h)
	if err != nil {
		return style.LayoutStyle{}, err
	}
	return n.style, nil
}

// SetMeasure installs (or with nil, clears) the content measure of a leaf.
func (e *Engine) SetMeasure(h Handle, fn MeasureFunc) error {
	n, err := e.node(h)
	if err != nil {
		return err
	}
	if fn != nil && len(n.children) > 0 {
		return fmt.Errorf("%w: %s", ErrHasChildren, h)
	}
	n.measure = fn
	return nil
}

// Box returns the geometry computed by the most recent Solve covering h.
func (e *Engine) Box(h Handle) (Box, error) {
	n, err := e.node(h)
	if err != nil {
		return Box{}, err
	}
	return n.box, nil
}

// Len returns the number of live handles.
func (e *Engine) Len() int { return e.nodes.Len() }

// Solve lays out the subtree rooted at h inside the given available size.
// NaN leaves a dimension unconstrained.
func (e *Engine) Solve(h Handle, width, height float64, dir Direction) (Result, error) {
	root, err := e.node(h)
	if err != nil {
		return Result{}, err
	}
	if dir == DirectionInherit {
		dir = LTR
	}
	e.epoch++
	e.laid = 0

	margin, _, _, _ := resolveEdges(root.style, width)
	c := constraints{
		width: undefined, height: undefined,
		availW: minus(width, margin.Sum(Horizontal)), availH: minus(height, margin.Sum(Vertical)),
		ownerW: width, ownerH: height,
	}
	// An auto-sized root fills the available space.
	if root.style.Width.IsAuto() {
		c.width = c.availW
	}
	if root.style.Height.IsAuto() {
		c.height = c.availH
	}

	w, hgt := e.layout(root, c, dir, true)
	root.box.X, root.box.Y = margin.Left, margin.Top
	root.box.Margin = margin

	e.logger.Debug("solved layout",
		zap.Stringer("root", h),
		zap.Float64("width", w),
		zap.Float64("height", hgt),
		zap.Stringer("direction", dir),
		zap.Int("nodes", e.laid),
	)
	return Result{Width: w, Height: hgt, Direction: dir, Nodes: e.laid}, nil
}
