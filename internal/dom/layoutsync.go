// internal/dom/layoutsync.go
package dom

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/domtree/internal/layout"
	"github.com/xkilldash9x/domtree/internal/style"
)

// parentComputed returns the computed style of id's parent, if it has been styled.
func (t *Tree) parentComputed(id NodeID) *style.Computed {
	pid, ok := t.Parent(id)
	if !ok {
		return nil
	}
	p := t.mustNode(pid)
	if !p.styled {
		return nil
	}
	c := p.computed
	return &c
}

// applyStyle resolves id's computed style and pushes its layout subset onto the
// node's handle. Childless text nodes also get a text measure function.
func (t *Tree) applyStyle(op string, id NodeID, parent *style.Computed) (*Node, error) {
	n, err := t.node(op, id)
	if err != nil {
		return nil, err
	}
	n.computed = t.styles.ComputeStyle(n.Style, style.Context{Parent: parent})
	n.appearance = t.styles.ComputeAppearance(n.computed)
	n.styled = true

	if err := t.layout.ApplyStyles(n.handle, n.computed.Layout); err != nil {
		return nil, opError(op, id, err)
	}
	if content, ok := n.Text(); ok {
		var measure layout.MeasureFunc
		if m, ok := t.styles.(TextMeasurer); ok && n.first.IsNil() {
			computed := n.computed
			measure = func(w, _ float64) (float64, float64) {
				return m.MeasureText(content, computed, w)
			}
		}
		if err := t.layout.SetMeasure(n.handle, measure); err != nil {
			return nil, opError(op, id, err)
		}
	}
	return n, nil
}

// BuildLayout styles id and its subtree and mirrors the subtree's parent/child
// edges onto the layout backend. Each child is built before it is attached, in
// sibling order. Rebuilding replaces the existing layout children so the mirror
// stays isomorphic to the document.
func (t *Tree) BuildLayout(id NodeID) error {
	if err := t.buildLayout(id, t.parentComputed(id)); err != nil {
		return err
	}
	t.logger.Debug("built layout", zap.Stringer("node", id))
	return nil
}

func (t *Tree) buildLayout(id NodeID, parent *style.Computed) error {
	n, err := t.applyStyle("build layout", id, parent)
	if err != nil {
		return err
	}
	computed, handle := n.computed, n.handle

	for c := range t.Children(id) {
		cn := t.mustNode(c)
		if cn.linkage == Attached {
			if err := t.layout.RemoveChild(handle, cn.handle); err != nil && !errors.Is(err, layout.ErrNotChild) {
				return opError("build layout", c, err)
			}
			cn.linkage = Detached
		}
	}
	for _, h := range t.layout.Children(handle) {
		if err := t.layout.RemoveChild(handle, h); err != nil {
			return opError("build layout", id, err)
		}
	}

	for c := range t.Children(id) {
		if err := t.buildLayout(c, &computed); err != nil {
			return err
		}
		if err := t.attachLayout("build layout", id, c); err != nil {
			return err
		}
	}
	return nil
}

// attachLayout links child's handle as the last layout child of parent's handle.
func (t *Tree) attachLayout(op string, parent, child NodeID) error {
	pair, err := t.GetMutPair(parent, child)
	if err != nil {
		return err
	}
	p, c, err := pair.Values()
	if err != nil {
		return err
	}
	if c.linkage == Attached {
		return opError(op, child, ErrLayoutAttached)
	}
	if err := t.layout.InsertChild(p.handle, c.handle, t.layout.ChildCount(p.handle)); err != nil {
		if errors.Is(err, layout.ErrHasParent) {
			return opError(op, child, fmt.Errorf("%w: %v", ErrLayoutAttached, err))
		}
		return opError(op, child, err)
	}
	c.linkage = Attached
	return nil
}

// CalculateStyles resolves computed styles for id and its subtree without touching
// layout edges.
func (t *Tree) CalculateStyles(id NodeID) error {
	return t.calculateStyles(id, t.parentComputed(id))
}

func (t *Tree) calculateStyles(id NodeID, parent *style.Computed) error {
	n, err := t.applyStyle("calculate styles", id, parent)
	if err != nil {
		return err
	}
	computed := n.computed
	for c := range t.Children(id) {
		if err := t.calculateStyles(c, &computed); err != nil {
			return err
		}
	}
	return nil
}

// ReflowSubtree solves layout once, rooted at id's handle, inside width x height.
// BuildLayout must have mirrored the subtree first.
func (t *Tree) ReflowSubtree(id NodeID, width, height uint32, dir layout.Direction) (layout.Result, error) {
	n, err := t.node("reflow", id)
	if err != nil {
		return layout.Result{}, err
	}
	res, err := t.layout.Solve(n.handle, float64(width), float64(height), dir)
	if err != nil {
		return layout.Result{}, opError("reflow", id, err)
	}
	t.logger.Debug("reflowed subtree",
		zap.Stringer("node", id),
		zap.Uint32("width", width),
		zap.Uint32("height", height),
		zap.Stringer("direction", res.Direction),
		zap.Int("laid_out", res.Nodes),
	)
	return res, nil
}

// Box returns the geometry the last reflow assigned to id.
func (t *Tree) Box(id NodeID) (layout.Box, error) {
	n, err := t.node("box", id)
	if err != nil {
		return layout.Box{}, err
	}
	b, err := t.layout.Box(n.handle)
	if err != nil {
		return layout.Box{}, opError("box", id, err)
	}
	return b, nil
}

// AppendWithLayout links an unattached child as parent's last child, styles it in
// parent's context, and attaches its layout handle in the same step. On a layout
// failure the document link is rolled back.
func (t *Tree) AppendWithLayout(parent, child NodeID) error {
	if err := t.AppendID(parent, child); err != nil {
		return err
	}
	if err := t.calculateStyles(child, t.parentComputed(child)); err != nil {
		return errors.Join(err, t.Detach(child))
	}
	if err := t.attachLayout("append with layout", parent, child); err != nil {
		return errors.Join(err, t.Detach(child))
	}
	t.logger.Debug("appended with layout", zap.Stringer("parent", parent), zap.Stringer("node", child))
	return nil
}

// RemoveWithLayout detaches child from parent together with its layout edge.
func (t *Tree) RemoveWithLayout(parent, child NodeID) error {
	if !t.nodes.Contains(parent) {
		return opError("remove with layout", parent, ErrInvalidParent)
	}
	cn, err := t.node("remove with layout", child)
	if err != nil {
		return err
	}
	if cn.parent != parent {
		return opError("remove with layout", child, ErrNotChild)
	}
	return t.Detach(child)
}
