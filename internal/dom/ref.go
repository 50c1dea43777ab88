// internal/dom/ref.go
package dom

import (
	"fmt"
	"iter"

	"github.com/xkilldash9x/domtree/internal/layout"
	"github.com/xkilldash9x/domtree/internal/style"
)

// -- Ref --

// Ref is a read view of one node. Every accessor re-validates the id, so a view
// that outlives its node reports ErrNodeDeallocated instead of reading a reused slot.
type Ref struct {
	tree *Tree
	id   NodeID
}

func (r Ref) ID() NodeID     { return r.id }
func (r Ref) Tree() *Tree    { return r.tree }
func (r Ref) IsRoot() bool   { return r.tree != nil && r.id == r.tree.root }
func (r Ref) Valid() bool    { return r.tree != nil && r.tree.nodes.Contains(r.id) }
func (r Ref) String() string { return r.id.String() }

// Err reports ErrNodeDeallocated once the node is gone.
func (r Ref) Err() error {
	if !r.Valid() {
		return opError("ref", r.id, ErrNodeDeallocated)
	}
	return nil
}

func (r Ref) lookup() (*Node, bool) {
	if r.tree == nil {
		return nil, false
	}
	return r.tree.nodes.TryGet(r.id)
}

// Value returns a copy of the node. Element and text payloads are copied, so
// editing the copy or appending it elsewhere leaves this node untouched.
func (r Ref) Value() (Node, error) {
	n, ok := r.lookup()
	if !ok {
		return Node{}, opError("value", r.id, ErrNodeDeallocated)
	}
	c := *n
	c.Data = cloneData(n.Data)
	return c, nil
}

// MustValue is Value that panics on a stale view.
func (r Ref) MustValue() Node {
	n, err := r.Value()
	if err != nil {
		panic(err)
	}
	return n
}

// Data returns a copy of the node payload, or nil for a stale view.
func (r Ref) Data() NodeData {
	if n, ok := r.lookup(); ok {
		return cloneData(n.Data)
	}
	return nil
}

func (r Ref) Style() style.Style {
	if n, ok := r.lookup(); ok {
		return n.Style
	}
	return style.Style{}
}

func (r Ref) Computed() (style.Computed, bool) {
	if n, ok := r.lookup(); ok {
		return n.Computed()
	}
	return style.Computed{}, false
}

func (r Ref) Appearance() style.Appearance {
	if n, ok := r.lookup(); ok {
		return n.appearance
	}
	return style.Appearance{}
}

func (r Ref) LayoutHandle() layout.Handle {
	if n, ok := r.lookup(); ok {
		return n.handle
	}
	return layout.Handle{}
}

func (r Ref) Linkage() Linkage {
	if n, ok := r.lookup(); ok {
		return n.linkage
	}
	return Unattached
}

func (r Ref) IsText() bool       { n, ok := r.lookup(); return ok && n.IsText() }
func (r Ref) IsElement() bool    { n, ok := r.lookup(); return ok && n.IsElement() }
func (r Ref) IsShadowHost() bool { n, ok := r.lookup(); return ok && n.IsShadowHost() }
func (r Ref) IsVoid() bool       { n, ok := r.lookup(); return ok && n.IsVoid() }

func (r Ref) IsKnown(k KnownElement) bool {
	n, ok := r.lookup()
	return ok && n.IsKnown(k)
}

func (r Ref) Text() (string, bool) {
	if n, ok := r.lookup(); ok {
		return n.Text()
	}
	return "", false
}

func (r Ref) Tag() (TagName, bool) {
	if n, ok := r.lookup(); ok {
		return n.Tag()
	}
	return TagName{}, false
}

// Attribute looks up an element attribute by name.
func (r Ref) Attribute(name string) (any, bool) {
	n, ok := r.lookup()
	if !ok {
		return nil, false
	}
	if attrs := n.Attributes(); attrs != nil {
		return attrs.Get(name)
	}
	return nil, false
}

// Box returns the geometry of the last reflow covering this node.
func (r Ref) Box() (layout.Box, error) {
	if r.tree == nil {
		return layout.Box{}, opError("box", r.id, ErrNodeDeallocated)
	}
	return r.tree.Box(r.id)
}

// -- Navigation --

func (r Ref) to(id NodeID, ok bool) (Ref, bool) {
	if !ok {
		return Ref{}, false
	}
	return Ref{tree: r.tree, id: id}, true
}

func (r Ref) Parent() (Ref, bool)      { return r.to(r.tree.Parent(r.id)) }
func (r Ref) FirstChild() (Ref, bool)  { return r.to(r.tree.FirstChild(r.id)) }
func (r Ref) LastChild() (Ref, bool)   { return r.to(r.tree.LastChild(r.id)) }
func (r Ref) NextSibling() (Ref, bool) { return r.to(r.tree.NextSibling(r.id)) }
func (r Ref) PrevSibling() (Ref, bool) { return r.to(r.tree.PrevSibling(r.id)) }

func (r Ref) SiblingIDs() (prev, next NodeID) { return r.tree.SiblingIDs(r.id) }
func (r Ref) EdgeIDs() (first, last NodeID)   { return r.tree.EdgeIDs(r.id) }

// Get returns a view of another node of the same tree.
func (r Ref) Get(id NodeID) (Ref, error) { return r.tree.Get(id) }

func (r Ref) refs(seq iter.Seq[NodeID]) iter.Seq[Ref] {
	return func(yield func(Ref) bool) {
		for id := range seq {
			if !yield(Ref{tree: r.tree, id: id}) {
				return
			}
		}
	}
}

func (r Ref) Children() iter.Seq[Ref]    { return r.refs(r.tree.Children(r.id)) }
func (r Ref) Descendants() iter.Seq[Ref] { return r.refs(r.tree.Descendants(r.id)) }
func (r Ref) Traverse() iter.Seq[Ref]    { return r.refs(r.tree.Traverse(r.id)) }

// -- RefMut --

// RefMut is a mutable view of one node. It embeds the read accessors of Ref.
type RefMut struct {
	Ref
}

// AsRef narrows the view to read-only access.
func (m RefMut) AsRef() Ref { return m.Ref }

// Node returns the live payload for in-place edits. Structural links are not
// reachable through it.
func (m RefMut) Node() (*Node, error) {
	n, ok := m.lookup()
	if !ok {
		return nil, opError("node", m.id, ErrNodeDeallocated)
	}
	return n, nil
}

func (m RefMut) SetStyle(s style.Style) error {
	n, err := m.Node()
	if err != nil {
		return err
	}
	n.Style = s
	return nil
}

func (m RefMut) SetData(d NodeData) error {
	n, err := m.Node()
	if err != nil {
		return err
	}
	if d == nil {
		d = Void{}
	}
	n.Data = d
	return nil
}

// GetMut returns a mutable view of another node of the same tree.
func (m RefMut) GetMut(id NodeID) (RefMut, error) { return m.tree.GetMut(id) }

// GetMutSelfAnd pairs this node with another for simultaneous mutation.
func (m RefMut) GetMutSelfAnd(id NodeID) (RefMutPair, error) {
	return m.tree.GetMutPair(m.id, id)
}

func (m RefMut) Append(n Node) (RefMut, error) {
	id, err := m.tree.Append(m.id, n)
	if err != nil {
		return RefMut{}, err
	}
	return RefMut{Ref{tree: m.tree, id: id}}, nil
}

func (m RefMut) Prepend(n Node) (RefMut, error) {
	id, err := m.tree.Prepend(m.id, n)
	if err != nil {
		return RefMut{}, err
	}
	return RefMut{Ref{tree: m.tree, id: id}}, nil
}

func (m RefMut) AppendID(id NodeID) error  { return m.tree.AppendID(m.id, id) }
func (m RefMut) PrependID(id NodeID) error { return m.tree.PrependID(m.id, id) }

func (m RefMut) AppendTree(other *Tree) (bool, error)  { return m.tree.AppendTree(m.id, other) }
func (m RefMut) PrependTree(other *Tree) (bool, error) { return m.tree.PrependTree(m.id, other) }

func (m RefMut) Detach() error { return m.tree.Detach(m.id) }

func (m RefMut) AppendWithLayout(child NodeID) error { return m.tree.AppendWithLayout(m.id, child) }
func (m RefMut) RemoveWithLayout(child NodeID) error { return m.tree.RemoveWithLayout(m.id, child) }

func (m RefMut) BuildLayout() error     { return m.tree.BuildLayout(m.id) }
func (m RefMut) CalculateStyles() error { return m.tree.CalculateStyles(m.id) }

func (m RefMut) ReflowSubtree(width, height uint32, dir layout.Direction) (layout.Result, error) {
	return m.tree.ReflowSubtree(m.id, width, height, dir)
}

// -- RefMutPair --

// RefMutPair is mutable access to two distinct nodes at once. It is only
// obtainable through GetMutPair or GetMutSelfAnd.
type RefMutPair struct {
	tree          *Tree
	first, second NodeID
}

func (p RefMutPair) IDs() (NodeID, NodeID) { return p.first, p.second }

// Values returns both payloads, re-validating the pair.
func (p RefMutPair) Values() (*Node, *Node, error) {
	if p.tree == nil {
		return nil, nil, opError("pair values", p.first, ErrNodeDeallocated)
	}
	a, b, err := p.tree.nodes.GetPair(p.first, p.second)
	if err != nil {
		return nil, nil, opError("pair values", p.first, fmt.Errorf("%w: %v", ErrNodeDeallocated, err))
	}
	return a, b, nil
}
