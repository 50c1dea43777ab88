// internal/dom/tree.go
package dom

import (
	"errors"
	"fmt"
	"iter"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/domtree/internal/arena"
	"github.com/xkilldash9x/domtree/internal/layout"
	"github.com/xkilldash9x/domtree/internal/style"
)

// StyleEngine resolves raw styles into computed styles and appearance metrics.
type StyleEngine interface {
	ComputeStyle(raw style.Style, parent style.Context) style.Computed
	ComputeAppearance(c style.Computed) style.Appearance
}

// TextMeasurer is implemented by style engines that can size text runs. Text
// nodes get a layout measure function when the tree's engine provides one.
type TextMeasurer interface {
	MeasureText(text string, c style.Computed, maxWidth float64) (width, height float64)
}

// Tree is an arena-backed document. It has a single owner and is not safe for
// concurrent use.
type Tree struct {
	id     uuid.UUID
	nodes  *arena.Arena[Node]
	root   NodeID
	base   *zap.Logger
	logger *zap.Logger
	layout layout.Backend
	styles StyleEngine
}

// Option configures a Tree.
type Option func(*treeOptions)

type treeOptions struct {
	logger   *zap.Logger
	backend  layout.Backend
	styles   StyleEngine
	capacity int
	id       uuid.UUID
}

func WithLogger(logger *zap.Logger) Option {
	return func(o *treeOptions) { o.logger = logger }
}

// WithLayoutBackend mirrors the tree onto the given backend instead of a private
// flexbox engine.
func WithLayoutBackend(b layout.Backend) Option {
	return func(o *treeOptions) { o.backend = b }
}

func WithStyleEngine(s StyleEngine) Option {
	return func(o *treeOptions) { o.styles = s }
}

// WithCapacity pre-sizes the node arena.
func WithCapacity(n int) Option {
	return func(o *treeOptions) { o.capacity = n }
}

// WithID fixes the tree identity, mainly for reproducible output.
func WithID(id uuid.UUID) Option {
	return func(o *treeOptions) { o.id = id }
}

// NewTree creates a tree holding only its root fragment.
func NewTree(opts ...Option) *Tree {
	o := treeOptions{logger: zap.NewNop(), id: uuid.New()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.backend == nil {
		o.backend = layout.NewEngine(layout.WithLogger(o.logger), layout.WithCapacity(o.capacity))
	}
	if o.styles == nil {
		o.styles = style.NewEngine(style.WithLogger(o.logger))
	}

	t := &Tree{
		id:     o.id,
		nodes:  arena.New[Node](arena.WithCapacity(o.capacity)),
		base:   o.logger,
		logger: o.logger.Named("dom").With(zap.Stringer("tree", o.id)),
		layout: o.backend,
		styles: o.styles,
	}
	t.root = t.Alloc(NewElement(string(Fragment)))
	return t
}

// ID returns the tree's identity.
func (t *Tree) ID() uuid.UUID { return t.id }

// RootID returns the id of the root fragment.
func (t *Tree) RootID() NodeID { return t.root }

// Len returns the number of allocated nodes, attached or not, including the root.
func (t *Tree) Len() int { return t.nodes.Len() }

// Stats exposes arena bookkeeping for metrics.
func (t *Tree) Stats() arena.Stats { return t.nodes.Stats() }

// Layout returns the backend the tree mirrors onto.
func (t *Tree) Layout() layout.Backend { return t.layout }

// Contains reports whether id addresses a live node of this tree.
func (t *Tree) Contains(id NodeID) bool { return t.nodes.Contains(id) }

// Alloc stores n as an unattached node and gives it a layout handle.
func (t *Tree) Alloc(n Node) NodeID {
	n.parent, n.prev, n.next, n.first, n.last = arena.Nil, arena.Nil, arena.Nil, arena.Nil, arena.Nil
	n.handle = t.layout.NewHandle()
	n.linkage = Unattached
	n.computed, n.appearance, n.styled = style.Computed{}, style.Appearance{}, false
	if n.Data == nil {
		n.Data = Void{}
	}
	return t.nodes.Alloc(n)
}

func (t *Tree) node(op string, id NodeID) (*Node, error) {
	n, ok := t.nodes.TryGet(id)
	if !ok {
		return nil, opError(op, id, ErrNodeDeallocated)
	}
	return n, nil
}

// mustNode resolves an id reached through a structural link. A miss means the
// link structure is corrupt.
func (t *Tree) mustNode(id NodeID) *Node {
	n, ok := t.nodes.TryGet(id)
	if !ok {
		t.logger.DPanic("dangling structural link", zap.Stringer("id", id))
		panic(fmt.Sprintf("dom: dangling structural link to %s", id))
	}
	return n
}

// -- Navigation --

func (t *Tree) link(id NodeID, pick func(*Node) NodeID) (NodeID, bool) {
	n, ok := t.nodes.TryGet(id)
	if !ok {
		return arena.Nil, false
	}
	l := pick(n)
	return l, !l.IsNil()
}

func (t *Tree) Parent(id NodeID) (NodeID, bool) {
	return t.link(id, func(n *Node) NodeID { return n.parent })
}

func (t *Tree) FirstChild(id NodeID) (NodeID, bool) {
	return t.link(id, func(n *Node) NodeID { return n.first })
}

func (t *Tree) LastChild(id NodeID) (NodeID, bool) {
	return t.link(id, func(n *Node) NodeID { return n.last })
}

func (t *Tree) NextSibling(id NodeID) (NodeID, bool) {
	return t.link(id, func(n *Node) NodeID { return n.next })
}

func (t *Tree) PrevSibling(id NodeID) (NodeID, bool) {
	return t.link(id, func(n *Node) NodeID { return n.prev })
}

// SiblingIDs returns (previous, next); missing links are nil IDs.
func (t *Tree) SiblingIDs(id NodeID) (prev, next NodeID) {
	if n, ok := t.nodes.TryGet(id); ok {
		return n.prev, n.next
	}
	return arena.Nil, arena.Nil
}

// EdgeIDs returns (first child, last child); missing links are nil IDs.
func (t *Tree) EdgeIDs(id NodeID) (first, last NodeID) {
	if n, ok := t.nodes.TryGet(id); ok {
		return n.first, n.last
	}
	return arena.Nil, arena.Nil
}

// IsAncestor reports whether anc is id or one of its ancestors.
func (t *Tree) IsAncestor(anc, id NodeID) bool {
	for cur := id; !cur.IsNil(); {
		if cur == anc {
			return true
		}
		n, ok := t.nodes.TryGet(cur)
		if !ok {
			return false
		}
		cur = n.parent
	}
	return false
}

// -- Iteration --

// Children yields the children of id in order. The loop body may detach the
// yielded child; iteration then continues with its former next sibling.
func (t *Tree) Children(id NodeID) iter.Seq[NodeID] {
	return func(yield func(NodeID) bool) {
		n, ok := t.nodes.TryGet(id)
		if !ok {
			return
		}
		for c := n.first; !c.IsNil(); {
			cn, ok := t.nodes.TryGet(c)
			if !ok {
				return
			}
			next := cn.next
			if !yield(c) {
				return
			}
			c = next
		}
	}
}

// Descendants yields the subtree below id in pre-order, excluding id.
func (t *Tree) Descendants(id NodeID) iter.Seq[NodeID] {
	return t.walk(id, false)
}

// Traverse yields id and its subtree in pre-order. Detaching the yielded node in
// the loop body skips its subtree.
func (t *Tree) Traverse(id NodeID) iter.Seq[NodeID] {
	return t.walk(id, true)
}

func (t *Tree) walk(top NodeID, self bool) iter.Seq[NodeID] {
	return func(yield func(NodeID) bool) {
		if !t.nodes.Contains(top) {
			return
		}
		if self {
			parent := t.mustNode(top).parent
			if !yield(top) {
				return
			}
			if n, ok := t.nodes.TryGet(top); !ok || n.parent != parent {
				return
			}
		}
		first, _ := t.FirstChild(top)
		for cur := first; !cur.IsNil(); {
			n, ok := t.nodes.TryGet(cur)
			if !ok {
				return
			}
			parent := n.parent
			skip := t.following(top, cur)
			if !yield(cur) {
				return
			}
			if n, ok = t.nodes.TryGet(cur); ok && n.parent == parent && !n.first.IsNil() {
				cur = n.first
			} else {
				cur = skip
			}
		}
	}
}

// following returns the pre-order successor of id that lies outside id's subtree,
// staying within top.
func (t *Tree) following(top, id NodeID) NodeID {
	for cur := id; cur != top; {
		n, ok := t.nodes.TryGet(cur)
		if !ok {
			return arena.Nil
		}
		if !n.next.IsNil() {
			return n.next
		}
		cur = n.parent
		if cur.IsNil() {
			break
		}
	}
	return arena.Nil
}

// -- Structural mutation --

// Append allocates n and links it as the last child of parent.
func (t *Tree) Append(parent NodeID, n Node) (NodeID, error) {
	if !t.nodes.Contains(parent) {
		return arena.Nil, opError("append", parent, ErrInvalidParent)
	}
	id := t.Alloc(n)
	t.linkLast(parent, id)
	return id, nil
}

// Prepend allocates n and links it as the first child of parent.
func (t *Tree) Prepend(parent NodeID, n Node) (NodeID, error) {
	if !t.nodes.Contains(parent) {
		return arena.Nil, opError("prepend", parent, ErrInvalidParent)
	}
	id := t.Alloc(n)
	t.linkFirst(parent, id)
	return id, nil
}

// InsertBefore allocates n and links it as the previous sibling of ref.
func (t *Tree) InsertBefore(ref NodeID, n Node) (NodeID, error) {
	rn, err := t.node("insert before", ref)
	if err != nil {
		return arena.Nil, err
	}
	if rn.parent.IsNil() {
		return arena.Nil, opError("insert before", ref, ErrInvalidParent)
	}
	id := t.Alloc(n)
	t.linkBefore(ref, id)
	return id, nil
}

// InsertIDBefore re-attaches an existing unattached node as the previous sibling of ref.
func (t *Tree) InsertIDBefore(ref, id NodeID) error {
	rn, err := t.node("insert before", ref)
	if err != nil {
		return err
	}
	if rn.parent.IsNil() {
		return opError("insert before", ref, ErrInvalidParent)
	}
	if err := t.checkAttach("insert before", rn.parent, id); err != nil {
		return err
	}
	t.linkBefore(ref, id)
	return nil
}

// AppendID re-attaches an existing unattached node as the last child of parent.
func (t *Tree) AppendID(parent, id NodeID) error {
	if err := t.checkAttach("append", parent, id); err != nil {
		return err
	}
	t.linkLast(parent, id)
	return nil
}

// PrependID re-attaches an existing unattached node as the first child of parent.
func (t *Tree) PrependID(parent, id NodeID) error {
	if err := t.checkAttach("prepend", parent, id); err != nil {
		return err
	}
	t.linkFirst(parent, id)
	return nil
}

func (t *Tree) checkAttach(op string, parent, id NodeID) error {
	if !t.nodes.Contains(parent) {
		return opError(op, parent, ErrInvalidParent)
	}
	n, err := t.node(op, id)
	if err != nil {
		return err
	}
	switch {
	case id == t.root:
		return opError(op, id, ErrRootAttach)
	case !n.parent.IsNil():
		return opError(op, id, ErrAlreadyAttached)
	case t.IsAncestor(id, parent):
		return opError(op, id, ErrCycle)
	}
	return nil
}

func (t *Tree) linkLast(parent, id NodeID) {
	p, c := t.mustPair(parent, id)
	prev := p.last
	c.parent, c.prev, c.next = parent, prev, arena.Nil
	p.last = id
	if prev.IsNil() {
		p.first = id
	} else {
		t.mustNode(prev).next = id
	}
	t.logger.Debug("linked node", zap.Stringer("parent", parent), zap.Stringer("node", id), zap.String("at", "end"))
}

func (t *Tree) linkFirst(parent, id NodeID) {
	p, c := t.mustPair(parent, id)
	next := p.first
	c.parent, c.prev, c.next = parent, arena.Nil, next
	p.first = id
	if next.IsNil() {
		p.last = id
	} else {
		t.mustNode(next).prev = id
	}
	t.logger.Debug("linked node", zap.Stringer("parent", parent), zap.Stringer("node", id), zap.String("at", "start"))
}

func (t *Tree) linkBefore(ref, id NodeID) {
	r, c := t.mustPair(ref, id)
	parent, prev := r.parent, r.prev
	c.parent, c.prev, c.next = parent, prev, ref
	r.prev = id
	if prev.IsNil() {
		t.mustNode(parent).first = id
	} else {
		t.mustNode(prev).next = id
	}
}

func (t *Tree) mustPair(a, b NodeID) (*Node, *Node) {
	x, y, err := t.nodes.GetPair(a, b)
	if err != nil {
		t.logger.DPanic("paired access failed", zap.Stringer("a", a), zap.Stringer("b", b), zap.Error(err))
		panic(fmt.Sprintf("dom: paired access %s/%s: %v", a, b, err))
	}
	return x, y
}

// Detach unlinks id and its subtree from its parent. The subtree stays allocated
// and can be re-attached. If the node's layout handle is attached, that edge is
// removed too. Detaching an unattached node is a no-op.
func (t *Tree) Detach(id NodeID) error {
	if id == t.root {
		return opError("detach", id, ErrRootDetach)
	}
	n, err := t.node("detach", id)
	if err != nil {
		return err
	}
	if n.parent.IsNil() {
		return nil
	}

	parent, prev, next := n.parent, n.prev, n.next
	p := t.mustNode(parent)
	if n.linkage == Attached {
		if err := t.layout.RemoveChild(p.handle, n.handle); err != nil && !errors.Is(err, layout.ErrNotChild) {
			return opError("detach", id, err)
		}
		n.linkage = Detached
	}

	if prev.IsNil() {
		p.first = next
	} else {
		t.mustNode(prev).next = next
	}
	if next.IsNil() {
		p.last = prev
	} else {
		t.mustNode(next).prev = prev
	}
	n.parent, n.prev, n.next = arena.Nil, arena.Nil, arena.Nil
	t.logger.Debug("detached node", zap.Stringer("parent", parent), zap.Stringer("node", id))
	return nil
}

// Dealloc detaches id and frees it with its whole subtree. Every freed id, and
// every layout handle they owned, becomes invalid.
func (t *Tree) Dealloc(id NodeID) error {
	if id == t.root {
		return opError("dealloc", id, ErrRootDetach)
	}
	if err := t.Detach(id); err != nil {
		return err
	}
	var doomed []NodeID
	for d := range t.Traverse(id) {
		doomed = append(doomed, d)
	}
	for _, d := range doomed {
		n, ok := t.nodes.Remove(d)
		if ok {
			t.layout.Release(n.handle)
		}
	}
	t.logger.Debug("deallocated subtree", zap.Stringer("node", id), zap.Int("count", len(doomed)))
	return nil
}

// AppendTree moves every child of other's root, in order, to the end of parent's
// children. The nodes are re-allocated in this tree and other is left empty.
func (t *Tree) AppendTree(parent NodeID, other *Tree) (bool, error) {
	return t.spliceTree("append tree", parent, other, false)
}

// PrependTree is AppendTree inserting before parent's current first child.
func (t *Tree) PrependTree(parent NodeID, other *Tree) (bool, error) {
	return t.spliceTree("prepend tree", parent, other, true)
}

func (t *Tree) spliceTree(op string, parent NodeID, other *Tree, front bool) (bool, error) {
	p, ok := t.nodes.TryGet(parent)
	if !ok {
		return false, opError(op, parent, ErrInvalidParent)
	}
	if other == nil || other == t {
		return false, opError(op, parent, ErrEmptySourceTree)
	}
	if _, ok := other.FirstChild(other.root); !ok {
		return false, opError(op, parent, ErrEmptySourceTree)
	}

	anchor := arena.Nil
	if front {
		anchor = p.first
	}
	var moved []NodeID
	for c := range other.Children(other.root) {
		moved = append(moved, c)
	}
	for _, c := range moved {
		id := t.importSubtree(other, c)
		if anchor.IsNil() {
			t.linkLast(parent, id)
		} else {
			t.linkBefore(anchor, id)
		}
		if err := other.Dealloc(c); err != nil {
			return false, fmt.Errorf("dom: %s: releasing source node: %w", op, err)
		}
	}
	t.logger.Debug("spliced tree", zap.Stringer("parent", parent), zap.Stringer("source", other.id), zap.Int("roots", len(moved)))
	return true, nil
}

// importSubtree copies the payload of src's subtree at id into this tree and
// returns the id of the copy's top node.
func (t *Tree) importSubtree(src *Tree, id NodeID) NodeID {
	n := src.mustNode(id)
	copied := t.Alloc(Node{Data: n.Data, Style: n.Style})
	for c := range src.Children(id) {
		t.linkLast(copied, t.importSubtree(src, c))
	}
	return copied
}

// -- Access --

// Get returns a read view of id.
func (t *Tree) Get(id NodeID) (Ref, error) {
	if _, err := t.node("get", id); err != nil {
		return Ref{}, err
	}
	return Ref{tree: t, id: id}, nil
}

// GetMut returns a mutable view of id.
func (t *Tree) GetMut(id NodeID) (RefMut, error) {
	if _, err := t.node("get mut", id); err != nil {
		return RefMut{}, err
	}
	return RefMut{Ref{tree: t, id: id}}, nil
}

// GetMutPair returns simultaneous mutable access to two distinct nodes.
func (t *Tree) GetMutPair(a, b NodeID) (RefMutPair, error) {
	if _, _, err := t.nodes.GetPair(a, b); err != nil {
		if errors.Is(err, arena.ErrAlias) {
			return RefMutPair{}, opError("get mut pair", a, ErrSameNodeAlias)
		}
		id := a
		if t.nodes.Contains(a) {
			id = b
		}
		return RefMutPair{}, opError("get mut pair", id, ErrNodeDeallocated)
	}
	return RefMutPair{tree: t, first: a, second: b}, nil
}

func (t *Tree) Root() Ref { return Ref{tree: t, id: t.root} }

func (t *Tree) RootMut() RefMut { return RefMut{Ref{tree: t, id: t.root}} }

// Document returns the first child of the root, which holds the parsed document.
func (t *Tree) Document() (Ref, error) {
	first, ok := t.FirstChild(t.root)
	if !ok {
		return Ref{}, opError("document", t.root, ErrNoDocument)
	}
	return t.Get(first)
}
