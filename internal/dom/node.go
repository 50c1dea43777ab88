// internal/dom/node.go
package dom

import (
	"fmt"
	"strings"

	"github.com/xkilldash9x/domtree/internal/arena"
	"github.com/xkilldash9x/domtree/internal/layout"
	"github.com/xkilldash9x/domtree/internal/style"
)

// NodeID identifies a node within one Tree. IDs from different trees are not
// interchangeable.
type NodeID = arena.ID

// -- Payload --

// NodeData is the payload of a node: *Element, *Text, *ShadowHost or Void.
type NodeData interface {
	isNodeData()
}

// KnownElement is a tag name with first-class support.
type KnownElement string

const (
	Fragment KnownElement = "fragment"
	HTML     KnownElement = "html"
	Head     KnownElement = "head"
	Body     KnownElement = "body"
	Div      KnownElement = "div"
	Span     KnownElement = "span"
	P        KnownElement = "p"
	A        KnownElement = "a"
	Img      KnownElement = "img"
	Button   KnownElement = "button"
	Input    KnownElement = "input"
	Template KnownElement = "template"
)

var knownElements = map[KnownElement]bool{
	Fragment: true, HTML: true, Head: true, Body: true, Div: true, Span: true,
	P: true, A: true, Img: true, Button: true, Input: true, Template: true,
}

// TagName is an element name, optionally namespaced (svg:rect).
type TagName struct {
	Space, Local string
}

// Tag parses "local" or "space:local".
func Tag(name string) TagName {
	if space, local, ok := strings.Cut(name, ":"); ok {
		return TagName{Space: space, Local: local}
	}
	return TagName{Local: name}
}

// Known reports whether the tag is one of the known element names.
func (t TagName) Known() (KnownElement, bool) {
	k := KnownElement(t.Local)
	if t.Space != "" || !knownElements[k] {
		return "", false
	}
	return k, true
}

func (t TagName) String() string {
	if t.Space == "" {
		return t.Local
	}
	return t.Space + ":" + t.Local
}

type Element struct {
	Tag        TagName
	Attributes Attributes
}

type Text struct {
	Content string
}

// ShadowHost holds an encapsulated sub-document.
type ShadowHost struct {
	Tree *Tree
}

// Void is an empty placeholder payload.
type Void struct{}

// cloneData copies element and text payloads. A shadow host copy shares its nested tree.
func cloneData(d NodeData) NodeData {
	switch v := d.(type) {
	case *Element:
		return &Element{Tag: v.Tag, Attributes: v.Attributes.Clone()}
	case *Text:
		return &Text{Content: v.Content}
	case *ShadowHost:
		return &ShadowHost{Tree: v.Tree}
	default:
		return d
	}
}

func (*Element) isNodeData()    {}
func (*Text) isNodeData()       {}
func (*ShadowHost) isNodeData() {}
func (Void) isNodeData()        {}

// -- Node --

// Linkage tracks whether a node's layout handle is wired into its parent's.
type Linkage int

const (
	Unattached Linkage = iota
	Attached
	Detached
)

func (l Linkage) String() string {
	switch l {
	case Attached:
		return "attached"
	case Detached:
		return "detached"
	default:
		return "unattached"
	}
}

// Node is a tree element. Structural links are maintained by the Tree only.
type Node struct {
	Data  NodeData
	Style style.Style

	computed   style.Computed
	appearance style.Appearance
	styled     bool
	handle     layout.Handle
	linkage    Linkage

	parent, prev, next, first, last NodeID
}

// NewText creates a text node.
func NewText(content string) Node {
	return Node{Data: &Text{Content: content}}
}

// NewTextValue creates a text node from the printed form of v (numbers, bools, runes).
func NewTextValue(v any) Node {
	if r, ok := v.(rune); ok {
		return NewText(string(r))
	}
	return NewText(fmt.Sprint(v))
}

// NewElement creates an element with attributes classified in order.
func NewElement(tag string, attrs ...Attr) Node {
	return Node{Data: &Element{Tag: Tag(tag), Attributes: NewAttributes(attrs...)}}
}

// NewStyled creates an element with a raw style.
func NewStyled(tag string, s style.Style, attrs ...Attr) Node {
	n := NewElement(tag, attrs...)
	n.Style = s
	return n
}

// NewVoid creates a node with no payload, optionally carrying a style.
func NewVoid(s ...style.Style) Node {
	n := Node{Data: Void{}}
	for _, st := range s {
		n.Style = n.Style.Merge(st)
	}
	return n
}

// NewShadowHost wraps a nested tree. A nil tree is replaced lazily by an empty one.
func NewShadowHost(t *Tree) Node {
	return Node{Data: &ShadowHost{Tree: t}}
}

func (n *Node) IsText() bool {
	_, ok := n.Data.(*Text)
	return ok
}

func (n *Node) IsElement() bool {
	_, ok := n.Data.(*Element)
	return ok
}

func (n *Node) IsShadowHost() bool {
	_, ok := n.Data.(*ShadowHost)
	return ok
}

func (n *Node) IsVoid() bool {
	switch n.Data.(type) {
	case Void, nil:
		return true
	}
	return false
}

// IsKnown reports whether the node is an element with the given known tag.
func (n *Node) IsKnown(k KnownElement) bool {
	tag, ok := n.Tag()
	if !ok {
		return false
	}
	known, ok := tag.Known()
	return ok && known == k
}

// Text returns the content of a text node.
func (n *Node) Text() (string, bool) {
	if t, ok := n.Data.(*Text); ok {
		return t.Content, true
	}
	return "", false
}

// Tag returns the tag of an element.
func (n *Node) Tag() (TagName, bool) {
	if e, ok := n.Data.(*Element); ok {
		return e.Tag, true
	}
	return TagName{}, false
}

// Attributes returns an element's attributes, or nil for other payloads.
func (n *Node) Attributes() *Attributes {
	if e, ok := n.Data.(*Element); ok {
		return &e.Attributes
	}
	return nil
}

// DropListeners removes an element's listeners, returning them.
func (n *Node) DropListeners() map[EventType]Listener {
	if attrs := n.Attributes(); attrs != nil {
		return attrs.DropListeners()
	}
	return nil
}

// ShadowTree returns the nested tree of a shadow host. Other payloads, and hosts
// created without a tree, yield a fresh empty tree.
func (n *Node) ShadowTree() *Tree {
	if h, ok := n.Data.(*ShadowHost); ok {
		if h.Tree == nil {
			h.Tree = NewTree()
		}
		return h.Tree
	}
	return NewTree()
}

// Computed returns the style resolved by the last BuildLayout or CalculateStyles pass.
func (n *Node) Computed() (style.Computed, bool) { return n.computed, n.styled }

// Appearance returns the appearance metrics of the last style pass.
func (n *Node) Appearance() style.Appearance { return n.appearance }

// LayoutHandle returns the node's handle into the tree's layout backend.
func (n *Node) LayoutHandle() layout.Handle { return n.handle }

func (n *Node) Linkage() Linkage { return n.linkage }

func (n *Node) String() string {
	switch d := n.Data.(type) {
	case *Element:
		return "<" + d.Tag.String() + ">"
	case *Text:
		return fmt.Sprintf("%q", d.Content)
	case *ShadowHost:
		return "#shadow-root"
	default:
		return "#void"
	}
}
