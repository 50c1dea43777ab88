// internal/dom/query.go
package dom

import (
	"fmt"
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

// mirror renders the tree as an *html.Node document so XPath can run over it.
// The root fragment maps to the document node.
type mirror struct {
	doc   *html.Node
	ids   map[*html.Node]NodeID
	nodes map[NodeID]*html.Node
}

func (t *Tree) mirror() *mirror {
	m := &mirror{
		doc:   &html.Node{Type: html.DocumentNode},
		ids:   make(map[*html.Node]NodeID),
		nodes: make(map[NodeID]*html.Node),
	}
	m.ids[m.doc] = t.root
	m.nodes[t.root] = m.doc
	t.mirrorChildren(m, t.root, m.doc)
	return m
}

func (t *Tree) mirrorChildren(m *mirror, id NodeID, parent *html.Node) {
	for c := range t.Children(id) {
		n := t.mustNode(c)
		var hn *html.Node
		switch d := n.Data.(type) {
		case *Element:
			hn = &html.Node{Type: html.ElementNode, Data: d.Tag.Local, Namespace: d.Tag.Space}
			for name, v := range d.Attributes.All() {
				key, ns := name, ""
				if space, local, ok := strings.Cut(name, ":"); ok {
					ns, key = space, local
				}
				hn.Attr = append(hn.Attr, html.Attribute{Namespace: ns, Key: key, Val: FormatValue(v)})
			}
		case *Text:
			hn = &html.Node{Type: html.TextNode, Data: d.Content}
		case *ShadowHost:
			hn = &html.Node{Type: html.ElementNode, Data: "template",
				Attr: []html.Attribute{{Key: "shadowrootmode", Val: "open"}}}
		default:
			hn = &html.Node{Type: html.CommentNode}
		}
		parent.AppendChild(hn)
		m.ids[hn] = c
		m.nodes[c] = hn
		t.mirrorChildren(m, c, hn)
	}
}

// Query evaluates an XPath expression over the attached part of the tree and
// returns the matching node ids in document order.
func Query(t *Tree, expr string) ([]NodeID, error) {
	m := t.mirror()
	found, err := htmlquery.QueryAll(m.doc, expr)
	if err != nil {
		return nil, fmt.Errorf("dom: xpath %q: %w", expr, err)
	}
	ids := make([]NodeID, 0, len(found))
	for _, hn := range found {
		if id, ok := m.ids[hn]; ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// XPath generates a stable path for an attached element, anchoring on the
// nearest ancestor with an id attribute. Non-element nodes resolve to their
// parent element's path.
func XPath(t *Tree, id NodeID) string {
	var path []string
	for cur := id; !cur.IsNil() && cur != t.root; {
		n, ok := t.nodes.TryGet(cur)
		if !ok {
			break
		}
		parent := n.parent
		tag, isElement := n.Tag()
		if !isElement || tag.Local == "" {
			cur = parent
			continue
		}

		if v, ok := n.Attributes().GetString("id"); ok && v != "" {
			path = append(path, fmt.Sprintf(`//*[@id=%s]`, xpathLiteral(v)))
			break
		}

		// XPath indices are 1-based.
		index := 1
		for prev := n.prev; !prev.IsNil(); {
			pn := t.mustNode(prev)
			if ptag, ok := pn.Tag(); ok && ptag == tag {
				index++
			}
			prev = pn.prev
		}
		path = append(path, fmt.Sprintf("%s[%d]", tag.Local, index))
		cur = parent
	}

	if len(path) == 0 {
		return "/"
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	xpath := strings.Join(path, "/")
	if !strings.HasPrefix(xpath, "//*[@id=") {
		xpath = "/" + xpath
	}
	return xpath
}

// xpathLiteral quotes s as an XPath 1.0 string literal. XPath has no escapes,
// so a value holding both quote kinds is spliced together with concat().
func xpathLiteral(s string) string {
	switch {
	case !strings.Contains(s, "'"):
		return "'" + s + "'"
	case !strings.Contains(s, `"`):
		return `"` + s + `"`
	}
	parts := strings.Split(s, "'")
	quoted := make([]string, 0, 2*len(parts)-1)
	for i, p := range parts {
		if i > 0 {
			quoted = append(quoted, `"'"`)
		}
		quoted = append(quoted, "'"+p+"'")
	}
	return "concat(" + strings.Join(quoted, ", ") + ")"
}
