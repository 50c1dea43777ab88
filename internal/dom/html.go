// internal/dom/html.go
package dom

import (
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/domtree/internal/style"
)

// Elements that never generate boxes.
var hiddenElements = map[string]bool{
	"head": true, "script": true, "style": true, "title": true, "meta": true,
	"link": true, "noscript": true, "template": true,
}

// ParseHTML builds a tree from markup. The parsed <html> element becomes the
// document node under the root fragment. Inline style attributes become raw node
// styles, whitespace-only text is dropped, and a declarative shadow root
// (<template shadowrootmode>) becomes a shadow host holding a nested tree.
func ParseHTML(r io.Reader, opts ...Option) (*Tree, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("dom: parsing html: %w", err)
	}
	t := NewTree(opts...)
	count, err := t.importHTML(t.root, doc)
	if err != nil {
		return nil, err
	}
	t.logger.Debug("parsed html", zap.Int("nodes", count))
	return t, nil
}

func (t *Tree) importHTML(parent NodeID, hn *html.Node) (int, error) {
	count := 0
	for c := hn.FirstChild; c != nil; c = c.NextSibling {
		var node Node
		switch c.Type {
		case html.TextNode:
			text := strings.Join(strings.Fields(c.Data), " ")
			if text == "" {
				continue
			}
			node = NewText(text)
		case html.ElementNode:
			if isShadowRoot(c) {
				nested := NewTree(WithLogger(t.base), WithStyleEngine(t.styles))
				n, err := nested.importHTML(nested.root, c)
				if err != nil {
					return count, err
				}
				if _, err := t.Append(parent, NewShadowHost(nested)); err != nil {
					return count, err
				}
				count += n + 1
				continue
			}
			node = elementFromHTML(c)
		default:
			// Comments, doctypes and raw document nodes carry nothing to lay out.
			continue
		}

		id, err := t.Append(parent, node)
		if err != nil {
			return count, err
		}
		count++
		if c.Type == html.ElementNode {
			n, err := t.importHTML(id, c)
			if err != nil {
				return count, err
			}
			count += n
		}
	}
	return count, nil
}

func elementFromHTML(hn *html.Node) Node {
	tag := hn.Data
	if hn.Namespace != "" {
		tag = hn.Namespace + ":" + hn.Data
	}

	var raw style.Style
	if hiddenElements[hn.Data] {
		raw.Set("display", "none")
	}
	attrs := make([]Attr, 0, len(hn.Attr))
	for _, a := range hn.Attr {
		name := a.Key
		if a.Namespace != "" {
			name = a.Namespace + ":" + a.Key
		}
		if name == "style" {
			raw = raw.Merge(style.Parse(a.Val))
		}
		attrs = append(attrs, Attr{Name: name, Value: a.Val})
	}
	return NewStyled(tag, raw, attrs...)
}

func isShadowRoot(hn *html.Node) bool {
	if hn.Data != "template" {
		return false
	}
	for _, a := range hn.Attr {
		if a.Key == "shadowrootmode" || a.Key == "shadowroot" {
			return true
		}
	}
	return false
}
