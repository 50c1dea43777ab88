// File: cmd/render.go
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/domtree/internal/dom"
	"github.com/xkilldash9x/domtree/internal/layout"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// boxJSON is one node's border box in document coordinates.
type boxJSON struct {
	XPath  string  `json:"xpath,omitempty"`
	Tag    string  `json:"tag"`
	Text   string  `json:"text,omitempty"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type resultJSON struct {
	Width     float64          `json:"width"`
	Height    float64          `json:"height"`
	Direction layout.Direction `json:"direction"`
	Nodes     int              `json:"nodes"`
}

type documentJSON struct {
	File   string     `json:"file"`
	TreeID string     `json:"tree_id"`
	Result resultJSON `json:"result"`
	Boxes  []boxJSON  `json:"boxes"`
}

// loadDocument parses a file ("-" reads stdin), mirrors it onto the layout
// backend and reflows it in the configured viewport.
func (a *app) loadDocument(ctx context.Context, file string, stdin io.Reader) (*dom.Tree, layout.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, layout.Result{}, err
	}
	dir, err := a.direction()
	if err != nil {
		return nil, layout.Result{}, err
	}

	r := stdin
	if file != "-" {
		f, err := os.Open(file)
		if err != nil {
			return nil, layout.Result{}, fmt.Errorf("opening %s: %w", file, err)
		}
		defer f.Close()
		r = f
	}

	tree, err := dom.ParseHTML(r, a.treeOptions()...)
	if err != nil {
		return nil, layout.Result{}, fmt.Errorf("%s: %w", file, err)
	}
	if err := tree.BuildLayout(tree.RootID()); err != nil {
		return nil, layout.Result{}, fmt.Errorf("%s: %w", file, err)
	}
	lc := a.cfg.Layout()
	res, err := tree.ReflowSubtree(tree.RootID(), lc.Width, lc.Height, dir)
	if err != nil {
		return nil, layout.Result{}, fmt.Errorf("%s: %w", file, err)
	}
	a.metrics.Record(tree)
	a.logger.Info("Laid out document",
		zap.String("file", file),
		zap.Stringer("tree", tree.ID()),
		zap.Int("nodes", tree.Len()),
		zap.Float64("width", res.Width),
		zap.Float64("height", res.Height),
	)
	return tree, res, nil
}

// describe renders id's box at the given absolute origin.
func describe(tree *dom.Tree, id dom.NodeID, x, y float64, b layout.Box) boxJSON {
	out := boxJSON{X: x, Y: y, Width: b.Width, Height: b.Height}
	ref, err := tree.Get(id)
	if err != nil {
		return out
	}
	if tag, ok := ref.Tag(); ok {
		out.Tag = tag.String()
		out.XPath = dom.XPath(tree, id)
	} else if text, ok := ref.Text(); ok {
		out.Tag = "#text"
		out.Text = text
	} else {
		n := ref.MustValue()
		out.Tag = n.String()
	}
	return out
}

// boxes lists every attached node in pre-order with absolute coordinates.
func boxes(tree *dom.Tree) ([]boxJSON, error) {
	type origin struct{ x, y float64 }
	origins := map[dom.NodeID]origin{tree.RootID(): {}}
	var out []boxJSON
	for id := range tree.Descendants(tree.RootID()) {
		b, err := tree.Box(id)
		if err != nil {
			return nil, err
		}
		parent, _ := tree.Parent(id)
		o := origins[parent]
		abs := origin{o.x + b.X, o.y + b.Y}
		origins[id] = abs
		out = append(out, describe(tree, id, abs.x, abs.y, b))
	}
	return out, nil
}

// absoluteBox sums box offsets up the ancestor chain.
func absoluteBox(tree *dom.Tree, id dom.NodeID) (boxJSON, error) {
	b, err := tree.Box(id)
	if err != nil {
		return boxJSON{}, err
	}
	x, y := b.X, b.Y
	for p, ok := tree.Parent(id); ok && p != tree.RootID(); p, ok = tree.Parent(p) {
		pb, err := tree.Box(p)
		if err != nil {
			return boxJSON{}, err
		}
		x, y = x+pb.X, y+pb.Y
	}
	return describe(tree, id, x, y, b), nil
}
