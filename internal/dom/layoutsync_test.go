package dom

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/domtree/internal/layout"
	"github.com/xkilldash9x/domtree/internal/style"
)

// sample builds root > div[foo] > (span[baz] > "Hello", "world", "!").
func sample(t *testing.T, tree *Tree) (div, span, hello, world, bang NodeID) {
	t.Helper()
	div = mustAppend(t, tree, tree.RootID(), NewElement("div", Attr{Name: "foo", Value: true}))
	span = mustAppend(t, tree, div, NewElement("span", Attr{Name: "baz", Value: false}))
	hello = mustAppend(t, tree, span, NewText("Hello"))
	world = mustAppend(t, tree, div, NewText("world"))
	bang = mustAppend(t, tree, div, NewTextValue('!'))
	return
}

func handleOf(t *testing.T, tree *Tree, id NodeID) layout.Handle {
	t.Helper()
	ref, err := tree.Get(id)
	require.NoError(t, err)
	return ref.LayoutHandle()
}

// assertMirrored checks that the layout children of every node under id are the
// handles of its document children, in the same order.
func assertMirrored(t *testing.T, tree *Tree, id NodeID) {
	t.Helper()
	for n := range tree.Traverse(id) {
		var want []layout.Handle
		for c := range tree.Children(n) {
			want = append(want, handleOf(t, tree, c))
		}
		got := tree.Layout().Children(handleOf(t, tree, n))
		assert.Equal(t, want, got, "layout children of %s", n)
	}
}

func TestBuildLayoutMirrorsTree(t *testing.T) {
	tree := newTestTree(t)
	div, span, hello, world, bang := sample(t, tree)

	require.NoError(t, tree.BuildLayout(tree.RootID()))
	res, err := tree.ReflowSubtree(tree.RootID(), 1024, 768, layout.LTR)
	require.NoError(t, err)

	rootChildren := tree.Layout().Children(handleOf(t, tree, tree.RootID()))
	assert.Equal(t, []layout.Handle{handleOf(t, tree, div)}, rootChildren)
	divChildren := tree.Layout().Children(handleOf(t, tree, div))
	assert.Equal(t, []layout.Handle{
		handleOf(t, tree, span), handleOf(t, tree, world), handleOf(t, tree, bang),
	}, divChildren)
	assertMirrored(t, tree, tree.RootID())

	for id := range tree.Descendants(tree.RootID()) {
		ref, err := tree.Get(id)
		require.NoError(t, err)
		assert.Equal(t, Attached, ref.Linkage(), "%s", id)
		_, styled := ref.Computed()
		assert.True(t, styled)
	}

	assert.Equal(t, 1024.0, res.Width)
	assert.Equal(t, 768.0, res.Height)
	assert.Equal(t, 6, res.Nodes)

	box, err := tree.Box(div)
	require.NoError(t, err)
	assert.Equal(t, 1024.0, box.Width)
	textBox, err := tree.Box(hello)
	require.NoError(t, err)
	assert.Greater(t, textBox.Width, 0.0, "text is measured")
	assert.Greater(t, textBox.Height, 0.0)
}

func TestBuildLayoutIsIdempotent(t *testing.T) {
	tree := newTestTree(t)
	div, _, _, world, _ := sample(t, tree)

	require.NoError(t, tree.BuildLayout(tree.RootID()))
	require.NoError(t, tree.BuildLayout(tree.RootID()))
	assertMirrored(t, tree, tree.RootID())

	// Structural edits followed by a rebuild of the affected subtree.
	require.NoError(t, tree.Detach(world))
	_, err := tree.Prepend(div, NewText("first"))
	require.NoError(t, err)
	require.NoError(t, tree.BuildLayout(div))
	assertMirrored(t, tree, tree.RootID())

	ref, err := tree.Get(world)
	require.NoError(t, err)
	assert.Equal(t, Detached, ref.Linkage())
	_, hasParent := tree.Layout().(*layout.Engine).Parent(ref.LayoutHandle())
	assert.False(t, hasParent)
}

func TestLinkageTransitions(t *testing.T) {
	tree := newTestTree(t)
	div, _, _, _, _ := sample(t, tree)
	require.NoError(t, tree.BuildLayout(tree.RootID()))

	loose := tree.Alloc(NewElement("p"))
	ref, err := tree.Get(loose)
	require.NoError(t, err)
	assert.Equal(t, Unattached, ref.Linkage())

	require.NoError(t, tree.AppendWithLayout(div, loose))
	assert.Equal(t, Attached, ref.Linkage())
	assertMirrored(t, tree, tree.RootID())

	require.NoError(t, tree.RemoveWithLayout(div, loose))
	assert.Equal(t, Detached, ref.Linkage())
	_, ok := tree.Parent(loose)
	assert.False(t, ok)
	assertMirrored(t, tree, tree.RootID())

	// Re-attaching a detached node is allowed.
	require.NoError(t, tree.AppendWithLayout(tree.RootID(), loose))
	assert.Equal(t, Attached, ref.Linkage())

	t.Run("remove non-child", func(t *testing.T) {
		err := tree.RemoveWithLayout(div, loose)
		assert.ErrorIs(t, err, ErrNotChild)
	})
	t.Run("remove from dead parent", func(t *testing.T) {
		gone := tree.Alloc(NewElement("p"))
		require.NoError(t, tree.Dealloc(gone))
		err := tree.RemoveWithLayout(gone, loose)
		assert.ErrorIs(t, err, ErrInvalidParent)
	})
}

func TestAppendWithLayoutRollsBack(t *testing.T) {
	tree := newTestTree(t)
	div, _, _, _, _ := sample(t, tree)
	require.NoError(t, tree.BuildLayout(tree.RootID()))

	loose := tree.Alloc(NewElement("p"))
	// Another owner grabs the handle behind the document's back.
	other := tree.Layout().NewHandle()
	require.NoError(t, tree.Layout().InsertChild(other, handleOf(t, tree, loose), 0))

	err := tree.AppendWithLayout(div, loose)
	require.ErrorIs(t, err, ErrLayoutAttached)

	_, ok := tree.Parent(loose)
	assert.False(t, ok, "document link is rolled back")
	assert.Len(t, collect(tree.Children(div)), 3)
	ref, err := tree.Get(loose)
	require.NoError(t, err)
	assert.NotEqual(t, Attached, ref.Linkage())
}

// flakyBackend fails RemoveChild while broken is set.
type flakyBackend struct {
	*layout.Engine
	broken bool
}

var errBackendDown = errors.New("backend down")

func (b *flakyBackend) RemoveChild(parent, child layout.Handle) error {
	if b.broken {
		return errBackendDown
	}
	return b.Engine.RemoveChild(parent, child)
}

func TestDetachKeepsLinksWhenBackendFails(t *testing.T) {
	backend := &flakyBackend{Engine: layout.NewEngine()}
	tree := newTestTree(t, WithLayoutBackend(backend))
	div, span, _, world, _ := sample(t, tree)
	require.NoError(t, tree.BuildLayout(tree.RootID()))

	backend.broken = true
	err := tree.Detach(span)
	require.ErrorIs(t, err, errBackendDown)

	ref, err := tree.Get(span)
	require.NoError(t, err)
	assert.Equal(t, Attached, ref.Linkage())
	parent, ok := ref.Parent()
	require.True(t, ok)
	assert.Equal(t, div, parent.ID())
	assertOrder(t, []NodeID{span, world}, collect(tree.Children(div))[:2])
	assertMirrored(t, tree, tree.RootID())

	backend.broken = false
	require.NoError(t, tree.Detach(span))
	ref, err = tree.Get(span)
	require.NoError(t, err)
	assert.Equal(t, Detached, ref.Linkage())
	assertMirrored(t, tree, tree.RootID())
}

func TestCalculateStylesInherits(t *testing.T) {
	tree := newTestTree(t)
	div := mustAppend(t, tree, tree.RootID(), NewStyled("div", style.Parse("font-size: 20px; color: red")))
	span := mustAppend(t, tree, div, NewElement("span"))
	text := mustAppend(t, tree, span, NewText("hi"))

	require.NoError(t, tree.CalculateStyles(tree.RootID()))

	for _, id := range []NodeID{span, text} {
		ref, err := tree.Get(id)
		require.NoError(t, err)
		c, ok := ref.Computed()
		require.True(t, ok)
		assert.Equal(t, 20.0, c.FontSize)
		assert.Equal(t, "red", c.Lookup("color", ""))
	}

	assert.Zero(t, tree.Layout().ChildCount(handleOf(t, tree, tree.RootID())), "no layout edges are created")
	ref, err := tree.Get(div)
	require.NoError(t, err)
	assert.Equal(t, Unattached, ref.Linkage())

	t.Run("subtree uses the parent's computed style", func(t *testing.T) {
		loose := tree.Alloc(NewElement("em"))
		require.NoError(t, tree.AppendWithLayout(div, loose))
		ref, err := tree.Get(loose)
		require.NoError(t, err)
		c, _ := ref.Computed()
		assert.Equal(t, 20.0, c.FontSize)
	})
}

func TestDeallocReleasesHandles(t *testing.T) {
	tree := newTestTree(t)
	div, span, hello, _, _ := sample(t, tree)
	require.NoError(t, tree.BuildLayout(tree.RootID()))

	handles := []layout.Handle{handleOf(t, tree, span), handleOf(t, tree, hello)}
	require.NoError(t, tree.Dealloc(span))

	for _, h := range handles {
		_, err := tree.Layout().Box(h)
		assert.ErrorIs(t, err, layout.ErrInvalidHandle)
	}
	assert.Equal(t, 2, tree.Layout().ChildCount(handleOf(t, tree, div)))
	assertMirrored(t, tree, tree.RootID())
}

func TestReflowErrors(t *testing.T) {
	tree := newTestTree(t)
	gone := mustAppend(t, tree, tree.RootID(), NewElement("div"))
	require.NoError(t, tree.Dealloc(gone))

	_, err := tree.ReflowSubtree(gone, 10, 10, layout.LTR)
	assert.ErrorIs(t, err, ErrNodeDeallocated)
	_, err = tree.Box(gone)
	assert.ErrorIs(t, err, ErrNodeDeallocated)
	assert.ErrorIs(t, tree.BuildLayout(gone), ErrNodeDeallocated)
}
