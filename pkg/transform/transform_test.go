package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Cassielxd/moduforge-rs-sub000/pkg/tree"
)

func textLeaf(text string) tree.NodeEnum {
	return tree.NodeEnum{Node: tree.Node{ID: tree.NewNodeID(), Type: "text", Attrs: tree.Attrs{"text": text}}}
}

// buildRootWithTwoParagraphs mirrors scenario 2 from spec §8:
// root{p1{"hello"}, p2{"world"}}.
func buildRootWithTwoParagraphs(t *testing.T) (tree.Tree, tree.NodeID, tree.NodeID) {
	t.Helper()
	tr := tree.New("doc", 4)

	p1 := tree.NodeEnum{Node: tree.Node{ID: tree.NewNodeID(), Type: "paragraph"}, Children: []tree.NodeEnum{textLeaf("hello")}}
	p2 := tree.NodeEnum{Node: tree.Node{ID: tree.NewNodeID(), Type: "paragraph"}, Children: []tree.NodeEnum{textLeaf("world")}}

	tr, err := tr.Add(tr.RootID(), []tree.NodeEnum{p1, p2}, nil)
	require.NoError(t, err)
	return tr, p1.Node.ID, p2.Node.ID
}

func TestTransactionInverseRestoresRemovedSubtree(t *testing.T) {
	tr, _, p2 := buildRootWithTwoParagraphs(t)
	before := tr

	tx := NewTransaction().AddStep(RemoveNode{Parent: tr.RootID(), IDs: []tree.NodeID{p2}})
	after, inverses, err := tx.Apply(tr)
	require.NoError(t, err)
	require.NoError(t, after.Validate())

	children, err := after.Children(after.RootID())
	require.NoError(t, err)
	assert.Len(t, children, 1, "p2 should be detached")

	restored, err := Reverse(after, inverses)
	require.NoError(t, err)
	require.NoError(t, restored.Validate())

	restoredChildren, err := restored.Children(restored.RootID())
	require.NoError(t, err)
	require.Len(t, restoredChildren, 2)
	assert.Equal(t, restoredChildren[1], p2, "p2 restored at its original index")

	textChildren, err := restored.Children(p2)
	require.NoError(t, err)
	require.Len(t, textChildren, 1)
	restoredLeaf, err := restored.GetNode(textChildren[0])
	require.NoError(t, err)
	assert.Equal(t, "world", restoredLeaf.Attrs["text"])

	beforeChildren, err := before.Children(before.RootID())
	require.NoError(t, err)
	assert.Len(t, beforeChildren, 2, "the pre-transaction Tree value must be unaffected")
}

func TestTransactionFailureLeavesBaseTreeUsable(t *testing.T) {
	tr, _, _ := buildRootWithTwoParagraphs(t)

	tx := NewTransaction().AddStep(RemoveNode{Parent: tr.RootID(), IDs: []tree.NodeID{tree.NewNodeID()}})
	_, _, err := tx.Apply(tr)
	require.Error(t, err)

	txErr, ok := err.(*Error)
	require.True(t, ok)
	assert.Equal(t, "StepFailed", txErr.Kind)
	assert.Equal(t, 0, txErr.Index)

	require.NoError(t, tr.Validate())
	children, err := tr.Children(tr.RootID())
	require.NoError(t, err)
	assert.Len(t, children, 2, "failed transaction must not have mutated the base tree")
}

func TestSetAttrsInverseCapturesOldValue(t *testing.T) {
	tr := tree.New("doc", 4)
	n := tree.NodeEnum{Node: tree.Node{ID: tree.NewNodeID(), Type: "paragraph", Attrs: tree.Attrs{"align": "left"}}}
	tr, err := tr.Add(tr.RootID(), []tree.NodeEnum{n}, nil)
	require.NoError(t, err)

	tx := NewTransaction().AddStep(SetAttrs{ID: n.Node.ID, Changes: tree.Attrs{"align": "right"}})
	after, inverses, err := tx.Apply(tr)
	require.NoError(t, err)

	updated, err := after.GetNode(n.Node.ID)
	require.NoError(t, err)
	assert.Equal(t, "right", updated.Attrs["align"])

	restored, err := Reverse(after, inverses)
	require.NoError(t, err)
	original, err := restored.GetNode(n.Node.ID)
	require.NoError(t, err)
	assert.Equal(t, "left", original.Attrs["align"])
}

func TestMoveNodeInverseRestoresOriginalPosition(t *testing.T) {
	tr := tree.New("doc", 4)
	s1 := tree.NodeEnum{Node: tree.Node{ID: tree.NewNodeID(), Type: "section"}}
	s2 := tree.NodeEnum{Node: tree.Node{ID: tree.NewNodeID(), Type: "section"}}
	para := tree.NodeEnum{Node: tree.Node{ID: tree.NewNodeID(), Type: "paragraph"}}

	tr, err := tr.Add(tr.RootID(), []tree.NodeEnum{s1, s2}, nil)
	require.NoError(t, err)
	tr, err = tr.Add(s1.Node.ID, []tree.NodeEnum{para}, nil)
	require.NoError(t, err)

	tx := NewTransaction().AddStep(MoveNode{Src: s1.Node.ID, Dst: s2.Node.ID, ID: para.Node.ID})
	after, inverses, err := tx.Apply(tr)
	require.NoError(t, err)

	restored, err := Reverse(after, inverses)
	require.NoError(t, err)

	parent, _, err := restored.GetParent(para.Node.ID)
	require.NoError(t, err)
	assert.Equal(t, s1.Node.ID, parent)
}

func TestMultiNodeRemoveInverseRestoresBothInOriginalOrder(t *testing.T) {
	tr := tree.New("doc", 4)
	a := tree.NodeEnum{Node: tree.Node{ID: tree.NewNodeID(), Type: "p"}}
	b := tree.NodeEnum{Node: tree.Node{ID: tree.NewNodeID(), Type: "p"}}
	c := tree.NodeEnum{Node: tree.Node{ID: tree.NewNodeID(), Type: "p"}}
	tr, err := tr.Add(tr.RootID(), []tree.NodeEnum{a, b, c}, nil)
	require.NoError(t, err)

	tx := NewTransaction().AddStep(RemoveNode{Parent: tr.RootID(), IDs: []tree.NodeID{a.Node.ID, c.Node.ID}})
	after, inverses, err := tx.Apply(tr)
	require.NoError(t, err)

	children, err := after.Children(after.RootID())
	require.NoError(t, err)
	assert.Equal(t, []tree.NodeID{b.Node.ID}, children)

	restored, err := Reverse(after, inverses)
	require.NoError(t, err)
	restoredChildren, err := restored.Children(restored.RootID())
	require.NoError(t, err)
	assert.Equal(t, []tree.NodeID{a.Node.ID, b.Node.ID, c.Node.ID}, restoredChildren)
}
