package tree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func leaf(nodeType string) NodeEnum {
	return NodeEnum{Node: Node{ID: NewNodeID(), Type: nodeType, Attrs: Attrs{}}}
}

func TestNewTreeHasValidatedRoot(t *testing.T) {
	tr := New("doc", 4)
	require.NoError(t, tr.Validate())
	root, err := tr.GetNode(tr.RootID())
	require.NoError(t, err)
	assert.Equal(t, "doc", root.Type)
	assert.Empty(t, root.Content)
}

func TestAddAppendsChildrenAndPreservesInvariants(t *testing.T) {
	tr := New("doc", 4)
	a := leaf("paragraph")
	b := leaf("paragraph")

	tr, err := tr.Add(tr.RootID(), []NodeEnum{a, b}, nil)
	require.NoError(t, err)
	require.NoError(t, tr.Validate())

	children, err := tr.Children(tr.RootID())
	require.NoError(t, err)
	assert.Equal(t, []NodeID{a.Node.ID, b.Node.ID}, children)

	parent, has, err := tr.GetParent(a.Node.ID)
	require.NoError(t, err)
	assert.True(t, has)
	assert.Equal(t, tr.RootID(), parent)
}

func TestAddIsIdempotentForDuplicateIDs(t *testing.T) {
	tr := New("doc", 4)
	a := leaf("paragraph")

	tr, err := tr.Add(tr.RootID(), []NodeEnum{a}, nil)
	require.NoError(t, err)
	tr2, err := tr.Add(tr.RootID(), []NodeEnum{a}, nil)
	require.NoError(t, err)

	children, err := tr2.Children(tr2.RootID())
	require.NoError(t, err)
	assert.Len(t, children, 1, "re-adding an existing id must not duplicate it")
}

func TestAddAtIndexInsertsAtPosition(t *testing.T) {
	tr := New("doc", 4)
	a, b, c := leaf("p"), leaf("p"), leaf("p")

	tr, err := tr.Add(tr.RootID(), []NodeEnum{a, c}, nil)
	require.NoError(t, err)
	tr, err = tr.AddAtIndex(tr.RootID(), 1, b)
	require.NoError(t, err)

	children, err := tr.Children(tr.RootID())
	require.NoError(t, err)
	assert.Equal(t, []NodeID{a.Node.ID, b.Node.ID, c.Node.ID}, children)
}

func TestRemoveNodeByIDDetachesSubtree(t *testing.T) {
	tr := New("doc", 4)
	child := leaf("p")
	grandchild := leaf("text")
	child.Children = []NodeEnum{grandchild}

	tr, err := tr.Add(tr.RootID(), []NodeEnum{child}, nil)
	require.NoError(t, err)

	tr, err = tr.RemoveNodeByID(child.Node.ID)
	require.NoError(t, err)
	require.NoError(t, tr.Validate())

	_, err = tr.GetNode(child.Node.ID)
	assert.Error(t, err)
	_, err = tr.GetNode(grandchild.Node.ID)
	assert.Error(t, err, "removing a subtree must detach descendants too")

	children, err := tr.Children(tr.RootID())
	require.NoError(t, err)
	assert.Empty(t, children)
}

func TestRemoveRootIsForbidden(t *testing.T) {
	tr := New("doc", 4)
	_, err := tr.RemoveNodeByID(tr.RootID())
	require.Error(t, err)
	treeErr, ok := err.(*Error)
	require.True(t, ok)
	assert.Equal(t, "CannotRemoveRoot", treeErr.Kind)
}

func TestMoveNodeRewiresParent(t *testing.T) {
	tr := New("doc", 4)
	section1 := leaf("section")
	section2 := leaf("section")
	para := leaf("paragraph")

	tr, err := tr.Add(tr.RootID(), []NodeEnum{section1, section2}, nil)
	require.NoError(t, err)
	tr, err = tr.Add(section1.Node.ID, []NodeEnum{para}, nil)
	require.NoError(t, err)

	tr, err = tr.MoveNode(section1.Node.ID, section2.Node.ID, para.Node.ID, nil)
	require.NoError(t, err)
	require.NoError(t, tr.Validate())

	parent, _, err := tr.GetParent(para.Node.ID)
	require.NoError(t, err)
	assert.Equal(t, section2.Node.ID, parent)

	s1Children, err := tr.Children(section1.Node.ID)
	require.NoError(t, err)
	assert.Empty(t, s1Children)
}

func TestUpdateAttrReturnsOldValuesForInverse(t *testing.T) {
	tr := New("doc", 4)
	n := leaf("paragraph")
	n.Node.Attrs = Attrs{"align": "left"}
	tr, err := tr.Add(tr.RootID(), []NodeEnum{n}, nil)
	require.NoError(t, err)

	tr, old, err := tr.UpdateAttr(n.Node.ID, Attrs{"align": "right"})
	require.NoError(t, err)
	assert.Equal(t, Attrs{"align": "left"}, old)

	updated, err := tr.GetNode(n.Node.ID)
	require.NoError(t, err)
	assert.Equal(t, "right", updated.Attrs["align"])
}

func TestAddMarkDropsExcludedMarks(t *testing.T) {
	tr := New("doc", 4)
	n := leaf("text")
	tr, err := tr.Add(tr.RootID(), []NodeEnum{n}, nil)
	require.NoError(t, err)

	tr, added, err := tr.AddMark(n.Node.ID, []Mark{{Type: "em"}}, nil)
	require.NoError(t, err)
	assert.Len(t, added, 1)

	excludes := func(markType string) []string {
		if markType == "strong" {
			return []string{"em"}
		}
		return nil
	}
	tr, added, err = tr.AddMark(n.Node.ID, []Mark{{Type: "strong"}}, excludes)
	require.NoError(t, err)
	assert.Len(t, added, 1)

	updated, err := tr.GetNode(n.Node.ID)
	require.NoError(t, err)
	assert.True(t, updated.HasMarkType("strong"))
	assert.False(t, updated.HasMarkType("em"), "strong should have excluded em")
}

func TestRemoveMarkReturnsRemovedForInverse(t *testing.T) {
	tr := New("doc", 4)
	n := leaf("text")
	tr, err := tr.Add(tr.RootID(), []NodeEnum{n}, nil)
	require.NoError(t, err)
	tr, _, err = tr.AddMark(n.Node.ID, []Mark{{Type: "em"}, {Type: "strong"}}, nil)
	require.NoError(t, err)

	tr, removed, err := tr.RemoveMark(n.Node.ID, []string{"em"})
	require.NoError(t, err)
	require.Len(t, removed, 1)
	assert.Equal(t, "em", removed[0].Type)

	updated, err := tr.GetNode(n.Node.ID)
	require.NoError(t, err)
	assert.False(t, updated.HasMarkType("em"))
	assert.True(t, updated.HasMarkType("strong"))
}

func TestAllChildrenVisitsEveryNodeExactlyOnce(t *testing.T) {
	tr := New("doc", 4)
	s1 := leaf("section")
	p1 := leaf("paragraph")
	p2 := leaf("paragraph")
	s1.Children = []NodeEnum{p1, p2}
	s2 := leaf("section")

	tr, err := tr.Add(tr.RootID(), []NodeEnum{s1, s2}, nil)
	require.NoError(t, err)

	all, err := tr.AllChildren(tr.RootID(), nil)
	require.NoError(t, err)

	seen := make(map[NodeID]int)
	for _, n := range all {
		seen[n.ID]++
	}
	for id, count := range seen {
		assert.Equalf(t, 1, count, "node %s visited more than once", id)
	}
	assert.Len(t, all, 5) // root, s1, p1, p2, s2
}

func TestPriorTreeVersionUnaffectedByLaterMutation(t *testing.T) {
	tr := New("doc", 4)
	n := leaf("paragraph")
	before := tr

	after, err := tr.Add(tr.RootID(), []NodeEnum{n}, nil)
	require.NoError(t, err)

	beforeChildren, err := before.Children(before.RootID())
	require.NoError(t, err)
	assert.Empty(t, beforeChildren, "prior Tree value must not observe a later Add")

	afterChildren, err := after.Children(after.RootID())
	require.NoError(t, err)
	assert.Len(t, afterChildren, 1)
}
