package position

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Cassielxd/moduforge-rs-sub000/pkg/transform"
	"github.com/Cassielxd/moduforge-rs-sub000/pkg/tree"
)

func leaf(nodeType string) tree.NodeEnum {
	return tree.NodeEnum{Node: tree.Node{ID: tree.NewNodeID(), Type: nodeType}}
}

func TestMapThroughEmptyStepsReturnsEqualPosition(t *testing.T) {
	tr := tree.New("doc", 4)
	pos := RelativePosition{Anchor: tr.RootID(), Kind: ChildAt, Offset: 2}

	mapped, err := MapThroughSteps(pos, nil, tr)
	require.NoError(t, err)
	assert.True(t, pos.Equal(mapped))
}

func TestMapThroughStepsComposesWithConcatenation(t *testing.T) {
	tr := tree.New("doc", 4)
	a, b, c := leaf("p"), leaf("p"), leaf("p")
	tr, err := tr.Add(tr.RootID(), []tree.NodeEnum{a, b, c}, nil)
	require.NoError(t, err)

	pos := RelativePosition{Anchor: tr.RootID(), Kind: ChildAt, Offset: 2}

	d := leaf("p")
	stepA := transform.AddNode{Parent: tr.RootID(), Nodes: []tree.NodeEnum{d}}
	zero := 0
	e := leaf("p")
	stepB := transform.AddNode{Parent: tr.RootID(), AtIndex: &zero, Nodes: []tree.NodeEnum{e}}

	viaSequential, err := MapThroughSteps(pos, []transform.Step{stepA}, tr)
	require.NoError(t, err)
	afterA, _, err := stepA.Apply(tr)
	require.NoError(t, err)
	viaSequential, err = MapThroughSteps(viaSequential, []transform.Step{stepB}, afterA)
	require.NoError(t, err)

	viaConcatenation, err := MapThroughSteps(pos, []transform.Step{stepA, stepB}, tr)
	require.NoError(t, err)

	assert.True(t, viaSequential.Equal(viaConcatenation))
}

func TestMapInsertShiftsChildAtOffset(t *testing.T) {
	tr := tree.New("doc", 4)
	a, b := leaf("p"), leaf("p")
	tr, err := tr.Add(tr.RootID(), []tree.NodeEnum{a, b}, nil)
	require.NoError(t, err)

	pos := RelativePosition{Anchor: tr.RootID(), Kind: ChildAt, Offset: 1}
	zero := 0
	step := transform.AddNode{Parent: tr.RootID(), AtIndex: &zero, Nodes: []tree.NodeEnum{leaf("p")}}

	mapped, err := MapStep(pos, step, tr, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 2, mapped.Offset, "insert before offset 1 shifts it forward")
}

func TestMapRemovePastDeletionShiftsBack(t *testing.T) {
	tr := tree.New("doc", 4)
	a, b, c := leaf("p"), leaf("p"), leaf("p")
	tr, err := tr.Add(tr.RootID(), []tree.NodeEnum{a, b, c}, nil)
	require.NoError(t, err)

	pos := RelativePosition{Anchor: tr.RootID(), Kind: ChildAt, Offset: 2}
	step := transform.RemoveNode{Parent: tr.RootID(), IDs: []tree.NodeID{a.Node.ID}}

	mapped, err := MapStep(pos, step, tr, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 1, mapped.Offset)
}

func TestMapRemoveOfAnchorReanchorsToParent(t *testing.T) {
	tr := tree.New("doc", 4)
	a, b := leaf("p"), leaf("p")
	tr, err := tr.Add(tr.RootID(), []tree.NodeEnum{a, b}, nil)
	require.NoError(t, err)

	pos := RelativePosition{Anchor: a.Node.ID, Kind: Before}
	step := transform.RemoveNode{Parent: tr.RootID(), IDs: []tree.NodeID{a.Node.ID}}

	mapped, err := MapStep(pos, step, tr, nil)
	require.NoError(t, err)
	assert.Equal(t, tr.RootID(), mapped.Anchor)
	assert.Equal(t, ChildAt, mapped.Kind)
	assert.EqualValues(t, 0, mapped.Offset)
}

func TestStabilityScoreFavorsShallowSectionNodes(t *testing.T) {
	tr := tree.New("document", 4)
	section := tree.NodeEnum{Node: tree.Node{ID: tree.NewNodeID(), Type: "section"}}
	tr, err := tr.Add(tr.RootID(), []tree.NodeEnum{section}, nil)
	require.NoError(t, err)

	score, err := StabilityScore(tr, section.Node.ID, nil)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, score, stabilityThreshold)

	textLeaf := tree.NodeEnum{Node: tree.Node{ID: tree.NewNodeID(), Type: "text"}}
	tr, err = tr.Add(section.Node.ID, []tree.NodeEnum{textLeaf}, nil)
	require.NoError(t, err)
	textScore, err := StabilityScore(tr, textLeaf.Node.ID, nil)
	require.NoError(t, err)
	assert.Less(t, textScore, score, "a deep low-degree text node must score lower than its section")
}
