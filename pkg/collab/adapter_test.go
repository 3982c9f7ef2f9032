package collab

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Cassielxd/moduforge-rs-sub000/pkg/transform"
	"github.com/Cassielxd/moduforge-rs-sub000/pkg/tree"
)

func TestToOperationsTranslatesAddNodeToArrayInsert(t *testing.T) {
	paths := NewPathIndex()
	parent := tree.NewNodeID()
	paths.Bind("root", parent)
	adapter := NewAdapter(paths, "u1")

	child := tree.NodeEnum{Node: tree.Node{ID: tree.NewNodeID(), Type: "paragraph"}}
	step := transform.AddNode{Parent: parent, Nodes: []tree.NodeEnum{child}}

	counter := 0
	nextID := func() OpID {
		counter++
		return OpID{Timestamp: 1000, NodeID: "u1"}
	}

	ops, err := adapter.ToOperations(step, 1000, nextID)
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, OpArrayInsert, ops[0].Kind)
	assert.Equal(t, []string{"root"}, ops[0].TargetPath)
}

func TestToOperationsTranslatesSetAttrsToMapSet(t *testing.T) {
	paths := NewPathIndex()
	id := tree.NewNodeID()
	paths.Bind("node-1", id)
	adapter := NewAdapter(paths, "u1")

	step := transform.SetAttrs{ID: id, Changes: tree.Attrs{"title": "hello"}}
	ops, err := adapter.ToOperations(step, 500, func() OpID { return OpID{Timestamp: 500, NodeID: "u1"} })
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, OpMapSet, ops[0].Kind)
	assert.Equal(t, "hello", ops[0].Data)
	assert.Equal(t, []string{"node-1", "attrs", "title"}, ops[0].TargetPath)
}

func TestFromOperationRoundTripsArrayDelete(t *testing.T) {
	paths := NewPathIndex()
	parent := tree.NewNodeID()
	paths.Bind("root", parent)
	adapter := NewAdapter(paths, "u2")

	target := tree.NewNodeID()
	op := YrsOperation{
		Kind:       OpArrayDelete,
		TargetPath: []string{"root"},
		Data:       map[string]any{"id": string(target)},
	}
	step, err := adapter.FromOperation(op)
	require.NoError(t, err)
	removeStep, ok := step.(transform.RemoveNode)
	require.True(t, ok)
	assert.Equal(t, parent, removeStep.Parent)
	assert.Equal(t, []tree.NodeID{target}, removeStep.IDs)
}
