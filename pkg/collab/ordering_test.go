package collab

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestConcurrentInsertsConvergeRegardlessOfDeliveryOrder is scenario 3:
// base [a,b,c], U1 inserts X after b at timestamp 1000, U2 concurrently
// inserts Y after b at timestamp 1001. Both peers must reconcile to
// [a,b,X,Y,c] no matter which op they receive first.
func TestConcurrentInsertsConvergeRegardlessOfDeliveryOrder(t *testing.T) {
	base := []any{"a", "b", "c"}
	bID := OpID{Timestamp: 0, NodeID: "__base_1__"}
	xID := OpID{Timestamp: 1000, NodeID: "u1"}
	yID := OpID{Timestamp: 1001, NodeID: "u2"}

	peerA := NewOrderedSequence(base)
	peerA.Insert(xID, bID, "X")
	peerA.Insert(yID, bID, "Y")

	peerB := NewOrderedSequence(base)
	peerB.Insert(yID, bID, "Y")
	peerB.Insert(xID, bID, "X")

	want := []any{"a", "b", "X", "Y", "c"}
	assert.Equal(t, want, peerA.Values())
	assert.Equal(t, want, peerB.Values())
}

func TestDeleteTombstonesRatherThanUnlinking(t *testing.T) {
	seq := NewOrderedSequence([]any{"a", "b", "c"})
	bID := OpID{Timestamp: 0, NodeID: "__base_1__"}
	seq.Delete(bID)
	assert.Equal(t, []any{"a", "c"}, seq.Values())
}

func TestInsertAfterDeletedParentStillIntegratesViaTombstone(t *testing.T) {
	seq := NewOrderedSequence([]any{"a", "b"})
	bID := OpID{Timestamp: 0, NodeID: "__base_1__"}
	seq.Delete(bID)
	seq.Insert(OpID{Timestamp: 5, NodeID: "u1"}, bID, "X")
	assert.Equal(t, []any{"a", "X"}, seq.Values())
}

func TestOrphanBufferedUntilParentArrives(t *testing.T) {
	seq := NewOrderedSequence([]any{"a"})
	aID := OpID{Timestamp: 0, NodeID: "__base_0__"}
	childID := OpID{Timestamp: 10, NodeID: "u1"}
	grandchildID := OpID{Timestamp: 20, NodeID: "u2"}

	// Grandchild delivered before its parent: must buffer, not be lost.
	seq.processNode(seqNode{ID: grandchildID, ParentID: childID, Value: "Z"})
	require.Equal(t, []any{"a"}, seq.Values())

	seq.Insert(childID, aID, "Y")
	assert.Equal(t, []any{"a", "Y", "Z"}, seq.Values())
}

func TestDuplicateInsertDeliveryIsIdempotent(t *testing.T) {
	seq := NewOrderedSequence([]any{"a"})
	aID := OpID{Timestamp: 0, NodeID: "__base_0__"}
	id := OpID{Timestamp: 5, NodeID: "u1"}
	seq.Insert(id, aID, "X")
	seq.Insert(id, aID, "X")
	assert.Equal(t, []any{"a", "X"}, seq.Values())
}
