package position

import (
	"github.com/Cassielxd/moduforge-rs-sub000/pkg/transform"
	"github.com/Cassielxd/moduforge-rs-sub000/pkg/tree"
)

// MapStep maps pos across one Step, given the tree as it existed
// immediately before the step was applied (spec §4.5). SetAttrs,
// AddMark, and RemoveMark never change content-list shape, so they
// leave every position unchanged.
func MapStep(pos RelativePosition, step transform.Step, pre tree.Tree, history HistoryLookup) (RelativePosition, error) {
	switch s := step.(type) {
	case transform.AddNode:
		idx := insertionIndex(pre, s.Parent, s.AtIndex)
		return mapInsert(pos, s.Parent, idx, len(s.Nodes), pre), nil
	case transform.RemoveNode:
		return mapRemove(pos, s.Parent, s.IDs, pre, history)
	case transform.MoveNode:
		removed, err := mapRemove(pos, s.Src, []tree.NodeID{s.ID}, pre, history)
		if err != nil {
			return RelativePosition{}, err
		}
		idx := insertionIndex(pre, s.Dst, s.Position)
		return mapInsert(removed, s.Dst, idx, 1, pre), nil
	case transform.ReplaceContent:
		parentNode, err := pre.GetNode(s.Parent)
		if err != nil {
			return RelativePosition{}, err
		}
		removed, err := mapRemove(pos, s.Parent, parentNode.Content, pre, history)
		if err != nil {
			return RelativePosition{}, err
		}
		return mapInsert(removed, s.Parent, 0, len(s.NewContent), pre), nil
	default:
		return pos, nil
	}
}

// MapThroughTransaction folds MapStep over every step of tx, tracking
// the tree shape as it evolves so each step sees its true pre-image
// (spec §8: mapping through A then B equals mapping through A++B,
// which this definitionally satisfies by folding in step order).
func MapThroughTransaction(pos RelativePosition, tx *transform.Transaction, before tree.Tree) (RelativePosition, error) {
	return MapThroughSteps(pos, tx.Steps, before)
}

// MapThroughSteps is the general form MapThroughTransaction delegates
// to; mapping through an empty slice returns pos unchanged.
func MapThroughSteps(pos RelativePosition, steps []transform.Step, before tree.Tree) (RelativePosition, error) {
	cur := pos
	curTree := before
	for _, step := range steps {
		next, err := MapStep(cur, step, curTree, nil)
		if err != nil {
			return RelativePosition{}, err
		}
		cur = next
		nextTree, _, err := step.Apply(curTree)
		if err != nil {
			return RelativePosition{}, err
		}
		curTree = nextTree
	}
	return cur, nil
}

func insertionIndex(pre tree.Tree, parent tree.NodeID, atIndex *int) int {
	node, err := pre.GetNode(parent)
	if err != nil {
		return 0
	}
	if atIndex == nil {
		return len(node.Content)
	}
	idx := *atIndex
	if idx < 0 {
		idx = 0
	}
	if idx > len(node.Content) {
		idx = len(node.Content)
	}
	return idx
}

// mapInsert applies spec §4.5 rule 3: an insert at index i of k items
// under parent shifts ChildAt/WithinAt offsets >= i (when Anchor ==
// parent) and SiblingBefore/SiblingAfter offsets >= i when the
// position's anchor shares that parent.
func mapInsert(pos RelativePosition, parent tree.NodeID, index, count int, pre tree.Tree) RelativePosition {
	switch pos.Kind {
	case ChildAt, WithinAt:
		if pos.Anchor == parent && int(pos.Offset) >= index {
			pos.Offset += int32(count)
		}
	case SiblingBefore, SiblingAfter:
		if anchorParent, has, err := pre.GetParent(pos.Anchor); err == nil && has && anchorParent == parent {
			if int(pos.Offset) >= index {
				pos.Offset += int32(count)
			}
		}
	}
	return pos
}

// mapRemove applies spec §4.5 rule 4: positions past the deleted range
// shift left by its length; positions inside it (or whose anchor was
// itself removed) attempt a path_hint reanchor, falling back to
// ChildAt(i) on parent.
func mapRemove(pos RelativePosition, parent tree.NodeID, removedIDs []tree.NodeID, pre tree.Tree, history HistoryLookup) (RelativePosition, error) {
	removedSet := make(map[tree.NodeID]bool, len(removedIDs))
	for _, id := range removedIDs {
		removedSet[id] = true
	}

	if removedSet[pos.Anchor] {
		return reanchorPosition(pos, parent, pre, history)
	}

	parentNode, err := pre.GetNode(parent)
	if err != nil {
		return RelativePosition{}, err
	}
	lo, hi, found := removedRange(parentNode.Content, removedSet)
	if !found {
		return pos, nil
	}
	length := hi - lo

	affectsAnchor := false
	switch pos.Kind {
	case ChildAt, WithinAt:
		affectsAnchor = pos.Anchor == parent
	case SiblingBefore, SiblingAfter:
		if anchorParent, has, perr := pre.GetParent(pos.Anchor); perr == nil && has && anchorParent == parent {
			affectsAnchor = true
		}
	}
	if !affectsAnchor {
		return pos, nil
	}

	offset := int(pos.Offset)
	switch {
	case offset >= hi:
		pos.Offset = int32(offset - length)
		return pos, nil
	case offset >= lo:
		return reanchorPosition(pos, parent, pre, history)
	default:
		return pos, nil
	}
}

// removedRange returns the contiguous [lo, hi) span of content that the
// removed-id set occupies in the pre-image content list. Steps always
// remove ids that were actually adjacent children of parent, so a
// single contiguous span is the expected case; if the removed ids are
// scattered, lo/hi conservatively spans their full extent.
func removedRange(content []tree.NodeID, removed map[tree.NodeID]bool) (lo, hi int, found bool) {
	lo, hi = -1, -1
	for i, id := range content {
		if removed[id] {
			if lo == -1 {
				lo = i
			}
			hi = i + 1
		}
	}
	if lo == -1 {
		return 0, 0, false
	}
	return lo, hi, true
}

func reanchorPosition(pos RelativePosition, parent tree.NodeID, pre tree.Tree, history HistoryLookup) (RelativePosition, error) {
	if newAnchor, ok := reanchor(pre, pos.PathHint, history); ok {
		return RelativePosition{Anchor: newAnchor, Kind: Before, Offset: 0, PathHint: pos.PathHint}, nil
	}
	// Fall back to the parent's own anchor at the deleted index, per
	// spec §4.5 rule 4.
	parentNode, err := pre.GetNode(parent)
	if err != nil {
		return RelativePosition{}, errAnchorNotFound(parent)
	}
	idx := 0
	for i, id := range parentNode.Content {
		if id == pos.Anchor {
			idx = i
			break
		}
	}
	return RelativePosition{Anchor: parent, Kind: ChildAt, Offset: int32(idx), PathHint: pos.PathHint}, nil
}
