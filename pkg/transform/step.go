// Package transform implements invertible Step primitives and the
// Transaction type that composes them atomically over a pkg/tree.Tree
// (spec §4.4).
//
// Grounded on the teacher's pkg/storage/transaction.go (transaction as
// an ordered mutation list with commit/rollback) and wal.go's
// "record-then-apply" ordering, generalized here to "capture the
// inverse just before mutating" per spec §9's design note on step
// inverses.
package transform

import "github.com/Cassielxd/moduforge-rs-sub000/pkg/tree"

// Step is a self-describing, invertible mutation on a Tree. Apply
// returns the mutated tree and the inverse Step that undoes exactly
// this application, computed from the pre-image — never from the
// Step's own construction-time arguments, so a RemoveNode correctly
// captures whatever subtree actually existed at apply time.
type Step interface {
	Apply(t tree.Tree) (tree.Tree, Step, error)
}

// AddNode inserts one or more subtrees under Parent, at AtIndex if set
// or appended otherwise.
type AddNode struct {
	Parent  tree.NodeID
	AtIndex *int
	Nodes   []tree.NodeEnum
}

func (s AddNode) Apply(t tree.Tree) (tree.Tree, Step, error) {
	newTree, err := t.Add(s.Parent, s.Nodes, s.AtIndex)
	if err != nil {
		return tree.Tree{}, nil, err
	}
	ids := make([]tree.NodeID, 0, len(s.Nodes))
	for _, n := range s.Nodes {
		ids = append(ids, n.Node.ID)
	}
	return newTree, RemoveNode{Parent: s.Parent, IDs: ids}, nil
}

// RemoveNode detaches the listed ids (which must be direct children of
// Parent) along with their subtrees.
type RemoveNode struct {
	Parent tree.NodeID
	IDs    []tree.NodeID
}

func (s RemoveNode) Apply(t tree.Tree) (tree.Tree, Step, error) {
	parentNode, err := t.GetNode(s.Parent)
	if err != nil {
		return tree.Tree{}, nil, err
	}

	// Capture pre-image: original index and full subtree of every id
	// about to be removed, so the inverse AddNode can restore both
	// content and position exactly (spec §9).
	indexOf := make(map[tree.NodeID]int, len(s.IDs))
	for i, c := range parentNode.Content {
		indexOf[c] = i
	}

	type capturedRemoval struct {
		index int
		node  tree.NodeEnum
	}
	captured := make([]capturedRemoval, 0, len(s.IDs))

	newTree := t
	for _, id := range s.IDs {
		idx, ok := indexOf[id]
		if !ok {
			return tree.Tree{}, nil, &tree.Error{Kind: "InvalidParenting", NodeID: id, Parent: s.Parent}
		}
		subtree, err := captureSubtree(t, id)
		if err != nil {
			return tree.Tree{}, nil, err
		}
		captured = append(captured, capturedRemoval{index: idx, node: subtree})
		newTree, err = newTree.RemoveNodeByID(id)
		if err != nil {
			return tree.Tree{}, nil, err
		}
	}

	// The inverse restores roots in ascending original-index order so
	// later insertions don't shift earlier ones out of place.
	sortByIndex(captured, func(i, j int) bool { return captured[i].index < captured[j].index })
	var addSteps []Step
	for _, c := range captured {
		idx := c.index
		addSteps = append(addSteps, AddNode{Parent: s.Parent, AtIndex: &idx, Nodes: []tree.NodeEnum{c.node}})
	}
	return newTree, multiStep(addSteps), nil
}

func sortByIndex[T any](s []T, less func(i, j int) bool) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && less(j, j-1); j-- {
			s[j], s[j-1] = s[j-1], s[j]
		}
	}
}

func captureSubtree(t tree.Tree, id tree.NodeID) (tree.NodeEnum, error) {
	n, err := t.GetNode(id)
	if err != nil {
		return tree.NodeEnum{}, err
	}
	children := make([]tree.NodeEnum, 0, len(n.Content))
	for _, cid := range n.Content {
		c, err := captureSubtree(t, cid)
		if err != nil {
			return tree.NodeEnum{}, err
		}
		children = append(children, c)
	}
	return tree.NodeEnum{Node: n, Children: children}, nil
}

// MoveNode relocates ID from Src to Dst at Position (or appends if nil).
type MoveNode struct {
	Src, Dst tree.NodeID
	ID       tree.NodeID
	Position *int
}

func (s MoveNode) Apply(t tree.Tree) (tree.Tree, Step, error) {
	srcNode, err := t.GetNode(s.Src)
	if err != nil {
		return tree.Tree{}, nil, err
	}
	originalIndex := -1
	for i, c := range srcNode.Content {
		if c == s.ID {
			originalIndex = i
			break
		}
	}
	if originalIndex < 0 {
		return tree.Tree{}, nil, &tree.Error{Kind: "InvalidParenting", NodeID: s.ID, Parent: s.Src}
	}

	newTree, err := t.MoveNode(s.Src, s.Dst, s.ID, s.Position)
	if err != nil {
		return tree.Tree{}, nil, err
	}
	idx := originalIndex
	return newTree, MoveNode{Src: s.Dst, Dst: s.Src, ID: s.ID, Position: &idx}, nil
}

// SetAttrs replaces the listed attribute keys on ID.
type SetAttrs struct {
	ID      tree.NodeID
	Changes tree.Attrs
}

func (s SetAttrs) Apply(t tree.Tree) (tree.Tree, Step, error) {
	newTree, old, err := t.UpdateAttr(s.ID, s.Changes)
	if err != nil {
		return tree.Tree{}, nil, err
	}
	return newTree, SetAttrs{ID: s.ID, Changes: old}, nil
}

// AddMark unions Marks into ID's mark list, dropping existing marks
// excluded by an incoming mark's exclude set.
type AddMark struct {
	ID       tree.NodeID
	Marks    []tree.Mark
	Excludes func(markType string) []string
}

func (s AddMark) Apply(t tree.Tree) (tree.Tree, Step, error) {
	newTree, added, err := t.AddMark(s.ID, s.Marks, s.Excludes)
	if err != nil {
		return tree.Tree{}, nil, err
	}
	types := make([]string, len(added))
	for i, m := range added {
		types[i] = m.Type
	}
	return newTree, RemoveMark{ID: s.ID, Types: types}, nil
}

// RemoveMark removes marks of Types from ID.
type RemoveMark struct {
	ID    tree.NodeID
	Types []string
}

func (s RemoveMark) Apply(t tree.Tree) (tree.Tree, Step, error) {
	newTree, removed, err := t.RemoveMark(s.ID, s.Types)
	if err != nil {
		return tree.Tree{}, nil, err
	}
	return newTree, AddMark{ID: s.ID, Marks: removed}, nil
}

// ReplaceContent replaces Parent's children list wholesale.
type ReplaceContent struct {
	Parent     tree.NodeID
	NewContent []tree.NodeID
}

func (s ReplaceContent) Apply(t tree.Tree) (tree.Tree, Step, error) {
	newTree, old, err := t.ReplaceContent(s.Parent, s.NewContent)
	if err != nil {
		return tree.Tree{}, nil, err
	}
	return newTree, ReplaceContent{Parent: s.Parent, NewContent: old}, nil
}

// multiStep composes several steps into one Step that applies them in
// order and inverts by reversing. It backs RemoveNode's inverse, which
// may need to restore more than one root.
type multiStepList []Step

func multiStep(steps []Step) Step {
	if len(steps) == 1 {
		return steps[0]
	}
	return multiStepList(steps)
}

func (m multiStepList) Apply(t tree.Tree) (tree.Tree, Step, error) {
	cur := t
	inverses := make([]Step, 0, len(m))
	for _, s := range m {
		var inv Step
		var err error
		cur, inv, err = s.Apply(cur)
		if err != nil {
			return tree.Tree{}, nil, err
		}
		inverses = append(inverses, inv)
	}
	// Reverse for correct undo order.
	for i, j := 0, len(inverses)-1; i < j; i, j = i+1, j-1 {
		inverses[i], inverses[j] = inverses[j], inverses[i]
	}
	return cur, multiStep(inverses), nil
}
