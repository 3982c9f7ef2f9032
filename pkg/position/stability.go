package position

import "github.com/Cassielxd/moduforge-rs-sub000/pkg/tree"

// Weight coefficients for the stability score (spec §4.5, ported from
// original_source/relative_position_system.rs): depth, child count,
// type bias, historical reference count, in that order; they sum to 1.
const (
	weightDepth      = 0.3
	weightChildren   = 0.2
	weightTypeBias   = 0.3
	weightHistory    = 0.2
	stabilityThreshold = 0.6
)

func typeBias(nodeType string) float64 {
	switch nodeType {
	case "document", "section":
		return 1.0
	case "paragraph", "heading":
		return 0.8
	case "text", "inline":
		return 0.3
	default:
		return 0.5
	}
}

func depthScore(depth int) float64 {
	if depth <= 0 {
		return 1.0
	}
	return 1.0 / float64(depth)
}

func childCountScore(count int) float64 {
	capped := count
	if capped > 10 {
		capped = 10
	}
	return float64(capped) / 10.0
}

// HistoryLookup returns a [0,1]-normalized count of how often a node
// has previously served as a reanchor target. Callers without such
// tracking may pass nil, which StabilityScore treats as always 0.
type HistoryLookup func(id tree.NodeID) float64

// StabilityScore computes the weighted stability score for node id in
// t, used both when minting a RelativePosition from an absolute one and
// when reanchoring after a delete (spec §4.5).
func StabilityScore(t tree.Tree, id tree.NodeID, history HistoryLookup) (float64, error) {
	node, err := t.GetNode(id)
	if err != nil {
		return 0, err
	}
	depth, err := depthOf(t, id)
	if err != nil {
		return 0, err
	}
	childCount, err := t.ChildrenCount(id)
	if err != nil {
		return 0, err
	}
	hist := 0.0
	if history != nil {
		hist = history(id)
	}
	score := weightDepth*depthScore(depth) +
		weightChildren*childCountScore(childCount) +
		weightTypeBias*typeBias(node.Type) +
		weightHistory*hist
	return score, nil
}

func depthOf(t tree.Tree, id tree.NodeID) (int, error) {
	depth := 0
	cur := id
	for cur != t.RootID() {
		parent, has, err := t.GetParent(cur)
		if err != nil {
			return 0, err
		}
		if !has {
			break
		}
		cur = parent
		depth++
	}
	return depth, nil
}

// IsStable reports whether a node's stability score meets the 0.6
// threshold (spec §4.5).
func IsStable(t tree.Tree, id tree.NodeID, history HistoryLookup) (bool, error) {
	score, err := StabilityScore(t, id, history)
	if err != nil {
		return false, err
	}
	return score >= stabilityThreshold, nil
}

// reanchor walks pathHint (nearest ancestor first) looking for a node
// that still exists in t and is stable, per spec §4.5's reanchor rule.
// It returns the first such node found.
func reanchor(t tree.Tree, pathHint []PathSegment, history HistoryLookup) (tree.NodeID, bool) {
	for _, seg := range pathHint {
		if _, err := t.GetNode(seg.NodeID); err != nil {
			continue
		}
		stable, err := IsStable(t, seg.NodeID, history)
		if err == nil && stable {
			return seg.NodeID, true
		}
	}
	return "", false
}
