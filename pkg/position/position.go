// Package position implements RelativePosition and its mapping through
// Steps/Transactions (spec §4.5), including the stability-score
// heuristic used to reanchor a position whose anchor was deleted.
//
// Grounded on original_source/relative_position_system.rs for the
// stability-score weights and the path_hint reanchor search; the
// mapping rules themselves follow spec §4.5 directly since no pack
// example implements anything structurally similar.
package position

import "github.com/Cassielxd/moduforge-rs-sub000/pkg/tree"

// Kind discriminates how offset and anchor combine to describe a
// coordinate (spec §3 RelativePosition).
type Kind int

const (
	Before Kind = iota
	After
	ChildAt
	WithinAt
	Replace
	SiblingBefore
	SiblingAfter
)

// PathSegment is one breadcrumb entry of a path_hint: an ancestor's id
// and type, recorded richer than strictly necessary so a reanchor
// search after a delete has more candidates to try (spec §9).
type PathSegment struct {
	NodeID   tree.NodeID
	NodeType string
}

// RelativePosition is a coordinate expressed relative to a stable node,
// designed to remap stably under concurrent edits (spec §3, GLOSSARY).
//
// Offset is meaningful only for ChildAt, WithinAt, SiblingBefore, and
// SiblingAfter: for ChildAt/WithinAt it indexes Anchor's own children;
// for SiblingBefore/SiblingAfter it indexes Anchor's parent's content
// list (spec §4.5 rule 3's "SiblingAfter with offset >= i shifts by
// k" only makes sense read this way — sibling kinds live in the
// anchor's parent's coordinate space, not the anchor's own).
// Before/After/Replace describe a position at the anchor itself and
// ignore Offset.
type RelativePosition struct {
	Anchor   tree.NodeID
	Kind     Kind
	Offset   int32
	PathHint []PathSegment
}

// Equal reports value equality, used by the "mapping through an empty
// step list returns an equal position" testable property (spec §8).
func (p RelativePosition) Equal(other RelativePosition) bool {
	if p.Anchor != other.Anchor || p.Kind != other.Kind || p.Offset != other.Offset {
		return false
	}
	if len(p.PathHint) != len(other.PathHint) {
		return false
	}
	for i := range p.PathHint {
		if p.PathHint[i] != other.PathHint[i] {
			return false
		}
	}
	return true
}

// Error is the PositionError taxonomy from spec §7.
type Error struct {
	Kind    string
	Message string
}

func (e *Error) Error() string { return "position: " + e.Kind + ": " + e.Message }

func errAnchorNotFound(id tree.NodeID) error {
	return &Error{Kind: "AnchorNotFound", Message: "no node with id " + string(id)}
}
