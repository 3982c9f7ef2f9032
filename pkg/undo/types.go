// Package undo implements the per-user undo/redo manager: bounded
// undo/redo deques, inverse-operation application with feasibility
// classification, and remote-operation rebasing that never reorders the
// local stack (spec §4.8).
//
// Grounded on original_source/collaborative_undo_manager.rs's
// CollaborativeUndoManager (y-prosemirror-derived design): stack shape,
// feasibility checks, and the five-step commit recipe translate
// directly. Where the original calls into a live yrs::Doc/TransactionMut
// and an unimplemented position_mapper/resolve_target_node (its own
// helper methods are stubbed placeholders in the source), we take the
// equivalent operations as injected collaborators (Applier,
// PositionRemapper) so the manager itself stays a pure, testable state
// machine over pkg/collab's YrsOperation and pkg/position's
// RelativePosition — the same roles the original's fields play, wired
// at the call site instead of baked into private stub methods.
package undo

import (
	"github.com/Cassielxd/moduforge-rs-sub000/pkg/collab"
	"github.com/Cassielxd/moduforge-rs-sub000/pkg/position"
)

// UndoItem is one entry of a user's undo/redo stack (spec §4.8).
type UndoItem struct {
	ID                string
	OriginalOperation collab.YrsOperation
	InverseOperation  collab.YrsOperation
	RelativePositions []position.RelativePosition
	Timestamp         int64
	DocumentVersion   string
	ComplexityScore   float64
	AffectedByRemote  bool
	Dependencies      []string
}

// UndoResult is returned by Manager.Undo.
type UndoResult struct {
	UndoneOperation     collab.YrsOperation
	AppliedInverse       collab.YrsOperation
	AffectedPositions    []position.RelativePosition
	Confidence           float64
	RequiresConfirmation bool
	Warnings             []string
}

// RedoResult is returned by Manager.Redo.
type RedoResult struct {
	ReappliedOperation collab.YrsOperation
	AffectedPositions  []position.RelativePosition
	Confidence         float64
}

// Feasibility classifies how safely an UndoItem can be undone (spec
// §4.8).
type Feasibility int

const (
	Safe Feasibility = iota
	RequiresPositionMapping
	RequiresConflictResolution
	Unsafe
)

// Error is the UndoError taxonomy from spec §7/§4.8.
type Error struct {
	Kind   string
	Reason string
}

func (e *Error) Error() string { return "undo: " + e.Kind + ": " + e.Reason }

func errNothingToUndo() error              { return &Error{Kind: "NothingToUndo"} }
func errNothingToRedo() error              { return &Error{Kind: "NothingToRedo"} }
func errCannotGenerateInverse(r string) error  { return &Error{Kind: "CannotGenerateInverse", Reason: r} }
func errUnsafeUndo(reason string) error    { return &Error{Kind: "UnsafeUndo", Reason: reason} }
func errConflictResolutionFailed(r string) error { return &Error{Kind: "ConflictResolutionFailed", Reason: r} }
func errCustomOperationNotSupported() error { return &Error{Kind: "CustomOperationNotSupported"} }
func errApplyFailed(r string) error        { return &Error{Kind: "YrsOperationFailed", Reason: r} }

// Applier applies one YrsOperation to the live document/CRDT state. The
// manager treats it as an opaque side effect it never inspects.
type Applier interface {
	Apply(op collab.YrsOperation) error
}

// PositionRemapper maps a RelativePosition captured at commit time onto
// the tree as it exists now, reporting whether the anchor still
// resolves at all (spec §4.5's reanchor search, invoked from undo).
type PositionRemapper interface {
	Remap(pos position.RelativePosition) (mapped position.RelativePosition, ok bool)
}
