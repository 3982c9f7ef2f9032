package undo

import (
	"time"

	"github.com/Cassielxd/moduforge-rs-sub000/pkg/collab"
	"github.com/Cassielxd/moduforge-rs-sub000/pkg/conflict"
	"github.com/Cassielxd/moduforge-rs-sub000/pkg/position"
)

const defaultMaxStackSize = 100
const unsafeAgeThreshold = time.Hour
const conflictComplexityThreshold = 0.8
const remoteComplexityMultiplier = 1.2

// Manager is one user's undo/redo state machine (spec §4.8). Only
// operations whose UserID matches userID are ever pushed, matching
// add_undoable_operation's "only record this user's own operations"
// guard.
type Manager struct {
	userID       string
	undoStack    []UndoItem
	redoStack    []UndoItem
	maxStackSize int
	itemIndex    map[string]int
	resolver     *conflict.Resolver
	stats        Statistics
}

// NewManager returns an empty manager for userID with the default
// 100-item stack bound (spec §4.8).
func NewManager(userID string, resolver *conflict.Resolver) *Manager {
	return &Manager{
		userID:       userID,
		maxStackSize: defaultMaxStackSize,
		itemIndex:    make(map[string]int),
		resolver:     resolver,
	}
}

// Stats returns a snapshot of recorded undo/redo statistics.
func (m *Manager) Stats() Snapshot { return m.stats.Snapshot() }

// UndoDepth and RedoDepth expose the current stack sizes for callers
// that want to show the user how much history is available.
func (m *Manager) UndoDepth() int { return len(m.undoStack) }
func (m *Manager) RedoDepth() int { return len(m.redoStack) }

// Push records one committed, already-inverted operation (spec §4.8
// steps 1-5: the inverse, relative positions, and document version are
// all computed by the caller — the Transaction/Step/position pipeline
// already has everything needed to build them — and handed to Push as
// data). Pushing clears the redo stack and evicts the oldest item if
// the stack is over capacity. Operations from another user are
// silently ignored.
func (m *Manager) Push(item UndoItem) {
	if item.OriginalOperation.UserID != m.userID {
		return
	}
	m.undoStack = append(m.undoStack, item)
	m.itemIndex[item.ID] = len(m.undoStack) - 1
	m.redoStack = nil

	if len(m.undoStack) > m.maxStackSize {
		removed := m.undoStack[0]
		m.undoStack = m.undoStack[1:]
		delete(m.itemIndex, removed.ID)
		for id, idx := range m.itemIndex {
			if idx > 0 {
				m.itemIndex[id] = idx - 1
			}
		}
	}
}

// Undo pops the most recent item, classifies its feasibility against
// the current tree, and applies its inverse accordingly (spec §4.8).
// nowMillis and remapper let tests supply deterministic clocks and
// tree state without constructing a real tree.Tree.
func (m *Manager) Undo(applier Applier, remapper PositionRemapper, nowMillis int64) (UndoResult, error) {
	if len(m.undoStack) == 0 {
		return UndoResult{}, errNothingToUndo()
	}
	start := time.Now()

	item := m.undoStack[len(m.undoStack)-1]
	m.undoStack = m.undoStack[:len(m.undoStack)-1]
	delete(m.itemIndex, item.ID)

	feasibility, reason := m.checkFeasibility(item, remapper, nowMillis)

	var result UndoResult
	var err error
	switch feasibility {
	case Safe:
		result, err = m.applyDirectly(applier, item)
	case RequiresPositionMapping:
		result, err = m.applyWithMapping(applier, remapper, item)
	case RequiresConflictResolution:
		result, err = m.applyWithConflictResolution(applier, remapper, item)
	default:
		m.undoStack = append(m.undoStack, item)
		m.itemIndex[item.ID] = len(m.undoStack) - 1
		m.stats.recordFailedUndo()
		return UndoResult{}, errUnsafeUndo(reason)
	}
	if err != nil {
		m.undoStack = append(m.undoStack, item)
		m.itemIndex[item.ID] = len(m.undoStack) - 1
		m.stats.recordFailedUndo()
		return UndoResult{}, err
	}

	m.redoStack = append(m.redoStack, item)
	m.stats.recordUndo(time.Since(start), len(result.AffectedPositions) > 0)
	return result, nil
}

// checkFeasibility mirrors check_undo_feasibility's five checks in
// order: age, complexity, remote-affected, dependency presence, anchor
// existence.
func (m *Manager) checkFeasibility(item UndoItem, remapper PositionRemapper, nowMillis int64) (Feasibility, string) {
	if nowMillis-item.Timestamp > unsafeAgeThreshold.Milliseconds() {
		return Unsafe, "operation is too old to safely undo"
	}
	if item.ComplexityScore > conflictComplexityThreshold {
		return RequiresConflictResolution, ""
	}
	if item.AffectedByRemote {
		return RequiresPositionMapping, ""
	}
	for _, dep := range item.Dependencies {
		if _, ok := m.itemIndex[dep]; !ok {
			return Unsafe, "dependent operation has been removed"
		}
	}
	for _, pos := range item.RelativePositions {
		if _, ok := remapper.Remap(pos); !ok {
			return RequiresPositionMapping, ""
		}
	}
	return Safe, ""
}

func (m *Manager) applyDirectly(applier Applier, item UndoItem) (UndoResult, error) {
	if err := applier.Apply(item.InverseOperation); err != nil {
		return UndoResult{}, errApplyFailed(err.Error())
	}
	return UndoResult{
		UndoneOperation:   item.OriginalOperation,
		AppliedInverse:    item.InverseOperation,
		AffectedPositions: item.RelativePositions,
		Confidence:        0.95,
	}, nil
}

func (m *Manager) applyWithMapping(applier Applier, remapper PositionRemapper, item UndoItem) (UndoResult, error) {
	current, changed := remapAll(remapper, item.RelativePositions)
	adjusted := item.InverseOperation

	if err := applier.Apply(adjusted); err != nil {
		return UndoResult{}, errApplyFailed(err.Error())
	}

	var warnings []string
	if changed {
		warnings = append(warnings, "operation positions were adjusted due to concurrent changes")
	}
	return UndoResult{
		UndoneOperation:      item.OriginalOperation,
		AppliedInverse:       adjusted,
		AffectedPositions:    current,
		Confidence:           0.8,
		RequiresConfirmation: false,
		Warnings:             warnings,
	}, nil
}

func (m *Manager) applyWithConflictResolution(applier Applier, remapper PositionRemapper, item UndoItem) (UndoResult, error) {
	ctx := conflict.Context{
		Type:            conflict.ConcurrentTransaction,
		LocalOperation:  item.InverseOperation,
		RemoteOperation: item.OriginalOperation,
		LocalUser:       m.userID,
		RemoteUser:      item.OriginalOperation.UserID,
		LocalTimestamp:  item.InverseOperation.Timestamp,
		RemoteTimestamp: item.OriginalOperation.Timestamp,
	}
	resolution, err := m.resolver.Resolve(ctx)
	if err != nil {
		return UndoResult{}, errConflictResolutionFailed(err.Error())
	}

	for _, op := range resolution.Operations {
		if err := applier.Apply(op); err != nil {
			return UndoResult{}, errApplyFailed(err.Error())
		}
	}
	applied := item.InverseOperation
	if len(resolution.Operations) > 0 {
		applied = resolution.Operations[0]
	}

	return UndoResult{
		UndoneOperation:      item.OriginalOperation,
		AppliedInverse:       applied,
		AffectedPositions:    item.RelativePositions,
		Confidence:           0.6,
		RequiresConfirmation: true,
		Warnings:             []string{"undo operation required conflict resolution"},
	}, nil
}

// Redo pops the most recent redo item, remaps its positions, and
// reapplies its original operation (spec §4.8 "On redo").
func (m *Manager) Redo(applier Applier, remapper PositionRemapper) (RedoResult, error) {
	if len(m.redoStack) == 0 {
		return RedoResult{}, errNothingToRedo()
	}
	item := m.redoStack[len(m.redoStack)-1]
	m.redoStack = m.redoStack[:len(m.redoStack)-1]

	current, _ := remapAll(remapper, item.RelativePositions)

	if err := applier.Apply(item.OriginalOperation); err != nil {
		m.redoStack = append(m.redoStack, item)
		return RedoResult{}, errApplyFailed(err.Error())
	}

	m.undoStack = append(m.undoStack, item)
	m.itemIndex[item.ID] = len(m.undoStack) - 1
	m.stats.recordRedo()

	return RedoResult{
		ReappliedOperation: item.OriginalOperation,
		AffectedPositions:  current,
		Confidence:         0.9,
	}, nil
}

func remapAll(remapper PositionRemapper, positions []position.RelativePosition) ([]position.RelativePosition, bool) {
	out := make([]position.RelativePosition, len(positions))
	changed := false
	for i, p := range positions {
		mapped, ok := remapper.Remap(p)
		if !ok {
			out[i] = p
			continue
		}
		if !mapped.Equal(p) {
			changed = true
		}
		out[i] = mapped
	}
	return out, changed
}

// HandleRemoteOperation walks both stacks marking items as affected
// when operationAffectsItem matches their original operation's target
// path against remoteOp's path, remapping their positions and bumping
// their complexity score (spec §4.8 "On incoming remote op"). An item's
// relative positions are not consulted to decide whether it is
// affected. It never reorders either stack — only in-place flag and
// position updates, so undo/redo ordering from the user's perspective
// never changes underneath them.
func (m *Manager) HandleRemoteOperation(remoteOp collab.YrsOperation, remapper PositionRemapper) {
	m.rebaseStack(m.undoStack, remoteOp, remapper)
	m.rebaseStack(m.redoStack, remoteOp, remapper)
}

func (m *Manager) rebaseStack(stack []UndoItem, remoteOp collab.YrsOperation, remapper PositionRemapper) {
	for i := range stack {
		if !operationAffectsItem(remoteOp, stack[i]) {
			continue
		}
		stack[i].AffectedByRemote = true
		remapped, _ := remapAll(remapper, stack[i].RelativePositions)
		stack[i].RelativePositions = remapped
		stack[i].ComplexityScore *= remoteComplexityMultiplier
		if stack[i].ComplexityScore > 1.0 {
			stack[i].ComplexityScore = 1.0
		}
	}
}

// operationAffectsItem reports whether remoteOp's target path overlaps
// the item's original operation path — the Go equivalent of the
// original's operation_affects_undo_item stub, given a concrete
// definition here: the two paths share at least one segment, wherever
// it appears in either path (not a prefix comparison).
func operationAffectsItem(remoteOp collab.YrsOperation, item UndoItem) bool {
	for _, seg := range item.OriginalOperation.TargetPath {
		for _, otherSeg := range remoteOp.TargetPath {
			if seg == otherSeg {
				return true
			}
		}
	}
	return false
}
