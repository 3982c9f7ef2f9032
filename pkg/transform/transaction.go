package transform

import (
	"fmt"

	"github.com/Cassielxd/moduforge-rs-sub000/pkg/tree"
)

// Error is the TransactionError taxonomy from spec §7 that belongs to
// this package: StepFailed and ContentValidationFailed. QueueFull is
// raised one layer up, by pkg/state, which owns the transaction queue;
// no package raises Timeout, Cancelled or PluginRejected.
type Error struct {
	Kind   string
	Index  int
	Parent tree.NodeID
	Inner  error
	Reason string
}

func (e *Error) Error() string {
	switch e.Kind {
	case "StepFailed":
		return fmt.Sprintf("transaction: step %d failed: %v", e.Index, e.Inner)
	case "ContentValidationFailed":
		return fmt.Sprintf("transaction: content validation failed for parent %s: %s", e.Parent, e.Reason)
	default:
		return fmt.Sprintf("transaction: %s", e.Reason)
	}
}

func (e *Error) Unwrap() error { return e.Inner }

// Transaction is an ordered, atomic list of Steps with metadata (spec
// §4.4 GLOSSARY Transaction). Meta is a free-form bag plugins can use
// to tag transactions they originate (e.g. "origin": "undo").
type Transaction struct {
	Steps []Step
	Meta  map[string]any
}

// NewTransaction returns an empty Transaction ready to accumulate Steps.
func NewTransaction() *Transaction {
	return &Transaction{Meta: make(map[string]any)}
}

// AddStep appends a Step to the transaction and returns the receiver,
// so callers can chain construction.
func (tx *Transaction) AddStep(s Step) *Transaction {
	tx.Steps = append(tx.Steps, s)
	return tx
}

// SetMeta attaches a metadata key/value.
func (tx *Transaction) SetMeta(key string, value any) *Transaction {
	tx.Meta[key] = value
	return tx
}

// Apply runs every step in tx sequentially atop base. Steps return new
// Tree values and never modify base, so a failed transaction leaves
// base as it was: Apply then returns a zero Tree and a StepFailed
// error. On success it returns the new tree and the list of inverse
// steps in reverse (undo) order.
func (tx *Transaction) Apply(base tree.Tree) (tree.Tree, []Step, error) {
	cur := base
	inverses := make([]Step, 0, len(tx.Steps))

	for i, step := range tx.Steps {
		next, inv, err := step.Apply(cur)
		if err != nil {
			rollback(base, inverses)
			return tree.Tree{}, nil, &Error{Kind: "StepFailed", Index: i, Inner: err}
		}
		cur = next
		inverses = append(inverses, inv)
	}

	reversed := make([]Step, len(inverses))
	for i, inv := range inverses {
		reversed[len(inverses)-1-i] = inv
	}
	return cur, reversed, nil
}

// rollback is a defensive no-op today: Apply never mutates base itself
// (every Step.Apply returns a new Tree value), so a partially-applied
// transaction simply discards its intermediate tree and the caller
// keeps using base. It exists so a future Step with side effects
// outside the Tree (e.g. an external counter) has a clear place to
// hook undo-on-failure.
func rollback(base tree.Tree, inverses []Step) {
	_ = base
	_ = inverses
}

// Reverse applies inverse steps (as returned by Apply) in the order
// given, producing the pre-image tree. Used directly by undo and by
// the round-trip property in spec §8 ("apply then reverse restores the
// pre-image").
func Reverse(t tree.Tree, inverseSteps []Step) (tree.Tree, error) {
	cur := t
	for i, step := range inverseSteps {
		next, _, err := step.Apply(cur)
		if err != nil {
			return tree.Tree{}, &Error{Kind: "StepFailed", Index: i, Inner: err}
		}
		cur = next
	}
	return cur, nil
}
