// Package tree implements the persistent, schema-validated node tree that
// backs a ModuForge document (spec §3, §4.3).
//
// A Tree is a sharded, structurally-shared map of node id to Node. Every
// mutating operation returns a new Tree; the old value stays valid for
// any reader still holding it. Nodes themselves are treated as immutable
// values — mutation always produces a replacement Node rather than
// editing one in place, which is what lets unrelated shards (and
// unrelated nodes within a touched shard) be shared between tree
// versions instead of copied.
//
// Grounded on the teacher's storage.Node/storage.Engine shape
// (mutex-guarded maps, strongly-typed ids) generalized from a
// labeled-property-graph model to ModuForge's ordered-content node model,
// and on spec §3/§4.3 directly for the sharding and invariants.
package tree

import (
	"github.com/google/uuid"
)

// NodeID is an opaque, globally unique, immutable identifier for a node.
type NodeID string

// NewNodeID mints a fresh random NodeID. Grounded on the pack's use of
// google/uuid for entity ids (cuemby-warren, evalgo-org-eve).
func NewNodeID() NodeID {
	return NodeID(uuid.NewString())
}

// Attrs is a JSON-like attribute bag: null, bool, number, string, array,
// or object values, keyed by attribute name.
type Attrs map[string]any

// Clone returns a shallow copy of the attribute map. Nested arrays/objects
// are not deep-copied — callers that mutate a nested value in place must
// replace the whole top-level key instead, matching Variable's
// reference-like Array/Object semantics (spec §3 Variable) so attribute
// values behave consistently whether read through the tree or the
// expression engine.
func (a Attrs) Clone() Attrs {
	if a == nil {
		return nil
	}
	out := make(Attrs, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// Mark is an attribute-bearing annotation attached to a node (spec §3).
type Mark struct {
	Type  string
	Attrs Attrs
}

// Equal reports whether two marks are identical by (type, attrs) value
// equality, as required for mark-list deduplication (spec §4.4).
func (m Mark) Equal(other Mark) bool {
	if m.Type != other.Type {
		return false
	}
	if len(m.Attrs) != len(other.Attrs) {
		return false
	}
	for k, v := range m.Attrs {
		ov, ok := other.Attrs[k]
		if !ok || !attrValueEqual(v, ov) {
			return false
		}
	}
	return true
}

func attrValueEqual(a, b any) bool {
	// Simple deep-ish equality sufficient for JSON-like attribute values:
	// numbers, strings, bools, nil compare directly; arrays/objects
	// recurse. This intentionally mirrors Variable equality (spec §3).
	switch av := a.(type) {
	case map[string]any:
		bv, ok := b.(map[string]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			if !attrValueEqual(v, bv[k]) {
				return false
			}
		}
		return true
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !attrValueEqual(av[i], bv[i]) {
				return false
			}
		}
		return true
	default:
		return a == b
	}
}

// Node is a single vertex of the document tree (spec §3). Content order
// is significant: it is the ordered list of this node's children.
//
// Node values are treated as immutable once placed in a Tree: every
// tree operation that would change a node's attrs, marks, or content
// builds a new Node and replaces the old one in the relevant shard.
type Node struct {
	ID      NodeID
	Type    string
	Attrs   Attrs
	Content []NodeID
	Marks   []Mark
}

// Clone returns a deep-enough copy of n: a new Content slice and a new
// Attrs map, so the result can be freely mutated without affecting n.
func (n Node) Clone() Node {
	out := n
	out.Attrs = n.Attrs.Clone()
	if n.Content != nil {
		out.Content = append([]NodeID(nil), n.Content...)
	}
	if n.Marks != nil {
		out.Marks = append([]Mark(nil), n.Marks...)
	}
	return out
}

// HasMarkType reports whether n carries a mark of the given type.
func (n Node) HasMarkType(markType string) bool {
	for _, m := range n.Marks {
		if m.Type == markType {
			return true
		}
	}
	return false
}

// NodeEnum is a node plus its already-constructed child NodeEnums — the
// return type of schema-driven node construction (spec §4.2, GLOSSARY).
// It exists one level above tree.Node because construction happens
// top-down (parent attrs/content validated before children are filled)
// while Tree.Add needs the whole subtree flattened.
type NodeEnum struct {
	Node     Node
	Children []NodeEnum
}

// Flatten walks a NodeEnum and returns every Node in the subtree
// (parent first, depth-first), the form Tree.Add consumes.
func (e NodeEnum) Flatten() []Node {
	out := make([]Node, 0, 1+len(e.Children))
	out = append(out, e.Node)
	for _, c := range e.Children {
		out = append(out, c.Flatten()...)
	}
	return out
}
