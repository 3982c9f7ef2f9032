package transform

import (
	"encoding/json"
	"fmt"

	"github.com/Cassielxd/moduforge-rs-sub000/pkg/tree"
)

// wireStep is the tagged JSON shape a Step is read from: a "kind"
// discriminant naming one of the exported Step types plus that type's
// fields flattened alongside it.
type wireStep struct {
	Kind     string          `json:"kind"`
	Parent   string          `json:"parent,omitempty"`
	AtIndex  *int            `json:"atIndex,omitempty"`
	Nodes    json.RawMessage `json:"nodes,omitempty"`
	IDs      []string        `json:"ids,omitempty"`
	Src      string          `json:"src,omitempty"`
	Dst      string          `json:"dst,omitempty"`
	ID       string          `json:"id,omitempty"`
	Position *int            `json:"position,omitempty"`
	Changes  tree.Attrs      `json:"changes,omitempty"`
	Marks    []tree.Mark     `json:"marks,omitempty"`
	Types    []string        `json:"types,omitempty"`
	NewIDs   []string        `json:"newContent,omitempty"`
}

// wireNodeEnum mirrors the recursive document shape pkg/tree's
// DecodeDocument accepts, so AddNode steps can carry freshly-built
// subtrees in the same wire format as the initial document.
type wireNodeEnum struct {
	ID       string         `json:"id,omitempty"`
	Type     string         `json:"type"`
	Attrs    tree.Attrs     `json:"attrs,omitempty"`
	Marks    []tree.Mark    `json:"marks,omitempty"`
	Children []wireNodeEnum `json:"children,omitempty"`
}

func (w wireNodeEnum) toNodeEnum() tree.NodeEnum {
	id := tree.NodeID(w.ID)
	if id == "" {
		id = tree.NewNodeID()
	}
	children := make([]tree.NodeEnum, len(w.Children))
	childIDs := make([]tree.NodeID, len(w.Children))
	for i, c := range w.Children {
		children[i] = c.toNodeEnum()
		childIDs[i] = children[i].Node.ID
	}
	return tree.NodeEnum{
		Node: tree.Node{
			ID:      id,
			Type:    w.Type,
			Attrs:   w.Attrs,
			Content: childIDs,
			Marks:   w.Marks,
		},
		Children: children,
	}
}

// DecodeTransaction parses a JSON array of tagged steps into a
// Transaction. Recognized "kind" values are AddNode, RemoveNode,
// MoveNode, SetAttrs, AddMark, RemoveMark and ReplaceContent, matching
// this package's exported Step types. AddMark steps decode with a
// permissive Excludes (no mark exclusions) since the wire format has no
// way to carry a schema-derived exclusion function; callers needing
// schema-aware exclusion should build the Step in Go directly.
func DecodeTransaction(raw []byte) (*Transaction, error) {
	var wireSteps []wireStep
	if err := json.Unmarshal(raw, &wireSteps); err != nil {
		return nil, fmt.Errorf("transform: decode transaction: %w", err)
	}

	tx := NewTransaction()
	for i, w := range wireSteps {
		step, err := decodeStep(w)
		if err != nil {
			return nil, fmt.Errorf("transform: decode transaction: step %d: %w", i, err)
		}
		tx.AddStep(step)
	}
	return tx, nil
}

func decodeStep(w wireStep) (Step, error) {
	switch w.Kind {
	case "AddNode":
		var nodes []wireNodeEnum
		if len(w.Nodes) > 0 {
			if err := json.Unmarshal(w.Nodes, &nodes); err != nil {
				return nil, err
			}
		}
		enums := make([]tree.NodeEnum, len(nodes))
		for i, n := range nodes {
			enums[i] = n.toNodeEnum()
		}
		return AddNode{Parent: tree.NodeID(w.Parent), AtIndex: w.AtIndex, Nodes: enums}, nil
	case "RemoveNode":
		ids := make([]tree.NodeID, len(w.IDs))
		for i, id := range w.IDs {
			ids[i] = tree.NodeID(id)
		}
		return RemoveNode{Parent: tree.NodeID(w.Parent), IDs: ids}, nil
	case "MoveNode":
		return MoveNode{Src: tree.NodeID(w.Src), Dst: tree.NodeID(w.Dst), ID: tree.NodeID(w.ID), Position: w.Position}, nil
	case "SetAttrs":
		return SetAttrs{ID: tree.NodeID(w.ID), Changes: w.Changes}, nil
	case "AddMark":
		return AddMark{ID: tree.NodeID(w.ID), Marks: w.Marks, Excludes: noExclusions}, nil
	case "RemoveMark":
		return RemoveMark{ID: tree.NodeID(w.ID), Types: w.Types}, nil
	case "ReplaceContent":
		ids := make([]tree.NodeID, len(w.NewIDs))
		for i, id := range w.NewIDs {
			ids[i] = tree.NodeID(id)
		}
		return ReplaceContent{Parent: tree.NodeID(w.Parent), NewContent: ids}, nil
	default:
		return nil, fmt.Errorf("unknown step kind %q", w.Kind)
	}
}

func noExclusions(markType string) []string { return nil }
