package collab

import (
	"fmt"

	"github.com/Cassielxd/moduforge-rs-sub000/pkg/transform"
	"github.com/Cassielxd/moduforge-rs-sub000/pkg/tree"
)

// nodeSnapshot is the wire-serializable shape of a tree.NodeEnum carried
// inside a YrsOperation's Data field for ArrayInsert ops — flattened so
// it survives a round trip through whatever transport encodes Data
// (JSON, msgpack, ...).
type nodeSnapshot struct {
	ID       string            `json:"id"`
	Type     string            `json:"type"`
	Attrs    tree.Attrs        `json:"attrs"`
	Marks    []tree.Mark       `json:"marks"`
	Children []nodeSnapshot    `json:"children"`
}

func toSnapshot(e tree.NodeEnum) nodeSnapshot {
	children := make([]nodeSnapshot, 0, len(e.Children))
	for _, c := range e.Children {
		children = append(children, toSnapshot(c))
	}
	return nodeSnapshot{ID: string(e.Node.ID), Type: e.Node.Type, Attrs: e.Node.Attrs, Marks: e.Node.Marks, Children: children}
}

func fromSnapshot(s nodeSnapshot) tree.NodeEnum {
	children := make([]tree.NodeEnum, 0, len(s.Children))
	for _, c := range s.Children {
		children = append(children, fromSnapshot(c))
	}
	return tree.NodeEnum{
		Node: tree.Node{ID: tree.NodeID(s.ID), Type: s.Type, Attrs: s.Attrs, Marks: s.Marks},
		Children: children,
	}
}

// Adapter translates between pkg/transform Steps and YrsOperations,
// resolving node ids to CRDT paths through a PathIndex (spec §4.6:
// "outbound: Step -> one or more primitive CRDT ops ... committed as a
// single CRDT transaction"; "inbound: remote ops are translated into
// equivalent Steps and applied through the same commit pipeline").
type Adapter struct {
	Paths  *PathIndex
	UserID string
}

func NewAdapter(paths *PathIndex, userID string) *Adapter {
	return &Adapter{Paths: paths, UserID: userID}
}

// pathFor resolves id's bound path, falling back to its raw id string
// when unbound (e.g. a node being inserted in the same transaction that
// hasn't been bound yet).
func (a *Adapter) pathFor(id tree.NodeID) []string {
	if p, ok := a.Paths.PathFor(id); ok {
		return []string{p}
	}
	return []string{string(id)}
}

// ToOperations translates one Step into the CRDT ops that reproduce its
// effect. nextID mints OpIDs sharing the transaction's timestamp, one
// per emitted op, per spec §4.6's "single CRDT transaction" requirement
// (callers should mint all ops for a Transaction with the same
// Timestamp so peers can treat them as one causal batch).
func (a *Adapter) ToOperations(step transform.Step, timestamp int64, nextID func() OpID) ([]YrsOperation, error) {
	switch s := step.(type) {
	case transform.AddNode:
		ops := make([]YrsOperation, 0, len(s.Nodes))
		idx := 0
		if s.AtIndex != nil {
			idx = *s.AtIndex
		}
		for i, n := range s.Nodes {
			ops = append(ops, YrsOperation{
				ID:         nextID(),
				Kind:       OpArrayInsert,
				TargetPath: a.pathFor(s.Parent),
				UserID:     a.UserID,
				Timestamp:  timestamp,
				Data: map[string]any{
					"index": idx + i,
					"node":  toSnapshot(n),
				},
			})
			a.Paths.Bind(pathJoin(a.pathFor(s.Parent), string(n.Node.ID)), n.Node.ID)
		}
		return ops, nil

	case transform.RemoveNode:
		ops := make([]YrsOperation, 0, len(s.IDs))
		for _, id := range s.IDs {
			ops = append(ops, YrsOperation{
				ID:         nextID(),
				Kind:       OpArrayDelete,
				TargetPath: a.pathFor(s.Parent),
				UserID:     a.UserID,
				Timestamp:  timestamp,
				Data:       map[string]any{"id": string(id)},
			})
			a.Paths.Unbind(id)
		}
		return ops, nil

	case transform.MoveNode:
		return []YrsOperation{
			{ID: nextID(), Kind: OpArrayDelete, TargetPath: a.pathFor(s.Src), UserID: a.UserID, Timestamp: timestamp,
				Data: map[string]any{"id": string(s.ID)}},
			{ID: nextID(), Kind: OpArrayInsert, TargetPath: a.pathFor(s.Dst), UserID: a.UserID, Timestamp: timestamp,
				Data: map[string]any{"index": positionOrAppend(s.Position), "id": string(s.ID)}},
		}, nil

	case transform.SetAttrs:
		ops := make([]YrsOperation, 0, len(s.Changes))
		path := append(a.pathFor(s.ID), "attrs")
		for k, v := range s.Changes {
			ops = append(ops, YrsOperation{
				ID:         nextID(),
				Kind:       OpMapSet,
				TargetPath: append(append([]string{}, path...), k),
				UserID:     a.UserID,
				Timestamp:  timestamp,
				Data:       v,
			})
		}
		return ops, nil

	case transform.AddMark:
		return []YrsOperation{{
			ID: nextID(), Kind: OpCustom, TargetPath: a.pathFor(s.ID), UserID: a.UserID, Timestamp: timestamp,
			Data: map[string]any{"op": "add_mark", "marks": s.Marks},
		}}, nil

	case transform.RemoveMark:
		return []YrsOperation{{
			ID: nextID(), Kind: OpCustom, TargetPath: a.pathFor(s.ID), UserID: a.UserID, Timestamp: timestamp,
			Data: map[string]any{"op": "remove_mark", "types": s.Types},
		}}, nil

	case transform.ReplaceContent:
		return []YrsOperation{{
			ID: nextID(), Kind: OpCustom, TargetPath: a.pathFor(s.Parent), UserID: a.UserID, Timestamp: timestamp,
			Data: map[string]any{"op": "replace_content", "new_content": s.NewContent},
		}}, nil

	default:
		return nil, fmt.Errorf("collab: unsupported step type %T", step)
	}
}

func positionOrAppend(p *int) int {
	if p == nil {
		return -1
	}
	return *p
}

func pathJoin(base []string, leaf string) string {
	out := ""
	for _, b := range base {
		out += b + "/"
	}
	return out + leaf
}

// FromOperation translates one inbound YrsOperation back into an
// equivalent Step, resolving TargetPath through the PathIndex. An op
// whose payload is missing or malformed, whose path is not bound, or
// whose kind has no Step equivalent (MapDelete, TextInsert, TextDelete)
// returns an error.
func (a *Adapter) FromOperation(op YrsOperation) (transform.Step, error) {
	switch op.Kind {
	case OpArrayInsert:
		data, ok := op.Data.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("collab: ArrayInsert op missing data payload")
		}
		snap, ok := data["node"].(nodeSnapshot)
		if !ok {
			return nil, fmt.Errorf("collab: ArrayInsert op missing node snapshot")
		}
		parent, ok := a.resolveParent(op.TargetPath)
		if !ok {
			return nil, fmt.Errorf("collab: unresolved target path for ArrayInsert")
		}
		idx := 0
		if v, ok := data["index"].(int); ok {
			idx = v
		}
		node := fromSnapshot(snap)
		return transform.AddNode{Parent: parent, AtIndex: &idx, Nodes: []tree.NodeEnum{node}}, nil

	case OpArrayDelete:
		data, ok := op.Data.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("collab: ArrayDelete op missing data payload")
		}
		idStr, _ := data["id"].(string)
		parent, ok := a.resolveParent(op.TargetPath)
		if !ok {
			return nil, fmt.Errorf("collab: unresolved target path for ArrayDelete")
		}
		return transform.RemoveNode{Parent: parent, IDs: []tree.NodeID{tree.NodeID(idStr)}}, nil

	case OpMapSet:
		if len(op.TargetPath) < 2 {
			return nil, fmt.Errorf("collab: MapSet op target path too short")
		}
		key := op.TargetPath[len(op.TargetPath)-1]
		nodePath := op.TargetPath[:len(op.TargetPath)-2]
		id, ok := a.Paths.NodeFor(joinPath(nodePath))
		if !ok {
			return nil, fmt.Errorf("collab: unresolved node for MapSet")
		}
		return transform.SetAttrs{ID: id, Changes: tree.Attrs{key: op.Data}}, nil

	case OpCustom:
		data, ok := op.Data.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("collab: Custom op missing data payload")
		}
		id, ok := a.resolveParent(op.TargetPath)
		if !ok {
			return nil, fmt.Errorf("collab: unresolved target path for Custom op")
		}
		switch data["op"] {
		case "add_mark":
			marks, _ := data["marks"].([]tree.Mark)
			return transform.AddMark{ID: id, Marks: marks}, nil
		case "remove_mark":
			types, _ := data["types"].([]string)
			return transform.RemoveMark{ID: id, Types: types}, nil
		case "replace_content":
			content, _ := data["new_content"].([]tree.NodeID)
			return transform.ReplaceContent{Parent: id, NewContent: content}, nil
		default:
			return nil, fmt.Errorf("collab: unknown custom op %v", data["op"])
		}

	default:
		return nil, fmt.Errorf("collab: unsupported op kind %s", op.Kind)
	}
}

func (a *Adapter) resolveParent(path []string) (tree.NodeID, bool) {
	if len(path) == 0 {
		return "", false
	}
	return a.Paths.NodeFor(joinPath(path))
}

func joinPath(segs []string) string {
	out := ""
	for i, s := range segs {
		if i > 0 {
			out += "/"
		}
		out += s
	}
	return out
}

// FromTransaction resolves a whole batch of remote ops (sharing one
// logical commit) into a Transaction in the order they were ordered by
// the sending peer's OrderedSequence, so local application preserves
// the sender's causal intent (spec §4.6).
func (a *Adapter) FromTransaction(ops []YrsOperation) (*transform.Transaction, error) {
	tx := transform.NewTransaction()
	for _, op := range ops {
		step, err := a.FromOperation(op)
		if err != nil {
			return nil, err
		}
		tx.AddStep(step)
	}
	tx.SetMeta("origin", "remote")
	return tx, nil
}
