package tree

import (
	"encoding/json"
	"fmt"
)

// wireMark/wireNode/wireDocument mirror the JSON document format a
// caller hands to the CLI's "tx apply" demo: a root type plus a
// recursive children list. Explicit "id" fields are honored so a
// document can be round-tripped; nodes without one get a fresh
// NewNodeID.
type wireMark struct {
	Type  string `json:"type"`
	Attrs Attrs  `json:"attrs,omitempty"`
}

type wireNode struct {
	ID       string     `json:"id,omitempty"`
	Type     string     `json:"type"`
	Attrs    Attrs      `json:"attrs,omitempty"`
	Marks    []wireMark `json:"marks,omitempty"`
	Children []wireNode `json:"children,omitempty"`
}

type wireDocument struct {
	RootType   string     `json:"rootType"`
	RootAttrs  Attrs      `json:"rootAttrs,omitempty"`
	ShardCount int        `json:"shardCount,omitempty"`
	Children   []wireNode `json:"children,omitempty"`
}

// DecodeDocument parses a JSON document description into a fresh Tree.
// The root node is always freshly minted (its id is not caller-chosen);
// everything else is built via Add beneath it.
func DecodeDocument(raw []byte) (Tree, error) {
	var doc wireDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Tree{}, fmt.Errorf("tree: decode document: %w", err)
	}
	if doc.RootType == "" {
		return Tree{}, fmt.Errorf("tree: decode document: rootType is required")
	}

	t := New(doc.RootType, doc.ShardCount)
	if len(doc.RootAttrs) > 0 {
		var err error
		t, _, err = t.UpdateAttr(t.RootID(), doc.RootAttrs)
		if err != nil {
			return Tree{}, fmt.Errorf("tree: decode document: set root attrs: %w", err)
		}
	}
	if len(doc.Children) == 0 {
		return t, nil
	}

	nodes := make([]NodeEnum, len(doc.Children))
	for i, c := range doc.Children {
		nodes[i] = toNodeEnum(c)
	}
	t, err := t.Add(t.RootID(), nodes, nil)
	if err != nil {
		return Tree{}, fmt.Errorf("tree: decode document: %w", err)
	}
	return t, nil
}

func toNodeEnum(w wireNode) NodeEnum {
	id := NodeID(w.ID)
	if id == "" {
		id = NewNodeID()
	}
	marks := make([]Mark, len(w.Marks))
	for i, m := range w.Marks {
		marks[i] = Mark{Type: m.Type, Attrs: m.Attrs}
	}
	children := make([]NodeEnum, len(w.Children))
	for i, c := range w.Children {
		children[i] = toNodeEnum(c)
	}
	childIDs := make([]NodeID, len(children))
	for i, c := range children {
		childIDs[i] = c.Node.ID
	}
	return NodeEnum{
		Node: Node{
			ID:      id,
			Type:    w.Type,
			Attrs:   w.Attrs,
			Content: childIDs,
			Marks:   marks,
		},
		Children: children,
	}
}

// EncodeDocument renders the subtree of t at root as one nested wire
// node object (id, type, attrs, marks, children) — the shape of an
// entry in DecodeDocument's children list, not the top-level document
// object DecodeDocument reads (no rootType or shardCount). Used by the
// CLI to print results and by tests that decode it back into a node.
func EncodeDocument(t Tree, root NodeID) ([]byte, error) {
	w, err := toWireNode(t, root)
	if err != nil {
		return nil, err
	}
	return json.Marshal(w)
}

func toWireNode(t Tree, id NodeID) (wireNode, error) {
	n, err := t.GetNode(id)
	if err != nil {
		return wireNode{}, err
	}
	w := wireNode{ID: string(n.ID), Type: n.Type, Attrs: n.Attrs}
	for _, m := range n.Marks {
		w.Marks = append(w.Marks, wireMark{Type: m.Type, Attrs: m.Attrs})
	}
	for _, childID := range n.Content {
		child, err := toWireNode(t, childID)
		if err != nil {
			return wireNode{}, err
		}
		w.Children = append(w.Children, child)
	}
	return w, nil
}
