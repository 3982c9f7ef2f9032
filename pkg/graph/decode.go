package graph

import (
	"encoding/json"
	"fmt"

	"github.com/Cassielxd/moduforge-rs-sub000/pkg/vm"
)

// wireNode/wireEdge/wireContent mirror the original engine's camelCase
// JSON wire format (original_source/crates/engine/src/handler/graph.rs's
// serde(rename_all = "camelCase") structs): nodes carry a "type"
// discriminant and an opaque "content" object whose shape depends on
// it, decoded here in a second pass.
type wireNode struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Type    NodeKind        `json:"type"`
	Content json.RawMessage `json:"content"`
}

type wireEdge struct {
	ID           string `json:"id"`
	SourceID     string `json:"sourceId"`
	TargetID     string `json:"targetId"`
	SourceHandle string `json:"sourceHandle,omitempty"`
}

type wireContent struct {
	Nodes []wireNode `json:"nodes"`
	Edges []wireEdge `json:"edges"`
}

// DecodeContent parses the JSON wire format for a decision graph into a
// Content ready to pass to New.
func DecodeContent(raw []byte) (Content, error) {
	var doc wireContent
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Content{}, fmt.Errorf("graph: decode content: %w", err)
	}

	content := Content{
		Edges: make([]Edge, len(doc.Edges)),
	}
	for i, e := range doc.Edges {
		content.Edges[i] = Edge{ID: e.ID, SourceID: e.SourceID, TargetID: e.TargetID, SourceHandle: e.SourceHandle}
	}

	content.Nodes = make([]Node, len(doc.Nodes))
	for i, n := range doc.Nodes {
		decoded, err := decodeNodeContent(n.Type, n.Content)
		if err != nil {
			return Content{}, fmt.Errorf("graph: node %s: %w", n.ID, err)
		}
		content.Nodes[i] = Node{ID: n.ID, Name: n.Name, Kind: n.Type, Content: decoded}
	}
	return content, nil
}

func decodeNodeContent(kind NodeKind, raw json.RawMessage) (any, error) {
	switch kind {
	case KindInput:
		var c struct {
			Schema string `json:"schema"`
		}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &c); err != nil {
				return nil, err
			}
		}
		return InputContent{Schema: c.Schema}, nil
	case KindOutput:
		var c struct {
			Schema string `json:"schema"`
		}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &c); err != nil {
				return nil, err
			}
		}
		return OutputContent{Schema: c.Schema}, nil
	case KindSwitch:
		var c struct {
			Statements []SwitchStatement `json:"statements"`
		}
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, err
		}
		return SwitchContent{Statements: c.Statements}, nil
	case KindFunction:
		var c struct {
			Version int    `json:"version"`
			Source  string `json:"source"`
		}
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, err
		}
		version := FunctionV1
		if c.Version == 2 {
			version = FunctionV2
		}
		return FunctionContent{Version: version, Source: c.Source}, nil
	case KindDecision:
		var c struct {
			Key string `json:"key"`
		}
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, err
		}
		return DecisionContent{Key: c.Key}, nil
	case KindExpression:
		var c struct {
			Expressions []ExpressionItem `json:"expressions"`
		}
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, err
		}
		return ExpressionContent{Expressions: c.Expressions}, nil
	case KindDecisionTable:
		var c struct {
			HitPolicy HitPolicy           `json:"hitPolicy"`
			Rules     []DecisionTableRule `json:"rules"`
		}
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, err
		}
		if c.HitPolicy == "" {
			c.HitPolicy = HitPolicyFirst
		}
		return DecisionTableContent{HitPolicy: c.HitPolicy, Rules: c.Rules}, nil
	case KindCustom:
		var c struct {
			Config map[string]json.RawMessage `json:"config"`
		}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &c); err != nil {
				return nil, err
			}
		}
		cfg := make(map[string]vm.Variable, len(c.Config))
		for k, v := range c.Config {
			var variable vm.Variable
			if err := json.Unmarshal(v, &variable); err != nil {
				return nil, err
			}
			cfg[k] = variable
		}
		return CustomContent{Config: cfg}, nil
	default:
		return nil, fmt.Errorf("unknown node kind %q", kind)
	}
}
