// Package graph implements the decision-graph evaluator: a DAG of typed
// nodes (input/output/switch/function/decision/table/expression/custom)
// dispatched in dependency order, grounded on the engine's node-kind
// handler dispatch but retargeted at the local expression VM instead of
// an external rule service.
package graph

import (
	"time"

	"github.com/Cassielxd/moduforge-rs-sub000/pkg/vm"
)

// NodeKind is the closed set of node kinds a decision graph can contain.
type NodeKind string

const (
	KindInput         NodeKind = "inputNode"
	KindOutput        NodeKind = "outputNode"
	KindSwitch        NodeKind = "switchNode"
	KindFunction      NodeKind = "functionNode"
	KindDecision      NodeKind = "decisionNode"
	KindDecisionTable NodeKind = "decisionTableNode"
	KindExpression    NodeKind = "expressionNode"
	KindCustom        NodeKind = "customNode"
)

// FunctionVersion distinguishes the two script dialects a FunctionNode
// may carry. Both run on the same goja runtime; v1 runs the source as
// the body of a function of `input` whose return value is the result,
// v2 expects the source to assign `module.exports = (function(input) { ... })`.
type FunctionVersion int

const (
	FunctionV1 FunctionVersion = iota + 1
	FunctionV2
)

// Node is one vertex of a decision graph. Content holds the kind-specific
// payload; callers decode the concrete shape with the NodeKind-matching
// struct in this package (InputContent, SwitchContent, and so on).
type Node struct {
	ID      string
	Name    string
	Kind    NodeKind
	Content any
}

// Edge connects two nodes. SourceHandle is only meaningful for edges
// leaving a SwitchNode: it names the SwitchStatement whose truthiness
// must select this edge before the target node becomes reachable.
type Edge struct {
	ID           string
	SourceID     string
	TargetID     string
	SourceHandle string
}

// Content is the serializable definition of a decision graph: its nodes
// and the edges connecting them.
type Content struct {
	Nodes []Node
	Edges []Edge
}

type InputContent struct {
	Schema string
}

type OutputContent struct {
	Schema string
}

type SwitchStatement struct {
	ID        string
	Condition string
}

// SwitchContent evaluates each statement's condition, in order, against
// the node's input; the first one that is truthy selects the outgoing
// edge whose SourceHandle matches its ID. No match means no outgoing
// edge fires from this node.
type SwitchContent struct {
	Statements []SwitchStatement
}

type FunctionContent struct {
	Version FunctionVersion
	Source  string
}

// DecisionContent names a sub-graph to load and recursively evaluate
// through the same Loader this graph was constructed with.
type DecisionContent struct {
	Key string
}

type ExpressionItem struct {
	ID    string
	Key   string
	Value string
}

type ExpressionContent struct {
	Expressions []ExpressionItem
}

// DecisionTableRule is one row: a set of input-column expressions that
// must all be truthy (empty means "matches anything"), and a set of
// output-column expressions evaluated when the row matches.
type DecisionTableRule struct {
	ID      string
	Inputs  map[string]string
	Outputs map[string]string
}

// HitPolicy controls how many matching rules a table returns.
type HitPolicy string

const (
	HitPolicyFirst   HitPolicy = "first"
	HitPolicyCollect HitPolicy = "collect"
)

type DecisionTableContent struct {
	HitPolicy HitPolicy
	Rules     []DecisionTableRule
}

type CustomContent struct {
	Config map[string]vm.Variable
}

// CustomNodeRequest/Response is the adapter boundary for CustomNode,
// letting a host wire in node kinds this package knows nothing about.
type CustomNodeRequest struct {
	NodeID string
	Config map[string]vm.Variable
	Input  vm.Variable
}

type CustomNodeResponse struct {
	Output vm.Variable
}

// CustomNodeAdapter dispatches CustomNode evaluation to host-supplied
// logic. A graph built without one rejects any CustomNode it encounters.
type CustomNodeAdapter interface {
	Handle(req CustomNodeRequest) (CustomNodeResponse, error)
}

// Loader resolves the sub-graph referenced by a DecisionNode's key.
type Loader interface {
	Load(key string) (*Content, error)
}

// Trace records one node's execution for the response's trace map.
type Trace struct {
	ID          string
	Name        string
	Input       vm.Variable
	Output      vm.Variable
	Performance time.Duration
	Order       int
}

// Response is the result of a completed graph evaluation.
type Response struct {
	Result      vm.Variable
	Performance time.Duration
	Trace       map[string]Trace
}

// Config configures a new Graph.
type Config struct {
	Loader    Loader
	Adapter   CustomNodeAdapter
	Trace     bool
	Iteration int
	MaxDepth  int
}
