package graph

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Cassielxd/moduforge-rs-sub000/pkg/vm"
)

func linearContent() Content {
	return Content{
		Nodes: []Node{
			{ID: "in", Name: "input", Kind: KindInput, Content: InputContent{}},
			{ID: "expr", Name: "double", Kind: KindExpression, Content: ExpressionContent{
				Expressions: []ExpressionItem{{ID: "e1", Key: "doubled", Value: "value * 2"}},
			}},
			{ID: "out", Name: "output", Kind: KindOutput, Content: OutputContent{}},
		},
		Edges: []Edge{
			{ID: "e-in-expr", SourceID: "in", TargetID: "expr"},
			{ID: "e-expr-out", SourceID: "expr", TargetID: "out"},
		},
	}
}

func TestGraphLinearEvaluation(t *testing.T) {
	g, err := New(linearContent(), Config{})
	require.NoError(t, err)

	input := vm.NewObject(map[string]vm.Variable{"value": vm.NewNumber(decimal.NewFromInt(21))})
	resp, err := g.Evaluate(input)
	require.NoError(t, err)
	require.Equal(t, vm.KindObject, resp.Result.Kind)
	assert.Equal(t, "42", resp.Result.Object["doubled"].Number.String())
}

func TestGraphRejectsMultipleInputNodes(t *testing.T) {
	content := linearContent()
	content.Nodes = append(content.Nodes, Node{ID: "in2", Name: "input2", Kind: KindInput, Content: InputContent{}})
	g, err := New(content, Config{})
	require.NoError(t, err)

	err = g.Validate()
	require.Error(t, err)
	ve, ok := err.(*ValidationError)
	require.True(t, ok)
	assert.Equal(t, ErrInvalidInputCount, ve.Kind)
}

func TestGraphRejectsCycles(t *testing.T) {
	content := linearContent()
	content.Edges = append(content.Edges, Edge{ID: "back", SourceID: "out", TargetID: "expr"})
	g, err := New(content, Config{})
	require.NoError(t, err)

	err = g.Validate()
	require.Error(t, err)
	ve, ok := err.(*ValidationError)
	require.True(t, ok)
	assert.Equal(t, ErrCyclicGraph, ve.Kind)
}

func TestGraphMissingEdgeNodeErrors(t *testing.T) {
	content := linearContent()
	content.Edges = append(content.Edges, Edge{ID: "bad", SourceID: "in", TargetID: "nope"})
	_, err := New(content, Config{})
	require.Error(t, err)
	ve, ok := err.(*ValidationError)
	require.True(t, ok)
	assert.Equal(t, ErrMissingNode, ve.Kind)
}

func TestGraphSwitchRoutesSingleBranch(t *testing.T) {
	content := Content{
		Nodes: []Node{
			{ID: "in", Name: "input", Kind: KindInput, Content: InputContent{}},
			{ID: "sw", Name: "route", Kind: KindSwitch, Content: SwitchContent{
				Statements: []SwitchStatement{
					{ID: "hi", Condition: "value > 10"},
					{ID: "lo", Condition: "value <= 10"},
				},
			}},
			{ID: "hiOut", Name: "hi-expr", Kind: KindExpression, Content: ExpressionContent{
				Expressions: []ExpressionItem{{ID: "e1", Key: "branch", Value: "'high'"}},
			}},
			{ID: "loOut", Name: "lo-expr", Kind: KindExpression, Content: ExpressionContent{
				Expressions: []ExpressionItem{{ID: "e2", Key: "branch", Value: "'low'"}},
			}},
			{ID: "out", Name: "output", Kind: KindOutput, Content: OutputContent{}},
		},
		Edges: []Edge{
			{ID: "e1", SourceID: "in", TargetID: "sw"},
			{ID: "e2", SourceID: "sw", TargetID: "hiOut", SourceHandle: "hi"},
			{ID: "e3", SourceID: "sw", TargetID: "loOut", SourceHandle: "lo"},
			{ID: "e4", SourceID: "hiOut", TargetID: "out"},
			{ID: "e5", SourceID: "loOut", TargetID: "out"},
		},
	}
	g, err := New(content, Config{})
	require.NoError(t, err)

	input := vm.NewObject(map[string]vm.Variable{"value": vm.NewNumber(decimal.NewFromInt(100))})
	resp, err := g.Evaluate(input)
	require.NoError(t, err)
	assert.Equal(t, "high", resp.Result.Object["branch"].Str)
}

func TestGraphFunctionNodeRunsScript(t *testing.T) {
	content := Content{
		Nodes: []Node{
			{ID: "in", Name: "input", Kind: KindInput, Content: InputContent{}},
			{ID: "fn", Name: "greet", Kind: KindFunction, Content: FunctionContent{
				Version: FunctionV1,
				Source:  "return { greeting: 'hello ' + input.name };",
			}},
			{ID: "out", Name: "output", Kind: KindOutput, Content: OutputContent{}},
		},
		Edges: []Edge{
			{ID: "e1", SourceID: "in", TargetID: "fn"},
			{ID: "e2", SourceID: "fn", TargetID: "out"},
		},
	}
	g, err := New(content, Config{})
	require.NoError(t, err)

	input := vm.NewObject(map[string]vm.Variable{"name": vm.NewString("ada")})
	resp, err := g.Evaluate(input)
	require.NoError(t, err)
	assert.Equal(t, "hello ada", resp.Result.Object["greeting"].Str)
}

func TestGraphDecisionTableFirstHitPolicy(t *testing.T) {
	content := Content{
		Nodes: []Node{
			{ID: "in", Name: "input", Kind: KindInput, Content: InputContent{}},
			{ID: "tbl", Name: "tiers", Kind: KindDecisionTable, Content: DecisionTableContent{
				HitPolicy: HitPolicyFirst,
				Rules: []DecisionTableRule{
					{ID: "r1", Inputs: map[string]string{"c": "age >= 65"}, Outputs: map[string]string{"tier": "'senior'"}},
					{ID: "r2", Inputs: map[string]string{"c": "age >= 18"}, Outputs: map[string]string{"tier": "'adult'"}},
					{ID: "r3", Inputs: map[string]string{}, Outputs: map[string]string{"tier": "'minor'"}},
				},
			}},
			{ID: "out", Name: "output", Kind: KindOutput, Content: OutputContent{}},
		},
		Edges: []Edge{
			{ID: "e1", SourceID: "in", TargetID: "tbl"},
			{ID: "e2", SourceID: "tbl", TargetID: "out"},
		},
	}
	g, err := New(content, Config{})
	require.NoError(t, err)

	input := vm.NewObject(map[string]vm.Variable{"age": vm.NewNumber(decimal.NewFromInt(30))})
	resp, err := g.Evaluate(input)
	require.NoError(t, err)
	assert.Equal(t, "adult", resp.Result.Object["tier"].Str)
}

func TestGraphInputSchemaValidationRejectsBadInput(t *testing.T) {
	content := linearContent()
	content.Nodes[0] = Node{ID: "in", Name: "input", Kind: KindInput, Content: InputContent{
		Schema: `{"type":"object","required":["value"],"properties":{"value":{"type":"number"}}}`,
	}}
	g, err := New(content, Config{})
	require.NoError(t, err)

	_, err = g.Evaluate(vm.NewObject(map[string]vm.Variable{}))
	require.Error(t, err)
}

func TestGraphDepthLimitExceeded(t *testing.T) {
	g, err := New(linearContent(), Config{Iteration: 5, MaxDepth: 5})
	require.NoError(t, err)

	_, err = g.Evaluate(vm.NewObject(map[string]vm.Variable{"value": vm.NewNumber(decimal.NewFromInt(1))}))
	require.Error(t, err)
	nodeErr, ok := err.(*NodeError)
	require.True(t, ok)
	evalErr, ok := nodeErr.Err.(*EvaluationError)
	require.True(t, ok)
	assert.Equal(t, ErrDepthLimitExceeded, evalErr.Kind)
}

type memLoader struct {
	graphs map[string]Content
}

func (m memLoader) Load(key string) (*Content, error) {
	c := m.graphs[key]
	return &c, nil
}

func TestGraphDecisionNodeRecursesIntoSubGraph(t *testing.T) {
	sub := linearContent()
	loader := memLoader{graphs: map[string]Content{"double": sub}}

	content := Content{
		Nodes: []Node{
			{ID: "in", Name: "input", Kind: KindInput, Content: InputContent{}},
			{ID: "dec", Name: "delegate", Kind: KindDecision, Content: DecisionContent{Key: "double"}},
			{ID: "out", Name: "output", Kind: KindOutput, Content: OutputContent{}},
		},
		Edges: []Edge{
			{ID: "e1", SourceID: "in", TargetID: "dec"},
			{ID: "e2", SourceID: "dec", TargetID: "out"},
		},
	}
	g, err := New(content, Config{Loader: loader})
	require.NoError(t, err)

	input := vm.NewObject(map[string]vm.Variable{"value": vm.NewNumber(decimal.NewFromInt(5))})
	resp, err := g.Evaluate(input)
	require.NoError(t, err)
	assert.Equal(t, "10", resp.Result.Object["doubled"].Number.String())
}

type echoAdapter struct{}

func (echoAdapter) Handle(req CustomNodeRequest) (CustomNodeResponse, error) {
	return CustomNodeResponse{Output: req.Input}, nil
}

func TestGraphCustomNodeRequiresAdapter(t *testing.T) {
	content := Content{
		Nodes: []Node{
			{ID: "in", Name: "input", Kind: KindInput, Content: InputContent{}},
			{ID: "c", Name: "custom", Kind: KindCustom, Content: CustomContent{}},
			{ID: "out", Name: "output", Kind: KindOutput, Content: OutputContent{}},
		},
		Edges: []Edge{
			{ID: "e1", SourceID: "in", TargetID: "c"},
			{ID: "e2", SourceID: "c", TargetID: "out"},
		},
	}
	g, err := New(content, Config{})
	require.NoError(t, err)
	_, err = g.Evaluate(vm.NewObject(map[string]vm.Variable{"a": vm.NewBool(true)}))
	require.Error(t, err)

	g2, err := New(content, Config{Adapter: echoAdapter{}})
	require.NoError(t, err)
	resp, err := g2.Evaluate(vm.NewObject(map[string]vm.Variable{"a": vm.NewBool(true)}))
	require.NoError(t, err)
	assert.True(t, resp.Result.Object["a"].Bool)
}

func TestGraphTraceCapturesNodeOrder(t *testing.T) {
	g, err := New(linearContent(), Config{Trace: true})
	require.NoError(t, err)

	input := vm.NewObject(map[string]vm.Variable{"value": vm.NewNumber(decimal.NewFromInt(3))})
	resp, err := g.Evaluate(input)
	require.NoError(t, err)
	require.NotNil(t, resp.Trace)
	assert.Contains(t, resp.Trace, "in")
	assert.Contains(t, resp.Trace, "expr")
	assert.Less(t, resp.Trace["in"].Order, resp.Trace["expr"].Order)
}
