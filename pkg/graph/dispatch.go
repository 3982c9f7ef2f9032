package graph

import (
	"fmt"

	"github.com/Cassielxd/moduforge-rs-sub000/pkg/vm"
)

// dispatch runs node against its node-kind handler. rootInput is the
// value the whole evaluation started with, only consulted by InputNode;
// every other kind pulls its input from already-processed predecessors
// via the walker.
func (g *Graph) dispatch(w *nodeWalker, node *Node, rootInput vm.Variable) (dispatchResult, error) {
	switch node.Kind {
	case KindInput:
		return g.dispatchInput(w, node, rootInput)
	case KindOutput:
		return g.dispatchOutput(w, node)
	case KindSwitch:
		return g.dispatchSwitch(w, node)
	case KindFunction:
		return g.dispatchFunction(w, node)
	case KindExpression:
		return g.dispatchExpression(w, node)
	case KindDecisionTable:
		return g.dispatchDecisionTable(w, node)
	case KindDecision:
		return g.dispatchDecision(w, node)
	case KindCustom:
		return g.dispatchCustom(w, node)
	default:
		return dispatchResult{}, fmt.Errorf("graph: unknown node kind %q", node.Kind)
	}
}

func (g *Graph) dispatchInput(w *nodeWalker, node *Node, rootInput vm.Variable) (dispatchResult, error) {
	w.lastInput = vm.Null()
	content, _ := node.Content.(InputContent)
	if content.Schema != "" {
		if err := g.validators.validate(content.Schema, rootInput); err != nil {
			return dispatchResult{}, err
		}
	}
	return dispatchResult{output: rootInput}, nil
}

func (g *Graph) dispatchOutput(w *nodeWalker, node *Node) (dispatchResult, error) {
	input := w.incomingData(node.ID, false)
	w.lastInput = input
	content, _ := node.Content.(OutputContent)
	if content.Schema != "" {
		if err := g.validators.validate(content.Schema, input); err != nil {
			return dispatchResult{}, err
		}
	}
	return dispatchResult{output: input, terminal: true}, nil
}

func (g *Graph) dispatchSwitch(w *nodeWalker, node *Node) (dispatchResult, error) {
	input := w.incomingData(node.ID, false)
	w.lastInput = input
	content, _ := node.Content.(SwitchContent)

	handles := make(map[string]bool)
	for _, stmt := range content.Statements {
		result, err := evalExpr(stmt.Condition, input)
		if err != nil {
			return dispatchResult{}, fmt.Errorf("switch statement %s: %w", stmt.ID, err)
		}
		if truthy(result) {
			handles[stmt.ID] = true
			break
		}
	}
	return dispatchResult{output: input, activeHandles: handles}, nil
}

func (g *Graph) dispatchFunction(w *nodeWalker, node *Node) (dispatchResult, error) {
	input := w.incomingData(node.ID, true)
	w.lastInput = dotRemove(input, "$nodes")
	content, _ := node.Content.(FunctionContent)

	if g.runtime == nil {
		g.runtime = newScriptRuntime()
	}
	output, err := g.runtime.run(content, input)
	if err != nil {
		return dispatchResult{}, err
	}
	return dispatchResult{output: dotRemove(output, "$nodes")}, nil
}

func (g *Graph) dispatchExpression(w *nodeWalker, node *Node) (dispatchResult, error) {
	input := w.incomingData(node.ID, true)
	w.lastInput = dotRemove(input, "$nodes")
	content, _ := node.Content.(ExpressionContent)

	out := make(map[string]vm.Variable, len(content.Expressions))
	for _, item := range content.Expressions {
		result, err := evalExpr(item.Value, input)
		if err != nil {
			return dispatchResult{}, fmt.Errorf("expression %s: %w", item.ID, err)
		}
		out[item.Key] = result
	}
	return dispatchResult{output: vm.NewObject(out)}, nil
}

func (g *Graph) dispatchDecisionTable(w *nodeWalker, node *Node) (dispatchResult, error) {
	input := w.incomingData(node.ID, true)
	w.lastInput = dotRemove(input, "$nodes")
	content, _ := node.Content.(DecisionTableContent)

	var matches []map[string]vm.Variable
	for _, rule := range content.Rules {
		ok, err := ruleMatches(rule, input)
		if err != nil {
			return dispatchResult{}, fmt.Errorf("decision table rule %s: %w", rule.ID, err)
		}
		if !ok {
			continue
		}
		out, err := evalOutputs(rule, input)
		if err != nil {
			return dispatchResult{}, fmt.Errorf("decision table rule %s: %w", rule.ID, err)
		}
		matches = append(matches, out)
		if content.HitPolicy != HitPolicyCollect {
			break
		}
	}

	var output vm.Variable
	switch {
	case content.HitPolicy == HitPolicyCollect:
		rows := make([]vm.Variable, len(matches))
		for i, m := range matches {
			rows[i] = vm.NewObject(m)
		}
		output = vm.NewArray(rows)
	case len(matches) == 1:
		output = vm.NewObject(matches[0])
	default:
		output = vm.NewObject(nil)
	}
	output = dotRemove(output, "$nodes")
	output = dotRemove(output, "$")
	return dispatchResult{output: output}, nil
}

func ruleMatches(rule DecisionTableRule, input vm.Variable) (bool, error) {
	for _, cond := range rule.Inputs {
		if cond == "" {
			continue
		}
		result, err := evalExpr(cond, input)
		if err != nil {
			return false, err
		}
		if !truthy(result) {
			return false, nil
		}
	}
	return true, nil
}

func evalOutputs(rule DecisionTableRule, input vm.Variable) (map[string]vm.Variable, error) {
	out := make(map[string]vm.Variable, len(rule.Outputs))
	for key, expr := range rule.Outputs {
		result, err := evalExpr(expr, input)
		if err != nil {
			return nil, err
		}
		out[key] = result
	}
	return out, nil
}

func (g *Graph) dispatchDecision(w *nodeWalker, node *Node) (dispatchResult, error) {
	input := w.incomingData(node.ID, true)
	w.lastInput = dotRemove(input, "$nodes")
	content, _ := node.Content.(DecisionContent)

	if g.loader == nil {
		return dispatchResult{}, fmt.Errorf("graph: decision node %s references %q but no loader is configured", node.ID, content.Key)
	}
	sub, err := g.loader.Load(content.Key)
	if err != nil {
		return dispatchResult{}, fmt.Errorf("graph: load sub-graph %q: %w", content.Key, err)
	}
	subGraph, err := New(*sub, Config{
		Loader:    g.loader,
		Adapter:   g.adapter,
		Trace:     g.trace,
		Iteration: g.iteration + 1,
		MaxDepth:  g.maxDepth,
	})
	if err != nil {
		return dispatchResult{}, err
	}
	resp, err := subGraph.Evaluate(dotRemove(input, "$nodes"))
	if err != nil {
		return dispatchResult{}, err
	}
	return dispatchResult{output: dotRemove(resp.Result, "$nodes")}, nil
}

func (g *Graph) dispatchCustom(w *nodeWalker, node *Node) (dispatchResult, error) {
	input := w.incomingData(node.ID, true)
	w.lastInput = dotRemove(input, "$nodes")
	content, _ := node.Content.(CustomContent)

	if g.adapter == nil {
		return dispatchResult{}, &EvaluationError{Kind: ErrUnsupportedCustomNode}
	}
	res, err := g.adapter.Handle(CustomNodeRequest{
		NodeID: node.ID,
		Config: content.Config,
		Input:  dotRemove(input, "$nodes"),
	})
	if err != nil {
		return dispatchResult{}, err
	}
	return dispatchResult{output: dotRemove(res.Output, "$nodes")}, nil
}
