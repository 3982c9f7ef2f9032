package graph

import (
	"time"

	"github.com/Cassielxd/moduforge-rs-sub000/pkg/vm"
)

// Graph is a validated, evaluatable decision graph. Construct with New,
// then call Validate (Evaluate calls it implicitly) and Evaluate.
type Graph struct {
	nodes    map[string]*Node
	order    []string // insertion order, used to break trace ties deterministically
	outgoing map[string][]Edge
	incoming map[string][]Edge

	loader    Loader
	adapter   CustomNodeAdapter
	trace     bool
	iteration int
	maxDepth  int

	validators *validatorCache
	runtime    *scriptRuntime
}

// New builds a Graph from its node/edge definition. It does not validate
// acyclicity or input-node count; call Validate (or Evaluate, which does
// so internally) before relying on those invariants.
func New(content Content, cfg Config) (*Graph, error) {
	g := &Graph{
		nodes:      make(map[string]*Node, len(content.Nodes)),
		outgoing:   make(map[string][]Edge),
		incoming:   make(map[string][]Edge),
		loader:     cfg.Loader,
		adapter:    cfg.Adapter,
		trace:      cfg.Trace,
		iteration:  cfg.Iteration,
		maxDepth:   cfg.MaxDepth,
		validators: newValidatorCache(),
	}
	for i := range content.Nodes {
		n := content.Nodes[i]
		g.nodes[n.ID] = &n
		g.order = append(g.order, n.ID)
	}
	for _, e := range content.Edges {
		if _, ok := g.nodes[e.SourceID]; !ok {
			return nil, &ValidationError{Kind: ErrMissingNode, NodeID: e.SourceID}
		}
		if _, ok := g.nodes[e.TargetID]; !ok {
			return nil, &ValidationError{Kind: ErrMissingNode, NodeID: e.TargetID}
		}
		g.outgoing[e.SourceID] = append(g.outgoing[e.SourceID], e)
		g.incoming[e.TargetID] = append(g.incoming[e.TargetID], e)
	}
	if g.maxDepth <= 0 {
		g.maxDepth = 64
	}
	return g, nil
}

// Validate checks the graph invariants: exactly one input node, no
// cycles, and at least one output node reachable from it.
func (g *Graph) Validate() error {
	inputs := 0
	var inputID string
	for _, id := range g.order {
		if g.nodes[id].Kind == KindInput {
			inputs++
			inputID = id
		}
	}
	if inputs != 1 {
		return &ValidationError{Kind: ErrInvalidInputCount, Count: inputs}
	}

	if g.hasCycle() {
		return &ValidationError{Kind: ErrCyclicGraph}
	}

	if g.reachableOutputCount(inputID) == 0 {
		return &ValidationError{Kind: ErrInvalidOutputCount, Count: 0}
	}
	return nil
}

// hasCycle runs iterative three-color DFS over the node/edge adjacency;
// no pack library offers generic directed-graph algorithms for Go (the
// original relies on the petgraph crate, Rust-only), so this is plain
// stdlib graph theory rather than a dependency gap.
func (g *Graph) hasCycle() bool {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(g.order))
	for _, id := range g.order {
		if color[id] != white {
			continue
		}
		if g.dfsHasCycle(id, color) {
			return true
		}
	}
	return false
}

func (g *Graph) dfsHasCycle(id string, color map[string]int) bool {
	color[id] = 1 // gray
	for _, e := range g.outgoing[id] {
		switch color[e.TargetID] {
		case 1:
			return true
		case 0:
			if g.dfsHasCycle(e.TargetID, color) {
				return true
			}
		}
	}
	color[id] = 2 // black
	return false
}

func (g *Graph) reachableOutputCount(fromID string) int {
	seen := map[string]bool{fromID: true}
	queue := []string{fromID}
	count := 0
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if g.nodes[id].Kind == KindOutput {
			count++
		}
		for _, e := range g.outgoing[id] {
			if !seen[e.TargetID] {
				seen[e.TargetID] = true
				queue = append(queue, e.TargetID)
			}
		}
	}
	return count
}

// Evaluate runs the graph to completion against input, returning the
// first output node's validated result (or the union of all node
// outputs with no unvisited successors, if no output node is reached
// before the walk runs dry).
func (g *Graph) Evaluate(input vm.Variable) (*Response, error) {
	start := time.Now()
	if err := g.Validate(); err != nil {
		return nil, &NodeError{NodeID: "", Err: err}
	}
	if g.iteration >= g.maxDepth {
		return nil, &NodeError{NodeID: "", Err: &EvaluationError{Kind: ErrDepthLimitExceeded}}
	}

	w := newWalker(g)
	var traces map[string]Trace
	if g.trace {
		traces = make(map[string]Trace)
	}

	for {
		id, ok := w.next()
		if !ok {
			break
		}
		node := g.nodes[id]
		nodeStart := time.Now()

		out, err := g.dispatch(w, node, input)
		if err != nil {
			if traces != nil {
				traces[node.ID] = Trace{
					ID:     node.ID,
					Name:   node.Name,
					Input:  w.lastInput,
					Output: vm.Null(),
					Order:  len(traces),
				}
			}
			return nil, &NodeError{NodeID: node.ID, Err: err, Trace: traces}
		}

		if traces != nil {
			traces[node.ID] = Trace{
				ID:          node.ID,
				Name:        node.Name,
				Input:       w.lastInput,
				Output:      out.output,
				Performance: time.Since(nodeStart),
				Order:       len(traces),
			}
		}

		if out.terminal {
			return &Response{Result: out.output, Performance: time.Since(start), Trace: traces}, nil
		}

		w.setData(node.ID, out.output)
		w.activate(node.ID, out.activeHandles)
	}

	return &Response{Result: w.unionOfSinks(), Performance: time.Since(start), Trace: traces}, nil
}
