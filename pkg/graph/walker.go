package graph

import "github.com/Cassielxd/moduforge-rs-sub000/pkg/vm"

// dispatchResult is what a node-kind handler hands back to Evaluate.
type dispatchResult struct {
	output vm.Variable
	// terminal marks an OutputNode result: Evaluate returns immediately.
	terminal bool
	// activeHandles selects which outgoing edges actually deliver this
	// node's data downstream. nil means "all outgoing edges are active",
	// which is every kind except SwitchNode.
	activeHandles map[string]bool
}

// nodeWalker drives a Kahn's-algorithm topological walk: a node becomes
// ready once every edge pointing at it has been structurally resolved
// (its source finished processing), independent of whether that edge
// was actually selected to carry data — selection only affects which
// upstream outputs incomingData later folds together.
type nodeWalker struct {
	g *Graph

	remaining map[string]int
	queue     []string

	data     map[string]vm.Variable
	selected map[string]bool // edge ID -> data actually flows on it

	lastInput vm.Variable
}

func newWalker(g *Graph) *nodeWalker {
	w := &nodeWalker{
		g:         g,
		remaining: make(map[string]int, len(g.order)),
		data:      make(map[string]vm.Variable, len(g.order)),
		selected:  make(map[string]bool),
	}
	for _, id := range g.order {
		w.remaining[id] = len(g.incoming[id])
		if w.remaining[id] == 0 {
			w.queue = append(w.queue, id)
		}
	}
	return w
}

func (w *nodeWalker) next() (string, bool) {
	if len(w.queue) == 0 {
		return "", false
	}
	id := w.queue[0]
	w.queue = w.queue[1:]
	return id, true
}

func (w *nodeWalker) setData(id string, v vm.Variable) {
	w.data[id] = v
}

// activate records which outgoing edges of id carry data downstream
// (handles == nil means all of them) and advances Kahn's frontier.
func (w *nodeWalker) activate(id string, handles map[string]bool) {
	for _, e := range w.g.outgoing[id] {
		if handles == nil || e.SourceHandle == "" || handles[e.SourceHandle] {
			w.selected[e.ID] = true
		}
		w.remaining[e.TargetID]--
		if w.remaining[e.TargetID] == 0 {
			w.queue = append(w.queue, e.TargetID)
		}
	}
}

// incomingData folds the data of every selected incoming edge into one
// Variable: a single non-object source passes through verbatim, and
// multiple (or object-shaped) sources union under last-writer-wins,
// in edge order. When includeNodes is set, every contributing source's
// output is additionally nested under a "$nodes" key by node name, so
// expressions can address a specific upstream node instead of only the
// merged view.
func (w *nodeWalker) incomingData(id string, includeNodes bool) vm.Variable {
	edges := w.g.incoming[id]
	var contributing []Edge
	for _, e := range edges {
		if w.selected[e.ID] {
			contributing = append(contributing, e)
		}
	}
	if len(contributing) == 0 {
		return vm.Null()
	}
	if len(contributing) == 1 && !includeNodes {
		return w.data[contributing[0].SourceID]
	}

	merged := make(map[string]vm.Variable)
	nodes := make(map[string]vm.Variable)
	for _, e := range contributing {
		src := w.data[e.SourceID]
		if src.Kind == vm.KindObject {
			for k, v := range src.Object {
				merged[k] = v
			}
		}
		if includeNodes {
			nodes[w.g.nodes[e.SourceID].Name] = src
		}
	}
	if includeNodes {
		merged["$nodes"] = vm.NewObject(nodes)
	}
	if len(merged) == 0 {
		return vm.Null()
	}
	return vm.NewObject(merged)
}

// unionOfSinks is the fallback result when the walk runs dry without
// ever reaching an OutputNode: the union of every node with no
// unresolved successors, i.e. every node the walk actually finished on.
func (w *nodeWalker) unionOfSinks() vm.Variable {
	merged := make(map[string]vm.Variable)
	for _, id := range w.g.order {
		if len(w.g.outgoing[id]) != 0 {
			continue
		}
		if out, ok := w.data[id]; ok && out.Kind == vm.KindObject {
			for k, v := range out.Object {
				merged[k] = v
			}
		}
	}
	return vm.NewObject(merged)
}
