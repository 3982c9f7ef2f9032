package schema

import (
	"sort"
	"strconv"
	"strings"
)

// MatchEdge is one outgoing transition of a compiled ContentMatch state.
type MatchEdge struct {
	NodeType *NodeType
	Next     *ContentMatch
}

// ContentMatch is a state in the compiled DFA of a content expression
// (spec §4.1, GLOSSARY: ContentMatch). States are built as pointers so
// that a state reachable from itself (a Kleene-star loop collapsing
// back to the same subset-construction label) can be wired up in place
// rather than risk the incomplete-clone pitfall the original Rust
// source has around self-referential states.
type ContentMatch struct {
	Next     []MatchEdge
	ValidEnd bool
}

func emptyContentMatch() *ContentMatch {
	return &ContentMatch{ValidEnd: true}
}

// MatchType follows the transition for nodeType, if any.
func (c *ContentMatch) MatchType(nodeType *NodeType) *ContentMatch {
	for _, e := range c.Next {
		if e.NodeType.Name == nodeType.Name {
			return e.Next
		}
	}
	return nil
}

// MatchFragment folds MatchType over a list of node type names, in
// schema node-type-registry terms (spec §4.1 match_fragment).
func (c *ContentMatch) MatchFragment(typeNames []string, nodes map[string]*NodeType) *ContentMatch {
	current := c
	for _, name := range typeNames {
		nt, ok := nodes[name]
		if !ok {
			return nil
		}
		next := current.MatchType(nt)
		if next == nil {
			return nil
		}
		current = next
	}
	return current
}

// DefaultType returns the first edge's node type with no required
// attributes, if any (spec §4.1 default_type).
func (c *ContentMatch) DefaultType() *NodeType {
	for _, e := range c.Next {
		if !e.NodeType.HasRequiredAttrs() {
			return e.NodeType
		}
	}
	return nil
}

// Compatible reports whether c and other share any outgoing node type
// (supplemented accessor, ported from content.rs's compatible).
func (c *ContentMatch) Compatible(other *ContentMatch) bool {
	for _, e1 := range c.Next {
		for _, e2 := range other.Next {
			if e1.NodeType.Name == e2.NodeType.Name {
				return true
			}
		}
	}
	return false
}

// EdgeCount returns the number of outgoing transitions.
func (c *ContentMatch) EdgeCount() int { return len(c.Next) }

// Edge returns the nth outgoing transition.
func (c *ContentMatch) Edge(n int) (MatchEdge, error) {
	if n < 0 || n >= len(c.Next) {
		return MatchEdge{}, errCompileFailed("edge index out of range", strconv.Itoa(n))
	}
	return c.Next[n], nil
}

// String renders the automaton as a numbered transition table, one line
// per reachable state, matching content.rs's Display impl (supplemented
// accessor from original_source). States are numbered from 1 in
// discovery order, each edge names its target's number, and a state
// with ValidEnd is marked with a trailing "*".
func (c *ContentMatch) String() string {
	var seen []*ContentMatch
	var scan func(m *ContentMatch)
	scan = func(m *ContentMatch) {
		seen = append(seen, m)
		for _, e := range m.Next {
			found := false
			for _, s := range seen {
				if s == e.Next {
					found = true
					break
				}
			}
			if !found {
				scan(e.Next)
			}
		}
	}
	scan(c)

	indexOf := func(m *ContentMatch) int {
		for i, s := range seen {
			if s == m {
				return i
			}
		}
		return -1
	}

	var lines []string
	for i, m := range seen {
		label := strconv.Itoa(i + 1)
		if m.ValidEnd {
			label += "*"
		}
		var parts []string
		for _, e := range m.Next {
			parts = append(parts, e.NodeType.Name+"->"+strconv.Itoa(indexOf(e.Next)+1))
		}
		lines = append(lines, label+" "+strings.Join(parts, ", "))
	}
	return strings.Join(lines, "\n")
}

// Fill computes the shortest sequence of required node type names such
// that appending them (then `after`) reaches a state with ValidEnd
// (when toEnd) or any state that can match the suffix. Tie-break:
// prefer types with no required attributes, then edge declaration order
// (spec §4.1 fill, §9 design note).
func (c *ContentMatch) Fill(after []string, toEnd bool, nodes map[string]*NodeType) ([]string, bool) {
	type queueItem struct {
		state *ContentMatch
		path  []string
	}

	visited := map[*ContentMatch]bool{c: true}
	queue := []queueItem{{state: c}}

	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]

		if finished := item.state.MatchFragment(after, nodes); finished != nil {
			if finished.ValidEnd || !toEnd {
				return item.path, true
			}
		}

		for _, e := range orderedByFillPreference(item.state.Next) {
			if visited[e.Next] {
				continue
			}
			visited[e.Next] = true
			path := append(append([]string(nil), item.path...), e.NodeType.Name)
			queue = append(queue, queueItem{state: e.Next, path: path})
		}
	}
	return nil, false
}

// orderedByFillPreference sorts a state's outgoing edges for Fill's
// expansion order: edges to types with no required attributes come
// first, and edges are otherwise left in declared order (stable sort).
func orderedByFillPreference(edges []MatchEdge) []MatchEdge {
	ordered := append([]MatchEdge(nil), edges...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return !ordered[i].NodeType.HasRequiredAttrs() && ordered[j].NodeType.HasRequiredAttrs()
	})
	return ordered
}

// --- content expression tokenizer ---

type tokenStream struct {
	pos    int
	tokens []string
	src    string
}

func tokenize(src string) *tokenStream {
	var tokens []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}
	for _, r := range src {
		switch {
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			flush()
		case !isAlnum(r):
			flush()
			tokens = append(tokens, string(r))
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return &tokenStream{tokens: tokens, src: src}
}

func isAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_'
}

func (s *tokenStream) peek() (string, bool) {
	if s.pos >= len(s.tokens) {
		return "", false
	}
	return s.tokens[s.pos], true
}

func (s *tokenStream) eat(tok string) bool {
	if t, ok := s.peek(); ok && t == tok {
		s.pos++
		return true
	}
	return false
}

// --- content expression AST ---

type exprKind int

const (
	exprChoice exprKind = iota
	exprSeq
	exprPlus
	exprStar
	exprOpt
	exprRange
	exprName
)

type contentExpr struct {
	kind     exprKind
	children []*contentExpr // Choice, Seq operands; single-element for Plus/Star/Opt/Range
	min, max int            // Range only; max == -1 means unbounded
	nodeType *NodeType      // Name only
}

func parseContentExpr(src string, nodes map[string]*NodeType) (*contentExpr, error) {
	stream := tokenize(src)
	if _, ok := stream.peek(); !ok {
		return nil, nil // empty expression: matches only the empty fragment
	}
	p := &contentParser{stream: stream, nodes: nodes}
	expr, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if p.stream.pos != len(p.stream.tokens) {
		return nil, errBadContentExpr(src, "trailing tokens after expression")
	}
	return expr, nil
}

type contentParser struct {
	stream *tokenStream
	nodes  map[string]*NodeType
}

func (p *contentParser) parseExpr() (*contentExpr, error) {
	var exprs []*contentExpr
	for {
		e, err := p.parseSeq()
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, e)
		if !p.stream.eat("|") {
			break
		}
	}
	if len(exprs) == 1 {
		return exprs[0], nil
	}
	return &contentExpr{kind: exprChoice, children: exprs}, nil
}

func (p *contentParser) parseSeq() (*contentExpr, error) {
	var exprs []*contentExpr
	for {
		tok, ok := p.stream.peek()
		if !ok || tok == ")" || tok == "|" {
			break
		}
		e, err := p.parseSubscript()
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, e)
	}
	if len(exprs) == 1 {
		return exprs[0], nil
	}
	return &contentExpr{kind: exprSeq, children: exprs}, nil
}

func (p *contentParser) parseSubscript() (*contentExpr, error) {
	expr, err := p.parseAtom()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.stream.eat("+"):
			expr = &contentExpr{kind: exprPlus, children: []*contentExpr{expr}}
		case p.stream.eat("*"):
			expr = &contentExpr{kind: exprStar, children: []*contentExpr{expr}}
		case p.stream.eat("?"):
			expr = &contentExpr{kind: exprOpt, children: []*contentExpr{expr}}
		case p.stream.eat("{"):
			expr, err = p.parseRange(expr)
			if err != nil {
				return nil, err
			}
		default:
			return expr, nil
		}
	}
}

func (p *contentParser) parseNum() (int, error) {
	tok, ok := p.stream.peek()
	if !ok {
		return 0, errBadContentExpr(p.stream.src, "expected number, got end of input")
	}
	n, err := strconv.Atoi(tok)
	if err != nil {
		return 0, errBadContentExpr(p.stream.src, "expected number, got '"+tok+"'")
	}
	p.stream.pos++
	return n, nil
}

func (p *contentParser) parseRange(expr *contentExpr) (*contentExpr, error) {
	min, err := p.parseNum()
	if err != nil {
		return nil, err
	}
	max := min
	if p.stream.eat(",") {
		if tok, ok := p.stream.peek(); ok && tok != "}" {
			max, err = p.parseNum()
			if err != nil {
				return nil, err
			}
		} else {
			max = -1
		}
	}
	if !p.stream.eat("}") {
		return nil, errBadContentExpr(p.stream.src, "unclosed braced range")
	}
	return &contentExpr{kind: exprRange, min: min, max: max, children: []*contentExpr{expr}}, nil
}

func (p *contentParser) resolveName(name string) ([]*NodeType, error) {
	if nt, ok := p.nodes[name]; ok {
		return []*NodeType{nt}, nil
	}
	var result []*NodeType
	for _, nt := range p.nodes {
		if nt.InGroup(name) {
			result = append(result, nt)
		}
	}
	if len(result) == 0 {
		return nil, errBadContentExpr(p.stream.src, "no node type or group named '"+name+"'")
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (p *contentParser) parseAtom() (*contentExpr, error) {
	if p.stream.eat("(") {
		expr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if !p.stream.eat(")") {
			return nil, errBadContentExpr(p.stream.src, "missing closing paren")
		}
		return expr, nil
	}
	tok, ok := p.stream.peek()
	if !ok {
		return nil, errBadContentExpr(p.stream.src, "unexpected end of input")
	}
	allAlnum := true
	for _, r := range tok {
		if !isAlnum(r) {
			allAlnum = false
			break
		}
	}
	if !allAlnum {
		return nil, errBadContentExpr(p.stream.src, "unexpected token '"+tok+"'")
	}
	types, err := p.resolveName(tok)
	if err != nil {
		return nil, err
	}
	p.stream.pos++
	if len(types) == 1 {
		return &contentExpr{kind: exprName, nodeType: types[0]}, nil
	}
	exprs := make([]*contentExpr, len(types))
	for i, t := range types {
		exprs[i] = &contentExpr{kind: exprName, nodeType: t}
	}
	return &contentExpr{kind: exprChoice, children: exprs}, nil
}

// --- NFA construction ---

type nfaTransition struct {
	term *NodeType // nil means epsilon
	to   int
}

type nfaBuilder struct {
	states [][]nfaTransition
}

func (b *nfaBuilder) newState() int {
	b.states = append(b.states, nil)
	return len(b.states) - 1
}

type edgeRef struct {
	from, idx int
}

func (b *nfaBuilder) addEdge(from, to int, term *NodeType) edgeRef {
	b.states[from] = append(b.states[from], nfaTransition{term: term, to: to})
	return edgeRef{from: from, idx: len(b.states[from]) - 1}
}

func (b *nfaBuilder) connect(refs []edgeRef, to int) {
	for _, r := range refs {
		b.states[r.from][r.idx].to = to
	}
}

func buildNFA(expr *contentExpr) [][]nfaTransition {
	b := &nfaBuilder{states: [][]nfaTransition{nil}}
	dangling := compileExpr(expr, 0, b)
	final := b.newState()
	b.connect(dangling, final)
	return b.states
}

func compileExpr(expr *contentExpr, from int, b *nfaBuilder) []edgeRef {
	if expr == nil {
		return []edgeRef{b.addEdge(from, 0, nil)}
	}
	switch expr.kind {
	case exprChoice:
		var out []edgeRef
		for _, c := range expr.children {
			out = append(out, compileExpr(c, from, b)...)
		}
		return out
	case exprSeq:
		cur := from
		var last []edgeRef
		for i, c := range expr.children {
			isLast := i == len(expr.children)-1
			next := cur
			if !isLast {
				next = b.newState()
			}
			edges := compileExpr(c, cur, b)
			if !isLast {
				b.connect(edges, next)
				cur = next
			} else {
				last = edges
			}
		}
		if last == nil {
			return []edgeRef{b.addEdge(cur, 0, nil)}
		}
		return last
	case exprStar:
		loop := b.newState()
		b.addEdge(from, loop, nil)
		inner := compileExpr(expr.children[0], loop, b)
		b.connect(inner, loop)
		return []edgeRef{b.addEdge(loop, 0, nil)}
	case exprPlus:
		loop := b.newState()
		first := compileExpr(expr.children[0], from, b)
		b.connect(first, loop)
		inner := compileExpr(expr.children[0], loop, b)
		b.connect(inner, loop)
		return []edgeRef{b.addEdge(loop, 0, nil)}
	case exprOpt:
		edges := []edgeRef{b.addEdge(from, 0, nil)}
		edges = append(edges, compileExpr(expr.children[0], from, b)...)
		return edges
	case exprRange:
		cur := from
		inner := expr.children[0]
		for i := 0; i < expr.min; i++ {
			next := b.newState()
			edges := compileExpr(inner, cur, b)
			b.connect(edges, next)
			cur = next
		}
		if expr.max == -1 {
			edges := compileExpr(inner, cur, b)
			b.connect(edges, cur)
		} else {
			for i := expr.min; i < expr.max; i++ {
				next := b.newState()
				b.addEdge(cur, next, nil)
				edges := compileExpr(inner, cur, b)
				b.connect(edges, next)
				cur = next
			}
		}
		return []edgeRef{b.addEdge(cur, 0, nil)}
	case exprName:
		return []edgeRef{b.addEdge(from, 0, expr.nodeType)}
	default:
		return nil
	}
}

// epsilonClosure mirrors content.rs's null_from: the set of "decision"
// states (zero, multiple, or non-epsilon outgoing edges) reachable from
// node via epsilon transitions, skipping pure single-epsilon
// forwarding states.
func epsilonClosure(states [][]nfaTransition, node int) []int {
	var result []int
	seen := make(map[int]bool)
	var scan func(n int)
	scan = func(n int) {
		edges := states[n]
		if len(edges) == 1 && edges[0].term == nil {
			scan(edges[0].to)
			return
		}
		if !seen[n] {
			seen[n] = true
			result = append(result, n)
		}
		for _, e := range edges {
			if e.term == nil && !seen[e.to] {
				scan(e.to)
			}
		}
	}
	scan(node)
	sort.Ints(result)
	return result
}

func stateKey(states []int) string {
	parts := make([]string, len(states))
	for i, s := range states {
		parts[i] = strconv.Itoa(s)
	}
	return strings.Join(parts, ",")
}

// buildDFA performs subset construction over the NFA, memoizing states
// by their (sorted, deduped) underlying NFA-state set (spec §4.1
// pipeline, content.rs's dfa/explore).
func buildDFA(states [][]nfaTransition) *ContentMatch {
	labeled := make(map[string]*ContentMatch)
	finalState := len(states) - 1

	var explore func(set []int) *ContentMatch
	explore = func(set []int) *ContentMatch {
		key := stateKey(set)
		if cm, ok := labeled[key]; ok {
			return cm
		}
		cm := &ContentMatch{}
		for _, n := range set {
			if n == finalState {
				cm.ValidEnd = true
			}
		}
		labeled[key] = cm

		type bucket struct {
			term *NodeType
			set  map[int]bool
			ord  []int // preserves first-seen order for deterministic edge order
		}
		var buckets []*bucket
		byName := make(map[string]*bucket)

		for _, n := range set {
			for _, e := range states[n] {
				if e.term == nil {
					continue
				}
				bk, ok := byName[e.term.Name]
				if !ok {
					bk = &bucket{term: e.term, set: make(map[int]bool)}
					byName[e.term.Name] = bk
					buckets = append(buckets, bk)
				}
				for _, reached := range epsilonClosure(states, e.to) {
					if !bk.set[reached] {
						bk.set[reached] = true
						bk.ord = append(bk.ord, reached)
					}
				}
			}
		}

		for _, bk := range buckets {
			targetSet := append([]int(nil), bk.ord...)
			sort.Ints(targetSet)
			next := explore(targetSet)
			cm.Next = append(cm.Next, MatchEdge{NodeType: bk.term, Next: next})
		}
		return cm
	}

	return explore(epsilonClosure(states, 0))
}

// compileContentExpr is the top-level entry point used by schema
// compilation: parse -> NFA -> DFA (spec §4.1 ContentMatch::parse).
func compileContentExpr(src string, nodes map[string]*NodeType) (*ContentMatch, error) {
	expr, err := parseContentExpr(src, nodes)
	if err != nil {
		return nil, err
	}
	if expr == nil {
		return emptyContentMatch(), nil
	}
	nfaStates := buildNFA(expr)
	return buildDFA(nfaStates), nil
}
