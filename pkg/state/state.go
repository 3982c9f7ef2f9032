// Package state implements the immutable State snapshot, the Plugin
// contract, and the Editor dispatch facade that drives transaction
// application with append-transaction fixed-point iteration (spec §3
// State/Plugin, §6 Embedding API).
//
// Grounded on the teacher's pkg/nornicdb/db.go: a Config-driven facade
// constructed with Open, exposing lifecycle and Stats methods,
// generalized here from a graph-database facade to the
// transaction-dispatch facade spec §6 describes.
package state

import (
	"sync"
	"sync/atomic"

	"github.com/Cassielxd/moduforge-rs-sub000/pkg/schema"
	"github.com/Cassielxd/moduforge-rs-sub000/pkg/transform"
	"github.com/Cassielxd/moduforge-rs-sub000/pkg/tree"
)

// State is an immutable snapshot of the document: its Tree, the Schema
// it was validated against, every plugin's opaque field, and a
// monotonic version counter (spec §3 State).
type State struct {
	Doc          tree.Tree
	Schema       *schema.Schema
	PluginFields map[string]any
	Version      uint64
	StoredMarks  []tree.Mark
}

// clone returns a shallow copy of s with a fresh PluginFields map (so
// callers can set one plugin's field without aliasing the map other
// States still reference).
func (s State) clone() State {
	out := s
	out.PluginFields = make(map[string]any, len(s.PluginFields))
	for k, v := range s.PluginFields {
		out.PluginFields[k] = v
	}
	if s.StoredMarks != nil {
		out.StoredMarks = append([]tree.Mark(nil), s.StoredMarks...)
	}
	return out
}

// PluginSpec is the contract a Plugin implements (spec §3 Plugin).
// All four hooks are optional; a nil hook is treated as a no-op.
type PluginSpec struct {
	// Init computes the plugin's initial PluginState from the starting
	// State.
	Init func(s State) any

	// Apply computes this plugin's new PluginState given the committed
	// transactions, its own prior state, and the before/after State.
	Apply func(txs []*transform.Transaction, oldPluginState any, oldState, newState State) any

	// AppendTransaction may return a follow-up Transaction to run
	// immediately after the given ones commit. Returning nil means "no
	// follow-up".
	AppendTransaction func(txs []*transform.Transaction, oldState, newState State) *transform.Transaction

	// FilterTransaction returning false silently drops tx before it is
	// applied at all.
	FilterTransaction func(tx *transform.Transaction, s State) bool
}

// Plugin pairs a stable name with its spec and an ordering priority for
// append-transaction hook dispatch (spec §3 Plugin; lower priority runs
// first, ties broken by registration order).
type Plugin struct {
	Name     string
	Spec     PluginSpec
	Priority int
}

// Config configures an Editor. Grounded on the teacher's env-driven
// nested Config struct pattern (see pkg/engineconfig), scaled down to
// the knobs this package itself needs.
type Config struct {
	MaxQueueSize        int
	AppendTransactionCap int // default 64, per spec §6 Plugin ABI
}

func (c Config) withDefaults() Config {
	if c.MaxQueueSize <= 0 {
		c.MaxQueueSize = 1024
	}
	if c.AppendTransactionCap <= 0 {
		c.AppendTransactionCap = 64
	}
	return c
}

// CommitInfo is returned by Editor.Dispatch on success.
type CommitInfo struct {
	Before, After State
	Tx            *transform.Transaction
	InverseSteps  []transform.Step
}

// EventKind names the event stream subscribers can filter on (spec §6
// Embedding API subscribe).
type EventKind string

const (
	EventTransactionCommitted EventKind = "TransactionCommitted"
	EventRemoteOpsApplied     EventKind = "RemoteOpsApplied"
	EventConflictResolved     EventKind = "ConflictResolved"
	EventUndoPerformed        EventKind = "UndoPerformed"
)

// Event is the payload delivered to subscribers.
type Event struct {
	Kind EventKind
	Data any
}

// TransactionCommittedData is the Data payload for EventTransactionCommitted.
type TransactionCommittedData struct {
	Before, After State
	Tx            *transform.Transaction
	InverseSteps  []transform.Step
}

// Editor is the embedding facade: it owns the current State behind a
// single-writer mutex, serializes transaction dispatch through a
// bounded FIFO queue, and fans committed events out to subscribers
// (spec §6 Embedding API, §5 Concurrency & Resource Model).
type Editor struct {
	cfg     Config
	plugins []Plugin

	mu    sync.Mutex // serializes publication of a new state (single writer)
	state atomic.Pointer[State]

	queue chan dispatchRequest

	subMu sync.RWMutex
	subs  map[int]chan Event
	nextSub int

	closeOnce sync.Once
	done      chan struct{}
}

type dispatchRequest struct {
	tx     *transform.Transaction
	result chan dispatchResult
}

type dispatchResult struct {
	info CommitInfo
	err  error
}

// New constructs an Editor over initialDoc (an already schema-validated
// Tree) and starts its single-writer dispatch loop (spec §6
// Editor::new).
func New(sc *schema.Schema, initialDoc tree.Tree, plugins []Plugin, cfg Config) *Editor {
	cfg = cfg.withDefaults()
	e := &Editor{
		cfg:     cfg,
		plugins: orderedByPriority(plugins),
		queue:   make(chan dispatchRequest, cfg.MaxQueueSize),
		subs:    make(map[int]chan Event),
		done:    make(chan struct{}),
	}

	initial := State{Doc: initialDoc, Schema: sc, PluginFields: make(map[string]any), Version: 0}
	for _, p := range e.plugins {
		if p.Spec.Init != nil {
			initial.PluginFields[p.Name] = p.Spec.Init(initial)
		}
	}
	e.state.Store(&initial)

	go e.run()
	return e
}

func orderedByPriority(plugins []Plugin) []Plugin {
	out := append([]Plugin(nil), plugins...)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].Priority < out[j-1].Priority; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

// State returns the current immutable snapshot. Safe for concurrent
// readers; never blocks on the writer (spec §6 editor.state()).
func (e *Editor) State() State {
	return *e.state.Load()
}

// Subscribe registers a listener for the given event kinds (empty means
// all kinds) and returns a channel of matching events plus an
// unsubscribe function.
func (e *Editor) Subscribe(kinds ...EventKind) (<-chan Event, func()) {
	ch := make(chan Event, 64)
	e.subMu.Lock()
	id := e.nextSub
	e.nextSub++
	e.subs[id] = ch
	e.subMu.Unlock()

	filter := make(map[EventKind]bool, len(kinds))
	for _, k := range kinds {
		filter[k] = true
	}

	out := ch
	if len(filter) > 0 {
		filtered := make(chan Event, 64)
		go func() {
			for ev := range ch {
				if filter[ev.Kind] {
					filtered <- ev
				}
			}
			close(filtered)
		}()
		out = filtered
	}

	unsub := func() {
		e.subMu.Lock()
		delete(e.subs, id)
		e.subMu.Unlock()
		close(ch)
	}
	return out, unsub
}

func (e *Editor) publish(ev Event) {
	e.subMu.RLock()
	defer e.subMu.RUnlock()
	for _, ch := range e.subs {
		select {
		case ch <- ev:
		default: // slow subscriber: drop rather than block the writer
		}
	}
}

// Dispatch pushes tx onto the queue and awaits its commit (spec §6
// editor.dispatch). QueueFull is returned immediately if the queue is
// at capacity, per the backpressure policy in §5.
func (e *Editor) Dispatch(tx *transform.Transaction) (CommitInfo, error) {
	result := make(chan dispatchResult, 1)
	select {
	case e.queue <- dispatchRequest{tx: tx, result: result}:
	default:
		return CommitInfo{}, &transform.Error{Kind: "QueueFull", Reason: "transaction queue is at capacity"}
	}
	r := <-result
	return r.info, r.err
}

// Close stops the dispatch loop. Pending requests already enqueued are
// still processed; no new Dispatch calls should be made afterward.
func (e *Editor) Close() {
	e.closeOnce.Do(func() {
		close(e.done)
	})
}

func (e *Editor) run() {
	for {
		select {
		case req := <-e.queue:
			info, err := e.commit(req.tx)
			req.result <- dispatchResult{info: info, err: err}
		case <-e.done:
			for {
				select {
				case req := <-e.queue:
					info, err := e.commit(req.tx)
					req.result <- dispatchResult{info: info, err: err}
				default:
					return
				}
			}
		}
	}
}

// commit is the single-writer critical section: apply tx, run the
// append-transaction fixed-point loop, publish the new state atomically,
// then fan out the committed event (spec §5: "publication of the new
// state is a single atomic pointer swap under a writer-side mutex").
func (e *Editor) commit(tx *transform.Transaction) (CommitInfo, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	before := e.State()

	for _, p := range e.plugins {
		if p.Spec.FilterTransaction != nil && !p.Spec.FilterTransaction(tx, before) {
			// Silently dropped per spec §7 propagation policy.
			return CommitInfo{Before: before, After: before, Tx: tx}, nil
		}
	}

	after, inverseSteps, err := applyOne(tx, before)
	if err != nil {
		return CommitInfo{}, err
	}

	committed := []*transform.Transaction{tx}
	iterations := 0
	for {
		follow := e.runAppendTransactionHooks(committed, before, after)
		if follow == nil {
			break
		}
		iterations++
		if iterations > e.cfg.AppendTransactionCap {
			break // bounded per spec §6 Plugin ABI / §9 "bound the follow-up chain"
		}
		nextAfter, _, err := applyOne(follow, after)
		if err != nil {
			break // a failed follow-up ends the loop and is not escalated (spec §7)
		}
		before, after = after, nextAfter
		committed = []*transform.Transaction{follow}
	}

	for _, p := range e.plugins {
		if p.Spec.Apply == nil {
			continue
		}
		old := after.PluginFields[p.Name]
		after.PluginFields[p.Name] = p.Spec.Apply(committed, old, before, after)
	}

	e.state.Store(&after)

	info := CommitInfo{Before: before, After: after, Tx: tx, InverseSteps: inverseSteps}
	e.publish(Event{Kind: EventTransactionCommitted, Data: TransactionCommittedData{
		Before: before, After: after, Tx: tx, InverseSteps: inverseSteps,
	}})
	return info, nil
}

func (e *Editor) runAppendTransactionHooks(committed []*transform.Transaction, before, after State) *transform.Transaction {
	for _, p := range e.plugins {
		if p.Spec.AppendTransaction == nil {
			continue
		}
		if follow := p.Spec.AppendTransaction(committed, before, after); follow != nil {
			return follow
		}
	}
	return nil
}

// applyOne applies tx to base.Doc and returns the resulting State.
func applyOne(tx *transform.Transaction, base State) (State, []transform.Step, error) {
	newDoc, inverses, err := tx.Apply(base.Doc)
	if err != nil {
		return State{}, nil, err
	}
	next := base.clone()
	next.Doc = newDoc
	next.Version = base.Version + 1
	return next, inverses, nil
}
