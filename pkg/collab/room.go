package collab

import (
	"context"
	"sync"
	"time"
)

// Client is a connected collaborator's outbound sink. Rooms never touch
// transport directly; Send is whatever the caller's websocket/session
// layer wired up.
type Client struct {
	ID   string
	Send func(YrsOperation)
}

// Awareness is the ephemeral, non-persisted per-client state broadcast
// alongside document ops (cursor position, selection, presence) — spec
// §4.6's awareness registry. It is replaced wholesale on every update
// rather than merged, matching the "ephemeral" framing: a stale entry
// is meant to be overwritten, not reconciled.
type Awareness struct {
	ClientID string
	State    map[string]any
	Updated  int64
}

// Room is one collaboratively-edited document: an OrderedSequence per
// tracked array path, a broadcast group of connected clients, and an
// awareness registry, moving through Active -> Draining -> Offline
// (spec §4.6).
type Room struct {
	mu         sync.Mutex
	ID         string
	Status     RoomStatus
	Paths      *PathIndex
	sequences  map[string]*OrderedSequence
	clients    map[string]*Client
	awareness  map[string]Awareness
	inFlight   int
	drainDone  chan struct{}
}

// NewRoom creates a fresh, Active room.
func NewRoom(id string) *Room {
	return &Room{
		ID:        id,
		Status:    RoomActive,
		Paths:     NewPathIndex(),
		sequences: make(map[string]*OrderedSequence),
		clients:   make(map[string]*Client),
		awareness: make(map[string]Awareness),
	}
}

// sequenceFor lazily creates the OrderedSequence backing a content-list
// path, seeded empty — real content arrives via ApplyRemoteOp/local
// commits, not a bulk preload, since a room is created before any
// document state has been synced to it.
func (r *Room) sequenceFor(path string) *OrderedSequence {
	seq, ok := r.sequences[path]
	if !ok {
		seq = NewOrderedSequence(nil)
		r.sequences[path] = seq
	}
	return seq
}

// Join registers a client in the room's broadcast group.
func (r *Room) Join(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[c.ID] = c
}

// Leave removes a client from the broadcast group and its awareness
// entry.
func (r *Room) Leave(clientID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.clients, clientID)
	delete(r.awareness, clientID)
}

// UpdateAwareness replaces a client's ephemeral state wholesale.
func (r *Room) UpdateAwareness(clientID string, state map[string]any, timestamp int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.awareness[clientID] = Awareness{ClientID: clientID, State: state, Updated: timestamp}
}

// AwarenessSnapshot returns every currently-tracked client's awareness
// state.
func (r *Room) AwarenessSnapshot() []Awareness {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Awareness, 0, len(r.awareness))
	for _, a := range r.awareness {
		out = append(out, a)
	}
	return out
}

// Broadcast fans an op out to every client except the originator. Send
// is called synchronously for each target, outside the room lock; a
// Send that panics is recovered and skipped, but a Send that blocks
// also blocks Broadcast.
func (r *Room) Broadcast(op YrsOperation, excludeClientID string) {
	r.mu.Lock()
	targets := make([]*Client, 0, len(r.clients))
	for id, c := range r.clients {
		if id == excludeClientID {
			continue
		}
		targets = append(targets, c)
	}
	r.mu.Unlock()

	for _, c := range targets {
		func(c *Client) {
			defer func() { recover() }()
			c.Send(op)
		}(c)
	}
}

// ApplyRemoteOp integrates one inbound ArrayInsert/ArrayDelete op into
// the sequence tracked for its path, for rooms that want
// OrderedSequence-level convergence in addition to (or instead of)
// routing ops through the Steps pipeline.
func (r *Room) ApplyRemoteOp(op YrsOperation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	path := joinPath(op.TargetPath)
	seq := r.sequenceFor(path)
	switch op.Kind {
	case OpArrayInsert:
		data, ok := op.Data.(map[string]any)
		if !ok {
			return
		}
		parent := RootSeqID
		if len(seq.Values()) > 0 {
			// Insertion anchoring beyond "at the front" is carried by the
			// caller resolving a parent OpID out-of-band (e.g. from the
			// preceding sibling's id); a bare index-only op anchors at the
			// front and relies on OrderedSequence's deterministic ordering
			// to place it correctly once any sibling ops arrive.
			if p, ok := data["parent"].(OpID); ok {
				parent = p
			}
		}
		seq.Insert(op.ID, parent, data["node"])
	case OpArrayDelete:
		data, ok := op.Data.(map[string]any)
		if !ok {
			return
		}
		if id, ok := data["seq_id"].(OpID); ok {
			seq.Delete(id)
		}
	}
}

// BeginTransaction marks one Transaction as in flight, so Drain can wait
// for it to finish before finalizing.
func (r *Room) BeginTransaction() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inFlight++
}

// EndTransaction marks one in-flight Transaction as finished.
func (r *Room) EndTransaction() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inFlight--
	if r.inFlight == 0 && r.drainDone != nil {
		select {
		case r.drainDone <- struct{}{}:
		default:
		}
	}
}

// Drain moves the room Active -> Draining -> Offline: it broadcasts
// drain intent immediately, then waits (up to deadline) for any
// in-flight transactions to finish before marking the room Offline and
// releasing its broadcast group. If the deadline elapses first, the
// room still goes Offline — a draining room that never quiesces must
// not block its caller forever (spec §4.6).
func (r *Room) Drain(ctx context.Context, deadline time.Duration) {
	r.mu.Lock()
	if r.Status != RoomActive {
		r.mu.Unlock()
		return
	}
	r.Status = RoomDraining
	done := make(chan struct{}, 1)
	r.drainDone = done
	stillInFlight := r.inFlight > 0
	r.mu.Unlock()

	r.Broadcast(YrsOperation{Kind: OpCustom, Data: map[string]any{"op": "room_draining", "room": r.ID}}, "")

	if stillInFlight {
		timer := time.NewTimer(deadline)
		defer timer.Stop()
		select {
		case <-done:
		case <-timer.C:
		case <-ctx.Done():
		}
	}

	r.finalizeOffline()
}

// ForceOffline immediately ejects every client and marks the room
// Offline, bypassing the drain wait entirely — for an operator-initiated
// shutdown that cannot wait on misbehaving clients (spec §4.6).
func (r *Room) ForceOffline() {
	r.finalizeOffline()
}

func (r *Room) finalizeOffline() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Status = RoomOffline
	r.clients = make(map[string]*Client)
	r.awareness = make(map[string]Awareness)
}
