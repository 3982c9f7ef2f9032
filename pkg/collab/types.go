// Package collab implements the CRDT sync adapter: translating Steps to
// and from YrsOperations, and the per-room session model that carries
// them between collaborating clients (spec §4.6).
//
// The op-ordering core is grounded on other_examples' gocrdt RGA
// (Lamport-timestamp total order via ID{Timestamp,NodeID}, tombstone
// deletes, orphan buffering for causal delivery) generalized from a
// single character sequence to ArrayInsert/ArrayDelete operations on
// any node's content list. The room/session lifecycle (Active,
// Draining, Offline; finalize-by-deadline) follows spec §4.6/§9
// directly.
package collab

import "github.com/Cassielxd/moduforge-rs-sub000/pkg/tree"

// OpKind is the primitive CRDT mutation kind (spec §3 YrsOperation).
type OpKind string

const (
	OpMapSet      OpKind = "MapSet"
	OpMapDelete   OpKind = "MapDelete"
	OpArrayInsert OpKind = "ArrayInsert"
	OpArrayDelete OpKind = "ArrayDelete"
	OpTextInsert  OpKind = "TextInsert"
	OpTextDelete  OpKind = "TextDelete"
	OpCustom      OpKind = "Custom"
)

// YrsOperation is a primitive mutation on the collaborative document
// (spec §3 YrsOperation, GLOSSARY "CRDT op").
type YrsOperation struct {
	ID         OpID
	Kind       OpKind
	TargetPath []string
	UserID     string
	Timestamp  int64 // ms since epoch
	Data       any
}

// OpID totally orders concurrent ops: higher Timestamp wins, NodeID (the
// originating session/client id) breaks exact ties. Grounded on gocrdt's
// ID{Timestamp,NodeID}.Greater.
type OpID struct {
	Timestamp int64
	NodeID    string
}

// Greater reports whether a sorts after b under the deterministic total
// order used to reconcile concurrent inserts at the same index (spec §8
// scenario 3, §9 open question #1: ties broken by NodeID, i.e. a
// stand-in for "user id", not wall-clock arrival order).
func (a OpID) Greater(b OpID) bool {
	if a.Timestamp != b.Timestamp {
		return a.Timestamp > b.Timestamp
	}
	return a.NodeID > b.NodeID
}

// RoomStatus is a room's lifecycle stage (spec §4.6).
type RoomStatus string

const (
	RoomActive   RoomStatus = "Active"
	RoomDraining RoomStatus = "Draining"
	RoomOffline  RoomStatus = "Offline"
)

// PathIndex persists the mapping from CRDT path segments to NodeId so
// inbound ops can be routed to Steps without scanning the tree (spec §9
// design note).
type PathIndex struct {
	pathToNode map[string]tree.NodeID
	nodeToPath map[tree.NodeID]string
}

func NewPathIndex() *PathIndex {
	return &PathIndex{pathToNode: make(map[string]tree.NodeID), nodeToPath: make(map[tree.NodeID]string)}
}

func (p *PathIndex) Bind(path string, id tree.NodeID) {
	p.pathToNode[path] = id
	p.nodeToPath[id] = path
}

func (p *PathIndex) Unbind(id tree.NodeID) {
	if path, ok := p.nodeToPath[id]; ok {
		delete(p.pathToNode, path)
		delete(p.nodeToPath, id)
	}
}

func (p *PathIndex) NodeFor(path string) (tree.NodeID, bool) {
	id, ok := p.pathToNode[path]
	return id, ok
}

func (p *PathIndex) PathFor(id tree.NodeID) (string, bool) {
	path, ok := p.nodeToPath[id]
	return path, ok
}
