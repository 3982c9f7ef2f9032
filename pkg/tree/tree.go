package tree

import (
	"hash/fnv"
)

// shard is one hash-partitioned slice of the tree's node/parent maps.
// A Tree mutation clones only the shards it touches; untouched shards
// are shared by pointer with the prior Tree value.
type shard struct {
	nodes   map[NodeID]Node
	parents map[NodeID]NodeID
}

func newShard() *shard {
	return &shard{
		nodes:   make(map[NodeID]Node),
		parents: make(map[NodeID]NodeID),
	}
}

// clone returns a new shard with copied maps, sharing unmodified Node
// values by (immutable) value-copy — cheap, since Node.Clone is only
// called when a node is actually changing.
func (s *shard) clone() *shard {
	out := &shard{
		nodes:   make(map[NodeID]Node, len(s.nodes)),
		parents: make(map[NodeID]NodeID, len(s.parents)),
	}
	for k, v := range s.nodes {
		out.nodes[k] = v
	}
	for k, v := range s.parents {
		out.parents[k] = v
	}
	return out
}

// Tree is the persistent, sharded node map described in spec §3/§4.3.
type Tree struct {
	rootID NodeID
	shards []*shard
	cache  *shardLRU
}

// New creates an empty tree rooted at a freshly synthesized root node of
// the given type. shardCount must be >= 2 (spec §3); it is clamped to 2
// if given a smaller or zero value.
func New(rootType string, shardCount int) Tree {
	if shardCount < 2 {
		shardCount = 2
	}
	shards := make([]*shard, shardCount)
	for i := range shards {
		shards[i] = newShard()
	}
	root := Node{ID: NewNodeID(), Type: rootType, Attrs: Attrs{}, Content: nil}
	t := Tree{rootID: root.ID, shards: shards, cache: newShardLRU(8192)}
	t = t.withShard(t.shardIndex(root.ID), func(s *shard) {
		s.nodes[root.ID] = root
	})
	return t
}

// RootID returns the id of the tree's root node.
func (t Tree) RootID() NodeID { return t.rootID }

// ShardCount returns the number of shards backing this tree.
func (t Tree) ShardCount() int { return len(t.shards) }

func (t Tree) shardIndex(id NodeID) int {
	n := len(t.shards)
	if cached, ok := t.cache.get(id); ok && cached < n {
		return cached
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	idx := int(h.Sum32()) % n
	if idx < 0 {
		idx += n
	}
	t.cache.put(id, idx)
	return idx
}

// withShard returns a new Tree whose shard at idx has been replaced by a
// clone, mutated in place by fn. All other shards are shared by pointer.
func (t Tree) withShard(idx int, fn func(s *shard)) Tree {
	newShards := make([]*shard, len(t.shards))
	copy(newShards, t.shards)
	cloned := t.shards[idx].clone()
	fn(cloned)
	newShards[idx] = cloned
	return Tree{rootID: t.rootID, shards: newShards, cache: t.cache}
}

func (t Tree) shardFor(id NodeID) *shard {
	return t.shards[t.shardIndex(id)]
}

// GetNode returns the node with the given id.
func (t Tree) GetNode(id NodeID) (Node, error) {
	n, ok := t.shardFor(id).nodes[id]
	if !ok {
		return Node{}, errNodeNotFound(id)
	}
	return n, nil
}

// GetParent returns the parent id of the given node. The root has no
// parent and returns ("", false, nil).
func (t Tree) GetParent(id NodeID) (NodeID, bool, error) {
	if _, ok := t.shardFor(id).nodes[id]; !ok {
		return "", false, errNodeNotFound(id)
	}
	if id == t.rootID {
		return "", false, nil
	}
	p, ok := t.shardFor(id).parents[id]
	if !ok {
		return "", false, errParentNotFound(id)
	}
	return p, true, nil
}

// Children returns the ordered child ids of parent.
func (t Tree) Children(parent NodeID) ([]NodeID, error) {
	n, err := t.GetNode(parent)
	if err != nil {
		return nil, err
	}
	return append([]NodeID(nil), n.Content...), nil
}

// ChildrenCount returns len(Children(parent)).
func (t Tree) ChildrenCount(parent NodeID) (int, error) {
	n, err := t.GetNode(parent)
	if err != nil {
		return 0, err
	}
	return len(n.Content), nil
}

// AllChildren enumerates every node reachable from root via DFS,
// optionally filtered by predicate. Used by invariant tests (spec §8:
// "tree.all_children(root) enumerates every node exactly once").
func (t Tree) AllChildren(root NodeID, filter func(Node) bool) ([]Node, error) {
	start, err := t.GetNode(root)
	if err != nil {
		return nil, err
	}
	var out []Node
	var visit func(n Node) error
	visit = func(n Node) error {
		if filter == nil || filter(n) {
			out = append(out, n)
		}
		for _, cid := range n.Content {
			c, err := t.GetNode(cid)
			if err != nil {
				return err
			}
			if err := visit(c); err != nil {
				return err
			}
		}
		return nil
	}
	if err := visit(start); err != nil {
		return nil, err
	}
	return out, nil
}

// Add inserts a forest of subtrees under parent, appending their root
// ids to parent.Content. Ids already present in parent.Content are
// skipped (idempotent append, spec §4.3/§8). at_index, when non-nil,
// inserts at that position instead of appending; it is clamped to
// [0, len(content)].
func (t Tree) Add(parent NodeID, nodes []NodeEnum, atIndex *int) (Tree, error) {
	parentNode, err := t.GetNode(parent)
	if err != nil {
		return Tree{}, errParentNotFound(parent)
	}

	existing := make(map[NodeID]bool, len(parentNode.Content))
	for _, c := range parentNode.Content {
		existing[c] = true
	}

	var newRootIDs []NodeID
	flat := make([]Node, 0)
	for _, ne := range nodes {
		if existing[ne.Node.ID] {
			continue // idempotent append
		}
		newRootIDs = append(newRootIDs, ne.Node.ID)
		flat = append(flat, ne.Flatten()...)
	}

	if len(newRootIDs) == 0 {
		return t, nil
	}

	newContent := append([]NodeID(nil), parentNode.Content...)
	if atIndex == nil {
		newContent = append(newContent, newRootIDs...)
	} else {
		idx := *atIndex
		if idx < 0 {
			idx = 0
		}
		if idx > len(newContent) {
			idx = len(newContent)
		}
		merged := make([]NodeID, 0, len(newContent)+len(newRootIDs))
		merged = append(merged, newContent[:idx]...)
		merged = append(merged, newRootIDs...)
		merged = append(merged, newContent[idx:]...)
		newContent = merged
	}

	updatedParent := parentNode.Clone()
	updatedParent.Content = newContent

	result := t.withShard(t.shardIndex(parent), func(s *shard) {
		s.nodes[parent] = updatedParent
	})

	// Insert every node in the flattened subtrees and wire parent_map.
	parentOf := make(map[NodeID]NodeID, len(flat))
	for _, ne := range nodes {
		if !existing[ne.Node.ID] {
			assignParents(ne, parent, parentOf)
		}
	}
	for _, n := range flat {
		p := parentOf[n.ID]
		result = result.withShard(result.shardIndex(n.ID), func(s *shard) {
			s.nodes[n.ID] = n
			s.parents[n.ID] = p
		})
	}

	return result, nil
}

func assignParents(e NodeEnum, parent NodeID, out map[NodeID]NodeID) {
	out[e.Node.ID] = parent
	for _, c := range e.Children {
		assignParents(c, e.Node.ID, out)
	}
}

// AddAtIndex is a convenience wrapper around Add for a single node.
func (t Tree) AddAtIndex(parent NodeID, index int, node NodeEnum) (Tree, error) {
	return t.Add(parent, []NodeEnum{node}, &index)
}

// RemoveNodeByID recursively removes the subtree rooted at id, cleaning
// parent_map and the parent's content list. Removing the root is
// forbidden (spec §4.3).
func (t Tree) RemoveNodeByID(id NodeID) (Tree, error) {
	if id == t.rootID {
		return Tree{}, errCannotRemoveRoot()
	}
	node, err := t.GetNode(id)
	if err != nil {
		return Tree{}, err
	}
	parentID, hasParent, err := t.GetParent(id)
	if err != nil {
		return Tree{}, err
	}
	if !hasParent {
		return Tree{}, errCannotRemoveRoot()
	}

	// Collect the whole subtree so every descendant is detached.
	subtree, err := t.AllChildren(id, nil)
	if err != nil {
		return Tree{}, err
	}

	result := t
	for _, n := range subtree {
		idx := result.shardIndex(n.ID)
		result = result.withShard(idx, func(s *shard) {
			delete(s.nodes, n.ID)
			delete(s.parents, n.ID)
		})
		result.cache.forget(n.ID)
	}

	parentNode, err := result.GetNode(parentID)
	if err != nil {
		return Tree{}, err
	}
	newContent := make([]NodeID, 0, len(parentNode.Content))
	found := false
	for _, c := range parentNode.Content {
		if c == id {
			found = true
			continue
		}
		newContent = append(newContent, c)
	}
	if !found {
		return Tree{}, errInvalidParenting(id, parentID)
	}
	updatedParent := parentNode.Clone()
	updatedParent.Content = newContent
	result = result.withShard(result.shardIndex(parentID), func(s *shard) {
		s.nodes[parentID] = updatedParent
	})
	_ = node
	return result, nil
}

// RemoveNodeByIndex removes the child of parent at the given content
// index.
func (t Tree) RemoveNodeByIndex(parent NodeID, index int) (Tree, error) {
	parentNode, err := t.GetNode(parent)
	if err != nil {
		return Tree{}, err
	}
	if index < 0 || index >= len(parentNode.Content) {
		return Tree{}, errInvalidParenting("", parent)
	}
	return t.RemoveNodeByID(parentNode.Content[index])
}

// MoveNode relocates id from src to dst, inserting at position (clamped
// to dst's length) or appending if position is nil.
func (t Tree) MoveNode(src, dst, id NodeID, position *int) (Tree, error) {
	srcNode, err := t.GetNode(src)
	if err != nil {
		return Tree{}, err
	}
	if _, err := t.GetNode(dst); err != nil {
		return Tree{}, err
	}
	foundIdx := -1
	for i, c := range srcNode.Content {
		if c == id {
			foundIdx = i
			break
		}
	}
	if foundIdx < 0 {
		return Tree{}, errInvalidParenting(id, src)
	}

	result := t
	newSrcContent := append(append([]NodeID(nil), srcNode.Content[:foundIdx]...), srcNode.Content[foundIdx+1:]...)
	updatedSrc := srcNode.Clone()
	updatedSrc.Content = newSrcContent
	result = result.withShard(result.shardIndex(src), func(s *shard) {
		s.nodes[src] = updatedSrc
	})

	dstNode, _ := result.GetNode(dst)
	newDstContent := append([]NodeID(nil), dstNode.Content...)
	idx := len(newDstContent)
	if position != nil {
		idx = *position
		if idx < 0 {
			idx = 0
		}
		if idx > len(newDstContent) {
			idx = len(newDstContent)
		}
	}
	merged := make([]NodeID, 0, len(newDstContent)+1)
	merged = append(merged, newDstContent[:idx]...)
	merged = append(merged, id)
	merged = append(merged, newDstContent[idx:]...)
	updatedDst := dstNode.Clone()
	updatedDst.Content = merged
	result = result.withShard(result.shardIndex(dst), func(s *shard) {
		s.nodes[dst] = updatedDst
	})

	result = result.withShard(result.shardIndex(id), func(s *shard) {
		s.parents[id] = dst
	})
	result.cache.put(id, result.shardIndex(dst))

	return result, nil
}

// UpdateAttr replaces the listed attribute keys on node id, returning the
// new tree and the captured old values (for step-inverse construction,
// spec §4.4).
func (t Tree) UpdateAttr(id NodeID, changes Attrs) (Tree, Attrs, error) {
	n, err := t.GetNode(id)
	if err != nil {
		return Tree{}, nil, err
	}
	old := make(Attrs, len(changes))
	for k := range changes {
		if v, ok := n.Attrs[k]; ok {
			old[k] = v
		} else {
			old[k] = nil
		}
	}
	updated := n.Clone()
	if updated.Attrs == nil {
		updated.Attrs = Attrs{}
	}
	for k, v := range changes {
		updated.Attrs[k] = v
	}
	result := t.withShard(t.shardIndex(id), func(s *shard) {
		s.nodes[id] = updated
	})
	return result, old, nil
}

// AddMark unions marks into node id, dropping any existing mark whose
// type is excluded by an incoming mark's excludes set (spec §4.4). It
// returns the new tree and the list of marks actually added (for the
// inverse RemoveMark step — only freshly-added marks are reverted).
func (t Tree) AddMark(id NodeID, marks []Mark, excludes func(markType string) []string) (Tree, []Mark, error) {
	n, err := t.GetNode(id)
	if err != nil {
		return Tree{}, nil, err
	}
	updated := n.Clone()
	var added []Mark
	for _, m := range marks {
		if updated.hasEqualMark(m) {
			continue
		}
		if excludes != nil {
			excluded := excludes(m.Type)
			filtered := updated.Marks[:0:0]
			for _, existing := range updated.Marks {
				drop := false
				for _, ex := range excluded {
					if existing.Type == ex {
						drop = true
						break
					}
				}
				if !drop {
					filtered = append(filtered, existing)
				}
			}
			updated.Marks = filtered
		}
		updated.Marks = append(updated.Marks, m)
		added = append(added, m)
	}
	result := t.withShard(t.shardIndex(id), func(s *shard) {
		s.nodes[id] = updated
	})
	return result, added, nil
}

func (n Node) hasEqualMark(m Mark) bool {
	for _, existing := range n.Marks {
		if existing.Equal(m) {
			return true
		}
	}
	return false
}

// RemoveMark removes marks of the given types from node id, returning
// the new tree and the removed marks (with their attrs intact, so they
// can be restored by the inverse AddMark step).
func (t Tree) RemoveMark(id NodeID, types []string) (Tree, []Mark, error) {
	n, err := t.GetNode(id)
	if err != nil {
		return Tree{}, nil, err
	}
	set := make(map[string]bool, len(types))
	for _, ty := range types {
		set[ty] = true
	}
	updated := n.Clone()
	var removed []Mark
	kept := updated.Marks[:0:0]
	for _, m := range updated.Marks {
		if set[m.Type] {
			removed = append(removed, m)
			continue
		}
		kept = append(kept, m)
	}
	updated.Marks = kept
	result := t.withShard(t.shardIndex(id), func(s *shard) {
		s.nodes[id] = updated
	})
	return result, removed, nil
}

// RemoveMarkByName removes a mark matching (type, attrs) exactly.
func (t Tree) RemoveMarkByName(id NodeID, m Mark) (Tree, bool, error) {
	n, err := t.GetNode(id)
	if err != nil {
		return Tree{}, false, err
	}
	updated := n.Clone()
	kept := updated.Marks[:0:0]
	removed := false
	for _, existing := range updated.Marks {
		if !removed && existing.Equal(m) {
			removed = true
			continue
		}
		kept = append(kept, existing)
	}
	updated.Marks = kept
	result := t.withShard(t.shardIndex(id), func(s *shard) {
		s.nodes[id] = updated
	})
	return result, removed, nil
}

// ReplaceContent replaces parent's children list wholesale, returning
// the new tree and the captured old content (for the inverse step).
// It does not itself detach the removed children's subtrees from the
// node map — callers that want that must also call RemoveNodeByID for
// ids no longer referenced, matching how pkg/transform's ReplaceContent
// step composes this with subtree bookkeeping.
func (t Tree) ReplaceContent(parent NodeID, newContent []NodeID) (Tree, []NodeID, error) {
	n, err := t.GetNode(parent)
	if err != nil {
		return Tree{}, nil, err
	}
	old := append([]NodeID(nil), n.Content...)
	updated := n.Clone()
	updated.Content = append([]NodeID(nil), newContent...)
	result := t.withShard(t.shardIndex(parent), func(s *shard) {
		s.nodes[parent] = updated
	})
	for _, cid := range newContent {
		result = result.withShard(result.shardIndex(cid), func(s *shard) {
			s.parents[cid] = parent
		})
	}
	return result, old, nil
}

// Validate checks the invariants spec §4.3 requires after every
// operation: parent_map/content consistency, acyclicity, root presence.
func (t Tree) Validate() error {
	if _, err := t.GetNode(t.rootID); err != nil {
		return err
	}
	visited := make(map[NodeID]bool)
	var walk func(id NodeID) error
	walk = func(id NodeID) error {
		if visited[id] {
			return errCycleDetected(id)
		}
		visited[id] = true
		n, err := t.GetNode(id)
		if err != nil {
			return err
		}
		for _, cid := range n.Content {
			p, hasParent, err := t.GetParent(cid)
			if err != nil {
				return err
			}
			if !hasParent || p != id {
				return errInvalidParenting(cid, id)
			}
			if err := walk(cid); err != nil {
				return err
			}
		}
		return nil
	}
	return walk(t.rootID)
}
