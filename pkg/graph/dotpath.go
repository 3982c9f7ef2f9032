package graph

import "github.com/Cassielxd/moduforge-rs-sub000/pkg/vm"

// dotRemove returns a copy of v with the given top-level object key
// removed. It is a no-op on anything but an object, matching the
// original's scrubbing of the "$nodes" helper key (and, for decision
// tables, the bare "$" key) before a node's input/output is traced or
// handed further downstream.
func dotRemove(v vm.Variable, key string) vm.Variable {
	if v.Kind != vm.KindObject {
		return v
	}
	if _, ok := v.Object[key]; !ok {
		return v
	}
	out := make(map[string]vm.Variable, len(v.Object)-1)
	for k, val := range v.Object {
		if k == key {
			continue
		}
		out[k] = val
	}
	return vm.NewObject(out)
}
