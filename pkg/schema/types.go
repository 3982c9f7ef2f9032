// Package schema compiles NodeType/MarkSpec declarations into a Schema
// whose content expressions have been lowered to deterministic content
// match automata, and constructs schema-valid node trees from them.
//
// Grounded on original_source/model/src/content.rs (ContentMatch, the
// NFA/DFA compiler, create_and_fill's fill-driven scaffolding) and on
// the teacher's pkg/storage/schema.go for the mutex-guarded registry
// shape a compiled Schema is held behind.
package schema

// AttributeSpec describes one declared attribute of a node or mark type.
type AttributeSpec struct {
	Default  any
	HasDefault bool
}

// Required reports whether values for this attribute must be supplied
// explicitly (no default).
func (a AttributeSpec) Required() bool { return !a.HasDefault }

// NodeSpec is the uncompiled declaration of a node type.
type NodeSpec struct {
	Content string
	Marks   string // "_" means all marks allowed; "" means none; else an expression
	Attrs   map[string]AttributeSpec
	Group   []string
}

// MarkSpec is the uncompiled declaration of a mark type.
type MarkSpec struct {
	Attrs    map[string]AttributeSpec
	Excludes string // expression of mark type/group names; "" defaults to self
	Group    []string
}

// GlobalAttribute rules are merged into matching NodeSpecs' attribute
// tables during compilation (spec §3 GlobalAttribute).
type GlobalAttribute struct {
	AppliesTo []string // node type names; a single "*" entry means all types
	Attrs     map[string]AttributeSpec
}

func (g GlobalAttribute) appliesToType(name string) bool {
	for _, t := range g.AppliesTo {
		if t == "*" || t == name {
			return true
		}
	}
	return false
}

// NodeType is a compiled node declaration: resolved attribute defaults
// and a compiled ContentMatch start state.
type NodeType struct {
	Name        string
	Attrs       map[string]AttributeSpec
	Groups      []string
	ContentExpr string
	ContentMatch *ContentMatch
	markSet     map[string]bool // nil means "all marks"; empty non-nil means "none"
}

// HasRequiredAttrs reports whether any of n's attributes lack a default.
func (n *NodeType) HasRequiredAttrs() bool {
	for _, spec := range n.Attrs {
		if spec.Required() {
			return true
		}
	}
	return false
}

// AllowsMarkType reports whether a mark of the given type may be applied
// to nodes of this type.
func (n *NodeType) AllowsMarkType(markType string) bool {
	if n.markSet == nil {
		return true
	}
	return n.markSet[markType]
}

// InGroup reports whether this node type declares membership in group.
func (n *NodeType) InGroup(group string) bool {
	for _, g := range n.Groups {
		if g == group {
			return true
		}
	}
	return false
}

// MarkType is a compiled mark declaration.
type MarkType struct {
	Name     string
	Attrs    map[string]AttributeSpec
	Excludes map[string]bool // mark type names this mark excludes, including itself by default
}

// HasRequiredAttrs reports whether any of m's attributes lack a default.
func (m *MarkType) HasRequiredAttrs() bool {
	for _, spec := range m.Attrs {
		if spec.Required() {
			return true
		}
	}
	return false
}

// SchemaSpec is the uncompiled input to Compile.
type SchemaSpec struct {
	Nodes      map[string]NodeSpec
	Marks      map[string]MarkSpec
	TopNode    string // defaults to "doc" if empty and present, else first key
	GlobalAttrs []GlobalAttribute
}

// Schema is a compiled set of node/mark declarations (spec §3 Schema).
// It is read-only after Compile and safe for concurrent use by many
// readers without synchronization.
type Schema struct {
	Nodes       map[string]*NodeType
	Marks       map[string]*MarkType
	TopNodeType string
	groups      map[string][]string // group name -> member node type names
}

// GroupMembers returns the group's member type names, or nil if the
// name is not a declared group.
func (s *Schema) GroupMembers(name string) []string {
	return s.groups[name]
}
