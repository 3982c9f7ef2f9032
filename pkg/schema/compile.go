package schema

import "sort"

// Compile builds a Schema from a SchemaSpec: resolves attribute
// defaults (merging applicable GlobalAttribute rules), compiles every
// node type's content expression into a ContentMatch, builds the group
// index, compiles every mark's excludes expression, and determines the
// top node type (spec §4.2).
func Compile(spec SchemaSpec) (*Schema, error) {
	if len(spec.Nodes) == 0 {
		return nil, errCompileFailed("schema must declare at least one node type", "")
	}

	nodes := make(map[string]*NodeType, len(spec.Nodes))
	names := sortedKeys(spec.Nodes)
	for _, name := range names {
		nspec := spec.Nodes[name]
		attrs := mergeAttrs(nspec.Attrs, spec.GlobalAttrs, name)
		nodes[name] = &NodeType{
			Name:   name,
			Attrs:  attrs,
			Groups: append([]string(nil), nspec.Group...),
		}
	}

	groups := make(map[string][]string)
	for _, name := range names {
		for _, g := range nodes[name].Groups {
			groups[g] = append(groups[g], name)
		}
	}
	for g := range groups {
		sort.Strings(groups[g])
	}

	// Content expressions are compiled after every NodeType exists (by
	// pointer, in the map) so cross-references between types resolve,
	// but before any is itself filled in — ContentMatch only needs a
	// NodeType's Name/Groups/Attrs, not its own ContentMatch.
	for _, name := range names {
		nspec := spec.Nodes[name]
		cm, err := compileContentExpr(nspec.Content, nodes)
		if err != nil {
			return nil, err
		}
		nodes[name].ContentExpr = nspec.Content
		nodes[name].ContentMatch = cm
	}

	marks := make(map[string]*MarkType, len(spec.Marks))
	markNames := sortedKeys(spec.Marks)
	for _, name := range markNames {
		mspec := spec.Marks[name]
		marks[name] = &MarkType{
			Name:  name,
			Attrs: mergeAttrs(mspec.Attrs, nil, name),
		}
	}
	markGroups := make(map[string][]string)
	for _, name := range markNames {
		for _, g := range spec.Marks[name].Group {
			markGroups[g] = append(markGroups[g], name)
		}
	}
	for _, name := range markNames {
		mspec := spec.Marks[name]
		excludes, err := resolveMarkExcludes(name, mspec.Excludes, marks, markGroups)
		if err != nil {
			return nil, err
		}
		marks[name].Excludes = excludes
	}

	for _, name := range names {
		nspec := spec.Nodes[name]
		markSet, err := resolveAllowedMarks(nspec.Marks, marks, markGroups)
		if err != nil {
			return nil, err
		}
		nodes[name].markSet = markSet
	}

	top := spec.TopNode
	if top == "" {
		if _, ok := nodes["doc"]; ok {
			top = "doc"
		} else {
			top = names[0]
		}
	}
	if _, ok := nodes[top]; !ok {
		return nil, errUnknownType(top)
	}

	return &Schema{Nodes: nodes, Marks: marks, TopNodeType: top, groups: groups}, nil
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func mergeAttrs(own map[string]AttributeSpec, globals []GlobalAttribute, typeName string) map[string]AttributeSpec {
	out := make(map[string]AttributeSpec, len(own))
	for k, v := range own {
		out[k] = v
	}
	for _, g := range globals {
		if !g.appliesToType(typeName) {
			continue
		}
		for k, v := range g.Attrs {
			if _, exists := out[k]; !exists {
				out[k] = v
			}
		}
	}
	return out
}

// resolveAllowedMarks compiles a NodeSpec's marks expression ("_" = all,
// "" = none, else a choice of mark/group names) into a concrete set.
func resolveAllowedMarks(expr string, marks map[string]*MarkType, groups map[string][]string) (map[string]bool, error) {
	if expr == "_" {
		return nil, nil // nil means "all marks allowed"
	}
	if expr == "" {
		return map[string]bool{}, nil
	}
	names, err := splitNameChoice(expr)
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool)
	for _, name := range names {
		if _, ok := marks[name]; ok {
			out[name] = true
			continue
		}
		if members, ok := groups[name]; ok {
			for _, m := range members {
				out[m] = true
			}
			continue
		}
		return nil, errUnknownMark(name)
	}
	return out, nil
}

// resolveMarkExcludes compiles a MarkSpec's excludes expression. An
// empty expression defaults to the mark excluding only itself.
func resolveMarkExcludes(selfName, expr string, marks map[string]*MarkType, groups map[string][]string) (map[string]bool, error) {
	if expr == "" {
		return map[string]bool{selfName: true}, nil
	}
	names, err := splitNameChoice(expr)
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool)
	for _, name := range names {
		if _, ok := marks[name]; ok {
			out[name] = true
			continue
		}
		if members, ok := groups[name]; ok {
			for _, m := range members {
				out[m] = true
			}
			continue
		}
		return nil, errUnknownMark(name)
	}
	return out, nil
}

func splitNameChoice(expr string) ([]string, error) {
	var out []string
	for _, part := range splitOnPipe(expr) {
		trimmed := trimSpace(part)
		if trimmed == "" {
			return nil, errBadContentExpr(expr, "empty name in choice expression")
		}
		out = append(out, trimmed)
	}
	return out, nil
}

func splitOnPipe(s string) []string {
	var out []string
	start := 0
	for i, r := range s {
		if r == '|' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	out = append(out, s[start:])
	return out
}

func trimSpace(s string) string {
	start, end := 0, len(s)
	for start < end && (s[start] == ' ' || s[start] == '\t') {
		start++
	}
	for end > start && (s[end-1] == ' ' || s[end-1] == '\t') {
		end--
	}
	return s[start:end]
}
