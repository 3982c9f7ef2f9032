package schema

import "github.com/Cassielxd/moduforge-rs-sub000/pkg/tree"

// CreateAndFill constructs a schema-valid NodeEnum for typeName: a node
// plus its recursively constructed children (spec §4.2 create_and_fill,
// GLOSSARY NodeEnum).
//
// If the supplied children do not already satisfy the node type's
// content expression, Fill synthesizes the minimum additional default
// node types needed and recursively constructs each of them. Attribute
// defaults are applied; a required attribute with no default and no
// supplied value fails construction.
func (s *Schema) CreateAndFill(typeName string, id tree.NodeID, attrs tree.Attrs, children []tree.NodeEnum, marks []tree.Mark) (tree.NodeEnum, error) {
	nt, ok := s.Nodes[typeName]
	if !ok {
		return tree.NodeEnum{}, errUnknownType(typeName)
	}

	resolvedAttrs, err := resolveNodeAttrs(nt, attrs)
	if err != nil {
		return tree.NodeEnum{}, err
	}

	for _, m := range marks {
		if !nt.AllowsMarkType(m.Type) {
			return tree.NodeEnum{}, errCompileFailed("mark type '"+m.Type+"' not allowed on node type '"+typeName+"'", typeName)
		}
	}

	if id == "" {
		id = tree.NewNodeID()
	}

	childTypeNames := make([]string, len(children))
	for i, c := range children {
		childTypeNames[i] = c.Node.Type
	}

	finalChildren := append([]tree.NodeEnum(nil), children...)

	if nt.ContentMatch != nil {
		endState := nt.ContentMatch.MatchFragment(childTypeNames, s.Nodes)
		if endState == nil || !endState.ValidEnd {
			fillTypes, ok := nt.ContentMatch.Fill(childTypeNames, true, s.Nodes)
			if !ok {
				return tree.NodeEnum{}, errCompileFailed("content expression cannot be satisfied", typeName)
			}
			// Fill's types precede the supplied children.
			filledChildren := make([]tree.NodeEnum, 0, len(fillTypes)+len(children))
			for _, fillType := range fillTypes {
				filled, err := s.CreateAndFill(fillType, "", nil, nil, nil)
				if err != nil {
					return tree.NodeEnum{}, err
				}
				filledChildren = append(filledChildren, filled)
			}
			finalChildren = append(filledChildren, finalChildren...)
		}
	}

	node := tree.Node{
		ID:      id,
		Type:    typeName,
		Attrs:   resolvedAttrs,
		Content: make([]tree.NodeID, len(finalChildren)),
		Marks:   append([]tree.Mark(nil), marks...),
	}
	for i, c := range finalChildren {
		node.Content[i] = c.Node.ID
	}

	return tree.NodeEnum{Node: node, Children: finalChildren}, nil
}

func resolveNodeAttrs(nt *NodeType, supplied tree.Attrs) (tree.Attrs, error) {
	out := make(tree.Attrs, len(nt.Attrs))
	for name, spec := range nt.Attrs {
		if v, ok := supplied[name]; ok {
			out[name] = v
			continue
		}
		if spec.HasDefault {
			out[name] = spec.Default
			continue
		}
		return nil, errCompileFailed("required attribute '"+name+"' has no value or default", nt.Name)
	}
	for k, v := range supplied {
		if _, declared := nt.Attrs[k]; !declared {
			out[k] = v
		}
	}
	return out, nil
}
