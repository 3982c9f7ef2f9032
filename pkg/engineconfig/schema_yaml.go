package engineconfig

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Cassielxd/moduforge-rs-sub000/pkg/schema"
)

// yamlAttr mirrors schema.AttributeSpec for file parsing. Default is a
// pointer so an absent key leaves it nil, which yields an AttributeSpec
// without a default. yaml.v3 also decodes an explicit null ("default: ~")
// to a nil pointer, so a null default is treated the same as an absent one.
type yamlAttr struct {
	Default *any `yaml:"default,omitempty"`
}

type yamlNode struct {
	Content string              `yaml:"content"`
	Marks   string              `yaml:"marks"`
	Attrs   map[string]yamlAttr `yaml:"attrs"`
	Group   []string            `yaml:"group"`
}

type yamlMark struct {
	Attrs    map[string]yamlAttr `yaml:"attrs"`
	Excludes string              `yaml:"excludes"`
	Group    []string            `yaml:"group"`
}

type yamlGlobalAttr struct {
	AppliesTo []string            `yaml:"appliesTo"`
	Attrs     map[string]yamlAttr `yaml:"attrs"`
}

type yamlSchema struct {
	TopNode     string              `yaml:"topNode"`
	Nodes       map[string]yamlNode `yaml:"nodes"`
	Marks       map[string]yamlMark `yaml:"marks"`
	GlobalAttrs []yamlGlobalAttr    `yaml:"globalAttrs"`
}

// LoadSchemaSpec reads a schema document declared as YAML and produces
// the uncompiled schema.SchemaSpec, leaving schema.Compile to lower it
// into content-match automata and validate it.
func LoadSchemaSpec(path string) (schema.SchemaSpec, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return schema.SchemaSpec{}, fmt.Errorf("engineconfig: read schema file: %w", err)
	}
	return ParseSchemaSpec(raw)
}

// ParseSchemaSpec parses YAML bytes into a schema.SchemaSpec.
func ParseSchemaSpec(raw []byte) (schema.SchemaSpec, error) {
	var doc yamlSchema
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return schema.SchemaSpec{}, fmt.Errorf("engineconfig: parse schema yaml: %w", err)
	}

	spec := schema.SchemaSpec{
		TopNode: doc.TopNode,
		Nodes:   make(map[string]schema.NodeSpec, len(doc.Nodes)),
		Marks:   make(map[string]schema.MarkSpec, len(doc.Marks)),
	}
	for name, n := range doc.Nodes {
		spec.Nodes[name] = schema.NodeSpec{
			Content: n.Content,
			Marks:   n.Marks,
			Attrs:   convertAttrs(n.Attrs),
			Group:   n.Group,
		}
	}
	for name, m := range doc.Marks {
		spec.Marks[name] = schema.MarkSpec{
			Attrs:    convertAttrs(m.Attrs),
			Excludes: m.Excludes,
			Group:    m.Group,
		}
	}
	for _, g := range doc.GlobalAttrs {
		spec.GlobalAttrs = append(spec.GlobalAttrs, schema.GlobalAttribute{
			AppliesTo: g.AppliesTo,
			Attrs:     convertAttrs(g.Attrs),
		})
	}
	return spec, nil
}

func convertAttrs(in map[string]yamlAttr) map[string]schema.AttributeSpec {
	if in == nil {
		return nil
	}
	out := make(map[string]schema.AttributeSpec, len(in))
	for name, a := range in {
		if a.Default != nil {
			out[name] = schema.AttributeSpec{Default: *a.Default, HasDefault: true}
		} else {
			out[name] = schema.AttributeSpec{}
		}
	}
	return out
}
