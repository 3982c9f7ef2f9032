package engineconfig

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Cassielxd/moduforge-rs-sub000/pkg/schema"
)

const tableSchemaYAML = `
topNode: table
nodes:
  table:
    content: "tablerow+"
  tablerow:
    content: "tablecell+"
  tablecell:
    content: "text*"
    attrs:
      colspan:
        default: 1
  text: {}
marks:
  strong:
    excludes: strong
`

func TestParseSchemaSpecBuildsCompilableSpec(t *testing.T) {
	spec, err := ParseSchemaSpec([]byte(tableSchemaYAML))
	require.NoError(t, err)
	assert.Equal(t, "table", spec.TopNode)
	require.Contains(t, spec.Nodes, "tablecell")
	assert.Equal(t, "tablerow+", spec.Nodes["table"].Content)

	attr, ok := spec.Nodes["tablecell"].Attrs["colspan"]
	require.True(t, ok)
	assert.True(t, attr.HasDefault)
	assert.Equal(t, 1, attr.Default)

	require.Contains(t, spec.Marks, "strong")
	assert.Equal(t, "strong", spec.Marks["strong"].Excludes)

	compiled, err := schema.Compile(spec)
	require.NoError(t, err)
	assert.Equal(t, "table", compiled.TopNodeType)
}

func TestParseSchemaSpecRejectsInvalidYAML(t *testing.T) {
	_, err := ParseSchemaSpec([]byte("nodes: [this, is, a, list, not, a, map]"))
	require.Error(t, err)
}
