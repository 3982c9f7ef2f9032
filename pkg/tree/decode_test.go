package tree

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const docJSON = `{
  "rootType": "doc",
  "shardCount": 4,
  "children": [
    {"id": "p1", "type": "paragraph", "attrs": {"align": "left"}, "children": [
      {"id": "t1", "type": "text", "attrs": {"value": "hi"}}
    ]}
  ]
}`

func TestDecodeDocumentBuildsTree(t *testing.T) {
	tr, err := DecodeDocument([]byte(docJSON))
	require.NoError(t, err)

	root, err := tr.GetNode(tr.RootID())
	require.NoError(t, err)
	assert.Equal(t, "doc", root.Type)
	require.Len(t, root.Content, 1)
	assert.Equal(t, NodeID("p1"), root.Content[0])

	para, err := tr.GetNode("p1")
	require.NoError(t, err)
	assert.Equal(t, "left", para.Attrs["align"])
	require.Len(t, para.Content, 1)
	assert.Equal(t, NodeID("t1"), para.Content[0])
}

func TestEncodeDocumentRoundTrips(t *testing.T) {
	tr, err := DecodeDocument([]byte(docJSON))
	require.NoError(t, err)

	raw, err := EncodeDocument(tr, tr.RootID())
	require.NoError(t, err)

	var decoded wireNode
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "doc", decoded.Type)
	require.Len(t, decoded.Children, 1)
	assert.Equal(t, "p1", decoded.Children[0].ID)
}
