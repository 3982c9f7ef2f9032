package graph

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Cassielxd/moduforge-rs-sub000/pkg/vm"
)

const wireGraphJSON = `{
  "nodes": [
    {"id": "in", "name": "input", "type": "inputNode", "content": {}},
    {"id": "expr", "name": "double", "type": "expressionNode", "content": {
      "expressions": [{"id": "e1", "key": "doubled", "value": "value * 2"}]
    }},
    {"id": "out", "name": "output", "type": "outputNode", "content": {}}
  ],
  "edges": [
    {"id": "e-in-expr", "sourceId": "in", "targetId": "expr"},
    {"id": "e-expr-out", "sourceId": "expr", "targetId": "out"}
  ]
}`

func TestDecodeContentParsesWireFormat(t *testing.T) {
	content, err := DecodeContent([]byte(wireGraphJSON))
	require.NoError(t, err)
	require.Len(t, content.Nodes, 3)
	assert.Equal(t, KindExpression, content.Nodes[1].Kind)
	exprContent, ok := content.Nodes[1].Content.(ExpressionContent)
	require.True(t, ok)
	assert.Equal(t, "value * 2", exprContent.Expressions[0].Value)

	g, err := New(content, Config{})
	require.NoError(t, err)
	resp, err := g.Evaluate(vm.NewObject(map[string]vm.Variable{"value": vm.NewNumber(decimal.NewFromInt(5))}))
	require.NoError(t, err)
	assert.Equal(t, "10", resp.Result.Object["doubled"].Number.String())
}

func TestDecodeContentRejectsUnknownKind(t *testing.T) {
	_, err := DecodeContent([]byte(`{"nodes":[{"id":"x","type":"bogusNode","content":{}}],"edges":[]}`))
	require.Error(t, err)
}
