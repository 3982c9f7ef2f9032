package exprlang

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseArithmeticPrecedence(t *testing.T) {
	node, err := Parse("2 + 3 * 4")
	require.NoError(t, err)
	bin, ok := node.(*BinaryNode)
	require.True(t, ok)
	assert.Equal(t, BinAdd, bin.Operator)
	rightMul, ok := bin.Right.(*BinaryNode)
	require.True(t, ok)
	assert.Equal(t, BinMultiply, rightMul.Operator)
}

func TestParseExponentIsRightAssociative(t *testing.T) {
	node, err := Parse("2 ** 3 ** 2")
	require.NoError(t, err)
	bin := node.(*BinaryNode)
	assert.Equal(t, BinExponent, bin.Operator)
	_, leftIsNumber := bin.Left.(*NumberNode)
	assert.True(t, leftIsNumber)
	_, rightIsExponent := bin.Right.(*BinaryNode)
	assert.True(t, rightIsExponent)
}

func TestParseTernary(t *testing.T) {
	node, err := Parse("1 < 2 ? 'a' : 'b'")
	require.NoError(t, err)
	cond, ok := node.(*ConditionalNode)
	require.True(t, ok)
	assert.IsType(t, &BinaryNode{}, cond.Condition)
	assert.Equal(t, "a", cond.OnTrue.(*StringNode).Value)
	assert.Equal(t, "b", cond.OnFalse.(*StringNode).Value)
}

func TestParseNotIn(t *testing.T) {
	node, err := Parse("x not in [1, 2]")
	require.NoError(t, err)
	bin := node.(*BinaryNode)
	assert.Equal(t, BinNotIn, bin.Operator)
	assert.IsType(t, &IdentifierNode{}, bin.Left)
	assert.IsType(t, &ArrayNode{}, bin.Right)
}

func TestParseMemberChain(t *testing.T) {
	node, err := Parse("$.user.name")
	require.NoError(t, err)
	outer, ok := node.(*MemberNode)
	require.True(t, ok)
	assert.Equal(t, "name", outer.Property.(*StringNode).Value)
	inner := outer.Node.(*MemberNode)
	assert.Equal(t, "user", inner.Property.(*StringNode).Value)
	assert.IsType(t, &RootNode{}, inner.Node)
}

func TestParseSliceWithDefaults(t *testing.T) {
	node, err := Parse("arr[:3]")
	require.NoError(t, err)
	slice := node.(*SliceNode)
	assert.Nil(t, slice.From)
	assert.Equal(t, "3", slice.To.(*NumberNode).Value.String())
}

func TestParseIntervalBrackets(t *testing.T) {
	node, err := Parse("(1..5]")
	require.NoError(t, err)
	iv := node.(*IntervalNode)
	assert.False(t, iv.LeftInclusive)
	assert.True(t, iv.RightInclusive)
}

func TestParseClosureFunctionRecognized(t *testing.T) {
	node, err := Parse("all(arr, # > 1)")
	require.NoError(t, err)
	call := node.(*FunctionCallNode)
	assert.Equal(t, FnClosureAll, call.Kind)
	require.Len(t, call.Args, 2)
	assert.IsType(t, &IdentifierNode{}, call.Args[0])
	assert.IsType(t, &ClosureNode{}, call.Args[1])
}

func TestParsePlainFunctionCall(t *testing.T) {
	node, err := Parse("upper('go')")
	require.NoError(t, err)
	call := node.(*FunctionCallNode)
	assert.Equal(t, FnPlain, call.Kind)
	assert.Equal(t, "upper", call.Name)
}

func TestParseMethodCall(t *testing.T) {
	node, err := Parse("name.trim()")
	require.NoError(t, err)
	call := node.(*MethodCallNode)
	assert.Equal(t, "trim", call.Name)
	assert.IsType(t, &IdentifierNode{}, call.This)
}

func TestParseObjectLiteral(t *testing.T) {
	node, err := Parse(`{a: 1, "b": 2}`)
	require.NoError(t, err)
	obj := node.(*ObjectNode)
	require.Len(t, obj.Entries, 2)
	assert.Equal(t, "a", obj.Entries[0].Key.(*StringNode).Value)
	assert.Equal(t, "b", obj.Entries[1].Key.(*StringNode).Value)
}

func TestParseTemplateString(t *testing.T) {
	node, err := Parse("`hi ${1 + 1}`")
	require.NoError(t, err)
	tmpl := node.(*TemplateStringNode)
	require.Len(t, tmpl.Parts, 2)
	assert.IsType(t, &BinaryNode{}, tmpl.Parts[1])
}

func TestParseTrailingTokenErrors(t *testing.T) {
	_, err := Parse("1 + 2 3")
	require.Error(t, err)
	assert.Equal(t, ErrParseError, err.(*Error).Kind)
}
