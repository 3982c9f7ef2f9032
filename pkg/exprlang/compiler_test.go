package exprlang

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Cassielxd/moduforge-rs-sub000/pkg/vm"
)

func evalWithEnv(t *testing.T, src string, env vm.Variable) vm.Variable {
	t.Helper()
	bytecode, err := Compile(src)
	require.NoError(t, err)
	result, err := vm.New().Run(bytecode, env)
	require.NoError(t, err)
	return result
}

func eval(t *testing.T, src string) vm.Variable {
	t.Helper()
	return evalWithEnv(t, src, vm.Null())
}

func TestCompileArithmetic(t *testing.T) {
	result := eval(t, "2 + 3 * 4")
	assert.Equal(t, "14", result.Number.String())
}

func TestCompileExponentRightAssociative(t *testing.T) {
	result := eval(t, "2 ** 3 ** 2")
	assert.Equal(t, "512", result.Number.String())
}

func TestCompileUnaryNegate(t *testing.T) {
	result := eval(t, "-5 + 3")
	assert.Equal(t, "-2", result.Number.String())
}

func TestCompileComparisonAndLogic(t *testing.T) {
	result := eval(t, "1 < 2 && 3 > 2")
	assert.True(t, result.Bool)
}

func TestCompileTernary(t *testing.T) {
	result := eval(t, "1 < 2 ? 'a' : 'b'")
	assert.Equal(t, "a", result.Str)
}

func TestCompileNullishCoalescing(t *testing.T) {
	result := eval(t, "null ?? 'default'")
	assert.Equal(t, "default", result.Str)
}

func TestCompileOrShortCircuit(t *testing.T) {
	result := eval(t, "true || (1 / 0 > 0)")
	assert.True(t, result.Bool)
}

func TestCompileAndShortCircuit(t *testing.T) {
	result := eval(t, "false && (1 / 0 > 0)")
	assert.False(t, result.Bool)
}

func TestCompileStringConcat(t *testing.T) {
	result := eval(t, "'foo' + 'bar'")
	assert.Equal(t, "foobar", result.Str)
}

func TestCompileArrayLiteralAndIndex(t *testing.T) {
	result := eval(t, "[10, 20, 30][1]")
	assert.Equal(t, "20", result.Number.String())
}

func TestCompileSliceInclusiveBounds(t *testing.T) {
	result := eval(t, "[1, 2, 3, 4, 5][1:3]")
	require.Equal(t, vm.KindArray, result.Kind)
	require.Len(t, result.Array, 3)
	assert.Equal(t, "2", result.Array[0].Number.String())
	assert.Equal(t, "4", result.Array[2].Number.String())
}

func TestCompileSliceDefaultBounds(t *testing.T) {
	result := eval(t, "[1, 2, 3][:1]")
	require.Len(t, result.Array, 2)
	assert.Equal(t, "1", result.Array[0].Number.String())
	assert.Equal(t, "2", result.Array[1].Number.String())
}

func TestCompileIntervalMembership(t *testing.T) {
	result := eval(t, "3 in 1..5")
	assert.True(t, result.Bool)

	result = eval(t, "5 in (1..5)")
	assert.False(t, result.Bool)
}

func TestCompileFunctionCall(t *testing.T) {
	result := eval(t, "upper('go')")
	assert.Equal(t, "GO", result.Str)
}

func TestCompileMethodCall(t *testing.T) {
	result := eval(t, "'  go  '.trim()")
	assert.Equal(t, "go", result.Str)
}

func TestCompileUnknownFunctionErrorsAtCompileTime(t *testing.T) {
	_, err := Compile("doesNotExist(1)")
	require.Error(t, err)
	assert.Equal(t, ErrUnknownFunction, err.(*Error).Kind)
}

func TestCompileWrongArgCountErrorsAtCompileTime(t *testing.T) {
	_, err := Compile("upper('a', 'b')")
	require.Error(t, err)
	assert.Equal(t, ErrInvalidFunctionCall, err.(*Error).Kind)
}

func TestCompileClosureAll(t *testing.T) {
	result := eval(t, "all([1, 2, 3], # > 0)")
	assert.True(t, result.Bool)

	result = eval(t, "all([1, -2, 3], # > 0)")
	assert.False(t, result.Bool)
}

func TestCompileClosureNone(t *testing.T) {
	result := eval(t, "none([1, 2, 3], # > 5)")
	assert.True(t, result.Bool)
}

func TestCompileClosureSome(t *testing.T) {
	result := eval(t, "some([1, 2, 3], # > 2)")
	assert.True(t, result.Bool)
}

func TestCompileClosureOne(t *testing.T) {
	result := eval(t, "one([1, 2, 3], # == 2)")
	assert.True(t, result.Bool)

	result = eval(t, "one([1, 2, 2], # == 2)")
	assert.False(t, result.Bool)
}

func TestCompileClosureFilter(t *testing.T) {
	result := eval(t, "filter([1, 2, 3, 4], # > 2)")
	require.Len(t, result.Array, 2)
	assert.Equal(t, "3", result.Array[0].Number.String())
	assert.Equal(t, "4", result.Array[1].Number.String())
}

func TestCompileClosureMap(t *testing.T) {
	result := eval(t, "map([1, 2, 3], # * 2)")
	require.Len(t, result.Array, 3)
	assert.Equal(t, "2", result.Array[0].Number.String())
	assert.Equal(t, "6", result.Array[2].Number.String())
}

func TestCompileClosureCount(t *testing.T) {
	result := eval(t, "count([1, 2, 3, 4], # > 2)")
	assert.Equal(t, "2", result.Number.String())
}

func TestCompileMemberFastPath(t *testing.T) {
	env := vm.NewObject(map[string]vm.Variable{
		"user": vm.NewObject(map[string]vm.Variable{
			"name": vm.NewString("ada"),
		}),
	})
	result := evalWithEnv(t, "$.user.name", env)
	assert.Equal(t, "ada", result.Str)
}

func TestCompileBareIdentifierFetchesEnv(t *testing.T) {
	env := vm.NewObject(map[string]vm.Variable{"age": vm.NewNumber(decimal.NewFromInt(30))})
	result := evalWithEnv(t, "age", env)
	assert.Equal(t, "30", result.Number.String())
}

func TestCompileTemplateString(t *testing.T) {
	env := vm.NewObject(map[string]vm.Variable{"name": vm.NewString("world")})
	result := evalWithEnv(t, "`hello ${name}!`", env)
	assert.Equal(t, "hello world!", result.Str)
}

func TestCompileObjectLiteral(t *testing.T) {
	result := eval(t, `{a: 1, b: 2}`)
	require.Equal(t, vm.KindObject, result.Kind)
	assert.Equal(t, "1", result.Object["a"].Number.String())
	assert.Equal(t, "2", result.Object["b"].Number.String())
}
