package vm

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func num(n int64) Instruction {
	return Instruction{Op: OpPushNumber, Number: decimal.NewFromInt(n)}
}

func TestRunSimpleArithmetic(t *testing.T) {
	bytecode := []Instruction{
		num(2),
		num(3),
		{Op: OpAdd},
		num(4),
		{Op: OpMultiply},
	}
	result, err := New().Run(bytecode, Null())
	require.NoError(t, err)
	assert.True(t, result.Number.Equal(decimal.NewFromInt(20)))
}

func TestRunDivisionByZeroReturnsError(t *testing.T) {
	bytecode := []Instruction{num(1), num(0), {Op: OpDivide}}
	_, err := New().Run(bytecode, Null())
	require.Error(t, err)
	assert.Equal(t, ErrOpcodeErr, err.(*Error).Kind)
}

func TestRunStackUnderflowReturnsErrorNotPanic(t *testing.T) {
	bytecode := []Instruction{{Op: OpAdd}}
	_, err := New().Run(bytecode, Null())
	require.Error(t, err)
	assert.Equal(t, ErrStackOutOfBounds, err.(*Error).Kind)
}

func TestFetchEnvLooksUpRootObject(t *testing.T) {
	env := NewObject(map[string]Variable{"name": NewString("ada")})
	bytecode := []Instruction{{Op: OpFetchEnv, Str: "name"}}
	result, err := New().Run(bytecode, env)
	require.NoError(t, err)
	assert.Equal(t, "ada", result.Str)
}

func TestFetchOutOfBoundsArrayIndexYieldsNullNotError(t *testing.T) {
	arr := NewArray([]Variable{NewNumber(decimal.NewFromInt(1))})
	bytecode := []Instruction{
		{Op: OpPushNumber, Number: decimal.NewFromInt(5)},
		{Op: OpFetch},
	}
	exec := &executor{bytecode: bytecode, env: Null(), stack: []Variable{arr}}
	result, err := exec.run()
	require.NoError(t, err)
	assert.True(t, result.IsNull())
}

func TestSliceWithInvertedBoundsReturnsError(t *testing.T) {
	arr := NewArray([]Variable{NewNumber(decimal.NewFromInt(1)), NewNumber(decimal.NewFromInt(2))})
	bytecode := []Instruction{
		num(0),
		num(1),
		{Op: OpSlice},
	}
	exec := &executor{bytecode: bytecode, env: Null(), stack: []Variable{arr}}
	_, err := exec.run()
	require.Error(t, err)
	assert.Equal(t, ErrOpcodeErr, err.(*Error).Kind)
}

func TestBeginPointerIncrementItWalksArrayElements(t *testing.T) {
	arr := NewArray([]Variable{
		NewNumber(decimal.NewFromInt(10)),
		NewNumber(decimal.NewFromInt(20)),
	})
	bytecode := []Instruction{
		{Op: OpBegin},
		{Op: OpPointer},
		{Op: OpIncrementIt},
		{Op: OpPointer},
		{Op: OpEnd},
	}
	exec := &executor{bytecode: bytecode, env: Null(), stack: []Variable{arr}}
	result, err := exec.run()
	require.NoError(t, err)
	assert.True(t, result.Number.Equal(decimal.NewFromInt(20)))
	require.Len(t, exec.stack, 1)
	assert.True(t, exec.stack[0].Number.Equal(decimal.NewFromInt(10)))
}

func TestJumpIfEndFiresOncePastLastElement(t *testing.T) {
	arr := NewArray([]Variable{NewNumber(decimal.NewFromInt(1))})
	bytecode := []Instruction{
		{Op: OpBegin},
		{Op: OpIncrementIt},
		{Op: OpJump, Jump: JumpIfEnd, Offset: 2},
		{Op: OpPushBool, Bool: false},
		{Op: OpJump, Jump: JumpForward, Offset: 1},
		{Op: OpPushBool, Bool: true},
		{Op: OpEnd},
	}
	exec := &executor{bytecode: bytecode, env: Null(), stack: []Variable{arr}}
	result, err := exec.run()
	require.NoError(t, err)
	assert.True(t, result.Bool)
}

func TestGetCountReflectsScopeCounter(t *testing.T) {
	arr := NewArray([]Variable{NewNumber(decimal.NewFromInt(1)), NewNumber(decimal.NewFromInt(2))})
	bytecode := []Instruction{
		{Op: OpBegin},
		{Op: OpIncrementCount},
		{Op: OpIncrementCount},
		{Op: OpGetCount},
		{Op: OpEnd},
	}
	exec := &executor{bytecode: bytecode, env: Null(), stack: []Variable{arr}}
	result, err := exec.run()
	require.NoError(t, err)
	assert.True(t, result.Number.Equal(decimal.NewFromInt(2)))
}

func TestCallFunctionUpperBuiltin(t *testing.T) {
	bytecode := []Instruction{
		{Op: OpPushString, Str: "go"},
		{Op: OpCallFunction, Fn: "upper", ArgCount: 1},
	}
	result, err := New().Run(bytecode, Null())
	require.NoError(t, err)
	assert.Equal(t, "GO", result.Str)
}

func TestCallFunctionUnknownNameErrors(t *testing.T) {
	bytecode := []Instruction{
		{Op: OpPushString, Str: "go"},
		{Op: OpCallFunction, Fn: "doesNotExist", ArgCount: 1},
	}
	_, err := New().Run(bytecode, Null())
	require.Error(t, err)
}

func TestIntervalInclusionBoundaries(t *testing.T) {
	bytecode := []Instruction{
		num(1),
		num(5),
		{Op: OpInterval, LeftInclusive: true, RightInclusive: false},
	}
	result, err := New().Run(bytecode, Null())
	require.NoError(t, err)
	require.Equal(t, KindInterval, result.Kind)

	includes, err := result.Interval.Includes(NewNumber(decimal.NewFromInt(1)))
	require.NoError(t, err)
	assert.True(t, includes)

	includes, err = result.Interval.Includes(NewNumber(decimal.NewFromInt(5)))
	require.NoError(t, err)
	assert.False(t, includes)
}

func TestVMNeverPanicsOnMalformedBytecode(t *testing.T) {
	bytecode := []Instruction{
		{Op: OpPop},
		{Op: OpCompare, Compare: CompareMore},
		{Op: OpCallMethod, Fn: "upper", ArgCount: 5},
	}
	assert.NotPanics(t, func() {
		_, _ = New().Run(bytecode, Null())
	})
}
