package vm

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVariableToInterfaceWholeNumberRoundTrips(t *testing.T) {
	v := NewNumber(decimal.NewFromInt(42))
	assert.Equal(t, float64(42), v.ToInterface())
}

func TestVariableToInterfaceLossyDecimalPreservesString(t *testing.T) {
	d, err := decimal.NewFromString("0.1234567890123456789")
	require.NoError(t, err)
	v := NewNumber(d)
	assert.Equal(t, d.String(), v.ToInterface())
}

func TestVariableToInterfaceObjectAndArray(t *testing.T) {
	v := NewObject(map[string]Variable{
		"name": NewString("ada"),
		"tags": NewArray([]Variable{NewString("x"), NewString("y")}),
	})
	out := v.ToInterface().(map[string]any)
	assert.Equal(t, "ada", out["name"])
	assert.Equal(t, []any{"x", "y"}, out["tags"])
}

func TestVariableMarshalJSON(t *testing.T) {
	v := NewObject(map[string]Variable{"n": NewNumber(decimal.NewFromInt(7))})
	data, err := json.Marshal(v)
	require.NoError(t, err)
	assert.JSONEq(t, `{"n":7}`, string(data))
}

func TestVariableUnmarshalJSON(t *testing.T) {
	var v Variable
	err := json.Unmarshal([]byte(`{"a":1,"b":[true,null,"x"]}`), &v)
	require.NoError(t, err)
	require.Equal(t, KindObject, v.Kind)
	assert.True(t, v.Object["a"].Number.Equal(decimal.NewFromInt(1)))
	require.Equal(t, KindArray, v.Object["b"].Kind)
	assert.True(t, v.Object["b"].Array[0].Bool)
	assert.True(t, v.Object["b"].Array[1].IsNull())
	assert.Equal(t, "x", v.Object["b"].Array[2].Str)
}

func TestFromInterfaceRoundTripsThroughToInterface(t *testing.T) {
	orig := NewObject(map[string]Variable{
		"count": NewNumber(decimal.NewFromInt(3)),
		"ok":    NewBool(true),
	})
	back := FromInterface(orig.ToInterface())
	assert.True(t, back.Object["count"].Number.Equal(decimal.NewFromInt(3)))
	assert.True(t, back.Object["ok"].Bool)
}
