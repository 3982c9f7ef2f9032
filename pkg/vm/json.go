package vm

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// ToInterface converts a Variable to the plain Go value used for JSON
// encoding and for bridging to host-language runtimes (e.g. the graph
// engine's goja script nodes). Numbers round-trip as float64 when that
// loses no precision; otherwise the decimal's exact string form is used
// so callers can recover it losslessly, per the host interop contract.
func (v Variable) ToInterface() any {
	switch v.Kind {
	case KindNull:
		return nil
	case KindBool:
		return v.Bool
	case KindNumber:
		f, _ := v.Number.Float64()
		if decimal.NewFromFloat(f).Equal(v.Number) {
			return f
		}
		return v.Number.String()
	case KindString:
		return v.Str
	case KindArray:
		out := make([]any, len(v.Array))
		for i, el := range v.Array {
			out[i] = el.ToInterface()
		}
		return out
	case KindObject:
		out := make(map[string]any, len(v.Object))
		for k, el := range v.Object {
			out[k] = el.ToInterface()
		}
		return out
	case KindInterval:
		if v.Interval == nil {
			return nil
		}
		return map[string]any{
			"left":           v.Interval.Left.ToInterface(),
			"right":          v.Interval.Right.ToInterface(),
			"leftInclusive":  v.Interval.LeftInclusive,
			"rightInclusive": v.Interval.RightInclusive,
		}
	case KindDate:
		return v.Date.Format("2006-01-02T15:04:05.999999999Z07:00")
	default:
		return nil
	}
}

// MarshalJSON implements json.Marshaler via ToInterface, so a Variable
// can be embedded directly in host-facing JSON payloads.
func (v Variable) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.ToInterface())
}

// FromInterface builds a Variable from a plain Go value, the inverse of
// ToInterface. It accepts the shapes produced by encoding/json.Unmarshal
// into `any` (json.Number when UseNumber is set, float64 otherwise).
func FromInterface(x any) Variable {
	switch t := x.(type) {
	case nil:
		return Null()
	case bool:
		return NewBool(t)
	case float64:
		return NewNumber(decimal.NewFromFloat(t))
	case json.Number:
		d, err := decimal.NewFromString(t.String())
		if err != nil {
			return Null()
		}
		return NewNumber(d)
	case string:
		return NewString(t)
	case []any:
		arr := make([]Variable, len(t))
		for i, el := range t {
			arr[i] = FromInterface(el)
		}
		return NewArray(arr)
	case map[string]any:
		obj := make(map[string]Variable, len(t))
		for k, el := range t {
			obj[k] = FromInterface(el)
		}
		return NewObject(obj)
	default:
		return Null()
	}
}

// UnmarshalJSON implements json.Unmarshaler via FromInterface.
func (v *Variable) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var x any
	if err := dec.Decode(&x); err != nil {
		return fmt.Errorf("vm: decode variable: %w", err)
	}
	*v = FromInterface(x)
	return nil
}
