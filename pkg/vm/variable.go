// Package vm implements the stack-based bytecode interpreter for the
// expression engine. It is deliberately self-contained: aside from the
// shared Variable tagged union, it does not depend on any of the
// document/CRDT packages, so it can run as a standalone rule-evaluation
// service embedded by unrelated hosts.
package vm

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Kind discriminates the tagged union Variable carries. Closed set,
// mirrors the external JSON bridge contract (null/bool/number/string/
// array/object) plus two VM-internal dynamic cases (interval, date)
// used by the `in` opcode and the `d` builtin.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
	KindInterval
	KindDate
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	case KindInterval:
		return "interval"
	case KindDate:
		return "date"
	default:
		return "unknown"
	}
}

// Variable is the VM's value type. Only the field matching Kind is
// meaningful; the rest are zero. Array and Object hold their elements
// directly rather than behind a reference cell — the VM never mutates
// a Variable in place, it only builds new ones, so Go's ordinary slice/
// map reference semantics are enough.
type Variable struct {
	Kind     Kind
	Bool     bool
	Number   decimal.Decimal
	Str      string
	Array    []Variable
	Object   map[string]Variable
	Interval *Interval
	Date     time.Time
}

func Null() Variable                     { return Variable{Kind: KindNull} }
func NewBool(b bool) Variable             { return Variable{Kind: KindBool, Bool: b} }
func NewNumber(d decimal.Decimal) Variable { return Variable{Kind: KindNumber, Number: d} }
func NewString(s string) Variable          { return Variable{Kind: KindString, Str: s} }
func NewArray(items []Variable) Variable   { return Variable{Kind: KindArray, Array: items} }
func NewObject(m map[string]Variable) Variable {
	return Variable{Kind: KindObject, Object: m}
}
func NewInterval(iv *Interval) Variable { return Variable{Kind: KindInterval, Interval: iv} }
func NewDate(t time.Time) Variable      { return Variable{Kind: KindDate, Date: t} }

func (v Variable) IsNull() bool { return v.Kind == KindNull }

// Equal implements by-value equality: dates compare equal when they
// denote the same instant, intervals never compare equal (not even to
// themselves), and mismatched kinds are never equal.
func (v Variable) Equal(other Variable) bool {
	if v.Kind != other.Kind {
		return false
	}
	switch v.Kind {
	case KindNull:
		return true
	case KindBool:
		return v.Bool == other.Bool
	case KindNumber:
		return v.Number.Equal(other.Number)
	case KindString:
		return v.Str == other.Str
	case KindDate:
		return v.Date.Equal(other.Date)
	case KindArray:
		if len(v.Array) != len(other.Array) {
			return false
		}
		for i := range v.Array {
			if !v.Array[i].Equal(other.Array[i]) {
				return false
			}
		}
		return true
	case KindObject:
		if len(v.Object) != len(other.Object) {
			return false
		}
		for k, val := range v.Object {
			ov, ok := other.Object[k]
			if !ok || !val.Equal(ov) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Compare orders two Variables of the same typed kind (Number or
// Date); ok is false for any other pairing, matching the original's
// "unsupported type" rejection for Compare/In with non-comparable
// operands.
func (v Variable) Compare(other Variable) (cmp int, ok bool) {
	if v.Kind != other.Kind {
		return 0, false
	}
	switch v.Kind {
	case KindNumber:
		return v.Number.Cmp(other.Number), true
	case KindDate:
		if v.Date.Before(other.Date) {
			return -1, true
		}
		if v.Date.After(other.Date) {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

func (v Variable) String() string {
	switch v.Kind {
	case KindNull:
		return "null"
	case KindBool:
		return fmt.Sprintf("%t", v.Bool)
	case KindNumber:
		return v.Number.String()
	case KindString:
		return v.Str
	case KindDate:
		return v.Date.Format(time.RFC3339)
	case KindArray:
		return fmt.Sprintf("%v", v.Array)
	case KindObject:
		return fmt.Sprintf("%v", v.Object)
	case KindInterval:
		return "interval"
	default:
		return ""
	}
}
