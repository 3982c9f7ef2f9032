package graph

import (
	"github.com/Cassielxd/moduforge-rs-sub000/pkg/exprlang"
	"github.com/Cassielxd/moduforge-rs-sub000/pkg/vm"
)

// evalExpr compiles and runs src against env, the common path every
// SwitchNode condition, ExpressionNode entry, and decision-table cell
// goes through.
func evalExpr(src string, env vm.Variable) (vm.Variable, error) {
	bytecode, err := exprlang.Compile(src)
	if err != nil {
		return vm.Variable{}, err
	}
	return vm.New().Run(bytecode, env)
}

// truthy mirrors the VM's own notion of boolean-like truth for values
// that aren't already Bool: null and zero are false, everything else
// (including non-empty strings, arrays, objects) is true.
func truthy(v vm.Variable) bool {
	switch v.Kind {
	case vm.KindBool:
		return v.Bool
	case vm.KindNull:
		return false
	case vm.KindNumber:
		return !v.Number.IsZero()
	case vm.KindString:
		return v.Str != ""
	default:
		return true
	}
}
