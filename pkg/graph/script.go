package graph

import (
	"fmt"

	"github.com/dop251/goja"

	"github.com/Cassielxd/moduforge-rs-sub000/pkg/vm"
)

// scriptRuntime executes FunctionNode scripts on a single goja VM. It is
// not safe for concurrent use; each Graph owns its own instance, lazily
// created on first FunctionNode encountered.
type scriptRuntime struct {
	vm *goja.Runtime
}

func newScriptRuntime() *scriptRuntime {
	return &scriptRuntime{vm: goja.New()}
}

// run executes a FunctionNode's source against input and returns its
// output. v1 scripts are evaluated as a plain function body closed over
// `input`, returning via a trailing expression or explicit `return`. v2
// scripts must assign `module.exports` to the handler function, matching
// the engine's multi-file convention collapsed to a single source blob.
func (r *scriptRuntime) run(content FunctionContent, input vm.Variable) (vm.Variable, error) {
	if err := r.vm.Set("input", input.ToInterface()); err != nil {
		return vm.Variable{}, fmt.Errorf("graph: bind script input: %w", err)
	}

	var program string
	switch content.Version {
	case FunctionV2:
		program = fmt.Sprintf("(function(){ var module = {exports: null}; (function(module){ %s\n })(module); return (typeof module.exports === 'function') ? module.exports(input) : module.exports; })()", content.Source)
	default:
		program = fmt.Sprintf("(function(input){ %s\n })(input)", content.Source)
	}

	result, err := r.vm.RunString(program)
	if err != nil {
		return vm.Variable{}, fmt.Errorf("graph: function script: %w", err)
	}
	return vm.FromInterface(result.Export()), nil
}
