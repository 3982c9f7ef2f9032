package exprlang

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/Cassielxd/moduforge-rs-sub000/pkg/vm"
)

// Compile lexes, parses, and compiles src into bytecode the vm package
// can run directly.
func Compile(src string) ([]vm.Instruction, error) {
	node, err := Parse(src)
	if err != nil {
		return nil, err
	}
	c := &compiler{}
	if err := c.compileNode(node); err != nil {
		return nil, err
	}
	return c.bytecode, nil
}

// compiler lowers an AST into a flat Instruction slice. It mirrors the
// original's emit/emit_loop/emit_cond shape: positions are recorded as
// they're emitted, and forward jump placeholders are backfilled once
// the jump target is known.
type compiler struct {
	bytecode []vm.Instruction
}

func (c *compiler) emit(instr vm.Instruction) int {
	c.bytecode = append(c.bytecode, instr)
	return len(c.bytecode)
}

// replace overwrites the instruction at the 1-based position returned
// by emit.
func (c *compiler) replace(at int, instr vm.Instruction) {
	c.bytecode[at-1] = instr
}

// emitLoop emits Begin-style loop scaffolding around body: a
// placeholder JumpIfEnd, the body, IncrementIt, and a backward jump to
// the loop start, backfilling the JumpIfEnd offset once the loop's
// exit position is known.
func (c *compiler) emitLoop(body func() error) error {
	begin := len(c.bytecode)
	end := c.emit(vm.Instruction{Op: vm.OpJump, Jump: vm.JumpIfEnd})

	if err := body(); err != nil {
		return err
	}

	c.emit(vm.Instruction{Op: vm.OpIncrementIt})
	e := c.emit(vm.Instruction{Op: vm.OpJump, Jump: vm.JumpBackward, Offset: len(c.bytecode) + 1 - begin})
	c.replace(end, vm.Instruction{Op: vm.OpJump, Jump: vm.JumpIfEnd, Offset: e - end})
	return nil
}

// emitCond emits an if(peek-top-bool){body} scaffold that consumes the
// condition value via Pop on both branches, used by one/filter/count
// closures to gate per-element side effects (IncrementCount, Pointer).
func (c *compiler) emitCond(body func()) {
	noop := c.emit(vm.Instruction{Op: vm.OpJump, Jump: vm.JumpIfFalse})
	c.emit(vm.Instruction{Op: vm.OpPop})

	body()

	jmp := c.emit(vm.Instruction{Op: vm.OpJump, Jump: vm.JumpForward})
	c.replace(noop, vm.Instruction{Op: vm.OpJump, Jump: vm.JumpIfFalse, Offset: jmp - noop})
	e := c.emit(vm.Instruction{Op: vm.OpPop})
	c.replace(jmp, vm.Instruction{Op: vm.OpJump, Jump: vm.JumpForward, Offset: e - jmp})
}

// compileMemberFast tries to fold a chain of Root/Identifier/Member
// accesses (all string or small non-negative integer keys) into a
// single FetchFast path, returning ok=false when any link in the
// chain isn't a static access.
func (c *compiler) compileMemberFast(node Node) ([]vm.FetchFastStep, bool) {
	switch n := node.(type) {
	case *RootNode:
		return []vm.FetchFastStep{{Kind: vm.FetchFastRoot}}, true
	case *IdentifierNode:
		return []vm.FetchFastStep{
			{Kind: vm.FetchFastRoot},
			{Kind: vm.FetchFastKey, Key: n.Name},
		}, true
	case *MemberNode:
		path, ok := c.compileMemberFast(n.Node)
		if !ok {
			return nil, false
		}
		switch prop := n.Property.(type) {
		case *StringNode:
			return append(path, vm.FetchFastStep{Kind: vm.FetchFastKey, Key: prop.Value}), true
		case *NumberNode:
			if idx, ok := nonNegativeInt(prop.Value); ok {
				return append(path, vm.FetchFastStep{Kind: vm.FetchFastIndex, Index: idx}), true
			}
			return nil, false
		default:
			return nil, false
		}
	default:
		return nil, false
	}
}

func nonNegativeInt(d decimal.Decimal) (int, bool) {
	if d.Sign() < 0 || !d.Equal(d.Truncate(0)) {
		return 0, false
	}
	return int(d.IntPart()), true
}

func (c *compiler) compileNode(node Node) error {
	switch n := node.(type) {
	case *NullNode:
		c.emit(vm.Instruction{Op: vm.OpPushNull})
		return nil
	case *BoolNode:
		c.emit(vm.Instruction{Op: vm.OpPushBool, Bool: n.Value})
		return nil
	case *NumberNode:
		c.emit(vm.Instruction{Op: vm.OpPushNumber, Number: n.Value})
		return nil
	case *StringNode:
		c.emit(vm.Instruction{Op: vm.OpPushString, Str: n.Value})
		return nil
	case *PointerNode:
		c.emit(vm.Instruction{Op: vm.OpPointer})
		return nil
	case *RootNode:
		c.emit(vm.Instruction{Op: vm.OpFetchRootEnv})
		return nil
	case *IdentifierNode:
		c.emit(vm.Instruction{Op: vm.OpFetchEnv, Str: n.Name})
		return nil
	case *ParenthesizedNode:
		return c.compileNode(n.Inner)
	case *ClosureNode:
		return c.compileNode(n.Body)

	case *ArrayNode:
		for _, el := range n.Elements {
			if err := c.compileNode(el); err != nil {
				return err
			}
		}
		c.emit(vm.Instruction{Op: vm.OpPushNumber, Number: decimal.NewFromInt(int64(len(n.Elements)))})
		c.emit(vm.Instruction{Op: vm.OpArray})
		return nil

	case *ObjectNode:
		for _, entry := range n.Entries {
			if err := c.compileNode(entry.Key); err != nil {
				return err
			}
			c.emit(vm.Instruction{Op: vm.OpCallFunction, Fn: "string", ArgCount: 1})
			if err := c.compileNode(entry.Value); err != nil {
				return err
			}
		}
		c.emit(vm.Instruction{Op: vm.OpPushNumber, Number: decimal.NewFromInt(int64(len(n.Entries)))})
		c.emit(vm.Instruction{Op: vm.OpObject})
		return nil

	case *MemberNode:
		if path, ok := c.compileMemberFast(n); ok {
			c.emit(vm.Instruction{Op: vm.OpFetchFast, Path: path})
			return nil
		}
		if err := c.compileNode(n.Node); err != nil {
			return err
		}
		if err := c.compileNode(n.Property); err != nil {
			return err
		}
		c.emit(vm.Instruction{Op: vm.OpFetch})
		return nil

	case *TemplateStringNode:
		for _, part := range n.Parts {
			if err := c.compileNode(part); err != nil {
				return err
			}
			c.emit(vm.Instruction{Op: vm.OpCallFunction, Fn: "string", ArgCount: 1})
		}
		c.emit(vm.Instruction{Op: vm.OpPushNumber, Number: decimal.NewFromInt(int64(len(n.Parts)))})
		c.emit(vm.Instruction{Op: vm.OpArray})
		c.emit(vm.Instruction{Op: vm.OpPushString, Str: ""})
		c.emit(vm.Instruction{Op: vm.OpJoin})
		return nil

	case *SliceNode:
		if err := c.compileNode(n.Node); err != nil {
			return err
		}
		if n.To != nil {
			if err := c.compileNode(n.To); err != nil {
				return err
			}
		} else {
			c.emit(vm.Instruction{Op: vm.OpLen})
			c.emit(vm.Instruction{Op: vm.OpPushNumber, Number: decimal.NewFromInt(1)})
			c.emit(vm.Instruction{Op: vm.OpSubtract})
		}
		if n.From != nil {
			if err := c.compileNode(n.From); err != nil {
				return err
			}
		} else {
			c.emit(vm.Instruction{Op: vm.OpPushNumber, Number: decimal.Zero})
		}
		c.emit(vm.Instruction{Op: vm.OpSlice})
		return nil

	case *IntervalNode:
		if err := c.compileNode(n.Left); err != nil {
			return err
		}
		if err := c.compileNode(n.Right); err != nil {
			return err
		}
		c.emit(vm.Instruction{Op: vm.OpInterval, LeftInclusive: n.LeftInclusive, RightInclusive: n.RightInclusive})
		return nil

	case *ConditionalNode:
		return c.compileConditional(n)

	case *UnaryNode:
		return c.compileUnary(n)

	case *BinaryNode:
		return c.compileBinary(n)

	case *FunctionCallNode:
		if n.Kind != FnPlain {
			return c.compileClosure(n)
		}
		return c.compileFunctionCall(n)

	case *MethodCallNode:
		return c.compileMethodCall(n)
	}

	return &Error{Kind: ErrUnexpectedErrorNode, Message: fmt.Sprintf("unhandled node type %T", node)}
}

func (c *compiler) compileConditional(n *ConditionalNode) error {
	if err := c.compileNode(n.Condition); err != nil {
		return err
	}
	otherwise := c.emit(vm.Instruction{Op: vm.OpJump, Jump: vm.JumpIfFalse})
	c.emit(vm.Instruction{Op: vm.OpPop})
	if err := c.compileNode(n.OnTrue); err != nil {
		return err
	}
	end := c.emit(vm.Instruction{Op: vm.OpJump, Jump: vm.JumpForward})
	c.replace(otherwise, vm.Instruction{Op: vm.OpJump, Jump: vm.JumpIfFalse, Offset: end - otherwise})
	c.emit(vm.Instruction{Op: vm.OpPop})
	if err := c.compileNode(n.OnFalse); err != nil {
		return err
	}
	b := len(c.bytecode)
	c.replace(end, vm.Instruction{Op: vm.OpJump, Jump: vm.JumpForward, Offset: b - end})
	return nil
}

func (c *compiler) compileUnary(n *UnaryNode) error {
	if err := c.compileNode(n.Node); err != nil {
		return err
	}
	switch n.Op {
	case UnaryPlus:
		// no-op: +x is x
	case UnaryNegate:
		c.emit(vm.Instruction{Op: vm.OpNegate})
	case UnaryNot:
		c.emit(vm.Instruction{Op: vm.OpNot})
	default:
		return &Error{Kind: ErrUnknownUnaryOperator, Message: "unknown unary operator"}
	}
	return nil
}

func (c *compiler) compileBinary(n *BinaryNode) error {
	switch n.Operator {
	case BinOr:
		if err := c.compileNode(n.Left); err != nil {
			return err
		}
		end := c.emit(vm.Instruction{Op: vm.OpJump, Jump: vm.JumpIfTrue})
		c.emit(vm.Instruction{Op: vm.OpPop})
		if err := c.compileNode(n.Right); err != nil {
			return err
		}
		c.replace(end, vm.Instruction{Op: vm.OpJump, Jump: vm.JumpIfTrue, Offset: len(c.bytecode) - end})
		return nil

	case BinAnd:
		if err := c.compileNode(n.Left); err != nil {
			return err
		}
		end := c.emit(vm.Instruction{Op: vm.OpJump, Jump: vm.JumpIfFalse})
		c.emit(vm.Instruction{Op: vm.OpPop})
		if err := c.compileNode(n.Right); err != nil {
			return err
		}
		c.replace(end, vm.Instruction{Op: vm.OpJump, Jump: vm.JumpIfFalse, Offset: len(c.bytecode) - end})
		return nil

	case BinNullish:
		if err := c.compileNode(n.Left); err != nil {
			return err
		}
		end := c.emit(vm.Instruction{Op: vm.OpJump, Jump: vm.JumpIfNotNull})
		c.emit(vm.Instruction{Op: vm.OpPop})
		if err := c.compileNode(n.Right); err != nil {
			return err
		}
		c.replace(end, vm.Instruction{Op: vm.OpJump, Jump: vm.JumpIfNotNull, Offset: len(c.bytecode) - end})
		return nil
	}

	if err := c.compileNode(n.Left); err != nil {
		return err
	}
	if err := c.compileNode(n.Right); err != nil {
		return err
	}
	switch n.Operator {
	case BinEqual:
		c.emit(vm.Instruction{Op: vm.OpEqual})
	case BinNotEqual:
		c.emit(vm.Instruction{Op: vm.OpEqual})
		c.emit(vm.Instruction{Op: vm.OpNot})
	case BinIn:
		c.emit(vm.Instruction{Op: vm.OpIn})
	case BinNotIn:
		c.emit(vm.Instruction{Op: vm.OpIn})
		c.emit(vm.Instruction{Op: vm.OpNot})
	case BinLessThan:
		c.emit(vm.Instruction{Op: vm.OpCompare, Compare: vm.CompareLess})
	case BinLessThanOrEqual:
		c.emit(vm.Instruction{Op: vm.OpCompare, Compare: vm.CompareLessOrEqual})
	case BinGreaterThan:
		c.emit(vm.Instruction{Op: vm.OpCompare, Compare: vm.CompareMore})
	case BinGreaterThanOrEqual:
		c.emit(vm.Instruction{Op: vm.OpCompare, Compare: vm.CompareMoreOrEqual})
	case BinAdd:
		c.emit(vm.Instruction{Op: vm.OpAdd})
	case BinSubtract:
		c.emit(vm.Instruction{Op: vm.OpSubtract})
	case BinMultiply:
		c.emit(vm.Instruction{Op: vm.OpMultiply})
	case BinDivide:
		c.emit(vm.Instruction{Op: vm.OpDivide})
	case BinModulo:
		c.emit(vm.Instruction{Op: vm.OpModulo})
	case BinExponent:
		c.emit(vm.Instruction{Op: vm.OpExponent})
	default:
		return &Error{Kind: ErrUnknownBinaryOperator, Message: "unknown binary operator"}
	}
	return nil
}

func (c *compiler) compileArgument(name string, args []Node, index int) error {
	if index >= len(args) {
		return &Error{Kind: ErrArgumentNotFound, Message: fmt.Sprintf("argument %d not found for %s", index, name)}
	}
	return c.compileNode(args[index])
}

func (c *compiler) compileFunctionCall(n *FunctionCallNode) error {
	minArgs, maxArgs, ok := vm.LookupSignature(n.Name)
	if !ok {
		return &Error{Kind: ErrUnknownFunction, Message: fmt.Sprintf("unknown function %q", n.Name)}
	}
	if len(n.Args) < minArgs || (maxArgs >= 0 && len(n.Args) > maxArgs) {
		return &Error{Kind: ErrInvalidFunctionCall, Message: fmt.Sprintf("invalid argument count for %s", n.Name)}
	}
	for _, arg := range n.Args {
		if err := c.compileNode(arg); err != nil {
			return err
		}
	}
	c.emit(vm.Instruction{Op: vm.OpCallFunction, Fn: n.Name, ArgCount: len(n.Args)})
	return nil
}

func (c *compiler) compileMethodCall(n *MethodCallNode) error {
	minArgs, maxArgs, ok := vm.LookupSignature(n.Name)
	if !ok {
		return &Error{Kind: ErrUnknownFunction, Message: fmt.Sprintf("unknown method %q", n.Name)}
	}
	// The receiver occupies the signature's first parameter slot.
	minArgs--
	if maxArgs >= 0 {
		maxArgs--
	}
	if len(n.Args) < minArgs || (maxArgs >= 0 && len(n.Args) > maxArgs) {
		return &Error{Kind: ErrInvalidMethodCall, Message: fmt.Sprintf("invalid argument count for %s", n.Name)}
	}
	if err := c.compileNode(n.This); err != nil {
		return err
	}
	for _, arg := range n.Args {
		if err := c.compileNode(arg); err != nil {
			return err
		}
	}
	c.emit(vm.Instruction{Op: vm.OpCallMethod, Fn: n.Name, ArgCount: len(n.Args) + 1})
	return nil
}

// compileClosure lowers one of the eight closure builtins (all, none,
// some, one, filter, map, flatMap, count) to Begin/loop/End bytecode.
func (c *compiler) compileClosure(n *FunctionCallNode) error {
	if err := c.compileArgument(n.Name, n.Args, 0); err != nil {
		return err
	}
	c.emit(vm.Instruction{Op: vm.OpBegin})

	switch n.Kind {
	case FnClosureAll:
		var loopBreak int
		if err := c.emitLoop(func() error {
			if err := c.compileArgument(n.Name, n.Args, 1); err != nil {
				return err
			}
			loopBreak = c.emit(vm.Instruction{Op: vm.OpJump, Jump: vm.JumpIfFalse})
			c.emit(vm.Instruction{Op: vm.OpPop})
			return nil
		}); err != nil {
			return err
		}
		e := c.emit(vm.Instruction{Op: vm.OpPushBool, Bool: true})
		c.replace(loopBreak, vm.Instruction{Op: vm.OpJump, Jump: vm.JumpIfFalse, Offset: e - loopBreak})
		c.emit(vm.Instruction{Op: vm.OpEnd})

	case FnClosureNone:
		var loopBreak int
		if err := c.emitLoop(func() error {
			if err := c.compileArgument(n.Name, n.Args, 1); err != nil {
				return err
			}
			c.emit(vm.Instruction{Op: vm.OpNot})
			loopBreak = c.emit(vm.Instruction{Op: vm.OpJump, Jump: vm.JumpIfFalse})
			c.emit(vm.Instruction{Op: vm.OpPop})
			return nil
		}); err != nil {
			return err
		}
		e := c.emit(vm.Instruction{Op: vm.OpPushBool, Bool: true})
		c.replace(loopBreak, vm.Instruction{Op: vm.OpJump, Jump: vm.JumpIfFalse, Offset: e - loopBreak})
		c.emit(vm.Instruction{Op: vm.OpEnd})

	case FnClosureSome:
		var loopBreak int
		if err := c.emitLoop(func() error {
			if err := c.compileArgument(n.Name, n.Args, 1); err != nil {
				return err
			}
			loopBreak = c.emit(vm.Instruction{Op: vm.OpJump, Jump: vm.JumpIfTrue})
			c.emit(vm.Instruction{Op: vm.OpPop})
			return nil
		}); err != nil {
			return err
		}
		e := c.emit(vm.Instruction{Op: vm.OpPushBool, Bool: false})
		c.replace(loopBreak, vm.Instruction{Op: vm.OpJump, Jump: vm.JumpIfTrue, Offset: e - loopBreak})
		c.emit(vm.Instruction{Op: vm.OpEnd})

	case FnClosureOne:
		if err := c.emitLoop(func() error {
			if err := c.compileArgument(n.Name, n.Args, 1); err != nil {
				return err
			}
			c.emitCond(func() {
				c.emit(vm.Instruction{Op: vm.OpIncrementCount})
			})
			return nil
		}); err != nil {
			return err
		}
		c.emit(vm.Instruction{Op: vm.OpGetCount})
		c.emit(vm.Instruction{Op: vm.OpPushNumber, Number: decimal.NewFromInt(1)})
		c.emit(vm.Instruction{Op: vm.OpEqual})
		c.emit(vm.Instruction{Op: vm.OpEnd})

	case FnClosureFilter:
		if err := c.emitLoop(func() error {
			if err := c.compileArgument(n.Name, n.Args, 1); err != nil {
				return err
			}
			c.emitCond(func() {
				c.emit(vm.Instruction{Op: vm.OpIncrementCount})
				c.emit(vm.Instruction{Op: vm.OpPointer})
			})
			return nil
		}); err != nil {
			return err
		}
		c.emit(vm.Instruction{Op: vm.OpGetCount})
		c.emit(vm.Instruction{Op: vm.OpEnd})
		c.emit(vm.Instruction{Op: vm.OpArray})

	case FnClosureMap:
		if err := c.emitLoop(func() error {
			return c.compileArgument(n.Name, n.Args, 1)
		}); err != nil {
			return err
		}
		c.emit(vm.Instruction{Op: vm.OpGetLen})
		c.emit(vm.Instruction{Op: vm.OpEnd})
		c.emit(vm.Instruction{Op: vm.OpArray})

	case FnClosureFlatMap:
		if err := c.emitLoop(func() error {
			return c.compileArgument(n.Name, n.Args, 1)
		}); err != nil {
			return err
		}
		c.emit(vm.Instruction{Op: vm.OpGetLen})
		c.emit(vm.Instruction{Op: vm.OpEnd})
		c.emit(vm.Instruction{Op: vm.OpArray})
		c.emit(vm.Instruction{Op: vm.OpFlatten})

	case FnClosureCount:
		if err := c.emitLoop(func() error {
			if err := c.compileArgument(n.Name, n.Args, 1); err != nil {
				return err
			}
			c.emitCond(func() {
				c.emit(vm.Instruction{Op: vm.OpIncrementCount})
			})
			return nil
		}); err != nil {
			return err
		}
		c.emit(vm.Instruction{Op: vm.OpGetCount})
		c.emit(vm.Instruction{Op: vm.OpEnd})
	}

	return nil
}
