package vm

import (
	"math"

	"github.com/shopspring/decimal"
)

// VM executes compiled bytecode against an environment Variable. It is
// stateless between calls — Run claims pooled scratch buffers, resets
// them, and returns them when done — so a single VM value is safe to
// reuse (and to run concurrently from multiple goroutines, each call
// independent, as the spec's concurrency model requires: "the
// expression VM is single-threaded per evaluation but many VM
// instances may run in parallel").
type VM struct{}

func New() *VM { return &VM{} }

// Run executes bytecode against env and returns the single remaining
// stack value, or an error. It never panics: any host- or
// bytecode-level problem is returned as a *Error.
func (vm *VM) Run(bytecode []Instruction, env Variable) (result Variable, err error) {
	ex := &executor{
		bytecode: bytecode,
		env:      env,
		stack:    getStack(),
		scopes:   getScopes(),
	}
	defer func() {
		putStack(ex.stack)
		putScopes(ex.scopes)
	}()
	return ex.run()
}

type executor struct {
	bytecode []Instruction
	env      Variable
	stack    []Variable
	scopes   []scope
	ip       int
}

func (e *executor) push(v Variable) { e.stack = append(e.stack, v) }

func (e *executor) pop() (Variable, error) {
	if len(e.stack) == 0 {
		return Variable{}, errStackOutOfBounds("pop")
	}
	v := e.stack[len(e.stack)-1]
	e.stack = e.stack[:len(e.stack)-1]
	return v, nil
}

func (e *executor) peek(opcode string) (Variable, error) {
	if len(e.stack) == 0 {
		return Variable{}, errStackOutOfBounds(opcode)
	}
	return e.stack[len(e.stack)-1], nil
}

func (e *executor) topScope(opcode string) (*scope, error) {
	if len(e.scopes) == 0 {
		return nil, errOpcodeErr(opcode, "no active scope")
	}
	return &e.scopes[len(e.scopes)-1], nil
}

func (e *executor) run() (Variable, error) {
	for e.ip < len(e.bytecode) {
		if e.ip < 0 {
			return Variable{}, errOpcodeOutOfBounds(e.ip)
		}
		instr := e.bytecode[e.ip]
		e.ip++

		if err := e.step(instr); err != nil {
			return Variable{}, err
		}
	}
	return e.pop()
}

func (e *executor) step(instr Instruction) error {
	switch instr.Op {
	case OpPushNull:
		e.push(Null())
	case OpPushBool:
		e.push(NewBool(instr.Bool))
	case OpPushNumber:
		e.push(NewNumber(instr.Number))
	case OpPushString:
		e.push(NewString(instr.Str))
	case OpPop:
		if _, err := e.pop(); err != nil {
			return err
		}

	case OpFetch:
		return e.opFetch()
	case OpFetchFast:
		e.push(e.opFetchFast(instr.Path))
	case OpFetchEnv:
		return e.opFetchEnv(instr.Str)
	case OpFetchRootEnv:
		e.push(e.env)

	case OpNegate:
		return e.opNegate()
	case OpNot:
		return e.opNot()
	case OpEqual:
		return e.opEqual()
	case OpCompare:
		return e.opCompare(instr.Compare)

	case OpAdd:
		return e.opAdd()
	case OpSubtract:
		return e.opArith("Subtract", func(a, b decimal.Decimal) (decimal.Decimal, error) { return a.Sub(b), nil })
	case OpMultiply:
		return e.opArith("Multiply", func(a, b decimal.Decimal) (decimal.Decimal, error) { return a.Mul(b), nil })
	case OpDivide:
		return e.opArith("Divide", func(a, b decimal.Decimal) (decimal.Decimal, error) {
			if b.IsZero() {
				return decimal.Decimal{}, errOpcodeErr("Divide", "division by zero")
			}
			return a.Div(b), nil
		})
	case OpModulo:
		return e.opArith("Modulo", func(a, b decimal.Decimal) (decimal.Decimal, error) {
			if b.IsZero() {
				return decimal.Decimal{}, errOpcodeErr("Modulo", "division by zero")
			}
			return a.Mod(b), nil
		})
	case OpExponent:
		return e.opExponent()

	case OpIn:
		return e.opIn()

	case OpJump:
		return e.opJump(instr)

	case OpArray:
		return e.opArray()
	case OpObject:
		return e.opObject()
	case OpSlice:
		return e.opSlice()
	case OpInterval:
		return e.opInterval(instr)
	case OpJoin:
		return e.opJoin()

	case OpLen:
		v, err := e.peek("Len")
		if err != nil {
			return err
		}
		result, err := builtinLen([]Variable{v})
		if err != nil {
			return err
		}
		e.push(result)

	case OpFlatten:
		a, err := e.pop()
		if err != nil {
			return err
		}
		result, err := builtinFlatten([]Variable{a})
		if err != nil {
			return err
		}
		e.push(result)

	case OpBegin:
		return e.opBegin()
	case OpEnd:
		if len(e.scopes) > 0 {
			e.scopes = e.scopes[:len(e.scopes)-1]
		}
	case OpPointer:
		return e.opPointer()
	case OpIncrementIt:
		s, err := e.topScope("IncrementIt")
		if err != nil {
			return err
		}
		s.iter++
	case OpIncrementCount:
		s, err := e.topScope("IncrementCount")
		if err != nil {
			return err
		}
		s.count++
	case OpGetCount:
		s, err := e.topScope("GetCount")
		if err != nil {
			return err
		}
		e.push(NewNumber(decimal.NewFromInt(int64(s.count))))
	case OpGetLen:
		s, err := e.topScope("GetLen")
		if err != nil {
			return err
		}
		e.push(NewNumber(decimal.NewFromInt(int64(s.len))))

	case OpCallFunction:
		return e.opCall(instr, false)
	case OpCallMethod:
		return e.opCall(instr, true)

	default:
		return errOpcodeErr("unknown", "unrecognized opcode")
	}
	return nil
}

func (e *executor) opFetch() error {
	b, err := e.pop()
	if err != nil {
		return err
	}
	a, err := e.pop()
	if err != nil {
		return err
	}

	switch {
	case a.Kind == KindObject && b.Kind == KindString:
		v, ok := a.Object[b.Str]
		if !ok {
			e.push(Null())
		} else {
			e.push(v)
		}
	case a.Kind == KindArray && b.Kind == KindNumber:
		idx, ok := toIndex(b.Number)
		if !ok || idx >= len(a.Array) {
			e.push(Null())
		} else {
			e.push(a.Array[idx])
		}
	case a.Kind == KindString && b.Kind == KindNumber:
		idx, ok := toIndex(b.Number)
		runes := []rune(a.Str)
		if !ok || idx >= len(runes) {
			e.push(Null())
		} else {
			e.push(NewString(string(runes[idx])))
		}
	default:
		e.push(Null())
	}
	return nil
}

// toIndex converts a decimal to a non-negative int index; ok is false
// for negative or non-integer values, which callers treat as Null
// rather than an error (never-panic indexing policy).
func toIndex(d decimal.Decimal) (int, bool) {
	if d.Sign() < 0 {
		return 0, false
	}
	if !d.Equal(d.Truncate(0)) {
		return 0, false
	}
	return int(d.IntPart()), true
}

func (e *executor) opFetchFast(path []FetchFastStep) Variable {
	v := Null()
	for _, step := range path {
		switch step.Kind {
		case FetchFastRoot:
			v = e.env
		case FetchFastKey:
			if v.Kind != KindObject {
				v = Null()
				continue
			}
			found, ok := v.Object[step.Key]
			if !ok {
				v = Null()
			} else {
				v = found
			}
		case FetchFastIndex:
			if v.Kind != KindArray || step.Index < 0 || step.Index >= len(v.Array) {
				v = Null()
				continue
			}
			v = v.Array[step.Index]
		}
	}
	return v
}

func (e *executor) opFetchEnv(name string) error {
	switch e.env.Kind {
	case KindObject:
		v, ok := e.env.Object[name]
		if !ok {
			e.push(Null())
		} else {
			e.push(v)
		}
	case KindNull:
		e.push(Null())
	default:
		return errOpcodeErr("FetchEnv", "unsupported type")
	}
	return nil
}

func (e *executor) opNegate() error {
	a, err := e.pop()
	if err != nil {
		return err
	}
	if a.Kind != KindNumber {
		return errOpcodeErr("Negate", "unsupported type")
	}
	e.push(NewNumber(a.Number.Neg()))
	return nil
}

func (e *executor) opNot() error {
	a, err := e.pop()
	if err != nil {
		return err
	}
	if a.Kind != KindBool {
		return errOpcodeErr("Not", "unsupported type")
	}
	e.push(NewBool(!a.Bool))
	return nil
}

func (e *executor) opEqual() error {
	b, err := e.pop()
	if err != nil {
		return err
	}
	a, err := e.pop()
	if err != nil {
		return err
	}
	e.push(NewBool(a.Equal(b)))
	return nil
}

func (e *executor) opCompare(kind CompareKind) error {
	b, err := e.pop()
	if err != nil {
		return err
	}
	a, err := e.pop()
	if err != nil {
		return err
	}
	cmp, ok := a.Compare(b)
	if !ok {
		return errOpcodeErr("Compare", "unsupported type")
	}
	var result bool
	switch kind {
	case CompareMore:
		result = cmp > 0
	case CompareMoreOrEqual:
		result = cmp >= 0
	case CompareLess:
		result = cmp < 0
	case CompareLessOrEqual:
		result = cmp <= 0
	}
	e.push(NewBool(result))
	return nil
}

func (e *executor) opAdd() error {
	b, err := e.pop()
	if err != nil {
		return err
	}
	a, err := e.pop()
	if err != nil {
		return err
	}
	switch {
	case a.Kind == KindNumber && b.Kind == KindNumber:
		e.push(NewNumber(a.Number.Add(b.Number)))
	case a.Kind == KindString && b.Kind == KindString:
		e.push(NewString(a.Str + b.Str))
	default:
		return errOpcodeErr("Add", "unsupported type")
	}
	return nil
}

func (e *executor) opArith(opcode string, fn func(a, b decimal.Decimal) (decimal.Decimal, error)) error {
	b, err := e.pop()
	if err != nil {
		return err
	}
	a, err := e.pop()
	if err != nil {
		return err
	}
	if a.Kind != KindNumber || b.Kind != KindNumber {
		return errOpcodeErr(opcode, "unsupported type")
	}
	result, err := fn(a.Number, b.Number)
	if err != nil {
		return err
	}
	e.push(NewNumber(result))
	return nil
}

// opExponent tries an exact decimal exponent for non-negative integer
// powers, then falls back to float64 powf and back to decimal — the
// fallback path the spec's numeric semantics section names explicitly.
func (e *executor) opExponent() error {
	b, err := e.pop()
	if err != nil {
		return err
	}
	a, err := e.pop()
	if err != nil {
		return err
	}
	if a.Kind != KindNumber || b.Kind != KindNumber {
		return errOpcodeErr("Exponent", "unsupported type")
	}

	if exp, ok := toIndex(b.Number); ok {
		result := decimal.NewFromInt(1)
		for i := 0; i < exp; i++ {
			result = result.Mul(a.Number)
		}
		e.push(NewNumber(result))
		return nil
	}

	af, _ := a.Number.Float64()
	bf, _ := b.Number.Float64()
	result := math.Pow(af, bf)
	e.push(NewNumber(decimal.NewFromFloat(result)))
	return nil
}

func (e *executor) opIn() error {
	b, err := e.pop()
	if err != nil {
		return err
	}
	a, err := e.pop()
	if err != nil {
		return err
	}

	switch {
	case b.Kind == KindArray:
		for _, v := range b.Array {
			if v.Equal(a) {
				e.push(NewBool(true))
				return nil
			}
		}
		e.push(NewBool(false))
		return nil
	case b.Kind == KindObject && a.Kind == KindString:
		_, ok := b.Object[a.Str]
		e.push(NewBool(ok))
		return nil
	case b.Kind == KindInterval:
		included, err := b.Interval.Includes(a)
		if err != nil {
			return err
		}
		e.push(NewBool(included))
		return nil
	default:
		return errOpcodeErr("In", "unsupported type")
	}
}

func (e *executor) opJump(instr Instruction) error {
	switch instr.Jump {
	case JumpForward:
		e.ip += instr.Offset
	case JumpBackward:
		e.ip -= instr.Offset
	case JumpIfTrue:
		v, err := e.peek("JumpIfTrue")
		if err != nil {
			return err
		}
		if v.Kind != KindBool {
			return errOpcodeErr("JumpIfTrue", "unsupported type")
		}
		if v.Bool {
			e.ip += instr.Offset
		}
	case JumpIfFalse:
		v, err := e.peek("JumpIfFalse")
		if err != nil {
			return err
		}
		if v.Kind != KindBool {
			return errOpcodeErr("JumpIfFalse", "unsupported type")
		}
		if !v.Bool {
			e.ip += instr.Offset
		}
	case JumpIfNotNull:
		v, err := e.peek("JumpIfNotNull")
		if err != nil {
			return err
		}
		if !v.IsNull() {
			e.ip += instr.Offset
		}
	case JumpIfEnd:
		s, err := e.topScope("JumpIfEnd")
		if err != nil {
			return err
		}
		if s.iter >= s.len {
			e.ip += instr.Offset
		}
	}
	return nil
}

func (e *executor) opArray() error {
	size, err := e.pop()
	if err != nil {
		return err
	}
	n, ok := toIndex(size.Number)
	if size.Kind != KindNumber || !ok {
		return errOpcodeErr("Array", "unsupported type")
	}
	arr := make([]Variable, n)
	for i := n - 1; i >= 0; i-- {
		v, err := e.pop()
		if err != nil {
			return err
		}
		arr[i] = v
	}
	e.push(NewArray(arr))
	return nil
}

func (e *executor) opObject() error {
	size, err := e.pop()
	if err != nil {
		return err
	}
	n, ok := toIndex(size.Number)
	if size.Kind != KindNumber || !ok {
		return errOpcodeErr("Object", "unsupported type")
	}
	m := make(map[string]Variable, n)
	for i := 0; i < n; i++ {
		value, err := e.pop()
		if err != nil {
			return err
		}
		key, err := e.pop()
		if err != nil {
			return err
		}
		if key.Kind != KindString {
			return errOpcodeErr("Object", "unexpected key type")
		}
		m[key.Str] = value
	}
	e.push(NewObject(m))
	return nil
}

func (e *executor) opSlice() error {
	// The compiler pushes the sliced value, then the upper bound, then
	// the lower bound, so the lower bound is on top.
	from, err := e.pop()
	if err != nil {
		return err
	}
	to, err := e.pop()
	if err != nil {
		return err
	}
	current, err := e.pop()
	if err != nil {
		return err
	}
	if from.Kind != KindNumber || to.Kind != KindNumber {
		return errOpcodeErr("Slice", "unsupported type")
	}
	fromIdx, fok := toIndex(from.Number)
	toIdx, tok := toIndex(to.Number)
	if !fok || !tok {
		e.push(Null())
		return nil
	}
	if fromIdx > toIdx {
		return errOpcodeErr("Slice", "inverted bounds")
	}

	switch current.Kind {
	case KindArray:
		if toIdx >= len(current.Array) {
			return errOpcodeErr("Slice", "index out of range")
		}
		out := make([]Variable, toIdx-fromIdx+1)
		copy(out, current.Array[fromIdx:toIdx+1])
		e.push(NewArray(out))
	case KindString:
		runes := []rune(current.Str)
		if toIdx >= len(runes) {
			return errOpcodeErr("Slice", "index out of range")
		}
		e.push(NewString(string(runes[fromIdx : toIdx+1])))
	default:
		return errOpcodeErr("Slice", "unsupported type")
	}
	return nil
}

func (e *executor) opInterval(instr Instruction) error {
	right, err := e.pop()
	if err != nil {
		return err
	}
	left, err := e.pop()
	if err != nil {
		return err
	}
	if left.Kind != right.Kind || (left.Kind != KindNumber && left.Kind != KindDate) {
		return errOpcodeErr("Interval", "unsupported type")
	}
	e.push(NewInterval(&Interval{
		Left:           left,
		Right:          right,
		LeftInclusive:  instr.LeftInclusive,
		RightInclusive: instr.RightInclusive,
	}))
	return nil
}

func (e *executor) opJoin() error {
	sep, err := e.pop()
	if err != nil {
		return err
	}
	arr, err := e.pop()
	if err != nil {
		return err
	}
	if sep.Kind != KindString || arr.Kind != KindArray {
		return errOpcodeErr("Join", "unsupported type")
	}
	parts := make([]string, len(arr.Array))
	for i, v := range arr.Array {
		if v.Kind != KindString {
			return errOpcodeErr("Join", "array element is not a string")
		}
		parts[i] = v.Str
	}
	result := ""
	for i, p := range parts {
		if i > 0 {
			result += sep.Str
		}
		result += p
	}
	e.push(NewString(result))
	return nil
}

func (e *executor) opBegin() error {
	v, err := e.pop()
	if err != nil {
		return err
	}
	var arr []Variable
	switch v.Kind {
	case KindArray:
		arr = v.Array
	case KindInterval:
		expanded, ok := v.Interval.toArray()
		if !ok {
			return errOpcodeErr("Begin", "unsupported type")
		}
		arr = expanded
	default:
		return errOpcodeErr("Begin", "unsupported type")
	}
	e.scopes = append(e.scopes, scope{array: arr, len: len(arr)})
	return nil
}

func (e *executor) opPointer() error {
	s, err := e.topScope("Pointer")
	if err != nil {
		return err
	}
	if s.iter >= len(s.array) {
		return errOpcodeErr("Pointer", "scope array out of range")
	}
	e.push(s.array[s.iter])
	return nil
}

func (e *executor) opCall(instr Instruction, isMethod bool) error {
	def, ok := lookupBuiltin(instr.Fn)
	if !ok {
		label := "CallFunction"
		if isMethod {
			label = "CallMethod"
		}
		return errOpcodeErr(label, "function `"+instr.Fn+"` not found")
	}

	n := instr.ArgCount
	if len(e.stack) < n {
		return errStackOutOfBounds("Call")
	}
	args := make([]Variable, n)
	copy(args, e.stack[len(e.stack)-n:])
	e.stack = e.stack[:len(e.stack)-n]

	if def.MinArgs >= 0 && len(args) < def.MinArgs {
		return errOpcodeErr("Call", "too few arguments to `"+instr.Fn+"`")
	}
	if def.MaxArgs >= 0 && len(args) > def.MaxArgs {
		return errOpcodeErr("Call", "too many arguments to `"+instr.Fn+"`")
	}

	result, err := def.Call(args)
	if err != nil {
		return err
	}
	e.push(result)
	return nil
}

// toArray expands an Interval of Numbers into its discrete element
// list, used by Begin when a closure iterates `1..5`.
func (iv *Interval) toArray() ([]Variable, bool) {
	if iv.Left.Kind != KindNumber || iv.Right.Kind != KindNumber {
		return nil, false
	}
	lo := iv.Left.Number
	if !iv.LeftInclusive {
		lo = lo.Add(decimal.NewFromInt(1))
	}
	hi := iv.Right.Number
	if !iv.RightInclusive {
		hi = hi.Sub(decimal.NewFromInt(1))
	}
	var out []Variable
	for v := lo; v.Cmp(hi) <= 0; v = v.Add(decimal.NewFromInt(1)) {
		out = append(out, NewNumber(v))
	}
	return out, true
}

