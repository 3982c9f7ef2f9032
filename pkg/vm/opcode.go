package vm

import "github.com/shopspring/decimal"

// OpCode enumerates the full instruction set the compiler emits. The
// behavioral contract mirrors the original stack machine; payload
// fields that don't apply to a given OpCode are left zero.
type OpCode uint8

const (
	OpPushNull OpCode = iota
	OpPushBool
	OpPushNumber
	OpPushString
	OpPop
	OpFetchEnv
	OpFetchRootEnv
	OpFetch
	OpFetchFast
	OpNegate
	OpNot
	OpEqual
	OpCompare
	OpAdd
	OpSubtract
	OpMultiply
	OpDivide
	OpModulo
	OpExponent
	OpIn
	OpJump
	OpArray
	OpObject
	OpSlice
	OpInterval
	OpJoin
	OpLen
	OpFlatten
	OpBegin
	OpEnd
	OpPointer
	OpIncrementIt
	OpIncrementCount
	OpGetCount
	OpGetLen
	OpCallFunction
	OpCallMethod
)

// JumpKind distinguishes the Jump opcode's five forms.
type JumpKind uint8

const (
	JumpForward JumpKind = iota
	JumpBackward
	JumpIfTrue
	JumpIfFalse
	JumpIfNotNull
	JumpIfEnd
)

// CompareKind distinguishes the Compare opcode's four orderings.
type CompareKind uint8

const (
	CompareMore CompareKind = iota
	CompareMoreOrEqual
	CompareLess
	CompareLessOrEqual
)

// FetchFastKind distinguishes one step of a folded FetchFast path.
type FetchFastKind uint8

const (
	FetchFastRoot FetchFastKind = iota
	FetchFastKey
	FetchFastIndex
)

// FetchFastStep is one element of a folded static member-access chain.
type FetchFastStep struct {
	Kind  FetchFastKind
	Key   string
	Index int
}

// Instruction is one bytecode instruction. Using a single struct with
// per-opcode payload fields (rather than an interface per opcode) keeps
// the interpreter's dispatch a plain switch over Op, matching the
// original's single flat match over an Opcode enum.
type Instruction struct {
	Op      OpCode
	Bool    bool
	Number  decimal.Decimal
	Str     string
	Path    []FetchFastStep
	Jump    JumpKind
	Offset  int
	Compare CompareKind

	LeftInclusive  bool
	RightInclusive bool

	Fn       string
	ArgCount int
}
