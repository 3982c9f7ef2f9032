package exprlang

import "github.com/shopspring/decimal"

// Node is any AST node. Each concrete type marks itself with
// nodeMarker so the compiler's switch stays exhaustive-checkable.
type Node interface {
	nodeMarker()
}

type NullNode struct{}

func (*NullNode) nodeMarker() {}

type BoolNode struct{ Value bool }

func (*BoolNode) nodeMarker() {}

type NumberNode struct{ Value decimal.Decimal }

func (*NumberNode) nodeMarker() {}

type StringNode struct{ Value string }

func (*StringNode) nodeMarker() {}

// IdentifierNode resolves a bare name against the root environment.
type IdentifierNode struct{ Name string }

func (*IdentifierNode) nodeMarker() {}

// RootNode is the bare `$` reference to the whole environment.
type RootNode struct{}

func (*RootNode) nodeMarker() {}

// PointerNode is `#`, the current element inside a closure body.
type PointerNode struct{}

func (*PointerNode) nodeMarker() {}

type ParenthesizedNode struct{ Inner Node }

func (*ParenthesizedNode) nodeMarker() {}

// ClosureNode wraps a closure-body expression (one using #); kept as
// a distinct node so the compiler can tell a closure argument from a
// plain expression argument, matching the original's Node::Closure.
type ClosureNode struct{ Body Node }

func (*ClosureNode) nodeMarker() {}

type MemberNode struct {
	Node     Node
	Property Node
}

func (*MemberNode) nodeMarker() {}

// SliceNode's From/To are nil when omitted (`arr[:3]`, `arr[2:]`).
type SliceNode struct {
	Node Node
	From Node
	To   Node
}

func (*SliceNode) nodeMarker() {}

type IntervalNode struct {
	Left           Node
	Right          Node
	LeftInclusive  bool
	RightInclusive bool
}

func (*IntervalNode) nodeMarker() {}

// UnaryOp is the closed set of prefix operators.
type UnaryOp int

const (
	UnaryPlus UnaryOp = iota
	UnaryNegate
	UnaryNot
)

type UnaryNode struct {
	Op   UnaryOp
	Node Node
}

func (*UnaryNode) nodeMarker() {}

// BinaryOp is the closed set of infix operators.
type BinaryOp int

const (
	BinAdd BinaryOp = iota
	BinSubtract
	BinMultiply
	BinDivide
	BinModulo
	BinExponent
	BinEqual
	BinNotEqual
	BinLessThan
	BinLessThanOrEqual
	BinGreaterThan
	BinGreaterThanOrEqual
	BinIn
	BinNotIn
	BinAnd
	BinOr
	BinNullish
)

type BinaryNode struct {
	Left     Node
	Right    Node
	Operator BinaryOp
}

func (*BinaryNode) nodeMarker() {}

type ConditionalNode struct {
	Condition Node
	OnTrue    Node
	OnFalse   Node
}

func (*ConditionalNode) nodeMarker() {}

// FunctionKind distinguishes a plain built-in call from one of the
// eight closure forms, which the compiler lowers to loop bytecode
// instead of a CallFunction opcode.
type FunctionKind int

const (
	FnPlain FunctionKind = iota
	FnClosureAll
	FnClosureNone
	FnClosureSome
	FnClosureOne
	FnClosureFilter
	FnClosureMap
	FnClosureFlatMap
	FnClosureCount
)

var closureFunctionKinds = map[string]FunctionKind{
	"all":     FnClosureAll,
	"none":    FnClosureNone,
	"some":    FnClosureSome,
	"one":     FnClosureOne,
	"filter":  FnClosureFilter,
	"map":     FnClosureMap,
	"flatMap": FnClosureFlatMap,
	"count":   FnClosureCount,
}

type FunctionCallNode struct {
	Name string
	Kind FunctionKind
	Args []Node
}

func (*FunctionCallNode) nodeMarker() {}

type MethodCallNode struct {
	Name string
	This Node
	Args []Node
}

func (*MethodCallNode) nodeMarker() {}

type TemplateStringNode struct{ Parts []Node }

func (*TemplateStringNode) nodeMarker() {}

type ArrayNode struct{ Elements []Node }

func (*ArrayNode) nodeMarker() {}

// ObjectEntry pairs a key node (string literal or identifier) with its
// value node. The compiler follows the key's code with a call to the
// `string` builtin, so the key is coerced to a string at run time.
type ObjectEntry struct {
	Key   Node
	Value Node
}

type ObjectNode struct{ Entries []ObjectEntry }

func (*ObjectNode) nodeMarker() {}
