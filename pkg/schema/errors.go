package schema

import "fmt"

// Error is the SchemaError taxonomy from spec §7: CompileFailed,
// UnknownType, UnknownMark, BadContentExpr, CyclicReference,
// DuplicateDefinition.
type Error struct {
	Kind     string
	Name     string
	Expr     string
	Location string
	Reason   string
}

func (e *Error) Error() string {
	switch e.Kind {
	case "CompileFailed":
		return fmt.Sprintf("schema: compile failed: %s (at %s)", e.Reason, e.Location)
	case "UnknownType":
		return fmt.Sprintf("schema: unknown node type %q", e.Name)
	case "UnknownMark":
		return fmt.Sprintf("schema: unknown mark type %q", e.Name)
	case "BadContentExpr":
		return fmt.Sprintf("schema: bad content expression %q: %s", e.Expr, e.Reason)
	case "CyclicReference":
		return fmt.Sprintf("schema: cyclic reference involving %q", e.Name)
	case "DuplicateDefinition":
		return fmt.Sprintf("schema: duplicate definition of %q", e.Name)
	default:
		return fmt.Sprintf("schema: %s", e.Reason)
	}
}

func errCompileFailed(reason, location string) error {
	return &Error{Kind: "CompileFailed", Reason: reason, Location: location}
}

func errUnknownType(name string) error {
	return &Error{Kind: "UnknownType", Name: name}
}

func errUnknownMark(name string) error {
	return &Error{Kind: "UnknownMark", Name: name}
}

func errBadContentExpr(expr, reason string) error {
	return &Error{Kind: "BadContentExpr", Expr: expr, Reason: reason}
}

func errCyclicReference(name string) error {
	return &Error{Kind: "CyclicReference", Name: name}
}

func errDuplicateDefinition(name string) error {
	return &Error{Kind: "DuplicateDefinition", Name: name}
}
