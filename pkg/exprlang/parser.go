package exprlang

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Parser turns a token stream into an AST, implementing the
// precedence-climbing grammar: unary > ** > *,/,% > +,- > comparisons
// > in/not in > && > || > ?? > ternary.
type Parser struct {
	lex  *Lexer
	cur  Token
	next *Token
}

// Parse lexes and parses src into a single expression AST.
func Parse(src string) (Node, error) {
	p := &Parser{lex: NewLexer(src)}
	if err := p.advance(); err != nil {
		return nil, err
	}
	node, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if p.cur.Kind != TokEOF {
		return nil, p.errorf("unexpected trailing token at %d", p.cur.Pos)
	}
	return node, nil
}

func (p *Parser) errorf(format string, args ...any) error {
	return &Error{Kind: ErrParseError, Message: fmt.Sprintf(format, args...)}
}

func (p *Parser) advance() error {
	if p.next != nil {
		p.cur = *p.next
		p.next = nil
		return nil
	}
	tok, err := p.lex.Next()
	if err != nil {
		return err
	}
	p.cur = tok
	return nil
}

func (p *Parser) peekNext() (Token, error) {
	if p.next == nil {
		tok, err := p.lex.Next()
		if err != nil {
			return Token{}, err
		}
		p.next = &tok
	}
	return *p.next, nil
}

func (p *Parser) expect(kind TokenKind, what string) error {
	if p.cur.Kind != kind {
		return p.errorf("expected %s at %d", what, p.cur.Pos)
	}
	return p.advance()
}

// parseExpression is the lowest-precedence entry point: ternary.
func (p *Parser) parseExpression() (Node, error) {
	return p.parseTernary()
}

func (p *Parser) parseTernary() (Node, error) {
	cond, err := p.parseNullish()
	if err != nil {
		return nil, err
	}
	if p.cur.Kind != TokQuestion {
		return cond, nil
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	onTrue, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if err := p.expect(TokColon, "':'"); err != nil {
		return nil, err
	}
	onFalse, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	return &ConditionalNode{Condition: cond, OnTrue: onTrue, OnFalse: onFalse}, nil
}

func (p *Parser) parseNullish() (Node, error) {
	left, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	for p.cur.Kind == TokNullish {
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		left = &BinaryNode{Left: left, Right: right, Operator: BinNullish}
	}
	return left, nil
}

func (p *Parser) parseOr() (Node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.cur.Kind == TokOr {
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &BinaryNode{Left: left, Right: right, Operator: BinOr}
	}
	return left, nil
}

func (p *Parser) parseAnd() (Node, error) {
	left, err := p.parseInExpr()
	if err != nil {
		return nil, err
	}
	for p.cur.Kind == TokAnd {
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseInExpr()
		if err != nil {
			return nil, err
		}
		left = &BinaryNode{Left: left, Right: right, Operator: BinAnd}
	}
	return left, nil
}

func (p *Parser) parseInExpr() (Node, error) {
	left, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	for {
		if p.cur.Kind == TokIdent && p.cur.Text == "in" {
			if err := p.advance(); err != nil {
				return nil, err
			}
			right, err := p.parseIntervalOperand()
			if err != nil {
				return nil, err
			}
			left = &BinaryNode{Left: left, Right: right, Operator: BinIn}
			continue
		}
		if p.cur.Kind == TokIdent && p.cur.Text == "not" {
			peeked, err := p.peekNext()
			if err != nil {
				return nil, err
			}
			if peeked.Kind == TokIdent && peeked.Text == "in" {
				if err := p.advance(); err != nil {
					return nil, err
				}
				if err := p.advance(); err != nil {
					return nil, err
				}
				right, err := p.parseIntervalOperand()
				if err != nil {
					return nil, err
				}
				left = &BinaryNode{Left: left, Right: right, Operator: BinNotIn}
				continue
			}
		}
		break
	}
	return left, nil
}

func (p *Parser) parseComparison() (Node, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	var op BinaryOp
	switch p.cur.Kind {
	case TokEq:
		op = BinEqual
	case TokNeq:
		op = BinNotEqual
	case TokLt:
		op = BinLessThan
	case TokLte:
		op = BinLessThanOrEqual
	case TokGt:
		op = BinGreaterThan
	case TokGte:
		op = BinGreaterThanOrEqual
	default:
		return left, nil
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	right, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	return &BinaryNode{Left: left, Right: right, Operator: op}, nil
}

// parseIntervalOperand parses the right-hand operand of `in`/`not in`:
// an additive-precedence expression optionally followed by a bare
// `..` bound (no enclosing bracket needed), e.g. `x in 1..5`. This is
// the one place bare intervals are recognized — bracket-delimited
// interval literals are handled separately in parsePrimary, so this
// never fires inside `[...]`/`(...)` bound parsing.
func (p *Parser) parseIntervalOperand() (Node, error) {
	left, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	if p.cur.Kind != TokDotDot {
		return left, nil
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	right, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	return &IntervalNode{Left: left, Right: right, LeftInclusive: true, RightInclusive: true}, nil
}

func (p *Parser) parseAdditive() (Node, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.cur.Kind == TokPlus || p.cur.Kind == TokMinus {
		op := BinAdd
		if p.cur.Kind == TokMinus {
			op = BinSubtract
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &BinaryNode{Left: left, Right: right, Operator: op}
	}
	return left, nil
}

func (p *Parser) parseMultiplicative() (Node, error) {
	left, err := p.parseExponent()
	if err != nil {
		return nil, err
	}
	for p.cur.Kind == TokStar || p.cur.Kind == TokSlash || p.cur.Kind == TokPercent {
		var op BinaryOp
		switch p.cur.Kind {
		case TokStar:
			op = BinMultiply
		case TokSlash:
			op = BinDivide
		case TokPercent:
			op = BinModulo
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseExponent()
		if err != nil {
			return nil, err
		}
		left = &BinaryNode{Left: left, Right: right, Operator: op}
	}
	return left, nil
}

// parseExponent is right-associative: 2 ** 3 ** 2 == 2 ** (3 ** 2).
func (p *Parser) parseExponent() (Node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	if p.cur.Kind != TokStarStar {
		return left, nil
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	right, err := p.parseExponent()
	if err != nil {
		return nil, err
	}
	return &BinaryNode{Left: left, Right: right, Operator: BinExponent}, nil
}

func (p *Parser) parseUnary() (Node, error) {
	switch p.cur.Kind {
	case TokMinus:
		if err := p.advance(); err != nil {
			return nil, err
		}
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &UnaryNode{Op: UnaryNegate, Node: inner}, nil
	case TokPlus:
		if err := p.advance(); err != nil {
			return nil, err
		}
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &UnaryNode{Op: UnaryPlus, Node: inner}, nil
	case TokNot:
		if err := p.advance(); err != nil {
			return nil, err
		}
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &UnaryNode{Op: UnaryNot, Node: inner}, nil
	default:
		return p.parsePostfix()
	}
}

func (p *Parser) parsePostfix() (Node, error) {
	node, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		switch p.cur.Kind {
		case TokDot:
			if err := p.advance(); err != nil {
				return nil, err
			}
			if p.cur.Kind != TokIdent {
				return nil, p.errorf("expected property name at %d", p.cur.Pos)
			}
			name := p.cur.Text
			if err := p.advance(); err != nil {
				return nil, err
			}
			if p.cur.Kind == TokLParen {
				args, err := p.parseArgList()
				if err != nil {
					return nil, err
				}
				node = &MethodCallNode{Name: name, This: node, Args: args}
				continue
			}
			node = &MemberNode{Node: node, Property: &StringNode{Value: name}}
		case TokLBracket:
			if err := p.advance(); err != nil {
				return nil, err
			}
			node, err = p.parseIndexOrSlice(node)
			if err != nil {
				return nil, err
			}
		default:
			return node, nil
		}
	}
}

// parseIndexOrSlice handles `node[expr]`, `node[from:to]`,
// `node[from:]`, `node[:to]` after the opening '[' has been consumed.
func (p *Parser) parseIndexOrSlice(target Node) (Node, error) {
	if p.cur.Kind == TokColon {
		if err := p.advance(); err != nil {
			return nil, err
		}
		var to Node
		if p.cur.Kind != TokRBracket {
			var err error
			to, err = p.parseExpression()
			if err != nil {
				return nil, err
			}
		}
		if err := p.expect(TokRBracket, "']'"); err != nil {
			return nil, err
		}
		return &SliceNode{Node: target, To: to}, nil
	}

	first, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if p.cur.Kind == TokColon {
		if err := p.advance(); err != nil {
			return nil, err
		}
		var to Node
		if p.cur.Kind != TokRBracket {
			to, err = p.parseExpression()
			if err != nil {
				return nil, err
			}
		}
		if err := p.expect(TokRBracket, "']'"); err != nil {
			return nil, err
		}
		return &SliceNode{Node: target, From: first, To: to}, nil
	}
	if err := p.expect(TokRBracket, "']'"); err != nil {
		return nil, err
	}
	return &MemberNode{Node: target, Property: first}, nil
}

func (p *Parser) parseArgList() ([]Node, error) {
	if err := p.expect(TokLParen, "'('"); err != nil {
		return nil, err
	}
	var args []Node
	for p.cur.Kind != TokRParen {
		arg, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		if p.cur.Kind == TokComma {
			if err := p.advance(); err != nil {
				return nil, err
			}
			continue
		}
		break
	}
	if err := p.expect(TokRParen, "')'"); err != nil {
		return nil, err
	}
	return args, nil
}

func (p *Parser) parsePrimary() (Node, error) {
	switch p.cur.Kind {
	case TokNumber:
		text := p.cur.Text
		if err := p.advance(); err != nil {
			return nil, err
		}
		d, err := decimal.NewFromString(text)
		if err != nil {
			return nil, p.errorf("invalid number %q", text)
		}
		return &NumberNode{Value: d}, nil

	case TokString:
		text := p.cur.Text
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &StringNode{Value: text}, nil

	case TokTemplate:
		parts := p.cur.Parts
		if err := p.advance(); err != nil {
			return nil, err
		}
		return p.buildTemplate(parts)

	case TokRoot:
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &RootNode{}, nil

	case TokPointer:
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &ClosureNode{Body: &PointerNode{}}, nil

	case TokLParen:
		if err := p.advance(); err != nil {
			return nil, err
		}
		inner, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if p.cur.Kind == TokDotDot {
			return p.parseIntervalTail(inner, false)
		}
		if err := p.expect(TokRParen, "')'"); err != nil {
			return nil, err
		}
		return &ParenthesizedNode{Inner: inner}, nil

	case TokLBracket:
		return p.parseArrayOrInterval()

	case TokLBrace:
		return p.parseObject()

	case TokIdent:
		return p.parseIdentOrCall()
	}
	return nil, p.errorf("unexpected token at %d", p.cur.Pos)
}

func (p *Parser) buildTemplate(parts []TemplatePart) (Node, error) {
	nodes := make([]Node, 0, len(parts))
	for _, part := range parts {
		if !part.IsExpr {
			nodes = append(nodes, &StringNode{Value: part.Text})
			continue
		}
		sub, err := Parse(part.Text)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, sub)
	}
	return &TemplateStringNode{Parts: nodes}, nil
}

// parseIntervalTail consumes the `..right` portion of an interval
// whose left bound and opening bracket have already been parsed, then
// the closing `]` (inclusive) or `)` (exclusive) bracket. leftInclusive
// reflects whether the opening bracket was `[` (true) or `(` (false).
func (p *Parser) parseIntervalTail(left Node, leftInclusive bool) (Node, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}
	right, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	rightInclusive := true
	switch p.cur.Kind {
	case TokRParen:
		rightInclusive = false
	case TokRBracket:
		rightInclusive = true
	default:
		return nil, p.errorf("expected ']' or ')' to close interval at %d", p.cur.Pos)
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	return &IntervalNode{Left: left, Right: right, LeftInclusive: leftInclusive, RightInclusive: rightInclusive}, nil
}

func (p *Parser) parseArrayOrInterval() (Node, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}
	if p.cur.Kind == TokRBracket {
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &ArrayNode{}, nil
	}

	first, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if p.cur.Kind == TokDotDot {
		return p.parseIntervalTail(first, true)
	}

	elements := []Node{first}
	for p.cur.Kind == TokComma {
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.cur.Kind == TokRBracket {
			break
		}
		el, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		elements = append(elements, el)
	}
	if err := p.expect(TokRBracket, "']'"); err != nil {
		return nil, err
	}
	return &ArrayNode{Elements: elements}, nil
}

func (p *Parser) parseObject() (Node, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}
	var entries []ObjectEntry
	for p.cur.Kind != TokRBrace {
		var key Node
		switch p.cur.Kind {
		case TokIdent:
			key = &StringNode{Value: p.cur.Text}
			if err := p.advance(); err != nil {
				return nil, err
			}
		case TokString:
			key = &StringNode{Value: p.cur.Text}
			if err := p.advance(); err != nil {
				return nil, err
			}
		default:
			return nil, p.errorf("expected object key at %d", p.cur.Pos)
		}
		if err := p.expect(TokColon, "':'"); err != nil {
			return nil, err
		}
		value, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		entries = append(entries, ObjectEntry{Key: key, Value: value})
		if p.cur.Kind == TokComma {
			if err := p.advance(); err != nil {
				return nil, err
			}
			continue
		}
		break
	}
	if err := p.expect(TokRBrace, "'}'"); err != nil {
		return nil, err
	}
	return &ObjectNode{Entries: entries}, nil
}

func (p *Parser) parseIdentOrCall() (Node, error) {
	name := p.cur.Text
	if err := p.advance(); err != nil {
		return nil, err
	}

	switch name {
	case "true":
		return &BoolNode{Value: true}, nil
	case "false":
		return &BoolNode{Value: false}, nil
	case "null":
		return &NullNode{}, nil
	}

	if p.cur.Kind != TokLParen {
		return &IdentifierNode{Name: name}, nil
	}

	args, err := p.parseArgList()
	if err != nil {
		return nil, err
	}
	kind, isClosure := closureFunctionKinds[name]
	if !isClosure {
		kind = FnPlain
	}
	return &FunctionCallNode{Name: name, Kind: kind, Args: args}, nil
}
