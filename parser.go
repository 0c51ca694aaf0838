package calc

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// NodePosition is the rune span of a node in the formula text
type NodePosition struct {
	Start int
	End   int
}

// Node is an expression tree node. String renders normalized formula text
// without the leading '='.
type Node interface {
	Eval(ctx *evalContext) Value
	GetPosition() NodePosition
	String() string
}

// BinaryOp represents binary operators in AST nodes
type BinaryOp int

const (
	BinOpAdd BinaryOp = iota
	BinOpSubtract
	BinOpMultiply
	BinOpDivide
	BinOpPower
	BinOpConcat
	BinOpEqual
	BinOpNotEqual
	BinOpLess
	BinOpLessEqual
	BinOpGreater
	BinOpGreaterEqual
)

var binaryOpSymbols = map[BinaryOp]string{
	BinOpAdd:          "+",
	BinOpSubtract:     "-",
	BinOpMultiply:     "*",
	BinOpDivide:       "/",
	BinOpPower:        "^",
	BinOpConcat:       "&",
	BinOpEqual:        "=",
	BinOpNotEqual:     "<>",
	BinOpLess:         "<",
	BinOpLessEqual:    "<=",
	BinOpGreater:      ">",
	BinOpGreaterEqual: ">=",
}

func (op BinaryOp) String() string {
	return binaryOpSymbols[op]
}

// UnaryOp represents unary operators in AST nodes
type UnaryOp int

const (
	UnaryOpPlus UnaryOp = iota
	UnaryOpMinus
	UnaryOpPercent
)

// NumberNode represents a numeric literal
type NumberNode struct {
	Value    float64
	Position NodePosition
}

func (n *NumberNode) GetPosition() NodePosition { return n.Position }
func (n *NumberNode) String() string            { return formatNumber(n.Value) }

// StringNode represents a string literal
type StringNode struct {
	Value    string
	Position NodePosition
}

func (n *StringNode) GetPosition() NodePosition { return n.Position }
func (n *StringNode) String() string            { return quoteText(n.Value) }

// BooleanNode represents a boolean literal
type BooleanNode struct {
	Value    bool
	Position NodePosition
}

func (n *BooleanNode) GetPosition() NodePosition { return n.Position }

func (n *BooleanNode) String() string {
	if n.Value {
		return "TRUE"
	}
	return "FALSE"
}

// ErrorNode represents an error literal such as #N/A
type ErrorNode struct {
	Kind     ErrorKind
	Position NodePosition
}

func (n *ErrorNode) GetPosition() NodePosition { return n.Position }
func (n *ErrorNode) String() string            { return ErrorCode(n.Kind) }

// ArrayNode represents an array constant. all rows have the same length.
type ArrayNode struct {
	Rows     [][]Node
	Position NodePosition
}

func (n *ArrayNode) GetPosition() NodePosition { return n.Position }

func (n *ArrayNode) String() string {
	var sb strings.Builder
	sb.WriteByte('{')
	for r, row := range n.Rows {
		if r > 0 {
			sb.WriteByte(';')
		}
		for c, el := range row {
			if c > 0 {
				sb.WriteByte(',')
			}
			sb.WriteString(el.String())
		}
	}
	sb.WriteByte('}')
	return sb.String()
}

// CellRefNode represents a single cell reference
type CellRefNode struct {
	Ref      CellReference
	Position NodePosition
}

func (n *CellRefNode) GetPosition() NodePosition { return n.Position }
func (n *CellRefNode) String() string            { return n.Ref.String() }

// RangeNode represents a rectangular range reference
type RangeNode struct {
	Range    Range
	Position NodePosition
}

func (n *RangeNode) GetPosition() NodePosition { return n.Position }
func (n *RangeNode) String() string            { return n.Range.String() }

// NameNode represents a reference to a named range
type NameNode struct {
	Name     string
	Position NodePosition
}

func (n *NameNode) GetPosition() NodePosition { return n.Position }
func (n *NameNode) String() string            { return n.Name }

// UnaryOpNode represents a prefix sign or the postfix percent
type UnaryOpNode struct {
	Op       UnaryOp
	Operand  Node
	Position NodePosition
}

func (n *UnaryOpNode) GetPosition() NodePosition { return n.Position }

func (n *UnaryOpNode) String() string {
	switch n.Op {
	case UnaryOpMinus:
		return "-" + n.Operand.String()
	case UnaryOpPercent:
		return n.Operand.String() + "%"
	}
	return "+" + n.Operand.String()
}

// BinaryOpNode represents an infix operation
type BinaryOpNode struct {
	Op       BinaryOp
	Left     Node
	Right    Node
	Position NodePosition
}

func (n *BinaryOpNode) GetPosition() NodePosition { return n.Position }

// String parenthesizes every operation so the rendering is unambiguous
func (n *BinaryOpNode) String() string {
	return "(" + n.Left.String() + n.Op.String() + n.Right.String() + ")"
}

// FunctionCallNode represents a function call. Desc is resolved when the
// formula is parsed; it is nil for unknown names, which evaluate to #NAME?.
type FunctionCallNode struct {
	Name     string
	Args     []Node
	Desc     *FunctionDescriptor
	Position NodePosition
}

func (n *FunctionCallNode) GetPosition() NodePosition { return n.Position }

func (n *FunctionCallNode) String() string {
	args := make([]string, len(n.Args))
	for i, a := range n.Args {
		args[i] = a.String()
	}
	return n.Name + "(" + strings.Join(args, ",") + ")"
}

// sharedDefaultRegistry backs parsing when no registry is supplied
var sharedDefaultRegistry = sync.OnceValue(DefaultRegistry)

// Parse parses formula text into an expression tree, resolving function
// names against registry (the built-in library when nil). the leading '='
// is optional. malformed text and wrong function arity are usage errors.
func Parse(formula string, registry *Registry) (Node, error) {
	if registry == nil {
		registry = sharedDefaultRegistry()
	}
	tokens, err := NewLexer(formula).Tokenize()
	if err != nil {
		return nil, err
	}
	p := &Parser{tokens: tokens, registry: registry, formula: formula}
	return p.Parse()
}

// Parser parses tokens into an AST
type Parser struct {
	tokens   []Token
	pos      int
	registry *Registry
	formula  string
}

func (p *Parser) peek() Token {
	if p.pos >= len(p.tokens) {
		return Token{Type: TokenEOF}
	}
	return p.tokens[p.pos]
}

func (p *Parser) next() Token {
	tok := p.peek()
	if p.pos < len(p.tokens) {
		p.pos++
	}
	return tok
}

func (p *Parser) errorAt(tok Token, format string, args ...any) error {
	return NewApplicationError(InvalidArgument,
		fmt.Sprintf(format, args...)+fmt.Sprintf(" at position %d in %s", tok.Pos, quoteText(p.formula)))
}

// Parse parses the tokens into an AST
func (p *Parser) Parse() (Node, error) {
	if p.peek().Type == TokenEquals {
		p.pos++
	}
	if p.peek().Type == TokenEOF {
		return nil, p.errorAt(p.peek(), "empty formula")
	}

	node, err := p.parseComparison()
	if err != nil {
		return nil, err
	}

	if tok := p.peek(); tok.Type != TokenEOF {
		return nil, p.errorAt(tok, "unexpected %s %s after expression", tok.Type, quoteText(tok.Value))
	}
	return node, nil
}

func span(left, right Node) NodePosition {
	return NodePosition{Start: left.GetPosition().Start, End: right.GetPosition().End}
}

// binaryLevel parses one left associative precedence level
func (p *Parser) binaryLevel(ops map[string]BinaryOp, operand func() (Node, error)) (Node, error) {
	left, err := operand()
	if err != nil {
		return nil, err
	}
	for {
		tok := p.peek()
		if tok.Type != TokenBinaryOp {
			return left, nil
		}
		op, ok := ops[tok.Value]
		if !ok {
			return left, nil
		}
		p.pos++
		right, err := operand()
		if err != nil {
			return nil, err
		}
		left = &BinaryOpNode{Op: op, Left: left, Right: right, Position: span(left, right)}
	}
}

var (
	comparisonOps = map[string]BinaryOp{
		"=": BinOpEqual, "<>": BinOpNotEqual,
		"<": BinOpLess, "<=": BinOpLessEqual,
		">": BinOpGreater, ">=": BinOpGreaterEqual,
	}
	concatOps         = map[string]BinaryOp{"&": BinOpConcat}
	additionOps       = map[string]BinaryOp{"+": BinOpAdd, "-": BinOpSubtract}
	multiplicationOps = map[string]BinaryOp{"*": BinOpMultiply, "/": BinOpDivide}
)

// parseComparison handles comparison operators (lowest precedence)
func (p *Parser) parseComparison() (Node, error) {
	return p.binaryLevel(comparisonOps, p.parseConcatenation)
}

// parseConcatenation handles string concatenation operator
func (p *Parser) parseConcatenation() (Node, error) {
	return p.binaryLevel(concatOps, p.parseAddition)
}

// parseAddition handles addition and subtraction
func (p *Parser) parseAddition() (Node, error) {
	return p.binaryLevel(additionOps, p.parseMultiplication)
}

// parseMultiplication handles multiplication and division
func (p *Parser) parseMultiplication() (Node, error) {
	return p.binaryLevel(multiplicationOps, p.parseUnary)
}

// parseUnary handles prefix signs. they bind looser than '^', so -2^2 is
// -(2^2).
func (p *Parser) parseUnary() (Node, error) {
	tok := p.peek()
	if tok.Type != TokenUnaryPrefixOp {
		return p.parsePower()
	}
	p.pos++
	operand, err := p.parseUnary() // recurse for chained unary operators
	if err != nil {
		return nil, err
	}
	op := UnaryOpPlus
	if tok.Value == "-" {
		op = UnaryOpMinus
	}
	return &UnaryOpNode{
		Op:       op,
		Operand:  operand,
		Position: NodePosition{Start: tok.Pos, End: operand.GetPosition().End},
	}, nil
}

// parsePower handles exponentiation, right-associative. the exponent may
// carry its own sign, as in 2^-1.
func (p *Parser) parsePower() (Node, error) {
	left, err := p.parsePostfix()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.Type != TokenBinaryOp || tok.Value != "^" {
		return left, nil
	}
	p.pos++
	right, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	return &BinaryOpNode{Op: BinOpPower, Left: left, Right: right, Position: span(left, right)}, nil
}

// parsePostfix handles postfix operators (percent)
func (p *Parser) parsePostfix() (Node, error) {
	node, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for p.peek().Type == TokenUnaryPostfixOp {
		tok := p.next()
		node = &UnaryOpNode{
			Op:       UnaryOpPercent,
			Operand:  node,
			Position: NodePosition{Start: node.GetPosition().Start, End: tok.End},
		}
	}
	return node, nil
}

// parsePrimary handles primary expressions (literals, references,
// functions, parentheses, array constants)
func (p *Parser) parsePrimary() (Node, error) {
	tok := p.peek()
	pos := NodePosition{Start: tok.Pos, End: tok.End}

	switch tok.Type {
	case TokenNumber, TokenString, TokenBoolean, TokenErrorLiteral:
		p.pos++
		return p.literal(tok)

	case TokenCell:
		p.pos++
		ref, err := ParseCellReference(tok.Value)
		if err != nil {
			return nil, p.errorAt(tok, "invalid cell reference %s", quoteText(tok.Value))
		}
		return &CellRefNode{Ref: ref, Position: pos}, nil

	case TokenRange:
		p.pos++
		rng, err := ParseRange(tok.Value)
		if err != nil {
			return nil, p.errorAt(tok, "invalid range %s", quoteText(tok.Value))
		}
		return &RangeNode{Range: rng, Position: pos}, nil

	case TokenIdentifier:
		p.pos++
		return &NameNode{Name: tok.Value, Position: pos}, nil

	case TokenFunction:
		return p.parseFunctionCall()

	case TokenLeftBrace:
		return p.parseArray()

	case TokenLeftParen:
		p.pos++
		node, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		if p.peek().Type != TokenRightParen {
			return nil, p.errorAt(p.peek(), "expected closing parenthesis")
		}
		p.pos++
		return node, nil
	}

	return nil, p.errorAt(tok, "unexpected %s", tok.Type)
}

// literal builds the node for a constant token
func (p *Parser) literal(tok Token) (Node, error) {
	pos := NodePosition{Start: tok.Pos, End: tok.End}
	switch tok.Type {
	case TokenNumber:
		val, err := strconv.ParseFloat(tok.Value, 64)
		if err != nil {
			return nil, p.errorAt(tok, "invalid number %s", tok.Value)
		}
		return &NumberNode{Value: val, Position: pos}, nil
	case TokenString:
		return &StringNode{Value: tok.Value, Position: pos}, nil
	case TokenBoolean:
		return &BooleanNode{Value: tok.Value == "TRUE", Position: pos}, nil
	case TokenErrorLiteral:
		kind, _ := ErrorKindFromCode(tok.Value)
		return &ErrorNode{Kind: kind, Position: pos}, nil
	}
	return nil, p.errorAt(tok, "expected a constant, got %s", tok.Type)
}

// parseArray parses {1,2;3,4}. elements are constants, numbers may carry
// a sign.
func (p *Parser) parseArray() (Node, error) {
	open := p.next()
	var rows [][]Node
	row := []Node{}
	for {
		el, err := p.parseArrayElement()
		if err != nil {
			return nil, err
		}
		row = append(row, el)

		tok := p.next()
		switch tok.Type {
		case TokenComma:
			continue
		case TokenSemicolon, TokenRightBrace:
			if len(rows) > 0 && len(row) != len(rows[0]) {
				return nil, p.errorAt(tok, "array constant rows must have the same length")
			}
			rows = append(rows, row)
			row = []Node{}
			if tok.Type == TokenRightBrace {
				return &ArrayNode{Rows: rows, Position: NodePosition{Start: open.Pos, End: tok.End}}, nil
			}
		default:
			return nil, p.errorAt(tok, "expected ',', ';' or '}' in array constant")
		}
	}
}

func (p *Parser) parseArrayElement() (Node, error) {
	tok := p.next()
	if tok.Type != TokenUnaryPrefixOp {
		return p.literal(tok)
	}
	num := p.next()
	if num.Type != TokenNumber {
		return nil, p.errorAt(num, "expected a number after sign in array constant")
	}
	node, err := p.literal(num)
	if err != nil {
		return nil, err
	}
	n := node.(*NumberNode)
	if tok.Value == "-" {
		n.Value = -n.Value
	}
	n.Position.Start = tok.Pos
	return n, nil
}

// parseFunctionCall parses a function call and resolves its descriptor
func (p *Parser) parseFunctionCall() (Node, error) {
	funcTok := p.next()
	if p.next().Type != TokenLeftParen {
		return nil, p.errorAt(funcTok, "expected '(' after function name")
	}

	args := []Node{}
	if p.peek().Type != TokenRightParen {
		for {
			arg, err := p.parseComparison()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			if p.peek().Type != TokenComma {
				break
			}
			p.pos++
		}
	}
	closing := p.next()
	if closing.Type != TokenRightParen {
		return nil, p.errorAt(closing, "expected ',' or ')' in function arguments")
	}

	node := &FunctionCallNode{
		Name:     funcTok.Value,
		Args:     args,
		Position: NodePosition{Start: funcTok.Pos, End: closing.End},
	}
	if desc, errv := p.registry.Resolve(funcTok.Value); errv == nil {
		if !desc.AcceptsArity(len(args)) {
			return nil, p.errorAt(funcTok, "%s takes %s arguments, got %d", desc.Name, desc.arityText(), len(args))
		}
		node.Desc = desc
	}
	return node, nil
}

// Walk visits node and its descendants depth-first, left to right, until
// fn returns false
func Walk(node Node, fn func(Node) bool) bool {
	if !fn(node) {
		return false
	}
	var children []Node
	switch n := node.(type) {
	case *UnaryOpNode:
		children = []Node{n.Operand}
	case *BinaryOpNode:
		children = []Node{n.Left, n.Right}
	case *FunctionCallNode:
		children = n.Args
	case *ArrayNode:
		for _, row := range n.Rows {
			children = append(children, row...)
		}
	}
	for _, c := range children {
		if !Walk(c, fn) {
			return false
		}
	}
	return true
}

// IsVolatile reports whether the tree calls a volatile function such as
// NOW or RAND
func IsVolatile(node Node) bool {
	volatile := false
	Walk(node, func(n Node) bool {
		if call, ok := n.(*FunctionCallNode); ok && call.Desc != nil && call.Desc.Volatile {
			volatile = true
		}
		return !volatile
	})
	return volatile
}
