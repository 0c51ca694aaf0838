package calc

import (
	"fmt"
	"slices"
	"strings"
)

// TokenType classifies a lexed token
type TokenType int

const (
	TokenEOF TokenType = iota
	TokenEquals
	TokenNumber
	TokenString
	TokenBoolean
	TokenErrorLiteral
	TokenCell
	TokenRange
	TokenFunction
	TokenIdentifier
	TokenUnaryPrefixOp
	TokenUnaryPostfixOp
	TokenBinaryOp
	TokenComma
	TokenSemicolon
	TokenLeftParen
	TokenRightParen
	TokenLeftBrace
	TokenRightBrace
	TokenError
)

var tokenTypeNames = [...]string{
	TokenEOF:            "end of formula",
	TokenEquals:         "'='",
	TokenNumber:         "number",
	TokenString:         "string",
	TokenBoolean:        "boolean",
	TokenErrorLiteral:   "error literal",
	TokenCell:           "cell reference",
	TokenRange:          "range reference",
	TokenFunction:       "function",
	TokenIdentifier:     "name",
	TokenUnaryPrefixOp:  "unary operator",
	TokenUnaryPostfixOp: "'%'",
	TokenBinaryOp:       "operator",
	TokenComma:          "','",
	TokenSemicolon:      "';'",
	TokenLeftParen:      "'('",
	TokenRightParen:     "')'",
	TokenLeftBrace:      "'{'",
	TokenRightBrace:     "'}'",
	TokenError:          "error",
}

func (t TokenType) String() string {
	if int(t) < len(tokenTypeNames) {
		return tokenTypeNames[t]
	}
	return fmt.Sprintf("TokenType(%d)", int(t))
}

// runes the lexer dispatches on
const (
	charNull       = 0
	charTab        = '\t'
	charNewline    = '\n'
	charReturn     = '\r'
	charSpace      = ' '
	charQuote      = '"'
	charApostrophe = '\''
	charPercent    = '%'
	charAmpersand  = '&'
	charLParen     = '('
	charRParen     = ')'
	charLBrace     = '{'
	charRBrace     = '}'
	charAsterisk   = '*'
	charPlus       = '+'
	charComma      = ','
	charSemicolon  = ';'
	charMinus      = '-'
	charPeriod     = '.'
	charSlash      = '/'
	charColon      = ':'
	charLess       = '<'
	charEqual      = '='
	charGreater    = '>'
	charCaret      = '^'
	charUnderscore = '_'
	charExclaim    = '!'
	charDollar     = '$'
	charHash       = '#'
)

// TokenState is the position in the grammar after the last token, used to
// reject token sequences that can never parse
type TokenState int

const (
	StateStart TokenState = iota
	StateAfterEquals
	StateAfterValue
	StateAfterOperator
	StateAfterLeftParen
	StateAfterRightParen
	StateAfterComma
	StateAfterFunction
	StateAfterLeftBrace
	StateAfterSemicolon
)

// valueStart lists the tokens that may begin an operand
var valueStart = map[TokenType]bool{
	TokenNumber:        true,
	TokenString:        true,
	TokenBoolean:       true,
	TokenErrorLiteral:  true,
	TokenCell:          true,
	TokenRange:         true,
	TokenFunction:      true,
	TokenIdentifier:    true,
	TokenLeftParen:     true,
	TokenLeftBrace:     true,
	TokenUnaryPrefixOp: true,
}

// afterOperand lists the tokens that may follow a complete operand
var afterOperand = map[TokenType]bool{
	TokenBinaryOp:       true,
	TokenUnaryPostfixOp: true,
	TokenRightParen:     true,
	TokenRightBrace:     true,
	TokenComma:          true, // only in function args or arrays, checked by the parser
	TokenSemicolon:      true,
	TokenEOF:            true,
}

func with(base map[TokenType]bool, extra ...TokenType) map[TokenType]bool {
	m := make(map[TokenType]bool, len(base)+len(extra))
	for k, v := range base {
		m[k] = v
	}
	for _, t := range extra {
		m[t] = true
	}
	return m
}

// tokenTransitions lists the token types allowed in each state
var tokenTransitions = map[TokenState]map[TokenType]bool{
	StateStart:           with(valueStart, TokenEquals), // the '=' prefix is optional
	StateAfterEquals:     valueStart,
	StateAfterValue:      afterOperand,
	StateAfterOperator:   valueStart,
	StateAfterLeftParen:  with(valueStart, TokenRightParen), // empty parens for PI()
	StateAfterRightParen: afterOperand,
	StateAfterComma:      valueStart,
	StateAfterFunction:   {TokenLeftParen: true},
	StateAfterLeftBrace:  valueStart,
	StateAfterSemicolon:  valueStart,
}

// Token represents a lexical token. Pos and End are rune offsets into the
// input, so the raw text of any token is runes[Pos:End].
type Token struct {
	Type  TokenType
	Value string
	Pos   int
	End   int
}

// errorLiterals holds the error codes longest first so that scanning picks
// the longest match
var errorLiterals = func() []string {
	codes := make([]string, 0, len(errorCodes))
	for _, code := range errorCodes {
		codes = append(codes, code)
	}
	slices.SortFunc(codes, func(a, b string) int {
		if len(a) != len(b) {
			return len(b) - len(a)
		}
		return strings.Compare(a, b)
	})
	return codes
}()

// Lexer turns formula text into tokens
type Lexer struct {
	input      string
	runes      []rune // UTF-8 aware representation
	pos        int
	state      TokenState
	parenDepth int
	braceDepth int
	tokens     []Token
}

// NewLexer creates a new lexer for the given formula input
func NewLexer(input string) *Lexer {
	return &Lexer{
		input: input,
		runes: []rune(input), // runes for UTF-8 support. could do without but a real pain
		state: StateStart,
	}
}

// Tokenize tokenizes the entire input. the returned error is a usage error
// carrying the offending position.
func (l *Lexer) Tokenize() ([]Token, error) {
	for {
		l.skipWhitespace()
		if l.pos >= len(l.runes) {
			break
		}
		tok := l.nextToken()
		if tok.Type == TokenError {
			return nil, l.errorAt(tok.Pos, tok.Value)
		}
		if !l.validateTransition(tok.Type) {
			return nil, l.errorAt(tok.Pos, "unexpected "+tok.Type.String()+" "+quoteText(l.substring(tok.Pos, tok.End)))
		}
		l.tokens = append(l.tokens, tok)
		l.updateState(tok.Type)
	}

	if !l.validateTransition(TokenEOF) {
		return nil, l.errorAt(l.pos, "unexpected end of formula")
	}
	if l.parenDepth > 0 {
		return nil, l.errorAt(l.pos, "unbalanced parentheses: missing closing parenthesis")
	}
	if l.braceDepth > 0 {
		return nil, l.errorAt(l.pos, "unbalanced braces: missing closing brace")
	}

	l.tokens = append(l.tokens, Token{Type: TokenEOF, Pos: l.pos, End: l.pos})
	return l.tokens, nil
}

func (l *Lexer) errorAt(pos int, msg string) error {
	return NewApplicationError(InvalidArgument, fmt.Sprintf("%s at position %d in %s", msg, pos, quoteText(l.input)))
}

// validateTransition rejects a token the current state does not allow
func (l *Lexer) validateTransition(tokenType TokenType) bool {
	validTokens, exists := tokenTransitions[l.state]
	if !exists {
		return false
	}
	return validTokens[tokenType]
}

// updateState moves to the state reached after a token
func (l *Lexer) updateState(tokenType TokenType) {
	switch tokenType {
	case TokenEquals:
		l.state = StateAfterEquals
	case TokenNumber, TokenString, TokenBoolean, TokenErrorLiteral, TokenCell, TokenRange, TokenIdentifier:
		l.state = StateAfterValue
	case TokenUnaryPrefixOp, TokenBinaryOp:
		l.state = StateAfterOperator
	case TokenUnaryPostfixOp:
		// postfix operators don't change state
	case TokenLeftParen:
		l.state = StateAfterLeftParen
	case TokenRightParen, TokenRightBrace:
		l.state = StateAfterRightParen
	case TokenComma:
		l.state = StateAfterComma
	case TokenSemicolon:
		l.state = StateAfterSemicolon
	case TokenLeftBrace:
		l.state = StateAfterLeftBrace
	case TokenFunction:
		l.state = StateAfterFunction
	}
}

// nextToken scans one token starting at the current position
func (l *Lexer) nextToken() Token {
	startPos := l.pos
	ch := l.current()

	if ch == charQuote {
		return l.scanString()
	}
	if ch == charApostrophe {
		return l.scanQuotedSheetRef()
	}
	if ch == charHash {
		return l.scanErrorLiteral()
	}
	if l.isDigit(ch) || (ch == charPeriod && l.isDigit(l.peek(1))) {
		return l.scanNumber()
	}

	single := func(t TokenType) Token {
		l.pos++
		return Token{Type: t, Value: string(ch), Pos: startPos, End: l.pos}
	}

	switch ch {
	case charLParen:
		l.parenDepth++
		return single(TokenLeftParen)
	case charRParen:
		l.parenDepth--
		if l.parenDepth < 0 {
			return Token{Type: TokenError, Value: "unexpected closing parenthesis", Pos: startPos}
		}
		return single(TokenRightParen)
	case charLBrace:
		if l.braceDepth > 0 {
			return Token{Type: TokenError, Value: "nested array constants are not allowed", Pos: startPos}
		}
		l.braceDepth++
		return single(TokenLeftBrace)
	case charRBrace:
		l.braceDepth--
		if l.braceDepth < 0 {
			return Token{Type: TokenError, Value: "unexpected closing brace", Pos: startPos}
		}
		return single(TokenRightBrace)
	case charComma:
		return single(TokenComma)
	case charSemicolon:
		return single(TokenSemicolon)
	case charPlus, charMinus:
		if l.isUnaryContext() {
			return single(TokenUnaryPrefixOp)
		}
		return single(TokenBinaryOp)
	case charAsterisk, charSlash, charCaret, charAmpersand:
		return single(TokenBinaryOp)
	case charPercent:
		return single(TokenUnaryPostfixOp)
	case charEqual:
		// distinguish between formula prefix = and comparison operator =
		if l.state == StateStart {
			return single(TokenEquals)
		}
		return single(TokenBinaryOp)
	case charLess, charGreater:
		return l.scanComparison()
	}

	if l.isAlpha(ch) || ch == charUnderscore || ch == charDollar {
		return l.scanIdentifierOrCell()
	}

	l.pos++
	return Token{Type: TokenError, Value: "unexpected character " + quoteText(string(ch)), Pos: startPos}
}

// cursor helpers

// substring returns runes[start:end] as a string
func (l *Lexer) substring(start, end int) string {
	if start < 0 || end > len(l.runes) || start > end {
		return ""
	}
	return string(l.runes[start:end])
}

func (l *Lexer) current() rune {
	if l.pos >= len(l.runes) {
		return charNull
	}
	return l.runes[l.pos]
}

func (l *Lexer) peek(offset int) rune {
	pos := l.pos + offset
	if pos >= len(l.runes) || pos < 0 {
		return charNull
	}
	return l.runes[pos]
}

func (l *Lexer) skipWhitespace() {
	for l.pos < len(l.runes) {
		switch l.current() {
		case charSpace, charTab, charNewline, charReturn:
			l.pos++
		default:
			return
		}
	}
}

func (l *Lexer) isDigit(ch rune) bool {
	return ch >= '0' && ch <= '9'
}

func (l *Lexer) isAlpha(ch rune) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

// isWordChar covers names, cell addresses and dotted function names
func (l *Lexer) isWordChar(ch rune) bool {
	return l.isAlpha(ch) || l.isDigit(ch) || ch == charUnderscore || ch == charPeriod || ch == charDollar
}

// scanNumber accepts 12, 1.5, .5 and 1e-3 forms
func (l *Lexer) scanNumber() Token {
	startPos := l.pos

	for l.isDigit(l.current()) {
		l.pos++
	}

	if l.current() == charPeriod {
		l.pos++
		for l.isDigit(l.current()) {
			l.pos++
		}
	}

	// scientific notation needs at least one exponent digit
	if l.current() == 'e' || l.current() == 'E' {
		savedPos := l.pos
		l.pos++
		if l.current() == charPlus || l.current() == charMinus {
			l.pos++
		}
		if !l.isDigit(l.current()) {
			l.pos = savedPos
		} else {
			for l.isDigit(l.current()) {
				l.pos++
			}
		}
	}

	return Token{Type: TokenNumber, Value: l.substring(startPos, l.pos), Pos: startPos, End: l.pos}
}

// scanString reads a quoted literal where "" stands for one quote
func (l *Lexer) scanString() Token {
	startPos := l.pos
	l.pos++ // consume opening quote

	var result []rune
	for l.pos < len(l.runes) {
		ch := l.current()
		if ch != charQuote {
			result = append(result, ch)
			l.pos++
			continue
		}
		if l.peek(1) == charQuote {
			result = append(result, charQuote)
			l.pos += 2
			continue
		}
		l.pos++ // consume closing quote
		return Token{Type: TokenString, Value: string(result), Pos: startPos, End: l.pos}
	}

	return Token{Type: TokenError, Value: "unclosed string literal", Pos: startPos}
}

// scanErrorLiteral matches error codes like #N/A case-insensitively and
// yields the canonical code
func (l *Lexer) scanErrorLiteral() Token {
	startPos := l.pos
	rest := l.substring(l.pos, len(l.runes))
	for _, code := range errorLiterals {
		if len(rest) >= len(code) && strings.EqualFold(rest[:len(code)], code) {
			l.pos += len([]rune(code))
			return Token{Type: TokenErrorLiteral, Value: code, Pos: startPos, End: l.pos}
		}
	}
	return Token{Type: TokenError, Value: "unknown error literal", Pos: startPos}
}

// scanIdentifierOrCell scans identifiers, functions, cells, ranges, booleans
// and unquoted sheet prefixes
func (l *Lexer) scanIdentifierOrCell() Token {
	startPos := l.pos
	for l.isWordChar(l.current()) {
		l.pos++
	}
	word := l.substring(startPos, l.pos)
	hasDollar := strings.ContainsRune(word, charDollar)

	if l.current() == charExclaim && !hasDollar {
		l.pos++
		return l.scanSheetAddress(startPos)
	}

	// a name followed by '(' is a function call even if it looks like a
	// cell, as with LOG10
	if l.current() == charLParen && !hasDollar {
		return Token{Type: TokenFunction, Value: asciiUpper(word), Pos: startPos, End: l.pos}
	}

	if _, _, _, _, ok := parseA1(word); ok {
		return l.scanRangeTail(startPos)
	}

	if hasDollar {
		return Token{Type: TokenError, Value: "invalid cell reference " + quoteText(word), Pos: startPos}
	}

	switch upper := asciiUpper(word); upper {
	case "TRUE", "FALSE":
		return Token{Type: TokenBoolean, Value: upper, Pos: startPos, End: l.pos}
	}

	// it's an identifier (possibly a named range)
	return Token{Type: TokenIdentifier, Value: word, Pos: startPos, End: l.pos}
}

// scanRangeTail finishes a cell token that started at startPos, extending
// it to a range when ':' and a second cell follow
func (l *Lexer) scanRangeTail(startPos int) Token {
	if l.current() != charColon {
		return Token{Type: TokenCell, Value: l.substring(startPos, l.pos), Pos: startPos, End: l.pos}
	}
	savedPos := l.pos
	l.pos++ // consume ':'
	cellStart := l.pos
	for l.isWordChar(l.current()) {
		l.pos++
	}
	if _, _, _, _, ok := parseA1(l.substring(cellStart, l.pos)); !ok {
		l.pos = savedPos
		return Token{Type: TokenError, Value: "invalid range end", Pos: startPos}
	}
	return Token{Type: TokenRange, Value: l.substring(startPos, l.pos), Pos: startPos, End: l.pos}
}

// scanSheetAddress scans the address after "Sheet!". the token value keeps
// the sheet prefix.
func (l *Lexer) scanSheetAddress(startPos int) Token {
	cellStart := l.pos
	for l.isWordChar(l.current()) {
		l.pos++
	}
	if _, _, _, _, ok := parseA1(l.substring(cellStart, l.pos)); !ok {
		return Token{Type: TokenError, Value: "invalid cell reference after sheet name", Pos: startPos}
	}
	return l.scanRangeTail(startPos)
}

// scanQuotedSheetRef scans 'My Sheet'!A1 style references
func (l *Lexer) scanQuotedSheetRef() Token {
	startPos := l.pos
	l.pos++ // consume opening quote
	for l.pos < len(l.runes) {
		if l.current() == charApostrophe {
			if l.peek(1) == charApostrophe {
				l.pos += 2
				continue
			}
			break
		}
		l.pos++
	}
	if l.pos >= len(l.runes) {
		return Token{Type: TokenError, Value: "unclosed sheet name", Pos: startPos}
	}
	l.pos++ // consume closing quote
	if l.current() != charExclaim {
		return Token{Type: TokenError, Value: "expected '!' after quoted sheet name", Pos: startPos}
	}
	l.pos++
	return l.scanSheetAddress(startPos)
}

// scanComparison scans <, <=, <>, > and >=
func (l *Lexer) scanComparison() Token {
	startPos := l.pos
	ch := l.current()
	l.pos++
	switch next := l.current(); {
	case next == charEqual:
		l.pos++
	case ch == charLess && next == charGreater:
		l.pos++
	}
	return Token{Type: TokenBinaryOp, Value: l.substring(startPos, l.pos), Pos: startPos, End: l.pos}
}

// isUnaryContext reports whether + or - here is a sign rather than an operator
func (l *Lexer) isUnaryContext() bool {
	switch l.state {
	case StateStart, StateAfterEquals, StateAfterOperator, StateAfterLeftParen,
		StateAfterComma, StateAfterLeftBrace, StateAfterSemicolon:
		return true
	default:
		return false
	}
}
