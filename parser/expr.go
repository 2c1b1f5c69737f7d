package parser

import (
	"strings"

	"github.com/ome-lang/ome/ast"
	"github.com/ome-lang/ome/errs"
	"github.com/ome-lang/ome/source"
)

// parseStatementsUntilPipeOrEnd parses a method body: a sequence of
// statements that ends at the next `|` (the following method's
// signature) or at end of input/enclosing delimiter.
func (p *Parser) parseStatementsUntilPipeOrEnd() (ast.Node, error) {
	return p.parseStatements(func() bool {
		p.skipSpace()
		return p.peek() == '|' || p.peek() == eof || p.peek() == '}'
	})
}

// parseStatements parses `statement (SEP statement)*`, stopping when stop
// reports true or the current token is no longer available at this
// sub-expression's indentation level.
func (p *Parser) parseStatements(stop func() bool) (ast.Node, error) {
	start := p.r.Cursor()
	var items []ast.Node
	for {
		p.skipSpace()
		if stop() || !p.r.TokenAvailable() {
			break
		}
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		items = append(items, stmt)

		p.skipConsumableSpace()
		if p.peek() == ';' || p.peek() == '.' {
			p.advance()
			continue
		}
		p.skipSpace()
		if stop() || !p.r.TokenAvailable() {
			break
		}
	}
	if len(items) == 1 {
		return items[0], nil
	}
	return ast.NewSequence(items, source.NewRange(start, p.r.Cursor())), nil
}

// skipConsumableSpace consumes spaces and tabs only (not comments or
// newlines), so it never crosses a statement boundary, leaving a
// following separator or newline intact for the caller to inspect.
func (p *Parser) skipConsumableSpace() {
	for p.peek() == ' ' || p.peek() == '\t' {
		p.advance()
	}
}

// parseStatement parses one expression statement. It does not recognise
// assignment (`NAME '=' expr`); `NAME = expr` definitions are parsed only
// in a block's leading slot list (parseBlock's tryParseLocalDef).
func (p *Parser) parseStatement() (ast.Node, error) {
	return p.parseExpr()
}

// parseExpr parses `unaryexpr (KEYWORD unaryexpr (',' unaryexpr)*)+?`: an
// optional single keyword message send chained onto a unary expression
// chain, with comma-separated extra positional arguments.
func (p *Parser) parseExpr() (ast.Node, error) {
	start := p.r.Cursor()
	recv, err := p.parseUnaryExpr()
	if err != nil {
		return nil, err
	}

	p.skipSpace()
	if !p.lookaheadKeyword() {
		return recv, nil
	}

	var (
		sb   strings.Builder
		args []ast.Node
	)
	tbStart := p.r.Location()
	firstColonOffset := -1
	first := true
	for p.lookaheadKeyword() {
		kw, _, err := p.parseKeywordPart(first)
		first = false
		if err != nil {
			return nil, err
		}
		if err := p.expectRune(':'); err != nil {
			return nil, err
		}
		if firstColonOffset < 0 {
			firstColonOffset = sb.Len() + len(kw)
		}
		sb.WriteString(kw)
		sb.WriteString(":")

		arg, err := p.parseUnaryExpr()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)

		for {
			p.skipSpace()
			if p.peek() != ',' {
				break
			}
			p.advance()
			arg, err := p.parseUnaryExpr()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			sb.WriteString(",")
		}
		p.skipSpace()
	}

	symbol := sb.String()
	if ast.IsPrivateSymbol(symbol) && !isSelfRef(recv) {
		return nil, errs.Located{
			Cat:     errs.CategoryParse,
			Message: "private message `" + symbol + "` cannot be sent to an explicit receiver",
			Stream:  p.r.StreamName(),
			Span:    source.Span{Start: tbStart, End: p.r.Location()},
			Line:    p.r.CurrentLineText(),
		}
	}
	underline := underlineWidth(symbol, firstColonOffset)
	tb := ast.TraceBackInfo{StreamName: p.r.StreamName(), Span: source.Span{Start: tbStart, End: p.r.Location()}, Underline: underline}
	return ast.NewSend(recv, symbol, args, source.NewRange(start, p.r.Cursor()), tb), nil
}

// isSelfRef reports whether n is the bare, unresolved reference to self
// produced by parsing the reserved word `self` with no receiver.
func isSelfRef(n ast.Node) bool {
	send, ok := n.(*ast.Send)
	return ok && send.Receiver == nil && send.Symbol == "self" && len(send.Args) == 0
}

// underlineWidth computes the caret width for a traceback entry: the
// position of the first `:` in keyword symbols (for alignment with the
// first keyword), else the symbol's length, minimum 1 (spec.md §4.5).
func underlineWidth(symbol string, firstColonOffset int) int {
	if firstColonOffset >= 0 {
		if firstColonOffset < 1 {
			return 1
		}
		return firstColonOffset
	}
	if len(symbol) < 1 {
		return 1
	}
	return len(symbol)
}

// parseUnaryExpr parses `atom NAME*`: an atom followed by zero or more
// unary message sends.
func (p *Parser) parseUnaryExpr() (ast.Node, error) {
	start := p.r.Cursor()
	recv, err := p.parseAtom()
	if err != nil {
		return nil, err
	}
	for {
		p.skipSpace()
		if (!isNameStart(p.peek()) && p.peek() != '~') || p.lookaheadKeyword() {
			break
		}
		nameStart := p.r.Cursor()
		loc := p.r.Location()
		name, _, err := p.parseName2()
		if err != nil {
			return nil, err
		}
		if isReserved(name) {
			// Reserved names in expression position resolve to the
			// matching built-in reference (self/true/false/nil) rather
			// than a unary send; the resolver handles the actual
			// binding via a dedicated reference node represented here
			// as a zero-argument Send with no receiver.
			recv = ast.NewSend(nil, name, nil, source.NewRange(nameStart, p.r.Cursor()), ast.TraceBackInfo{
				StreamName: p.r.StreamName(),
				Span:       source.Span{Start: loc, End: p.r.Location()},
				Underline:  1,
			})
			continue
		}
		if ast.IsPrivateSymbol(name) && !isSelfRef(recv) {
			return nil, errs.Located{
				Cat:     errs.CategoryParse,
				Message: "private message `" + name + "` cannot be sent to an explicit receiver",
				Stream:  p.r.StreamName(),
				Span:    source.Span{Start: loc, End: p.r.Location()},
				Line:    p.r.CurrentLineText(),
			}
		}
		tb := ast.TraceBackInfo{
			StreamName: p.r.StreamName(),
			Span:       source.Span{Start: loc, End: p.r.Location()},
			Underline:  len(name),
		}
		recv = ast.NewSend(recv, name, nil, source.NewRange(start, p.r.Cursor()), tb)
	}
	return recv, nil
}

// parseName2 reads a unary-send name in continuation position; a leading
// `~` is legal here (checked for private-receiver legality just below)
// since private messages are syntactically ordinary names.
func (p *Parser) parseName2() (string, source.Range, error) {
	return p.parseName()
}

// parseAtom parses `'(' statements ')' | '{' block '}' | '[' array ']' |
// NAME | NUMBER | STRING`.
func (p *Parser) parseAtom() (ast.Node, error) {
	p.skipSpace()
	switch {
	case p.peek() == '(':
		p.advance()
		p.r.PushIndent(p.r.Column())
		expr, err := p.parseStatements(func() bool {
			p.skipSpace()
			return p.peek() == ')' || p.peek() == eof
		})
		p.r.PopIndent()
		if err != nil {
			return nil, err
		}
		if err := p.expectRune(')'); err != nil {
			return nil, err
		}
		return expr, nil

	case p.peek() == '{':
		p.advance()
		p.r.PushIndent(p.r.Column())
		block, err := p.parseBlock()
		p.r.PopIndent()
		if err != nil {
			return nil, err
		}
		if err := p.expectRune('}'); err != nil {
			return nil, err
		}
		return block, nil

	case p.peek() == '[':
		return p.parseArrayLit()

	case p.peek() == '\'':
		return p.parseStringLit()

	case isDigit(p.peek()):
		return p.parseNumberLit()

	case (p.peek() == '-' || p.peek() == '+') && isDigitAt(p, 1):
		return p.parseNumberLit()

	case isNameStart(p.peek()) || p.peek() == '~':
		start := p.r.Cursor()
		name, _, err := p.parseName()
		if err != nil {
			return nil, err
		}
		loc := p.r.Location()
		return ast.NewSend(nil, name, nil, source.NewRange(start, p.r.Cursor()), ast.TraceBackInfo{
			StreamName: p.r.StreamName(),
			Span:       source.Span{Start: loc, End: loc},
			Underline:  max1(len(name)),
		}), nil

	default:
		return nil, p.errorf("unexpected character %q", p.peek())
	}
}

func max1(n int) int {
	if n < 1 {
		return 1
	}
	return n
}

// parseArrayLit parses `'[' array ']'`: elements share the statement-line
// machinery, separated by newline or `;` (spec.md §4.2). Bound by
// MaxArraySize (spec.md §3).
func (p *Parser) parseArrayLit() (ast.Node, error) {
	start := p.r.Cursor()
	if err := p.expectRune('['); err != nil {
		return nil, err
	}
	p.r.PushIndent(p.r.Column())
	var items []ast.Node
	for {
		p.skipSpace()
		if p.peek() == ']' || p.peek() == eof {
			break
		}
		if len(items) >= p.limits.MaxArraySize {
			p.r.PopIndent()
			return nil, errs.Located{
				Cat:     errs.CategoryArraySizeTooBig,
				Message: "array literal exceeds the maximum allowed size",
				Stream:  p.r.StreamName(),
				Span:    source.Span{Start: p.r.Location(), End: p.r.Location()},
				Line:    p.r.CurrentLineText(),
			}
		}
		item, err := p.parseExpr()
		if err != nil {
			p.r.PopIndent()
			return nil, err
		}
		items = append(items, item)
		p.skipConsumableSpace()
		if p.peek() == ';' {
			p.advance()
		}
	}
	p.r.PopIndent()
	if err := p.expectRune(']'); err != nil {
		return nil, err
	}
	return ast.NewArray(items, source.NewRange(start, p.r.Cursor())), nil
}

// parseStringLit parses a single-quoted string with `\'` as its only
// escape (spec.md §4.2).
func (p *Parser) parseStringLit() (ast.Node, error) {
	start := p.r.Cursor()
	if err := p.expectRune('\''); err != nil {
		return nil, err
	}
	var sb strings.Builder
	for {
		c := p.peek()
		if c == eof {
			return nil, p.errorf("unterminated string literal")
		}
		if c == '\'' {
			break
		}
		if c == '\\' {
			p.advance()
			if p.peek() == '\'' {
				sb.WriteRune('\'')
				p.advance()
				continue
			}
			sb.WriteRune('\\')
			continue
		}
		sb.WriteRune(p.advance())
	}
	p.advance() // closing quote
	return ast.NewStringLit(sb.String(), source.NewRange(start, p.r.Cursor())), nil
}

// parseNumberLit parses `significand × 10^exponent` per spec.md §4.2 and
// `original_source/ome/parser.py`'s `re_number`
// (`([+-]?[0-9]+)(?:\.([0-9]+))?(?:e([+-]?[0-9]+))?`): an optional leading
// sign, digits, an optional fractional part, and an optional `e`-exponent,
// normalising trailing zeros while preserving the exact decimal value.
func (p *Parser) parseNumberLit() (ast.Node, error) {
	start := p.r.Cursor()
	negative := false
	if p.peek() == '-' || p.peek() == '+' {
		negative = p.peek() == '-'
		p.advance()
	}
	var intPart, fracPart strings.Builder
	for isDigit(p.peek()) {
		intPart.WriteRune(p.advance())
	}
	if p.peek() == '.' && isDigitAt(p, 1) {
		p.advance()
		for isDigit(p.peek()) {
			fracPart.WriteRune(p.advance())
		}
	}
	litExp := int32(0)
	if p.peek() == 'e' && p.hasExponentDigitsAfterE() {
		p.advance()
		expNegative := false
		if p.peek() == '-' || p.peek() == '+' {
			expNegative = p.peek() == '-'
			p.advance()
		}
		var expDigits strings.Builder
		for isDigit(p.peek()) {
			expDigits.WriteRune(p.advance())
		}
		for i := 0; i < expDigits.Len(); i++ {
			litExp = litExp*10 + int32(expDigits.String()[i]-'0')
		}
		if expNegative {
			litExp = -litExp
		}
	}
	sig, exp := normalizeNumber(intPart.String(), fracPart.String(), negative)
	return ast.NewNumber(sig, exp+litExp, source.NewRange(start, p.r.Cursor())), nil
}

// hasExponentDigitsAfterE reports whether the current `e` is actually the
// start of an exponent (`e` or `e+`/`e-` followed by a digit) rather than
// the start of an unrelated unary message name sent to the number.
func (p *Parser) hasExponentDigitsAfterE() bool {
	save := *p.r
	defer func() { *p.r = save }()
	p.advance() // 'e'
	if p.peek() == '-' || p.peek() == '+' {
		p.advance()
	}
	return isDigit(p.peek())
}

func isDigitAt(p *Parser, offset int) bool {
	save := *p.r
	for i := 0; i < offset; i++ {
		p.advance()
	}
	ok := isDigit(p.peek())
	*p.r = save
	return ok
}
