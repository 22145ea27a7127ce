package syntax

import (
	"fmt"
	"io"
)

// SyntaxError represents a grammar violation at a source position.
type SyntaxError struct {
	Pos Pos
	Msg string
}

func (e *SyntaxError) Error() string {
	return e.Pos.String() + ": " + e.Msg
}

// Parser performs syntax analysis on Kaleidoscope input.
//
// The parser holds exactly one current token (one-token lookahead, no
// backtracking) and consults a mutable precedence table while climbing
// binary expressions, so operators defined earlier in the session
// parse with their declared precedence.
type Parser struct {
	scanner *Scanner
	prec    *PrecTable

	// Current token info (cached from scanner)
	tok   Token
	lit   string  // identifier text
	num   float64 // numeric value
	punct byte    // punctuation character
	pos   Pos

	// Error handling
	errh   func(pos Pos, msg string)
	errcnt int
	first  error // first error encountered
}

// NewParser creates a new Parser reading from src. The precedence
// table is shared with the caller: the code generator mutates it as
// operator definitions are processed, and the parser observes those
// changes on subsequent input. The errh function, if non-nil, is
// called for each syntax error in addition to the error being returned
// from Next.
func NewParser(filename string, src io.Reader, prec *PrecTable, errh func(pos Pos, msg string)) *Parser {
	scanErrh := func(line, col uint32, msg string) {
		if errh != nil {
			errh(NewPos(filename, line, col), msg)
		}
	}

	p := &Parser{
		scanner: NewScanner(filename, src, scanErrh),
		prec:    prec,
		errh:    errh,
	}
	p.next() // prime the parser with the first token
	return p
}

// ----------------------------------------------------------------------------
// Token navigation

// next advances to the next token.
func (p *Parser) next() {
	p.scanner.Next()
	p.tok = p.scanner.Token()
	p.lit = p.scanner.Ident()
	p.num = p.scanner.Num()
	p.punct = p.scanner.Punct()
	p.pos = p.scanner.Pos()
}

// isPunct reports whether the current token is the punctuation
// character ch.
func (p *Parser) isPunct(ch byte) bool {
	return p.tok == _Punct && p.punct == ch
}

// gotPunct consumes the current token if it is the punctuation
// character ch, reporting whether it did.
func (p *Parser) gotPunct(ch byte) bool {
	if p.isPunct(ch) {
		p.next()
		return true
	}
	return false
}

// ----------------------------------------------------------------------------
// Error handling

// syntaxError records and returns a syntax error at the current position.
func (p *Parser) syntaxError(msg string) error {
	return p.syntaxErrorAt(p.pos, msg)
}

// syntaxErrorAt records and returns a syntax error at a specific position.
func (p *Parser) syntaxErrorAt(pos Pos, msg string) error {
	err := &SyntaxError{Pos: pos, Msg: msg}
	if p.errcnt == 0 {
		p.first = err
	}
	p.errcnt++

	if p.errh != nil {
		p.errh(pos, msg)
	}
	return err
}

// Errors returns the number of errors encountered so far.
func (p *Parser) Errors() int {
	return p.errcnt
}

// FirstError returns the first error encountered, or nil if none.
func (p *Parser) FirstError() error {
	return p.first
}

// ----------------------------------------------------------------------------
// Parsing entry point

// Next parses one top-level item:
//
//	toplevel := definition | extern | expression | ';'
//
// It returns a *Function for a definition, a *Prototype for an extern,
// or an anonymous *Function wrapping a bare expression. Stray
// top-level semicolons are skipped silently. At end of input Next
// returns io.EOF.
//
// On a syntax error, Next reports the diagnostic, discards exactly one
// token, and returns the error; the caller resumes by calling Next
// again. This bounds error cascades to one skipped token per failure.
func (p *Parser) Next() (Item, error) {
	for p.isPunct(';') {
		p.next()
	}

	if p.tok == _EOF {
		return nil, io.EOF
	}

	var item Item
	var err error
	switch p.tok {
	case _Def:
		item, err = p.parseDefinition()
	case _Extern:
		item, err = p.parseExtern()
	default:
		item, err = p.parseTopLevelExpr()
	}

	if err != nil {
		p.next() // discard one token for error recovery
		return nil, err
	}
	return item, nil
}

// ----------------------------------------------------------------------------
// Top-level items

// parseDefinition parses: 'def' prototype expression
func (p *Parser) parseDefinition() (*Function, error) {
	pos := p.pos
	p.next() // eat 'def'

	proto, err := p.parsePrototype()
	if err != nil {
		return nil, err
	}

	body, err := p.parseExpression()
	if err != nil {
		return nil, err
	}

	f := &Function{Proto: proto, Body: body}
	f.pos = pos
	return f, nil
}

// parseExtern parses: 'extern' prototype
func (p *Parser) parseExtern() (*Prototype, error) {
	p.next() // eat 'extern'
	return p.parsePrototype()
}

// parseTopLevelExpr parses a bare expression and wraps it in an
// anonymous zero-parameter function so it can be generated and
// executed like any other definition.
func (p *Parser) parseTopLevelExpr() (*Function, error) {
	pos := p.pos

	body, err := p.parseExpression()
	if err != nil {
		return nil, err
	}

	proto := &Prototype{Kind: PlainFunc}
	proto.pos = pos
	f := &Function{Proto: proto, Body: body}
	f.pos = pos
	return f, nil
}

// parsePrototype parses:
//
//	prototype := ident '(' ident* ')'
//	           | 'unary' punct '(' ident ')'
//	           | 'binary' punct number? '(' ident ident ')'
func (p *Parser) parsePrototype() (*Prototype, error) {
	pos := p.pos

	var name string
	kind := PlainFunc
	prec := DefaultBinaryPrec

	switch p.tok {
	case _Ident:
		name = p.lit
		p.next()

	case _Unary:
		p.next()
		if p.tok != _Punct {
			return nil, p.syntaxError("expected unary operator")
		}
		name = "unary" + string(p.punct)
		kind = UnaryOp
		p.next()

	case _Binary:
		p.next()
		if p.tok != _Punct {
			return nil, p.syntaxError("expected binary operator")
		}
		name = "binary" + string(p.punct)
		kind = BinaryOp
		p.next()

		// Optional precedence literal.
		if p.tok == _Number {
			if p.num < MinPrec || p.num > MaxPrec {
				return nil, p.syntaxError(fmt.Sprintf("invalid precedence %g: must be %d..%d", p.num, MinPrec, MaxPrec))
			}
			prec = int(p.num)
			p.next()
		}

	default:
		return nil, p.syntaxError("expected function name in prototype")
	}

	if !p.gotPunct('(') {
		return nil, p.syntaxError("expected '(' in prototype")
	}

	var params []string
	for p.tok == _Ident {
		params = append(params, p.lit)
		p.next()
	}

	if !p.gotPunct(')') {
		return nil, p.syntaxError("expected ')' in prototype")
	}

	switch kind {
	case UnaryOp:
		if len(params) != 1 {
			return nil, p.syntaxErrorAt(pos, "unary operator must take exactly 1 parameter")
		}
	case BinaryOp:
		if len(params) != 2 {
			return nil, p.syntaxErrorAt(pos, "binary operator must take exactly 2 parameters")
		}
	}

	proto := &Prototype{Name: name, Params: params, Kind: kind, Prec: prec}
	proto.pos = pos
	return proto, nil
}

// ----------------------------------------------------------------------------
// Expressions

// parseExpression parses: unary (binop unary)*
func (p *Parser) parseExpression() (Expr, error) {
	lhs, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	return p.parseBinOpRHS(0, lhs)
}

// peekPrec returns the precedence of the pending binary operator, or
// -1 if the current token is not a registered binary operator.
func (p *Parser) peekPrec() int {
	if p.tok != _Punct {
		return -1
	}
	if prec := p.prec.Lookup(p.punct); prec > 0 {
		return prec
	}
	return -1
}

// parseBinOpRHS implements precedence climbing: it parses the sequence
// of (binop unary) pairs following lhs, consuming operators whose
// precedence is at least minPrec.
//
// After parsing a right operand, the next operator's precedence
// decides associativity: if it binds tighter than the one just
// consumed, the right operand is extended first by recursing with
// minPrec+1. Equal-precedence chains therefore associate left.
func (p *Parser) parseBinOpRHS(minPrec int, lhs Expr) (Expr, error) {
	for {
		prec := p.peekPrec()

		// Not a binop, or binds looser than the caller accepts:
		// unwind with what we have.
		if prec < minPrec {
			return lhs, nil
		}

		op := p.punct
		p.next() // eat operator

		rhs, err := p.parseUnary()
		if err != nil {
			return nil, err
		}

		// If the next operator binds tighter, let it capture rhs first.
		if prec < p.peekPrec() {
			rhs, err = p.parseBinOpRHS(prec+1, rhs)
			if err != nil {
				return nil, err
			}
		}

		b := &BinaryExpr{Op: op, X: lhs, Y: rhs}
		b.pos = lhs.Pos()
		lhs = b
	}
}

// parseUnary parses: punct unary | primary
func (p *Parser) parseUnary() (Expr, error) {
	// Anything that cannot start an operand is a unary operator
	// application. '(' and ',' are excluded so call syntax and
	// grouping win over operator interpretation.
	if p.tok != _Punct || p.punct == '(' || p.punct == ',' {
		return p.parsePrimary()
	}

	pos := p.pos
	op := p.punct
	p.next()

	x, err := p.parseUnary()
	if err != nil {
		return nil, err
	}

	u := &UnaryExpr{Op: op, X: x}
	u.pos = pos
	return u, nil
}

// parsePrimary parses:
//
//	primary := number | ident | ident '(' args ')' | '(' expression ')'
//	         | ifexpr | forexpr | varexpr
func (p *Parser) parsePrimary() (Expr, error) {
	switch p.tok {
	case _Ident:
		return p.parseIdentExpr()

	case _Number:
		n := &NumberLit{Value: p.num}
		n.pos = p.pos
		p.next()
		return n, nil

	case _If:
		return p.parseIfExpr()

	case _For:
		return p.parseForExpr()

	case _Var:
		return p.parseVarExpr()

	case _Punct:
		if p.punct == '(' {
			return p.parseParenExpr()
		}
	}

	return nil, p.syntaxError("expected an expression")
}

// parseIdentExpr parses a variable reference or a function call.
func (p *Parser) parseIdentExpr() (Expr, error) {
	pos := p.pos
	name := p.lit
	p.next() // eat identifier

	if !p.isPunct('(') {
		v := &VariableRef{Name: name}
		v.pos = pos
		return v, nil
	}
	p.next() // eat '('

	var args []Expr
	if !p.isPunct(')') {
		for {
			arg, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)

			if p.isPunct(')') {
				break
			}
			if !p.isPunct(',') {
				return nil, p.syntaxError("expected ')' or ',' in argument list")
			}
			p.next()
		}
	}
	p.next() // eat ')'

	call := &CallExpr{Callee: name, Args: args}
	call.pos = pos
	return call, nil
}

// parseParenExpr parses: '(' expression ')'
// The parentheses leave no node behind; they only direct parsing.
func (p *Parser) parseParenExpr() (Expr, error) {
	p.next() // eat '('

	x, err := p.parseExpression()
	if err != nil {
		return nil, err
	}

	if !p.gotPunct(')') {
		return nil, p.syntaxError("expected ')'")
	}
	return x, nil
}

// parseIfExpr parses: 'if' expression 'then' expression 'else' expression
func (p *Parser) parseIfExpr() (Expr, error) {
	pos := p.pos
	p.next() // eat 'if'

	cond, err := p.parseExpression()
	if err != nil {
		return nil, err
	}

	if p.tok != _Then {
		return nil, p.syntaxError("expected 'then'")
	}
	p.next()

	then, err := p.parseExpression()
	if err != nil {
		return nil, err
	}

	if p.tok != _Else {
		return nil, p.syntaxError("expected 'else'")
	}
	p.next()

	els, err := p.parseExpression()
	if err != nil {
		return nil, err
	}

	e := &IfExpr{Cond: cond, Then: then, Else: els}
	e.pos = pos
	return e, nil
}

// parseForExpr parses:
//
//	'for' ident '=' expression ',' expression (',' expression)? 'in' expression
func (p *Parser) parseForExpr() (Expr, error) {
	pos := p.pos
	p.next() // eat 'for'

	if p.tok != _Ident {
		return nil, p.syntaxError("expected identifier after 'for'")
	}
	name := p.lit
	p.next()

	if !p.gotPunct('=') {
		return nil, p.syntaxError("expected '=' in for loop")
	}

	start, err := p.parseExpression()
	if err != nil {
		return nil, err
	}

	if !p.gotPunct(',') {
		return nil, p.syntaxError("expected ',' after start value in for loop")
	}

	end, err := p.parseExpression()
	if err != nil {
		return nil, err
	}

	// Optional step value.
	var step Expr
	if p.gotPunct(',') {
		step, err = p.parseExpression()
		if err != nil {
			return nil, err
		}
	}

	if p.tok != _In {
		return nil, p.syntaxError("expected 'in' in for loop")
	}
	p.next()

	body, err := p.parseExpression()
	if err != nil {
		return nil, err
	}

	e := &ForExpr{VarName: name, Start: start, End: end, Step: step, Body: body}
	e.pos = pos
	return e, nil
}

// parseVarExpr parses:
//
//	'var' ident ('=' expression)? (',' ident ('=' expression)?)* 'in' expression
func (p *Parser) parseVarExpr() (Expr, error) {
	pos := p.pos
	p.next() // eat 'var'

	if p.tok != _Ident {
		return nil, p.syntaxError("expected identifier after 'var'")
	}

	var vars []VarInit
	for {
		name := p.lit
		p.next() // eat identifier

		var init Expr
		if p.gotPunct('=') {
			var err error
			init, err = p.parseExpression()
			if err != nil {
				return nil, err
			}
		}
		vars = append(vars, VarInit{Name: name, Init: init})

		if !p.gotPunct(',') {
			break
		}
		if p.tok != _Ident {
			return nil, p.syntaxError("expected identifier after ','")
		}
	}

	if p.tok != _In {
		return nil, p.syntaxError("expected 'in' after var declarations")
	}
	p.next()

	body, err := p.parseExpression()
	if err != nil {
		return nil, err
	}

	e := &VarExpr{Vars: vars, Body: body}
	e.pos = pos
	return e, nil
}
