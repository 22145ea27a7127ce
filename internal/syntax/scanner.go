package syntax

import (
	"io"
	"strconv"
	"strings"
)

// Scanner performs lexical analysis on Kaleidoscope input.
//
// It is a pull-based longest-match scanner: Next advances to the next
// token, and the accessor results are valid only until the following
// call to Next.
type Scanner struct {
	source // embedded character reader

	tok    Token   // token type
	lit    string  // identifier text (valid when tok == _Ident)
	num    float64 // numeric value (valid when tok == _Number)
	punct  byte    // punctuation character (valid when tok == _Punct)
	tokPos Pos     // token start position

	litBuf strings.Builder
}

// NewScanner creates a new Scanner for the given input.
// The errh function is called for each lexical error; if nil, errors are
// silently ignored.
func NewScanner(filename string, src io.Reader, errh func(line, col uint32, msg string)) *Scanner {
	return &Scanner{
		source: *newSource(filename, src, errh),
	}
}

// Next advances to the next token.
func (s *Scanner) Next() {
redo:
	for isWhitespace(s.ch) {
		s.nextch()
	}

	// Comment runs to end of line.
	if s.ch == '#' {
		for s.ch != '\n' && s.ch >= 0 {
			s.nextch()
		}
		goto redo
	}

	s.tokPos = s.pos()

	switch {
	case s.ch < 0:
		s.tok = _EOF

	case isLetter(s.ch):
		s.scanIdent()

	case isDigit(s.ch) || s.ch == '.':
		s.scanNumber()

	default:
		// Everything else is a single-character punctuation token.
		// This is what keeps the operator set open: the parser decides
		// whether a character is an operator by consulting the
		// precedence table, not the scanner.
		s.tok = _Punct
		s.punct = byte(s.ch)
		s.nextch()
	}
}

// Token returns the current token type.
func (s *Scanner) Token() Token {
	return s.tok
}

// Ident returns the current identifier text.
// Valid only when Token() == _Ident.
func (s *Scanner) Ident() string {
	return s.lit
}

// Num returns the current numeric value.
// Valid only when Token() == _Number.
func (s *Scanner) Num() float64 {
	return s.num
}

// Punct returns the current punctuation character.
// Valid only when Token() == _Punct.
func (s *Scanner) Punct() byte {
	return s.punct
}

// Pos returns the current token's start position.
func (s *Scanner) Pos() Pos {
	return s.tokPos
}

// Lit returns the literal text of the current token: the identifier or
// keyword spelling, the numeric literal, or the punctuation character.
// EOF has no literal.
func (s *Scanner) Lit() string {
	switch s.tok {
	case _Ident:
		return s.lit
	case _Number:
		return strconv.FormatFloat(s.num, 'g', -1, 64)
	case _Punct:
		return string(s.punct)
	case _EOF:
		return ""
	default:
		return s.tok.String()
	}
}

// scanIdent scans an identifier or keyword: [a-zA-Z_][a-zA-Z0-9_]*
func (s *Scanner) scanIdent() {
	s.litBuf.Reset()
	for isLetter(s.ch) || isDigit(s.ch) {
		s.litBuf.WriteRune(s.ch)
		s.nextch()
	}

	s.lit = s.litBuf.String()
	s.tok = LookupKeyword(s.lit)
}

// scanNumber scans a numeric literal: [0-9.]+
// A malformed literal (for example "1.2.3") is reported as a lexical
// error and scanned as 0 so that parsing can continue.
func (s *Scanner) scanNumber() {
	s.litBuf.Reset()
	for isDigit(s.ch) || s.ch == '.' {
		s.litBuf.WriteRune(s.ch)
		s.nextch()
	}

	text := s.litBuf.String()
	val, err := strconv.ParseFloat(text, 64)
	if err != nil {
		s.error("invalid number literal " + strconv.Quote(text))
		val = 0
	}

	s.num = val
	s.tok = _Number
}
