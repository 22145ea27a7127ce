// Package syntax implements lexical and syntactic analysis for the
// Kaleidoscope language.
package syntax

import "fmt"

// Token represents the type of a lexical token.
//
// Kaleidoscope has a deliberately small token set: keywords, identifiers,
// numbers, and single-character punctuation. Operators are not enumerated
// here because the set of binary and unary operators is open (user code
// can define new ones at runtime), so every non-alphanumeric character
// is scanned as a _Punct token carrying the character itself.
type Token uint8

const (
	// Special tokens
	_EOF Token = iota // end of input

	// Keywords
	_Def    // def
	_Extern // extern
	_If     // if
	_Then   // then
	_Else   // else
	_For    // for
	_In     // in
	_Var    // var
	_Unary  // unary
	_Binary // binary

	// Literals
	_Ident  // identifier: foo, fib
	_Number // numeric literal: 1.0, 42

	// Punctuation
	_Punct // single character (used with the Punct payload)

	tokenCount
)

// tokenNames maps tokens to their string representation.
var tokenNames = [...]string{
	_EOF: "EOF",

	_Def:    "def",
	_Extern: "extern",
	_If:     "if",
	_Then:   "then",
	_Else:   "else",
	_For:    "for",
	_In:     "in",
	_Var:    "var",
	_Unary:  "unary",
	_Binary: "binary",

	_Ident:  "IDENT",
	_Number: "NUMBER",

	_Punct: "PUNCT",
}

// String returns the string representation of the token.
func (t Token) String() string {
	if t < tokenCount {
		return tokenNames[t]
	}
	return fmt.Sprintf("token(%d)", t)
}

// IsKeyword reports whether t is a keyword token.
func (t Token) IsKeyword() bool {
	return t >= _Def && t <= _Binary
}

// IsEOF reports whether t is the end-of-input token.
func (t Token) IsEOF() bool {
	return t == _EOF
}

// keywords maps keyword strings to their token type.
var keywords = map[string]Token{
	"def":    _Def,
	"extern": _Extern,
	"if":     _If,
	"then":   _Then,
	"else":   _Else,
	"for":    _For,
	"in":     _In,
	"var":    _Var,
	"unary":  _Unary,
	"binary": _Binary,
}

// LookupKeyword returns the token for the given identifier string.
// If the identifier is a keyword, returns the keyword token.
// Otherwise, returns _Ident.
func LookupKeyword(ident string) Token {
	if tok, ok := keywords[ident]; ok {
		return tok
	}
	return _Ident
}
