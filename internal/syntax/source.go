package syntax

import "io"

// source is a character reader with position tracking.
// Kaleidoscope input is ASCII, so it reads byte by byte.
type source struct {
	buf []byte // entire input read into memory

	filename string
	line     uint32 // current line number (1-based)
	col      uint32 // current column number (1-based)

	ch   rune // current character, -1 for EOF
	offs int  // current byte offset in buf

	errh func(line, col uint32, msg string)
}

// newSource creates a new source from an io.Reader.
// The errh function is called for each lexical error; if nil, errors
// are silently ignored.
func newSource(filename string, src io.Reader, errh func(line, col uint32, msg string)) *source {
	s := &source{
		filename: filename,
		line:     1,
		col:      0,
		ch:       -1, // sentinel: before first char
		errh:     errh,
	}

	var err error
	s.buf, err = io.ReadAll(src)
	if err != nil {
		s.error("error reading input: " + err.Error())
		s.ch = -1
		return s
	}

	s.nextch()
	return s
}

// nextch advances to the next character, updating the position.
// Sets s.ch to -1 at EOF. After nextch returns, (line, col) is the
// position of s.ch.
func (s *source) nextch() {
	if s.ch == '\n' {
		s.line++
		s.col = 1
	} else {
		s.col++
	}

	if s.offs >= len(s.buf) {
		s.ch = -1
		return
	}

	s.ch = rune(s.buf[s.offs])
	s.offs++
}

// pos returns the position of the current character.
func (s *source) pos() Pos {
	return NewPos(s.filename, s.line, s.col)
}

// error reports a lexical error at the current position.
func (s *source) error(msg string) {
	if s.errh != nil {
		s.errh(s.line, s.col, msg)
	}
}

// isLetter reports whether r can start an identifier (a-z, A-Z, or _).
func isLetter(r rune) bool {
	return 'a' <= r && r <= 'z' || 'A' <= r && r <= 'Z' || r == '_'
}

// isDigit reports whether r is a decimal digit.
func isDigit(r rune) bool {
	return '0' <= r && r <= '9'
}

// isWhitespace reports whether r is a whitespace character.
func isWhitespace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\r' || r == '\n'
}
