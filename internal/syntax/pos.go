package syntax

import "fmt"

// Pos represents a position in a source file or input line.
// The zero value is an invalid position.
type Pos struct {
	filename string // source name ("<stdin>" for interactive input)
	line     uint32 // 1-based line number
	col      uint32 // 1-based column number
}

// NewPos creates a new Pos with the given filename, line, and column.
// Line and column numbers are 1-based.
func NewPos(filename string, line, col uint32) Pos {
	return Pos{filename: filename, line: line, col: col}
}

// String returns the position in the format "filename:line:col",
// or "line:col" if the filename is empty.
func (p Pos) String() string {
	if p.filename != "" {
		return fmt.Sprintf("%s:%d:%d", p.filename, p.line, p.col)
	}
	return fmt.Sprintf("%d:%d", p.line, p.col)
}

// IsValid reports whether the position is valid.
func (p Pos) IsValid() bool {
	return p.line > 0
}

// Line returns the 1-based line number.
func (p Pos) Line() uint32 { return p.line }

// Col returns the 1-based column number.
func (p Pos) Col() uint32 { return p.col }

// Filename returns the source name.
func (p Pos) Filename() string { return p.filename }
