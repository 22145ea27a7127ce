// Package codegen lowers parsed items into IR functions.
package codegen

import (
	"fmt"

	"github.com/kaleido-lang/kaleido/internal/ir"
	"github.com/kaleido-lang/kaleido/internal/syntax"
)

// Error is a code generation diagnostic tied to a source position.
type Error struct {
	Pos syntax.Pos
	Msg string
}

func (e *Error) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s: %s", e.Pos, e.Msg)
	}
	return e.Msg
}

// Decl records one function known to the translation unit: its parameter
// names and, once a definition has been lowered, the finished IR.
type Decl struct {
	Name   string
	Params []string
	Func   *ir.Func // nil until the definition generates
}

// Defined reports whether the declaration has an implementation body.
func (d *Decl) Defined() bool { return d.Func != nil }

// Unit is the translation unit: the declaration table accumulated over one
// compilation session. Calls resolve through it regardless of declaration
// order, so an extern can precede or follow its uses.
type Unit struct {
	decls map[string]*Decl
	order []string
}

// NewUnit creates an empty translation unit.
func NewUnit() *Unit {
	return &Unit{decls: make(map[string]*Decl)}
}

// Decl returns the declaration for name, if any.
func (u *Unit) Decl(name string) (*Decl, bool) {
	d, ok := u.decls[name]
	return d, ok
}

// Lookup returns the finished IR function for name. It satisfies the
// call-resolution interface the evaluator consumes.
func (u *Unit) Lookup(name string) (*ir.Func, bool) {
	d, ok := u.decls[name]
	if !ok || d.Func == nil {
		return nil, false
	}
	return d.Func, true
}

// Decls returns all declarations in first-seen order.
func (u *Unit) Decls() []*Decl {
	out := make([]*Decl, 0, len(u.order))
	for _, name := range u.order {
		out = append(out, u.decls[name])
	}
	return out
}

// declare merges a prototype into the table. A fresh name is declared; an
// existing entry is reused only when it has no body and the same arity.
func (u *Unit) declare(name string, params []string, pos syntax.Pos) (*Decl, error) {
	if d, ok := u.decls[name]; ok {
		if d.Func != nil {
			return nil, &Error{Pos: pos, Msg: fmt.Sprintf("redefinition of function %q", name)}
		}
		if len(d.Params) != len(params) {
			return nil, &Error{Pos: pos, Msg: fmt.Sprintf("redefinition of function %q with different # args", name)}
		}
		return d, nil
	}
	d := &Decl{Name: name, Params: params}
	u.decls[name] = d
	u.order = append(u.order, name)
	return d, nil
}

// remove drops a declaration entirely. Used when a fresh definition fails
// to generate; a pre-existing forward declaration is kept instead.
func (u *Unit) remove(name string) {
	if _, ok := u.decls[name]; !ok {
		return
	}
	delete(u.decls, name)
	for i, n := range u.order {
		if n == name {
			u.order = append(u.order[:i], u.order[i+1:]...)
			return
		}
	}
}
