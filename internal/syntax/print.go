package syntax

import (
	"io"
	"strconv"
	"strings"

	"github.com/turbolent/prettier"
)

// prettyMaxLineWidth is the line width used when rendering nodes to
// strings.
const prettyMaxLineWidth = 80

// prettyIndent is the indentation unit used when rendering nodes.
const prettyIndent = "  "

// render pretty-prints a document to a string.
func render(doc prettier.Doc) string {
	var b strings.Builder
	prettier.Prettier(&b, doc, prettyMaxLineWidth, prettyIndent)
	return b.String()
}

// Fprint writes the source form of an item to w.
func Fprint(w io.Writer, item Item) error {
	var doc prettier.Doc
	switch item := item.(type) {
	case *Function:
		if item.IsAnon() {
			doc = docOf(item.Body)
		} else {
			doc = item.Doc()
		}
	case *Prototype:
		doc = prettier.Concat{prettier.Text("extern "), item.Doc()}
	}
	_, err := io.WriteString(w, render(doc)+"\n")
	return err
}

// formatNumber renders a float in the shortest round-trippable form.
func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

var separatorDoc prettier.Doc = prettier.Concat{
	prettier.Text(","),
	prettier.Line{},
}

// ----------------------------------------------------------------------------
// Expression documents

func (n *NumberLit) Doc() prettier.Doc {
	return prettier.Text(formatNumber(n.Value))
}

func (n *NumberLit) String() string { return render(n.Doc()) }

func (v *VariableRef) Doc() prettier.Doc {
	return prettier.Text(v.Name)
}

func (v *VariableRef) String() string { return render(v.Doc()) }

func (u *UnaryExpr) Doc() prettier.Doc {
	return prettier.Concat{
		prettier.Text(string(u.Op)),
		operandDoc(u.X),
	}
}

func (u *UnaryExpr) String() string { return render(u.Doc()) }

func (b *BinaryExpr) Doc() prettier.Doc {
	return prettier.Group{
		Doc: prettier.Concat{
			operandDoc(b.X),
			prettier.Text(" "),
			prettier.Text(string(b.Op)),
			prettier.Line{},
			operandDoc(b.Y),
		},
	}
}

func (b *BinaryExpr) String() string { return render(b.Doc()) }

// operandDoc parenthesizes nested operations so the printed form
// re-parses with the same shape regardless of the precedence the
// operators happen to have in the current session.
func operandDoc(e Expr) prettier.Doc {
	switch e := e.(type) {
	case *BinaryExpr, *IfExpr, *ForExpr, *VarExpr:
		return prettier.WrapParentheses(docOf(e), prettier.SoftLine{})
	default:
		return docOf(e)
	}
}

// docOf returns the document for any expression node.
func docOf(e Expr) prettier.Doc {
	d, ok := e.(interface{ Doc() prettier.Doc })
	if !ok {
		return prettier.Text("<bad expr>")
	}
	return d.Doc()
}

func (c *CallExpr) Doc() prettier.Doc {
	argDocs := make([]prettier.Doc, len(c.Args))
	for i, arg := range c.Args {
		argDocs[i] = docOf(arg)
	}
	return prettier.Concat{
		prettier.Text(c.Callee),
		prettier.WrapParentheses(
			prettier.Join(separatorDoc, argDocs...),
			prettier.SoftLine{},
		),
	}
}

func (c *CallExpr) String() string { return render(c.Doc()) }

func (e *IfExpr) Doc() prettier.Doc {
	return prettier.Group{
		Doc: prettier.Concat{
			prettier.Text("if "),
			docOf(e.Cond),
			prettier.Line{},
			prettier.Text("then "),
			docOf(e.Then),
			prettier.Line{},
			prettier.Text("else "),
			docOf(e.Else),
		},
	}
}

func (e *IfExpr) String() string { return render(e.Doc()) }

func (e *ForExpr) Doc() prettier.Doc {
	doc := prettier.Concat{
		prettier.Text("for "),
		prettier.Text(e.VarName),
		prettier.Text(" = "),
		docOf(e.Start),
		prettier.Text(", "),
		docOf(e.End),
	}
	if e.Step != nil {
		doc = append(doc,
			prettier.Text(", "),
			docOf(e.Step),
		)
	}
	return prettier.Group{
		Doc: append(doc,
			prettier.Text(" in"),
			prettier.Indent{
				Doc: prettier.Concat{
					prettier.Line{},
					docOf(e.Body),
				},
			},
		),
	}
}

func (e *ForExpr) String() string { return render(e.Doc()) }

func (e *VarExpr) Doc() prettier.Doc {
	varDocs := make([]prettier.Doc, len(e.Vars))
	for i, v := range e.Vars {
		if v.Init != nil {
			varDocs[i] = prettier.Concat{
				prettier.Text(v.Name),
				prettier.Text(" = "),
				docOf(v.Init),
			}
		} else {
			varDocs[i] = prettier.Text(v.Name)
		}
	}
	return prettier.Group{
		Doc: prettier.Concat{
			prettier.Text("var "),
			prettier.Join(separatorDoc, varDocs...),
			prettier.Text(" in"),
			prettier.Indent{
				Doc: prettier.Concat{
					prettier.Line{},
					docOf(e.Body),
				},
			},
		},
	}
}

func (e *VarExpr) String() string { return render(e.Doc()) }

// ----------------------------------------------------------------------------
// Prototype and function documents

func (p *Prototype) Doc() prettier.Doc {
	var head prettier.Doc
	switch p.Kind {
	case UnaryOp:
		head = prettier.Text("unary" + string(p.OperatorChar()))
	case BinaryOp:
		head = prettier.Concat{
			prettier.Text("binary" + string(p.OperatorChar())),
			prettier.Text(" "),
			prettier.Text(strconv.Itoa(p.Prec)),
		}
	default:
		head = prettier.Text(p.Name)
	}

	paramDocs := make([]prettier.Doc, len(p.Params))
	for i, name := range p.Params {
		paramDocs[i] = prettier.Text(name)
	}

	return prettier.Concat{
		head,
		prettier.WrapParentheses(
			prettier.Join(prettier.Space, paramDocs...),
			prettier.SoftLine{},
		),
	}
}

func (p *Prototype) String() string { return render(p.Doc()) }

func (f *Function) Doc() prettier.Doc {
	return prettier.Group{
		Doc: prettier.Concat{
			prettier.Text("def "),
			f.Proto.Doc(),
			prettier.Indent{
				Doc: prettier.Concat{
					prettier.Line{},
					docOf(f.Body),
				},
			},
		},
	}
}

func (f *Function) String() string { return render(f.Doc()) }
