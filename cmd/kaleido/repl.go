package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/c-bata/go-prompt"
	"github.com/k0kubun/pp/v3"

	"github.com/kaleido-lang/kaleido/internal/codegen"
	"github.com/kaleido-lang/kaleido/internal/interp"
	"github.com/kaleido-lang/kaleido/internal/ir"
	"github.com/kaleido-lang/kaleido/internal/ir/passes"
	"github.com/kaleido-lang/kaleido/internal/syntax"
)

// replSession holds the state that persists across interactive input
// lines: the operator precedence table, the compilation unit, and the
// evaluation machine. Definitions entered on one line are visible on
// every later line.
type replSession struct {
	prec    *syntax.PrecTable
	gen     *codegen.Generator
	machine *interp.Machine
}

func newREPLSession() *replSession {
	prec := syntax.NewPrecTable()
	gen := codegen.NewGenerator(codegen.NewUnit(), prec)

	machine := interp.NewMachine(gen.Unit())
	interp.RegisterBuiltins(machine, os.Stdout)

	return &replSession{
		prec:    prec,
		gen:     gen,
		machine: machine,
	}
}

// evalLine processes one line of interactive input: each top-level
// item on the line is parsed and generated, and top-level expressions
// are evaluated immediately. A failed item is reported and skipped.
func (s *replSession) evalLine(line string) {
	p := syntax.NewParser("repl", strings.NewReader(line), s.prec, nil)

	for {
		item, err := p.Next()
		if err == io.EOF {
			return
		}
		if err != nil {
			fmt.Println(colorizeError(err.Error()))
			continue
		}

		fn, err := s.gen.Generate(item)
		if err != nil {
			fmt.Println(colorizeError(err.Error()))
			continue
		}

		if fn == nil {
			proto := item.(*syntax.Prototype)
			fmt.Printf("Declared extern %s(%s)\n", proto.Name, strings.Join(proto.Params, ", "))
			continue
		}

		if !*noOpt {
			if err := passes.Run(fn, passes.Default(), passConfig()); err != nil {
				fmt.Println(colorizeError(err.Error()))
				continue
			}
		}

		if fnItem, ok := item.(*syntax.Function); ok && !fnItem.IsAnon() {
			fmt.Printf("Defined %s(%s)\n", fn.Name, strings.Join(fn.Params, ", "))
			continue
		}

		res, err := s.machine.Run(fn)
		if err != nil {
			fmt.Println(colorizeError(err.Error()))
			continue
		}
		fmt.Println(colorizeResult(fmt.Sprintf("Evaluated to %f", res)))
	}
}

var replKeywords = []prompt.Suggest{
	{Text: "def", Description: "Define a function"},
	{Text: "extern", Description: "Declare an external function"},
	{Text: "if", Description: "Conditional expression"},
	{Text: "then"},
	{Text: "else"},
	{Text: "for", Description: "Loop expression"},
	{Text: "in"},
	{Text: "var", Description: "Local variable binding"},
}

func runREPL() {
	printReplWelcome()

	s := newREPLSession()
	lineNumber := 1

	executor := func(line string) {
		defer func() {
			lineNumber++
		}()

		line = strings.TrimSpace(line)
		if line == "" {
			return
		}
		if strings.HasPrefix(line, ".") {
			s.handleCommand(line)
			return
		}

		s.evalLine(line)
	}

	suggest := func(d prompt.Document) []prompt.Suggest {
		if len(d.GetWordBeforeCursor()) == 0 {
			return nil
		}

		suggests := append([]prompt.Suggest{}, replKeywords...)

		for _, decl := range s.gen.Unit().Decls() {
			desc := "extern"
			if decl.Defined() {
				desc = fmt.Sprintf("function(%s)", strings.Join(decl.Params, ", "))
			}
			suggests = append(suggests, prompt.Suggest{
				Text:        decl.Name,
				Description: desc,
			})
		}

		return prompt.FilterHasPrefix(suggests, d.GetWordBeforeCursor(), false)
	}

	changeLivePrefix := func() (string, bool) {
		return fmt.Sprintf("%d> ", lineNumber), true
	}

	options := []prompt.Option{
		prompt.OptionLivePrefix(changeLivePrefix),
	}
	prompt.New(executor, suggest, options...).Run()
}

const replHelpMessage = `
Enter definitions, extern declarations, and expressions to evaluate them.
Commands are prefixed with a dot. Valid commands are:

.exit          Exit the interpreter
.help          Print this help message
.decls         List the declarations of the session
.dump [name]   Print the IR of a function (or of all functions)

Press ^C to abort the current line, ^D to exit`

const replAssistanceMessage = `Type '.help' for assistance.`

// declSummary is the .decls listing entry for one declaration.
type declSummary struct {
	Name    string
	Params  []string
	Defined bool
}

func (s *replSession) handleCommand(command string) {
	fields := strings.Fields(command)

	switch fields[0] {
	case ".exit":
		os.Exit(0)

	case ".help":
		fmt.Println(replHelpMessage)

	case ".decls":
		decls := s.gen.Unit().Decls()
		summaries := make([]declSummary, len(decls))
		for i, decl := range decls {
			summaries[i] = declSummary{
				Name:    decl.Name,
				Params:  decl.Params,
				Defined: decl.Defined(),
			}
		}
		_, _ = pp.Println(summaries)

	case ".dump":
		if len(fields) > 1 {
			decl, ok := s.gen.Unit().Decl(fields[1])
			if !ok || !decl.Defined() {
				fmt.Println(colorizeError(fmt.Sprintf("no function named %q", fields[1])))
				return
			}
			fmt.Print(ir.Sprint(decl.Func))
			return
		}
		for _, decl := range s.gen.Unit().Decls() {
			if !decl.Defined() {
				continue
			}
			fmt.Print(ir.Sprint(decl.Func))
			fmt.Println()
		}

	default:
		fmt.Println(colorizeError(fmt.Sprintf("Unknown command. %s", replAssistanceMessage)))
	}
}

func printReplWelcome() {
	fmt.Printf("Kaleidoscope %s\n%s\n\n", Version, replAssistanceMessage)
}
