// Package main implements the Kaleidoscope driver entry point.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/kaleido-lang/kaleido/internal/codegen"
	"github.com/kaleido-lang/kaleido/internal/interp"
	"github.com/kaleido-lang/kaleido/internal/ir"
	"github.com/kaleido-lang/kaleido/internal/ir/passes"
	"github.com/kaleido-lang/kaleido/internal/syntax"
)

// Driver flags
var (
	emitTokens = flag.Bool("emit-tokens", false, "Output token stream")
	emitAST    = flag.Bool("emit-ast", false, "Output AST")
	emitIR     = flag.Bool("emit-ir", false, "Output IR for all defined functions")
	noOpt      = flag.Bool("no-opt", false, "Disable the optimization pipeline")
	version    = flag.Bool("version", false, "Print version")
	dumpFunc   = flag.String("dump-func", "", "Only dump specific function")
	irVerify   = flag.Bool("ir-verify", false, "Verify IR after each pass")
	dumpBefore = flag.String("dump-before", "", "Dump IR before pass (name or \"*\")")
	dumpAfter  = flag.String("dump-after", "", "Dump IR after pass (name or \"*\")")
)

// Version information
const Version = "0.1.0-dev"

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Kaleidoscope %s\n\n", Version)
		fmt.Fprintf(os.Stderr, "Usage: kaleido [options] [file.ks]\n\n")
		fmt.Fprintf(os.Stderr, "With no file argument, kaleido starts an interactive session.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}

	flag.Parse()

	if *version {
		fmt.Printf("kaleido version %s\n", Version)
		fmt.Printf("go version %s\n", runtime.Version())
		os.Exit(0)
	}

	args := flag.Args()
	if len(args) == 0 {
		runREPL()
		return
	}

	filename := args[0]

	// Handle -emit-tokens
	if *emitTokens {
		os.Exit(runEmitTokens(filename))
	}

	// Handle -emit-ast
	if *emitAST {
		os.Exit(runEmitAST(filename))
	}

	// Handle -emit-ir
	if *emitIR {
		os.Exit(runEmitIR(filename))
	}

	os.Exit(runFile(filename))
}

// passConfig builds the pass runner configuration from the dump and
// verify flags.
func passConfig() passes.Config {
	return passes.Config{
		DumpBefore: *dumpBefore,
		DumpAfter:  *dumpAfter,
		Verify:     *irVerify,
		DumpFunc:   *dumpFunc,
	}
}

// runFile processes a source file item by item: definitions and
// externs extend the compilation unit, and each top-level expression
// is evaluated and its result printed. A failed item is reported and
// skipped; processing always continues with the next item.
func runFile(filename string) int {
	f, err := os.Open(filename)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	defer f.Close()

	prec := syntax.NewPrecTable()
	p := syntax.NewParser(filename, f, prec, nil)
	gen := codegen.NewGenerator(codegen.NewUnit(), prec)

	machine := interp.NewMachine(gen.Unit())
	interp.RegisterBuiltins(machine, os.Stdout)

	pipeline := passes.Default()
	cfg := passConfig()

	failed := 0
	for {
		item, err := p.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			failed++
			continue
		}

		fn, err := gen.Generate(item)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			failed++
			continue
		}
		if fn == nil {
			// Extern declaration; nothing to run.
			continue
		}

		if !*noOpt {
			if err := passes.Run(fn, pipeline, cfg); err != nil {
				fmt.Fprintf(os.Stderr, "pass pipeline failed for %s:\n%v\n", fn.Name, err)
				return 1
			}
		}

		if fnItem, ok := item.(*syntax.Function); ok && fnItem.IsAnon() {
			res, err := machine.Run(fn)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				failed++
				continue
			}
			fmt.Printf("Evaluated to %f\n", res)
		}
	}

	if failed > 0 {
		return 1
	}
	return 0
}

// runEmitTokens scans the input file and prints all tokens with positions.
func runEmitTokens(filename string) int {
	f, err := os.Open(filename)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	defer f.Close()

	var errors []string
	errh := func(line, col uint32, msg string) {
		errors = append(errors, fmt.Sprintf("%s:%d:%d: %s", filename, line, col, msg))
	}

	s := syntax.NewScanner(filename, f, errh)

	// Print header
	fmt.Printf("%-20s %-12s %s\n", "POSITION", "TOKEN", "LITERAL")
	fmt.Printf("%-20s %-12s %s\n", strings.Repeat("-", 20), strings.Repeat("-", 12), strings.Repeat("-", 20))

	for {
		s.Next()
		tok := s.Token()
		pos := s.Pos()
		lit := s.Lit()

		fmt.Printf("%-20s %-12s %s\n", pos.String(), tok.String(), formatLiteral(lit))

		if tok.IsEOF() {
			break
		}
	}

	// Print any errors
	if len(errors) > 0 {
		fmt.Println()
		fmt.Println("Errors:")
		for _, e := range errors {
			fmt.Printf("  %s\n", e)
		}
		return 1
	}

	return 0
}

// formatLiteral formats a literal for display, escaping special characters.
func formatLiteral(lit string) string {
	if lit == "" {
		return "\"\""
	}

	var b strings.Builder
	b.WriteRune('"')
	for _, r := range lit {
		switch r {
		case '\n':
			b.WriteString("\\n")
		case '\t':
			b.WriteString("\\t")
		case '\\':
			b.WriteString("\\\\")
		case '"':
			b.WriteString("\\\"")
		default:
			b.WriteRune(r)
		}
	}
	b.WriteRune('"')
	return b.String()
}

// runEmitAST parses the input file and prints each top-level item in
// source form. Nothing is generated in this mode, so binary operator
// definitions register their precedence here directly; otherwise later
// expressions would not parse with the declared operators.
func runEmitAST(filename string) int {
	f, err := os.Open(filename)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	defer f.Close()

	prec := syntax.NewPrecTable()
	p := syntax.NewParser(filename, f, prec, nil)

	failed := 0
	for {
		item, err := p.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			failed++
			continue
		}

		if fn, ok := item.(*syntax.Function); ok && fn.Proto.Kind == syntax.BinaryOp {
			prec.Set(fn.Proto.OperatorChar(), fn.Proto.Prec)
		}

		if err := syntax.Fprint(os.Stdout, item); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return 1
		}
	}

	if failed > 0 {
		return 1
	}
	return 0
}

// runEmitIR parses and generates the whole input file, then prints the
// IR of every defined function.
func runEmitIR(filename string) int {
	f, err := os.Open(filename)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	defer f.Close()

	prec := syntax.NewPrecTable()
	p := syntax.NewParser(filename, f, prec, nil)
	gen := codegen.NewGenerator(codegen.NewUnit(), prec)

	pipeline := passes.Default()
	cfg := passConfig()

	failed := 0
	for {
		item, err := p.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			failed++
			continue
		}

		fn, err := gen.Generate(item)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			failed++
			continue
		}
		if fn == nil {
			continue
		}

		if !*noOpt {
			if err := passes.Run(fn, pipeline, cfg); err != nil {
				fmt.Fprintf(os.Stderr, "pass pipeline failed for %s:\n%v\n", fn.Name, err)
				return 1
			}
		}
	}

	first := true
	for _, d := range gen.Unit().Decls() {
		if !d.Defined() {
			continue
		}
		if *dumpFunc != "" && d.Name != *dumpFunc {
			continue
		}
		if !first {
			fmt.Println()
		}
		first = false
		ir.Print(d.Func)
	}

	if failed > 0 {
		return 1
	}
	return 0
}
