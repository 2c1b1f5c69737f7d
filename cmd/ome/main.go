// Command ome is the compiler's CLI front end: read-flags then
// dispatch-by-mode, grounded directly on cmd/langlang/main.go's
// readArgs/main shape (a flat args struct of flag pointers, built once,
// then a sequence of early-return "-only" modes before the final
// write-output step).
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/ome-lang/ome/ast"
	"github.com/ome-lang/ome/diag"
	"github.com/ome-lang/ome/errs"
	"github.com/ome-lang/ome/ome"
	"github.com/ome-lang/ome/source"
)

type args struct {
	inputPath  *string
	outputPath *string

	target   *string
	backend  *string
	optimize *int

	verbose          *bool
	printAST         *bool
	printResolvedAST *bool
	printIR          *bool
	printTarget      *bool
	configPath       *string
}

func readArgs() *args {
	a := &args{
		inputPath:  flag.String("input", "", "Path to the .ome source file"),
		outputPath: flag.String("output", "/dev/stdout", "Path to the output file"),

		target:   flag.String("target", "x86_64", "Target platform: x86_64 or arm64"),
		backend:  flag.String("backend", "asm", "Backend: asm, c, or c-debug"),
		optimize: flag.Int("optimize", 1, "Optimization level [0-1]"),

		verbose:          flag.Bool("verbose", false, "Print progress to stderr"),
		printAST:         flag.Bool("print-ast", false, "Print the parsed AST"),
		printResolvedAST: flag.Bool("print-resolved-ast", false, "Print the AST after name resolution"),
		printIR:          flag.Bool("print-ir", false, "Print the lowered, optimized IR"),
		printTarget:      flag.Bool("print-target", false, "Print the assembled target output"),
		configPath:       flag.String("config", "", "Path to a YAML config file, merged over the defaults"),
	}
	flag.Parse()
	return a
}

// builtin is the opaque assembly runtime's declared interface (spec.md
// §1): the set of messages it implements and, for each, the further
// messages it may itself send (used by program.ComputeReachability's
// fixed-point worklist). The runtime's actual bodies live in the target
// backend's prelude, not here.
func builtin() *ast.BuiltInBlock {
	return ast.NewBuiltInBlock([]*ast.Method{
		ast.NewBuiltinMethod("print", nil, source.Range{}),
		ast.NewBuiltinMethod("plus:", []string{"print"}, source.Range{}),
		ast.NewBuiltinMethod("minus:", []string{"print"}, source.Range{}),
		ast.NewBuiltinMethod("times:", []string{"print"}, source.Range{}),
		ast.NewBuiltinMethod("divide:", []string{"print"}, source.Range{}),
		ast.NewBuiltinMethod("true", nil, source.Range{}),
		ast.NewBuiltinMethod("false", nil, source.Range{}),
		ast.NewBuiltinMethod("string", nil, source.Range{}),
	})
}

func main() {
	a := readArgs()

	if *a.inputPath == "" {
		log.Fatal("ome: no input file (-input)")
	}

	data, err := os.ReadFile(*a.inputPath)
	if err != nil {
		log.Fatalf("ome: can't read input file: %s", err)
	}

	cfg := ome.NewConfig()
	if *a.configPath != "" {
		configData, err := os.ReadFile(*a.configPath)
		if err != nil {
			log.Fatalf("ome: can't read config file: %s", err)
		}
		if err := cfg.LoadYAML(configData); err != nil {
			log.Fatalf("ome: %s", err)
		}
	}
	// -optimize, -target and -backend override the config file only when
	// given explicitly; their flag defaults equal NewConfig's.
	explicit := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { explicit[f.Name] = true })
	if explicit["optimize"] {
		cfg.SetInt("compiler.optimize", *a.optimize)
	}
	if explicit["target"] {
		cfg.SetString("compiler.target", *a.target)
	}
	if explicit["backend"] {
		cfg.SetString("compiler.backend", *a.backend)
	}
	cfg.SetBool("compiler.verbose", *a.verbose)
	cfg.SetBool("compiler.print_ast", *a.printAST)
	cfg.SetBool("compiler.print_resolved_ast", *a.printResolvedAST)
	cfg.SetBool("compiler.print_ir", *a.printIR)
	cfg.SetBool("compiler.print_target", *a.printTarget)

	if *a.verbose {
		fmt.Fprintf(os.Stderr, "ome: compiling %s for %s/%s\n", *a.inputPath, cfg.GetString("compiler.target"), cfg.GetString("compiler.backend"))
	}

	art, err := ome.Compile(*a.inputPath, string(data), builtin(), cfg)
	if err != nil {
		if ce, ok := err.(errs.CompileError); ok {
			fmt.Fprintln(os.Stderr, diag.FormatError(ce))
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}

	if *a.printAST {
		fmt.Println(art.AST)
	}
	if *a.printResolvedAST {
		fmt.Println(art.ResolvedAST)
	}
	if *a.printIR {
		fmt.Println(art.IR)
	}
	if *a.printTarget {
		fmt.Println(art.Target)
		return
	}

	if err := os.WriteFile(*a.outputPath, []byte(art.Target), 0644); err != nil {
		log.Fatalf("ome: can't write output: %s", err)
	}
}
