// Command esrun is the development driver for the esengine core
// (SPEC_FULL §1/§2's "Dev driver" row): parse-only, run-script,
// run-module, and disassemble subcommands over a Context, for
// exercising the engine during development the way the teacher's own
// `demo/cmd/main.go` drives morfx's transformation pipeline through a
// small set of cobra subcommands rather than a single flag pile.
//
// This is ambient tooling, not a product surface: it never grows
// built-in library coverage of its own (SPEC_FULL §1).
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/oxhq/esengine"
	"github.com/oxhq/esengine/internal/compiler"
	"github.com/oxhq/esengine/internal/config"
	"github.com/oxhq/esengine/internal/logging"
	"github.com/oxhq/esengine/internal/module"
	"github.com/oxhq/esengine/internal/parser"
	"github.com/oxhq/esengine/internal/token"
)

var verbose bool

func main() {
	root := &cobra.Command{
		Use:   "esrun",
		Short: "Development driver for the esengine core",
		Long:  "Parse, run, and disassemble ECMAScript source against the esengine embedding API.",
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "emit structured logging to stderr")

	root.AddCommand(parseCmd(), runCmd(), runModuleCmd(), disasmCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newContext() (*esengine.Context, error) {
	cfg := config.Load()
	ctx, err := esengine.New(cfg)
	if err != nil {
		return nil, err
	}
	if verbose {
		ctx.SetLogger(logging.New("esrun", logging.LevelDebug))
	}
	return ctx, nil
}

func readFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return string(data), nil
}

// parseCmd exercises only the lexer+parser, printing success/failure
// without compiling or executing — useful for checking whether a
// source file is grammatically valid in isolation.
func parseCmd() *cobra.Command {
	var isModule bool
	cmd := &cobra.Command{
		Use:   "parse <file>",
		Short: "Parse a source file and report success or the first syntax error",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := readFile(args[0])
			if err != nil {
				return err
			}
			interner := token.NewInterner()
			if _, err := parser.ParseProgram(src, interner, isModule); err != nil {
				return fmt.Errorf("parse error: %w", err)
			}
			fmt.Printf("%s: OK\n", args[0])
			return nil
		},
	}
	cmd.Flags().BoolVarP(&isModule, "module", "m", false, "parse in module goal")
	return cmd
}

// runCmd parses, compiles, and runs a script, printing its completion
// value (spec.md §6's "Parse+run script" operation), then drains any
// pending microtasks so top-level promise reactions settle before exit.
func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <file>",
		Short: "Run a script file and print its result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := readFile(args[0])
			if err != nil {
				return err
			}
			ctx, err := newContext()
			if err != nil {
				return err
			}
			defer ctx.Close()
			result, err := ctx.RunScript(src, args[0])
			ctx.DrainMicrotasks()
			if err != nil {
				return err
			}
			fmt.Println(esengine.Inspect(result))
			return nil
		},
	}
	return cmd
}

// runModuleCmd links and evaluates a module graph rooted at a
// filesystem entry point, per spec.md §6's "Parse+link+evaluate
// module" operation, using the concrete FileLoader policy of §6.
func runModuleCmd() *cobra.Command {
	var baseDir string
	cmd := &cobra.Command{
		Use:   "run-module <entry-specifier>",
		Short: "Link and evaluate a module graph rooted at entry-specifier",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if baseDir == "" {
				baseDir = "."
			}
			loader, err := module.NewFileLoader(baseDir)
			if err != nil {
				return err
			}
			ctx, err := newContext()
			if err != nil {
				return err
			}
			defer ctx.Close()
			ctx.RegisterModuleLoader(loader)
			result, err := ctx.RunModule(args[0])
			ctx.DrainMicrotasks()
			if err != nil {
				return err
			}
			fmt.Println(esengine.Inspect(result))
			return nil
		},
	}
	cmd.Flags().StringVar(&baseDir, "base", ".", "base directory module specifiers resolve against")
	return cmd
}

// disasmCmd compiles a script and prints its instruction stream one
// opcode per line, the debugging view spec.md §3's "immutable after
// compilation" CodeBlock is built to support.
func disasmCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "disasm <file>",
		Short: "Compile a script and print its bytecode",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := readFile(args[0])
			if err != nil {
				return err
			}
			interner := token.NewInterner()
			prog, err := parser.ParseProgram(src, interner, false)
			if err != nil {
				return fmt.Errorf("parse error: %w", err)
			}
			cb, err := compiler.New(interner, false).Compile(prog)
			if err != nil {
				return fmt.Errorf("compile error: %w", err)
			}
			esengine.Disassemble(os.Stdout, cb)
			return nil
		},
	}
	return cmd
}
