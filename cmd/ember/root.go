// Command ember is the command-line driver for the ember language: it
// wires the lexer, compiler, and VM together behind a small cobra-based
// CLI, the way a production interpreter's outer shell would.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	flagTrace    bool
	flagStressGC bool
	flagGCStats  bool
)

const version = "0.1.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "ember",
		Short:   "ember is a small dynamically-typed scripting language",
		Version: version,
	}
	root.PersistentFlags().BoolVar(&flagTrace, "trace", false, "print each instruction and the stack before executing it")
	root.PersistentFlags().BoolVar(&flagStressGC, "stress-gc", false, "collect garbage on every allocation (for exercising GC bugs)")
	root.PersistentFlags().BoolVar(&flagGCStats, "gc-stats", false, "log a summary after every garbage collection")

	root.AddCommand(newRunCmd())
	root.AddCommand(newReplCmd())
	root.AddCommand(newDisasmCmd())
	root.AddCommand(newVersionCmd())

	// Running `ember` with no subcommand and no args drops into the REPL,
	// and `ember file.mbr` runs a script directly — both mirroring the
	// bare-argument convention the language's reference driver used.
	root.RunE = func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return runREPL(cmd)
		}
		return runFile(cmd, args[0])
	}
	root.Args = cobra.MaximumNArgs(1)

	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "print the ember version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "ember version %s\n", version)
			return nil
		},
	}
}
