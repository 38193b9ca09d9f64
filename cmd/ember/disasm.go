package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kristofer/ember/pkg/compiler"
	"github.com/kristofer/ember/pkg/debug"
	"github.com/kristofer/ember/pkg/vm"
)

func newDisasmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disasm <file>",
		Short: "compile a file and print its disassembled bytecode",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading %s: %w", args[0], err)
			}

			// disasm only ever needs a Heap to satisfy the compiler's
			// allocation calls; it never executes the result, so a
			// throwaway VM is the simplest correct heap.
			heap := vm.New()
			fn, errs := compiler.Compile(string(source), heap)
			if len(errs) > 0 {
				for _, e := range errs {
					fmt.Fprintln(cmd.ErrOrStderr(), e.Error())
				}
				os.Exit(exitCompileError)
			}

			debug.DisassembleChunk(cmd.OutOrStdout(), fn.Chunk, args[0])
			return nil
		},
	}
}
