package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kristofer/ember/pkg/vm"
)

// Exit codes per spec.md §6's driver convention.
const (
	exitSuccess      = 0
	exitCompileError = 65
	exitRuntimeError = 70
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <file>",
		Short: "run an ember source file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFile(cmd, args[0])
		},
	}
}

func runFile(cmd *cobra.Command, path string) error {
	source, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	machine := vm.New(
		vm.WithTrace(flagTrace),
		vm.WithStressGC(flagStressGC),
		vm.WithGCStats(flagGCStats),
		vm.WithOutput(cmd.OutOrStdout(), cmd.ErrOrStderr()),
	)

	switch machine.Interpret(string(source)) {
	case vm.InterpretCompileError:
		os.Exit(exitCompileError)
	case vm.InterpretRuntimeError:
		os.Exit(exitRuntimeError)
	}
	os.Exit(exitSuccess)
	return nil
}
