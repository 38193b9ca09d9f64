package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/kristofer/ember/pkg/vm"
)

func newReplCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "start an interactive ember session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runREPL(cmd)
		},
	}
}

// runREPL drives a read-eval-print loop over one persistent VM, so
// globals and classes declared on one line are visible on the next.
//
// Input accumulates across reads the way the teacher's runREPL does
// (kristofer-smog/cmd/smog/main.go): a read that doesn't yet look like a
// complete statement just grows the buffer under a continuation prompt
// rather than being compiled line-by-line. The teacher's language
// terminates a statement with a trailing `.`; ember terminates a
// statement with `;` and a block/declaration with `}`, so the buffered
// source is considered complete once it ends in either. An empty line
// flushes whatever is buffered, same as the teacher's "the line is
// empty, just execute what we have" case.
func runREPL(cmd *cobra.Command) error {
	out := cmd.OutOrStdout()
	machine := vm.New(
		vm.WithTrace(flagTrace),
		vm.WithStressGC(flagStressGC),
		vm.WithGCStats(flagGCStats),
		vm.WithOutput(out, cmd.ErrOrStderr()),
	)

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          promptFor(os.Stdout, false),
		HistoryFile:     historyFilePath(),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("starting readline: %w", err)
	}
	defer rl.Close()

	fmt.Fprintf(out, "ember %s — type an expression or statement, Ctrl-D to exit\n", version)

	var buf strings.Builder
	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			buf.Reset()
			rl.SetPrompt(promptFor(os.Stdout, false))
			continue
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		if buf.Len() == 0 && line == "" {
			continue
		}

		buf.WriteString(line)
		buf.WriteByte('\n')

		source := strings.TrimSpace(buf.String())
		if line != "" && !strings.HasSuffix(source, ";") && !strings.HasSuffix(source, "}") {
			rl.SetPrompt(promptFor(os.Stdout, true))
			continue
		}

		if source != "" {
			machine.Interpret(source)
		}
		buf.Reset()
		rl.SetPrompt(promptFor(os.Stdout, false))
	}
}

func promptFor(f *os.File, continuation bool) string {
	text := "ember> "
	if continuation {
		text = "....> "
	}
	if isatty.IsTerminal(f.Fd()) {
		return color.New(color.FgCyan, color.Bold).Sprint(text)
	}
	return text
}

func historyFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return home + "/.ember_history"
}
