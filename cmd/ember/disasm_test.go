package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDisasmCmd_PrintsBytecode(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hello.ember")
	if err := os.WriteFile(path, []byte(`print "hi";`), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	cmd := newDisasmCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{path})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	text := out.String()
	if !strings.Contains(text, "OP_CONSTANT") {
		t.Errorf("expected disassembly to mention OP_CONSTANT, got %q", text)
	}
	if !strings.Contains(text, "OP_PRINT") {
		t.Errorf("expected disassembly to mention OP_PRINT, got %q", text)
	}
}

func TestNewRootCmd_RegistersSubcommands(t *testing.T) {
	root := newRootCmd()
	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"run", "repl", "disasm", "version"} {
		if !names[want] {
			t.Errorf("expected subcommand %q to be registered", want)
		}
	}
}
