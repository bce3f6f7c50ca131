package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/skuznetsov/depyo.js-sub000/pkg/bytecode"
	"github.com/skuznetsov/depyo.js-sub000/pkg/dump"
)

func writeDump(t *testing.T, path string, fn func(a *bytecode.Assembler)) {
	t.Helper()
	v, err := bytecode.ParseVersion("3.8")
	if err != nil {
		t.Fatal(err)
	}
	a := bytecode.NewAssembler(v)
	fn(a)
	code, err := a.Build("<module>")
	if err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := dump.WriteFile(path, code, v); err != nil {
		t.Fatal(err)
	}
}

func assignX(a *bytecode.Assembler) {
	a.Line(1).Const(bytecode.Int(1)).Name(bytecode.OpStoreName, "x").
		Const(bytecode.None()).Op(bytecode.OpReturnValue)
}

// popEmpty pops from an empty stack, which no handler can make sense of.
func popEmpty(a *bytecode.Assembler) {
	a.Line(1).Op(bytecode.OpPopTop).Const(bytecode.None()).Op(bytecode.OpReturnValue)
}

func TestOutputPath(t *testing.T) {
	tests := []struct {
		in     input
		outDir string
		ext    string
		want   string
	}{
		{input{path: "/src/pkg/m.cbor", base: "/src"}, "/out", ".py", "/out/pkg/m.py"},
		{input{path: "/src/pkg/m.yaml", base: "/src"}, "", ".py", "/src/pkg/m.py"},
		{input{path: "/elsewhere/m.cbor", base: "/src"}, "/out", ".pyasm", "/out/m.pyasm"},
		{input{path: "/src/m.cbor", base: "/src"}, "/out", quarantineSuffix, "/out/m.unclean.cbor"},
	}
	for _, tt := range tests {
		if got := outputPath(tt.in, tt.outDir, tt.ext); got != tt.want {
			t.Errorf("outputPath(%+v, %q, %q) = %q, want %q", tt.in, tt.outDir, tt.ext, got, tt.want)
		}
	}
}

func TestIsDumpFile(t *testing.T) {
	tests := map[string]bool{
		"m.cbor":         true,
		"m.yaml":         true,
		"M.YML":          true,
		"m.py":           false,
		"m.unclean.cbor": false,
		"m.dump.yaml":    false,
		"m.raw.cbor":     false,
	}
	for name, want := range tests {
		if got := isDumpFile(name); got != want {
			t.Errorf("isDumpFile(%q) = %t, want %t", name, got, want)
		}
	}
}

func TestRunDecompile(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in")
	out := filepath.Join(dir, "out")
	writeDump(t, filepath.Join(in, "pkg", "m.cbor"), assignX)
	writeDump(t, filepath.Join(in, "bad.yaml"), popEmpty)

	var stdout, stderr bytes.Buffer
	code := run([]string{"-o", out, "--asm", "--stats", "--cache", "", in}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("exit %d, stderr:\n%s", code, stderr.String())
	}

	src, err := os.ReadFile(filepath.Join(out, "pkg", "m.py"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(src), "# Decompiled by depyo\n") || !strings.HasSuffix(string(src), "x = 1\n") {
		t.Errorf("m.py = %q", src)
	}
	if _, err := os.Stat(filepath.Join(out, "pkg", "m.pyasm")); err != nil {
		t.Errorf("listing not written: %v", err)
	}

	bad, err := os.ReadFile(filepath.Join(out, "bad.py"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(bad), "# WARNING: Decompyle incomplete\n") {
		t.Errorf("bad.py lacks the incomplete marker: %q", bad)
	}
	if _, _, err := dump.ReadFile(filepath.Join(out, "bad.unclean.cbor")); err != nil {
		t.Errorf("quarantine dump: %v", err)
	}
	if !strings.Contains(stdout.String(), "2 files: 1 clean, 1 unclean, 0 failed") {
		t.Errorf("stats:\n%s", stdout.String())
	}
}

func TestRunDisasm(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "m.cbor")
	writeDump(t, path, assignX)

	var stdout, stderr bytes.Buffer
	if code := run([]string{"disasm", path}, &stdout, &stderr); code != 0 {
		t.Fatalf("exit %d, stderr:\n%s", code, stderr.String())
	}
	for _, want := range []string{"LOAD_CONST", "STORE_NAME", "RETURN_VALUE"} {
		if !strings.Contains(stdout.String(), want) {
			t.Errorf("listing lacks %s:\n%s", want, stdout.String())
		}
	}
}

func TestRunDumpConvert(t *testing.T) {
	dir := t.TempDir()
	writeDump(t, filepath.Join(dir, "m.cbor"), assignX)

	var stdout, stderr bytes.Buffer
	if code := run([]string{"dump", "-format", "yaml", dir}, &stdout, &stderr); code != 0 {
		t.Fatalf("exit %d, stderr:\n%s", code, stderr.String())
	}
	code, v, err := dump.ReadFile(filepath.Join(dir, "m.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if code.Name != "<module>" || v.String() != "3.8" {
		t.Errorf("converted dump = %s for %s", code.Name, v)
	}
}

func TestRunErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want int
	}{
		{"bad flag", []string{"--no-such-flag"}, 2},
		{"bad format", []string{"dump", "-format", "xml"}, 2},
		{"missing path", []string{filepath.Join(t.TempDir(), "missing")}, 1},
		{"empty dir", []string{t.TempDir()}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			if got := run(tt.args, &stdout, &stderr); got != tt.want {
				t.Errorf("exit %d, want %d; stderr:\n%s", got, tt.want, stderr.String())
			}
		})
	}
}
