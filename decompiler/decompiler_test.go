package decompiler

import (
	"errors"
	"strings"
	"testing"

	"github.com/skuznetsov/depyo.js-sub000/pkg/ast"
	"github.com/skuznetsov/depyo.js-sub000/pkg/bytecode"
)

func assemble(t *testing.T, version string, fn func(a *bytecode.Assembler)) (*bytecode.CodeObject, *bytecode.Version) {
	t.Helper()
	v, err := bytecode.ParseVersion(version)
	if err != nil {
		t.Fatalf("ParseVersion(%s): %v", version, err)
	}
	a := bytecode.NewAssembler(v)
	fn(a)
	code, err := a.Build("<module>")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return code, v
}

func TestDecompile(t *testing.T) {
	tests := []struct {
		name    string
		version string
		build   func(a *bytecode.Assembler)
		want    string
	}{
		{
			name:    "assign and call",
			version: "3.8",
			build: func(a *bytecode.Assembler) {
				a.Line(1).Const(bytecode.Int(1)).Name(bytecode.OpStoreName, "x").
					Line(2).Name(bytecode.OpLoadName, "print").Name(bytecode.OpLoadName, "x").Arg(bytecode.OpCallFunction, 1).Op(bytecode.OpPopTop).
					Const(bytecode.None()).Op(bytecode.OpReturnValue)
			},
			want: "x = 1\nprint(x)",
		},
		{
			name:    "swap without rotation",
			version: "3.12",
			build: func(a *bytecode.Assembler) {
				a.Line(1).Name(bytecode.OpLoadName, "b").Name(bytecode.OpLoadName, "a").
					Name(bytecode.OpStoreName, "b").Name(bytecode.OpStoreName, "a").
					Const(bytecode.None()).Op(bytecode.OpReturnValue)
			},
			want: "a, b = (b, a)",
		},
		{
			name:    "if else",
			version: "3.8",
			build: func(a *bytecode.Assembler) {
				a.Line(1).Name(bytecode.OpLoadName, "x").Jump(bytecode.OpPopJumpIfFalse, "else").
					Line(2).Name(bytecode.OpLoadName, "a").Arg(bytecode.OpCallFunction, 0).Op(bytecode.OpPopTop).Jump(bytecode.OpJumpForward, "end").
					Label("else").Line(4).Name(bytecode.OpLoadName, "b").Arg(bytecode.OpCallFunction, 0).Op(bytecode.OpPopTop).
					Label("end").Const(bytecode.None()).Op(bytecode.OpReturnValue)
			},
			want: "if x:\n    a()\nelse:\n    b()",
		},
		{
			name:    "while loop",
			version: "3.8",
			build: func(a *bytecode.Assembler) {
				a.Line(1).Const(bytecode.Int(0)).Name(bytecode.OpStoreName, "x").
					Label("head").Line(2).Name(bytecode.OpLoadName, "x").Const(bytecode.Int(10)).Compare("<").Jump(bytecode.OpPopJumpIfFalse, "end").
					Line(3).Name(bytecode.OpLoadName, "x").Const(bytecode.Int(1)).Op(bytecode.OpInplaceAdd).Name(bytecode.OpStoreName, "x").
					Jump(bytecode.OpJumpAbsolute, "head").
					Label("end").Const(bytecode.None()).Op(bytecode.OpReturnValue)
			},
			want: "x = 0\nwhile x < 10:\n    x += 1",
		},
		{
			name:    "for loop",
			version: "3.8",
			build: func(a *bytecode.Assembler) {
				a.Line(1).Name(bytecode.OpLoadName, "xs").Op(bytecode.OpGetIter).
					Label("head").Jump(bytecode.OpForIter, "end").Name(bytecode.OpStoreName, "x").
					Line(2).Name(bytecode.OpLoadName, "print").Name(bytecode.OpLoadName, "x").Arg(bytecode.OpCallFunction, 1).Op(bytecode.OpPopTop).
					Jump(bytecode.OpJumpAbsolute, "head").
					Label("end").Const(bytecode.None()).Op(bytecode.OpReturnValue)
			},
			want: "for x in xs:\n    print(x)",
		},
		{
			name:    "conditional expression",
			version: "3.8",
			build: func(a *bytecode.Assembler) {
				a.Line(1).Name(bytecode.OpLoadName, "c").Jump(bytecode.OpPopJumpIfFalse, "else").
					Name(bytecode.OpLoadName, "a").Jump(bytecode.OpJumpForward, "end").
					Label("else").Name(bytecode.OpLoadName, "b").
					Label("end").Name(bytecode.OpStoreName, "x").
					Const(bytecode.None()).Op(bytecode.OpReturnValue)
			},
			want: "x = a if c else b",
		},
		{
			name:    "bare except",
			version: "3.8",
			build: func(a *bytecode.Assembler) {
				a.Line(1).Jump(bytecode.OpSetupFinally, "handler").
					Line(2).Name(bytecode.OpLoadName, "a").Arg(bytecode.OpCallFunction, 0).Op(bytecode.OpPopTop).
					Op(bytecode.OpPopBlock).Jump(bytecode.OpJumpForward, "end").
					Label("handler").Line(3).Op(bytecode.OpPopTop).Op(bytecode.OpPopTop).Op(bytecode.OpPopTop).
					Line(4).Name(bytecode.OpLoadName, "b").Arg(bytecode.OpCallFunction, 0).Op(bytecode.OpPopTop).
					Op(bytecode.OpPopExcept).Jump(bytecode.OpJumpForward, "end").
					Op(bytecode.OpEndFinally).
					Label("end").Const(bytecode.None()).Op(bytecode.OpReturnValue)
			},
			want: "try:\n    a()\nexcept:\n    b()",
		},
		{
			name:    "call through PUSH_NULL",
			version: "3.11",
			build: func(a *bytecode.Assembler) {
				a.Line(1).Arg(bytecode.OpResume, 0).Op(bytecode.OpPushNull).Name(bytecode.OpLoadName, "print").
					Const(bytecode.Str("hi")).Arg(bytecode.OpPrecall, 1).Arg(bytecode.OpCall, 1).Op(bytecode.OpPopTop).
					Const(bytecode.None()).Op(bytecode.OpReturnValue)
			},
			want: "print('hi')",
		},
		{
			name:    "print statement",
			version: "2.7",
			build: func(a *bytecode.Assembler) {
				a.Line(1).Name(bytecode.OpLoadName, "a").Op(bytecode.OpPrintItem).
					Name(bytecode.OpLoadName, "b").Op(bytecode.OpPrintItem).Op(bytecode.OpPrintNewline).
					Const(bytecode.None()).Op(bytecode.OpReturnValue)
			},
			want: "print a, b",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, v := assemble(t, tt.version, tt.build)
			r, err := New(nil).Decompile(code, v)
			if err != nil {
				t.Fatalf("Decompile: %v", err)
			}
			if got := ast.Render(r.Root); got != tt.want {
				t.Errorf("got:\n%s\nwant:\n%s", got, tt.want)
			}
			if !r.Clean {
				t.Errorf("result unclean: %v", r.Warnings)
			}
		})
	}
}

func TestDecompileFunctionDef(t *testing.T) {
	v, err := bytecode.ParseVersion("3.8")
	if err != nil {
		t.Fatal(err)
	}
	fa := bytecode.NewAssembler(v)
	fa.Params("a").Line(2).Local(bytecode.OpLoadFast, "a").Op(bytecode.OpReturnValue)
	fn, err := fa.Build("f")
	if err != nil {
		t.Fatal(err)
	}
	code, _ := assemble(t, "3.8", func(a *bytecode.Assembler) {
		a.Line(1).Const(bytecode.Code(fn)).Const(bytecode.Str("f")).Arg(bytecode.OpMakeFunction, 0).
			Name(bytecode.OpStoreName, "f").
			Const(bytecode.None()).Op(bytecode.OpReturnValue)
	})
	r, err := New(nil).Decompile(code, v)
	if err != nil {
		t.Fatalf("Decompile: %v", err)
	}
	want := "def f(a):\n    return a"
	if got := ast.Render(r.Root); got != want {
		t.Errorf("got:\n%s\nwant:\n%s", got, want)
	}
}

func TestDecompileUnsupportedOpcode(t *testing.T) {
	code, v := assemble(t, "3.8", func(a *bytecode.Assembler) {
		a.Line(1).Const(bytecode.Int(1)).Name(bytecode.OpStoreName, "x").
			Line(2).Name(bytecode.OpLoadName, "f").Arg(bytecode.OpCallFunction, 0).Op(bytecode.OpPopTop).
			Const(bytecode.None()).Op(bytecode.OpReturnValue)
	})
	reg := NewRegistry().Without(bytecode.OpCallFunction)
	r, err := New(reg).Decompile(code, v)
	if err != nil {
		t.Fatalf("Decompile: %v", err)
	}
	if r.Clean {
		t.Fatal("result with an unhandled opcode reported clean")
	}
	if len(r.Warnings) == 0 {
		t.Error("no warning recorded")
	}
	if got := ast.Render(r.Root); got != "x = 1" {
		t.Errorf("salvaged body = %q, want %q", got, "x = 1")
	}
	if src := r.Source(); !strings.Contains(src, "# WARNING: Decompyle incomplete\n") {
		t.Errorf("source lacks the incomplete marker:\n%s", src)
	}
}

func TestDecompileErrors(t *testing.T) {
	if _, err := New(nil).Decompile(nil, nil); err == nil {
		t.Error("nil code object accepted")
	}
	code, _ := assemble(t, "3.8", func(a *bytecode.Assembler) {
		a.Const(bytecode.None()).Op(bytecode.OpReturnValue)
	})
	if _, err := New(nil).Decompile(code, nil); !errors.Is(err, bytecode.ErrUnsupportedVersion) {
		t.Errorf("nil version: err = %v, want ErrUnsupportedVersion", err)
	}
}

func TestResultSource(t *testing.T) {
	code, v := assemble(t, "3.8", func(a *bytecode.Assembler) {
		a.Line(1).Const(bytecode.Int(1)).Name(bytecode.OpStoreName, "x").
			Const(bytecode.None()).Op(bytecode.OpReturnValue)
	})
	r, err := New(nil).Decompile(code, v)
	if err != nil {
		t.Fatal(err)
	}
	want := "# Decompiled by depyo\n# Bytecode version: 3.8\nx = 1\n"
	if got := r.Source(); got != want {
		t.Errorf("Source() = %q, want %q", got, want)
	}
}

func TestRegistryCoversEveryVersion(t *testing.T) {
	reg := NewRegistry()
	for _, v := range bytecode.Versions() {
		if missing := reg.Missing(v); len(missing) > 0 {
			t.Errorf("%s: no handler for %v", v, missing)
		}
	}
}

func TestRegistryWithout(t *testing.T) {
	reg := NewRegistry()
	trimmed := reg.Without(bytecode.OpPopTop)
	if trimmed.Supports(bytecode.OpPopTop) {
		t.Error("Without kept the handler")
	}
	if !reg.Supports(bytecode.OpPopTop) {
		t.Error("Without changed the original registry")
	}
}
