package bytecode

import (
	"errors"
	"strings"
	"testing"
)

func TestDisassembleListing(t *testing.T) {
	v := mustVersion(t, "3.8")
	a := NewAssembler(v)
	a.Line(1).Name(OpLoadName, "x").Jump(OpPopJumpIfFalse, "end").
		Line(2).Const(Str("hello")).Name(OpStoreName, "y").
		Label("end").Const(None()).Op(OpReturnValue)
	code, err := a.Build("<module>")
	if err != nil {
		t.Fatal(err)
	}
	out, err := Disassemble(code, v)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		"; === <module> (line 1) ===",
		"; Names: x, y",
		"'hello'",
		"LOAD_NAME",
		"(x)",
		"(to 8)",
		">>",
		"RETURN_VALUE",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("listing missing %q:\n%s", want, out)
		}
	}
}

func TestDisassembleNested(t *testing.T) {
	v := mustVersion(t, "3.8")
	inner := NewAssembler(v)
	inner.Const(None()).Op(OpReturnValue)
	innerCode, err := inner.Build("f")
	if err != nil {
		t.Fatal(err)
	}
	outer := NewAssembler(v)
	outer.Const(Code(innerCode)).Const(Str("f")).Arg(OpMakeFunction, 0).Name(OpStoreName, "f").
		Const(None()).Op(OpReturnValue)
	code, err := outer.Build("<module>")
	if err != nil {
		t.Fatal(err)
	}
	out, err := Disassemble(code, v)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "; === f (line 0) ===") {
		t.Errorf("nested code object not listed:\n%s", out)
	}
	if !strings.Contains(out, "<code object f>") {
		t.Errorf("code constant not rendered:\n%s", out)
	}
}

func TestDisassembleDecodeError(t *testing.T) {
	v := mustVersion(t, "3.8")
	_, err := Disassemble(&CodeObject{Name: "bad", Code: []byte{9, 0, 0xff, 0}}, v)
	if !errors.Is(err, ErrUnknownOpcode) {
		t.Errorf("err = %v", err)
	}
}

func TestTruncateWidth(t *testing.T) {
	if got := truncateWidth("short", 10); got != "short" {
		t.Errorf("got %q", got)
	}
	if got := truncateWidth("abcdefghijkl", 8); got != "abcde..." {
		t.Errorf("got %q", got)
	}
	// Wide runes take two columns each.
	if got := truncateWidth("日本語日本語", 8); got != "日本..." {
		t.Errorf("got %q", got)
	}
}

func TestFormatInstruction(t *testing.T) {
	v := mustVersion(t, "3.8")
	code := &CodeObject{Code: []byte{101, 0}, Names: []string{"spam"}}
	instrs := mustDecode(t, code, v)
	got := FormatInstruction(&instrs[0])
	if !strings.Contains(got, "LOAD_NAME") || !strings.HasSuffix(got, "(spam)") {
		t.Errorf("got %q", got)
	}
}
