package dump

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/skuznetsov/depyo.js-sub000/pkg/bytecode"
)

func sample(t *testing.T) (*bytecode.CodeObject, *bytecode.Version) {
	t.Helper()
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
	a := bytecode.NewAssembler(v)
	a.Line(1).Const(bytecode.Code(fn)).Const(bytecode.Str("f")).Arg(bytecode.OpMakeFunction, 0).Name(bytecode.OpStoreName, "f").
		Line(4).Const(bytecode.Tuple(bytecode.Int(1), bytecode.Str("two"), bytecode.BytesConst([]byte{0, 0xff}))).Name(bytecode.OpStoreName, "t").
		Const(bytecode.None()).Op(bytecode.OpReturnValue)
	code, err := a.Build("<module>")
	if err != nil {
		t.Fatal(err)
	}
	return code, v
}

func disasm(t *testing.T, code *bytecode.CodeObject, v *bytecode.Version) string {
	t.Helper()
	s, err := bytecode.Disassemble(code, v)
	if err != nil {
		t.Fatalf("Disassemble: %v", err)
	}
	return s
}

func TestRoundTrip(t *testing.T) {
	codecs := []struct {
		name      string
		marshal   func(*bytecode.CodeObject, *bytecode.Version) ([]byte, error)
		unmarshal func([]byte) (*bytecode.CodeObject, *bytecode.Version, error)
	}{
		{"cbor", MarshalCBOR, UnmarshalCBOR},
		{"yaml", MarshalYAML, UnmarshalYAML},
	}
	code, v := sample(t)
	want := disasm(t, code, v)
	for _, c := range codecs {
		t.Run(c.name, func(t *testing.T) {
			data, err := c.marshal(code, v)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			got, gv, err := c.unmarshal(data)
			if err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if gv != v {
				t.Errorf("version = %s, want %s", gv, v)
			}
			if s := disasm(t, got, gv); s != want {
				t.Errorf("disassembly differs:\n%s\nwant:\n%s", s, want)
			}
			inner := got.Consts[0].Code
			if inner == nil || inner.Name != "f" || inner.ArgCount != 1 || inner.FirstLine != 2 {
				t.Errorf("nested code = %+v", inner)
			}
			tup := got.Consts[len(got.Consts)-1]
			if tup.Kind == bytecode.ConstNone {
				tup = got.Consts[len(got.Consts)-2]
			}
			if tup.Kind != bytecode.ConstTuple || len(tup.Items) != 3 || string(tup.Items[2].Bytes) != "\x00\xff" {
				t.Errorf("tuple constant = %+v", tup)
			}
		})
	}
}

func TestCBORIsCanonical(t *testing.T) {
	code, v := sample(t)
	a, err := MarshalCBOR(code, v)
	if err != nil {
		t.Fatal(err)
	}
	b, err := MarshalCBOR(code, v)
	if err != nil {
		t.Fatal(err)
	}
	if string(a) != string(b) {
		t.Error("two encodings of one code object differ")
	}
}

func TestYAMLIsReadable(t *testing.T) {
	code, v := sample(t)
	data, err := MarshalYAML(code, v)
	if err != nil {
		t.Fatal(err)
	}
	text := string(data)
	for _, want := range []string{"format: depyo-dump", "version: \"3.8\"", "kind: tuple", "bytes: 00ff"} {
		if !strings.Contains(text, want) {
			t.Errorf("yaml lacks %q:\n%s", want, text)
		}
	}
}

func TestResolveErrors(t *testing.T) {
	tests := []struct {
		name string
		file File
		want error
	}{
		{"wrong format", File{Format: "other", Schema: Schema, Version: "3.8", Code: &Code{}}, ErrFormat},
		{"wrong schema", File{Format: Format, Schema: Schema + 1, Version: "3.8", Code: &Code{}}, ErrFormat},
		{"no code", File{Format: Format, Schema: Schema, Version: "3.8"}, ErrFormat},
		{"bad version", File{Format: Format, Schema: Schema, Version: "9.9", Code: &Code{}}, bytecode.ErrUnsupportedVersion},
		{"bad constant", File{Format: Format, Schema: Schema, Version: "3.8", Code: &Code{Consts: []Const{{Kind: "widget"}}}}, ErrFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := tt.file.Resolve(); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestFiles(t *testing.T) {
	code, v := sample(t)
	dir := t.TempDir()
	for _, name := range []string{"m.cbor", "m.yaml"} {
		path := filepath.Join(dir, name)
		if err := WriteFile(path, code, v); err != nil {
			t.Fatalf("WriteFile(%s): %v", name, err)
		}
		got, gv, err := ReadFile(path)
		if err != nil {
			t.Fatalf("ReadFile(%s): %v", name, err)
		}
		if got.Name != "<module>" || gv != v {
			t.Errorf("%s: got %s for %s", name, got.Name, gv)
		}
	}
	if _, _, err := ReadFile(filepath.Join(dir, "missing.cbor")); err == nil {
		t.Error("missing file read without error")
	}
}
