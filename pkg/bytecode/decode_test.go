package bytecode

import (
	"errors"
	"testing"
)

func mustVersion(t *testing.T, s string) *Version {
	t.Helper()
	v, err := ParseVersion(s)
	if err != nil {
		t.Fatalf("ParseVersion(%s): %v", s, err)
	}
	return v
}

func mustDecode(t *testing.T, code *CodeObject, v *Version) []Instruction {
	t.Helper()
	instrs, err := Decode(code, v)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	return instrs
}

func TestDecodeIfElse38(t *testing.T) {
	v := mustVersion(t, "3.8")
	a := NewAssembler(v)
	a.Line(1).Name(OpLoadName, "x").Jump(OpPopJumpIfFalse, "else").
		Line(2).Name(OpLoadName, "a").Arg(OpCallFunction, 0).Op(OpPopTop).Jump(OpJumpForward, "end").
		Label("else").Line(4).Name(OpLoadName, "b").Arg(OpCallFunction, 0).Op(OpPopTop).
		Label("end").Const(None()).Op(OpReturnValue)
	code, err := a.Build("<module>")
	if err != nil {
		t.Fatal(err)
	}
	instrs := mustDecode(t, code, v)
	if len(instrs) != 11 {
		t.Fatalf("got %d instructions, want 11", len(instrs))
	}
	if instrs[1].Op != OpPopJumpIfFalse || instrs[1].Target != 12 {
		t.Errorf("instr 1 = %s -> %d, want POP_JUMP_IF_FALSE -> 12", instrs[1].Op, instrs[1].Target)
	}
	if instrs[5].Op != OpJumpForward || instrs[5].Offset != 10 || instrs[5].Target != 18 {
		t.Errorf("instr 5 = %s at %d -> %d, want JUMP_FORWARD at 10 -> 18", instrs[5].Op, instrs[5].Offset, instrs[5].Target)
	}
	if instrs[0].Name != "x" || instrs[6].Name != "b" {
		t.Errorf("names = %q, %q", instrs[0].Name, instrs[6].Name)
	}
	if instrs[6].Line != 4 || instrs[9].Line != 4 {
		t.Errorf("lines = %d, %d, want 4, 4", instrs[6].Line, instrs[9].Line)
	}
	if instrs[9].Const == nil || !instrs[9].Const.IsNone() {
		t.Error("LOAD_CONST did not resolve to None")
	}
	if instrs[0].Target != -1 {
		t.Error("non-jump has a target")
	}
}

func TestDecodeLegacyWidths(t *testing.T) {
	v := mustVersion(t, "2.7")
	a := NewAssembler(v)
	a.Name(OpLoadName, "x").Jump(OpPopJumpIfFalse, "end").
		Const(Int(1)).Op(OpPrintItem).Op(OpPrintNewline).
		Label("end").Const(None()).Op(OpReturnValue)
	code, err := a.Build("<module>")
	if err != nil {
		t.Fatal(err)
	}
	instrs := mustDecode(t, code, v)
	wantOffsets := []int{0, 3, 6, 9, 10, 11, 14}
	if len(instrs) != len(wantOffsets) {
		t.Fatalf("got %d instructions, want %d", len(instrs), len(wantOffsets))
	}
	for i, want := range wantOffsets {
		if instrs[i].Offset != want {
			t.Errorf("instr %d offset = %d, want %d", i, instrs[i].Offset, want)
		}
	}
	if instrs[1].Target != 11 {
		t.Errorf("jump target = %d, want 11", instrs[1].Target)
	}
	if instrs[3].Size != 1 || instrs[2].Size != 3 {
		t.Errorf("sizes = %d, %d", instrs[3].Size, instrs[2].Size)
	}
}

func TestDecodeExtendedArg(t *testing.T) {
	v := mustVersion(t, "3.8")
	consts := make([]Constant, 300)
	for i := range consts {
		consts[i] = Int(int64(i))
	}
	code := &CodeObject{Code: []byte{144, 1, 100, 4, 83, 0}, Consts: consts}
	instrs := mustDecode(t, code, v)
	if len(instrs) != 3 {
		t.Fatalf("got %d instructions, want 3", len(instrs))
	}
	if instrs[0].Op != OpExtendedArg {
		t.Errorf("first instruction = %s", instrs[0].Op)
	}
	if instrs[1].Arg != 260 || instrs[1].Const.Int != 260 {
		t.Errorf("arg = %d, const = %v", instrs[1].Arg, instrs[1].Const.Int)
	}
	if instrs[2].Arg != 0 {
		t.Error("extended arg leaked into the following instruction")
	}
}

func TestDecodeErrors(t *testing.T) {
	v38 := mustVersion(t, "3.8")
	v27 := mustVersion(t, "2.7")
	tests := []struct {
		name string
		v    *Version
		code *CodeObject
		want error
		at   int
	}{
		{"unknown", v38, &CodeObject{Code: []byte{9, 0, 0xff, 0}}, ErrUnknownOpcode, 2},
		{"const range", v38, &CodeObject{Code: []byte{100, 5}}, ErrOperandRange, 0},
		{"name range", v38, &CodeObject{Code: []byte{101, 0}}, ErrOperandRange, 0},
		{"truncated", v27, &CodeObject{Code: []byte{100, 0}, Consts: []Constant{None()}}, ErrTruncated, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.code, tt.v)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			var de *DecodeError
			if !errors.As(err, &de) || de.Offset != tt.at {
				t.Errorf("DecodeError = %+v, want offset %d", de, tt.at)
			}
		})
	}
}

func TestDecodeJumpsInWords(t *testing.T) {
	v := mustVersion(t, "3.10")
	// POP_JUMP_IF_FALSE 3 -> byte 6; JUMP_ABSOLUTE 0 -> byte 0
	consts := []Constant{None()}
	code := &CodeObject{Code: []byte{100, 0, 114, 3, 113, 0, 100, 0, 83, 0}, Consts: consts}
	instrs := mustDecode(t, code, v)
	if instrs[1].Target != 6 {
		t.Errorf("POP_JUMP_IF_FALSE target = %d, want 6", instrs[1].Target)
	}
	if instrs[2].Target != 0 {
		t.Errorf("JUMP_ABSOLUTE target = %d, want 0", instrs[2].Target)
	}
}

func TestDecodeCachesAndBackwardJumps(t *testing.T) {
	v := mustVersion(t, "3.11")
	a := NewAssembler(v)
	a.Arg(OpResume, 0).
		Label("top").Global("f", true).Arg(OpPrecall, 0).Arg(OpCall, 0).Op(OpPopTop).
		Jump(OpJumpBackward, "top")
	code, err := a.Build("<module>")
	if err != nil {
		t.Fatal(err)
	}
	instrs := mustDecode(t, code, v)
	if len(instrs) != 6 {
		t.Fatalf("got %d instructions, want 6", len(instrs))
	}
	if instrs[1].Name != "f" || instrs[1].Arg&1 != 1 {
		t.Errorf("LOAD_GLOBAL name = %q arg = %d", instrs[1].Name, instrs[1].Arg)
	}
	// RESUME(2) + LOAD_GLOBAL(2+10) + PRECALL(2+2) + CALL(2+8)
	if instrs[4].Offset != 28 {
		t.Errorf("POP_TOP offset = %d, want 28", instrs[4].Offset)
	}
	if instrs[5].Target != 2 {
		t.Errorf("JUMP_BACKWARD target = %d, want 2", instrs[5].Target)
	}
}

func TestDecodeDerefNames(t *testing.T) {
	v310 := mustVersion(t, "3.10")
	v311 := mustVersion(t, "3.11")
	code := &CodeObject{
		VarNames: []string{"a", "c"},
		CellVars: []string{"c", "d"},
		FreeVars: []string{"e"},
	}
	tests := []struct {
		v     *Version
		index int
		want  string
	}{
		{v310, 0, "c"},
		{v310, 1, "d"},
		{v310, 2, "e"},
		{v311, 1, "c"},
		{v311, 2, "d"},
		{v311, 3, "e"},
	}
	for _, tt := range tests {
		got, ok := code.DerefName(tt.index, tt.v)
		if !ok || got != tt.want {
			t.Errorf("%s DerefName(%d) = %q, %v; want %q", tt.v, tt.index, got, ok, tt.want)
		}
	}
	if _, ok := code.DerefName(9, v311); ok {
		t.Error("out-of-range deref resolved")
	}
}

func TestDecodeOperators(t *testing.T) {
	v := mustVersion(t, "3.12")
	a := NewAssembler(v)
	a.Name(OpLoadName, "x").Name(OpLoadName, "y").Compare("<=").
		Name(OpLoadName, "z").BinaryOp("+=").Op(OpPopTop).Const(None()).Op(OpReturnValue)
	code, err := a.Build("<module>")
	if err != nil {
		t.Fatal(err)
	}
	instrs := mustDecode(t, code, v)
	if instrs[2].Operator != "<=" {
		t.Errorf("compare operator = %q", instrs[2].Operator)
	}
	if instrs[4].Operator != "+=" {
		t.Errorf("binary operator = %q", instrs[4].Operator)
	}
}

func TestDecodeLocalPairs313(t *testing.T) {
	v := mustVersion(t, "3.13")
	code := &CodeObject{
		VarNames: []string{"a", "b"},
		Consts:   []Constant{None()},
		Code:     []byte{88, 0x10, 58, 88, 0, 0, 112, 0x01, 103, 0},
	}
	instrs := mustDecode(t, code, v)
	if len(instrs) != 4 {
		t.Fatalf("decoded %d instructions, want 4", len(instrs))
	}
	if in := instrs[0]; in.Op != OpLoadFastLoadFast || in.Name != "b" || in.Name2 != "a" {
		t.Errorf("load pair = %s %q %q", in.Op, in.Name, in.Name2)
	}
	if in := instrs[1]; in.Operator != "==" || in.Next() != 6 {
		t.Errorf("compare = %q next %d", in.Operator, in.Next())
	}
	if in := instrs[2]; in.Op != OpStoreFastStoreFast || in.Name != "a" || in.Name2 != "b" {
		t.Errorf("store pair = %s %q %q", in.Op, in.Name, in.Name2)
	}
	bad := &CodeObject{VarNames: []string{"a"}, Code: []byte{88, 0x20}}
	if _, err := Decode(bad, v); !errors.Is(err, ErrOperandRange) {
		t.Errorf("out-of-range pair: err = %v", err)
	}
}

func TestLineAt(t *testing.T) {
	code := &CodeObject{Lines: []LineEntry{{0, 3}, {6, 4}, {20, 9}}}
	tests := map[int]int{0: 3, 4: 3, 6: 4, 19: 4, 20: 9, 100: 9}
	for off, want := range tests {
		if got := code.LineAt(off); got != want {
			t.Errorf("LineAt(%d) = %d, want %d", off, got, want)
		}
	}
	if got := (&CodeObject{}).LineAt(0); got != 0 {
		t.Errorf("empty line table gave %d", got)
	}
}
