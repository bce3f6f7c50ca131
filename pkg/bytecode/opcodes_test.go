package bytecode

import (
	"strings"
	"testing"
)

func TestAllOpsHaveNames(t *testing.T) {
	for op := Op(1); op < numOps; op++ {
		name := op.String()
		if name == "" || strings.HasPrefix(name, "Op(") {
			t.Errorf("Op %d has no mnemonic", op)
		}
		back, ok := OpByName(name)
		if !ok || back != op {
			t.Errorf("OpByName(%q) = %v, %v; want %v", name, back, ok, op)
		}
	}
}

func TestOpString(t *testing.T) {
	tests := []struct {
		op   Op
		want string
	}{
		{OpPopTop, "POP_TOP"},
		{OpLoadConst, "LOAD_CONST"},
		{OpPopJumpIfFalse, "POP_JUMP_IF_FALSE"},
		{OpSlice0, "SLICE+0"},
		{OpBinaryOp, "BINARY_OP"},
		{OpExtendedArg, "EXTENDED_ARG"},
	}
	for _, tt := range tests {
		if got := tt.op.String(); got != tt.want {
			t.Errorf("%d.String() = %q, want %q", tt.op, got, tt.want)
		}
	}
}

func TestUnknownOpString(t *testing.T) {
	if got := Op(60000).String(); !strings.HasPrefix(got, "Op(") {
		t.Errorf("unknown op rendered as %q", got)
	}
}

func TestOpClassification(t *testing.T) {
	if !OpPopJumpIfTrue.IsConditionalJump() || OpJumpForward.IsConditionalJump() {
		t.Error("conditional jump classification is wrong")
	}
	if !OpJumpBackward.IsUnconditionalJump() || OpForIter.IsUnconditionalJump() {
		t.Error("unconditional jump classification is wrong")
	}
	if !OpStoreFast.IsStore() || OpLoadFast.IsStore() {
		t.Error("store classification is wrong")
	}
	if !OpReturnConst.IsReturn() || !OpReturnValue.IsReturn() {
		t.Error("return classification is wrong")
	}
}

func TestVersionTables(t *testing.T) {
	tests := []struct {
		version string
		code    byte
		want    Op
		kind    ArgKind
	}{
		{"2.7", 114, OpPopJumpIfFalse, ArgJumpAbs},
		{"2.6", 111, OpJumpIfFalse, ArgJumpRel},
		{"2.7", 71, OpPrintItem, ArgNone},
		{"3.4", 54, OpStoreMap, ArgNone},
		{"3.5", 81, OpWithCleanupStart, ArgNone},
		{"3.7", 160, OpLoadMethod, ArgName},
		{"3.8", 53, OpBeginFinally, ArgNone},
		{"3.9", 48, OpReraise, ArgNone},
		{"3.9", 121, OpJumpIfNotExcMatch, ArgJumpAbs},
		{"3.10", 119, OpReraise, ArgPlain},
		{"3.11", 140, OpJumpBackward, ArgJumpRel},
		{"3.11", 122, OpBinaryOp, ArgBinaryOp},
		{"3.12", 114, OpPopJumpIfFalse, ArgJumpRel},
		{"3.12", 121, OpReturnConst, ArgConst},
		{"3.13", 40, OpToBool, ArgNone},
		{"3.13", 88, OpLoadFastLoadFast, ArgLocalPair},
		{"3.13", 112, OpStoreFastStoreFast, ArgLocalPair},
		{"3.13", 97, OpPopJumpIfFalse, ArgJumpRel},
		{"3.13", 103, OpReturnConst, ArgConst},
		{"3.13", 106, OpSetFunctionAttribute, ArgPlain},
		{"3.13", 14, OpFormatSimple, ArgNone},
	}
	for _, tt := range tests {
		v, err := ParseVersion(tt.version)
		if err != nil {
			t.Fatalf("ParseVersion(%s): %v", tt.version, err)
		}
		info, ok := v.Table().Lookup(tt.code)
		if !ok {
			t.Errorf("%s: opcode %d missing", tt.version, tt.code)
			continue
		}
		if info.Op != tt.want || info.Arg != tt.kind {
			t.Errorf("%s: opcode %d = %s/%d, want %s/%d", tt.version, tt.code, info.Op, info.Arg, tt.want, tt.kind)
		}
	}
}

func TestTableCodesAreConsistent(t *testing.T) {
	for _, v := range Versions() {
		tbl := v.Table()
		for _, op := range tbl.Ops() {
			code, ok := tbl.Code(op)
			if !ok {
				t.Errorf("%s: %s has no reverse mapping", v, op)
				continue
			}
			if info, _ := tbl.Lookup(code); info.Op != op {
				t.Errorf("%s: code %d maps to %s, reverse says %s", v, code, info.Op, op)
			}
		}
		if _, ok := tbl.Code(OpExtendedArg); !ok {
			t.Errorf("%s: no EXTENDED_ARG", v)
		}
	}
}

func TestCacheCounts(t *testing.T) {
	v311, _ := LookupVersion(3, 11)
	v312, _ := LookupVersion(3, 12)
	v313, _ := LookupVersion(3, 13)
	tests := []struct {
		v    *Version
		op   Op
		want int
	}{
		{v311, OpLoadGlobal, 5},
		{v311, OpLoadMethod, 10},
		{v311, OpCall, 4},
		{v312, OpLoadGlobal, 4},
		{v312, OpLoadAttr, 9},
		{v312, OpCall, 3},
		{v312, OpForIter, 1},
		{v313, OpToBool, 3},
		{v313, OpJumpBackward, 1},
		{v313, OpPopJumpIfTrue, 1},
		{v313, OpCompareOp, 1},
	}
	for _, tt := range tests {
		code, ok := tt.v.Table().Code(tt.op)
		if !ok {
			t.Fatalf("%s: %s missing", tt.v, tt.op)
		}
		info, _ := tt.v.Table().Lookup(code)
		if info.Caches != tt.want {
			t.Errorf("%s %s caches = %d, want %d", tt.v, tt.op, info.Caches, tt.want)
		}
	}
}

func TestUnsupportedVersion(t *testing.T) {
	for _, s := range []string{"3.14", "4.0", "x"} {
		if _, err := ParseVersion(s); err == nil {
			t.Errorf("ParseVersion(%q) succeeded", s)
		}
	}
}

func TestVersionEncoding(t *testing.T) {
	tests := []struct {
		version string
		sizeArg int
		sizeNo  int
		shift   uint
		words   bool
	}{
		{"2.7", 3, 1, 16, false},
		{"3.5", 3, 1, 16, false},
		{"3.6", 2, 2, 8, false},
		{"3.10", 2, 2, 8, true},
		{"3.12", 2, 2, 8, true},
		{"3.13", 2, 2, 8, true},
	}
	for _, tt := range tests {
		v, _ := ParseVersion(tt.version)
		if got := v.InstructionSize(true); got != tt.sizeArg {
			t.Errorf("%s size with arg = %d", tt.version, got)
		}
		if got := v.InstructionSize(false); got != tt.sizeNo {
			t.Errorf("%s size without arg = %d", tt.version, got)
		}
		if got := v.ExtendedArgShift(); got != tt.shift {
			t.Errorf("%s shift = %d", tt.version, got)
		}
		if got := v.JumpsInWords(); got != tt.words {
			t.Errorf("%s jumps in words = %v", tt.version, got)
		}
	}
}
