package bytecode

import (
	"fmt"
	"sort"
)

// CodeFlags is the code object's flag bitmask.
type CodeFlags uint32

const (
	FlagOptimized         CodeFlags = 0x0001
	FlagNewLocals         CodeFlags = 0x0002
	FlagVarargs           CodeFlags = 0x0004
	FlagVarKeywords       CodeFlags = 0x0008
	FlagNested            CodeFlags = 0x0010
	FlagGenerator         CodeFlags = 0x0020
	FlagNoFree            CodeFlags = 0x0040
	FlagCoroutine         CodeFlags = 0x0080
	FlagIterableCoroutine CodeFlags = 0x0100
	FlagAsyncGenerator    CodeFlags = 0x0200
)

// ConstKind tags a constant-pool entry.
type ConstKind uint8

const (
	ConstNone ConstKind = iota
	ConstBool
	ConstInt
	ConstFloat
	ConstComplex
	ConstString
	ConstBytes
	ConstTuple
	ConstList
	ConstSet
	ConstFrozenSet
	ConstDict
	ConstCode
	ConstEllipsis
)

var constKindNames = [...]string{
	ConstNone:      "none",
	ConstBool:      "bool",
	ConstInt:       "int",
	ConstFloat:     "float",
	ConstComplex:   "complex",
	ConstString:    "str",
	ConstBytes:     "bytes",
	ConstTuple:     "tuple",
	ConstList:      "list",
	ConstSet:       "set",
	ConstFrozenSet: "frozenset",
	ConstDict:      "dict",
	ConstCode:      "code",
	ConstEllipsis:  "ellipsis",
}

// String returns a human-readable name for the kind.
func (k ConstKind) String() string {
	if int(k) < len(constKindNames) {
		return constKindNames[k]
	}
	return fmt.Sprintf("ConstKind(%d)", k)
}

// ParseConstKind is the inverse of ConstKind.String.
func ParseConstKind(s string) (ConstKind, bool) {
	for i, n := range constKindNames {
		if n == s {
			return ConstKind(i), true
		}
	}
	return 0, false
}

// Constant is one constant-pool entry. Only the fields relevant to Kind
// are meaningful.
type Constant struct {
	Kind    ConstKind
	Bool    bool
	Int     int64
	BigInt  string // decimal digits of an int that does not fit Int
	Float   float64
	Imag    float64
	Str     string
	Unicode bool // str written with a u prefix (2.x unicode)
	Bytes   []byte
	Items   []Constant // tuple/list/set/frozenset elements, dict keys
	Values  []Constant // dict values
	Code    *CodeObject
}

// Constant constructors.

func None() Constant { return Constant{Kind: ConstNone} }
func Ellipsis() Constant { return Constant{Kind: ConstEllipsis} }
func Bool(b bool) Constant { return Constant{Kind: ConstBool, Bool: b} }
func Int(i int64) Constant { return Constant{Kind: ConstInt, Int: i} }
func Float(f float64) Constant { return Constant{Kind: ConstFloat, Float: f} }
func Str(s string) Constant { return Constant{Kind: ConstString, Str: s} }
func BytesConst(b []byte) Constant { return Constant{Kind: ConstBytes, Bytes: b} }
func Code(c *CodeObject) Constant { return Constant{Kind: ConstCode, Code: c} }

// Tuple builds a tuple constant.
func Tuple(items ...Constant) Constant {
	return Constant{Kind: ConstTuple, Items: items}
}

// FrozenSet builds a frozenset constant.
func FrozenSet(items ...Constant) Constant {
	return Constant{Kind: ConstFrozenSet, Items: items}
}

// IsNone reports whether c is the None constant.
func (c Constant) IsNone() bool { return c.Kind == ConstNone }

// Equal reports structural equality. Nested code objects compare by identity.
func (c Constant) Equal(o Constant) bool {
	if c.Kind != o.Kind {
		return false
	}
	switch c.Kind {
	case ConstNone, ConstEllipsis:
		return true
	case ConstBool:
		return c.Bool == o.Bool
	case ConstInt:
		return c.Int == o.Int && c.BigInt == o.BigInt
	case ConstFloat:
		return c.Float == o.Float
	case ConstComplex:
		return c.Float == o.Float && c.Imag == o.Imag
	case ConstString:
		return c.Str == o.Str && c.Unicode == o.Unicode
	case ConstBytes:
		return string(c.Bytes) == string(o.Bytes)
	case ConstCode:
		return c.Code == o.Code
	}
	if len(c.Items) != len(o.Items) || len(c.Values) != len(o.Values) {
		return false
	}
	for i := range c.Items {
		if !c.Items[i].Equal(o.Items[i]) {
			return false
		}
	}
	for i := range c.Values {
		if !c.Values[i].Equal(o.Values[i]) {
			return false
		}
	}
	return true
}

// LineEntry maps the first byte offset of a run of instructions to the
// source line they came from.
type LineEntry struct {
	Offset int
	Line   int
}

// ExceptionEntry is one row of an exception table. Offsets are in bytes.
type ExceptionEntry struct {
	Start  int
	End    int
	Target int
	Depth  int
	Lasti  bool
}

// Contains reports whether offset lies in [Start, End).
func (e ExceptionEntry) Contains(offset int) bool {
	return offset >= e.Start && offset < e.End
}

// CodeObject is one compiled function, class body, comprehension or module.
type CodeObject struct {
	Name            string
	QualName        string
	Filename        string
	FirstLine       int
	ArgCount        int
	PosOnlyArgCount int
	KwOnlyArgCount  int
	NumLocals       int
	StackSize       int
	Flags           CodeFlags

	Code     []byte
	Consts   []Constant
	Names    []string
	VarNames []string
	CellVars []string
	FreeVars []string

	Lines          []LineEntry      // sorted by Offset
	ExceptionTable []ExceptionEntry // 3.11+ only
}

// HasFlag reports whether every bit of f is set.
func (c *CodeObject) HasFlag(f CodeFlags) bool { return c.Flags&f == f }

// LineAt returns the source line of the instruction at offset, or 0 when
// no line information covers it.
func (c *CodeObject) LineAt(offset int) int {
	i := sort.Search(len(c.Lines), func(i int) bool { return c.Lines[i].Offset > offset })
	if i == 0 {
		return 0
	}
	return c.Lines[i-1].Line
}

// DerefName resolves a cell/free variable operand. Before 3.11 the index
// spans cellvars then freevars; from 3.11 it indexes the combined
// locals-plus table (varnames, cells not already in varnames, freevars).
func (c *CodeObject) DerefName(index int, v *Version) (string, bool) {
	if v.AtLeast(3, 11) {
		plus := c.LocalsPlus()
		if index < 0 || index >= len(plus) {
			return "", false
		}
		return plus[index], true
	}
	if index < 0 {
		return "", false
	}
	if index < len(c.CellVars) {
		return c.CellVars[index], true
	}
	index -= len(c.CellVars)
	if index < len(c.FreeVars) {
		return c.FreeVars[index], true
	}
	return "", false
}

// LocalsPlus returns the 3.11 combined variable table.
func (c *CodeObject) LocalsPlus() []string {
	out := make([]string, 0, len(c.VarNames)+len(c.CellVars)+len(c.FreeVars))
	out = append(out, c.VarNames...)
	seen := make(map[string]bool, len(c.VarNames))
	for _, n := range c.VarNames {
		seen[n] = true
	}
	for _, n := range c.CellVars {
		if !seen[n] {
			out = append(out, n)
		}
	}
	return append(out, c.FreeVars...)
}

// IsFreeVar reports whether name is a free variable of c.
func (c *CodeObject) IsFreeVar(name string) bool {
	for _, n := range c.FreeVars {
		if n == name {
			return true
		}
	}
	return false
}

// Walk calls fn for c and every nested code object reachable through the
// constant pool, depth first.
func (c *CodeObject) Walk(fn func(*CodeObject)) {
	fn(c)
	for _, k := range c.Consts {
		walkConst(k, fn)
	}
}

func walkConst(k Constant, fn func(*CodeObject)) {
	if k.Kind == ConstCode && k.Code != nil {
		k.Code.Walk(fn)
		return
	}
	for _, it := range k.Items {
		walkConst(it, fn)
	}
}
