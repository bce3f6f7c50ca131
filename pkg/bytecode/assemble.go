package bytecode

import (
	"fmt"
)

// Assembler builds code objects instruction by instruction for a given
// revision. Jumps refer to labels and are patched when the code object is
// built; the encoding is fixed-width so patching never moves code.
type Assembler struct {
	v    *Version
	code []byte
	line int

	lines    []LineEntry
	consts   []Constant
	names    []string
	varNames []string
	cellVars []string
	freeVars []string

	labels   map[string]int
	fixups   []fixup
	handlers []handlerRef
	err      error

	// Code object header fields copied into the result.
	ArgCount        int
	PosOnlyArgCount int
	KwOnlyArgCount  int
	Flags           CodeFlags
	QualName        string
}

type fixup struct {
	at    int // offset of the jump instruction
	info  OpInfo
	label string
}

type handlerRef struct {
	start, end, target string
	depth              int
	lasti              bool
}

// NewAssembler creates an assembler for the given revision.
func NewAssembler(v *Version) *Assembler {
	return &Assembler{v: v, labels: make(map[string]int)}
}

// Offset returns the offset the next instruction will be written at.
func (a *Assembler) Offset() int { return len(a.code) }

// Line sets the source line recorded for the following instructions.
func (a *Assembler) Line(n int) *Assembler {
	a.line = n
	return a
}

// Label binds name to the current offset.
func (a *Assembler) Label(name string) *Assembler {
	if _, dup := a.labels[name]; dup {
		a.fail(fmt.Errorf("label %q defined twice", name))
	}
	a.labels[name] = len(a.code)
	return a
}

// Op emits an instruction without an operand (or with operand 0).
func (a *Assembler) Op(op Op) *Assembler { return a.Arg(op, 0) }

// Arg emits an instruction with a raw operand.
func (a *Assembler) Arg(op Op, arg int) *Assembler {
	code, ok := a.v.Table().Code(op)
	if !ok {
		a.fail(fmt.Errorf("%s not defined in %s", op, a.v))
		return a
	}
	info, _ := a.v.Table().Lookup(code)
	a.emit(code, info, arg)
	return a
}

// Const emits LOAD_CONST for c, reusing an equal pool entry.
func (a *Assembler) Const(c Constant) *Assembler {
	return a.Arg(OpLoadConst, a.ConstIndex(c))
}

// ConstIndex adds c to the pool if needed and returns its index.
func (a *Assembler) ConstIndex(c Constant) int {
	for i, k := range a.consts {
		if k.Equal(c) {
			return i
		}
	}
	a.consts = append(a.consts, c)
	return len(a.consts) - 1
}

// Name emits op with the name-table index of name.
func (a *Assembler) Name(op Op, name string) *Assembler {
	return a.Arg(op, index(&a.names, name))
}

// Global emits LOAD_GLOBAL; from 3.11 pushNull sets the low operand bit.
func (a *Assembler) Global(name string, pushNull bool) *Assembler {
	idx := index(&a.names, name)
	if a.v.AtLeast(3, 11) {
		idx <<= 1
		if pushNull {
			idx |= 1
		}
	}
	return a.Arg(OpLoadGlobal, idx)
}

// Attr emits LOAD_ATTR; from 3.12 method sets the low operand bit.
func (a *Assembler) Attr(name string, method bool) *Assembler {
	idx := index(&a.names, name)
	if a.v.AtLeast(3, 12) {
		idx <<= 1
		if method {
			idx |= 1
		}
	}
	return a.Arg(OpLoadAttr, idx)
}

// Local emits op with the local-variable index of name.
func (a *Assembler) Local(op Op, name string) *Assembler {
	return a.Arg(op, index(&a.varNames, name))
}

// LocalPair emits a 3.13 superinstruction over two locals.
func (a *Assembler) LocalPair(op Op, first, second string) *Assembler {
	hi := index(&a.varNames, first)
	return a.Arg(op, hi<<4|index(&a.varNames, second))
}

// Cell declares a cell variable and emits op against it.
func (a *Assembler) Cell(op Op, name string) *Assembler {
	index(&a.cellVars, name)
	return a.Arg(op, a.derefIndex(name))
}

// Free declares a free variable and emits op against it.
func (a *Assembler) Free(op Op, name string) *Assembler {
	index(&a.freeVars, name)
	return a.Arg(op, a.derefIndex(name))
}

// Compare emits COMPARE_OP for operator.
func (a *Assembler) Compare(operator string) *Assembler {
	for i, o := range CompareOps {
		if o == operator {
			switch {
			case a.v.AtLeast(3, 13):
				i <<= 5
			case a.v.AtLeast(3, 12):
				i <<= 4
			}
			return a.Arg(OpCompareOp, i)
		}
	}
	a.fail(fmt.Errorf("unknown comparison %q", operator))
	return a
}

// BinaryOp emits BINARY_OP for operator ("+", "+=", ...).
func (a *Assembler) BinaryOp(operator string) *Assembler {
	for i, o := range BinaryOps {
		switch operator {
		case o:
			return a.Arg(OpBinaryOp, i)
		case o + "=":
			return a.Arg(OpBinaryOp, i+len(BinaryOps))
		}
	}
	a.fail(fmt.Errorf("unknown binary operator %q", operator))
	return a
}

// Jump emits a jump to label, patched at Build time.
func (a *Assembler) Jump(op Op, label string) *Assembler {
	code, ok := a.v.Table().Code(op)
	if !ok {
		a.fail(fmt.Errorf("%s not defined in %s", op, a.v))
		return a
	}
	info, _ := a.v.Table().Lookup(code)
	if !info.IsJump() {
		a.fail(fmt.Errorf("%s is not a jump", op))
		return a
	}
	a.fixups = append(a.fixups, fixup{at: len(a.code), info: info, label: label})
	a.emit(code, info, 0)
	return a
}

// Handler adds an exception-table entry covering [start, end) that
// transfers control to target.
func (a *Assembler) Handler(start, end, target string, depth int, lasti bool) *Assembler {
	a.handlers = append(a.handlers, handlerRef{start: start, end: end, target: target, depth: depth, lasti: lasti})
	return a
}

// Build resolves labels and returns the finished code object.
func (a *Assembler) Build(name string) (*CodeObject, error) {
	if a.err != nil {
		return nil, a.err
	}
	for _, f := range a.fixups {
		target, ok := a.labels[f.label]
		if !ok {
			return nil, fmt.Errorf("undefined label %q", f.label)
		}
		if err := a.patch(f, target); err != nil {
			return nil, err
		}
	}
	var table []ExceptionEntry
	for _, h := range a.handlers {
		var offs [3]int
		for i, l := range []string{h.start, h.end, h.target} {
			off, ok := a.labels[l]
			if !ok {
				return nil, fmt.Errorf("undefined label %q", l)
			}
			offs[i] = off
		}
		table = append(table, ExceptionEntry{Start: offs[0], End: offs[1], Target: offs[2], Depth: h.depth, Lasti: h.lasti})
	}
	firstLine := 0
	if len(a.lines) > 0 {
		firstLine = a.lines[0].Line
	}
	return &CodeObject{
		Name:            name,
		QualName:        a.QualName,
		FirstLine:       firstLine,
		ArgCount:        a.ArgCount,
		PosOnlyArgCount: a.PosOnlyArgCount,
		KwOnlyArgCount:  a.KwOnlyArgCount,
		NumLocals:       len(a.varNames),
		Flags:           a.Flags,
		Code:            a.code,
		Consts:          a.consts,
		Names:           a.names,
		VarNames:        a.varNames,
		CellVars:        a.cellVars,
		FreeVars:        a.freeVars,
		Lines:           a.lines,
		ExceptionTable:  table,
	}, nil
}

// Params declares positional parameters in order, before any other local.
func (a *Assembler) Params(names ...string) *Assembler {
	for _, n := range names {
		index(&a.varNames, n)
	}
	a.ArgCount = len(names)
	return a
}

func (a *Assembler) emit(code byte, info OpInfo, arg int) {
	if a.line > 0 && (len(a.lines) == 0 || a.lines[len(a.lines)-1].Line != a.line) {
		a.lines = append(a.lines, LineEntry{Offset: len(a.code), Line: a.line})
	}
	if a.v.WordCode() {
		if arg > 0xff {
			a.Arg(OpExtendedArg, arg>>8)
			arg &= 0xff
		}
		a.code = append(a.code, code, byte(arg))
	} else {
		if arg > 0xffff {
			a.Arg(OpExtendedArg, arg>>16)
			arg &= 0xffff
		}
		a.code = append(a.code, code)
		if info.HasArg() {
			a.code = append(a.code, byte(arg), byte(arg>>8))
		}
	}
	for i := 0; i < info.Caches; i++ {
		a.code = append(a.code, 0, 0)
	}
}

func (a *Assembler) patch(f fixup, target int) error {
	size := a.v.InstructionSize(true)
	next := f.at + size + 2*f.info.Caches
	var arg int
	switch {
	case f.info.Arg == ArgJumpAbs:
		arg = target
	case f.info.Backward:
		arg = next - target
	default:
		arg = target - next
	}
	if a.v.JumpsInWords() {
		arg /= 2
	}
	if arg < 0 {
		return fmt.Errorf("jump at %d to %d runs the wrong way", f.at, target)
	}
	if a.v.WordCode() {
		if arg > 0xff {
			return fmt.Errorf("jump at %d: operand %d needs EXTENDED_ARG", f.at, arg)
		}
		a.code[f.at+1] = byte(arg)
		return nil
	}
	if arg > 0xffff {
		return fmt.Errorf("jump at %d: operand %d needs EXTENDED_ARG", f.at, arg)
	}
	a.code[f.at+1] = byte(arg)
	a.code[f.at+2] = byte(arg >> 8)
	return nil
}

func (a *Assembler) derefIndex(name string) int {
	if a.v.AtLeast(3, 11) {
		// Cells and frees follow the locals; resolved against the final
		// tables, so declare every local before the first deref.
		plus := (&CodeObject{VarNames: a.varNames, CellVars: a.cellVars, FreeVars: a.freeVars}).LocalsPlus()
		for i, n := range plus {
			if n == name {
				return i
			}
		}
		return -1
	}
	for i, n := range a.cellVars {
		if n == name {
			return i
		}
	}
	for i, n := range a.freeVars {
		if n == name {
			return len(a.cellVars) + i
		}
	}
	return -1
}

func (a *Assembler) fail(err error) {
	if a.err == nil {
		a.err = err
	}
}

func index(table *[]string, name string) int {
	for i, n := range *table {
		if n == name {
			return i
		}
	}
	*table = append(*table, name)
	return len(*table) - 1
}
