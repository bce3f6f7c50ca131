package bytecode

import "fmt"

// CompareOps lists COMPARE_OP operators by operand value.
var CompareOps = []string{"<", "<=", "==", "!=", ">", ">=", "in", "not in", "is", "is not", "exception match", "BAD"}

// BinaryOps lists BINARY_OP operators by operand value; values from 13
// are the in-place forms of the same list.
var BinaryOps = []string{"+", "&", "//", "<<", "@", "*", "%", "|", "**", ">>", "-", "/", "^"}

// Instruction is one decoded instruction. Instructions are immutable once
// decoded.
type Instruction struct {
	Offset int    // byte offset of the opcode
	Code   byte   // numeric opcode
	Op     Op     // version-independent mnemonic
	Info   OpInfo // metadata from the version table
	Arg    int    // operand including any EXTENDED_ARG carry
	Size   int    // width in bytes, excluding inline caches
	Line   int    // source line, 0 if unknown

	Const    *Constant // ArgConst
	Name     string    // ArgName, ArgLocal, ArgFree, first of ArgLocalPair
	Name2    string    // second of ArgLocalPair
	Operator string    // ArgCompare, ArgBinaryOp
	Target   int       // jump target, -1 for non-jumps
}

// Next returns the offset of the following instruction.
func (in *Instruction) Next() int {
	return in.Offset + in.Size + 2*in.Info.Caches
}

// IsJump reports whether the instruction has a jump target.
func (in *Instruction) IsJump() bool { return in.Target >= 0 }

// String renders the instruction as "offset MNEMONIC arg".
func (in *Instruction) String() string {
	if !in.Info.HasArg() {
		return fmt.Sprintf("%d %s", in.Offset, in.Op)
	}
	return fmt.Sprintf("%d %s %d", in.Offset, in.Op, in.Arg)
}

// Decode turns a code object's instruction buffer into typed instructions.
// EXTENDED_ARG prefixes are kept as instructions of their own so that jump
// targets landing on them stay addressable.
func Decode(code *CodeObject, v *Version) ([]Instruction, error) {
	table := v.Table()
	buf := code.Code
	out := make([]Instruction, 0, len(buf)/2)
	extended := 0
	for pos := 0; pos < len(buf); {
		opcode := buf[pos]
		info, ok := table.Lookup(opcode)
		if !ok {
			return out, &DecodeError{Offset: pos, Opcode: opcode, Err: ErrUnknownOpcode}
		}
		in := Instruction{
			Offset: pos,
			Code:   opcode,
			Op:     info.Op,
			Info:   info,
			Size:   v.InstructionSize(info.HasArg()),
			Line:   code.LineAt(pos),
			Target: -1,
		}
		if pos+in.Size > len(buf) {
			return out, &DecodeError{Offset: pos, Opcode: opcode, Err: ErrTruncated}
		}
		raw := 0
		switch {
		case v.WordCode():
			raw = int(buf[pos+1])
		case info.HasArg():
			raw = int(buf[pos+1]) | int(buf[pos+2])<<8
		}
		if info.HasArg() {
			in.Arg = raw | extended
		}
		extended = 0
		if info.Op == OpExtendedArg {
			extended = in.Arg << v.ExtendedArgShift()
		}
		if err := resolve(&in, code, v); err != nil {
			return out, &DecodeError{Offset: pos, Opcode: opcode, Err: err}
		}
		if in.Next() > len(buf) && info.Caches > 0 {
			return out, &DecodeError{Offset: pos, Opcode: opcode, Err: ErrTruncated}
		}
		out = append(out, in)
		pos = in.Next()
	}
	return out, nil
}

// NameArg returns the name-table index encoded by an ArgName operand,
// stripping the flag bits later revisions pack into the low end.
func NameArg(op Op, arg int, v *Version) int {
	switch {
	case op == OpLoadGlobal && v.AtLeast(3, 11):
		return arg >> 1
	case op == OpLoadAttr && v.AtLeast(3, 12):
		return arg >> 1
	case op == OpLoadSuperAttr:
		return arg >> 2
	}
	return arg
}

func resolve(in *Instruction, code *CodeObject, v *Version) error {
	arg := in.Arg
	switch in.Info.Arg {
	case ArgConst:
		if arg >= len(code.Consts) {
			return fmt.Errorf("%w: const %d of %d", ErrOperandRange, arg, len(code.Consts))
		}
		in.Const = &code.Consts[arg]
	case ArgName:
		idx := NameArg(in.Op, arg, v)
		if idx >= len(code.Names) {
			return fmt.Errorf("%w: name %d of %d", ErrOperandRange, idx, len(code.Names))
		}
		in.Name = code.Names[idx]
	case ArgLocal:
		names := code.VarNames
		if v.AtLeast(3, 11) {
			names = code.LocalsPlus()
		}
		if arg >= len(names) {
			return fmt.Errorf("%w: local %d of %d", ErrOperandRange, arg, len(names))
		}
		in.Name = names[arg]
	case ArgLocalPair:
		names := code.LocalsPlus()
		hi, lo := arg>>4, arg&15
		if hi >= len(names) || lo >= len(names) {
			return fmt.Errorf("%w: locals %d,%d of %d", ErrOperandRange, hi, lo, len(names))
		}
		in.Name, in.Name2 = names[hi], names[lo]
	case ArgFree:
		name, ok := code.DerefName(arg, v)
		if !ok {
			return fmt.Errorf("%w: free %d", ErrOperandRange, arg)
		}
		in.Name = name
	case ArgCompare:
		idx := arg
		switch {
		case v.AtLeast(3, 13):
			// The low bits cache the specialization and a bool-coercion flag.
			idx = arg >> 5
		case v.AtLeast(3, 12):
			idx = arg >> 4
		}
		if idx >= len(CompareOps) {
			return fmt.Errorf("%w: compare %d", ErrOperandRange, idx)
		}
		in.Operator = CompareOps[idx]
	case ArgBinaryOp:
		if arg >= 2*len(BinaryOps) {
			return fmt.Errorf("%w: binary op %d", ErrOperandRange, arg)
		}
		if arg >= len(BinaryOps) {
			in.Operator = BinaryOps[arg-len(BinaryOps)] + "="
		} else {
			in.Operator = BinaryOps[arg]
		}
	case ArgJumpAbs:
		in.Target = arg
		if v.JumpsInWords() {
			in.Target *= 2
		}
	case ArgJumpRel:
		delta := arg
		if v.JumpsInWords() {
			delta *= 2
		}
		if in.Info.Backward {
			in.Target = in.Next() - delta
		} else {
			in.Target = in.Next() + delta
		}
	}
	return nil
}
