package bytecode

import (
	"fmt"
	"strings"

	"golang.org/x/text/width"
)

// constColumns bounds the display width of a constant in the listing header.
const constColumns = 48

// Disassemble returns a human-readable listing of code and, recursively,
// every nested code object in its constant pool.
func Disassemble(code *CodeObject, v *Version) (string, error) {
	var sb strings.Builder
	first := true
	var err error
	code.Walk(func(c *CodeObject) {
		if err != nil {
			return
		}
		if !first {
			sb.WriteString("\n")
		}
		first = false
		err = disassembleOne(&sb, c, v)
	})
	return sb.String(), err
}

func disassembleOne(sb *strings.Builder, c *CodeObject, v *Version) error {
	fmt.Fprintf(sb, "; === %s (line %d) ===\n", displayName(c), c.FirstLine)
	fmt.Fprintf(sb, "; Version %s, flags 0x%04X", v, uint32(c.Flags))
	for _, f := range flagNames {
		if c.Flags&f.flag != 0 {
			fmt.Fprintf(sb, " [%s]", f.name)
		}
	}
	sb.WriteString("\n")
	if c.ArgCount+c.KwOnlyArgCount > 0 {
		fmt.Fprintf(sb, "; Arguments: %d positional (%d only), %d keyword-only\n",
			c.ArgCount, c.PosOnlyArgCount, c.KwOnlyArgCount)
	}
	writeTable(sb, "Names", c.Names)
	writeTable(sb, "Locals", c.VarNames)
	writeTable(sb, "Cells", c.CellVars)
	writeTable(sb, "Free", c.FreeVars)
	if len(c.Consts) > 0 {
		sb.WriteString("; Constants:\n")
		for i, k := range c.Consts {
			fmt.Fprintf(sb, ";   [%3d] %s\n", i, truncateWidth(k.Repr(), constColumns))
		}
	}
	for _, e := range c.ExceptionTable {
		fmt.Fprintf(sb, "; Handler: %d to %d -> %d [%d]", e.Start, e.End, e.Target, e.Depth)
		if e.Lasti {
			sb.WriteString(" lasti")
		}
		sb.WriteString("\n")
	}
	sb.WriteString("\n")

	instrs, err := Decode(c, v)
	if err != nil {
		for _, in := range instrs {
			sb.WriteString(formatInstruction(&in, nil, 0))
		}
		return fmt.Errorf("disassemble %s: %w", displayName(c), err)
	}
	targets := make(map[int]bool)
	for _, in := range instrs {
		if in.IsJump() {
			targets[in.Target] = true
		}
	}
	for _, e := range c.ExceptionTable {
		targets[e.Target] = true
	}
	lastLine := -1
	for i := range instrs {
		in := &instrs[i]
		line := 0
		if in.Line != lastLine {
			line = in.Line
			lastLine = in.Line
		}
		sb.WriteString(formatInstruction(in, targets, line))
	}
	return nil
}

// FormatInstruction renders one instruction as a listing row without line
// or jump-target decoration.
func FormatInstruction(in *Instruction) string {
	return strings.TrimRight(formatInstruction(in, nil, 0), "\n")
}

func formatInstruction(in *Instruction, targets map[int]bool, line int) string {
	lineCol := ""
	if line > 0 {
		lineCol = fmt.Sprint(line)
	}
	marker := ""
	if targets[in.Offset] {
		marker = ">>"
	}
	row := fmt.Sprintf("%5s %2s %6d %-24s", lineCol, marker, in.Offset, in.Op)
	if in.Info.HasArg() {
		row += fmt.Sprintf(" %5d", in.Arg)
		if r := argRepr(in); r != "" {
			row += " (" + r + ")"
		}
	}
	return strings.TrimRight(row, " ") + "\n"
}

func argRepr(in *Instruction) string {
	switch in.Info.Arg {
	case ArgConst:
		if in.Const != nil {
			return truncateWidth(in.Const.Repr(), constColumns)
		}
	case ArgName:
		switch {
		case in.Op == OpLoadGlobal && in.Arg&1 == 1 && in.Name != "" && in.Info.Caches > 0:
			return "NULL + " + in.Name
		case in.Op == OpLoadAttr && in.Arg&1 == 1 && in.Info.Caches == 9:
			return in.Name + " + NULL|self"
		}
		return in.Name
	case ArgLocal, ArgFree:
		return in.Name
	case ArgLocalPair:
		return in.Name + ", " + in.Name2
	case ArgCompare, ArgBinaryOp:
		return in.Operator
	case ArgJumpRel, ArgJumpAbs:
		return fmt.Sprintf("to %d", in.Target)
	}
	return ""
}

var flagNames = []struct {
	flag CodeFlags
	name string
}{
	{FlagOptimized, "OPTIMIZED"},
	{FlagNewLocals, "NEWLOCALS"},
	{FlagVarargs, "VARARGS"},
	{FlagVarKeywords, "VARKEYWORDS"},
	{FlagNested, "NESTED"},
	{FlagGenerator, "GENERATOR"},
	{FlagNoFree, "NOFREE"},
	{FlagCoroutine, "COROUTINE"},
	{FlagIterableCoroutine, "ITERABLE_COROUTINE"},
	{FlagAsyncGenerator, "ASYNC_GENERATOR"},
}

func displayName(c *CodeObject) string {
	if c.QualName != "" {
		return c.QualName
	}
	if c.Name != "" {
		return c.Name
	}
	return "<module>"
}

func writeTable(sb *strings.Builder, title string, names []string) {
	if len(names) == 0 {
		return
	}
	fmt.Fprintf(sb, "; %s: %s\n", title, strings.Join(names, ", "))
}

// truncateWidth shortens s to at most cols display columns, counting
// East Asian wide and fullwidth runes as two columns.
func truncateWidth(s string, cols int) string {
	if displayWidth(s) <= cols {
		return s
	}
	used := 0
	var sb strings.Builder
	for _, r := range s {
		w := runeWidth(r)
		if used+w > cols-3 {
			break
		}
		sb.WriteRune(r)
		used += w
	}
	sb.WriteString("...")
	return sb.String()
}

func displayWidth(s string) int {
	n := 0
	for _, r := range s {
		n += runeWidth(r)
	}
	return n
}

func runeWidth(r rune) int {
	switch width.LookupRune(r).Kind() {
	case width.EastAsianWide, width.EastAsianFullwidth:
		return 2
	}
	return 1
}
