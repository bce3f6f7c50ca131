package ast

import (
	"strings"

	"github.com/skuznetsov/depyo.js-sub000/pkg/bytecode"
)

// IndentUnit is one level of indentation.
const IndentUnit = "    "

// maxBlankLines caps the vertical gap preserved between statements.
const maxBlankLines = 2

// Printer accumulates rendered lines at the current indentation.
type Printer struct {
	lines  []string
	indent int
}

// NewPrinter returns an empty printer at indentation zero.
func NewPrinter() *Printer { return &Printer{} }

// Line appends one line at the current indentation.
func (p *Printer) Line(s string) {
	if s == "" {
		p.lines = append(p.lines, "")
		return
	}
	p.lines = append(p.lines, strings.Repeat(IndentUnit, p.indent)+s)
}

// Indent increases the indentation by one level.
func (p *Printer) Indent() { p.indent++ }

// Dedent decreases the indentation by one level.
func (p *Printer) Dedent() {
	if p.indent > 0 {
		p.indent--
	}
}

// Lines returns the rendered lines.
func (p *Printer) Lines() []string { return p.lines }

// String joins the rendered lines.
func (p *Printer) String() string { return strings.Join(p.lines, "\n") }

// Render renders any node to text. Expressions render inline; statements
// and modules render as lines without a trailing newline.
func Render(n Node) string {
	switch n := n.(type) {
	case Expr:
		return ExprString(n)
	case *Module:
		p := NewPrinter()
		p.Stmts(n.Body, false)
		return p.String()
	case Stmt:
		p := NewPrinter()
		p.Stmt(n)
		return p.String()
	}
	return ""
}

// Body renders an indented suite, substituting pass for an empty one.
func (p *Printer) Body(body []Stmt) {
	p.Indent()
	p.Stmts(body, true)
	p.Dedent()
}

// Stmts renders sibling statements, preserving up to two blank lines of
// source gap and joining simple statements that share a line.
func (p *Printer) Stmts(body []Stmt, needPass bool) {
	if len(body) == 0 {
		if needPass {
			p.Line("pass")
		}
		return
	}
	for i, st := range body {
		if i > 0 {
			prev := body[i-1]
			if sameLine(prev, st) {
				p.joinLast(st)
				continue
			}
			for n := blankLinesBetween(prev, st); n > 0; n-- {
				p.Line("")
			}
		}
		p.Stmt(st)
	}
}

func (p *Printer) joinLast(st Stmt) {
	sub := &Printer{}
	sub.Stmt(st)
	last := len(p.lines) - 1
	p.lines[last] += "; " + strings.Join(sub.lines, "; ")
}

// sameLine reports whether two simple statements came from one source line.
func sameLine(prev, cur Stmt) bool {
	if !isSimple(prev) || !isSimple(cur) {
		return false
	}
	a, b := prev.Span(), cur.Span()
	return a.Last > 0 && b.First == a.Last
}

// blankLinesBetween is the clamped source gap between siblings.
func blankLinesBetween(prev, cur Stmt) int {
	a, b := prev.Span(), cur.Span()
	if a.Last == 0 || b.First == 0 {
		return 0
	}
	gap := b.First - a.Last - 1
	if gap < 0 {
		return 0
	}
	if gap > maxBlankLines {
		return maxBlankLines
	}
	return gap
}

func isSimple(st Stmt) bool {
	switch st.(type) {
	case *If, *While, *For, *Try, *With, *FunctionDef, *ClassDef, *Match, *Comment:
		return false
	}
	return true
}

// Stmt renders a single statement.
func (p *Printer) Stmt(st Stmt) {
	switch s := st.(type) {
	case *ExprStmt:
		p.Line(exprStmtString(s.X))
	case *Assign:
		parts := make([]string, 0, len(s.Targets)+1)
		for _, t := range s.Targets {
			parts = append(parts, targetString(t))
		}
		parts = append(parts, valueString(s.Value))
		p.Line(strings.Join(parts, " = "))
	case *AugAssign:
		p.Line(targetString(s.Target) + " " + s.Op + "= " + valueString(s.Value))
	case *AnnAssign:
		line := targetString(s.Target) + ": " + elemString(s.Annotation)
		if s.Value != nil {
			line += " = " + valueString(s.Value)
		}
		p.Line(line)
	case *Delete:
		parts := make([]string, len(s.Targets))
		for i, t := range s.Targets {
			parts[i] = targetString(t)
		}
		p.Line("del " + strings.Join(parts, ", "))
	case *Return:
		if s.Value == nil {
			p.Line("return")
			return
		}
		p.Line("return " + valueString(s.Value))
	case *Raise:
		p.Line(raiseString(s))
	case *Assert:
		line := "assert " + elemString(s.Test)
		if s.Msg != nil {
			line += ", " + elemString(s.Msg)
		}
		p.Line(line)
	case *Print:
		p.Line(printString(s))
	case *Exec:
		line := "exec " + exprString(s.Body, precBitOr)
		if s.Globals != nil {
			line += " in " + elemString(s.Globals)
			if s.Locals != nil {
				line += ", " + elemString(s.Locals)
			}
		}
		p.Line(line)
	case *Pass:
		p.Line("pass")
	case *Break:
		p.Line("break")
	case *Continue:
		p.Line("continue")
	case *Global:
		p.Line("global " + strings.Join(s.Names, ", "))
	case *Nonlocal:
		p.Line("nonlocal " + strings.Join(s.Names, ", "))
	case *ImportStmt:
		p.Line("import " + aliasesString(s.Names))
	case *ImportFromStmt:
		p.Line("from " + strings.Repeat(".", s.Level) + s.Module + " import " + aliasesString(s.Names))
	case *If:
		p.ifChain(s, "if")
	case *While:
		p.Line("while " + exprString(s.Test, precLambda) + ":")
		p.Body(s.Body)
		p.orElse(s.OrElse)
	case *For:
		head := "for "
		if s.Async {
			head = "async for "
		}
		p.Line(head + targetString(s.Target) + " in " + valueString(s.Iter) + ":")
		p.Body(s.Body)
		p.orElse(s.OrElse)
	case *Try:
		p.try(s)
	case *With:
		items := make([]string, len(s.Items))
		for i, it := range s.Items {
			items[i] = elemString(it.Context)
			if it.Vars != nil {
				items[i] += " as " + targetString(it.Vars)
			}
		}
		head := "with "
		if s.Async {
			head = "async with "
		}
		p.Line(head + strings.Join(items, ", ") + ":")
		p.Body(s.Body)
	case *FunctionDef:
		p.function(s)
	case *ClassDef:
		p.class(s)
	case *Match:
		p.Line("match " + valueString(s.Subject) + ":")
		p.Indent()
		for _, c := range s.Cases {
			head := "case " + PatternString(c.Pattern)
			if c.Guard != nil {
				head += " if " + elemString(c.Guard)
			}
			p.Line(head + ":")
			p.Body(c.Body)
		}
		p.Dedent()
	case *Comment:
		p.Line("# " + s.Text)
	default:
		p.Line("<unknown statement>")
	}
}

func exprStmtString(e Expr) string {
	if c, ok := e.(*Const); ok && c.Value.Kind == bytecode.ConstString {
		return docString(c.Value)
	}
	return valueString(e)
}

// valueString renders the right-hand side of an assignment or return.
func valueString(e Expr) string {
	switch e.(type) {
	case *Yield, *YieldFrom:
		return ExprString(e)
	}
	return elemString(e)
}

// docString renders a string statement as a triple-quoted literal when
// that round-trips, else as an ordinary literal.
func docString(c bytecode.Constant) string {
	s := c.Str
	if s == "" || strings.Contains(s, `"""`) || strings.HasSuffix(s, `"`) || strings.HasSuffix(s, `\`) ||
		strings.ContainsAny(s, "\r\x00") {
		return c.Repr()
	}
	s = strings.ReplaceAll(s, `\`, `\\`)
	prefix := ""
	if c.Unicode {
		prefix = "u"
	}
	return prefix + `"""` + s + `"""`
}

func (p *Printer) ifChain(s *If, keyword string) {
	p.Line(keyword + " " + exprString(s.Test, precLambda) + ":")
	p.Body(s.Body)
	if len(s.OrElse) == 1 {
		if elif, ok := s.OrElse[0].(*If); ok {
			p.ifChain(elif, "elif")
			return
		}
	}
	p.orElse(s.OrElse)
}

func (p *Printer) orElse(body []Stmt) {
	if len(body) == 0 {
		return
	}
	p.Line("else:")
	p.Body(body)
}

func (p *Printer) try(s *Try) {
	p.Line("try:")
	p.Body(s.Body)
	for _, h := range s.Handlers {
		head := "except"
		if h.Star {
			head = "except*"
		}
		if h.Type != nil {
			head += " " + elemString(h.Type)
			if h.Name != "" {
				head += " as " + h.Name
			}
		}
		p.Line(head + ":")
		p.Body(h.Body)
	}
	p.orElse(s.OrElse)
	if len(s.FinalBody) > 0 || len(s.Handlers) == 0 {
		p.Line("finally:")
		p.Body(s.FinalBody)
	}
}

func (p *Printer) function(s *FunctionDef) {
	f := s.Func
	for _, d := range f.Decorators {
		p.Line("@" + exprString(d, precLambda))
	}
	head := "def "
	if f.IsAsync {
		head = "async def "
	}
	line := head + s.Name + "(" + ArgumentsString(f.Args, true) + ")"
	if f.Returns != nil {
		line += " -> " + elemString(f.Returns)
	}
	p.Line(line + ":")
	p.Body(f.Body)
}

func (p *Printer) class(s *ClassDef) {
	c := s.Class
	for _, d := range c.Decorators {
		p.Line("@" + exprString(d, precLambda))
	}
	parts := make([]string, 0, len(c.Bases)+len(c.Keywords))
	for _, b := range c.Bases {
		parts = append(parts, elemString(b))
	}
	for _, k := range c.Keywords {
		if k.Name == "" {
			parts = append(parts, "**"+exprString(k.Value, precBitOr))
			continue
		}
		parts = append(parts, k.Name+"="+elemString(k.Value))
	}
	head := "class " + c.Name
	if len(parts) > 0 {
		head += "(" + strings.Join(parts, ", ") + ")"
	}
	p.Line(head + ":")
	p.Body(c.Body)
}

func raiseString(s *Raise) string {
	if s.Exc == nil {
		return "raise"
	}
	line := "raise " + elemString(s.Exc)
	switch {
	case s.Cause != nil:
		line += " from " + elemString(s.Cause)
	case s.Value != nil:
		line += ", " + elemString(s.Value)
		if s.Traceback != nil {
			line += ", " + elemString(s.Traceback)
		}
	}
	return line
}

func printString(s *Print) string {
	parts := make([]string, 0, len(s.Values)+1)
	if s.Dest != nil {
		parts = append(parts, ">>"+elemString(s.Dest))
	}
	for _, v := range s.Values {
		parts = append(parts, elemString(v))
	}
	line := "print"
	if len(parts) > 0 {
		line += " " + strings.Join(parts, ", ")
	}
	if !s.Newline && len(s.Values) > 0 {
		line += ","
	}
	return line
}

func aliasesString(names []Alias) string {
	parts := make([]string, len(names))
	for i, a := range names {
		parts[i] = a.Name
		if a.AsName != "" && a.AsName != a.Name {
			parts[i] += " as " + a.AsName
		}
	}
	return strings.Join(parts, ", ")
}
