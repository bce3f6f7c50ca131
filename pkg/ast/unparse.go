package ast

import (
	"strings"

	"github.com/skuznetsov/depyo.js-sub000/pkg/bytecode"
)

// Operator precedence levels (higher = tighter binding)
const (
	precLowest  = iota
	precLambda  // lambda
	precTernary // x if c else y
	precOr      // or
	precAnd     // and
	precNot     // not
	precCompare // < <= == != > >= in is
	precBitOr   // |
	precBitXor  // ^
	precBitAnd  // &
	precShift   // << >>
	precArith   // + -
	precTerm    // * / // % @
	precUnary   // - + ~
	precPower   // **
	precAwait   // await
	precAtom    // call, subscript, attribute, displays
)

var binaryPrec = map[string]int{
	"or":  precOr,
	"and": precAnd,
	"|":   precBitOr,
	"^":   precBitXor,
	"&":   precBitAnd,
	"<<":  precShift,
	">>":  precShift,
	"+":   precArith,
	"-":   precArith,
	"*":   precTerm,
	"/":   precTerm,
	"//":  precTerm,
	"%":   precTerm,
	"@":   precTerm,
	"**":  precPower,
}

// ExprString renders an expression at statement level.
func ExprString(e Expr) string { return exprString(e, precLowest) }

func precOf(e Expr) int {
	switch e := e.(type) {
	case *Lambda:
		return precLambda
	case *Function:
		if e.IsLambda {
			return precLambda
		}
	case *IfExp:
		return precTernary
	case *Binary:
		if p, ok := binaryPrec[e.Op]; ok {
			return p
		}
		return precArith
	case *Unary:
		if e.Op == "not" {
			return precNot
		}
		return precUnary
	case *Compare:
		return precCompare
	case *Await:
		return precAwait
	case *Yield, *YieldFrom, *NamedExpr:
		return precLowest
	case *Const:
		if negativeNumber(e.Value) {
			return precUnary
		}
	}
	return precAtom
}

func negativeNumber(c bytecode.Constant) bool {
	switch c.Kind {
	case bytecode.ConstInt:
		return c.Int < 0 || strings.HasPrefix(c.BigInt, "-")
	case bytecode.ConstFloat:
		return c.Float < 0 || (c.Float == 0 && strings.HasPrefix(bytecode.FloatRepr(c.Float), "-"))
	}
	return false
}

func exprString(e Expr, prec int) string {
	s := unparseExpr(e)
	switch e.(type) {
	case *NamedExpr:
		return "(" + s + ")"
	case *Yield, *YieldFrom:
		if prec > precLowest {
			return "(" + s + ")"
		}
		return s
	}
	if precOf(e) < prec {
		return "(" + s + ")"
	}
	return s
}

func unparseExpr(e Expr) string {
	switch e := e.(type) {
	case nil:
		return "<nil>"
	case *Name:
		return e.Id
	case *Const:
		return constString(e.Value)
	case *Unary:
		switch e.Op {
		case "not":
			return "not " + exprString(e.X, precNot)
		case "`":
			return "`" + exprString(e.X, precLowest) + "`"
		}
		return e.Op + exprString(e.X, precUnary)
	case *Binary:
		p := precOf(e)
		if e.Op == "**" {
			return exprString(e.X, p+1) + " ** " + exprString(e.Y, precUnary)
		}
		return exprString(e.X, p) + " " + e.Op + " " + exprString(e.Y, p+1)
	case *Compare:
		var sb strings.Builder
		sb.WriteString(exprString(e.Left, precCompare+1))
		for i, op := range e.Ops {
			sb.WriteString(" " + op + " ")
			sb.WriteString(exprString(e.Comparators[i], precCompare+1))
		}
		return sb.String()
	case *Attribute:
		x := exprString(e.X, precAtom)
		if c, ok := e.X.(*Const); ok && c.Value.Kind == bytecode.ConstInt {
			x = "(" + x + ")"
		}
		return x + "." + e.Attr
	case *Subscript:
		return exprString(e.X, precAtom) + "[" + indexString(e.Index) + "]"
	case *Slice:
		return sliceString(e)
	case *Tuple:
		switch len(e.Elts) {
		case 0:
			return "()"
		case 1:
			return "(" + elemString(e.Elts[0]) + ",)"
		}
		return "(" + joinElems(e.Elts) + ")"
	case *List:
		return "[" + joinElems(e.Elts) + "]"
	case *Set:
		if len(e.Elts) == 0 {
			return "set()"
		}
		return "{" + joinElems(e.Elts) + "}"
	case *Dict:
		parts := make([]string, len(e.Keys))
		for i, k := range e.Keys {
			if k == nil {
				parts[i] = "**" + exprString(e.Values[i], precBitOr)
				continue
			}
			parts[i] = elemString(k) + ": " + elemString(e.Values[i])
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case *Starred:
		return "*" + exprString(e.X, precBitOr)
	case *Call:
		return callString(e)
	case *IfExp:
		return exprString(e.Body, precTernary+1) + " if " + exprString(e.Test, precTernary+1) +
			" else " + exprString(e.OrElse, precTernary)
	case *Comprehension:
		return comprehensionString(e)
	case *JoinedStr:
		return joinedString(e)
	case *FormattedValue:
		return joinedString(&JoinedStr{Values: []Expr{e}})
	case *NamedExpr:
		return unparseExpr(e.Target) + " := " + exprString(e.Value, precLambda)
	case *Lambda:
		args := ArgumentsString(e.Args, false)
		if args != "" {
			args = " " + args
		}
		return "lambda" + args + ": " + exprString(e.Body, precLambda)
	case *Yield:
		if e.Value == nil {
			return "yield"
		}
		return "yield " + targetString(e.Value)
	case *YieldFrom:
		return "yield from " + exprString(e.Value, precLambda)
	case *Await:
		return "await " + exprString(e.Value, precAtom)
	case *Function:
		if e.IsLambda {
			return lambdaFromFunction(e)
		}
		return "<function " + e.Code.Name + ">"
	case *Class:
		return "<class " + e.Name + ">"
	case *Import:
		return "__import__(" + bytecode.StringRepr(e.Module) + ")"
	case *ImportFrom:
		return e.Name
	case *Marker:
		return "<" + e.Label + ">"
	}
	return "<?>"
}

func constString(c bytecode.Constant) string {
	if c.Kind == bytecode.ConstEllipsis {
		return "..."
	}
	return c.Repr()
}

func elemString(e Expr) string { return exprString(e, precLambda) }

func joinElems(elts []Expr) string {
	parts := make([]string, len(elts))
	for i, el := range elts {
		parts[i] = elemString(el)
	}
	return strings.Join(parts, ", ")
}

func indexString(e Expr) string {
	if t, ok := e.(*Tuple); ok && len(t.Elts) > 0 {
		parts := make([]string, len(t.Elts))
		for i, el := range t.Elts {
			parts[i] = indexString(el)
		}
		if len(parts) == 1 {
			return parts[0] + ","
		}
		return strings.Join(parts, ", ")
	}
	if s, ok := e.(*Slice); ok {
		return sliceString(s)
	}
	return elemString(e)
}

func sliceString(s *Slice) string {
	part := func(e Expr) string {
		if e == nil {
			return ""
		}
		if c, ok := e.(*Const); ok && c.Value.IsNone() {
			return ""
		}
		return elemString(e)
	}
	out := part(s.Lower) + ":" + part(s.Upper)
	if step := part(s.Step); step != "" {
		out += ":" + step
	}
	return out
}

func callString(c *Call) string {
	parts := make([]string, 0, len(c.Args)+len(c.Keywords))
	for _, a := range c.Args {
		if g, ok := a.(*Comprehension); ok && g.Kind == GeneratorExp && len(c.Args) == 1 && len(c.Keywords) == 0 {
			return exprString(c.Func, precAtom) + "(" + comprehensionBody(g) + ")"
		}
		parts = append(parts, elemString(a))
	}
	for _, k := range c.Keywords {
		if k.Name == "" {
			parts = append(parts, "**"+exprString(k.Value, precBitOr))
			continue
		}
		parts = append(parts, k.Name+"="+elemString(k.Value))
	}
	return exprString(c.Func, precAtom) + "(" + strings.Join(parts, ", ") + ")"
}

func comprehensionBody(c *Comprehension) string {
	var sb strings.Builder
	if c.Kind == DictComp {
		sb.WriteString(elemString(c.Key) + ": " + elemString(c.Elt))
	} else {
		sb.WriteString(elemString(c.Elt))
	}
	for _, g := range c.Generators {
		if g.Async {
			sb.WriteString(" async")
		}
		sb.WriteString(" for " + targetString(g.Target) + " in " + exprString(g.Iter, precTernary+1))
		for _, cond := range g.Ifs {
			sb.WriteString(" if " + exprString(cond, precTernary+1))
		}
	}
	return sb.String()
}

func comprehensionString(c *Comprehension) string {
	body := comprehensionBody(c)
	switch c.Kind {
	case ListComp:
		return "[" + body + "]"
	case SetComp, DictComp:
		return "{" + body + "}"
	}
	return "(" + body + ")"
}

// targetString renders an assignment or loop target; tuples drop their
// parentheses at the top level only.
func targetString(e Expr) string {
	t, ok := e.(*Tuple)
	if !ok {
		return elemString(e)
	}
	if len(t.Elts) == 1 {
		return elemString(t.Elts[0]) + ","
	}
	if len(t.Elts) == 0 {
		return "()"
	}
	return joinElems(t.Elts)
}

func joinedString(j *JoinedStr) string {
	var body strings.Builder
	writeJoined(&body, j)
	s := body.String()
	quote := "'"
	if strings.Contains(s, "'") {
		quote = "\""
		if strings.Contains(s, "\"") {
			quote = "'''"
		}
	}
	return "f" + quote + s + quote
}

func writeJoined(sb *strings.Builder, j *JoinedStr) {
	for _, v := range j.Values {
		switch v := v.(type) {
		case *Const:
			if v.Value.Kind == bytecode.ConstString {
				lit := bytecode.StringRepr(v.Value.Str)
				lit = lit[1 : len(lit)-1]
				lit = strings.ReplaceAll(lit, "{", "{{")
				lit = strings.ReplaceAll(lit, "}", "}}")
				sb.WriteString(lit)
				continue
			}
			sb.WriteString("{" + unparseExpr(v) + "}")
		case *FormattedValue:
			inner := exprString(v.Value, precLambda)
			if strings.HasPrefix(inner, "{") {
				inner = " " + inner
			}
			sb.WriteString("{" + inner)
			if v.Conversion != 0 {
				sb.WriteString("!" + string(v.Conversion))
			}
			switch spec := v.Spec.(type) {
			case *Const:
				sb.WriteString(":" + spec.Value.Str)
			case *JoinedStr:
				sb.WriteString(":")
				writeJoined(sb, spec)
			}
			sb.WriteString("}")
		default:
			sb.WriteString("{" + exprString(v, precLambda) + "}")
		}
	}
}

// ArgumentsString renders a parameter list without the surrounding
// parentheses. Annotations are omitted for lambdas.
func ArgumentsString(a *Arguments, annotate bool) string {
	if a.Empty() {
		return ""
	}
	var parts []string
	param := func(arg Arg, def Expr) string {
		s := arg.Name
		if annotate && arg.Annotation != nil {
			s += ": " + elemString(arg.Annotation)
		}
		if def != nil {
			if annotate && arg.Annotation != nil {
				s += " = " + elemString(def)
			} else {
				s += "=" + elemString(def)
			}
		}
		return s
	}
	positional := append(append([]Arg{}, a.PosOnly...), a.Args...)
	firstDefault := len(positional) - len(a.Defaults)
	for i, arg := range positional {
		var def Expr
		if i >= firstDefault && firstDefault >= 0 {
			def = a.Defaults[i-firstDefault]
		}
		parts = append(parts, param(arg, def))
		if i == len(a.PosOnly)-1 {
			parts = append(parts, "/")
		}
	}
	switch {
	case a.Vararg != nil:
		parts = append(parts, "*"+param(*a.Vararg, nil))
	case len(a.KwOnly) > 0:
		parts = append(parts, "*")
	}
	for i, arg := range a.KwOnly {
		var def Expr
		if i < len(a.KwDefaults) {
			def = a.KwDefaults[i]
		}
		parts = append(parts, param(arg, def))
	}
	if a.Kwarg != nil {
		parts = append(parts, "**"+param(*a.Kwarg, nil))
	}
	return strings.Join(parts, ", ")
}

func lambdaFromFunction(f *Function) string {
	body := Expr(&Const{Value: bytecode.None()})
	if len(f.Body) > 0 {
		switch last := f.Body[len(f.Body)-1].(type) {
		case *Return:
			if last.Value != nil {
				body = last.Value
			}
		case *ExprStmt:
			body = last.X
		}
	}
	return unparseExpr(&Lambda{Args: f.Args, Body: body})
}
