package decompiler

import (
	"github.com/skuznetsov/depyo.js-sub000/pkg/ast"
	"github.com/skuznetsov/depyo.js-sub000/pkg/bytecode"
)

func registerCalls(r *Registry) {
	r.add(opCallFunction, bytecode.OpCallFunction)
	r.add(opCallLegacyStar, bytecode.OpCallFunctionVar, bytecode.OpCallFunctionVarKw)
	r.add(opCallFunctionKw, bytecode.OpCallFunctionKw)
	r.add(opCallFunctionEx, bytecode.OpCallFunctionEx)
	r.add(opCallMethod, bytecode.OpCallMethod, bytecode.OpCall)
	r.add(func(p *pass, in *bytecode.Instruction) {
		p.kwNames = constStrings(in.Const)
	}, bytecode.OpKwNames)
	r.add(func(p *pass, in *bytecode.Instruction) {
		p.kwNames = p.constNames(p.pop())
		opCallMethod(p, in)
	}, bytecode.OpCallKw)
	r.add(opMakeFunction, bytecode.OpMakeFunction, bytecode.OpMakeClosure)
	r.add(opSetFunctionAttribute, bytecode.OpSetFunctionAttribute)
	r.add(func(p *pass, in *bytecode.Instruction) { p.pop() }, bytecode.OpExitInitCheck)
	r.add(opImportName, bytecode.OpImportName)
	r.add(opImportFrom, bytecode.OpImportFrom)
	r.add(func(p *pass, in *bytecode.Instruction) { p.importStar(p.pop()) }, bytecode.OpImportStar)
}

func constStrings(c *bytecode.Constant) []string {
	if c == nil {
		return nil
	}
	out := make([]string, 0, len(c.Items))
	for _, it := range c.Items {
		out = append(out, it.Str)
	}
	return out
}

// opCallFunction handles CALL_FUNCTION. Before 3.6 the high byte of the
// operand counts keyword pairs pushed after the positional arguments.
func opCallFunction(p *pass, in *bytecode.Instruction) {
	if p.v.AtLeast(3, 6) {
		args := p.popN(in.Arg)
		p.finishCall(p.pop(), args, nil)
		return
	}
	kws := p.legacyKeywords(in.Arg >> 8)
	args := p.popN(in.Arg & 0xff)
	p.finishCall(p.pop(), args, kws)
}

func (p *pass) legacyKeywords(n int) []ast.Keyword {
	kws := make([]ast.Keyword, n)
	for i := n - 1; i >= 0; i-- {
		value := p.pop()
		name := p.pop()
		kws[i] = ast.Keyword{Name: constName(name), Value: value}
	}
	return kws
}

func constName(e ast.Expr) string {
	if c, ok := e.(*ast.Const); ok && c.Value.Kind == bytecode.ConstString {
		return c.Value.Str
	}
	return ast.ExprString(e)
}

// opCallLegacyStar handles the pre-3.6 *args and **kwargs call forms.
func opCallLegacyStar(p *pass, in *bytecode.Instruction) {
	var star, dstar ast.Expr
	if in.Op == bytecode.OpCallFunctionVarKw {
		dstar = p.pop()
	}
	star = p.pop()
	p.legacyStarCall(in.Arg, star, dstar)
}

func (p *pass) legacyStarCall(arg int, star, dstar ast.Expr) {
	kws := p.legacyKeywords(arg >> 8)
	args := p.popN(arg & 0xff)
	if star != nil {
		args = append(args, &ast.Starred{X: star})
	}
	if dstar != nil {
		kws = append(kws, ast.Keyword{Value: dstar})
	}
	p.finishCall(p.pop(), args, kws)
}

func opCallFunctionKw(p *pass, in *bytecode.Instruction) {
	if p.v.Before(3, 6) {
		p.legacyStarCall(in.Arg, nil, p.pop())
		return
	}
	names := p.pop()
	c, ok := names.(*ast.Const)
	if !ok {
		p.fail(ErrUnexpectedNode, "keyword names %T", names)
	}
	args, kws := splitKeywords(p.popN(in.Arg), constStrings(&c.Value))
	p.finishCall(p.pop(), args, kws)
}

// splitKeywords turns the trailing values of a call into keyword
// arguments named by names.
func splitKeywords(args []ast.Expr, names []string) ([]ast.Expr, []ast.Keyword) {
	n := len(args) - len(names)
	if n < 0 {
		n = 0
	}
	kws := make([]ast.Keyword, 0, len(names))
	for i, name := range names {
		if n+i < len(args) {
			kws = append(kws, ast.Keyword{Name: name, Value: args[n+i]})
		}
	}
	return args[:n], kws
}

func opCallFunctionEx(p *pass, in *bytecode.Instruction) {
	var kwargs ast.Expr
	if in.Arg&1 == 1 {
		kwargs = p.pop()
	}
	star := p.pop()
	fn := p.pop()
	var args []ast.Expr
	switch s := star.(type) {
	case *ast.Tuple:
		args = s.Elts
	case *ast.Const:
		if s.Value.Kind == bytecode.ConstTuple {
			args = spliceElts(nil, s)
			break
		}
		args = []ast.Expr{&ast.Starred{X: star}}
	default:
		args = []ast.Expr{&ast.Starred{X: star}}
	}
	var kws []ast.Keyword
	if d, ok := kwargs.(*ast.Dict); ok {
		for i, k := range d.Keys {
			if k == nil {
				kws = append(kws, ast.Keyword{Value: d.Values[i]})
				continue
			}
			kws = append(kws, ast.Keyword{Name: constName(k), Value: d.Values[i]})
		}
	} else if kwargs != nil {
		kws = append(kws, ast.Keyword{Value: kwargs})
	}
	p.callWithNull(fn, args, kws)
}

// opCallMethod handles CALL_METHOD and CALL. Two slots sit under the
// arguments: a NULL and the callable in either order, or a callable and
// the self it was bound to, which becomes the first argument.
func opCallMethod(p *pass, in *bytecode.Instruction) {
	args := p.popN(in.Arg)
	upper := p.pop()
	lower := p.pop()
	fn := upper
	switch {
	case upper == nil:
		fn = lower
	case lower != nil:
		fn = lower
		args = append([]ast.Expr{upper}, args...)
	}
	if fn == nil {
		p.fail(ErrUnexpectedNode, "%s with two NULL slots", in.Op)
	}
	var kws []ast.Keyword
	if p.kwNames != nil {
		args, kws = splitKeywords(args, p.kwNames)
		p.kwNames = nil
	}
	p.finishCall(fn, args, kws)
}

// callWithNull finishes CALL_FUNCTION_EX, whose NULL slot sits above the
// callable from 3.13 and under it before.
func (p *pass) callWithNull(fn ast.Expr, args []ast.Expr, kws []ast.Keyword) {
	if fn == nil {
		fn = p.pop()
	} else if top, ok := p.stack.Top(); ok && top == nil {
		p.pop()
	}
	p.finishCall(fn, args, kws)
}

// finishCall pushes the call, recognising class creation and
// comprehension calls.
func (p *pass) finishCall(fn ast.Expr, args []ast.Expr, kws []ast.Keyword) {
	switch f := fn.(type) {
	case *ast.Marker:
		if f.Label == markBuildClass {
			p.push(p.buildClass(args, kws))
			return
		}
	case *ast.Function:
		if len(args) == 1 && len(kws) == 0 {
			if comp := p.comprehensionCall(f, args[0]); comp != nil {
				p.push(comp)
				return
			}
		}
	}
	p.push(&ast.Call{SpanVal: p.span(), Func: fn, Args: args, Keywords: kws})
}

func opImportName(p *pass, in *bytecode.Instruction) {
	fromlist := p.pop()
	level := p.pop()
	imp := &ast.Import{SpanVal: p.span(), Module: in.Name}
	if c, ok := level.(*ast.Const); ok && c.Value.Kind == bytecode.ConstInt {
		imp.Level = int(c.Value.Int)
	}
	if c, ok := fromlist.(*ast.Const); ok && !c.Value.IsNone() {
		imp.FromList = constStrings(&c.Value)
		if imp.FromList == nil {
			imp.FromList = []string{}
		}
		imp.Star = len(imp.FromList) == 1 && imp.FromList[0] == "*"
	}
	p.push(imp)
}

func opImportFrom(p *pass, in *bytecode.Instruction) {
	var mod *ast.Import
	switch top := p.peek(0).(type) {
	case *ast.Import:
		mod = top
	case *ast.ImportFrom:
		mod = top.Module
	default:
		p.fail(ErrUnexpectedNode, "IMPORT_FROM on %T", top)
	}
	p.push(&ast.ImportFrom{SpanVal: p.span(), Module: mod, Name: in.Name})
}

func (p *pass) importStar(mod ast.Expr) {
	imp, ok := mod.(*ast.Import)
	if !ok {
		p.fail(ErrUnexpectedNode, "import * from %T", mod)
	}
	p.emit(&ast.ImportFromStmt{SpanVal: p.span(), Module: imp.Module, Level: imp.Level, Names: []ast.Alias{{Name: "*"}}})
}
