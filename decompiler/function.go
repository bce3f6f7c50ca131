package decompiler

import (
	"github.com/skuznetsov/depyo.js-sub000/pkg/ast"
	"github.com/skuznetsov/depyo.js-sub000/pkg/bytecode"
)

// maxDepth bounds the nesting of code objects decompiled from one root.
const maxDepth = 100

// MAKE_FUNCTION flag bits from 3.6.
const (
	fnDefaults    = 0x01
	fnKwDefaults  = 0x02
	fnAnnotations = 0x04
	fnClosure     = 0x08
)

// opMakeFunction pops the code object and whatever the operand says was
// pushed under it, and pushes a Function. Lambdas and comprehensions are
// decompiled here; other bodies wait until the function is bound.
func opMakeFunction(p *pass, in *bytecode.Instruction) {
	var code *bytecode.CodeObject
	takeCode := func() {
		c, ok := p.pop().(*ast.Const)
		if !ok || c.Value.Kind != bytecode.ConstCode {
			p.fail(ErrUnexpectedNode, "%s without a code object", in.Op)
		}
		code = c.Value.Code
	}
	// The qualified name sits on top from 3.3 until 3.11 dropped it.
	if p.v.AtLeast(3, 3) && p.v.Before(3, 11) {
		if c, ok := p.peek(0).(*ast.Const); ok && c.Value.Kind == bytecode.ConstString {
			p.pop()
		}
	}
	takeCode()

	var defaults, kwDefaults []ast.Expr
	var annotations map[string]ast.Expr
	if p.v.AtLeast(3, 6) {
		if in.Arg&fnClosure != 0 {
			p.pop()
		}
		if in.Arg&fnAnnotations != 0 {
			annotations = annotationMap(p.pop())
		}
		if in.Arg&fnKwDefaults != 0 {
			kwDefaults = p.kwDefaultsFrom(code, p.pop())
		}
		if in.Arg&fnDefaults != 0 {
			defaults = spliceElts(nil, p.pop())
		}
	} else {
		if in.Op == bytecode.OpMakeClosure {
			p.pop()
		}
		npos, nkw, nann := in.Arg&0xff, (in.Arg>>8)&0xff, (in.Arg>>16)&0x7fff
		if nann > 0 {
			names := p.constNames(p.pop())
			values := p.popN(nann - 1)
			annotations = make(map[string]ast.Expr, len(names))
			for i, n := range names {
				if i < len(values) {
					annotations[n] = values[i]
				}
			}
		}
		if nkw > 0 {
			byName := make(map[string]ast.Expr, nkw)
			for _, kw := range p.legacyKeywords(nkw) {
				byName[kw.Name] = kw.Value
			}
			kwDefaults = kwOnlyDefaults(code, byName)
		}
		defaults = p.popN(npos)
	}

	f := &ast.Function{
		SpanVal:     p.span(),
		Code:        code,
		Args:        signature(code, defaults, kwDefaults, annotations),
		Returns:     annotations["return"],
		IsLambda:    code.Name == "<lambda>",
		IsAsync:     code.HasFlag(bytecode.FlagCoroutine) || code.HasFlag(bytecode.FlagAsyncGenerator),
		IsGenerator: code.HasFlag(bytecode.FlagGenerator),
	}
	if f.SpanVal.First == 0 || (code.FirstLine > 0 && code.FirstLine < f.SpanVal.First) {
		f.SpanVal = ast.At(code.FirstLine)
	}
	if f.IsLambda {
		f.Body = p.nested(code, kindLambda).body
	}
	p.push(f)
}

// opSetFunctionAttribute attaches one of the operands MAKE_FUNCTION
// stopped taking in 3.13. The function sits above the value.
func opSetFunctionAttribute(p *pass, in *bytecode.Instruction) {
	f, ok := p.pop().(*ast.Function)
	if !ok {
		p.fail(ErrUnexpectedNode, "%s on a non-function", in.Op)
	}
	v := p.pop()
	switch in.Arg {
	case fnDefaults:
		f.Args.Defaults = spliceElts(nil, v)
	case fnKwDefaults:
		f.Args.KwDefaults = p.kwDefaultsFrom(f.Code, v)
	case fnAnnotations:
		ann := annotationMap(v)
		f.Args = signature(f.Code, f.Args.Defaults, f.Args.KwDefaults, ann)
		f.Returns = ann["return"]
	}
	p.push(f)
}

// constNames reads a tuple constant of names.
func (p *pass) constNames(e ast.Expr) []string {
	c, ok := e.(*ast.Const)
	if !ok {
		p.fail(ErrUnexpectedNode, "names operand is a %T", e)
	}
	return constStrings(&c.Value)
}

// annotationMap reads the annotations operand: a dict before 3.10, a
// flat name/value tuple after.
func annotationMap(e ast.Expr) map[string]ast.Expr {
	out := make(map[string]ast.Expr)
	switch a := e.(type) {
	case *ast.Dict:
		for i, k := range a.Keys {
			if k != nil {
				out[constName(k)] = a.Values[i]
			}
		}
	case *ast.Tuple:
		for i := 0; i+1 < len(a.Elts); i += 2 {
			out[constName(a.Elts[i])] = a.Elts[i+1]
		}
	case *ast.Const:
		items := a.Value.Items
		for i := 0; i+1 < len(items); i += 2 {
			out[items[i].Str] = &ast.Const{Value: items[i+1]}
		}
	}
	return out
}

func (p *pass) kwDefaultsFrom(code *bytecode.CodeObject, e ast.Expr) []ast.Expr {
	d, ok := e.(*ast.Dict)
	if !ok {
		p.warn("keyword defaults of %s are a %T", code.Name, e)
		return nil
	}
	byName := make(map[string]ast.Expr, len(d.Keys))
	for i, k := range d.Keys {
		if k != nil {
			byName[constName(k)] = d.Values[i]
		}
	}
	return kwOnlyDefaults(code, byName)
}

// kwOnlyDefaults aligns keyword defaults with the keyword-only
// parameters; parameters without one get nil.
func kwOnlyDefaults(code *bytecode.CodeObject, byName map[string]ast.Expr) []ast.Expr {
	out := make([]ast.Expr, code.KwOnlyArgCount)
	for i := range out {
		j := code.ArgCount + i
		if j < len(code.VarNames) {
			out[i] = byName[code.VarNames[j]]
		}
	}
	return out
}

// signature rebuilds the parameter list from the code object's counts
// and flags. Local names are laid out as positional, keyword-only, *args
// and **kwargs.
func signature(code *bytecode.CodeObject, defaults, kwDefaults []ast.Expr, ann map[string]ast.Expr) *ast.Arguments {
	names := code.VarNames
	arg := func(i int) ast.Arg {
		if i >= len(names) {
			return ast.Arg{Name: "_"}
		}
		return ast.Arg{Name: names[i], Annotation: ann[names[i]]}
	}
	a := &ast.Arguments{Defaults: defaults, KwDefaults: kwDefaults}
	i := 0
	for ; i < code.PosOnlyArgCount; i++ {
		a.PosOnly = append(a.PosOnly, arg(i))
	}
	for ; i < code.ArgCount; i++ {
		a.Args = append(a.Args, arg(i))
	}
	for k := 0; k < code.KwOnlyArgCount; k++ {
		a.KwOnly = append(a.KwOnly, arg(i))
		i++
	}
	if code.HasFlag(bytecode.FlagVarargs) {
		v := arg(i)
		a.Vararg = &v
		i++
	}
	if code.HasFlag(bytecode.FlagVarKeywords) {
		k := arg(i)
		a.Kwarg = &k
	}
	return a
}

// ensureBody decompiles a function body on first use.
func (p *pass) ensureBody(f *ast.Function) {
	if f.Body != nil || f.Code == nil {
		return
	}
	kind := kindFunction
	if f.IsGenerator {
		kind = kindGenerator
	}
	f.Body = p.nested(f.Code, kind).body
}

// nested runs an independent pass over a child code object and folds
// its diagnostics into this one.
func (p *pass) nested(code *bytecode.CodeObject, kind codeKind) *output {
	if p.depth+1 > maxDepth {
		p.unclean("%s nests deeper than %d code objects", code.Name, maxDepth)
		return &output{body: []ast.Stmt{}}
	}
	out := p.d.decompileCode(code, p.v, kind, p.depth+1)
	p.warnings = append(p.warnings, out.warnings...)
	if !out.clean {
		p.clean = false
	}
	return out
}

// comprehensionCall rebuilds the expression a comprehension function
// computes over its single iterable argument.
func (p *pass) comprehensionCall(f *ast.Function, iter ast.Expr) ast.Expr {
	if f.Code == nil {
		return nil
	}
	kind, ok := comprehensionKind(f.Code.Name)
	if !ok {
		return nil
	}
	body := p.nested(f.Code, kindComprehension).body
	var comp *ast.Comprehension
	if kind == ast.GeneratorExp {
		comp = generatorFrom(body)
	} else {
		for _, st := range body {
			if r, ok := st.(*ast.Return); ok {
				comp, _ = r.Value.(*ast.Comprehension)
				break
			}
		}
	}
	if comp == nil || len(comp.Generators) == 0 {
		p.unclean("%s body is not a comprehension", f.Code.Name)
		return nil
	}
	comp.Kind = kind
	comp.Generators[0].Iter = iter
	if comp.SpanVal.First == 0 {
		comp.SpanVal = p.span()
	}
	return comp
}

// generatorFrom reads a generator expression body: a loop nest whose leaf
// yields the element.
func generatorFrom(body []ast.Stmt) *ast.Comprehension {
	for _, st := range body {
		f, ok := st.(*ast.For)
		if !ok {
			continue
		}
		gens, leaf := loopGenerators(f)
		y, ok := leaf.(*ast.Yield)
		if !ok {
			return nil
		}
		return &ast.Comprehension{SpanVal: f.SpanVal, Kind: ast.GeneratorExp, Elt: y.Value, Generators: gens}
	}
	return nil
}

// buildClass assembles class Name(bases, keywords) from the arguments of
// the build-class call.
func (p *pass) buildClass(args []ast.Expr, kws []ast.Keyword) *ast.Class {
	if len(args) < 2 {
		p.fail(ErrUnexpectedNode, "class creation with %d arguments", len(args))
	}
	f, ok := args[0].(*ast.Function)
	if !ok || f.Code == nil {
		p.fail(ErrUnexpectedNode, "class body is a %T", args[0])
	}
	return &ast.Class{
		SpanVal:  f.SpanVal,
		Name:     constName(args[1]),
		Bases:    args[2:],
		Keywords: kws,
		Body:     p.nested(f.Code, kindClass).body,
	}
}

// finalize shapes a decompiled body for the role of its code object.
func (p *pass) finalize(body []ast.Stmt) []ast.Stmt {
	switch p.kind {
	case kindLambda, kindComprehension:
		return body
	case kindClass:
		body = classBody(body)
	default:
		body = ast.TrimTrailingReturn(body)
	}
	var decls []ast.Stmt
	if len(p.globals) > 0 {
		decls = append(decls, &ast.Global{Names: p.globals})
	}
	if len(p.nonlocals) > 0 {
		decls = append(decls, &ast.Nonlocal{Names: p.nonlocals})
	}
	if len(decls) > 0 {
		at := 0
		if _, ok := ast.Docstring(body); ok {
			at = 1
		}
		body = append(body[:at:at], append(decls, body[at:]...)...)
	}
	return body
}

// classBody removes the bookkeeping the compiler adds to a class body
// and turns a __doc__ store back into a docstring.
func classBody(body []ast.Stmt) []ast.Stmt {
	out := make([]ast.Stmt, 0, len(body))
	for i, st := range body {
		if a, ok := st.(*ast.Assign); ok && len(a.Targets) == 1 {
			if n, ok := a.Targets[0].(*ast.Name); ok {
				switch n.Id {
				case "__module__", "__qualname__", "__classcell__", "__firstlineno__", "__static_attributes__":
					continue
				case "__doc__":
					if ast.IsStringConst(a.Value) && len(out) == 0 {
						out = append(out, &ast.ExprStmt{SpanVal: a.SpanVal, X: a.Value})
						continue
					}
				}
			}
		}
		if r, ok := st.(*ast.Return); ok && i == len(body)-1 {
			switch v := r.Value.(type) {
			case *ast.Name:
				if v.Id == "__class__" {
					continue
				}
			case *ast.NamedExpr:
				// return (__classcell__ := __class__) from 3.11.
				if n, ok := v.Target.(*ast.Name); ok && n.Id == "__classcell__" {
					continue
				}
			case *ast.Call:
				if n, ok := v.Func.(*ast.Name); ok && n.Id == "locals" && len(v.Args) == 0 {
					continue
				}
			case nil:
				continue
			case *ast.Const:
				if v.Value.IsNone() {
					continue
				}
			}
		}
		out = append(out, st)
	}
	return out
}
