package decompiler

import (
	"strings"

	"github.com/skuznetsov/depyo.js-sub000/pkg/ast"
	"github.com/skuznetsov/depyo.js-sub000/pkg/bytecode"
)

// store binds value to target. Definitions, imports, loop and with
// targets and unpacking all arrive here as stores.
func (p *pass) store(value, target ast.Expr) {
	if p.storeSpecial(value, target) {
		return
	}
	if p.chain != nil && p.chain.value == value {
		p.chain.targets = append(p.chain.targets, target)
		if p.stack.IsTop(value) {
			return
		}
		st := &ast.Assign{SpanVal: p.span(), Targets: p.chain.targets, Value: value}
		p.chain = nil
		p.emit(st)
		return
	}
	if p.stack.IsTop(value) {
		if p.storeFollows() {
			p.chain = &chainStore{value: value, targets: []ast.Expr{target}}
			return
		}
		p.stack.Set(0, &ast.NamedExpr{SpanVal: p.span(), Target: target, Value: value})
		return
	}
	p.emit(p.assignment(value, target))
}

func (p *pass) assignment(value, target ast.Expr) ast.Stmt {
	if b, ok := value.(*ast.Binary); ok && isInplace(b.Op) && sameExpr(b.X, target) {
		return &ast.AugAssign{SpanVal: p.span(), Target: target, Op: strings.TrimSuffix(b.Op, "="), Value: b.Y}
	}
	return &ast.Assign{SpanVal: p.span(), Targets: []ast.Expr{target}, Value: value}
}

func isInplace(op string) bool {
	switch op {
	case "==", "!=", "<=", ">=":
		return false
	}
	return len(op) > 1 && strings.HasSuffix(op, "=")
}

// storeSpecial handles stores whose value or target is not an ordinary
// expression. It reports whether the store was consumed.
func (p *pass) storeSpecial(value, target ast.Expr) bool {
	if w, ok := value.(*ast.Await); ok {
		if m, ok := w.Value.(*ast.Marker); ok && m.Label == markWith {
			value = m
		}
	}
	switch v := value.(type) {
	case *ast.Marker:
		return p.storeMarker(v, target)
	case *ast.Import:
		p.storeImport(v, target)
		return true
	case *ast.ImportFrom:
		p.storeImportFrom(v, target)
		return true
	case *ast.Attribute:
		if imp, ok := importChain(v); ok {
			p.emitImport(ast.Alias{Name: imp.Module, AsName: targetName(target)})
			return true
		}
	}
	if name, ok := target.(*ast.Name); ok {
		if def := p.definition(value, name.Id); def != nil {
			p.emit(def)
			return true
		}
	}
	if s, ok := target.(*ast.Subscript); ok {
		if n, ok := s.X.(*ast.Name); ok && n.Id == "__annotations__" && ast.IsStringConst(s.Index) {
			p.annotate(s.Index.(*ast.Const).Value.Str, value)
			return true
		}
	}
	return false
}

func (p *pass) storeMarker(m *ast.Marker, target ast.Expr) bool {
	if u := p.unpacks[m]; u != nil {
		delete(p.unpacks, m)
		t := target
		if len(u.targets) == u.star {
			t = &ast.Starred{X: target}
		}
		u.targets = append(u.targets, t)
		if len(u.targets) == u.want {
			p.store(u.value, &ast.Tuple{Elts: u.targets})
		}
		return true
	}
	switch m.Label {
	case markFor, markAnext:
		b := p.blocks.innermost(func(b *Block) bool {
			return (b.Kind == BlockFor || b.Kind == BlockAsyncFor) && b.Target == nil
		})
		if b == nil {
			p.fail(ErrBlockMismatch, "loop target outside a loop")
		}
		b.Target = target
		return true
	case markException:
		b := p.blocks.innermost(func(b *Block) bool { return b.Kind == BlockExcept })
		if b == nil {
			p.fail(ErrBlockMismatch, "exception bound outside an except clause")
		}
		b.name = targetName(target)
		return true
	case markWith:
		b := p.blocks.innermost(func(b *Block) bool {
			return (b.Kind == BlockWith || b.Kind == BlockAsyncWith) && b.Target == nil
		})
		if b == nil {
			p.fail(ErrBlockMismatch, "with target outside a with statement")
		}
		b.Target = target
		return true
	case markSaved:
		return true
	}
	return false
}

func targetName(e ast.Expr) string {
	if n, ok := e.(*ast.Name); ok {
		return n.Id
	}
	return ast.ExprString(e)
}

// definition turns a function or class bound to its own name, possibly
// through decorator calls, into a def or class statement.
func (p *pass) definition(value ast.Expr, name string) ast.Stmt {
	var decorators []ast.Expr
	inner := value
	for {
		call, ok := inner.(*ast.Call)
		if !ok || len(call.Args) != 1 || len(call.Keywords) != 0 {
			break
		}
		switch call.Args[0].(type) {
		case *ast.Function, *ast.Class, *ast.Call:
		default:
			return nil
		}
		decorators = append(decorators, call.Func)
		inner = call.Args[0]
	}
	switch d := inner.(type) {
	case *ast.Function:
		if d.IsLambda || d.Code == nil || (d.Code.Name != name && len(decorators) == 0) {
			return nil
		}
		p.ensureBody(d)
		d.Decorators = decorators
		return &ast.FunctionDef{SpanVal: p.defSpan(d.SpanVal, decorators), Name: name, Func: d}
	case *ast.Class:
		if d.Name != name && len(decorators) == 0 {
			return nil
		}
		d.Decorators = decorators
		return &ast.ClassDef{SpanVal: p.defSpan(d.SpanVal, decorators), Class: d}
	}
	return nil
}

func (p *pass) defSpan(s ast.Span, decorators []ast.Expr) ast.Span {
	if s.First == 0 {
		s = p.span()
	}
	for _, d := range decorators {
		if f := d.Span().First; f > 0 && f < s.First {
			s.First = f
		}
	}
	return s
}

// annotate records "name: annotation", merging it with an assignment to
// the same name just emitted.
func (p *pass) annotate(name string, ann ast.Expr) {
	target := &ast.Name{Id: name}
	top := p.blocks.Top()
	if top.Kind != BlockContainer {
		if a, ok := top.last().(*ast.Assign); ok && len(a.Targets) == 1 && sameExpr(a.Targets[0], target) {
			top.Nodes[len(top.Nodes)-1] = &ast.AnnAssign{SpanVal: a.SpanVal, Target: target, Annotation: ann, Value: a.Value}
			return
		}
	}
	p.emit(&ast.AnnAssign{SpanVal: p.span(), Target: target, Annotation: ann})
}

// storeImport binds a plain import. "import a.b" binds "a"; any other
// name is an alias.
func (p *pass) storeImport(imp *ast.Import, target ast.Expr) {
	name := targetName(target)
	if imp.FromList != nil {
		p.warn("import of %s with a from-list bound to %s", imp.Module, name)
	}
	alias := ast.Alias{Name: imp.Module}
	if head, _, _ := strings.Cut(imp.Module, "."); head != name {
		alias.AsName = name
	}
	p.emitImport(alias)
}

func (p *pass) emitImport(alias ast.Alias) {
	top := p.blocks.Top()
	if top.Kind != BlockContainer {
		if prev, ok := top.last().(*ast.ImportStmt); ok && p.in != nil && prev.SpanVal.First == p.in.Line && p.in.Line > 0 {
			prev.Names = append(prev.Names, alias)
			return
		}
	}
	p.emit(&ast.ImportStmt{SpanVal: p.span(), Names: []ast.Alias{alias}})
}

// storeImportFrom binds one name of a from-import. Names bound from the
// same IMPORT_NAME join one statement.
func (p *pass) storeImportFrom(f *ast.ImportFrom, target ast.Expr) {
	name := targetName(target)
	if f.Module.FromList == nil {
		// import a.b.c as d
		p.emitImport(ast.Alias{Name: f.Module.Module, AsName: name})
		return
	}
	alias := ast.Alias{Name: f.Name}
	if name != f.Name {
		alias.AsName = name
	}
	if p.lastFrom != nil && p.fromOf == f.Module {
		p.lastFrom.Names = append(p.lastFrom.Names, alias)
		return
	}
	st := &ast.ImportFromStmt{SpanVal: p.span(), Module: f.Module.Module, Level: f.Module.Level, Names: []ast.Alias{alias}}
	p.emit(st)
	p.lastFrom, p.fromOf = st, f.Module
}

// importChain recognises the attribute walk older compilers emit for
// "import a.b.c as d".
func importChain(a *ast.Attribute) (*ast.Import, bool) {
	var e ast.Expr = a
	for {
		switch x := e.(type) {
		case *ast.Attribute:
			e = x.X
		case *ast.Import:
			return x, x.FromList == nil && strings.Contains(x.Module, ".")
		default:
			return nil, false
		}
	}
}

// declare records global and nonlocal names implied by a store.
func (p *pass) declare(in *bytecode.Instruction) {
	if p.kind == kindModule || p.kind == kindClass {
		return
	}
	switch in.Op {
	case bytecode.OpStoreGlobal, bytecode.OpDeleteGlobal:
		p.globals = appendUnique(p.globals, in.Name)
	case bytecode.OpStoreDeref, bytecode.OpDeleteDeref:
		if p.code.IsFreeVar(in.Name) {
			p.nonlocals = appendUnique(p.nonlocals, in.Name)
		}
	}
}

func appendUnique(list []string, s string) []string {
	for _, x := range list {
		if x == s {
			return list
		}
	}
	return append(list, s)
}
