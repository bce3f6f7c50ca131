package decompiler

import (
	"github.com/skuznetsov/depyo.js-sub000/pkg/ast"
	"github.com/skuznetsov/depyo.js-sub000/pkg/bytecode"
)

// registerLegacy covers the 2.x statements and slice forms.
func registerLegacy(r *Registry) {
	r.add(opPrintItem, bytecode.OpPrintItem, bytecode.OpPrintItemTo)
	r.add(opPrintNewline, bytecode.OpPrintNewline, bytecode.OpPrintNewlineTo)
	r.add(opExec, bytecode.OpExecStmt)
	r.add(opBuildClass, bytecode.OpBuildClass)
	r.add(opSliceN, bytecode.OpSlice0, bytecode.OpSlice1, bytecode.OpSlice2, bytecode.OpSlice3)
	r.add(opStoreSliceN, bytecode.OpStoreSlice0, bytecode.OpStoreSlice1, bytecode.OpStoreSlice2, bytecode.OpStoreSlice3)
	r.add(opDeleteSliceN, bytecode.OpDeleteSlice0, bytecode.OpDeleteSlice1, bytecode.OpDeleteSlice2, bytecode.OpDeleteSlice3)
}

// continuesPrint reports whether the print statement being built can take
// another item for dest.
func (p *pass) continuesPrint(dest ast.Expr) bool {
	pr := p.printing
	return pr != nil && !pr.Newline && pr.Dest == dest && p.blocks.Top().last() == ast.Stmt(pr)
}

func opPrintItem(p *pass, in *bytecode.Instruction) {
	var dest ast.Expr
	if in.Op == bytecode.OpPrintItemTo {
		dest = p.pop()
	}
	v := p.pop()
	if p.continuesPrint(dest) {
		p.printing.Values = append(p.printing.Values, v)
		return
	}
	pr := &ast.Print{SpanVal: p.span(), Dest: dest, Values: []ast.Expr{v}}
	p.emit(pr)
	p.printing = pr
}

func opPrintNewline(p *pass, in *bytecode.Instruction) {
	var dest ast.Expr
	if in.Op == bytecode.OpPrintNewlineTo {
		dest = p.pop()
	}
	if p.continuesPrint(dest) {
		p.printing.Newline = true
		p.printing = nil
		return
	}
	p.emit(&ast.Print{SpanVal: p.span(), Dest: dest, Newline: true})
}

// opExec rebuilds "exec body in globals, locals". Without a namespace the
// compiler pushes None twice; with one, it duplicates the globals.
func opExec(p *pass, in *bytecode.Instruction) {
	locals := p.pop()
	globals := p.pop()
	body := p.pop()
	if ast.IsNoneConst(globals) {
		globals, locals = nil, nil
	}
	if locals == globals {
		locals = nil
	}
	p.emit(&ast.Exec{SpanVal: p.span(), Body: body, Globals: globals, Locals: locals})
}

// opBuildClass builds a 2.x class from its name, bases tuple and the
// called body function.
func opBuildClass(p *pass, in *bytecode.Instruction) {
	methods := p.pop()
	bases := p.pop()
	name := p.pop()
	call, ok := methods.(*ast.Call)
	if !ok {
		p.fail(ErrUnexpectedNode, "class body is a %T", methods)
	}
	f, ok := call.Func.(*ast.Function)
	if !ok || f.Code == nil {
		p.fail(ErrUnexpectedNode, "class body calls a %T", call.Func)
	}
	p.push(&ast.Class{
		SpanVal: f.SpanVal,
		Name:    constName(name),
		Bases:   spliceElts(nil, bases),
		Body:    p.nested(f.Code, kindClass).body,
	})
}

// legacySlice pops the bounds SLICE+n carries: +1 has a lower, +2 an
// upper and +3 both.
func (p *pass) legacySlice(n int) (obj ast.Expr, s *ast.Slice) {
	var lower, upper ast.Expr
	if n&2 != 0 {
		upper = p.pop()
	}
	if n&1 != 0 {
		lower = p.pop()
	}
	obj = p.pop()
	return obj, sliceOf(lower, upper, nil)
}

func opSliceN(p *pass, in *bytecode.Instruction) {
	obj, s := p.legacySlice(int(in.Op - bytecode.OpSlice0))
	p.push(&ast.Subscript{SpanVal: p.span(), X: obj, Index: s})
}

func opStoreSliceN(p *pass, in *bytecode.Instruction) {
	obj, s := p.legacySlice(int(in.Op - bytecode.OpStoreSlice0))
	v := p.pop()
	p.store(v, &ast.Subscript{SpanVal: p.span(), X: obj, Index: s})
}

func opDeleteSliceN(p *pass, in *bytecode.Instruction) {
	obj, s := p.legacySlice(int(in.Op - bytecode.OpDeleteSlice0))
	p.deleteTarget(&ast.Subscript{SpanVal: p.span(), X: obj, Index: s})
}
