package decompiler

import (
	"github.com/skuznetsov/depyo.js-sub000/pkg/ast"
	"github.com/skuznetsov/depyo.js-sub000/pkg/bytecode"
)

func registerStackOps(r *Registry) {
	r.add(ignore,
		bytecode.OpNop, bytecode.OpCache, bytecode.OpExtendedArg, bytecode.OpResume, bytecode.OpReserved,
		bytecode.OpSetLineno, bytecode.OpMakeCell, bytecode.OpCopyFreeVars, bytecode.OpSetupAnnotations,
		bytecode.OpGetIter, bytecode.OpGetYieldFromIter, bytecode.OpPrecall, bytecode.OpGenStart,
		bytecode.OpInterpreterExit, bytecode.OpStopCode, bytecode.OpToBool, bytecode.OpEnterExecutor)
	r.add(opPopTop, bytecode.OpPopTop)
	r.add(opRotate, bytecode.OpRotTwo, bytecode.OpRotThree, bytecode.OpRotFour, bytecode.OpRotN, bytecode.OpSwap)
	r.add(opDup, bytecode.OpDupTop, bytecode.OpDupTopTwo, bytecode.OpDupTopX, bytecode.OpCopy)
	r.add(func(p *pass, _ *bytecode.Instruction) { p.push(nil) }, bytecode.OpPushNull)
	r.add(func(p *pass, in *bytecode.Instruction) {
		p.emit(&ast.ExprStmt{SpanVal: p.span(), X: p.pop()})
	}, bytecode.OpPrintExpr)
}

// opPopTop discards a value. Values the VM pushed for its own
// bookkeeping vanish; anything else was an expression statement.
func opPopTop(p *pass, in *bytecode.Instruction) {
	v := p.pop()
	switch v.(type) {
	case nil, *ast.Marker, *ast.Import, *ast.ImportFrom:
		return
	}
	if v == p.subject || (p.printing != nil && p.printing.Dest != nil && v == p.printing.Dest) {
		return
	}
	if loop := p.blocks.innermost(func(b *Block) bool {
		return b.Kind == BlockFor || b.Kind == BlockAsyncFor
	}); loop != nil && loop.Cond == v {
		return
	}
	if w, ok := v.(*ast.Await); ok {
		if _, ok := w.Value.(*ast.Marker); ok {
			return
		}
	}
	p.emit(&ast.ExprStmt{SpanVal: p.span(), X: v})
}

func opRotate(p *pass, in *bytecode.Instruction) {
	if values, rotations := p.rotationAssign(); values > 0 {
		p.swapAssign(values, rotations)
		return
	}
	n := 0
	switch in.Op {
	case bytecode.OpRotTwo:
		n = 2
	case bytecode.OpRotThree:
		n = 3
	case bytecode.OpRotFour:
		n = 4
	case bytecode.OpRotN:
		n = in.Arg
	case bytecode.OpSwap:
		if in.Arg > p.stack.Len() {
			// The VM keeps exception state below what is modelled here.
			return
		}
		a := p.peek(0)
		b := p.peek(in.Arg - 1)
		p.stack.Set(0, b)
		p.stack.Set(in.Arg-1, a)
		return
	}
	if n > p.stack.Len() {
		n = p.stack.Len()
	}
	if n < 2 {
		return
	}
	// The top moves down n-1 places; the others move up one.
	top := p.peek(0)
	for d := 0; d < n-1; d++ {
		p.stack.Set(d, p.peek(d+1))
	}
	p.stack.Set(n-1, top)
}

// swapAssign emits "a, b = x, y" for values pushed in source order,
// rotated and stored into plain names.
func (p *pass) swapAssign(values, rotations int) {
	elts := p.popN(values)
	stores, used := p.storesAt(rotations, values)
	targets := make([]ast.Expr, values)
	for i, st := range stores {
		p.declare(st)
		targets[i] = &ast.Name{Id: st.Name}
	}
	p.emit(&ast.Assign{
		SpanVal: p.span(),
		Targets: []ast.Expr{&ast.Tuple{Elts: targets}},
		Value:   &ast.Tuple{Elts: elts},
	})
	p.skipCount(rotations + used)
}

func opDup(p *pass, in *bytecode.Instruction) {
	switch in.Op {
	case bytecode.OpDupTop:
		p.push(p.peek(0))
	case bytecode.OpCopy:
		p.push(p.peek(in.Arg - 1))
	case bytecode.OpDupTopTwo:
		a, b := p.peek(1), p.peek(0)
		p.push(a)
		p.push(b)
	case bytecode.OpDupTopX:
		items := make([]ast.Expr, in.Arg)
		for i := range items {
			items[i] = p.peek(in.Arg - 1 - i)
		}
		for _, e := range items {
			p.push(e)
		}
	}
}

func registerLoadStore(r *Registry) {
	r.add(opLoadConst, bytecode.OpLoadConst)
	r.add(opLoadName,
		bytecode.OpLoadName, bytecode.OpLoadFast, bytecode.OpLoadFastCheck, bytecode.OpLoadDeref,
		bytecode.OpLoadClassDeref, bytecode.OpLoadClosure, bytecode.OpLoadGlobal)
	r.add(func(p *pass, in *bytecode.Instruction) {
		p.push(&ast.Marker{SpanVal: p.span(), Label: markSaved})
	}, bytecode.OpLoadFastAndClear)
	r.add(func(p *pass, in *bytecode.Instruction) {
		p.pop()
		p.push(&ast.Name{SpanVal: p.span(), Id: in.Name})
	}, bytecode.OpLoadFromDictOrGlobals, bytecode.OpLoadFromDictOrDeref)
	r.add(func(p *pass, in *bytecode.Instruction) {
		p.push(&ast.Call{SpanVal: p.span(), Func: &ast.Name{Id: "locals"}})
	}, bytecode.OpLoadLocals)
	r.add(func(p *pass, in *bytecode.Instruction) {
		p.push(&ast.Name{SpanVal: p.span(), Id: "AssertionError"})
	}, bytecode.OpLoadAssertionError)
	r.add(func(p *pass, in *bytecode.Instruction) {
		p.push(&ast.Marker{SpanVal: p.span(), Label: markBuildClass})
	}, bytecode.OpLoadBuildClass)
	r.add(opLoadAttr, bytecode.OpLoadAttr, bytecode.OpLoadMethod)
	r.add(opLoadSuperAttr, bytecode.OpLoadSuperAttr)

	r.add(opStore, bytecode.OpStoreName, bytecode.OpStoreFast, bytecode.OpStoreGlobal, bytecode.OpStoreDeref)
	r.add(opLocalPair, bytecode.OpLoadFastLoadFast, bytecode.OpStoreFastLoadFast, bytecode.OpStoreFastStoreFast)
	r.add(opStoreAttr, bytecode.OpStoreAttr)
	r.add(opStoreSubscr, bytecode.OpStoreSubscr)
	r.add(opStoreSlice, bytecode.OpStoreSlice)
	r.add(func(p *pass, in *bytecode.Instruction) {
		p.annotate(in.Name, p.pop())
	}, bytecode.OpStoreAnnotation)
	r.add(opDeleteName, bytecode.OpDeleteName, bytecode.OpDeleteFast, bytecode.OpDeleteGlobal, bytecode.OpDeleteDeref)
	r.add(func(p *pass, in *bytecode.Instruction) {
		p.deleteTarget(&ast.Attribute{SpanVal: p.span(), X: p.pop(), Attr: in.Name})
	}, bytecode.OpDeleteAttr)
	r.add(func(p *pass, in *bytecode.Instruction) {
		idx := p.pop()
		p.deleteTarget(&ast.Subscript{SpanVal: p.span(), X: p.pop(), Index: idx})
	}, bytecode.OpDeleteSubscr)
	r.add(opUnpack, bytecode.OpUnpackSequence, bytecode.OpUnpackEx)
}

func opLoadConst(p *pass, in *bytecode.Instruction) {
	p.push(&ast.Const{SpanVal: p.span(), Value: *in.Const})
}

func opLoadName(p *pass, in *bytecode.Instruction) {
	if in.Op == bytecode.OpLoadGlobal && p.v.AtLeast(3, 11) && in.Arg&1 == 1 {
		p.push(nil)
	}
	p.push(&ast.Name{SpanVal: p.span(), Id: in.Name})
}

// splitPair returns the two plain instructions a 3.13 superinstruction
// stands for.
func splitPair(in *bytecode.Instruction) (first, second *bytecode.Instruction) {
	a, b := *in, *in
	a.Op, b.Op = bytecode.OpLoadFast, bytecode.OpLoadFast
	b.Name = in.Name2
	switch in.Op {
	case bytecode.OpStoreFastLoadFast:
		a.Op = bytecode.OpStoreFast
	case bytecode.OpStoreFastStoreFast:
		a.Op, b.Op = bytecode.OpStoreFast, bytecode.OpStoreFast
	}
	return &a, &b
}

func opLocalPair(p *pass, in *bytecode.Instruction) {
	if in.Op == bytecode.OpStoreFastStoreFast {
		if n := p.parallelStores(); n > 0 {
			p.parallelAssign(n)
			return
		}
	}
	first, second := splitPair(in)
	for _, half := range []*bytecode.Instruction{first, second} {
		if half.Op == bytecode.OpStoreFast {
			opStoreName(p, half)
		} else {
			opLoadName(p, half)
		}
	}
}

// opLoadAttr pushes an attribute. Method loads are modelled as a NULL
// slot followed by the bound attribute, which every call form pops.
func opLoadAttr(p *pass, in *bytecode.Instruction) {
	x := p.pop()
	attr := &ast.Attribute{SpanVal: p.span(), X: x, Attr: in.Name}
	if in.Op == bytecode.OpLoadMethod || (p.v.AtLeast(3, 12) && in.Arg&1 == 1) {
		p.push(nil)
	}
	p.push(attr)
}

func opLoadSuperAttr(p *pass, in *bytecode.Instruction) {
	self := p.pop()
	cls := p.pop()
	fn := p.pop()
	call := &ast.Call{SpanVal: p.span(), Func: fn}
	if in.Arg&2 != 0 {
		call.Args = []ast.Expr{cls, self}
	}
	if in.Arg&1 == 1 {
		p.push(nil)
	}
	p.push(&ast.Attribute{SpanVal: p.span(), X: call, Attr: in.Name})
}

func opStore(p *pass, in *bytecode.Instruction) {
	if n := p.parallelStores(); n > 0 {
		p.parallelAssign(n)
		return
	}
	opStoreName(p, in)
}

// parallelAssign emits "a, b = x, y" compiled without a SWAP: the
// stores run in reverse target order.
func (p *pass) parallelAssign(n int) {
	elts := p.popN(n)
	stores, used := p.storesAt(0, n)
	targets := make([]ast.Expr, n)
	for i, st := range stores {
		p.declare(st)
		targets[n-1-i] = &ast.Name{Id: st.Name}
	}
	p.emit(&ast.Assign{
		SpanVal: p.span(),
		Targets: []ast.Expr{&ast.Tuple{Elts: targets}},
		Value:   &ast.Tuple{Elts: elts},
	})
	p.skipCount(used)
}

func opStoreName(p *pass, in *bytecode.Instruction) {
	p.declare(in)
	v := p.pop()
	p.store(v, &ast.Name{SpanVal: p.span(), Id: in.Name})
}

func opStoreAttr(p *pass, in *bytecode.Instruction) {
	obj := p.pop()
	v := p.pop()
	p.store(v, &ast.Attribute{SpanVal: p.span(), X: obj, Attr: in.Name})
}

func opStoreSubscr(p *pass, in *bytecode.Instruction) {
	idx := p.pop()
	obj := p.pop()
	v := p.pop()
	if d, ok := obj.(*ast.Dict); ok && p.stack.IsTop(d) {
		// A dict display filled through a duplicated reference.
		d.Keys = append(d.Keys, idx)
		d.Values = append(d.Values, v)
		return
	}
	p.store(v, &ast.Subscript{SpanVal: p.span(), X: obj, Index: idx})
}

func opStoreSlice(p *pass, in *bytecode.Instruction) {
	upper := p.pop()
	lower := p.pop()
	obj := p.pop()
	v := p.pop()
	p.store(v, &ast.Subscript{SpanVal: p.span(), X: obj, Index: sliceOf(lower, upper, nil)})
}

func opDeleteName(p *pass, in *bytecode.Instruction) {
	p.declare(in)
	p.deleteTarget(&ast.Name{SpanVal: p.span(), Id: in.Name})
}

// deleteTarget emits del, joining targets deleted on the same line.
func (p *pass) deleteTarget(t ast.Expr) {
	top := p.blocks.Top()
	if top.Kind != BlockContainer {
		if d, ok := top.last().(*ast.Delete); ok && p.in.Line > 0 && d.SpanVal.First == p.in.Line {
			d.Targets = append(d.Targets, t)
			return
		}
	}
	p.emit(&ast.Delete{SpanVal: p.span(), Targets: []ast.Expr{t}})
}

// opUnpack replaces the value with one marker per target. Each store
// into a marker records its target; the last one emits the assignment.
func opUnpack(p *pass, in *bytecode.Instruction) {
	v := p.pop()
	u := &unpack{value: v, want: in.Arg, star: -1}
	if in.Op == bytecode.OpUnpackEx {
		before, after := in.Arg&0xff, in.Arg>>8
		u.want = before + 1 + after
		u.star = before
	}
	for i := 0; i < u.want; i++ {
		m := &ast.Marker{SpanVal: p.span(), Label: markUnpack}
		p.unpacks[m] = u
		p.push(m)
	}
}

func sliceOf(lower, upper, step ast.Expr) *ast.Slice {
	clean := func(e ast.Expr) ast.Expr {
		if ast.IsNoneConst(e) {
			return nil
		}
		return e
	}
	return &ast.Slice{Lower: clean(lower), Upper: clean(upper), Step: clean(step)}
}
