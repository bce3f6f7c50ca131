package decompiler

import (
	"github.com/dlclark/regexp2"

	"github.com/skuznetsov/depyo.js-sub000/pkg/ast"
	"github.com/skuznetsov/depyo.js-sub000/pkg/bytecode"
)

// The recognisers below are tried in a fixed order by the handlers; each
// one names a single compiler idiom.

var comprehensionName = regexp2.MustCompile(`^<(listcomp|setcomp|dictcomp|genexpr)>$`, regexp2.None)

// comprehensionKind maps a nested code object name to the display it
// builds.
func comprehensionKind(name string) (ast.CompKind, bool) {
	m, err := comprehensionName.FindStringMatch(name)
	if err != nil || m == nil {
		return 0, false
	}
	switch m.GroupByNumber(1).String() {
	case "listcomp":
		return ast.ListComp, true
	case "setcomp":
		return ast.SetComp, true
	case "dictcomp":
		return ast.DictComp, true
	}
	return ast.GeneratorExp, true
}

// findLoopHeads maps every while-loop head to the offset just past its
// last back edge. Back edges into FOR_ITER, async iteration and await
// loops are not while loops.
func findLoopHeads(instrs []bytecode.Instruction, index map[int]int) map[int]int {
	heads := make(map[int]int)
	for i := range instrs {
		in := &instrs[i]
		switch in.Op {
		case bytecode.OpJumpAbsolute, bytecode.OpJumpBackward:
		default:
			continue
		}
		if in.Target > in.Offset {
			continue
		}
		ti, ok := index[in.Target]
		if !ok {
			continue
		}
		switch instrs[ti].Op {
		case bytecode.OpForIter, bytecode.OpGetAnext, bytecode.OpSend:
			continue
		case bytecode.OpSetupFinally:
			if hi, ok := index[instrs[ti].Target]; ok && instrs[hi].Op == bytecode.OpEndAsyncFor {
				continue
			}
		}
		if in.Next() > heads[in.Target] {
			heads[in.Target] = in.Next()
		}
	}
	return heads
}

// handlerIsExcept classifies a pre-exception-table SETUP_FINALLY target:
// except clauses start by testing or discarding the exception triple.
func handlerIsExcept(in *bytecode.Instruction) bool {
	return in != nil && (in.Op == bytecode.OpDupTop || in.Op == bytecode.OpPopTop)
}

// nameCleanup matches the "e = None; del e" epilogue of a named except
// clause and returns its length, including a trailing END_FINALLY or
// RERAISE.
func (p *pass) nameCleanup(i int) int {
	ex := p.blocks.innermost(func(b *Block) bool { return b.Kind == BlockExcept })
	if ex == nil || ex.name == "" || i+2 >= len(p.instrs) {
		return 0
	}
	load, store, del := &p.instrs[i], &p.instrs[i+1], &p.instrs[i+2]
	if load.Op != bytecode.OpLoadConst || load.Const == nil || !load.Const.IsNone() {
		return 0
	}
	if !store.Op.IsStore() || store.Name != ex.name {
		return 0
	}
	switch del.Op {
	case bytecode.OpDeleteName, bytecode.OpDeleteFast, bytecode.OpDeleteGlobal, bytecode.OpDeleteDeref:
	default:
		return 0
	}
	if del.Name != ex.name {
		return 0
	}
	if i+3 < len(p.instrs) {
		switch p.instrs[i+3].Op {
		case bytecode.OpEndFinally, bytecode.OpReraise:
			return 4
		}
	}
	return 3
}

// handlerCleanup matches the "COPY 3; POP_EXCEPT; RERAISE 1" block that
// restores the previous exception after a handler fails.
func (p *pass) handlerCleanup(i int) int {
	if i+2 >= len(p.instrs) {
		return 0
	}
	a, b, c := &p.instrs[i], &p.instrs[i+1], &p.instrs[i+2]
	if a.Op == bytecode.OpCopy && a.Arg == 3 && b.Op == bytecode.OpPopExcept && c.Op == bytecode.OpReraise {
		return 3
	}
	return 0
}

// settleCleanup ends an except-only statement whose handlers all left
// without jumping past the cleanup block.
func (p *pass) settleCleanup() {
	top := p.blocks.Top()
	if top.Kind != BlockContainer {
		return
	}
	t := top.try
	if t.started && t.exceptAt < 0 && t.finallyAt < 0 && top.End <= 0 {
		top.End = p.offsetAt(p.pos + 3)
	}
}

// withExitLength matches the normal-exit call of a with statement
// (three Nones, the exit call and the discarded result).
func (p *pass) withExitLength(i int) int {
	n := 0
	nones := 0
	for ; i+n < len(p.instrs) && nones < 3; n++ {
		in := &p.instrs[i+n]
		switch {
		case in.Op == bytecode.OpLoadConst && in.Const != nil && in.Const.IsNone():
		case (in.Op == bytecode.OpDupTop || (in.Op == bytecode.OpCopy && in.Arg == 1)) && nones > 0:
		default:
			return 0
		}
		nones++
	}
	if nones < 3 {
		return 0
	}
	for i+n < len(p.instrs) {
		switch p.instrs[i+n].Op {
		case bytecode.OpPrecall, bytecode.OpCall, bytecode.OpCallFunction:
			n++
			continue
		case bytecode.OpPopTop:
			return n + 1
		}
		return 0
	}
	return 0
}

// assertAhead reports whether a jump-if-true guards an AssertionError
// raise, the shape of an assert statement.
func (p *pass) assertAhead(in *bytecode.Instruction) bool {
	switch in.Op {
	case bytecode.OpPopJumpIfTrue, bytecode.OpPopJumpForwardIfTrue:
	default:
		return false
	}
	next := p.at(1)
	if next == nil {
		return false
	}
	switch next.Op {
	case bytecode.OpLoadAssertionError:
		return true
	case bytecode.OpLoadGlobal, bytecode.OpLoadName:
		return next.Name == "AssertionError"
	}
	return false
}

// assertFrom turns "if not test: raise AssertionError(msg)" back into an
// assert statement.
func assertFrom(b *Block) *ast.Assert {
	if len(b.Nodes) != 1 {
		return nil
	}
	r, ok := b.Nodes[0].(*ast.Raise)
	if !ok || r.Exc == nil || r.Cause != nil {
		return nil
	}
	var msg ast.Expr
	exc := r.Exc
	if call, ok := exc.(*ast.Call); ok && len(call.Args) == 1 && len(call.Keywords) == 0 {
		exc, msg = call.Func, call.Args[0]
	}
	if n, ok := exc.(*ast.Name); !ok || n.Id != "AssertionError" {
		return nil
	}
	return &ast.Assert{SpanVal: ast.At(b.Line), Test: negate(b.Cond), Msg: msg}
}

var inverseOps = map[string]string{"is": "is not", "is not": "is", "in": "not in", "not in": "in"}

// negate returns the logical inverse of e, unwrapping a not, flipping
// identity and membership tests and pushing through and/or.
func negate(e ast.Expr) ast.Expr {
	switch x := e.(type) {
	case *ast.Unary:
		if x.Op == "not" {
			return x.X
		}
	case *ast.Compare:
		if len(x.Ops) == 1 {
			if inv, ok := inverseOps[x.Ops[0]]; ok {
				return &ast.Compare{SpanVal: x.SpanVal, Left: x.Left, Ops: []string{inv}, Comparators: x.Comparators}
			}
		}
	case *ast.Binary:
		switch x.Op {
		case "and":
			return &ast.Binary{SpanVal: x.SpanVal, Op: "or", X: negate(x.X), Y: negate(x.Y)}
		case "or":
			return &ast.Binary{SpanVal: x.SpanVal, Op: "and", X: negate(x.X), Y: negate(x.Y)}
		}
	}
	return &ast.Unary{Op: "not", X: e}
}

// joinLogical builds left op right. Chained comparisons collapse and
// nested operands of the same operator are rotated left-associative.
func joinLogical(op string, left, right ast.Expr) ast.Expr {
	if op == "and" {
		if c := mergeChain(left, right); c != nil {
			return c
		}
	}
	if r, ok := right.(*ast.Binary); ok && r.Op == op {
		return &ast.Binary{Op: op, X: joinLogical(op, left, r.X), Y: r.Y}
	}
	return &ast.Binary{Op: op, X: left, Y: right}
}

// mergeChain joins a < b and b < c into a < b < c when the middle
// operand is the very node the compiler duplicated.
func mergeChain(left, right ast.Expr) *ast.Compare {
	l, ok := left.(*ast.Compare)
	if !ok || len(l.Comparators) == 0 {
		return nil
	}
	r, ok := right.(*ast.Compare)
	if !ok || r.Left != l.Comparators[len(l.Comparators)-1] {
		return nil
	}
	return &ast.Compare{
		SpanVal:     l.SpanVal,
		Left:        l.Left,
		Ops:         append(append([]string(nil), l.Ops...), r.Ops...),
		Comparators: append(append([]ast.Expr(nil), l.Comparators...), r.Comparators...),
	}
}

// shortCircuit rebuilds "test and x [or y]" from a test that jumped over
// an expression tail.
func shortCircuit(test, v ast.Expr) ast.Expr {
	if b, ok := v.(*ast.Binary); ok && b.Op == "or" {
		return &ast.Binary{Op: "or", X: joinLogical("and", test, b.X), Y: b.Y}
	}
	return joinLogical("and", test, v)
}

// loopGenerators flattens a loop nest whose bodies hold nothing but a
// nested loop or a filtering if into comprehension clauses, returning the
// expression at the leaf.
func loopGenerators(f *ast.For) ([]*ast.Generator, ast.Expr) {
	g := &ast.Generator{Target: f.Target, Iter: f.Iter, Async: f.Async}
	gens := []*ast.Generator{g}
	if len(f.OrElse) > 0 {
		return gens, nil
	}
	body := f.Body
	for len(body) == 1 {
		switch s := body[0].(type) {
		case *ast.For:
			if len(s.OrElse) > 0 {
				return gens, nil
			}
			g = &ast.Generator{Target: s.Target, Iter: s.Iter, Async: s.Async}
			gens = append(gens, g)
			body = s.Body
		case *ast.If:
			if len(s.OrElse) > 0 {
				return gens, nil
			}
			g.Ifs = append(g.Ifs, s.Test)
			body = s.Body
		case *ast.ExprStmt:
			return gens, s.X
		default:
			return gens, nil
		}
	}
	return gens, nil
}

// sameExpr compares two store or load targets structurally.
func sameExpr(a, b ast.Expr) bool {
	if a == b {
		return true
	}
	switch x := a.(type) {
	case *ast.Name:
		y, ok := b.(*ast.Name)
		return ok && x.Id == y.Id
	case *ast.Attribute:
		y, ok := b.(*ast.Attribute)
		return ok && x.Attr == y.Attr && sameExpr(x.X, y.X)
	case *ast.Subscript:
		y, ok := b.(*ast.Subscript)
		return ok && sameExpr(x.X, y.X) && sameExpr(x.Index, y.Index)
	case *ast.Const:
		y, ok := b.(*ast.Const)
		return ok && x.Value.Equal(y.Value)
	}
	return false
}

// isSimpleStore reports whether op stores into a plain name.
func isSimpleStore(op bytecode.Op) bool {
	switch op {
	case bytecode.OpStoreName, bytecode.OpStoreFast, bytecode.OpStoreGlobal, bytecode.OpStoreDeref:
		return true
	}
	return false
}

// storeFollows reports whether the value on top of the stack feeds
// another store target next, which makes the current store part of a
// chain rather than a named expression.
func (p *pass) storeFollows() bool {
	for d := 1; ; d++ {
		in := p.at(d)
		if in == nil {
			return false
		}
		switch in.Op {
		case bytecode.OpLoadName, bytecode.OpLoadFast, bytecode.OpLoadGlobal, bytecode.OpLoadDeref,
			bytecode.OpLoadConst, bytecode.OpLoadAttr, bytecode.OpLoadClassDeref, bytecode.OpLoadFastLoadFast:
			continue
		case bytecode.OpStoreAttr, bytecode.OpStoreSubscr:
			return true
		case bytecode.OpDupTop, bytecode.OpUnpackSequence, bytecode.OpUnpackEx:
			return d == 1
		case bytecode.OpCopy:
			return d == 1 && in.Arg == 1
		}
		return d == 1 && in.Op.IsStore()
	}
}

// rotationAssign recognises "a, b = b, a": a run of rotations followed by
// exactly as many plain-name stores as values rotated. It returns the
// value count and the number of rotation instructions.
func (p *pass) rotationAssign() (values, rotations int) {
scan:
	for d := 0; ; d++ {
		in := p.at(d)
		if in == nil {
			return 0, 0
		}
		n := 0
		switch in.Op {
		case bytecode.OpRotTwo:
			n = 2
		case bytecode.OpRotThree:
			n = 3
		case bytecode.OpSwap:
			n = in.Arg
		}
		if n == 0 {
			rotations = d
			break scan
		}
		if n > values {
			values = n
		}
	}
	if rotations == 0 || values < 2 || p.stack.Len() < values {
		return 0, 0
	}
	if _, used := p.storesAt(rotations, values); used == 0 {
		return 0, 0
	}
	for d := 0; d < values; d++ {
		if e, _ := p.stack.Peek(d); e == nil {
			return 0, 0
		} else if _, ok := e.(*ast.Marker); ok {
			return 0, 0
		}
	}
	return values, rotations
}

// parallelStores recognises the swap-free form of "a, b = x, y" that
// 3.12 emits: values pushed in source order, then two or more plain
// stores on the same line with nothing rearranging the stack between.
// It returns the value count.
func (p *pass) parallelStores() int {
	if !p.v.AtLeast(3, 12) {
		return 0
	}
	if prev := p.at(-1); prev != nil {
		switch prev.Op {
		case bytecode.OpUnpackSequence, bytecode.OpUnpackEx, bytecode.OpCopy, bytecode.OpSwap,
			bytecode.OpForIter, bytecode.OpBeforeWith, bytecode.OpBeforeAsyncWith:
			return 0
		}
		if prev.Op.IsStore() {
			return 0
		}
	}
	n := 0
	for d := 0; ; d++ {
		in := p.at(d)
		if in == nil || in.Line != p.in.Line {
			break
		}
		if isSimpleStore(in.Op) {
			n++
		} else if in.Op == bytecode.OpStoreFastStoreFast {
			n += 2
		} else {
			break
		}
	}
	if n < 2 || p.stack.Len() < n {
		return 0
	}
	for d := 0; d < n; d++ {
		e, _ := p.stack.Peek(d)
		if e == nil {
			return 0
		}
		if _, ok := e.(*ast.Marker); ok {
			return 0
		}
	}
	return n
}

// storesAt collects n plain-name stores starting d instructions ahead,
// splitting 3.13 store pairs. It reports how many instructions they
// span, or zero when the run is not exactly n stores.
func (p *pass) storesAt(d, n int) ([]*bytecode.Instruction, int) {
	var out []*bytecode.Instruction
	used := 0
	for len(out) < n {
		in := p.at(d + used)
		switch {
		case in == nil:
			return nil, 0
		case isSimpleStore(in.Op):
			out = append(out, in)
		case in.Op == bytecode.OpStoreFastStoreFast:
			a, b := splitPair(in)
			out = append(out, a, b)
		default:
			return nil, 0
		}
		used++
	}
	if len(out) != n {
		return nil, 0
	}
	return out, used
}

// rotatedWhile undoes loop rotation: "if t: while True: ...; if not t:
// break" is the compiled form of "while t: ...".
func rotatedWhile(b *Block) *ast.While {
	if len(b.Nodes) != 1 || b.Cond == nil {
		return nil
	}
	w, ok := b.Nodes[0].(*ast.While)
	if !ok || len(w.OrElse) > 0 || len(w.Body) == 0 {
		return nil
	}
	if c, ok := w.Test.(*ast.Const); !ok || c.Value.Kind != bytecode.ConstBool || !c.Value.Bool {
		return nil
	}
	exit, ok := w.Body[len(w.Body)-1].(*ast.If)
	if !ok || len(exit.Body) != 1 || len(exit.OrElse) > 0 {
		return nil
	}
	if _, ok := exit.Body[0].(*ast.Break); !ok {
		return nil
	}
	if ast.ExprString(negate(exit.Test)) != ast.ExprString(b.Cond) {
		return nil
	}
	return &ast.While{SpanVal: ast.At(b.Line), Test: b.Cond, Body: w.Body[:len(w.Body)-1]}
}
