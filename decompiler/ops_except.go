package decompiler

import (
	"github.com/skuznetsov/depyo.js-sub000/pkg/ast"
	"github.com/skuznetsov/depyo.js-sub000/pkg/bytecode"
)

func registerExceptions(r *Registry) {
	r.add(func(p *pass, in *bytecode.Instruction) { p.setupTry(in, true) }, bytecode.OpSetupExcept)
	r.add(opSetupFinally, bytecode.OpSetupFinally)
	r.add(opPopBlock, bytecode.OpPopBlock)
	r.add(func(p *pass, in *bytecode.Instruction) {
		if ex := p.blocks.innermost(func(b *Block) bool { return b.Kind == BlockExcept }); ex != nil {
			ex.popped = true
		}
	}, bytecode.OpPopExcept)
	r.add(opEndFinally, bytecode.OpEndFinally, bytecode.OpReraise)
	r.add(opRaise, bytecode.OpRaiseVarargs)
	r.add(ignore, bytecode.OpPushExcInfo, bytecode.OpBeginFinally, bytecode.OpPopFinally, bytecode.OpCleanupThrow)
	r.add(func(p *pass, in *bytecode.Instruction) { p.stack.Pop() }, bytecode.OpPrepReraiseStar)
	r.add(opCallFinally, bytecode.OpCallFinally)
	r.add(opSetupWith, bytecode.OpSetupWith)
	r.add(opBeforeWith, bytecode.OpBeforeWith)
	r.add(func(p *pass, in *bytecode.Instruction) {
		p.fail(ErrBlockMismatch, "%s outside a with exit", in.Op)
	}, bytecode.OpWithCleanup, bytecode.OpWithCleanupStart, bytecode.OpWithCleanupFinish, bytecode.OpWithExceptStart)
}

// opSetupFinally opens a try statement, an async for, or nothing at all
// for the cleanup that unbinds a named exception.
func opSetupFinally(p *pass, in *bytecode.Instruction) {
	target := p.instrAt(in.Target)
	if target != nil && target.Op == bytecode.OpEndAsyncFor {
		p.asyncFor = in.Target
		p.asyncHead = in.Offset
		return
	}
	if top := p.blocks.Top(); top.Kind == BlockExcept && top.name != "" {
		if i, ok := p.index[in.Target]; ok {
			if n := p.nameCleanup(i); n > 0 {
				p.skips[in.Target] = p.offsetAt(i + n)
				return
			}
		}
	}
	p.setupTry(in, handlerIsExcept(target))
}

func opPopBlock(p *pass, in *bytecode.Instruction) {
	top := p.blocks.Top()
	switch top.Kind {
	case BlockWith, BlockAsyncWith:
		p.popWith(top)
		return
	case BlockTry:
		p.popTry(top, in)
		return
	}
	if n := len(p.loopSetup); n > 0 && p.loopSetup[n-1] >= in.Next() {
		p.loopSetup = p.loopSetup[:n-1]
		return
	}
	if top.Kind == BlockContainer && top.try.finallyAt >= 0 && p.v.AtLeast(3, 9) && !p.v.HasExceptionTable() {
		top.try.copyAt = in.Next()
	}
}

// popWith ends a with body at its POP_BLOCK and skips the exit call.
func (p *pass) popWith(w *Block) {
	n := p.withExitLength(p.pos + 1)
	if n == 0 {
		n = p.legacyWithExit(p.pos + 1)
	}
	if n == 0 {
		if w.Kind == BlockAsyncWith {
			n = p.asyncExitLength(p.pos + 1)
		}
	}
	if n == 0 {
		p.warn("with statement at %d has no recognisable exit", w.Start)
		w.popped = true
		return
	}
	w.End = p.offsetAt(p.pos + 1 + n)
	w.popped = true
	p.closeTop()
	p.skipExit(n + 1)
}

// legacyWithExit matches the exit of a with statement before 3.9: the
// None pushed for the finally, the cleanup (awaited when async) and
// END_FINALLY.
func (p *pass) legacyWithExit(i int) int {
	op := func(k int) bytecode.Op {
		if k < len(p.instrs) {
			return p.instrs[k].Op
		}
		return bytecode.OpInvalid
	}
	j := i
	switch {
	case op(j) == bytecode.OpBeginFinally:
		j++
	case op(j) == bytecode.OpLoadConst && p.instrs[j].Const != nil && p.instrs[j].Const.IsNone():
		j++
	default:
		return 0
	}
	switch op(j) {
	case bytecode.OpWithCleanup:
		j++
	case bytecode.OpWithCleanupStart:
		j++
		for op(j) == bytecode.OpGetAwaitable || op(j) == bytecode.OpLoadConst || op(j) == bytecode.OpYieldFrom {
			j++
		}
		if op(j) != bytecode.OpWithCleanupFinish {
			return 0
		}
		j++
	default:
		return 0
	}
	if op(j) != bytecode.OpEndFinally {
		return 0
	}
	return j + 1 - i
}

// popTry ends a protected body. A body that leaves through a return or
// loop jump right before its handler stays open over that instruction.
func (p *pass) popTry(b *Block, in *bytecode.Instruction) {
	c := p.blocks.parentOf(p.blocks.Len() - 1)
	if c == nil || c.Kind != BlockContainer {
		p.fail(ErrBlockMismatch, "try body outside a container")
	}
	next := p.at(1)
	if next != nil && next.Op == bytecode.OpCallFinally {
		return
	}
	if next != nil && p.leaves(next) {
		handler := c.try.exceptAt
		if handler < 0 {
			handler = c.try.finallyAt
		}
		if next.Next() == handler {
			b.End = handler
		}
		return
	}
	var keep []ast.Expr
	if extra := p.stack.Len() - len(b.stack); extra > 0 {
		keep = p.popN(extra)
		p.unclean("try body at %d left %d values on the stack", b.Start, extra)
	}
	b.End = in.Next()
	p.closeTop()
	for _, e := range keep {
		p.push(e)
	}
	t := c.try
	if t.finallyAt >= 0 && t.exceptAt < 0 && p.v.AtLeast(3, 9) && !p.v.HasExceptionTable() {
		t.copyAt = in.Next()
	}
}

// leaves reports whether in exits the enclosing statements: a return or
// a jump that breaks out of or continues the innermost loop.
func (p *pass) leaves(in *bytecode.Instruction) bool {
	if in.Op.IsReturn() {
		return true
	}
	if !in.Op.IsUnconditionalJump() {
		return false
	}
	loop := p.blocks.loop()
	return loop != nil && (in.Target == loop.head || (loop.End > 0 && in.Target >= loop.End))
}

func opEndFinally(p *pass, in *bytecode.Instruction) {
	if p.blocks.Top().Kind == BlockFinally {
		p.closeTop()
		return
	}
	p.closeExcepts(in.Offset)
	if top := p.blocks.Top(); top.Kind == BlockContainer {
		p.handlersDone(top, in)
	}
}

// closeExcepts ends every except clause still open at off.
func (p *pass) closeExcepts(off int) {
	for p.blocks.Top().Kind == BlockExcept {
		p.blocks.Top().End = off
		p.closeTop()
	}
}

func opRaise(p *pass, in *bytecode.Instruction) {
	r := &ast.Raise{SpanVal: p.span()}
	args := p.popN(in.Arg)
	if len(args) > 0 {
		r.Exc = args[0]
	}
	switch {
	case len(args) > 1 && p.v.Before(3, 0):
		r.Value = args[1]
		if len(args) > 2 {
			r.Traceback = args[2]
		}
	case len(args) > 1:
		r.Cause = args[1]
	}
	p.emit(r)
}

// opCallFinally keeps a try body open over the return or jump that
// follows the call into its finally clause.
func opCallFinally(p *pass, in *bytecode.Instruction) {
	top := p.blocks.Top()
	if top.Kind != BlockTry || top.End > 0 {
		return
	}
	if next := p.at(1); next != nil && (next.Op.IsReturn() || next.Op.IsUnconditionalJump()) {
		top.End = next.Next()
	}
}

func opSetupWith(p *pass, in *bytecode.Instruction) {
	ctx := p.pop()
	b := p.open(BlockWith, 0)
	b.Cond = ctx
	b.head = in.Target
	p.push(&ast.Marker{SpanVal: p.span(), Label: markWith})
}

// opBeforeWith opens a 3.11+ with statement. Its body ends where the
// exception table stops protecting it with the with handler.
func opBeforeWith(p *pass, in *bytecode.Instruction) {
	p.openTableWith(BlockWith, p.pop())
}

func (p *pass) openTableWith(kind BlockKind, ctx ast.Expr) {
	end := -1
	if p.regions != nil {
		end = p.regions.withEnd(p.in.Next())
	}
	if end < 0 {
		p.fail(ErrBlockMismatch, "with statement without a handler")
	}
	b := p.open(kind, end)
	b.Cond = ctx
	p.push(&ast.Marker{SpanVal: p.span(), Label: markWith})
}
