package decompiler

import (
	"github.com/skuznetsov/depyo.js-sub000/pkg/ast"
	"github.com/skuznetsov/depyo.js-sub000/pkg/bytecode"
)

func registerFlow(r *Registry) {
	r.add(opCondJump,
		bytecode.OpPopJumpIfFalse, bytecode.OpPopJumpIfTrue, bytecode.OpPopJumpIfNone, bytecode.OpPopJumpIfNotNone,
		bytecode.OpPopJumpForwardIfFalse, bytecode.OpPopJumpForwardIfTrue,
		bytecode.OpPopJumpForwardIfNone, bytecode.OpPopJumpForwardIfNotNone,
		bytecode.OpPopJumpBackwardIfFalse, bytecode.OpPopJumpBackwardIfTrue,
		bytecode.OpPopJumpBackwardIfNone, bytecode.OpPopJumpBackwardIfNotNone,
		bytecode.OpJumpIfFalse, bytecode.OpJumpIfTrue, bytecode.OpJumpIfFalseOrPop, bytecode.OpJumpIfTrueOrPop,
		bytecode.OpJumpIfNotExcMatch)
	r.add(opJump, bytecode.OpJumpForward, bytecode.OpJumpAbsolute, bytecode.OpJumpBackward, bytecode.OpJumpBackwardNoInterrupt)
	r.add(opForIter, bytecode.OpForIter)
	r.add(func(p *pass, in *bytecode.Instruction) {
		// From 3.13 a POP_TOP drops the iterator, which the loop already
		// did when it closed.
		if next := p.at(1); p.v.AtLeast(3, 13) && next != nil && next.Op == bytecode.OpPopTop {
			p.skipCount(2)
		}
	}, bytecode.OpEndFor)
	r.add(func(p *pass, in *bytecode.Instruction) {
		p.loopSetup = append(p.loopSetup, in.Target)
	}, bytecode.OpSetupLoop)
	r.add(func(p *pass, in *bytecode.Instruction) {
		p.emit(&ast.Break{SpanVal: p.span()})
	}, bytecode.OpBreakLoop)
	r.add(func(p *pass, in *bytecode.Instruction) {
		p.emit(&ast.Continue{SpanVal: p.span()})
	}, bytecode.OpContinueLoop)
	r.add(opReturn, bytecode.OpReturnValue, bytecode.OpReturnConst)
}

func jumpsOnTrue(op bytecode.Op) bool {
	switch op {
	case bytecode.OpPopJumpIfTrue, bytecode.OpPopJumpForwardIfTrue, bytecode.OpPopJumpBackwardIfTrue,
		bytecode.OpJumpIfTrue, bytecode.OpJumpIfTrueOrPop:
		return true
	}
	return false
}

func jumpsOnNone(op bytecode.Op) (none, ok bool) {
	switch op {
	case bytecode.OpPopJumpIfNone, bytecode.OpPopJumpForwardIfNone, bytecode.OpPopJumpBackwardIfNone:
		return true, true
	case bytecode.OpPopJumpIfNotNone, bytecode.OpPopJumpForwardIfNotNone, bytecode.OpPopJumpBackwardIfNotNone:
		return false, true
	}
	return false, false
}

// fallthroughTest is the condition under which a conditional jump is not
// taken, which is the test of the block it opens.
func fallthroughTest(op bytecode.Op, cond ast.Expr) ast.Expr {
	if none, ok := jumpsOnNone(op); ok {
		cmp := "is not"
		if !none {
			cmp = "is"
		}
		return &ast.Compare{SpanVal: cond.Span(), Left: cond, Ops: []string{cmp}, Comparators: []ast.Expr{&ast.Const{Value: bytecode.None()}}}
	}
	if jumpsOnTrue(op) {
		return negate(cond)
	}
	return cond
}

func opCondJump(p *pass, in *bytecode.Instruction) {
	switch in.Op {
	case bytecode.OpJumpIfNotExcMatch:
		typ := p.pop()
		p.pop()
		p.exceptClause(typ, false, in.Target)
		return
	case bytecode.OpJumpIfFalseOrPop, bytecode.OpJumpIfTrueOrPop:
		p.openLogical(p.pop(), in)
		return
	}

	cond := p.pop()
	if p.caseGuard(in, cond) {
		return
	}
	if cmp, ok := isExcMatch(cond); ok {
		p.exceptMatch(cmp, in)
		return
	}
	// 3.12 lowers "a and b" to COPY 1, a popping jump and POP_TOP; 3.13
	// puts a TO_BOOL before the jump.
	prev, next := p.at(-1), p.at(1)
	if prev != nil && prev.Op == bytecode.OpToBool {
		prev = p.at(-2)
	}
	if prev != nil && next != nil && prev.Op == bytecode.OpCopy && prev.Arg == 1 &&
		next.Op == bytecode.OpPopTop && p.stack.IsTop(cond) {
		if _, none := jumpsOnNone(in.Op); !none {
			p.pop()
			p.openLogical(cond, in)
			p.skipCount(2)
			return
		}
	}
	test := fallthroughTest(in.Op, cond)

	switch in.Op {
	case bytecode.OpJumpIfFalse, bytecode.OpJumpIfTrue:
		p.legacyCond(in, cond, test)
		return
	}
	if p.assertAhead(in) {
		b := p.open(BlockIf, in.Target)
		b.Cond = test
		b.assert = true
		return
	}
	if in.Target <= in.Offset {
		p.backwardCond(in, test)
		return
	}
	p.placeCond(in, test, p.exprStart)
}

// openLogical opens the block of a short-circuit operator whose left
// operand is cond.
func (p *pass) openLogical(cond ast.Expr, in *bytecode.Instruction) {
	b := p.open(BlockIf, in.Target)
	b.Cond = cond
	b.logic = "and"
	if jumpsOnTrue(in.Op) {
		b.logic = "or"
	}
}

// legacyCond handles the non-popping JUMP_IF_FALSE and JUMP_IF_TRUE of
// 2.x, which leave the test for a POP_TOP on each path. A POP_TOP at the
// target marks a statement; otherwise the value feeds and/or.
func (p *pass) legacyCond(in *bytecode.Instruction, cond, test ast.Expr) {
	start := p.exprStart
	if next := p.at(1); next != nil && next.Op == bytecode.OpPopTop {
		p.skipCount(2)
	}
	if t := p.instrAt(in.Target); t != nil && t.Op == bytecode.OpPopTop {
		p.skips[in.Target] = t.Next()
		if in.Target <= in.Offset {
			p.backwardCond(in, test)
			return
		}
		p.placeCond(in, test, start)
		return
	}
	b := p.open(BlockIf, in.Target)
	b.Cond = cond
	b.legacy = true
	b.name = "and"
	if in.Op == bytecode.OpJumpIfTrue {
		b.name = "or"
		b.Cond = test
	}
}

// placeCond files a forward test: into the condition of an enclosing
// while, merged with the test of an empty if, as a loop exit, or as a
// new if block.
func (p *pass) placeCond(in *bytecode.Instruction, test ast.Expr, start int) {
	target := in.Target
	top := p.blocks.Top()
	empty := len(top.Nodes) == 0 && p.stack.Len() == len(top.stack)
	plainIf := (top.Kind == BlockIf || top.Kind == BlockElif) && top.logic == "" && !top.legacy && !top.assert && top.Target == nil

	switch {
	case top.Kind == BlockWhile && empty && start == top.Start && target >= top.End:
		if top.Cond == nil {
			top.Cond = test
		} else {
			top.Cond = joinLogical("and", top.Cond, test)
		}
		return
	case plainIf && empty && start == top.Start && top.End == target:
		top.Cond = joinLogical("and", top.Cond, test)
		return
	case plainIf && empty && start == top.Start && top.End == in.Next():
		// The earlier test jumped into this body when it held: an or.
		p.blocks.pop()
		p.stack.Restore(top.stack)
		p.placeCond(in, joinLogical("or", negate(top.Cond), test), top.exprAt)
		return
	}

	if loop := p.blocks.loop(); loop != nil && loop.End > 0 && target >= loop.End {
		if target > loop.End && target > loop.orElse {
			loop.orElse = target
		}
		p.emit(&ast.If{SpanVal: p.span(), Test: negate(test), Body: []ast.Stmt{&ast.Break{SpanVal: p.span()}}})
		return
	}

	b := p.open(BlockIf, target)
	b.Cond = test
	b.exprAt = start
	if top.Kind == BlockElse && top.ternary == nil && len(top.Nodes) == 0 && top.Start == start {
		b.Kind = BlockElif
	}
	if top.Kind != BlockMain && top.End > 0 && target > top.End {
		b.End = top.End
	}
}

// backwardCond handles a test that jumps back: the bottom test of a loop
// whose first test opened an if, or a filter that continues the loop.
func (p *pass) backwardCond(in *bytecode.Instruction, test ast.Expr) {
	top := p.blocks.Top()
	if (top.Kind == BlockIf || top.Kind == BlockElif) && top.logic == "" && top.Start == in.Target && top.End == in.Next() {
		top.Kind = BlockWhile
		top.head = in.Target
		return
	}
	loop := p.blocks.loop()
	if loop == nil || in.Target != loop.head {
		p.unclean("backward conditional jump at %d to %d", in.Offset, in.Target)
		return
	}
	empty := len(top.Nodes) == 0 && p.stack.Len() == len(top.stack)
	if (top.Kind == BlockIf || top.Kind == BlockElif) && top.logic == "" && empty &&
		p.exprStart == top.Start && top.End == loop.End {
		top.Cond = joinLogical("and", top.Cond, test)
		return
	}
	b := p.open(BlockIf, loop.End)
	b.Cond = test
	b.exprAt = p.exprStart
}

// exceptMatch files the test of a typed except clause.
func (p *pass) exceptMatch(cmp *ast.Compare, in *bytecode.Instruction) {
	typ := cmp.Comparators[0]
	if cmp.Ops[0] != excGroupMatch {
		p.exceptClause(typ, false, in.Target)
		return
	}
	// except*: the match result is the group the clause binds.
	if _, ok := p.stack.Top(); ok {
		p.stack.Set(0, &ast.Marker{Label: markException})
	}
	none, _ := jumpsOnNone(in.Op)
	if none {
		p.exceptClause(typ, true, in.Target)
		return
	}
	next := in.Target
	if j := p.at(2); j != nil && j.Op.IsUnconditionalJump() {
		next = j.Target
	}
	p.exceptClause(typ, true, next)
	p.skipTo = in.Target
}

// exceptClause gives the open except block its type and the offset where
// the next clause starts.
func (p *pass) exceptClause(typ ast.Expr, group bool, next int) {
	ex := p.blocks.Top()
	if ex.Kind != BlockExcept {
		p.fail(ErrBlockMismatch, "exception match in a %s block", ex.Kind)
	}
	ex.Cond = typ
	ex.End = next
	ex.async = group
	if c := p.blocks.parentOf(p.blocks.Len() - 1); c != nil && c.Kind == BlockContainer {
		c.try.exceptAt = next
	}
}

func opJump(p *pass, in *bytecode.Instruction) {
	if p.jump(in) {
		return
	}
	if in.Target > in.Offset {
		p.warn("forward jump at %d to %d left in place", in.Offset, in.Target)
		return
	}
	p.unclean("backward jump at %d to %d outside a loop", in.Offset, in.Target)
}

// jump places an unconditional jump: the end of a try clause, a loop back
// edge, continue or break, or the end of an if body. It reports false
// when the jump fits none of them.
func (p *pass) jump(in *bytecode.Instruction) bool {
	top := p.blocks.Top()
	switch top.Kind {
	case BlockContainer:
		p.containerJump(top, in)
		return true
	case BlockExcept:
		if top.popped {
			p.closeExcept(in)
			return true
		}
	}
	loop := p.blocks.loop()
	if loop != nil && p.isBackEdge(loop, in) {
		return true
	}
	endsIf := (top.Kind == BlockIf || top.Kind == BlockElif) && in.Next() == top.End
	if endsIf && (p.closeChain(top, in) || p.openTernary(top, in)) {
		return true
	}
	if loop != nil {
		switch {
		case in.Target == loop.head:
			if endsIf && top.logic == "" && len(top.Nodes) > 0 && loop.End > in.Next() {
				// The if body continues the loop; what follows is its else.
				p.closeTop()
				p.openElse(loop.End)
				return true
			}
			p.emit(&ast.Continue{SpanVal: p.span()})
			return true
		case loop.End > 0 && in.Target >= loop.End:
			if in.Target > loop.End && in.Target > loop.orElse {
				loop.orElse = in.Target
			}
			p.emit(&ast.Break{SpanVal: p.span()})
			return true
		}
	}
	if in.Target > in.Offset && endsIf && top.logic == "" {
		p.closeTop()
		p.openElse(in.Target)
		return true
	}
	return false
}

// isBackEdge reports whether in is the jump that closes loop's body.
func (p *pass) isBackEdge(loop *Block, in *bytecode.Instruction) bool {
	if in.Target != loop.head || in.Target > in.Offset {
		return false
	}
	next := in.Next()
	if n := p.instrAt(next); n != nil && n.Op == bytecode.OpEndFor {
		next = n.Next()
	}
	return next >= loop.End
}

// openElse opens an else clause after the if that just closed, kept inside
// the enclosing block.
func (p *pass) openElse(end int) {
	parent := p.blocks.Top()
	if parent.Kind != BlockMain && parent.End > 0 && end > parent.End {
		end = parent.End
	}
	b := p.open(BlockElse, end)
	b.Line = p.code.LineAt(b.Start)
}

// openTernary turns an empty if whose value is on the stack into the
// first half of a conditional expression.
func (p *pass) openTernary(top *Block, in *bytecode.Instruction) bool {
	if len(top.Nodes) != 0 || top.logic != "" || top.legacy || p.stack.Len() != len(top.stack)+1 {
		return false
	}
	body := p.pop()
	p.blocks.pop()
	p.stack.Restore(top.stack)
	e := p.open(BlockElse, in.Target)
	e.Line = top.Line
	e.ternary = &ternary{test: top.Cond, body: body}
	return true
}

// closeChain finishes a chained comparison: every and-block ending at the
// ROT_TWO/POP_TOP cleanup collapses into one comparison, and the cleanup
// is jumped over.
func (p *pass) closeChain(top *Block, in *bytecode.Instruction) bool {
	if top.logic != "and" {
		return false
	}
	end := top.End
	i, ok := p.index[end]
	if !ok || i+1 >= len(p.instrs) {
		return false
	}
	rot, pop := &p.instrs[i], &p.instrs[i+1]
	if !(rot.Op == bytecode.OpRotTwo || (rot.Op == bytecode.OpSwap && rot.Arg == 2)) || pop.Op != bytecode.OpPopTop {
		return false
	}
	for {
		b := p.blocks.Top()
		if b.logic != "and" || b.End != end {
			break
		}
		right := p.pop()
		p.blocks.pop()
		p.stack.Restore(b.stack)
		// The duplicated middle operand.
		p.pop()
		p.push(joinLogical("and", b.Cond, right))
	}
	p.skipTo = in.Target
	return true
}

func opForIter(p *pass, in *bytecode.Instruction) {
	iter := p.peek(0)
	b := p.open(BlockFor, in.Target)
	b.Cond = iter
	b.head = in.Offset
	p.push(&ast.Marker{SpanVal: p.span(), Label: markFor})
}

func opReturn(p *pass, in *bytecode.Instruction) {
	var v ast.Expr
	if in.Op == bytecode.OpReturnConst {
		v = &ast.Const{SpanVal: p.span(), Value: *in.Const}
	} else {
		v = p.pop()
	}
	if p.kind != kindLambda && ast.IsNoneConst(v) {
		v = nil
		if p.copiedExit(in) {
			return
		}
	}
	p.emit(&ast.Return{SpanVal: p.span(), Value: v})
}

// copiedExit handles a return of None that the compiler copied from the
// end of the code object into a branch or a break. It leaves the branch
// the way a jump to the end would; one at the very end is dropped.
func (p *pass) copiedExit(in *bytecode.Instruction) bool {
	switch p.kind {
	case kindModule, kindClass:
	case kindFunction, kindGenerator:
		if p.v.Before(3, 10) || !p.implicitReturn(in) {
			return false
		}
	default:
		return false
	}
	end := p.codeEnd()
	if in.Next() >= end {
		return p.blocks.Top().Kind != BlockMain
	}
	// Else clauses ending here have nothing left to run.
	for {
		top := p.blocks.Top()
		if top.Kind != BlockElse || top.ternary != nil || top.End != in.Next() {
			break
		}
		p.closeTop()
	}
	if p.blocks.Top().Kind == BlockMain {
		return true
	}
	j := *in
	j.Target = end
	if !p.jump(&j) {
		p.d.log.Debugf("%s: exit at %d kept no jump", p.code.Name, in.Offset)
	}
	return true
}

// implicitReturn reports whether a return of None carries the line of the
// statement before it, which is how the compiler marks the return it adds
// at the end of a body.
func (p *pass) implicitReturn(in *bytecode.Instruction) bool {
	back := -1
	if in.Op == bytecode.OpReturnValue {
		back = -2
	}
	value, prev := p.at(back+1), p.at(back)
	if value == nil || prev == nil {
		return false
	}
	return value.Line == prev.Line && !prev.Op.IsReturn()
}
