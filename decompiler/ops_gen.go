package decompiler

import (
	"github.com/skuznetsov/depyo.js-sub000/pkg/ast"
	"github.com/skuznetsov/depyo.js-sub000/pkg/bytecode"
)

func registerGenerators(r *Registry) {
	r.add(opYieldValue, bytecode.OpYieldValue)
	r.add(opYieldFrom, bytecode.OpYieldFrom)
	r.add(opSend, bytecode.OpSend)
	r.add(opGetAwaitable, bytecode.OpGetAwaitable)
	r.add(opGetAiter, bytecode.OpGetAiter)
	r.add(opGetAnext, bytecode.OpGetAnext)
	r.add(ignore, bytecode.OpEndAsyncFor, bytecode.OpEndSend, bytecode.OpAsyncGenWrap)
	r.add(func(p *pass, in *bytecode.Instruction) { p.push(nil) }, bytecode.OpReturnGenerator)
	r.add(opBeforeAsyncWith, bytecode.OpBeforeAsyncWith)
	r.add(opSetupAsyncWith, bytecode.OpSetupAsyncWith)
}

func opYieldValue(p *pass, in *bytecode.Instruction) {
	v := p.pop()
	if ast.IsNoneConst(v) {
		v = nil
	}
	p.push(&ast.Yield{SpanVal: p.span(), Value: v})
}

// opYieldFrom handles the delegation loop before 3.11: the iterator sits
// under the None sent into it.
func opYieldFrom(p *pass, in *bytecode.Instruction) {
	p.pop()
	p.push(&ast.YieldFrom{SpanVal: p.span(), Value: p.pop()})
}

// opSend is the 3.11+ delegation loop, which runs to the SEND target.
func opSend(p *pass, in *bytecode.Instruction) {
	p.pop()
	p.push(&ast.YieldFrom{SpanVal: p.span(), Value: p.pop()})
	p.skipTo = in.Target
}

// opGetAwaitable wraps the value in an await and skips the send loop that
// drives it.
func opGetAwaitable(p *pass, in *bytecode.Instruction) {
	p.push(&ast.Await{SpanVal: p.span(), Value: p.pop()})
	if end := p.awaitEnd(p.pos); end > 0 {
		p.skipTo = end
	}
}

// awaitEnd returns the offset past the LOAD_CONST None and YIELD_FROM or
// SEND loop that drive the awaitable made at instruction i, or -1.
func (p *pass) awaitEnd(i int) int {
	if i+2 >= len(p.instrs) {
		return -1
	}
	load, drive := &p.instrs[i+1], &p.instrs[i+2]
	if load.Op != bytecode.OpLoadConst || load.Const == nil || !load.Const.IsNone() {
		return -1
	}
	switch drive.Op {
	case bytecode.OpYieldFrom:
		return drive.Next()
	case bytecode.OpSend:
		return drive.Target
	}
	return -1
}

// skipNextAwait skips an await that directly follows the current
// instruction, leaving the stack as it is.
func (p *pass) skipNextAwait() {
	if next := p.at(1); next != nil && next.Op == bytecode.OpGetAwaitable {
		if end := p.awaitEnd(p.pos + 1); end > 0 {
			p.skipTo = end
		}
	}
}

// opGetAiter leaves the iterable as the loop's iterator. Before 3.7
// __aiter__ could return an awaitable, awaited right here.
func opGetAiter(p *pass, in *bytecode.Instruction) {
	p.skipNextAwait()
}

// opGetAnext opens an async for. The loop ends at the END_ASYNC_FOR
// handler, named by SETUP_FINALLY before 3.11 and by the exception table
// after; the await of the next item runs up to the target store.
func opGetAnext(p *pass, in *bytecode.Instruction) {
	end, head := -1, in.Offset
	switch {
	case p.v.HasExceptionTable():
		if p.regions != nil {
			end = p.regions.asyncForEnd(in.Offset)
		}
	case p.asyncFor >= 0:
		end, head = p.asyncFor, p.asyncHead
		p.asyncFor, p.asyncHead = -1, -1
	}
	if end < 0 {
		p.fail(ErrBlockMismatch, "async for without an END_ASYNC_FOR handler")
	}
	b := p.open(BlockAsyncFor, end)
	b.Cond = p.peek(0)
	b.head = head
	for i := p.pos + 1; i < len(p.instrs); i++ {
		op := p.instrs[i].Op
		if op.IsStore() || op == bytecode.OpUnpackSequence || op == bytecode.OpUnpackEx {
			p.skipTo = p.instrs[i].Offset
			break
		}
	}
	p.push(&ast.Marker{SpanVal: p.span(), Label: markAnext})
}

// opBeforeAsyncWith enters an async with. From 3.11 it opens the block
// at once; before, SETUP_ASYNC_WITH does once the enter call is awaited.
func opBeforeAsyncWith(p *pass, in *bytecode.Instruction) {
	ctx := p.pop()
	if p.v.HasExceptionTable() {
		p.openTableWith(BlockAsyncWith, ctx)
		p.skipNextAwait()
		return
	}
	p.asyncCtx = ctx
	p.push(&ast.Marker{SpanVal: p.span(), Label: markWith})
	p.skipNextAwait()
}

func opSetupAsyncWith(p *pass, in *bytecode.Instruction) {
	if m, ok := p.peek(0).(*ast.Marker); ok && m.Label == markWith {
		p.pop()
	}
	b := p.open(BlockAsyncWith, 0)
	b.Cond = p.asyncCtx
	b.head = in.Target
	p.asyncCtx = nil
	p.push(&ast.Marker{SpanVal: p.span(), Label: markWith})
}
