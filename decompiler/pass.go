package decompiler

import (
	"fmt"

	"github.com/skuznetsov/depyo.js-sub000/pkg/ast"
	"github.com/skuznetsov/depyo.js-sub000/pkg/bytecode"
)

// codeKind is the role of a code object, which decides body cleanup.
type codeKind uint8

const (
	kindModule codeKind = iota
	kindFunction
	kindLambda
	kindClass
	kindComprehension
	kindGenerator
)

// Marker labels for values the VM pushes without a source spelling.
const (
	markFor        = "for"
	markException  = "exception"
	markWith       = "with"
	markSaved      = "saved"
	markUnpack     = "unpack"
	markBuildClass = "build_class"
	markAnext      = "anext"
	markAppend     = "append"
	markAdd        = "add"
	markMap        = "map"
	markGenerator  = "generator"
)

type unpack struct {
	value   ast.Expr
	targets []ast.Expr
	want    int
	star    int // index of the starred target, -1 when none
}

type chainStore struct {
	value   ast.Expr
	targets []ast.Expr
}

// pass decompiles one code object. Passes are single-use and never
// shared between goroutines.
type pass struct {
	d      *Decompiler
	code   *bytecode.CodeObject
	v      *bytecode.Version
	kind   codeKind
	depth  int
	instrs []bytecode.Instruction
	index  map[int]int // offset to instruction index
	pos    int
	in     *bytecode.Instruction

	stack  Stack
	blocks blockStack

	regions   *regions
	skips     map[int]int // offset to resume offset
	loopHeads map[int]int // loop head to exit offset
	opened    map[int]bool
	skipTo    int
	deadUntil int
	exprStart int

	unpacks   map[*ast.Marker]*unpack
	chain     *chainStore
	kwNames   []string
	printing  *ast.Print
	lastFrom  *ast.ImportFromStmt
	fromOf    *ast.Import
	cases     map[ast.Stmt]*matchCase
	asyncFor  int // pending async-for exit from SETUP_FINALLY, -1 when none
	asyncHead int
	asyncCtx  ast.Expr
	subject   ast.Expr // match subject kept on the stack across cases
	loopSetup []int    // exits of open SETUP_LOOP blocks

	globals   []string
	nonlocals []string
	warnings  []string
	clean     bool
}

func newPass(d *Decompiler, code *bytecode.CodeObject, v *bytecode.Version, kind codeKind, depth int) *pass {
	p := &pass{
		d:         d,
		code:      code,
		v:         v,
		kind:      kind,
		depth:     depth,
		skips:     make(map[int]int),
		opened:    make(map[int]bool),
		unpacks:   make(map[*ast.Marker]*unpack),
		cases:     make(map[ast.Stmt]*matchCase),
		asyncFor:  -1,
		asyncHead: -1,
		clean:     true,
	}
	p.blocks.init(&Block{Kind: BlockMain})
	return p
}

func (p *pass) offset() int {
	if p.in != nil {
		return p.in.Offset
	}
	return len(p.code.Code)
}

// codeEnd is the offset one past the last decoded instruction.
func (p *pass) codeEnd() int {
	if len(p.instrs) == 0 {
		return 0
	}
	return p.instrs[len(p.instrs)-1].Next()
}

// offsetAt returns the offset of instruction i, or the code end.
func (p *pass) offsetAt(i int) int {
	if i < len(p.instrs) {
		return p.instrs[i].Offset
	}
	return p.codeEnd()
}

// at returns the instruction at relative position d from the current one.
func (p *pass) at(d int) *bytecode.Instruction {
	i := p.pos + d
	if i < 0 || i >= len(p.instrs) {
		return nil
	}
	return &p.instrs[i]
}

func (p *pass) instrAt(offset int) *bytecode.Instruction {
	i, ok := p.index[offset]
	if !ok {
		return nil
	}
	return &p.instrs[i]
}

func (p *pass) warn(format string, args ...any) {
	msg := fmt.Sprintf("%s: %s", p.code.Name, fmt.Sprintf(format, args...))
	p.warnings = append(p.warnings, msg)
	p.d.log.Warningf("%s", msg)
}

// unclean records a warning and marks the output incomplete.
func (p *pass) unclean(format string, args ...any) {
	p.warn(format, args...)
	p.clean = false
}

func (p *pass) push(e ast.Expr) { p.stack.Push(e) }

func (p *pass) pop() ast.Expr {
	e, ok := p.stack.Pop()
	if !ok {
		p.fail(ErrStackUnderflow, "pop")
	}
	return e
}

// popN pops n entries and returns them in push order.
func (p *pass) popN(n int) []ast.Expr {
	if n <= 0 {
		return nil
	}
	out := make([]ast.Expr, n)
	for i := n - 1; i >= 0; i-- {
		out[i] = p.pop()
	}
	return out
}

func (p *pass) peek(depth int) ast.Expr {
	e, ok := p.stack.Peek(depth)
	if !ok {
		p.fail(ErrStackUnderflow, "peek %d", depth)
	}
	return e
}

func (p *pass) span() ast.Span {
	if p.in == nil {
		return ast.Span{}
	}
	return ast.At(p.in.Line)
}

// open pushes a new block whose body starts after the current instruction
// and which remembers the current operand stack.
func (p *pass) open(kind BlockKind, end int) *Block {
	b := &Block{Kind: kind, Start: p.in.Next(), End: end, Line: p.in.Line, stack: p.stack.Snapshot()}
	p.blocks.push(b)
	return b
}

// emit appends a finished statement to the innermost block.
func (p *pass) emit(st ast.Stmt) {
	if _, ok := st.(*ast.Print); !ok {
		p.printing = nil
	}
	if _, ok := st.(*ast.ImportFromStmt); !ok {
		p.lastFrom = nil
	}
	top := p.blocks.Top()
	p.appendTo(top, st)
	switch st.(type) {
	case *ast.Return, *ast.Raise, *ast.Break, *ast.Continue:
		if top.closesAtEnd() && top.End > p.in.Next() {
			p.deadUntil = top.End
		} else if top.Kind == BlockExcept && top.End <= 0 {
			p.leaveHandler(top)
		}
	}
}

// leaveHandler ends an untyped except clause that raised or returned
// instead of jumping past the handlers. Without an exception table the
// jump over the handlers is the only record of where they stop.
func (p *pass) leaveHandler(ex *Block) {
	c := p.blocks.parentOf(p.blocks.Len() - 1)
	if c == nil || c.Kind != BlockContainer || p.v.HasExceptionTable() {
		return
	}
	t := c.try
	end := t.elseAt
	if t.endAt > end {
		end = t.endAt
	}
	if end <= p.in.Next() {
		return
	}
	ex.End = end
	p.deadUntil = end
	if t.exceptAt < 0 && t.finallyAt < 0 && c.End <= 0 {
		c.End = end
	}
}

func (p *pass) appendTo(b *Block, st ast.Stmt) {
	if b.Kind == BlockContainer {
		t := b.try
		if t.started || t.bodyDone {
			p.warn("statement outside any clause at %d", p.offset())
		}
		t.stmt.Body = append(t.stmt.Body, st)
		return
	}
	b.append(st)
}

// run walks every instruction once.
func (p *pass) run() {
	for p.pos = 0; p.pos < len(p.instrs); p.pos++ {
		p.in = &p.instrs[p.pos]
		off := p.in.Offset
		p.closeBlocksAt(off)
		if off < p.skipTo {
			continue
		}
		if to, ok := p.skips[off]; ok && to > off {
			p.skipTo = to
			continue
		}
		if off < p.deadUntil {
			continue
		}
		p.deadUntil = 0
		if p.enter() || p.tryCase() {
			continue
		}
		if p.stack.Len() == len(p.blocks.Top().stack) {
			p.exprStart = off
		}
		h := p.d.reg.lookup(p.in.Op)
		if h == nil {
			p.fail(ErrUnsupportedOpcode, "%s", p.in.Op)
		}
		h(p, p.in)
	}
	p.in = nil
}

// skipCount skips the current instruction and the n-1 following it.
func (p *pass) skipCount(n int) {
	p.skipTo = p.offsetAt(p.pos + n)
}

// enter settles obligations that fall due at the current offset before its
// instruction is interpreted. It reports whether the instruction was
// consumed.
func (p *pass) enter() bool {
	off := p.in.Offset
	p.linkTry(off)
	if p.exitBeforeLeave() || p.closeWithAt(off) {
		return true
	}
	p.openLoop(off)
	if p.regions != nil {
		p.openRegions(off)
	}
	if n := p.handlerCleanup(p.pos); n > 0 {
		p.closeExcepts(off)
		p.settleCleanup()
		p.skipCount(n)
		return true
	}
	if n := p.nameCleanup(p.pos); n > 0 {
		p.skipCount(n)
		return true
	}
	return false
}

func (p *pass) openLoop(off int) {
	end, ok := p.loopHeads[off]
	if !ok || p.opened[off] {
		return
	}
	p.opened[off] = true
	b := &Block{Kind: BlockWhile, Start: off, End: end, Line: p.in.Line, head: off, stack: p.stack.Snapshot()}
	p.blocks.push(b)
}

// closeBlocksAt closes every top block whose end has been reached.
func (p *pass) closeBlocksAt(off int) {
	for p.blocks.Len() > 1 {
		top := p.blocks.Top()
		if !top.closesAtEnd() || top.End > off {
			return
		}
		p.closeTop()
	}
}

// closeTop closes the innermost block and folds it into its parent.
func (p *pass) closeTop() {
	top := p.blocks.Top()
	if top.End <= 0 {
		top.End = p.offset()
	}
	b := p.blocks.pop()
	if b == nil {
		return
	}
	parent := p.blocks.Top()
	switch b.Kind {
	case BlockIf, BlockElif:
		p.closeIf(b, parent)
	case BlockElse:
		p.closeElse(b, parent)
	case BlockWhile:
		p.stack.Restore(b.stack)
		test := b.Cond
		if test == nil {
			test = &ast.Const{Value: bytecode.Bool(true)}
		}
		p.appendTo(parent, &ast.While{SpanVal: ast.At(b.Line), Test: test, Body: b.Nodes})
		p.openLoopElse(b)
	case BlockFor, BlockAsyncFor:
		if p.closeFor(b, parent) {
			p.openLoopElse(b)
		}
	case BlockTry:
		p.closeTry(b, parent)
	case BlockExcept:
		p.stack.Restore(b.stack)
		t := p.tryOf(parent)
		t.stmt.Handlers = append(t.stmt.Handlers, &ast.ExceptHandler{
			SpanVal: ast.At(b.Line), Type: b.Cond, Name: b.name, Body: b.Nodes, Star: b.async,
		})
	case BlockFinally:
		p.stack.Restore(b.stack)
		t := p.tryOf(parent)
		t.stmt.FinalBody = append(t.stmt.FinalBody, b.Nodes...)
		t.inFinally = false
		if p.blocks.Top() == parent {
			p.closeTop()
		}
	case BlockContainer:
		p.stack.Restore(b.stack)
		p.appendTo(parent, b.try.stmt)
	case BlockWith, BlockAsyncWith:
		p.stack.Restore(b.stack)
		p.skipWithHandler(b)
		p.appendTo(parent, &ast.With{
			SpanVal: ast.At(b.Line),
			Items:   []ast.WithItem{{Context: b.Cond, Vars: b.Target}},
			Body:    b.Nodes,
			Async:   b.Kind == BlockAsyncWith,
		})
	}
}

func (p *pass) tryOf(b *Block) *tryState {
	if b.Kind != BlockContainer || b.try == nil {
		p.fail(ErrBlockMismatch, "clause outside a try statement")
	}
	return b.try
}

func (p *pass) closeIf(b, parent *Block) {
	if b.logic != "" {
		right := p.pop()
		p.stack.Restore(b.stack)
		p.push(joinLogical(b.logic, b.Cond, right))
		return
	}
	if len(b.Nodes) == 0 && p.stack.Len() == len(b.stack)+1 {
		// A short-circuit test whose right operand stayed on the stack.
		right := p.pop()
		p.stack.Restore(b.stack)
		if b.legacy {
			left := b.Cond
			if b.name == "or" {
				left = negate(left)
			}
			p.push(joinLogical(b.name, left, right))
			return
		}
		p.push(shortCircuit(b.Cond, right))
		return
	}
	p.stack.Restore(b.stack)
	if b.assert {
		if a := assertFrom(b); a != nil {
			p.appendTo(parent, a)
			return
		}
	}
	if w := rotatedWhile(b); w != nil {
		p.appendTo(parent, w)
		return
	}
	test := b.Cond
	if b.Target != nil && test == nil {
		test = &ast.Marker{Label: markCase}
	}
	st := &ast.If{SpanVal: ast.At(b.Line), Test: test, Body: b.Nodes}
	if b.Target != nil {
		p.cases[st] = &matchCase{subject: b.Target, pattern: b.pattern, guard: b.Cond}
		if b.keeps {
			p.subject = b.Target
		}
	}
	p.appendTo(parent, st)
}

func (p *pass) closeElse(b, parent *Block) {
	if b.ternary != nil {
		if len(b.Nodes) == 0 && p.stack.Len() == len(b.stack)+1 {
			orElse := p.pop()
			p.stack.Restore(b.stack)
			p.push(&ast.IfExp{SpanVal: ast.At(b.Line), Test: b.ternary.test, Body: b.ternary.body, OrElse: orElse})
			return
		}
		p.unclean("conditional expression at %d has no else value", b.Start)
		p.stack.Restore(b.stack)
		p.push(&ast.IfExp{Test: b.ternary.test, Body: b.ternary.body, OrElse: &ast.Marker{Label: "?"}})
		return
	}
	p.stack.Restore(b.stack)
	if len(b.Nodes) == 0 {
		return
	}
	p.attachElse(parent, b.Nodes)
}

// attachElse gives an else body to the statement it follows.
func (p *pass) attachElse(parent *Block, nodes []ast.Stmt) {
	if parent.Kind == BlockContainer {
		parent.try.stmt.OrElse = append(parent.try.stmt.OrElse, nodes...)
		return
	}
	switch last := parent.last().(type) {
	case *ast.If:
		tail := last
		// An else opened after an elif belongs to the innermost If.
		for len(tail.OrElse) == 1 {
			next, ok := tail.OrElse[0].(*ast.If)
			if !ok {
				break
			}
			tail = next
		}
		if len(tail.OrElse) == 0 {
			tail.OrElse = nodes
			return
		}
	case *ast.For:
		if len(last.OrElse) == 0 {
			last.OrElse = nodes
			return
		}
	case *ast.While:
		if len(last.OrElse) == 0 {
			last.OrElse = nodes
			return
		}
	}
	p.warn("else clause at %d has no statement to attach to", p.offset())
	for _, st := range nodes {
		parent.append(st)
	}
}

// openLoopElse opens the else clause of a loop that a break jumped past.
func (p *pass) openLoopElse(b *Block) {
	if b.orElse > b.End {
		p.blocks.push(&Block{Kind: BlockElse, Start: b.End, End: b.orElse, Line: p.code.LineAt(b.End), stack: p.stack.Snapshot()})
	}
}

// closeFor folds a for loop into its parent. It reports false when the
// loop was a comprehension and left an expression instead.
func (p *pass) closeFor(b, parent *Block) bool {
	p.stack.Restore(b.stack)
	if _, ok := p.stack.Pop(); !ok {
		p.fail(ErrStackUnderflow, "for loop lost its iterator")
	}
	target := b.Target
	if target == nil {
		target = &ast.Name{Id: "_"}
	}
	f := &ast.For{SpanVal: ast.At(b.Line), Target: target, Iter: b.Cond, Body: b.Nodes, Async: b.Kind == BlockAsyncFor}
	if comp := p.inlineComprehension(f); comp != nil {
		p.stack.Set(0, comp)
		return false
	}
	p.appendTo(parent, f)
	return true
}

// inlineComprehension recognises a loop that only feeds the accumulator
// sitting right under its iterator. Inner loops of a nested comprehension
// see another iterator there and stay statements of the outer loop.
func (p *pass) inlineComprehension(f *ast.For) *ast.Comprehension {
	gens, leaf := loopGenerators(f)
	call, ok := leaf.(*ast.Call)
	if !ok || len(call.Args) < 2 {
		return nil
	}
	m, ok := call.Func.(*ast.Marker)
	if !ok || !p.stack.IsTop(call.Args[0]) {
		return nil
	}
	comp := &ast.Comprehension{SpanVal: f.SpanVal, Generators: gens}
	switch m.Label {
	case markAppend:
		comp.Kind, comp.Elt = ast.ListComp, call.Args[1]
	case markAdd:
		comp.Kind, comp.Elt = ast.SetComp, call.Args[1]
	case markMap:
		if len(call.Args) != 3 {
			return nil
		}
		comp.Kind, comp.Key, comp.Elt = ast.DictComp, call.Args[1], call.Args[2]
	default:
		return nil
	}
	return comp
}

func (p *pass) closeTry(b, parent *Block) {
	p.stack.Restore(b.stack)
	t := p.tryOf(parent)
	t.stmt.Body = append(t.stmt.Body, b.Nodes...)
	t.bodyDone = true
	if !p.v.HasExceptionTable() {
		return
	}
	off := b.End
	if t.exceptAt < 0 {
		if t.finallyAt >= 0 {
			t.copyAt = off
		}
		return
	}
	// An else clause sits between the protected body and the jump over
	// the handlers.
	hi, ok := p.index[t.exceptAt]
	if !ok || hi == 0 {
		return
	}
	prev := &p.instrs[hi-1]
	end := t.exceptAt
	if prev.Op.IsUnconditionalJump() && prev.Target > prev.Offset {
		end = prev.Offset
	} else if !prev.Op.IsReturn() && prev.Op != bytecode.OpRaiseVarargs && prev.Op != bytecode.OpReraise {
		return
	}
	if end > off {
		e := &Block{Kind: BlockElse, Start: off, End: end, Line: p.code.LineAt(off), stack: p.stack.Snapshot()}
		p.blocks.push(e)
	}
}

// finish force-closes whatever the instruction stream left open.
func (p *pass) finish() {
	end := p.codeEnd()
	for p.blocks.Len() > 1 {
		top := p.blocks.Top()
		if top.Kind != BlockContainer && top.Kind != BlockElse {
			p.unclean("%s block opened at %d was never closed", top.Kind, top.Start)
		}
		if top.End <= 0 || top.End > end {
			top.End = end
		}
		p.closeTop()
	}
}

// salvage closes open blocks after a failure without interpreting their
// shape, so statements already recovered are kept.
func (p *pass) salvage() {
	for p.blocks.Len() > 1 {
		b := p.blocks.pop()
		parent := p.blocks.Top()
		if b.Kind == BlockContainer {
			st := b.try.stmt
			if len(st.Handlers) == 0 && len(st.FinalBody) == 0 {
				st.FinalBody = []ast.Stmt{&ast.Pass{}}
			}
			p.appendTo(parent, st)
			continue
		}
		if parent.Kind == BlockContainer {
			parent.try.stmt.Body = append(parent.try.stmt.Body, b.Nodes...)
			continue
		}
		parent.Nodes = append(parent.Nodes, b.Nodes...)
	}
}
