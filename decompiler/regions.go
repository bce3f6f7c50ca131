package decompiler

import (
	"sort"

	"github.com/skuznetsov/depyo.js-sub000/pkg/ast"
	"github.com/skuznetsov/depyo.js-sub000/pkg/bytecode"
)

type handlerKind uint8

const (
	handlerOther handlerKind = iota
	handlerExcept
	handlerFinally
	handlerWith
	handlerCleanup
	handlerAsyncFor
)

// tryRegion is the protected body of one try statement recovered from an
// exception table.
type tryRegion struct {
	start, end int
	handler    int
	finally    bool
}

// regions is the exception-table view of a 3.11+ code object.
type regions struct {
	entries []bytecode.ExceptionEntry
	kinds   map[int]handlerKind
	tries   map[int][]*tryRegion // by body start
}

// analyzeRegions classifies every handler and derives the try bodies.
// Handler code that only re-raises or restores state is registered in
// skips.
func analyzeRegions(instrs []bytecode.Instruction, index map[int]int, entries []bytecode.ExceptionEntry, skips map[int]int) *regions {
	r := &regions{entries: entries, kinds: make(map[int]handlerKind), tries: make(map[int][]*tryRegion)}
	for _, e := range entries {
		if _, seen := r.kinds[e.Target]; seen {
			continue
		}
		r.kinds[e.Target] = classifyHandler(instrs, index, e.Target)
	}
	byTarget := make(map[int]*tryRegion)
	for _, e := range entries {
		k := r.kinds[e.Target]
		if (k != handlerExcept && k != handlerFinally) || e.End > e.Target {
			continue
		}
		tr := byTarget[e.Target]
		if tr == nil {
			tr = &tryRegion{start: e.Start, end: e.End, handler: e.Target, finally: k == handlerFinally}
			byTarget[e.Target] = tr
			continue
		}
		if e.Start < tr.start {
			tr.start = e.Start
		}
		if e.End > tr.end {
			tr.end = e.End
		}
	}
	// A finally wraps the except handlers of its own statement: their
	// cleanup blocks are protected by the finally handler.
	for _, fin := range byTarget {
		if !fin.finally {
			continue
		}
		for _, ex := range byTarget {
			if ex.finally || ex.start >= fin.start {
				continue
			}
			ct := cleanupTarget(entries, ex.handler)
			if ct < 0 {
				continue
			}
			if h, ok := bytecode.HandlerFor(entries, ct); ok && h.Target == fin.handler {
				fin.start = ex.start
			}
		}
	}
	for _, tr := range byTarget {
		r.tries[tr.start] = append(r.tries[tr.start], tr)
	}
	for start, list := range r.tries {
		sort.Slice(list, func(i, j int) bool {
			if list[i].finally != list[j].finally {
				return list[i].finally
			}
			return list[i].end > list[j].end
		})
		r.tries[start] = list
	}
	for target, k := range r.kinds {
		switch k {
		case handlerFinally, handlerOther, handlerWith:
			if end := handlerEnd(instrs, index, target, k); end > target {
				skips[target] = end
			}
		}
	}
	return r
}

// cleanupTarget returns the handler protecting the body of handler h,
// which is the cleanup block of an except clause.
func cleanupTarget(entries []bytecode.ExceptionEntry, h int) int {
	for _, e := range entries {
		if e.Start >= h && e.Start <= h+4 && e.Lasti {
			return e.Target
		}
	}
	return -1
}

func classifyHandler(instrs []bytecode.Instruction, index map[int]int, target int) handlerKind {
	i, ok := index[target]
	if !ok {
		return handlerOther
	}
	switch instrs[i].Op {
	case bytecode.OpCopy, bytecode.OpCleanupThrow:
		return handlerCleanup
	case bytecode.OpEndAsyncFor:
		return handlerAsyncFor
	case bytecode.OpPushExcInfo:
	default:
		return handlerOther
	}
	if i+1 >= len(instrs) {
		return handlerFinally
	}
	switch instrs[i+1].Op {
	case bytecode.OpWithExceptStart:
		return handlerWith
	case bytecode.OpPopTop:
		return handlerExcept
	}
	// An except clause loads its exception types and tests them.
	for j := i + 1; j < len(instrs) && j < i+8; j++ {
		switch instrs[j].Op {
		case bytecode.OpCheckExcMatch, bytecode.OpCheckEgMatch:
			return handlerExcept
		case bytecode.OpLoadName, bytecode.OpLoadGlobal, bytecode.OpLoadAttr, bytecode.OpLoadFast,
			bytecode.OpLoadFastLoadFast, bytecode.OpLoadDeref, bytecode.OpBuildTuple, bytecode.OpPushNull:
			continue
		}
		return handlerFinally
	}
	return handlerFinally
}

// handlerEnd is the offset where normal code resumes after a handler the
// decompiler does not render directly.
func handlerEnd(instrs []bytecode.Instruction, index map[int]int, target int, k handlerKind) int {
	i, ok := index[target]
	if !ok {
		return -1
	}
	if k == handlerWith {
		for j := i; j < len(instrs); j++ {
			// COPY 3, POP_EXCEPT, RERAISE is the cleanup of the handler
			// itself, not its exit.
			if instrs[j].Op != bytecode.OpPopExcept || (j > 0 && instrs[j-1].Op == bytecode.OpCopy) {
				continue
			}
			j++
			for n := 0; n < 2 && j < len(instrs) && instrs[j].Op == bytecode.OpPopTop; n++ {
				j++
			}
			if j < len(instrs) && instrs[j].Op.IsUnconditionalJump() {
				j++
			}
			if j < len(instrs) {
				return instrs[j].Offset
			}
			return instrs[len(instrs)-1].Next()
		}
		return -1
	}
	for j := i; j < len(instrs); j++ {
		if instrs[j].Op == bytecode.OpReraise {
			return instrs[j].Next()
		}
	}
	return -1
}

// withEnd returns the end of the with body that starts at or after
// offset, taken from the handler entries that point at a with handler.
func (r *regions) withEnd(offset int) int {
	best := -1
	target := -1
	for _, e := range r.entries {
		if r.kinds[e.Target] != handlerWith || e.Start < offset || e.End > e.Target {
			continue
		}
		if best < 0 || e.Start < best {
			best, target = e.Start, e.Target
		}
	}
	if target < 0 {
		return -1
	}
	end := -1
	for _, e := range r.entries {
		if e.Target == target && e.End <= target && e.End > end {
			end = e.End
		}
	}
	return end
}

// asyncForEnd returns the END_ASYNC_FOR handler guarding offset.
func (r *regions) asyncForEnd(offset int) int {
	if h, ok := bytecode.HandlerFor(r.entries, offset); ok && r.kinds[h.Target] == handlerAsyncFor {
		return h.Target
	}
	return -1
}

// openRegions opens the try statements whose protected body starts at
// off. A finally and an except sharing a start become one statement.
func (p *pass) openRegions(off int) {
	list := p.regions.tries[off]
	if len(list) == 0 {
		return
	}
	delete(p.regions.tries, off)
	for _, tr := range list {
		top := p.blocks.Top()
		if !tr.finally && top.Kind == BlockTry && top.Start == off && len(top.Nodes) == 0 {
			if c := p.blocks.parentOf(p.blocks.Len() - 1); c != nil && c.Kind == BlockContainer && c.try.exceptAt < 0 && !c.try.bodyDone {
				c.try.exceptAt = tr.handler
				top.End = tr.end
				continue
			}
		}
		p.openTry(off, tr.handler, tr.end, tr.finally)
	}
}

// openTry pushes a container and its protected body.
func (p *pass) openTry(start, handler, end int, finally bool) {
	c := &Block{Kind: BlockContainer, Start: start, Line: p.in.Line, stack: p.stack.Snapshot(), try: newTryState()}
	c.try.stmt.SpanVal = ast.At(p.in.Line)
	if finally {
		c.try.finallyAt = handler
	} else {
		c.try.exceptAt = handler
	}
	p.blocks.push(c)
	p.blocks.push(&Block{Kind: BlockTry, Start: start, End: end, Line: p.in.Line, stack: p.stack.Snapshot()})
}

// setupTry handles SETUP_EXCEPT and SETUP_FINALLY before exception tables.
// Consecutive setups for one statement share a container.
func (p *pass) setupTry(in *bytecode.Instruction, except bool) {
	top := p.blocks.Top()
	start := in.Next()
	if top.Kind == BlockTry && len(top.Nodes) == 0 && top.Start == in.Offset {
		c := p.blocks.parentOf(p.blocks.Len() - 1)
		if except && c.try.exceptAt < 0 {
			c.try.exceptAt = in.Target
			top.Start = start
			return
		}
	}
	c := &Block{Kind: BlockContainer, Start: in.Offset, Line: in.Line, stack: p.stack.Snapshot(), try: newTryState()}
	c.try.stmt.SpanVal = ast.At(in.Line)
	if except {
		c.try.exceptAt = in.Target
	} else {
		c.try.finallyAt = in.Target
	}
	p.blocks.push(c)
	p.blocks.push(&Block{Kind: BlockTry, Start: start, Line: in.Line, stack: p.stack.Snapshot()})
}

// linkTry moves a try statement into its next clause when the current
// offset is where that clause begins.
func (p *pass) linkTry(off int) {
	top := p.blocks.Top()
	if top.Kind != BlockContainer {
		return
	}
	t := top.try
	if !t.bodyDone || t.inFinally {
		return
	}
	switch {
	case off == t.exceptAt:
		switch p.in.Op {
		case bytecode.OpEndFinally, bytecode.OpReraise:
			t.exceptAt = -1
			return
		}
		p.enterExcept(top, off)
	case t.finallyAt >= 0 && p.v.Before(3, 9) && off == t.finallyAt:
		p.enterFinally(top)
	case t.finallyAt >= 0 && p.v.AtLeast(3, 9) && off == t.copyAt:
		p.enterFinallyCopy(top)
	case !p.v.HasExceptionTable() && off == t.elseAt && t.started && t.endAt > off:
		e := &Block{Kind: BlockElse, Start: off, End: t.endAt, Line: p.in.Line, stack: p.stack.Snapshot()}
		p.blocks.push(e)
	}
}

func (p *pass) enterExcept(c *Block, off int) {
	t := c.try
	t.started = true
	t.exceptAt = -1
	b := &Block{Kind: BlockExcept, Start: off, Line: p.in.Line, stack: p.stack.Snapshot()}
	p.blocks.push(b)
	n := 3
	if p.v.HasExceptionTable() {
		n = 1
	}
	for i := 0; i < n; i++ {
		p.push(&ast.Marker{Label: markException})
	}
}

// enterFinally opens a legacy finally clause, which runs from the handler
// to END_FINALLY.
func (p *pass) enterFinally(c *Block) {
	t := c.try
	t.started = true
	t.inFinally = true
	if p.v.Before(3, 8) {
		if top, ok := p.stack.Top(); ok && ast.IsNoneConst(top) {
			p.stack.Pop()
		}
	}
	p.blocks.push(&Block{Kind: BlockFinally, Start: p.in.Offset, Line: p.in.Line, stack: p.stack.Snapshot()})
}

// enterFinallyCopy opens the inlined normal-path copy of a finally body.
// Its length is that of the exceptional copy at the handler, which is
// skipped.
func (p *pass) enterFinallyCopy(c *Block) {
	t := c.try
	fi, ok := p.index[t.finallyAt]
	if !ok {
		p.fail(ErrBlockMismatch, "finally handler %d not found", t.finallyAt)
	}
	start := fi
	if p.instrs[fi].Op == bytecode.OpPushExcInfo {
		start++
	}
	n := 0
	for start+n < len(p.instrs) && p.instrs[start+n].Op != bytecode.OpReraise {
		n++
	}
	t.started = true
	t.inFinally = true
	t.copyLen = n
	if start+n < len(p.instrs) {
		p.skips[t.finallyAt] = p.instrs[start+n].Next()
	}
	p.blocks.push(&Block{Kind: BlockFinally, Start: p.in.Offset, End: p.offsetAt(p.pos + n), Line: p.in.Line, stack: p.stack.Snapshot()})
}

// containerJump records a jump taken at container level: the end of the
// protected body or of the else clause.
func (p *pass) containerJump(c *Block, in *bytecode.Instruction) {
	t := c.try
	if t.started || in.Target <= in.Offset {
		return
	}
	if !p.v.HasExceptionTable() && t.elseAt < 0 {
		t.elseAt = in.Target
		return
	}
	if in.Target > t.endAt {
		t.endAt = in.Target
	}
	if !p.v.HasExceptionTable() {
		return
	}
	if t.finallyAt >= 0 {
		t.copyAt = in.Target
	} else if c.End <= 0 {
		c.End = in.Target
	}
}

// handlersDone settles a container after its last handler, at the
// END_FINALLY or RERAISE that re-raises unmatched exceptions.
func (p *pass) handlersDone(c *Block, in *bytecode.Instruction) {
	t := c.try
	if !t.started || t.exceptAt >= 0 || t.finallyAt >= 0 || c.End > 0 {
		return
	}
	end := t.endAt
	if end < in.Next() {
		end = in.Next()
	}
	c.End = end
}

// closeExcept ends a handler that jumps past the remaining clauses.
func (p *pass) closeExcept(in *bytecode.Instruction) {
	top := p.blocks.Top()
	top.End = in.Next()
	bare := top.Cond == nil
	c := p.blocks.parentOf(p.blocks.Len() - 1)
	p.closeTop()
	if c == nil || c.Kind != BlockContainer {
		return
	}
	t := c.try
	if in.Target > in.Offset && in.Target > t.endAt {
		t.endAt = in.Target
	}
	if bare && t.exceptAt < 0 && t.finallyAt < 0 && c.End <= 0 && t.endAt > in.Offset {
		// Nothing can follow an untyped clause.
		c.End = t.endAt
	}
	if t.finallyAt >= 0 && p.v.HasExceptionTable() {
		t.copyAt = t.endAt
	}
	if p.v.HasExceptionTable() && t.finallyAt < 0 && c.End <= 0 && t.exceptAt < 0 {
		c.End = t.endAt
	}
}

// closeWithAt closes a 3.11+ with statement at the end of its protected
// body and skips the exit call that follows.
func (p *pass) closeWithAt(off int) bool {
	if !p.v.HasExceptionTable() {
		return false
	}
	top := p.blocks.Top()
	if (top.Kind != BlockWith && top.Kind != BlockAsyncWith) || top.End != off || top.popped {
		return false
	}
	// A pass body is a NOP the exception table leaves unprotected.
	if p.in.Op == bytecode.OpNop {
		top.End = p.in.Next()
		return false
	}
	n := p.withExitLength(p.pos)
	if top.Kind == BlockAsyncWith {
		n = p.asyncExitLength(p.pos)
	}
	if n == 0 {
		p.fail(ErrBlockMismatch, "with statement ends without an exit call")
	}
	p.closeTop()
	p.skipExit(n)
	return true
}

// exitBeforeLeave skips the exit call the compiler inlines ahead of a
// return, break or continue inside a with body. When nothing of the body
// follows, the with statement closes after the leaving instruction.
func (p *pass) exitBeforeLeave() bool {
	w := p.blocks.innermost(func(b *Block) bool { return b.Kind == BlockWith || b.Kind == BlockAsyncWith })
	if w == nil || w.popped {
		return false
	}
	n, leaveEnd, jump := p.exitSequence(p.pos, w.Kind == BlockAsyncWith)
	if n == 0 {
		return false
	}
	// A jump after the exit call at the with's own level is its normal
	// exit, not a break or continue.
	if jump && w == p.blocks.Top() && !(p.v.HasExceptionTable() && p.in.Offset < w.End) {
		return false
	}
	if w == p.blocks.Top() && (p.in.Offset >= w.End || leaveEnd >= w.End) {
		w.popped = true
		w.End = leaveEnd
	}
	p.skipCount(n)
	return true
}

// exitSequence matches [POP_BLOCK] [ROT_TWO|SWAP 2] exit-call followed by
// a return or jump. It returns the length of the part before the leaving
// instruction, the offset just past that instruction and whether it is a
// jump.
func (p *pass) exitSequence(i int, async bool) (n, end int, jump bool) {
	j := i
	at := func(k int) *bytecode.Instruction {
		if k < len(p.instrs) {
			return &p.instrs[k]
		}
		return nil
	}
	if in := at(j); in != nil && in.Op == bytecode.OpPopBlock {
		j++
	}
	if in := at(j); in != nil && (in.Op == bytecode.OpRotTwo || (in.Op == bytecode.OpSwap && in.Arg == 2)) {
		j++
	}
	var exit int
	switch {
	case p.v.Before(3, 8):
		return 0, 0, false
	case p.v.Before(3, 9):
		ops := []bytecode.Op{bytecode.OpBeginFinally, bytecode.OpWithCleanupStart, bytecode.OpWithCleanupFinish, bytecode.OpPopFinally}
		for k, op := range ops {
			if in := at(j + k); in == nil || in.Op != op {
				return 0, 0, false
			}
		}
		exit = len(ops)
	case async:
		exit = p.asyncExitLength(j)
	default:
		exit = p.withExitLength(j)
	}
	if exit == 0 {
		return 0, 0, false
	}
	j += exit
	leave := at(j)
	if leave == nil {
		return 0, 0, false
	}
	switch {
	case leave.Op.IsReturn():
		return j - i, leave.Next(), false
	case leave.Op.IsUnconditionalJump():
		return j - i, leave.Next(), true
	case leave.Op == bytecode.OpLoadConst:
		if ret := at(j + 1); ret != nil && ret.Op == bytecode.OpReturnValue {
			return j - i, ret.Next(), false
		}
	}
	return 0, 0, false
}

// skipWithHandler hides the exceptional exit of a with statement without
// an exception table once its body has left through a return or jump.
// The handler starts at the offset SETUP_WITH recorded as the head.
func (p *pass) skipWithHandler(b *Block) {
	if p.v.HasExceptionTable() || !b.popped {
		return
	}
	i, ok := p.index[b.head]
	if !ok {
		return
	}
	for j := i; j < len(p.instrs); j++ {
		switch p.instrs[j].Op {
		case bytecode.OpEndFinally:
			p.skips[b.head] = p.instrs[j].Next()
			return
		case bytecode.OpPopExcept:
			end := p.instrs[j].Next()
			if j+1 < len(p.instrs) && p.instrs[j+1].Op == bytecode.OpPopTop {
				end = p.instrs[j+1].Next()
			}
			p.skips[b.head] = end
			return
		}
	}
}

// skipExit skips n instructions of a with exit sequence and a jump that
// carries the normal path past the exceptional exit.
func (p *pass) skipExit(n int) {
	p.skipCount(n)
	if next := p.at(n); next != nil && next.Op == bytecode.OpJumpForward {
		p.skipTo = next.Target
	}
}

// asyncExitLength matches the exit of an async with: the exit call, its
// awaiting and the discarded result.
func (p *pass) asyncExitLength(i int) int {
	n := 0
	for ; i+n < len(p.instrs); n++ {
		switch p.instrs[i+n].Op {
		case bytecode.OpLoadConst, bytecode.OpDupTop, bytecode.OpCopy, bytecode.OpPrecall, bytecode.OpCall,
			bytecode.OpCallFunction, bytecode.OpGetAwaitable, bytecode.OpSend, bytecode.OpYieldValue,
			bytecode.OpYieldFrom, bytecode.OpResume, bytecode.OpJumpBackwardNoInterrupt, bytecode.OpEndSend,
			bytecode.OpCleanupThrow:
			continue
		case bytecode.OpPopTop:
			return n + 1
		}
		return 0
	}
	return 0
}
