package decompiler

import (
	"github.com/skuznetsov/depyo.js-sub000/pkg/ast"
	"github.com/skuznetsov/depyo.js-sub000/pkg/bytecode"
)

// A case clause compiles to a run of tests on a copy of the subject,
// with captures stored once every test passed. caseReader replays that
// run over symbolic values and rebuilds the pattern. Anything it does
// not recognise rejects the whole case, which then falls back to the
// ordinary handlers.

const maxCaseSteps = 4096

type pkind uint8

const (
	pAny pkind = iota
	pValue
	pSequence
	pMapping
	pClass
)

// pnode is one value a pattern examines.
type pnode struct {
	kind  pkind
	value ast.Expr
	name  string

	length  int  // from the length test; a minimum when atLeast
	atLeast bool
	count   int // elements once unpacked, -1 before
	star    int // starred element, -1 when none
	elems   map[int]*pnode

	cls   ast.Expr
	npos  int
	kwd   []string
	keys  []ast.Expr
	items map[int]*pnode // class attributes or mapping values
	rest  string

	copyOf *pnode
	copies []*pnode
	alt    bool
}

func newPnode(copyOf *pnode) *pnode {
	return &pnode{count: -1, star: -1, copyOf: copyOf}
}

func (n *pnode) refine(k pkind) bool {
	if n.kind == pAny {
		n.kind = k
	}
	return n.kind == k
}

func (n *pnode) setValue(v ast.Expr) bool {
	if !n.refine(pValue) || n.value != nil {
		return false
	}
	n.value = v
	return true
}

func (n *pnode) elem(i int) *pnode {
	if n.elems == nil {
		n.elems = make(map[int]*pnode)
	}
	if c, ok := n.elems[i]; ok {
		return c
	}
	c := newPnode(nil)
	n.elems[i] = c
	return c
}

func (n *pnode) item(i int) *pnode {
	if n.items == nil {
		n.items = make(map[int]*pnode)
	}
	if c, ok := n.items[i]; ok {
		return c
	}
	c := newPnode(nil)
	n.items[i] = c
	return c
}

// seqRoot skips copies that were only made to index or measure a sequence.
func seqRoot(n *pnode) *pnode {
	for n.kind == pAny && n.copyOf != nil && !n.alt {
		n = n.copyOf
	}
	return n
}

type ekind uint8

const (
	eNode   ekind = iota
	eExpr         // a loaded value or key tuple
	eTest         // result of a test, consumed by a jump
	eLen          // len() of node
	eIndex        // len(node) - index
	eValues       // attributes or values pulled out of node
	eRest         // the **rest dict of node
	eOpaque
)

type pentry struct {
	kind  ekind
	node  *pnode
	expr  ast.Expr
	index int
	peers []*pnode // the same capture in other alternatives
}

type caseFail struct {
	target int
	depth  int // symbolic entries left when the jump is taken
}

type copyRecord struct {
	node   *pnode
	depth  int
	offset int
}

type orState struct {
	node    *pnode
	success int
	start   int
	depth   int
	caps    [][]*pentry
}

type caseReader struct {
	p       *pass
	i       int
	st      []*pentry
	root    *pnode
	subj    *pentry
	fails   []caseFail
	copies  []copyRecord
	ors     []*orState
	regions [][2]int // or-pattern spans whose internal jumps are not case failures
	line    int
	mixed   bool
}

// caseRead is a recognised case clause.
type caseRead struct {
	pattern ast.Pattern
	resume  int // instruction index of the guard or the body
	fails   []caseFail
	keeps   bool // the subject survives a failed test for the next case
	guard   bool
	extra   int // values above the subject the reader consumed
}

func (r *caseRead) failEnd() int {
	end := 0
	for _, f := range r.fails {
		if end == 0 || f.target < end {
			end = f.target
		}
	}
	return end
}

// readCase reads the case clause starting at the current instruction.
// extra holds values already pushed above the subject, bottom first.
func (p *pass) readCase(extra []ast.Expr) *caseRead {
	r := &caseReader{p: p, i: p.pos, root: newPnode(nil), line: p.in.Line}
	r.subj = &pentry{kind: eNode, node: r.root}
	r.st = []*pentry{r.subj}
	for _, e := range extra {
		r.st = append(r.st, &pentry{kind: eExpr, expr: e})
	}
	for steps := 0; ; steps++ {
		if steps > 0 && r.done() {
			break
		}
		if r.i >= len(p.instrs) || steps > maxCaseSteps || !r.step() {
			return nil
		}
	}

	res := &caseRead{keeps: len(r.st) == 1, extra: len(extra)}
	if res.keeps {
		next := r.instr(r.i)
		switch {
		case next == nil:
			return nil
		case next.Op == bytecode.OpPopTop:
			r.i++
		case isSimpleStore(next.Op):
			// "as" bound to the subject itself in the last case.
			r.root.name = next.Name
			res.keeps = false
			r.i++
			res.guard = r.guardAhead()
		case r.guardAhead():
			// The subject is dropped after the guard.
			res.guard = true
		default:
			return nil
		}
	} else {
		res.guard = r.guardAhead()
	}

	base := 0
	if res.keeps {
		base = 1
	}
	for _, f := range r.fails {
		if r.internal(f.target) {
			continue
		}
		if f.depth < base {
			return nil
		}
		res.fails = append(res.fails, caseFail{target: f.target, depth: f.depth - base})
	}
	res.pattern = r.pattern(r.root)
	if r.mixed {
		return nil
	}
	res.resume = r.i
	return res
}

// done reports whether the pattern has consumed everything it pushed.
func (r *caseReader) done() bool {
	if len(r.ors) > 0 {
		return false
	}
	switch len(r.st) {
	case 0:
		return true
	case 1:
		return r.st[0] == r.subj && r.root.kind == pAny && r.root.name == ""
	}
	return false
}

// guardAhead reports whether a conditional jump follows on the case line.
func (r *caseReader) guardAhead() bool {
	for j := r.i; j < len(r.p.instrs); j++ {
		in := &r.p.instrs[j]
		if in.Line != r.line && in.Line != 0 {
			return false
		}
		if in.Op.IsConditionalJump() {
			return in.Target > in.Offset
		}
	}
	return false
}

func (r *caseReader) internal(target int) bool {
	for _, reg := range r.regions {
		if target > reg[0] && target < reg[1] {
			return true
		}
	}
	return false
}

func (r *caseReader) instr(i int) *bytecode.Instruction {
	if i < 0 || i >= len(r.p.instrs) {
		return nil
	}
	return &r.p.instrs[i]
}

func (r *caseReader) push(e *pentry) { r.st = append(r.st, e) }

func (r *caseReader) pop() *pentry {
	if len(r.st) == 0 {
		return nil
	}
	e := r.st[len(r.st)-1]
	r.st = r.st[:len(r.st)-1]
	return e
}

func (r *caseReader) peek(d int) *pentry {
	if d < 0 || d >= len(r.st) {
		return nil
	}
	return r.st[len(r.st)-1-d]
}

func (r *caseReader) expr(e ast.Expr) *pentry { return &pentry{kind: eExpr, expr: e} }

func (r *caseReader) fail(target int) {
	r.fails = append(r.fails, caseFail{target: target, depth: len(r.st)})
}

// step interprets one instruction. It reports false for anything a
// pattern does not compile to.
func (r *caseReader) step() bool {
	in := &r.p.instrs[r.i]
	r.i++
	return r.exec(in)
}

func (r *caseReader) exec(in *bytecode.Instruction) bool {
	switch in.Op {
	case bytecode.OpLoadFastLoadFast, bytecode.OpStoreFastLoadFast, bytecode.OpStoreFastStoreFast:
		first, second := splitPair(in)
		return r.exec(first) && r.exec(second)
	case bytecode.OpNop, bytecode.OpExtendedArg, bytecode.OpCache:
		return true
	case bytecode.OpToBool:
		e := r.peek(0)
		return e != nil && e.kind == eTest
	case bytecode.OpCopy, bytecode.OpDupTop:
		n := 1
		if in.Op == bytecode.OpCopy {
			n = in.Arg
		}
		e := r.peek(n - 1)
		if e == nil {
			return false
		}
		if e.kind == eNode {
			c := newPnode(e.node)
			e.node.copies = append(e.node.copies, c)
			r.copies = append(r.copies, copyRecord{node: c, depth: len(r.st), offset: in.Offset})
			e = &pentry{kind: eNode, node: c}
		}
		r.push(e)
		return true
	case bytecode.OpSwap:
		return r.swap(in.Arg)
	case bytecode.OpRotTwo:
		return r.rotate(2)
	case bytecode.OpRotThree:
		return r.rotate(3)
	case bytecode.OpRotFour:
		return r.rotate(4)
	case bytecode.OpRotN:
		return r.rotate(in.Arg)
	case bytecode.OpPopTop:
		return r.pop() != nil
	case bytecode.OpLoadConst:
		r.push(r.expr(&ast.Const{SpanVal: ast.At(in.Line), Value: *in.Const}))
		return true
	case bytecode.OpLoadName, bytecode.OpLoadGlobal, bytecode.OpLoadFast, bytecode.OpLoadDeref, bytecode.OpLoadClassDeref:
		if in.Op == bytecode.OpLoadGlobal && r.p.v.AtLeast(3, 11) && in.Arg&1 == 1 {
			return false
		}
		r.push(r.expr(&ast.Name{SpanVal: ast.At(in.Line), Id: in.Name}))
		return true
	case bytecode.OpLoadAttr:
		x := r.pop()
		if x == nil || x.kind != eExpr || (r.p.v.AtLeast(3, 12) && in.Arg&1 == 1) {
			return false
		}
		r.push(r.expr(&ast.Attribute{SpanVal: ast.At(in.Line), X: x.expr, Attr: in.Name}))
		return true
	case bytecode.OpBuildTuple:
		elts := make([]ast.Expr, in.Arg)
		for k := in.Arg - 1; k >= 0; k-- {
			e := r.pop()
			if e == nil || e.kind != eExpr {
				return false
			}
			elts[k] = e.expr
		}
		r.push(r.expr(&ast.Tuple{Elts: elts}))
		return true
	case bytecode.OpCompareOp:
		return r.compare(in.Operator)
	case bytecode.OpIsOp:
		y, x := r.pop(), r.pop()
		if in.Arg != 0 || x == nil || y == nil || x.kind != eNode || y.kind != eExpr || !x.node.setValue(y.expr) {
			return false
		}
		r.push(&pentry{kind: eTest})
		return true
	case bytecode.OpMatchSequence, bytecode.OpMatchMapping:
		e := r.peek(0)
		k := pSequence
		if in.Op == bytecode.OpMatchMapping {
			k = pMapping
		}
		if e == nil || e.kind != eNode || !e.node.refine(k) {
			return false
		}
		r.push(&pentry{kind: eTest})
		return true
	case bytecode.OpGetLen:
		e := r.peek(0)
		if e == nil || e.kind != eNode {
			return false
		}
		r.push(&pentry{kind: eLen, node: e.node})
		return true
	case bytecode.OpBinaryOp, bytecode.OpBinarySubtract:
		y, x := r.pop(), r.pop()
		k, ok := constInt(y)
		if !ok || x == nil || x.kind != eLen || (in.Op == bytecode.OpBinaryOp && in.Operator != "-") {
			return false
		}
		r.push(&pentry{kind: eIndex, node: x.node, index: -k})
		return true
	case bytecode.OpBinarySubscr:
		return r.subscript()
	case bytecode.OpMatchKeys:
		keys, m := r.peek(0), r.peek(1)
		if keys == nil || m == nil || keys.kind != eExpr || m.kind != eNode || !m.node.refine(pMapping) {
			return false
		}
		m.node.keys = keyExprs(keys.expr)
		r.push(&pentry{kind: eValues, node: m.node})
		if r.p.v.Before(3, 11) {
			r.push(&pentry{kind: eTest})
		}
		return true
	case bytecode.OpMatchClass:
		names, cls, x := r.pop(), r.pop(), r.pop()
		if names == nil || cls == nil || x == nil || names.kind != eExpr || cls.kind != eExpr || x.kind != eNode {
			return false
		}
		c, ok := names.expr.(*ast.Const)
		if !ok || !x.node.refine(pClass) {
			return false
		}
		x.node.cls, x.node.npos, x.node.kwd = cls.expr, in.Arg, constStrings(&c.Value)
		r.push(&pentry{kind: eValues, node: x.node})
		if r.p.v.Before(3, 11) {
			r.push(&pentry{kind: eTest})
		}
		return true
	case bytecode.OpUnpackSequence, bytecode.OpUnpackEx:
		return r.unpack(in)
	case bytecode.OpBuildMap:
		if in.Arg != 0 {
			return false
		}
		r.push(&pentry{kind: eRest})
		return true
	case bytecode.OpDictUpdate:
		v := r.pop()
		d := r.peek(in.Arg - 1)
		if v == nil || d == nil || v.kind != eNode || d.kind != eRest {
			return false
		}
		d.node = v.node
		return true
	case bytecode.OpCopyDictWithoutKeys:
		keys, m := r.pop(), r.peek(0)
		if keys == nil || m == nil || m.kind != eNode {
			return false
		}
		r.push(&pentry{kind: eRest, node: m.node})
		return true
	case bytecode.OpDeleteSubscr:
		return r.pop() != nil && r.pop() != nil
	case bytecode.OpStoreName, bytecode.OpStoreFast, bytecode.OpStoreGlobal, bytecode.OpStoreDeref:
		e := r.pop()
		switch {
		case e == nil:
			return false
		case e.kind == eNode:
			e.node.name = in.Name
			for _, n := range e.peers {
				n.name = in.Name
			}
		case e.kind == eRest && e.node != nil:
			e.node.rest = in.Name
		default:
			return false
		}
		return true
	case bytecode.OpJumpForward, bytecode.OpJumpAbsolute:
		return r.altEnd(in)
	}
	if !in.Op.IsConditionalJump() || in.Target <= in.Offset {
		return false
	}
	e := r.pop()
	if e == nil {
		return false
	}
	if none, ok := jumpsOnNone(in.Op); ok {
		switch {
		case none && e.kind == eValues:
		case !none && e.kind == eNode:
			if !e.node.setValue(&ast.Const{SpanVal: ast.At(in.Line), Value: bytecode.None()}) {
				return false
			}
		default:
			return false
		}
		r.fail(in.Target)
		return true
	}
	if jumpsOnTrue(in.Op) || e.kind != eTest {
		return false
	}
	r.fail(in.Target)
	return true
}

func (r *caseReader) compare(op string) bool {
	y, x := r.pop(), r.pop()
	if x == nil || y == nil || y.kind != eExpr {
		return false
	}
	switch x.kind {
	case eNode:
		if op != "==" || !x.node.setValue(y.expr) {
			return false
		}
	case eLen:
		n, ok := constInt(y)
		if !ok || (op != "==" && op != ">=") {
			return false
		}
		s := seqRoot(x.node)
		if s.kind == pSequence {
			s.length, s.atLeast = n, op == ">="
		}
	default:
		return false
	}
	r.push(&pentry{kind: eTest})
	return true
}

func (r *caseReader) subscript() bool {
	idx, x := r.pop(), r.pop()
	if idx == nil || x == nil {
		return false
	}
	i := 0
	switch idx.kind {
	case eIndex:
		i = idx.index
	case eExpr:
		k, ok := constInt(idx)
		if !ok {
			return false
		}
		i = k
	default:
		return false
	}
	switch x.kind {
	case eNode:
		s := seqRoot(x.node)
		if s.kind != pSequence {
			return false
		}
		r.push(&pentry{kind: eNode, node: s.elem(i)})
	case eValues:
		if i < 0 {
			return false
		}
		r.push(&pentry{kind: eNode, node: x.node.item(i)})
	default:
		return false
	}
	return true
}

func (r *caseReader) unpack(in *bytecode.Instruction) bool {
	e := r.pop()
	if e == nil {
		return false
	}
	n, star := in.Arg, -1
	if in.Op == bytecode.OpUnpackEx {
		before, after := in.Arg&0xff, in.Arg>>8
		n, star = before+after+1, before
	}
	children := make([]*pnode, n)
	switch e.kind {
	case eNode:
		s := seqRoot(e.node)
		if s.kind != pSequence {
			return false
		}
		s.count, s.star = n, star
		for k := range children {
			children[k] = s.elem(k)
		}
	case eValues:
		if star >= 0 {
			return false
		}
		for k := range children {
			children[k] = e.node.item(k)
		}
	case eExpr, eOpaque:
		for k := n - 1; k >= 0; k-- {
			r.push(&pentry{kind: eOpaque})
		}
		return true
	default:
		return false
	}
	for k := n - 1; k >= 0; k-- {
		r.push(&pentry{kind: eNode, node: children[k]})
	}
	return true
}

func (r *caseReader) swap(n int) bool {
	if n < 2 || n > len(r.st) {
		return false
	}
	top := len(r.st) - 1
	r.st[top], r.st[top-n+1] = r.st[top-n+1], r.st[top]
	return true
}

// rotate moves the top entry down n-1 places.
func (r *caseReader) rotate(n int) bool {
	if n < 2 || n > len(r.st) {
		return false
	}
	top := len(r.st) - 1
	v := r.st[top]
	copy(r.st[top-n+2:], r.st[top-n+1:top])
	r.st[top-n+1] = v
	return true
}

// altEnd handles the jump that ends one alternative of an or-pattern.
// The copy that began the alternative sits right above its subject;
// anything left above that copy's slot are captures.
func (r *caseReader) altEnd(in *bytecode.Instruction) bool {
	if in.Target <= in.Offset {
		return false
	}
	var rec *copyRecord
	for k := len(r.copies) - 1; k >= 0; k-- {
		c := &r.copies[k]
		if c.depth > len(r.st) || c.depth == 0 {
			continue
		}
		below := r.st[c.depth-1]
		if below.kind != eNode || below.node != c.node.copyOf {
			continue
		}
		ok := true
		for _, e := range r.st[c.depth:] {
			ok = ok && e.kind == eNode
		}
		if ok {
			rec = c
			break
		}
	}
	if rec == nil {
		return false
	}
	var or *orState
	if k := len(r.ors); k > 0 && r.ors[k-1].success == in.Target {
		or = r.ors[k-1]
		if or.node != rec.node.copyOf || or.depth != rec.depth {
			return false
		}
	} else {
		or = &orState{node: rec.node.copyOf, success: in.Target, start: rec.offset, depth: rec.depth}
		r.ors = append(r.ors, or)
	}
	rec.node.alt = true
	caps := append([]*pentry(nil), r.st[rec.depth:]...)
	if len(or.caps) > 0 && len(caps) != len(or.caps[0]) {
		return false
	}
	or.caps = append(or.caps, caps)
	r.st = r.st[:rec.depth]

	pops := 0
	for next := r.instr(r.i); next != nil && next.Op == bytecode.OpPopTop; next = r.instr(r.i) {
		r.i++
		pops++
	}
	next := r.instr(r.i)
	switch {
	case next == nil:
		return false
	case next.Op == bytecode.OpDupTop || (next.Op == bytecode.OpCopy && next.Arg == 1):
		return true
	case pops > 0 && (next.Op == bytecode.OpJumpForward || next.Op == bytecode.OpJumpAbsolute) && next.Target > next.Offset:
	default:
		return false
	}
	// Every alternative failed: the subject copy is gone.
	r.fails = append(r.fails, caseFail{target: next.Target, depth: len(r.st) - 1})
	r.regions = append(r.regions, [2]int{or.start, or.success})
	r.ors = r.ors[:len(r.ors)-1]
	si, ok := r.p.index[or.success]
	if !ok {
		return false
	}
	r.i = si
	for k, e := range or.caps[0] {
		merged := &pentry{kind: eNode, node: e.node}
		for _, alt := range or.caps[1:] {
			merged.peers = append(merged.peers, alt[k].node)
		}
		r.push(merged)
	}
	return true
}

func constInt(e *pentry) (int, bool) {
	if e == nil || e.kind != eExpr {
		return 0, false
	}
	c, ok := e.expr.(*ast.Const)
	if !ok || c.Value.Kind != bytecode.ConstInt {
		return 0, false
	}
	return int(c.Value.Int), true
}

func keyExprs(e ast.Expr) []ast.Expr {
	switch k := e.(type) {
	case *ast.Const:
		out := make([]ast.Expr, len(k.Value.Items))
		for i, it := range k.Value.Items {
			out[i] = &ast.Const{SpanVal: k.SpanVal, Value: it}
		}
		return out
	case *ast.Tuple:
		return k.Elts
	}
	return nil
}

// pattern builds the pattern for n and the copies taken of it.
func (r *caseReader) pattern(n *pnode) ast.Pattern {
	var parts, alts []ast.Pattern
	if base := r.base(n); base != nil {
		parts = append(parts, base)
	}
	for _, c := range n.copies {
		sub := r.pattern(c)
		switch {
		case c.alt:
			if or, ok := sub.(*ast.MatchOr); ok {
				alts = append(alts, or.Patterns...)
			} else {
				alts = append(alts, sub)
			}
		case !isWildcard(sub):
			parts = append(parts, sub)
		}
	}
	if len(alts) > 0 {
		parts = append(parts, &ast.MatchOr{Patterns: alts})
	}
	var pat ast.Pattern
	switch len(parts) {
	case 0:
	case 1:
		pat = parts[0]
	default:
		r.mixed = true
		pat = parts[0]
	}
	if n.name != "" {
		return &ast.MatchAs{Pattern: pat, Name: n.name}
	}
	if pat == nil {
		return &ast.MatchAs{}
	}
	return pat
}

func isWildcard(p ast.Pattern) bool {
	as, ok := p.(*ast.MatchAs)
	return ok && as.Pattern == nil && as.Name == ""
}

func (r *caseReader) base(n *pnode) ast.Pattern {
	switch n.kind {
	case pValue:
		return &ast.MatchValue{Value: n.value}
	case pSequence:
		return r.sequence(n)
	case pMapping:
		m := &ast.MatchMapping{Keys: n.keys, Rest: n.rest}
		for i := range n.keys {
			m.Patterns = append(m.Patterns, r.child(n.items, i))
		}
		return m
	case pClass:
		c := &ast.MatchClass{Cls: n.cls, KwdAttrs: n.kwd}
		for i := 0; i < n.npos; i++ {
			c.Patterns = append(c.Patterns, r.child(n.items, i))
		}
		for i := range n.kwd {
			c.KwdPatterns = append(c.KwdPatterns, r.child(n.items, n.npos+i))
		}
		return c
	}
	return nil
}

func (r *caseReader) child(m map[int]*pnode, i int) ast.Pattern {
	if c, ok := m[i]; ok {
		return r.pattern(c)
	}
	return &ast.MatchAs{}
}

func (r *caseReader) sequence(n *pnode) *ast.MatchSequence {
	count, star := n.count, n.star
	if count < 0 {
		count = n.length
		if n.atLeast {
			after := 0
			for i := range n.elems {
				if -i > after {
					after = -i
				}
			}
			before := n.length - after
			if before < 0 {
				before = 0
			}
			count, star = before+1+after, before
		}
	}
	seq := &ast.MatchSequence{}
	for k := 0; k < count; k++ {
		c, ok := n.elems[k]
		if !ok {
			c, ok = n.elems[k-count]
		}
		if k == star {
			name := ""
			if ok {
				name = c.name
			}
			seq.Patterns = append(seq.Patterns, &ast.MatchStar{Name: name})
			continue
		}
		if !ok {
			seq.Patterns = append(seq.Patterns, &ast.MatchAs{})
			continue
		}
		seq.Patterns = append(seq.Patterns, r.pattern(c))
	}
	return seq
}
