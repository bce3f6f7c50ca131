package decompiler

import (
	"github.com/skuznetsov/depyo.js-sub000/pkg/ast"
	"github.com/skuznetsov/depyo.js-sub000/pkg/bytecode"
)

// markCase stands for an irrefutable last case until the match
// statement is rebuilt.
const markCase = "case"

// matchCase is what a case clause left behind: an If block or, for an
// irrefutable last case, a marker statement.
type matchCase struct {
	subject ast.Expr
	pattern ast.Pattern
	guard   ast.Expr
}

func registerMatch(r *Registry) {
	r.add(func(p *pass, in *bytecode.Instruction) {
		p.push(&ast.Call{SpanVal: p.span(), Func: &ast.Name{Id: "len"}, Args: []ast.Expr{p.peek(0)}})
	}, bytecode.OpGetLen)
	r.add(opMatchStructural,
		bytecode.OpMatchMapping, bytecode.OpMatchSequence, bytecode.OpMatchKeys,
		bytecode.OpMatchClass, bytecode.OpCopyDictWithoutKeys)
}

// opMatchStructural keeps the stack balanced for a structural test the
// case reader could not place. The code object is reported incomplete.
func opMatchStructural(p *pass, in *bytecode.Instruction) {
	pops, pushes := 0, 1
	switch in.Op {
	case bytecode.OpMatchKeys:
		if p.v.Before(3, 11) {
			pushes = 2
		}
	case bytecode.OpMatchClass:
		pops, pushes = 3, 1
		if p.v.Before(3, 11) {
			pushes = 2
		}
	case bytecode.OpCopyDictWithoutKeys:
		pops = 1
	}
	p.popN(pops)
	for i := 0; i < pushes; i++ {
		p.push(&ast.Marker{SpanVal: p.span(), Label: "?"})
	}
	p.unclean("structural pattern %s at %d", in.Op, in.Offset)
}

// tryCase reads a case clause at the current instruction. The first
// case of a match starts with a copy of the subject, or with a
// structural test when it is the only one; later cases start wherever
// the kept subject is back on top.
func (p *pass) tryCase() bool {
	if p.v.Before(3, 10) || p.stack.Len() == 0 {
		return false
	}
	in := p.in
	extra := 0
	top, _ := p.stack.Top()
	switch {
	case p.subject != nil:
		if top != p.subject {
			return false
		}
	case in.Op == bytecode.OpDupTop || (in.Op == bytecode.OpCopy && in.Arg == 1),
		in.Op == bytecode.OpMatchSequence, in.Op == bytecode.OpMatchMapping:
	case in.Op == bytecode.OpMatchClass && p.stack.Len() >= 3:
		extra = 2
	default:
		return false
	}
	subject := p.peek(extra)
	if subject == nil {
		return false
	}
	if _, ok := subject.(*ast.Marker); ok {
		return false
	}
	var above []ast.Expr
	for d := extra - 1; d >= 0; d-- {
		above = append(above, p.peek(d))
	}
	r := p.readCase(above)
	if r == nil {
		return false
	}
	if len(r.fails) == 0 && (p.subject == nil || (r.keeps && !r.guard)) {
		// Nothing refutable: a chained assignment or a walrus, not a case.
		return false
	}
	p.openCase(subject, r)
	return true
}

func (p *pass) openCase(subject ast.Expr, r *caseRead) {
	p.popN(r.extra)
	if !r.keeps {
		p.pop()
		p.dropSubject(subject)
	}
	resume := p.offsetAt(r.resume)
	if len(r.fails) == 0 && !r.guard {
		st := &ast.ExprStmt{SpanVal: p.span(), X: &ast.Marker{SpanVal: p.span(), Label: markCase}}
		p.cases[st] = &matchCase{subject: subject, pattern: r.pattern}
		p.emit(st)
		p.subject = nil
		p.skipTo = resume
		return
	}
	b := p.open(BlockIf, r.failEnd())
	b.Start = resume
	b.Target = subject
	b.pattern = r.pattern
	b.fails = r.fails
	b.keeps = r.keeps
	b.guard = r.guard
	if r.keeps {
		p.pop()
		p.subject = subject
	} else {
		p.subject = nil
	}
	b.bodyDepth = p.stack.Len()
	if !r.guard {
		if next, ok := p.nextCase(r.fails); ok {
			p.caseSkips(b, next)
		}
	}
	p.skipTo = resume
}

// dropSubject removes a consumed subject from the else branches of the
// earlier cases, which opened while it was still on the stack.
func (p *pass) dropSubject(subject ast.Expr) {
	for i := len(p.blocks.blocks) - 1; i > 0; i-- {
		b := p.blocks.blocks[i]
		if b.Kind != BlockElse {
			return
		}
		if n := len(b.stack); n > 0 && b.stack[n-1] == subject {
			b.stack = b.stack[:n-1]
		}
	}
}

// nextCase finds where the following case starts: past the POP_TOPs
// that the failure jumps land on.
func (p *pass) nextCase(fails []caseFail) (int, bool) {
	var last caseFail
	for _, f := range fails {
		if f.target > last.target {
			last = f
		}
	}
	i, ok := p.index[last.target]
	if !ok {
		return 0, false
	}
	for k := 0; k < last.depth; k++ {
		if i+k >= len(p.instrs) || p.instrs[i+k].Op != bytecode.OpPopTop {
			return 0, false
		}
	}
	return p.offsetAt(i + last.depth), true
}

func (p *pass) caseSkips(b *Block, next int) {
	for _, f := range b.fails {
		if f.target < next {
			p.skips[f.target] = next
		}
	}
}

// caseGuard files a conditional jump that tests the guard of the case
// block on top. Jumps of an "and" chain in the guard all fail the case.
func (p *pass) caseGuard(in *bytecode.Instruction, cond ast.Expr) bool {
	b := p.blocks.Top()
	if !b.guard || b.Target == nil || len(b.Nodes) != 0 || in.Target <= in.Offset || p.stack.Len() != b.bodyDepth {
		return false
	}
	test := fallthroughTest(in.Op, cond)
	if b.Cond == nil {
		b.Cond = test
	} else {
		b.Cond = joinLogical("and", b.Cond, test)
	}
	if b.End == 0 || in.Target < b.End {
		b.End = in.Target
	}
	p.caseSkips(b, in.Target)
	if next := p.at(1); b.keeps && next != nil && next.Op == bytecode.OpPopTop {
		b.guard = false
		p.skipCount(2)
	}
	return true
}

// recoverMatches turns case blocks back into match statements.
func (p *pass) recoverMatches(body []ast.Stmt) []ast.Stmt {
	if len(p.cases) == 0 {
		return body
	}
	return p.matchList(body)
}

func (p *pass) matchList(list []ast.Stmt) []ast.Stmt {
	out := make([]ast.Stmt, 0, len(list))
	for i := 0; i < len(list); i++ {
		st := list[i]
		c, ok := p.cases[st]
		if !ok {
			p.matchNested(st)
			out = append(out, st)
			continue
		}
		m := &ast.Match{SpanVal: st.Span(), Subject: c.subject}
		i += p.collectCases(m, list[i:]) - 1
		for _, mc := range m.Cases {
			mc.Body = p.matchList(mc.Body)
		}
		out = append(out, m)
	}
	return out
}

func (p *pass) matchNested(st ast.Stmt) {
	switch s := st.(type) {
	case *ast.If:
		s.Body = p.matchList(s.Body)
		s.OrElse = p.matchList(s.OrElse)
	case *ast.While:
		s.Body = p.matchList(s.Body)
		s.OrElse = p.matchList(s.OrElse)
	case *ast.For:
		s.Body = p.matchList(s.Body)
		s.OrElse = p.matchList(s.OrElse)
	case *ast.Try:
		s.Body = p.matchList(s.Body)
		for _, h := range s.Handlers {
			h.Body = p.matchList(h.Body)
		}
		s.OrElse = p.matchList(s.OrElse)
		s.FinalBody = p.matchList(s.FinalBody)
	case *ast.With:
		s.Body = p.matchList(s.Body)
	}
}

// collectCases appends the cases that list starts with and reports how
// many statements they took. A case whose body left the function is
// followed by its sibling rather than nested in an else branch.
func (p *pass) collectCases(m *ast.Match, list []ast.Stmt) int {
	i := 0
	for i < len(list) {
		st := list[i]
		c, ok := p.cases[st]
		if !ok || c.subject != m.Subject {
			break
		}
		i++
		switch s := st.(type) {
		case *ast.ExprStmt:
			m.Cases = append(m.Cases, &ast.MatchCase{SpanVal: s.SpanVal, Pattern: c.pattern, Body: list[i:]})
			return len(list)
		case *ast.If:
			if p.chainCases(m, s) {
				return i
			}
		}
	}
	return i
}

// chainCases appends s and the cases nested in its else branch. It
// reports whether the chain ended the match.
func (p *pass) chainCases(m *ast.Match, s *ast.If) bool {
	for {
		c := p.cases[s]
		m.Cases = append(m.Cases, &ast.MatchCase{SpanVal: s.SpanVal, Pattern: c.pattern, Guard: c.guard, Body: s.Body})
		if len(s.OrElse) == 0 {
			return false
		}
		if next, ok := s.OrElse[0].(*ast.If); ok && len(s.OrElse) == 1 {
			if nc, ok := p.cases[next]; ok && nc.subject == m.Subject {
				s = next
				continue
			}
		}
		rest := s.OrElse
		if n := p.collectCases(m, rest); n < len(rest) {
			m.Cases = append(m.Cases, &ast.MatchCase{Pattern: &ast.MatchAs{}, Body: rest[n:]})
		}
		return true
	}
}
