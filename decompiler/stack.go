package decompiler

import "github.com/skuznetsov/depyo.js-sub000/pkg/ast"

// Stack is the symbolic operand stack. A nil entry is the NULL sentinel
// newer revisions push ahead of a call.
type Stack struct {
	items []ast.Expr
}

// Len returns the current depth.
func (s *Stack) Len() int { return len(s.items) }

// Push pushes an expression or the NULL sentinel.
func (s *Stack) Push(e ast.Expr) { s.items = append(s.items, e) }

// Pop removes and returns the top entry.
func (s *Stack) Pop() (ast.Expr, bool) {
	if len(s.items) == 0 {
		return nil, false
	}
	e := s.items[len(s.items)-1]
	s.items = s.items[:len(s.items)-1]
	return e, true
}

// Top returns the top entry without removing it.
func (s *Stack) Top() (ast.Expr, bool) { return s.Peek(0) }

// Peek returns the entry depth positions below the top.
func (s *Stack) Peek(depth int) (ast.Expr, bool) {
	i := len(s.items) - 1 - depth
	if i < 0 || depth < 0 {
		return nil, false
	}
	return s.items[i], true
}

// Set replaces the entry depth positions below the top.
func (s *Stack) Set(depth int, e ast.Expr) bool {
	i := len(s.items) - 1 - depth
	if i < 0 || depth < 0 {
		return false
	}
	s.items[i] = e
	return true
}

// IsTop reports whether e is the very node on top of the stack. Chain
// stores use it to recognise a value duplicated for another target.
func (s *Stack) IsTop(e ast.Expr) bool {
	top, ok := s.Top()
	return ok && top != nil && top == e
}

// Snapshot copies the stack contents.
func (s *Stack) Snapshot() []ast.Expr {
	return append([]ast.Expr(nil), s.items...)
}

// Restore replaces the stack contents with a snapshot.
func (s *Stack) Restore(items []ast.Expr) {
	s.items = append(s.items[:0], items...)
}
