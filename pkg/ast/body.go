package ast

import "github.com/skuznetsov/depyo.js-sub000/pkg/bytecode"

// IsNoneConst reports whether e is the literal None.
func IsNoneConst(e Expr) bool {
	c, ok := e.(*Const)
	return ok && c.Value.IsNone()
}

// IsStringConst reports whether e is a string literal.
func IsStringConst(e Expr) bool {
	c, ok := e.(*Const)
	return ok && c.Value.Kind == bytecode.ConstString
}

// TrimTrailingReturn drops the implicit "return None" the compiler appends
// to every function and module body. Only the final statement is examined.
func TrimTrailingReturn(body []Stmt) []Stmt {
	if len(body) == 0 {
		return body
	}
	if r, ok := body[len(body)-1].(*Return); ok && (r.Value == nil || IsNoneConst(r.Value)) {
		return body[:len(body)-1]
	}
	return body
}

// Docstring returns the leading string literal of a body, if any.
func Docstring(body []Stmt) (string, bool) {
	if len(body) == 0 {
		return "", false
	}
	es, ok := body[0].(*ExprStmt)
	if !ok || !IsStringConst(es.X) {
		return "", false
	}
	return es.X.(*Const).Value.Str, true
}

// Walk calls fn for every statement in body, descending into compound
// statements. Nested function and class bodies are included.
func Walk(body []Stmt, fn func(Stmt)) {
	for _, st := range body {
		fn(st)
		switch s := st.(type) {
		case *If:
			Walk(s.Body, fn)
			Walk(s.OrElse, fn)
		case *While:
			Walk(s.Body, fn)
			Walk(s.OrElse, fn)
		case *For:
			Walk(s.Body, fn)
			Walk(s.OrElse, fn)
		case *Try:
			Walk(s.Body, fn)
			for _, h := range s.Handlers {
				Walk(h.Body, fn)
			}
			Walk(s.OrElse, fn)
			Walk(s.FinalBody, fn)
		case *With:
			Walk(s.Body, fn)
		case *FunctionDef:
			Walk(s.Func.Body, fn)
		case *ClassDef:
			Walk(s.Class.Body, fn)
		case *Match:
			for _, c := range s.Cases {
				Walk(c.Body, fn)
			}
		}
	}
}
