package decompiler

import (
	"testing"

	"github.com/skuznetsov/depyo.js-sub000/pkg/ast"
	"github.com/skuznetsov/depyo.js-sub000/pkg/bytecode"
)

func name(id string) *ast.Name { return &ast.Name{Id: id} }

func cmp(left ast.Expr, op string, right ast.Expr) *ast.Compare {
	return &ast.Compare{Left: left, Ops: []string{op}, Comparators: []ast.Expr{right}}
}

func TestComprehensionKind(t *testing.T) {
	tests := []struct {
		name string
		kind ast.CompKind
		ok   bool
	}{
		{"<listcomp>", ast.ListComp, true},
		{"<setcomp>", ast.SetComp, true},
		{"<dictcomp>", ast.DictComp, true},
		{"<genexpr>", ast.GeneratorExp, true},
		{"<lambda>", 0, false},
		{"listcomp", 0, false},
		{"f", 0, false},
	}
	for _, tt := range tests {
		kind, ok := comprehensionKind(tt.name)
		if ok != tt.ok || (ok && kind != tt.kind) {
			t.Errorf("comprehensionKind(%q) = %v, %t; want %v, %t", tt.name, kind, ok, tt.kind, tt.ok)
		}
	}
}

func TestNegate(t *testing.T) {
	tests := []struct {
		in   ast.Expr
		want string
	}{
		{name("x"), "not x"},
		{&ast.Unary{Op: "not", X: name("x")}, "x"},
		{cmp(name("a"), "is", name("b")), "a is not b"},
		{cmp(name("a"), "not in", name("b")), "a in b"},
		{cmp(name("a"), "<", name("b")), "not a < b"},
		{&ast.Binary{Op: "and", X: name("a"), Y: name("b")}, "not a or not b"},
	}
	for _, tt := range tests {
		if got := ast.ExprString(negate(tt.in)); got != tt.want {
			t.Errorf("negate(%s) = %q, want %q", ast.ExprString(tt.in), got, tt.want)
		}
	}
}

func TestMergeChain(t *testing.T) {
	b := name("b")
	left := cmp(name("a"), "<", b)

	c := mergeChain(left, cmp(b, "<", name("c")))
	if c == nil {
		t.Fatal("duplicated middle operand not merged")
	}
	if got := ast.ExprString(c); got != "a < b < c" {
		t.Errorf("merged = %q", got)
	}

	// An equal but distinct operand was not duplicated by the compiler.
	if mergeChain(left, cmp(name("b"), "<", name("c"))) != nil {
		t.Error("merged comparisons that share no operand")
	}
	if got := ast.ExprString(joinLogical("and", left, cmp(name("x"), "<", name("y")))); got != "a < b and x < y" {
		t.Errorf("joinLogical = %q", got)
	}
}

func TestLoopGenerators(t *testing.T) {
	leaf := name("x")
	f := &ast.For{
		Target: name("x"),
		Iter:   name("xs"),
		Body: []ast.Stmt{&ast.If{
			Test: name("x"),
			Body: []ast.Stmt{&ast.ExprStmt{X: leaf}},
		}},
	}
	gens, elt := loopGenerators(f)
	if elt != leaf {
		t.Fatalf("leaf = %v", elt)
	}
	if len(gens) != 1 || len(gens[0].Ifs) != 1 {
		t.Fatalf("generators = %+v", gens)
	}

	f.OrElse = []ast.Stmt{&ast.Pass{}}
	if _, elt := loopGenerators(f); elt != nil {
		t.Error("a loop with an else clause is not a comprehension")
	}
}

func TestSameExpr(t *testing.T) {
	attr := func(x ast.Expr, a string) *ast.Attribute { return &ast.Attribute{X: x, Attr: a} }
	tests := []struct {
		a, b ast.Expr
		want bool
	}{
		{name("x"), name("x"), true},
		{name("x"), name("y"), false},
		{attr(name("o"), "a"), attr(name("o"), "a"), true},
		{attr(name("o"), "a"), attr(name("p"), "a"), false},
		{&ast.Const{Value: bytecode.Int(1)}, &ast.Const{Value: bytecode.Int(1)}, true},
		{&ast.Const{Value: bytecode.Int(1)}, name("x"), false},
	}
	for _, tt := range tests {
		if got := sameExpr(tt.a, tt.b); got != tt.want {
			t.Errorf("sameExpr(%s, %s) = %t, want %t", ast.ExprString(tt.a), ast.ExprString(tt.b), got, tt.want)
		}
	}
}

func TestFindLoopHeads(t *testing.T) {
	instrs := []bytecode.Instruction{
		{Offset: 0, Op: bytecode.OpLoadName, Size: 2, Target: -1},
		{Offset: 2, Op: bytecode.OpPopJumpIfFalse, Size: 2, Target: 12},
		{Offset: 4, Op: bytecode.OpForIter, Size: 2, Target: 10},
		{Offset: 6, Op: bytecode.OpStoreName, Size: 2, Target: -1},
		{Offset: 8, Op: bytecode.OpJumpAbsolute, Size: 2, Target: 4},
		{Offset: 10, Op: bytecode.OpJumpAbsolute, Size: 2, Target: 0},
		{Offset: 12, Op: bytecode.OpReturnValue, Size: 2, Target: -1},
	}
	index := make(map[int]int)
	for i, in := range instrs {
		index[in.Offset] = i
	}
	heads := findLoopHeads(instrs, index)
	if len(heads) != 1 || heads[0] != 12 {
		t.Errorf("heads = %v, want map[0:12]", heads)
	}
}

func TestIsSimpleStore(t *testing.T) {
	for _, op := range []bytecode.Op{bytecode.OpStoreName, bytecode.OpStoreFast, bytecode.OpStoreGlobal, bytecode.OpStoreDeref} {
		if !isSimpleStore(op) {
			t.Errorf("%s should be a simple store", op)
		}
	}
	if isSimpleStore(bytecode.OpStoreAttr) || isSimpleStore(bytecode.OpStoreSubscr) {
		t.Error("attribute and subscript stores are not simple")
	}
}

func TestStack(t *testing.T) {
	var s Stack
	if _, ok := s.Pop(); ok {
		t.Fatal("pop on empty stack succeeded")
	}
	a, b := name("a"), name("b")
	s.Push(a)
	s.Push(nil)
	s.Push(b)
	if s.Len() != 3 || !s.IsTop(b) || s.IsTop(a) {
		t.Fatalf("stack = %v", s.items)
	}
	if e, ok := s.Peek(1); !ok || e != nil {
		t.Errorf("Peek(1) = %v, %t; want the NULL sentinel", e, ok)
	}
	if _, ok := s.Peek(3); ok {
		t.Error("Peek past the bottom succeeded")
	}

	snap := s.Snapshot()
	s.Set(0, a)
	if top, _ := s.Top(); top != a {
		t.Errorf("Set did not replace the top")
	}
	s.Restore(snap)
	if !s.IsTop(b) {
		t.Error("Restore did not bring back the snapshot")
	}
	if e, _ := s.Pop(); e != b || s.Len() != 2 {
		t.Errorf("Pop = %v, depth %d", e, s.Len())
	}
}
