package ast

import (
	"strings"
	"testing"

	"github.com/skuznetsov/depyo.js-sub000/pkg/bytecode"
)

func assign(line int, target string, value Expr) *Assign {
	return &Assign{SpanVal: At(line), Targets: []Expr{name(target)}, Value: value}
}

func lines(s ...string) string { return strings.Join(s, "\n") }

func TestRenderStatements(t *testing.T) {
	tests := []struct {
		name string
		st   Stmt
		want string
	}{
		{
			"elif chain",
			&If{Test: name("a"), Body: []Stmt{assign(0, "x", num(1))}, OrElse: []Stmt{
				&If{Test: name("b"), Body: []Stmt{assign(0, "x", num(2))}, OrElse: []Stmt{assign(0, "x", num(3))}},
			}},
			lines("if a:", "    x = 1", "elif b:", "    x = 2", "else:", "    x = 3"),
		},
		{
			"nested if stays nested",
			&If{Test: name("a"), Body: []Stmt{&Pass{}}, OrElse: []Stmt{
				&If{Test: name("b"), Body: []Stmt{&Pass{}}}, assign(0, "y", num(0)),
			}},
			lines("if a:", "    pass", "else:", "    if b:", "        pass", "    y = 0"),
		},
		{
			"empty body",
			&While{Test: &Const{Value: bytecode.Bool(true)}},
			lines("while True:", "    pass"),
		},
		{
			"for else",
			&For{Target: &Tuple{Elts: []Expr{name("k"), name("v")}}, Iter: &Call{Func: &Attribute{X: name("d"), Attr: "items"}},
				Body: []Stmt{&Break{}}, OrElse: []Stmt{&Continue{}}},
			lines("for k, v in d.items():", "    break", "else:", "    continue"),
		},
		{
			"chain store",
			&Assign{Targets: []Expr{name("a"), name("b")}, Value: num(0)},
			"a = b = 0",
		},
		{
			"swap",
			&Assign{Targets: []Expr{&Tuple{Elts: []Expr{name("a"), name("b")}}}, Value: &Tuple{Elts: []Expr{name("b"), name("a")}}},
			"a, b = (b, a)",
		},
		{
			"augmented",
			&AugAssign{Target: &Subscript{X: name("x"), Index: num(0)}, Op: "+", Value: num(1)},
			"x[0] += 1",
		},
		{
			"function",
			&FunctionDef{Name: "f", Func: &Function{
				Decorators: []Expr{name("dec")},
				Args:       &Arguments{Args: []Arg{{Name: "x"}}},
				Returns:    name("int"),
				Body:       []Stmt{&Return{Value: name("x")}},
			}},
			lines("@dec", "def f(x) -> int:", "    return x"),
		},
		{
			"async function",
			&FunctionDef{Name: "g", Func: &Function{IsAsync: true}},
			lines("async def g():", "    pass"),
		},
		{
			"class",
			&ClassDef{Class: &Class{Name: "C", Bases: []Expr{name("Base")}, Keywords: []Keyword{{Name: "metaclass", Value: name("M")}}}},
			lines("class C(Base, metaclass=M):", "    pass"),
		},
		{
			"try",
			&Try{
				Body:      []Stmt{&Pass{}},
				Handlers:  []*ExceptHandler{{Type: name("ValueError"), Name: "e", Body: []Stmt{&Raise{}}}, {Body: []Stmt{&Pass{}}}},
				OrElse:    []Stmt{&Pass{}},
				FinalBody: []Stmt{&Pass{}},
			},
			lines("try:", "    pass", "except ValueError as e:", "    raise", "except:", "    pass", "else:", "    pass", "finally:", "    pass"),
		},
		{
			"with",
			&With{Items: []WithItem{{Context: &Call{Func: name("open"), Args: []Expr{str("f")}}, Vars: name("fh")}, {Context: name("lock")}}},
			lines("with open('f') as fh, lock:", "    pass"),
		},
		{
			"docstring",
			&ExprStmt{X: str("Doc.")},
			`"""Doc."""`,
		},
		{
			"docstring fallback",
			&ExprStmt{X: str(`ends "`)},
			`'ends "'`,
		},
		{
			"import",
			&ImportStmt{Names: []Alias{{Name: "os.path"}, {Name: "numpy", AsName: "np"}}},
			"import os.path, numpy as np",
		},
		{
			"relative import",
			&ImportFromStmt{Level: 2, Names: []Alias{{Name: "x"}}},
			"from .. import x",
		},
		{
			"raise from",
			&Raise{Exc: &Call{Func: name("E")}, Cause: name("err")},
			"raise E() from err",
		},
		{
			"assert",
			&Assert{Test: name("ok"), Msg: str("bad")},
			"assert ok, 'bad'",
		},
		{
			"print",
			&Print{Dest: name("f"), Values: []Expr{name("a"), name("b")}},
			"print >>f, a, b,",
		},
		{
			"exec",
			&Exec{Body: str("code"), Globals: name("g")},
			"exec 'code' in g",
		},
		{
			"global",
			&Global{Names: []string{"a", "b"}},
			"global a, b",
		},
		{
			"walrus test",
			&If{Test: &NamedExpr{Target: name("n"), Value: &Call{Func: name("f")}}, Body: []Stmt{&Pass{}}},
			lines("if (n := f()):", "    pass"),
		},
		{
			"match",
			&Match{Subject: name("x"), Cases: []*MatchCase{
				{Pattern: &MatchValue{Value: num(1)}, Body: []Stmt{&Pass{}}},
				{Pattern: &MatchAs{Name: "y"}, Guard: name("y"), Body: []Stmt{&Pass{}}},
				{Pattern: &MatchAs{}, Body: []Stmt{&Pass{}}},
			}},
			lines("match x:", "    case 1:", "        pass", "    case y if y:", "        pass", "    case _:", "        pass"),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Render(tt.st); got != tt.want {
				t.Errorf("got:\n%s\nwant:\n%s", got, tt.want)
			}
		})
	}
}

func TestRenderSpacing(t *testing.T) {
	mod := &Module{Body: []Stmt{
		assign(1, "a", num(1)),
		assign(2, "b", num(2)),
		assign(2, "c", num(3)),
		assign(4, "d", num(4)),
		assign(20, "e", num(5)),
		&If{SpanVal: At(21), Test: name("e"), Body: []Stmt{assign(22, "f", num(6))}},
		assign(22, "g", num(7)),
	}}
	want := lines(
		"a = 1",
		"b = 2; c = 3",
		"",
		"d = 4",
		"",
		"",
		"e = 5",
		"if e:",
		"    f = 6",
		"g = 7",
	)
	got := Render(mod)
	if got != want {
		t.Errorf("got:\n%s\nwant:\n%s", got, want)
	}
	if again := Render(mod); again != got {
		t.Error("render is not deterministic")
	}
}

func TestRenderUnknownLinesNotJoined(t *testing.T) {
	mod := &Module{Body: []Stmt{assign(0, "a", num(1)), assign(0, "b", num(2))}}
	if got, want := Render(mod), lines("a = 1", "b = 2"); got != want {
		t.Errorf("got:\n%s\nwant:\n%s", got, want)
	}
}

func TestTrimTrailingReturn(t *testing.T) {
	none := &Const{Value: bytecode.None()}
	tests := []struct {
		name string
		body []Stmt
		want int
	}{
		{"empty", nil, 0},
		{"return none", []Stmt{&Pass{}, &Return{Value: none}}, 1},
		{"bare return", []Stmt{&Return{}}, 0},
		{"return value", []Stmt{&Return{Value: num(1)}}, 1},
		{"not last", []Stmt{&Return{Value: none}, &Pass{}}, 2},
	}
	for _, tt := range tests {
		if got := TrimTrailingReturn(tt.body); len(got) != tt.want {
			t.Errorf("%s: len = %d, want %d", tt.name, len(got), tt.want)
		}
	}
}

func TestDocstringAndWalk(t *testing.T) {
	body := []Stmt{
		&ExprStmt{X: str("hello")},
		&If{Test: name("a"), Body: []Stmt{&Pass{}}, OrElse: []Stmt{&Break{}}},
	}
	if doc, ok := Docstring(body); !ok || doc != "hello" {
		t.Errorf("Docstring = %q, %v", doc, ok)
	}
	if _, ok := Docstring(body[1:]); ok {
		t.Error("If reported as docstring")
	}
	count := 0
	Walk(body, func(Stmt) { count++ })
	if count != 4 {
		t.Errorf("Walk visited %d statements, want 4", count)
	}
}
