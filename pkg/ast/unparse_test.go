package ast

import (
	"testing"

	"github.com/skuznetsov/depyo.js-sub000/pkg/bytecode"
)

func name(id string) *Name { return &Name{Id: id} }

func num(i int64) *Const { return &Const{Value: bytecode.Int(i)} }

func str(s string) *Const { return &Const{Value: bytecode.Str(s)} }

func TestExprStringPrecedence(t *testing.T) {
	a, b, c := name("a"), name("b"), name("c")
	tests := []struct {
		name string
		e    Expr
		want string
	}{
		{"left assoc", &Binary{Op: "-", X: &Binary{Op: "-", X: a, Y: b}, Y: c}, "a - b - c"},
		{"right group", &Binary{Op: "-", X: a, Y: &Binary{Op: "-", X: b, Y: c}}, "a - (b - c)"},
		{"sum times", &Binary{Op: "*", X: &Binary{Op: "+", X: a, Y: b}, Y: c}, "(a + b) * c"},
		{"power right assoc", &Binary{Op: "**", X: a, Y: &Binary{Op: "**", X: b, Y: c}}, "a ** b ** c"},
		{"power left group", &Binary{Op: "**", X: &Binary{Op: "**", X: a, Y: b}, Y: c}, "(a ** b) ** c"},
		{"negative base", &Binary{Op: "**", X: num(-1), Y: num(2)}, "(-1) ** 2"},
		{"neg power", &Unary{Op: "-", X: &Binary{Op: "**", X: a, Y: b}}, "-a ** b"},
		{"not compare", &Unary{Op: "not", X: &Compare{Left: a, Ops: []string{"=="}, Comparators: []Expr{b}}}, "not a == b"},
		{"and in or", &Binary{Op: "or", X: &Binary{Op: "and", X: a, Y: b}, Y: c}, "a and b or c"},
		{"or in and", &Binary{Op: "and", X: &Binary{Op: "or", X: a, Y: b}, Y: c}, "(a or b) and c"},
		{"chained compare", &Compare{Left: a, Ops: []string{"<", "<="}, Comparators: []Expr{b, c}}, "a < b <= c"},
		{"ternary operand", &Binary{Op: "+", X: &IfExp{Test: c, Body: a, OrElse: b}, Y: c}, "(a if c else b) + c"},
		{"int attribute", &Attribute{X: num(1), Attr: "real"}, "(1).real"},
		{"call attribute", &Attribute{X: &Call{Func: a}, Attr: "x"}, "a().x"},
		{"await", &Await{Value: &Call{Func: a}}, "await a()"},
		{"walrus", &NamedExpr{Target: a, Value: &Call{Func: b}}, "(a := b())"},
		{"starred", &Call{Func: a, Args: []Expr{&Starred{X: b}}, Keywords: []Keyword{{Value: c}}}, "a(*b, **c)"},
		{"keyword", &Call{Func: a, Keywords: []Keyword{{Name: "k", Value: num(1)}}}, "a(k=1)"},
		{"lambda", &Lambda{Args: &Arguments{Args: []Arg{{Name: "x"}}}, Body: &Binary{Op: "+", X: name("x"), Y: num(1)}}, "lambda x: x + 1"},
		{"lambda no args", &Lambda{Body: num(0)}, "lambda: 0"},
		{"yield", &Yield{Value: a}, "yield a"},
		{"yield operand", &Binary{Op: "+", X: &Yield{Value: a}, Y: b}, "(yield a) + b"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExprString(tt.e); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExprStringDisplays(t *testing.T) {
	x, y := name("x"), name("y")
	tests := []struct {
		name string
		e    Expr
		want string
	}{
		{"empty tuple", &Tuple{}, "()"},
		{"one tuple", &Tuple{Elts: []Expr{x}}, "(x,)"},
		{"tuple", &Tuple{Elts: []Expr{x, y}}, "(x, y)"},
		{"list", &List{Elts: []Expr{x, num(1)}}, "[x, 1]"},
		{"empty set", &Set{}, "set()"},
		{"set", &Set{Elts: []Expr{x}}, "{x}"},
		{"dict", &Dict{Keys: []Expr{str("k"), nil}, Values: []Expr{x, y}}, "{'k': x, **y}"},
		{"slice", &Subscript{X: x, Index: &Slice{Lower: num(1)}}, "x[1:]"},
		{"step slice", &Subscript{X: x, Index: &Slice{Step: num(-1)}}, "x[::-1]"},
		{"tuple index", &Subscript{X: x, Index: &Tuple{Elts: []Expr{num(0), &Slice{}}}}, "x[0, :]"},
		{"list comp", &Comprehension{Kind: ListComp, Elt: x, Generators: []*Generator{{Target: x, Iter: y, Ifs: []Expr{x}}}}, "[x for x in y if x]"},
		{"dict comp", &Comprehension{Kind: DictComp, Key: x, Elt: y, Generators: []*Generator{{Target: &Tuple{Elts: []Expr{x, y}}, Iter: name("d")}}}, "{x: y for x, y in d}"},
		{"generator arg", &Call{Func: name("sum"), Args: []Expr{&Comprehension{Kind: GeneratorExp, Elt: x, Generators: []*Generator{{Target: x, Iter: y}}}}}, "sum(x for x in y)"},
		{"fstring", &JoinedStr{Values: []Expr{str("a{"), &FormattedValue{Value: x, Conversion: 'r', Spec: str(">5")}}}, "f'a{{{x!r:>5}'"},
		{"fstring quote", &JoinedStr{Values: []Expr{str("it's "), &FormattedValue{Value: x}}}, `f"it's {x}"`},
		{"ellipsis", &Const{Value: bytecode.Ellipsis()}, "..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExprString(tt.e); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestArgumentsString(t *testing.T) {
	args := &Arguments{
		PosOnly:    []Arg{{Name: "a"}},
		Args:       []Arg{{Name: "b", Annotation: name("int")}},
		Defaults:   []Expr{num(1)},
		KwOnly:     []Arg{{Name: "c"}, {Name: "d"}},
		KwDefaults: []Expr{nil, str("x")},
		Kwarg:      &Arg{Name: "kw"},
	}
	if got, want := ArgumentsString(args, true), "a, /, b: int = 1, *, c, d='x', **kw"; got != want {
		t.Errorf("annotated = %q, want %q", got, want)
	}
	if got, want := ArgumentsString(args, false), "a, /, b=1, *, c, d='x', **kw"; got != want {
		t.Errorf("plain = %q, want %q", got, want)
	}
	varargs := &Arguments{Args: []Arg{{Name: "x"}}, Vararg: &Arg{Name: "rest"}, KwOnly: []Arg{{Name: "k"}}}
	if got, want := ArgumentsString(varargs, true), "x, *rest, k"; got != want {
		t.Errorf("varargs = %q, want %q", got, want)
	}
}

func TestLambdaFunction(t *testing.T) {
	f := &Function{
		IsLambda: true,
		Args:     &Arguments{Args: []Arg{{Name: "x"}}},
		Body:     []Stmt{&Return{Value: &Const{Value: bytecode.None()}}},
	}
	if got, want := ExprString(f), "lambda x: None"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	call := &Call{Func: f, Args: []Expr{num(1)}}
	if got, want := ExprString(call), "(lambda x: None)(1)"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
