package bytecode

import (
	"math"
	"testing"
)

func TestConstantRepr(t *testing.T) {
	tests := []struct {
		c    Constant
		want string
	}{
		{None(), "None"},
		{Bool(true), "True"},
		{Int(-42), "-42"},
		{Constant{Kind: ConstInt, BigInt: "123456789012345678901234567890"}, "123456789012345678901234567890"},
		{Float(1), "1.0"},
		{Float(0.1), "0.1"},
		{Float(1e16), "1e+16"},
		{Float(1.5e-5), "1.5e-05"},
		{Float(1234567.0), "1234567.0"},
		{Float(math.Inf(1)), "inf"},
		{Constant{Kind: ConstComplex, Imag: 2}, "2j"},
		{Constant{Kind: ConstComplex, Float: 1, Imag: -2.5}, "(1-2.5j)"},
		{Str("hi"), "'hi'"},
		{Str("it's"), `"it's"`},
		{Str("a\nb\\"), `'a\nb\\'`},
		{Str("é"), "'é'"},
		{Constant{Kind: ConstString, Str: "x", Unicode: true}, "u'x'"},
		{BytesConst([]byte("a\x00'")), `b"a\x00'"`},
		{Tuple(), "()"},
		{Tuple(Int(1)), "(1,)"},
		{Tuple(Int(1), Str("a")), "(1, 'a')"},
		{FrozenSet(), "frozenset()"},
		{FrozenSet(Int(1)), "frozenset({1})"},
		{Constant{Kind: ConstDict, Items: []Constant{Str("k")}, Values: []Constant{Int(1)}}, "{'k': 1}"},
		{Code(&CodeObject{Name: "f"}), "<code object f>"},
	}
	for _, tt := range tests {
		if got := tt.c.Repr(); got != tt.want {
			t.Errorf("Repr(%v) = %s, want %s", tt.c.Kind, got, tt.want)
		}
	}
}

func TestConstantEqual(t *testing.T) {
	if !Tuple(Int(1), Str("a")).Equal(Tuple(Int(1), Str("a"))) {
		t.Error("equal tuples differ")
	}
	if Int(1).Equal(Float(1)) {
		t.Error("int equals float")
	}
	if Str("a").Equal(Constant{Kind: ConstString, Str: "a", Unicode: true}) {
		t.Error("unicode flag ignored")
	}
}
