// Package ast defines the syntax tree produced by the decompiler and its
// rendering to source text.
package ast

import "github.com/skuznetsov/depyo.js-sub000/pkg/bytecode"

// Span is the range of source lines a node came from. Zero means unknown.
type Span struct {
	First int
	Last  int
}

// At returns a single-line span.
func At(line int) Span { return Span{First: line, Last: line} }

// Union widens s to cover o, ignoring unknown lines.
func (s Span) Union(o Span) Span {
	if o.First > 0 && (s.First == 0 || o.First < s.First) {
		s.First = o.First
	}
	if o.Last > s.Last {
		s.Last = o.Last
	}
	return s
}

// Node is the interface implemented by all AST nodes.
type Node interface {
	Span() Span
	node() // marker method
}

// ---------------------------------------------------------------------------
// Expression nodes
// ---------------------------------------------------------------------------

// Expr is the interface for expression nodes.
type Expr interface {
	Node
	expr() // marker method
}

// Name is a variable reference.
type Name struct {
	SpanVal Span
	Id      string
}

func (n *Name) Span() Span { return n.SpanVal }
func (n *Name) node()      {}
func (n *Name) expr()      {}

// Const is a literal from the constant pool.
type Const struct {
	SpanVal Span
	Value   bytecode.Constant
}

func (n *Const) Span() Span { return n.SpanVal }
func (n *Const) node()      {}
func (n *Const) expr()      {}

// Unary is a prefix operator: "-", "+", "~", "not" or the legacy "`" repr.
type Unary struct {
	SpanVal Span
	Op      string
	X       Expr
}

func (n *Unary) Span() Span { return n.SpanVal }
func (n *Unary) node()      {}
func (n *Unary) expr()      {}

// Binary is an infix arithmetic, bitwise or logical ("and"/"or") operation.
type Binary struct {
	SpanVal Span
	Op      string
	X       Expr
	Y       Expr
}

func (n *Binary) Span() Span { return n.SpanVal }
func (n *Binary) node()      {}
func (n *Binary) expr()      {}

// Compare is a comparison, possibly chained (a < b < c).
type Compare struct {
	SpanVal     Span
	Left        Expr
	Ops         []string
	Comparators []Expr
}

func (n *Compare) Span() Span { return n.SpanVal }
func (n *Compare) node()      {}
func (n *Compare) expr()      {}

// Attribute is X.Attr.
type Attribute struct {
	SpanVal Span
	X       Expr
	Attr    string
}

func (n *Attribute) Span() Span { return n.SpanVal }
func (n *Attribute) node()      {}
func (n *Attribute) expr()      {}

// Subscript is X[Index].
type Subscript struct {
	SpanVal Span
	X       Expr
	Index   Expr
}

func (n *Subscript) Span() Span { return n.SpanVal }
func (n *Subscript) node()      {}
func (n *Subscript) expr()      {}

// Slice is lower:upper:step inside a subscript. Any part may be nil.
type Slice struct {
	SpanVal Span
	Lower   Expr
	Upper   Expr
	Step    Expr
}

func (n *Slice) Span() Span { return n.SpanVal }
func (n *Slice) node()      {}
func (n *Slice) expr()      {}

// Tuple is a tuple display or an unpacking target.
type Tuple struct {
	SpanVal Span
	Elts    []Expr
}

func (n *Tuple) Span() Span { return n.SpanVal }
func (n *Tuple) node()      {}
func (n *Tuple) expr()      {}

// List is a list display.
type List struct {
	SpanVal Span
	Elts    []Expr
}

func (n *List) Span() Span { return n.SpanVal }
func (n *List) node()      {}
func (n *List) expr()      {}

// Set is a set display.
type Set struct {
	SpanVal Span
	Elts    []Expr
}

func (n *Set) Span() Span { return n.SpanVal }
func (n *Set) node()      {}
func (n *Set) expr()      {}

// Dict is a dict display. A nil key marks a **mapping unpack.
type Dict struct {
	SpanVal Span
	Keys    []Expr
	Values  []Expr
}

func (n *Dict) Span() Span { return n.SpanVal }
func (n *Dict) node()      {}
func (n *Dict) expr()      {}

// Starred is *X in a call, display or target.
type Starred struct {
	SpanVal Span
	X       Expr
}

func (n *Starred) Span() Span { return n.SpanVal }
func (n *Starred) node()      {}
func (n *Starred) expr()      {}

// Keyword is one name=value call argument; an empty Name is **value.
type Keyword struct {
	Name  string
	Value Expr
}

// Call is a call with positional arguments (Starred for *args) and keywords.
type Call struct {
	SpanVal  Span
	Func     Expr
	Args     []Expr
	Keywords []Keyword
}

func (n *Call) Span() Span { return n.SpanVal }
func (n *Call) node()      {}
func (n *Call) expr()      {}

// IfExp is Body if Test else OrElse.
type IfExp struct {
	SpanVal Span
	Test    Expr
	Body    Expr
	OrElse  Expr
}

func (n *IfExp) Span() Span { return n.SpanVal }
func (n *IfExp) node()      {}
func (n *IfExp) expr()      {}

// CompKind selects the bracket form of a comprehension.
type CompKind uint8

const (
	ListComp CompKind = iota
	SetComp
	DictComp
	GeneratorExp
)

// Generator is one "for target in iter if cond" clause.
type Generator struct {
	Target Expr
	Iter   Expr
	Ifs    []Expr
	Async  bool
}

// Comprehension is a list/set/dict comprehension or generator expression.
type Comprehension struct {
	SpanVal    Span
	Kind       CompKind
	Key        Expr // DictComp only
	Elt        Expr
	Generators []*Generator
}

func (n *Comprehension) Span() Span { return n.SpanVal }
func (n *Comprehension) node()      {}
func (n *Comprehension) expr()      {}

// FormattedValue is one {value!conv:spec} field of an f-string.
type FormattedValue struct {
	SpanVal    Span
	Value      Expr
	Conversion byte // 0, 's', 'r' or 'a'
	Spec       Expr // nil, Const string or JoinedStr
}

func (n *FormattedValue) Span() Span { return n.SpanVal }
func (n *FormattedValue) node()      {}
func (n *FormattedValue) expr()      {}

// JoinedStr is an f-string made of Const strings and FormattedValues.
type JoinedStr struct {
	SpanVal Span
	Values  []Expr
}

func (n *JoinedStr) Span() Span { return n.SpanVal }
func (n *JoinedStr) node()      {}
func (n *JoinedStr) expr()      {}

// NamedExpr is (Target := Value).
type NamedExpr struct {
	SpanVal Span
	Target  Expr
	Value   Expr
}

func (n *NamedExpr) Span() Span { return n.SpanVal }
func (n *NamedExpr) node()      {}
func (n *NamedExpr) expr()      {}

// Lambda is an anonymous function whose body is a single expression.
type Lambda struct {
	SpanVal Span
	Args    *Arguments
	Body    Expr
}

func (n *Lambda) Span() Span { return n.SpanVal }
func (n *Lambda) node()      {}
func (n *Lambda) expr()      {}

// Yield is a yield expression; Value may be nil.
type Yield struct {
	SpanVal Span
	Value   Expr
}

func (n *Yield) Span() Span { return n.SpanVal }
func (n *Yield) node()      {}
func (n *Yield) expr()      {}

// YieldFrom is yield from Value.
type YieldFrom struct {
	SpanVal Span
	Value   Expr
}

func (n *YieldFrom) Span() Span { return n.SpanVal }
func (n *YieldFrom) node()      {}
func (n *YieldFrom) expr()      {}

// Await is await Value.
type Await struct {
	SpanVal Span
	Value   Expr
}

func (n *Await) Span() Span { return n.SpanVal }
func (n *Await) node()      {}
func (n *Await) expr()      {}

// Function is a function object under construction: the result of
// MAKE_FUNCTION before it is bound to a name or called.
type Function struct {
	SpanVal     Span
	Code        *bytecode.CodeObject
	Args        *Arguments
	Returns     Expr
	Decorators  []Expr
	Body        []Stmt
	IsLambda    bool
	IsAsync     bool
	IsGenerator bool
}

func (n *Function) Span() Span { return n.SpanVal }
func (n *Function) node()      {}
func (n *Function) expr()      {}

// Class is a class object under construction (LOAD_BUILD_CLASS or the
// legacy BUILD_CLASS sequence) before it is bound to a name.
type Class struct {
	SpanVal    Span
	Name       string
	Bases      []Expr
	Keywords   []Keyword
	Decorators []Expr
	Body       []Stmt
}

func (n *Class) Span() Span { return n.SpanVal }
func (n *Class) node()      {}
func (n *Class) expr()      {}

// Import is the module pushed by IMPORT_NAME.
type Import struct {
	SpanVal  Span
	Module   string
	FromList []string // nil for a plain import
	Level    int
	Star     bool
}

func (n *Import) Span() Span { return n.SpanVal }
func (n *Import) node()      {}
func (n *Import) expr()      {}

// ImportFrom is the attribute pushed by IMPORT_FROM.
type ImportFrom struct {
	SpanVal Span
	Module  *Import
	Name    string
}

func (n *ImportFrom) Span() Span { return n.SpanVal }
func (n *ImportFrom) node()      {}
func (n *ImportFrom) expr()      {}

// Marker stands in for values the VM pushes but source never spells out
// (exception triples, iterator state) and for unrecoverable expressions.
type Marker struct {
	SpanVal Span
	Label   string
}

func (n *Marker) Span() Span { return n.SpanVal }
func (n *Marker) node()      {}
func (n *Marker) expr()      {}

// Arg is one parameter.
type Arg struct {
	Name       string
	Annotation Expr
}

// Arguments is a parameter list. Defaults align with the tail of
// PosOnly+Args; KwDefaults aligns with KwOnly and holds nil where a
// keyword-only parameter has no default.
type Arguments struct {
	PosOnly    []Arg
	Args       []Arg
	Vararg     *Arg
	KwOnly     []Arg
	Kwarg      *Arg
	Defaults   []Expr
	KwDefaults []Expr
}

// Empty reports whether the list declares no parameters.
func (a *Arguments) Empty() bool {
	return a == nil || (len(a.PosOnly) == 0 && len(a.Args) == 0 && a.Vararg == nil &&
		len(a.KwOnly) == 0 && a.Kwarg == nil)
}
