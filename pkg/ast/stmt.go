package ast

// ---------------------------------------------------------------------------
// Statement nodes
// ---------------------------------------------------------------------------

// Stmt is the interface for statement nodes. A compound statement's span
// covers its header and every nested statement.
type Stmt interface {
	Node
	stmt() // marker method
}

func bodySpan(s Span, bodies ...[]Stmt) Span {
	for _, body := range bodies {
		for _, st := range body {
			s = s.Union(st.Span())
		}
	}
	return s
}

// Module is the root of a decompiled code object.
type Module struct {
	Body []Stmt
}

func (n *Module) Span() Span { return bodySpan(Span{}, n.Body) }
func (n *Module) node()      {}

// ExprStmt evaluates an expression for its side effects.
type ExprStmt struct {
	SpanVal Span
	X       Expr
}

func (n *ExprStmt) Span() Span { return n.SpanVal }
func (n *ExprStmt) node()      {}
func (n *ExprStmt) stmt()      {}

// Assign stores Value into every target; more than one target is a chain
// store (a = b = value).
type Assign struct {
	SpanVal Span
	Targets []Expr
	Value   Expr
}

func (n *Assign) Span() Span { return n.SpanVal }
func (n *Assign) node()      {}
func (n *Assign) stmt()      {}

// AugAssign is Target Op= Value.
type AugAssign struct {
	SpanVal Span
	Target  Expr
	Op      string // without the trailing "="
	Value   Expr
}

func (n *AugAssign) Span() Span { return n.SpanVal }
func (n *AugAssign) node()      {}
func (n *AugAssign) stmt()      {}

// AnnAssign is Target: Annotation [= Value].
type AnnAssign struct {
	SpanVal    Span
	Target     Expr
	Annotation Expr
	Value      Expr
}

func (n *AnnAssign) Span() Span { return n.SpanVal }
func (n *AnnAssign) node()      {}
func (n *AnnAssign) stmt()      {}

// Delete removes targets.
type Delete struct {
	SpanVal Span
	Targets []Expr
}

func (n *Delete) Span() Span { return n.SpanVal }
func (n *Delete) node()      {}
func (n *Delete) stmt()      {}

// Return leaves the function; Value may be nil.
type Return struct {
	SpanVal Span
	Value   Expr
}

func (n *Return) Span() Span { return n.SpanVal }
func (n *Return) node()      {}
func (n *Return) stmt()      {}

// Raise raises Exc (re-raises when nil). Cause is the "from" clause; Value
// and Traceback are the legacy comma forms.
type Raise struct {
	SpanVal   Span
	Exc       Expr
	Cause     Expr
	Value     Expr
	Traceback Expr
}

func (n *Raise) Span() Span { return n.SpanVal }
func (n *Raise) node()      {}
func (n *Raise) stmt()      {}

// Assert is assert Test[, Msg].
type Assert struct {
	SpanVal Span
	Test    Expr
	Msg     Expr
}

func (n *Assert) Span() Span { return n.SpanVal }
func (n *Assert) node()      {}
func (n *Assert) stmt()      {}

// Print is the legacy print statement.
type Print struct {
	SpanVal Span
	Dest    Expr
	Values  []Expr
	Newline bool
}

func (n *Print) Span() Span { return n.SpanVal }
func (n *Print) node()      {}
func (n *Print) stmt()      {}

// Exec is the legacy exec statement.
type Exec struct {
	SpanVal Span
	Body    Expr
	Globals Expr
	Locals  Expr
}

func (n *Exec) Span() Span { return n.SpanVal }
func (n *Exec) node()      {}
func (n *Exec) stmt()      {}

// Pass, Break and Continue are the bare keyword statements.
type (
	Pass     struct{ SpanVal Span }
	Break    struct{ SpanVal Span }
	Continue struct{ SpanVal Span }
)

func (n *Pass) Span() Span     { return n.SpanVal }
func (n *Pass) node()          {}
func (n *Pass) stmt()          {}
func (n *Break) Span() Span    { return n.SpanVal }
func (n *Break) node()         {}
func (n *Break) stmt()         {}
func (n *Continue) Span() Span { return n.SpanVal }
func (n *Continue) node()      {}
func (n *Continue) stmt()      {}

// Global declares module-level names inside a function.
type Global struct {
	SpanVal Span
	Names   []string
}

func (n *Global) Span() Span { return n.SpanVal }
func (n *Global) node()      {}
func (n *Global) stmt()      {}

// Nonlocal declares enclosing-scope names inside a nested function.
type Nonlocal struct {
	SpanVal Span
	Names   []string
}

func (n *Nonlocal) Span() Span { return n.SpanVal }
func (n *Nonlocal) node()      {}
func (n *Nonlocal) stmt()      {}

// Alias is "name as asname" in an import.
type Alias struct {
	Name   string
	AsName string
}

// ImportStmt is import a.b [as c], ...
type ImportStmt struct {
	SpanVal Span
	Names   []Alias
}

func (n *ImportStmt) Span() Span { return n.SpanVal }
func (n *ImportStmt) node()      {}
func (n *ImportStmt) stmt()      {}

// ImportFromStmt is from [.]module import names. A single "*" name is a
// star import.
type ImportFromStmt struct {
	SpanVal Span
	Module  string
	Level   int
	Names   []Alias
}

func (n *ImportFromStmt) Span() Span { return n.SpanVal }
func (n *ImportFromStmt) node()      {}
func (n *ImportFromStmt) stmt()      {}

// If is a conditional. An OrElse holding exactly one If renders as elif.
type If struct {
	SpanVal Span
	Test    Expr
	Body    []Stmt
	OrElse  []Stmt
}

func (n *If) Span() Span { return bodySpan(n.SpanVal, n.Body, n.OrElse) }
func (n *If) node()      {}
func (n *If) stmt()      {}

// While is a while loop with an optional else clause.
type While struct {
	SpanVal Span
	Test    Expr
	Body    []Stmt
	OrElse  []Stmt
}

func (n *While) Span() Span { return bodySpan(n.SpanVal, n.Body, n.OrElse) }
func (n *While) node()      {}
func (n *While) stmt()      {}

// For is a for loop with an optional else clause.
type For struct {
	SpanVal Span
	Target  Expr
	Iter    Expr
	Body    []Stmt
	OrElse  []Stmt
	Async   bool
}

func (n *For) Span() Span { return bodySpan(n.SpanVal, n.Body, n.OrElse) }
func (n *For) node()      {}
func (n *For) stmt()      {}

// ExceptHandler is one except clause. A nil Type is a bare except.
type ExceptHandler struct {
	SpanVal Span
	Type    Expr
	Name    string
	Body    []Stmt
	Star    bool
}

// Try is try/except/else/finally.
type Try struct {
	SpanVal   Span
	Body      []Stmt
	Handlers  []*ExceptHandler
	OrElse    []Stmt
	FinalBody []Stmt
}

func (n *Try) Span() Span {
	s := bodySpan(n.SpanVal, n.Body, n.OrElse, n.FinalBody)
	for _, h := range n.Handlers {
		s = bodySpan(s.Union(h.SpanVal), h.Body)
	}
	return s
}
func (n *Try) node() {}
func (n *Try) stmt() {}

// WithItem is one "context as vars" clause.
type WithItem struct {
	Context Expr
	Vars    Expr
}

// With is a with statement.
type With struct {
	SpanVal Span
	Items   []WithItem
	Body    []Stmt
	Async   bool
}

func (n *With) Span() Span { return bodySpan(n.SpanVal, n.Body) }
func (n *With) node()      {}
func (n *With) stmt()      {}

// FunctionDef binds a function to Name.
type FunctionDef struct {
	SpanVal Span
	Name    string
	Func    *Function
}

func (n *FunctionDef) Span() Span { return bodySpan(n.SpanVal, n.Func.Body) }
func (n *FunctionDef) node()      {}
func (n *FunctionDef) stmt()      {}

// ClassDef binds a class to its name.
type ClassDef struct {
	SpanVal Span
	Class   *Class
}

func (n *ClassDef) Span() Span { return bodySpan(n.SpanVal, n.Class.Body) }
func (n *ClassDef) node()      {}
func (n *ClassDef) stmt()      {}

// MatchCase is one case clause.
type MatchCase struct {
	SpanVal Span
	Pattern Pattern
	Guard   Expr
	Body    []Stmt
}

// Match is a match statement.
type Match struct {
	SpanVal Span
	Subject Expr
	Cases   []*MatchCase
}

func (n *Match) Span() Span {
	s := n.SpanVal
	for _, c := range n.Cases {
		s = bodySpan(s.Union(c.SpanVal), c.Body)
	}
	return s
}
func (n *Match) node() {}
func (n *Match) stmt() {}

// Comment is a line comment, used for headers and diagnostics.
type Comment struct {
	SpanVal Span
	Text    string
}

func (n *Comment) Span() Span { return n.SpanVal }
func (n *Comment) node()      {}
func (n *Comment) stmt()      {}
