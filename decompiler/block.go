package decompiler

import (
	"github.com/skuznetsov/depyo.js-sub000/pkg/ast"
)

// BlockKind tags a reconstructed control-flow scope.
type BlockKind uint8

const (
	BlockMain BlockKind = iota
	BlockIf
	BlockElif
	BlockElse
	BlockWhile
	BlockFor
	BlockAsyncFor
	BlockTry
	BlockExcept
	BlockFinally
	BlockWith
	BlockAsyncWith
	BlockContainer
)

var blockNames = [...]string{
	BlockMain:      "main",
	BlockIf:        "if",
	BlockElif:      "elif",
	BlockElse:      "else",
	BlockWhile:     "while",
	BlockFor:       "for",
	BlockAsyncFor:  "async for",
	BlockTry:       "try",
	BlockExcept:    "except",
	BlockFinally:   "finally",
	BlockWith:      "with",
	BlockAsyncWith: "async with",
	BlockContainer: "container",
}

func (k BlockKind) String() string {
	if int(k) < len(blockNames) {
		return blockNames[k]
	}
	return "block?"
}

// IsLoop reports whether break and continue bind to blocks of this kind.
func (k BlockKind) IsLoop() bool {
	return k == BlockWhile || k == BlockFor || k == BlockAsyncFor
}

// InitState records how a conditional block's test value was consumed.
type InitState uint8

const (
	Uninited         InitState = iota
	PoppedBeforeJump           // the value was popped ahead of the jump
	PrePopped                  // the value was popped on block entry
)

// Block is one open scope on the block stack.
type Block struct {
	ID       int
	Kind     BlockKind
	Start    int
	End      int // 0 until resolved
	Cond     ast.Expr
	Negative bool
	Target   ast.Expr
	Init     InitState
	Nodes    []ast.Stmt
	Line     int

	parent  int
	stack   []ast.Expr // operand stack when the block opened
	try     *tryState  // BlockContainer only
	ternary *ternary   // BlockElse produced by a conditional expression
	logic   string     // "and"/"or" for short-circuit blocks
	legacy  bool       // non-popping JUMP_IF_* test
	assert  bool
	popped  bool // POP_BLOCK or POP_EXCEPT seen
	isComp  bool
	head    int // loop re-entry offset
	name    string
	async   bool
	exprAt  int // start of the condition that opened the block
	orElse  int // end of a loop else clause, taken from a break target

	// case clauses
	pattern   ast.Pattern
	fails     []caseFail
	keeps     bool // subject stays on the stack for the next case
	guard     bool // guard jumps still expected
	bodyDepth int
}

// Extend moves the end offset forward. It never moves backward.
func (b *Block) Extend(end int) {
	if end > b.End {
		b.End = end
	}
}

// closesAtEnd reports whether reaching End closes the block implicitly.
// With blocks wait for their exit call unless the body already left
// through one.
func (b *Block) closesAtEnd() bool {
	switch b.Kind {
	case BlockMain:
		return false
	case BlockWith, BlockAsyncWith:
		return b.popped && b.End > 0
	}
	return b.End > 0
}

func (b *Block) append(st ast.Stmt) { b.Nodes = append(b.Nodes, st) }

func (b *Block) last() ast.Stmt {
	if len(b.Nodes) == 0 {
		return nil
	}
	return b.Nodes[len(b.Nodes)-1]
}

// BlockSpan is the resolved extent of a closed block, kept for
// diagnostics and geometry checks.
type BlockSpan struct {
	ID     int
	Parent int
	Kind   BlockKind
	Start  int
	End    int
}

type ternary struct {
	test ast.Expr
	body ast.Expr
}

// tryState accumulates one try statement inside a container block.
type tryState struct {
	stmt      *ast.Try
	exceptAt  int // next handler entry, -1 when none
	finallyAt int // finally handler, -1 when none
	elseAt    int
	endAt     int
	copyAt    int // start of the inlined finally body, -1 when unknown
	bodyDone  bool
	started   bool // a handler has been entered
	inFinally bool
	copyLen   int
}

func newTryState() *tryState {
	return &tryState{stmt: &ast.Try{}, exceptAt: -1, finallyAt: -1, elseAt: -1, endAt: -1, copyAt: -1}
}

// blockStack is the stack of open blocks. The bottom entry is always the
// Main block of the code object.
type blockStack struct {
	blocks []*Block
	nextID int
	closed []BlockSpan
}

func (s *blockStack) init(main *Block) {
	main.ID = s.nextID
	main.parent = -1
	s.nextID++
	s.blocks = []*Block{main}
}

func (s *blockStack) Len() int { return len(s.blocks) }

func (s *blockStack) Top() *Block { return s.blocks[len(s.blocks)-1] }

func (s *blockStack) Main() *Block { return s.blocks[0] }

func (s *blockStack) parentOf(i int) *Block {
	if i <= 0 {
		return nil
	}
	return s.blocks[i-1]
}

func (s *blockStack) push(b *Block) {
	b.ID = s.nextID
	b.parent = s.Top().ID
	s.nextID++
	s.blocks = append(s.blocks, b)
}

// pop removes the top block; it never removes Main.
func (s *blockStack) pop() *Block {
	if len(s.blocks) <= 1 {
		return nil
	}
	b := s.Top()
	s.blocks = s.blocks[:len(s.blocks)-1]
	s.closed = append(s.closed, BlockSpan{ID: b.ID, Parent: b.parent, Kind: b.Kind, Start: b.Start, End: b.End})
	return b
}

// innermost returns the nearest open block matching pred.
func (s *blockStack) innermost(pred func(*Block) bool) *Block {
	for i := len(s.blocks) - 1; i >= 0; i-- {
		if pred(s.blocks[i]) {
			return s.blocks[i]
		}
	}
	return nil
}

func (s *blockStack) loop() *Block {
	return s.innermost(func(b *Block) bool { return b.Kind.IsLoop() })
}

func (s *blockStack) container() *Block {
	return s.innermost(func(b *Block) bool { return b.Kind == BlockContainer })
}
