package decompiler

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/skuznetsov/depyo.js-sub000/pkg/ast"
	"github.com/skuznetsov/depyo.js-sub000/pkg/bytecode"
	"github.com/skuznetsov/depyo.js-sub000/pkg/dump"
)

// The fixtures are dumps of real compiler output, written by
// testdata/gen.py from the sources under testdata/src.
func loadFixture(t *testing.T, name string) (*bytecode.CodeObject, *bytecode.Version) {
	t.Helper()
	code, v, err := dump.ReadFile(filepath.Join("testdata", name+".yaml"))
	if err != nil {
		t.Fatalf("load %s: %v", name, err)
	}
	return code, v
}

var fixtureTests = []struct {
	fixture string
	want    string
}{
	{"try_except_finally_311", lines(
		"try:",
		"    f()",
		"except ValueError as e:",
		"    g(e)",
		"finally:",
		"    h()")},
	{"comprehension_311", "z = [x * 2 for x in y if x]"},
	{"elif_chain_311", elifChain},
	{"for_else_break_311", forElseBreak},
	{"while_true_break_311", lines(
		"while True:",
		"    if f():",
		"        break",
		"    g()")},
	{"with_open_311", lines(
		"with open(f) as g:",
		"    g.read()")},
	{"async_with_311", lines(
		"async def run():",
		"    async with h() as k:",
		"        pass")},
	{"decorator_311", lines(
		"@dec",
		"def f():",
		"    pass")},
	{"super_class_311", lines(
		"class B(A):",
		"    def m(self):",
		"        return super().m()")},
	{"lambda_none_311", "f = lambda: None"},
	{"match_guards_311", matchGuards},
	{"match_guards_312", matchGuards},
	{"match_classes_310", matchClasses},
	{"match_classes_311", matchClasses},
	{"match_or_310", matchOr},
	{"match_or_311", matchOr},
	{"elif_chain_313", elifChain},
	{"for_else_break_313", forElseBreak},
	{"match_guards_313", matchGuards},
	{"match_classes_313", matchClasses},
	{"fstrings_313", "s = f'{a!r:>10} {b}'"},
	{"defaults_313", lines(
		"def g(a, b=1, *, c=2):",
		"    return a + c")},
	{"swap_313", lines(
		"def h(a, b):",
		"    a, b = (b, a)",
		"    return a")},
	{"match_mapping_311", lines(
		"match d:",
		"    case {'k': v}:",
		"        r = v",
		"    case None:",
		"        r = 0")},
}

var (
	elifChain = lines(
		"if a:",
		"    x = 1",
		"elif b:",
		"    x = 2",
		"else:",
		"    x = 3")
	forElseBreak = lines(
		"for i in xs:",
		"    if i:",
		"        break",
		"else:",
		"    done()")
	matchGuards = lines(
		"match v:",
		"    case 0:",
		"        r = 'zero'",
		"    case n if n > 10:",
		"        r = 'big'",
		"    case _:",
		"        r = 'other'")
	matchClasses = lines(
		"match p:",
		"    case Point(x=0, y=0):",
		"        r = 'origin'",
		"    case Point(x=a, y=b):",
		"        r = a")
	matchOr = lines(
		"match c:",
		"    case 1 | 2:",
		"        r = 'small'",
		"    case [1, *_, 2]:",
		"        r = 'seq'")
)

func lines(ls ...string) string { return strings.Join(ls, "\n") }

func TestDecompileFixtures(t *testing.T) {
	for _, tt := range fixtureTests {
		t.Run(tt.fixture, func(t *testing.T) {
			code, v := loadFixture(t, tt.fixture)
			r, err := New(nil).Decompile(code, v)
			if err != nil {
				t.Fatalf("Decompile: %v", err)
			}
			if got := ast.Render(r.Root); got != tt.want {
				t.Errorf("got:\n%s\nwant:\n%s", got, tt.want)
			}
			if !r.Clean {
				t.Errorf("result unclean: %v", r.Warnings)
			}
		})
	}
}

func TestDecompileIsRepeatable(t *testing.T) {
	for _, tt := range fixtureTests {
		code, v := loadFixture(t, tt.fixture)
		d := New(nil)
		first, err := d.Decompile(code, v)
		if err != nil {
			t.Fatalf("%s: %v", tt.fixture, err)
		}
		second, err := d.Decompile(code, v)
		if err != nil {
			t.Fatalf("%s: %v", tt.fixture, err)
		}
		a, b := first.Source(), second.Source()
		if a != b {
			t.Errorf("%s: second run differs:\n%s\nfirst:\n%s", tt.fixture, b, a)
		}
		if body := ast.Render(first.Root); !strings.HasSuffix(a, body+"\n") {
			t.Errorf("%s: source does not end with the rendered tree:\n%s", tt.fixture, a)
		}
	}
}

func TestBlockSpansNest(t *testing.T) {
	for _, name := range []string{"elif_chain_311", "match_guards_311", "match_classes_311", "match_or_311", "match_mapping_311", "elif_chain_313"} {
		code, v := loadFixture(t, name)
		r, err := New(nil).Decompile(code, v)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if len(r.Blocks) == 0 {
			t.Errorf("%s: no blocks recorded", name)
		}
		for i, a := range r.Blocks {
			if a.Start > a.End {
				t.Errorf("%s: block %d (%s) starts at %d after its end %d", name, a.ID, a.Kind, a.Start, a.End)
			}
			for _, b := range r.Blocks[i+1:] {
				disjoint := a.End <= b.Start || b.End <= a.Start
				nested := (a.Start <= b.Start && b.End <= a.End) || (b.Start <= a.Start && a.End <= b.End)
				if !disjoint && !nested {
					t.Errorf("%s: blocks %d [%d,%d) and %d [%d,%d) overlap", name, a.ID, a.Start, a.End, b.ID, b.Start, b.End)
				}
			}
		}
	}
}

func TestDecompileSurvivesBadBytecode(t *testing.T) {
	v, err := bytecode.ParseVersion("2.7")
	if err != nil {
		t.Fatal(err)
	}
	code := &bytecode.CodeObject{Name: "<module>", Code: []byte{0x52, 0x70, 0x00, 0x00}}
	r, err := New(nil).Decompile(code, v)
	if err != nil {
		t.Fatalf("Decompile: %v", err)
	}
	if r.Clean {
		t.Error("malformed bytecode reported clean")
	}
}

func TestDecompileLeftoverStackIsUnclean(t *testing.T) {
	code, v := assemble(t, "3.8", func(a *bytecode.Assembler) {
		a.Line(1).Name(bytecode.OpLoadName, "x").
			Const(bytecode.None()).Op(bytecode.OpReturnValue)
	})
	r, err := New(nil).Decompile(code, v)
	if err != nil {
		t.Fatalf("Decompile: %v", err)
	}
	if r.Clean {
		t.Fatal("value left on the stack reported clean")
	}
	found := false
	for _, w := range r.Warnings {
		found = found || strings.Contains(w, "operand stack")
	}
	if !found {
		t.Errorf("warnings %v do not mention the operand stack", r.Warnings)
	}
}
