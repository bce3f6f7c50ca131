package batch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/skuznetsov/depyo.js-sub000/pkg/bytecode"
	"github.com/skuznetsov/depyo.js-sub000/pkg/store"
)

func assignModule(t *testing.T, name string, value int64) Item {
	t.Helper()
	v, err := bytecode.ParseVersion("3.8")
	if err != nil {
		t.Fatal(err)
	}
	a := bytecode.NewAssembler(v)
	a.Line(1).Const(bytecode.Int(value)).Name(bytecode.OpStoreName, "x").
		Const(bytecode.None()).Op(bytecode.OpReturnValue)
	code, err := a.Build("<module>")
	if err != nil {
		t.Fatal(err)
	}
	return Item{Name: name, Code: code, Version: v}
}

func TestRunKeepsOrder(t *testing.T) {
	var items []Item
	for i := 0; i < 20; i++ {
		items = append(items, assignModule(t, fmt.Sprintf("m%d.pyc", i), int64(i)))
	}
	out := Run(context.Background(), items, Options{Workers: 4})
	if len(out) != len(items) {
		t.Fatalf("got %d outcomes, want %d", len(out), len(items))
	}
	for i, o := range out {
		if o.Err != nil {
			t.Fatalf("%s: %v", o.Item.Name, o.Err)
		}
		want := fmt.Sprintf("x = %d\n", i)
		if !strings.HasSuffix(o.Source, want) {
			t.Errorf("%s: source %q does not end with %q", o.Item.Name, o.Source, want)
		}
		if !o.Clean || o.Result == nil {
			t.Errorf("%s: clean=%t result=%v", o.Item.Name, o.Clean, o.Result)
		}
	}
	s := Summarize(out)
	if s.Total != 20 || s.Clean != 20 || s.Failed != 0 {
		t.Errorf("summary = %+v", s)
	}
}

func TestRunIsolatesFailures(t *testing.T) {
	items := []Item{
		assignModule(t, "good.pyc", 1),
		{Name: "broken.pyc", Code: &bytecode.CodeObject{Name: "<module>", Code: []byte{0xff}}, Version: assignModule(t, "", 0).Version},
		assignModule(t, "also-good.pyc", 2),
	}
	out := Run(context.Background(), items, Options{Workers: 2})
	if out[0].Err != nil || out[2].Err != nil {
		t.Errorf("good items failed: %v, %v", out[0].Err, out[2].Err)
	}
	if out[1].Err == nil {
		t.Error("undecodable item succeeded")
	}
	if s := Summarize(out); s.Failed != 1 || s.Clean != 2 {
		t.Errorf("summary = %+v", s)
	}
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out := Run(ctx, []Item{assignModule(t, "m.pyc", 1)}, Options{})
	if !errors.Is(out[0].Err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", out[0].Err)
	}
}

func TestRunUsesCache(t *testing.T) {
	s, err := store.Open(filepath.Join(t.TempDir(), "results.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	items := []Item{assignModule(t, "m.pyc", 7)}
	first := Run(context.Background(), items, Options{Cache: s})
	if first[0].Err != nil || first[0].Cached || first[0].Hash == "" {
		t.Fatalf("first run: %+v", first[0])
	}
	second := Run(context.Background(), items, Options{Cache: s})
	if !second[0].Cached {
		t.Error("second run missed the cache")
	}
	if second[0].Source != first[0].Source || !second[0].Clean {
		t.Errorf("cached source %q, want %q", second[0].Source, first[0].Source)
	}
	if sum := Summarize(second); sum.Cached != 1 {
		t.Errorf("summary = %+v", sum)
	}
}

type panickingCache struct{}

func (panickingCache) Lookup(string) (*store.Record, error) { panic("lookup exploded") }
func (panickingCache) Save(*store.Record) error             { return nil }

func TestRunRecoversPanics(t *testing.T) {
	items := []Item{assignModule(t, "a.pyc", 1), assignModule(t, "b.pyc", 2)}
	out := Run(context.Background(), items, Options{Workers: 1, Cache: panickingCache{}})
	for _, o := range out {
		if !errors.Is(o.Err, ErrPanic) {
			t.Errorf("%s: err = %v, want ErrPanic", o.Item.Name, o.Err)
		}
		if o.Clean || o.Result != nil {
			t.Errorf("%s: clean=%t result=%v", o.Item.Name, o.Clean, o.Result)
		}
	}
	if s := Summarize(out); s.Failed != 2 {
		t.Errorf("summary = %+v", s)
	}
}
