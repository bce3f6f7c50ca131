package bytecode

import (
	"errors"
	"reflect"
	"testing"
)

func TestParseExceptionTable(t *testing.T) {
	// start=2 units, length=5, target=10, depth 1 lasti
	raw := []byte{0x82, 0x05, 0x0a, 0x03}
	got, err := ParseExceptionTable(raw)
	if err != nil {
		t.Fatal(err)
	}
	want := []ExceptionEntry{{Start: 4, End: 14, Target: 20, Depth: 1, Lasti: true}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestParseExceptionTableMultiChunk(t *testing.T) {
	// target 100 units = 0b1_100100 -> 0x41 0x24
	raw := []byte{0x80, 0x02, 0x41, 0x24, 0x00}
	got, err := ParseExceptionTable(raw)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Target != 200 || got[0].End != 4 {
		t.Errorf("got %+v", got)
	}
}

func TestExceptionTableRoundTrip(t *testing.T) {
	entries := []ExceptionEntry{
		{Start: 0, End: 12, Target: 40, Depth: 0},
		{Start: 40, End: 48, Target: 300, Depth: 1, Lasti: true},
		{Start: 300, End: 5000, Target: 9000, Depth: 3},
	}
	got, err := ParseExceptionTable(EncodeExceptionTable(entries))
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, entries) {
		t.Errorf("round trip = %+v", got)
	}
}

func TestParseExceptionTableErrors(t *testing.T) {
	if _, err := ParseExceptionTable([]byte{0x82, 0x05}); !errors.Is(err, ErrTruncated) {
		t.Errorf("truncated table: err = %v", err)
	}
	if _, err := ParseExceptionTable([]byte{0x82, 0x45}); !errors.Is(err, ErrTruncated) {
		t.Errorf("truncated varint: err = %v", err)
	}
	if _, err := ParseExceptionTable([]byte{0x02, 0x05, 0x0a, 0x03}); err == nil {
		t.Error("missing entry marker accepted")
	}
}

func TestHandlerFor(t *testing.T) {
	entries := []ExceptionEntry{{Start: 4, End: 10, Target: 20}, {Start: 20, End: 30, Target: 40}}
	if e, ok := HandlerFor(entries, 8); !ok || e.Target != 20 {
		t.Errorf("HandlerFor(8) = %+v, %v", e, ok)
	}
	if _, ok := HandlerFor(entries, 10); ok {
		t.Error("end offset is exclusive")
	}
}
