package store

import (
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "cache", "results.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestHash(t *testing.T) {
	a := Hash([]byte("code object"))
	if len(a) != 32 {
		t.Errorf("hash %q has length %d, want 32", a, len(a))
	}
	if a != Hash([]byte("code object")) {
		t.Error("hash is not deterministic")
	}
	if a == Hash([]byte("code object!")) {
		t.Error("different inputs share a hash")
	}
}

func TestSaveLookup(t *testing.T) {
	s := openTemp(t)
	rec := &Record{
		Hash:     Hash([]byte("m")),
		Path:     "pkg/m.pyc",
		Version:  "3.8",
		Source:   "x = 1\n",
		Clean:    true,
		Warnings: 0,
		Elapsed:  3 * time.Millisecond,
	}
	if err := s.Save(rec); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := s.Lookup(rec.Hash)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if got.Path != rec.Path || got.Version != rec.Version || got.Source != rec.Source {
		t.Errorf("got %+v, want %+v", got, rec)
	}
	if !got.Clean || got.Elapsed != rec.Elapsed || got.Updated.IsZero() {
		t.Errorf("got clean=%t elapsed=%s updated=%s", got.Clean, got.Elapsed, got.Updated)
	}

	rec.Source = "x = 2\n"
	rec.Clean = false
	rec.Warnings = 2
	if err := s.Save(rec); err != nil {
		t.Fatalf("Save again: %v", err)
	}
	got, err = s.Lookup(rec.Hash)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if got.Source != "x = 2\n" || got.Clean || got.Warnings != 2 {
		t.Errorf("replacement not stored: %+v", got)
	}
}

func TestLookupMissing(t *testing.T) {
	s := openTemp(t)
	if _, err := s.Lookup("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestStatsAndPrune(t *testing.T) {
	s := openTemp(t)
	old := time.Now().Add(-48 * time.Hour)
	records := []*Record{
		{Hash: "a", Path: "a.pyc", Version: "2.7", Clean: true, Updated: old},
		{Hash: "b", Path: "b.pyc", Version: "3.11", Clean: false},
		{Hash: "c", Path: "c.pyc", Version: "3.12", Clean: true},
	}
	for _, r := range records {
		if err := s.Save(r); err != nil {
			t.Fatalf("Save(%s): %v", r.Hash, err)
		}
	}
	st, err := s.Stats()
	if err != nil {
		t.Fatal(err)
	}
	if st.Results != 3 || st.Unclean != 1 {
		t.Errorf("stats = %+v, want 3 results, 1 unclean", st)
	}
	n, err := s.Prune(time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("pruned %d, want 1", n)
	}
	if _, err := s.Lookup("a"); !errors.Is(err, ErrNotFound) {
		t.Errorf("pruned record still present: %v", err)
	}
}
