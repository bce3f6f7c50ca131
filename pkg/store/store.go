// Package store caches decompilation results in SQLite, keyed by the
// content hash of the code object they were produced from, so a batch
// re-run skips inputs that have not changed.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/tliron/commonlog"
	"github.com/zeebo/xxh3"
	_ "modernc.org/sqlite"
)

// ErrNotFound indicates no result is stored for the hash.
var ErrNotFound = errors.New("result not found")

var log = commonlog.GetLogger("depyo.store")

// Record is one stored result.
type Record struct {
	Hash     string
	Path     string
	Version  string
	Source   string
	Clean    bool
	Warnings int
	Elapsed  time.Duration
	Updated  time.Time
}

// Store is a SQLite result cache. It is safe for concurrent use.
type Store struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// Hash returns the content hash of a serialized code object.
func Hash(data []byte) string {
	h := xxh3.Hash128(data)
	return fmt.Sprintf("%016x%016x", h.Hi, h.Lo)
}

// Open opens or creates the cache at path. ":memory:" opens a private
// in-memory database.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating cache dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// One connection: an in-memory database is private to its connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS results (
		hash TEXT PRIMARY KEY,
		path TEXT NOT NULL,
		version TEXT NOT NULL,
		source TEXT NOT NULL,
		clean INTEGER NOT NULL,
		warnings INTEGER NOT NULL,
		elapsed_ns INTEGER NOT NULL,
		updated INTEGER NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}
	log.Debugf("opened result cache %s", path)
	return &Store{db: db, path: path}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Save stores a result, replacing any earlier one for the same hash.
func (s *Store) Save(r *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	updated := r.Updated
	if updated.IsZero() {
		updated = time.Now()
	}
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO results (hash, path, version, source, clean, warnings, elapsed_ns, updated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.Hash, r.Path, r.Version, r.Source, r.Clean, r.Warnings, int64(r.Elapsed), updated.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("saving result: %w", err)
	}
	return nil
}

// Lookup returns the result stored for hash.
func (s *Store) Lookup(hash string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := &Record{Hash: hash}
	var elapsed, updated int64
	err := s.db.QueryRow(
		"SELECT path, version, source, clean, warnings, elapsed_ns, updated FROM results WHERE hash = ?", hash,
	).Scan(&r.Path, &r.Version, &r.Source, &r.Clean, &r.Warnings, &elapsed, &updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying result: %w", err)
	}
	r.Elapsed = time.Duration(elapsed)
	r.Updated = time.Unix(0, updated)
	return r, nil
}

// Stats summarizes the cache contents.
type Stats struct {
	Results int
	Unclean int
}

// Stats counts stored results.
func (s *Store) Stats() (Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var st Stats
	err := s.db.QueryRow("SELECT COUNT(*), COALESCE(SUM(CASE WHEN clean = 0 THEN 1 ELSE 0 END), 0) FROM results").
		Scan(&st.Results, &st.Unclean)
	if err != nil {
		return st, fmt.Errorf("counting results: %w", err)
	}
	return st, nil
}

// Prune deletes results last written before cutoff and returns how many
// were removed.
func (s *Store) Prune(cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec("DELETE FROM results WHERE updated < ?", cutoff.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("pruning results: %w", err)
	}
	return res.RowsAffected()
}
