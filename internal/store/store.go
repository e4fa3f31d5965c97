package store

import (
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/nbhd/internal/gateway"
)

//go:embed schema.sql
var schemaSQL string

// migration upgrades a database whose user_version is below version.
type migration struct {
	version int
	stmt    string
}

// migrations run in order inside one transaction. The last entry's version
// is the schema version Open leaves behind.
var migrations = []migration{
	// memberships(actor_id, status) backs the ActiveMemberships JOIN.
	{version: 1, stmt: `CREATE INDEX IF NOT EXISTS idx_memberships_actor_status ON memberships(actor_id, status)`},
}

// pragmas are applied to the single pooled connection on every Open.
var pragmas = []struct{ name, value string }{
	{"journal_mode", "WAL"},
	{"synchronous", "NORMAL"},
	{"busy_timeout", "5000"},
	{"foreign_keys", "ON"},
}

// ErrNotFound is returned when a referenced community does not exist.
var ErrNotFound = errors.New("not found")

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store is the SQLite-backed gateway.Gateway. It also implements
// gateway.MembershipLister.
//
// Thread-safety: safe for concurrent use; database/sql serializes access to
// the one open connection.
type Store struct {
	db     *sql.DB
	closed atomic.Bool
	now    func() time.Time
}

// Open opens the database at path, creating it if needed, then applies the
// pragmas, the schema, and any pending migrations. Opening the same path
// again is safe. Use ":memory:" for a throwaway store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	// One connection: SQLite has a single writer, and ":memory:" databases
	// are per connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := prepare(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

func prepare(db *sql.DB) error {
	if err := db.Ping(); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	for _, p := range pragmas {
		if _, err := db.Exec(fmt.Sprintf("PRAGMA %s = %s", p.name, p.value)); err != nil {
			return fmt.Errorf("pragma %s: %w", p.name, err)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return migrate(db)
}

// migrate applies every migration newer than the stored user_version.
func migrate(db *sql.DB) error {
	var current int
	if err := db.QueryRow("PRAGMA user_version").Scan(&current); err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	defer tx.Rollback()

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if _, err := tx.Exec(m.stmt); err != nil {
			return fmt.Errorf("migration v%d: %w", m.version, err)
		}
		current = m.version
	}
	// PRAGMA does not take bind parameters.
	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", current)); err != nil {
		return fmt.Errorf("write user_version: %w", err)
	}
	return tx.Commit()
}

// Close releases the database. It is idempotent; gateway calls made after
// Close fail with gateway.ErrUnavailable.
func (s *Store) Close() error {
	if s.db == nil || s.closed.Swap(true) {
		return nil
	}
	return s.db.Close()
}

// DB exposes the handle for tests and maintenance queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// usable fails fast once the store is closed.
func (s *Store) usable(op string) error {
	if s.closed.Load() {
		return fmt.Errorf("%s: store closed: %w", op, gateway.ErrUnavailable)
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}

// verifyPragma reports an error unless PRAGMA name reads back as expected.
func (s *Store) verifyPragma(name, expected string) error {
	var got string
	if err := s.db.QueryRow("PRAGMA " + name).Scan(&got); err != nil {
		return fmt.Errorf("read pragma %s: %w", name, err)
	}
	if got != expected {
		return fmt.Errorf("pragma %s = %q, want %q", name, got, expected)
	}
	return nil
}
