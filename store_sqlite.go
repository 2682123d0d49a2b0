// store_sqlite.go: SQLite-backed ComponentStore.
package policyscript

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS components (
	id         TEXT    NOT NULL,
	version    INTEGER NOT NULL,
	source     TEXT    NOT NULL,
	created_at TEXT    NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now')),
	PRIMARY KEY (id, version)
);`

type sqliteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) a component registry at path.
// The pure-Go driver keeps the subsystem free of cgo.
func NewSQLiteStore(path string) (ComponentStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open component store: %w", err)
	}
	// the store is written from a single registration path; one connection
	// sidesteps SQLite writer contention
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init component store schema: %w", err)
	}
	return &sqliteStore{db: db}, nil
}

func (s *sqliteStore) Put(ctx context.Context, c Component) error {
	var existing string
	err := s.db.QueryRowContext(ctx,
		`SELECT source FROM components WHERE id = ? AND version = ?`,
		c.ID, c.Version).Scan(&existing)
	switch {
	case err == nil:
		if existing != c.Source {
			return &CompileError{Key: c.Key(), Err: ErrSourceMismatch}
		}
		return nil
	case err != sql.ErrNoRows:
		return fmt.Errorf("component store read %s: %w", c.Key(), err)
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO components (id, version, source) VALUES (?, ?, ?)
		 ON CONFLICT (id, version) DO NOTHING`,
		c.ID, c.Version, c.Source); err != nil {
		return fmt.Errorf("component store write %s: %w", c.Key(), err)
	}
	return nil
}

func (s *sqliteStore) Get(ctx context.Context, id string, version int) (Component, bool, error) {
	c := Component{ID: id, Version: version}
	err := s.db.QueryRowContext(ctx,
		`SELECT source FROM components WHERE id = ? AND version = ?`,
		id, version).Scan(&c.Source)
	if err == sql.ErrNoRows {
		return Component{}, false, nil
	}
	if err != nil {
		return Component{}, false, fmt.Errorf("component store read %s@%d: %w", id, version, err)
	}
	return c, true, nil
}

func (s *sqliteStore) List(ctx context.Context) ([]Component, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, version, source FROM components ORDER BY id, version`)
	if err != nil {
		return nil, fmt.Errorf("component store list: %w", err)
	}
	defer rows.Close()
	var out []Component
	for rows.Next() {
		var c Component
		if err := rows.Scan(&c.ID, &c.Version, &c.Source); err != nil {
			return nil, fmt.Errorf("component store scan: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *sqliteStore) Close() error { return s.db.Close() }
