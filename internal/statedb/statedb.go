// Package statedb reads and writes an editor's global state database, the
// SQLite key-value table VS Code derived editors keep per data directory.
package statedb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/neboloop/switchyard/internal/fsutil"
	"github.com/neboloop/switchyard/internal/logging"
)

// RelPath is the database location relative to a data directory.
var RelPath = filepath.Join("User", "globalStorage", "state.vscdb")

const schema = `CREATE TABLE IF NOT EXISTS ItemTable (key TEXT UNIQUE ON CONFLICT REPLACE, value BLOB)`

// Path returns the state database of the data directory dir.
func Path(dir string) string {
	return filepath.Join(dir, RelPath)
}

// DB is an open state database.
type DB struct {
	db   *sql.DB
	path string
}

// Open opens (creating if needed) the database at path. The editor owns the
// file, so its journal mode is left alone; writers wait on a busy timeout
// instead of failing while the editor holds a lock.
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Single connection: SQLite doesn't handle concurrent writers well
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create ItemTable: %w", err)
	}
	return &DB{db: db, path: path}, nil
}

// OpenDir opens the state database of a data directory.
func OpenDir(dir string) (*DB, error) {
	return Open(Path(dir))
}

// Path returns the database file path.
func (d *DB) Path() string {
	return d.path
}

// Close closes the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// Get returns the value stored under key.
func (d *DB) Get(ctx context.Context, key string) (string, bool, error) {
	var value sql.NullString
	err := d.db.QueryRowContext(ctx, "SELECT value FROM ItemTable WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %q: %w", key, err)
	}
	return value.String, true, nil
}

// Put stores value under key, replacing any previous value.
func (d *DB) Put(ctx context.Context, key, value string) error {
	if _, err := d.db.ExecContext(ctx, "INSERT OR REPLACE INTO ItemTable (key, value) VALUES (?, ?)", key, value); err != nil {
		return fmt.Errorf("put %q: %w", key, err)
	}
	return nil
}

// Delete removes key. Missing keys are not an error.
func (d *DB) Delete(ctx context.Context, key string) error {
	if _, err := d.db.ExecContext(ctx, "DELETE FROM ItemTable WHERE key = ?", key); err != nil {
		return fmt.Errorf("delete %q: %w", key, err)
	}
	return nil
}

// Keys lists keys starting with prefix, sorted.
func (d *DB) Keys(ctx context.Context, prefix string) ([]string, error) {
	rows, err := d.db.QueryContext(ctx,
		"SELECT key FROM ItemTable WHERE substr(key, 1, ?) = ? ORDER BY key", len(prefix), prefix)
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// Bootstrap makes sure dir has a state database. A new instance starts from a
// snapshot of the default instance's database so settings carry over; when
// there is none an empty table is created. Reports whether a file was made.
func Bootstrap(ctx context.Context, dir, defaultDir string) (bool, error) {
	dst := Path(dir)
	if _, err := os.Stat(dst); err == nil {
		return false, nil
	}

	src := ""
	if defaultDir != "" && filepath.Clean(defaultDir) != filepath.Clean(dir) {
		if _, err := os.Stat(Path(defaultDir)); err == nil {
			src = Path(defaultDir)
		}
	}

	if src != "" {
		if err := snapshot(ctx, src, dst); err != nil {
			logging.Warnf("[statedb] snapshot of %s failed, copying file: %v", src, err)
			if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
				return false, err
			}
			if err := fsutil.CopyFile(src, dst); err != nil {
				return false, fmt.Errorf("copy template database: %w", err)
			}
		}
		logging.Infof("[statedb] bootstrapped %s from %s", dst, src)
	}

	db, err := Open(dst)
	if err != nil {
		return false, err
	}
	return true, db.Close()
}

// snapshot writes a consistent copy of src to dst with VACUUM INTO, which is
// safe while the editor has src open.
func snapshot(ctx context.Context, src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	db, err := sql.Open("sqlite", src+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return err
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "VACUUM INTO ?", dst); err != nil {
		os.Remove(dst)
		return err
	}
	return nil
}
