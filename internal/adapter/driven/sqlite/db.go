// Package sqlite holds the SQLite-backed adapters: the encrypted controller
// login store and its schema migrations.
package sqlite

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// Connection limits. SQLite allows one writer at a time; readers are cheap.
const (
	maxWriters = 1
	maxReaders = 4
)

var basePragmas = []string{
	"busy_timeout(5000)",
	"synchronous(NORMAL)",
	"foreign_keys(ON)",
}

// DB pairs a single-connection writer with a small reader pool over one
// SQLite database.
type DB struct {
	Writer *sql.DB
	Reader *sql.DB
	path   string
}

// NewDB opens the database file at dbPath in WAL mode, creating its parent
// directory when needed.
func NewDB(dbPath string) (*DB, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}
	pragmas := append([]string{"journal_mode(WAL)"}, basePragmas...)
	return open(dsn(dbPath, "", pragmas), dbPath)
}

// NewMemoryDB opens a named in-memory database shared by the reader and
// writer pools. WAL does not apply to memory databases.
func NewMemoryDB(name string) (*DB, error) {
	return open(dsn(url.PathEscape(name), "mode=memory&cache=shared", basePragmas), ":memory:"+name)
}

func dsn(file, params string, pragmas []string) string {
	parts := make([]string, 0, len(pragmas)+1)
	if params != "" {
		parts = append(parts, params)
	}
	for _, p := range pragmas {
		parts = append(parts, "_pragma="+p)
	}
	return "file:" + file + "?" + strings.Join(parts, "&")
}

func open(dsn, path string) (*DB, error) {
	writer, err := openPool(dsn, maxWriters)
	if err != nil {
		return nil, fmt.Errorf("open writer: %w", err)
	}
	reader, err := openPool(dsn, maxReaders)
	if err != nil {
		_ = writer.Close()
		return nil, fmt.Errorf("open reader: %w", err)
	}
	return &DB{Writer: writer, Reader: reader, path: path}, nil
}

func openPool(dsn string, maxConns int) (*sql.DB, error) {
	pool, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	pool.SetMaxOpenConns(maxConns)
	if err := pool.Ping(); err != nil {
		_ = pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return pool, nil
}

// Path returns the database file path.
func (db *DB) Path() string { return db.path }

// Close closes both pools and returns the first error.
func (db *DB) Close() error {
	var firstErr error
	if err := db.Reader.Close(); err != nil {
		firstErr = fmt.Errorf("close reader: %w", err)
	}
	if err := db.Writer.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("close writer: %w", err)
	}
	return firstErr
}
