// Package sqlengine is a local, SQLite-backed implementation of the engine
// interface. It serves the CLI's local mode and integration-style tests.
//
// Addresses take the form "sqlite:DIR". Each database in the catalog is one
// SQLite file DIR/<name>.db, opened with WAL mode and a single-writer pool.
package sqlengine

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/kestrelgraph/kestrel-go/internal/engine"
)

// Scheme is the address scheme this transport registers under.
const Scheme = "sqlite"

func init() {
	engine.Register(Scheme, dial)
}

func dial(_ context.Context, address string, _ engine.Credentials, _ engine.ConnectionOptions) (engine.Connection, error) {
	dir := strings.TrimPrefix(address, Scheme+":")
	if dir == "" {
		return nil, fmt.Errorf("sqlengine: address %q has no directory", address)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("sqlengine: create data directory: %w", err)
	}
	return &Connection{dir: dir, open: true, pools: make(map[string]*sql.DB)}, nil
}

// Connection is an open session against a directory of SQLite databases.
type Connection struct {
	dir string

	mu    sync.Mutex
	open  bool
	pools map[string]*sql.DB
}

// IsOpen implements engine.Connection.
func (c *Connection) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

// Close implements engine.Connection. Closes every cached pool.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.open {
		return nil
	}
	c.open = false
	var firstErr error
	for name, db := range c.pools {
		if err := db.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close pool %q: %w", name, err)
		}
		delete(c.pools, name)
	}
	return firstErr
}

// Databases implements engine.Connection.
func (c *Connection) Databases() engine.DatabaseManager {
	return &manager{conn: c}
}

// Transaction implements engine.Connection.
func (c *Connection) Transaction(ctx context.Context, database string, typ engine.TransactionType, opts engine.TransactionOptions) (engine.Transaction, error) {
	db, err := c.pool(database, false)
	if err != nil {
		return nil, err
	}
	return beginTxn(ctx, db, typ, opts)
}

func (c *Connection) path(name string) string {
	return filepath.Join(c.dir, name+".db")
}

// pool returns the connection pool for a database, opening and caching it.
// With create false, the database file must already exist.
func (c *Connection) pool(name string, create bool) (*sql.DB, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.open {
		return nil, fmt.Errorf("sqlengine: connection is closed")
	}
	if db, ok := c.pools[name]; ok {
		return db, nil
	}
	path := c.path(name)
	if !create {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("sqlengine: database %q does not exist", name)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("sqlengine: open database %q: %w", name, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlengine: connect to database %q: %w", name, err)
	}

	// SQLite only supports one writer at a time; a single-connection pool
	// avoids SQLITE_BUSY under concurrent use.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlengine: configure database %q: %w", name, err)
	}

	c.pools[name] = db
	return db, nil
}

// dropPool closes and forgets the cached pool for a database, if any.
func (c *Connection) dropPool(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	db, ok := c.pools[name]
	if !ok {
		return nil
	}
	delete(c.pools, name)
	return db.Close()
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %q: %w", pragma, err)
		}
	}
	return nil
}

// manager administers the catalog directory.
type manager struct {
	conn *Connection
}

// All lists database names, sorted.
func (m *manager) All(context.Context) ([]string, error) {
	entries, err := os.ReadDir(m.conn.dir)
	if err != nil {
		return nil, fmt.Errorf("sqlengine: list databases: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".db") {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ".db"))
	}
	sort.Strings(names)
	return names, nil
}

// Create makes a new database. Fails if it already exists.
func (m *manager) Create(_ context.Context, name string) error {
	if err := validateName(name); err != nil {
		return err
	}
	if _, err := os.Stat(m.conn.path(name)); err == nil {
		return fmt.Errorf("sqlengine: database %q already exists", name)
	}
	_, err := m.conn.pool(name, true)
	return err
}

// Contains reports whether a database exists.
func (m *manager) Contains(_ context.Context, name string) (bool, error) {
	_, err := os.Stat(m.conn.path(name))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("sqlengine: check database %q: %w", name, err)
}

// Schema returns the database's DDL: every CREATE statement recorded in
// sqlite_master, joined with ";\n".
func (m *manager) Schema(ctx context.Context, name string) (string, error) {
	db, err := m.conn.pool(name, false)
	if err != nil {
		return "", err
	}
	rows, err := db.QueryContext(ctx,
		"SELECT sql FROM sqlite_master WHERE sql IS NOT NULL ORDER BY rootpage")
	if err != nil {
		return "", fmt.Errorf("sqlengine: read schema of %q: %w", name, err)
	}
	defer rows.Close()

	var stmts []string
	for rows.Next() {
		var stmt string
		if err := rows.Scan(&stmt); err != nil {
			return "", fmt.Errorf("sqlengine: scan schema row: %w", err)
		}
		stmts = append(stmts, stmt)
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("sqlengine: read schema of %q: %w", name, err)
	}
	if len(stmts) == 0 {
		return "", nil
	}
	return strings.Join(stmts, ";\n") + ";", nil
}

// Delete removes a database and its WAL sidecar files.
func (m *manager) Delete(_ context.Context, name string) error {
	exists, err := m.Contains(context.Background(), name)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("sqlengine: database %q does not exist", name)
	}
	if err := m.conn.dropPool(name); err != nil {
		return fmt.Errorf("sqlengine: close database %q: %w", name, err)
	}
	path := m.conn.path(name)
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("sqlengine: delete database %q: %w", name, err)
	}
	// WAL sidecars may or may not exist.
	os.Remove(path + "-wal")
	os.Remove(path + "-shm")
	return nil
}

func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("sqlengine: database name is empty")
	}
	if strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return fmt.Errorf("sqlengine: invalid database name %q", name)
	}
	return nil
}
