// Package sqldb implements the repository interfaces on database/sql.
//
// Three drivers are supported and picked at startup:
//   - sqlite   (modernc.org/sqlite, pure Go; the default, also used by tests with ":memory:")
//   - mysql    (github.com/go-sql-driver/mysql)
//   - postgres (github.com/jackc/pgx/v5/stdlib)
//
// All SQL is written with ? placeholders and rebound per dialect.
package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	// Drivers register themselves with database/sql in init().
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Config selects the driver and connection string.
type Config struct {
	Driver string // sqlite, mysql or postgres
	DSN    string // file path for sqlite, driver DSN otherwise
}

// DB wraps a sql.DB connection pool. Users and Notes return the repository
// views that share it.
type DB struct {
	conn *sql.DB
	d    dialect
}

// UserStore implements repository.UserRepository.
type UserStore struct {
	db *DB
}

// NoteStore implements repository.NoteRepository.
type NoteStore struct {
	db *DB
}

func (db *DB) Users() *UserStore {
	return &UserStore{db: db}
}

func (db *DB) Notes() *NoteStore {
	return &NoteStore{db: db}
}

// New opens the pool, verifies it with a ping and runs migrations.
func New(ctx context.Context, cfg Config) (*DB, error) {
	db, err := Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if err := db.migrate(ctx); err != nil {
		db.conn.Close()
		return nil, fmt.Errorf("sqldb: running migrations: %w", err)
	}

	return db, nil
}

// Open connects and pings without touching the schema. The site binary uses
// it as a connectivity check.
func Open(ctx context.Context, cfg Config) (*DB, error) {
	d, err := dialectFor(cfg.Driver)
	if err != nil {
		return nil, err
	}

	dsn := cfg.DSN
	if d.name == DriverMySQL {
		// time.Time columns need parseTime; pin the session to UTC.
		mc, err := mysql.ParseDSN(dsn)
		if err != nil {
			return nil, fmt.Errorf("sqldb: parsing mysql DSN: %w", err)
		}
		mc.ParseTime = true
		mc.Loc = time.UTC
		dsn = mc.FormatDSN()
	}

	if d.name == DriverSQLite && dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
		// the driver creates the file but not its directory
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, fmt.Errorf("sqldb: creating database directory: %w", err)
		}
	}

	conn, err := sql.Open(d.driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("sqldb: opening %s database: %w", d.name, err)
	}

	if d.name == DriverSQLite {
		// One connection: SQLite allows a single writer, and every
		// connection to ":memory:" would otherwise be a separate database.
		conn.SetMaxOpenConns(1)
	}

	db := &DB{conn: conn, d: d}
	if err := db.Ping(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqldb: pinging %s database: %w", d.name, err)
	}

	if d.name == DriverSQLite {
		for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA foreign_keys=ON"} {
			if _, err := conn.ExecContext(ctx, pragma); err != nil {
				conn.Close()
				return nil, fmt.Errorf("sqldb: %s: %w", pragma, err)
			}
		}
	}

	return db, nil
}

// newWithConn wraps an existing pool; tests use it with go-sqlmock.
func newWithConn(conn *sql.DB, driver string) (*DB, error) {
	d, err := dialectFor(driver)
	if err != nil {
		return nil, err
	}
	return &DB{conn: conn, d: d}, nil
}

// Ping checks that the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Driver returns the dialect name (sqlite, mysql or postgres).
func (db *DB) Driver() string {
	return db.d.name
}

// Close closes the connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates the tables if they do not exist. Every statement is
// idempotent, so it runs on every start.
func (db *DB) migrate(ctx context.Context) error {
	for _, stmt := range db.d.schema {
		if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("applying schema: %w", err)
		}
	}
	return nil
}

// withTx runs fn inside a transaction, committing on nil and rolling back
// otherwise.
func (db *DB) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqldb: beginning transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqldb: committing transaction: %w", err)
	}
	return nil
}

// now is the timestamp stored for new rows. Microsecond precision is the
// finest all three databases keep, so a created row reads back unchanged.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
