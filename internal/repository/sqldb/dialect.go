package sqldb

import (
	"errors"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Driver names accepted by Open.
const (
	DriverSQLite   = "sqlite"
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
)

// dialect captures the few places where SQLite, MySQL and Postgres differ:
// placeholder syntax, row locking, DDL and how a UNIQUE violation surfaces.
type dialect struct {
	name       string
	driverName string // name registered with database/sql
	dollarArgs bool   // Postgres uses $1, $2 instead of ?
	lockClause string // appended to SELECTs that precede a write in a tx
	schema     []string
	isUnique   func(error) bool
}

func dialectFor(driver string) (dialect, error) {
	switch driver {
	case DriverSQLite, "":
		return sqliteDialect, nil
	case DriverMySQL:
		return mysqlDialect, nil
	case DriverPostgres, "pgx":
		return postgresDialect, nil
	default:
		return dialect{}, errors.New("sqldb: unsupported driver " + strconv.Quote(driver))
	}
}

// rebind rewrites ? placeholders to $n for Postgres. Queries in this package
// never contain a literal '?' so a plain scan is enough.
func (d dialect) rebind(query string) string {
	if !d.dollarArgs {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

var sqliteDialect = dialect{
	name:       DriverSQLite,
	driverName: "sqlite",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			username      TEXT NOT NULL UNIQUE,
			email         TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS notes (
			id          TEXT PRIMARY KEY,
			title       TEXT NOT NULL,
			description TEXT,
			file_url    TEXT,
			uploaded_by TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_notes_owner_created ON notes(uploaded_by, created_at)`,
	},
	isUnique: func(err error) bool {
		var se *sqlite.Error
		if !errors.As(err, &se) {
			return false
		}
		return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE ||
			se.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	},
}

var mysqlDialect = dialect{
	name:       DriverMySQL,
	driverName: "mysql",
	lockClause: " FOR UPDATE",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS users (
			id            VARCHAR(20)  NOT NULL PRIMARY KEY,
			username      VARCHAR(50)  NOT NULL UNIQUE,
			email         VARCHAR(100) NOT NULL UNIQUE,
			password_hash VARCHAR(255) NOT NULL,
			created_at    DATETIME(6)  NOT NULL
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
		`CREATE TABLE IF NOT EXISTS notes (
			id          VARCHAR(20)  NOT NULL PRIMARY KEY,
			title       VARCHAR(100) NOT NULL,
			description TEXT NULL,
			file_url    VARCHAR(255) NULL,
			uploaded_by VARCHAR(20)  NOT NULL,
			created_at  DATETIME(6)  NOT NULL,
			INDEX idx_notes_owner_created (uploaded_by, created_at),
			FOREIGN KEY (uploaded_by) REFERENCES users(id) ON DELETE CASCADE
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	},
	isUnique: func(err error) bool {
		var me *mysql.MySQLError
		return errors.As(err, &me) && me.Number == 1062 // ER_DUP_ENTRY
	},
}

var postgresDialect = dialect{
	name:       DriverPostgres,
	driverName: "pgx",
	dollarArgs: true,
	lockClause: " FOR UPDATE",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			username      VARCHAR(50)  NOT NULL UNIQUE,
			email         VARCHAR(100) NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS notes (
			id          TEXT PRIMARY KEY,
			title       VARCHAR(100) NOT NULL,
			description TEXT,
			file_url    TEXT,
			uploaded_by TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_notes_owner_created ON notes(uploaded_by, created_at)`,
	},
	isUnique: func(err error) bool {
		var pe *pgconn.PgError
		return errors.As(err, &pe) && pe.Code == "23505" // unique_violation
	},
}
