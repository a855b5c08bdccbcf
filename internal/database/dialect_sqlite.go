package database

import (
	"net/url"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// sqliteParams are applied on every pooled connection. WAL lets the SSE
// readers and checkout writers overlap; busy_timeout covers the rest.
var sqliteParams = url.Values{
	"_foreign_keys": {"on"},
	"_journal_mode": {"WAL"},
	"_busy_timeout": {"5000"},
}

// SQLiteDialect implements Dialect for SQLite
type SQLiteDialect struct{}

func NewSQLiteDialect() *SQLiteDialect {
	return &SQLiteDialect{}
}

func (d *SQLiteDialect) DriverName() string {
	return "sqlite3"
}

// DSN appends the connection parameters unless the path already carries its own
func (d *SQLiteDialect) DSN(config DialectConfig) string {
	if strings.Contains(config.Path, "?") {
		return config.Path
	}
	return config.Path + "?" + sqliteParams.Encode()
}

func (d *SQLiteDialect) RewriteQuery(query string) string {
	return query
}

func (d *SQLiteDialect) SupportsLastInsertId() bool {
	return true
}

func (d *SQLiteDialect) DefaultPool() Pool {
	// Local file handles need no recycling
	return Pool{MaxOpenConns: 10, MaxIdleConns: 5}
}

func (d *SQLiteDialect) MigrationsSubdir() string {
	return "sqlite"
}

func (d *SQLiteDialect) CreateMigrationsTableQuery() string {
	return `
		CREATE TABLE IF NOT EXISTS migrations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			filename TEXT UNIQUE NOT NULL,
			executed_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);
	`
}

func (d *SQLiteDialect) UpsertState() string {
	return "INSERT INTO client_state (namespace, entry_key, entry_value) VALUES (?, ?, ?) " +
		"ON CONFLICT (namespace, entry_key) DO UPDATE SET entry_value = excluded.entry_value, updated_at = CURRENT_TIMESTAMP"
}

// ResetSequence is a no-op: AUTOINCREMENT already continues past explicit ids
func (d *SQLiteDialect) ResetSequence(table string) string {
	return ""
}
