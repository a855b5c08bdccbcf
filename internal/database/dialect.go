package database

import (
	"database/sql"
	"regexp"
	"strconv"
	"time"
)

// Dialect hides the differences between the supported SQL engines
type Dialect interface {
	// DriverName returns the driver name for sql.Open
	DriverName() string

	// DSN returns the data source name for the connection
	DSN(config DialectConfig) string

	// RewriteQuery converts ? placeholders when the engine needs another syntax
	RewriteQuery(query string) string

	// SupportsLastInsertId reports whether sql.Result.LastInsertId works
	SupportsLastInsertId() bool

	// DefaultPool returns the pool limits used for settings the config leaves at zero
	DefaultPool() Pool

	MigrationsSubdir() string
	CreateMigrationsTableQuery() string

	// UpsertState returns the statement that writes one client_state row,
	// taking (namespace, entry_key, entry_value) as arguments
	UpsertState() string

	// ResetSequence returns the statement that moves table's id sequence past
	// its highest id after rows were inserted with explicit ids. Empty when
	// the engine needs no reset.
	ResetSequence(table string) string
}

// Pool holds connection pool limits
type Pool struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// merge fills zero fields of p from defaults
func (p Pool) merge(defaults Pool) Pool {
	if p.MaxOpenConns <= 0 {
		p.MaxOpenConns = defaults.MaxOpenConns
	}
	if p.MaxIdleConns <= 0 {
		p.MaxIdleConns = defaults.MaxIdleConns
	}
	if p.ConnMaxLifetime <= 0 {
		p.ConnMaxLifetime = defaults.ConnMaxLifetime
	}
	return p
}

func (p Pool) apply(db *sql.DB) {
	db.SetMaxOpenConns(p.MaxOpenConns)
	db.SetMaxIdleConns(p.MaxIdleConns)
	db.SetConnMaxLifetime(p.ConnMaxLifetime)
}

// DialectConfig holds configuration for database connection
type DialectConfig struct {
	// SQLite file
	Path string

	// PostgreSQL/MySQL connection string
	URL string

	Pool Pool
}

// serverPool suits the networked engines
var serverPool = Pool{MaxOpenConns: 25, MaxIdleConns: 5, ConnMaxLifetime: 5 * time.Minute}

var placeholderRegexp = regexp.MustCompile(`\?`)

// rewritePlaceholdersToNumbered converts ? placeholders to $1, $2, etc.
func rewritePlaceholdersToNumbered(query string) string {
	counter := 0
	return placeholderRegexp.ReplaceAllStringFunc(query, func(match string) string {
		counter++
		return "$" + strconv.Itoa(counter)
	})
}
