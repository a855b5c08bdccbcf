package database

import (
	"strings"
	"testing"
	"time"
)

func TestDialects(t *testing.T) {
	tests := []struct {
		name           string
		dialect        Dialect
		driver         string
		subdir         string
		lastInsertID   bool
		resetsSequence bool
	}{
		{"SQLite", NewSQLiteDialect(), "sqlite3", "sqlite", true, false},
		{"PostgreSQL", NewPostgresDialect(), "postgres", "postgres", false, true},
		{"MySQL", NewMySQLDialect(), "mysql", "mysql", true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.dialect.DriverName(); got != tt.driver {
				t.Errorf("DriverName() = %v, want %v", got, tt.driver)
			}
			if got := tt.dialect.MigrationsSubdir(); got != tt.subdir {
				t.Errorf("MigrationsSubdir() = %v, want %v", got, tt.subdir)
			}
			if got := tt.dialect.SupportsLastInsertId(); got != tt.lastInsertID {
				t.Errorf("SupportsLastInsertId() = %v, want %v", got, tt.lastInsertID)
			}
			if got := tt.dialect.ResetSequence("users") != ""; got != tt.resetsSequence {
				t.Errorf("ResetSequence() non-empty = %v, want %v", got, tt.resetsSequence)
			}
			if tt.dialect.DefaultPool().MaxOpenConns <= 0 {
				t.Error("DefaultPool() should limit open connections")
			}
		})
	}
}

func TestRewriteQuery(t *testing.T) {
	tests := []struct {
		name     string
		dialect  Dialect
		query    string
		expected string
	}{
		{
			name:     "SQLite no change",
			dialect:  NewSQLiteDialect(),
			query:    "SELECT * FROM users WHERE id = ?",
			expected: "SELECT * FROM users WHERE id = ?",
		},
		{
			name:     "PostgreSQL single placeholder",
			dialect:  NewPostgresDialect(),
			query:    "SELECT * FROM users WHERE id = ?",
			expected: "SELECT * FROM users WHERE id = $1",
		},
		{
			name:     "PostgreSQL multiple placeholders",
			dialect:  NewPostgresDialect(),
			query:    "INSERT INTO users (name, email) VALUES (?, ?)",
			expected: "INSERT INTO users (name, email) VALUES ($1, $2)",
		},
		{
			name:     "MySQL no change",
			dialect:  NewMySQLDialect(),
			query:    "UPDATE users SET name = ?, email = ? WHERE id = ?",
			expected: "UPDATE users SET name = ?, email = ? WHERE id = ?",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.dialect.RewriteQuery(tt.query)
			if result != tt.expected {
				t.Errorf("RewriteQuery() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestPoolMerge(t *testing.T) {
	defaults := Pool{MaxOpenConns: 25, MaxIdleConns: 5, ConnMaxLifetime: 5 * time.Minute}

	got := Pool{MaxOpenConns: 4}.merge(defaults)
	want := Pool{MaxOpenConns: 4, MaxIdleConns: 5, ConnMaxLifetime: 5 * time.Minute}
	if got != want {
		t.Errorf("merge() = %+v, want %+v", got, want)
	}
	if got := (Pool{}).merge(defaults); got != defaults {
		t.Errorf("merge() of zero pool = %+v, want defaults", got)
	}
}

func TestSQLiteDSN(t *testing.T) {
	d := NewSQLiteDialect()
	dsn := d.DSN(DialectConfig{Path: "/data/guide.db"})
	for _, want := range []string{"/data/guide.db?", "_foreign_keys=on", "_journal_mode=WAL", "_busy_timeout=5000"} {
		if !strings.Contains(dsn, want) {
			t.Errorf("DSN() = %q, missing %q", dsn, want)
		}
	}
	if got := d.DSN(DialectConfig{Path: "file:guide.db?mode=ro"}); got != "file:guide.db?mode=ro" {
		t.Errorf("DSN() with explicit params = %q", got)
	}
}

func TestPostgresResetSequence(t *testing.T) {
	got := NewPostgresDialect().ResetSequence("users")
	if !strings.Contains(got, "pg_get_serial_sequence('users', 'id')") || !strings.HasSuffix(got, "FROM users") {
		t.Errorf("ResetSequence() = %q", got)
	}
}

func TestUpsertStateRewrite(t *testing.T) {
	d := NewPostgresDialect()
	got := d.RewriteQuery(d.UpsertState())
	if !strings.Contains(got, "VALUES ($1, $2, $3)") {
		t.Errorf("UpsertState() not rewritten for postgres: %s", got)
	}
	if !strings.Contains(NewMySQLDialect().UpsertState(), "ON DUPLICATE KEY UPDATE") {
		t.Error("MySQL upsert should use ON DUPLICATE KEY UPDATE")
	}
}

func TestMySQLDSNParseTime(t *testing.T) {
	d := NewMySQLDialect()
	tests := []struct {
		url  string
		want string
	}{
		{"user:pw@tcp(localhost:3306)/guide", "user:pw@tcp(localhost:3306)/guide?parseTime=true"},
		{"user:pw@tcp(localhost:3306)/guide?charset=utf8mb4", "user:pw@tcp(localhost:3306)/guide?charset=utf8mb4&parseTime=true"},
		{"user:pw@tcp(localhost:3306)/guide?parseTime=false", "user:pw@tcp(localhost:3306)/guide?parseTime=false"},
	}
	for _, tt := range tests {
		if got := d.DSN(DialectConfig{URL: tt.url}); got != tt.want {
			t.Errorf("DSN(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestDialectFor(t *testing.T) {
	for _, name := range []string{"", "sqlite", "postgresql", "mysql"} {
		if _, err := DialectFor(name); err != nil {
			t.Errorf("DialectFor(%q) error = %v", name, err)
		}
	}
	if _, err := DialectFor("oracle"); err == nil {
		t.Error("expected error for unsupported database type")
	}
}
