package database

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := Initialize(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to initialize database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.RunMigrations(); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}
	return db
}

// TestDatabaseIntegration tests the complete database lifecycle
func TestDatabaseIntegration(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	tables := []string{"client_state", "users", "sessions", "orders", "library_entries"}
	for _, table := range tables {
		var name string
		err := db.QueryRowContext(ctx, "SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("Table %s not found: %v", table, err)
		}
	}

	t.Run("migrations are recorded once", func(t *testing.T) {
		if err := db.RunMigrations(); err != nil {
			t.Fatalf("second RunMigrations() error = %v", err)
		}
		applied, err := db.AppliedMigrations()
		if err != nil {
			t.Fatalf("AppliedMigrations() error = %v", err)
		}
		if len(applied) != 2 {
			t.Errorf("expected 2 applied migrations, got %v", applied)
		}
	})
}

func TestUpsertState(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	for _, v := range []string{`{"a":1}`, `{"a":2}`} {
		if _, err := db.ExecContext(ctx, db.Dialect.UpsertState(), "ns", "progress", v); err != nil {
			t.Fatalf("upsert failed: %v", err)
		}
	}

	var value string
	var count int
	if err := db.QueryRowContext(ctx, "SELECT entry_value FROM client_state WHERE namespace = ? AND entry_key = ?", "ns", "progress").Scan(&value); err != nil {
		t.Fatalf("select failed: %v", err)
	}
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM client_state").Scan(&count); err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if value != `{"a":2}` || count != 1 {
		t.Errorf("got value %s with %d rows, want overwrite in a single row", value, count)
	}
}

// TestDatabaseTransactions tests transaction support
func TestDatabaseTransactions(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	err := db.WithTx(ctx, func(tx *Tx) error {
		_, err := tx.ExecReturningID(ctx, "INSERT INTO users (email, password_hash) VALUES (?, ?)", "test@example.com", "hashedpass")
		return err
	})
	if err != nil {
		t.Fatalf("WithTx() commit path error = %v", err)
	}

	var count int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users WHERE email = ?", "test@example.com").Scan(&count); err != nil {
		t.Fatalf("Failed to query after commit: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected 1 user, got %d", count)
	}

	tx2, err := db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("Failed to begin second transaction: %v", err)
	}
	if _, err := tx2.ExecContext(ctx, "INSERT INTO users (email) VALUES (?)", "test2@example.com"); err != nil {
		tx2.Rollback()
		t.Fatalf("Failed to insert in second transaction: %v", err)
	}
	if err := tx2.Rollback(); err != nil {
		t.Fatalf("Failed to rollback transaction: %v", err)
	}

	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users WHERE email = ?", "test2@example.com").Scan(&count); err != nil {
		t.Fatalf("Failed to query after rollback: %v", err)
	}
	if count != 0 {
		t.Errorf("Expected 0 users after rollback, got %d", count)
	}
}

// TestConcurrentAccess tests concurrent database access
func TestConcurrentAccess(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	if _, err := db.ExecContext(ctx, db.Dialect.UpsertState(), "visitor", "bundle", "[]"); err != nil {
		t.Fatalf("Failed to seed state: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var value string
			err := db.QueryRowContext(ctx, "SELECT entry_value FROM client_state WHERE namespace = ?", "visitor").Scan(&value)
			if err != nil {
				t.Errorf("Concurrent read failed: %v", err)
				return
			}
			if value != "[]" {
				t.Errorf("Expected [], got %q", value)
			}
		}()
	}
	wg.Wait()
}
