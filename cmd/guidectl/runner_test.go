package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"breakupguide/internal/database"
	"breakupguide/internal/library"
	"breakupguide/internal/models"
	"breakupguide/internal/repository"
)

type cliEnv struct {
	dir     string
	dbPath  string
	cfgPath string
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	t.Setenv("DB_TYPE", "")
	t.Setenv("DB_PATH", "")

	dir := t.TempDir()
	env := &cliEnv{
		dir:     dir,
		dbPath:  filepath.Join(dir, "guide.db"),
		cfgPath: filepath.Join(dir, "config.toml"),
	}
	cfg := "[database]\ntype = \"sqlite\"\npath = \"" + filepath.ToSlash(env.dbPath) + "\"\n"
	if err := os.WriteFile(env.cfgPath, []byte(cfg), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return env
}

func (e *cliEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := newApp(NewRunner(log.New(io.Discard), &out))
	err := app.Run(context.Background(), append([]string{"guidectl", "--config", e.cfgPath}, args...))
	return out.String(), err
}

func (e *cliEnv) seed(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	db, err := database.Initialize(e.dbPath)
	if err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	defer db.Close()
	if err := db.RunMigrations(); err != nil {
		t.Fatalf("RunMigrations() error = %v", err)
	}

	if _, err := repository.NewUserRepository(db).CreateUser(ctx, "sam@example.com", "hash", "Sam"); err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	if _, err := repository.NewUserRepository(db).CreateUser(ctx, "alex@example.com", "hash", "Alex"); err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	entry := models.LibraryEntry{
		ID:          "entry-1",
		BookTitle:   "The No Contact Rule",
		ChapterID:   "1",
		VideoURL:    "https://www.youtube.com/watch?v=abc123",
		PurchasedAt: time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC),
		OrderID:     "order-1",
	}
	if err := library.NewSQLStore(db).Append(ctx, "user:1", []models.LibraryEntry{entry}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
}

func TestMigrate(t *testing.T) {
	env := newCLIEnv(t)
	if _, err := env.run(t, "migrate"); err != nil {
		t.Fatalf("migrate error = %v", err)
	}
	if _, err := os.Stat(env.dbPath); err != nil {
		t.Errorf("database file not created: %v", err)
	}
}

func TestCatalogValidate(t *testing.T) {
	env := newCLIEnv(t)

	out, err := env.run(t, "catalog", "validate")
	if err != nil {
		t.Fatalf("catalog validate error = %v", err)
	}
	if !strings.Contains(out, "Making Sense Of It") {
		t.Errorf("output should list the built-in chapters, got %q", out)
	}

	if _, err := env.run(t, "catalog", "validate", "--dir", filepath.Join(env.dir, "missing")); err == nil {
		t.Error("validating a missing directory should fail")
	}
}

func TestLibraryList(t *testing.T) {
	env := newCLIEnv(t)
	env.seed(t)

	out, err := env.run(t, "library", "list", "--owner", "user:1")
	if err != nil {
		t.Fatalf("library list error = %v", err)
	}
	if !strings.Contains(out, "The No Contact Rule") || !strings.Contains(out, "order-1") {
		t.Errorf("library list output = %q", out)
	}

	if _, err := env.run(t, "library", "list"); err == nil {
		t.Error("library list without --owner should fail")
	}
}

func TestBackupRoundTrip(t *testing.T) {
	env := newCLIEnv(t)
	env.seed(t)

	backupPath := filepath.Join(env.dir, "backups", "guide.json")
	if _, err := env.run(t, "backup", "export", "--output", backupPath); err != nil {
		t.Fatalf("backup export error = %v", err)
	}
	data, err := os.ReadFile(backupPath)
	if err != nil {
		t.Fatalf("reading backup: %v", err)
	}
	if !strings.Contains(string(data), "alex@example.com") {
		t.Fatalf("backup missing users")
	}

	if _, err := env.run(t, "backup", "import", "--input", backupPath, "--clear", "--yes"); err != nil {
		t.Fatalf("backup import error = %v", err)
	}

	out, err := env.run(t, "library", "list", "--owner", "user:1")
	if err != nil || !strings.Contains(out, "The No Contact Rule") {
		t.Errorf("library after import = %q, %v", out, err)
	}

	if _, err := env.run(t, "backup", "import", "--input", filepath.Join(env.dir, "nope.json")); err == nil {
		t.Error("importing a missing file should fail")
	}
}

func TestUserPromote(t *testing.T) {
	env := newCLIEnv(t)
	env.seed(t)

	if _, err := env.run(t, "user", "promote", "alex@example.com"); err != nil {
		t.Fatalf("user promote error = %v", err)
	}

	db, err := database.Initialize(env.dbPath)
	if err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	defer db.Close()
	u, err := repository.NewUserRepository(db).GetUserByEmail(context.Background(), "alex@example.com")
	if err != nil || u == nil || !u.IsAdmin {
		t.Errorf("after promote user = %+v, %v", u, err)
	}

	if _, err := env.run(t, "user", "promote"); err == nil {
		t.Error("promote without an email should fail")
	}
	if _, err := env.run(t, "user", "demote", "nobody@example.com"); err == nil {
		t.Error("demoting an unknown account should fail")
	}
}
