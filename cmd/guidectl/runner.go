package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"breakupguide/internal/catalog"
	"breakupguide/internal/config"
	"breakupguide/internal/database"
	"breakupguide/internal/library"
	"breakupguide/internal/repository"
	"breakupguide/internal/service"
)

// Runner holds what the command actions share
type Runner struct {
	logger *log.Logger
	output io.Writer
}

func NewRunner(logger *log.Logger, output io.Writer) *Runner {
	if logger == nil {
		logger = log.Default()
	}
	if output == nil {
		output = os.Stdout
	}
	return &Runner{logger: logger, output: output}
}

func (r *Runner) config(cmd *cli.Command) (*config.Config, error) {
	return config.Load(cmd.String("config"))
}

func (r *Runner) openDB(cmd *cli.Command) (*database.DB, error) {
	cfg, err := r.config(cmd)
	if err != nil {
		return nil, err
	}
	db, err := database.InitializeWithConfig(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	if err := db.RunMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return db, nil
}

func (r *Runner) Migrate(ctx context.Context, cmd *cli.Command) error {
	db, err := r.openDB(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	applied, err := db.AppliedMigrations()
	if err != nil {
		return err
	}
	stats, err := service.NewBackupService(db, r.logger).Stats(ctx)
	if err != nil {
		return err
	}
	r.logger.Info("database is up to date", "migrations", len(applied),
		"users", stats.Users, "orders", stats.Orders, "library", stats.Library)
	return nil
}

func (r *Runner) BackupExport(ctx context.Context, cmd *cli.Command) error {
	db, err := r.openDB(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	outputPath := cmd.String("output")
	if outputPath == "" {
		outputPath = fmt.Sprintf("backup_%s.json", time.Now().Format("20060102_150405"))
	}
	if dir := filepath.Dir(outputPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	r.logger.Info("exporting database", "output", outputPath)
	if err := service.NewBackupService(db, r.logger).ExportFile(ctx, outputPath); err != nil {
		return fmt.Errorf("export failed: %w", err)
	}

	if info, err := os.Stat(outputPath); err == nil {
		r.logger.Info("export complete", "size_mb", fmt.Sprintf("%.2f", float64(info.Size())/1024/1024))
	}
	return nil
}

func (r *Runner) BackupImport(ctx context.Context, cmd *cli.Command) error {
	inputPath := cmd.String("input")
	if _, err := os.Stat(inputPath); err != nil {
		return fmt.Errorf("input file: %w", err)
	}

	db, err := r.openDB(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	backup := service.NewBackupService(db, r.logger)
	if cmd.Bool("clear") {
		if !cmd.Bool("yes") && !confirm("This will delete all existing data. Type 'yes' to confirm: ") {
			r.logger.Info("import cancelled")
			return nil
		}
		if err := backup.Clear(ctx); err != nil {
			return err
		}
	}

	r.logger.Info("importing database", "input", inputPath)
	if err := backup.ImportFile(ctx, inputPath); err != nil {
		return fmt.Errorf("import failed: %w", err)
	}
	return nil
}

func confirm(prompt string) bool {
	fmt.Print(prompt)
	line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	return strings.TrimSpace(line) == "yes"
}

func (r *Runner) CatalogValidate(ctx context.Context, cmd *cli.Command) error {
	dir := cmd.String("dir")
	if dir == "" {
		cfg, err := r.config(cmd)
		if err != nil {
			return err
		}
		dir = cfg.Funnel.CatalogDir
	}

	var (
		cat *catalog.Catalog
		err error
	)
	if dir == "" {
		cat, err = catalog.Default()
		dir = "(built-in)"
	} else {
		cat, err = catalog.LoadDir(dir)
	}
	if err != nil {
		return fmt.Errorf("catalog %s is invalid: %w", dir, err)
	}

	for _, ch := range cat.Chapters() {
		fmt.Fprintf(r.output, "%s\t%d questions\t%s\n", ch.ID, ch.QuestionCount(), ch.Title)
	}
	r.logger.Info("catalog is valid", "dir", dir, "chapters", len(cat.Chapters()), "books", len(cat.Books()), "freebies", len(cat.Freebies()))
	return nil
}

func (r *Runner) LibraryList(ctx context.Context, cmd *cli.Command) error {
	db, err := r.openDB(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	owner := cmd.String("owner")
	entries, err := library.NewSQLStore(db).List(ctx, owner)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		r.logger.Info("library is empty", "owner", owner)
		return nil
	}
	for _, e := range entries {
		fmt.Fprintf(r.output, "%s\t%s\t%s\t%s\n", e.PurchasedAt.Format(time.RFC3339), e.ChapterID, e.OrderID, e.BookTitle)
	}
	return nil
}

func (r *Runner) UserPromote(ctx context.Context, cmd *cli.Command) error {
	return r.setAdmin(ctx, cmd, true)
}

func (r *Runner) UserDemote(ctx context.Context, cmd *cli.Command) error {
	return r.setAdmin(ctx, cmd, false)
}

func (r *Runner) setAdmin(ctx context.Context, cmd *cli.Command, isAdmin bool) error {
	email := strings.TrimSpace(cmd.Args().First())
	if email == "" {
		return fmt.Errorf("email is required")
	}

	db, err := r.openDB(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := repository.NewUserRepository(db).SetAdmin(ctx, email, isAdmin); err != nil {
		return err
	}
	r.logger.Info("admin flag updated", "email", email, "admin", isAdmin)
	return nil
}
