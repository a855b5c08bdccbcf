package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"

	"breakupguide/internal/database"
	"breakupguide/internal/models"
	"breakupguide/internal/repository"
)

const backupVersion = "1"

// backupTables lists every table a backup covers, children first
var backupTables = []string{"library_entries", "orders", "sessions", "client_state", "users"}

// Stats holds row counts for the tables a backup covers
type Stats struct {
	Users   int
	State   int
	Orders  int
	Library int
}

// BackupData is the JSON document written by Export and read by Import
type BackupData struct {
	Version    string                  `json:"version"`
	ExportedAt time.Time               `json:"exported_at"`
	Users      []UserBackup            `json:"users"`
	State      []repository.StateEntry `json:"client_state"`
	Orders     []OrderBackup           `json:"orders"`
	Library    []repository.OwnedEntry `json:"library"`
}

// UserBackup is a user row, including the password hash
type UserBackup struct {
	ID            int64     `json:"id"`
	Email         string    `json:"email"`
	PasswordHash  string    `json:"password_hash"`
	Name          string    `json:"name"`
	OAuthProvider string    `json:"oauth_provider"`
	OAuthSubject  string    `json:"oauth_subject"`
	IsAdmin       bool      `json:"is_admin"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// OrderBackup is an order row
type OrderBackup struct {
	ID          string             `json:"id"`
	Provider    string             `json:"provider"`
	Owner       string             `json:"owner"`
	VisitorID   string             `json:"visitor_id"`
	Kind        models.OrderKind   `json:"kind"`
	ChapterID   string             `json:"chapter_id"`
	Items       []models.Item      `json:"items"`
	AmountCents int64              `json:"amount_cents"`
	Currency    string             `json:"currency"`
	Description string             `json:"description"`
	Status      models.OrderStatus `json:"status"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

// BackupService dumps and restores all persistent data as JSON
type BackupService struct {
	db     *database.DB
	logger *log.Logger
}

func NewBackupService(db *database.DB, logger *log.Logger) *BackupService {
	if logger == nil {
		logger = log.Default()
	}
	return &BackupService{db: db, logger: logger.With("component", "backup")}
}

// Snapshot reads every table into a BackupData
func (s *BackupService) Snapshot(ctx context.Context) (*BackupData, error) {
	backup := &BackupData{Version: backupVersion, ExportedAt: time.Now().UTC()}

	users, err := repository.NewUserRepository(s.db).GetAllUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to export users: %w", err)
	}
	for _, u := range users {
		backup.Users = append(backup.Users, UserBackup{
			ID: u.ID, Email: u.Email, PasswordHash: u.PasswordHash, Name: u.Name,
			OAuthProvider: u.OAuthProvider, OAuthSubject: u.OAuthSubject, IsAdmin: u.IsAdmin,
			CreatedAt: u.CreatedAt, UpdatedAt: u.UpdatedAt,
		})
	}

	if backup.State, err = repository.NewStateRepository(s.db).All(ctx); err != nil {
		return nil, fmt.Errorf("failed to export client state: %w", err)
	}

	orders, err := repository.NewOrderRepository(s.db).All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to export orders: %w", err)
	}
	for _, o := range orders {
		backup.Orders = append(backup.Orders, OrderBackup{
			ID: o.ID, Provider: o.Provider, Owner: o.Owner, VisitorID: o.VisitorID, Kind: o.Kind,
			ChapterID: o.ChapterID, Items: o.Items, AmountCents: o.AmountCents, Currency: o.Currency,
			Description: o.Description, Status: o.Status, CreatedAt: o.CreatedAt, UpdatedAt: o.UpdatedAt,
		})
	}

	if backup.Library, err = repository.NewLibraryRepository(s.db).All(ctx); err != nil {
		return nil, fmt.Errorf("failed to export library: %w", err)
	}
	return backup, nil
}

// Export writes the backup as indented JSON to w
func (s *BackupService) Export(ctx context.Context, w io.Writer) (*BackupData, error) {
	backup, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(backup); err != nil {
		return nil, fmt.Errorf("failed to encode backup: %w", err)
	}
	s.logger.Info("database exported",
		"users", len(backup.Users), "state", len(backup.State), "orders", len(backup.Orders), "library", len(backup.Library))
	return backup, nil
}

// ExportFile writes the backup to outputPath
func (s *BackupService) ExportFile(ctx context.Context, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer file.Close()

	if _, err := s.Export(ctx, file); err != nil {
		return err
	}
	return file.Close()
}

// Import restores a backup read from r into an empty database. Everything
// is written in one transaction.
func (s *BackupService) Import(ctx context.Context, r io.Reader) error {
	var backup BackupData
	if err := json.NewDecoder(r).Decode(&backup); err != nil {
		return fmt.Errorf("failed to decode backup: %w", err)
	}
	if backup.Version != backupVersion {
		return fmt.Errorf("unsupported backup version %q", backup.Version)
	}
	s.logger.Info("importing backup", "exported_at", backup.ExportedAt)

	err := s.db.WithTx(ctx, func(tx *database.Tx) error {
		users := repository.NewUserRepository(tx)
		for _, u := range backup.Users {
			err := users.RestoreUser(ctx, models.User{
				ID: u.ID, Email: u.Email, PasswordHash: u.PasswordHash, Name: u.Name,
				OAuthProvider: u.OAuthProvider, OAuthSubject: u.OAuthSubject, IsAdmin: u.IsAdmin,
				CreatedAt: u.CreatedAt, UpdatedAt: u.UpdatedAt,
			})
			if err != nil {
				return err
			}
		}
		if err := resetUserSequence(ctx, tx); err != nil {
			return err
		}

		state := repository.NewStateRepository(tx)
		for _, e := range backup.State {
			if err := state.Set(ctx, e.Namespace, e.Key, e.Value); err != nil {
				return fmt.Errorf("failed to import state %s/%s: %w", e.Namespace, e.Key, err)
			}
		}

		orders := repository.NewOrderRepository(tx)
		for _, o := range backup.Orders {
			err := orders.Create(ctx, &models.Order{
				ID: o.ID, Provider: o.Provider, Owner: o.Owner, VisitorID: o.VisitorID, Kind: o.Kind,
				ChapterID: o.ChapterID, Items: o.Items, AmountCents: o.AmountCents, Currency: o.Currency,
				Description: o.Description, Status: o.Status, CreatedAt: o.CreatedAt, UpdatedAt: o.UpdatedAt,
			})
			if err != nil {
				return fmt.Errorf("failed to import order %s: %w", o.ID, err)
			}
		}

		library := repository.NewLibraryRepository(tx)
		for _, e := range backup.Library {
			if err := library.Insert(ctx, e.Owner, []models.LibraryEntry{e.Entry}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("database import completed",
		"users", len(backup.Users), "state", len(backup.State), "orders", len(backup.Orders), "library", len(backup.Library))
	return nil
}

// ImportFile restores the backup stored at inputPath
func (s *BackupService) ImportFile(ctx context.Context, inputPath string) error {
	file, err := os.Open(inputPath)
	if err != nil {
		return fmt.Errorf("failed to open input file: %w", err)
	}
	defer file.Close()
	return s.Import(ctx, file)
}

// Stats counts the rows in each backed-up table
func (s *BackupService) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}
	counts := []struct {
		table string
		dest  *int
	}{
		{"users", &stats.Users},
		{"client_state", &stats.State},
		{"orders", &stats.Orders},
		{"library_entries", &stats.Library},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+c.table).Scan(c.dest); err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", c.table, err)
		}
	}
	return stats, nil
}

// Clear deletes every row a backup covers so Import can run on a clean
// database. Sessions are removed too, signing everyone out.
func (s *BackupService) Clear(ctx context.Context) error {
	err := s.db.WithTx(ctx, func(tx *database.Tx) error {
		for _, table := range backupTables {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return fmt.Errorf("failed to clear table %s: %w", table, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Warn("database cleared", "tables", backupTables)
	return nil
}

// resetUserSequence moves the user id sequence past restored IDs
func resetUserSequence(ctx context.Context, tx *database.Tx) error {
	query := tx.GetDialect().ResetSequence("users")
	if query == "" {
		return nil
	}
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to reset user id sequence: %w", err)
	}
	return nil
}
