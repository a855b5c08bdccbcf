package repository

import (
	"context"
	"fmt"

	"breakupguide/internal/database"
	"breakupguide/internal/models"
)

// LibraryRepository stores purchased library entries
type LibraryRepository struct {
	db database.DBTX
}

func NewLibraryRepository(db database.DBTX) *LibraryRepository {
	return &LibraryRepository{db: db}
}

// WithTx returns a repository bound to tx
func (r *LibraryRepository) WithTx(tx *database.Tx) *LibraryRepository {
	return &LibraryRepository{db: tx}
}

// Insert appends entries for owner
func (r *LibraryRepository) Insert(ctx context.Context, owner string, entries []models.LibraryEntry) error {
	query := `
		INSERT INTO library_entries (id, owner, order_id, book_title, chapter_id, video_url, thumbnail, purchased_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	for _, e := range entries {
		_, err := r.db.ExecContext(ctx, query, e.ID, owner, e.OrderID, e.BookTitle, e.ChapterID, e.VideoURL, e.Thumbnail, e.PurchasedAt)
		if err != nil {
			return fmt.Errorf("failed to insert library entry: %w", err)
		}
	}
	return nil
}

// ListByOwner returns an owner's entries in purchase order
func (r *LibraryRepository) ListByOwner(ctx context.Context, owner string) ([]models.LibraryEntry, error) {
	query := `
		SELECT id, order_id, book_title, chapter_id, video_url, thumbnail, purchased_at
		FROM library_entries
		WHERE owner = ?
		ORDER BY purchased_at, id
	`
	rows, err := r.db.QueryContext(ctx, query, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to query library: %w", err)
	}
	defer rows.Close()

	var entries []models.LibraryEntry
	for rows.Next() {
		var e models.LibraryEntry
		if err := rows.Scan(&e.ID, &e.OrderID, &e.BookTitle, &e.ChapterID, &e.VideoURL, &e.Thumbnail, &e.PurchasedAt); err != nil {
			return nil, fmt.Errorf("failed to scan library entry: %w", err)
		}
		e.PurchasedAt = e.PurchasedAt.UTC()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// HasOrder reports whether entries for orderID were already recorded
func (r *LibraryRepository) HasOrder(ctx context.Context, owner, orderID string) (bool, error) {
	var count int
	query := `SELECT COUNT(*) FROM library_entries WHERE owner = ? AND order_id = ?`
	if err := r.db.QueryRowContext(ctx, query, owner, orderID).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check library order: %w", err)
	}
	return count > 0, nil
}

// OwnedEntry pairs an entry with its owner for backups
type OwnedEntry struct {
	Owner string              `json:"owner"`
	Entry models.LibraryEntry `json:"entry"`
}

// All returns every library entry, used by backup export
func (r *LibraryRepository) All(ctx context.Context) ([]OwnedEntry, error) {
	query := `
		SELECT owner, id, order_id, book_title, chapter_id, video_url, thumbnail, purchased_at
		FROM library_entries
		ORDER BY owner, purchased_at, id
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query library: %w", err)
	}
	defer rows.Close()

	var out []OwnedEntry
	for rows.Next() {
		var oe OwnedEntry
		e := &oe.Entry
		if err := rows.Scan(&oe.Owner, &e.ID, &e.OrderID, &e.BookTitle, &e.ChapterID, &e.VideoURL, &e.Thumbnail, &e.PurchasedAt); err != nil {
			return nil, fmt.Errorf("failed to scan library entry: %w", err)
		}
		e.PurchasedAt = e.PurchasedAt.UTC()
		out = append(out, oe)
	}
	return out, rows.Err()
}
