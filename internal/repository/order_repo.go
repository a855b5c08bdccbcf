package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"breakupguide/internal/database"
	"breakupguide/internal/models"
)

// ErrOrderNotFound is returned when no order has the requested ID
var ErrOrderNotFound = errors.New("order not found")

// OrderRepository persists payment orders and the item snapshot they grant
type OrderRepository struct {
	db database.DBTX
}

func NewOrderRepository(db database.DBTX) *OrderRepository {
	return &OrderRepository{db: db}
}

// WithTx returns a repository bound to tx
func (r *OrderRepository) WithTx(tx *database.Tx) *OrderRepository {
	return &OrderRepository{db: tx}
}

// Create inserts a new order
func (r *OrderRepository) Create(ctx context.Context, o *models.Order) error {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("failed to encode order items: %w", err)
	}
	now := time.Now().UTC()
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now
	}
	o.UpdatedAt = now

	query := `
		INSERT INTO orders (id, provider, owner, visitor_id, kind, chapter_id, items, amount_cents, currency, description, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.ExecContext(ctx, query,
		o.ID, o.Provider, o.Owner, o.VisitorID, string(o.Kind), o.ChapterID, string(items),
		o.AmountCents, o.Currency, o.Description, string(o.Status), o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}
	return nil
}

// Get retrieves an order by its processor ID
func (r *OrderRepository) Get(ctx context.Context, id string) (*models.Order, error) {
	query := `
		SELECT id, provider, owner, visitor_id, kind, chapter_id, items, amount_cents, currency, description, status, created_at, updated_at
		FROM orders
		WHERE id = ?
	`
	o, err := scanOrder(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return o, nil
}

// ListByOwner returns an owner's orders, newest first
func (r *OrderRepository) ListByOwner(ctx context.Context, owner string) ([]models.Order, error) {
	query := `
		SELECT id, provider, owner, visitor_id, kind, chapter_id, items, amount_cents, currency, description, status, created_at, updated_at
		FROM orders
		WHERE owner = ?
		ORDER BY created_at DESC
	`
	return r.list(ctx, query, owner)
}

// All returns every order, used by backup export
func (r *OrderRepository) All(ctx context.Context) ([]models.Order, error) {
	query := `
		SELECT id, provider, owner, visitor_id, kind, chapter_id, items, amount_cents, currency, description, status, created_at, updated_at
		FROM orders
		ORDER BY created_at
	`
	return r.list(ctx, query)
}

func (r *OrderRepository) list(ctx context.Context, query string, args ...any) ([]models.Order, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, *o)
	}
	return orders, rows.Err()
}

// UpdateStatus moves an order to a new status
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, status models.OrderStatus) error {
	query := `UPDATE orders SET status = ?, updated_at = ? WHERE id = ?`
	result, err := r.db.ExecContext(ctx, query, string(status), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update order: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func scanOrder(row rowScanner) (*models.Order, error) {
	var (
		o      models.Order
		kind   string
		status string
		items  string
	)
	err := row.Scan(
		&o.ID, &o.Provider, &o.Owner, &o.VisitorID, &kind, &o.ChapterID, &items,
		&o.AmountCents, &o.Currency, &o.Description, &status, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	o.Kind = models.OrderKind(kind)
	o.Status = models.OrderStatus(status)
	if err := json.Unmarshal([]byte(items), &o.Items); err != nil {
		return nil, fmt.Errorf("order %s has corrupt items: %w", o.ID, err)
	}
	return &o, nil
}
