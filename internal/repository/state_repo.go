package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"breakupguide/internal/database"
)

// ErrStateNotFound is returned when a namespace has no value for a key
var ErrStateNotFound = errors.New("state entry not found")

// StateEntry is one stored client state value
type StateEntry struct {
	Namespace string `json:"namespace"`
	Key       string `json:"key"`
	Value     string `json:"value"`
}

// StateRepository stores per-visitor JSON blobs in the client_state table
type StateRepository struct {
	db database.DBTX
}

func NewStateRepository(db database.DBTX) *StateRepository {
	return &StateRepository{db: db}
}

// Get retrieves the raw value stored under namespace/key
func (r *StateRepository) Get(ctx context.Context, namespace, key string) (string, error) {
	var value string
	query := `SELECT entry_value FROM client_state WHERE namespace = ? AND entry_key = ?`
	err := r.db.QueryRowContext(ctx, query, namespace, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrStateNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get state %s: %w", key, err)
	}
	return value, nil
}

// Set updates or inserts a value
func (r *StateRepository) Set(ctx context.Context, namespace, key, value string) error {
	query := r.db.GetDialect().UpsertState()
	if _, err := r.db.ExecContext(ctx, query, namespace, key, value); err != nil {
		return fmt.Errorf("failed to set state %s: %w", key, err)
	}
	return nil
}

// Delete removes a value. Deleting a missing key is not an error.
func (r *StateRepository) Delete(ctx context.Context, namespace, key string) error {
	query := `DELETE FROM client_state WHERE namespace = ? AND entry_key = ?`
	if _, err := r.db.ExecContext(ctx, query, namespace, key); err != nil {
		return fmt.Errorf("failed to delete state %s: %w", key, err)
	}
	return nil
}

// All returns every stored entry, used by backup export
func (r *StateRepository) All(ctx context.Context) ([]StateEntry, error) {
	query := `SELECT namespace, entry_key, entry_value FROM client_state ORDER BY namespace, entry_key`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query state: %w", err)
	}
	defer rows.Close()

	var entries []StateEntry
	for rows.Next() {
		var e StateEntry
		if err := rows.Scan(&e.Namespace, &e.Key, &e.Value); err != nil {
			return nil, fmt.Errorf("failed to scan state: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
