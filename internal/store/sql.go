package store

import (
	"context"
	"errors"

	"breakupguide/internal/repository"
)

// SQLBackend stores state rows in the client_state table
type SQLBackend struct {
	repo *repository.StateRepository
}

func NewSQLBackend(repo *repository.StateRepository) *SQLBackend {
	return &SQLBackend{repo: repo}
}

func (b *SQLBackend) Get(ctx context.Context, namespace, key string) ([]byte, error) {
	v, err := b.repo.Get(ctx, namespace, key)
	if errors.Is(err, repository.ErrStateNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return []byte(v), nil
}

func (b *SQLBackend) Set(ctx context.Context, namespace, key string, value []byte) error {
	return b.repo.Set(ctx, namespace, key, string(value))
}

func (b *SQLBackend) Delete(ctx context.Context, namespace, key string) error {
	return b.repo.Delete(ctx, namespace, key)
}
