// Package library records purchased titles and serves them back to their owner.
package library

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"

	"breakupguide/internal/database"
	"breakupguide/internal/models"
	"breakupguide/internal/repository"
	"breakupguide/internal/store"
)

var ErrEntryNotFound = errors.New("library entry not found")

// Store persists library entries per owner. Append must be idempotent on
// the entries' order ID: appending an order that is already recorded is a no-op.
type Store interface {
	Append(ctx context.Context, owner string, entries []models.LibraryEntry) error
	List(ctx context.Context, owner string) ([]models.LibraryEntry, error)
	HasOrder(ctx context.Context, owner, orderID string) (bool, error)
}

// SQLStore keeps entries in the library_entries table
type SQLStore struct {
	db   *database.DB
	repo *repository.LibraryRepository
}

func NewSQLStore(db *database.DB) *SQLStore {
	return &SQLStore{db: db, repo: repository.NewLibraryRepository(db)}
}

// Append writes all entries in one transaction
func (s *SQLStore) Append(ctx context.Context, owner string, entries []models.LibraryEntry) error {
	return s.db.WithTx(ctx, func(tx *database.Tx) error {
		repo := s.repo.WithTx(tx)
		pending, err := skipRecorded(ctx, repo, owner, entries)
		if err != nil {
			return err
		}
		return repo.Insert(ctx, owner, pending)
	})
}

func (s *SQLStore) List(ctx context.Context, owner string) ([]models.LibraryEntry, error) {
	return s.repo.ListByOwner(ctx, owner)
}

func (s *SQLStore) HasOrder(ctx context.Context, owner, orderID string) (bool, error) {
	return s.repo.HasOrder(ctx, owner, orderID)
}

type orderChecker interface {
	HasOrder(ctx context.Context, owner, orderID string) (bool, error)
}

// skipRecorded drops entries whose order is already in the library
func skipRecorded(ctx context.Context, s orderChecker, owner string, entries []models.LibraryEntry) ([]models.LibraryEntry, error) {
	seen := make(map[string]bool)
	out := make([]models.LibraryEntry, 0, len(entries))
	for _, e := range entries {
		if e.OrderID == "" {
			out = append(out, e)
			continue
		}
		recorded, ok := seen[e.OrderID]
		if !ok {
			var err error
			recorded, err = s.HasOrder(ctx, owner, e.OrderID)
			if err != nil {
				return nil, err
			}
			seen[e.OrderID] = recorded
		}
		if !recorded {
			out = append(out, e)
		}
	}
	return out, nil
}

// LocalStore keeps each owner's entries under the user_library key of the
// client state backend, namespaced by owner
type LocalStore struct {
	backend store.Backend
	logger  *log.Logger
}

func NewLocalStore(backend store.Backend, logger *log.Logger) *LocalStore {
	return &LocalStore{backend: backend, logger: logger}
}

func (s *LocalStore) state(owner string) *store.ClientState {
	return store.New(s.backend, owner, s.logger)
}

func (s *LocalStore) Append(ctx context.Context, owner string, entries []models.LibraryEntry) error {
	pending, err := skipRecorded(ctx, s, owner, entries)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return nil
	}
	return s.state(owner).AppendLibrary(ctx, pending...)
}

func (s *LocalStore) List(ctx context.Context, owner string) ([]models.LibraryEntry, error) {
	return s.state(owner).LoadLibrary(ctx)
}

func (s *LocalStore) HasOrder(ctx context.Context, owner, orderID string) (bool, error) {
	entries, err := s.List(ctx, owner)
	if err != nil {
		return false, err
	}
	for _, e := range entries {
		if e.OrderID == orderID {
			return true, nil
		}
	}
	return false, nil
}

// Service combines the store with real-time notification of new entries
type Service struct {
	store  Store
	bus    Bus
	logger *log.Logger
}

func NewService(s Store, bus Bus, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Default()
	}
	return &Service{store: s, bus: bus, logger: logger.With("component", "library")}
}

// Record appends entries for owner and notifies subscribers. A failed
// notification is logged; the entries are already stored.
func (s *Service) Record(ctx context.Context, owner string, entries []models.LibraryEntry) error {
	if len(entries) == 0 {
		return nil
	}
	if err := s.store.Append(ctx, owner, entries); err != nil {
		return fmt.Errorf("append library: %w", err)
	}
	if s.bus != nil {
		if err := s.bus.Publish(ctx, Event{Owner: owner, Entries: entries}); err != nil {
			s.logger.Warn("failed to publish library update", "owner", owner, "error", err)
		}
	}
	return nil
}

// Recorded reports whether an order's entries are already in owner's library
func (s *Service) Recorded(ctx context.Context, owner, orderID string) (bool, error) {
	return s.store.HasOrder(ctx, owner, orderID)
}

// List returns owner's entries after applying the search query and filter
func (s *Service) List(ctx context.Context, owner, query, filter string) ([]models.LibraryEntry, error) {
	entries, err := s.store.List(ctx, owner)
	if err != nil {
		return nil, err
	}
	return Filter(entries, query, filter), nil
}

// Entry looks up one of owner's entries by ID
func (s *Service) Entry(ctx context.Context, owner, id string) (models.LibraryEntry, error) {
	entries, err := s.store.List(ctx, owner)
	if err != nil {
		return models.LibraryEntry{}, err
	}
	for _, e := range entries {
		if e.ID == id {
			return e, nil
		}
	}
	return models.LibraryEntry{}, ErrEntryNotFound
}

// All returns owner's entries unfiltered
func (s *Service) All(ctx context.Context, owner string) ([]models.LibraryEntry, error) {
	return s.store.List(ctx, owner)
}

// Subscribe streams owner's new entries until ctx is done or cancel is called
func (s *Service) Subscribe(ctx context.Context, owner string) (<-chan Event, func(), error) {
	if s.bus == nil {
		return nil, nil, errors.New("library updates are not enabled")
	}
	return s.bus.Subscribe(ctx, owner)
}
