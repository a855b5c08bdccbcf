// Package store keeps per-visitor funnel state (progress, bundle, settings
// and the local library) as JSON values in a swappable key-value backend.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"

	"breakupguide/internal/models"
)

// Storage keys. Values are JSON encoded.
const (
	KeyProgress     = "progress"
	KeyBundle       = "bundle"
	KeyBundleOrigin = "bundle_chapter"
	KeySettings     = "settings"
	KeyLibrary      = "user_library"
)

// ErrNotFound is returned by a Backend when a key has no value
var ErrNotFound = errors.New("state key not found")

// Backend is a namespaced key-value store
type Backend interface {
	Get(ctx context.Context, namespace, key string) ([]byte, error)
	Set(ctx context.Context, namespace, key string, value []byte) error
	Delete(ctx context.Context, namespace, key string) error
}

// ClientState is the typed view of one visitor's namespace.
// Reads fail soft: a missing or corrupt value yields the empty or default
// value. Only backend failures are returned as errors.
type ClientState struct {
	backend   Backend
	namespace string
	logger    *log.Logger
}

// New returns the state for namespace. A nil logger uses the default logger.
func New(backend Backend, namespace string, logger *log.Logger) *ClientState {
	if logger == nil {
		logger = log.Default()
	}
	return &ClientState{
		backend:   backend,
		namespace: namespace,
		logger:    logger.With("namespace", namespace),
	}
}

// Namespace returns the visitor namespace this state is scoped to
func (s *ClientState) Namespace() string {
	return s.namespace
}

// load decodes key into v. It reports false when the key is absent or corrupt.
func (s *ClientState) load(ctx context.Context, key string, v any) (bool, error) {
	raw, err := s.backend.Get(ctx, s.namespace, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		s.logger.Warn("discarding corrupt client state", "key", key, "error", err)
		return false, nil
	}
	return true, nil
}

func (s *ClientState) save(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.backend.Set(ctx, s.namespace, key, raw); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

// LoadProgress returns the stored progress map, or an empty map
func (s *ClientState) LoadProgress(ctx context.Context) (models.ProgressMap, error) {
	var p models.ProgressMap
	ok, err := s.load(ctx, KeyProgress, &p)
	if err != nil {
		return models.ProgressMap{}, err
	}
	if !ok || p == nil {
		return models.ProgressMap{}, nil
	}
	return p, nil
}

// SaveProgress overwrites the stored progress map. Merging is the caller's job.
func (s *ClientState) SaveProgress(ctx context.Context, p models.ProgressMap) error {
	if p == nil {
		p = models.ProgressMap{}
	}
	return s.save(ctx, KeyProgress, p)
}

// LoadBundle returns the stored bundle, or an empty slice
func (s *ClientState) LoadBundle(ctx context.Context) ([]models.Item, error) {
	var items []models.Item
	ok, err := s.load(ctx, KeyBundle, &items)
	if err != nil {
		return []models.Item{}, err
	}
	if !ok || items == nil {
		return []models.Item{}, nil
	}
	return items, nil
}

// SaveBundle overwrites the stored bundle
func (s *ClientState) SaveBundle(ctx context.Context, items []models.Item) error {
	if items == nil {
		items = []models.Item{}
	}
	return s.save(ctx, KeyBundle, items)
}

// LoadBundleOrigin returns the chapter the bundle was built in, or ""
func (s *ClientState) LoadBundleOrigin(ctx context.Context) (string, error) {
	var chapterID string
	if _, err := s.load(ctx, KeyBundleOrigin, &chapterID); err != nil {
		return "", err
	}
	return chapterID, nil
}

// SaveBundleOrigin records the chapter the bundle was built in
func (s *ClientState) SaveBundleOrigin(ctx context.Context, chapterID string) error {
	return s.save(ctx, KeyBundleOrigin, chapterID)
}

// ClearBundle removes the bundle. Clearing an empty bundle is a no-op.
func (s *ClientState) ClearBundle(ctx context.Context) error {
	for _, key := range []string{KeyBundle, KeyBundleOrigin} {
		if err := s.backend.Delete(ctx, s.namespace, key); err != nil && !errors.Is(err, ErrNotFound) {
			return fmt.Errorf("clear %s: %w", key, err)
		}
	}
	return nil
}

// LoadSettings returns the stored settings merged over the defaults
func (s *ClientState) LoadSettings(ctx context.Context) (models.Settings, error) {
	raw, err := s.backend.Get(ctx, s.namespace, KeySettings)
	if errors.Is(err, ErrNotFound) {
		return models.DefaultSettings(), nil
	}
	if err != nil {
		return models.DefaultSettings(), fmt.Errorf("load %s: %w", KeySettings, err)
	}
	settings, err := models.MergeSettings(raw)
	if err != nil {
		s.logger.Warn("discarding corrupt client state", "key", KeySettings, "error", err)
	}
	return settings, nil
}

// SaveSettings overwrites the stored settings
func (s *ClientState) SaveSettings(ctx context.Context, settings models.Settings) error {
	if !settings.PrimaryColor.Valid() {
		settings.PrimaryColor = models.DefaultSettings().PrimaryColor
	}
	return s.save(ctx, KeySettings, settings)
}

// LoadLibrary returns the locally stored library entries
func (s *ClientState) LoadLibrary(ctx context.Context) ([]models.LibraryEntry, error) {
	var entries []models.LibraryEntry
	ok, err := s.load(ctx, KeyLibrary, &entries)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []models.LibraryEntry{}, nil
	}
	return entries, nil
}

// AppendLibrary adds entries to the locally stored library
func (s *ClientState) AppendLibrary(ctx context.Context, entries ...models.LibraryEntry) error {
	existing, err := s.LoadLibrary(ctx)
	if err != nil {
		return err
	}
	return s.save(ctx, KeyLibrary, append(existing, entries...))
}
