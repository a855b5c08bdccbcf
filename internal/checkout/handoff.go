// Package checkout turns a confirmed selection into a paid order and records
// the purchase in the buyer's library.
package checkout

import (
	"context"
	"errors"
	"fmt"

	"breakupguide/internal/models"
)

// Route is where the buyer goes once a bundle is staged
const Route = "/checkout"

var (
	ErrEmptyBundle   = errors.New("bundle is empty")
	ErrPaymentFailed = errors.New("payment failed")
	ErrLibraryWrite  = errors.New("failed to record purchase")
	ErrOrderOwner    = errors.New("order belongs to another account")
)

// BundleState is the part of the client state the checkout reads and writes
type BundleState interface {
	LoadBundle(ctx context.Context) ([]models.Item, error)
	SaveBundle(ctx context.Context, items []models.Item) error
	LoadBundleOrigin(ctx context.Context) (string, error)
	SaveBundleOrigin(ctx context.Context, chapterID string) error
	ClearBundle(ctx context.Context) error
}

// Handoff stages a chapter's confirmed selection as the bundle
type Handoff struct {
	state BundleState
}

func NewHandoff(state BundleState) *Handoff {
	return &Handoff{state: state}
}

// Handoff persists items as the bundle and returns the checkout route. The
// route is only returned once the write has succeeded.
func (h *Handoff) Handoff(ctx context.Context, chapterID string, items []models.Item) (string, error) {
	if len(items) == 0 {
		return "", ErrEmptyBundle
	}
	if err := h.state.SaveBundle(ctx, items); err != nil {
		return "", fmt.Errorf("save bundle: %w", err)
	}
	if err := h.state.SaveBundleOrigin(ctx, chapterID); err != nil {
		return "", fmt.Errorf("save bundle origin: %w", err)
	}
	return Route, nil
}
