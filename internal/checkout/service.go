package checkout

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"breakupguide/internal/models"
	"breakupguide/internal/payment"
	"breakupguide/internal/repository"
)

const (
	LibraryRoute = "/library"
	SuccessPath  = "/checkout/success"
	CancelPath   = "/checkout/cancel"

	DefaultBundlePriceCents int64 = 4500
)

// Buyer identifies who is paying and who receives the titles
type Buyer struct {
	Owner     string
	VisitorID string
	Email     string
	Name      string
}

// Receipts sends purchase confirmations
type Receipts interface {
	SendReceiptEmail(ctx context.Context, toEmail, toName string, order *models.Order) error
}

// Options configure pricing and redirect URLs
type Options struct {
	BundlePriceCents int64
	Currency         string
	BaseURL          string
	Logger           *log.Logger
	Receipts         Receipts
}

// Cart is what the checkout page shows before an order is created
type Cart struct {
	Kind        models.OrderKind
	ChapterID   string
	Items       []models.Item
	AmountCents int64
	Currency    string
	Description string
}

// Amount renders the total as a decimal string
func (c *Cart) Amount() string {
	return models.FormatAmount(c.AmountCents)
}

// Service runs checkouts against the configured payment processors
type Service struct {
	orders     *repository.OrderRepository
	processors *payment.Registry
	recorder   *Recorder
	receipts   Receipts
	price      int64
	currency   string
	baseURL    string
	logger     *log.Logger
}

func NewService(orders *repository.OrderRepository, processors *payment.Registry, recorder *Recorder, opts Options) *Service {
	if opts.BundlePriceCents <= 0 {
		opts.BundlePriceCents = DefaultBundlePriceCents
	}
	if opts.Currency == "" {
		opts.Currency = "USD"
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &Service{
		orders:     orders,
		processors: processors,
		recorder:   recorder,
		receipts:   opts.Receipts,
		price:      opts.BundlePriceCents,
		currency:   opts.Currency,
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		logger:     opts.Logger.With("component", "checkout"),
	}
}

// Providers lists the processor names a buyer can choose from
func (s *Service) Providers() []string {
	return s.processors.Names()
}

// Begin loads the staged bundle. An empty bundle returns ErrEmptyBundle
// and nothing may be offered for payment.
func (s *Service) Begin(ctx context.Context, state BundleState) (*Cart, error) {
	items, err := state.LoadBundle(ctx)
	if err != nil {
		return nil, fmt.Errorf("load bundle: %w", err)
	}
	if len(items) == 0 {
		return nil, ErrEmptyBundle
	}
	origin, err := state.LoadBundleOrigin(ctx)
	if err != nil {
		return nil, fmt.Errorf("load bundle origin: %w", err)
	}
	if origin == "" {
		origin = models.ChapterRefBundle
	}
	return s.bundleCart(origin, items), nil
}

func (s *Service) bundleCart(chapterID string, items []models.Item) *Cart {
	return &Cart{
		Kind:        models.OrderKindBundle,
		ChapterID:   chapterID,
		Items:       items,
		AmountCents: s.price,
		Currency:    s.currency,
		Description: models.OrderDescription(len(items)),
	}
}

// SingleCart prices one title bought on its own
func (s *Service) SingleCart(item models.Item) *Cart {
	return &Cart{
		Kind:        models.OrderKindSingle,
		ChapterID:   models.ChapterRefSingle,
		Items:       []models.Item{item},
		AmountCents: item.Price,
		Currency:    s.currency,
		Description: models.OrderDescription(1),
	}
}

// CreateOrder opens an order with the named processor ("" for the default)
// and stores it as pending. The returned URL is where the buyer approves it.
func (s *Service) CreateOrder(ctx context.Context, provider string, buyer Buyer, cart *Cart) (*models.Order, string, error) {
	if cart == nil || len(cart.Items) == 0 {
		return nil, "", ErrEmptyBundle
	}
	proc, err := s.processors.Get(provider)
	if err != nil {
		return nil, "", err
	}

	ref := buyer.VisitorID
	if ref == "" {
		ref = buyer.Owner
	}
	created, err := proc.CreateOrder(ctx, payment.OrderRequest{
		Reference:   ref,
		AmountCents: cart.AmountCents,
		Currency:    cart.Currency,
		Description: cart.Description,
		ReturnURL:   s.baseURL + SuccessPath + "?provider=" + url.QueryEscape(proc.Name()),
		CancelURL:   s.baseURL + CancelPath,
	})
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrPaymentFailed, err)
	}

	now := time.Now().UTC()
	order := &models.Order{
		ID:          created.ID,
		Provider:    proc.Name(),
		Owner:       buyer.Owner,
		VisitorID:   buyer.VisitorID,
		Kind:        cart.Kind,
		ChapterID:   cart.ChapterID,
		Items:       cart.Items,
		AmountCents: cart.AmountCents,
		Currency:    cart.Currency,
		Description: cart.Description,
		Status:      models.OrderPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.orders.Create(ctx, order); err != nil {
		return nil, "", fmt.Errorf("failed to save order: %w", err)
	}

	s.logger.Info("order created", "order", order.ID, "provider", order.Provider, "owner", order.Owner, "items", len(order.Items), "amount", models.FormatAmount(order.AmountCents))
	return order, created.ApprovalURL, nil
}

// Complete captures an approved order and records the purchase.
//
// A failed capture marks the order failed and leaves the bundle as it was.
// Once captured, a library write failure leaves the order captured so a
// later call records it without charging again. On success the bundle is
// cleared for bundle orders and the library route is returned.
func (s *Service) Complete(ctx context.Context, orderID string, buyer Buyer, state BundleState) (string, error) {
	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return "", fmt.Errorf("%w: %s", payment.ErrUnknownOrder, orderID)
		}
		return "", err
	}
	if order.Owner != buyer.Owner {
		return "", ErrOrderOwner
	}

	logger := s.logger.With("order", order.ID, "provider", order.Provider)

	switch order.Status {
	case models.OrderRecorded:
		return LibraryRoute, nil
	case models.OrderPending, models.OrderFailed:
		if err := s.capture(ctx, order); err != nil {
			logger.Warn("payment capture failed", "error", err)
			if uerr := s.orders.UpdateStatus(ctx, order.ID, models.OrderFailed); uerr != nil {
				logger.Error("failed to mark order failed", "error", uerr)
			}
			return "", fmt.Errorf("%w: %v", ErrPaymentFailed, err)
		}
		if err := s.orders.UpdateStatus(ctx, order.ID, models.OrderCaptured); err != nil {
			logger.Error("failed to mark order captured", "error", err)
		}
		order.Status = models.OrderCaptured
	}

	entries, err := s.recorder.Record(ctx, order)
	if err != nil {
		logger.Error("payment captured but library write failed", "error", err)
		return "", fmt.Errorf("%w: %v", ErrLibraryWrite, err)
	}
	if err := s.orders.UpdateStatus(ctx, order.ID, models.OrderRecorded); err != nil {
		logger.Error("failed to mark order recorded", "error", err)
	}

	if order.Kind == models.OrderKindBundle && state != nil {
		if err := state.ClearBundle(ctx); err != nil {
			logger.Warn("failed to clear bundle after purchase", "error", err)
		}
	}

	logger.Info("purchase recorded", "owner", order.Owner, "entries", len(entries))

	if s.receipts != nil && buyer.Email != "" && len(entries) > 0 {
		if err := s.receipts.SendReceiptEmail(ctx, buyer.Email, buyer.Name, order); err != nil {
			logger.Warn("failed to send receipt", "error", err)
		}
	}
	return LibraryRoute, nil
}

func (s *Service) capture(ctx context.Context, order *models.Order) error {
	proc, err := s.processors.Get(order.Provider)
	if err != nil {
		return err
	}
	_, err = proc.Capture(ctx, order.ID)
	return err
}

// Orders returns an owner's orders, newest first
func (s *Service) Orders(ctx context.Context, owner string) ([]models.Order, error) {
	return s.orders.ListByOwner(ctx, owner)
}
