// Package payment adapts external payment processors to the two calls the
// checkout needs: create an order, then capture it after the buyer approves.
package payment

import (
	"context"
	"errors"
	"fmt"

	"breakupguide/internal/config"
)

var (
	// ErrNotCompleted means the processor answered but the money was not taken
	ErrNotCompleted = errors.New("payment not completed")
	ErrUnknownOrder = errors.New("unknown payment order")
)

// OrderRequest describes what the buyer is asked to pay
type OrderRequest struct {
	// Reference is our own ID for the purchase, echoed back by some processors
	Reference   string
	AmountCents int64
	Currency    string
	Description string
	ReturnURL   string
	CancelURL   string
}

// Order is a processor-side order awaiting buyer approval
type Order struct {
	ID          string
	Status      string
	ApprovalURL string
}

// Capture is the result of collecting an approved order
type Capture struct {
	OrderID string
	Status  string
}

// Processor is implemented by each payment vendor
type Processor interface {
	Name() string
	CreateOrder(ctx context.Context, req OrderRequest) (*Order, error)
	// Capture collects the order. It returns ErrNotCompleted when the
	// processor reports anything other than a completed payment.
	Capture(ctx context.Context, orderID string) (*Capture, error)
}

// Registry holds the processors available to checkout, keyed by name
type Registry struct {
	processors map[string]Processor
	preferred  string
}

// NewRegistry registers processors. The first becomes the default.
func NewRegistry(processors ...Processor) *Registry {
	r := &Registry{processors: make(map[string]Processor)}
	for _, p := range processors {
		if p == nil {
			continue
		}
		if r.preferred == "" {
			r.preferred = p.Name()
		}
		r.processors[p.Name()] = p
	}
	return r
}

// Get returns the named processor, or the default when name is empty
func (r *Registry) Get(name string) (Processor, error) {
	if name == "" {
		name = r.preferred
	}
	p, ok := r.processors[name]
	if !ok {
		return nil, fmt.Errorf("payment provider %q is not configured", name)
	}
	return p, nil
}

// Default returns the name of the preferred processor
func (r *Registry) Default() string {
	return r.preferred
}

// Names lists the configured processors with the default first
func (r *Registry) Names() []string {
	if r.preferred == "" {
		return nil
	}
	names := []string{r.preferred}
	for name := range r.processors {
		if name != r.preferred {
			names = append(names, name)
		}
	}
	return names
}

// FromConfig builds the processors that have credentials, with the
// configured provider first
func FromConfig(cfg config.PaymentConfig) (*Registry, error) {
	var paypal, stripe, fake Processor
	if cfg.PayPal.ClientID != "" && cfg.PayPal.ClientSecret != "" {
		paypal = NewPayPal(cfg.PayPal.ClientID, cfg.PayPal.ClientSecret, PayPalBaseURL(cfg.PayPal.Mode))
	}
	if cfg.Stripe.SecretKey != "" {
		stripe = NewStripe(cfg.Stripe.SecretKey)
	}
	if cfg.Provider == ProviderFake {
		fake = NewFake()
	}

	var ordered []Processor
	switch cfg.Provider {
	case ProviderPayPal, "":
		ordered = []Processor{paypal, stripe}
	case ProviderStripe:
		ordered = []Processor{stripe, paypal}
	case ProviderFake:
		ordered = []Processor{fake}
	default:
		return nil, fmt.Errorf("unknown payment provider %q", cfg.Provider)
	}

	r := NewRegistry(ordered...)
	if r.preferred == "" {
		return nil, fmt.Errorf("payment provider %q has no credentials", cfg.Provider)
	}
	return r, nil
}
