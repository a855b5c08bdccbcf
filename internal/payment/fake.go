package payment

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

const ProviderFake = "fake"

// Fake approves every order immediately. It backs local development and tests.
type Fake struct {
	mu       sync.Mutex
	orders   map[string]OrderRequest
	captured map[string]int

	// FailCapture makes Capture report an incomplete payment
	FailCapture bool
	// CreateErr, when set, is returned by CreateOrder
	CreateErr error
}

func NewFake() *Fake {
	return &Fake{
		orders:   make(map[string]OrderRequest),
		captured: make(map[string]int),
	}
}

func (f *Fake) Name() string { return ProviderFake }

// CreateOrder records the request. The approval link points straight back
// at the return URL, as if the buyer approved instantly.
func (f *Fake) CreateOrder(ctx context.Context, req OrderRequest) (*Order, error) {
	if f.CreateErr != nil {
		return nil, f.CreateErr
	}
	id := "FAKE-" + strings.ToUpper(uuid.NewString()[:8])

	f.mu.Lock()
	f.orders[id] = req
	f.mu.Unlock()

	sep := "?"
	if strings.Contains(req.ReturnURL, "?") {
		sep = "&"
	}
	return &Order{ID: id, Status: "CREATED", ApprovalURL: req.ReturnURL + sep + "token=" + id}, nil
}

func (f *Fake) Capture(ctx context.Context, orderID string) (*Capture, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.orders[orderID]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownOrder, orderID)
	}
	if f.FailCapture {
		return &Capture{OrderID: orderID, Status: "DECLINED"}, fmt.Errorf("%w: declined", ErrNotCompleted)
	}
	f.captured[orderID]++
	return &Capture{OrderID: orderID, Status: paypalCompleted}, nil
}

// Request returns what CreateOrder was called with for id
func (f *Fake) Request(id string) (OrderRequest, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	req, ok := f.orders[id]
	return req, ok
}

// Captures returns how many times id was captured
func (f *Fake) Captures(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.captured[id]
}
