package models

import (
	"fmt"
	"time"
)

// OrderKind distinguishes bundle checkouts from single-book purchases
type OrderKind string

const (
	OrderKindBundle OrderKind = "bundle"
	OrderKindSingle OrderKind = "single"
)

// OrderStatus tracks a payment order through capture and recording
type OrderStatus string

const (
	OrderPending  OrderStatus = "pending"
	OrderCaptured OrderStatus = "captured"
	OrderRecorded OrderStatus = "recorded"
	OrderFailed   OrderStatus = "failed"
)

// Order is a payment order created with an external processor.
// Items is the snapshot that will be granted once payment is captured.
type Order struct {
	ID          string
	Provider    string
	Owner       string
	VisitorID   string
	Kind        OrderKind
	ChapterID   string
	Items       []Item
	AmountCents int64
	Currency    string
	Description string
	Status      OrderStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// FormatAmount renders cents as a decimal string ("45.00")
func FormatAmount(cents int64) string {
	return fmt.Sprintf("%d.%02d", cents/100, cents%100)
}

// OrderDescription is the human readable line shown by the payment processor
func OrderDescription(n int) string {
	return fmt.Sprintf("Purchase of %d AudioFile(s)", n)
}
