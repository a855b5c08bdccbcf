package payment

import (
	"context"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

const ProviderStripe = "stripe"

// Stripe uses hosted Checkout Sessions. Approval happens on Stripe's page;
// Capture verifies the session was paid.
type Stripe struct {
	api *client.API
}

func NewStripe(secretKey string) *Stripe {
	return &Stripe{api: client.New(secretKey, nil)}
}

func (s *Stripe) Name() string { return ProviderStripe }

// CreateOrder opens a Checkout Session for the full amount as one line item
func (s *Stripe) CreateOrder(ctx context.Context, req OrderRequest) (*Order, error) {
	successURL := req.ReturnURL
	if strings.Contains(successURL, "?") {
		successURL += "&session_id={CHECKOUT_SESSION_ID}"
	} else {
		successURL += "?session_id={CHECKOUT_SESSION_ID}"
	}

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(successURL),
		CancelURL:         stripe.String(req.CancelURL),
		ClientReferenceID: stripe.String(req.Reference),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency: stripe.String(strings.ToLower(req.Currency)),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(req.Description),
				},
				UnitAmount: stripe.Int64(req.AmountCents),
			},
			Quantity: stripe.Int64(1),
		}},
	}
	params.Context = ctx

	sess, err := s.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe create session: %w", err)
	}
	return &Order{ID: sess.ID, Status: string(sess.Status), ApprovalURL: sess.URL}, nil
}

// Capture checks that the session's payment went through
func (s *Stripe) Capture(ctx context.Context, orderID string) (*Capture, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx

	sess, err := s.api.CheckoutSessions.Get(orderID, params)
	if err != nil {
		return nil, fmt.Errorf("stripe get session: %w", err)
	}
	status := string(sess.PaymentStatus)
	if sess.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		return &Capture{OrderID: orderID, Status: status}, fmt.Errorf("%w: stripe payment status %s", ErrNotCompleted, status)
	}
	return &Capture{OrderID: sess.ID, Status: status}, nil
}
