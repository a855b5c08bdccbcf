package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"breakupguide/internal/models"
)

const (
	ProviderPayPal = "paypal"

	paypalSandboxURL = "https://api-m.sandbox.paypal.com"
	paypalLiveURL    = "https://api-m.paypal.com"

	paypalCompleted = "COMPLETED"
)

// PayPalBaseURL maps the configured mode to the REST endpoint
func PayPalBaseURL(mode string) string {
	if strings.EqualFold(mode, "live") {
		return paypalLiveURL
	}
	return paypalSandboxURL
}

// PayPal talks to the Orders v2 REST API. Access tokens come from the
// client credentials grant; one client is shared so the token is reused
// until it expires.
type PayPal struct {
	baseURL string
	client  *http.Client
}

func NewPayPal(clientID, clientSecret, baseURL string) *PayPal {
	baseURL = strings.TrimRight(baseURL, "/")
	creds := clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     baseURL + "/v1/oauth2/token",
		AuthStyle:    oauth2.AuthStyleInHeader,
	}
	return &PayPal{
		baseURL: baseURL,
		// Request contexts bound the API calls, not the token source
		client: creds.Client(context.Background()),
	}
}

func (p *PayPal) Name() string { return ProviderPayPal }

type paypalAmount struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type paypalPurchaseUnit struct {
	ReferenceID string       `json:"reference_id,omitempty"`
	Description string       `json:"description"`
	Amount      paypalAmount `json:"amount"`
}

type paypalOrderRequest struct {
	Intent             string               `json:"intent"`
	PurchaseUnits      []paypalPurchaseUnit `json:"purchase_units"`
	ApplicationContext struct {
		ReturnURL  string `json:"return_url,omitempty"`
		CancelURL  string `json:"cancel_url,omitempty"`
		UserAction string `json:"user_action"`
	} `json:"application_context"`
}

type paypalOrderResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Links  []struct {
		Href string `json:"href"`
		Rel  string `json:"rel"`
	} `json:"links"`
}

// CreateOrder creates a CAPTURE intent order and returns the buyer approval link
func (p *PayPal) CreateOrder(ctx context.Context, req OrderRequest) (*Order, error) {
	body := paypalOrderRequest{Intent: "CAPTURE"}
	body.PurchaseUnits = []paypalPurchaseUnit{{
		ReferenceID: req.Reference,
		Description: req.Description,
		Amount: paypalAmount{
			CurrencyCode: strings.ToUpper(req.Currency),
			Value:        models.FormatAmount(req.AmountCents),
		},
	}}
	body.ApplicationContext.ReturnURL = req.ReturnURL
	body.ApplicationContext.CancelURL = req.CancelURL
	body.ApplicationContext.UserAction = "PAY_NOW"

	var resp paypalOrderResponse
	if err := p.do(ctx, http.MethodPost, "/v2/checkout/orders", body, &resp); err != nil {
		return nil, fmt.Errorf("paypal create order: %w", err)
	}

	order := &Order{ID: resp.ID, Status: resp.Status}
	for _, l := range resp.Links {
		if l.Rel == "approve" || l.Rel == "payer-action" {
			order.ApprovalURL = l.Href
		}
	}
	if order.ApprovalURL == "" {
		return nil, fmt.Errorf("paypal create order: no approval link in response")
	}
	return order, nil
}

// Capture collects the approved order
func (p *PayPal) Capture(ctx context.Context, orderID string) (*Capture, error) {
	var resp paypalOrderResponse
	path := "/v2/checkout/orders/" + url.PathEscape(orderID) + "/capture"
	if err := p.do(ctx, http.MethodPost, path, struct{}{}, &resp); err != nil {
		return nil, fmt.Errorf("paypal capture: %w", err)
	}
	if resp.Status != paypalCompleted {
		return &Capture{OrderID: orderID, Status: resp.Status}, fmt.Errorf("%w: paypal status %s", ErrNotCompleted, resp.Status)
	}
	return &Capture{OrderID: resp.ID, Status: resp.Status}, nil
}

func (p *PayPal) do(ctx context.Context, method, path string, in, out any) error {
	raw, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	return json.Unmarshal(data, out)
}
