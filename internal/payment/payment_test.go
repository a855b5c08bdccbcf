package payment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"breakupguide/internal/config"
)

func newPayPalServer(t *testing.T, captureStatus string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var tokens atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		tokens.Add(1)
		if user, pass, ok := r.BasicAuth(); !ok || user != "id" || pass != "secret" {
			http.Error(w, "bad credentials", http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"tok","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("POST /v2/checkout/orders", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		var body paypalOrderRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		unit := body.PurchaseUnits[0]
		if unit.Amount.Value != "45.00" || unit.Amount.CurrencyCode != "USD" || unit.Description != "Purchase of 3 AudioFile(s)" {
			http.Error(w, "unexpected order body", http.StatusUnprocessableEntity)
			return
		}
		w.Write([]byte(`{"id":"PP-1","status":"CREATED","links":[{"href":"https://paypal.test/approve/PP-1","rel":"approve"}]}`))
	})
	mux.HandleFunc("POST /v2/checkout/orders/{id}/capture", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != "PP-1" {
			http.Error(w, `{"name":"RESOURCE_NOT_FOUND"}`, http.StatusNotFound)
			return
		}
		w.Write([]byte(`{"id":"PP-1","status":"` + captureStatus + `"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &tokens
}

func TestPayPal(t *testing.T) {
	ctx := context.Background()

	t.Run("create and capture", func(t *testing.T) {
		srv, _ := newPayPalServer(t, "COMPLETED")
		p := NewPayPal("id", "secret", srv.URL)

		order, err := p.CreateOrder(ctx, OrderRequest{
			AmountCents: 4500,
			Currency:    "usd",
			Description: "Purchase of 3 AudioFile(s)",
			ReturnURL:   "http://localhost/checkout/success?provider=paypal",
		})
		if err != nil {
			t.Fatalf("CreateOrder() error = %v", err)
		}
		if order.ID != "PP-1" || order.ApprovalURL != "https://paypal.test/approve/PP-1" {
			t.Errorf("CreateOrder() = %+v", order)
		}

		capture, err := p.Capture(ctx, "PP-1")
		if err != nil {
			t.Fatalf("Capture() error = %v", err)
		}
		if capture.Status != "COMPLETED" {
			t.Errorf("Capture() status = %s", capture.Status)
		}
	})

	t.Run("capture not completed", func(t *testing.T) {
		srv, _ := newPayPalServer(t, "PAYER_ACTION_REQUIRED")
		p := NewPayPal("id", "secret", srv.URL)
		if _, err := p.Capture(ctx, "PP-1"); !errors.Is(err, ErrNotCompleted) {
			t.Errorf("Capture() error = %v, want ErrNotCompleted", err)
		}
	})

	t.Run("http error", func(t *testing.T) {
		srv, _ := newPayPalServer(t, "COMPLETED")
		p := NewPayPal("id", "secret", srv.URL)
		_, err := p.Capture(ctx, "OTHER")
		if err == nil || !strings.Contains(err.Error(), "status 404") {
			t.Errorf("Capture() error = %v, want 404", err)
		}
	})
}

func TestPayPalReusesAccessToken(t *testing.T) {
	ctx := context.Background()
	srv, tokens := newPayPalServer(t, "COMPLETED")
	p := NewPayPal("id", "secret", srv.URL)

	for i := 0; i < 3; i++ {
		if _, err := p.CreateOrder(ctx, OrderRequest{AmountCents: 4500, Currency: "USD", Description: "Purchase of 3 AudioFile(s)"}); err != nil {
			t.Fatalf("CreateOrder() error = %v", err)
		}
		if _, err := p.Capture(ctx, "PP-1"); err != nil {
			t.Fatalf("Capture() error = %v", err)
		}
	}
	if got := tokens.Load(); got != 1 {
		t.Errorf("token requests = %d, want 1", got)
	}
}

func TestPayPalBaseURL(t *testing.T) {
	if PayPalBaseURL("live") != paypalLiveURL {
		t.Error("live mode should use the live endpoint")
	}
	if PayPalBaseURL("") != paypalSandboxURL {
		t.Error("default mode should be sandbox")
	}
}

func TestFake(t *testing.T) {
	ctx := context.Background()
	f := NewFake()

	order, err := f.CreateOrder(ctx, OrderRequest{AmountCents: 4500, ReturnURL: "/checkout/success?provider=fake"})
	if err != nil {
		t.Fatalf("CreateOrder() error = %v", err)
	}
	if !strings.HasSuffix(order.ApprovalURL, "&token="+order.ID) {
		t.Errorf("ApprovalURL = %s", order.ApprovalURL)
	}
	if req, ok := f.Request(order.ID); !ok || req.AmountCents != 4500 {
		t.Errorf("Request() = %+v, %v", req, ok)
	}

	f.FailCapture = true
	if _, err := f.Capture(ctx, order.ID); !errors.Is(err, ErrNotCompleted) {
		t.Errorf("Capture() error = %v, want ErrNotCompleted", err)
	}
	f.FailCapture = false
	if _, err := f.Capture(ctx, order.ID); err != nil {
		t.Errorf("Capture() error = %v", err)
	}
	if f.Captures(order.ID) != 1 {
		t.Errorf("Captures() = %d", f.Captures(order.ID))
	}
	if _, err := f.Capture(ctx, "nope"); !errors.Is(err, ErrUnknownOrder) {
		t.Errorf("Capture() unknown error = %v", err)
	}
}

func TestFromConfig(t *testing.T) {
	tests := []struct {
		name      string
		cfg       config.PaymentConfig
		wantFirst string
		wantErr   bool
	}{
		{
			name:      "paypal preferred",
			cfg:       config.PaymentConfig{Provider: "paypal", PayPal: config.PayPalConfig{ClientID: "a", ClientSecret: "b"}, Stripe: config.StripeConfig{SecretKey: "sk"}},
			wantFirst: ProviderPayPal,
		},
		{
			name:      "stripe preferred",
			cfg:       config.PaymentConfig{Provider: "stripe", PayPal: config.PayPalConfig{ClientID: "a", ClientSecret: "b"}, Stripe: config.StripeConfig{SecretKey: "sk"}},
			wantFirst: ProviderStripe,
		},
		{
			name:      "falls back to the other provider",
			cfg:       config.PaymentConfig{Provider: "paypal", Stripe: config.StripeConfig{SecretKey: "sk"}},
			wantFirst: ProviderStripe,
		},
		{
			name:      "fake",
			cfg:       config.PaymentConfig{Provider: "fake"},
			wantFirst: ProviderFake,
		},
		{
			name:    "nothing configured",
			cfg:     config.PaymentConfig{Provider: "paypal"},
			wantErr: true,
		},
		{
			name:    "unknown provider",
			cfg:     config.PaymentConfig{Provider: "bitcoin"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := FromConfig(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("FromConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if r.Default() != tt.wantFirst {
				t.Errorf("Default() = %s, want %s", r.Default(), tt.wantFirst)
			}
			if _, err := r.Get(""); err != nil {
				t.Errorf("Get(\"\") error = %v", err)
			}
			if _, err := r.Get("missing"); err == nil {
				t.Error("Get(missing) should fail")
			}
		})
	}
}
