package security

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"
)

func TestCSRF(t *testing.T) {
	g := NewCSRFGenerator("secret")

	token, err := g.GenerateToken("visitor-1")
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	tests := []struct {
		name    string
		visitor string
		token   string
		want    bool
	}{
		{"valid", "visitor-1", token, true},
		{"other visitor", "visitor-2", token, false},
		{"empty token", "visitor-1", "", false},
		{"empty visitor", "", token, false},
		{"tampered", "visitor-1", tamper(token), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := g.ValidateToken(tt.visitor, tt.token); got != tt.want {
				t.Errorf("ValidateToken() = %v, want %v", got, tt.want)
			}
		})
	}

	if NewCSRFGenerator("other").ValidateToken("visitor-1", token) {
		t.Error("token valid under a different secret")
	}
}

func tamper(token string) string {
	last := byte('0')
	if token[len(token)-1] == '0' {
		last = '1'
	}
	return token[:len(token)-1] + string(last)
}

func TestCSRFCheckRequest(t *testing.T) {
	g := NewCSRFGenerator("secret")
	token, _ := g.GenerateToken("v1")

	form := url.Values{CSRFField: {token}}
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if err := g.CheckRequest(r, "v1"); err != nil {
		t.Errorf("CheckRequest(form) error = %v", err)
	}

	r = httptest.NewRequest(http.MethodPost, "/", nil)
	r.Header.Set(CSRFHeader, token)
	if err := g.CheckRequest(r, "v1"); err != nil {
		t.Errorf("CheckRequest(header) error = %v", err)
	}

	r = httptest.NewRequest(http.MethodPost, "/", nil)
	if err := g.CheckRequest(r, "v1"); !errors.Is(err, ErrCSRFMismatch) {
		t.Errorf("CheckRequest(missing) error = %v, want ErrCSRFMismatch", err)
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(3, time.Minute)
	for i := 0; i < 3; i++ {
		if !rl.Allow("1.2.3.4") {
			t.Fatalf("request %d denied", i+1)
		}
	}
	if rl.Allow("1.2.3.4") {
		t.Error("fourth request allowed")
	}
	if !rl.Allow("5.6.7.8") {
		t.Error("other client denied")
	}
}

func TestRateLimiterMiddleware(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	h := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	codes := []int{}
	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusTooManyRequests {
		t.Errorf("status codes = %v", codes)
	}
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"forwarded chain", map[string]string{"X-Forwarded-For": "1.1.1.1, 2.2.2.2"}, "3.3.3.3:1", "1.1.1.1"},
		{"real ip", map[string]string{"X-Real-IP": "4.4.4.4"}, "3.3.3.3:1", "4.4.4.4"},
		{"remote addr", nil, "3.3.3.3:1234", "3.3.3.3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			if got := GetClientIP(r); got != tt.want {
				t.Errorf("GetClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPassword(t *testing.T) {
	hash, err := HashPassword("correct horse")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	if !CheckPassword("correct horse", hash) {
		t.Error("CheckPassword rejected the right password")
	}
	if CheckPassword("wrong", hash) {
		t.Error("CheckPassword accepted a wrong password")
	}
	if CheckPassword("anything", "") {
		t.Error("CheckPassword accepted an empty hash")
	}
}

func TestVisitorSigner(t *testing.T) {
	s := NewVisitorSigner("secret", time.Hour)

	id, token, err := s.NewVisitor()
	if err != nil {
		t.Fatalf("NewVisitor() error = %v", err)
	}
	got, err := s.Verify(token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if got != id {
		t.Errorf("Verify() = %q, want %q", got, id)
	}

	if _, err := NewVisitorSigner("other", time.Hour).Verify(token); !errors.Is(err, ErrInvalidVisitor) {
		t.Errorf("Verify(other secret) error = %v, want ErrInvalidVisitor", err)
	}

	expired := NewVisitorSigner("secret", -time.Minute)
	old, _ := expired.Sign(id)
	if _, err := s.Verify(old); !errors.Is(err, ErrInvalidVisitor) {
		t.Errorf("Verify(expired) error = %v, want ErrInvalidVisitor", err)
	}

	bad, _ := s.Sign("not-a-uuid")
	if _, err := s.Verify(bad); !errors.Is(err, ErrInvalidVisitor) {
		t.Errorf("Verify(bad subject) error = %v, want ErrInvalidVisitor", err)
	}
}

func TestSessionCookieSecure(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	if CreateSessionCookie(r, SessionCookie, "x", time.Now()).Secure {
		t.Error("plain HTTP cookie marked Secure")
	}
	r.Header.Set("X-Forwarded-Proto", "https")
	if !CreateSessionCookie(r, SessionCookie, "x", time.Now()).Secure {
		t.Error("proxied HTTPS cookie not Secure")
	}
	if c := CreateDeleteCookie(r, SessionCookie); c.MaxAge != -1 {
		t.Errorf("delete cookie MaxAge = %d", c.MaxAge)
	}
}
