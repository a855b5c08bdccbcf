package handlers

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/charmbracelet/log"

	"breakupguide/internal/models"
	"breakupguide/internal/security"
	"breakupguide/internal/service"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	UserContextKey    ContextKey = "user"
	VisitorContextKey ContextKey = "visitor"
)

// Middleware holds dependencies for middleware functions
type Middleware struct {
	authService *service.AuthService
	visitors    *security.VisitorSigner
	csrf        *security.CSRFGenerator
	limiter     *security.RateLimiter
	logger      *log.Logger
}

func NewMiddleware(authService *service.AuthService, visitors *security.VisitorSigner, csrf *security.CSRFGenerator, limiter *security.RateLimiter, logger *log.Logger) *Middleware {
	if logger == nil {
		logger = log.Default()
	}
	return &Middleware{
		authService: authService,
		visitors:    visitors,
		csrf:        csrf,
		limiter:     limiter,
		logger:      logger,
	}
}

// Visitor identifies the browser profile with a signed cookie, issuing a
// new one when it is missing or invalid
func (m *Middleware) Visitor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var visitorID string
		if cookie, err := r.Cookie(security.VisitorCookie); err == nil {
			if id, err := m.visitors.Verify(cookie.Value); err == nil {
				visitorID = id
			}
		}

		if visitorID == "" {
			id, token, err := m.visitors.NewVisitor()
			if err != nil {
				respondWithError(w, http.StatusInternalServerError, ErrInternalServerError, "failed to issue visitor token", err)
				return
			}
			visitorID = id
			http.SetCookie(w, security.CreateSessionCookie(r, security.VisitorCookie, token, time.Now().Add(m.visitors.TTL())))
		}

		ctx := context.WithValue(r.Context(), VisitorContextKey, visitorID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Authenticate attaches the signed-in user, if any, to the request context
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(security.SessionCookie)
		if err != nil || cookie.Value == "" {
			next.ServeHTTP(w, r)
			return
		}

		user, err := m.authService.ValidateSession(r.Context(), cookie.Value)
		if err != nil {
			http.SetCookie(w, security.CreateDeleteCookie(r, security.SessionCookie))
			next.ServeHTTP(w, r)
			return
		}

		ctx := context.WithValue(r.Context(), UserContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireUser sends anonymous visitors to sign in, returning them afterwards
func (m *Middleware) RequireUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if GetUserFromContext(r.Context()) == nil {
			redirectToLogin(w, r, r.URL.RequestURI())
			return
		}
		next(w, r)
	}
}

// RequireAdmin limits a route to admin accounts
func (m *Middleware) RequireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return m.RequireUser(func(w http.ResponseWriter, r *http.Request) {
		if !GetUserFromContext(r.Context()).IsAdmin {
			http.Error(w, ErrForbidden, http.StatusForbidden)
			return
		}
		next(w, r)
	})
}

func redirectToLogin(w http.ResponseWriter, r *http.Request, next string) {
	http.Redirect(w, r, "/login?next="+url.QueryEscape(next), http.StatusSeeOther)
}

// CSRFProtect rejects state-changing requests without a valid token
func (m *Middleware) CSRFProtect(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet || r.Method == http.MethodHead {
			next(w, r)
			return
		}
		if err := m.csrf.CheckRequest(r, VisitorID(r.Context())); err != nil {
			m.logger.Warn("csrf check failed", "path", r.URL.Path, "ip", security.GetClientIP(r))
			http.Error(w, ErrForbidden, http.StatusForbidden)
			return
		}
		next(w, r)
	}
}

// RateLimit applies the per-client request limit
func (m *Middleware) RateLimit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if m.limiter != nil && !m.limiter.Allow(security.GetClientIP(r)) {
			http.Error(w, "Too many requests. Please try again later.", http.StatusTooManyRequests)
			return
		}
		next(w, r)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}

// Logging logs every request with its status and duration
func Logging(logger *log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			logger.Info("request", "method", r.Method, "path", r.URL.Path, "status", rec.status, "duration", time.Since(start))
		})
	}
}

// GetUserFromContext retrieves the user from the request context
func GetUserFromContext(ctx context.Context) *models.User {
	user, ok := ctx.Value(UserContextKey).(*models.User)
	if !ok {
		return nil
	}
	return user
}

// VisitorID returns the browser profile ID set by the Visitor middleware
func VisitorID(ctx context.Context) string {
	id, _ := ctx.Value(VisitorContextKey).(string)
	return id
}
