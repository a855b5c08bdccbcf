package handlers

import (
	"net/http"

	"breakupguide/internal/web"
)

// Router bundles the handlers mounted by NewRouter
type Router struct {
	Middleware *Middleware
	Funnel     *FunnelHandler
	Checkout   *CheckoutHandler
	Library    *LibraryHandler
	Auth       *AuthHandler
	Admin      *AdminHandler
	Logging    func(http.Handler) http.Handler
}

// NewRouter registers every route and wraps the mux with the visitor,
// session and logging middleware
func NewRouter(rt Router) http.Handler {
	m := rt.Middleware
	mux := http.NewServeMux()

	mux.Handle("GET /static/", web.Static())

	// Funnel
	mux.HandleFunc("GET /", rt.Funnel.Home)
	mux.HandleFunc("GET /chapters", rt.Funnel.Chapters)
	mux.HandleFunc("GET /chapters/{id}", rt.Funnel.Chapter)
	mux.HandleFunc("POST /chapters/{id}/answer", m.CSRFProtect(rt.Funnel.Answer))
	mux.HandleFunc("POST /chapters/{id}/back", m.CSRFProtect(rt.Funnel.Back))
	mux.HandleFunc("POST /chapters/{id}/confirm", m.CSRFProtect(rt.Funnel.Confirm))
	mux.HandleFunc("POST /chapters/{id}/skip", m.CSRFProtect(rt.Funnel.Skip))
	mux.HandleFunc("POST /chapters/{id}/restart", m.CSRFProtect(rt.Funnel.Restart))
	mux.HandleFunc("GET /books", rt.Funnel.Books)
	mux.HandleFunc("GET /freebies", rt.Funnel.Freebies)
	mux.HandleFunc("GET /settings", rt.Funnel.ShowSettings)
	mux.HandleFunc("POST /settings", m.CSRFProtect(rt.Funnel.SaveSettings))
	mux.HandleFunc("GET /terms", rt.Funnel.Terms)
	mux.HandleFunc("GET /privacy-policy", rt.Funnel.Privacy)

	// Checkout
	mux.HandleFunc("GET /checkout", rt.Checkout.Show)
	mux.HandleFunc("POST /checkout", m.RateLimit(m.CSRFProtect(rt.Checkout.Create)))
	mux.HandleFunc("POST /books/{id}/buy", m.RateLimit(m.CSRFProtect(rt.Checkout.BuySingle)))
	mux.HandleFunc("GET /checkout/success", rt.Checkout.Success)
	mux.HandleFunc("GET /checkout/cancel", rt.Checkout.Cancel)

	// Library
	mux.HandleFunc("GET /library", m.RequireUser(rt.Library.Show))
	mux.HandleFunc("GET /library/events", rt.Library.Events)

	// Accounts
	mux.HandleFunc("GET /login", rt.Auth.ShowLogin)
	mux.HandleFunc("POST /login", m.RateLimit(m.CSRFProtect(rt.Auth.Login)))
	mux.HandleFunc("GET /register", rt.Auth.ShowRegister)
	mux.HandleFunc("POST /register", m.RateLimit(m.CSRFProtect(rt.Auth.Register)))
	mux.HandleFunc("POST /logout", m.CSRFProtect(rt.Auth.Logout))
	mux.HandleFunc("GET /auth/{provider}/start", rt.Auth.StartOAuth)
	mux.HandleFunc("GET /auth/{provider}/callback", rt.Auth.OAuthCallback)

	// Admin
	if rt.Admin != nil {
		mux.HandleFunc("GET /admin", m.RequireAdmin(rt.Admin.ShowDashboard))
		mux.HandleFunc("GET /admin/export", m.RequireAdmin(rt.Admin.ExportDatabase))
		mux.HandleFunc("POST /admin/import", m.RequireAdmin(m.CSRFProtect(rt.Admin.ImportDatabase)))
	}

	var handler http.Handler = mux
	handler = m.Authenticate(handler)
	handler = m.Visitor(handler)
	if rt.Logging != nil {
		handler = rt.Logging(handler)
	}
	return handler
}
