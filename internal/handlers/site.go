package handlers

import (
	"bytes"
	"html/template"
	"net/http"
	"net/url"
	"time"

	"github.com/charmbracelet/log"

	"breakupguide/internal/models"
	"breakupguide/internal/security"
	"breakupguide/internal/store"
)

// Site carries what every page handler needs: templates, the visitor state
// backend and CSRF tokens
type Site struct {
	templates *template.Template
	backend   store.Backend
	csrf      *security.CSRFGenerator
	logger    *log.Logger
}

func NewSite(templates *template.Template, backend store.Backend, csrf *security.CSRFGenerator, logger *log.Logger) *Site {
	if logger == nil {
		logger = log.Default()
	}
	return &Site{templates: templates, backend: backend, csrf: csrf, logger: logger}
}

// State returns the funnel state of the requesting browser profile
func (s *Site) State(r *http.Request) *store.ClientState {
	return store.New(s.backend, VisitorID(r.Context()), s.logger)
}

// Page fills the fields shared by every page and consumes the flash message
func (s *Site) Page(w http.ResponseWriter, r *http.Request, title string) Page {
	settings, err := s.State(r).LoadSettings(r.Context())
	if err != nil {
		s.logger.Warn("failed to load settings", "error", err)
		settings = models.DefaultSettings()
	}
	token, _ := s.csrf.GenerateToken(VisitorID(r.Context()))
	return Page{
		Title:     title,
		User:      GetUserFromContext(r.Context()),
		Settings:  settings,
		CSRFToken: token,
		Flash:     popFlash(w, r),
	}
}

func (s *Site) render(w http.ResponseWriter, name string, data any) {
	s.renderStatus(w, http.StatusOK, name, data)
}

func (s *Site) renderStatus(w http.ResponseWriter, status int, name string, data any) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		respondWithError(w, http.StatusInternalServerError, ErrInternalServerError, "failed to render "+name, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (s *Site) renderError(w http.ResponseWriter, r *http.Request, status int, heading, message, retryURL string) {
	s.renderStatus(w, status, "error.tmpl", ErrorViewData{
		Page:     s.Page(w, r, heading),
		Heading:  heading,
		Message:  message,
		RetryURL: retryURL,
	})
}

// setFlash stores a one-shot notice shown on the next rendered page
func setFlash(w http.ResponseWriter, r *http.Request, msg string) {
	c := security.CreateSessionCookie(r, flashCookieName, url.QueryEscape(msg), time.Now().Add(flashTTL))
	c.MaxAge = int(flashTTL.Seconds())
	http.SetCookie(w, c)
}

func popFlash(w http.ResponseWriter, r *http.Request) string {
	c, err := r.Cookie(flashCookieName)
	if err != nil || c.Value == "" {
		return ""
	}
	http.SetCookie(w, security.CreateDeleteCookie(r, flashCookieName))
	msg, err := url.QueryUnescape(c.Value)
	if err != nil {
		return ""
	}
	return msg
}

// redirectWithFlash sets a notice and sends the browser to target
func redirectWithFlash(w http.ResponseWriter, r *http.Request, target, msg string) {
	setFlash(w, r, msg)
	http.Redirect(w, r, target, http.StatusSeeOther)
}
