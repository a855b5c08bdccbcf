package handlers

import (
	"errors"
	"net/http"

	"github.com/charmbracelet/log"

	"breakupguide/internal/checkout"
	"breakupguide/internal/models"
	"breakupguide/internal/security"
	"breakupguide/internal/service"
	"breakupguide/internal/validation"
)

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	site                 *Site
	authService          *service.AuthService
	oauthProviders       map[string]OAuthProvider
	oauthRedirectBaseURL string
	logger               *log.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(site *Site, authService *service.AuthService, oauthProviders map[string]OAuthProvider, oauthRedirectBaseURL string, logger *log.Logger) *AuthHandler {
	if logger == nil {
		logger = log.Default()
	}
	return &AuthHandler{
		site:                 site,
		authService:          authService,
		oauthProviders:       oauthProviders,
		oauthRedirectBaseURL: oauthRedirectBaseURL,
		logger:               logger.With("component", "auth"),
	}
}

func nextParam(r *http.Request) string {
	return validation.SafeNext(r.FormValue("next"), checkout.LibraryRoute)
}

// ShowLogin renders the login page
func (h *AuthHandler) ShowLogin(w http.ResponseWriter, r *http.Request) {
	next := nextParam(r)
	if GetUserFromContext(r.Context()) != nil {
		http.Redirect(w, r, next, http.StatusSeeOther)
		return
	}

	h.site.render(w, "login.tmpl", LoginViewData{
		Page:           h.site.Page(w, r, "Sign in"),
		OAuthProviders: h.oauthProviderViews(next),
		Next:           next,
	})
}

// Login handles login form submission
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		respondWithError(w, http.StatusBadRequest, ErrInvalidFormData, "failed to parse login form", err)
		return
	}

	email := r.FormValue("email")
	next := nextParam(r)

	session, _, err := h.authService.Login(r.Context(), email, r.FormValue("password"))
	if err != nil {
		if !errors.Is(err, service.ErrInvalidCredentials) {
			h.logger.Error("login failed", "error", err)
		}
		h.site.renderStatus(w, http.StatusUnauthorized, "login.tmpl", LoginViewData{
			Page:           h.site.Page(w, r, "Sign in"),
			OAuthProviders: h.oauthProviderViews(next),
			Error:          "Invalid email or password",
			Email:          email,
			Next:           next,
		})
		return
	}

	h.startSession(w, r, session, next)
}

// ShowRegister renders the registration page
func (h *AuthHandler) ShowRegister(w http.ResponseWriter, r *http.Request) {
	next := nextParam(r)
	if GetUserFromContext(r.Context()) != nil {
		http.Redirect(w, r, next, http.StatusSeeOther)
		return
	}

	h.site.render(w, "register.tmpl", RegisterViewData{
		Page:           h.site.Page(w, r, "Create an account"),
		OAuthProviders: h.oauthProviderViews(next),
		Next:           next,
	})
}

// Register handles registration form submission
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		respondWithError(w, http.StatusBadRequest, ErrInvalidFormData, "failed to parse registration form", err)
		return
	}

	email := r.FormValue("email")
	password := r.FormValue("password")
	name := r.FormValue("name")
	next := nextParam(r)

	fail := func(msg string) {
		h.site.renderStatus(w, http.StatusBadRequest, "register.tmpl", RegisterViewData{
			Page:           h.site.Page(w, r, "Create an account"),
			OAuthProviders: h.oauthProviderViews(next),
			Error:          msg,
			Email:          email,
			Name:           name,
			Next:           next,
		})
	}

	for _, err := range []error{
		validation.ValidateName(name),
		validation.ValidateEmail(email),
		validation.ValidatePassword(password),
	} {
		var verr validation.Error
		if errors.As(err, &verr) {
			fail(verr.Message)
			return
		}
	}

	if _, err := h.authService.Register(r.Context(), email, password, name); err != nil {
		if errors.Is(err, service.ErrEmailTaken) {
			fail("An account with that email already exists")
			return
		}
		respondWithError(w, http.StatusInternalServerError, ErrInternalServerError, "registration failed", err)
		return
	}

	// Auto-login after registration
	session, _, err := h.authService.Login(r.Context(), email, password)
	if err != nil {
		h.logger.Warn("login after registration failed", "error", err)
		redirectToLogin(w, r, next)
		return
	}

	h.startSession(w, r, session, next)
}

func (h *AuthHandler) startSession(w http.ResponseWriter, r *http.Request, session *models.Session, next string) {
	http.SetCookie(w, security.CreateSessionCookie(r, security.SessionCookie, session.ID, session.ExpiresAt))
	http.Redirect(w, r, next, http.StatusSeeOther)
}

// Logout handles logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(security.SessionCookie); err == nil {
		if err := h.authService.Logout(r.Context(), cookie.Value); err != nil {
			h.logger.Warn("logout failed", "error", err)
		}
	}

	http.SetCookie(w, security.CreateDeleteCookie(r, security.SessionCookie))
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
