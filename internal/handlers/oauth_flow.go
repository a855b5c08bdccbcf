package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"breakupguide/internal/checkout"
	"breakupguide/internal/config"
	"breakupguide/internal/security"
	"breakupguide/internal/validation"
)

const oauthCookieTTL = 10 * time.Minute

// OAuthProvider is a sign-in provider and the call that reads the signed-in
// account from it
type OAuthProvider struct {
	Name       string
	Label      string
	Config     *oauth2.Config
	AuthParams map[string]string
	FetchUser  func(ctx context.Context, client *http.Client) (oauthUserInfo, error)
}

func (p OAuthProvider) configured() bool {
	return p.Config != nil && p.Config.ClientID != "" && p.Config.ClientSecret != "" && p.FetchUser != nil
}

type OAuthProviderView struct {
	Name     string
	Label    string
	URL      string
	CSSClass string
}

type oauthUserInfo struct {
	Subject string
	Email   string
	Name    string
}

// OAuthProviders builds the configured sign-in providers
func OAuthProviders(cfg config.OAuthConfig) map[string]OAuthProvider {
	providers := map[string]OAuthProvider{}
	if cfg.Google.Enabled() {
		providers["google"] = OAuthProvider{
			Name:  "google",
			Label: "Google",
			Config: &oauth2.Config{
				ClientID:     cfg.Google.ClientID,
				ClientSecret: cfg.Google.ClientSecret,
				Endpoint:     google.Endpoint,
				Scopes:       []string{"openid", "email", "profile"},
			},
			AuthParams: map[string]string{"prompt": "select_account"},
			FetchUser:  fetchGoogleUser,
		}
	}
	return providers
}

func (h *AuthHandler) oauthProviderViews(next string) []OAuthProviderView {
	var views []OAuthProviderView
	for key, provider := range h.oauthProviders {
		if !provider.configured() {
			continue
		}
		startURL := fmt.Sprintf("/auth/%s/start", key)
		if next != "" {
			startURL += "?" + url.Values{"next": []string{next}}.Encode()
		}
		views = append(views, OAuthProviderView{
			Name:     key,
			Label:    provider.Label,
			URL:      startURL,
			CSSClass: "btn-" + key,
		})
	}
	return views
}

// StartOAuth initiates the OAuth flow for a provider
func (h *AuthHandler) StartOAuth(w http.ResponseWriter, r *http.Request) {
	providerKey := r.PathValue("provider")
	provider, ok := h.oauthProviders[providerKey]
	if !ok || !provider.configured() {
		h.oauthError(w, r, "OAuth provider not configured", http.StatusBadRequest)
		return
	}

	state := security.GenerateSessionID()

	h.setTempCookie(w, r, "oauth_state", state)
	h.setTempCookie(w, r, "oauth_provider", providerKey)
	h.setTempCookie(w, r, "oauth_next", url.QueryEscape(nextParam(r)))

	oauthCfg := *provider.Config
	oauthCfg.RedirectURL = h.oauthRedirectURL(r, providerKey)

	options := []oauth2.AuthCodeOption{oauth2.AccessTypeOnline}
	for key, value := range provider.AuthParams {
		options = append(options, oauth2.SetAuthURLParam(key, value))
	}

	http.Redirect(w, r, oauthCfg.AuthCodeURL(state, options...), http.StatusFound)
}

// OAuthCallback handles the OAuth provider callback
func (h *AuthHandler) OAuthCallback(w http.ResponseWriter, r *http.Request) {
	providerKey := r.PathValue("provider")
	provider, ok := h.oauthProviders[providerKey]
	if !ok || !provider.configured() {
		h.oauthError(w, r, "OAuth provider not configured", http.StatusBadRequest)
		return
	}

	state := r.URL.Query().Get("state")
	code := r.URL.Query().Get("code")
	if code == "" {
		h.oauthError(w, r, "Missing authorization code", http.StatusBadRequest)
		return
	}

	stateCookie, err := r.Cookie("oauth_state")
	if err != nil || stateCookie.Value == "" || stateCookie.Value != state {
		h.oauthError(w, r, "Invalid OAuth state", http.StatusBadRequest)
		return
	}
	if providerCookie, err := r.Cookie("oauth_provider"); err == nil && providerCookie.Value != providerKey {
		h.oauthError(w, r, "OAuth provider mismatch", http.StatusBadRequest)
		return
	}

	var next string
	if cookie, err := r.Cookie("oauth_next"); err == nil {
		if v, err := url.QueryUnescape(cookie.Value); err == nil {
			next = v
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	oauthCfg := *provider.Config
	oauthCfg.RedirectURL = h.oauthRedirectURL(r, providerKey)

	token, err := oauthCfg.Exchange(ctx, code)
	if err != nil {
		h.logger.Warn("oauth code exchange failed", "provider", providerKey, "error", err)
		h.oauthError(w, r, "Failed to exchange OAuth code", http.StatusBadRequest)
		return
	}

	userInfo, err := provider.FetchUser(ctx, oauthCfg.Client(ctx, token))
	if err != nil {
		h.logger.Warn("failed to read oauth account", "provider", providerKey, "error", err)
		h.oauthError(w, r, err.Error(), http.StatusBadRequest)
		return
	}

	h.clearTempCookie(w, r, "oauth_state")
	h.clearTempCookie(w, r, "oauth_provider")
	h.clearTempCookie(w, r, "oauth_next")

	session, _, err := h.authService.OAuthLogin(r.Context(), providerKey, userInfo.Subject, userInfo.Email, userInfo.Name)
	if err != nil {
		h.logger.Error("oauth login failed", "provider", providerKey, "error", err)
		h.oauthError(w, r, "Sign-in failed. Please try again.", http.StatusBadRequest)
		return
	}

	h.startSession(w, r, session, validation.SafeNext(next, checkout.LibraryRoute))
}

const googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

func fetchGoogleUser(ctx context.Context, client *http.Client) (oauthUserInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, googleUserInfoURL, nil)
	if err != nil {
		return oauthUserInfo{}, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return oauthUserInfo{}, errors.New("failed to fetch Google user info")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return oauthUserInfo{}, fmt.Errorf("Google user info returned %s", resp.Status)
	}

	var payload struct {
		ID    string `json:"id"`
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return oauthUserInfo{}, errors.New("failed to parse Google user info")
	}
	if payload.Email == "" {
		return oauthUserInfo{}, errors.New("Google account has no email address")
	}
	return oauthUserInfo{Subject: payload.ID, Email: payload.Email, Name: payload.Name}, nil
}

func (h *AuthHandler) oauthRedirectURL(r *http.Request, providerKey string) string {
	baseURL := strings.TrimSpace(h.oauthRedirectBaseURL)
	if baseURL == "" {
		scheme := "http"
		if security.IsSecureRequest(r) {
			scheme = "https"
		}
		baseURL = fmt.Sprintf("%s://%s", scheme, r.Host)
	}
	return fmt.Sprintf("%s/auth/%s/callback", strings.TrimRight(baseURL, "/"), providerKey)
}

func (h *AuthHandler) setTempCookie(w http.ResponseWriter, r *http.Request, name, value string) {
	c := security.CreateSessionCookie(r, name, value, time.Now().Add(oauthCookieTTL))
	c.MaxAge = int(oauthCookieTTL.Seconds())
	http.SetCookie(w, c)
}

func (h *AuthHandler) clearTempCookie(w http.ResponseWriter, r *http.Request, name string) {
	http.SetCookie(w, security.CreateDeleteCookie(r, name))
}

func (h *AuthHandler) oauthError(w http.ResponseWriter, r *http.Request, message string, status int) {
	h.site.renderStatus(w, status, "login.tmpl", LoginViewData{
		Page:           h.site.Page(w, r, "Sign in"),
		OAuthProviders: h.oauthProviderViews(""),
		Error:          message,
	})
}
