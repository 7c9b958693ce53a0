package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"

	"github.com/coreos/go-oidc"
	"golang.org/x/oauth2"

	"change-risk/backend/internal/config"
)

type contextKey struct{}

// requesterKey carries the authenticated requester's email.
var requesterKey = contextKey{}

// DevRequester is the identity used when authentication is bypassed.
const DevRequester = "dev@localhost"

// WithRequester returns a copy of ctx carrying email.
func WithRequester(ctx context.Context, email string) context.Context {
	return context.WithValue(ctx, requesterKey, email)
}

// RequesterFromContext returns the email stored by RequireAuth.
func RequesterFromContext(ctx context.Context) (string, bool) {
	email, ok := ctx.Value(requesterKey).(string)
	return email, ok && email != ""
}

// Logger defines the logging interface compatible with the application logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}

// Auth contains configuration and helpers for performing OpenID Connect
// authentication with an Okta tenant.
type Auth struct {
	oauth2Config *oauth2.Config
	verifier     *oidc.IDTokenVerifier
	apiVerifier  *oidc.IDTokenVerifier
	domains      map[string]bool
	logger       Logger
	devMode      bool
	authBypass   bool
}

const (
	stateCookie   = "oauthstate"
	sessionCookie = "id_token"
)

// tokenClaims are the claims read from ID and access tokens. Scopes is only
// present on access tokens.
type tokenClaims struct {
	Email  string   `json:"email"`
	Scopes []string `json:"scp"`
}

// authError is a rejected request with the status to answer it with.
type authError struct {
	status int
	msg    string
}

// New creates a new Auth object using values from the application
// configuration. It establishes a connection to the provider and prepares an
// ID token verifier.
func New(ctx context.Context, cfg *config.Config, logger Logger) (*Auth, error) {
	isDev := cfg.IsDevelopment()
	shouldBypass := isDev && cfg.Server.DevModeBypass

	var oauth2Config *oauth2.Config
	var verifier *oidc.IDTokenVerifier
	var apiVerifier *oidc.IDTokenVerifier

	if !shouldBypass {
		if cfg.Auth.OktaDomain == "" || cfg.Auth.ClientID == "" ||
			cfg.Auth.ClientSecret == "" || cfg.Auth.RedirectURL == "" {
			return nil, errors.New("auth configuration is incomplete")
		}

		provider, err := oidc.NewProvider(ctx, cfg.Auth.OktaDomain)
		if err != nil {
			return nil, err
		}

		oauth2Config = &oauth2.Config{
			ClientID:     cfg.Auth.ClientID,
			ClientSecret: cfg.Auth.ClientSecret,
			Endpoint:     provider.Endpoint(),
			RedirectURL:  cfg.Auth.RedirectURL,
			Scopes:       []string{ScopeOpenID, ScopeEmail},
		}

		verifier = provider.Verifier(&oidc.Config{ClientID: cfg.Auth.ClientID})

		// Create a separate verifier for Access Tokens (Bearer).
		// We skip ClientID check because Access Tokens often have a different audience (e.g. "api://default")
		apiVerifier = provider.Verifier(&oidc.Config{SkipClientIDCheck: true})
	}

	var domains map[string]bool
	if len(cfg.Auth.AllowedDomains) > 0 {
		domains = make(map[string]bool, len(cfg.Auth.AllowedDomains))
		for _, d := range cfg.Auth.AllowedDomains {
			domains[strings.ToLower(d)] = true
		}
	}

	return &Auth{
		oauth2Config: oauth2Config,
		verifier:     verifier,
		apiVerifier:  apiVerifier,
		domains:      domains,
		logger:       logger,
		devMode:      isDev,
		authBypass:   shouldBypass,
	}, nil
}

// LoginHandler starts the authorization code flow. The random state value is
// kept in a short-lived cookie and checked on callback.
func (a *Auth) LoginHandler(w http.ResponseWriter, r *http.Request) {
	if a.authBypass {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	state, err := generateState()
	if err != nil {
		http.Error(w, "failed to generate state", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, a.cookie(stateCookie, state, 600))
	http.Redirect(w, r, a.oauth2Config.AuthCodeURL(state), http.StatusTemporaryRedirect)
}

// CallbackHandler completes the login: it checks state, exchanges the code,
// verifies the ID token and stores it in the session cookie.
func (a *Auth) CallbackHandler(w http.ResponseWriter, r *http.Request) {
	if a.authBypass {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	cookie, err := r.Cookie(stateCookie)
	if err != nil || r.URL.Query().Get("state") != cookie.Value {
		http.Error(w, "invalid state", http.StatusBadRequest)
		return
	}
	http.SetCookie(w, a.cookie(stateCookie, "", -1))

	token, err := a.oauth2Config.Exchange(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		a.log().Error("token exchange failed", "error", err)
		http.Error(w, "token exchange failed", http.StatusInternalServerError)
		return
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		http.Error(w, "no id_token in token response", http.StatusInternalServerError)
		return
	}

	idToken, err := a.verifier.Verify(r.Context(), rawIDToken)
	if err != nil {
		http.Error(w, "failed to verify id token", http.StatusUnauthorized)
		return
	}

	var claims tokenClaims
	if err := idToken.Claims(&claims); err == nil {
		a.log().Info("user signed in", "email", claims.Email)
	}

	http.SetCookie(w, a.cookie(sessionCookie, rawIDToken, 0))
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// RequireAuth accepts a bearer access token or the session cookie, checks
// the requester's email domain and stores the email in the request context.
// Access tokens that carry scopes must grant changerisk:read for safe
// methods and changerisk:write for everything else. Browser requests without
// credentials are redirected to the login page.
func (a *Auth) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.authBypass {
			next.ServeHTTP(w, r.WithContext(WithRequester(r.Context(), DevRequester)))
			return
		}

		claims, aerr := a.authenticate(r)
		if aerr != nil {
			if aerr.status == http.StatusSeeOther {
				http.Redirect(w, r, "/login", http.StatusSeeOther)
				return
			}
			http.Error(w, aerr.msg, aerr.status)
			return
		}

		if aerr := a.authorize(r, claims); aerr != nil {
			a.log().Info("request rejected", "email", claims.Email, "reason", aerr.msg)
			http.Error(w, aerr.msg, aerr.status)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithRequester(r.Context(), claims.Email)))
	})
}

func (a *Auth) authenticate(r *http.Request) (*tokenClaims, *authError) {
	var (
		token *oidc.IDToken
		err   error
	)
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		// Access tokens have a different audience from the web client.
		token, err = a.apiVerifier.Verify(r.Context(), strings.TrimPrefix(header, "Bearer "))
	} else {
		cookie, cerr := r.Cookie(sessionCookie)
		if cerr != nil {
			return nil, &authError{status: http.StatusSeeOther}
		}
		token, err = a.verifier.Verify(r.Context(), cookie.Value)
	}
	if err != nil {
		return nil, &authError{status: http.StatusUnauthorized, msg: "invalid token: " + err.Error()}
	}

	var claims tokenClaims
	if err := token.Claims(&claims); err != nil {
		return nil, &authError{status: http.StatusUnauthorized, msg: "failed to parse token claims"}
	}
	return &claims, nil
}

func (a *Auth) authorize(r *http.Request, claims *tokenClaims) *authError {
	local, domain, ok := strings.Cut(claims.Email, "@")
	if !ok || local == "" || domain == "" {
		return &authError{status: http.StatusUnauthorized, msg: "invalid email format in token"}
	}
	if a.domains != nil && !a.domains[strings.ToLower(domain)] {
		return &authError{status: http.StatusForbidden, msg: "requester domain not allowed"}
	}

	if len(claims.Scopes) > 0 {
		need := ScopeAssessmentWrite
		if r.Method == http.MethodGet || r.Method == http.MethodHead {
			need = ScopeAssessmentRead
		}
		if !hasScope(claims.Scopes, need) {
			return &authError{status: http.StatusForbidden, msg: "missing scope " + need}
		}
	}
	return nil
}

// LogoutHandler clears the session cookie and redirects to the home page.
func (a *Auth) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, a.cookie(sessionCookie, "", -1))
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// cookie builds an HttpOnly cookie, Secure outside development.
func (a *Auth) cookie(name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   !a.devMode,
		SameSite: http.SameSiteLaxMode,
	}
}

func (a *Auth) log() Logger {
	if a.logger == nil {
		return nopLogger{}
	}
	return a.logger
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

func hasScope(granted []string, want string) bool {
	for _, s := range granted {
		if s == want {
			return true
		}
	}
	return false
}

func generateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}
