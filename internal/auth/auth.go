package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/brk3/flux/internal/config"
	"github.com/brk3/flux/internal/logger"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/go-resty/resty/v2"
	"golang.org/x/oauth2"
)

// Authenticator signs users in against the identity provider and keeps the
// resulting session on disk. Failures leave a short user-facing message in
// Message; the next attempt clears it.
type Authenticator struct {
	oauth     *oauth2.Config
	verifier  *oidc.IDTokenVerifier
	signupURL string
	http      *resty.Client
	store     *SessionStore
	now       func() time.Time

	mu      sync.Mutex
	message string
}

func New(ctx context.Context, cfg config.AuthConfig, store *SessionStore) (*Authenticator, error) {
	if cfg.IssuerURL == "" {
		return nil, fmt.Errorf("auth.issuer_url is not configured")
	}
	logger.Debug("Discovering identity provider", "issuer", cfg.IssuerURL)
	prov, err := oidc.NewProvider(ctx, cfg.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create OIDC provider: %w", err)
	}

	oauthCfg := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     prov.Endpoint(),
		Scopes:       cfg.Scopes,
	}
	verifier := prov.Verifier(&oidc.Config{ClientID: cfg.ClientID})
	return newAuthenticator(oauthCfg, verifier, cfg.SignupURL, store), nil
}

func newAuthenticator(oauthCfg *oauth2.Config, verifier *oidc.IDTokenVerifier, signupURL string, store *SessionStore) *Authenticator {
	return &Authenticator{
		oauth:     oauthCfg,
		verifier:  verifier,
		signupURL: signupURL,
		http:      resty.New().SetTimeout(config.DefaultTimeout),
		store:     store,
		now:       time.Now,
	}
}

// Message is the last sign-in, sign-up or sign-out failure, or "".
func (a *Authenticator) Message() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.message
}

func (a *Authenticator) setMessage(m string) {
	a.mu.Lock()
	a.message = m
	a.mu.Unlock()
}

func (a *Authenticator) SignIn(ctx context.Context, email, password string) (*Session, error) {
	a.setMessage("")
	logger.Debug("Signing in", "email", email)

	tok, err := a.oauth.PasswordCredentialsToken(ctx, email, password)
	if err != nil {
		a.setMessage(describe(err, "Sign in failed"))
		return nil, fmt.Errorf("sign in: %w", err)
	}
	sess, err := a.sessionFromToken(ctx, tok, nil)
	if err != nil {
		a.setMessage("Sign in failed: the identity provider returned an invalid token")
		return nil, fmt.Errorf("sign in: %w", err)
	}
	if err := a.store.Save(sess); err != nil {
		logger.Warn("Failed to persist session", "user_id", sess.UserID, "error", err)
	}
	logger.Info("Signed in", "user_id", sess.UserID)
	return sess, nil
}

type signupError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// SignUp registers the account and then signs in with it.
func (a *Authenticator) SignUp(ctx context.Context, email, password string) (*Session, error) {
	a.setMessage("")
	if a.signupURL == "" {
		a.setMessage("Sign up is not available")
		return nil, fmt.Errorf("sign up: auth.signup_url is not configured")
	}

	var failure signupError
	resp, err := a.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"email": email, "password": password}).
		SetError(&failure).
		Post(a.signupURL)
	if err != nil {
		a.setMessage("Sign up failed: could not reach the server")
		return nil, fmt.Errorf("sign up: %w", err)
	}
	if !resp.IsSuccess() {
		msg := failure.Message
		if msg == "" {
			msg = failure.Error
		}
		if msg == "" {
			msg = resp.Status()
		}
		a.setMessage("Sign up failed: " + msg)
		return nil, fmt.Errorf("sign up: %s", resp.Status())
	}
	return a.SignIn(ctx, email, password)
}

// SignOut forgets the stored session.
func (a *Authenticator) SignOut() error {
	a.setMessage("")
	if err := a.store.Delete(); err != nil {
		a.setMessage("Sign out failed: " + err.Error())
		return fmt.Errorf("sign out: %w", err)
	}
	logger.Info("Signed out")
	return nil
}

// Current returns the stored session, refreshing it first when the access
// token has expired. A session that cannot be refreshed is deleted.
func (a *Authenticator) Current(ctx context.Context) (*Session, error) {
	sess, err := a.store.Load()
	if err != nil {
		return nil, err
	}
	if !sess.Expired(a.now()) {
		return sess, nil
	}

	logger.Debug("Session expired, attempting refresh", "user_id", sess.UserID, "expiry", sess.ExpiresAt)
	if sess.RefreshToken == "" {
		a.forget(sess.UserID)
		return nil, ErrNoSession
	}

	ts := a.oauth.TokenSource(ctx, &oauth2.Token{
		AccessToken:  sess.AccessToken,
		RefreshToken: sess.RefreshToken,
		Expiry:       sess.ExpiresAt,
	})
	tok, err := ts.Token()
	if err != nil {
		logger.Debug("Token refresh failed", "user_id", sess.UserID, "error", err)
		a.forget(sess.UserID)
		return nil, fmt.Errorf("%w: refresh failed: %v", ErrNoSession, err)
	}

	fresh, err := a.sessionFromToken(ctx, tok, sess)
	if err != nil {
		a.forget(sess.UserID)
		return nil, fmt.Errorf("%w: %v", ErrNoSession, err)
	}
	if err := a.store.Save(fresh); err != nil {
		logger.Warn("Failed to persist refreshed session", "user_id", fresh.UserID, "error", err)
	}
	logger.Debug("Session refreshed", "user_id", fresh.UserID, "expiry", fresh.ExpiresAt)
	return fresh, nil
}

func (a *Authenticator) forget(userID string) {
	if err := a.store.Delete(); err != nil {
		logger.Error("Failed to delete session", "user_id", userID, "error", err)
	}
}

// sessionFromToken verifies the token's id_token and builds a session. When
// a refresh response carries no id_token the identity in prev is kept.
func (a *Authenticator) sessionFromToken(ctx context.Context, tok *oauth2.Token, prev *Session) (*Session, error) {
	sess := &Session{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    tok.Expiry,
	}

	rawIDToken, _ := tok.Extra("id_token").(string)
	if rawIDToken == "" {
		if prev == nil {
			return nil, errors.New("no id_token in token response")
		}
		sess.IDToken, sess.UserID, sess.Email = prev.IDToken, prev.UserID, prev.Email
		return sess, nil
	}

	idTok, err := a.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("id_token invalid: %w", err)
	}
	var claims map[string]any
	if err := idTok.Claims(&claims); err != nil {
		return nil, fmt.Errorf("id_token claims: %w", err)
	}

	sess.IDToken = rawIDToken
	sess.UserID = UserIDFromClaims(claims)
	sess.Email = strClaim(claims, "email")
	if sess.UserID == "" {
		return nil, errors.New("id_token has no issuer or subject")
	}
	return sess, nil
}

func describe(err error, prefix string) string {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		if re.ErrorDescription != "" {
			return prefix + ": " + re.ErrorDescription
		}
		if re.ErrorCode != "" {
			return prefix + ": " + re.ErrorCode
		}
	}
	return prefix + ": could not reach the identity provider"
}
