package auth

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"time"
)

var ErrNoSession = errors.New("auth: no session")

// Session is what the sync layer is gated on: a bearer token and the stable
// id of the user it belongs to.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	IDToken      string    `json:"id_token,omitempty"`
	UserID       string    `json:"user_id"`
	Email        string    `json:"email,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Expired reports whether the access token is past its expiry. Sessions
// without an expiry never expire.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// StaticSession wraps a long-lived API token. The user id is derived from the
// token so cache entries stay separate per token.
func StaticSession(token string) *Session {
	if token == "" {
		return nil
	}
	return &Session{AccessToken: token, UserID: UserIDFromToken(token)}
}

// UserIDFromClaims derives a stable user id from an ID token's issuer and
// subject.
func UserIDFromClaims(claims map[string]any) string {
	iss, ok := claims["iss"].(string)
	if !ok {
		return ""
	}
	sub, ok := claims["sub"].(string)
	if !ok {
		return ""
	}

	hash := sha256.Sum256([]byte(iss + "|" + sub))
	return fmt.Sprintf("user-%x", hash[:8])
}

func UserIDFromToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return fmt.Sprintf("user-%x", hash[:8])
}

func strClaim(m map[string]any, k string) string {
	if v, ok := m[k].(string); ok {
		return v
	}
	return ""
}
