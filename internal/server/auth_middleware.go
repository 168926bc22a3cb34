package server

import (
	"context"
	"net/http"

	"github.com/brk3/flux/internal/auth"
	"github.com/brk3/flux/internal/logger"
)

type userCtxKey struct{}

type User struct {
	UserID string
	// Subject identifies the token in logs without revealing it.
	Subject string
}

// authMiddleware accepts any bearer token. The user id is derived from the
// token the same way the CLI derives it for static tokens, so each token
// owns its own ledger account.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			RecordAuthEvent("verification", "missing_token")
			s.handleAuthFailure(w, r)
			return
		}

		user := &User{
			UserID:  auth.UserIDFromToken(token),
			Subject: "token:" + truncateHash(hashAPIKey(token)),
		}
		logger.Debug("Bearer authentication successful", "user_id", user.UserID, "subject", user.Subject)
		RecordAuthEvent("verification", "success")
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userCtxKey{}, user)))
	})
}

// userIDFromContext extracts user ID from authenticated request context
func userIDFromContext(r *http.Request) string {
	user, ok := r.Context().Value(userCtxKey{}).(*User)
	if !ok {
		logger.Error("No user in context")
		return ""
	}
	return user.UserID
}

func (s *Server) handleAuthFailure(w http.ResponseWriter, r *http.Request) {
	logger.Debug("Returning 401 unauthorized", "path", r.URL.Path, "method", r.Method)
	w.Header().Set("WWW-Authenticate", `Bearer realm="flux"`)
	writeError(w, http.StatusUnauthorized, "unauthorized", "bearer token required")
}
