package server

import (
	"crypto/sha256"
	"fmt"
	"net/http"
	"strings"
)

// hashAPIKey creates a SHA256 hash of a bearer token for logging
func hashAPIKey(apiKey string) string {
	hash := sha256.Sum256([]byte(apiKey))
	return fmt.Sprintf("%x", hash)
}

// truncateHash returns a truncated hash for display/logging
// Returns first 16 chars + "..." or the full hash if shorter
func truncateHash(hash string) string {
	if len(hash) <= 16 {
		return hash
	}
	return hash[:16] + "..."
}

func bearerToken(r *http.Request) (string, bool) {
	ah := r.Header.Get("Authorization")
	if len(ah) < len("Bearer ") || !strings.EqualFold(ah[:len("Bearer ")], "Bearer ") {
		return "", false
	}
	tok := strings.TrimSpace(ah[len("Bearer "):])
	return tok, tok != ""
}
