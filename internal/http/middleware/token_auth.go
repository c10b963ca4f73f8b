package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/drmente/intake-api/pkg/logging"
)

// TokenParam is the query parameter carrying the inbound API token.
const TokenParam = "token"

// TokenAuth checks the token query parameter against expected. The order of
// checks matters to callers: a missing token is reported before a missing
// server configuration.
func TokenAuth(expected string, logger *logging.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = logging.Default()
	}
	expected = strings.TrimSpace(expected)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := r.URL.Query().Get(TokenParam)
			if token == "" {
				writeError(w, http.StatusBadRequest, "Token is required")
				return
			}
			if expected == "" {
				logger.Error("AUTH_API_TOKEN not configured")
				writeError(w, http.StatusInternalServerError, "Auth api token not configured")
				return
			}
			if subtle.ConstantTimeCompare([]byte(token), []byte(expected)) != 1 {
				logger.Warn("invalid api token", "path", r.URL.Path, "remote_ip", r.RemoteAddr)
				writeError(w, http.StatusUnauthorized, "Invalid token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
