package middleware

import (
	"net/http"
	"strings"
)

const (
	corsAllowHeaders = "Content-Type, Authorization"
	corsAllowMethods = "GET, POST, OPTIONS"
	corsMaxAge       = "600"
)

// corsPolicy decides which Access-Control-Allow-Origin value a request gets.
type corsPolicy struct {
	wildcard bool
	origins  map[string]bool
}

func newCORSPolicy(allowedOrigins []string) corsPolicy {
	p := corsPolicy{origins: make(map[string]bool, len(allowedOrigins))}
	for _, raw := range allowedOrigins {
		switch origin := strings.TrimSpace(raw); origin {
		case "":
		case "*":
			p.wildcard = true
		default:
			p.origins[origin] = true
		}
	}
	return p
}

// allowOrigin returns the header value for origin and whether Vary must be set.
// An empty value means the origin is not allowed.
func (p corsPolicy) allowOrigin(origin string) (string, bool) {
	if p.wildcard {
		return "*", false
	}
	if origin != "" && p.origins[origin] {
		return origin, true
	}
	return "", false
}

// CORS answers every OPTIONS request with 200 before auth runs, since the
// public intake forms preflight without credentials. "*" is sent literally.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	policy := newCORSPolicy(allowedOrigins)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			if value, vary := policy.allowOrigin(strings.TrimSpace(r.Header.Get("Origin"))); value != "" {
				h.Set("Access-Control-Allow-Origin", value)
				if vary {
					h.Add("Vary", "Origin")
				}
				h.Set("Access-Control-Allow-Headers", corsAllowHeaders)
				h.Set("Access-Control-Allow-Methods", corsAllowMethods)
				h.Set("Access-Control-Max-Age", corsMaxAge)
			}
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
