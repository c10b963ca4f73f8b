package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func okHandler(called *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if called != nil {
			*called = true
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestCORSAllowsListedOrigin(t *testing.T) {
	called := false
	mw := CORS([]string{"https://drmente.com.br"})
	req := httptest.NewRequest(http.MethodGet, "/api/search-patient", nil)
	req.Header.Set("Origin", "https://drmente.com.br")
	rec := httptest.NewRecorder()

	mw(okHandler(&called)).ServeHTTP(rec, req)

	if !called {
		t.Fatalf("expected handler to be called")
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://drmente.com.br" {
		t.Fatalf("expected allow origin header, got %q", got)
	}
	if rec.Header().Get("Access-Control-Allow-Methods") == "" {
		t.Fatalf("expected allow methods header")
	}
}

func TestCORSDeniesUnknownOrigin(t *testing.T) {
	mw := CORS([]string{"https://drmente.com.br"})
	req := httptest.NewRequest(http.MethodGet, "/api/search-patient", nil)
	req.Header.Set("Origin", "https://unknown.example")
	rec := httptest.NewRecorder()

	mw(okHandler(nil)).ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("expected no allow origin header, got %q", got)
	}
}

func TestCORSWildcardSendsStar(t *testing.T) {
	mw := CORS([]string{"*"})
	req := httptest.NewRequest(http.MethodPost, "/api/create-patient", nil)
	rec := httptest.NewRecorder()

	mw(okHandler(nil)).ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("expected wildcard origin, got %q", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Headers"); got != "Content-Type, Authorization" {
		t.Fatalf("unexpected allow headers %q", got)
	}
}

func TestCORSAnswersOptionsWithoutCallingNext(t *testing.T) {
	called := false
	mw := CORS([]string{"*"})
	req := httptest.NewRequest(http.MethodOptions, "/api/webhook-formshare", nil)
	rec := httptest.NewRecorder()

	mw(okHandler(&called)).ServeHTTP(rec, req)

	if called {
		t.Fatalf("expected preflight to short-circuit")
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
}

func TestCORSPolicyAllowOrigin(t *testing.T) {
	policy := newCORSPolicy([]string{" https://drmente.com.br ", "", "https://app.drmente.com.br"})
	if value, vary := policy.allowOrigin("https://app.drmente.com.br"); value != "https://app.drmente.com.br" || !vary {
		t.Fatalf("expected listed origin echoed with vary, got %q %v", value, vary)
	}
	if value, _ := policy.allowOrigin(""); value != "" {
		t.Fatalf("expected no value without origin, got %q", value)
	}
	if value, vary := newCORSPolicy([]string{"*"}).allowOrigin(""); value != "*" || vary {
		t.Fatalf("expected literal wildcard, got %q %v", value, vary)
	}
}
