package main

import (
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"testing"

	"github.com/aws/aws-lambda-go/events"
)

func event(method, path, query, body string) events.APIGatewayV2HTTPRequest {
	return events.APIGatewayV2HTTPRequest{
		RawPath:        path,
		RawQueryString: query,
		Body:           body,
		Headers:        map[string]string{"content-type": "application/json"},
		RequestContext: events.APIGatewayV2HTTPRequestContext{
			RequestID:  "req-1",
			DomainName: "api.drmente.com.br",
			HTTP: events.APIGatewayV2HTTPRequestContextHTTPDescription{
				Method:   method,
				Path:     path,
				SourceIP: "203.0.113.7",
			},
		},
	}
}

type captured struct {
	method, path, query, body, realIP, reqID, host string
}

func capture(into *captured) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		*into = captured{
			method: r.Method,
			path:   r.URL.Path,
			query:  r.URL.RawQuery,
			body:   string(b),
			realIP: r.Header.Get("X-Real-Ip"),
			reqID:  r.Header.Get("X-Request-Id"),
			host:   r.Host,
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"success":true}`))
	})
}

func TestHandleReplaysRequest(t *testing.T) {
	var got captured
	resp, err := handle(context.Background(), capture(&got), event(http.MethodPost, "/api/create-patient", "token=secret", `{"full_name":"Ana"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected status %d, got %d", http.StatusCreated, resp.StatusCode)
	}
	if resp.Body != `{"success":true}` {
		t.Fatalf("unexpected body %q", resp.Body)
	}
	if resp.Headers["content-type"] != "application/json" {
		t.Fatalf("expected content-type header, got %v", resp.Headers)
	}
	if got.method != http.MethodPost || got.path != "/api/create-patient" || got.query != "token=secret" {
		t.Fatalf("unexpected request %+v", got)
	}
	if got.body != `{"full_name":"Ana"}` {
		t.Fatalf("unexpected forwarded body %q", got.body)
	}
	if got.realIP != "203.0.113.7" || got.reqID != "req-1" || got.host != "api.drmente.com.br" {
		t.Fatalf("unexpected forwarded metadata %+v", got)
	}
}

func TestHandleDecodesBase64Body(t *testing.T) {
	var got captured
	evt := event(http.MethodPost, "/api/webhook-formshare", "", base64.StdEncoding.EncodeToString([]byte(`{"formId":"f1"}`)))
	evt.IsBase64Encoded = true

	if _, err := handle(context.Background(), capture(&got), evt); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.body != `{"formId":"f1"}` {
		t.Fatalf("expected decoded body, got %q", got.body)
	}
}

func TestHandleInvalidBase64Body(t *testing.T) {
	evt := event(http.MethodPost, "/api/webhook-formshare", "", "%%%")
	evt.IsBase64Encoded = true

	resp, err := handle(context.Background(), http.NotFoundHandler(), evt)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, resp.StatusCode)
	}
}

func TestHandleFallsBackToContextPath(t *testing.T) {
	var got captured
	evt := event(http.MethodGet, "", "", "")
	evt.RequestContext.HTTP.Path = "/health"

	if _, err := handle(context.Background(), capture(&got), evt); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.path != "/health" {
		t.Fatalf("expected /health, got %q", got.path)
	}
}

func TestDecodeBodyBase64(t *testing.T) {
	evt := events.APIGatewayV2HTTPRequest{
		Body:            base64.StdEncoding.EncodeToString([]byte("hello")),
		IsBase64Encoded: true,
	}
	got, err := decodeBody(evt)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(got) != "hello" {
		t.Fatalf("expected hello, got %q", got)
	}
}
