package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNtfyNotifierPostsMessage(t *testing.T) {
	var got map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/drmente-test", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	n := NewNtfyNotifier(server.URL+"/drmente-test", server.Client())
	require.NotNil(t, n)
	require.NoError(t, n.Notify(context.Background(), "Resposta recebida"))
	assert.Equal(t, map[string]string{"message": "Resposta recebida"}, got)
}

func TestNtfyNotifierReportsErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer server.Close()

	n := NewNtfyNotifier(server.URL, server.Client())
	err := n.Notify(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status=429")
}

func TestNewNtfyNotifierBlankURL(t *testing.T) {
	assert.Nil(t, NewNtfyNotifier("  ", nil))

	var n *NtfyNotifier
	assert.Error(t, n.Notify(context.Background(), "x"))
}
