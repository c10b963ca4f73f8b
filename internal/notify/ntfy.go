package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// NtfyNotifier publishes messages to an ntfy topic URL.
type NtfyNotifier struct {
	url    string
	client *http.Client
}

// NewNtfyNotifier returns nil when url is blank so callers can skip the sink.
func NewNtfyNotifier(url string, client *http.Client) *NtfyNotifier {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &NtfyNotifier{url: url, client: client}
}

// Notify posts {"message": message} to the topic.
func (n *NtfyNotifier) Notify(ctx context.Context, message string) error {
	if n == nil || n.url == "" {
		return errors.New("notify: ntfy url not configured")
	}
	body, err := json.Marshal(map[string]string{"message": message})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("ntfy error: status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	return nil
}
