// Package notify posts alerts to the human-agent notification channel.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ashureev/line-handoff/internal/line"
)

// Client sends plain-text notifications to the agent channel using its own
// bearer token, independent of the messaging channel credential.
type Client struct {
	endpoint    string
	accessToken string
	httpClient  *http.Client
}

// NewClient creates an agent-channel notifier.
func NewClient(endpoint, accessToken string) *Client {
	return &Client{
		endpoint:    endpoint,
		accessToken: accessToken,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Notify posts a text alert to the agent channel.
func (c *Client) Notify(ctx context.Context, text string) error {
	payload, err := json.Marshal(map[string]string{"message": text})
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build notification request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return &line.UpstreamError{Status: resp.StatusCode, Body: string(body)}
	}
	return nil
}
