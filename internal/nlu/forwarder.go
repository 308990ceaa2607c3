// Package nlu forwards webhook payloads to the NLU collaborator for
// automated replies.
package nlu

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ashureev/line-handoff/internal/line"
)

// Forwarder relays the raw webhook payload to the NLU fulfillment endpoint.
// The payload is opaque to this service; the NLU side answers the user
// through its own channel integration.
type Forwarder struct {
	endpoint   string
	httpClient *http.Client
}

// NewForwarder creates an NLU forwarder for the given endpoint.
func NewForwarder(endpoint string) *Forwarder {
	return &Forwarder{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// Forward posts the raw webhook body as received. The bytes are passed
// through untouched so the downstream signature check, if any, still holds.
func (f *Forwarder) Forward(ctx context.Context, rawBody []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.endpoint, bytes.NewReader(rawBody))
	if err != nil {
		return fmt.Errorf("build forward request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("forward to nlu: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return &line.UpstreamError{Status: resp.StatusCode, Body: string(body)}
	}
	return nil
}
