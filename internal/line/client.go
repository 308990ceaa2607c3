package line

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ashureev/line-handoff/internal/cache"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// UpstreamError is any non-success response from the LINE platform.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream status %d: %s", e.Status, e.Body)
}

// Profile is the platform profile of a user. Display-only data: it carries
// no routing state, the session store is authoritative for hand-off mode.
type Profile struct {
	UserID        string `json:"userId"`
	DisplayName   string `json:"displayName"`
	PictureURL    string `json:"pictureUrl,omitempty"`
	StatusMessage string `json:"statusMessage,omitempty"`
	Language      string `json:"language,omitempty"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// ClientConfig holds configuration for the LINE Messaging API client.
type ClientConfig struct {
	BaseURL        string
	ChannelID      string
	ChannelSecret  string
	TokenEndpoint  string
	RequestTimeout time.Duration
	CacheTTL       time.Duration
}

// DefaultClientConfig returns default client timeouts.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		RequestTimeout: 10 * time.Second,
		CacheTTL:       cache.DefaultTTL,
	}
}

// Client talks to the LINE Messaging API with a cached stateless channel
// access token. Safe for concurrent use.
type Client struct {
	cfg        ClientConfig
	httpClient *http.Client
	cache      *cache.Cache
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// NewClient creates a LINE client backed by the given credential cache.
func NewClient(cfg ClientConfig, credCache *cache.Cache, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = DefaultClientConfig().RequestTimeout
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultClientConfig().CacheTTL
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		cache:      credCache,
		// LINE enforces per-endpoint quotas; 10 rps with small bursts stays
		// well inside them for a single official account.
		limiter: rate.NewLimiter(rate.Limit(10), 20),
		logger:  logger,
	}
}

// accessToken returns a cached stateless channel access token, issuing a
// fresh one on cache miss. Stateless tokens are valid for 15 minutes; the
// cache TTL follows the expires_in the issuer reports, never exceeding it.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	if cached, ok := c.cache.Get(c.cfg.ChannelID); ok {
		if token, ok := cached.(string); ok {
			return token, nil
		}
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", c.cfg.ChannelID)
	form.Set("client_secret", c.cfg.ChannelSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.TokenEndpoint,
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("issue access token: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", &UpstreamError{Status: resp.StatusCode, Body: string(body)}
	}

	var tok tokenResponse
	if err := json.Unmarshal(body, &tok); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if tok.AccessToken == "" {
		return "", &UpstreamError{Status: resp.StatusCode, Body: string(body)}
	}

	ttl := c.cfg.CacheTTL
	if tok.ExpiresIn > 0 {
		if reported := time.Duration(tok.ExpiresIn) * time.Second; reported < ttl {
			ttl = reported
		}
	}
	// Populate only after successful issuance.
	c.cache.Set(c.cfg.ChannelID, tok.AccessToken, ttl)

	c.logger.Debug("issued stateless channel access token", "expires_in", tok.ExpiresIn)
	return tok.AccessToken, nil
}

// GetProfile resolves a user's profile, using the cache when fresh.
func (c *Client) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	if cached, ok := c.cache.Get(userID); ok {
		if profile, ok := cached.(*Profile); ok {
			return profile, nil
		}
	}

	var profile Profile
	if err := c.call(ctx, http.MethodGet, "/profile/"+userID, nil, nil, http.StatusOK, &profile); err != nil {
		return nil, fmt.Errorf("get profile %s: %w", userID, err)
	}

	c.cache.Set(userID, &profile, c.cfg.CacheTTL)
	return &profile, nil
}

// StartLoadingAnimation shows a typing indicator in a one-on-one chat.
// Callers treat failures as best-effort; the platform answers 202.
func (c *Client) StartLoadingAnimation(ctx context.Context, userID string) error {
	payload := map[string]any{
		"chatId":         userID,
		"loadingSeconds": 10,
	}
	if err := c.call(ctx, http.MethodPost, "/chat/loading/start", nil, payload, http.StatusAccepted, nil); err != nil {
		return fmt.Errorf("start loading animation: %w", err)
	}
	return nil
}

// ReplyMessage answers an inbound event using its reply token.
func (c *Client) ReplyMessage(ctx context.Context, replyToken string, messages []Message) error {
	payload := map[string]any{
		"replyToken": replyToken,
		"messages":   messages,
	}
	if err := c.call(ctx, http.MethodPost, "/message/reply", nil, payload, http.StatusOK, nil); err != nil {
		return fmt.Errorf("reply message: %w", err)
	}
	return nil
}

// PushMessage sends messages to a user outside the reply window. The
// X-Line-Retry-Key makes a redelivered push idempotent platform-side.
func (c *Client) PushMessage(ctx context.Context, userID string, messages []Message) error {
	payload := map[string]any{
		"to":       userID,
		"messages": messages,
	}
	headers := map[string]string{"X-Line-Retry-Key": uuid.NewString()}
	if err := c.call(ctx, http.MethodPost, "/message/push", headers, payload, http.StatusOK, nil); err != nil {
		return fmt.Errorf("push message: %w", err)
	}
	return nil
}

// call performs one authenticated API request and decodes the response into
// out when it is non-nil. A status other than wantStatus becomes an
// UpstreamError carrying the response body.
func (c *Client) call(ctx context.Context, method, path string, headers map[string]string, payload any, wantStatus int, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	token, err := c.accessToken(ctx)
	if err != nil {
		return err
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}
	if resp.StatusCode != wantStatus {
		return &UpstreamError{Status: resp.StatusCode, Body: string(respBody)}
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("decode response body: %w", err)
		}
	}
	return nil
}
