// Package messaging is the chat-bot transport boundary: an HTTP client for
// the reply/push message endpoints and webhook parsing with HMAC-SHA256
// signature verification.
package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultAPIBase is the messaging API the client talks to unless overridden
// (tests point it at an httptest server).
const DefaultAPIBase = "https://api.line.me/v2/bot"

// Client sends messages through the bot channel. Both Reply and Push are
// fire-and-forget from the caller's perspective: failures are returned for
// logging, never retried here.
type Client struct {
	httpClient  *http.Client
	apiBase     string
	accessToken string
}

// Option configures a Client.
type Option func(*Client)

// WithAPIBase overrides the messaging API base URL.
func WithAPIBase(base string) Option {
	return func(c *Client) { c.apiBase = base }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func NewClient(accessToken string, opts ...Option) *Client {
	c := &Client{
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		apiBase:     DefaultAPIBase,
		accessToken: accessToken,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type textMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Reply sends a single text response to one webhook event.
func (c *Client) Reply(ctx context.Context, replyToken, text string) error {
	body := map[string]interface{}{
		"replyToken": replyToken,
		"messages":   []textMessage{{Type: "text", Text: text}},
	}
	return c.post(ctx, "/message/reply", body)
}

// Push sends an unsolicited text message to an account.
func (c *Client) Push(ctx context.Context, accountID, text string) error {
	body := map[string]interface{}{
		"to":       accountID,
		"messages": []textMessage{{Type: "text", Text: text}},
	}
	return c.post(ctx, "/message/push", body)
}

func (c *Client) post(ctx context.Context, path string, body interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("messaging: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiBase+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("messaging: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("messaging: %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("messaging: %s: status %d: %s", path, resp.StatusCode, detail)
	}
	return nil
}
