/**
 * @description
 * Client for the voice platform's REST API. Credentials are supplied by the
 * caller through Config; the client keeps no package-level state.
 */
package vapiclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/razajohri/lunalink-real/internal/domain"
)

var ErrNotConfigured = errors.New("voice api key is not configured")

// Config carries the credentials and endpoint for one voice platform account.
type Config struct {
	BaseURL string
	APIKey  string
}

// Client is a client for the voice platform.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a new voice platform client.
func NewClient(cfg Config) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(strings.TrimSpace(cfg.BaseURL), "/"),
		apiKey:     strings.TrimSpace(cfg.APIKey),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// ListCalls returns the calls placed by the account, optionally for one assistant.
func (c *Client) ListCalls(ctx context.Context, assistantID string) ([]domain.VoiceCallRecord, error) {
	if c.apiKey == "" {
		return nil, ErrNotConfigured
	}

	endpoint := c.baseURL + "/call"
	if assistantID = strings.TrimSpace(assistantID); assistantID != "" {
		endpoint += "?assistantId=" + url.QueryEscape(assistantID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("voice api error: %s", resp.Status)
	}

	var calls []domain.VoiceCallRecord
	if err := json.NewDecoder(resp.Body).Decode(&calls); err != nil {
		return nil, fmt.Errorf("failed to parse calls response: %w", err)
	}
	if calls == nil {
		calls = []domain.VoiceCallRecord{}
	}
	return calls, nil
}
