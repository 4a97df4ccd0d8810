// Package relay is the production-path upstream client: instead of
// holding a provider credential locally, it forwards prompts to a hosted
// dashboard endpoint that keeps the key server-side. It satisfies the
// same Generator contract as the direct client, so the choice between
// the two is made once at construction and never inside business logic.
package relay

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

const defaultTimeout = 30 * time.Second

// ErrNoEndpoint is returned when the relay base URL is not configured.
var ErrNoEndpoint = errors.New("relay: endpoint not configured")

// Client forwards prompts to the hosted generation relay.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a Client for the given relay base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
}

type generateRequest struct {
	Prompt string `json:"prompt"`
}

type generateResponse struct {
	Text  string `json:"text"`
	Error string `json:"error,omitempty"`
}

// Generate forwards one prompt and returns the relayed text.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	if c.baseURL == "" {
		return "", ErrNoEndpoint
	}

	body, err := json.Marshal(generateRequest{Prompt: prompt})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("relay request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("relay returned %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decoding relay response: %w", err)
	}
	if out.Error != "" {
		return "", fmt.Errorf("relay error: %s", out.Error)
	}

	text := strings.TrimSpace(out.Text)
	if text == "" {
		return "", errors.New("relay returned empty text")
	}
	return text, nil
}
