// Package gemini is the direct client for the hosted text-generation
// endpoint. It normalizes the provider's response envelope to plain text
// and maps every failure mode to a typed error. It never retries; the
// caller's fallback policy decides what happens next.
package gemini

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

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	defaultModel   = "gemini-2.0-flash"

	// Output stays bounded and reproducible: sampling parameters are
	// fixed here, never caller-supplied.
	maxOutputTokens = 200
	temperature     = 0.3

	// One call per section, 4.5s pacing between sections: a call that
	// has not answered in 30s is not going to.
	defaultTimeout = 30 * time.Second
)

// ErrNoCredential is returned when no API key is configured. It is
// checked before any network I/O and re-checked on every call, so setting
// the key at runtime takes effect without a restart.
var ErrNoCredential = errors.New("gemini: API key not configured")

// TransportError is a network failure or a non-2xx response.
type TransportError struct {
	Status int // 0 when the request never completed
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("gemini: HTTP %d: %v", e.Status, e.Err)
	}
	return fmt.Sprintf("gemini: transport: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// EnvelopeError is a 2xx response with no extractable text.
type EnvelopeError struct {
	Reason string
}

func (e *EnvelopeError) Error() string {
	return "gemini: malformed response envelope: " + e.Reason
}

// Client calls the generateContent endpoint.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewClient creates a Client with the given API key. An empty key is
// allowed; every Generate call then short-circuits with ErrNoCredential.
func NewClient(apiKey string) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		model:   defaultModel,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
}

// NewClientWithBaseURL creates a client pointing at a custom base URL
// (for testing).
func NewClientWithBaseURL(apiKey, baseURL string) *Client {
	c := NewClient(apiKey)
	c.baseURL = strings.TrimRight(baseURL, "/")
	return c
}

// generateRequest is the JSON body for POST models/{model}:generateContent.
type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	MaxOutputTokens int     `json:"maxOutputTokens"`
	Temperature     float64 `json:"temperature"`
}

// generateResponse mirrors the provider envelope down to the text leaves.
type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// Generate sends one prompt and returns the trimmed generated text.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	if c.apiKey == "" {
		return "", ErrNoCredential
	}

	body, err := json.Marshal(generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
		GenerationConfig: generationConfig{
			MaxOutputTokens: maxOutputTokens,
			Temperature:     temperature,
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &TransportError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &TransportError{
			Status: resp.StatusCode,
			Err:    fmt.Errorf("%s", strings.TrimSpace(string(respBody))),
		}
	}

	var envelope generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return "", &EnvelopeError{Reason: fmt.Sprintf("decoding JSON: %v", err)}
	}

	if len(envelope.Candidates) == 0 || len(envelope.Candidates[0].Content.Parts) == 0 {
		return "", &EnvelopeError{Reason: "no candidates in response"}
	}

	text := strings.TrimSpace(envelope.Candidates[0].Content.Parts[0].Text)
	if text == "" {
		return "", &EnvelopeError{Reason: "empty text in first candidate"}
	}
	return text, nil
}
