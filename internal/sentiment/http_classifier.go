package sentiment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// doCommandRequest mirrors the generic do_command payload of the sentiment service
type doCommandRequest struct {
	Command string `json:"command"`
	Text    string `json:"text"`
}

type doCommandResponse struct {
	Sentiment string `json:"sentiment"`
	Error     string `json:"error,omitempty"`
}

// HTTPClassifier calls a sentiment service exposing do_command over HTTP
type HTTPClassifier struct {
	url        string
	opts       Options
	httpClient *http.Client
}

// NewHTTPClassifier creates a classifier posting to url
func NewHTTPClassifier(url string, opts Options) (*HTTPClassifier, error) {
	if url == "" {
		return nil, fmt.Errorf("sentiment service URL is required")
	}
	return &HTTPClassifier{
		url:        strings.TrimRight(url, "/"),
		opts:       opts.withDefaults(),
		httpClient: &http.Client{},
	}, nil
}

// Classify asks the service for the sentiment of text
func (c *HTTPClassifier) Classify(ctx context.Context, text string) (string, error) {
	return protectedCall(ctx, c.opts, func(ctx context.Context) (string, error) {
		return c.classify(ctx, text)
	})
}

func (c *HTTPClassifier) classify(ctx context.Context, text string) (string, error) {
	jsonData, err := json.Marshal(doCommandRequest{Command: "get_sentiment", Text: text})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+"/do_command", bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
			return "", fmt.Errorf("sentiment service unavailable: status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
		}
		return "", fmt.Errorf("sentiment service returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out doCommandResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode sentiment response: %w", err)
	}
	if out.Error != "" {
		return "", fmt.Errorf("sentiment service error: %s", out.Error)
	}

	return out.Sentiment, nil
}

// Healthy probes the service's /health endpoint
func (c *HTTPClassifier) Healthy(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url+"/health", nil)
	if err != nil {
		return false, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("health check returned status %d", resp.StatusCode)
	}
	return true, nil
}
