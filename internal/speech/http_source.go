package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/lexiqai/mic-speech-sentiment/internal/observability"
	"github.com/lexiqai/mic-speech-sentiment/internal/resilience"
)

// listenRequest is the do_command payload understood by remote speech services
type listenRequest struct {
	Command string `json:"command"`
}

type listenResponse struct {
	Text  string `json:"text"`
	Error string `json:"error,omitempty"`
}

// HTTPSource asks a remote speech service for the next utterance. The
// service is expected to hold the request open until speech is heard.
type HTTPSource struct {
	baseURL    string
	httpClient *http.Client
	breaker    *resilience.CircuitBreaker
}

// NewHTTPSource creates a source for the speech service at baseURL
func NewHTTPSource(baseURL string, breaker *resilience.CircuitBreaker) (*HTTPSource, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("speech service URL is required")
	}
	return &HTTPSource{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		breaker:    breaker,
	}, nil
}

// Listen requests one utterance from the remote service
func (s *HTTPSource) Listen(ctx context.Context) (string, error) {
	var text string
	call := func() error {
		var err error
		text, err = s.listen(ctx)
		return err
	}

	if s.breaker == nil {
		return text, call()
	}

	err := s.breaker.Call(call)
	observability.UpdateCircuitBreakerState(s.breaker.Name(), int(s.breaker.GetState()))
	if err != nil {
		observability.IncrementCircuitBreakerFailures(s.breaker.Name())
	}
	return text, err
}

func (s *HTTPSource) listen(ctx context.Context) (string, error) {
	body, err := json.Marshal(listenRequest{Command: "listen"})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/listen", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to reach speech service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("speech service returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out listenResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode speech response: %w", err)
	}
	if out.Error != "" {
		return "", fmt.Errorf("speech service error: %s", out.Error)
	}

	return out.Text, nil
}

// Healthy probes the service's /health endpoint
func (s *HTTPSource) Healthy(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/health", nil)
	if err != nil {
		return false, err
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("health check returned status %d", resp.StatusCode)
	}
	return true, nil
}
