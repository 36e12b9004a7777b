// Package llm holds the outbound client for the pluggable explanation
// provider. The provider speaks an OpenAI-compatible chat completions API.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ProviderError is an error payload returned by the provider itself, as
// opposed to a transport failure reaching it.
type ProviderError struct {
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider error (status %d): %s", e.StatusCode, e.Message)
}

// ErrTimeout marks generation calls that exceeded the configured deadline.
var ErrTimeout = errors.New("generation request timed out")

// Client generates text from a prompt.
type Client interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Config holds provider connection settings.
type Config struct {
	Endpoint string
	APIKey   string
	Model    string
	Timeout  time.Duration
}

type httpClient struct {
	config Config
	client *http.Client
}

// NewClient builds a provider client with a bounded request timeout.
func NewClient(config Config) Client {
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}

	return &httpClient{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
	}
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *httpClient) Complete(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.config.Model,
		Messages: []chatMessage{
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal generation request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build generation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", ErrTimeout
		}
		return "", fmt.Errorf("generation request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read generation response: %w", err)
	}

	var parsed chatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		if resp.StatusCode != http.StatusOK {
			return "", &ProviderError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		}
		return "", fmt.Errorf("failed to decode generation response: %w", err)
	}

	if resp.StatusCode != http.StatusOK || parsed.Error != nil {
		message := http.StatusText(resp.StatusCode)
		if parsed.Error != nil {
			message = parsed.Error.Message
		}
		return "", &ProviderError{StatusCode: resp.StatusCode, Message: message}
	}

	if len(parsed.Choices) == 0 {
		return "", &ProviderError{StatusCode: resp.StatusCode, Message: "empty completion"}
	}

	return parsed.Choices[0].Message.Content, nil
}
