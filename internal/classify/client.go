// Package classify turns tab titles into a grouping decision with a single
// chat-completion call.
package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/dgnsrekt/tabgrouper/internal/settings"
)

// Temperature is sent with every request.
const Temperature = 0.3

// CredentialsLoader returns the current provider credentials. It is called
// once at the start of every Classify call.
type CredentialsLoader interface {
	Load(ctx context.Context) (settings.Credentials, error)
}

// CredentialsFunc adapts a function to CredentialsLoader.
type CredentialsFunc func(ctx context.Context) (settings.Credentials, error)

func (f CredentialsFunc) Load(ctx context.Context) (settings.Credentials, error) { return f(ctx) }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message *struct {
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Client sends classification requests to the configured provider.
type Client struct {
	creds      CredentialsLoader
	providers  ProviderTable
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client. The default is a client with no
// timeout; cancellation comes from the request context.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithProviders replaces the provider table.
func WithProviders(t ProviderTable) Option {
	return func(c *Client) { c.providers = t }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a Client that reads credentials from creds.
func NewClient(creds CredentialsLoader, opts ...Option) *Client {
	c := &Client{
		creds:      creds,
		providers:  DefaultProviders(),
		httpClient: &http.Client{},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify asks the active provider to group tabTitles, routing tabs into
// existing groups where they fit. Exactly one POST is sent per call.
func (c *Client) Classify(ctx context.Context, tabTitles []string, existing []ExistingGroup) (*Result, error) {
	creds, err := c.creds.Load(ctx)
	if err != nil {
		return nil, &ConfigurationError{Missing: "credentials", Cause: err}
	}
	target, err := c.providers.Resolve(creds)
	if err != nil {
		return nil, err
	}

	prompt := BuildPrompt(tabTitles, existing)
	c.logger.Info("classify request",
		"provider", target.Provider,
		"endpoint", target.Endpoint,
		"model", target.Model,
		"tabs", len(tabTitles),
		"existing_groups", len(existing),
		"prompt_chars", len([]rune(prompt)),
	)

	content, err := c.complete(ctx, target, prompt)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("classify raw content", "provider", target.Provider, "content", content)

	result, err := ParseResponse(content)
	if err != nil {
		c.logger.Warn("classify parse failed", "provider", target.Provider, "error", err, "raw", content)
		return nil, err
	}
	if result.InvalidIndices > 0 {
		c.logger.Warn("classify dropped non-integer indices", "provider", target.Provider, "dropped", result.InvalidIndices)
	}
	c.logger.Info("classify ok",
		"provider", target.Provider,
		"new_groups", len(result.NewGroups),
		"existing_groups", len(result.ExistingGroups),
	)
	return result, nil
}

func (c *Client) complete(ctx context.Context, target Target, prompt string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: target.Model,
		Messages: []chatMessage{
			{Role: "system", Content: SystemPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature: Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("classify: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", &ProviderError{Provider: target.Provider, Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+target.APIKey)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &ProviderError{Provider: target.Provider, Cause: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	c.logger.Info("classify response",
		"provider", target.Provider,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	if err != nil {
		return "", &ProviderError{Provider: target.Provider, StatusCode: resp.StatusCode, Cause: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &ProviderError{Provider: target.Provider, StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var env chatResponse
	if err := json.Unmarshal(respBody, &env); err != nil {
		return "", &ProviderError{
			Provider:   target.Provider,
			StatusCode: resp.StatusCode,
			Body:       string(respBody),
			Cause:      fmt.Errorf("invalid response envelope: %w", err),
		}
	}
	if len(env.Choices) == 0 {
		return "", &ProviderError{Provider: target.Provider, StatusCode: resp.StatusCode, Body: string(respBody), Cause: errors.New("response has no choices")}
	}
	msg := env.Choices[0].Message
	if msg == nil || msg.Content == nil {
		return "", &ProviderError{Provider: target.Provider, StatusCode: resp.StatusCode, Body: string(respBody), Cause: errors.New("response has no message content")}
	}
	return *msg.Content, nil
}
