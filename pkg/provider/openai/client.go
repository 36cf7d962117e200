// Package openai implements the primary text provider against an
// OpenAI-compatible chat completions endpoint, either directly or through
// the credential-injecting relay.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/causerie-app/causerie/pkg/config"
	"github.com/causerie-app/causerie/pkg/models"
	"github.com/causerie-app/causerie/pkg/provider"
)

// Client calls a chat completions endpoint.
type Client struct {
	name        string
	endpoint    string
	apiKey      string
	needsKey    bool
	model       string
	temperature float64
	maxTokens   int
	http        *http.Client
}

// New creates a Client from the primary provider configuration.
func New(cfg config.PrimaryConfig) *Client {
	c := &Client{
		name:        cfg.Name,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		http:        &http.Client{Timeout: cfg.Timeout},
	}
	if c.name == "" {
		c.name = "primary"
	}
	if cfg.Mode == config.ModeRelay {
		c.endpoint = cfg.RelayURL
	} else {
		c.endpoint = strings.TrimRight(cfg.URL, "/") + "/chat/completions"
		c.apiKey = cfg.APIKey
		c.needsKey = true
	}
	return c
}

// Name implements provider.TextProvider.
func (c *Client) Name() string { return c.name }

// Complete implements provider.TextProvider.
func (c *Client) Complete(ctx context.Context, req provider.Request) (string, error) {
	if c.needsKey && c.apiKey == "" {
		return "", fmt.Errorf("%s: %w", c.name, provider.ErrConfigurationMissing)
	}

	body, err := json.Marshal(c.buildRequest(req))
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", &provider.TransportError{Provider: c.name, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &provider.TransportError{Provider: c.name, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &provider.ProviderError{Provider: c.name, Status: resp.StatusCode, Body: string(respBody)}
	}

	var completion models.ChatCompletionResponse
	if err := json.Unmarshal(respBody, &completion); err != nil {
		return "", &provider.ProviderError{Provider: c.name, Status: resp.StatusCode, Body: "undecodable completion: " + err.Error()}
	}
	if len(completion.Choices) == 0 {
		return "", &provider.ProviderError{Provider: c.name, Status: resp.StatusCode, Body: "completion has no choices"}
	}
	if completion.Usage != nil {
		provider.ReportUsage(ctx, *completion.Usage)
	}

	return completion.Choices[0].Message.Content, nil
}

func (c *Client) buildRequest(req provider.Request) models.ChatCompletionRequest {
	var messages []models.ChatMessage
	if req.System != "" {
		messages = append(messages, models.ChatMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, models.ChatMessage{Role: "user", Content: req.User})

	out := models.ChatCompletionRequest{
		Model:    c.model,
		Messages: messages,
	}
	if c.temperature > 0 {
		t := c.temperature
		out.Temperature = &t
	}
	if c.maxTokens > 0 {
		n := c.maxTokens
		out.MaxTokens = &n
	}
	if req.WantsJSON {
		out.ResponseFormat = &models.ResponseFormat{Type: "json_object"}
	}
	return out
}
