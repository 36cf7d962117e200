// Package gemini implements the secondary text provider on the Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"github.com/causerie-app/causerie/pkg/config"
	"github.com/causerie-app/causerie/pkg/models"
	"github.com/causerie-app/causerie/pkg/provider"
)

// Client calls Models.GenerateContent.
type Client struct {
	name   string
	model  string
	client *genai.Client
}

// New creates a Client. A missing API key is not an error here; Complete
// reports it so the caller can fall through at call time.
func New(ctx context.Context, cfg config.SecondaryConfig) (*Client, error) {
	c := &Client{name: cfg.Name, model: cfg.Model}
	if c.name == "" {
		c.name = "gemini"
	}
	if cfg.APIKey == "" {
		return c, nil
	}

	gc, err := NewGenAI(ctx, cfg.APIKey, cfg.BaseURL, &http.Client{Timeout: cfg.Timeout})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	c.client = gc
	return c, nil
}

// NewGenAI builds a Gemini API client, optionally against a custom base URL.
func NewGenAI(ctx context.Context, apiKey, baseURL string, hc *http.Client) (*genai.Client, error) {
	cc := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: hc,
	}
	if baseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}
	return genai.NewClient(ctx, cc)
}

// Name implements provider.TextProvider.
func (c *Client) Name() string { return c.name }

// Complete implements provider.TextProvider.
func (c *Client) Complete(ctx context.Context, req provider.Request) (string, error) {
	if c.client == nil {
		return "", fmt.Errorf("%s: %w", c.name, provider.ErrConfigurationMissing)
	}

	gcfg := &genai.GenerateContentConfig{}
	if req.System != "" {
		gcfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.WantsJSON {
		gcfg.ResponseMIMEType = "application/json"
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(req.User), gcfg)
	if err != nil {
		return "", MapError(c.name, err)
	}
	if u := resp.UsageMetadata; u != nil {
		provider.ReportUsage(ctx, models.Usage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		})
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", &provider.ProviderError{Provider: c.name, Status: http.StatusOK, Body: "response has no text"}
	}
	return text, nil
}

// MapError converts a genai failure into the provider taxonomy.
func MapError(name string, err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiError(name, apiErr)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return apiError(name, *apiErrPtr)
	}
	return &provider.TransportError{Provider: name, Err: err}
}

func apiError(name string, e genai.APIError) error {
	status := e.Code
	if e.Status == "RESOURCE_EXHAUSTED" {
		status = http.StatusTooManyRequests
	}
	return &provider.ProviderError{Provider: name, Status: status, Body: e.Message}
}
