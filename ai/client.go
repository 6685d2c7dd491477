// Package ai wraps the Gemini SDK behind a degraded-mode-friendly client:
// consumers ask Available() and fall back to their deterministic path when
// no API key is configured or a call fails. A model error never propagates
// past the services that use it.
package ai

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"carspotter/config"
	"carspotter/utils"
)

// Client is a process-wide handle on the generative model. The underlying
// SDK client is created lazily on first use.
type Client struct {
	apiKey    string
	modelName string
	logger    *utils.Logger

	once    sync.Once
	client  *genai.Client
	model   *genai.GenerativeModel
	initErr error
}

// NewClient builds a Client from config. A missing API key is not an
// error, it produces a permanently unavailable client.
func NewClient(cfg *config.Config, logger *utils.Logger) *Client {
	if cfg.GeminiAPIKey == "" {
		logger.Warn("[ai] GOOGLE_GEMINI_API_KEY not set, AI features disabled")
	}
	return &Client{
		apiKey:    cfg.GeminiAPIKey,
		modelName: cfg.GeminiModel,
		logger:    logger,
	}
}

// Available reports whether model calls can be attempted at all.
func (c *Client) Available() bool {
	return c != nil && c.apiKey != ""
}

func (c *Client) init(ctx context.Context) error {
	c.once.Do(func() {
		client, err := genai.NewClient(ctx, option.WithAPIKey(c.apiKey))
		if err != nil {
			c.initErr = fmt.Errorf("ai: init client: %w", err)
			return
		}
		c.client = client
		c.model = client.GenerativeModel(c.modelName)
	})
	return c.initErr
}

// Generate sends a prompt and returns the concatenated text parts of the
// first candidate.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	if !c.Available() {
		return "", fmt.Errorf("ai: model not configured")
	}
	if err := c.init(ctx); err != nil {
		return "", err
	}

	resp, err := c.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("ai: generate: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("ai: empty response")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("ai: no text parts in response")
	}
	return sb.String(), nil
}

// StripFences removes markdown code-fence wrapping from a model response
// so the remainder parses as JSON.
func StripFences(s string) string {
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}
