// Package gemini implements llm.Completer on the Google Generative Language API.
package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joseph-ayodele/contract-intelligence/internal/llm"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// Config for the Gemini client.
type Config struct {
	APIKey      string        // if empty, falls back to env GOOGLE_AI_API_KEY
	BaseURL     string        // default https://generativelanguage.googleapis.com/v1beta
	Model       string        // default "gemini-1.5-flash"
	Temperature float32       // default 0.1
	Timeout     time.Duration // http client timeout
}

type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("GOOGLE_AI_API_KEY")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-1.5-flash"
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}, logger: logger}
}

// Name identifies the provider and model in logs and extraction results.
func (c *Client) Name() string { return "gemini/" + c.cfg.Model }

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

// Complete implements llm.Completer with generateContent in JSON response mode.
func (c *Client) Complete(ctx context.Context, p llm.Prompt) (string, error) {
	body := map[string]any{
		"systemInstruction": content{Parts: []part{{Text: llm.InlineSchema(p)}}},
		"contents":          []content{{Role: "user", Parts: []part{{Text: p.User}}}},
		"generationConfig": map[string]any{
			"temperature":      c.cfg.Temperature,
			"responseMimeType": "application/json",
		},
	}
	endpoint := fmt.Sprintf("%s/models/%s:generateContent",
		strings.TrimRight(c.cfg.BaseURL, "/"), url.PathEscape(c.cfg.Model))
	headers := map[string]string{"x-goog-api-key": c.cfg.APIKey}

	raw, _, err := llm.SendJSON(ctx, c.http, c.Name(), endpoint, body, headers, c.logger)
	if err != nil {
		return "", err
	}

	var gr generateResponse
	if err := json.Unmarshal(raw, &gr); err != nil {
		c.logger.Error("llm.gemini.decode_error", "error", err, "raw_bytes", len(raw))
		return "", &llm.ServiceError{Provider: c.Name(), Err: fmt.Errorf("decode response: %w", err)}
	}
	if br := gr.PromptFeedback.BlockReason; br != "" {
		return "", &llm.SchemaMismatchError{Reason: "prompt blocked: " + br}
	}
	if len(gr.Candidates) == 0 {
		return "", &llm.SchemaMismatchError{Reason: "no candidates in response"}
	}
	var b strings.Builder
	for _, pt := range gr.Candidates[0].Content.Parts {
		b.WriteString(pt.Text)
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", &llm.SchemaMismatchError{Reason: "empty completion, finish reason " + gr.Candidates[0].FinishReason}
	}
	return text, nil
}
