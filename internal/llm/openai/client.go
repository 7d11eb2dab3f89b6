package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/joseph-ayodele/contract-intelligence/internal/llm"
)

// Name identifies the provider and model in logs and extraction results.
func (c *Client) Name() string { return "openai/" + c.cfg.Model }

// Complete implements llm.Completer using chat/completions in JSON mode.
func (c *Client) Complete(ctx context.Context, p llm.Prompt) (string, error) {
	messages := []map[string]any{
		{"role": "system", "content": p.System},
		{"role": "user", "content": p.User},
	}
	if p.Schema != nil {
		schemaJSON, err := json.Marshal(p.Schema)
		if err != nil {
			return "", fmt.Errorf("marshal schema: %w", err)
		}
		messages = append(messages, map[string]any{"role": "system", "content": "JSON Schema:\n" + string(schemaJSON)})
	}
	body := map[string]any{
		"model":           c.cfg.Model,
		"temperature":     c.cfg.Temperature,
		"response_format": map[string]any{"type": "json_object"},
		"messages":        messages,
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	headers := map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}
	raw, _, err := llm.SendJSON(ctx, c.http, c.Name(), endpoint, body, headers, c.logger)
	if err != nil {
		return "", err
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
			FinishReason string `json:"finish_reason"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		c.logger.Error("llm.openai.decode_error", "error", err, "raw_bytes", len(raw))
		return "", &llm.ServiceError{Provider: c.Name(), Err: fmt.Errorf("decode response: %w", err)}
	}
	if len(cc.Choices) == 0 {
		c.logger.Error("llm.openai.no_choices", "raw_bytes", len(raw))
		return "", &llm.SchemaMismatchError{Reason: "no choices in response"}
	}
	content := strings.TrimSpace(cc.Choices[0].Message.Content)
	if content == "" {
		return "", &llm.SchemaMismatchError{Reason: "empty completion", Err: errors.New("finish_reason " + cc.Choices[0].FinishReason)}
	}
	return content, nil
}
