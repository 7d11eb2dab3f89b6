package gemini

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/contract-intelligence/internal/common"
	"github.com/joseph-ayodele/contract-intelligence/internal/llm"
)

func TestComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/gemini-1.5-flash:generateContent", r.URL.Path)
		assert.Equal(t, "g-key", r.Header.Get("x-goog-api-key"))

		var body struct {
			SystemInstruction content        `json:"systemInstruction"`
			Contents          []content      `json:"contents"`
			GenerationConfig  map[string]any `json:"generationConfig"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "application/json", body.GenerationConfig["responseMimeType"])
		assert.InDelta(t, 0.1, body.GenerationConfig["temperature"], 1e-6)
		assert.Contains(t, body.SystemInstruction.Parts[0].Text, "JSON Schema:")
		assert.Equal(t, "contract text", body.Contents[0].Parts[0].Text)

		_, _ = io.WriteString(w, `{"candidates":[{"content":{"parts":[{"text":"{\"fields\":"},{"text":"{}}"}]},"finishReason":"STOP"}]}`)
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: "g-key", BaseURL: srv.URL}, nil)
	got, err := c.Complete(t.Context(), llm.Prompt{System: "sys", User: "contract text", Schema: map[string]any{"type": "object"}})
	require.NoError(t, err)
	assert.Equal(t, `{"fields":{}}`, got)
}

func TestCompleteBlocked(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"promptFeedback":{"blockReason":"SAFETY"}}`)
	}))
	defer srv.Close()

	_, err := NewClient(Config{APIKey: "k", BaseURL: srv.URL}, nil).Complete(t.Context(), llm.Prompt{User: "u"})
	var sm *llm.SchemaMismatchError
	require.ErrorAs(t, err, &sm)
	assert.False(t, common.IsRetryable(err))
}

func TestCompleteUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewClient(Config{APIKey: "k", BaseURL: srv.URL}, nil).Complete(t.Context(), llm.Prompt{User: "u"})
	assert.True(t, common.IsRetryable(err))
}
