package openai

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
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "gpt-4o-mini", body["model"])
		assert.Equal(t, map[string]any{"type": "json_object"}, body["response_format"])
		assert.Len(t, body["messages"], 3)

		_, _ = io.WriteString(w, `{"choices":[{"message":{"content":" {\"fields\":{}} "},"finish_reason":"stop"}]}`)
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: "sk-test", BaseURL: srv.URL + "/v1"}, nil)
	got, err := c.Complete(t.Context(), llm.Prompt{System: "sys", User: "user", Schema: map[string]any{"type": "object"}})
	require.NoError(t, err)
	assert.Equal(t, `{"fields":{}}`, got)
	assert.Equal(t, "openai/gpt-4o-mini", c.Name())
}

func TestCompleteStatusClassification(t *testing.T) {
	cases := []struct {
		status    int
		retryable bool
	}{
		{http.StatusTooManyRequests, true},
		{http.StatusInternalServerError, true},
		{http.StatusUnauthorized, false},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(tc.status)
			_, _ = io.WriteString(w, `{"error":{"message":"nope"}}`)
		}))
		c := NewClient(Config{APIKey: "sk-test", BaseURL: srv.URL}, nil)
		_, err := c.Complete(t.Context(), llm.Prompt{System: "s", User: "u"})
		srv.Close()

		var se *llm.ServiceError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, tc.status, se.StatusCode)
		assert.Equal(t, tc.retryable, common.IsRetryable(err), "status %d", tc.status)
	}
}

func TestCompleteNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"choices":[]}`)
	}))
	defer srv.Close()

	_, err := NewClient(Config{APIKey: "k", BaseURL: srv.URL}, nil).Complete(t.Context(), llm.Prompt{})
	var sm *llm.SchemaMismatchError
	assert.ErrorAs(t, err, &sm)
}
