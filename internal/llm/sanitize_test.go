package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSONObject(t *testing.T) {
	cases := []struct {
		name  string
		reply string
		want  string
	}{
		{"bare", `{"a":1}`, `{"a":1}`},
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"plain fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"inline fence", "```json{\"a\":1}```", `{"a":1}`},
		{"prose around", "Here is the result:\n{\"a\":{\"b\":2}}\nLet me know!", `{"a":{"b":2}}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ExtractJSONObject(tc.reply)
			require.NoError(t, err)
			assert.JSONEq(t, tc.want, string(got))
		})
	}
}

func TestExtractJSONObjectErrors(t *testing.T) {
	_, err := ExtractJSONObject("I could not find any contract terms.")
	assert.ErrorIs(t, err, errNoJSONObject)

	_, err = ExtractJSONObject(`{"fields": {"parties": }`)
	assert.Error(t, err)
}
