package adapter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name     string
		reply    string
		expected string
	}{
		{"bare", `{"a":1}`, `{"a":1}`},
		{"prose around", "Here is the model:\n{\"a\": 1}\nHope this helps.", `{"a": 1}`},
		{"json fence", "```json\n{\"a\": {\"b\": 2}}\n```", `{"a": {"b": 2}}`},
		{"untagged fence", "```\n{\"a\": 3}\n```", `{"a": 3}`},
		{"fence wins over prose braces", "Use {braces} wisely.\n```json\n{\"a\": 4}\n```", `{"a": 4}`},
		{"braces inside strings", `{"expr": "sum(x[i] for i in I) }"}`, `{"expr": "sum(x[i] for i in I) }"}`},
		{"escaped quote", `{"s": "say \"}\" please"}`, `{"s": "say \"}\" please"}`},
		{"skips invalid candidate", "{not json} then {\"a\": 5}", `{"a": 5}`},
		{"first of two", `{"a":1} {"b":2}`, `{"a":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, obj, err := ExtractJSON(tt.reply)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(raw))
			assert.NotNil(t, obj)
		})
	}
}

func TestExtractJSONFailures(t *testing.T) {
	for _, reply := range []string{"", "no json here", "[1, 2, 3]", "{\"a\": 1", "{broken}"} {
		_, _, err := ExtractJSON(reply)
		require.Error(t, err, reply)
		assert.True(t, IsKind(err, KindJSONExtract))
		assert.ErrorIs(t, err, ErrNoJSON)
	}
}
