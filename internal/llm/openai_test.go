package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chatServer(t *testing.T, reply string, seen *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		body := map[string]any{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		*seen = body

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "chatcmpl-1",
			"object": "chat.completion",
			"model":  body["model"],
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": reply},
			}},
			"usage": map[string]any{"prompt_tokens": 3, "completion_tokens": 4, "total_tokens": 7},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAIComplete(t *testing.T) {
	var seen map[string]any
	srv := chatServer(t, `{"meta":{}}`, &seen)
	o := NewOpenAI("test-key", "gpt-test", srv.URL, nil)

	reply, err := o.Complete(context.Background(), Request{
		Messages:  []Message{System("schema"), User("question"), {Role: RoleAssistant, Content: "earlier"}},
		MaxTokens: 128,
		Timeout:   5 * time.Second,
	})

	require.NoError(t, err)
	assert.Equal(t, `{"meta":{}}`, reply)
	assert.Equal(t, "openai:gpt-test", o.Name())
	assert.Equal(t, "gpt-test", seen["model"])
	assert.EqualValues(t, 128, seen["max_tokens"])
	assert.Contains(t, seen, "temperature")

	msgs := seen["messages"].([]any)
	require.Len(t, msgs, 3)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
	assert.Equal(t, "question", msgs[1].(map[string]any)["content"])
	assert.Equal(t, "assistant", msgs[2].(map[string]any)["role"])
}

func TestOpenAIEmptyReply(t *testing.T) {
	var seen map[string]any
	srv := chatServer(t, "", &seen)
	o := NewOpenAI("test-key", "", srv.URL, nil)

	_, err := o.Complete(context.Background(), Request{Messages: []Message{User("q")}})

	assert.ErrorIs(t, err, ErrEmptyReply)
	assert.Equal(t, DefaultOpenAIModel, seen["model"])
}

func TestOpenAIRequiresMessages(t *testing.T) {
	o := NewOpenAI("k", "", "http://127.0.0.1:0", nil)
	_, err := o.Complete(context.Background(), Request{})
	assert.ErrorIs(t, err, ErrNoMessages)
}

func TestOpenAIServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"slow down","type":"rate_limit"}}`))
	}))
	defer srv.Close()

	o := NewOpenAI("test-key", "m", srv.URL, nil)
	_, err := o.Complete(context.Background(), Request{Messages: []Message{User("q")}})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "openai chat completion")
}
