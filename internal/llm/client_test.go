package llm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewClient(&Config{
		BaseURL:    srv.URL,
		APIKey:     "test-key",
		Model:      "test-model",
		MaxRetries: 2,
		Timeout:    5 * time.Second,
	}), srv
}

func TestChatReturnsText(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"choices": [{"message": {"role": "assistant", "content": "hello there"}}]
		}`))
	})

	got, err := client.Chat(context.Background(), "be brief", "hi")
	require.NoError(t, err)
	assert.Equal(t, "hello there", got)
}

func TestChatRetriesOnServerError(t *testing.T) {
	var hits atomic.Int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			http.Error(w, `{"error": {"message": "overloaded"}}`, http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"choices": [{"message": {"role": "assistant", "content": "recovered"}}]
		}`))
	})

	got, err := client.Chat(context.Background(), "", "hi")
	require.NoError(t, err)
	assert.Equal(t, "recovered", got)
	assert.Equal(t, int32(2), hits.Load())
}

func TestChatWithToolsParsesToolCalls(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"choices": [{"message": {
				"role": "assistant",
				"content": "",
				"tool_calls": [
					{"id": "call_1", "type": "function",
					 "function": {"name": "search_emails", "arguments": "{\"query\":\"from alice\"}"}},
					{"id": "call_2", "type": "function",
					 "function": {"name": "summarize_inbox", "arguments": "{}"}}
				]
			}}]
		}`))
	})

	tools := []Tool{
		{Name: "search_emails", Description: "search", Parameters: map[string]any{"type": "object"}},
		{Name: "summarize_inbox", Description: "summarize", Parameters: map[string]any{"type": "object"}},
	}

	_, calls, err := client.ChatWithTools(context.Background(), "find alice's email", tools)
	require.NoError(t, err)
	require.Len(t, calls, 2)
	assert.Equal(t, "call_1", calls[0].ID)
	assert.Equal(t, "search_emails", calls[0].Name)
	assert.JSONEq(t, `{"query":"from alice"}`, calls[0].Arguments)
	assert.Equal(t, "summarize_inbox", calls[1].Name)
}

func TestChatWithToolsNoCalls(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"choices": [{"message": {"role": "assistant", "content": "just chatting"}}]
		}`))
	})

	text, calls, err := client.ChatWithTools(context.Background(), "hello", nil)
	require.NoError(t, err)
	assert.Empty(t, calls)
	assert.Equal(t, "just chatting", text)
}
