package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func messageResponse(content []map[string]any) map[string]any {
	return map[string]any{
		"id":          "msg_test_001",
		"type":        "message",
		"role":        "assistant",
		"content":     content,
		"model":       DefaultModel,
		"stop_reason": "end_turn",
		"usage": map[string]any{
			"input_tokens":  10,
			"output_tokens": 5,
		},
	}
}

// TestClaudeGenerator_Generate はメッセージの送信内容と応答テキストの取り出しを検証します。
func TestClaudeGenerator_Generate(t *testing.T) {
	var gotBody map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Contains(t, r.URL.Path, "/messages")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(messageResponse([]map[string]any{ //nolint:errcheck
			{"type": "text", "text": "Mike Trout 2011 Topps Update PSA 10"},
		}))
	}))
	defer ts.Close()

	gen := NewClaudeGenerator(Config{APIKey: "test-key", BaseURL: ts.URL})
	out, err := gen.Generate(context.Background(), "build a query")

	require.NoError(t, err)
	assert.Equal(t, "Mike Trout 2011 Topps Update PSA 10", out)
	assert.Equal(t, DefaultModel, gotBody["model"])
	assert.EqualValues(t, DefaultMaxTokens, gotBody["max_tokens"])
}

// TestClaudeGenerator_EmptyResponse はテキストを含まない応答がエラーになることを検証します。
func TestClaudeGenerator_EmptyResponse(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(messageResponse([]map[string]any{})) //nolint:errcheck
	}))
	defer ts.Close()

	gen := NewClaudeGenerator(Config{APIKey: "test-key", BaseURL: ts.URL})
	_, err := gen.Generate(context.Background(), "build a query")

	assert.ErrorIs(t, err, ErrEmptyResponse)
}

// TestClaudeGenerator_APIError はAPIエラーがラップされて返ることを検証します。
func TestClaudeGenerator_APIError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"invalid_request_error","message":"bad"}}`))
	}))
	defer ts.Close()

	gen := NewClaudeGenerator(Config{APIKey: "test-key", BaseURL: ts.URL})
	_, err := gen.Generate(context.Background(), "build a query")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "anthropic: create message")
}
