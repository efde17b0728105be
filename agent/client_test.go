package agent

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/foreman/task"
)

func completionResponse(content string) map[string]any {
	return map[string]any{
		"model": "test-model",
		"choices": []map[string]any{
			{
				"message":       map[string]any{"role": "assistant", "content": content},
				"finish_reason": "stop",
			},
		},
		"usage": map[string]any{"total_tokens": 42},
	}
}

func fastRetry() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		BackoffBase:       time.Millisecond,
		BackoffMultiplier: 1.0,
		MaxBackoff:        time.Millisecond,
	}
}

func TestGenerateContent(t *testing.T) {
	var gotBody apiRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_ = json.NewEncoder(w).Encode(completionResponse("# Spec\n\n## Requirements\n"))
	}))
	defer server.Close()

	client := NewClient(Config{Endpoint: server.URL, Model: "test-model"})

	content, err := client.GenerateContent(context.Background(), "write the spec", task.TypeSpec, "requirements_analysis")
	require.NoError(t, err)
	assert.Contains(t, content, "## Requirements")

	assert.Equal(t, "test-model", gotBody.Model)
	require.Len(t, gotBody.Messages, 2)
	assert.Equal(t, "system", gotBody.Messages[0].Role)
	assert.Contains(t, gotBody.Messages[0].Content, "requirements analysis")
	assert.Equal(t, "write the spec", gotBody.Messages[1].Content)
}

func TestGenerateContentRetriesTransientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(completionResponse("recovered"))
	}))
	defer server.Close()

	client := NewClient(Config{Endpoint: server.URL, Model: "m"}, WithRetryConfig(fastRetry()))

	content, err := client.GenerateContent(context.Background(), "prompt text", task.TypeDesign, "")
	require.NoError(t, err)
	assert.Equal(t, "recovered", content)
	assert.Equal(t, int32(2), calls.Load())
}

func TestGenerateContentFatalErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewClient(Config{Endpoint: server.URL, Model: "m"}, WithRetryConfig(fastRetry()))

	_, err := client.GenerateContent(context.Background(), "prompt text", task.TypeSpec, "")
	require.Error(t, err)
	assert.True(t, IsFatal(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestGenerateContentEmptyPrompt(t *testing.T) {
	client := NewClient(Config{Model: "m"})

	_, err := client.GenerateContent(context.Background(), "", task.TypeSpec, "")
	require.Error(t, err)
	assert.True(t, IsFatal(err))
}

func TestBuildURL(t *testing.T) {
	cases := map[string]string{
		"":                          defaultEndpoint + "/chat/completions",
		"http://host:1/v1":          "http://host:1/v1/chat/completions",
		"http://host:1/v1/":         "http://host:1/v1/chat/completions",
		"http://h/chat/completions": "http://h/chat/completions",
	}
	for endpoint, want := range cases {
		c := NewClient(Config{Endpoint: endpoint})
		assert.Equal(t, want, c.buildURL(), "endpoint %q", endpoint)
	}
}

func TestBuildMessagesUnknownTypeFallsBack(t *testing.T) {
	messages := BuildMessages("prompt", task.Type("unknown"), "")
	require.Len(t, messages, 2)
	assert.Contains(t, messages[0].Content, "requirements analyst")
}
