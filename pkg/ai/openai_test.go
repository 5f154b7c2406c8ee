package ai_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/grade-sanchalaak/pkg/ai"
)

func newOpenAIServer(t *testing.T, status int, body string, captured *map[string]interface{}) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/chat/completions", r.URL.Path)
		if captured != nil {
			data, err := io.ReadAll(r.Body)
			require.NoError(t, err)
			require.NoError(t, json.Unmarshal(data, captured))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func newOpenAICompleter(t *testing.T, baseURL string) *ai.OpenAICompleter {
	t.Helper()
	completer, err := ai.NewOpenAICompleter(ai.Config{
		APIKey:      "test-key",
		Model:       "gpt-test",
		BaseURL:     baseURL + "/v1",
		Temperature: 0.1,
		Logger:      zerolog.New(io.Discard),
	})
	require.NoError(t, err)
	return completer
}

func TestOpenAICompleterReturnsContent(t *testing.T) {
	var captured map[string]interface{}
	server := newOpenAIServer(t, http.StatusOK, `{
		"id": "chatcmpl-1",
		"object": "chat.completion",
		"created": 1,
		"model": "gpt-test",
		"choices": [{"index": 0, "message": {"role": "assistant", "content": "[\"heap\", \"stack\"]"}, "finish_reason": "stop"}],
		"usage": {"prompt_tokens": 5, "completion_tokens": 5, "total_tokens": 10}
	}`, &captured)

	completer := newOpenAICompleter(t, server.URL)
	content, err := completer.Complete(context.Background(), ai.CompletionRequest{
		Role:   ai.RoleEvaluate,
		System: "system prompt",
		Prompt: "user prompt",
		JSON:   true,
	})
	require.NoError(t, err)
	require.Equal(t, `["heap", "stack"]`, content)
	require.Equal(t, "gpt-test", captured["model"])
	require.NotNil(t, captured["response_format"])

	messages, ok := captured["messages"].([]interface{})
	require.True(t, ok)
	require.Len(t, messages, 2)
	require.Equal(t, "openai:gpt-test", completer.Name())
}

func TestOpenAICompleterClassifiesFailures(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		reason ai.UpstreamReason
	}{
		{
			name:   "rate_limit",
			status: http.StatusTooManyRequests,
			body:   `{"error":{"message":"Rate limit reached","type":"requests","code":"rate_limit_exceeded"}}`,
			reason: ai.ReasonRateLimit,
		},
		{
			name:   "insufficient_quota",
			status: http.StatusTooManyRequests,
			body:   `{"error":{"message":"You exceeded your current quota","type":"insufficient_quota","code":"insufficient_quota"}}`,
			reason: ai.ReasonQuotaExhausted,
		},
		{
			name:   "credits",
			status: http.StatusPaymentRequired,
			body:   `{"error":{"message":"Payment required"}}`,
			reason: ai.ReasonQuotaExhausted,
		},
		{
			name:   "auth",
			status: http.StatusUnauthorized,
			body:   `{"error":{"message":"Incorrect API key provided","type":"invalid_request_error"}}`,
			reason: ai.ReasonAuth,
		},
		{
			name:   "server",
			status: http.StatusBadGateway,
			body:   `upstream exploded`,
			reason: ai.ReasonServerError,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := newOpenAIServer(t, tc.status, tc.body, nil)
			completer := newOpenAICompleter(t, server.URL)

			_, err := completer.Complete(context.Background(), ai.CompletionRequest{Role: ai.RoleExtract, Prompt: "p"})
			require.Error(t, err)
			require.True(t, errors.Is(err, ai.ErrUpstreamUnavailable))

			upstream, ok := ai.AsUpstreamError(err)
			require.True(t, ok)
			require.Equal(t, tc.reason, upstream.Reason)
			require.Equal(t, tc.status, upstream.Status)
			require.Equal(t, ai.ProviderOpenAI, upstream.Provider)
			require.NotEmpty(t, upstream.UserMessage())
		})
	}
}

func TestOpenAICompleterEmptyChoices(t *testing.T) {
	server := newOpenAIServer(t, http.StatusOK, `{"id":"x","object":"chat.completion","created":1,"model":"gpt-test","choices":[]}`, nil)
	completer := newOpenAICompleter(t, server.URL)

	_, err := completer.Complete(context.Background(), ai.CompletionRequest{Role: ai.RoleExtract, Prompt: "p"})
	upstream, ok := ai.AsUpstreamError(err)
	require.True(t, ok)
	require.Equal(t, ai.ReasonServerError, upstream.Reason)
	require.True(t, upstream.Retryable())
}

func TestNewWithoutKeyReturnsUnconfiguredCompleter(t *testing.T) {
	completer, err := ai.New(ai.Config{Provider: "anthropic", Logger: zerolog.Nop()})
	require.NoError(t, err)

	_, err = completer.Complete(context.Background(), ai.CompletionRequest{Role: ai.RoleEvaluate})
	upstream, ok := ai.AsUpstreamError(err)
	require.True(t, ok)
	require.Equal(t, ai.ReasonNotConfigured, upstream.Reason)
	require.False(t, upstream.Retryable())
	require.Equal(t, "AI service is not configured. Please contact support.", upstream.UserMessage())
}

func TestNewRejectsUnknownProvider(t *testing.T) {
	_, err := ai.New(ai.Config{Provider: "gemini", APIKey: "k"})
	require.Error(t, err)
}
