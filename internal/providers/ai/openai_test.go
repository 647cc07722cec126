package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/Orbit/backend/internal/infrastructure/resilience"
)

type chatRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func completionBody(content string) string {
	body, _ := json.Marshal(map[string]any{
		"id":      "chatcmpl-test",
		"object":  "chat.completion",
		"created": 1700000000,
		"model":   "gpt-test",
		"choices": []map[string]any{{
			"index":         0,
			"finish_reason": "stop",
			"logprobs":      nil,
			"message":       map[string]any{"role": "assistant", "content": content, "refusal": nil},
		}},
		"usage": map[string]any{"prompt_tokens": 12, "completion_tokens": 5, "total_tokens": 17},
	})
	return string(body)
}

func newFakeAPI(t *testing.T, handler http.HandlerFunc) *OpenAI {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewOpenAI(OpenAIConfig{
		APIKey:  "sk-test",
		BaseURL: srv.URL + "/v1",
		Model:   "gpt-test",
		Timeout: 2 * time.Second,
	}, nil, nil)
}

func TestCompleteSendsConversation(t *testing.T) {
	var got chatRequest
	p := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completionBody("Hello there")))
	})

	c, err := p.Complete(context.Background(), Prompt{
		System: "Be brief.",
		Messages: []Message{
			{Role: RoleUser, Content: "hi"},
			{Role: RoleAssistant, Content: "hello"},
			{Role: RoleUser, Content: "how are you"},
		},
	}, Options{})
	require.NoError(t, err)

	assert.Equal(t, "Hello there", c.Content)
	assert.Equal(t, "gpt-test", c.Model)
	assert.Equal(t, "stop", c.FinishReason)
	assert.Equal(t, int64(12), c.PromptTokens)
	assert.Equal(t, int64(5), c.CompletionTokens)

	assert.Equal(t, "gpt-test", got.Model)
	require.Len(t, got.Messages, 4)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "Be brief.", got.Messages[0].Content)
	assert.Equal(t, "assistant", got.Messages[2].Role)
	assert.Equal(t, "how are you", got.Messages[3].Content)
}

func TestCompleteJSONMode(t *testing.T) {
	var got chatRequest
	p := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completionBody("Sure:\n```json\n{\"action\": \"search\"}\n```")))
	})

	c, err := p.Complete(context.Background(), Prompt{System: "Classify.", Messages: []Message{{Role: RoleUser, Content: "find cats"}}}, Options{JSON: true})
	require.NoError(t, err)
	assert.JSONEq(t, `{"action":"search"}`, c.Content)
	assert.Contains(t, got.Messages[0].Content, jsonInstruction)
}

func TestCompleteErrorMapping(t *testing.T) {
	tests := []struct {
		status int
		reason string
	}{
		{http.StatusUnauthorized, ReasonUnauthorized},
		{http.StatusTooManyRequests, ReasonRateLimited},
		{http.StatusBadRequest, ReasonBadRequest},
		{http.StatusBadGateway, ReasonUnavailable},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			p := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error":{"message":"nope","type":"test","code":"x"}}`))
			})
			_, err := p.Complete(context.Background(), Prompt{Messages: []Message{{Role: RoleUser, Content: "x"}}}, Options{})
			require.ErrorIs(t, err, ErrProvider)
			var pe *ProviderError
			require.True(t, errors.As(err, &pe))
			assert.Equal(t, tt.status, pe.StatusCode)
			assert.Equal(t, tt.reason, pe.Reason)
		})
	}
}

func TestCompleteEmptyResponse(t *testing.T) {
	p := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completionBody("   ")))
	})
	_, err := p.Complete(context.Background(), Prompt{Messages: []Message{{Role: RoleUser, Content: "x"}}}, Options{})
	assert.Equal(t, ReasonEmpty, Reason(err))
}

func TestBreakerOpensOnUpstreamFailures(t *testing.T) {
	var calls atomic.Int32
	p := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	prompt := Prompt{Messages: []Message{{Role: RoleUser, Content: "x"}}}

	for i := 0; i < 5; i++ {
		_, _ = p.Complete(context.Background(), prompt, Options{})
	}
	assert.Equal(t, resilience.StateOpen, p.breaker.State())

	_, err := p.Complete(context.Background(), prompt, Options{})
	assert.Equal(t, ReasonCircuitOpen, Reason(err))
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Equal(t, int32(5), calls.Load())
}

func TestBreakerIgnoresRejectedRequests(t *testing.T) {
	p := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})
	for i := 0; i < 8; i++ {
		_, _ = p.Complete(context.Background(), Prompt{Messages: []Message{{Role: RoleUser, Content: "x"}}}, Options{})
	}
	assert.Equal(t, resilience.StateClosed, p.breaker.State())
}

func TestDisabled(t *testing.T) {
	_, err := Disabled{}.Complete(context.Background(), Prompt{}, Options{})
	require.ErrorIs(t, err, ErrProvider)
	assert.Equal(t, ReasonNotConfigured, Reason(err))
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{`{"a":1}`, `{"a":1}`, true},
		{"```json\n{\"a\":{\"b\":2}}\n```", `{"a":{"b":2}}`, true},
		{"no json here", "", false},
		{"} backwards {", "", false},
	}
	for _, tt := range tests {
		got, ok := ExtractJSON(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}
