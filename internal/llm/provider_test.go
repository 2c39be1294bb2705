package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var verdictSchema = &Schema{
	Name: "test-verdict",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"verdict": map[string]any{"type": "string", "enum": []any{"pass", "fail"}},
			"score":   map[string]any{"type": "number"},
		},
		"required":             []any{"verdict", "score"},
		"additionalProperties": false,
	},
}

func TestValidateResponse(t *testing.T) {
	tests := []struct {
		name    string
		schema  *Schema
		raw     string
		wantErr bool
	}{
		{"valid", verdictSchema, `{"verdict":"pass","score":4.5}`, false},
		{"nil schema accepts text", nil, `not json`, false},
		{"missing required", verdictSchema, `{"verdict":"pass"}`, true},
		{"wrong type", verdictSchema, `{"verdict":"pass","score":"high"}`, true},
		{"bad enum", verdictSchema, `{"verdict":"maybe","score":1}`, true},
		{"extra property", verdictSchema, `{"verdict":"pass","score":1,"x":1}`, true},
		{"malformed", verdictSchema, `{"verdict":`, true},
		{"empty", verdictSchema, ``, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateResponse(tt.schema, json.RawMessage(tt.raw))
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			var inv *InvalidResponseError
			assert.ErrorAs(t, err, &inv)
		})
	}
}

func TestMockProvider(t *testing.T) {
	m := NewMockProvider(
		MockResponse{Content: json.RawMessage(`{"verdict":"pass","score":1}`), Usage: Usage{InputTokens: 3}},
		MockResponse{Err: errors.New("boom")},
	)
	ctx := context.Background()

	resp, err := m.Generate(ctx, Request{Schema: verdictSchema})
	require.NoError(t, err)
	assert.Equal(t, "mock", resp.Model)
	assert.Equal(t, 3, resp.Usage.InputTokens)

	_, err = m.Generate(ctx, UserPrompt("sys", "hello"))
	assert.EqualError(t, err, "boom")

	_, err = m.Generate(ctx, Request{})
	var unavail *UnavailableError
	assert.ErrorAs(t, err, &unavail)

	calls := m.Calls()
	require.Len(t, calls, 3)
	assert.Equal(t, "sys", calls[1].System)
	assert.Equal(t, "hello", calls[1].Messages[0].Content)
	assert.Equal(t, 3, m.CallCount())
}

func TestMockProvider_FallbackAndValidation(t *testing.T) {
	m := NewMockProvider(MockResponse{Content: json.RawMessage(`{"verdict":"pass"}`)})
	m.Fallback = func(Request) MockResponse {
		return MockResponse{Content: json.RawMessage(`{"verdict":"fail","score":0}`)}
	}

	_, err := m.Generate(context.Background(), Request{Schema: verdictSchema})
	var inv *InvalidResponseError
	require.ErrorAs(t, err, &inv, "canned content is still validated")

	resp, err := m.Generate(context.Background(), Request{Schema: verdictSchema})
	require.NoError(t, err)
	assert.JSONEq(t, `{"verdict":"fail","score":0}`, string(resp.Content))
}

func TestMockProvider_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewMockProvider().Generate(ctx, Request{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPurposeContext(t *testing.T) {
	assert.Equal(t, "unknown", PurposeFrom(context.Background()))
	assert.Equal(t, "analysis", PurposeFrom(WithPurpose(context.Background(), "analysis")))
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr error
	}{
		{"openai with key", withKey(DefaultConfig(ProviderOpenAI), "k"), nil},
		{"openai compatible without key", withURL(DefaultConfig(ProviderOpenAI), "http://localhost:11434/v1"), nil},
		{"openai without key", DefaultConfig(ProviderOpenAI), ErrNoCredentials},
		{"anthropic without key", DefaultConfig(ProviderAnthropic), ErrNoCredentials},
		{"gemini without key", DefaultConfig(ProviderGemini), ErrNoCredentials},
		{"mock", DefaultConfig(ProviderMock), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}

	assert.Error(t, Config{Provider: "carrier-pigeon"}.Validate())
}

func withKey(c Config, key string) Config { c.APIKey = key; return c }
func withURL(c Config, url string) Config { c.BaseURL = url; return c }

func TestNewProvider(t *testing.T) {
	_, err := NewProvider(context.Background(), DefaultConfig(ProviderAnthropic))
	assert.ErrorIs(t, err, ErrNoCredentials)

	p, err := NewProvider(context.Background(), Config{Provider: ProviderMock, Retry: RetryConfig{MaxAttempts: 1}})
	require.NoError(t, err)
	assert.Equal(t, "mock", p.ModelID())
}

func TestResolveModel(t *testing.T) {
	assert.Equal(t, "claude-haiku-4-5-20251001", resolveModel("claude-haiku", anthropicModels))
	assert.Equal(t, "gemini-2.0-flash", resolveModel("gemini-flash", geminiModels))
	assert.Equal(t, "custom-model", resolveModel("custom-model", geminiModels))
}

func TestGeminiSchema(t *testing.T) {
	s := geminiSchema(verdictSchema.Definition)
	require.Contains(t, s.Properties, "verdict")
	assert.Equal(t, []string{"pass", "fail"}, s.Properties["verdict"].Enum)
	assert.Equal(t, []string{"verdict", "score"}, s.Required)

	s = geminiSchema(map[string]any{
		"type":     "array",
		"items":    map[string]any{"type": "string"},
		"required": []string{"x"},
	})
	require.NotNil(t, s.Items)
	assert.Equal(t, []string{"x"}, s.Required)
}

func newTestOpenAIProvider(t *testing.T, handler http.HandlerFunc) *OpenAIProvider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := DefaultConfig(ProviderOpenAI)
	cfg.APIKey = "test-key"
	cfg.BaseURL = server.URL + "/v1"
	p, err := NewOpenAIProvider(cfg)
	require.NoError(t, err)
	return p
}

func chatCompletion(content, finish string) map[string]any {
	return map[string]any{
		"id":      "chatcmpl-test",
		"object":  "chat.completion",
		"created": 1234567890,
		"model":   "gpt-4o-mini",
		"choices": []map[string]any{{
			"index":         0,
			"message":       map[string]any{"role": "assistant", "content": content},
			"finish_reason": finish,
		}},
		"usage": map[string]any{"prompt_tokens": 40, "completion_tokens": 25, "total_tokens": 65},
	}
}

func TestOpenAIProvider(t *testing.T) {
	t.Run("happy path", func(t *testing.T) {
		var got map[string]any
		p := newTestOpenAIProvider(t, func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewDecoder(r.Body).Decode(&got)
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(chatCompletion(`{"verdict":"pass","score":3}`, "stop"))
		})
		resp, err := p.Generate(context.Background(), Request{
			System:   "You are a grader.",
			Messages: []Message{{Role: RoleUser, Content: "Grade this."}},
			Schema:   verdictSchema,
		})
		require.NoError(t, err)
		assert.Equal(t, 40, resp.Usage.InputTokens)
		assert.Equal(t, 65, resp.Usage.TotalTokens)
		assert.Equal(t, "end", resp.StopReason)

		format, _ := got["response_format"].(map[string]any)
		assert.Equal(t, "json_object", format["type"], "compatible endpoints get json_object")
		msgs, _ := got["messages"].([]any)
		assert.Len(t, msgs, 2)
	})

	t.Run("truncated", func(t *testing.T) {
		p := newTestOpenAIProvider(t, func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(chatCompletion(`{"verdict":`, "length"))
		})
		_, err := p.Generate(context.Background(), Request{Schema: verdictSchema})
		var tr *TruncatedError
		assert.ErrorAs(t, err, &tr)
	})

	t.Run("rate limit", func(t *testing.T) {
		p := newTestOpenAIProvider(t, func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"error": map[string]any{"type": "tokens", "message": "Rate limit exceeded", "code": "rate_limit_exceeded"},
			})
		})
		_, err := p.Generate(context.Background(), Request{})
		var rl *RateLimitError
		assert.ErrorAs(t, err, &rl)
	})

	t.Run("server error", func(t *testing.T) {
		p := newTestOpenAIProvider(t, func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"error": map[string]any{"type": "server_error", "message": "Internal server error"},
			})
		})
		_, err := p.Generate(context.Background(), Request{})
		var unavail *UnavailableError
		assert.ErrorAs(t, err, &unavail)
	})
}

func TestLoggingProviderPassesThrough(t *testing.T) {
	m := NewMockProvider(MockResponse{Content: json.RawMessage(`{"ok":true}`)}, MockResponse{Err: errors.New("down")})
	p := WithLogging(m)

	resp, err := p.Generate(WithPurpose(context.Background(), "test"), Request{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(resp.Content))

	_, err = p.Generate(context.Background(), Request{})
	assert.EqualError(t, err, "down")
	assert.Equal(t, "mock", p.ModelID())
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig(ProviderGemini)
	assert.Equal(t, "gemini-flash", cfg.Model)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, 60*time.Second, cfg.Timeout)
}
