package openrouter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Enochthedev/ProjectHub-backend-sub007/internal/conf"
	"github.com/Enochthedev/ProjectHub-backend-sub007/pkg/aierrors"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, serverURL string) Client {
	t.Helper()
	c, err := NewClient(&conf.OpenRouter{
		BaseURL:        serverURL,
		ApiKey:         "test-key",
		RequestTimeout: 5 * time.Second,
	}, log.DefaultLogger)
	require.NoError(t, err)
	return c
}

func chatReq() *ChatRequest {
	return &ChatRequest{
		Model:    "openai/gpt-4o-mini",
		Messages: []Message{{Role: "user", Content: "What is a literature review?"}},
	}
}

func TestNewClient_RequiresAPIKey(t *testing.T) {
	_, err := NewClient(&conf.OpenRouter{BaseURL: "https://openrouter.ai"}, log.DefaultLogger)
	assert.Error(t, err)

	_, err = NewClient(nil, log.DefaultLogger)
	assert.Error(t, err)
}

func TestChatCompletion_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, UserAgent, r.Header.Get("User-Agent"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "gen-1",
			"model": "openai/gpt-4o-mini",
			"choices": [{"message": {"role": "assistant", "content": "A survey of prior work."}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 12, "completion_tokens": 8, "total_tokens": 20}
		}`))
	}))
	defer server.Close()

	result, err := newTestClient(t, server.URL).ChatCompletion(context.Background(), chatReq())
	require.NoError(t, err)
	assert.Equal(t, "A survey of prior work.", result.Content)
	assert.Equal(t, "openai/gpt-4o-mini", result.Model)
	assert.Equal(t, 12, result.PromptTokens)
	assert.Equal(t, 8, result.CompletionTokens)
}

func TestChatCompletion_ValidatesInput(t *testing.T) {
	c := newTestClient(t, "http://localhost:0")

	_, err := c.ChatCompletion(context.Background(), nil)
	var validationErr *aierrors.ValidationError
	assert.ErrorAs(t, err, &validationErr)

	_, err = c.ChatCompletion(context.Background(), &ChatRequest{Model: "m"})
	assert.ErrorAs(t, err, &validationErr)
}

func TestChatCompletion_RateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error": {"message": "rate limit exceeded"}}`))
	}))
	defer server.Close()

	_, err := newTestClient(t, server.URL).ChatCompletion(context.Background(), chatReq())
	var rateLimitErr *aierrors.RateLimitError
	require.ErrorAs(t, err, &rateLimitErr)
	assert.Equal(t, 30*time.Second, rateLimitErr.RetryAfter)
	assert.Equal(t, aierrors.KindRateLimit, aierrors.Classify(err))
}

func TestChatCompletion_ModelNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error": {"message": "model not available"}}`))
	}))
	defer server.Close()

	_, err := newTestClient(t, server.URL).ChatCompletion(context.Background(), chatReq())
	var modelErr *aierrors.ModelFailureError
	require.ErrorAs(t, err, &modelErr)
	assert.Equal(t, "openai/gpt-4o-mini", modelErr.Model)
}

func TestChatCompletion_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"error": {"message": "upstream overloaded"}}`))
	}))
	defer server.Close()

	_, err := newTestClient(t, server.URL).ChatCompletion(context.Background(), chatReq())
	var upstreamErr *aierrors.UpstreamError
	require.ErrorAs(t, err, &upstreamErr)
	assert.Equal(t, http.StatusBadGateway, upstreamErr.StatusCode)
	assert.Equal(t, aierrors.KindTransientUpstream, aierrors.Classify(err))
}

func TestChatCompletion_ConnectionFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	_, err := newTestClient(t, server.URL).ChatCompletion(context.Background(), chatReq())
	var upstreamErr *aierrors.UpstreamError
	require.ErrorAs(t, err, &upstreamErr)
	assert.Equal(t, aierrors.KindTransientUpstream, aierrors.Classify(err))
}

func TestChatCompletion_EmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id": "gen-2", "model": "m", "choices": []}`))
	}))
	defer server.Close()

	_, err := newTestClient(t, server.URL).ChatCompletion(context.Background(), chatReq())
	var modelErr *aierrors.ModelFailureError
	assert.ErrorAs(t, err, &modelErr)
}

func TestCreateHTTPClient_Proxies(t *testing.T) {
	_, err := createHTTPClient("socks5://127.0.0.1:1080", time.Second)
	assert.NoError(t, err)

	_, err = createHTTPClient("http://127.0.0.1:8080", time.Second)
	assert.NoError(t, err)

	_, err = createHTTPClient("ftp://127.0.0.1:21", time.Second)
	assert.Error(t, err)
}
