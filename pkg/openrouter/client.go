// Package openrouter provides a minimal client for the OpenRouter chat
// completion API, the routing layer through which all AI models are reached.
// Failures are mapped to the typed errors in pkg/aierrors so the resilience
// core can classify them without knowing transport details.
package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Enochthedev/ProjectHub-backend-sub007/internal/conf"
	"github.com/Enochthedev/ProjectHub-backend-sub007/pkg/aierrors"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
	"golang.org/x/net/proxy"
)

const (
	// DefaultTimeout bounds a single chat completion request.
	DefaultTimeout = 30 * time.Second

	// UserAgent identifies ProjectHub to the routing API.
	UserAgent = "ProjectHub/1.0"
)

// Message is one turn of a chat conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the input to ChatCompletion.
type ChatRequest struct {
	Model       string
	Messages    []Message
	MaxTokens   int
	Temperature float64
}

// ChatResult is the parsed outcome of a successful chat completion.
type ChatResult struct {
	Content          string
	Model            string
	PromptTokens     int
	CompletionTokens int
}

// chatPayload is the wire request format.
type chatPayload struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
}

// chatResponse is the wire response format.
type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message      Message `json:"message"`
		FinishReason string  `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// errorResponse is the wire error format.
type errorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// Client sends chat completion requests through the routing API.
type Client interface {
	ChatCompletion(ctx context.Context, req *ChatRequest) (*ChatResult, error)
}

type client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *log.Helper
}

// NewClient creates an OpenRouter client from configuration.
func NewClient(c *conf.OpenRouter, logger log.Logger) (Client, error) {
	if c == nil || c.ApiKey == "" {
		return nil, fmt.Errorf("openrouter configuration with api key is required")
	}

	timeout := c.RequestTimeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	httpClient, err := createHTTPClient(c.ProxyURL, timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}

	return &client{
		baseURL:    strings.TrimSuffix(c.BaseURL, "/"),
		apiKey:     c.ApiKey,
		httpClient: httpClient,
		logger:     log.NewHelper(logger),
	}, nil
}

// ChatCompletion performs a single chat completion call. It never retries:
// retry, failover and degradation are the resilience core's responsibility.
func (c *client) ChatCompletion(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	if req == nil || req.Model == "" || len(req.Messages) == 0 {
		return nil, &aierrors.ValidationError{Field: "request", Message: "model and messages are required"}
	}

	payload, err := json.Marshal(chatPayload{
		Model:       req.Model,
		Messages:    req.Messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	endpoint := c.baseURL + "/v1/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("User-Agent", UserAgent)
	// Unique per call so upstream support tickets can reference a request.
	httpReq.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		// Connection-level failure: no response received
		return nil, &aierrors.UpstreamError{Message: "request failed", OriginalErr: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &aierrors.UpstreamError{Message: "failed to read response", OriginalErr: err}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, c.mapError(req.Model, resp, body)
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &aierrors.UpstreamError{StatusCode: resp.StatusCode, Message: "invalid response format", OriginalErr: err}
	}
	if len(parsed.Choices) == 0 {
		return nil, &aierrors.ModelFailureError{
			Model:       req.Model,
			OriginalErr: fmt.Errorf("completion contained no choices"),
		}
	}

	return &ChatResult{
		Content:          parsed.Choices[0].Message.Content,
		Model:            parsed.Model,
		PromptTokens:     parsed.Usage.PromptTokens,
		CompletionTokens: parsed.Usage.CompletionTokens,
	}, nil
}

// mapError converts a non-200 response to a typed error.
func (c *client) mapError(model string, resp *http.Response, body []byte) error {
	var parsed errorResponse
	_ = json.Unmarshal(body, &parsed)
	msg := parsed.Error.Message
	if msg == "" {
		msg = strings.TrimSpace(string(body))
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return &aierrors.RateLimitError{
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Message:    msg,
		}
	case resp.StatusCode == http.StatusNotFound,
		strings.Contains(strings.ToLower(msg), "model"):
		return &aierrors.ModelFailureError{
			Model:       model,
			OriginalErr: &aierrors.UpstreamError{StatusCode: resp.StatusCode, Message: msg},
		}
	default:
		return &aierrors.UpstreamError{StatusCode: resp.StatusCode, Message: msg}
	}
}

// parseRetryAfter reads a Retry-After header given in seconds.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	seconds, err := strconv.Atoi(value)
	if err != nil || seconds < 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

// createHTTPClient creates an HTTP client, optionally routed through a
// SOCKS5 or HTTP proxy.
func createHTTPClient(proxyURL string, timeout time.Duration) (*http.Client, error) {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	if proxyURL != "" {
		parsed, err := url.Parse(proxyURL)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy URL: %w", err)
		}

		switch parsed.Scheme {
		case "socks5", "socks5h":
			var auth *proxy.Auth
			if parsed.User != nil {
				password, _ := parsed.User.Password()
				auth = &proxy.Auth{User: parsed.User.Username(), Password: password}
			}
			dialer, err := proxy.SOCKS5("tcp", parsed.Host, auth, proxy.Direct)
			if err != nil {
				return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
			}
			transport.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
				return dialer.Dial(network, addr)
			}
		case "http", "https":
			transport.Proxy = http.ProxyURL(parsed)
		default:
			return nil, fmt.Errorf("unsupported proxy scheme: %s", parsed.Scheme)
		}
	}

	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}, nil
}
