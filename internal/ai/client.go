package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// DefaultBaseURL is the OpenAI API root.
const DefaultBaseURL = "https://api.openai.com/v1"

// KeySource returns the current API key. It is consulted on every request so
// credentials can rotate without rebuilding the client.
type KeySource func() string

// StaticKey returns a KeySource that always yields key.
func StaticKey(key string) KeySource { return func() string { return key } }

// Client talks to an OpenAI-compatible /chat/completions endpoint.
type Client struct {
	httpClient *http.Client
	baseURL    string
	keySource  KeySource
	retry      retryPolicy
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type GenerateRequest struct {
	Model     string    `json:"model"`
	Messages  []Message `json:"messages"`
	MaxTokens int       `json:"max_tokens,omitempty"`
	// RequestID is sent as X-Request-Id when set.
	RequestID string `json:"-"`
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type Choice struct {
	Message Message `json:"message"`
}

type GenerateResponse struct {
	ID        string   `json:"id"`
	Choices   []Choice `json:"choices"`
	Usage     Usage    `json:"usage"`
	RequestID string   `json:"-"`
}

// Content returns the first choice's message text.
func (r *GenerateResponse) Content() string {
	if r == nil || len(r.Choices) == 0 {
		return ""
	}
	return r.Choices[0].Message.Content
}

// NewClient builds a client from c. A single attempt is made unless c.RetryMax
// asks for more.
func NewClient(c RuntimeConfig) *Client {
	timeout := c.HTTPTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	base := strings.TrimRight(c.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	ks := c.KeySource
	if ks == nil {
		ks = StaticKey("")
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    base,
		keySource:  ks,
		retry:      newRetryPolicy(c, 500*time.Millisecond, 4*time.Second),
	}
}

// BaseURL returns the endpoint root the client posts to.
func (c *Client) BaseURL() string { return c.baseURL }

func (c *Client) ValidateModel(model string) error {
	if model == "" {
		return errors.New("model cannot be empty")
	}
	return nil
}

// authHeader accepts keys stored with or without the Bearer scheme.
func authHeader(key string) string {
	if strings.HasPrefix(key, "Bearer ") {
		return key
	}
	return "Bearer " + key
}

func (c *Client) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	key := strings.TrimSpace(c.keySource())
	if key == "" {
		return nil, ErrMissingAPIKey
	}
	if err := c.ValidateModel(req.Model); err != nil {
		return nil, err
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	endpoint := c.baseURL + "/chat/completions"

	var out *GenerateResponse
	attempt := 0
	op := func() error {
		attempt++
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("build request: %w", err))
		}
		httpReq.Header.Set("Authorization", authHeader(key))
		httpReq.Header.Set("Content-Type", "application/json")
		if req.RequestID != "" {
			httpReq.Header.Set("X-Request-Id", req.RequestID)
		}

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			if isRetryableNetErr(err) {
				return fmt.Errorf("http request: %w", err)
			}
			return backoff.Permanent(&UnreachableError{Host: c.baseURL, Err: err})
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			typed := classifyAPIError(decodeAPIError(resp), resp)
			if !retryableStatus(resp.StatusCode) {
				return backoff.Permanent(typed)
			}
			var rl *RateLimitError
			if errors.As(typed, &rl) && rl.RetryAfter > 0 && attempt < c.retry.MaxAttempts {
				select {
				case <-time.After(rl.RetryAfter):
				case <-ctx.Done():
					return backoff.Permanent(ctx.Err())
				}
			}
			return typed
		}

		var decoded GenerateResponse
		if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
			return backoff.Permanent(fmt.Errorf("decode response: %w", err))
		}
		if len(decoded.Choices) == 0 {
			return backoff.Permanent(ErrNoChoices)
		}
		decoded.RequestID = extractRequestID(resp)
		out = &decoded
		return nil
	}
	if err := c.retry.run(ctx, op); err != nil {
		return nil, err
	}
	return out, nil
}
