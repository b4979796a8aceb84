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

// DefaultOllamaHost is where a local Ollama server listens by default.
const DefaultOllamaHost = "http://127.0.0.1:11434"

// OllamaClient is a minimal HTTP client for a local Ollama runtime.
type OllamaClient struct {
	httpClient *http.Client
	host       string
	retry      retryPolicy
}

// NewOllamaClient creates a client for c.Host, falling back to DefaultOllamaHost.
func NewOllamaClient(c RuntimeConfig) *OllamaClient {
	host := strings.TrimRight(c.Host, "/")
	if host == "" {
		host = DefaultOllamaHost
	}
	timeout := c.HTTPTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &OllamaClient{
		httpClient: &http.Client{Timeout: timeout},
		host:       host,
		retry:      newRetryPolicy(c, 200*time.Millisecond, time.Second),
	}
}

// ollama /api/chat, non-streaming
type ollamaChatRequest struct {
	Model    string         `json:"model"`
	Messages []Message      `json:"messages"`
	Stream   bool           `json:"stream"`
	Options  map[string]any `json:"options,omitempty"`
}

type ollamaChatResponse struct {
	Message         Message `json:"message"`
	Done            bool    `json:"done"`
	PromptEvalCount int     `json:"prompt_eval_count"`
	EvalCount       int     `json:"eval_count"`
}

// Generate sends a chat request to Ollama and maps the response to GenerateResponse.
func (c *OllamaClient) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	if req.Model == "" {
		return nil, errors.New("model cannot be empty")
	}
	if len(req.Messages) == 0 {
		return nil, errors.New("messages cannot be empty")
	}
	oreq := ollamaChatRequest{Model: req.Model, Messages: req.Messages, Options: map[string]any{}}
	if req.MaxTokens > 0 {
		oreq.Options["num_predict"] = req.MaxTokens
	}
	payload, err := json.Marshal(oreq)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	endpoint := c.host + "/api/chat"

	var out *GenerateResponse
	op := func() error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("build request: %w", err))
		}
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
				return err
			}
			return backoff.Permanent(&UnreachableError{Host: c.host, Err: err})
		}
		defer resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			apiErr := decodeAPIError(resp)
			var typed error = apiErr
			switch {
			case resp.StatusCode == http.StatusNotFound:
				// usually a model that was never pulled
				typed = &ModelNotFoundError{APIError: apiErr}
			case resp.StatusCode == http.StatusBadRequest:
				typed = &BadRequestError{APIError: apiErr}
			case resp.StatusCode >= 500:
				return &ServerError{APIError: apiErr}
			}
			return backoff.Permanent(typed)
		}
		var oresp ollamaChatResponse
		if err := json.NewDecoder(resp.Body).Decode(&oresp); err != nil {
			return backoff.Permanent(fmt.Errorf("decode response: %w", err))
		}
		if oresp.Message.Content == "" {
			return backoff.Permanent(ErrNoChoices)
		}
		rid := req.RequestID
		if rid == "" {
			rid = fmt.Sprintf("ollama_%d", time.Now().UnixNano())
		}
		out = &GenerateResponse{
			Choices: []Choice{{Message: Message{Role: "assistant", Content: oresp.Message.Content}}},
			Usage: Usage{
				PromptTokens:     oresp.PromptEvalCount,
				CompletionTokens: oresp.EvalCount,
				TotalTokens:      oresp.PromptEvalCount + oresp.EvalCount,
			},
			RequestID: rid,
		}
		return nil
	}
	if err := c.retry.run(ctx, op); err != nil {
		return nil, err
	}
	return out, nil
}
