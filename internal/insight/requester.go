package insight

import (
	"context"
	"errors"
	"time"

	"github.com/KaramelBytes/agentcompare/internal/agents"
	"github.com/KaramelBytes/agentcompare/internal/ai"
	"github.com/KaramelBytes/agentcompare/internal/logger"
	"github.com/KaramelBytes/agentcompare/internal/metrics"
)

const (
	DefaultModel     = "gpt-4o-mini"
	DefaultMaxTokens = 2000
)

// Requester asks a runtime for an analysis of a comparison.
type Requester struct {
	Runtime   ai.Runtime
	Model     string
	MaxTokens int
	Locale    Locale
	// RunID is sent with the request and attached to log lines.
	RunID string
	Log   *logger.Logger
}

// Result is a successful analysis.
type Result struct {
	Text      string
	RequestID string
	Usage     ai.Usage
	Elapsed   time.Duration
}

func (r *Requester) model() string {
	if r.Model == "" {
		return DefaultModel
	}
	return r.Model
}

func (r *Requester) maxTokens() int {
	if r.MaxTokens <= 0 {
		return DefaultMaxTokens
	}
	return r.MaxTokens
}

func (r *Requester) log() *logger.Logger {
	l := r.Log
	if l == nil {
		l = logger.Discard()
	}
	if r.RunID != "" {
		l = l.WithRun(r.RunID)
	}
	return l
}

// Prepare builds the request that Request would send, without sending it.
func (r *Requester) Prepare(entries []metrics.Entry) (ai.GenerateRequest, error) {
	prompt, err := BuildPrompt(entries, r.Locale)
	if err != nil {
		return ai.GenerateRequest{}, err
	}
	return ai.GenerateRequest{
		Model:     r.model(),
		Messages:  []ai.Message{{Role: "user", Content: prompt}},
		MaxTokens: r.maxTokens(),
		RequestID: r.RunID,
	}, nil
}

// Request sends exactly one completion request for entries. An empty selection
// yields *ValidationError before any call; every call failure is a *RequestError.
func (r *Requester) Request(ctx context.Context, sel agents.Selection, entries []metrics.Entry) (*Result, error) {
	if sel.IsEmpty() {
		return nil, &ValidationError{Reason: "select at least one agent for analysis"}
	}
	if r.Runtime == nil {
		return nil, &RequestError{Err: errors.New("no runtime configured")}
	}
	log := r.log()
	req, err := r.Prepare(entries)
	if err != nil {
		return nil, &RequestError{Err: err}
	}

	log.WithField("model", req.Model).WithField("agents", len(entries)).Debug("requesting analysis")
	start := time.Now()
	resp, err := r.Runtime.Generate(ctx, req)
	elapsed := time.Since(start)
	if err == nil && (resp == nil || len(resp.Choices) == 0) {
		err = ai.ErrNoChoices
	}
	if err != nil {
		log.WithError(err).WithField("elapsed", elapsed.String()).Error("analysis request failed")
		return nil, &RequestError{Err: err}
	}
	log.WithField("request_id", resp.RequestID).
		WithField("total_tokens", resp.Usage.TotalTokens).
		WithField("elapsed", elapsed.String()).
		Info("analysis received")
	return &Result{
		Text:      resp.Content(),
		RequestID: resp.RequestID,
		Usage:     resp.Usage,
		Elapsed:   elapsed,
	}, nil
}
