package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/KaramelBytes/agentcompare/internal/ai"
	cfgpkg "github.com/KaramelBytes/agentcompare/internal/config"
	"github.com/KaramelBytes/agentcompare/internal/insight"
	"github.com/KaramelBytes/agentcompare/internal/utils"
)

type runtimeOptions struct {
	ProviderFlag string
	OllamaHost   string
	BaseURL      string
}

// runtimeFactory is swapped in tests.
var runtimeFactory = buildRuntime

func buildRuntime(cfg *cfgpkg.Global, opts runtimeOptions) (ai.Runtime, string, error) {
	rc := ai.RuntimeConfig{
		HTTPTimeout: 60 * time.Second,
		RetryMax:    1,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    4 * time.Second,
		BaseURL:     ai.DefaultBaseURL,
		Host:        ai.DefaultOllamaHost,
	}
	if cfg != nil {
		if cfg.HTTPTimeoutSec > 0 {
			rc.HTTPTimeout = time.Duration(cfg.HTTPTimeoutSec) * time.Second
		}
		if cfg.RetryMaxAttempts > 0 {
			rc.RetryMax = cfg.RetryMaxAttempts
		}
		if cfg.RetryBaseDelayMs > 0 {
			rc.BaseDelay = time.Duration(cfg.RetryBaseDelayMs) * time.Millisecond
		}
		if cfg.RetryMaxDelayMs > 0 {
			rc.MaxDelay = time.Duration(cfg.RetryMaxDelayMs) * time.Millisecond
		}
		if cfg.BaseURL != "" {
			rc.BaseURL = cfg.BaseURL
		}
		if cfg.OllamaHost != "" {
			rc.Host = cfg.OllamaHost
		}
	}
	if v := strings.TrimSpace(opts.BaseURL); v != "" {
		rc.BaseURL = v
	}
	if v := strings.TrimSpace(opts.OllamaHost); v != "" {
		rc.Host = v
	}
	// read at request time so a key exported mid-session is picked up
	rc.KeySource = cfg.ResolveAPIKey

	providerName := strings.ToLower(strings.TrimSpace(opts.ProviderFlag))
	if providerName == "" && cfg != nil {
		providerName = strings.ToLower(cfg.Provider)
	}
	providerName = ai.NormalizeProvider(providerName)

	client, ok := ai.GetRuntime(providerName, rc)
	if !ok {
		return nil, providerName, fmt.Errorf("provider not supported: %s (use openai or ollama)", providerName)
	}
	return client, providerName, nil
}

func selectModel(cfg *cfgpkg.Global, explicit string) string {
	if explicit != "" {
		return explicit
	}
	if cfg != nil && cfg.Model != "" {
		return cfg.Model
	}
	return insight.DefaultModel
}

func selectMaxTokens(cfg *cfgpkg.Global, explicit int) int {
	if explicit > 0 {
		return explicit
	}
	if cfg != nil && cfg.MaxTokens > 0 {
		return cfg.MaxTokens
	}
	return insight.DefaultMaxTokens
}

// explainRequestError maps the typed runtime errors to actionable messages.
func explainRequestError(err error, providerName, model string) error {
	var (
		authErr *ai.AuthError
		rlErr   *ai.RateLimitError
		nfErr   *ai.ModelNotFoundError
		brErr   *ai.BadRequestError
		qErr    *ai.QuotaExceededError
		sErr    *ai.ServerError
		unreach *ai.UnreachableError
	)
	switch {
	case errors.Is(err, ai.ErrMissingAPIKey):
		return fmt.Errorf("no API key: set OPENAI_API_KEY (or REACT_APP_OPENAI_API_TOKEN) or run 'agentcompare config set api_key <key>': %w", err)
	case errors.As(err, &unreach):
		if providerName == ai.ProviderOllama {
			return fmt.Errorf("Ollama not reachable at %s. Ensure Ollama is running and the host is correct (AGENTCOMPARE_OLLAMA_HOST or config 'ollama_host'). Detail: %w", unreach.Host, err)
		}
		return fmt.Errorf("endpoint unreachable. Check your network and base_url: %w", err)
	case errors.As(err, &authErr):
		return fmt.Errorf("authentication failed: check OPENAI_API_KEY or api_key in ~/.agentcompare/config.yaml: %w", err)
	case errors.As(err, &rlErr):
		if rlErr.RetryAfter > 0 {
			return fmt.Errorf("rate limited, try again in ~%ds: %w", int(rlErr.RetryAfter.Seconds()), err)
		}
		return fmt.Errorf("rate limited by provider, please retry (or raise --retry-max): %w", err)
	case errors.As(err, &nfErr):
		if providerName == ai.ProviderOllama {
			return fmt.Errorf("local model not available (%s). Install it with 'ollama pull %s' or choose another model. %w", model, model, err)
		}
		return fmt.Errorf("model not found (%s). Verify the model name with 'agentcompare models': %w", model, err)
	case errors.As(err, &brErr):
		return fmt.Errorf("request invalid. Try fewer agents or a smaller --max-tokens: %w", err)
	case errors.As(err, &qErr):
		return fmt.Errorf("quota/billing issue. Check your provider account: %w", err)
	case errors.As(err, &sErr):
		return fmt.Errorf("provider appears unavailable (server error). Please retry later: %w", err)
	case errors.Is(err, ai.ErrNoChoices):
		return fmt.Errorf("no content returned from model: %w", err)
	default:
		return fmt.Errorf("analysis failed: %w", err)
	}
}

type outputOptions struct {
	JSON         bool
	Quiet        bool
	Model        string
	MaxTokens    int
	Locale       insight.Locale
	Agents       int
	PromptTokens int
	RunID        string
	RequestID    string
	OutputPath   string
	OutputFormat string
	// Rendered replaces content on stdout only; files always get the raw markdown.
	Rendered string
	Writer   io.Writer
}

func (o outputOptions) envelope(content string) map[string]any {
	return map[string]any{
		"model":         o.Model,
		"max_tokens":    o.MaxTokens,
		"locale":        string(o.Locale),
		"agents":        o.Agents,
		"prompt_tokens": o.PromptTokens,
		"run_id":        o.RunID,
		"request_id":    o.RequestID,
		"content":       content,
	}
}

func formatAndWriteOutput(content string, opts outputOptions) error {
	w := opts.Writer
	if w == nil {
		w = os.Stdout
	}

	switch {
	case opts.JSON:
		b, err := utils.PrettyJSON(opts.envelope(content))
		if err != nil {
			return fmt.Errorf("marshal output: %w", err)
		}
		fmt.Fprintln(w, string(b))
	case opts.Rendered != "":
		fmt.Fprint(w, opts.Rendered)
	case opts.Quiet:
		fmt.Fprintln(w, content)
	default:
		fmt.Fprintln(w, "\n=== Analyse ===")
		fmt.Fprintln(w, content)
	}

	if opts.OutputPath == "" {
		return nil
	}

	var data []byte
	switch opts.OutputFormat {
	case "", "text", "markdown", "md":
		data = []byte(content)
	case "json":
		b, err := utils.PrettyJSON(opts.envelope(content))
		if err != nil {
			return fmt.Errorf("marshal output: %w", err)
		}
		data = b
	default:
		return fmt.Errorf("unsupported --format: %s (use text|markdown|json)", opts.OutputFormat)
	}
	if err := utils.SafeWriteFile(opts.OutputPath, data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	if !opts.Quiet {
		fmt.Fprintf(w, "\n💾 Saved output to %s\n", opts.OutputPath)
	}
	return nil
}
