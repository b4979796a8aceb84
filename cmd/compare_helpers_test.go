package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/KaramelBytes/agentcompare/internal/ai"
	cfgpkg "github.com/KaramelBytes/agentcompare/internal/config"
	"github.com/KaramelBytes/agentcompare/internal/insight"
)

func TestSelectModelPrecedence(t *testing.T) {
	cfg := &cfgpkg.Global{Model: "cfg-model"}
	if got := selectModel(cfg, "cli-model"); got != "cli-model" {
		t.Fatalf("expected CLI model, got %q", got)
	}
	if got := selectModel(cfg, ""); got != "cfg-model" {
		t.Fatalf("expected config model, got %q", got)
	}
	if got := selectModel(nil, ""); got != insight.DefaultModel {
		t.Fatalf("expected fallback model, got %q", got)
	}
	if got := selectMaxTokens(&cfgpkg.Global{MaxTokens: 300}, 0); got != 300 {
		t.Fatalf("expected config max tokens, got %d", got)
	}
	if got := selectMaxTokens(nil, 0); got != insight.DefaultMaxTokens {
		t.Fatalf("expected default max tokens, got %d", got)
	}
}

func TestBuildRuntimeProviders(t *testing.T) {
	rt, name, err := buildRuntime(&cfgpkg.Global{BaseURL: "http://example.invalid/v1"}, runtimeOptions{})
	if err != nil || name != ai.ProviderOpenAI {
		t.Fatalf("expected openai runtime, got %q %v", name, err)
	}
	c, ok := rt.(*ai.Client)
	if !ok || c.BaseURL() != "http://example.invalid/v1" {
		t.Fatalf("expected configured client, got %T", rt)
	}
	rt, name, err = buildRuntime(nil, runtimeOptions{ProviderFlag: "local"})
	if err != nil || name != ai.ProviderOllama {
		t.Fatalf("expected ollama runtime, got %q %v", name, err)
	}
	if _, ok := rt.(*ai.OllamaClient); !ok {
		t.Fatalf("expected *ai.OllamaClient, got %T", rt)
	}
	if _, _, err := buildRuntime(nil, runtimeOptions{ProviderFlag: "bogus"}); err == nil {
		t.Fatal("expected unsupported provider error")
	}
}

func TestExplainRequestErrorKeepsCause(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{ai.ErrMissingAPIKey, "OPENAI_API_KEY"},
		{&ai.RateLimitError{APIError: &ai.APIError{StatusCode: 429}}, "rate limited"},
		{&ai.ModelNotFoundError{APIError: &ai.APIError{StatusCode: 404}}, "agentcompare models"},
		{&ai.ServerError{APIError: &ai.APIError{StatusCode: 502}}, "server error"},
		{&ai.UnreachableError{Host: "http://x", Err: errors.New("refused")}, "unreachable"},
		{fmt.Errorf("wrapped: %w", ai.ErrNoChoices), "no content"},
	}
	for _, c := range cases {
		err := explainRequestError(&insight.RequestError{Err: c.err}, ai.ProviderOpenAI, "gpt-4o-mini")
		if !strings.Contains(err.Error(), c.want) {
			t.Errorf("%T: expected %q in %q", c.err, c.want, err)
		}
		if !errors.Is(err, c.err) {
			t.Errorf("%T: cause lost in %v", c.err, err)
		}
	}
	err := explainRequestError(&ai.UnreachableError{Host: "http://127.0.0.1:11434"}, ai.ProviderOllama, "llama3.1:8b")
	if !strings.Contains(err.Error(), "Ollama not reachable") {
		t.Fatalf("expected ollama hint, got %v", err)
	}
}

func TestApplyConfigValue(t *testing.T) {
	c := &cfgpkg.Global{}
	for k, v := range map[string]string{
		"provider":           "local",
		"locale":             "EN",
		"min_messages_sent":  "5",
		"retry_max_attempts": "3",
		"decimal_comma":      "true",
	} {
		if err := applyConfigValue(c, k, v); err != nil {
			t.Fatalf("set %s: %v", k, err)
		}
	}
	if c.Provider != ai.ProviderOllama || c.Locale != "en" || c.MinMessagesSent == nil || *c.MinMessagesSent != 5 || c.RetryMaxAttempts != 3 || !c.DecimalComma {
		t.Fatalf("unexpected config: %+v", c)
	}
	for k, v := range map[string]string{"locale": "fr", "max_tokens": "-1", "provider": "x", "nope": "1"} {
		if err := applyConfigValue(c, k, v); err == nil {
			t.Errorf("expected error for %s=%s", k, v)
		}
	}
}

func TestFormatAndWriteOutput(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "report.md")
	err := formatAndWriteOutput("# Analyse", outputOptions{
		Quiet:      true,
		OutputPath: path,
		Rendered:   "RENDERED\n",
		Writer:     &buf,
	})
	if err != nil {
		t.Fatalf("formatAndWriteOutput: %v", err)
	}
	if buf.String() != "RENDERED\n" {
		t.Fatalf("expected rendered text on stdout, got %q", buf.String())
	}
	b, _ := os.ReadFile(path)
	if string(b) != "# Analyse" {
		t.Fatalf("file must hold raw markdown, got %q", b)
	}

	buf.Reset()
	if err := formatAndWriteOutput("x", outputOptions{JSON: true, Model: "m", Writer: &buf}); err != nil {
		t.Fatalf("json output: %v", err)
	}
	if !strings.Contains(buf.String(), `"content": "x"`) {
		t.Fatalf("unexpected json output: %s", buf.String())
	}
	if err := formatAndWriteOutput("x", outputOptions{OutputPath: path, OutputFormat: "pdf", Writer: &buf}); err == nil {
		t.Fatal("expected unsupported format error")
	}
}

func TestMask(t *testing.T) {
	if mask("") != "" || mask("abc") != "******" || mask("sk-1234567890") != "sk-****890" {
		t.Fatalf("unexpected masks: %q %q %q", mask(""), mask("abc"), mask("sk-1234567890"))
	}
}
