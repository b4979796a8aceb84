package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/KaramelBytes/agentcompare/internal/ai"
	cfgpkg "github.com/KaramelBytes/agentcompare/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const oldCSV = `Name,Messages Sent,Unique Customers Messaged,First Contact Resolution Rate
Alice,6,3,0.5
Alice,6,4,0.7
Bob,4,2,0.9
Carol,20,9,
`

const newCSV = `Name,Messages Sent,Unique Customers Messaged,First Contact Resolution Rate
Alice,15,5,0.8
Bob,12,6,0.95
Dave,30,11,0.6
`

// resetFlags puts every flag of c and its children back to its default so
// package-level flag variables do not leak between Execute calls.
func resetFlags(c *cobra.Command) {
	reset := func(fl *pflag.Flag) {
		if sv, ok := fl.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = fl.Value.Set(fl.DefValue)
		}
		fl.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func runCmd(t *testing.T, args ...string) error {
	t.Helper()
	resetFlags(rootCmd)
	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}

func writeExports(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	oldPath := filepath.Join(dir, "old.csv")
	newPath := filepath.Join(dir, "new.csv")
	if err := os.WriteFile(oldPath, []byte(oldCSV), 0o644); err != nil {
		t.Fatalf("write old: %v", err)
	}
	if err := os.WriteFile(newPath, []byte(newCSV), 0o644); err != nil {
		t.Fatalf("write new: %v", err)
	}
	return oldPath, newPath
}

// countingRuntime answers every request with a fixed analysis.
type countingRuntime struct {
	calls int32
	last  ai.GenerateRequest
	err   error
}

func (r *countingRuntime) Generate(_ context.Context, req ai.GenerateRequest) (*ai.GenerateResponse, error) {
	atomic.AddInt32(&r.calls, 1)
	r.last = req
	if r.err != nil {
		return nil, r.err
	}
	return &ai.GenerateResponse{
		Choices:   []ai.Choice{{Message: ai.Message{Role: "assistant", Content: "## Prestatietrends\n\nAlice verbeterde."}}},
		RequestID: "req_stub",
	}, nil
}

func stubRuntime(t *testing.T, rt ai.Runtime) {
	t.Helper()
	prev := runtimeFactory
	runtimeFactory = func(*cfgpkg.Global, runtimeOptions) (ai.Runtime, string, error) {
		return rt, ai.ProviderOpenAI, nil
	}
	t.Cleanup(func() { runtimeFactory = prev })
}

func TestCLI_AggregateWritesComparison(t *testing.T) {
	oldPath, newPath := writeExports(t)
	out := filepath.Join(t.TempDir(), "cmp.json")
	if err := runCmd(t, "aggregate", "--old", oldPath, "--new", newPath, "--output", out); err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	b, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	var got []map[string]json.RawMessage
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("decode: %v\n%s", err, b)
	}
	var names []string
	for _, e := range got {
		var n string
		_ = json.Unmarshal(e["Name"], &n)
		names = append(names, n)
	}
	// Bob (4) is below threshold in the old period, Carol only exists there
	if strings.Join(names, ",") != "Alice,Carol,Bob,Dave" {
		t.Fatalf("unexpected entry order: %v", names)
	}
	if string(got[2]["Oude Data"]) != "null" || string(got[1]["Nieuwe Data"]) != "null" {
		t.Fatalf("expected null periods:\n%s", b)
	}
}

func TestCLI_AggregateRespectsSelection(t *testing.T) {
	oldPath, newPath := writeExports(t)
	out := filepath.Join(t.TempDir(), "cmp.json")
	if err := runCmd(t, "aggregate", "--old", oldPath, "--new", newPath, "--agents", "Alice", "--agents", "Dave", "--exclude", "Dave", "--locale", "en", "--output", out); err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	b, _ := os.ReadFile(out)
	s := string(b)
	if !strings.Contains(s, `"Alice"`) || strings.Contains(s, `"Dave"`) || strings.Contains(s, `"Bob"`) {
		t.Fatalf("selection not applied:\n%s", s)
	}
	if !strings.Contains(s, `"Old Data"`) {
		t.Fatalf("expected english labels:\n%s", s)
	}
}

func TestCLI_CompareWithStubRuntime(t *testing.T) {
	rt := &countingRuntime{}
	stubRuntime(t, rt)
	oldPath, newPath := writeExports(t)
	out := filepath.Join(t.TempDir(), "analysis.json")

	if err := runCmd(t, "compare", "--old", oldPath, "--new", newPath, "--quiet", "--output", out, "--format", "json"); err != nil {
		t.Fatalf("compare: %v", err)
	}
	if rt.calls != 1 {
		t.Fatalf("expected one request, got %d", rt.calls)
	}
	if rt.last.Model != "gpt-4o-mini" || rt.last.MaxTokens != 2000 || rt.last.RequestID == "" {
		t.Fatalf("unexpected request: %+v", rt.last)
	}
	if !strings.HasPrefix(rt.last.Messages[0].Content, "Vergelijk de medewerker prestaties") {
		t.Fatalf("expected Dutch prompt, got %q", rt.last.Messages[0].Content)
	}

	b, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	var env map[string]any
	if err := json.Unmarshal(b, &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env["request_id"] != "req_stub" || !strings.Contains(env["content"].(string), "Alice verbeterde") {
		t.Fatalf("unexpected envelope: %v", env)
	}
}

func TestCLI_CompareDryRunMakesNoCall(t *testing.T) {
	rt := &countingRuntime{}
	stubRuntime(t, rt)
	oldPath, newPath := writeExports(t)
	if err := runCmd(t, "compare", "--old", oldPath, "--new", newPath, "--dry-run", "--quiet"); err != nil {
		t.Fatalf("compare --dry-run: %v", err)
	}
	if rt.calls != 0 {
		t.Fatalf("dry-run must not call the runtime, got %d", rt.calls)
	}
}

func TestCLI_CompareEmptySelectionFails(t *testing.T) {
	rt := &countingRuntime{}
	stubRuntime(t, rt)
	oldPath, newPath := writeExports(t)
	err := runCmd(t, "compare", "--old", oldPath, "--new", newPath, "--quiet",
		"--exclude", "Alice", "--exclude", "Bob", "--exclude", "Carol", "--exclude", "Dave")
	if err == nil || !strings.Contains(err.Error(), "select at least one agent") {
		t.Fatalf("expected selection error, got %v", err)
	}
	if rt.calls != 0 {
		t.Fatalf("expected zero runtime calls, got %d", rt.calls)
	}
}

func TestCLI_CompareMapsRuntimeErrors(t *testing.T) {
	rt := &countingRuntime{err: &ai.AuthError{APIError: &ai.APIError{StatusCode: 401}}}
	stubRuntime(t, rt)
	oldPath, newPath := writeExports(t)
	err := runCmd(t, "compare", "--old", oldPath, "--new", newPath, "--quiet")
	var ae *ai.AuthError
	if !errors.As(err, &ae) || !strings.Contains(err.Error(), "OPENAI_API_KEY") {
		t.Fatalf("expected auth hint, got %v", err)
	}
}

func TestCLI_RequiresAnInput(t *testing.T) {
	if err := runCmd(t, "agents"); err == nil {
		t.Fatal("expected error without --old/--new")
	}
}

func TestCLI_CompareDryRunRefusesEmptySelection(t *testing.T) {
	rt := &countingRuntime{}
	stubRuntime(t, rt)
	oldPath, newPath := writeExports(t)
	err := runCmd(t, "compare", "--old", oldPath, "--new", newPath, "--dry-run", "--quiet",
		"--exclude", "Alice", "--exclude", "Bob", "--exclude", "Carol", "--exclude", "Dave")
	if err == nil || !strings.Contains(err.Error(), "select at least one agent") {
		t.Fatalf("expected selection error in dry-run, got %v", err)
	}
	if rt.calls != 0 {
		t.Fatalf("expected zero runtime calls, got %d", rt.calls)
	}
}

func TestCLI_AgentNamesMatchExactly(t *testing.T) {
	dir := t.TempDir()
	oldPath := filepath.Join(dir, "old.csv")
	body := "Name,Messages Sent\n\"Doe, John\",12\n\" Alice\",15\nAlice,20\n"
	if err := os.WriteFile(oldPath, []byte(body), 0o644); err != nil {
		t.Fatalf("write old: %v", err)
	}
	out := filepath.Join(dir, "cmp.json")
	if err := runCmd(t, "aggregate", "--old", oldPath, "--agents", "Doe, John", "--agents", " Alice", "--output", out); err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	b, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	var got []struct {
		Name string `json:"Name"`
	}
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("decode: %v\n%s", err, b)
	}
	if len(got) != 2 || got[0].Name != "Doe, John" || got[1].Name != " Alice" {
		t.Fatalf("expected the two exact names, got %+v", got)
	}
}

func TestMetricsOptionsHonorsZeroThreshold(t *testing.T) {
	prev := cfg
	t.Cleanup(func() { cfg = prev })
	resetFlags(rootCmd)

	zero := 0.0
	cfg = &cfgpkg.Global{MinMessagesSent: &zero}
	if got := aggInput.metricsOptions(aggregateCmd).MinMessagesSent; got != 0 {
		t.Fatalf("config 0 should disable the threshold, got %v", got)
	}
	cfg = &cfgpkg.Global{}
	if got := aggInput.metricsOptions(aggregateCmd).MinMessagesSent; got != 10 {
		t.Fatalf("unset threshold should default to 10, got %v", got)
	}
}
