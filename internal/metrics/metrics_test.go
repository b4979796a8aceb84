package metrics_test

import (
	"encoding/json"
	"math"
	"strings"
	"testing"

	"github.com/KaramelBytes/agentcompare/internal/agents"
	"github.com/KaramelBytes/agentcompare/internal/metrics"
	"github.com/KaramelBytes/agentcompare/internal/records"
	"github.com/google/go-cmp/cmp"
)

// row builds a record from column/value pairs; float64 values become numbers,
// strings are coerced like parsed cells.
func row(name string, kv ...any) records.Record {
	r := records.Record{agents.NameColumn: records.String(name)}
	for i := 0; i+1 < len(kv); i += 2 {
		col := kv[i].(string)
		switch v := kv[i+1].(type) {
		case float64:
			r[col] = records.Number(v, "")
		case int:
			r[col] = records.Number(float64(v), "")
		case string:
			r[col] = records.Coerce(v, false)
		}
	}
	return r
}

func TestAggregateThresholdScenarios(t *testing.T) {
	sel := agents.NewSelection("A")
	pass := []records.Record{
		row("A", metrics.ColMessagesSent, 5),
		row("A", metrics.ColMessagesSent, 6),
	}
	agg := metrics.Aggregate(pass, sel, metrics.DefaultOptions())
	b, ok := agg.Get("A")
	if !ok {
		t.Fatal("expected A to pass the threshold")
	}
	if b.MessagesSent != 11 {
		t.Fatalf("expected 11 messages, got %v", b.MessagesSent)
	}

	fail := []records.Record{
		row("A", metrics.ColMessagesSent, 5),
		row("A", metrics.ColMessagesSent, 4),
	}
	agg = metrics.Aggregate(fail, sel, metrics.DefaultOptions())
	if _, ok := agg.Get("A"); ok {
		t.Fatal("expected A to be dropped at 9 messages")
	}
	if agg.Len() != 0 {
		t.Fatalf("expected empty aggregate, got %v", agg.Names())
	}
}

func TestAggregateNeverKeepsAgentsBelowThreshold(t *testing.T) {
	recs := []records.Record{
		row("A", metrics.ColMessagesSent, 9.99),
		row("B", metrics.ColMessagesSent, 10),
		row("C", metrics.ColMessagesSent, "lots"),
		row("C", metrics.ColMessagesSent, 20),
		row("D"),
	}
	agg := metrics.Aggregate(recs, agents.NewSelection("A", "B", "C", "D"), metrics.DefaultOptions())
	for _, n := range agg.Names() {
		b, _ := agg.Get(n)
		if b.MessagesSent < metrics.DefaultMinMessagesSent {
			t.Fatalf("agent %s kept with %v messages", n, b.MessagesSent)
		}
	}
	if diff := cmp.Diff([]string{"B", "C"}, agg.Names()); diff != "" {
		t.Fatalf("names mismatch (-want +got):\n%s", diff)
	}
}

func TestAggregateMeansSkipMissingValues(t *testing.T) {
	recs := []records.Record{
		row("A", metrics.ColMessagesSent, 10, metrics.ColFirstContactResolutionRate, 0.5),
		row("A", metrics.ColMessagesSent, 1),
		row("A", metrics.ColFirstContactResolutionRate, 1.0),
		row("A", metrics.ColFirstContactResolutionRate, "n/a"),
	}
	agg := metrics.Aggregate(recs, agents.NewSelection("A"), metrics.DefaultOptions())
	b, ok := agg.Get("A")
	if !ok {
		t.Fatal("expected A")
	}
	if b.FirstContactResolutionRate != 0.75 {
		t.Fatalf("expected mean 0.75 over two present values, got %v", b.FirstContactResolutionRate)
	}
	if b.AvgFirstResponseTime != 0 {
		t.Fatalf("mean with no samples should be 0, got %v", b.AvgFirstResponseTime)
	}
	if _, ok := agg.Get("never-seen"); ok {
		t.Fatal("unseen agent must be absent, not zero")
	}
}

func TestAggregateUniqueCustomers(t *testing.T) {
	recs := []records.Record{
		row("A", metrics.ColMessagesSent, 10, metrics.ColUniqueCustomersMessaged, 3),
		row("A", metrics.ColUniqueCustomersMessaged, "3.0"),
		row("A", metrics.ColUniqueCustomersMessaged, 4),
		row("A", metrics.ColUniqueCustomersMessaged, "x"),
		row("A"),
		row("A"),
	}
	agg := metrics.Aggregate(recs, agents.NewSelection("A"), metrics.DefaultOptions())
	b, _ := agg.Get("A")
	// 3, 4, "x" and absent
	if b.UniqueCustomersMessaged != 4 {
		t.Fatalf("expected 4 distinct values, got %d", b.UniqueCustomersMessaged)
	}
}

func TestAggregateSelectionFilters(t *testing.T) {
	recs := []records.Record{
		row("A", metrics.ColMessagesSent, 50),
		row("B", metrics.ColMessagesSent, 50),
	}
	agg := metrics.Aggregate(recs, agents.NewSelection("B"), metrics.DefaultOptions())
	if _, ok := agg.Get("A"); ok {
		t.Fatal("deselected agent must not appear")
	}
	if agg.Len() != 1 {
		t.Fatalf("expected only B, got %v", agg.Names())
	}
	if got := metrics.Aggregate(recs, agents.Selection{}, metrics.DefaultOptions()); got.Len() != 0 {
		t.Fatalf("empty selection should aggregate nothing, got %v", got.Names())
	}
}

func TestAggregateIsIdempotent(t *testing.T) {
	recs := []records.Record{
		row("B", metrics.ColMessagesSent, 12, metrics.ColAvgFirstResponseTime, 1200),
		row("A", metrics.ColMessagesSent, 30, metrics.ColTotalTimeLoggedIn, 3600000),
		row("B", metrics.ColMessagesSent, 1, metrics.ColAvgFirstResponseTime, 800),
	}
	sel := agents.NewSelection("A", "B")
	first := metrics.Aggregate(recs, sel, metrics.DefaultOptions())
	second := metrics.Aggregate(recs, sel, metrics.DefaultOptions())
	a, _ := json.Marshal(first)
	b, _ := json.Marshal(second)
	if string(a) != string(b) {
		t.Fatalf("aggregate not deterministic:\n%s\n%s", a, b)
	}
	if diff := cmp.Diff([]string{"B", "A"}, first.Names()); diff != "" {
		t.Fatalf("expected first-seen order (-want +got):\n%s", diff)
	}
}

func TestAggregateCustomThreshold(t *testing.T) {
	recs := []records.Record{row("A", metrics.ColMessagesSent, 2)}
	agg := metrics.Aggregate(recs, agents.NewSelection("A"), metrics.Options{MinMessagesSent: 0})
	if agg.Len() != 1 {
		t.Fatal("threshold 0 should keep every agent")
	}
}

func TestBundleJSONKeepsColumnNames(t *testing.T) {
	b, err := json.Marshal(metrics.Bundle{MessagesSent: 11, UniqueCustomersMessaged: 2})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	s := string(b)
	if !strings.HasPrefix(s, `{"Messages Sent":11,"Unique Conversations Messaged":0`) {
		t.Fatalf("unexpected field order: %s", s)
	}
	if !strings.Contains(s, `"Avg Conversation Handle Time (s)":0`) || !strings.Contains(s, `"Unique Customers Messaged":2`) {
		t.Fatalf("missing column keys: %s", s)
	}
	if n := len(metrics.SumColumns()) + len(metrics.MeanColumns()); n != 15 {
		t.Fatalf("expected 15 reduced columns besides unique customers, got %d", n)
	}
}

func TestAggregateOverflowEncodesAsNull(t *testing.T) {
	recs := []records.Record{
		row("A", metrics.ColMessagesSent, 10, metrics.ColTotalTimeLoggedIn, 1e308),
		row("A", metrics.ColTotalTimeLoggedIn, 1e308),
	}
	agg := metrics.Aggregate(recs, agents.NewSelection("A"), metrics.DefaultOptions())
	b, _ := agg.Get("A")
	if !math.IsInf(b.TotalTimeLoggedIn, 1) {
		t.Fatalf("expected +Inf sum, got %v", b.TotalTimeLoggedIn)
	}
	out, err := json.Marshal(agg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(out), `"Total Time Logged In (ms)":null`) || !strings.Contains(string(out), `"Messages Sent":10`) {
		t.Fatalf("unexpected encoding: %s", out)
	}
}

func TestAssembleUnion(t *testing.T) {
	old := metrics.Aggregate([]records.Record{row("A", metrics.ColMessagesSent, 10)}, agents.NewSelection("A", "B"), metrics.DefaultOptions())
	cur := metrics.Aggregate([]records.Record{row("B", metrics.ColMessagesSent, 10)}, agents.NewSelection("A", "B"), metrics.DefaultOptions())

	entries := metrics.Assemble(old, cur)
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Name != "A" || entries[0].Old == nil || entries[0].New != nil {
		t.Fatalf("unexpected A entry: %+v", entries[0])
	}
	if entries[1].Name != "B" || entries[1].Old != nil || entries[1].New == nil {
		t.Fatalf("unexpected B entry: %+v", entries[1])
	}
}

func TestAssembleOrderAndNil(t *testing.T) {
	sel := agents.NewSelection("A", "B", "C")
	old := metrics.Aggregate([]records.Record{
		row("C", metrics.ColMessagesSent, 10),
		row("A", metrics.ColMessagesSent, 10),
	}, sel, metrics.DefaultOptions())
	cur := metrics.Aggregate([]records.Record{
		row("B", metrics.ColMessagesSent, 10),
		row("A", metrics.ColMessagesSent, 20),
	}, sel, metrics.DefaultOptions())

	var names []string
	for _, e := range metrics.Assemble(old, cur) {
		names = append(names, e.Name)
	}
	if diff := cmp.Diff([]string{"C", "A", "B"}, names); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}
	if got := metrics.Assemble(nil, nil); len(got) != 0 {
		t.Fatalf("expected no entries for nil aggregates, got %v", got)
	}
}
