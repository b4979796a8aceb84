// Package metrics reduces per-row support metrics into per-agent bundles and
// pairs the bundles of two periods for comparison.
package metrics

import (
	"bytes"
	"fmt"

	"github.com/KaramelBytes/agentcompare/internal/agents"
	"github.com/KaramelBytes/agentcompare/internal/records"
	"github.com/KaramelBytes/agentcompare/internal/utils"
)

// DefaultMinMessagesSent is the activity threshold below which an agent is
// dropped from a period.
const DefaultMinMessagesSent = 10

// Options controls aggregation.
type Options struct {
	// MinMessagesSent drops agents whose summed Messages Sent is lower.
	MinMessagesSent float64
}

// DefaultOptions returns the standard aggregation settings.
func DefaultOptions() Options {
	return Options{MinMessagesSent: DefaultMinMessagesSent}
}

// PeriodAggregate holds one bundle per agent, in first-seen order.
type PeriodAggregate struct {
	names   []string
	bundles map[string]Bundle
}

// Len returns the number of agents.
func (a *PeriodAggregate) Len() int {
	if a == nil {
		return 0
	}
	return len(a.names)
}

// Names returns agent names in first-seen order.
func (a *PeriodAggregate) Names() []string {
	if a == nil {
		return nil
	}
	return append([]string(nil), a.names...)
}

// Get returns a copy of the bundle for name.
func (a *PeriodAggregate) Get(name string) (*Bundle, bool) {
	if a == nil {
		return nil, false
	}
	b, ok := a.bundles[name]
	if !ok {
		return nil, false
	}
	return &b, true
}

// MarshalJSON encodes the aggregate as an object keyed by agent name, keeping
// first-seen order.
func (a *PeriodAggregate) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range a.Names() {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := utils.MarshalJSON(name)
		if err != nil {
			return nil, err
		}
		v, err := a.bundles[name].MarshalJSON()
		if err != nil {
			return nil, fmt.Errorf("marshal bundle %q: %w", name, err)
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

type accumulator struct {
	bundle    Bundle
	customers map[string]struct{}
	samples   [][]float64 // indexed like meanFields
}

func newAccumulator() *accumulator {
	return &accumulator{
		customers: make(map[string]struct{}),
		samples:   make([][]float64, len(meanFields)),
	}
}

func (acc *accumulator) add(r records.Record) {
	for _, f := range sumFields {
		if v, ok := r.Get(f.col).Float(); ok {
			*f.ptr(&acc.bundle) += v
		}
	}
	// Every row contributes its raw value, absent included.
	acc.customers[r.Get(ColUniqueCustomersMessaged).Key()] = struct{}{}
	for i, f := range meanFields {
		if v, ok := r.Get(f.col).Float(); ok {
			acc.samples[i] = append(acc.samples[i], v)
		}
	}
}

func (acc *accumulator) finalize() Bundle {
	b := acc.bundle
	for i, f := range meanFields {
		*f.ptr(&b) = mean(acc.samples[i])
	}
	b.UniqueCustomersMessaged = len(acc.customers)
	return b
}

// mean returns the arithmetic mean, or 0 for no samples.
func mean(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	var sum float64
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

// Aggregate reduces records to one bundle per selected agent. Agents below
// opt.MinMessagesSent are dropped.
func Aggregate(recs []records.Record, sel agents.Selection, opt Options) *PeriodAggregate {
	var order []string
	accs := make(map[string]*accumulator)
	for _, r := range recs {
		name := agents.NameOf(r)
		if name == "" || !sel.Has(name) {
			continue
		}
		acc, ok := accs[name]
		if !ok {
			acc = newAccumulator()
			accs[name] = acc
			order = append(order, name)
		}
		acc.add(r)
	}

	out := &PeriodAggregate{bundles: make(map[string]Bundle, len(order))}
	for _, name := range order {
		b := accs[name].finalize()
		if b.MessagesSent < opt.MinMessagesSent {
			continue
		}
		out.names = append(out.names, name)
		out.bundles[name] = b
	}
	return out
}
