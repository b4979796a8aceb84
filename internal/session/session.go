// Package session holds the state of one comparison: the two loaded periods,
// the agent directory, the selection and the analysis lifecycle.
package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/KaramelBytes/agentcompare/internal/agents"
	"github.com/KaramelBytes/agentcompare/internal/insight"
	"github.com/KaramelBytes/agentcompare/internal/metrics"
	"github.com/KaramelBytes/agentcompare/internal/records"
)

// Phase is the analysis lifecycle stage.
type Phase int

const (
	Idle Phase = iota
	Loading
	Done
	Failed
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Done:
		return "done"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// ErrBusy is returned by Begin while a request is already in flight.
var ErrBusy = errors.New("an analysis is already running")

// State is an immutable snapshot. Transitions return a new State.
type State struct {
	Old       *records.Dataset
	New       *records.Dataset
	Agents    []string
	Selection agents.Selection
	Phase     Phase
	Analysis  string
	Err       error
}

func recordsOf(ds *records.Dataset) []records.Record {
	if ds == nil {
		return nil
	}
	return ds.Records
}

// LoadOld replaces the old period.
func (s State) LoadOld(ds *records.Dataset) State {
	s.Old = ds
	return s.refresh()
}

// LoadNew replaces the new period.
func (s State) LoadNew(ds *records.Dataset) State {
	s.New = ds
	return s.refresh()
}

// refresh rebuilds the directory and reconciles the selection. With both
// periods empty the directory is left as it was.
func (s State) refresh() State {
	oldRecs, newRecs := recordsOf(s.Old), recordsOf(s.New)
	if len(oldRecs) == 0 && len(newRecs) == 0 {
		return s
	}
	names := agents.Names(oldRecs, newRecs)
	s.Selection = agents.Reconcile(s.Agents, s.Selection, names)
	s.Agents = names
	return s
}

// Toggle flips one agent in the selection.
func (s State) Toggle(name string) State {
	s.Selection = s.Selection.Toggle(name)
	return s
}

// ToggleAll selects every agent, or none when all are already selected.
func (s State) ToggleAll() State {
	s.Selection = agents.ToggleAll(s.Agents, s.Selection)
	return s
}

// Only replaces the selection with names.
func (s State) Only(names ...string) State {
	s.Selection = agents.NewSelection(names...)
	return s
}

// Comparison aggregates both periods under the current selection.
func (s State) Comparison(opt metrics.Options) []metrics.Entry {
	oldAgg := metrics.Aggregate(recordsOf(s.Old), s.Selection, opt)
	newAgg := metrics.Aggregate(recordsOf(s.New), s.Selection, opt)
	return metrics.Assemble(oldAgg, newAgg)
}

// Begin moves to Loading. It refuses an empty selection and a request that is
// already running.
func (s State) Begin() (State, error) {
	if s.Phase == Loading {
		return s, ErrBusy
	}
	if s.Selection.IsEmpty() {
		return s, &insight.ValidationError{Reason: "select at least one agent for analysis"}
	}
	s.Phase = Loading
	s.Err = nil
	return s, nil
}

// Succeed stores the analysis text.
func (s State) Succeed(text string) State {
	s.Phase = Done
	s.Analysis = text
	s.Err = nil
	return s
}

// Fail records err. A previous analysis is kept.
func (s State) Fail(err error) State {
	s.Phase = Failed
	s.Err = err
	return s
}

// Analyzer is satisfied by *insight.Requester.
type Analyzer interface {
	Request(ctx context.Context, sel agents.Selection, entries []metrics.Entry) (*insight.Result, error)
}

// Run performs one analysis. The returned State is never Loading, whatever
// happens inside the analyzer.
func Run(ctx context.Context, st State, a Analyzer, opt metrics.Options) (out State, err error) {
	loading, err := st.Begin()
	if err != nil {
		return st, err
	}
	out = loading
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("analysis aborted: %v", p)
			out = loading.Fail(err)
		}
		if out.Phase == Loading {
			if err == nil {
				err = errors.New("analysis ended without a result")
			}
			out = loading.Fail(err)
		}
	}()

	res, err := a.Request(ctx, loading.Selection, loading.Comparison(opt))
	if err != nil {
		return loading.Fail(err), err
	}
	if res == nil {
		return out, nil
	}
	return loading.Succeed(res.Text), nil
}
