// Package agents derives the agent directory from loaded datasets and holds
// the user's selection of agents.
package agents

import (
	"sort"

	"github.com/KaramelBytes/agentcompare/internal/records"
)

// NameColumn is the header that identifies an agent.
const NameColumn = "Name"

// NameOf returns the agent name of a record, or "" when absent.
func NameOf(r records.Record) string {
	return r.Get(NameColumn).Raw()
}

// Names returns the sorted union of agent names found in both datasets.
// Records without a name are skipped.
func Names(oldRecs, newRecs []records.Record) []string {
	seen := make(map[string]struct{})
	for _, set := range [][]records.Record{oldRecs, newRecs} {
		for _, r := range set {
			if n := NameOf(r); n != "" {
				seen[n] = struct{}{}
			}
		}
	}
	out := make([]string, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Selection is an immutable set of agent names. The zero value is empty.
type Selection struct {
	set map[string]struct{}
}

// NewSelection builds a selection containing names.
func NewSelection(names ...string) Selection {
	s := Selection{set: make(map[string]struct{}, len(names))}
	for _, n := range names {
		s.set[n] = struct{}{}
	}
	return s
}

func (s Selection) Has(name string) bool {
	_, ok := s.set[name]
	return ok
}

func (s Selection) Len() int { return len(s.set) }

func (s Selection) IsEmpty() bool { return len(s.set) == 0 }

// Names returns the selected names sorted.
func (s Selection) Names() []string {
	out := make([]string, 0, len(s.set))
	for n := range s.set {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func (s Selection) clone() Selection {
	c := Selection{set: make(map[string]struct{}, len(s.set)+1)}
	for n := range s.set {
		c.set[n] = struct{}{}
	}
	return c
}

// With returns a copy that also contains name.
func (s Selection) With(name string) Selection {
	c := s.clone()
	c.set[name] = struct{}{}
	return c
}

// Without returns a copy that does not contain name.
func (s Selection) Without(name string) Selection {
	c := s.clone()
	delete(c.set, name)
	return c
}

// Toggle flips membership of name.
func (s Selection) Toggle(name string) Selection {
	if s.Has(name) {
		return s.Without(name)
	}
	return s.With(name)
}

// ToggleAll deselects everything when every name is selected, and selects
// every name otherwise.
func ToggleAll(names []string, s Selection) Selection {
	if s.Len() == len(names) {
		return Selection{}
	}
	return NewSelection(names...)
}

// Reconcile carries a selection over to a new directory. Names that still
// exist keep their state, newly discovered names are selected, and names that
// disappeared are dropped.
func Reconcile(prevNames []string, prev Selection, names []string) Selection {
	known := make(map[string]struct{}, len(prevNames))
	for _, n := range prevNames {
		known[n] = struct{}{}
	}
	out := Selection{set: make(map[string]struct{}, len(names))}
	for _, n := range names {
		if _, wasKnown := known[n]; !wasKnown || prev.Has(n) {
			out.set[n] = struct{}{}
		}
	}
	return out
}
