package metrics

// Entry pairs an agent's bundles across two periods. A nil bundle means the
// agent is absent from that period's aggregate.
type Entry struct {
	Name string  `json:"name"`
	Old  *Bundle `json:"old"`
	New  *Bundle `json:"new"`
}

// Assemble merges two aggregates by agent name. Names from oldAgg come first in
// their order, followed by names that only exist in newAgg.
func Assemble(oldAgg, newAgg *PeriodAggregate) []Entry {
	var out []Entry
	seen := make(map[string]struct{})
	for _, agg := range []*PeriodAggregate{oldAgg, newAgg} {
		for _, name := range agg.Names() {
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}
			e := Entry{Name: name}
			e.Old, _ = oldAgg.Get(name)
			e.New, _ = newAgg.Get(name)
			out = append(out, e)
		}
	}
	return out
}
