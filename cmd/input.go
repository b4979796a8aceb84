package cmd

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/KaramelBytes/agentcompare/internal/metrics"
	"github.com/KaramelBytes/agentcompare/internal/records"
	"github.com/KaramelBytes/agentcompare/internal/session"
	"github.com/spf13/cobra"
)

// inputFlags are shared by every command that reads the two exports.
type inputFlags struct {
	oldPath      string
	newPath      string
	agents       []string
	exclude      []string
	delimiter    string
	decimalComma bool
	sheet        string
	maxRows      int
	minMessages  float64
}

func (in *inputFlags) register(c *cobra.Command, withSelection bool) {
	f := c.Flags()
	f.StringVar(&in.oldPath, "old", "", "export of the earlier period (.csv, .tsv or .xlsx)")
	f.StringVar(&in.newPath, "new", "", "export of the later period (.csv, .tsv or .xlsx)")
	f.StringVar(&in.delimiter, "delimiter", "", "field delimiter (default: sniffed from the header)")
	f.BoolVar(&in.decimalComma, "decimal-comma", false, "parse 1,5 as 1.5 (overrides config decimal_comma)")
	f.StringVar(&in.sheet, "sheet", "", "sheet name for .xlsx input (default: first sheet)")
	f.IntVar(&in.maxRows, "max-rows", 0, "read at most this many data rows per file")
	if withSelection {
		f.StringArrayVar(&in.agents, "agents", nil, "only analyze this agent, exact name (repeatable)")
		f.StringArrayVar(&in.exclude, "exclude", nil, "deselect this agent, exact name (repeatable)")
		f.Float64Var(&in.minMessages, "min-messages", 0, "drop agents with fewer summed Messages Sent (overrides config min_messages_sent)")
	}
}

func (in *inputFlags) recordOptions(c *cobra.Command) (records.Options, error) {
	opt := records.DefaultOptions()
	opt.MaxRows = in.maxRows
	opt.Sheet = in.sheet
	opt.DecimalComma = cfg != nil && cfg.DecimalComma
	if c.Flags().Changed("decimal-comma") {
		opt.DecimalComma = in.decimalComma
	}
	if in.delimiter != "" {
		d := in.delimiter
		if d == `\t` || strings.EqualFold(d, "tab") {
			d = "\t"
		}
		r, size := utf8.DecodeRuneInString(d)
		if size != len(d) {
			return opt, fmt.Errorf("--delimiter must be a single character, got %q", in.delimiter)
		}
		opt.Delimiter = r
	}
	return opt, nil
}

func (in *inputFlags) metricsOptions(c *cobra.Command) metrics.Options {
	opt := metrics.DefaultOptions()
	if cfg != nil && cfg.MinMessagesSent != nil {
		opt.MinMessagesSent = *cfg.MinMessagesSent
	}
	if f := c.Flags().Lookup("min-messages"); f != nil && f.Changed {
		opt.MinMessagesSent = in.minMessages
	}
	return opt
}

func loadDataset(path string, opt records.Options) (*records.Dataset, error) {
	ds, err := records.LoadFile(path, opt)
	if err != nil {
		return nil, err
	}
	for _, w := range ds.Warnings {
		log.WithField("file", path).WithField("line", w.Line).Debug(w.Reason)
	}
	if n := len(ds.Warnings); n > 0 {
		log.WithField("file", path).WithField("rows", n).Warn("some rows were malformed and were padded, truncated or skipped")
	}
	log.WithField("file", path).WithField("rows", ds.Len()).Debug("loaded export")
	return ds, nil
}

// loadSession reads both exports and applies --agents/--exclude.
func (in *inputFlags) loadSession(c *cobra.Command) (session.State, error) {
	var st session.State
	if in.oldPath == "" && in.newPath == "" {
		return st, fmt.Errorf("at least one of --old or --new is required")
	}
	opt, err := in.recordOptions(c)
	if err != nil {
		return st, err
	}
	if in.oldPath != "" {
		ds, err := loadDataset(in.oldPath, opt)
		if err != nil {
			return st, fmt.Errorf("load --old: %w", err)
		}
		st = st.LoadOld(ds)
	}
	if in.newPath != "" {
		ds, err := loadDataset(in.newPath, opt)
		if err != nil {
			return st, fmt.Errorf("load --new: %w", err)
		}
		st = st.LoadNew(ds)
	}
	return in.applySelection(st), nil
}

func (in *inputFlags) applySelection(st session.State) session.State {
	known := make(map[string]bool, len(st.Agents))
	for _, n := range st.Agents {
		known[n] = true
	}
	warnUnknown := func(flag, name string) {
		if !known[name] {
			log.WithField("flag", flag).WithField("agent", name).Warn("agent not found in either export")
		}
	}
	if len(in.agents) > 0 {
		names := nonEmpty(in.agents)
		for _, n := range names {
			warnUnknown("agents", n)
		}
		st = st.Only(names...)
	}
	for _, n := range nonEmpty(in.exclude) {
		warnUnknown("exclude", n)
		if st.Selection.Has(n) {
			st = st.Toggle(n)
		}
	}
	return st
}

// nonEmpty drops empty values. Names are matched exactly, so nothing is trimmed.
func nonEmpty(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
