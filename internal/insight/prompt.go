// Package insight turns a period comparison into a prompt and asks a chat
// completion runtime for a written performance analysis.
package insight

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/KaramelBytes/agentcompare/internal/metrics"
	"github.com/KaramelBytes/agentcompare/internal/utils"
)

// Locale selects prompt wording and period labels.
type Locale string

const (
	LocaleNL Locale = "nl"
	LocaleEN Locale = "en"
)

// DefaultLocale reproduces the Dutch wording the reports were designed around.
const DefaultLocale = LocaleNL

type template struct {
	oldLabel string
	newLabel string
	intro    string
	outro    string
}

var templates = map[Locale]template{
	LocaleNL: {
		oldLabel: "Oude Data",
		newLabel: "Nieuwe Data",
		intro:    "Vergelijk de medewerker prestaties voor de volgende periodes:",
		outro:    "Identificeer prestatietrends, verbeteringen en gebieden die verbetering behoeven.",
	},
	LocaleEN: {
		oldLabel: "Old Data",
		newLabel: "New Data",
		intro:    "Compare the agent performance for the following periods:",
		outro:    "Identify performance trends, improvements and areas that need improvement.",
	},
}

// ParseLocale accepts "", "nl" and "en" in any case.
func ParseLocale(s string) (Locale, error) {
	switch l := Locale(strings.ToLower(strings.TrimSpace(s))); l {
	case "":
		return DefaultLocale, nil
	case LocaleNL, LocaleEN:
		return l, nil
	default:
		return "", fmt.Errorf("unsupported locale %q (want nl or en)", s)
	}
}

func templateFor(l Locale) template {
	if t, ok := templates[l]; ok {
		return t
	}
	return templates[DefaultLocale]
}

// ComparisonJSON encodes entries as an indented array of
// {"Name", <old label>, <new label>} objects. Absent periods are null.
func ComparisonJSON(entries []metrics.Entry, l Locale) ([]byte, error) {
	t := templateFor(l)
	oldKey, _ := utils.MarshalJSON(t.oldLabel)
	newKey, _ := utils.MarshalJSON(t.newLabel)

	var compact bytes.Buffer
	compact.WriteByte('[')
	for i, e := range entries {
		if i > 0 {
			compact.WriteByte(',')
		}
		name, err := utils.MarshalJSON(e.Name)
		if err != nil {
			return nil, err
		}
		oldVal, err := utils.MarshalJSON(e.Old)
		if err != nil {
			return nil, fmt.Errorf("marshal %s of %q: %w", t.oldLabel, e.Name, err)
		}
		newVal, err := utils.MarshalJSON(e.New)
		if err != nil {
			return nil, fmt.Errorf("marshal %s of %q: %w", t.newLabel, e.Name, err)
		}
		fmt.Fprintf(&compact, `{"Name":%s,%s:%s,%s:%s}`, name, oldKey, oldVal, newKey, newVal)
	}
	compact.WriteByte(']')

	var out bytes.Buffer
	if err := json.Indent(&out, compact.Bytes(), "", "  "); err != nil {
		return nil, fmt.Errorf("indent comparison: %w", err)
	}
	return out.Bytes(), nil
}

// BuildPrompt renders the comparison into the locale's prompt template.
func BuildPrompt(entries []metrics.Entry, l Locale) (string, error) {
	data, err := ComparisonJSON(entries, l)
	if err != nil {
		return "", err
	}
	t := templateFor(l)
	var b strings.Builder
	b.WriteString(t.intro)
	b.WriteByte('\n')
	b.Write(data)
	b.WriteByte('\n')
	b.WriteString(t.outro)
	return b.String(), nil
}
