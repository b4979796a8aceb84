// Package render formats analysis text and comparisons for a terminal.
package render

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/KaramelBytes/agentcompare/internal/metrics"
)

// Options controls markdown rendering. Style is a glamour standard style name
// ("dark", "light", "notty", ...) or "auto".
type Options struct {
	Style string
	Width int
}

// Markdown renders md for the terminal.
func Markdown(md string, opt Options) (string, error) {
	width := opt.Width
	if width <= 0 {
		width = 80
	}
	style := glamour.WithAutoStyle()
	if s := strings.TrimSpace(opt.Style); s != "" && s != "auto" {
		style = glamour.WithStandardStyle(s)
	}
	r, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(width))
	if err != nil {
		return "", fmt.Errorf("init renderer: %w", err)
	}
	out, err := r.Render(md)
	if err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return out, nil
}

type column struct {
	title string
	get   func(*metrics.Bundle) float64
}

var summaryColumns = []column{
	{metrics.ColMessagesSent, func(b *metrics.Bundle) float64 { return b.MessagesSent }},
	{metrics.ColUniqueCustomersMessaged, func(b *metrics.Bundle) float64 { return float64(b.UniqueCustomersMessaged) }},
	{metrics.ColFirstContactResolutionRate, func(b *metrics.Bundle) float64 { return b.FirstContactResolutionRate }},
	{metrics.ColAvgFirstResponseTime, func(b *metrics.Bundle) float64 { return b.AvgFirstResponseTime }},
	{metrics.ColTotalTimeLoggedIn, func(b *metrics.Bundle) float64 { return b.TotalTimeLoggedIn }},
}

// Table renders a compact old/new summary of entries, one row per agent.
func Table(entries []metrics.Entry) string {
	headers := []string{"Name"}
	for _, c := range summaryColumns {
		headers = append(headers, c.title)
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...)
	for _, e := range entries {
		row := []string{e.Name}
		for _, c := range summaryColumns {
			row = append(row, cell(e.Old, c)+" → "+cell(e.New, c))
		}
		t = t.Row(row...)
	}
	return t.String()
}

func cell(b *metrics.Bundle, c column) string {
	if b == nil {
		return "-"
	}
	return formatNumber(c.get(b))
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64)
}
