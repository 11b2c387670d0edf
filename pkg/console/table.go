package console

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/preflightci/preflight/pkg/styles"
)

// TableConfig describes a table to render to the console.
type TableConfig struct {
	Title   string
	Headers []string
	Rows    [][]string
}

var (
	tableHeaderStyle = lipgloss.NewStyle().Bold(true)
	tableTitleStyle  = lipgloss.NewStyle().Bold(true).Foreground(styles.ColorInfo)
)

// RenderTable renders the table with padded columns and a header rule.
// Returns an empty string when there are no headers.
func RenderTable(config TableConfig) string {
	if len(config.Headers) == 0 {
		return ""
	}

	widths := make([]int, len(config.Headers))
	for i, h := range config.Headers {
		widths[i] = len(h)
	}
	for _, row := range config.Rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	var b strings.Builder
	if config.Title != "" {
		title := config.Title
		if colorEnabled {
			title = tableTitleStyle.Render(title)
		}
		b.WriteString(title + "\n\n")
	}

	header := formatRow(config.Headers, widths)
	if colorEnabled {
		header = tableHeaderStyle.Render(header)
	}
	b.WriteString(header + "\n")

	rule := make([]string, len(config.Headers))
	for i, w := range widths {
		rule[i] = strings.Repeat("-", w)
	}
	b.WriteString(formatRow(rule, widths) + "\n")

	for _, row := range config.Rows {
		b.WriteString(formatRow(row, widths) + "\n")
	}
	return b.String()
}

func formatRow(cells []string, widths []int) string {
	padded := make([]string, len(widths))
	for i := range widths {
		cell := ""
		if i < len(cells) {
			cell = cells[i]
		}
		padded[i] = fmt.Sprintf("%-*s", widths[i], cell)
	}
	return strings.TrimRight(strings.Join(padded, "  "), " ")
}
