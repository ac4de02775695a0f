package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
	"github.com/ngmaloney/aac-checker/internal/models"
)

const (
	propertyWidth = 24
	minValueWidth = 20
	maxTableRows  = 15
)

// createResultTable lays the matched zone's attributes out as
// Property/Value rows, in dataset order
func createResultTable(attrs models.Attributes, width int) table.Model {
	valueWidth := width - propertyWidth - 6
	if valueWidth < minValueWidth {
		valueWidth = minValueWidth
	}

	rows := make([]table.Row, 0, attrs.Len())
	for _, p := range attrs.Pairs() {
		rows = append(rows, table.Row{p.Key, singleLine(p.Value.String())})
	}

	// Height counts the header and its border
	height := min(max(len(rows), 1), maxTableRows) + 2

	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "Propriété", Width: propertyWidth},
			{Title: "Valeur", Width: valueWidth},
		}),
		table.WithRows(rows),
		table.WithHeight(height),
		table.WithFocused(true),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(colorBorder).
		BorderBottom(true).
		Foreground(colorPrimary).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("#FFFFFF")).
		Background(colorHighlight).
		Bold(false)
	t.SetStyles(s)

	return t
}

func singleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
