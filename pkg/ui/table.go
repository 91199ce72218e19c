package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Align positions a cell's text within its column.
type Align int

const (
	AlignLeft Align = iota
	AlignRight
)

// TableColumn is a column header with an optional minimum width.
type TableColumn struct {
	Header string
	Width  int
	Align  Align
	// MaxWidth truncates longer cells with an ellipsis. Zero means no limit.
	MaxWidth int
}

// Table is a plain text table with a styled header.
type Table struct {
	Columns []TableColumn
	Rows    [][]string
}

// NewTable creates a new table with specified columns
func NewTable(columns ...TableColumn) *Table {
	return &Table{Columns: columns}
}

// AddRow adds a row. Missing cells render empty and extra cells are dropped.
func (t *Table) AddRow(cells ...string) {
	row := make([]string, len(t.Columns))
	for i := range row {
		if i < len(cells) {
			row[i] = truncate(cells[i], t.Columns[i].MaxWidth)
		}
	}
	t.Rows = append(t.Rows, row)
}

// Render renders the table as a string
func (t *Table) Render() string {
	if len(t.Columns) == 0 {
		return ""
	}

	widths := make([]int, len(t.Columns))
	for i, col := range t.Columns {
		widths[i] = max(col.Width, lipgloss.Width(col.Header))
	}
	for _, row := range t.Rows {
		for i, cell := range row {
			widths[i] = max(widths[i], lipgloss.Width(cell))
		}
	}

	var b strings.Builder

	header := make([]string, len(t.Columns))
	separator := make([]string, len(t.Columns))
	for i, col := range t.Columns {
		header[i] = pad(col.Header, widths[i], col.Align)
		separator[i] = strings.Repeat("─", widths[i])
	}
	b.WriteString(StyleTableHeader.Render(strings.Join(header, "  ")))
	b.WriteString("\n")
	b.WriteString(StyleTableBorder.Render(strings.Join(separator, "  ")))
	b.WriteString("\n")

	for idx, row := range t.Rows {
		parts := make([]string, len(row))
		for i, cell := range row {
			parts[i] = pad(cell, widths[i], t.Columns[i].Align)
		}

		line := strings.TrimRight(strings.Join(parts, "  "), " ")
		if idx%2 == 1 {
			line = StyleTableRowAlt.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	return b.String()
}

func pad(s string, width int, align Align) string {
	padding := width - lipgloss.Width(s)
	if padding <= 0 {
		return s
	}

	if align == AlignRight {
		return strings.Repeat(" ", padding) + s
	}
	return s + strings.Repeat(" ", padding)
}

// truncate shortens s to at most limit runes, keeping the end, which holds the filename.
func truncate(s string, limit int) string {
	runes := []rune(s)
	if limit <= 1 || len(runes) <= limit {
		return s
	}
	return "…" + string(runes[len(runes)-limit+1:])
}
