package ui

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	lipgloss.SetColorProfile(termenv.Ascii)
}

func TestTableRender(t *testing.T) {
	table := NewTable(
		TableColumn{Header: "ID"},
		TableColumn{Header: "Size", Align: AlignRight},
	)
	table.AddRow("abc", "10")
	table.AddRow("a", "2048")

	lines := strings.Split(strings.TrimRight(table.Render(), "\n"), "\n")
	require.Len(t, lines, 4)

	assert.Equal(t, "ID   Size", lines[0])
	assert.Equal(t, "───  ────", lines[1])
	assert.Equal(t, "abc    10", lines[2])
	assert.Equal(t, "a    2048", lines[3])
}

func TestTableRowCellsNormalised(t *testing.T) {
	table := NewTable(TableColumn{Header: "A"}, TableColumn{Header: "B"})
	table.AddRow("1")
	table.AddRow("1", "2", "3")

	assert.Equal(t, []string{"1", ""}, table.Rows[0])
	assert.Equal(t, []string{"1", "2"}, table.Rows[1])
}

func TestTableMinimumWidth(t *testing.T) {
	table := NewTable(TableColumn{Header: "ID", Width: 6}, TableColumn{Header: "X"})
	table.AddRow("a", "b")

	lines := strings.Split(table.Render(), "\n")
	assert.Equal(t, "ID      X", lines[0])
}

func TestTableEmpty(t *testing.T) {
	assert.Empty(t, NewTable().Render())
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "…IMG_4034.JPG", truncate("/volume1/photo/Photos/IMG_4034.JPG", 13))
	assert.Equal(t, "unlimited", truncate("unlimited", 0))
}
