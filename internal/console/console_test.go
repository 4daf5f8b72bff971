package console

import (
	"errors"
	"testing"

	"github.com/gdamore/tcell/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kahosan/mosdash/internal/logview"
	"github.com/kahosan/mosdash/internal/model"
	"github.com/kahosan/mosdash/internal/shell"
)

func TestOutcomeText(t *testing.T) {
	assert.Equal(t, "[green]File updated successfully[-]",
		outcomeText(shell.Outcome{Op: shell.OpSave, OK: true, Message: "File updated successfully"}))
	assert.Equal(t, "", outcomeText(shell.Outcome{Op: shell.OpLogs, OK: true}))
	assert.Equal(t, "[red]restart failed: Failed to execute command: exit status 5[-]",
		outcomeText(shell.Outcome{Op: "restart", Err: errors.New("Failed to execute command: exit status 5")}))

	// Color tags in backend messages must not be interpreted.
	got := outcomeText(shell.Outcome{Op: shell.OpSave, Err: errors.New("bad [red] value")})
	assert.Contains(t, got, "bad [red[] value")
}

func TestEditorTitle(t *testing.T) {
	s := shell.NewState()
	assert.Equal(t, " editor ", editorTitle(s))

	s.SelectFile("config.yaml")
	s.ContentFetched(s.ContentGen, "a: 1\n")
	assert.Equal(t, " config/config.yaml ", editorTitle(s))

	s.EditContent("a: 2\n")
	assert.Equal(t, " config/config.yaml * ", editorTitle(s))

	s.SaveRequested()
	assert.Equal(t, " config/config.yaml (saving) ", editorTitle(s))
}

func TestTableCells(t *testing.T) {
	entries := []model.LogEntry{
		{Timestamp: "bad", Level: "WARN", Message: "skew"},
		{Timestamp: "2024-03-01T10:00:00.000Z", Level: "INFO", Message: "query", Fields: map[string]any{"qname": "a.example."}},
	}
	cells := tableCells(logview.Compute(entries, logview.NewView()))

	require.Len(t, cells, 3)
	assert.Equal(t, []string{"Time", "Level", "Message", "qname"}, cells[0])
	assert.Equal(t, []string{"INFO", "query", "a.example."}, cells[1][1:])
	assert.Equal(t, []string{logview.InvalidDate, "WARN", "skew", logview.Missing}, cells[2])
}

func TestPagerLine(t *testing.T) {
	assert.Equal(t, "[gray]no entries (4 received)[-]", pagerLine(logview.Table{Total: 4}))
	assert.Contains(t, pagerLine(logview.Table{Page: 2, TotalPages: 3, Filtered: 25, Total: 40}), "25/40 entries")
}

func TestSeverityColor(t *testing.T) {
	assert.Equal(t, tcell.ColorRed, severityColor(logview.SeverityOf("ERROR")))
	assert.Equal(t, tcell.ColorYellow, severityColor(logview.SeverityOf("WARN")))
	assert.Equal(t, tcell.ColorDodgerBlue, severityColor(logview.SeverityOf("TRACE")))
}

func TestSameBatch(t *testing.T) {
	a := []model.LogEntry{{Message: "x"}}
	b := []model.LogEntry{{Message: "x"}}
	assert.True(t, sameBatch(a, a))
	assert.False(t, sameBatch(a, b))
	assert.True(t, sameBatch(nil, []model.LogEntry{}))
}
