package output

import (
	"bufio"
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kahosan/mosdash/internal/logview"
	"github.com/kahosan/mosdash/internal/model"
)

var entries = []model.LogEntry{
	{Timestamp: "2024-03-01T10:00:00.000Z", Level: "INFO", Message: "query forwarded", Fields: map[string]any{"qname": "example.com.", "uqid": float64(7)}},
	{Timestamp: "2024-03-01T10:00:01.000Z", Level: "ERROR", Message: "upstream timeout", Fields: map[string]any{"qname": "slow.example."}},
	{Timestamp: "bad", Level: "WARN", Message: "clock skew"},
}

func TestJSONRendererTable(t *testing.T) {
	var buf bytes.Buffer
	r := NewJSONRenderer(&buf)

	table := logview.Compute(entries, logview.NewView())
	require.NoError(t, r.RenderTable(table))

	var got []model.LogEntry
	sc := bufio.NewScanner(&buf)
	for sc.Scan() {
		var e model.LogEntry
		require.NoError(t, json.Unmarshal(sc.Bytes(), &e), "invalid JSON line: %s", sc.Text())
		got = append(got, e)
	}
	require.Len(t, got, 3)
	assert.Equal(t, "upstream timeout", got[0].Message)
	assert.Equal(t, "clock skew", got[2].Message)
}

func TestTextRendererTable(t *testing.T) {
	var buf bytes.Buffer
	r := NewTextRenderer(&buf)

	v := logview.NewView()
	v.SetSearch("example")
	require.NoError(t, r.RenderTable(logview.Compute(entries, v)))

	out := buf.String()
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], "QNAME")
	assert.Contains(t, lines[0], "UQID")
	assert.Contains(t, lines[1], "upstream timeout")
	assert.Contains(t, lines[1], "slow.example.")
	assert.Contains(t, lines[2], "example.com.")
	assert.Contains(t, lines[3], "page 1/1, 2 of 3 entries match")

	// Header and rows share column starts.
	assert.Equal(t, strings.Index(lines[0], "MESSAGE"), strings.Index(lines[1], "upstream timeout"))
}

func TestTextRendererEmpty(t *testing.T) {
	var buf bytes.Buffer
	r := NewTextRenderer(&buf)

	v := logview.NewView()
	v.SetSearch("nothing matches this")
	require.NoError(t, r.RenderTable(logview.Compute(entries, v)))
	assert.Equal(t, "no log entries (3 received)\n", buf.String())
}

func TestTextRendererEntry(t *testing.T) {
	var buf bytes.Buffer
	r := NewTextRenderer(&buf)

	require.NoError(t, r.Render(entries[0]))
	out := buf.String()
	assert.Contains(t, out, "INFO  query forwarded")
	assert.Contains(t, out, "qname=example.com.")
	assert.Contains(t, out, "uqid=7")
}

func TestNew(t *testing.T) {
	_, err := New("json", &bytes.Buffer{})
	assert.NoError(t, err)
	_, err = New("yaml", &bytes.Buffer{})
	assert.Error(t, err)
}
