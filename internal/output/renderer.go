// Package output prints log tables and streamed entries for the CLI.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/kahosan/mosdash/internal/logview"
	"github.com/kahosan/mosdash/internal/model"
)

// Renderer writes log tables and single entries to an output stream.
type Renderer interface {
	RenderTable(t logview.Table) error
	Render(entry model.LogEntry) error
}

// New returns the renderer for format ("text" or "json").
func New(format string, w io.Writer) (Renderer, error) {
	switch format {
	case "", "text":
		return NewTextRenderer(w), nil
	case "json":
		return NewJSONRenderer(w), nil
	default:
		return nil, fmt.Errorf("unknown output format %q (want text or json)", format)
	}
}

// ---------------------------------------------------------------------------
// Text Renderer (colorized terminal output)
// ---------------------------------------------------------------------------

type styles struct {
	plain  lipgloss.Style
	header lipgloss.Style
	muted  lipgloss.Style
	levels map[logview.Severity]lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		plain:  r.NewStyle(),
		header: r.NewStyle().Bold(true).Underline(true),
		muted:  r.NewStyle().Foreground(lipgloss.Color("245")).Faint(true),
		levels: map[logview.Severity]lipgloss.Style{
			logview.SeverityInfo:  r.NewStyle().Foreground(lipgloss.Color("39")),             // blue
			logview.SeverityDebug: r.NewStyle().Foreground(lipgloss.Color("245")).Faint(true), // gray
			logview.SeverityWarn:  r.NewStyle().Foreground(lipgloss.Color("220")),            // yellow
			logview.SeverityError: r.NewStyle().Foreground(lipgloss.Color("196")).Bold(true), // red bold
		},
	}
}

// TextRenderer prints aligned, severity-colored rows. Colors are dropped when
// the writer is not a terminal.
type TextRenderer struct {
	w  io.Writer
	st styles
}

func NewTextRenderer(w io.Writer) *TextRenderer {
	return &TextRenderer{w: w, st: newStyles(lipgloss.NewRenderer(w))}
}

func (r *TextRenderer) RenderTable(t logview.Table) error {
	if t.Filtered == 0 {
		_, err := fmt.Fprintln(r.w, r.st.muted.Render(fmt.Sprintf("no log entries (%d received)", t.Total)))
		return err
	}

	headers := append([]string{"TIME", "LEVEL", "MESSAGE"}, upper(t.Fields)...)
	rows := make([][]string, len(t.Rows))
	for i, e := range t.Rows {
		row := []string{logview.FormatTimestamp(e), e.Level, e.Message}
		for _, f := range t.Fields {
			row = append(row, logview.FieldValue(e, f))
		}
		rows[i] = row
	}

	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], lipgloss.Width(cell))
		}
	}

	var b strings.Builder
	b.WriteString(r.line(headers, widths, func(int) lipgloss.Style { return r.st.header }))
	for i, row := range rows {
		level := r.st.levels[logview.SeverityOf(t.Rows[i].Level)]
		b.WriteString(r.line(row, widths, func(col int) lipgloss.Style {
			if col == 1 {
				return level
			}
			return r.st.plain
		}))
	}
	b.WriteString(r.st.muted.Render(fmt.Sprintf("page %d/%d, %d of %d entries match",
		t.Page, max(t.TotalPages, 1), t.Filtered, t.Total)))
	b.WriteByte('\n')

	_, err := io.WriteString(r.w, b.String())
	return err
}

func (r *TextRenderer) line(cells []string, widths []int, style func(col int) lipgloss.Style) string {
	parts := make([]string, len(cells))
	for i, cell := range cells {
		pad := strings.Repeat(" ", widths[i]-lipgloss.Width(cell))
		parts[i] = style(i).Render(cell) + pad
	}
	return strings.TrimRight(strings.Join(parts, "  "), " ") + "\n"
}

// Render prints one entry on a single line, payload fields as key=value.
func (r *TextRenderer) Render(entry model.LogEntry) error {
	tag := r.st.levels[logview.SeverityOf(entry.Level)].Render(fmt.Sprintf("%-5s", entry.Level))
	line := fmt.Sprintf("%s %s %s", logview.FormatTimestamp(entry), tag, entry.Message)

	for _, f := range logview.DisplayFields([]model.LogEntry{entry}) {
		line += " " + r.st.muted.Render(f+"=") + logview.FieldValue(entry, f)
	}
	_, err := fmt.Fprintln(r.w, line)
	return err
}

func upper(ss []string) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = strings.ToUpper(s)
	}
	return out
}

// ---------------------------------------------------------------------------
// JSON Renderer (structured output for piping)
// ---------------------------------------------------------------------------

// JSONRenderer prints each log entry as a single JSON object per line.
type JSONRenderer struct {
	enc *json.Encoder
}

func NewJSONRenderer(w io.Writer) *JSONRenderer {
	return &JSONRenderer{enc: json.NewEncoder(w)}
}

// RenderTable writes the rows of the current page.
func (r *JSONRenderer) RenderTable(t logview.Table) error {
	for _, e := range t.Rows {
		if err := r.enc.Encode(e); err != nil {
			return err
		}
	}
	return nil
}

func (r *JSONRenderer) Render(entry model.LogEntry) error {
	return r.enc.Encode(entry)
}
