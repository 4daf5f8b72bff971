package parser

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/kahosan/mosdash/internal/model"
)

// Parser converts a raw log line into a structured LogEntry.
type Parser interface {
	Parse(raw string) (model.LogEntry, error)
}

// ---------------------------------------------------------------------------
// mosdns Parser
// ---------------------------------------------------------------------------

// Layouts accepted for the leading timestamp, tried in order.
// Example: 2025-06-03T02:00:08.738+0800
var timeLayouts = []string{
	"2006-01-02T15:04:05.999-0700",
	"2006-01-02T15:04:05-0700",
}

// MosdnsParser handles lines written by the mosdns zap logger:
//
//	<timestamp> <LEVEL> <message> [<json object>]
//
// The message may contain tabs; they are folded to spaces.
type MosdnsParser struct {
	re *regexp.Regexp
}

func NewMosdnsParser() *MosdnsParser {
	return &MosdnsParser{
		re: regexp.MustCompile(`^(\S+)\s+([A-Z]+)\s+(.*?)(?:\s+(\{.*\}))?$`),
	}
}

func (p *MosdnsParser) Parse(raw string) (model.LogEntry, error) {
	matches := p.re.FindStringSubmatch(raw)
	if matches == nil {
		return model.LogEntry{}, fmt.Errorf("line does not match log format: %q", raw)
	}

	ts, err := parseTime(matches[1])
	if err != nil {
		return model.LogEntry{}, err
	}

	entry := model.LogEntry{
		Timestamp: ts.Format(model.TimeLayout),
		Level:     matches[2],
		Message:   strings.TrimSpace(strings.ReplaceAll(matches[3], "\t", " ")),
	}

	if payload := matches[4]; payload != "" {
		var fields map[string]any
		if err := json.Unmarshal([]byte(payload), &fields); err != nil {
			return model.LogEntry{}, fmt.Errorf("invalid JSON payload %q: %w", payload, err)
		}
		entry.Fields = fields
	}

	return entry, nil
}

// ParseLenient never fails: lines that do not match the mosdns format
// degrade to keyword-based level detection with an empty timestamp.
func (p *MosdnsParser) ParseLenient(raw string) model.LogEntry {
	entry, err := p.Parse(raw)
	if err != nil {
		return keywordParse(raw)
	}
	return entry
}

// ---------------------------------------------------------------------------
// Whole-file parsing
// ---------------------------------------------------------------------------

// LineError reports every line that could not be parsed in strict mode.
type LineError struct {
	Lines []string // "line N: <text>"
}

func (e *LineError) Error() string {
	return fmt.Sprintf("failed to parse %d log line(s):\n%s", len(e.Lines), strings.Join(e.Lines, "\n"))
}

// ParseAll parses a complete log file. Blank lines are skipped.
// In strict mode any unparseable line fails the whole batch with a *LineError;
// otherwise such lines are kept via ParseLenient.
func ParseAll(content []byte, strict bool) ([]model.LogEntry, error) {
	p := NewMosdnsParser()
	entries := make([]model.LogEntry, 0, bytes.Count(content, []byte{'\n'})+1)
	var bad []string

	scanner := bufio.NewScanner(bytes.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNumber := 0
	for scanner.Scan() {
		lineNumber++
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		entry, err := p.Parse(line)
		if err != nil {
			if strict {
				bad = append(bad, fmt.Sprintf("line %d: %s", lineNumber, line))
				continue
			}
			entry = keywordParse(line)
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}

	if len(bad) > 0 {
		return nil, &LineError{Lines: bad}
	}
	return entries, nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func parseTime(s string) (time.Time, error) {
	var err error
	for _, layout := range timeLayouts {
		var t time.Time
		if t, err = time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
}

// keywordParse detects severity from keywords in the line.
func keywordParse(line string) model.LogEntry {
	entry := model.LogEntry{Level: "INFO", Message: strings.TrimSpace(line)}
	upper := strings.ToUpper(line)

	switch {
	case strings.Contains(upper, "FATAL"):
		entry.Level = "FATAL"
	case strings.Contains(upper, "ERROR"):
		entry.Level = "ERROR"
	case strings.Contains(upper, "WARN"):
		entry.Level = "WARN"
	case strings.Contains(upper, "DEBUG"):
		entry.Level = "DEBUG"
	}

	return entry
}
