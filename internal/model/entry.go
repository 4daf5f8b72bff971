package model

import "time"

// TimeLayout is the wire format of LogEntry.Timestamp.
const TimeLayout = "2006-01-02T15:04:05.000Z07:00"

// LogEntry represents a single parsed log line.
type LogEntry struct {
	Timestamp string         `json:"timestamp"`
	Level     string         `json:"level"`            // INFO, WARN, ERROR, DEBUG
	Message   string         `json:"message"`          // parsed message content
	Fields    map[string]any `json:"fields,omitempty"` // trailing JSON payload
}

// Time parses Timestamp. ok is false when the value is not a valid RFC 3339 time.
func (e LogEntry) Time() (t time.Time, ok bool) {
	t, err := time.Parse(time.RFC3339Nano, e.Timestamp)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// RawLine is an unparsed line read from the tailed log file.
type RawLine struct {
	Text   string
	Source string
}
