// Package logview derives the log table shown by the console from a batch of
// entries: display columns, newest-first ordering, free-text search and
// pagination. Nothing here performs I/O.
package logview

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/kahosan/mosdash/internal/model"
)

// excludedFields are payload keys never promoted to their own column.
var excludedFields = map[string]struct{}{
	"tag":     {},
	"type":    {},
	"file":    {},
	"addr":    {},
	"length":  {},
	"entries": {},
	"tls":     {},
}

// Missing is rendered for a display field an entry does not carry.
const Missing = "-"

// InvalidDate is rendered for timestamps that cannot be parsed.
const InvalidDate = "Invalid Date"

// DisplayFields returns the sorted set of payload keys seen in any entry,
// minus the excluded keys.
func DisplayFields(entries []model.LogEntry) []string {
	seen := make(map[string]struct{})
	for _, e := range entries {
		for k := range e.Fields {
			if _, skip := excludedFields[k]; skip {
				continue
			}
			seen[k] = struct{}{}
		}
	}

	fields := make([]string, 0, len(seen))
	for k := range seen {
		fields = append(fields, k)
	}
	sort.Strings(fields)
	return fields
}

// FieldValue returns the stringified payload value, or Missing when absent.
func FieldValue(e model.LogEntry, name string) string {
	v, ok := e.Fields[name]
	if !ok {
		return Missing
	}
	return stringify(v)
}

// FormatTimestamp renders the entry time as local hour:minute:second.
func FormatTimestamp(e model.LogEntry) string {
	return formatTimestampIn(e, time.Local)
}

func formatTimestampIn(e model.LogEntry, loc *time.Location) string {
	t, ok := e.Time()
	if !ok {
		return InvalidDate
	}
	return t.In(loc).Format("15:04:05")
}

// Severity is the visual weight of a log level.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityError
	SeverityWarn
	SeverityDebug
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarn:
		return "warn"
	case SeverityDebug:
		return "debug"
	default:
		return "info"
	}
}

// SeverityOf maps a level name to its severity. Unknown levels render as info.
func SeverityOf(level string) Severity {
	switch strings.ToUpper(level) {
	case "ERROR":
		return SeverityError
	case "WARN":
		return SeverityWarn
	case "DEBUG":
		return SeverityDebug
	default:
		return SeverityInfo
	}
}

// stringify renders decoded JSON values the way they read in the log file.
func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case json.Number:
		return x.String()
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return Missing
		}
		return string(b)
	}
}
