package logview

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/kahosan/mosdash/internal/model"
)

func TestSetPageClamps(t *testing.T) {
	v := NewView()

	v.SetPage(0, 4)
	assert.Equal(t, 1, v.Page)

	v.SetPage(-3, 4)
	assert.Equal(t, 1, v.Page)

	v.SetPage(9, 4)
	assert.Equal(t, 4, v.Page)

	v.SetPage(3, 4)
	assert.Equal(t, 3, v.Page)

	v.SetPage(2, 0)
	assert.Equal(t, 1, v.Page)
}

func TestSetPageSizeResetsPage(t *testing.T) {
	v := NewView()
	v.Page = 3

	assert.NoError(t, v.SetPageSize(50))
	assert.Equal(t, 50, v.PageSize)
	assert.Equal(t, 1, v.Page)

	v.Page = 2
	assert.Error(t, v.SetPageSize(0))
	assert.Equal(t, 2, v.Page)
}

func TestSetSearchResetsPage(t *testing.T) {
	v := NewView()
	v.Page = 4
	v.SetSearch("timeout")
	assert.Equal(t, 1, v.Page)
	assert.Equal(t, "timeout", v.Search)
}

func TestOffset(t *testing.T) {
	v := View{Page: 3, PageSize: 20}
	assert.Equal(t, 40, v.Offset())
	v.LegacyOffset = true
	assert.Equal(t, 60, v.Offset())
}

func TestFieldValue(t *testing.T) {
	e := model.LogEntry{Fields: map[string]any{
		"qname": "example.com.",
		"uqid":  float64(42),
		"ok":    true,
		"err":   nil,
		"ips":   []any{"1.1.1.1"},
	}}

	assert.Equal(t, "example.com.", FieldValue(e, "qname"))
	assert.Equal(t, "42", FieldValue(e, "uqid"))
	assert.Equal(t, "true", FieldValue(e, "ok"))
	assert.Equal(t, "null", FieldValue(e, "err"))
	assert.Equal(t, `["1.1.1.1"]`, FieldValue(e, "ips"))
	assert.Equal(t, Missing, FieldValue(e, "absent"))
	assert.Equal(t, Missing, FieldValue(model.LogEntry{}, "qname"))
}

func TestFormatTimestamp(t *testing.T) {
	loc := time.FixedZone("CST", 8*3600)

	assert.Equal(t, "18:00:08", formatTimestampIn(model.LogEntry{Timestamp: "2024-01-01T10:00:08Z"}, loc))
	assert.Equal(t, "02:00:08", formatTimestampIn(model.LogEntry{Timestamp: "2025-06-03T02:00:08.738+08:00"}, loc))
	assert.Equal(t, InvalidDate, formatTimestampIn(model.LogEntry{Timestamp: "garbage"}, loc))
	assert.Equal(t, InvalidDate, formatTimestampIn(model.LogEntry{}, loc))
}

func TestSeverityOf(t *testing.T) {
	assert.Equal(t, SeverityError, SeverityOf("ERROR"))
	assert.Equal(t, SeverityError, SeverityOf("error"))
	assert.Equal(t, SeverityWarn, SeverityOf("Warn"))
	assert.Equal(t, SeverityInfo, SeverityOf("INFO"))
	assert.Equal(t, SeverityDebug, SeverityOf("debug"))
	assert.Equal(t, SeverityInfo, SeverityOf("FATAL"))
	assert.Equal(t, "warn", SeverityWarn.String())
}
