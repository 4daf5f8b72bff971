package parser

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMosdnsParser(t *testing.T) {
	p := NewMosdnsParser()

	entry, err := p.Parse(`2025-06-03T02:00:08.738+0800	INFO	load config	{"file": "/etc/mosdns/exec.yaml"}`)
	require.NoError(t, err)

	assert.Equal(t, "2025-06-03T02:00:08.738+08:00", entry.Timestamp)
	assert.Equal(t, "INFO", entry.Level)
	assert.Equal(t, "load config", entry.Message)
	assert.Equal(t, map[string]any{"file": "/etc/mosdns/exec.yaml"}, entry.Fields)
}

func TestMosdnsParserNoPayload(t *testing.T) {
	p := NewMosdnsParser()

	entry, err := p.Parse("2025-06-03T02:00:08+0800 WARN query_cn.r0\tcn")
	require.NoError(t, err)

	assert.Equal(t, "2025-06-03T02:00:08.000+08:00", entry.Timestamp)
	assert.Equal(t, "WARN", entry.Level)
	assert.Equal(t, "query_cn.r0 cn", entry.Message)
	assert.Nil(t, entry.Fields)
}

func TestMosdnsParserTimestampRoundTrip(t *testing.T) {
	p := NewMosdnsParser()

	entry, err := p.Parse("2025-06-03T02:00:08.738+0800 ERROR upstream failed")
	require.NoError(t, err)

	ts, ok := entry.Time()
	require.True(t, ok)
	assert.Equal(t, int64(1748887208), ts.Unix())
}

func TestMosdnsParserRejects(t *testing.T) {
	p := NewMosdnsParser()

	cases := map[string]string{
		"no level":       "2025-06-03T02:00:08.738+0800",
		"lowercase":      "2025-06-03T02:00:08.738+0800 info hello",
		"bad timestamp":  "yesterday INFO hello",
		"broken payload": `2025-06-03T02:00:08.738+0800 INFO hello {"a":}`,
	}
	for name, line := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := p.Parse(line)
			assert.Error(t, err)
		})
	}
}

func TestParseLenientFallsBackToKeywords(t *testing.T) {
	p := NewMosdnsParser()

	entry := p.ParseLenient("panic: runtime error: fatal stack overflow")
	assert.Equal(t, "FATAL", entry.Level)
	assert.Equal(t, "", entry.Timestamp)
	assert.Equal(t, "panic: runtime error: fatal stack overflow", entry.Message)

	entry = p.ParseLenient("something happened")
	assert.Equal(t, "INFO", entry.Level)
}

func TestParseAll(t *testing.T) {
	content := []byte("2025-06-03T02:00:08.738+0800 INFO one\n" +
		"\n" +
		"   \n" +
		"2025-06-03T02:00:09.000+0800 ERROR two {\"code\":5}\n")

	entries, err := ParseAll(content, true)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "one", entries[0].Message)
	assert.Equal(t, "ERROR", entries[1].Level)
	assert.Equal(t, float64(5), entries[1].Fields["code"])
}

func TestParseAllStrictReportsLines(t *testing.T) {
	content := []byte("2025-06-03T02:00:08.738+0800 INFO ok\n" +
		"garbage line\n" +
		"another bad one\n")

	_, err := ParseAll(content, true)
	require.Error(t, err)

	var lineErr *LineError
	require.True(t, errors.As(err, &lineErr))
	assert.Equal(t, []string{"line 2: garbage line", "line 3: another bad one"}, lineErr.Lines)
	assert.Contains(t, err.Error(), "failed to parse 2 log line(s)")
}

func TestParseAllLenient(t *testing.T) {
	content := []byte("2025-06-03T02:00:08.738+0800 INFO ok\n" +
		"error: garbage line\n")

	entries, err := ParseAll(content, false)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "ERROR", entries[1].Level)
}

func TestParseAllEmpty(t *testing.T) {
	entries, err := ParseAll(nil, true)
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.NotNil(t, entries)
}
