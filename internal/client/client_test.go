package client

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*Client, *http.ServeMux) {
	t.Helper()
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	c, err := New(srv.URL, 2*time.Second)
	require.NoError(t, err)
	return c, mux
}

func TestFetchJSON(t *testing.T) {
	c, mux := newTestServer(t)
	mux.HandleFunc("/config", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		io.WriteString(w, `["config.yaml","forward.yaml"]`)
	})

	files, err := c.ListFiles(context.Background(), "config")
	require.NoError(t, err)
	assert.Equal(t, []string{"config.yaml", "forward.yaml"}, files)
}

func TestFetchNullList(t *testing.T) {
	c, mux := newTestServer(t)
	mux.HandleFunc("/rule", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `null`)
	})

	files, err := c.ListFiles(context.Background(), "rule")
	require.NoError(t, err)
	assert.Equal(t, []string{}, files)
}

func TestFetchText(t *testing.T) {
	c, mux := newTestServer(t)
	mux.HandleFunc("/rule/direct.txt", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		io.WriteString(w, "domain:cn\n")
	})

	content, err := c.ReadFile(context.Background(), "rule", "direct.txt")
	require.NoError(t, err)
	assert.Equal(t, "domain:cn\n", content)
}

func TestFetchTextIntoStructFails(t *testing.T) {
	c, mux := newTestServer(t)
	mux.HandleFunc("/log", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		io.WriteString(w, "not json")
	})

	_, err := c.Logs(context.Background())
	assert.Error(t, err)
}

func TestFetchErrorCarriesBody(t *testing.T) {
	c, mux := newTestServer(t)
	mux.HandleFunc("/restart", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Failed to execute command: exit status 5", http.StatusInternalServerError)
	})

	_, err := c.Action(context.Background(), "restart")
	require.Error(t, err)

	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusInternalServerError, httpErr.Status)
	assert.Equal(t, "Failed to execute command: exit status 5\n", err.Error())
}

func TestSaveFilePostsBody(t *testing.T) {
	c, mux := newTestServer(t)

	var gotMethod, gotBody string
	mux.HandleFunc("/config/forward.yaml", func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		io.WriteString(w, "File saved successfully")
	})

	msg, err := c.SaveFile(context.Background(), "config", "forward.yaml", "log:\n  level: debug\n")
	require.NoError(t, err)
	assert.Equal(t, "File saved successfully", msg)
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "log:\n  level: debug\n", gotBody)
}

func TestLogsDecodesEntries(t *testing.T) {
	c, mux := newTestServer(t)
	mux.HandleFunc("/log", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `[{"timestamp":"2024-01-01T10:00:00Z","level":"ERROR","message":"boot failed","fields":{"code":"5"}}]`)
	})

	entries, err := c.Logs(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "boot failed", entries[0].Message)
	assert.Equal(t, "5", entries[0].Fields["code"])
}

func TestFetchTransportError(t *testing.T) {
	c, err := New("http://127.0.0.1:1", time.Second)
	require.NoError(t, err)

	_, err = c.ListFiles(context.Background(), "config")
	require.Error(t, err)

	var httpErr *HTTPError
	assert.False(t, errors.As(err, &httpErr))
}

func TestFetchCancelledContext(t *testing.T) {
	c, _ := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.ListFiles(ctx, "config")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestURL(t *testing.T) {
	c, err := New("http://router:1323/", time.Second)
	require.NoError(t, err)
	assert.Equal(t, "http://router:1323/config/a.yaml", c.URL("config/a.yaml"))
	assert.Equal(t, "http://router:1323/log", c.URL("/log"))

	_, err = New("ftp://router", time.Second)
	assert.Error(t, err)
}

func TestHTTPErrorEmptyBody(t *testing.T) {
	assert.Equal(t, "HTTP 502", (&HTTPError{Status: 502}).Error())
}
