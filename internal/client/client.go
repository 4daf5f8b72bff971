// Package client talks to the mosdash backend.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/kahosan/mosdash/internal/model"
)

// HTTPError is returned for any non-2xx response. Its message is the
// response body, which the backend fills with a human readable reason.
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("HTTP %d", e.Status)
	}
	return e.Body
}

// Options describes a single request. The zero value is a GET without body.
type Options struct {
	Method      string
	Body        []byte
	ContentType string
}

// Client issues requests against one backend base URL.
type Client struct {
	base    *url.URL
	timeout time.Duration
	http    *fasthttp.Client
}

func New(baseURL string, timeout time.Duration) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported base url scheme %q", u.Scheme)
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		base:    u,
		timeout: timeout,
		http: &fasthttp.Client{
			MaxConnsPerHost:     4,
			MaxIdleConnDuration: 10 * time.Second,
			ReadTimeout:         timeout,
			WriteTimeout:        timeout,
		},
	}, nil
}

// URL resolves a request key such as "/config" or "rule/a.txt".
func (c *Client) URL(key string) string {
	if !strings.HasPrefix(key, "/") {
		key = "/" + key
	}
	return c.base.String() + key
}

// Fetch performs one request for key. A non-2xx status fails with *HTTPError.
// A JSON response is decoded into T; any other response is returned as text,
// which requires T to be string or []byte.
func Fetch[T any](ctx context.Context, c *Client, key string, opts *Options) (T, error) {
	var out T

	body, contentType, err := c.do(ctx, key, opts)
	if err != nil {
		return out, err
	}

	if strings.Contains(contentType, "application/json") {
		if err := json.Unmarshal(body, &out); err != nil {
			return out, fmt.Errorf("decode %s: %w", key, err)
		}
		return out, nil
	}

	switch p := any(&out).(type) {
	case *string:
		*p = string(body)
	case *[]byte:
		*p = body
	default:
		return out, fmt.Errorf("decode %s: expected JSON, got %q", key, contentType)
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, key string, opts *Options) ([]byte, string, error) {
	if opts == nil {
		opts = &Options{}
	}
	method := opts.Method
	if method == "" {
		method = fasthttp.MethodGet
	}
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.URL(key))
	req.Header.SetMethod(method)
	if opts.Body != nil {
		ct := opts.ContentType
		if ct == "" {
			ct = "text/plain; charset=utf-8"
		}
		req.Header.SetContentType(ct)
		req.SetBody(opts.Body)
	}

	if err := c.http.DoDeadline(req, resp, deadline); err != nil {
		if errors.Is(err, fasthttp.ErrTimeout) && ctx.Err() != nil {
			return nil, "", ctx.Err()
		}
		return nil, "", fmt.Errorf("%s %s: %w", method, key, err)
	}

	// resp buffers are recycled on release
	body := append([]byte(nil), resp.Body()...)
	status := resp.StatusCode()
	if status < 200 || status >= 300 {
		return nil, "", &HTTPError{Status: status, Body: string(body)}
	}
	return body, string(resp.Header.ContentType()), nil
}

// ---------------------------------------------------------------------------
// Backend endpoints
// ---------------------------------------------------------------------------

// ListFiles returns the file names of a directory type ("config" or "rule").
func (c *Client) ListFiles(ctx context.Context, dir string) ([]string, error) {
	files, err := Fetch[[]string](ctx, c, "/"+dir, nil)
	if files == nil && err == nil {
		files = []string{}
	}
	return files, err
}

// ReadFile returns the text content of a file.
func (c *Client) ReadFile(ctx context.Context, dir, name string) (string, error) {
	return Fetch[string](ctx, c, filePath(dir, name), nil)
}

// SaveFile replaces a file and returns the backend confirmation.
func (c *Client) SaveFile(ctx context.Context, dir, name, content string) (string, error) {
	return Fetch[string](ctx, c, filePath(dir, name), &Options{
		Method: fasthttp.MethodPost,
		Body:   []byte(content),
	})
}

// Action triggers start, stop or restart and returns the confirmation.
func (c *Client) Action(ctx context.Context, action string) (string, error) {
	return Fetch[string](ctx, c, "/"+action, &Options{Method: fasthttp.MethodPost})
}

// Logs returns the parsed service log.
func (c *Client) Logs(ctx context.Context) ([]model.LogEntry, error) {
	entries, err := Fetch[[]model.LogEntry](ctx, c, "/log", nil)
	if entries == nil && err == nil {
		entries = []model.LogEntry{}
	}
	return entries, err
}

func filePath(dir, name string) string {
	return "/" + dir + "/" + url.PathEscape(name)
}
