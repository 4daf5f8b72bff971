package client

import (
	"context"
	"fmt"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/kahosan/mosdash/internal/model"
)

// StreamLogs follows the live log stream and calls fn for every entry until
// ctx is cancelled or the connection drops.
func (c *Client) StreamLogs(ctx context.Context, fn func(model.LogEntry)) error {
	u := *c.base
	u.Scheme = strings.Replace(u.Scheme, "http", "ws", 1)
	u.Path = strings.TrimRight(u.Path, "/") + "/log/stream"

	dialer := websocket.Dialer{HandshakeTimeout: c.timeout}
	conn, resp, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil {
			return &HTTPError{Status: resp.StatusCode, Body: fmt.Sprintf("stream unavailable: %v", err)}
		}
		return fmt.Errorf("dial log stream: %w", err)
	}
	defer conn.Close()

	// Closing the connection unblocks ReadJSON.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	for {
		var entry model.LogEntry
		if err := conn.ReadJSON(&entry); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read log stream: %w", err)
		}
		fn(entry)
	}
}
