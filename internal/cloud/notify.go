package cloud

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/coder/websocket"
)

const notificationsPath = "/notifications/ws/json/1"

// Event is a remote change notification: a document or folder was
// created, updated, or deleted by some client of the same account.
type Event struct {
	Type string `json:"event"` // "DocAdded", "DocUpdated", "DocDeleted"
	Node Node   `json:"-"`
}

// eventRecord is the wire shape of a notification frame.
type eventRecord struct {
	Event string     `json:"event"`
	Node  nodeRecord `json:"node"`
}

// EventStream is an open websocket subscription to the sync host's
// notification endpoint. Not safe for concurrent Next calls.
type EventStream struct {
	conn   *websocket.Conn
	logger *slog.Logger
}

// Subscribe opens the notification stream. The dial is authenticated with
// a bearer session token like any other sync call. The caller owns the
// stream and must Close it; a dropped connection surfaces as ErrNetwork
// from Next, and reconnecting is the caller's decision.
func (c *Client) Subscribe(ctx context.Context) (*EventStream, error) {
	tok, err := c.token.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("cloud: obtaining token: %w", err)
	}

	wsURL := strings.Replace(c.syncURL, "http", "ws", 1) + notificationsPath

	header := http.Header{}
	header.Set("Authorization", "Bearer "+tok)
	header.Set("User-Agent", userAgent)

	conn, resp, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPClient: c.httpClient,
		HTTPHeader: header,
	})
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil, fmt.Errorf("%w: notification subscription rejected", ErrAuthentication)
		}

		return nil, fmt.Errorf("%w: dialing notification stream: %v", ErrNetwork, err)
	}

	c.logger.Info("subscribed to notification stream")

	return &EventStream{conn: conn, logger: c.logger}, nil
}

// Next blocks until the next event arrives or ctx is canceled.
func (s *EventStream) Next(ctx context.Context) (*Event, error) {
	_, data, err := s.conn.Read(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("cloud: notification stream canceled: %w", ctx.Err())
		}

		return nil, fmt.Errorf("%w: reading notification: %v", ErrNetwork, err)
	}

	var rec eventRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: decoding notification: %v", ErrProtocol, err)
	}

	if rec.Event == "" {
		return nil, fmt.Errorf("%w: notification frame missing event type", ErrProtocol)
	}

	ev := &Event{Type: rec.Event, Node: rec.Node.toNode()}

	s.logger.Debug("notification received",
		slog.String("event", ev.Type),
		slog.String("node_id", ev.Node.ID),
	)

	return ev, nil
}

// Close closes the websocket connection.
func (s *EventStream) Close() error {
	return s.conn.Close(websocket.StatusNormalClosure, "")
}
