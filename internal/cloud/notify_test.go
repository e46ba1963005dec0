package cloud

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// notifyServer accepts one websocket connection and pushes the given
// frames, then holds the connection open until the test finishes.
func notifyServer(t *testing.T, frames []string) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != notificationsPath {
			http.NotFound(w, r)
			return
		}

		if r.Header.Get("Authorization") != "Bearer test-token" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "")

		ctx := r.Context()
		for _, f := range frames {
			if err := conn.Write(ctx, websocket.MessageText, []byte(f)); err != nil {
				return
			}
		}

		<-ctx.Done()
	}))
	t.Cleanup(srv.Close)

	return srv
}

func TestSubscribe(t *testing.T) {
	srv := notifyServer(t, []string{
		`{"event":"DocAdded","node":{"id":"d1","version":1,"name":"Report","type":"Document","parent":"f1"}}`,
		`{"event":"DocDeleted","node":{"id":"d2","version":3,"name":"Old","type":"Document"}}`,
	})

	c := NewClient(srv.URL, srv.Client(), staticToken("test-token"), slog.Default())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stream, err := c.Subscribe(ctx)
	require.NoError(t, err)
	defer stream.Close()

	ev, err := stream.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "DocAdded", ev.Type)
	assert.Equal(t, "d1", ev.Node.ID)
	assert.Equal(t, "Report", ev.Node.Name)
	assert.Equal(t, "f1", ev.Node.ParentID)

	ev, err = stream.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "DocDeleted", ev.Type)
	assert.Equal(t, "d2", ev.Node.ID)
}

func TestSubscribe_Unauthorized(t *testing.T) {
	srv := notifyServer(t, nil)

	c := NewClient(srv.URL, srv.Client(), staticToken("wrong-token"), slog.Default())

	_, err := c.Subscribe(context.Background())
	assert.ErrorIs(t, err, ErrAuthentication)
}

func TestEventStream_MalformedFrame(t *testing.T) {
	srv := notifyServer(t, []string{`{"no-event-key":true}`})

	c := NewClient(srv.URL, srv.Client(), staticToken("test-token"), slog.Default())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stream, err := c.Subscribe(ctx)
	require.NoError(t, err)
	defer stream.Close()

	_, err = stream.Next(ctx)
	assert.ErrorIs(t, err, ErrProtocol)
}
