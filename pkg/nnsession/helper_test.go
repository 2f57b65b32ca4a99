package nnsession

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
)

// memConn is an in-memory Conn. The test plays the server through sent and
// inbox.
type memConn struct {
	inbox     chan []byte
	sent      chan []byte
	closed    chan struct{}
	closeOnce sync.Once
}

func newMemConn() *memConn {
	return &memConn{
		inbox:  make(chan []byte, 64),
		sent:   make(chan []byte, 1024),
		closed: make(chan struct{}),
	}
}

func (c *memConn) Read(ctx context.Context) ([]byte, error) {
	select {
	case data := <-c.inbox:
		return data, nil
	case <-c.closed:
		return nil, io.EOF
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *memConn) Write(ctx context.Context, data []byte) error {
	select {
	case <-c.closed:
		return errors.New("memconn: closed")
	default:
	}
	select {
	case c.sent <- append([]byte(nil), data...):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *memConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

// nextRequest returns the next frame the session wrote.
func (c *memConn) nextRequest(t *testing.T) map[string]any {
	t.Helper()
	select {
	case data := <-c.sent:
		var msg map[string]any
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("session sent invalid json %q: %v", data, err)
		}
		return msg
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for a request")
		return nil
	}
}

func (c *memConn) reply(t *testing.T, msg map[string]any) {
	t.Helper()
	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal reply: %v", err)
	}
	c.inbox <- data
}

func (c *memConn) replyRaw(data string) {
	c.inbox <- []byte(data)
}

func memDialer(conn *memConn) Dialer {
	return func(ctx context.Context, address string, maxMessageSize int64) (Conn, error) {
		return conn, nil
	}
}

// openSession returns a ready session wired to a fresh memConn.
func openSession(t *testing.T, cfg Config) (*Session, *memConn) {
	t.Helper()
	conn := newMemConn()
	cfg.Address = "ws://opennn.test"
	cfg.Dialer = memDialer(conn)
	s, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Ready(ctx); err != nil {
		t.Fatalf("Ready: %v", err)
	}
	return s, conn
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// startWebSocketServer serves handle for every connection and returns its
// ws:// address.
func startWebSocketServer(t *testing.T, handle func(ctx context.Context, conn *websocket.Conn)) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			t.Errorf("accept: %v", err)
			return
		}
		defer conn.CloseNow()
		handle(r.Context(), conn)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}
