package nnsession

import (
	"context"

	"github.com/coder/websocket"
)

// Conn is a message-oriented, bidirectional transport. Read is only called
// from one goroutine; Write calls are serialised by the Session.
type Conn interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte) error
	Close() error
}

// Dialer opens a Conn to address.
type Dialer func(ctx context.Context, address string, maxMessageSize int64) (Conn, error)

type wsConn struct {
	conn *websocket.Conn
}

// DialWebSocket is the default Dialer.
func DialWebSocket(ctx context.Context, address string, maxMessageSize int64) (Conn, error) {
	conn, _, err := websocket.Dial(ctx, address, nil)
	if err != nil {
		return nil, err
	}
	if maxMessageSize > 0 {
		conn.SetReadLimit(maxMessageSize)
	}
	return &wsConn{conn: conn}, nil
}

// WrapWebSocket adapts an already established connection.
func WrapWebSocket(conn *websocket.Conn) Conn {
	return &wsConn{conn: conn}
}

func (c *wsConn) Read(ctx context.Context) ([]byte, error) {
	_, data, err := c.conn.Read(ctx)
	return data, err
}

func (c *wsConn) Write(ctx context.Context, data []byte) error {
	return c.conn.Write(ctx, websocket.MessageText, data)
}

func (c *wsConn) Close() error {
	return c.conn.Close(websocket.StatusNormalClosure, "")
}
