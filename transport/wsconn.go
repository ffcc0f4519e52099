package transport

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/coder/websocket"
)

// WSConn adapts a coder/websocket connection to the Conn contract by
// presenting it as a single binary-message byte stream via
// websocket.NetConn, then applying the same close-once guard as TCPConn.
type WSConn struct {
	net.Conn
	ws     *websocket.Conn
	mu     sync.Mutex
	closed bool
}

func newWSConn(ctx context.Context, ws *websocket.Conn) *WSConn {
	return &WSConn{
		Conn: websocket.NetConn(ctx, ws, websocket.MessageBinary),
		ws:   ws,
	}
}

// DialWS dials a WebSocket URL and wraps the resulting connection.
func DialWS(ctx context.Context, url string) (*WSConn, error) {
	ws, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("transport: dial websocket: %w", err)
	}
	return newWSConn(ctx, ws), nil
}

// AcceptWS upgrades an incoming HTTP request to a WebSocket and wraps it.
func AcceptWS(ctx context.Context, w http.ResponseWriter, r *http.Request) (*WSConn, error) {
	ws, err := websocket.Accept(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("transport: accept websocket: %w", err)
	}
	return newWSConn(ctx, ws), nil
}

// Close closes the underlying WebSocket with a normal-closure code. Safe
// to call more than once.
func (c *WSConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.ws.Close(websocket.StatusNormalClosure, "")
}
