package wschat

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// TransportCallbacks are the lifecycle hooks a Transport drives. The
// engine assumes exactly one OnOpen or terminal OnError/OnClose per
// connection attempt, and that OnMessage calls are delivered in order.
type TransportCallbacks struct {
	OnOpen    func()
	OnClose   func()
	OnMessage func(text string)
	OnError   func(err error)
}

// Transport is the bidirectional, ordered text-frame connection the
// engine runs over. The default implementation dials a websocket;
// tests substitute an in-memory fake.
type Transport interface {
	// Connect establishes the connection and binds the callbacks.
	// Implementations fire OnOpen once the connection is usable.
	Connect(ctx context.Context, cb TransportCallbacks) error
	Send(text string) error
	Close() error
}

const defaultHandshakeTimeout = 10 * time.Second

// wsTransport is the gorilla/websocket Transport. Writes are
// serialized behind a mutex; reads happen on a dedicated goroutine
// that feeds the callbacks.
type wsTransport struct {
	address          string
	handshakeTimeout time.Duration

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
}

func newWSTransport(address string, handshakeTimeout time.Duration) *wsTransport {
	if handshakeTimeout <= 0 {
		handshakeTimeout = defaultHandshakeTimeout
	}
	return &wsTransport{address: address, handshakeTimeout: handshakeTimeout}
}

func (t *wsTransport) Connect(ctx context.Context, cb TransportCallbacks) error {
	wsURL := t.address
	if after, ok := strings.CutPrefix(wsURL, "https://"); ok {
		wsURL = "wss://" + after
	} else if after, ok := strings.CutPrefix(wsURL, "http://"); ok {
		wsURL = "ws://" + after
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: t.handshakeTimeout,
	}

	conn, _, err := dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to websocket: %w", err)
	}

	t.mu.Lock()
	t.conn = conn
	t.closed = false
	t.mu.Unlock()

	cb.OnOpen()
	go t.readLoop(conn, cb)
	return nil
}

func (t *wsTransport) readLoop(conn *websocket.Conn, cb TransportCallbacks) {
	defer cb.OnClose()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) && !t.isClosed() {
				cb.OnError(fmt.Errorf("websocket read error: %w", err))
			}
			return
		}
		cb.OnMessage(string(data))
	}
}

func (t *wsTransport) Send(text string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn == nil || t.closed {
		return ErrNotConnected
	}
	return t.conn.WriteMessage(websocket.TextMessage, []byte(text))
}

func (t *wsTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn == nil || t.closed {
		return nil
	}
	t.closed = true
	return t.conn.Close()
}

func (t *wsTransport) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}
