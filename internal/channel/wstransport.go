package channel

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mahanpro/NeuroLens2/internal/domain"
)

const pingInterval = 20 * time.Second

// WebSocketTransport carries the event channel over a WebSocket when no
// peer transport is negotiated (text-only sessions).
type WebSocketTransport struct {
	endpoint string
	model    string
	cred     domain.Credential
	handlers domain.TransportHandlers

	mu     sync.Mutex
	conn   *websocket.Conn
	open   bool
	closed chan struct{}
}

// NewWebSocketTransport prepares a transport against the realtime
// endpoint. Dial must be called before the transport is usable.
func NewWebSocketTransport(endpoint, model string, cred domain.Credential, h domain.TransportHandlers) *WebSocketTransport {
	return &WebSocketTransport{
		endpoint: endpoint,
		model:    model,
		cred:     cred,
		handlers: h,
		closed:   make(chan struct{}),
	}
}

// Dial connects, marks the transport open, and starts the read and ping
// loops.
func (t *WebSocketTransport) Dial(ctx context.Context) error {
	u, err := url.Parse(t.endpoint)
	if err != nil {
		return fmt.Errorf("parse endpoint: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	q := u.Query()
	q.Set("model", t.model)
	u.RawQuery = q.Encode()

	header := http.Header{}
	header.Set("Authorization", "Bearer "+t.cred.Value)

	log.Printf("[channel] dialing %s", u.Host)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), header)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	t.mu.Lock()
	t.conn = conn
	t.open = true
	t.mu.Unlock()

	if t.handlers.OnOpen != nil {
		t.handlers.OnOpen()
	}

	go t.readLoop()
	go t.pingLoop()

	return nil
}

// Send writes one text frame. Concurrent senders are serialized.
func (t *WebSocketTransport) Send(data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.open || t.conn == nil {
		return fmt.Errorf("websocket not open")
	}
	return t.conn.WriteMessage(websocket.TextMessage, data)
}

// IsOpen reports whether the connection is usable.
func (t *WebSocketTransport) IsOpen() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.open
}

// Close shuts the connection down. Idempotent.
func (t *WebSocketTransport) Close() error {
	t.mu.Lock()
	select {
	case <-t.closed:
		t.mu.Unlock()
		return nil
	default:
		close(t.closed)
	}
	t.open = false
	conn := t.conn
	t.mu.Unlock()

	if conn != nil {
		return conn.Close()
	}
	return nil
}

func (t *WebSocketTransport) readLoop() {
	for {
		select {
		case <-t.closed:
			return
		default:
		}

		_, data, err := t.conn.ReadMessage()
		if err != nil {
			t.mu.Lock()
			t.open = false
			t.mu.Unlock()

			select {
			case <-t.closed:
				if t.handlers.OnClose != nil {
					t.handlers.OnClose()
				}
			default:
				log.Printf("[channel] read error: %v", err)
				if t.handlers.OnError != nil {
					t.handlers.OnError(err)
				}
			}
			return
		}

		if t.handlers.OnMessage != nil {
			t.handlers.OnMessage(data)
		}
	}
}

func (t *WebSocketTransport) pingLoop() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-t.closed:
			return
		case <-ticker.C:
			t.mu.Lock()
			conn := t.conn
			t.mu.Unlock()
			if conn == nil {
				return
			}
			err := conn.WriteControl(
				websocket.PingMessage,
				[]byte{},
				time.Now().Add(5*time.Second),
			)
			if err != nil {
				select {
				case <-t.closed:
					return
				default:
					log.Printf("[channel] ping error: %v", err)
					return
				}
			}
		}
	}
}
