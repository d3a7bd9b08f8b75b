package conn

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// Transport is one framed, bidirectional byte link to the service. A
// transport message may carry one or more protocol frames, or a partial
// frame continued in the next message.
type Transport interface {
	// ReadMessage blocks for the next transport message.
	ReadMessage() ([]byte, error)

	// WriteMessage sends one transport message. Callers serialize writes.
	WriteMessage(data []byte) error

	// SetReadDeadline bounds the next ReadMessage.
	SetReadDeadline(t time.Time) error

	// SetWriteDeadline bounds the next WriteMessage.
	SetWriteDeadline(t time.Time) error

	// Close tears the link down. Safe to call more than once.
	Close() error
}

// Dialer establishes transports to a service endpoint.
type Dialer interface {
	Dial(ctx context.Context, url string, headers http.Header) (Transport, error)
}

// WebSocketDialer dials the service over a binary WebSocket.
type WebSocketDialer struct {
	// ReadBufferSize and WriteBufferSize size the underlying buffers.
	// Zero selects the websocket package defaults.
	ReadBufferSize  int
	WriteBufferSize int

	// EnableCompression negotiates per-message compression.
	EnableCompression bool

	// MaxMessageSize caps incoming messages. Zero means no cap.
	MaxMessageSize int64
}

// Dial connects and returns the transport.
func (d *WebSocketDialer) Dial(ctx context.Context, url string, headers http.Header) (Transport, error) {
	dialer := websocket.Dialer{
		ReadBufferSize:    d.ReadBufferSize,
		WriteBufferSize:   d.WriteBufferSize,
		EnableCompression: d.EnableCompression,
	}
	ws, resp, err := dialer.DialContext(ctx, url, headers)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		return nil, err
	}
	if d.MaxMessageSize > 0 {
		ws.SetReadLimit(d.MaxMessageSize)
	}
	return &wsTransport{ws: ws}, nil
}

// wsTransport adapts a websocket connection to Transport.
type wsTransport struct {
	ws *websocket.Conn
}

func (t *wsTransport) ReadMessage() ([]byte, error) {
	for {
		mt, data, err := t.ws.ReadMessage()
		if err != nil {
			return nil, err
		}
		// The service protocol is binary; ignore stray text frames.
		if mt == websocket.BinaryMessage {
			return data, nil
		}
	}
}

func (t *wsTransport) WriteMessage(data []byte) error {
	return t.ws.WriteMessage(websocket.BinaryMessage, data)
}

func (t *wsTransport) SetReadDeadline(d time.Time) error {
	return t.ws.SetReadDeadline(d)
}

func (t *wsTransport) SetWriteDeadline(d time.Time) error {
	return t.ws.SetWriteDeadline(d)
}

func (t *wsTransport) Close() error {
	t.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return t.ws.Close()
}
