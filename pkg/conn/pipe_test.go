package conn

import (
	"context"
	"net"
	"net/http"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/cqnguy23/azure-signalr/pkg/protocol"
)

// pipeTransport is an in-memory Transport. Deadlines are ignored; tests
// bound waits themselves.
type pipeTransport struct {
	in  chan []byte
	out chan []byte

	closeOnce sync.Once
	closed    chan struct{}
}

func (p *pipeTransport) ReadMessage() ([]byte, error) {
	select {
	case data := <-p.in:
		return data, nil
	case <-p.closed:
		return nil, net.ErrClosed
	}
}

func (p *pipeTransport) WriteMessage(data []byte) error {
	select {
	case p.out <- data:
		return nil
	case <-p.closed:
		return net.ErrClosed
	}
}

func (p *pipeTransport) SetReadDeadline(time.Time) error  { return nil }
func (p *pipeTransport) SetWriteDeadline(time.Time) error { return nil }

func (p *pipeTransport) Close() error {
	p.closeOnce.Do(func() { close(p.closed) })
	return nil
}

// servicePeer is the service's end of a pipe transport.
type servicePeer struct {
	tr        *pipeTransport
	url       string
	buf       []byte
	handshake *protocol.HandshakeRequest
}

// send injects one encoded message toward the connection.
func (s *servicePeer) send(t *testing.T, m protocol.ServiceMessage) {
	t.Helper()
	select {
	case s.tr.in <- protocol.EncodeMessage(m):
	case <-s.tr.closed:
		t.Fatalf("send %s: transport closed", m.Type())
	case <-time.After(5 * time.Second):
		t.Fatalf("send %s: timed out", m.Type())
	}
}

// recv decodes the next message the connection wrote.
func (s *servicePeer) recv(t *testing.T) protocol.ServiceMessage {
	t.Helper()
	for {
		msg, n, err := protocol.TryDecodeMessage(s.buf)
		if err == nil {
			s.buf = s.buf[n:]
			return msg
		}
		if err != protocol.ErrNeedMoreData {
			t.Fatalf("recv: %v", err)
		}
		select {
		case data := <-s.tr.out:
			s.buf = append(s.buf, data...)
		case <-s.tr.closed:
			t.Fatalf("recv: transport closed")
		case <-time.After(5 * time.Second):
			t.Fatalf("recv: timed out")
		}
	}
}

// recvSkippingPings decodes the next non-ping message.
func (s *servicePeer) recvSkippingPings(t *testing.T) protocol.ServiceMessage {
	t.Helper()
	for {
		m := s.recv(t)
		if _, ok := m.(*protocol.Ping); !ok {
			return m
		}
	}
}

// dialQuery returns one query parameter from the dialed URL.
func (s *servicePeer) dialQuery(t *testing.T, key string) string {
	t.Helper()
	u, err := url.Parse(s.url)
	if err != nil {
		t.Fatalf("parse dialed url: %v", err)
	}
	return u.Query().Get(key)
}

// target returns the on-demand target from the dialed URL, if any.
func (s *servicePeer) target(t *testing.T) string {
	return s.dialQuery(t, "target")
}

// fakeService hands out pipe transports and optionally completes the
// handshake for each one.
type fakeService struct {
	rejectWith string // non-empty: reject every handshake

	// batchAfterHandshake is sent in the same transport message as the
	// handshake response, the way a busy service coalesces frames.
	batchAfterHandshake []protocol.ServiceMessage

	mu    sync.Mutex
	peers []*servicePeer
	ready chan *servicePeer
}

func newFakeService() *fakeService {
	return &fakeService{ready: make(chan *servicePeer, 16)}
}

func (f *fakeService) Dial(ctx context.Context, rawURL string, _ http.Header) (Transport, error) {
	tr := &pipeTransport{
		in:     make(chan []byte, 64),
		out:    make(chan []byte, 64),
		closed: make(chan struct{}),
	}
	peer := &servicePeer{tr: tr, url: rawURL}
	f.mu.Lock()
	f.peers = append(f.peers, peer)
	f.mu.Unlock()

	go f.serveHandshake(peer)
	return tr, nil
}

// serveHandshake consumes the handshake request and answers it.
func (f *fakeService) serveHandshake(peer *servicePeer) {
	var buf []byte
	for {
		select {
		case data := <-peer.tr.out:
			buf = append(buf, data...)
		case <-peer.tr.closed:
			return
		}
		msg, n, err := protocol.TryDecodeMessage(buf)
		if err == protocol.ErrNeedMoreData {
			continue
		}
		if err != nil {
			return
		}
		peer.buf = buf[n:]
		req, ok := msg.(*protocol.HandshakeRequest)
		if !ok {
			return
		}
		peer.handshake = req
		resp := &protocol.HandshakeResponse{ConnectionID: uuid.NewString()}
		if err := protocol.CheckVersion(req.Version); err != nil {
			resp = &protocol.HandshakeResponse{ErrorMessage: err.Error()}
		} else if f.rejectWith != "" {
			resp = &protocol.HandshakeResponse{ErrorMessage: f.rejectWith}
		}
		frame := protocol.EncodeMessage(resp)
		if resp.ErrorMessage == "" {
			for _, m := range f.batchAfterHandshake {
				frame = append(frame, protocol.EncodeMessage(m)...)
			}
		}
		select {
		case peer.tr.in <- frame:
		case <-peer.tr.closed:
			return
		}
		if resp.ErrorMessage == "" {
			f.ready <- peer
		}
		return
	}
}

// nextPeer waits for the next handshaken peer.
func (f *fakeService) nextPeer(t *testing.T) *servicePeer {
	t.Helper()
	select {
	case p := <-f.ready:
		return p
	case <-time.After(5 * time.Second):
		t.Fatal("no peer completed a handshake")
		return nil
	}
}

func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.URL = "ws://service.test/server/"
	cfg.ServerID = "server-test"
	cfg.ConnectionCount = 1
	cfg.OfflineTimeout = 200 * time.Millisecond
	cfg.ReconnectDelay = 10 * time.Millisecond
	return cfg
}
