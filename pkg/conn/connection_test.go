package conn

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cqnguy23/azure-signalr/pkg/protocol"
)

// startConnection runs a connection against a fresh fake service and
// returns it with its handshaken peer.
func startConnection(t *testing.T, cfg *Config, handler Handler) (*Connection, *servicePeer) {
	t.Helper()
	if handler == nil {
		handler = HandlerFunc(func(*Connection, protocol.ServiceMessage) {})
	}
	svc := newFakeService()
	c := NewConnection(cfg, svc, handler)
	go c.Run(context.Background())
	t.Cleanup(c.Stop)

	peer := svc.nextPeer(t)
	select {
	case <-c.Initialized():
	case <-time.After(5 * time.Second):
		t.Fatal("connection never initialized")
	}
	if err := c.InitErr(); err != nil {
		t.Fatalf("InitErr: %v", err)
	}
	return c, peer
}

func TestConnectionHandshake(t *testing.T) {
	c, peer := startConnection(t, testConfig(), nil)

	if c.Status() != StatusConnected {
		t.Errorf("status = %s, want Connected", c.Status())
	}
	if c.ConnectionID() == "" {
		t.Error("ConnectionID is empty after handshake")
	}

	req := peer.handshake
	if req == nil {
		t.Fatal("no handshake request recorded")
	}
	if req.Version != protocol.CurrentVersion {
		t.Errorf("advertised version = %d, want %d", req.Version, protocol.CurrentVersion)
	}
	if req.MigrationLevel != 1 {
		t.Errorf("migration level = %d, want 1", req.MigrationLevel)
	}
	if req.ConnectionType != protocol.ConnectionKindDefault {
		t.Errorf("connection type = %s, want Default", req.ConnectionType)
	}
	if got := peer.dialQuery(t, "server"); got != "server-test" {
		t.Errorf("dialed server id = %q, want %q", got, "server-test")
	}
}

func TestConnectionHandlesFramesBatchedWithHandshake(t *testing.T) {
	got := make(chan protocol.ServiceMessage, 8)
	handler := HandlerFunc(func(_ *Connection, m protocol.ServiceMessage) { got <- m })
	svc := newFakeService()
	svc.batchAfterHandshake = []protocol.ServiceMessage{
		&protocol.OpenConnection{ConnectionID: "client-1"},
		&protocol.ConnectionData{ConnectionID: "client-1", Payload: []byte("early")},
	}
	c := NewConnection(testConfig(), svc, handler)
	go c.Run(context.Background())
	t.Cleanup(c.Stop)
	svc.nextPeer(t)

	wantTypes := []protocol.MessageType{
		protocol.TypeOpenConnection,
		protocol.TypeConnectionData,
	}
	for _, want := range wantTypes {
		select {
		case m := <-got:
			if m.Type() != want {
				t.Errorf("dispatched %s, want %s", m.Type(), want)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("handler never saw %s batched behind the handshake", want)
		}
	}
}

func TestConnectionHandshakeRejected(t *testing.T) {
	svc := newFakeService()
	svc.rejectWith = "quota exceeded"
	c := NewConnection(testConfig(), svc, HandlerFunc(func(*Connection, protocol.ServiceMessage) {}))

	err := c.Run(context.Background())
	if !errors.Is(err, ErrHandshakeFailed) {
		t.Fatalf("Run: err = %v, want ErrHandshakeFailed", err)
	}
	var he *HandshakeError
	if !errors.As(err, &he) || he.Message != "quota exceeded" {
		t.Errorf("err = %v, want HandshakeError carrying the service message", err)
	}
	if got := c.InitErr(); !errors.Is(got, ErrHandshakeFailed) {
		t.Errorf("InitErr = %v, want ErrHandshakeFailed", got)
	}
}

func TestConnectionDispatchesDataPlane(t *testing.T) {
	got := make(chan protocol.ServiceMessage, 8)
	handler := HandlerFunc(func(_ *Connection, m protocol.ServiceMessage) { got <- m })
	_, peer := startConnection(t, testConfig(), handler)

	peer.send(t, &protocol.OpenConnection{ConnectionID: "client-1"})
	peer.send(t, &protocol.ConnectionData{ConnectionID: "client-1", Payload: []byte("hi")})
	peer.send(t, &protocol.CloseConnection{ConnectionID: "client-1"})

	wantTypes := []protocol.MessageType{
		protocol.TypeOpenConnection,
		protocol.TypeConnectionData,
		protocol.TypeCloseConnection,
	}
	for _, want := range wantTypes {
		select {
		case m := <-got:
			if m.Type() != want {
				t.Errorf("dispatched %s, want %s", m.Type(), want)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("handler never saw %s", want)
		}
	}
}

func TestConnectionAcksNeverReachHandler(t *testing.T) {
	got := make(chan protocol.ServiceMessage, 8)
	handler := HandlerFunc(func(_ *Connection, m protocol.ServiceMessage) { got <- m })
	c, peer := startConnection(t, testConfig(), handler)

	w := c.Acks().NewAck()
	if err := c.Write(&protocol.JoinGroupWithAck{ConnectionID: "c1", GroupName: "g1", AckID: w.ID()}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if m := peer.recvSkippingPings(t); m.Type() != protocol.TypeJoinGroupWithAck {
		t.Fatalf("service saw %s, want JoinGroupWithAck", m.Type())
	}
	peer.send(t, &protocol.AckMessage{AckID: w.ID(), Status: protocol.AckOk})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res, err := w.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if res.Status != protocol.AckOk {
		t.Errorf("status = %s, want Ok", res.Status)
	}
	select {
	case m := <-got:
		t.Errorf("handler saw %s, want nothing", m.Type())
	default:
	}
}

func TestConnectionEcho(t *testing.T) {
	c, peer := startConnection(t, testConfig(), nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		m := peer.recv(t)
		p, ok := m.(*protocol.Ping)
		if !ok {
			t.Errorf("service saw %s, want Ping", m.Type())
			return
		}
		// Reflect every token back, as the service does.
		peer.send(t, p)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	rtt, err := c.Echo(ctx)
	if err != nil {
		t.Fatalf("Echo: %v", err)
	}
	if rtt <= 0 {
		t.Errorf("rtt = %v, want > 0", rtt)
	}
	<-done
}

func TestConnectionReflectsForeignEcho(t *testing.T) {
	_, peer := startConnection(t, testConfig(), nil)

	peer.send(t, protocol.EchoPing("svc-originated"))

	m := peer.recvSkippingKeepalives(t)
	p, ok := m.(*protocol.Ping)
	if !ok {
		t.Fatalf("service saw %s, want Ping", m.Type())
	}
	infos := protocol.ParsePing(p)
	if len(infos) != 1 || infos[0].Kind != protocol.PingEcho || infos[0].EchoID != "svc-originated" {
		t.Errorf("reply = %+v, want echo svc-originated", infos)
	}
}

func TestConnectionStatusAndServersBookkeeping(t *testing.T) {
	c, peer := startConnection(t, testConfig(), nil)

	if c.HasClients() {
		t.Error("HasClients true before any status response")
	}
	peer.send(t, protocol.StatusResponsePing(true))
	waitCondition(t, func() bool { return c.HasClients() }, "HasClients")

	peer.send(t, protocol.ServersResponsePing(1700000000, []string{"srv-a", "srv-b"}))
	waitCondition(t, func() bool { return c.Servers() != nil }, "Servers")
	l := c.Servers()
	if len(l.ServerIDs) != 2 || l.ServerIDs[0] != "srv-a" {
		t.Errorf("servers = %v, want [srv-a srv-b]", l.ServerIDs)
	}
	if l.Timestamp.Unix() != 1700000000 {
		t.Errorf("timestamp = %v, want unix 1700000000", l.Timestamp)
	}
}

func TestConnectionOfflineFinack(t *testing.T) {
	c, peer := startConnection(t, testConfig(), nil)

	go func() {
		for {
			m := peer.recv(t)
			p, ok := m.(*protocol.Ping)
			if !ok {
				continue
			}
			for _, info := range protocol.ParsePing(p) {
				if info.Kind == protocol.PingOfflineRequest {
					if !info.Migrate {
						t.Errorf("offline request migrate = false, want true")
					}
					peer.send(t, protocol.OfflineAckPing())
					return
				}
			}
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Offline(ctx, true); err != nil {
		t.Fatalf("Offline: %v", err)
	}
	if c.Status() != StatusDraining {
		t.Errorf("status = %s, want Draining", c.Status())
	}
}

func TestConnectionOfflineTimeout(t *testing.T) {
	c, _ := startConnection(t, testConfig(), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Offline(ctx, false); !errors.Is(err, ErrOfflineTimeout) {
		t.Errorf("Offline: err = %v, want ErrOfflineTimeout", err)
	}
}

func TestConnectionDecodeErrorIsFatal(t *testing.T) {
	svc := newFakeService()
	c := NewConnection(testConfig(), svc, HandlerFunc(func(*Connection, protocol.ServiceMessage) {}))
	runErr := make(chan error, 1)
	go func() { runErr <- c.Run(context.Background()) }()
	t.Cleanup(c.Stop)

	peer := svc.nextPeer(t)
	<-c.Initialized()

	// A frame whose declared type is outside the known set.
	garbage := protocol.EncodeMessage(&protocol.Ping{})
	garbage[2] = 0xFF // corrupt the element tag
	select {
	case peer.tr.in <- garbage:
	case <-time.After(time.Second):
		t.Fatal("could not inject garbage")
	}

	select {
	case err := <-runErr:
		if err == nil {
			t.Fatal("Run returned nil after corrupt frame")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("connection survived a corrupt frame")
	}
}

func TestConnectionWriteAfterStop(t *testing.T) {
	c, _ := startConnection(t, testConfig(), nil)
	if !c.SafeWrite(protocol.KeepAlivePing()) {
		t.Error("SafeWrite = false while connected")
	}
	c.Stop()
	if err := c.Write(protocol.KeepAlivePing()); !errors.Is(err, ErrConnectionClosed) {
		t.Errorf("Write: err = %v, want ErrConnectionClosed", err)
	}
	if c.SafeWrite(protocol.KeepAlivePing()) {
		t.Error("SafeWrite = true after Stop")
	}
}

func TestConnectionStatusTransitions(t *testing.T) {
	svc := newFakeService()
	cfg := testConfig()
	c := NewConnection(cfg, svc, HandlerFunc(func(*Connection, protocol.ServiceMessage) {}))
	changes := c.notifier.subscribe(16)

	go c.Run(context.Background())
	<-c.Initialized()
	c.Stop()

	var seen []Status
	deadline := time.After(5 * time.Second)
	for len(seen) < 3 {
		select {
		case ch, ok := <-changes:
			if !ok {
				t.Fatalf("notifier closed early, saw %v", seen)
			}
			seen = append(seen, ch.New)
		case <-deadline:
			t.Fatalf("saw %v, want connecting/connected/disconnected", seen)
		}
	}
	want := []Status{StatusConnecting, StatusConnected, StatusDisconnected}
	for i, s := range want {
		if seen[i] != s {
			t.Errorf("transition %d = %s, want %s", i, seen[i], s)
		}
	}
}

// recvSkippingKeepalives returns the next ping that carries tokens, or
// any non-ping message.
func (s *servicePeer) recvSkippingKeepalives(t *testing.T) protocol.ServiceMessage {
	t.Helper()
	for {
		m := s.recv(t)
		if p, ok := m.(*protocol.Ping); ok && len(p.Messages) == 0 {
			continue
		}
		return m
	}
}

func waitCondition(t *testing.T, cond func() bool, what string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("%s never became true", what)
}
