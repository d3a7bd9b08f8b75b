package conn

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/cqnguy23/azure-signalr/pkg/ack"
	"github.com/cqnguy23/azure-signalr/pkg/protocol"
)

// Handler receives the data-plane messages a connection does not consume
// itself. Handshake responses, acks, and pings are handled internally;
// everything else lands here. Handlers run on the connection's read loop,
// so they must not block.
type Handler interface {
	HandleMessage(c *Connection, m protocol.ServiceMessage)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(c *Connection, m protocol.ServiceMessage)

// HandleMessage calls f.
func (f HandlerFunc) HandleMessage(c *Connection, m protocol.ServiceMessage) {
	f(c, m)
}

// Connection is one physical link to the service: dial, handshake, a read
// loop that decodes and dispatches frames, and a write loop that drains a
// FIFO queue and keeps the link alive.
type Connection struct {
	cfg     *Config
	logger  *slog.Logger
	dialer  Dialer
	handler Handler
	acks    *ack.Registry

	// id is the local identity of this physical connection, sent nowhere
	// but useful in logs. connectionID is assigned by the service in the
	// handshake response.
	id           string
	connectionID string

	kind   protocol.ConnectionKind
	target string

	notifier    *statusNotifier
	onRebalance func(instanceID string)

	mu     sync.Mutex
	tr     Transport
	status Status

	outbound  chan []byte
	done      chan struct{}
	closeOnce sync.Once

	initOnce sync.Once
	initDone chan struct{}
	initErr  error

	finack chan struct{}

	lastReceive   atomic.Int64 // unix nanos
	pendingEchoes sync.Map     // echo id -> *pendingEcho

	hasClients    atomic.Bool
	serverListing atomic.Pointer[ServerListing]
}

// ServerListing is the most recent servers-response from the service.
type ServerListing struct {
	Timestamp time.Time
	ServerIDs []string
}

// connectionOpts carries container-internal wiring for newConnection.
type connectionOpts struct {
	kind        protocol.ConnectionKind
	target      string
	acks        *ack.Registry
	notifier    *statusNotifier
	onRebalance func(instanceID string)
}

// NewConnection creates a default-kind connection with its own ack
// registry. Containers use newConnection to share theirs.
func NewConnection(cfg *Config, dialer Dialer, handler Handler) *Connection {
	return newConnection(cfg, dialer, handler, connectionOpts{
		acks: ack.NewRegistry(cfg.AckTimeout, cfg.logger()),
	})
}

func newConnection(cfg *Config, dialer Dialer, handler Handler, opts connectionOpts) *Connection {
	if opts.notifier == nil {
		opts.notifier = &statusNotifier{}
	}
	c := &Connection{
		cfg:         cfg,
		dialer:      dialer,
		handler:     handler,
		acks:        opts.acks,
		id:          uuid.NewString(),
		kind:        opts.kind,
		target:      opts.target,
		notifier:    opts.notifier,
		onRebalance: opts.onRebalance,
		outbound:    make(chan []byte, cfg.OutboundQueue),
		done:        make(chan struct{}),
		initDone:    make(chan struct{}),
		finack:      make(chan struct{}),
	}
	c.logger = cfg.logger().With("connection", c.id)
	return c
}

// ID returns the local connection identity.
func (c *Connection) ID() string {
	return c.id
}

// ConnectionID returns the service-assigned connection id. Empty until the
// handshake completes.
func (c *Connection) ConnectionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectionID
}

// Status returns the current lifecycle state.
func (c *Connection) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Acks exposes the registry resolving this connection's *WithAck
// operations.
func (c *Connection) Acks() *ack.Registry {
	return c.acks
}

// HasClients reports the service's last status-ping answer.
func (c *Connection) HasClients() bool {
	return c.hasClients.Load()
}

// Servers returns the most recent server listing, or nil if the service
// has not answered a servers ping yet.
func (c *Connection) Servers() *ServerListing {
	return c.serverListing.Load()
}

// Initialized returns a channel closed once the handshake has settled.
// InitErr reports how it settled.
func (c *Connection) Initialized() <-chan struct{} {
	return c.initDone
}

// InitErr returns nil if the handshake succeeded, or the failure. Only
// meaningful after Initialized is closed.
func (c *Connection) InitErr() error {
	select {
	case <-c.initDone:
		return c.initErr
	default:
		return ErrNotConnected
	}
}

// Done returns a channel closed when the connection has fully stopped.
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

func (c *Connection) setStatus(s Status) {
	c.mu.Lock()
	old := c.status
	c.status = s
	c.mu.Unlock()
	if old == s {
		return
	}
	if s == StatusConnected {
		metricActiveConnections.WithLabelValues(c.cfg.URL).Inc()
	} else if old == StatusConnected {
		metricActiveConnections.WithLabelValues(c.cfg.URL).Dec()
	}
	c.notifier.publish(StatusChange{ConnectionID: c.id, Old: old, New: s})
}

func (c *Connection) settleInit(err error) {
	c.initOnce.Do(func() {
		c.initErr = err
		close(c.initDone)
	})
}

// Run dials, handshakes, and serves the connection until the link drops,
// the context is canceled, or Stop is called. It always returns the reason
// the connection ended.
func (c *Connection) Run(ctx context.Context) error {
	c.setStatus(StatusConnecting)

	tr, rest, err := c.connect(ctx)
	if err != nil {
		metricConnectFailures.WithLabelValues(c.cfg.URL).Inc()
		c.setStatus(StatusDisconnected)
		c.settleInit(err)
		c.Stop()
		return err
	}

	c.mu.Lock()
	c.tr = tr
	c.mu.Unlock()

	metricConnects.WithLabelValues(c.cfg.URL).Inc()
	c.setStatus(StatusConnected)
	c.settleInit(nil)
	c.logger.Info("connected", "serviceConnectionId", c.ConnectionID(), "kind", c.kind.String())

	// The write loop owns the transport's write side until done closes.
	writeErr := make(chan error, 1)
	go func() { writeErr <- c.writeLoop(tr) }()

	readErr := make(chan error, 1)
	go func() { readErr <- c.readLoop(tr, rest) }()

	select {
	case err = <-readErr:
	case err = <-writeErr:
	case <-ctx.Done():
		err = ctx.Err()
	}

	c.Stop()
	tr.Close()
	<-c.done
	if err != nil {
		c.logger.Info("connection ended", "error", err)
	}
	return err
}

// connect dials the endpoint and performs the handshake. It returns any
// bytes the service sent past the handshake response, so the read loop
// starts with them instead of losing them.
func (c *Connection) connect(ctx context.Context) (Transport, []byte, error) {
	dialCtx, cancel := context.WithTimeout(ctx, c.cfg.HandshakeTimeout)
	defer cancel()

	tr, err := c.dialer.Dial(dialCtx, dialURL(c.cfg.URL, c.cfg.ServerID, c.target), c.cfg.Headers)
	if err != nil {
		return nil, nil, NewConnectionError(c.id, "dial", err)
	}

	rest, err := c.handshake(tr)
	if err != nil {
		tr.Close()
		return nil, nil, err
	}
	return tr, rest, nil
}

// handshake sends the request and waits for the response. A non-empty
// error message from the service is fatal for the attempt.
func (c *Connection) handshake(tr Transport) ([]byte, error) {
	req := &protocol.HandshakeRequest{
		Version:                 protocol.CurrentVersion,
		ConnectionType:          c.kind,
		Target:                  c.target,
		MigrationLevel:          c.cfg.MigrationLevel,
		AllowStatefulReconnects: c.cfg.AllowStatefulReconnects,
	}
	deadline := time.Now().Add(c.cfg.HandshakeTimeout)
	tr.SetWriteDeadline(deadline)
	if err := tr.WriteMessage(protocol.EncodeMessage(req)); err != nil {
		return nil, NewConnectionError(c.id, "handshake write", err)
	}

	var buf []byte
	for {
		tr.SetReadDeadline(deadline)
		data, err := tr.ReadMessage()
		if err != nil {
			return nil, NewConnectionError(c.id, "handshake read", err)
		}
		buf = append(buf, data...)

		msg, n, err := protocol.TryDecodeMessage(buf)
		if err == protocol.ErrNeedMoreData {
			continue
		}
		if err != nil {
			return nil, NewConnectionError(c.id, "handshake decode", err)
		}
		buf = buf[n:]

		resp, ok := msg.(*protocol.HandshakeResponse)
		if !ok {
			// The service speaks only after a successful handshake;
			// anything else here is a protocol violation.
			return nil, NewConnectionError(c.id, "handshake",
				fmt.Errorf("unexpected %s before handshake response", msg.Type()))
		}
		if resp.ErrorMessage != "" {
			return nil, &HandshakeError{Message: resp.ErrorMessage}
		}
		c.mu.Lock()
		c.connectionID = resp.ConnectionID
		c.mu.Unlock()
		c.lastReceive.Store(time.Now().UnixNano())
		// Frames batched behind the response belong to the read loop.
		return buf, nil
	}
}

// readLoop decodes frames off the transport and dispatches them, starting
// with any bytes left over from the handshake. Any decode error is fatal
// for the connection; the stream cannot be resynced past a corrupt frame
// boundary.
func (c *Connection) readLoop(tr Transport, buf []byte) error {
	for {
		for {
			msg, n, err := protocol.TryDecodeMessage(buf)
			if err == protocol.ErrNeedMoreData {
				break
			}
			if err != nil {
				metricDecodeErrors.WithLabelValues(c.cfg.URL).Inc()
				return NewConnectionError(c.id, "decode", err)
			}
			buf = buf[n:]
			metricMessagesReceived.WithLabelValues(c.cfg.URL).Inc()
			c.dispatch(msg)
		}
		if len(buf) == 0 {
			buf = nil
		}

		tr.SetReadDeadline(time.Now().Add(c.cfg.ServiceTimeout))
		data, err := tr.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
				return ErrConnectionClosed
			default:
			}
			return NewConnectionError(c.id, "read", err)
		}
		c.lastReceive.Store(time.Now().UnixNano())
		metricBytesReceived.WithLabelValues(c.cfg.URL).Add(float64(len(data)))
		buf = append(buf, data...)
	}
}

// dispatch routes one decoded message.
func (c *Connection) dispatch(msg protocol.ServiceMessage) {
	switch m := msg.(type) {
	case *protocol.AckMessage:
		c.acks.Complete(m)

	case *protocol.Ping:
		c.handlePing(m)

	case *protocol.HandshakeResponse:
		c.logger.Warn("handshake response after handshake", "error", m.ErrorMessage)

	case *protocol.ServiceEvent:
		c.logger.Info("service event",
			"objectType", m.ObjectType, "id", m.ID, "kind", m.Kind, "message", m.Message)
		c.handler.HandleMessage(c, m)

	default:
		c.handler.HandleMessage(c, msg)
	}
}

// handlePing answers or records every token of a service ping.
func (c *Connection) handlePing(p *protocol.Ping) {
	for _, info := range protocol.ParsePing(p) {
		switch info.Kind {
		case protocol.PingKeepAlive:
			// Liveness already recorded by the read loop.

		case protocol.PingEcho:
			if v, ok := c.pendingEchoes.LoadAndDelete(info.EchoID); ok {
				pe := v.(*pendingEcho)
				rtt := time.Since(pe.start)
				metricEchoRTT.WithLabelValues(c.cfg.URL).Observe(rtt.Seconds())
				pe.done <- rtt
			} else {
				// Not ours: reflect it back unchanged.
				c.Write(protocol.EchoPing(info.EchoID))
			}

		case protocol.PingStatusResponse:
			c.hasClients.Store(info.ActiveClients)

		case protocol.PingServersResponse:
			c.serverListing.Store(&ServerListing{
				Timestamp: time.Unix(info.Timestamp, 0),
				ServerIDs: info.Servers,
			})

		case protocol.PingOfflineAck:
			select {
			case <-c.finack:
			default:
				close(c.finack)
			}

		case protocol.PingRebalance:
			if c.onRebalance != nil {
				c.onRebalance(info.InstanceID)
			} else {
				c.logger.Warn("rebalance ping without container", "instance", info.InstanceID)
			}

		default:
			c.logger.Debug("unhandled ping", "kind", info.Kind.String())
		}
	}
}

// writeLoop drains the outbound queue in FIFO order and emits keepalive
// pings on idle.
func (c *Connection) writeLoop(tr Transport) error {
	ticker := time.NewTicker(c.cfg.KeepAliveInterval)
	defer ticker.Stop()

	keepalive := protocol.EncodeMessage(protocol.KeepAlivePing())

	for {
		select {
		case frame := <-c.outbound:
			if err := c.writeFrame(tr, frame); err != nil {
				return err
			}

		case <-ticker.C:
			last := time.Unix(0, c.lastReceive.Load())
			if time.Since(last) > c.cfg.ServiceTimeout {
				return NewConnectionError(c.id, "keepalive", ErrConnectionClosed)
			}
			if err := c.writeFrame(tr, keepalive); err != nil {
				return err
			}

		case <-c.done:
			return nil
		}
	}
}

func (c *Connection) writeFrame(tr Transport, frame []byte) error {
	tr.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	if err := tr.WriteMessage(frame); err != nil {
		return NewConnectionError(c.id, "write", err)
	}
	metricMessagesSent.WithLabelValues(c.cfg.URL).Inc()
	metricBytesSent.WithLabelValues(c.cfg.URL).Add(float64(len(frame)))
	return nil
}

// Write encodes a message and queues it for the write loop. It fails fast
// when the connection is closed or the queue is full; it never blocks.
func (c *Connection) Write(m protocol.ServiceMessage) error {
	frame := protocol.EncodeMessage(m)
	select {
	case <-c.done:
		return ErrConnectionClosed
	default:
	}
	select {
	case c.outbound <- frame:
		return nil
	case <-c.done:
		return ErrConnectionClosed
	default:
		return NewConnectionError(c.id, "write", ErrQueueFull)
	}
}

// SafeWrite is Write with failure reported as a boolean instead of an
// error, for hot paths that fail over instead of propagating.
func (c *Connection) SafeWrite(m protocol.ServiceMessage) bool {
	return c.Write(m) == nil
}

// pendingEcho tracks one in-flight echo ping.
type pendingEcho struct {
	start time.Time
	done  chan time.Duration // buffered 1
}

// Echo measures the round trip to the service with an echo ping.
func (c *Connection) Echo(ctx context.Context) (time.Duration, error) {
	id := uuid.NewString()
	pe := &pendingEcho{start: time.Now(), done: make(chan time.Duration, 1)}
	c.pendingEchoes.Store(id, pe)
	defer c.pendingEchoes.Delete(id)

	if err := c.Write(protocol.EchoPing(id)); err != nil {
		return 0, err
	}

	select {
	case rtt := <-pe.done:
		return rtt, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-c.done:
		return 0, ErrConnectionClosed
	}
}

// RequestStatus asks the service whether it holds clients for this
// endpoint. The answer arrives asynchronously; read it with HasClients.
func (c *Connection) RequestStatus() error {
	return c.Write(protocol.StatusRequestPing())
}

// RequestServers asks the service for the servers connected to this
// endpoint. The answer arrives asynchronously; read it with Servers.
func (c *Connection) RequestServers() error {
	return c.Write(protocol.ServersRequestPing())
}

// Offline asks the service to stop routing to this connection and waits
// for the finack. migrate selects client migration over dropping. The
// connection keeps serving in-flight traffic while draining; call Stop
// once the container is done with it.
func (c *Connection) Offline(ctx context.Context, migrate bool) error {
	c.setStatus(StatusDraining)
	if err := c.Write(protocol.OfflinePing(migrate)); err != nil {
		return err
	}

	timer := time.NewTimer(c.cfg.OfflineTimeout)
	defer timer.Stop()
	select {
	case <-c.finack:
		return nil
	case <-timer.C:
		return ErrOfflineTimeout
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return ErrConnectionClosed
	}
}

// dialURL builds the endpoint URL, identifying this server instance and,
// for on-demand connections, the target service instance.
func dialURL(endpoint, serverID, target string) string {
	u, err := url.Parse(endpoint)
	if err != nil {
		return endpoint
	}
	q := u.Query()
	if serverID != "" {
		q.Set("server", serverID)
	}
	if target != "" {
		q.Set("target", target)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// Stop tears the connection down. Idempotent.
func (c *Connection) Stop() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.mu.Lock()
		tr := c.tr
		c.mu.Unlock()
		if tr != nil {
			tr.Close()
		}
		c.setStatus(StatusDisconnected)
		c.settleInit(ErrConnectionClosed)
	})
}
