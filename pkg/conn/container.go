package conn

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/cqnguy23/azure-signalr/internal/trace"
	"github.com/cqnguy23/azure-signalr/pkg/ack"
	"github.com/cqnguy23/azure-signalr/pkg/protocol"
)

// Container maintains a fixed set of physical connections to one service
// endpoint, restarts them with backoff when they drop, and spreads writes
// across the healthy ones. On-demand connections requested by the service
// through rebalance pings are added on top of the fixed set and not
// restarted when they end.
type Container struct {
	cfg     *Config
	dialer  Dialer
	handler Handler
	logger  *slog.Logger

	acks     *ack.Registry
	notifier *statusNotifier

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	fixed    []*Connection
	onDemand map[string]*Connection // keyed by target instance
	stopped  bool

	rr atomic.Uint64
}

// NewContainer creates a container for cfg.ConnectionCount connections.
// The config is cloned; later mutation by the caller has no effect.
func NewContainer(cfg *Config, dialer Dialer, handler Handler) *Container {
	cfg = cfg.Clone()
	if cfg.ConnectionCount <= 0 {
		cfg.ConnectionCount = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Container{
		cfg:      cfg,
		dialer:   dialer,
		handler:  handler,
		logger:   cfg.logger().With("endpoint", cfg.URL),
		acks:     ack.NewRegistry(cfg.AckTimeout, cfg.logger()),
		notifier: &statusNotifier{},
		ctx:      ctx,
		cancel:   cancel,
		onDemand: make(map[string]*Connection),
	}
}

// Acks exposes the shared registry resolving *WithAck operations.
func (t *Container) Acks() *ack.Registry {
	return t.acks
}

// SubscribeStatus returns a channel of connection status transitions.
// Slow subscribers lose the oldest undelivered events, never the newest.
func (t *Container) SubscribeStatus(buffer int) <-chan StatusChange {
	return t.notifier.subscribe(buffer)
}

// Start launches every fixed connection slot and waits until at least one
// handshake succeeds or the context is done. Slots keep reconnecting in
// the background either way.
func (t *Container) Start(ctx context.Context) error {
	ctx, span := trace.Start(ctx, "container.Start",
		trace.String("endpoint", t.cfg.URL),
		trace.Int("connections", t.cfg.ConnectionCount))
	defer span.End()

	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return ErrContainerStopped
	}
	first := make([]*Connection, t.cfg.ConnectionCount)
	for i := range first {
		c := t.newFixedConnection()
		first[i] = c
		t.fixed = append(t.fixed, c)
	}
	t.mu.Unlock()

	for i, c := range first {
		t.wg.Add(1)
		go t.supervise(i, c)
	}

	for _, c := range first {
		select {
		case <-c.Initialized():
			if c.InitErr() == nil {
				return nil
			}
		case <-ctx.Done():
			return ctx.Err()
		case <-t.ctx.Done():
			return ErrContainerStopped
		}
	}
	// Every first attempt failed; supervisors are still retrying.
	return ErrNoHealthyConnection
}

func (t *Container) newFixedConnection() *Connection {
	return newConnection(t.cfg, t.dialer, t.handler, connectionOpts{
		kind:        protocol.ConnectionKindDefault,
		acks:        t.acks,
		notifier:    t.notifier,
		onRebalance: t.addOnDemand,
	})
}

// supervise keeps one fixed slot connected, doubling the reconnect delay
// on consecutive failures and resetting it after a successful handshake.
func (t *Container) supervise(slot int, c *Connection) {
	defer t.wg.Done()
	delay := t.cfg.ReconnectDelay

	for {
		err := c.Run(t.ctx)
		if c.InitErr() == nil {
			delay = t.cfg.ReconnectDelay
		}
		select {
		case <-t.ctx.Done():
			return
		default:
		}
		t.logger.Warn("connection lost, reconnecting",
			"slot", slot, "delay", delay, "error", err)

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-t.ctx.Done():
			timer.Stop()
			return
		}
		if delay *= 2; delay > t.cfg.MaxReconnectDelay {
			delay = t.cfg.MaxReconnectDelay
		}

		c = t.newFixedConnection()
		t.mu.Lock()
		if t.stopped {
			t.mu.Unlock()
			return
		}
		t.fixed[slot] = c
		t.mu.Unlock()
	}
}

// addOnDemand opens an extra connection toward the instance named in a
// rebalance ping. One on-demand connection per target at a time.
func (t *Container) addOnDemand(target string) {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	if prev, ok := t.onDemand[target]; ok {
		select {
		case <-prev.Done():
			// Ended; replace it below.
		default:
			t.mu.Unlock()
			return
		}
	}
	c := newConnection(t.cfg, t.dialer, t.handler, connectionOpts{
		kind:     protocol.ConnectionKindOnDemand,
		target:   target,
		acks:     t.acks,
		notifier: t.notifier,
	})
	t.onDemand[target] = c
	t.mu.Unlock()

	t.logger.Info("opening on-demand connection", "target", target)
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		c.Run(t.ctx)
		t.mu.Lock()
		if t.onDemand[target] == c {
			delete(t.onDemand, target)
		}
		t.mu.Unlock()
	}()
}

// connections snapshots every live connection, fixed first.
func (t *Container) connections() []*Connection {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*Connection, 0, len(t.fixed)+len(t.onDemand))
	out = append(out, t.fixed...)
	for _, c := range t.onDemand {
		out = append(out, c)
	}
	return out
}

// HasConnected reports whether any connection is currently connected.
func (t *Container) HasConnected() bool {
	for _, c := range t.connections() {
		if c.Status() == StatusConnected {
			return true
		}
	}
	return false
}

// candidates returns every connection in try order, starting at index
// start and wrapping around.
func (t *Container) candidates(start uint64) []*Connection {
	conns := t.connections()
	if len(conns) == 0 {
		return nil
	}
	out := make([]*Connection, 0, len(conns))
	for i := 0; i < len(conns); i++ {
		out = append(out, conns[(int(start)+i)%len(conns)])
	}
	return out
}

// Write sends a message on one healthy connection, trying the next one on
// failure.
func (t *Container) Write(m protocol.ServiceMessage) error {
	return t.writeFrom(t.rr.Add(1), m)
}

// SafeWrite is Write with failure reported as a boolean instead of an
// error.
func (t *Container) SafeWrite(m protocol.ServiceMessage) bool {
	return t.Write(m) == nil
}

// WriteWithRouting sends a message on the connection that key hashes to,
// so messages for one client stay in order on one link. Failover to the
// next connection only when the home connection is unusable.
func (t *Container) WriteWithRouting(key string, m protocol.ServiceMessage) error {
	return t.writeFrom(stickyHash(key), m)
}

// stickyHash maps a routing key to its home connection index space.
func stickyHash(key string) uint64 {
	return xxhash.Sum64String(key)
}

func (t *Container) writeFrom(start uint64, m protocol.ServiceMessage) error {
	t.mu.Lock()
	stopped := t.stopped
	t.mu.Unlock()
	if stopped {
		return ErrContainerStopped
	}

	var lastErr error
	for _, c := range t.candidates(start) {
		if c.Status() != StatusConnected {
			continue
		}
		if err := c.Write(m); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	if lastErr != nil {
		return lastErr
	}
	return ErrNoHealthyConnection
}

// WriteAckable allocates an ack id, sends the message build returns, and
// waits for the service's acknowledgment.
func (t *Container) WriteAckable(ctx context.Context, build func(ackID int64) protocol.ServiceMessage) (ack.Result, error) {
	w := t.acks.NewAck()
	if err := t.Write(build(w.ID())); err != nil {
		return ack.Result{}, err
	}
	return w.Wait(ctx)
}

// WriteBroadcastAckable sends the message build returns on every
// connected link and waits until each has been acknowledged. Operations
// like CloseConnectionsWithAck must reach every physical connection.
func (t *Container) WriteBroadcastAckable(ctx context.Context, build func(ackID int64) protocol.ServiceMessage) (ack.Result, error) {
	w := t.acks.NewMultiAck()
	m := build(w.ID())

	sent := 0
	for _, c := range t.connections() {
		if c.Status() != StatusConnected {
			continue
		}
		if err := c.Write(m); err == nil {
			sent++
		}
	}
	if sent == 0 {
		return ack.Result{}, ErrNoHealthyConnection
	}
	if err := t.acks.SetExpectedCount(w.ID(), sent); err != nil {
		return ack.Result{}, err
	}
	return w.Wait(ctx)
}

// JoinGroupWithAck adds a client connection to a group and waits for the
// service to confirm.
func (t *Container) JoinGroupWithAck(ctx context.Context, connectionID, group string) error {
	res, err := t.WriteAckable(ctx, func(id int64) protocol.ServiceMessage {
		return &protocol.JoinGroupWithAck{ConnectionID: connectionID, GroupName: group, AckID: id}
	})
	if err != nil {
		return err
	}
	_, err = res.Outcome()
	return err
}

// LeaveGroupWithAck removes a client connection from a group and waits
// for the service to confirm.
func (t *Container) LeaveGroupWithAck(ctx context.Context, connectionID, group string) error {
	res, err := t.WriteAckable(ctx, func(id int64) protocol.ServiceMessage {
		return &protocol.LeaveGroupWithAck{ConnectionID: connectionID, GroupName: group, AckID: id}
	})
	if err != nil {
		return err
	}
	_, err = res.Outcome()
	return err
}

// CheckConnectionExistence reports whether the service knows the client
// connection.
func (t *Container) CheckConnectionExistence(ctx context.Context, connectionID string) (bool, error) {
	res, err := t.WriteAckable(ctx, func(id int64) protocol.ServiceMessage {
		return &protocol.CheckConnectionExistenceWithAck{ConnectionID: connectionID, AckID: id}
	})
	if err != nil {
		return false, err
	}
	return res.Outcome()
}

// CheckUserExistence reports whether the user has any connection.
func (t *Container) CheckUserExistence(ctx context.Context, userID string) (bool, error) {
	res, err := t.WriteAckable(ctx, func(id int64) protocol.ServiceMessage {
		return &protocol.CheckUserExistenceWithAck{UserID: userID, AckID: id}
	})
	if err != nil {
		return false, err
	}
	return res.Outcome()
}

// CheckGroupExistence reports whether the group has any member.
func (t *Container) CheckGroupExistence(ctx context.Context, group string) (bool, error) {
	res, err := t.WriteAckable(ctx, func(id int64) protocol.ServiceMessage {
		return &protocol.CheckGroupExistenceWithAck{GroupName: group, AckID: id}
	})
	if err != nil {
		return false, err
	}
	return res.Outcome()
}

// CheckUserInGroup reports whether the user is in the group.
func (t *Container) CheckUserInGroup(ctx context.Context, userID, group string) (bool, error) {
	res, err := t.WriteAckable(ctx, func(id int64) protocol.ServiceMessage {
		return &protocol.CheckUserInGroupWithAck{UserID: userID, GroupName: group, AckID: id}
	})
	if err != nil {
		return false, err
	}
	return res.Outcome()
}

// QueryGroupMembers fetches one page of group members. An empty
// continuation token starts from the beginning; the returned page carries
// the token for the next call.
func (t *Container) QueryGroupMembers(ctx context.Context, group string, max int64, continuation string) (*protocol.GroupMemberPage, error) {
	res, err := t.WriteAckable(ctx, func(id int64) protocol.ServiceMessage {
		return &protocol.GroupMemberQuery{
			GroupName:         group,
			AckID:             id,
			Max:               max,
			ContinuationToken: continuation,
		}
	})
	if err != nil {
		return nil, err
	}
	if _, err := res.Outcome(); err != nil {
		return nil, err
	}
	return protocol.DecodeGroupMemberPage(res.Payload)
}

// ServerIDs returns the freshest server listing any connection has
// received, or nil. Call RequestServers first to refresh it.
func (t *Container) ServerIDs() []string {
	var best *ServerListing
	for _, c := range t.connections() {
		if l := c.Servers(); l != nil && (best == nil || l.Timestamp.After(best.Timestamp)) {
			best = l
		}
	}
	if best == nil {
		return nil
	}
	return best.ServerIDs
}

// RequestServers asks the service for the connected servers on one
// healthy connection.
func (t *Container) RequestServers() error {
	return t.Write(protocol.ServersRequestPing())
}

// Offline gracefully drains every connection: each sends the offline ping
// and waits for the service's finack before the container stops routing.
func (t *Container) Offline(ctx context.Context, migrate bool) error {
	mode := "drop"
	if migrate {
		mode = "migrate"
	}
	ctx, span := trace.Start(ctx, "container.Offline", trace.String("mode", mode))
	defer span.End()

	conns := t.connections()
	errs := make([]error, len(conns))
	var wg sync.WaitGroup
	for i, c := range conns {
		if c.Status() != StatusConnected {
			continue
		}
		wg.Add(1)
		go func(i int, c *Connection) {
			defer wg.Done()
			errs[i] = c.Offline(ctx, migrate)
		}(i, c)
	}
	wg.Wait()
	return errors.Join(errs...)
}

// Stop tears the container down: stops every connection, expires pending
// acks, and closes status subscriptions. Idempotent.
func (t *Container) Stop() {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	t.stopped = true
	t.mu.Unlock()

	t.cancel()
	for _, c := range t.connections() {
		c.Stop()
	}
	t.wg.Wait()
	t.acks.Close()
	t.notifier.close()
}
