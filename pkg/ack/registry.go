// Package ack tracks acknowledgeable operations in flight on a service
// connection. The write path allocates an id and a waiter before sending a
// *WithAck message; the read loop resolves the waiter when the matching
// Ack frame arrives. Waiters that never resolve are expired by a
// background sweeper.
package ack

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cqnguy23/azure-signalr/pkg/protocol"
)

const (
	// DefaultTimeout is how long a waiter stays pending before the
	// sweeper expires it.
	DefaultTimeout = 5 * time.Second

	// sweepInterval is how often the sweeper scans for expired waiters.
	sweepInterval = 500 * time.Millisecond
)

// Sentinel errors returned by waiters and registry operations.
var (
	ErrTimeout               = errors.New("ack: acknowledgment timed out")
	ErrUnknownID             = errors.New("ack: unknown ack id")
	ErrExpectedCountSet      = errors.New("ack: expected count already set")
	ErrExpectedCountExceeded = errors.New("ack: more acks received than expected count")
)

// Result is the resolution of one acknowledgeable operation.
type Result struct {
	Status  protocol.AckStatus
	Message string
	Payload []byte
}

// Outcome interprets the service status the way callers of existence and
// group operations expect: Ok means the operation succeeded (or the
// queried entity exists), NotFound means it cleanly did not. Timeout and
// InternalServerError both mean the service gave up on the operation, so
// both surface as ErrTimeout.
func (r Result) Outcome() (bool, error) {
	switch r.Status {
	case protocol.AckOk:
		return true, nil
	case protocol.AckNotFound:
		return false, nil
	case protocol.AckTimeout, protocol.AckInternalServerError:
		return false, ErrTimeout
	default:
		if r.Message != "" {
			return false, fmt.Errorf("ack: service returned %s: %s", r.Status, r.Message)
		}
		return false, fmt.Errorf("ack: service returned %s", r.Status)
	}
}

// Waiter is the receive side of one pending acknowledgment.
type Waiter struct {
	id int64
	ch chan Result
}

// ID returns the ack id to embed in the outgoing message.
func (w *Waiter) ID() int64 {
	return w.id
}

// Wait blocks until the acknowledgment resolves, the context is done, or
// the registry is closed.
func (w *Waiter) Wait(ctx context.Context) (Result, error) {
	select {
	case res := <-w.ch:
		return res, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// entry is the registry-side state for one pending acknowledgment.
type entry struct {
	deadline time.Time
	ch       chan Result

	mu       sync.Mutex
	multi    bool
	expected int // 0 until SetExpectedCount for multi entries
	received int
	done     bool
}

// resolve delivers the result exactly once.
func (e *entry) resolve(res Result) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.resolveLocked(res)
}

func (e *entry) resolveLocked(res Result) bool {
	if e.done {
		return false
	}
	e.done = true
	e.ch <- res
	return true
}

// Registry allocates ack ids and routes Ack frames back to their waiters.
// All methods are safe for concurrent use.
type Registry struct {
	timeout time.Duration
	logger  *slog.Logger

	nextID  atomic.Int64
	entries sync.Map // int64 -> *entry

	closeOnce sync.Once
	closed    atomic.Bool
	done      chan struct{}
}

// NewRegistry creates a registry and starts its expiry sweeper. timeout
// zero selects DefaultTimeout. The sweeper runs until Close.
func NewRegistry(timeout time.Duration, logger *slog.Logger) *Registry {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		timeout: timeout,
		logger:  logger,
		done:    make(chan struct{}),
	}
	go r.sweepLoop()
	return r
}

// NewAck allocates an id resolved by the first matching Ack frame.
func (r *Registry) NewAck() *Waiter {
	return r.create(false)
}

// NewMultiAck allocates an id resolved once SetExpectedCount acks have
// arrived. Acks may arrive before the expected count is known.
func (r *Registry) NewMultiAck() *Waiter {
	return r.create(true)
}

func (r *Registry) create(multi bool) *Waiter {
	id := r.nextID.Add(1)
	ch := make(chan Result, 1)
	if r.closed.Load() {
		// A closed registry resolves new waiters immediately so that
		// shutdown paths never hang on in-flight operations.
		ch <- Result{Status: protocol.AckOk}
		return &Waiter{id: id, ch: ch}
	}
	e := &entry{
		deadline: time.Now().Add(r.timeout),
		ch:       ch,
		multi:    multi,
	}
	r.entries.Store(id, e)
	return &Waiter{id: id, ch: ch}
}

// SetExpectedCount fixes how many acks a multi waiter needs. It may be
// called after some acks have already arrived; if exactly that many are
// in, the waiter resolves immediately. Calling it twice for the same id,
// or with a count the received acks already exceed, is an error.
func (r *Registry) SetExpectedCount(id int64, count int) error {
	v, ok := r.entries.Load(id)
	if !ok {
		return ErrUnknownID
	}
	e := v.(*entry)

	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.multi || e.expected != 0 {
		return ErrExpectedCountSet
	}
	if count <= 0 {
		count = 1
	}
	if e.received > count {
		return ErrExpectedCountExceeded
	}
	e.expected = count
	if e.received >= e.expected {
		if e.resolveLocked(Result{Status: protocol.AckOk}) {
			r.entries.Delete(id)
		}
	}
	return nil
}

// Complete routes an incoming Ack frame to its waiter. Unknown ids are
// ignored; the waiter may already have expired.
func (r *Registry) Complete(m *protocol.AckMessage) {
	v, ok := r.entries.Load(m.AckID)
	if !ok {
		return
	}
	e := v.(*entry)
	res := Result{Status: m.Status, Message: m.Message, Payload: m.Payload}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.done {
		return
	}
	if e.multi && m.Status == protocol.AckOk {
		e.received++
		if e.expected == 0 || e.received < e.expected {
			return
		}
	}
	if e.resolveLocked(res) {
		r.entries.Delete(m.AckID)
	}
}

// Pending returns the number of unresolved waiters.
func (r *Registry) Pending() int {
	n := 0
	r.entries.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Close expires every pending waiter with a timeout result and stops the
// sweeper. Waiters created after Close resolve immediately with Ok.
func (r *Registry) Close() {
	r.closeOnce.Do(func() {
		r.closed.Store(true)
		close(r.done)
		r.expire(func(*entry) bool { return true })
	})
}

func (r *Registry) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			now := time.Now()
			r.expire(func(e *entry) bool { return now.After(e.deadline) })
		case <-r.done:
			return
		}
	}
}

// expire resolves every entry matched by shouldExpire with a timeout
// result. A partially met multi waiter expires like any other.
func (r *Registry) expire(shouldExpire func(*entry) bool) {
	r.entries.Range(func(k, v any) bool {
		e := v.(*entry)
		if !shouldExpire(e) {
			return true
		}
		if e.resolve(Result{Status: protocol.AckTimeout}) {
			r.entries.Delete(k)
			r.logger.Debug("ack expired", "ackId", k)
		}
		return true
	})
}
