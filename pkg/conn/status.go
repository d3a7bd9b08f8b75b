package conn

import "sync"

// Status is the lifecycle state of one physical service connection.
type Status int

const (
	StatusInitialized Status = iota
	StatusConnecting
	StatusConnected
	StatusDraining
	StatusDisconnected
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusInitialized:
		return "Initialized"
	case StatusConnecting:
		return "Connecting"
	case StatusConnected:
		return "Connected"
	case StatusDraining:
		return "Draining"
	case StatusDisconnected:
		return "Disconnected"
	default:
		return "Unknown"
	}
}

// StatusChange is one transition of one connection.
type StatusChange struct {
	ConnectionID string
	Old, New     Status
}

// statusNotifier fans status transitions out to subscribers. Each
// subscriber gets a buffered channel; when a subscriber falls behind, the
// oldest undelivered event is dropped so publishers never block.
type statusNotifier struct {
	mu   sync.Mutex
	subs []chan StatusChange
}

// subscribe registers a new subscriber with the given buffer size.
func (n *statusNotifier) subscribe(buffer int) <-chan StatusChange {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan StatusChange, buffer)
	n.mu.Lock()
	n.subs = append(n.subs, ch)
	n.mu.Unlock()
	return ch
}

// publish delivers a change to every subscriber without blocking.
func (n *statusNotifier) publish(change StatusChange) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, ch := range n.subs {
		for {
			select {
			case ch <- change:
			default:
				// Full: drop the oldest event and retry.
				select {
				case <-ch:
				default:
				}
				continue
			}
			break
		}
	}
}

// close closes every subscriber channel.
func (n *statusNotifier) close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, ch := range n.subs {
		close(ch)
	}
	n.subs = nil
}
