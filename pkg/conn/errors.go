package conn

import (
	"errors"
	"fmt"
)

// Sentinel errors for common connection and container error conditions.
var (
	// ErrConnectionClosed is returned when an operation is attempted on a
	// closed connection.
	ErrConnectionClosed = errors.New("conn: connection closed")

	// ErrNotConnected is returned when a write is attempted before the
	// handshake has completed.
	ErrNotConnected = errors.New("conn: not connected")

	// ErrQueueFull is returned when the outbound queue is full and a
	// message is dropped.
	ErrQueueFull = errors.New("conn: outbound queue full")

	// ErrHandshakeFailed is returned when the service rejects the
	// handshake.
	ErrHandshakeFailed = errors.New("conn: handshake failed")

	// ErrContainerStopped is returned when an operation is attempted on a
	// stopped container.
	ErrContainerStopped = errors.New("conn: container stopped")

	// ErrNoHealthyConnection is returned when every connection in the
	// container is unavailable.
	ErrNoHealthyConnection = errors.New("conn: no healthy connection")

	// ErrOfflineTimeout is returned when the service does not acknowledge
	// a graceful offline request in time.
	ErrOfflineTimeout = errors.New("conn: offline not acknowledged")
)

// ConnectionError wraps an error with connection context for debugging.
type ConnectionError struct {
	ConnectionID string
	Op           string // operation that failed
	Err          error  // underlying error
}

// Error returns the error message with connection context.
func (e *ConnectionError) Error() string {
	if e.ConnectionID == "" {
		return fmt.Sprintf("conn: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("conn: connection %s: %s: %v", e.ConnectionID, e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// NewConnectionError creates a new ConnectionError.
func NewConnectionError(connectionID, op string, err error) *ConnectionError {
	return &ConnectionError{
		ConnectionID: connectionID,
		Op:           op,
		Err:          err,
	}
}

// HandshakeError carries the service's rejection message verbatim.
type HandshakeError struct {
	Message string
}

// Error returns the error message.
func (e *HandshakeError) Error() string {
	return fmt.Sprintf("conn: handshake rejected: %s", e.Message)
}

// Unwrap returns ErrHandshakeFailed so callers can errors.Is against the
// sentinel.
func (e *HandshakeError) Unwrap() error {
	return ErrHandshakeFailed
}
