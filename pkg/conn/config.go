package conn

import (
	"log/slog"
	"net/http"
	"time"
)

// Config holds configuration for service connections and containers.
type Config struct {
	// Endpoint

	// URL is the service endpoint to dial (e.g. "wss://host/server/").
	URL string

	// ServerID identifies this server instance to the service.
	ServerID string

	// Headers are sent with the dial request (authorization and the like).
	Headers http.Header

	// Container

	// ConnectionCount is the number of parallel physical connections the
	// container maintains.
	// Default: 5.
	ConnectionCount int

	// Timeouts

	// HandshakeTimeout is the maximum time for dial plus handshake.
	// Default: 15 seconds.
	HandshakeTimeout time.Duration

	// WriteTimeout is the maximum time to wait when sending a frame.
	// Default: 10 seconds.
	WriteTimeout time.Duration

	// KeepAliveInterval is the time between keepalive pings.
	// Default: 5 seconds.
	KeepAliveInterval time.Duration

	// ServiceTimeout is how long the connection tolerates silence from
	// the service before it considers the link dead.
	// Default: 30 seconds.
	ServiceTimeout time.Duration

	// AckTimeout is how long acknowledgeable operations stay pending.
	// Default: 5 seconds.
	AckTimeout time.Duration

	// OfflineTimeout is how long a graceful offline waits for the
	// service's finack before giving up.
	// Default: 5 seconds.
	OfflineTimeout time.Duration

	// ReconnectDelay is the base delay before a dropped connection is
	// re-established. Each consecutive failure doubles it up to
	// MaxReconnectDelay.
	// Default: 1 second.
	ReconnectDelay time.Duration

	// MaxReconnectDelay caps the reconnect backoff.
	// Default: 1 minute.
	MaxReconnectDelay time.Duration

	// Limits

	// MaxMessageSize is the maximum size of an incoming transport message.
	// Default: 16MB (the frame ceiling).
	MaxMessageSize int64

	// OutboundQueue is the size of the outbound frame buffer.
	// Default: 256.
	OutboundQueue int

	// Handshake options

	// MigrationLevel advertises client-migration support: 0 none,
	// 1 migrate on graceful shutdown, 2 migrate on any disconnect.
	// Default: 1.
	MigrationLevel int64

	// AllowStatefulReconnects advertises stateful client reconnects.
	// Default: false.
	AllowStatefulReconnects bool

	// Logger receives structured connection logs.
	// Default: slog.Default().
	Logger *slog.Logger
}

// DefaultConfig returns a Config with sensible defaults. URL and ServerID
// must still be set by the caller.
func DefaultConfig() *Config {
	return &Config{
		ConnectionCount:   5,
		HandshakeTimeout:  15 * time.Second,
		WriteTimeout:      10 * time.Second,
		KeepAliveInterval: 5 * time.Second,
		ServiceTimeout:    30 * time.Second,
		AckTimeout:        5 * time.Second,
		OfflineTimeout:    5 * time.Second,
		ReconnectDelay:    time.Second,
		MaxReconnectDelay: time.Minute,
		MaxMessageSize:    16 * 1024 * 1024,
		OutboundQueue:     256,
		MigrationLevel:    1,
	}
}

// Clone returns a copy of the Config. Headers are shallow-copied.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	clone := *c
	if c.Headers != nil {
		clone.Headers = c.Headers.Clone()
	}
	return &clone
}

// logger returns the configured logger or the process default.
func (c *Config) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}
