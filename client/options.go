package client

import (
	"time"

	"github.com/rs/zerolog"

	"sockcycle/protocol"
	"sockcycle/transport"
)

// ---------------------------------------------------------------------------
// Timeouts
// ---------------------------------------------------------------------------

const (
	defaultConnectTimeout = 1 * time.Second
	defaultWriteTimeout   = 1 * time.Second
	defaultReadTimeout    = 1 * time.Second
	defaultIOTimeout      = 5 * time.Second // safety net for calls without a deadline
)

// ---------------------------------------------------------------------------
// Buffers
// ---------------------------------------------------------------------------

const (
	defaultChunkSize       = protocol.DefaultChunkSize
	defaultMaxResponseSize = protocol.DefaultMaxResponseSize
)

// Options configures a Session. Zero-valued fields take defaults.
type Options struct {
	Network string // tcp, tcp4 or tcp6

	ConnectTimeout time.Duration
	WriteTimeout   time.Duration
	ReadTimeout    time.Duration
	IOTimeout      time.Duration

	ChunkSize       int
	MaxResponseSize int

	Socket transport.SocketOptions

	// Dial replaces the system dialer (tests).
	Dial transport.DialContextFunc

	// Logger receives state transitions at debug and failures at warn.
	// The zero value discards everything.
	Logger zerolog.Logger

	// OnTransition, if set, is called synchronously on every state change.
	OnTransition func(from, to State)
}

// applyDefaults fills zero-valued fields with sensible defaults.
func (o *Options) applyDefaults() {
	if o.Network == "" {
		o.Network = transport.NetworkTCP
	}
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = defaultConnectTimeout
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = defaultWriteTimeout
	}
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = defaultReadTimeout
	}
	if o.IOTimeout <= 0 {
		o.IOTimeout = defaultIOTimeout
	}
	if o.ChunkSize <= 0 {
		o.ChunkSize = defaultChunkSize
	}
	if o.MaxResponseSize <= 0 {
		o.MaxResponseSize = defaultMaxResponseSize
	}
}
