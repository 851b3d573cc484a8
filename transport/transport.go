// Package transport provides the socket-facing half of a request/response cycle:
// a bidirectional byte stream with idempotent close, and a connector that opens
// it under a hard deadline.
//
// Everything above this layer (framing, the session state machine) talks to
// the Conn interface, which keeps the cycle testable without real sockets.
package transport

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// Conn abstracts one open byte stream.
//
// Thread safety: a Conn is owned by a single cycle. Close may be called from
// any goroutine and any number of times.
type Conn interface {
	// Write sends p. Fails with an IoTimeout *Error if the per-call timeout
	// (or a deadline set with SetWriteDeadline) expires first.
	Write(p []byte) (int, error)

	// Read reads up to len(p) bytes. (0, io.EOF) signals peer-initiated close.
	Read(p []byte) (int, error)

	// SetReadDeadline bounds all future reads. A zero time falls back to the
	// per-call I/O timeout.
	SetReadDeadline(t time.Time) error

	// SetWriteDeadline bounds all future writes.
	SetWriteDeadline(t time.Time) error

	// Close releases the OS handle. Calls after the first return nil.
	Close() error

	// RemoteAddr returns the remote endpoint address (for logging/debugging).
	RemoteAddr() string
}

// Endpoint identifies a remote TCP listener.
type Endpoint struct {
	Host string
	Port int
}

// Validate reports ErrInvalidEndpoint for an empty host or a port outside 1-65535.
func (e Endpoint) Validate() error {
	if e.Host == "" {
		return fmt.Errorf("%w: empty host", ErrInvalidEndpoint)
	}
	if e.Port < 1 || e.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalidEndpoint, e.Port)
	}
	return nil
}

// Address returns host:port, bracketing IPv6 literals.
func (e Endpoint) Address() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

func (e Endpoint) String() string { return e.Address() }

// ParseEndpoint splits "host:port" into an Endpoint and validates it.
func ParseEndpoint(addr string) (Endpoint, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return Endpoint{}, fmt.Errorf("%w: %v", ErrInvalidEndpoint, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return Endpoint{}, fmt.Errorf("%w: port %q", ErrInvalidEndpoint, portStr)
	}
	ep := Endpoint{Host: host, Port: port}
	return ep, ep.Validate()
}
