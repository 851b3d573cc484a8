// Package protocol turns a transport.Conn byte stream into request/response
// messages. A message boundary is whatever the caller's Predicate says it is.
package protocol

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sockcycle/transport"
)

const (
	// DefaultChunkSize is the scratch buffer size used for each underlying read.
	DefaultChunkSize = 256

	// DefaultMaxResponseSize is a safety limit to avoid unbounded growth when a
	// peer never sends the completion marker.
	DefaultMaxResponseSize = 16 << 20 // 16 MiB
)

// Predicate reports whether received holds a complete message. It is always
// called with the whole accumulated buffer, never with just the last chunk,
// and never with an empty buffer.
type Predicate func(received []byte) (bool, error)

// Reader accumulates reads from a Conn until a Predicate is satisfied.
//
// A Reader holds no buffer between calls; each ReadUntil starts empty.
type Reader struct {
	conn      transport.Conn
	chunkSize int
	maxSize   int
}

// NewReader returns a Reader with DefaultChunkSize and DefaultMaxResponseSize.
func NewReader(conn transport.Conn) *Reader {
	return &Reader{
		conn:      conn,
		chunkSize: DefaultChunkSize,
		maxSize:   DefaultMaxResponseSize,
	}
}

// SetChunkSize sets the size of each underlying read. Non-positive values are ignored.
func (r *Reader) SetChunkSize(n int) {
	if n > 0 {
		r.chunkSize = n
	}
}

// SetMaxResponseSize caps the accumulated buffer. Non-positive values are ignored.
func (r *Reader) SetMaxResponseSize(n int) {
	if n > 0 {
		r.maxSize = n
	}
}

// ReadUntil reads until complete reports true on the accumulated bytes.
//
// timeout bounds the whole operation, not each read. A ctx deadline that
// falls earlier takes precedence, and cancelling ctx unblocks a pending read.
// On failure no partial data is returned:
//   - ReadTimeout: the deadline passed before complete returned true
//   - PeerClosed: the peer closed the stream (a zero-byte read)
//   - PredicateError: complete returned an error or panicked
//   - ResponseTooLarge: the buffer outgrew the configured maximum
func (r *Reader) ReadUntil(ctx context.Context, complete Predicate, timeout time.Duration) ([]byte, error) {
	addr := r.conn.RemoteAddr()
	if complete == nil {
		return nil, transport.NewError(transport.KindPredicateError, "read", addr, errors.New("nil predicate"))
	}
	if timeout <= 0 {
		return nil, transport.ErrInvalidTimeout
	}

	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	// A stream whose deadline cannot be set is already closed.
	if err := r.conn.SetReadDeadline(deadline); err != nil {
		return nil, peerClosed(addr, err)
	}
	defer r.conn.SetReadDeadline(time.Time{})

	// Pull the deadline in on cancellation so a blocked Read returns.
	stop := context.AfterFunc(ctx, func() {
		_ = r.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	scratch := make([]byte, r.chunkSize)
	var buf []byte
	for {
		if err := ctx.Err(); err != nil && !errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("read %s: %w", addr, err)
		}
		if !time.Now().Before(deadline) {
			return nil, transport.NewError(transport.KindReadTimeout, "read", addr, nil)
		}

		n, err := r.conn.Read(scratch)
		if n > 0 {
			buf = append(buf, scratch[:n]...)
			if len(buf) > r.maxSize {
				return nil, transport.NewError(transport.KindResponseTooLarge, "read", addr,
					fmt.Errorf("%d bytes exceeds limit %d", len(buf), r.maxSize))
			}
			done, perr := evaluate(complete, buf)
			if perr != nil {
				return nil, transport.NewError(transport.KindPredicateError, "read", addr, perr)
			}
			if done {
				return buf, nil
			}
		}

		switch {
		case err == nil && n == 0:
			return nil, peerClosed(addr, nil)
		case err == nil:
			continue
		case transport.IsTimeout(err):
			if cerr := ctx.Err(); cerr != nil && !errors.Is(cerr, context.DeadlineExceeded) {
				return nil, fmt.Errorf("read %s: %w", addr, cerr)
			}
			return nil, transport.NewError(transport.KindReadTimeout, "read", addr, err)
		default:
			// EOF, reset, broken pipe: nothing more will arrive on this stream.
			return nil, peerClosed(addr, err)
		}
	}
}

func peerClosed(addr string, err error) error {
	if transport.KindOf(err) == transport.KindPeerClosed {
		return err
	}
	return transport.NewError(transport.KindPeerClosed, "read", addr, err)
}

func evaluate(complete Predicate, buf []byte) (done bool, err error) {
	defer func() {
		if p := recover(); p != nil {
			done, err = false, fmt.Errorf("predicate panicked: %v", p)
		}
	}()
	return complete(buf)
}
