package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// DialContextFunc opens a raw connection. Injected to keep Dialer testable
// without real sockets; nil means a net.Dialer configured from Dialer fields.
type DialContextFunc func(ctx context.Context, network, address string) (net.Conn, error)

// SocketOptions are applied to the raw socket before connect.
type SocketOptions struct {
	NoDelay   bool
	KeepAlive bool
	// AbortiveClose sets SO_LINGER to 0 so Close sends RST instead of
	// lingering in TIME_WAIT.
	AbortiveClose bool
}

// Dialer opens connections with a hard connect deadline.
type Dialer struct {
	Network   string        // tcp, tcp4 or tcp6; empty means tcp
	IOTimeout time.Duration // per-call Read/Write timeout on the returned conn
	Socket    SocketOptions

	DialContext DialContextFunc
}

type dialResult struct {
	conn net.Conn
	err  error
}

// Connect opens a connection to ep, waiting at most timeout.
//
// On timeout the pending attempt is abandoned and any socket it later yields
// is closed. Exactly one handle is returned on success and none leak on failure.
func (d *Dialer) Connect(ctx context.Context, ep Endpoint, timeout time.Duration) (*TcpConn, error) {
	addr := ep.Address()
	if err := ep.Validate(); err != nil {
		return nil, NewError(KindConnectError, "connect", addr, err)
	}
	if timeout <= 0 {
		return nil, NewError(KindConnectError, "connect", addr, ErrInvalidTimeout)
	}
	network, err := normalizeNetwork(d.Network)
	if err != nil {
		return nil, NewError(KindConnectError, "connect", addr, err)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	dial := d.DialContext
	if dial == nil {
		nd := &net.Dialer{Timeout: timeout, Control: controlFunc(d.Socket)}
		if !d.Socket.KeepAlive {
			nd.KeepAlive = -1
		}
		dial = nd.DialContext
	}

	ch := make(chan dialResult, 1)
	go func() {
		c, err := dial(ctx, network, addr)
		ch <- dialResult{conn: c, err: err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			if r.conn != nil {
				_ = r.conn.Close()
			}
			return nil, classifyDial(ctx, addr, r.err)
		}
		return NewTcpConn(r.conn, d.IOTimeout), nil
	case <-ctx.Done():
		// The dial may still complete; reap it so the socket is released.
		go func() {
			if r := <-ch; r.conn != nil {
				_ = r.conn.Close()
			}
		}()
		return nil, classifyDial(ctx, addr, ctx.Err())
	}
}

// classifyDial maps a failed dial to a Kind. Cancellation by the caller is
// not a connect failure and comes back as a wrapped context.Canceled.
func classifyDial(ctx context.Context, addr string, err error) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return fmt.Errorf("connect %s: %w", addr, context.Canceled)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) || IsTimeout(err) {
		return NewError(KindConnectTimeout, "connect", addr, err)
	}
	return NewError(KindConnectError, "connect", addr, err)
}
