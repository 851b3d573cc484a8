package protocol

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"sockcycle/transport"
)

// WriteAll sends payload in full, failing with a WriteError *transport.Error
// if the timeout passes or the connection breaks. A zero timeout leaves the
// connection's own per-call I/O timeout in charge. Cancelling ctx returns the
// wrapped context error unclassified.
func WriteAll(ctx context.Context, conn transport.Conn, payload []byte, timeout time.Duration) error {
	addr := conn.RemoteAddr()
	if timeout < 0 {
		return transport.NewError(transport.KindWriteError, "write", addr, transport.ErrInvalidTimeout)
	}

	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	if d, ok := ctx.Deadline(); ok && (deadline.IsZero() || d.Before(deadline)) {
		deadline = d
	}
	if err := conn.SetWriteDeadline(deadline); err != nil {
		return transport.NewError(transport.KindWriteError, "write", addr, err)
	}
	defer conn.SetWriteDeadline(time.Time{})

	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetWriteDeadline(time.Now())
	})
	defer stop()

	for len(payload) > 0 {
		n, err := conn.Write(payload)
		if err != nil {
			if cerr := ctx.Err(); errors.Is(cerr, context.Canceled) {
				return fmt.Errorf("write %s: %w", addr, cerr)
			}
			return transport.NewError(transport.KindWriteError, "write", addr, err)
		}
		if n == 0 {
			return transport.NewError(transport.KindWriteError, "write", addr, io.ErrShortWrite)
		}
		payload = payload[n:]
	}
	return nil
}
