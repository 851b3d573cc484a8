package transport

import (
	"errors"
	"io"
	"net"
	"os"
	"sync"
	"syscall"
	"time"
)

// TcpConn implements Conn over a net.Conn.
//
// Each Read/Write uses the explicit deadline when one is set, otherwise
// now+ioTimeout. A zero ioTimeout and no deadline means the call may block.
type TcpConn struct {
	conn      net.Conn
	addr      string
	ioTimeout time.Duration

	dlMu          sync.Mutex
	readDeadline  time.Time
	writeDeadline time.Time

	closed  bool
	closeMu sync.Mutex
}

// NewTcpConn wraps an established connection.
func NewTcpConn(conn net.Conn, ioTimeout time.Duration) *TcpConn {
	addr := ""
	if ra := conn.RemoteAddr(); ra != nil {
		addr = ra.String()
	}
	return &TcpConn{conn: conn, addr: addr, ioTimeout: ioTimeout}
}

func (t *TcpConn) isClosed() bool {
	t.closeMu.Lock()
	defer t.closeMu.Unlock()
	return t.closed
}

// Write sends p in full or fails.
func (t *TcpConn) Write(p []byte) (int, error) {
	if t.isClosed() {
		return 0, ErrClosed
	}
	t.dlMu.Lock()
	dl := t.effective(t.writeDeadline)
	t.dlMu.Unlock()
	if err := t.conn.SetWriteDeadline(dl); err != nil {
		return 0, t.deadlineFailure("write", err)
	}
	n, err := t.conn.Write(p)
	return n, t.classify("write", err)
}

// Read reads whatever is available, up to len(p).
func (t *TcpConn) Read(p []byte) (int, error) {
	if t.isClosed() {
		return 0, ErrClosed
	}
	t.dlMu.Lock()
	dl := t.effective(t.readDeadline)
	t.dlMu.Unlock()
	if err := t.conn.SetReadDeadline(dl); err != nil {
		return 0, t.deadlineFailure("read", err)
	}
	n, err := t.conn.Read(p)
	return n, t.classify("read", err)
}

func (t *TcpConn) SetReadDeadline(dl time.Time) error {
	t.dlMu.Lock()
	t.readDeadline = dl
	t.dlMu.Unlock()
	// Apply immediately too so a concurrent blocked Read observes it.
	if err := t.conn.SetReadDeadline(t.effective(dl)); err != nil {
		return t.deadlineFailure("read", err)
	}
	return nil
}

func (t *TcpConn) SetWriteDeadline(dl time.Time) error {
	t.dlMu.Lock()
	t.writeDeadline = dl
	t.dlMu.Unlock()
	if err := t.conn.SetWriteDeadline(t.effective(dl)); err != nil {
		return t.deadlineFailure("write", err)
	}
	return nil
}

// Close terminates the connection. Safe to call more than once.
func (t *TcpConn) Close() error {
	t.closeMu.Lock()
	defer t.closeMu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true
	return t.conn.Close()
}

// RemoteAddr returns the remote address.
func (t *TcpConn) RemoteAddr() string { return t.addr }

func (t *TcpConn) effective(dl time.Time) time.Time {
	if !dl.IsZero() || t.ioTimeout <= 0 {
		return dl
	}
	return time.Now().Add(t.ioTimeout)
}

func (t *TcpConn) classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsTimeout(err) {
		return NewError(KindIoTimeout, op, t.addr, err)
	}
	if errors.Is(err, net.ErrClosed) && t.isClosed() {
		return ErrClosed
	}
	if peerGone(err) {
		return NewError(KindPeerClosed, op, t.addr, err)
	}
	return err
}

// deadlineFailure classifies a failed Set*Deadline. Both TCP sockets and
// pipes only refuse a deadline once the stream is closed.
func (t *TcpConn) deadlineFailure(op string, err error) error {
	if t.isClosed() {
		return ErrClosed
	}
	return NewError(KindPeerClosed, op, t.addr, err)
}

// peerGone reports errors meaning the remote end has gone away. io.EOF is
// left alone so Read keeps the io.Reader contract.
func peerGone(err error) bool {
	return errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, syscall.EPIPE)
}

// IsTimeout reports whether err is a deadline or I/O timeout.
func IsTimeout(err error) bool {
	if KindOf(err) == KindIoTimeout || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
