package transport

import (
	"context"
	"net"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func listenerEndpoint(t *testing.T, ln net.Listener) Endpoint {
	t.Helper()
	ep, err := ParseEndpoint(ln.Addr().String())
	require.NoError(t, err)
	return ep
}

// closedPort returns a loopback port with no listener behind it.
func closedPort(t *testing.T) Endpoint {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ep := listenerEndpoint(t, ln)
	require.NoError(t, ln.Close())
	return ep
}

// trackedConn records whether Close was called.
type trackedConn struct {
	net.Conn
	closed atomic.Bool
}

func (c *trackedConn) Close() error {
	c.closed.Store(true)
	return c.Conn.Close()
}

func TestDialer_ConnectSuccess(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err == nil {
			accepted <- c
		}
	}()

	d, err := NewDialer(NetworkTCP, time.Second)
	require.NoError(t, err)

	start := time.Now()
	conn, err := d.Connect(context.Background(), listenerEndpoint(t, ln), time.Second)
	require.NoError(t, err)
	defer conn.Close()
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, ln.Addr().String(), conn.RemoteAddr())

	select {
	case c := <-accepted:
		c.Close()
	case <-time.After(time.Second):
		t.Fatal("listener never accepted")
	}
}

func TestDialer_ConnectRefused(t *testing.T) {
	ep := closedPort(t)
	d := &Dialer{}

	start := time.Now()
	conn, err := d.Connect(context.Background(), ep, time.Second)
	require.Error(t, err)
	assert.Nil(t, conn)
	assert.ErrorIs(t, err, ErrConnectError)
	assert.Less(t, time.Since(start), time.Second, "refusal should not wait for the deadline")
}

func TestDialer_ConnectTimeout(t *testing.T) {
	d := &Dialer{
		DialContext: func(ctx context.Context, network, address string) (net.Conn, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}

	start := time.Now()
	_, err := d.Connect(context.Background(), Endpoint{Host: "192.0.2.1", Port: 8001}, 100*time.Millisecond)
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConnectTimeout)
	assert.GreaterOrEqual(t, elapsed, 90*time.Millisecond)
	assert.Less(t, elapsed, time.Second)
}

func TestDialer_LateDialIsReaped(t *testing.T) {
	c1, c2 := net.Pipe()
	defer c2.Close()
	late := &trackedConn{Conn: c1}

	release := make(chan struct{})
	d := &Dialer{
		// Ignores ctx, like a connect that the OS cannot interrupt.
		DialContext: func(ctx context.Context, network, address string) (net.Conn, error) {
			<-release
			return late, nil
		},
	}

	_, err := d.Connect(context.Background(), Endpoint{Host: "192.0.2.1", Port: 8001}, 50*time.Millisecond)
	require.ErrorIs(t, err, ErrConnectTimeout)

	close(release)
	assert.Eventually(t, late.closed.Load, time.Second, 10*time.Millisecond,
		"a connection completing after the deadline must be closed")
}

func TestDialer_ParentContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dialer{
		DialContext: func(ctx context.Context, network, address string) (net.Conn, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := d.Connect(ctx, Endpoint{Host: "192.0.2.1", Port: 8001}, time.Second)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, KindUnknown, KindOf(err), "cancellation is not a connect failure")
	assert.NotErrorIs(t, err, ErrConnectError)
	assert.NotErrorIs(t, err, ErrConnectTimeout)
}

func TestDialer_FilteredOrUnreachable(t *testing.T) {
	if testing.Short() {
		t.Skip("touches the real network stack")
	}
	// TEST-NET-1 is never routed; depending on the host the attempt either
	// hangs (timeout) or is rejected (unreachable). Either way it is bounded.
	d := &Dialer{}
	start := time.Now()
	_, err := d.Connect(context.Background(), Endpoint{Host: "192.0.2.1", Port: 8001}, 200*time.Millisecond)
	require.Error(t, err)
	assert.Contains(t, []Kind{KindConnectTimeout, KindConnectError}, KindOf(err))
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestDialer_RejectsBadInput(t *testing.T) {
	d := &Dialer{}
	ctx := context.Background()

	_, err := d.Connect(ctx, Endpoint{Host: "", Port: 1}, time.Second)
	assert.ErrorIs(t, err, ErrInvalidEndpoint)
	assert.ErrorIs(t, err, ErrConnectError)

	_, err = d.Connect(ctx, Endpoint{Host: "127.0.0.1", Port: 1}, 0)
	assert.ErrorIs(t, err, ErrInvalidTimeout)

	d.Network = "udp"
	_, err = d.Connect(ctx, Endpoint{Host: "127.0.0.1", Port: 1}, time.Second)
	assert.ErrorIs(t, err, ErrConnectError)
}

func TestDialer_IoTimeoutPropagates(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		c, err := ln.Accept()
		if err == nil {
			defer c.Close()
			time.Sleep(time.Second)
		}
	}()

	d, err := NewDialer(NetworkTCP4, 30*time.Millisecond)
	require.NoError(t, err)
	_, port, _ := net.SplitHostPort(ln.Addr().String())
	p, _ := strconv.Atoi(port)

	conn, err := d.Connect(context.Background(), Endpoint{Host: "127.0.0.1", Port: p}, time.Second)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Read(make([]byte, 4))
	assert.ErrorIs(t, err, ErrIoTimeout)
}
