package echoserver

import (
	"bufio"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func start(t *testing.T, opts Options) *Server {
	t.Helper()
	s, err := New(opts)
	require.NoError(t, err)
	require.NoError(t, s.Start())
	t.Cleanup(func() { _ = s.Shutdown() })
	return s
}

func TestServer_EchoesLines(t *testing.T) {
	s := start(t, Options{})

	conn, err := net.Dial("tcp", s.Addr())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("one\ntwo\n"))
	require.NoError(t, err)

	r := bufio.NewReader(conn)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	line, err := r.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "one\n", line)
	line, err = r.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "two\n", line)
}

func TestServer_CustomDelimiterAndChunks(t *testing.T) {
	etx := byte(0x03)
	s := start(t, Options{Delimiter: &etx, WriteChunk: 2})

	conn, err := net.Dial("tcp", s.Addr())
	require.NoError(t, err)
	defer conn.Close()

	msg := []byte("hello\x03")
	_, err = conn.Write(msg)
	require.NoError(t, err)

	buf := make([]byte, len(msg))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	_, err = io.ReadFull(conn, buf)
	require.NoError(t, err)
	assert.Equal(t, msg, buf)
}

func TestServer_NulDelimiter(t *testing.T) {
	nul := byte(0)
	s := start(t, Options{Delimiter: &nul})

	conn, err := net.Dial("tcp", s.Addr())
	require.NoError(t, err)
	defer conn.Close()

	msg := []byte("a\nb\x00")
	_, err = conn.Write(msg)
	require.NoError(t, err)

	buf := make([]byte, len(msg))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	_, err = io.ReadFull(conn, buf)
	require.NoError(t, err)
	assert.Equal(t, msg, buf)
}

func TestServer_Hangup(t *testing.T) {
	s := start(t, Options{Mode: ModeHangup})

	conn, err := net.Dial("tcp", s.Addr())
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	_, err = conn.Read(make([]byte, 1))
	assert.ErrorIs(t, err, io.EOF)
}

func TestServer_SilentNeverWrites(t *testing.T) {
	s := start(t, Options{Mode: ModeSilent})

	conn, err := net.Dial("tcp", s.Addr())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("PING\n"))
	require.NoError(t, err)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, err = conn.Read(make([]byte, 1))
	var ne net.Error
	require.ErrorAs(t, err, &ne)
	assert.True(t, ne.Timeout())
}

func TestServer_Lifecycle(t *testing.T) {
	s, err := New(Options{})
	require.NoError(t, err)
	assert.Empty(t, s.Addr())
	assert.ErrorIs(t, s.Shutdown(), ErrNotStarted)

	require.NoError(t, s.Start())
	assert.ErrorIs(t, s.Start(), ErrAlreadyStarted)
	assert.NotZero(t, s.Port())

	conn, err := net.Dial("tcp", s.Addr())
	require.NoError(t, err)
	defer conn.Close()
	assert.Eventually(t, func() bool { return s.Accepted() == 1 }, time.Second, 5*time.Millisecond)

	// Shutdown closes the open connection rather than waiting on it.
	require.NoError(t, s.Shutdown())
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	_, err = conn.Read(make([]byte, 1))
	assert.Error(t, err)
}

func TestServer_ShutdownDropsLateConnections(t *testing.T) {
	s, err := New(Options{Mode: ModeSilent})
	require.NoError(t, err)
	require.NoError(t, s.Start())
	require.NoError(t, s.Shutdown())

	c1, c2 := net.Pipe()
	defer c1.Close()
	defer c2.Close()
	assert.False(t, s.track(c1), "no handler may start once shutdown has begun")

	s.mu.Lock()
	defer s.mu.Unlock()
	assert.Empty(t, s.conns)
}

func TestServer_ShutdownWhileClientsConnect(t *testing.T) {
	s, err := New(Options{Mode: ModeSilent})
	require.NoError(t, err)
	require.NoError(t, s.Start())
	addr := s.Addr()

	var (
		mu      sync.Mutex
		clients []net.Conn
		wg      sync.WaitGroup
	)
	stop := make(chan struct{})
	for range 4 {
		wg.Go(func() {
			for {
				select {
				case <-stop:
					return
				default:
				}
				c, err := net.DialTimeout("tcp", addr, 100*time.Millisecond)
				if err != nil {
					continue
				}
				mu.Lock()
				clients = append(clients, c)
				mu.Unlock()
			}
		})
	}
	t.Cleanup(func() {
		close(stop)
		wg.Wait()
		for _, c := range clients {
			_ = c.Close()
		}
	})

	assert.Eventually(t, func() bool { return s.Accepted() >= 10 }, 2*time.Second, 5*time.Millisecond)

	// Silent handlers only return when their conn is closed, so a handler
	// started behind Shutdown's back would hang it.
	done := make(chan error, 1)
	go func() { done <- s.Shutdown() }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Shutdown did not return")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	assert.Empty(t, s.conns)
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{"": ModeEcho, "echo": ModeEcho, "silent": ModeSilent, "hangup": ModeHangup} {
		m, err := ParseMode(in)
		require.NoError(t, err)
		assert.Equal(t, want, m)
	}
	_, err := ParseMode("loud")
	assert.Error(t, err)

	_, err = New(Options{Mode: "loud"})
	assert.Error(t, err)
	_, err = New(Options{Port: 70000})
	assert.Error(t, err)
}
