// Package echoserver is a line-oriented TCP server used to exercise clients:
// it echoes each delimited line, stays silent, or hangs up on accept.
package echoserver

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

var (
	ErrAlreadyStarted = errors.New("echoserver: already started")
	ErrNotStarted     = errors.New("echoserver: not started")
)

// Mode selects how accepted connections are served.
type Mode string

const (
	ModeEcho   Mode = "echo"   // write each delimited line back
	ModeSilent Mode = "silent" // read and discard, never write
	ModeHangup Mode = "hangup" // close immediately after accept
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeEcho, ModeSilent, ModeHangup:
		return m, nil
	case "":
		return ModeEcho, nil
	default:
		return "", fmt.Errorf("echoserver: unknown mode %q", s)
	}
}

type Options struct {
	Host      string // default 127.0.0.1
	Port      int    // 0 picks a free port
	Mode      Mode
	Delimiter *byte // nil means '\n'

	// WriteChunk > 0 splits each echoed line into pieces of this size,
	// pausing ChunkDelay between them.
	WriteChunk int
	ChunkDelay time.Duration

	WriteTimeout time.Duration
	Logger       zerolog.Logger // zero value discards
}

func (o *Options) applyDefaults() {
	if o.Host == "" {
		o.Host = "127.0.0.1"
	}
	if o.Mode == "" {
		o.Mode = ModeEcho
	}
	if o.Delimiter == nil {
		nl := byte('\n')
		o.Delimiter = &nl
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 5 * time.Second
	}
}

type Server struct {
	opts Options
	log  zerolog.Logger

	ln net.Listener

	mu      sync.Mutex
	conns   map[net.Conn]struct{}
	closing bool // set by Shutdown; late accepts are dropped
	wg      sync.WaitGroup

	started  atomic.Bool
	accepted atomic.Int64
}

func New(opts Options) (*Server, error) {
	if opts.Port < 0 || opts.Port > 65535 {
		return nil, fmt.Errorf("echoserver: port %d out of range", opts.Port)
	}
	if _, err := ParseMode(string(opts.Mode)); err != nil {
		return nil, err
	}
	opts.applyDefaults()
	return &Server{
		opts:  opts,
		log:   opts.Logger.With().Str("component", "echoserver").Logger(),
		conns: make(map[net.Conn]struct{}),
	}, nil
}

func (s *Server) Addr() string {
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

// Port returns the bound port, useful when Options.Port was 0.
func (s *Server) Port() int {
	if s.ln == nil {
		return 0
	}
	return s.ln.Addr().(*net.TCPAddr).Port
}

// Accepted returns the number of connections accepted so far.
func (s *Server) Accepted() int64 { return s.accepted.Load() }

func (s *Server) Start() error {
	if !s.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	addr := net.JoinHostPort(s.opts.Host, strconv.Itoa(s.opts.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		s.started.Store(false)
		return err
	}
	s.ln = ln
	s.mu.Lock()
	s.closing = false
	s.mu.Unlock()
	s.log.Info().Str("addr", ln.Addr().String()).Str("mode", string(s.opts.Mode)).Msg("listening")

	go s.acceptLoop()
	return nil
}

func (s *Server) Shutdown() error {
	if !s.started.Load() {
		return ErrNotStarted
	}

	// Stop accepting new connections.
	err := s.ln.Close()

	// Close active connections to unblock handlers.
	s.mu.Lock()
	s.closing = true
	for c := range s.conns {
		_ = c.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
	s.started.Store(false)
	if errors.Is(err, net.ErrClosed) {
		err = nil
	}
	return err
}

func (s *Server) acceptLoop() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		if !s.track(conn) {
			_ = conn.Close()
			return
		}
		s.accepted.Add(1)
	}
}

// track registers conn and starts its handler, unless Shutdown has begun.
// Both happen under mu so every wg.Add precedes Shutdown's Wait.
func (s *Server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return false
	}
	s.conns[conn] = struct{}{}
	s.wg.Go(func() {
		s.handle(conn)
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		_ = conn.Close()
	})
	return true
}

func (s *Server) handle(conn net.Conn) {
	log := s.log.With().Str("remote", conn.RemoteAddr().String()).Logger()
	log.Debug().Msg("accepted")

	switch s.opts.Mode {
	case ModeHangup:
		return
	case ModeSilent:
		buf := make([]byte, 4096)
		for {
			if _, err := conn.Read(buf); err != nil {
				return
			}
		}
	}

	r := bufio.NewReader(conn)
	for {
		line, err := r.ReadBytes(*s.opts.Delimiter)
		if len(line) > 0 && err == nil {
			if werr := s.write(conn, line); werr != nil {
				log.Debug().Err(werr).Msg("write failed")
				return
			}
		}
		if err != nil {
			return
		}
	}
}

func (s *Server) write(conn net.Conn, line []byte) error {
	if err := conn.SetWriteDeadline(time.Now().Add(s.opts.WriteTimeout)); err != nil {
		return err
	}
	if s.opts.WriteChunk <= 0 {
		_, err := conn.Write(line)
		return err
	}
	for len(line) > 0 {
		n := min(s.opts.WriteChunk, len(line))
		if _, err := conn.Write(line[:n]); err != nil {
			return err
		}
		line = line[n:]
		if len(line) > 0 && s.opts.ChunkDelay > 0 {
			time.Sleep(s.opts.ChunkDelay)
		}
	}
	return nil
}
