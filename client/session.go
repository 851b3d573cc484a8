// Package client runs one TCP request/response cycle per Session:
// connect under a deadline, write the request, read until the caller's
// predicate is satisfied, close.
package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"sockcycle/protocol"
	"sockcycle/transport"
)

var (
	ErrSessionUsed       = errors.New("client: session already used")
	ErrInvalidTransition = errors.New("client: invalid state transition")
)

// Result is delivered by Session.Go once the cycle ends.
type Result struct {
	SessionID string
	Response  []byte
	Err       error
	Elapsed   time.Duration
}

// Session owns exactly one connection for exactly one cycle.
//
// Do and Go may be called once in total; State may be read from any goroutine.
type Session struct {
	id     string
	ep     transport.Endpoint
	opts   Options
	dialer *transport.Dialer
	log    zerolog.Logger

	used atomic.Bool

	mu    sync.Mutex
	state State
	err   error
	conn  transport.Conn
}

// New prepares a Session for ep. No connection is opened until Do or Go.
func New(ep transport.Endpoint, opts Options) (*Session, error) {
	if err := ep.Validate(); err != nil {
		return nil, err
	}
	opts.applyDefaults()

	d, err := transport.NewDialer(opts.Network, opts.IOTimeout)
	if err != nil {
		return nil, fmt.Errorf("client: %w", err)
	}
	d.Socket = opts.Socket
	d.DialContext = opts.Dial

	id := uuid.NewString()
	return &Session{
		id:     id,
		ep:     ep,
		opts:   opts,
		dialer: d,
		log:    opts.Logger.With().Str("session", id).Str("addr", ep.Address()).Logger(),
		state:  StateIdle,
	}, nil
}

// ID returns the session's unique identifier.
func (s *Session) ID() string { return s.id }

// Endpoint returns the target endpoint.
func (s *Session) Endpoint() transport.Endpoint { return s.ep }

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the failure that moved the session to StateFailed, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Do runs the cycle on the calling goroutine and returns the response, whose
// bytes always satisfy complete. Failures are *transport.Error values
// classified by Kind, except a cancelled ctx, which returns the wrapped
// context.Canceled. The connection is released on every path.
func (s *Session) Do(ctx context.Context, payload []byte, complete protocol.Predicate) ([]byte, error) {
	if !s.used.CompareAndSwap(false, true) {
		return nil, ErrSessionUsed
	}

	if err := s.transition(StateConnecting); err != nil {
		return nil, err
	}
	conn, err := s.dialer.Connect(ctx, s.ep, s.opts.ConnectTimeout)
	if err != nil {
		return nil, s.fail(err)
	}
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
	if err := s.advance(StateConnected, StateSending); err != nil {
		return nil, s.fail(err)
	}

	if err := protocol.WriteAll(ctx, conn, payload, s.opts.WriteTimeout); err != nil {
		return nil, s.fail(err)
	}
	if err := s.transition(StateReceiving); err != nil {
		return nil, s.fail(err)
	}

	r := protocol.NewReader(conn)
	r.SetChunkSize(s.opts.ChunkSize)
	r.SetMaxResponseSize(s.opts.MaxResponseSize)
	resp, err := r.ReadUntil(ctx, complete, s.opts.ReadTimeout)
	if err != nil {
		return nil, s.fail(err)
	}

	if cerr := s.release(); cerr != nil {
		s.log.Debug().Err(cerr).Msg("close after response")
	}
	if err := s.transition(StateClosed); err != nil {
		return nil, s.fail(err)
	}
	return resp, nil
}

// Go runs the cycle on a new goroutine. The channel receives exactly one
// Result and is then closed.
func (s *Session) Go(ctx context.Context, payload []byte, complete protocol.Predicate) <-chan Result {
	ch := make(chan Result, 1)
	go func() {
		defer close(ch)
		start := time.Now()
		resp, err := s.Do(ctx, payload, complete)
		ch <- Result{SessionID: s.id, Response: resp, Err: err, Elapsed: time.Since(start)}
	}()
	return ch
}

// transition moves to the next state. An edge missing from validTransitions
// leaves the state unchanged and returns ErrInvalidTransition.
func (s *Session) transition(to State) error {
	s.mu.Lock()
	from := s.state
	if !canTransition(from, to) {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	s.state = to
	s.mu.Unlock()

	s.log.Debug().Str("from", from.String()).Str("state", to.String()).Msg("transition")
	if s.opts.OnTransition != nil {
		s.opts.OnTransition(from, to)
	}
	return nil
}

func (s *Session) advance(states ...State) error {
	for _, to := range states {
		if err := s.transition(to); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) fail(err error) error {
	if cerr := s.release(); cerr != nil {
		s.log.Debug().Err(cerr).Msg("close after failure")
	}
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
	if terr := s.transition(StateFailed); terr != nil {
		s.log.Error().Err(terr).Msg("record failure")
	}

	s.log.Warn().Err(err).Str("kind", transport.KindOf(err).String()).Msg("cycle failed")
	return err
}

// release closes the connection, if any. Only the first call reaches the conn.
func (s *Session) release() error {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Close()
}

// Exchange runs one cycle against ep with a fresh Session.
func Exchange(ctx context.Context, ep transport.Endpoint, payload []byte, complete protocol.Predicate, opts Options) ([]byte, error) {
	s, err := New(ep, opts)
	if err != nil {
		return nil, err
	}
	return s.Do(ctx, payload, complete)
}
