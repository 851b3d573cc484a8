package transport

import (
	"errors"
	"fmt"
)

// Kind classifies why a request/response cycle failed.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindConnectTimeout
	KindConnectError
	KindWriteError
	KindReadTimeout
	KindPeerClosed
	KindPredicateError
	KindIoTimeout
	KindResponseTooLarge
)

func (k Kind) String() string {
	switch k {
	case KindConnectTimeout:
		return "ConnectTimeout"
	case KindConnectError:
		return "ConnectError"
	case KindWriteError:
		return "WriteError"
	case KindReadTimeout:
		return "ReadTimeout"
	case KindPeerClosed:
		return "PeerClosed"
	case KindPredicateError:
		return "PredicateError"
	case KindIoTimeout:
		return "IoTimeout"
	case KindResponseTooLarge:
		return "ResponseTooLarge"
	default:
		return "Unknown"
	}
}

// Sentinels for errors.Is. They carry only a Kind; any *Error with the same
// Kind matches them.
var (
	ErrConnectTimeout   = &Error{Kind: KindConnectTimeout}
	ErrConnectError     = &Error{Kind: KindConnectError}
	ErrWriteError       = &Error{Kind: KindWriteError}
	ErrReadTimeout      = &Error{Kind: KindReadTimeout}
	ErrPeerClosed       = &Error{Kind: KindPeerClosed}
	ErrPredicateError   = &Error{Kind: KindPredicateError}
	ErrIoTimeout        = &Error{Kind: KindIoTimeout}
	ErrResponseTooLarge = &Error{Kind: KindResponseTooLarge}
)

var (
	ErrClosed          = errors.New("transport: connection closed")
	ErrInvalidEndpoint = errors.New("transport: invalid endpoint")
	ErrInvalidTimeout  = errors.New("transport: invalid timeout")
)

// Error is a classified failure. Op names the step that failed ("connect",
// "write", "read") and Addr the remote endpoint.
type Error struct {
	Kind Kind
	Op   string
	Addr string
	Err  error
}

// NewError builds a classified failure. Packages layered on top of transport
// use it so every failure of a cycle shares one shape.
func NewError(kind Kind, op, addr string, err error) *Error {
	return &Error{Kind: kind, Op: op, Addr: addr, Err: err}
}

func (e *Error) Error() string {
	msg := "transport: " + e.Kind.String()
	if e.Op != "" {
		msg = fmt.Sprintf("transport: %s %s: %s", e.Op, e.Addr, e.Kind)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same Kind, so the Err* sentinels work with
// errors.Is regardless of the wrapped cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the Kind of the first *Error in err's chain, or KindUnknown.
func KindOf(err error) Kind {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	return KindUnknown
}
