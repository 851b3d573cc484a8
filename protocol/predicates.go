package protocol

import (
	"bytes"
	"fmt"
)

// EndsWith completes once the accumulated buffer ends with delim.
func EndsWith(delim byte) Predicate {
	return func(received []byte) (bool, error) {
		return len(received) > 0 && received[len(received)-1] == delim, nil
	}
}

// HasSuffix completes once the accumulated buffer ends with suffix.
func HasSuffix(suffix []byte) Predicate {
	s := bytes.Clone(suffix)
	return func(received []byte) (bool, error) {
		return len(s) > 0 && bytes.HasSuffix(received, s), nil
	}
}

// AtLeast completes once n bytes have arrived.
func AtLeast(n int) Predicate {
	return func(received []byte) (bool, error) {
		return len(received) >= n, nil
	}
}

// LengthPrefixed completes once one whole length-prefixed frame has arrived.
// A header announcing more than maxPayload bytes fails the read.
func LengthPrefixed(maxPayload int) Predicate {
	return func(received []byte) (bool, error) {
		ln, ok := frameLen(received)
		if !ok {
			return false, nil
		}
		if ln > maxPayload {
			return false, fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, ln, maxPayload)
		}
		return len(received) >= frameHeaderSize+ln, nil
	}
}
