package protocol

import (
	"encoding/binary"
	"errors"
)

// Length-prefixed frame format:
//
//	[4 bytes frameLen LE][frameLen bytes payload]
//
// Peers that frame this way pair EncodeLengthPrefixed on the request side with
// the LengthPrefixed predicate and StripLengthPrefix on the response side.

const frameHeaderSize = 4

var (
	ErrFrameTooLarge = errors.New("protocol: frame too large")
	ErrInvalidFrame  = errors.New("protocol: invalid frame")
)

// EncodeLengthPrefixed returns payload preceded by its 4-byte length header.
func EncodeLengthPrefixed(payload []byte) ([]byte, error) {
	if uint64(len(payload)) > uint64(^uint32(0)) {
		return nil, ErrFrameTooLarge
	}
	out := make([]byte, frameHeaderSize+len(payload))
	binary.LittleEndian.PutUint32(out, uint32(len(payload)))
	copy(out[frameHeaderSize:], payload)
	return out, nil
}

// StripLengthPrefix returns the payload of the first frame in buf.
// Bytes after the frame are ignored.
func StripLengthPrefix(buf []byte) ([]byte, error) {
	ln, ok := frameLen(buf)
	if !ok || len(buf) < frameHeaderSize+ln {
		return nil, ErrInvalidFrame
	}
	return buf[frameHeaderSize : frameHeaderSize+ln], nil
}

func frameLen(buf []byte) (int, bool) {
	if len(buf) < frameHeaderSize {
		return 0, false
	}
	return int(binary.LittleEndian.Uint32(buf[:frameHeaderSize])), true
}
