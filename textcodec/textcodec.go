// Package textcodec converts between Go strings and the byte payloads sent
// on the wire, using a named character set.
package textcodec

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/japanese"
)

const DefaultCharset = "utf-8"

var charsets = map[string]encoding.Encoding{
	"utf-8":       nil, // identity
	"utf8":        nil,
	"shift_jis":   japanese.ShiftJIS,
	"shift-jis":   japanese.ShiftJIS,
	"sjis":        japanese.ShiftJIS,
	"euc-jp":      japanese.EUCJP,
	"iso-2022-jp": japanese.ISO2022JP,
}

// Codec encodes and decodes text for one charset.
type Codec struct {
	name string
	enc  encoding.Encoding
}

// Lookup returns the Codec for a charset name (case-insensitive).
// An empty name selects DefaultCharset.
func Lookup(name string) (Codec, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		key = DefaultCharset
	}
	enc, ok := charsets[key]
	if !ok {
		return Codec{}, fmt.Errorf("textcodec: unsupported charset %q", name)
	}
	return Codec{name: key, enc: enc}, nil
}

func (c Codec) Name() string { return c.name }

// Encode converts s to wire bytes.
func (c Codec) Encode(s string) ([]byte, error) {
	if c.enc == nil {
		return []byte(s), nil
	}
	b, err := c.enc.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return nil, fmt.Errorf("textcodec: encode %s: %w", c.name, err)
	}
	return b, nil
}

// Decode converts wire bytes to a string.
func (c Codec) Decode(b []byte) (string, error) {
	if c.enc == nil {
		return string(b), nil
	}
	out, err := c.enc.NewDecoder().Bytes(b)
	if err != nil {
		return "", fmt.Errorf("textcodec: decode %s: %w", c.name, err)
	}
	return string(out), nil
}
