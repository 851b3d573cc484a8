package transport

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDialer_Networks(t *testing.T) {
	for _, n := range []string{NetworkTCP, NetworkTCP4, NetworkTCP6} {
		d, err := NewDialer(n, time.Second)
		require.NoError(t, err, n)
		assert.Equal(t, n, d.Network)
		assert.Equal(t, time.Second, d.IOTimeout)
		assert.True(t, d.Socket.NoDelay)
	}
}

func TestNewDialer_DefaultsToTCP(t *testing.T) {
	d, err := NewDialer("", 0) // Empty string should default to TCP
	require.NoError(t, err)
	assert.Equal(t, NetworkTCP, d.Network)
}

func TestNewDialer_UnsupportedNetwork(t *testing.T) {
	for _, n := range []string{"udp", "unix", "quic"} {
		_, err := NewDialer(n, time.Second)
		assert.Error(t, err, n)
	}
}
