package transport

import (
	"fmt"
	"time"
)

// Supported network types for Dialer.Network.
const (
	NetworkTCP  = "tcp"
	NetworkTCP4 = "tcp4"
	NetworkTCP6 = "tcp6"
)

var supportedNetworks = map[string]bool{
	NetworkTCP:  true,
	NetworkTCP4: true,
	NetworkTCP6: true,
}

func normalizeNetwork(network string) (string, error) {
	if network == "" {
		return NetworkTCP, nil
	}
	if !supportedNetworks[network] {
		return "", fmt.Errorf("transport: unsupported network %q", network)
	}
	return network, nil
}

// NewDialer returns a Dialer for network with the given per-call I/O timeout
// and Nagle disabled.
func NewDialer(network string, ioTimeout time.Duration) (*Dialer, error) {
	n, err := normalizeNetwork(network)
	if err != nil {
		return nil, err
	}
	return &Dialer{
		Network:   n,
		IOTimeout: ioTimeout,
		Socket:    SocketOptions{NoDelay: true},
	}, nil
}
