//go:build !unix

package transport

import "syscall"

// Socket options are only applied on unix; elsewhere the OS defaults stand.
func controlFunc(opts SocketOptions) func(network, address string, c syscall.RawConn) error {
	return nil
}
