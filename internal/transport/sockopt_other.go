//go:build !unix

package transport

import "net"

func enableBroadcast(_ *net.UDPConn) error {
	// Directed sends still work; segment broadcast is unix-only for now.
	return nil
}
