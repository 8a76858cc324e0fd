// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"fmt"
	"net"
	"time"
)

// Compile-time interface check.
var _ Dialer = (*TCPDialer)(nil)

// TCPDialer opens TCP connections to the learner.
type TCPDialer struct {
	// Timeout is the maximum time to wait for a TCP connection to be
	// established. Zero means no standalone timeout; only the context
	// deadline applies.
	Timeout time.Duration

	// UserTimeout bounds how long transmitted data may remain
	// unacknowledged before the kernel drops the connection. Zero
	// leaves the system default. Only honored on Linux.
	UserTimeout time.Duration
}

// DialContext opens a TCP connection to the given address (host:port).
func (d *TCPDialer) DialContext(ctx context.Context, address string) (net.Conn, error) {
	conn, err := (&net.Dialer{Timeout: d.Timeout}).DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, err
	}
	if tcp, ok := conn.(*net.TCPConn); ok {
		// Requests are single small lines; Nagle would only add latency
		// to every tick.
		if err := tcp.SetNoDelay(true); err != nil {
			conn.Close()
			return nil, fmt.Errorf("setting TCP_NODELAY: %w", err)
		}
		if err := setUserTimeout(tcp, d.UserTimeout); err != nil {
			conn.Close()
			return nil, fmt.Errorf("setting TCP_USER_TIMEOUT: %w", err)
		}
	}
	return conn, nil
}
