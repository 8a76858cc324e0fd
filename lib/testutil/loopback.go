// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"net"
	"testing"
)

// Loopback listens on 127.0.0.1 with an ephemeral port. The listener
// is closed when the test completes.
//
//	listener := testutil.Loopback(t)
//	address := listener.Addr().String()
func Loopback(t *testing.T) net.Listener {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listening on loopback: %v", err)
	}
	t.Cleanup(func() {
		_ = listener.Close()
	})
	return listener
}

// RefusedAddress returns a loopback address that nothing listens on.
// The port is taken from a listener that is closed immediately, so a
// dial fails fast with connection refused.
func RefusedAddress(t *testing.T) string {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listening on loopback: %v", err)
	}
	address := listener.Addr().String()
	if err := listener.Close(); err != nil {
		t.Fatalf("closing probe listener: %v", err)
	}
	return address
}
