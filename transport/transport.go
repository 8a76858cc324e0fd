// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"syscall"
)

var (
	// ErrNotConnected is returned when an operation needs a connection
	// and the caller has none.
	ErrNotConnected = errors.New("transport: not connected")

	// ErrNoReply is returned by Receive when no line arrived: the
	// reply timeout expired or the peer closed the stream.
	ErrNoReply = errors.New("transport: no reply")

	// ErrConnectionFailed is returned by Connect after every attempt
	// failed.
	ErrConnectionFailed = errors.New("transport: connection failed")

	// ErrLineTooLong is returned by Receive when the peer sent more
	// than MaxLineSize bytes without a delimiter.
	ErrLineTooLong = errors.New("transport: line too long")
)

// Dialer opens stream connections to the learner.
type Dialer interface {
	// DialContext opens a network connection to the given host:port
	// address.
	DialContext(ctx context.Context, address string) (net.Conn, error)
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(ctx context.Context, address string) (net.Conn, error)

// DialContext calls f(ctx, address).
func (f DialerFunc) DialContext(ctx context.Context, address string) (net.Conn, error) {
	return f(ctx, address)
}

// IsExpectedCloseError reports whether err is a normal connection
// termination: EOF, closed connection, broken pipe, or connection
// reset. A learner that exits between ticks produces one of these on
// the next Send or Receive.
func IsExpectedCloseError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		return true
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno == syscall.EPIPE || errno == syscall.ECONNRESET
	}
	return false
}
