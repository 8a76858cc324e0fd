// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package transport owns the agent's single stream connection to its
// learner peer.
//
// A [Conn] carries newline-delimited text in both directions. [Send]
// appends exactly one delimiter and writes the whole buffer. [Receive]
// blocks for one delimited line, bounded by the configured reply
// timeout, and strips the delimiter. Three outcomes are distinct:
//
//   - a line (possibly empty, when the peer sent a bare newline)
//   - [ErrNoReply], when the wait expired or the peer closed the stream
//   - any other error, when the socket failed
//
// The protocol is strictly request/response per control tick, so a
// Conn is not pipelined and not safe for concurrent use. After any
// error from Send or Receive the stream position is unknown and the
// Conn must be closed; a late reply could otherwise be read as the
// answer to the next request.
//
// [Connect] dials with a bounded number of attempts and a fixed
// backoff between them, measured on an injected [clock.Clock]. When
// every attempt fails it returns an error wrapping [ErrConnectionFailed].
// That is not fatal to an agent: the caller keeps running in
// disconnected mode.
//
// [TCPDialer] is the production [Dialer]. On Linux it also sets
// TCP_USER_TIMEOUT so that writes to a vanished peer fail within the
// reply timeout instead of the kernel's multi-minute retransmission
// limit.
//
// [IsExpectedCloseError] classifies the errors a normal peer disconnect
// produces, so callers can log them quietly.
package transport
