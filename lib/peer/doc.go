// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package peer is the agent side of the learner protocol: it composes
// the line transport with the wire codec into two per-tick calls,
// [Client.RequestAction] and [Client.ReportReward].
//
// The client never lets a protocol problem escape as anything other
// than an error value. Callers translate errors into the fallback
// behavior: a random action when [transport.ErrNotConnected] says
// there was no connection at all, MoveForward for every other failure.
//
// # Reconnect policy
//
// A send or receive failure (including a reply timeout, which leaves
// the stream position unknown) closes the socket and marks the client
// disconnected. A reply that arrives but does not decode is not a
// stream failure: the connection is kept.
//
// While disconnected, RequestAction fails fast with ErrNotConnected
// unless the reconnect gate is open. The gate is a circuit breaker on
// the injected clock: it opens InitialBackoff after the disconnect,
// and each failed reconnect doubles the wait up to MaxBackoff. When
// the gate is open, RequestAction makes exactly one inline dial before
// sending; success closes the breaker and resets the backoff. Nothing
// runs in the background, so a tick never races a reconnect.
//
// With Reconnect.Enabled false, a lost connection stays lost for the
// life of the client.
package peer
