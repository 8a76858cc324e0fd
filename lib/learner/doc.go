// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package learner is a reference implementation of the learner side of
// the agent wire protocol.
//
// [Server] accepts any number of agent connections over TCP and
// answers each STATE line with an ACTION chosen by a [Policy], and
// each REWARD line with ACK. Rewards are tallied per agent; when an
// agent reports done, the finished episode is folded into the
// in-memory summaries and handed to an optional [Sink], typically a
// SQLite-backed [Store].
//
// Replies follow the contract agents rely on:
//
//   - A STATE whose vector length differs from the configured state
//     size, or that does not parse, is answered with ACTION|0.
//   - A REWARD is always answered with ACK, even when malformed, so
//     the agent's exchange stays in lockstep.
//   - Any other message type gets no reply at all.
//
// No learning happens here. The package exists so agents can be run
// and tested end to end without the training stack.
package learner
