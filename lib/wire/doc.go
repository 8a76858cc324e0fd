// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package wire is the line codec shared by the agent and the learner.
//
// Every message is one line of ASCII text terminated by a single
// newline, with fields separated by '|':
//
//	STATE|<agent_id>|<x>|<y>|<goal_x>|<goal_y>|<prox_0>|...|<prox_{K-1}>
//	ACTION|<action_id>
//	REWARD|<agent_id>|<reward>|<done>
//	ACK
//
// Fields are never escaped. Every field the codec writes is an integer
// or a float formatted by [strconv.FormatFloat] with the shortest
// round-trip representation, neither of which can contain a separator
// or the line terminator.
//
// Decoding an action reply is lenient by contract: anything that does
// not yield an integer id is reported as a [*MalformedReplyError] and
// the caller substitutes action 0. An empty reply is reported as
// [ErrEmptyReply] so callers can tell "the peer sent an empty line"
// apart from the transport's "no reply arrived".
package wire
