// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/bureau-foundation/qswarm/lib/geom"
)

const (
	// Delimiter terminates every message on the wire.
	Delimiter = '\n'
	// Separator splits fields within a message.
	Separator = "|"

	TypeState  = "STATE"
	TypeAction = "ACTION"
	TypeReward = "REWARD"
	TypeAck    = "ACK"
)

// ErrEmptyReply is returned when the peer answered with an empty line.
var ErrEmptyReply = errors.New("wire: empty reply")

// MalformedReplyError describes an action reply that carries no
// parseable action id.
type MalformedReplyError struct {
	Line string
	Err  error
}

func (e *MalformedReplyError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("wire: malformed reply %q: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("wire: malformed reply %q", e.Line)
}

func (e *MalformedReplyError) Unwrap() error { return e.Err }

// Observation is one tick's view of the world from an agent.
type Observation struct {
	Position  geom.Vec2
	Goal      geom.Vec2
	Proximity []float64
}

// Vector flattens the observation into wire order:
// x, y, goal_x, goal_y, then the proximity ring.
func (o Observation) Vector() []float64 {
	vector := make([]float64, 0, 4+len(o.Proximity))
	vector = append(vector, o.Position.X, o.Position.Y, o.Goal.X, o.Goal.Y)
	return append(vector, o.Proximity...)
}

// StateSize returns the number of values a STATE message carries for a
// ring of sensors proximity readings.
func StateSize(sensors int) int { return 4 + sensors }

// FormatFloat renders a value the way every encoder in this package
// does.
func FormatFloat(value float64) string {
	return strconv.FormatFloat(value, 'g', -1, 64)
}

// EncodeState renders a STATE message without the trailing delimiter.
func EncodeState(id AgentID, observation Observation) string {
	return EncodeStateVector(id, observation.Vector())
}

// EncodeStateVector renders a STATE message from an already flattened
// vector.
func EncodeStateVector(id AgentID, vector []float64) string {
	var builder strings.Builder
	builder.Grow(16 + 12*len(vector))
	builder.WriteString(TypeState)
	builder.WriteString(Separator)
	builder.WriteString(id.String())
	for _, value := range vector {
		builder.WriteString(Separator)
		builder.WriteString(FormatFloat(value))
	}
	return builder.String()
}

// EncodeReward renders a REWARD message. done is written as 1 or 0.
func EncodeReward(id AgentID, reward float64, done bool) string {
	flag := "0"
	if done {
		flag = "1"
	}
	return TypeReward + Separator + id.String() + Separator + FormatFloat(reward) + Separator + flag
}

// EncodeAction renders an ACTION reply.
func EncodeAction(action int) string {
	return TypeAction + Separator + strconv.Itoa(action)
}

// DecodeAction extracts the action id from a reply line. The id is
// the field after the first separator, read up to the next separator
// if there is one. The message type is not checked. On any error the
// returned id is 0, which callers use as the fallback action.
func DecodeAction(line string) (int, error) {
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return 0, ErrEmptyReply
	}
	_, rest, found := strings.Cut(line, Separator)
	if !found {
		return 0, &MalformedReplyError{Line: line}
	}
	field, _, _ := strings.Cut(rest, Separator)
	id, err := strconv.Atoi(strings.TrimSpace(field))
	if err != nil {
		return 0, &MalformedReplyError{Line: line, Err: err}
	}
	return id, nil
}
