// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package actuation

import "fmt"

// Action is one of the four discrete moves the learner can select.
// The numeric values are the wire ids.
type Action int

const (
	MoveForward Action = 0
	TurnLeft    Action = 1
	TurnRight   Action = 2
	Stop        Action = 3
)

// Count is the number of defined actions. Random fallback actions are
// drawn uniformly from [0, Count).
const Count = 4

// FromID converts a wire id to an Action. Ids outside the enumeration
// map to MoveForward.
func FromID(id int) Action {
	switch Action(id) {
	case MoveForward, TurnLeft, TurnRight, Stop:
		return Action(id)
	default:
		return MoveForward
	}
}

// ID returns the wire id of the action.
func (a Action) ID() int { return int(a) }

func (a Action) String() string {
	switch a {
	case MoveForward:
		return "forward"
	case TurnLeft:
		return "turn_left"
	case TurnRight:
		return "turn_right"
	case Stop:
		return "stop"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}
