// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package actuation

// Actuator is the wheel interface exposed by the simulation host.
type Actuator interface {
	SetWheelVelocities(left, right float64)
}

// WheelCommand is a pair of linear wheel velocities.
type WheelCommand struct {
	Left  float64
	Right float64
}

// Command returns the wheel velocities for action at step velocity v.
// Turns spin in place at half speed.
func Command(action Action, v float64) WheelCommand {
	switch action {
	case TurnLeft:
		return WheelCommand{Left: -0.5 * v, Right: 0.5 * v}
	case TurnRight:
		return WheelCommand{Left: 0.5 * v, Right: -0.5 * v}
	case Stop:
		return WheelCommand{}
	case MoveForward:
		return WheelCommand{Left: v, Right: v}
	default:
		return WheelCommand{Left: v, Right: v}
	}
}

// Executor issues wheel commands for actions.
type Executor struct {
	actuator Actuator
	velocity float64
}

// NewExecutor returns an Executor driving actuator at step velocity v.
func NewExecutor(actuator Actuator, velocity float64) *Executor {
	return &Executor{actuator: actuator, velocity: velocity}
}

// Execute commands the wheels for action and returns what was sent.
func (e *Executor) Execute(action Action) WheelCommand {
	command := Command(action, e.velocity)
	e.actuator.SetWheelVelocities(command.Left, command.Right)
	return command
}

// Halt stops both wheels.
func (e *Executor) Halt() {
	e.actuator.SetWheelVelocities(0, 0)
}
