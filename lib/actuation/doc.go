// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package actuation maps the learner's discrete action ids onto
// differential-drive wheel commands.
//
// [Action] is a closed enumeration. Any integer outside it is treated
// as [MoveForward] by [FromID], so a confused or out-of-date peer
// makes the robot drive ahead instead of halting the control loop.
// [Executor] turns an Action into a [WheelCommand] scaled by the
// configured step velocity and hands it to the [Actuator]
// collaborator; it has no other side effects.
package actuation
