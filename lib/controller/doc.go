// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package controller is one agent's tick-driven decision loop.
//
// The simulation host calls [Controller.ControlStep] once per tick
// from its own thread. Each call does exactly one of three things,
// chosen by the episode phase:
//
//   - Finished: command the wheels to stop. No protocol traffic.
//   - EpisodeDone: start the next episode (increment the episode
//     index, clear the per-episode counters, stop the wheels and
//     re-snapshot the previous position). No protocol traffic.
//   - Running: read the sensors, request an action from the learner,
//     execute it, score the tick locally, report the reward, and end
//     the episode on goal, collision, or the step limit.
//
// A host that advances its physics within the tick calls
// [Controller.Act] and [Controller.Score] instead, with the physics
// step in between. ControlStep is the two back to back.
//
// Nothing that goes wrong on the wire escapes ControlStep. With no
// connection the agent drives with a uniformly random action and
// skips reward messages; a failed or malformed exchange falls back to
// MoveForward. Reward and termination are always computed locally, so
// episode bookkeeping is identical whether or not the learner is
// reachable.
//
// A Controller is not safe for concurrent use. It owns its peer
// connection: [Controller.Close] releases it exactly once, and [New]
// releases it if construction fails.
package controller
