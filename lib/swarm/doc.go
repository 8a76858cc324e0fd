// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package swarm wires a group of agents to the arena host and runs
// their shared tick loop.
//
// Each member is one arena robot, one controller, one learner client,
// and optionally one recording writer. A tick has three stages: every
// controller acts, the arena advances once, and every controller
// scores the tick. The stall test therefore measures the movement of
// the action just taken, and a robot that never moves collides on its
// first step.
//
// A robot whose controller is about to start a new episode is moved to
// a fresh spawn position before that controller acts, so the episode's
// starting snapshot is the spawn point.
package swarm
