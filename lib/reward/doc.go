// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package reward scores one control tick from the agent's own
// observations. Nothing here depends on the learner: the reward and
// termination signal are computed locally and only reported to the
// peer afterwards.
//
// Scoring order per tick:
//
//  1. Start from the step penalty (-0.1, not done).
//  2. Goal: distance to the goal below GoalThreshold gives +10, done.
//  3. Otherwise collision gives -5, done. A collision is either a
//     stall (moved less than CollisionThreshold since the previous
//     tick) or any proximity reading above ProximityLimit.
//
// The goal check runs first, so a robot that reaches the goal while
// momentarily stalled counts as a success.
package reward
