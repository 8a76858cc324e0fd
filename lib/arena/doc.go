// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package arena is a minimal headless host for swarm agents: a square
// walled floor with circular obstacles and differential-drive robots.
//
// Each [Robot] is both the controller's Sensors (position and a ring
// of proximity readings) and its Actuator (wheel velocities). Wheel
// velocities are distances per tick. [Arena.Step] advances every robot
// by one tick; a move that would overlap a wall, an obstacle, or
// another robot is refused and the robot stays where it was, which the
// reward evaluator sees as a stall.
//
// Proximity sensors are evenly spaced around the body, starting at
// the heading and going counter-clockwise. A reading is 0 when nothing
// is within range of the body's surface and rises linearly to 1 at
// contact.
//
// Placement is driven by a seeded PCG source, so a run is reproducible
// for a given seed and robot order.
package arena
