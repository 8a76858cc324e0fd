// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package arena

import "github.com/bureau-foundation/qswarm/lib/geom"

// Robot is one differential-drive body in the arena.
type Robot struct {
	name string

	position geom.Vec2
	heading  float64

	left  float64
	right float64

	proximity []float64
	bumps     int
}

func (r *Robot) Name() string { return r.name }

// Position returns the center of the body.
func (r *Robot) Position() geom.Vec2 { return r.position }

// Heading returns the orientation in radians, in [0, 2π).
func (r *Robot) Heading() float64 { return r.heading }

// Proximity returns a copy of the latest sensor readings.
func (r *Robot) Proximity() []float64 {
	readings := make([]float64, len(r.proximity))
	copy(readings, r.proximity)
	return readings
}

// SetWheelVelocities sets the distance each wheel covers per tick
// until changed.
func (r *Robot) SetWheelVelocities(left, right float64) {
	r.left = left
	r.right = right
}

// WheelVelocities returns the current wheel command.
func (r *Robot) WheelVelocities() (left, right float64) {
	return r.left, r.right
}

// Bumps counts ticks in which a commanded move was refused.
func (r *Robot) Bumps() int { return r.bumps }
