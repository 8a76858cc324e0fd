// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package arena

import (
	"math"

	"github.com/bureau-foundation/qswarm/lib/geom"
)

func (a *Arena) senseAll() {
	for _, robot := range a.robots {
		a.sense(robot)
	}
}

func (a *Arena) sense(robot *Robot) {
	count := len(robot.proximity)
	for i := range count {
		angle := robot.heading + 2*math.Pi*float64(i)/float64(count)
		robot.proximity[i] = a.reading(robot, geom.Heading(angle))
	}
}

// reading casts a ray from the robot's center along direction and
// converts the gap between the body surface and the nearest hit into
// a value in [0, 1].
func (a *Arena) reading(robot *Robot, direction geom.Vec2) float64 {
	radius := a.config.RobotRadius
	reach := radius + a.config.SensorRange

	nearest := a.wallDistance(robot.position, direction)
	for _, obstacle := range a.config.Obstacles {
		if hit, ok := rayCircle(robot.position, direction, obstacle.Center, obstacle.Radius); ok {
			nearest = math.Min(nearest, hit)
		}
	}
	for _, other := range a.robots {
		if other == robot {
			continue
		}
		if hit, ok := rayCircle(robot.position, direction, other.position, radius); ok {
			nearest = math.Min(nearest, hit)
		}
	}

	if nearest >= reach {
		return 0
	}
	gap := math.Max(nearest-radius, 0)
	return 1 - gap/a.config.SensorRange
}

// wallDistance returns how far a ray from origin travels before
// leaving the square floor.
func (a *Arena) wallDistance(origin, direction geom.Vec2) float64 {
	nearest := math.Inf(1)
	if direction.X > 0 {
		nearest = math.Min(nearest, (a.config.Size-origin.X)/direction.X)
	} else if direction.X < 0 {
		nearest = math.Min(nearest, -origin.X/direction.X)
	}
	if direction.Y > 0 {
		nearest = math.Min(nearest, (a.config.Size-origin.Y)/direction.Y)
	} else if direction.Y < 0 {
		nearest = math.Min(nearest, -origin.Y/direction.Y)
	}
	return math.Max(nearest, 0)
}

// rayCircle returns the distance along a unit ray to the first point
// of a circle. A ray starting inside the circle hits at distance 0.
func rayCircle(origin, direction, center geom.Vec2, radius float64) (float64, bool) {
	offset := origin.Sub(center)
	b := offset.Dot(direction)
	c := offset.Dot(offset) - radius*radius
	if c <= 0 {
		return 0, true
	}
	discriminant := b*b - c
	if discriminant < 0 {
		return 0, false
	}
	hit := -b - math.Sqrt(discriminant)
	if hit < 0 {
		return 0, false
	}
	return hit, true
}
