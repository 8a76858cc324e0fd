// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package arena

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/bureau-foundation/qswarm/lib/geom"
)

// spawnAttempts bounds the search for a free spawn position.
const spawnAttempts = 200

// Obstacle is a fixed circular body.
type Obstacle struct {
	Center geom.Vec2
	Radius float64
}

// Config describes the arena and its robots.
type Config struct {
	// Size is the side length of the square floor. Walls run along
	// x=0, y=0, x=Size and y=Size.
	Size float64

	Sensors     int
	SensorRange float64
	RobotRadius float64
	WheelBase   float64
	Seed        uint64

	// SpawnMin and SpawnMax bound robot placement.
	SpawnMin geom.Vec2
	SpawnMax geom.Vec2

	Obstacles []Obstacle
}

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	var errs []error
	if c.Size <= 0 {
		errs = append(errs, fmt.Errorf("size must be positive, got %v", c.Size))
	}
	if c.Sensors < 0 {
		errs = append(errs, fmt.Errorf("sensors must not be negative, got %d", c.Sensors))
	}
	if c.SensorRange <= 0 {
		errs = append(errs, fmt.Errorf("sensor range must be positive, got %v", c.SensorRange))
	}
	if c.RobotRadius <= 0 {
		errs = append(errs, fmt.Errorf("robot radius must be positive, got %v", c.RobotRadius))
	}
	if c.WheelBase <= 0 {
		errs = append(errs, fmt.Errorf("wheel base must be positive, got %v", c.WheelBase))
	}
	if c.SpawnMin.X > c.SpawnMax.X || c.SpawnMin.Y > c.SpawnMax.Y {
		errs = append(errs, fmt.Errorf("spawn area %v..%v is empty", c.SpawnMin, c.SpawnMax))
	}
	for i, obstacle := range c.Obstacles {
		if obstacle.Radius <= 0 {
			errs = append(errs, fmt.Errorf("obstacle %d radius must be positive, got %v", i, obstacle.Radius))
		}
	}
	return errors.Join(errs...)
}

// Arena owns the robots and advances them. It is not safe for
// concurrent use; the host drives it from one goroutine.
type Arena struct {
	config Config
	random *rand.Rand
	robots []*Robot
	ticks  int
}

// New validates config and returns an empty arena.
func New(config Config) (*Arena, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("arena: %w", err)
	}
	return &Arena{
		config: config,
		random: rand.New(rand.NewPCG(config.Seed, config.Seed^0x5851f42d4c957f2d)),
	}, nil
}

// AddRobot places a new robot at a free random position.
func (a *Arena) AddRobot(name string) *Robot {
	robot := &Robot{
		name:      name,
		proximity: make([]float64, a.config.Sensors),
	}
	a.robots = append(a.robots, robot)
	a.Respawn(robot)
	return robot
}

// Robots returns the robots in the order they were added.
func (a *Arena) Robots() []*Robot {
	return a.robots
}

// Ticks returns how many times Step has run.
func (a *Arena) Ticks() int {
	return a.ticks
}

// Respawn moves robot to a free random position and heading in the
// spawn area and stops its wheels. When no free position turns up the
// last candidate is used.
func (a *Arena) Respawn(robot *Robot) {
	robot.left, robot.right = 0, 0
	low, high := a.spawnBounds()
	for range spawnAttempts {
		robot.position = geom.Vec2{
			X: low.X + a.random.Float64()*(high.X-low.X),
			Y: low.Y + a.random.Float64()*(high.Y-low.Y),
		}
		robot.heading = a.random.Float64() * 2 * math.Pi
		if !a.blocked(robot, robot.position) {
			break
		}
	}
	a.senseAll()
}

// Place puts robot at an exact pose and stops its wheels.
func (a *Arena) Place(robot *Robot, position geom.Vec2, heading float64) {
	robot.position = position
	robot.heading = heading
	robot.left, robot.right = 0, 0
	a.senseAll()
}

// Step advances every robot by one tick using its current wheel
// velocities, then refreshes all sensor readings.
func (a *Arena) Step() {
	for _, robot := range a.robots {
		a.move(robot)
	}
	a.senseAll()
	a.ticks++
}

func (a *Arena) move(robot *Robot) {
	forward := (robot.left + robot.right) / 2
	turn := (robot.right - robot.left) / a.config.WheelBase

	// Midpoint integration of the unicycle model.
	target := robot.position.Add(geom.Heading(robot.heading + turn/2).Scale(forward))
	robot.heading = normalizeAngle(robot.heading + turn)
	if forward != 0 && !a.blocked(robot, target) {
		robot.position = target
		return
	}
	if forward != 0 {
		robot.bumps++
	}
}

// blocked reports whether robot's body at position would overlap a
// wall, an obstacle, or another robot.
func (a *Arena) blocked(robot *Robot, position geom.Vec2) bool {
	radius := a.config.RobotRadius
	if position.X < radius || position.Y < radius ||
		position.X > a.config.Size-radius || position.Y > a.config.Size-radius {
		return true
	}
	for _, obstacle := range a.config.Obstacles {
		if position.Distance(obstacle.Center) < obstacle.Radius+radius {
			return true
		}
	}
	for _, other := range a.robots {
		if other != robot && position.Distance(other.position) < 2*radius {
			return true
		}
	}
	return false
}

func (a *Arena) spawnBounds() (geom.Vec2, geom.Vec2) {
	radius := a.config.RobotRadius
	clamp := func(value float64) float64 {
		return math.Min(math.Max(value, radius), a.config.Size-radius)
	}
	low := geom.Vec2{X: clamp(a.config.SpawnMin.X), Y: clamp(a.config.SpawnMin.Y)}
	high := geom.Vec2{X: clamp(a.config.SpawnMax.X), Y: clamp(a.config.SpawnMax.Y)}
	return low, high
}

func normalizeAngle(angle float64) float64 {
	angle = math.Mod(angle, 2*math.Pi)
	if angle < 0 {
		angle += 2 * math.Pi
	}
	return angle
}
