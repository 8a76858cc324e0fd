// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package geom holds the planar vector type shared by the reward
// evaluator, the controller, and the arena host.
package geom

import "math"

// Vec2 is a point or displacement in the arena plane, in meters.
type Vec2 struct {
	X float64
	Y float64
}

// Add returns v + other.
func (v Vec2) Add(other Vec2) Vec2 { return Vec2{X: v.X + other.X, Y: v.Y + other.Y} }

// Sub returns v - other.
func (v Vec2) Sub(other Vec2) Vec2 { return Vec2{X: v.X - other.X, Y: v.Y - other.Y} }

// Scale returns v multiplied by factor.
func (v Vec2) Scale(factor float64) Vec2 { return Vec2{X: v.X * factor, Y: v.Y * factor} }

// Length returns the Euclidean norm of v.
func (v Vec2) Length() float64 { return math.Hypot(v.X, v.Y) }

// Dot returns the scalar product of v and other.
func (v Vec2) Dot(other Vec2) float64 { return v.X*other.X + v.Y*other.Y }

// Distance returns the Euclidean distance between v and other.
func (v Vec2) Distance(other Vec2) float64 { return v.Sub(other).Length() }

// Rotate returns v rotated counter-clockwise by angle radians.
func (v Vec2) Rotate(angle float64) Vec2 {
	sin, cos := math.Sincos(angle)
	return Vec2{X: v.X*cos - v.Y*sin, Y: v.X*sin + v.Y*cos}
}

// Heading returns the unit vector pointing along angle radians.
func Heading(angle float64) Vec2 {
	sin, cos := math.Sincos(angle)
	return Vec2{X: cos, Y: sin}
}
