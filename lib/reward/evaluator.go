// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package reward

import "github.com/bureau-foundation/qswarm/lib/geom"

const (
	// StepPenalty is the reward for a tick that neither reaches the
	// goal nor collides.
	StepPenalty = -0.1
	// GoalReward is the reward for the tick that reaches the goal.
	GoalReward = 10.0
	// CollisionReward is the reward for the tick that stalls or
	// trips a proximity sensor.
	CollisionReward = -5.0
)

// Kind classifies the outcome of one tick.
type Kind int

const (
	KindStep Kind = iota
	KindGoal
	KindCollision
)

func (k Kind) String() string {
	switch k {
	case KindGoal:
		return "goal"
	case KindCollision:
		return "collision"
	default:
		return "step"
	}
}

// CollisionCause says which test flagged a collision.
type CollisionCause int

const (
	CauseNone CollisionCause = iota
	CauseStall
	CauseProximity
)

func (c CollisionCause) String() string {
	switch c {
	case CauseStall:
		return "stall"
	case CauseProximity:
		return "proximity"
	default:
		return "none"
	}
}

// Outcome is the scored result of one tick.
type Outcome struct {
	Reward float64
	Done   bool
	Kind   Kind
	// Cause is set when Kind is KindCollision.
	Cause CollisionCause
}

// Thresholds are the run-constant scoring parameters.
type Thresholds struct {
	// GoalThreshold is the distance to the goal under which the goal
	// counts as reached.
	GoalThreshold float64
	// CollisionThreshold is the per-tick displacement under which the
	// robot is considered stuck.
	CollisionThreshold float64
	// ProximityLimit is the proximity reading above which an obstacle
	// is considered touching.
	ProximityLimit float64
}

// DefaultThresholds returns the reference deployment's values.
func DefaultThresholds() Thresholds {
	return Thresholds{
		GoalThreshold:      0.5,
		CollisionThreshold: 0.01,
		ProximityLimit:     0.9,
	}
}

// Evaluate scores a tick. It is a pure function of its arguments.
func Evaluate(thresholds Thresholds, goal, current, previous geom.Vec2, proximity []float64) Outcome {
	if ReachedGoal(thresholds, goal, current) {
		return Outcome{Reward: GoalReward, Done: true, Kind: KindGoal}
	}
	if cause := DetectCollision(thresholds, current, previous, proximity); cause != CauseNone {
		return Outcome{Reward: CollisionReward, Done: true, Kind: KindCollision, Cause: cause}
	}
	return Outcome{Reward: StepPenalty, Kind: KindStep}
}

// ReachedGoal reports whether current is strictly within the goal
// threshold.
func ReachedGoal(thresholds Thresholds, goal, current geom.Vec2) bool {
	return current.Distance(goal) < thresholds.GoalThreshold
}

// DetectCollision returns the first collision test that fires, or
// CauseNone. The stall test is checked before the proximity ring.
func DetectCollision(thresholds Thresholds, current, previous geom.Vec2, proximity []float64) CollisionCause {
	if current.Distance(previous) < thresholds.CollisionThreshold {
		return CauseStall
	}
	for _, reading := range proximity {
		if reading > thresholds.ProximityLimit {
			return CauseProximity
		}
	}
	return CauseNone
}

// Evaluator carries the goal and thresholds for one agent together
// with the previous-position memory that the stall test needs.
type Evaluator struct {
	thresholds Thresholds
	goal       geom.Vec2
	previous   geom.Vec2
}

// NewEvaluator returns an Evaluator whose previous position starts at
// start.
func NewEvaluator(thresholds Thresholds, goal, start geom.Vec2) *Evaluator {
	return &Evaluator{thresholds: thresholds, goal: goal, previous: start}
}

// Evaluate scores the tick ending at current and then records current
// as the previous position, whatever the outcome.
func (e *Evaluator) Evaluate(current geom.Vec2, proximity []float64) Outcome {
	outcome := Evaluate(e.thresholds, e.goal, current, e.previous, proximity)
	e.previous = current
	return outcome
}

// Snapshot overwrites the previous position, used at episode and
// experiment resets.
func (e *Evaluator) Snapshot(position geom.Vec2) { e.previous = position }

// Previous returns the remembered previous position.
func (e *Evaluator) Previous() geom.Vec2 { return e.previous }

// Goal returns the goal position.
func (e *Evaluator) Goal() geom.Vec2 { return e.goal }
