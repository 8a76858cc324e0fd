// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/bureau-foundation/qswarm/lib/actuation"
	"github.com/bureau-foundation/qswarm/lib/clock"
	"github.com/bureau-foundation/qswarm/lib/episode"
	"github.com/bureau-foundation/qswarm/lib/geom"
	"github.com/bureau-foundation/qswarm/lib/recording"
	"github.com/bureau-foundation/qswarm/lib/reward"
	"github.com/bureau-foundation/qswarm/lib/wire"
	"github.com/bureau-foundation/qswarm/transport"
)

// Sensors is the observation side of the simulation host.
type Sensors interface {
	Position() geom.Vec2
	Proximity() []float64
}

// Peer is the learner connection. *peer.Client implements it.
type Peer interface {
	Connect(ctx context.Context) error
	RequestAction(ctx context.Context, observation wire.Observation) (actuation.Action, error)
	ReportReward(ctx context.Context, reward float64, done bool) error
	Connected() bool
	Close() error
}

// Recorder receives a summary of every finished episode.
// *recording.Writer implements it.
type Recorder interface {
	Write(episode recording.Episode) error
}

// Config holds the run-constant agent parameters.
type Config struct {
	Name        string
	ID          wire.AgentID
	Goal        geom.Vec2
	Velocity    float64
	MaxSteps    int
	MaxEpisodes int
	Thresholds  reward.Thresholds
}

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	var errs []error
	if c.ID < 0 {
		errs = append(errs, fmt.Errorf("agent id %d is negative", c.ID))
	}
	if c.MaxSteps < 1 {
		errs = append(errs, fmt.Errorf("max_steps must be at least 1, got %d", c.MaxSteps))
	}
	if c.MaxEpisodes < 0 {
		errs = append(errs, fmt.Errorf("max_episodes must not be negative, got %d", c.MaxEpisodes))
	}
	if c.Velocity < 0 {
		errs = append(errs, fmt.Errorf("velocity must not be negative, got %v", c.Velocity))
	}
	if c.Thresholds.GoalThreshold <= 0 {
		errs = append(errs, fmt.Errorf("goal_threshold must be positive, got %v", c.Thresholds.GoalThreshold))
	}
	if c.Thresholds.CollisionThreshold < 0 {
		errs = append(errs, fmt.Errorf("collision_threshold must not be negative, got %v", c.Thresholds.CollisionThreshold))
	}
	return errors.Join(errs...)
}

// Options carries the optional collaborators.
type Options struct {
	Logger   *slog.Logger
	Clock    clock.Clock
	Recorder Recorder

	// Random drives the disconnected-mode action choice. Nil seeds a
	// PCG source from the agent id.
	Random *rand.Rand
}

// Stats is a snapshot of the controller's counters.
type Stats struct {
	Episode     int
	Step        int
	Reward      float64
	Done        bool
	Finished    bool
	Connected   bool
	Goals       int
	Collisions  int
	StepLimits  int
	TotalSteps  int
	Exchanges   int
	ReplyErrors int

	// RandomActions counts ticks driven randomly for lack of a
	// connection; DefaultActions counts MoveForward fallbacks after
	// a failed or malformed exchange.
	RandomActions  int
	DefaultActions int
}

// Controller is one agent's decision loop.
type Controller struct {
	config    Config
	sensors   Sensors
	executor  *actuation.Executor
	peer      Peer
	evaluator *reward.Evaluator
	state     *episode.State
	logger    *slog.Logger
	clock     clock.Clock
	recorder  Recorder
	random    *rand.Rand

	episodeStarted time.Time
	episodeRandom  int
	episodeDefault int
	finishedLogged bool
	closed         bool

	// pending is set by Act when a step awaits Score.
	pending     bool
	pendingStep int

	stats Stats
}

// New initializes a controller: it snapshots the starting position and
// connects to the learner. A connection failure is not an error; the
// controller runs disconnected. New returns an error only for invalid
// configuration or a cancelled context, and closes peer in that case.
func New(ctx context.Context, config Config, sensors Sensors, actuator actuation.Actuator, peer Peer, options Options) (*Controller, error) {
	if err := config.Validate(); err != nil {
		peer.Close()
		return nil, fmt.Errorf("invalid agent config for %q: %w", config.Name, err)
	}

	logger := options.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	clk := options.Clock
	if clk == nil {
		clk = clock.Real()
	}
	random := options.Random
	if random == nil {
		random = rand.New(rand.NewPCG(uint64(config.ID), 0x9e3779b97f4a7c15))
	}

	controller := &Controller{
		config:    config,
		sensors:   sensors,
		executor:  actuation.NewExecutor(actuator, config.Velocity),
		peer:      peer,
		evaluator: reward.NewEvaluator(config.Thresholds, config.Goal, sensors.Position()),
		state:     episode.New(config.MaxSteps, config.MaxEpisodes),
		logger:    logger.With("agent", config.Name, "agent_id", int(config.ID)),
		clock:     clk,
		recorder:  options.Recorder,
		random:    random,
	}

	if err := peer.Connect(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			peer.Close()
			return nil, fmt.Errorf("connecting agent %q: %w", config.Name, ctxErr)
		}
		controller.logger.Error("learner unreachable, running disconnected with random actions",
			"error", err,
		)
	}
	controller.episodeStarted = clk.Now()
	controller.logger.Info("agent initialized",
		"goal_x", config.Goal.X,
		"goal_y", config.Goal.Y,
		"max_steps", config.MaxSteps,
		"max_episodes", config.MaxEpisodes,
		"connected", peer.Connected(),
	)
	return controller, nil
}

// ControlStep runs one tick: [Controller.Act] followed at once by
// [Controller.Score]. With nothing advancing the host in between, the
// stall test sees the movement of the previous tick's action.
func (c *Controller) ControlStep(ctx context.Context) {
	c.Act(ctx)
	c.Score(ctx)
}

// Act runs the first half of a tick. A Finished agent stops its
// wheels, an agent in EpisodeDone starts the next episode, and a
// Running agent requests an action and executes it. Only the Running
// case leaves a step for Score to evaluate.
//
// Hosts that advance their physics between Act and Score get every
// step scored on the movement its own action produced.
func (c *Controller) Act(ctx context.Context) {
	switch c.state.Phase() {
	case episode.Finished:
		c.executor.Halt()
		if !c.finishedLogged {
			c.finishedLogged = true
			c.logger.Info("all episodes complete", "episodes", c.state.Episode())
		}
		return
	case episode.EpisodeDone:
		c.startNextEpisode()
		return
	}

	c.pendingStep = c.state.BeginStep()
	c.pending = true
	c.stats.TotalSteps++

	observation := wire.Observation{
		Position:  c.sensors.Position(),
		Goal:      c.config.Goal,
		Proximity: c.sensors.Proximity(),
	}

	action := c.chooseAction(ctx, observation)
	c.executor.Execute(action)
}

// Score finishes the step Act began: it reads the sensors, evaluates
// the tick locally, reports the reward, and ends the episode on goal,
// collision, or the step limit. Without a pending step it does
// nothing.
func (c *Controller) Score(ctx context.Context) {
	if !c.pending {
		return
	}
	c.pending = false

	outcome := c.evaluator.Evaluate(c.sensors.Position(), c.sensors.Proximity())
	end := c.state.Record(outcome.Reward, terminal(outcome))

	if c.peer.Connected() {
		if err := c.peer.ReportReward(ctx, outcome.Reward, outcome.Done); err != nil {
			c.logger.Warn("reward report dropped", "step", c.pendingStep, "error", err)
		}
	}

	if end != episode.NotEnded {
		c.endEpisode(end, outcome)
	}
}

// chooseAction asks the learner and converts failures to fallbacks.
func (c *Controller) chooseAction(ctx context.Context, observation wire.Observation) actuation.Action {
	action, err := c.peer.RequestAction(ctx, observation)
	if err == nil {
		c.stats.Exchanges++
		return action
	}
	if errors.Is(err, transport.ErrNotConnected) {
		c.stats.RandomActions++
		c.episodeRandom++
		return actuation.Action(c.random.IntN(actuation.Count))
	}

	c.stats.DefaultActions++
	c.episodeDefault++
	var malformed *wire.MalformedReplyError
	switch {
	case errors.As(err, &malformed), errors.Is(err, wire.ErrEmptyReply):
		c.stats.Exchanges++
		c.logger.Warn("unusable action reply, moving forward", "error", err)
	default:
		c.stats.ReplyErrors++
		c.logger.Warn("action request failed, moving forward", "error", err)
	}
	return actuation.MoveForward
}

func (c *Controller) endEpisode(end episode.End, outcome reward.Outcome) {
	switch end {
	case episode.Goal:
		c.stats.Goals++
		c.logger.Info("goal reached", "episode", c.state.Episode(), "step", c.state.Step())
	case episode.Collision:
		c.stats.Collisions++
		c.logger.Info("collision", "episode", c.state.Episode(), "step", c.state.Step(), "cause", outcome.Cause.String())
	case episode.StepLimit:
		c.stats.StepLimits++
	}
	c.logger.Info("episode ended",
		"episode", c.state.Episode(),
		"steps", c.state.Step(),
		"reward", c.state.Accumulated(),
		"outcome", end.String(),
	)

	if c.recorder == nil {
		return
	}
	record := recording.Episode{
		Index:          c.state.Episode(),
		Steps:          c.state.Step(),
		Reward:         c.state.Accumulated(),
		Outcome:        end.String(),
		RandomActions:  c.episodeRandom,
		DefaultActions: c.episodeDefault,
		StartedAt:      c.episodeStarted,
		EndedAt:        c.clock.Now(),
	}
	if err := c.recorder.Write(record); err != nil {
		c.logger.Warn("recording episode failed", "episode", record.Index, "error", err)
	}
}

func (c *Controller) startNextEpisode() {
	c.state.NextEpisode()
	c.executor.Halt()
	c.evaluator.Snapshot(c.sensors.Position())
	c.episodeRandom = 0
	c.episodeDefault = 0
	c.episodeStarted = c.clock.Now()
	if c.state.Phase() != episode.Finished {
		c.logger.Debug("starting episode", "episode", c.state.Episode())
	}
}

// Reset restarts the whole experiment: episode index back to zero,
// per-episode counters cleared, wheels stopped, and the previous
// position re-snapshotted. The learner connection is left as is.
func (c *Controller) Reset() {
	c.state.Restart()
	c.pending = false
	c.executor.Halt()
	c.evaluator.Snapshot(c.sensors.Position())
	c.episodeRandom = 0
	c.episodeDefault = 0
	c.episodeStarted = c.clock.Now()
	c.finishedLogged = false
	c.logger.Info("experiment reset")
}

// Phase returns what the next tick will do.
func (c *Controller) Phase() episode.Phase { return c.state.Phase() }

// Name returns the agent name.
func (c *Controller) Name() string { return c.config.Name }

// ID returns the agent id used on the wire.
func (c *Controller) ID() wire.AgentID { return c.config.ID }

// Stats returns a snapshot of the counters and the current episode.
func (c *Controller) Stats() Stats {
	stats := c.stats
	stats.Episode = c.state.Episode()
	stats.Step = c.state.Step()
	stats.Reward = c.state.Accumulated()
	stats.Done = c.state.Done()
	stats.Finished = c.state.Phase() == episode.Finished
	stats.Connected = c.peer.Connected()
	return stats
}

// Close releases the learner connection. Safe to call more than once;
// errors are logged, never returned to the host.
func (c *Controller) Close() {
	if c.closed {
		return
	}
	c.closed = true
	if err := c.peer.Close(); err != nil {
		c.logger.Warn("closing learner connection", "error", err)
	}
}

// Destroy is the host-facing name for Close.
func (c *Controller) Destroy() { c.Close() }

func terminal(outcome reward.Outcome) episode.Terminal {
	switch outcome.Kind {
	case reward.KindGoal:
		return episode.TerminalGoal
	case reward.KindCollision:
		return episode.TerminalCollision
	default:
		return episode.NotTerminal
	}
}
