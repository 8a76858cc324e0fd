// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package swarm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/bureau-foundation/qswarm/lib/arena"
	"github.com/bureau-foundation/qswarm/lib/clock"
	"github.com/bureau-foundation/qswarm/lib/config"
	"github.com/bureau-foundation/qswarm/lib/controller"
	"github.com/bureau-foundation/qswarm/lib/episode"
	"github.com/bureau-foundation/qswarm/lib/geom"
	"github.com/bureau-foundation/qswarm/lib/peer"
	"github.com/bureau-foundation/qswarm/lib/recording"
	"github.com/bureau-foundation/qswarm/lib/reward"
	"github.com/bureau-foundation/qswarm/lib/wire"
	"github.com/bureau-foundation/qswarm/transport"
)

// RecordingExtension is appended to every recording file name.
const RecordingExtension = ".qswrec"

// Options carries the optional collaborators for New.
type Options struct {
	Logger *slog.Logger
	Clock  clock.Clock

	// Dialer overrides the TCP dialer of every learner client.
	Dialer transport.Dialer

	// RunID names this run in recordings. Empty generates a random
	// UUID.
	RunID string

	// MaxTicks stops Run after this many ticks. Zero runs until every
	// agent has finished its episodes.
	MaxTicks int
}

// Swarm is a running group of agents. It is driven from one goroutine.
type Swarm struct {
	arena    *arena.Arena
	members  []*member
	clock    clock.Clock
	logger   *slog.Logger
	tick     time.Duration
	maxTicks int
	runID    string
	ticks    int
	closed   bool
}

type member struct {
	robot      *arena.Robot
	controller *controller.Controller
	client     *peer.Client
	writer     *recording.Writer
	path       string
}

// Report is the end-of-run view of one agent.
type Report struct {
	Name      string
	ID        wire.AgentID
	Stats     controller.Stats
	Peer      peer.Stats
	Recording string
	Bumps     int
}

// New builds the arena and one member per configured agent, and
// connects every member to the learner. Unreachable learners are not
// an error; those agents run disconnected. On error, everything built
// so far is closed.
func New(ctx context.Context, cfg *config.Config, options Options) (*Swarm, error) {
	logger := options.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	clk := options.Clock
	if clk == nil {
		clk = clock.Real()
	}
	runID := options.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	world, err := arena.New(arenaConfig(cfg.Arena))
	if err != nil {
		return nil, err
	}

	var compression recording.CompressionTag
	if cfg.Recording.Directory != "" {
		compression, err = recording.ParseCompressionTag(cfg.Recording.Compression)
		if err != nil {
			return nil, err
		}
	}

	s := &Swarm{
		arena:    world,
		clock:    clk,
		logger:   logger.With("run_id", runID),
		tick:     cfg.Swarm.Tick,
		maxTicks: options.MaxTicks,
		runID:    runID,
	}

	for i := range cfg.Swarm.Agents {
		name := fmt.Sprintf("%s%d", cfg.Swarm.NamePrefix, i)
		m, err := s.newMember(ctx, cfg, name, compression, options.Dialer)
		if err != nil {
			return nil, errors.Join(err, s.Close())
		}
		s.members = append(s.members, m)
	}

	s.logger.Info("swarm ready", "agents", len(s.members), "peer", cfg.Peer.Address)
	return s, nil
}

func (s *Swarm) newMember(ctx context.Context, cfg *config.Config, name string, compression recording.CompressionTag, dialer transport.Dialer) (*member, error) {
	id := controller.ResolveID(name, cfg.Agent.ID, s.logger)
	// The robot is spawned before controller.New snapshots its
	// starting position.
	robot := s.arena.AddRobot(name)

	client := peer.New(id, peer.Options{
		Address:         cfg.Peer.Address,
		ConnectAttempts: cfg.Peer.ConnectAttempts,
		RetryBackoff:    cfg.Peer.RetryBackoff,
		DialTimeout:     cfg.Peer.DialTimeout,
		ReplyTimeout:    cfg.Peer.ReplyTimeout,
		Reconnect: peer.ReconnectPolicy{
			Enabled:        cfg.Peer.Reconnect.Enabled,
			InitialBackoff: cfg.Peer.Reconnect.InitialBackoff,
			MaxBackoff:     cfg.Peer.Reconnect.MaxBackoff,
		},
		Dialer: dialer,
		Clock:  s.clock,
		Logger: s.logger.With("agent", name),
	})

	m := &member{robot: robot, client: client}
	controllerOptions := controller.Options{Logger: s.logger, Clock: s.clock}
	if cfg.Recording.Directory != "" {
		m.path = filepath.Join(cfg.Recording.Directory, fmt.Sprintf("%s-%s%s", s.runID, name, RecordingExtension))
		writer, err := recording.Create(m.path, recording.Header{
			RunID:     s.runID,
			AgentID:   int(id),
			AgentName: name,
			StartedAt: s.clock.Now(),
		}, compression)
		if err != nil {
			client.Close()
			return nil, err
		}
		m.writer = writer
		controllerOptions.Recorder = writer
	}

	agent, err := controller.New(ctx, controller.Config{
		Name:        name,
		ID:          id,
		Goal:        geom.Vec2{X: cfg.Agent.Goal.X, Y: cfg.Agent.Goal.Y},
		Velocity:    cfg.Agent.Velocity,
		MaxSteps:    cfg.Agent.MaxSteps,
		MaxEpisodes: cfg.Agent.MaxEpisodes,
		Thresholds: reward.Thresholds{
			GoalThreshold:      cfg.Agent.GoalThreshold,
			CollisionThreshold: cfg.Agent.CollisionThreshold,
			ProximityLimit:     cfg.Agent.ProximityLimit,
		},
	}, robot, robot, client, controllerOptions)
	if err != nil {
		if m.writer != nil {
			err = errors.Join(err, m.writer.Close())
		}
		return nil, err
	}
	m.controller = agent
	return m, nil
}

// Tick runs one tick for every agent. Robots whose controller is
// about to start a new episode are respawned first, so the episode's
// starting position is the spawn point. Every agent then acts, the
// arena advances, and every agent scores the movement its action
// produced.
func (s *Swarm) Tick(ctx context.Context) {
	for _, m := range s.members {
		if m.controller.Phase() == episode.EpisodeDone {
			s.arena.Respawn(m.robot)
		}
		m.controller.Act(ctx)
	}
	s.arena.Step()
	for _, m := range s.members {
		m.controller.Score(ctx)
	}
	s.ticks++
}

// Finished reports whether every agent has run all its episodes.
func (s *Swarm) Finished() bool {
	for _, m := range s.members {
		if m.controller.Phase() != episode.Finished {
			return false
		}
	}
	return true
}

// Ticks returns how many ticks have run.
func (s *Swarm) Ticks() int { return s.ticks }

// RunID returns the identifier written into recordings.
func (s *Swarm) RunID() string { return s.runID }

// Run ticks until every agent finishes, MaxTicks is reached, or ctx
// is cancelled. Cancellation returns ctx's error; the other two stop
// conditions return nil.
func (s *Swarm) Run(ctx context.Context) error {
	for !s.Finished() {
		if s.maxTicks > 0 && s.ticks >= s.maxTicks {
			s.logger.Info("tick limit reached", "ticks", s.ticks)
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		s.Tick(ctx)
		if s.tick > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-s.clock.After(s.tick):
			}
		}
	}
	s.logger.Info("all agents finished", "ticks", s.ticks)
	return nil
}

// Reports returns one report per agent in member order.
func (s *Swarm) Reports() []Report {
	reports := make([]Report, 0, len(s.members))
	for _, m := range s.members {
		reports = append(reports, Report{
			Name:      m.controller.Name(),
			ID:        m.controller.ID(),
			Stats:     m.controller.Stats(),
			Peer:      m.client.Stats(),
			Recording: m.path,
			Bumps:     m.robot.Bumps(),
		})
	}
	return reports
}

// Close releases every learner connection and finishes every
// recording. It is safe to call more than once.
func (s *Swarm) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	var errs []error
	for _, m := range s.members {
		m.controller.Destroy()
		if m.writer != nil {
			if err := m.writer.Close(); err != nil {
				errs = append(errs, fmt.Errorf("closing recording for %s: %w", m.controller.Name(), err))
			}
		}
	}
	return errors.Join(errs...)
}

func arenaConfig(cfg config.ArenaConfig) arena.Config {
	obstacles := make([]arena.Obstacle, 0, len(cfg.Obstacles))
	for _, obstacle := range cfg.Obstacles {
		obstacles = append(obstacles, arena.Obstacle{
			Center: geom.Vec2{X: obstacle.X, Y: obstacle.Y},
			Radius: obstacle.Radius,
		})
	}
	return arena.Config{
		Size:        cfg.Size,
		Sensors:     cfg.Sensors,
		SensorRange: cfg.SensorRange,
		RobotRadius: cfg.RobotRadius,
		WheelBase:   cfg.WheelBase,
		Seed:        cfg.Seed,
		SpawnMin:    geom.Vec2{X: cfg.SpawnMin.X, Y: cfg.SpawnMin.Y},
		SpawnMax:    geom.Vec2{X: cfg.SpawnMax.X, Y: cfg.SpawnMax.Y},
		Obstacles:   obstacles,
	}
}
