// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package swarm

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/qswarm/lib/actuation"
	"github.com/bureau-foundation/qswarm/lib/config"
	"github.com/bureau-foundation/qswarm/lib/learner"
	"github.com/bureau-foundation/qswarm/lib/recording"
	"github.com/bureau-foundation/qswarm/lib/testutil"
)

// disconnectedConfig points every agent at a closed port so the swarm
// runs on random fallback actions without a learner.
func disconnectedConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Swarm.Agents = 3
	cfg.Agent.MaxSteps = 5
	cfg.Agent.MaxEpisodes = 2
	cfg.Peer.Address = testutil.RefusedAddress(t)
	cfg.Peer.ConnectAttempts = 1
	cfg.Peer.Reconnect.Enabled = false
	return cfg
}

func newTestSwarm(t *testing.T, cfg *config.Config, options Options) *Swarm {
	t.Helper()
	s, err := New(context.Background(), cfg, options)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return s
}

func TestRunDisconnectedUntilFinished(t *testing.T) {
	cfg := disconnectedConfig(t)
	s := newTestSwarm(t, cfg, Options{})

	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !s.Finished() {
		t.Fatal("Run returned before every agent finished")
	}

	reports := s.Reports()
	if len(reports) != 3 {
		t.Fatalf("got %d reports, want 3", len(reports))
	}
	for i, report := range reports {
		wantName := "fb" + string(rune('0'+i))
		if report.Name != wantName || int(report.ID) != i {
			t.Errorf("report %d: name %q id %d, want %q id %d", i, report.Name, report.ID, wantName, i)
		}
		stats := report.Stats
		if stats.Connected {
			t.Errorf("%s: connected to a closed port", report.Name)
		}
		if !stats.Finished || stats.Episode != cfg.Agent.MaxEpisodes {
			t.Errorf("%s: finished=%v episode=%d, want finished at %d", report.Name, stats.Finished, stats.Episode, cfg.Agent.MaxEpisodes)
		}
		if ended := stats.Goals + stats.Collisions + stats.StepLimits; ended != cfg.Agent.MaxEpisodes {
			t.Errorf("%s: %d episodes ended, want %d", report.Name, ended, cfg.Agent.MaxEpisodes)
		}
		if stats.RandomActions != stats.TotalSteps || stats.Exchanges != 0 {
			t.Errorf("%s: random=%d total=%d exchanges=%d", report.Name, stats.RandomActions, stats.TotalSteps, stats.Exchanges)
		}
	}
}

func TestRunStopsAtTickLimit(t *testing.T) {
	cfg := disconnectedConfig(t)
	cfg.Agent.MaxEpisodes = 1000
	s := newTestSwarm(t, cfg, Options{MaxTicks: 7})

	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if s.Ticks() != 7 {
		t.Errorf("ticks = %d, want 7", s.Ticks())
	}
	if s.Finished() {
		t.Error("swarm reports finished after a tick limit")
	}
}

func TestRunReturnsContextError(t *testing.T) {
	cfg := disconnectedConfig(t)
	s := newTestSwarm(t, cfg, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run error = %v, want context.Canceled", err)
	}
	if s.Ticks() != 0 {
		t.Errorf("ticks = %d after cancellation, want 0", s.Ticks())
	}
}

func TestZeroEpisodesIsFinishedImmediately(t *testing.T) {
	cfg := disconnectedConfig(t)
	cfg.Agent.MaxEpisodes = 0
	s := newTestSwarm(t, cfg, Options{})

	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if s.Ticks() != 0 {
		t.Errorf("ticks = %d, want 0", s.Ticks())
	}
}

func TestRecordingsPerAgent(t *testing.T) {
	cfg := disconnectedConfig(t)
	cfg.Swarm.Agents = 2
	cfg.Recording.Directory = t.TempDir()
	cfg.Recording.Compression = "lz4"

	s, err := New(context.Background(), cfg, Options{RunID: "run-7"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	reports := s.Reports()
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	for _, report := range reports {
		if filepath.Dir(report.Recording) != cfg.Recording.Directory ||
			!strings.HasSuffix(report.Recording, "run-7-"+report.Name+RecordingExtension) {
			t.Errorf("%s: unexpected recording path %q", report.Name, report.Recording)
		}
		recorded, err := recording.Read(report.Recording)
		if err != nil {
			t.Fatalf("%s: Read: %v", report.Name, err)
		}
		if recorded.Compression != recording.CompressionLZ4 {
			t.Errorf("%s: compression = %v", report.Name, recorded.Compression)
		}
		if recorded.Header.RunID != "run-7" || recorded.Header.AgentName != report.Name || recorded.Header.AgentID != int(report.ID) {
			t.Errorf("%s: header = %+v", report.Name, recorded.Header)
		}
		if len(recorded.Episodes) != cfg.Agent.MaxEpisodes {
			t.Fatalf("%s: %d episodes recorded, want %d", report.Name, len(recorded.Episodes), cfg.Agent.MaxEpisodes)
		}
		for i, episode := range recorded.Episodes {
			if episode.Index != i || episode.Steps < 1 || episode.Steps > cfg.Agent.MaxSteps {
				t.Errorf("%s: episode %d = %+v", report.Name, i, episode)
			}
			if episode.RandomActions != episode.Steps {
				t.Errorf("%s: episode %d random actions %d, steps %d", report.Name, i, episode.RandomActions, episode.Steps)
			}
		}
	}
}

func TestNewRejectsBadCompression(t *testing.T) {
	cfg := disconnectedConfig(t)
	cfg.Recording.Directory = t.TempDir()
	cfg.Recording.Compression = "gzip"
	if _, err := New(context.Background(), cfg, Options{}); err == nil {
		t.Fatal("expected error for unknown compression")
	}
}

// serveFixedAction runs a learner that answers every STATE with
// action and returns a config with one agent pointed at it.
func serveFixedAction(t *testing.T, action actuation.Action) *config.Config {
	t.Helper()
	server, err := learner.NewServer(learner.Config{Policy: learner.FixedPolicy(action)})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	listener := testutil.Loopback(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.Serve(ctx, listener) }()
	t.Cleanup(func() {
		cancel()
		if err := testutil.RequireReceive(t, done, 5*time.Second, "learner did not stop"); err != nil {
			t.Errorf("Serve: %v", err)
		}
	})

	cfg := config.Default()
	cfg.Swarm.Agents = 1
	cfg.Arena.Obstacles = nil
	cfg.Peer.Address = listener.Addr().String()
	cfg.Peer.ConnectAttempts = 1
	return cfg
}

func TestStoppedRobotCollidesOnFirstStep(t *testing.T) {
	cfg := serveFixedAction(t, actuation.Stop)
	cfg.Agent.MaxEpisodes = 3
	cfg.Agent.MaxSteps = 50
	s := newTestSwarm(t, cfg, Options{})

	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	stats := s.Reports()[0].Stats
	if !stats.Connected || stats.Exchanges != stats.TotalSteps {
		t.Fatalf("connected=%v exchanges=%d steps=%d", stats.Connected, stats.Exchanges, stats.TotalSteps)
	}
	if stats.Collisions != 3 || stats.TotalSteps != 3 {
		t.Errorf("collisions=%d total steps=%d, want a collision on step 1 of each of 3 episodes",
			stats.Collisions, stats.TotalSteps)
	}
}

func TestMovingRobotSurvivesFirstStep(t *testing.T) {
	cfg := serveFixedAction(t, actuation.MoveForward)
	cfg.Agent.MaxEpisodes = 3
	cfg.Agent.MaxSteps = 1
	s := newTestSwarm(t, cfg, Options{})

	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	stats := s.Reports()[0].Stats
	if stats.StepLimits != 3 || stats.Collisions != 0 {
		t.Errorf("step limits=%d collisions=%d, want every episode to reach its one-step limit",
			stats.StepLimits, stats.Collisions)
	}
}
