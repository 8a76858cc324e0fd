// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package integration_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/bureau-foundation/qswarm/lib/config"
	"github.com/bureau-foundation/qswarm/lib/learner"
	"github.com/bureau-foundation/qswarm/lib/testutil"
)

// runningLearner is a learner server on a loopback port.
type runningLearner struct {
	server  *learner.Server
	address string
	cancel  context.CancelFunc
	done    chan error
}

// startLearner serves on listener until stop is called or the test
// ends.
func startLearner(t *testing.T, listener net.Listener, cfg learner.Config) *runningLearner {
	t.Helper()
	server, err := learner.NewServer(cfg)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	running := &runningLearner{
		server:  server,
		address: listener.Addr().String(),
		cancel:  cancel,
		done:    make(chan error, 1),
	}
	go func() { running.done <- server.Serve(ctx, listener) }()
	t.Cleanup(func() { running.stop(t) })
	return running
}

func (r *runningLearner) stop(t *testing.T) {
	t.Helper()
	if r.cancel == nil {
		return
	}
	r.cancel()
	r.cancel = nil
	if err := testutil.RequireReceive(t, r.done, 5*time.Second, "learner did not stop"); err != nil {
		t.Errorf("Serve: %v", err)
	}
}

// swarmConfig returns a small, fast swarm aimed at address.
func swarmConfig(address string, agents, episodes, steps int) *config.Config {
	cfg := config.Default()
	cfg.Swarm.Agents = agents
	cfg.Agent.MaxEpisodes = episodes
	cfg.Agent.MaxSteps = steps
	cfg.Peer.Address = address
	cfg.Peer.ConnectAttempts = 3
	cfg.Peer.RetryBackoff = 10 * time.Millisecond
	cfg.Peer.DialTimeout = time.Second
	cfg.Peer.ReplyTimeout = 5 * time.Second
	cfg.Peer.Reconnect.InitialBackoff = 10 * time.Millisecond
	cfg.Peer.Reconnect.MaxBackoff = 40 * time.Millisecond
	return cfg
}
