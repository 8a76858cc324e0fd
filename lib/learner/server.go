// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package learner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/bureau-foundation/qswarm/lib/clock"
	"github.com/bureau-foundation/qswarm/lib/wire"
	"github.com/bureau-foundation/qswarm/transport"
)

// Config holds the parameters for NewServer.
type Config struct {
	// StateSize is the accepted STATE vector length. Zero accepts any
	// length.
	StateSize int

	// Policy answers STATE messages. Required.
	Policy Policy

	// Sink receives finished episodes. Optional.
	Sink Sink

	Clock  clock.Clock
	Logger *slog.Logger
}

// Stats counts the messages the server has handled.
type Stats struct {
	Connections int
	States      int
	Rewards     int
	Rejected    int
	Ignored     int
	Episodes    int
}

// Server is the learner side of the wire protocol.
type Server struct {
	stateSize int
	policy    Policy
	sink      Sink
	clock     clock.Clock
	logger    *slog.Logger

	// activeConnections tracks connection handlers so Serve can wait
	// for them during shutdown.
	activeConnections sync.WaitGroup

	mu        sync.Mutex
	conns     map[*transport.Conn]struct{}
	stopping  bool
	tallies   map[wire.AgentID]*tally
	summaries map[wire.AgentID]*Summary
	stats     Stats
}

// tally is the running episode of one agent.
type tally struct {
	episode int
	steps   int
	reward  float64
}

// NewServer validates cfg and returns a server ready for Serve.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Policy == nil {
		return nil, fmt.Errorf("learner: Policy is required")
	}
	if cfg.StateSize < 0 {
		return nil, fmt.Errorf("learner: StateSize must not be negative, got %d", cfg.StateSize)
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	return &Server{
		stateSize: cfg.StateSize,
		policy:    cfg.Policy,
		sink:      cfg.Sink,
		clock:     cfg.Clock,
		logger:    cfg.Logger,
		conns:     make(map[*transport.Conn]struct{}),
		tallies:   make(map[wire.AgentID]*tally),
		summaries: make(map[wire.AgentID]*Summary),
	}, nil
}

// ListenAndServe listens on a TCP address and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context, address string) error {
	var listenConfig net.ListenConfig
	listener, err := listenConfig.Listen(ctx, "tcp", address)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", address, err)
	}
	return s.Serve(ctx, listener)
}

// Serve accepts agent connections until ctx is cancelled, then closes
// the listener and every open connection and waits for their handlers
// to return. The listener is closed on return.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	defer listener.Close()

	// Unblock Accept and every pending Receive on cancellation.
	stop := context.AfterFunc(ctx, func() {
		listener.Close()
		s.closeAll()
	})
	defer stop()

	s.logger.Info("learner listening", "address", listener.Addr().String())

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			s.logger.Error("accept failed", "error", err)
			continue
		}

		lineConn := transport.NewConn(conn, 0)
		if !s.track(lineConn) {
			lineConn.Close()
			break
		}

		s.activeConnections.Add(1)
		go func() {
			defer s.activeConnections.Done()
			defer s.untrack(lineConn)
			s.handleConnection(ctx, lineConn)
		}()
	}

	s.closeAll()
	s.activeConnections.Wait()
	s.logger.Info("learner stopped")
	return nil
}

// Summaries returns per-agent aggregates of the episodes finished
// since the server started, ordered by agent id.
func (s *Server) Summaries() []Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedSummaries(s.summaries)
}

// Stats returns a snapshot of the message counters.
func (s *Server) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

func (s *Server) handleConnection(ctx context.Context, conn *transport.Conn) {
	defer conn.Close()

	logger := s.logger.With("remote", conn.RemoteAddress())
	logger.Info("agent connected")

	for {
		line, err := conn.Receive()
		if err != nil {
			switch {
			case errors.Is(err, transport.ErrNoReply), conn.Closed(), transport.IsExpectedCloseError(err):
				logger.Info("agent disconnected")
			default:
				logger.Warn("closing agent connection", "error", err)
			}
			return
		}

		reply, ok := s.handle(ctx, line)
		if !ok {
			continue
		}
		if err := conn.Send(reply); err != nil {
			logger.Warn("reply failed", "error", err)
			return
		}
	}
}

// handle returns the reply for one line, or false when the line gets
// no reply.
func (s *Server) handle(ctx context.Context, line string) (string, bool) {
	request, err := wire.ParseRequest(line)

	switch request.Type {
	case wire.TypeState:
		if err != nil {
			s.reject("malformed STATE", err, line)
			return wire.EncodeAction(0), true
		}
		if s.stateSize > 0 && len(request.State) != s.stateSize {
			s.reject("STATE size mismatch",
				fmt.Errorf("got %d values, want %d", len(request.State), s.stateSize), line)
			return wire.EncodeAction(0), true
		}
		s.count(func(stats *Stats) { stats.States++ })
		return wire.EncodeAction(s.policy.Choose(request.AgentID, request.State)), true

	case wire.TypeReward:
		if err != nil {
			s.reject("malformed REWARD", err, line)
			return wire.TypeAck, true
		}
		s.recordReward(ctx, request)
		return wire.TypeAck, true

	default:
		s.count(func(stats *Stats) { stats.Ignored++ })
		s.logger.Warn("ignoring unknown message type", "type", request.Type)
		return "", false
	}
}

func (s *Server) recordReward(ctx context.Context, request wire.Request) {
	s.mu.Lock()
	s.stats.Rewards++
	current, exists := s.tallies[request.AgentID]
	if !exists {
		current = &tally{}
		s.tallies[request.AgentID] = current
	}
	current.steps++
	current.reward += request.Reward
	if !request.Done {
		s.mu.Unlock()
		return
	}

	finished := Episode{
		AgentID: request.AgentID,
		Index:   current.episode,
		Steps:   current.steps,
		Reward:  current.reward,
		EndedAt: s.clock.Now(),
	}
	*current = tally{episode: current.episode + 1}

	summary, exists := s.summaries[request.AgentID]
	if !exists {
		summary = &Summary{AgentID: request.AgentID}
		s.summaries[request.AgentID] = summary
	}
	summary.add(finished)
	s.stats.Episodes++
	s.mu.Unlock()

	s.logger.Info("episode finished",
		"agent_id", int(finished.AgentID),
		"episode", finished.Index,
		"steps", finished.Steps,
		"reward", finished.Reward,
	)
	if s.sink != nil {
		if err := s.sink.Record(ctx, finished); err != nil {
			s.logger.Error("storing episode failed", "agent_id", int(finished.AgentID), "error", err)
		}
	}
}

func (s *Server) reject(message string, err error, line string) {
	s.count(func(stats *Stats) { stats.Rejected++ })
	s.logger.Warn(message, "line", line, "error", err)
}

func (s *Server) count(update func(*Stats)) {
	s.mu.Lock()
	update(&s.stats)
	s.mu.Unlock()
}

func (s *Server) track(conn *transport.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopping {
		return false
	}
	s.conns[conn] = struct{}{}
	s.stats.Connections++
	return true
}

func (s *Server) untrack(conn *transport.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
}

func (s *Server) closeAll() {
	s.mu.Lock()
	s.stopping = true
	conns := make([]*transport.Conn, 0, len(s.conns))
	for conn := range s.conns {
		conns = append(conns, conn)
	}
	s.mu.Unlock()

	for _, conn := range conns {
		conn.Close()
	}
}
