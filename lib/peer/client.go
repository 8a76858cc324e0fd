// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package peer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bureau-foundation/qswarm/lib/actuation"
	"github.com/bureau-foundation/qswarm/lib/clock"
	"github.com/bureau-foundation/qswarm/lib/wire"
	"github.com/bureau-foundation/qswarm/transport"
)

// ReconnectPolicy configures the self-healing circuit breaker.
type ReconnectPolicy struct {
	Enabled        bool
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// Options configures a Client.
type Options struct {
	// Address is the learner's host:port.
	Address string

	// ConnectAttempts and RetryBackoff govern the initial Connect.
	ConnectAttempts int
	RetryBackoff    time.Duration

	// DialTimeout bounds each individual dial.
	DialTimeout time.Duration

	// ReplyTimeout bounds each wait for an ACTION or acknowledgment
	// line. Zero waits indefinitely.
	ReplyTimeout time.Duration

	Reconnect ReconnectPolicy

	// Dialer overrides the TCP dialer, for tests.
	Dialer transport.Dialer

	Clock  clock.Clock
	Logger *slog.Logger
}

// Stats counts connection lifecycle events.
type Stats struct {
	Disconnects       int
	Reconnects        int
	ReconnectFailures int
}

// Client speaks the line protocol for one agent. It is owned by a
// single control loop and is not safe for concurrent use.
type Client struct {
	id      wire.AgentID
	options Options
	dialer  transport.Dialer
	clock   clock.Clock
	logger  *slog.Logger

	conn   *transport.Conn
	closed bool

	// Reconnect gate.
	backoff     time.Duration
	nextAttempt time.Time

	stats Stats
}

// New returns a disconnected client for agent id. Call Connect to
// establish the initial connection.
func New(id wire.AgentID, options Options) *Client {
	clk := options.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	dialer := options.Dialer
	if dialer == nil {
		dialer = &transport.TCPDialer{
			Timeout:     options.DialTimeout,
			UserTimeout: options.ReplyTimeout,
		}
	}
	return &Client{
		id:      id,
		options: options,
		dialer:  dialer,
		clock:   clk,
		logger:  logger.With("peer", options.Address),
	}
}

// Connect performs the initial connection with retries. Failure is
// returned wrapping transport.ErrConnectionFailed; the client remains
// usable in disconnected mode and, when reconnect is enabled, arms the
// reconnect gate.
func (c *Client) Connect(ctx context.Context) error {
	if c.closed {
		return transport.ErrNotConnected
	}
	conn, err := transport.Connect(ctx, transport.ConnectOptions{
		Address:      c.options.Address,
		Attempts:     c.options.ConnectAttempts,
		RetryBackoff: c.options.RetryBackoff,
		ReplyTimeout: c.options.ReplyTimeout,
		Dialer:       c.dialer,
		Clock:        c.clock,
		Logger:       c.logger,
	})
	if err != nil {
		c.armGate()
		return err
	}
	c.conn = conn
	return nil
}

// Connected reports whether the client holds a usable connection.
func (c *Client) Connected() bool { return c.conn != nil }

// Stats returns the connection lifecycle counters.
func (c *Client) Stats() Stats { return c.stats }

// RequestAction sends the observation as a STATE message and waits for
// the ACTION reply. Out-of-range action ids map to MoveForward without
// error. On error the returned action is MoveForward; the error says
// whether there was no connection (transport.ErrNotConnected), the
// exchange failed, or the reply did not decode.
func (c *Client) RequestAction(ctx context.Context, observation wire.Observation) (actuation.Action, error) {
	if !c.ensureConnected(ctx) {
		return actuation.MoveForward, transport.ErrNotConnected
	}
	if err := c.conn.Send(wire.EncodeState(c.id, observation)); err != nil {
		c.drop("sending state", err)
		return actuation.MoveForward, fmt.Errorf("sending state: %w", err)
	}
	line, err := c.conn.Receive()
	if err != nil {
		c.drop("awaiting action", err)
		return actuation.MoveForward, fmt.Errorf("awaiting action: %w", err)
	}
	id, err := wire.DecodeAction(line)
	if err != nil {
		return actuation.MoveForward, err
	}
	return actuation.FromID(id), nil
}

// ReportReward sends a REWARD message and waits for one acknowledgment
// line, whose content is ignored. It never reconnects: while the
// client is disconnected it returns transport.ErrNotConnected without
// touching the network.
func (c *Client) ReportReward(ctx context.Context, reward float64, done bool) error {
	if c.conn == nil {
		return transport.ErrNotConnected
	}
	if err := c.conn.Send(wire.EncodeReward(c.id, reward, done)); err != nil {
		c.drop("sending reward", err)
		return fmt.Errorf("sending reward: %w", err)
	}
	if _, err := c.conn.Receive(); err != nil {
		c.drop("awaiting acknowledgment", err)
		return fmt.Errorf("awaiting acknowledgment: %w", err)
	}
	return nil
}

// Close releases the connection. Safe to call more than once, and on a
// client that never connected. A closed client does not reconnect.
func (c *Client) Close() error {
	c.closed = true
	if c.conn == nil {
		return nil
	}
	conn := c.conn
	c.conn = nil
	if err := conn.Close(); err != nil {
		return fmt.Errorf("closing connection to %s: %w", c.options.Address, err)
	}
	return nil
}

// ensureConnected returns true when a connection is available,
// attempting one inline dial if the reconnect gate is open.
func (c *Client) ensureConnected(ctx context.Context) bool {
	if c.conn != nil {
		return true
	}
	if c.closed || !c.options.Reconnect.Enabled || c.nextAttempt.IsZero() {
		return false
	}
	now := c.clock.Now()
	if now.Before(c.nextAttempt) {
		return false
	}

	conn, err := transport.Connect(ctx, transport.ConnectOptions{
		Address:      c.options.Address,
		Attempts:     1,
		ReplyTimeout: c.options.ReplyTimeout,
		Dialer:       c.dialer,
		Clock:        c.clock,
	})
	if err != nil {
		c.stats.ReconnectFailures++
		c.backoff = min(c.backoff*2, c.maxBackoff())
		c.nextAttempt = now.Add(c.backoff)
		c.logger.Warn("reconnect failed",
			"error", err,
			"next_attempt_in", c.backoff,
		)
		return false
	}

	c.conn = conn
	c.stats.Reconnects++
	c.backoff = 0
	c.nextAttempt = time.Time{}
	c.logger.Info("reconnected to peer")
	return true
}

// drop closes a connection whose stream can no longer be trusted and
// arms the reconnect gate.
func (c *Client) drop(operation string, cause error) {
	if transport.IsExpectedCloseError(cause) {
		c.logger.Info("peer closed connection", "operation", operation, "error", cause)
	} else {
		c.logger.Warn("peer exchange failed, dropping connection", "operation", operation, "error", cause)
	}
	if err := c.conn.Close(); err != nil {
		c.logger.Warn("closing failed connection", "error", err)
	}
	c.conn = nil
	c.stats.Disconnects++
	c.armGate()
}

func (c *Client) armGate() {
	if !c.options.Reconnect.Enabled || c.closed {
		return
	}
	c.backoff = c.initialBackoff()
	c.nextAttempt = c.clock.Now().Add(c.backoff)
}

func (c *Client) initialBackoff() time.Duration {
	if c.options.Reconnect.InitialBackoff > 0 {
		return c.options.Reconnect.InitialBackoff
	}
	return time.Second
}

func (c *Client) maxBackoff() time.Duration {
	if c.options.Reconnect.MaxBackoff > 0 {
		return max(c.options.Reconnect.MaxBackoff, c.initialBackoff())
	}
	return 30 * time.Second
}
