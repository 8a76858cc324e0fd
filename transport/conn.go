// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/bureau-foundation/qswarm/lib/clock"
)

// MaxLineSize bounds a single received line, delimiter included. A
// STATE line for a 24-sensor ring is a few hundred bytes; this only
// guards against a peer that never sends a delimiter.
const MaxLineSize = 64 << 10

const delimiter = '\n'

// Conn is a newline-delimited text stream over one socket.
type Conn struct {
	conn         net.Conn
	reader       *bufio.Reader
	replyTimeout time.Duration

	closeOnce sync.Once
	mu        sync.Mutex
	closed    bool
}

// NewConn wraps an established connection. replyTimeout bounds each
// Receive and Send; zero waits indefinitely.
func NewConn(conn net.Conn, replyTimeout time.Duration) *Conn {
	return &Conn{
		conn:         conn,
		reader:       bufio.NewReaderSize(conn, MaxLineSize),
		replyTimeout: replyTimeout,
	}
}

// Send writes line followed by one delimiter. line must not contain
// the delimiter itself.
func (c *Conn) Send(line string) error {
	if c.Closed() {
		return ErrNotConnected
	}
	if strings.IndexByte(line, delimiter) >= 0 {
		return fmt.Errorf("transport: line contains the delimiter: %q", line)
	}
	if err := c.conn.SetWriteDeadline(c.deadline()); err != nil {
		return fmt.Errorf("setting write deadline: %w", err)
	}
	buffer := make([]byte, 0, len(line)+1)
	buffer = append(buffer, line...)
	buffer = append(buffer, delimiter)
	if _, err := c.conn.Write(buffer); err != nil {
		return fmt.Errorf("writing line: %w", err)
	}
	return nil
}

// Receive blocks for one line and returns it without the delimiter.
// An empty string with a nil error means the peer sent an empty line.
// When nothing arrives within the reply timeout, or the peer closes
// the stream, the error wraps ErrNoReply.
func (c *Conn) Receive() (string, error) {
	if c.Closed() {
		return "", ErrNotConnected
	}
	if err := c.conn.SetReadDeadline(c.deadline()); err != nil {
		return "", fmt.Errorf("setting read deadline: %w", err)
	}
	line, err := c.reader.ReadSlice(delimiter)
	if err != nil {
		switch {
		case errors.Is(err, bufio.ErrBufferFull):
			return "", ErrLineTooLong
		case errors.Is(err, io.EOF):
			return "", fmt.Errorf("%w: peer closed the connection: %w", ErrNoReply, err)
		case errors.Is(err, os.ErrDeadlineExceeded):
			return "", fmt.Errorf("%w: no line within %v: %w", ErrNoReply, c.replyTimeout, err)
		default:
			return "", fmt.Errorf("reading line: %w", err)
		}
	}
	return string(line[:len(line)-1]), nil
}

// Close releases the socket. It is safe to call more than once; only
// the first call can return an error.
func (c *Conn) Close() error {
	var closeErr error
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		err := c.conn.Close()
		if err != nil && !IsExpectedCloseError(err) {
			closeErr = err
		}
	})
	return closeErr
}

// Closed reports whether Close has been called.
func (c *Conn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// RemoteAddress returns the peer's address.
func (c *Conn) RemoteAddress() string {
	return c.conn.RemoteAddr().String()
}

func (c *Conn) deadline() time.Time {
	if c.replyTimeout <= 0 {
		return time.Time{}
	}
	return time.Now().Add(c.replyTimeout) //nolint:realclock // socket deadlines are kernel wall time
}

// ConnectOptions configures Connect.
type ConnectOptions struct {
	// Address is the learner's host:port.
	Address string

	// Attempts is the number of dials before giving up. Values below
	// one mean a single attempt.
	Attempts int

	// RetryBackoff is the fixed wait between failed attempts.
	RetryBackoff time.Duration

	// ReplyTimeout is passed to the resulting Conn.
	ReplyTimeout time.Duration

	// Dialer opens the socket. Nil uses a TCPDialer with no timeout.
	Dialer Dialer

	// Clock measures the retry backoff. Nil uses the real clock.
	Clock clock.Clock

	// Logger receives one warning per failed attempt. Nil discards.
	Logger *slog.Logger
}

// Connect dials options.Address until it succeeds or the attempts are
// exhausted, waiting RetryBackoff between attempts. Exhaustion returns
// an error wrapping ErrConnectionFailed and the last dial error.
// Context cancellation stops the loop early and returns ctx.Err().
func Connect(ctx context.Context, options ConnectOptions) (*Conn, error) {
	dialer := options.Dialer
	if dialer == nil {
		dialer = &TCPDialer{}
	}
	clk := options.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	attempts := max(options.Attempts, 1)

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		conn, err := dialer.DialContext(ctx, options.Address)
		if err == nil {
			logger.Info("connected to peer",
				"address", options.Address,
				"attempt", attempt,
			)
			return NewConn(conn, options.ReplyTimeout), nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, fmt.Errorf("connecting to %s: %w", options.Address, ctx.Err())
		}
		if attempt == attempts {
			break
		}
		logger.Warn("connect failed, retrying",
			"address", options.Address,
			"attempt", attempt,
			"attempts", attempts,
			"backoff", options.RetryBackoff,
			"error", err,
		)
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("connecting to %s: %w", options.Address, ctx.Err())
		case <-clk.After(options.RetryBackoff):
		}
	}
	return nil, fmt.Errorf("%w: %d attempts to %s: %w", ErrConnectionFailed, attempts, options.Address, lastErr)
}
