// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"bufio"
	"context"
	"errors"
	"net"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bureau-foundation/qswarm/lib/clock"
	"github.com/bureau-foundation/qswarm/lib/testutil"
)

// pipe returns a Conn and the raw far end of an in-memory connection.
func pipe(t *testing.T, replyTimeout time.Duration) (*Conn, net.Conn) {
	t.Helper()
	near, far := net.Pipe()
	t.Cleanup(func() {
		near.Close()
		far.Close()
	})
	return NewConn(near, replyTimeout), far
}

func TestSendAppendsDelimiter(t *testing.T) {
	conn, far := pipe(t, time.Second)

	received := make(chan string, 1)
	go func() {
		line, _ := bufio.NewReader(far).ReadString('\n')
		received <- line
	}()

	if err := conn.Send("STATE|1|0|0"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	line := testutil.RequireReceive(t, received, 5*time.Second, "waiting for sent line")
	if line != "STATE|1|0|0\n" {
		t.Fatalf("peer read %q, want %q", line, "STATE|1|0|0\n")
	}
}

func TestSendRejectsEmbeddedDelimiter(t *testing.T) {
	conn, _ := pipe(t, time.Second)
	if err := conn.Send("STATE|1\nACK"); err == nil {
		t.Fatal("Send accepted a line containing the delimiter")
	}
}

func TestReceive(t *testing.T) {
	conn, far := pipe(t, 5*time.Second)

	go func() {
		// Two messages and an empty line in a single write: each
		// Receive must return exactly one of them.
		far.Write([]byte("ACTION|2\nACK\n\n"))
	}()

	for _, want := range []string{"ACTION|2", "ACK", ""} {
		line, err := conn.Receive()
		if err != nil {
			t.Fatalf("Receive: %v", err)
		}
		if line != want {
			t.Fatalf("Receive() = %q, want %q", line, want)
		}
	}
}

func TestReceiveTimeout(t *testing.T) {
	conn, _ := pipe(t, 20*time.Millisecond)

	line, err := conn.Receive()
	if !errors.Is(err, ErrNoReply) {
		t.Fatalf("Receive() error = %v, want ErrNoReply", err)
	}
	if line != "" {
		t.Fatalf("Receive() = %q on timeout, want empty", line)
	}
}

func TestReceivePeerClosed(t *testing.T) {
	conn, far := pipe(t, 5*time.Second)
	far.Close()

	_, err := conn.Receive()
	if !errors.Is(err, ErrNoReply) {
		t.Fatalf("Receive() error = %v, want ErrNoReply", err)
	}
	if !IsExpectedCloseError(err) {
		t.Fatalf("IsExpectedCloseError(%v) = false", err)
	}
}

func TestReceiveLineTooLong(t *testing.T) {
	conn, far := pipe(t, 5*time.Second)
	go func() {
		far.Write([]byte(strings.Repeat("x", MaxLineSize+1)))
	}()

	if _, err := conn.Receive(); !errors.Is(err, ErrLineTooLong) {
		t.Fatalf("Receive() error = %v, want ErrLineTooLong", err)
	}
}

func TestCloseIdempotent(t *testing.T) {
	conn, _ := pipe(t, time.Second)

	if err := conn.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := conn.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if !conn.Closed() {
		t.Fatal("Closed() = false after Close")
	}
	if err := conn.Send("ACK"); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("Send after Close = %v, want ErrNotConnected", err)
	}
	if _, err := conn.Receive(); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("Receive after Close = %v, want ErrNotConnected", err)
	}
}

// flakyDialer fails the first failures dials, then hands out pipes.
type flakyDialer struct {
	failures int
	dials    atomic.Int32
}

func (d *flakyDialer) DialContext(ctx context.Context, address string) (net.Conn, error) {
	n := int(d.dials.Add(1))
	if n <= d.failures {
		return nil, errors.New("connection refused")
	}
	near, far := net.Pipe()
	go func() {
		// Hold the far end open until the near end closes.
		buffer := make([]byte, 1)
		far.Read(buffer)
		far.Close()
	}()
	return near, nil
}

func TestConnectRetriesWithBackoff(t *testing.T) {
	fake := clock.Fake(time.Unix(1_700_000_000, 0))
	dialer := &flakyDialer{failures: 2}

	type result struct {
		conn *Conn
		err  error
	}
	results := make(chan result, 1)
	go func() {
		conn, err := Connect(context.Background(), ConnectOptions{
			Address:      "learner:5555",
			Attempts:     10,
			RetryBackoff: time.Second,
			Dialer:       dialer,
			Clock:        fake,
		})
		results <- result{conn, err}
	}()

	for range 2 {
		fake.WaitForTimers(1)
		fake.Advance(time.Second)
	}

	got := testutil.RequireReceive(t, results, 5*time.Second, "waiting for Connect")
	if got.err != nil {
		t.Fatalf("Connect: %v", got.err)
	}
	defer got.conn.Close()
	if dials := dialer.dials.Load(); dials != 3 {
		t.Fatalf("dialed %d times, want 3", dials)
	}
}

func TestConnectExhaustsAttempts(t *testing.T) {
	fake := clock.Fake(time.Unix(1_700_000_000, 0))
	dialer := &flakyDialer{failures: 100}

	errs := make(chan error, 1)
	go func() {
		_, err := Connect(context.Background(), ConnectOptions{
			Address:      "learner:5555",
			Attempts:     3,
			RetryBackoff: time.Second,
			Dialer:       dialer,
			Clock:        fake,
		})
		errs <- err
	}()

	// No wait follows the final attempt.
	for range 2 {
		fake.WaitForTimers(1)
		fake.Advance(time.Second)
	}

	err := testutil.RequireReceive(t, errs, 5*time.Second, "waiting for Connect")
	if !errors.Is(err, ErrConnectionFailed) {
		t.Fatalf("Connect() error = %v, want ErrConnectionFailed", err)
	}
	if dials := dialer.dials.Load(); dials != 3 {
		t.Fatalf("dialed %d times, want 3", dials)
	}
	if fake.Pending() != 0 {
		t.Fatalf("%d timers left pending after exhaustion", fake.Pending())
	}
}

func TestConnectCancelledDuringBackoff(t *testing.T) {
	fake := clock.Fake(time.Unix(1_700_000_000, 0))
	ctx, cancel := context.WithCancel(context.Background())

	errs := make(chan error, 1)
	go func() {
		_, err := Connect(ctx, ConnectOptions{
			Address:      "learner:5555",
			Attempts:     10,
			RetryBackoff: time.Hour,
			Dialer:       &flakyDialer{failures: 100},
			Clock:        fake,
		})
		errs <- err
	}()

	fake.WaitForTimers(1)
	cancel()

	err := testutil.RequireReceive(t, errs, 5*time.Second, "waiting for Connect")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Connect() error = %v, want context.Canceled", err)
	}
}

func TestConnectOverLoopback(t *testing.T) {
	listener := testutil.Loopback(t)

	accepted := make(chan string, 1)
	go func() {
		peer, err := listener.Accept()
		if err != nil {
			return
		}
		defer peer.Close()
		line, _ := bufio.NewReader(peer).ReadString('\n')
		accepted <- line
		peer.Write([]byte("ACTION|1\n"))
	}()

	conn, err := Connect(context.Background(), ConnectOptions{
		Address:      listener.Addr().String(),
		Attempts:     1,
		ReplyTimeout: 5 * time.Second,
		Dialer:       &TCPDialer{Timeout: 2 * time.Second, UserTimeout: 5 * time.Second},
	})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer conn.Close()

	if err := conn.Send("STATE|0|1|2"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if line := testutil.RequireReceive(t, accepted, 5*time.Second, "waiting for peer to read"); line != "STATE|0|1|2\n" {
		t.Fatalf("peer read %q", line)
	}
	reply, err := conn.Receive()
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if reply != "ACTION|1" {
		t.Fatalf("Receive() = %q, want ACTION|1", reply)
	}
}

func TestConnectRefused(t *testing.T) {
	_, err := Connect(context.Background(), ConnectOptions{
		Address:  testutil.RefusedAddress(t),
		Attempts: 1,
		Dialer:   &TCPDialer{Timeout: 2 * time.Second},
	})
	if !errors.Is(err, ErrConnectionFailed) {
		t.Fatalf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestIsExpectedCloseError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"closed", net.ErrClosed, true},
		{"wrapped no reply", ErrNoReply, false},
		{"other", errors.New("boom"), false},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := IsExpectedCloseError(test.err); got != test.want {
				t.Fatalf("IsExpectedCloseError(%v) = %v, want %v", test.err, got, test.want)
			}
		})
	}
}
