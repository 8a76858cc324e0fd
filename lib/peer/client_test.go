// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package peer

import (
	"bufio"
	"context"
	"errors"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bureau-foundation/qswarm/lib/actuation"
	"github.com/bureau-foundation/qswarm/lib/clock"
	"github.com/bureau-foundation/qswarm/lib/geom"
	"github.com/bureau-foundation/qswarm/lib/testutil"
	"github.com/bureau-foundation/qswarm/lib/wire"
	"github.com/bureau-foundation/qswarm/transport"
)

// reply tells the fake learner how to answer one line.
type reply struct {
	line   string
	silent bool
	hangup bool
}

// fakeLearner hands out in-memory connections whose far end answers
// every received line through respond.
type fakeLearner struct {
	t       *testing.T
	respond func(line string) reply

	mu      sync.Mutex
	refuse  bool
	dials   int
	lines   chan string
	farEnds []net.Conn
}

func newFakeLearner(t *testing.T, respond func(line string) reply) *fakeLearner {
	learner := &fakeLearner{t: t, respond: respond, lines: make(chan string, 64)}
	t.Cleanup(func() {
		learner.mu.Lock()
		defer learner.mu.Unlock()
		for _, conn := range learner.farEnds {
			conn.Close()
		}
	})
	return learner
}

func (l *fakeLearner) setRefuse(refuse bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.refuse = refuse
}

func (l *fakeLearner) dialCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.dials
}

func (l *fakeLearner) DialContext(ctx context.Context, address string) (net.Conn, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.dials++
	if l.refuse {
		return nil, errors.New("connection refused")
	}
	near, far := net.Pipe()
	l.farEnds = append(l.farEnds, far)
	go l.serve(far)
	return near, nil
}

func (l *fakeLearner) serve(conn net.Conn) {
	defer conn.Close()
	reader := bufio.NewReader(conn)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimSuffix(line, "\n")
		l.lines <- line
		answer := l.respond(line)
		if answer.hangup {
			return
		}
		if answer.silent {
			continue
		}
		if _, err := conn.Write([]byte(answer.line + "\n")); err != nil {
			return
		}
	}
}

// standard answers like the reference learner.
func standard(action string) func(string) reply {
	return func(line string) reply {
		if strings.HasPrefix(line, "REWARD|") {
			return reply{line: "ACK"}
		}
		return reply{line: action}
	}
}

var observation = wire.Observation{
	Position:  geom.Vec2{X: 1, Y: 2},
	Goal:      geom.Vec2{X: 18, Y: 18},
	Proximity: []float64{0, 0.5},
}

func newClient(t *testing.T, learner *fakeLearner, fake *clock.FakeClock, reconnect bool) *Client {
	t.Helper()
	client := New(7, Options{
		Address:         "learner:5555",
		ConnectAttempts: 1,
		ReplyTimeout:    200 * time.Millisecond,
		Reconnect: ReconnectPolicy{
			Enabled:        reconnect,
			InitialBackoff: time.Second,
			MaxBackoff:     4 * time.Second,
		},
		Dialer: learner,
		Clock:  fake,
	})
	t.Cleanup(func() { client.Close() })
	return client
}

func epoch() *clock.FakeClock { return clock.Fake(time.Unix(1_700_000_000, 0)) }

func TestRequestAction(t *testing.T) {
	learner := newFakeLearner(t, standard("ACTION|2"))
	client := newClient(t, learner, epoch(), true)
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	action, err := client.RequestAction(context.Background(), observation)
	if err != nil {
		t.Fatalf("RequestAction: %v", err)
	}
	if action != actuation.TurnRight {
		t.Fatalf("RequestAction() = %s, want turn_right", action)
	}
	sent := testutil.RequireReceive(t, learner.lines, 5*time.Second, "waiting for STATE")
	if sent != "STATE|7|1|2|18|18|0|0.5" {
		t.Fatalf("learner received %q", sent)
	}
}

func TestRequestActionReplies(t *testing.T) {
	tests := []struct {
		name      string
		reply     string
		want      actuation.Action
		wantErr   error
		malformed bool
	}{
		{name: "out of range id", reply: "ACTION|9", want: actuation.MoveForward},
		{name: "stop", reply: "ACTION|3", want: actuation.Stop},
		{name: "garbage", reply: "garbage", want: actuation.MoveForward, malformed: true},
		{name: "empty line", reply: "", want: actuation.MoveForward, wantErr: wire.ErrEmptyReply},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			learner := newFakeLearner(t, standard(test.reply))
			client := newClient(t, learner, epoch(), true)
			if err := client.Connect(context.Background()); err != nil {
				t.Fatalf("Connect: %v", err)
			}

			action, err := client.RequestAction(context.Background(), observation)
			if action != test.want {
				t.Fatalf("RequestAction() = %s, want %s", action, test.want)
			}
			switch {
			case test.malformed:
				var malformed *wire.MalformedReplyError
				if !errors.As(err, &malformed) {
					t.Fatalf("error = %v, want MalformedReplyError", err)
				}
			case test.wantErr != nil:
				if !errors.Is(err, test.wantErr) {
					t.Fatalf("error = %v, want %v", err, test.wantErr)
				}
			default:
				if err != nil {
					t.Fatalf("RequestAction: %v", err)
				}
			}
			// A reply that arrived keeps the stream in sync.
			if !client.Connected() {
				t.Fatal("client disconnected after a decodable exchange")
			}
		})
	}
}

func TestReportReward(t *testing.T) {
	learner := newFakeLearner(t, standard("ACTION|0"))
	client := newClient(t, learner, epoch(), true)
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	if err := client.ReportReward(context.Background(), -0.1, false); err != nil {
		t.Fatalf("ReportReward: %v", err)
	}
	if err := client.ReportReward(context.Background(), 10, true); err != nil {
		t.Fatalf("ReportReward: %v", err)
	}
	for _, want := range []string{"REWARD|7|-0.1|0", "REWARD|7|10|1"} {
		if got := testutil.RequireReceive(t, learner.lines, 5*time.Second, "waiting for REWARD"); got != want {
			t.Fatalf("learner received %q, want %q", got, want)
		}
	}
}

func TestTimeoutDropsConnectionAndReconnects(t *testing.T) {
	fake := epoch()
	var mu sync.Mutex
	silent := true
	learner := newFakeLearner(t, func(line string) reply {
		mu.Lock()
		defer mu.Unlock()
		if silent {
			return reply{silent: true}
		}
		return reply{line: "ACTION|1"}
	})
	client := newClient(t, learner, fake, true)
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	_, err := client.RequestAction(context.Background(), observation)
	if !errors.Is(err, transport.ErrNoReply) {
		t.Fatalf("RequestAction() error = %v, want ErrNoReply", err)
	}
	if client.Connected() {
		t.Fatal("client still connected after a reply timeout")
	}

	mu.Lock()
	silent = false
	mu.Unlock()

	// Gate closed: fail fast without dialing.
	if _, err := client.RequestAction(context.Background(), observation); !errors.Is(err, transport.ErrNotConnected) {
		t.Fatalf("RequestAction() before backoff = %v, want ErrNotConnected", err)
	}
	if dials := learner.dialCount(); dials != 1 {
		t.Fatalf("dialed %d times before the gate opened, want 1", dials)
	}

	fake.Advance(time.Second)
	action, err := client.RequestAction(context.Background(), observation)
	if err != nil {
		t.Fatalf("RequestAction after backoff: %v", err)
	}
	if action != actuation.TurnLeft {
		t.Fatalf("RequestAction() = %s, want turn_left", action)
	}
	stats := client.Stats()
	if stats.Disconnects != 1 || stats.Reconnects != 1 {
		t.Fatalf("Stats() = %+v, want one disconnect and one reconnect", stats)
	}
}

func TestReconnectBackoffDoubles(t *testing.T) {
	fake := epoch()
	learner := newFakeLearner(t, func(string) reply { return reply{hangup: true} })
	client := newClient(t, learner, fake, true)
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	// The learner hangs up on the first STATE.
	if _, err := client.RequestAction(context.Background(), observation); err == nil {
		t.Fatal("RequestAction succeeded against a learner that hung up")
	}
	learner.setRefuse(true)

	attempt := func() {
		t.Helper()
		if _, err := client.RequestAction(context.Background(), observation); !errors.Is(err, transport.ErrNotConnected) {
			t.Fatalf("RequestAction() = %v, want ErrNotConnected", err)
		}
	}

	// Gate opens after 1s, then 2s, then 4s, capped at 4s.
	steps := []struct {
		advance   time.Duration
		wantDials int
	}{
		{999 * time.Millisecond, 1},
		{time.Millisecond, 2},
		{time.Second, 2},
		{time.Second, 3},
		{3 * time.Second, 3},
		{time.Second, 4},
		{4 * time.Second, 5},
	}
	for i, step := range steps {
		fake.Advance(step.advance)
		attempt()
		if dials := learner.dialCount(); dials != step.wantDials {
			t.Fatalf("step %d: dialed %d times, want %d", i, dials, step.wantDials)
		}
	}
	if failures := client.Stats().ReconnectFailures; failures != 4 {
		t.Fatalf("ReconnectFailures = %d, want 4", failures)
	}
}

func TestReconnectDisabledDegradesPermanently(t *testing.T) {
	fake := epoch()
	learner := newFakeLearner(t, func(string) reply { return reply{hangup: true} })
	client := newClient(t, learner, fake, false)
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	client.RequestAction(context.Background(), observation)
	fake.Advance(time.Hour)
	if _, err := client.RequestAction(context.Background(), observation); !errors.Is(err, transport.ErrNotConnected) {
		t.Fatalf("RequestAction() = %v, want ErrNotConnected", err)
	}
	if dials := learner.dialCount(); dials != 1 {
		t.Fatalf("dialed %d times, want 1", dials)
	}
}

func TestConnectFailureLeavesClientUsable(t *testing.T) {
	fake := epoch()
	learner := newFakeLearner(t, standard("ACTION|3"))
	learner.setRefuse(true)
	client := newClient(t, learner, fake, true)

	err := client.Connect(context.Background())
	if !errors.Is(err, transport.ErrConnectionFailed) {
		t.Fatalf("Connect() = %v, want ErrConnectionFailed", err)
	}
	if client.Connected() {
		t.Fatal("Connected() = true after failed Connect")
	}
	if err := client.ReportReward(context.Background(), -0.1, false); !errors.Is(err, transport.ErrNotConnected) {
		t.Fatalf("ReportReward() = %v, want ErrNotConnected", err)
	}

	// The learner comes up later; the gate heals the agent.
	learner.setRefuse(false)
	fake.Advance(time.Second)
	action, err := client.RequestAction(context.Background(), observation)
	if err != nil {
		t.Fatalf("RequestAction after learner came up: %v", err)
	}
	if action != actuation.Stop {
		t.Fatalf("RequestAction() = %s, want stop", action)
	}
}

func TestCloseIsIdempotentAndFinal(t *testing.T) {
	fake := epoch()
	learner := newFakeLearner(t, standard("ACTION|0"))
	client := newClient(t, learner, fake, true)
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	for i := range 3 {
		if err := client.Close(); err != nil {
			t.Fatalf("Close #%d: %v", i+1, err)
		}
	}
	fake.Advance(time.Hour)
	if _, err := client.RequestAction(context.Background(), observation); !errors.Is(err, transport.ErrNotConnected) {
		t.Fatalf("RequestAction after Close = %v, want ErrNotConnected", err)
	}
	if dials := learner.dialCount(); dials != 1 {
		t.Fatalf("closed client dialed again: %d dials", dials)
	}
}

func TestCloseWithoutConnect(t *testing.T) {
	client := New(0, Options{Address: "learner:5555"})
	if err := client.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
