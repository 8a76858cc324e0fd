// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/qswarm/lib/config"
	"github.com/bureau-foundation/qswarm/lib/learner"
)

func seedDatabase(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "episodes.db")
	store, err := learner.OpenStore(path, nil)
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	ended := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for _, episode := range []learner.Episode{
		{AgentID: 0, Index: 0, Steps: 12, Reward: 8.9, EndedAt: ended},
		{AgentID: 0, Index: 1, Steps: 3, Reward: -5.2, EndedAt: ended.Add(time.Minute)},
		{AgentID: 4, Index: 0, Steps: 7, Reward: -5.6, EndedAt: ended},
	} {
		if err := store.Record(context.Background(), episode); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	return path
}

func TestStatsSummary(t *testing.T) {
	t.Setenv(config.EnvironmentVariable, "")
	path := seedDatabase(t)

	var stdout bytes.Buffer
	if err := run([]string{"stats", "--database", path, "--log-level", "error"}, &stdout); err != nil {
		t.Fatalf("run stats: %v", err)
	}
	output := stdout.String()
	for _, want := range []string{"MEAN REWARD", "1.85", "8.90", "-5.60", "2026-03-01 12:01:00"} {
		if !strings.Contains(output, want) {
			t.Errorf("summary missing %q:\n%s", want, output)
		}
	}
}

func TestStatsForOneAgent(t *testing.T) {
	t.Setenv(config.EnvironmentVariable, "")
	path := seedDatabase(t)

	var stdout bytes.Buffer
	if err := run([]string{"stats", "--database", path, "--agent", "0", "--limit", "1", "--log-level", "error"}, &stdout); err != nil {
		t.Fatalf("run stats: %v", err)
	}
	output := stdout.String()
	if !strings.Contains(output, "agent 0") || !strings.Contains(output, "-5.20") {
		t.Errorf("unexpected output:\n%s", output)
	}
	if strings.Contains(output, "8.90") {
		t.Errorf("limit ignored:\n%s", output)
	}
}

func TestStatsRequiresDatabase(t *testing.T) {
	t.Setenv(config.EnvironmentVariable, "")

	if err := run([]string{"stats"}, &bytes.Buffer{}); err == nil {
		t.Fatal("expected error without a database")
	}
	missing := filepath.Join(t.TempDir(), "missing.db")
	if err := run([]string{"stats", "--database", missing}, &bytes.Buffer{}); err == nil {
		t.Fatal("expected error for a missing database")
	}
}

func TestServeRejectsBadPolicy(t *testing.T) {
	t.Setenv(config.EnvironmentVariable, "")
	err := run([]string{"--policy", "dqn", "--log-level", "error"}, &bytes.Buffer{})
	if err == nil || !strings.Contains(err.Error(), "learner.policy") {
		t.Fatalf("run error = %v, want learner.policy complaint", err)
	}
}

func TestServeVersion(t *testing.T) {
	var stdout bytes.Buffer
	if err := run([]string{"--version"}, &stdout); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.HasPrefix(stdout.String(), "qswarm-peer ") {
		t.Errorf("version output = %q", stdout.String())
	}
}
