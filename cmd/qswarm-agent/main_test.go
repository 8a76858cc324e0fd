// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bureau-foundation/qswarm/lib/config"
	"github.com/bureau-foundation/qswarm/lib/testutil"
)

func TestLoadConfigAppliesChangedFlagsOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "qswarm.yaml")
	content := "swarm:\n  agents: 6\nagent:\n  max_steps: 80\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	opts, flagSet, err := parseFlags([]string{"--config", path, "--agents", "2", "--peer", "10.1.1.1:5555"})
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}
	cfg, err := loadConfig(opts, flagSet)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Swarm.Agents != 2 || cfg.Peer.Address != "10.1.1.1:5555" {
		t.Errorf("flags not applied: agents=%d peer=%q", cfg.Swarm.Agents, cfg.Peer.Address)
	}
	if cfg.Agent.MaxSteps != 80 {
		t.Errorf("file value lost: max_steps=%d", cfg.Agent.MaxSteps)
	}
	if cfg.Agent.MaxEpisodes != config.Default().Agent.MaxEpisodes {
		t.Errorf("unset flag overrode max_episodes: %d", cfg.Agent.MaxEpisodes)
	}
}

func TestLoadConfigValidates(t *testing.T) {
	t.Setenv(config.EnvironmentVariable, "")
	opts, flagSet, err := parseFlags([]string{"--agents", "0"})
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}
	if _, err := loadConfig(opts, flagSet); err == nil || !strings.Contains(err.Error(), "swarm.agents") {
		t.Fatalf("loadConfig error = %v, want swarm.agents complaint", err)
	}
}

func TestParseFlagsRejectsArguments(t *testing.T) {
	if _, _, err := parseFlags([]string{"extra"}); err == nil {
		t.Fatal("expected error for positional argument")
	}
}

func TestRunVersion(t *testing.T) {
	var stdout bytes.Buffer
	if err := run([]string{"--version"}, &stdout); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.HasPrefix(stdout.String(), "qswarm-agent ") {
		t.Errorf("version output = %q", stdout.String())
	}
}

func TestRunDisconnectedSwarm(t *testing.T) {
	t.Setenv(config.EnvironmentVariable, "")
	recordings := t.TempDir()

	var stdout bytes.Buffer
	err := run([]string{
		"--agents", "2",
		"--episodes", "2",
		"--max-steps", "4",
		"--peer", testutil.RefusedAddress(t),
		"--connect-attempts", "1",
		"--record-dir", recordings,
		"--compression", "none",
		"--log-format", "json",
		"--log-level", "error",
	}, &stdout)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	output := stdout.String()
	for _, want := range []string{"fb0", "fb1", "EPISODES"} {
		if !strings.Contains(output, want) {
			t.Errorf("summary missing %q:\n%s", want, output)
		}
	}
	files, err := filepath.Glob(filepath.Join(recordings, "*.qswrec"))
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 2 {
		t.Errorf("got %d recordings, want 2", len(files))
	}
}
