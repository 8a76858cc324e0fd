// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// qswarm-agent runs a swarm of learning agents in the built-in arena.
// Every agent connects to the learner at --peer, exchanges one STATE,
// ACTION, REWARD cycle per tick, and falls back to random actions
// while the learner is unreachable.
//
// Configuration comes from the file named by --config or
// QSWARM_CONFIG, overlaid by any flags given on the command line.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/qswarm/lib/config"
	"github.com/bureau-foundation/qswarm/lib/logging"
	"github.com/bureau-foundation/qswarm/lib/process"
	"github.com/bureau-foundation/qswarm/lib/report"
	"github.com/bureau-foundation/qswarm/lib/swarm"
	"github.com/bureau-foundation/qswarm/lib/version"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		process.Fatal(err)
	}
}

type options struct {
	configPath  string
	agents      int
	peer        string
	attempts    int
	episodes    int
	maxSteps    int
	ticks       int
	recordDir   string
	compression string
	seed        uint64
	logFormat   string
	logLevel    string
	showVersion bool
}

func parseFlags(args []string) (*options, *pflag.FlagSet, error) {
	var opts options
	flagSet := pflag.NewFlagSet("qswarm-agent", pflag.ContinueOnError)
	flagSet.StringVar(&opts.configPath, "config", "", "config file (default: $"+config.EnvironmentVariable+")")
	flagSet.IntVarP(&opts.agents, "agents", "n", 0, "number of agents (overrides swarm.agents)")
	flagSet.StringVar(&opts.peer, "peer", "", "learner host:port (overrides peer.address)")
	flagSet.IntVar(&opts.attempts, "connect-attempts", 0, "initial connection attempts (overrides peer.connect_attempts)")
	flagSet.IntVar(&opts.episodes, "episodes", 0, "episodes per agent (overrides agent.max_episodes)")
	flagSet.IntVar(&opts.maxSteps, "max-steps", 0, "steps per episode (overrides agent.max_steps)")
	flagSet.IntVar(&opts.ticks, "ticks", 0, "stop after this many ticks (0 runs until all episodes finish)")
	flagSet.StringVar(&opts.recordDir, "record-dir", "", "write per-agent recordings here (overrides recording.directory)")
	flagSet.StringVar(&opts.compression, "compression", "", "recording compression: none, lz4, or zstd")
	flagSet.Uint64Var(&opts.seed, "seed", 0, "arena placement seed (overrides arena.seed)")
	flagSet.StringVar(&opts.logFormat, "log-format", "auto", "log format: auto, text, or json")
	flagSet.StringVar(&opts.logLevel, "log-level", "info", "log level: debug, info, warn, or error")
	flagSet.BoolVar(&opts.showVersion, "version", false, "print version information and exit")
	if err := flagSet.Parse(args); err != nil {
		return nil, nil, err
	}
	if flagSet.NArg() > 0 {
		return nil, nil, fmt.Errorf("unexpected arguments: %v", flagSet.Args())
	}
	return &opts, flagSet, nil
}

// loadConfig loads the configuration and applies every flag the user
// set explicitly.
func loadConfig(opts *options, flagSet *pflag.FlagSet) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if opts.configPath != "" {
		cfg, err = config.LoadFile(opts.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	if flagSet.Changed("agents") {
		cfg.Swarm.Agents = opts.agents
	}
	if flagSet.Changed("peer") {
		cfg.Peer.Address = opts.peer
	}
	if flagSet.Changed("connect-attempts") {
		cfg.Peer.ConnectAttempts = opts.attempts
	}
	if flagSet.Changed("episodes") {
		cfg.Agent.MaxEpisodes = opts.episodes
	}
	if flagSet.Changed("max-steps") {
		cfg.Agent.MaxSteps = opts.maxSteps
	}
	if flagSet.Changed("record-dir") {
		cfg.Recording.Directory = opts.recordDir
	}
	if flagSet.Changed("compression") {
		cfg.Recording.Compression = opts.compression
	}
	if flagSet.Changed("seed") {
		cfg.Arena.Seed = opts.seed
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func run(args []string, stdout io.Writer) error {
	opts, flagSet, err := parseFlags(args)
	if err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	if opts.showVersion {
		fmt.Fprintf(stdout, "qswarm-agent %s\n", version.Full())
		return nil
	}

	format, err := logging.ParseFormat(opts.logFormat)
	if err != nil {
		return err
	}
	level, err := logging.ParseLevel(opts.logLevel)
	if err != nil {
		return err
	}
	logger := logging.New(format, level)

	cfg, err := loadConfig(opts, flagSet)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, err := swarm.New(ctx, cfg, swarm.Options{
		Logger:   logger,
		MaxTicks: opts.ticks,
	})
	if err != nil {
		return err
	}

	runErr := group.Run(ctx)
	closeErr := group.Close()

	if err := summary(group).Write(stdout); err != nil {
		logger.Warn("writing summary failed", "error", err)
	}

	if runErr != nil && ctx.Err() == nil {
		return runErr
	}
	if ctx.Err() != nil {
		logger.Info("interrupted", "ticks", group.Ticks())
	}
	return closeErr
}

func summary(group *swarm.Swarm) report.Table {
	table := report.Table{
		Title: fmt.Sprintf("run %s: %d ticks", group.RunID(), group.Ticks()),
		Headers: []string{
			"AGENT", "ID", "EPISODES", "GOALS", "COLLISIONS", "STEP LIMITS",
			"STEPS", "RANDOM", "FALLBACK", "RECONNECTS", "CONNECTED",
		},
	}
	for _, agent := range group.Reports() {
		stats := agent.Stats
		table.Rows = append(table.Rows, []string{
			agent.Name,
			agent.ID.String(),
			strconv.Itoa(stats.Goals + stats.Collisions + stats.StepLimits),
			strconv.Itoa(stats.Goals),
			strconv.Itoa(stats.Collisions),
			strconv.Itoa(stats.StepLimits),
			strconv.Itoa(stats.TotalSteps),
			strconv.Itoa(stats.RandomActions),
			strconv.Itoa(stats.DefaultActions),
			strconv.Itoa(agent.Peer.Reconnects),
			strconv.FormatBool(stats.Connected),
		})
	}
	return table
}
