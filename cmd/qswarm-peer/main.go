// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// qswarm-peer is the reference learner. It answers agents' STATE
// messages from a fixed or random policy, acknowledges their rewards,
// and keeps per-agent episode history, optionally in SQLite.
//
// Usage:
//
//	qswarm-peer [flags]            serve until interrupted
//	qswarm-peer stats [flags]      print stored episode history
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/qswarm/lib/config"
	"github.com/bureau-foundation/qswarm/lib/learner"
	"github.com/bureau-foundation/qswarm/lib/logging"
	"github.com/bureau-foundation/qswarm/lib/process"
	"github.com/bureau-foundation/qswarm/lib/report"
	"github.com/bureau-foundation/qswarm/lib/version"
	"github.com/bureau-foundation/qswarm/lib/wire"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		process.Fatal(err)
	}
}

func run(args []string, stdout io.Writer) error {
	if len(args) > 0 && args[0] == "stats" {
		return runStats(args[1:], stdout)
	}
	return runServe(args, stdout)
}

// commonFlags are shared by both subcommands.
type commonFlags struct {
	configPath string
	database   string
	logFormat  string
	logLevel   string
}

func (c *commonFlags) register(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&c.configPath, "config", "", "config file (default: $"+config.EnvironmentVariable+")")
	flagSet.StringVar(&c.database, "database", "", "SQLite episode database (overrides learner.database)")
	flagSet.StringVar(&c.logFormat, "log-format", "auto", "log format: auto, text, or json")
	flagSet.StringVar(&c.logLevel, "log-level", "info", "log level: debug, info, warn, or error")
}

func (c *commonFlags) load(flagSet *pflag.FlagSet) (*config.Config, *slog.Logger, error) {
	format, err := logging.ParseFormat(c.logFormat)
	if err != nil {
		return nil, nil, err
	}
	level, err := logging.ParseLevel(c.logLevel)
	if err != nil {
		return nil, nil, err
	}

	var cfg *config.Config
	if c.configPath != "" {
		cfg, err = config.LoadFile(c.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, nil, err
	}
	if flagSet.Changed("database") {
		cfg.Learner.Database = c.database
	}
	return cfg, logging.New(format, level), nil
}

func runServe(args []string, stdout io.Writer) error {
	var (
		common      commonFlags
		listen      string
		stateSize   int
		policyName  string
		fixedAction int
		seed        uint64
		showVersion bool
	)
	flagSet := pflag.NewFlagSet("qswarm-peer", pflag.ContinueOnError)
	common.register(flagSet)
	flagSet.StringVar(&listen, "listen", "", "listen address (overrides learner.listen)")
	flagSet.IntVar(&stateSize, "state-size", 0, "accepted STATE vector length, 0 for any (overrides learner.state_size)")
	flagSet.StringVar(&policyName, "policy", "", "action policy: random or fixed (overrides learner.policy)")
	flagSet.IntVar(&fixedAction, "action", 0, "action id for the fixed policy (overrides learner.fixed_action)")
	flagSet.Uint64Var(&seed, "seed", 0, "random policy seed (overrides learner.seed)")
	flagSet.BoolVar(&showVersion, "version", false, "print version information and exit")
	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	if showVersion {
		fmt.Fprintf(stdout, "qswarm-peer %s\n", version.Full())
		return nil
	}

	cfg, logger, err := common.load(flagSet)
	if err != nil {
		return err
	}
	if flagSet.Changed("listen") {
		cfg.Learner.Listen = listen
	}
	if flagSet.Changed("state-size") {
		cfg.Learner.StateSize = stateSize
	}
	if flagSet.Changed("policy") {
		cfg.Learner.Policy = policyName
	}
	if flagSet.Changed("action") {
		cfg.Learner.FixedAction = fixedAction
	}
	if flagSet.Changed("seed") {
		cfg.Learner.Seed = seed
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	policy, err := learner.NewPolicy(cfg.Learner.Policy, cfg.Learner.FixedAction, cfg.Learner.Seed)
	if err != nil {
		return err
	}

	serverConfig := learner.Config{
		StateSize: cfg.Learner.StateSize,
		Policy:    policy,
		Logger:    logger,
	}
	if cfg.Learner.Database != "" {
		store, err := learner.OpenStore(cfg.Learner.Database, logger)
		if err != nil {
			return err
		}
		defer store.Close()
		serverConfig.Sink = store
	}

	server, err := learner.NewServer(serverConfig)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.ListenAndServe(ctx, cfg.Learner.Listen); err != nil {
		return err
	}
	return summaryTable("this session", server.Summaries()).Write(stdout)
}

func runStats(args []string, stdout io.Writer) error {
	var (
		common commonFlags
		agent  int
		limit  int
	)
	flagSet := pflag.NewFlagSet("qswarm-peer stats", pflag.ContinueOnError)
	common.register(flagSet)
	flagSet.IntVar(&agent, "agent", -1, "list one agent's episodes instead of the per-agent summary")
	flagSet.IntVar(&limit, "limit", 20, "episodes to list with --agent, 0 for all")
	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	cfg, logger, err := common.load(flagSet)
	if err != nil {
		return err
	}
	if cfg.Learner.Database == "" {
		return fmt.Errorf("no episode database configured (set learner.database or --database)")
	}
	if _, err := os.Stat(cfg.Learner.Database); err != nil {
		return fmt.Errorf("opening episode database: %w", err)
	}

	store, err := learner.OpenStore(cfg.Learner.Database, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	if agent >= 0 {
		episodes, err := store.Episodes(ctx, wire.AgentID(agent), limit)
		if err != nil {
			return err
		}
		return episodeTable(agent, episodes).Write(stdout)
	}

	summaries, err := store.Summaries(ctx)
	if err != nil {
		return err
	}
	return summaryTable(cfg.Learner.Database, summaries).Write(stdout)
}

func summaryTable(title string, summaries []learner.Summary) report.Table {
	table := report.Table{
		Title:   fmt.Sprintf("episodes: %s", title),
		Headers: []string{"AGENT", "EPISODES", "STEPS", "MEAN REWARD", "BEST REWARD", "LAST EPISODE"},
	}
	for _, summary := range summaries {
		last := "-"
		if !summary.LastEndedAt.IsZero() {
			last = summary.LastEndedAt.UTC().Format("2006-01-02 15:04:05")
		}
		table.Rows = append(table.Rows, []string{
			summary.AgentID.String(),
			strconv.Itoa(summary.Episodes),
			strconv.Itoa(summary.Steps),
			strconv.FormatFloat(summary.MeanReward(), 'f', 2, 64),
			strconv.FormatFloat(summary.BestReward, 'f', 2, 64),
			last,
		})
	}
	return table
}

func episodeTable(agent int, episodes []learner.Episode) report.Table {
	table := report.Table{
		Title:   fmt.Sprintf("agent %d", agent),
		Headers: []string{"EPISODE", "STEPS", "REWARD", "ENDED"},
	}
	for _, episode := range episodes {
		table.Rows = append(table.Rows, []string{
			strconv.Itoa(episode.Index),
			strconv.Itoa(episode.Steps),
			strconv.FormatFloat(episode.Reward, 'f', 2, 64),
			episode.EndedAt.UTC().Format("2006-01-02 15:04:05"),
		})
	}
	return table
}
