// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// EnvironmentVariable names the config file when no --config flag is
// given.
const EnvironmentVariable = "QSWARM_CONFIG"

// Config is the master configuration.
type Config struct {
	Agent     AgentConfig     `yaml:"agent"`
	Peer      PeerConfig      `yaml:"peer"`
	Swarm     SwarmConfig     `yaml:"swarm"`
	Arena     ArenaConfig     `yaml:"arena"`
	Recording RecordingConfig `yaml:"recording"`
	Learner   LearnerConfig   `yaml:"learner"`
}

// Point is a position in the arena plane.
type Point struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
}

// AgentConfig holds the per-agent control parameters. Every agent in a
// swarm shares them.
type AgentConfig struct {
	// ID pins the wire id. Only meaningful for a single-agent swarm;
	// otherwise ids come from agent names.
	ID *int `yaml:"id,omitempty"`

	Goal        Point   `yaml:"goal"`
	Velocity    float64 `yaml:"velocity"`
	MaxSteps    int     `yaml:"max_steps"`
	MaxEpisodes int     `yaml:"max_episodes"`

	GoalThreshold      float64 `yaml:"goal_threshold"`
	CollisionThreshold float64 `yaml:"collision_threshold"`
	ProximityLimit     float64 `yaml:"proximity_limit"`
}

// PeerConfig describes how agents reach the learner.
type PeerConfig struct {
	Address         string        `yaml:"address"`
	ConnectAttempts int           `yaml:"connect_attempts"`
	RetryBackoff    time.Duration `yaml:"retry_backoff"`
	DialTimeout     time.Duration `yaml:"dial_timeout"`

	// ReplyTimeout bounds every wait for a learner reply. Zero waits
	// forever.
	ReplyTimeout time.Duration `yaml:"reply_timeout"`

	Reconnect ReconnectConfig `yaml:"reconnect"`
}

// ReconnectConfig configures self-healing after a lost connection.
type ReconnectConfig struct {
	Enabled        bool          `yaml:"enabled"`
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff"`
}

// SwarmConfig sizes the simulated swarm.
type SwarmConfig struct {
	Agents     int    `yaml:"agents"`
	NamePrefix string `yaml:"name_prefix"`

	// Tick is the wall-clock pause between simulation ticks. Zero
	// runs as fast as the learner answers.
	Tick time.Duration `yaml:"tick"`
}

// ArenaConfig describes the built-in simulation host.
type ArenaConfig struct {
	Size        float64 `yaml:"size"`
	Sensors     int     `yaml:"sensors"`
	SensorRange float64 `yaml:"sensor_range"`
	RobotRadius float64 `yaml:"robot_radius"`
	WheelBase   float64 `yaml:"wheel_base"`
	Seed        uint64  `yaml:"seed"`

	// SpawnMin and SpawnMax bound the rectangle robots are placed in
	// at the start of every episode.
	SpawnMin Point `yaml:"spawn_min"`
	SpawnMax Point `yaml:"spawn_max"`

	Obstacles []ObstacleConfig `yaml:"obstacles"`
}

// ObstacleConfig is a circular obstacle.
type ObstacleConfig struct {
	X      float64 `yaml:"x"`
	Y      float64 `yaml:"y"`
	Radius float64 `yaml:"radius"`
}

// RecordingConfig controls per-agent episode recordings.
type RecordingConfig struct {
	// Directory receives one file per agent. Empty disables recording.
	Directory   string `yaml:"directory"`
	Compression string `yaml:"compression"`
}

// LearnerConfig configures the reference learner peer.
type LearnerConfig struct {
	Listen string `yaml:"listen"`

	// StateSize is the STATE vector length the learner accepts. Other
	// lengths are answered with action 0. Zero accepts any length.
	StateSize int `yaml:"state_size"`

	// Database is a SQLite path for episode history. Empty keeps
	// history in memory only.
	Database string `yaml:"database"`

	// Policy is "random" or "fixed".
	Policy      string `yaml:"policy"`
	FixedAction int    `yaml:"fixed_action"`
	Seed        uint64 `yaml:"seed"`
}

// Default returns the configuration used when no file is given, and
// the base every file overlays.
func Default() *Config {
	return &Config{
		Agent: AgentConfig{
			Goal:               Point{X: 18, Y: 18},
			Velocity:           0.1,
			MaxSteps:           500,
			MaxEpisodes:        1000,
			GoalThreshold:      0.5,
			CollisionThreshold: 0.01,
			ProximityLimit:     0.9,
		},
		Peer: PeerConfig{
			Address:         "localhost:5555",
			ConnectAttempts: 10,
			RetryBackoff:    time.Second,
			DialTimeout:     2 * time.Second,
			ReplyTimeout:    5 * time.Second,
			Reconnect: ReconnectConfig{
				Enabled:        true,
				InitialBackoff: time.Second,
				MaxBackoff:     30 * time.Second,
			},
		},
		Swarm: SwarmConfig{
			Agents:     4,
			NamePrefix: "fb",
		},
		Arena: ArenaConfig{
			Size:        20,
			Sensors:     24,
			SensorRange: 0.3,
			RobotRadius: 0.085,
			WheelBase:   0.14,
			Seed:        1,
			SpawnMin:    Point{X: 1, Y: 1},
			SpawnMax:    Point{X: 5, Y: 5},
		},
		Recording: RecordingConfig{
			Compression: "zstd",
		},
		Learner: LearnerConfig{
			Listen:    "localhost:5555",
			StateSize: 28,
			Policy:    "random",
			Seed:      1,
		},
	}
}

// Load loads the file named by QSWARM_CONFIG, or returns the defaults
// when the variable is unset.
func Load() (*Config, error) {
	path := os.Getenv(EnvironmentVariable)
	if path == "" {
		cfg := Default()
		cfg.expandVariables()
		return cfg, nil
	}
	return LoadFile(path)
}

// LoadFile overlays the file at path onto the defaults and expands
// path variables. It does not validate; call Validate after applying
// any flag overrides.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".jsonc", ".json":
		data = jsonc.ToJSON(data)
	}

	cfg := Default()
	if err := decode(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	cfg.expandVariables()
	return cfg, nil
}

func decode(data []byte, cfg *Config) error {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in path
// fields.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}
	vars["QSWARM_ROOT"] = expandVars(os.Getenv("QSWARM_ROOT"), vars)

	c.Recording.Directory = expandVars(c.Recording.Directory, vars)
	c.Learner.Database = expandVars(c.Learner.Database, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Agent.ID != nil && *c.Agent.ID < 0 {
		errs = append(errs, fmt.Errorf("agent.id must not be negative"))
	}
	if c.Agent.Velocity < 0 {
		errs = append(errs, fmt.Errorf("agent.velocity must not be negative"))
	}
	if c.Agent.MaxSteps < 1 {
		errs = append(errs, fmt.Errorf("agent.max_steps must be at least 1"))
	}
	if c.Agent.MaxEpisodes < 0 {
		errs = append(errs, fmt.Errorf("agent.max_episodes must not be negative"))
	}
	if c.Agent.GoalThreshold <= 0 {
		errs = append(errs, fmt.Errorf("agent.goal_threshold must be positive"))
	}
	if c.Agent.CollisionThreshold < 0 {
		errs = append(errs, fmt.Errorf("agent.collision_threshold must not be negative"))
	}

	if c.Peer.Address == "" {
		errs = append(errs, fmt.Errorf("peer.address is required"))
	}
	if c.Peer.ConnectAttempts < 1 {
		errs = append(errs, fmt.Errorf("peer.connect_attempts must be at least 1"))
	}
	for name, value := range map[string]time.Duration{
		"peer.retry_backoff":             c.Peer.RetryBackoff,
		"peer.dial_timeout":              c.Peer.DialTimeout,
		"peer.reply_timeout":             c.Peer.ReplyTimeout,
		"peer.reconnect.initial_backoff": c.Peer.Reconnect.InitialBackoff,
		"peer.reconnect.max_backoff":     c.Peer.Reconnect.MaxBackoff,
		"swarm.tick":                     c.Swarm.Tick,
	} {
		if value < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative", name))
		}
	}
	if c.Peer.Reconnect.Enabled && c.Peer.Reconnect.MaxBackoff < c.Peer.Reconnect.InitialBackoff {
		errs = append(errs, fmt.Errorf("peer.reconnect.max_backoff must be at least initial_backoff"))
	}

	if c.Swarm.Agents < 1 {
		errs = append(errs, fmt.Errorf("swarm.agents must be at least 1"))
	}
	if c.Agent.ID != nil && c.Swarm.Agents > 1 {
		errs = append(errs, fmt.Errorf("agent.id can only be set for a single-agent swarm"))
	}

	if c.Arena.Size <= 0 {
		errs = append(errs, fmt.Errorf("arena.size must be positive"))
	}
	if c.Arena.Sensors < 0 {
		errs = append(errs, fmt.Errorf("arena.sensors must not be negative"))
	}
	if c.Arena.SensorRange <= 0 {
		errs = append(errs, fmt.Errorf("arena.sensor_range must be positive"))
	}
	if c.Arena.RobotRadius <= 0 {
		errs = append(errs, fmt.Errorf("arena.robot_radius must be positive"))
	}
	if c.Arena.WheelBase <= 0 {
		errs = append(errs, fmt.Errorf("arena.wheel_base must be positive"))
	}
	if c.Arena.SpawnMin.X > c.Arena.SpawnMax.X || c.Arena.SpawnMin.Y > c.Arena.SpawnMax.Y {
		errs = append(errs, fmt.Errorf("arena.spawn_min must not exceed arena.spawn_max"))
	}
	for i, obstacle := range c.Arena.Obstacles {
		if obstacle.Radius <= 0 {
			errs = append(errs, fmt.Errorf("arena.obstacles[%d].radius must be positive", i))
		}
	}

	if !contains([]string{"none", "lz4", "zstd"}, c.Recording.Compression) {
		errs = append(errs, fmt.Errorf("recording.compression must be one of: none, lz4, zstd"))
	}

	if c.Learner.Listen == "" {
		errs = append(errs, fmt.Errorf("learner.listen is required"))
	}
	if c.Learner.StateSize < 0 {
		errs = append(errs, fmt.Errorf("learner.state_size must not be negative"))
	}
	if !contains([]string{"random", "fixed"}, c.Learner.Policy) {
		errs = append(errs, fmt.Errorf("learner.policy must be one of: random, fixed"))
	}

	return errors.Join(errs...)
}

// EnsureDirectories creates the recording directory and the database's
// parent directory when they are configured.
func (c *Config) EnsureDirectories() error {
	var paths []string
	if c.Recording.Directory != "" {
		paths = append(paths, c.Recording.Directory)
	}
	if c.Learner.Database != "" {
		paths = append(paths, filepath.Dir(c.Learner.Database))
	}
	for _, path := range paths {
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
	}
	return nil
}

func contains(slice []string, s string) bool {
	for _, v := range slice {
		if v == s {
			return true
		}
	}
	return false
}
