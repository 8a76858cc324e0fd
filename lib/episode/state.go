// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package episode

import "fmt"

// Phase is the machine state evaluated at the top of each tick.
type Phase int

const (
	// Running means the next tick is a protocol step.
	Running Phase = iota
	// EpisodeDone means the next tick performs the episode reset.
	EpisodeDone
	// Finished is terminal: max_episodes have been played.
	Finished
)

func (p Phase) String() string {
	switch p {
	case Running:
		return "running"
	case EpisodeDone:
		return "episode_done"
	case Finished:
		return "finished"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// End says why an episode ended.
type End int

const (
	// NotEnded is returned by Record while the episode continues.
	NotEnded End = iota
	// Goal ends the episode at the goal position.
	Goal
	// Collision ends the episode on a stall or proximity hit.
	Collision
	// StepLimit ends the episode at max_steps without a terminal.
	StepLimit
)

func (e End) String() string {
	switch e {
	case NotEnded:
		return "running"
	case Goal:
		return "goal"
	case Collision:
		return "collision"
	case StepLimit:
		return "step_limit"
	default:
		return fmt.Sprintf("end(%d)", int(e))
	}
}

// Terminal classifies the evaluator's done signal for Record.
type Terminal int

const (
	NotTerminal Terminal = iota
	TerminalGoal
	TerminalCollision
)

// State is the mutable episode record.
type State struct {
	maxSteps    int
	maxEpisodes int

	episode     int
	step        int
	accumulated float64
	done        bool
}

// New returns a State at episode 0, step 0.
func New(maxSteps, maxEpisodes int) *State {
	return &State{maxSteps: maxSteps, maxEpisodes: maxEpisodes}
}

// Phase returns what the next tick should do. Finished takes priority
// over EpisodeDone.
func (s *State) Phase() Phase {
	if s.episode >= s.maxEpisodes {
		return Finished
	}
	if s.done {
		return EpisodeDone
	}
	return Running
}

// BeginStep advances the step counter and returns the new step index
// (1-based within the episode).
func (s *State) BeginStep() int {
	s.step++
	return s.step
}

// Record accumulates the tick's reward and decides whether the episode
// is over. A terminal evaluator signal ends the episode with its own
// kind. Otherwise reaching max_steps ends it as StepLimit.
func (s *State) Record(reward float64, terminal Terminal) End {
	s.accumulated += reward
	end := NotEnded
	switch {
	case terminal == TerminalGoal:
		end = Goal
	case terminal == TerminalCollision:
		end = Collision
	case s.step >= s.maxSteps:
		end = StepLimit
	}
	if end != NotEnded {
		s.done = true
	}
	return end
}

// NextEpisode performs the boundary reset: increments the episode
// index exactly once and clears the per-episode fields.
func (s *State) NextEpisode() {
	s.episode++
	s.step = 0
	s.accumulated = 0
	s.done = false
}

// Restart returns to episode 0 with cleared per-episode fields, for a
// whole-experiment reset.
func (s *State) Restart() {
	s.episode = 0
	s.step = 0
	s.accumulated = 0
	s.done = false
}

// Episode returns the current episode index.
func (s *State) Episode() int { return s.episode }

// Step returns the current step index within the episode.
func (s *State) Step() int { return s.step }

// Accumulated returns the reward summed over the current episode.
func (s *State) Accumulated() float64 { return s.accumulated }

// Done reports whether the current episode has ended.
func (s *State) Done() bool { return s.done }

// MaxSteps returns the per-episode step limit.
func (s *State) MaxSteps() int { return s.maxSteps }

// MaxEpisodes returns the episode limit.
func (s *State) MaxEpisodes() int { return s.maxEpisodes }
