// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package learner

import (
	"context"
	"sort"
	"time"

	"github.com/bureau-foundation/qswarm/lib/wire"
)

// Episode is one finished episode as seen from the learner: the
// number of REWARD messages received and their sum.
type Episode struct {
	AgentID wire.AgentID
	Index   int
	Steps   int
	Reward  float64
	EndedAt time.Time
}

// Sink receives every finished episode.
type Sink interface {
	Record(ctx context.Context, episode Episode) error
}

// Summary aggregates the finished episodes of one agent.
type Summary struct {
	AgentID     wire.AgentID
	Episodes    int
	Steps       int
	TotalReward float64
	BestReward  float64
	LastEndedAt time.Time
}

// MeanReward is the average episode reward, or zero before the first
// episode.
func (s Summary) MeanReward() float64 {
	if s.Episodes == 0 {
		return 0
	}
	return s.TotalReward / float64(s.Episodes)
}

func (s *Summary) add(episode Episode) {
	if s.Episodes == 0 || episode.Reward > s.BestReward {
		s.BestReward = episode.Reward
	}
	s.Episodes++
	s.Steps += episode.Steps
	s.TotalReward += episode.Reward
	if episode.EndedAt.After(s.LastEndedAt) {
		s.LastEndedAt = episode.EndedAt
	}
}

func sortedSummaries(byAgent map[wire.AgentID]*Summary) []Summary {
	summaries := make([]Summary, 0, len(byAgent))
	for _, summary := range byAgent {
		summaries = append(summaries, *summary)
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].AgentID < summaries[j].AgentID
	})
	return summaries
}
