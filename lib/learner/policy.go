// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package learner

import (
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/bureau-foundation/qswarm/lib/actuation"
	"github.com/bureau-foundation/qswarm/lib/wire"
)

// Policy chooses an action id for an agent's state vector. The server
// calls it from one goroutine per connection, so implementations must
// be safe for concurrent use.
type Policy interface {
	Choose(id wire.AgentID, state []float64) int
}

// RandomPolicy picks uniformly among the actuation actions.
type RandomPolicy struct {
	mu     sync.Mutex
	random *rand.Rand
}

// NewRandomPolicy returns a RandomPolicy with a deterministic PCG
// source.
func NewRandomPolicy(seed uint64) *RandomPolicy {
	return &RandomPolicy{random: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (p *RandomPolicy) Choose(wire.AgentID, []float64) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.random.IntN(actuation.Count)
}

// FixedPolicy always answers with the same action id.
type FixedPolicy int

func (p FixedPolicy) Choose(wire.AgentID, []float64) int { return int(p) }

// NewPolicy builds a policy by name: "random" or "fixed".
func NewPolicy(name string, fixedAction int, seed uint64) (Policy, error) {
	switch name {
	case "random":
		return NewRandomPolicy(seed), nil
	case "fixed":
		return FixedPolicy(fixedAction), nil
	default:
		return nil, fmt.Errorf("unknown policy %q (want random or fixed)", name)
	}
}
