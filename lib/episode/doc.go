// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package episode holds the per-agent episode bookkeeping: episode and
// step counters, accumulated reward, and the done flag.
//
// The machine has three phases. [Running] ticks step the episode,
// [EpisodeDone] ticks perform the boundary reset, and [Finished] is
// terminal once the episode index reaches the configured maximum.
// The controller asks for the phase at the top of every tick and acts
// on it; State itself performs no I/O.
//
// State is owned by exactly one control loop and is not safe for
// concurrent use.
package episode
