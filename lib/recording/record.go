// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package recording

import "time"

// FormatVersion is written in every header.
const FormatVersion = 1

// Magic opens every recording file.
const Magic = "QSWREC01"

// Header identifies the run and agent a recording belongs to.
type Header struct {
	Version   int       `cbor:"version"`
	RunID     string    `cbor:"run_id"`
	AgentID   int       `cbor:"agent_id"`
	AgentName string    `cbor:"agent_name"`
	StartedAt time.Time `cbor:"started_at"`
}

// Episode is the summary of one finished episode.
type Episode struct {
	Index   int     `cbor:"index"`
	Steps   int     `cbor:"steps"`
	Reward  float64 `cbor:"reward"`
	Outcome string  `cbor:"outcome"`

	// RandomActions counts ticks that ran a random action because
	// the agent had no connection.
	RandomActions int `cbor:"random_actions,omitempty"`

	// DefaultActions counts ticks that fell back to MoveForward
	// after a failed or malformed exchange.
	DefaultActions int `cbor:"default_actions,omitempty"`

	StartedAt time.Time `cbor:"started_at"`
	EndedAt   time.Time `cbor:"ended_at"`
}

// Trailer closes a recording.
type Trailer struct {
	Count  int    `cbor:"count"`
	Digest []byte `cbor:"digest"`
}

// entry is the on-disk envelope. Exactly one field is set.
type entry struct {
	Header  *Header  `cbor:"header,omitempty"`
	Episode *Episode `cbor:"episode,omitempty"`
	Trailer *Trailer `cbor:"trailer,omitempty"`
}

// Recording is a fully read recording file.
type Recording struct {
	Compression CompressionTag
	Header      Header
	Episodes    []Episode
}
