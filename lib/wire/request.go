// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"fmt"
	"strconv"
	"strings"
)

// Request is a decoded agent-to-learner message.
type Request struct {
	// Type is the first field verbatim: TypeState, TypeReward, or
	// anything else the sender chose.
	Type    string
	AgentID AgentID

	// State is set for STATE messages.
	State []float64

	// Reward and Done are set for REWARD messages.
	Reward float64
	Done   bool
}

// ParseRequest decodes one line received by the learner. Unknown
// message types are returned with only Type set and a nil error, so
// the caller decides whether to answer them. Malformed STATE or REWARD
// messages return an error alongside whatever Type could be read.
func ParseRequest(line string) (Request, error) {
	line = strings.TrimRight(line, "\r\n")
	fields := strings.Split(line, Separator)
	request := Request{Type: fields[0]}

	switch request.Type {
	case TypeState:
		if len(fields) < 2 {
			return request, fmt.Errorf("wire: STATE without agent id")
		}
		id, err := parseAgentID(fields[1])
		if err != nil {
			return request, err
		}
		request.AgentID = id
		state := make([]float64, 0, len(fields)-2)
		for i, field := range fields[2:] {
			value, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return request, fmt.Errorf("wire: STATE value %d: %w", i, err)
			}
			state = append(state, value)
		}
		request.State = state
		return request, nil

	case TypeReward:
		if len(fields) != 4 {
			return request, fmt.Errorf("wire: REWARD has %d fields, want 4", len(fields))
		}
		id, err := parseAgentID(fields[1])
		if err != nil {
			return request, err
		}
		request.AgentID = id
		reward, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			return request, fmt.Errorf("wire: REWARD value: %w", err)
		}
		request.Reward = reward
		switch fields[3] {
		case "1":
			request.Done = true
		case "0":
		default:
			return request, fmt.Errorf("wire: REWARD done flag %q is not 0 or 1", fields[3])
		}
		return request, nil

	default:
		return request, nil
	}
}

func parseAgentID(field string) (AgentID, error) {
	value, err := strconv.Atoi(field)
	if err != nil {
		return 0, fmt.Errorf("wire: agent id %q: %w", field, err)
	}
	if value < 0 {
		return 0, fmt.Errorf("wire: agent id %d is negative", value)
	}
	return AgentID(value), nil
}
