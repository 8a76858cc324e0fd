// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import "strconv"

// AgentID tags every message an agent sends so a single learner can
// serve many agents over independent connections.
type AgentID int

func (id AgentID) String() string { return strconv.Itoa(int(id)) }

// ParseAgentName derives an id from the run of ASCII digits at the end
// of name: "fb12" is 12, "fb" has no id. The boolean is false when
// name has no trailing digits or the digits overflow an int, in which
// case the id is 0.
//
// The whole digit run is used, unlike hosts that read only the final
// digit, so "fb12" and "fb2" get distinct ids.
func ParseAgentName(name string) (AgentID, bool) {
	start := len(name)
	for start > 0 && name[start-1] >= '0' && name[start-1] <= '9' {
		start--
	}
	if start == len(name) {
		return 0, false
	}
	value, err := strconv.Atoi(name[start:])
	if err != nil {
		return 0, false
	}
	return AgentID(value), true
}
