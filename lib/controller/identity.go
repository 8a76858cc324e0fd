// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package controller

import (
	"log/slog"

	"github.com/bureau-foundation/qswarm/lib/wire"
)

// ResolveID picks the wire id for an agent. An explicit id always
// wins. Otherwise the trailing digits of name are used, and a name
// without them falls back to 0 with a warning, since two such agents
// would share an id at the learner.
func ResolveID(name string, explicit *int, logger *slog.Logger) wire.AgentID {
	if explicit != nil {
		return wire.AgentID(*explicit)
	}
	id, ok := wire.ParseAgentName(name)
	if !ok {
		if logger != nil {
			logger.Warn("agent name has no numeric suffix, using id 0", "agent", name)
		}
		return 0
	}
	return id
}
