// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package learner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/bureau-foundation/qswarm/lib/sqlitepool"
	"github.com/bureau-foundation/qswarm/lib/wire"
)

const storeSchema = `
CREATE TABLE IF NOT EXISTS episodes (
	id         INTEGER PRIMARY KEY,
	agent_id   INTEGER NOT NULL,
	episode    INTEGER NOT NULL,
	steps      INTEGER NOT NULL,
	reward     REAL    NOT NULL,
	ended_at   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS episodes_by_agent ON episodes (agent_id, episode);
`

// Store persists finished episodes in SQLite. It implements Sink.
type Store struct {
	pool   *sqlitepool.Pool
	logger *slog.Logger
}

var _ Sink = (*Store)(nil)

// OpenStore opens (creating if needed) the episode database at path.
func OpenStore(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:   path,
		Schema: storeSchema,
		Logger: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("episode store: %w", err)
	}
	return &Store{pool: pool, logger: logger}, nil
}

// Close closes the connection pool.
func (s *Store) Close() error {
	return s.pool.Close()
}

// Record inserts one finished episode.
func (s *Store) Record(ctx context.Context, episode Episode) error {
	err := s.pool.Write(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn,
			`INSERT INTO episodes (agent_id, episode, steps, reward, ended_at) VALUES (?, ?, ?, ?, ?)`,
			&sqlitex.ExecOptions{
				Args: []any{
					int(episode.AgentID),
					episode.Index,
					episode.Steps,
					episode.Reward,
					episode.EndedAt.UnixNano(),
				},
			})
	})
	if err != nil {
		return fmt.Errorf("episode store: recording agent %d episode %d: %w", episode.AgentID, episode.Index, err)
	}
	return nil
}

// Summaries aggregates every stored episode per agent, ordered by
// agent id.
func (s *Store) Summaries(ctx context.Context) ([]Summary, error) {
	var summaries []Summary
	err := s.pool.Read(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, `
			SELECT agent_id, COUNT(*), SUM(steps), SUM(reward), MAX(reward), MAX(ended_at)
			FROM episodes
			GROUP BY agent_id
			ORDER BY agent_id`,
			&sqlitex.ExecOptions{
				ResultFunc: func(stmt *sqlite.Stmt) error {
					summaries = append(summaries, Summary{
						AgentID:     wire.AgentID(stmt.ColumnInt(0)),
						Episodes:    stmt.ColumnInt(1),
						Steps:       stmt.ColumnInt(2),
						TotalReward: stmt.ColumnFloat(3),
						BestReward:  stmt.ColumnFloat(4),
						LastEndedAt: time.Unix(0, stmt.ColumnInt64(5)).UTC(),
					})
					return nil
				},
			})
	})
	if err != nil {
		return nil, fmt.Errorf("episode store: summaries: %w", err)
	}
	return summaries, nil
}

// Episodes returns the most recent episodes of one agent, newest
// first. A non-positive limit returns all of them.
func (s *Store) Episodes(ctx context.Context, agent wire.AgentID, limit int) ([]Episode, error) {
	if limit <= 0 {
		limit = -1
	}
	var episodes []Episode
	err := s.pool.Read(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, `
			SELECT episode, steps, reward, ended_at
			FROM episodes
			WHERE agent_id = ?
			ORDER BY episode DESC, id DESC
			LIMIT ?`,
			&sqlitex.ExecOptions{
				Args: []any{int(agent), limit},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					episodes = append(episodes, Episode{
						AgentID: agent,
						Index:   stmt.ColumnInt(0),
						Steps:   stmt.ColumnInt(1),
						Reward:  stmt.ColumnFloat(2),
						EndedAt: time.Unix(0, stmt.ColumnInt64(3)).UTC(),
					})
					return nil
				},
			})
	})
	if err != nil {
		return nil, fmt.Errorf("episode store: episodes for agent %d: %w", agent, err)
	}
	return episodes, nil
}
