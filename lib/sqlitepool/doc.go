// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitepool opens SQLite databases for qswarm's local state.
//
// It wraps zombiezen.com/go/sqlite's sqlitex.Pool, applies a fixed set
// of pragmas to every connection (WAL journal, NORMAL synchronous,
// busy timeout, memory temp store), and installs the caller's schema
// script the first time each connection is used. The zombiezen types
// are exposed directly: callers write SQL and bind arguments with
// sqlitex.Execute.
//
// [Pool.Read] and [Pool.Write] cover the common case of borrowing a
// connection for one closure. Write runs the closure inside an
// IMMEDIATE transaction so concurrent writers serialize on the lock
// instead of failing mid-transaction with SQLITE_BUSY.
package sqlitepool
