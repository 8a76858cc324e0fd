// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for qswarm packages.
//
// [RequireReceive] and [RequireClosed] encapsulate the timeout safety
// valve pattern (select with time.After fallback) so that individual
// tests do not need direct time.After calls. These are the only place
// in the test suite where real wall-clock timeouts are used; retry and
// backoff timing everywhere else runs on clock.FakeClock.
//
// [Loopback] opens a TCP listener on 127.0.0.1 with a kernel-chosen
// port and closes it when the test ends. Peer and transport tests use
// it to stand up fake learners without fixed ports.
//
// [UniqueID] generates monotonically increasing identifiers for agent
// names and run labels that must not collide within a test binary.
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since test setup failures are not recoverable.
//
// This package has no qswarm-internal dependencies.
package testutil
