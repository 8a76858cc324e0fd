// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package logging builds the slog loggers used by the qswarm binaries.
//
// Output format follows the destination: a terminal gets
// slog.TextHandler for humans, anything else (pipes, files, CI) gets
// slog.JSONHandler so logs stay machine-parseable. Callers may force
// either with an explicit format.
package logging
