// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process provides entrypoint helpers for the qswarm binaries.
// It centralizes the raw stderr write that happens before (or instead
// of) the structured logger: reporting the error returned by run() and
// exiting non-zero.
package process
