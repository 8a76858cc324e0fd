// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for the qswarm agent
// and learner binaries.
//
// Configuration comes from at most one file, named by the --config
// flag (via [LoadFile]) or the QSWARM_CONFIG environment variable (via
// [Load]). Without either, [Default] is used as is. There is no
// ~/.config discovery and no per-field environment overrides.
//
// The file is YAML. A file ending in .jsonc (or .json) may instead be
// JSON with comments and trailing commas, which is normalized with
// tidwall/jsonc before decoding. Either way the file overlays the
// defaults: fields it leaves out keep their default values. Unknown
// keys are rejected so that a typo cannot silently fall back to a
// default.
//
// Durations are written in Go syntax ("1s", "250ms").
//
// Variable expansion is performed on path fields after loading:
// ${HOME}, ${QSWARM_ROOT}, and ${VAR:-default} patterns are expanded.
//
// [Config.Validate] reports every problem at once, joined with
// errors.Join.
//
// This package depends on no other qswarm packages.
package config
