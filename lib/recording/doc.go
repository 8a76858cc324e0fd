// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package recording writes and reads per-agent episode recordings.
//
// A recording file is:
//
//	"QSWREC01"            8-byte magic
//	tag                   1 byte: 0 none, 1 lz4 frame, 2 zstd frame
//	body                  CBOR sequence, compressed per tag
//
// The body is a sequence of entries: one header entry (run id, agent
// identity, start time), one entry per finished episode, and a final
// trailer entry carrying the episode count and the BLAKE3-256 digest
// of every entry byte before it. [Read] recomputes the digest over the
// raw CBOR it decodes, so a truncated or edited file is detected even
// when it still decompresses cleanly.
//
// A recording without a trailer is what a crashed writer leaves
// behind. Read reports it as [ErrTruncated] together with every
// episode it could decode.
package recording
