// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package recording

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/zeebo/blake3"

	"github.com/bureau-foundation/qswarm/lib/codec"
)

var (
	// ErrNotRecording is returned when a file does not start with the
	// recording magic.
	ErrNotRecording = errors.New("recording: not a recording file")

	// ErrTruncated is returned when the body ends before the trailer.
	ErrTruncated = errors.New("recording: truncated (no trailer)")

	// ErrCorrupt is returned when the trailer does not match the
	// entries before it.
	ErrCorrupt = errors.New("recording: digest or count mismatch")
)

// Read opens and verifies the recording at path.
func Read(path string) (*Recording, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening recording: %w", err)
	}
	defer file.Close()
	recording, err := ReadFrom(bufio.NewReader(file))
	if err != nil {
		return recording, fmt.Errorf("reading %s: %w", path, err)
	}
	return recording, nil
}

// ReadFrom decodes and verifies a recording from r. On ErrTruncated
// and ErrCorrupt the returned Recording holds everything decoded.
func ReadFrom(r io.Reader) (*Recording, error) {
	prefix := make([]byte, len(Magic)+1)
	if _, err := io.ReadFull(r, prefix); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotRecording, err)
	}
	if string(prefix[:len(Magic)]) != Magic {
		return nil, ErrNotRecording
	}
	tag := CompressionTag(prefix[len(Magic)])

	body, release, err := decompressor(r, tag)
	if err != nil {
		return nil, err
	}
	defer release()

	recording := &Recording{Compression: tag}
	digest := blake3.New()
	decoder := codec.NewDecoder(body)
	sawHeader := false

	for {
		var raw codec.RawMessage
		if err := decoder.Decode(&raw); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return recording, ErrTruncated
			}
			return recording, fmt.Errorf("decoding recording entry: %w", err)
		}
		var value entry
		if err := codec.Unmarshal(raw, &value); err != nil {
			return recording, fmt.Errorf("decoding recording entry: %w", err)
		}

		switch {
		case value.Trailer != nil:
			if value.Trailer.Count != len(recording.Episodes) ||
				!bytes.Equal(value.Trailer.Digest, digest.Sum(nil)) {
				return recording, ErrCorrupt
			}
			if !sawHeader {
				return recording, fmt.Errorf("%w: no header entry", ErrCorrupt)
			}
			return recording, nil
		case value.Header != nil:
			if sawHeader {
				return recording, fmt.Errorf("%w: second header entry", ErrCorrupt)
			}
			sawHeader = true
			recording.Header = *value.Header
		case value.Episode != nil:
			recording.Episodes = append(recording.Episodes, *value.Episode)
		default:
			return recording, fmt.Errorf("%w: empty entry", ErrCorrupt)
		}
		digest.Write(raw)
	}
}
