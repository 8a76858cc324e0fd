// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package recording

import (
	"bufio"
	"errors"
	"fmt"
	"hash"
	"io"
	"os"
	"sync"

	"github.com/zeebo/blake3"

	"github.com/bureau-foundation/qswarm/lib/codec"
)

// Writer appends episodes to a recording file. It is safe for
// concurrent use.
type Writer struct {
	mutex      sync.Mutex
	file       *os.File
	buffered   *bufio.Writer
	compressed io.WriteCloser
	digest     hash.Hash
	count      int
	closed     bool
}

// Create creates (or truncates) a recording at path and writes the
// file header and the header entry.
func Create(path string, header Header, compression CompressionTag) (*Writer, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating recording %q: %w", path, err)
	}
	buffered := bufio.NewWriter(file)
	if _, err := buffered.WriteString(Magic); err != nil {
		file.Close()
		return nil, fmt.Errorf("writing recording magic: %w", err)
	}
	if err := buffered.WriteByte(byte(compression)); err != nil {
		file.Close()
		return nil, fmt.Errorf("writing recording compression tag: %w", err)
	}
	compressed, err := compressor(buffered, compression)
	if err != nil {
		file.Close()
		return nil, err
	}

	writer := &Writer{
		file:       file,
		buffered:   buffered,
		compressed: compressed,
		digest:     blake3.New(),
	}
	if header.Version == 0 {
		header.Version = FormatVersion
	}
	if err := writer.append(entry{Header: &header}, true); err != nil {
		compressed.Close()
		file.Close()
		return nil, err
	}
	return writer, nil
}

// Write appends one episode.
func (writer *Writer) Write(episode Episode) error {
	writer.mutex.Lock()
	defer writer.mutex.Unlock()
	if writer.closed {
		return errors.New("recording: write after close")
	}
	if err := writer.append(entry{Episode: &episode}, true); err != nil {
		return err
	}
	writer.count++
	return nil
}

// Count returns the number of episodes written so far.
func (writer *Writer) Count() int {
	writer.mutex.Lock()
	defer writer.mutex.Unlock()
	return writer.count
}

// Close writes the trailer, flushes the compressed stream, and closes
// the file. Close is idempotent; calling it more than once returns nil.
func (writer *Writer) Close() error {
	writer.mutex.Lock()
	defer writer.mutex.Unlock()
	if writer.closed {
		return nil
	}
	writer.closed = true

	trailer := Trailer{Count: writer.count, Digest: writer.digest.Sum(nil)}
	err := writer.append(entry{Trailer: &trailer}, false)
	if closeErr := writer.compressed.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("flushing compressed recording: %w", closeErr)
	}
	if flushErr := writer.buffered.Flush(); err == nil && flushErr != nil {
		err = fmt.Errorf("flushing recording: %w", flushErr)
	}
	if syncErr := writer.file.Sync(); err == nil && syncErr != nil {
		err = fmt.Errorf("syncing recording: %w", syncErr)
	}
	if closeErr := writer.file.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("closing recording: %w", closeErr)
	}
	return err
}

// append encodes one entry into the body, feeding the digest when
// hashed is set. Caller holds the mutex (or owns the writer during
// construction).
func (writer *Writer) append(value entry, hashed bool) error {
	data, err := codec.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding recording entry: %w", err)
	}
	if hashed {
		writer.digest.Write(data)
	}
	if _, err := writer.compressed.Write(data); err != nil {
		return fmt.Errorf("writing recording entry: %w", err)
	}
	return nil
}
