// Copyright 2021 The bit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Package mcdbmake builds mcdb database files: the core package (mcdb)
// only reads them. Building happens once, offline; the result is
// published to its final name with a single atomic rename, so concurrent
// readers never observe a partially written file.
package mcdbmake

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dgryski/go-farm"

	"github.com/bpowers/mcdb"
	"github.com/bpowers/mcdb/mcdbmake/internal/bitset"
)

var (
	errKeyTooBig   = errors.New("mcdbmake: key or value too long")
	errTooManyKeys = errors.New("mcdbmake: too many keys")
)

type slotEntry struct {
	hash uint32
	pos  uint64
}

// BuilderOption configures a Builder.
type BuilderOption func(*builderOptions)

type builderOptions struct {
	logger *slog.Logger
}

// WithLogger sets an optional logger the builder uses for progress
// messages. Build progress never needs to be synchronous with lookups, so
// unlike the core package's WithLogger this one is free to log at Info
// level.
func WithLogger(logger *slog.Logger) BuilderOption {
	return func(o *builderOptions) {
		o.logger = logger
	}
}

// Builder accumulates key/value pairs and writes them out as a single
// mcdb database file. Put calls must all complete before Finalize; a
// Builder is not safe for concurrent use.
type Builder struct {
	resultPath string
	tmp        *os.File
	w          *bufio.Writer
	off        uint64
	slots      [mcdb.Slots][]slotEntry
	nKeys      int
	logger     *slog.Logger
}

// NewBuilder creates a Builder that will publish to dataFilePath on
// Finalize. Writes happen to a temporary file in the same directory so the
// final rename is atomic and same-filesystem.
func NewBuilder(dataFilePath string, opts ...BuilderOption) (*Builder, error) {
	var options builderOptions
	options.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	for _, opt := range opts {
		opt(&options)
	}

	dataFilePath, err := filepath.Abs(dataFilePath)
	if err != nil {
		return nil, fmt.Errorf("filepath.Abs: %w", err)
	}
	dir := filepath.Dir(dataFilePath)
	tmp, err := os.CreateTemp(dir, "mcdb-builder.*.data")
	if err != nil {
		return nil, fmt.Errorf("CreateTemp failed (may need permissions for dir %q): %w", dir, err)
	}

	b := &Builder{
		resultPath: dataFilePath,
		tmp:        tmp,
		w:          bufio.NewWriterSize(tmp, 4*1024*1024),
		logger:     options.logger,
	}
	if err := b.writeHeaderPlaceholder(); err != nil {
		_ = b.abort()
		return nil, err
	}
	return b, nil
}

func (b *Builder) writeHeaderPlaceholder() error {
	var zeros [mcdb.HeaderSize]byte
	n, err := b.w.Write(zeros[:])
	if err != nil {
		return fmt.Errorf("write header placeholder: %w", err)
	}
	b.off = uint64(n)
	return nil
}

func (b *Builder) abort() error {
	_ = b.tmp.Close()
	return os.Remove(b.tmp.Name())
}

// Put adds one key/value pair to the database. Duplicate keys are allowed
// and are returned by the reader's FindNext in the order they were Put.
func (b *Builder) Put(key, value []byte) error {
	if len(key) > mcdb.MaxKeyOrValueLen || len(value) > mcdb.MaxKeyOrValueLen {
		return errKeyTooBig
	}
	if b.nKeys >= mcdb.MaxKeys {
		return errTooManyKeys
	}

	pos := b.off
	var hdr [8]byte
	putUint32(hdr[0:4], uint32(len(key)))
	putUint32(hdr[4:8], uint32(len(value)))
	if _, err := b.w.Write(hdr[:]); err != nil {
		return fmt.Errorf("write record header: %w", err)
	}
	if _, err := b.w.Write(key); err != nil {
		return fmt.Errorf("write key: %w", err)
	}
	if _, err := b.w.Write(value); err != nil {
		return fmt.Errorf("write value: %w", err)
	}
	recLen := uint64(8 + len(key) + len(value))
	b.off += recLen

	h := mcdb.HashBytes(key)
	slot := mcdb.Slot(h)
	b.slots[slot] = append(b.slots[slot], slotEntry{hash: h, pos: pos})
	b.nKeys++

	return nil
}

// BuildResult summarizes a completed build.
type BuildResult struct {
	// Path is the final, published path of the database file.
	Path string
	// Keys is the number of key/value pairs written.
	Keys int
	// Size is the total size, in bytes, of the published file.
	Size int64
	// Digest is a farm.Hash64 fingerprint of the whole published file,
	// usable to detect bit-rot or an unexpected change out of band from
	// the filesystem's own mtime (see mcdbmake.VerifyFile).
	Digest uint64
}

// Finalize lays out the directory and hash tables, writes them after the
// already-written record region, publishes the result with rename, and
// returns a summary. After Finalize returns successfully the Builder must
// not be used again.
func (b *Builder) Finalize() (BuildResult, error) {
	if err := b.padRecordsToAlignment(); err != nil {
		_ = b.abort()
		return BuildResult{}, err
	}

	directory, err := b.writeTables()
	if err != nil {
		_ = b.abort()
		return BuildResult{}, err
	}

	if err := b.w.Flush(); err != nil {
		_ = b.abort()
		return BuildResult{}, fmt.Errorf("flush: %w", err)
	}
	if _, err := b.tmp.WriteAt(directory, 0); err != nil {
		_ = b.abort()
		return BuildResult{}, fmt.Errorf("write directory: %w", err)
	}
	if err := b.tmp.Sync(); err != nil {
		_ = b.abort()
		return BuildResult{}, fmt.Errorf("sync: %w", err)
	}

	size, digest, err := b.digest()
	if err != nil {
		_ = b.abort()
		return BuildResult{}, err
	}

	if err := os.Chmod(b.tmp.Name(), 0444); err != nil {
		_ = b.abort()
		return BuildResult{}, fmt.Errorf("chmod tmp: %w", err)
	}
	if err := b.tmp.Close(); err != nil {
		_ = os.Remove(b.tmp.Name())
		return BuildResult{}, fmt.Errorf("close: %w", err)
	}
	if err := os.Rename(b.tmp.Name(), b.resultPath); err != nil {
		_ = os.Remove(b.tmp.Name())
		return BuildResult{}, fmt.Errorf("rename: %w", err)
	}
	if err := os.Chmod(b.resultPath, 0444); err != nil {
		return BuildResult{}, fmt.Errorf("chmod result: %w", err)
	}

	b.logger.Info("mcdbmake: build finished", "path", b.resultPath, "keys", b.nKeys, "size", size)

	return BuildResult{
		Path:   b.resultPath,
		Keys:   b.nKeys,
		Size:   size,
		Digest: digest,
	}, nil
}

func (b *Builder) padRecordsToAlignment() error {
	padLen := (8 - (b.off % 8)) % 8
	if padLen == 0 {
		return nil
	}
	var pad [8]byte
	zeroBytes(pad[:padLen])
	if _, err := b.w.Write(pad[:padLen]); err != nil {
		return fmt.Errorf("write padding: %w", err)
	}
	b.off += padLen
	return nil
}

// writeTables lays out all 256 hash tables after the (now 8-byte aligned)
// record region, writes them to the builder's stream, and returns the
// finished directory bytes. Table entries are placed by open-addressed
// linear probing starting at mcdb.ProbeStart, wrapping within the table --
// exactly the sequence the reader's Cursor walks -- so every key Put is
// found within its table's entry count.
func (b *Builder) writeTables() ([]byte, error) {
	directory := make([]byte, mcdb.HeaderSize)
	tableOff := b.off

	for slot := 0; slot < mcdb.Slots; slot++ {
		entries := b.slots[slot]
		tableLen := uint64(2 * len(entries))

		putUint64(directory[slot*16:slot*16+8], tableOff)
		putUint64(directory[slot*16+8:slot*16+16], tableLen)

		if tableLen == 0 {
			continue
		}

		table := make([]byte, tableLen*12)
		occupied := bitset.New(int64(tableLen))
		for _, e := range entries {
			p := mcdb.ProbeStart(e.hash, tableLen)
			for occupied.IsSet(int64(p)) {
				p = (p + 1) % tableLen
			}
			occupied.Set(int64(p))
			putUint32(table[p*12:p*12+4], e.hash)
			putUint64(table[p*12+4:p*12+12], e.pos)
		}

		if _, err := b.w.Write(table); err != nil {
			return nil, fmt.Errorf("write table for slot %d: %w", slot, err)
		}
		tableOff += tableLen * 12
	}

	b.off = tableOff
	return directory, nil
}

// digest rereads the finished file and returns its size and a whole-file
// farm.Hash64 fingerprint, used as a build manifest entry and later by
// VerifyFile to detect bit-rot.
func (b *Builder) digest() (size int64, digest uint64, err error) {
	data, err := os.ReadFile(b.tmp.Name())
	if err != nil {
		return 0, 0, fmt.Errorf("read for digest: %w", err)
	}
	return int64(len(data)), farm.Hash64(data), nil
}
