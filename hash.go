// Copyright 2021 The bit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package mcdb

import "encoding/binary"

// djb2Seed is the classic djb2 starting value.
const djb2Seed uint32 = 5381

// HashBytes computes the djb2 hash of key: h = 5381; h = ((h<<5)+h) ^ b for
// each byte b, all in wrapping 32-bit unsigned arithmetic. It is not
// collision-resistant; it is deliberately fast, and is part of the on-disk
// format -- every implementation of this database must compute it
// identically.
func HashBytes(key []byte) uint32 {
	h := djb2Seed
	for _, b := range key {
		h = ((h << 5) + h) ^ uint32(b)
	}
	return h
}

// HashTagged computes the djb2 hash of tag‖key without allocating a
// concatenated buffer. A zero tag means "no tag": HashTagged(0, key) is
// exactly HashBytes(key), matching the original mcdb_findstart macro's
// definition as mcdb_findtagstart with tag fixed at 0. A non-zero tag lets
// one physical database multiplex several logical key spaces over the
// same records (e.g. passwd-by-name vs passwd-by-uid), reserving the tag
// byte as a one-byte prefix baked into the stored key by whoever built the
// file (see the adapter package).
func HashTagged(tag byte, key []byte) uint32 {
	h := djb2Seed
	if tag != 0 {
		h = ((h << 5) + h) ^ uint32(tag)
	}
	for _, b := range key {
		h = ((h << 5) + h) ^ uint32(b)
	}
	return h
}

// Slot returns the directory slot a hash belongs to.
func Slot(h uint32) uint32 {
	return h & (Slots - 1)
}

// ProbeStart returns the intra-table probe start for a hash, given the
// target table's length in entries. Both the reader's lookup engine and
// the builder's placement pass call this so that a key placed by the
// builder is always found by the reader within the table's entry count.
func ProbeStart(h uint32, tableLen uint64) uint64 {
	if tableLen == 0 {
		return 0
	}
	return uint64(h>>SlotBits) % tableLen
}

// putUint32, putUint64, getUint32, and getUint64 pack and unpack the
// big-endian integers that make up every multi-byte quantity in the file
// format. Big-endian is explicit: on little-endian hardware the byte-swap
// cost is negligible relative to memory-load latency, and a fixed byte
// order lets files built on one architecture round-trip correctly when
// opened on another.
func putUint32(b []byte, v uint32) {
	binary.BigEndian.PutUint32(b, v)
}

func putUint64(b []byte, v uint64) {
	binary.BigEndian.PutUint64(b, v)
}

func getUint32(b []byte) uint32 {
	return binary.BigEndian.Uint32(b)
}

func getUint64(b []byte) uint64 {
	return binary.BigEndian.Uint64(b)
}
