// Copyright 2021 The bit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Package mcdb implements the reader side of a constant, memory-mapped
// key-value database: a read-optimized on-disk hash map that is built once
// (see the mcdbmake package) and opened by many readers via a single memory
// map.
//
// A database file has three regions, in order:
//
//	┌────────────────────────┐
//	│ directory (4096 bytes) │  256 (offset,count) slots
//	├────────────────────────┤
//	│ records                │  klen|vlen|key|value, zero-padded to 8 bytes
//	├────────────────────────┤
//	│ hash tables            │  256 tables of (hash,pos) entries
//	└────────────────────────┘
//
// Each record's key is hashed with djb2 (HashBytes); the low 8 bits of the
// hash select one of 256 directory slots, and the slot's table is probed
// starting at an offset derived from the rest of the hash bits. A zero
// position marks the end of a table's populated entries.
//
// Lookups never block and never allocate once a Cursor has been created: a
// probe touches at most three cache lines (directory slot, table entry,
// record header) on a hit. Long-lived readers periodically call
// (*DB).RefreshIfNeeded to pick up a replaced backing file without
// synchronous I/O on any concurrently running lookup.
package mcdb

const (
	// SlotBits is the number of bits used to select a directory slot from
	// a key's hash; 2^SlotBits slots are reserved at the head of the file.
	SlotBits = 8
	// Slots is the number of directory slots (hash sub-tables).
	Slots = 1 << SlotBits
	// directoryEntrySize is the encoded size, in bytes, of one (offset,
	// count) pair in the directory.
	directoryEntrySize = 16
	// HeaderSize is the fixed size, in bytes, of the directory region at
	// the start of every database file.
	HeaderSize = Slots * directoryEntrySize

	// tableEntrySize is the encoded size, in bytes, of one (hash, pos)
	// entry within a hash table: a 4-byte hash plus an 8-byte position.
	tableEntrySize = 12
	// recordHeaderSize is the encoded size, in bytes, of a record's
	// klen|vlen header.
	recordHeaderSize = 8

	// MinMmapReadAhead is the recommended minimum read-ahead window for
	// the memory map; it must exceed HeaderSize so that an entire
	// directory read is satisfied by a single page-in.
	MinMmapReadAhead = 512 * 1024

	// MaxKeyOrValueLen bounds an individual key or value's length; it is
	// chosen so klen+vlen headers and record offsets never overflow an
	// int32 once the 8-byte record header is added.
	MaxKeyOrValueLen = 1<<31 - 1 - recordHeaderSize

	// MaxKeys is the approximate limit on the number of keys a single
	// database may hold, set by the 32-bit hash used to select directory
	// slots and table entries.
	MaxKeys = 2_000_000_000
)
