// Copyright 2021 The bit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package mcdb

import (
	"bytes"
	"fmt"
)

// Cursor is transient, per-lookup state tracking probe progress against one
// MapNode. It is cheap to stack-allocate and is never shared between
// lookups; callers create one per search (or reuse a zero Cursor across
// searches against the same key via FindStart/FindNext).
//
// A Cursor that has begun a search continues to observe the map it was
// bound to by FindStart for its entire lifetime: refresh never rewrites
// cursor state, so a long-running FindNext loop is safe to run across a
// concurrent refresh of the database's current map.
type Cursor struct {
	node *MapNode

	loop   uint32 // number of table entries examined so far
	hslots uint64 // length, in entries, of the target slot's table
	toff   uint64 // byte offset of the target slot's table
	hpos   uint64 // byte offset of the next entry to examine
	khash  uint32 // hash of the key being searched

	dpos uint64 // offset of the matched value, once found
	dlen uint32 // length of the matched value, once found

	tag  byte // non-zero selects the tagged lookup variant
	done bool // true once the probe sequence is exhausted
}

// FindStart initializes c to search for key against node's directory. It
// must be called before the first FindNext call for a given search.
func (c *Cursor) FindStart(node *MapNode, key []byte) {
	c.findTagStart(node, 0, key)
}

// FindTagStart initializes c to search for key under tag, the tagged
// lookup variant: the hash is computed over tag‖key rather than key
// alone, and only records whose stored key is exactly tag‖key match. A
// zero tag is equivalent to FindStart -- it is how one physical file can
// multiplex disjoint key spaces (e.g. "by name" and "by uid") without any
// change to the on-disk record or table format: the tag byte lives in
// the stored key itself, baked in by whoever built the file.
func (c *Cursor) FindTagStart(node *MapNode, tag byte, key []byte) {
	c.findTagStart(node, tag, key)
}

func (c *Cursor) findTagStart(node *MapNode, tag byte, key []byte) {
	if node == nil {
		// a nil node means "keep whatever this cursor was already bound
		// to", so a Cursor obtained from Reader.Cursor can start a
		// search without its caller needing access to the unexported
		// MapNode it is bound to.
		node = c.node
	}
	h := HashTagged(tag, key)
	slot := Slot(h)
	toff, tcount := node.directorySlot(slot)

	*c = Cursor{
		node:   node,
		khash:  h,
		toff:   toff,
		hslots: tcount,
		hpos:   toff + ProbeStart(h, tcount)*tableEntrySize,
		tag:    tag,
	}
	if tcount == 0 {
		c.done = true
	}
}

// FindNext advances the probe sequence, returning true and populating the
// cursor's value fields (see Value) on a match. It may be called
// repeatedly after a match to enumerate duplicate keys in file order; it
// returns false once the probe sequence is exhausted (an empty slot was
// reached, or every slot of the table was examined).
func (c *Cursor) FindNext(key []byte) (bool, error) {
	return c.findNext(key)
}

// FindTagNext is FindNext's tagged counterpart; it must follow a
// FindTagStart call with the same tag and key.
func (c *Cursor) FindTagNext(key []byte) (bool, error) {
	return c.findNext(key)
}

func (c *Cursor) findNext(key []byte) (bool, error) {
	if c.done {
		return false, nil
	}
	wantLen := uint32(len(key))
	if c.tag != 0 {
		wantLen++
	}
	for c.loop < uint32(c.hslots) {
		entry, err := c.node.slice(c.hpos, tableEntrySize)
		if err != nil {
			c.done = true
			return false, fmt.Errorf("%w: table entry at %d: %w", ErrCorrupt, c.hpos, err)
		}
		entryHash := getUint32(entry[0:4])
		entryPos := getUint64(entry[4:12])

		c.hpos += tableEntrySize
		if c.hpos >= c.toff+c.hslots*tableEntrySize {
			c.hpos = c.toff
		}
		c.loop++

		if entryPos == 0 {
			// zero marks the first empty slot: no further matches in
			// this table.
			c.done = true
			return false, nil
		}
		if entryHash != c.khash {
			continue
		}

		klen, vlen, keyOff, err := c.node.readRecordHeader(entryPos)
		if err != nil {
			c.done = true
			return false, err
		}
		if klen != wantLen {
			continue
		}
		storedKey, err := c.node.readKey(keyOff, klen)
		if err != nil {
			c.done = true
			return false, err
		}
		if !c.matchKey(storedKey, key) {
			continue
		}

		c.dpos = keyOff + uint64(klen)
		c.dlen = vlen
		return true, nil
	}
	c.done = true
	return false, nil
}

// matchKey reports whether storedKey is exactly key (untagged search) or
// exactly tag‖key (tagged search).
func (c *Cursor) matchKey(storedKey, key []byte) bool {
	if c.tag == 0 {
		return bytes.Equal(storedKey, key)
	}
	if len(storedKey) == 0 || storedKey[0] != c.tag {
		return false
	}
	return bytes.Equal(storedKey[1:], key)
}

// Find is the common case of FindStart followed by a single FindNext.
func (c *Cursor) Find(node *MapNode, key []byte) (bool, error) {
	c.FindStart(node, key)
	return c.FindNext(key)
}

// FindTag is the common case of FindTagStart followed by a single
// FindTagNext.
func (c *Cursor) FindTag(node *MapNode, tag byte, key []byte) (bool, error) {
	c.FindTagStart(node, tag, key)
	return c.FindTagNext(key)
}

// Value returns a zero-copy view of the most recently matched value. The
// returned slice aliases the cursor's bound map and must not be retained
// past the cursor's registration on that map.
func (c *Cursor) Value() ([]byte, error) {
	v, err := c.node.slice(c.dpos, uint64(c.dlen))
	if err != nil {
		return nil, fmt.Errorf("%w: value at %d (len %d): %w", ErrCorrupt, c.dpos, c.dlen, err)
	}
	return v, nil
}

// Read copies the matched value into out, which must be at least Len()
// bytes. It is useful when a caller wants an owned copy rather than a
// zero-copy view, e.g. when a value crosses what the caller considers a
// trust boundary.
func (c *Cursor) Read(out []byte) (int, error) {
	v, err := c.Value()
	if err != nil {
		return 0, err
	}
	if len(out) < len(v) {
		return 0, fmt.Errorf("%w: out buffer of %d bytes too small for %d-byte value", ErrCorrupt, len(out), len(v))
	}
	return copy(out, v), nil
}

// Len returns the length of the most recently matched value.
func (c *Cursor) Len() int {
	return int(c.dlen)
}
