// Copyright 2021 The bit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package mcdb

import "fmt"

// readRecordHeader reads the klen|vlen header at pos and returns the
// lengths plus the offset of the byte immediately following the header
// (where the key begins).
func (n *MapNode) readRecordHeader(pos uint64) (klen, vlen uint32, keyOff uint64, err error) {
	hdr, err := n.slice(pos, recordHeaderSize)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("%w: record header at %d: %w", ErrCorrupt, pos, err)
	}
	klen = getUint32(hdr[0:4])
	vlen = getUint32(hdr[4:8])
	if klen > MaxKeyOrValueLen || vlen > MaxKeyOrValueLen {
		return 0, 0, 0, fmt.Errorf("%w: record at %d has impossible lengths klen=%d vlen=%d", ErrCorrupt, pos, klen, vlen)
	}
	return klen, vlen, pos + recordHeaderSize, nil
}

// readKey reads just the key bytes of the record at pos, given its header
// has already been parsed.
func (n *MapNode) readKey(keyOff uint64, klen uint32) ([]byte, error) {
	key, err := n.slice(keyOff, uint64(klen))
	if err != nil {
		return nil, fmt.Errorf("%w: key at %d (len %d): %w", ErrCorrupt, keyOff, klen, err)
	}
	return key, nil
}

// readValue reads the value bytes that follow a key of length klen starting
// at keyOff.
func (n *MapNode) readValue(keyOff uint64, klen, vlen uint32) ([]byte, error) {
	valOff := keyOff + uint64(klen)
	val, err := n.slice(valOff, uint64(vlen))
	if err != nil {
		return nil, fmt.Errorf("%w: value at %d (len %d): %w", ErrCorrupt, valOff, vlen, err)
	}
	return val, nil
}

// readRecord reads the full (key, value) pair for the record at pos.
func (n *MapNode) readRecord(pos uint64) (key, value []byte, err error) {
	klen, vlen, keyOff, err := n.readRecordHeader(pos)
	if err != nil {
		return nil, nil, err
	}
	key, err = n.readKey(keyOff, klen)
	if err != nil {
		return nil, nil, err
	}
	value, err = n.readValue(keyOff, klen, vlen)
	if err != nil {
		return nil, nil, err
	}
	return key, value, nil
}
