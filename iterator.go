// Copyright 2021 The bit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package mcdb

import "fmt"

// Item is one record yielded by an Iterator. Key and Value alias the
// iterator's bound map and must not be retained past the iterator's
// registration on that map.
type Item struct {
	Key    []byte
	Value  []byte
	Offset uint64
}

// Iterator walks the record region of a database sequentially, from the
// end of the directory to the start of the first hash table. It is used by
// consistency checks (mcdbmake.VerifyFile, and the mcdbdump and mcdbctl
// commands); ordinary lookups never need it.
type Iterator struct {
	node *MapNode
	off  uint64
	end  uint64
}

// NewIterator returns an Iterator over node's record region. end is slot
// 0's table offset, which every builder must set to mark the boundary
// between records and tables regardless of how many entries landed in slot
// 0's own table.
func NewIterator(node *MapNode) (*Iterator, error) {
	end, _ := node.directorySlot(0)
	if end < HeaderSize || end > uint64(len(node.data)) {
		return nil, fmt.Errorf("%w: slot 0 offset %d outside record region", ErrCorrupt, end)
	}
	return &Iterator{node: node, off: HeaderSize, end: end}, nil
}

// Next returns the record at the iterator's current position and advances
// past it. It returns ok=false once the record region has been fully
// consumed; a structural read failure is surfaced as an error with ok=false.
func (it *Iterator) Next() (item Item, ok bool, err error) {
	// fewer bytes than a record header left means only the 0-7 zero bytes
	// that align the first hash table remain; they are not a record.
	if it.off >= it.end || it.end-it.off < recordHeaderSize {
		return Item{}, false, nil
	}
	klen, vlen, keyOff, err := it.node.readRecordHeader(it.off)
	if err != nil {
		return Item{}, false, err
	}
	key, err := it.node.readKey(keyOff, klen)
	if err != nil {
		return Item{}, false, err
	}
	value, err := it.node.readValue(keyOff, klen, vlen)
	if err != nil {
		return Item{}, false, err
	}

	item = Item{Key: key, Value: value, Offset: it.off}
	it.off = keyOff + uint64(klen) + uint64(vlen)
	return item, true, nil
}
