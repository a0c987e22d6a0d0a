// Copyright 2021 The bit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package mcdb

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// kv is one record a buildTestNode fixture writes.
type kv struct {
	key, value string
}

// buildTestNode lays out a minimal, valid mcdb byte image in memory, in
// insertion order, and returns a MapNode wrapping it directly -- no
// filesystem or mmap involved, so cursor behavior can be exercised without
// the builder package (which itself depends on this one).
func buildTestNode(t *testing.T, records []kv) *MapNode {
	t.Helper()
	return &MapNode{data: buildTestImage(t, records)}
}

// buildTestImage is buildTestNode without the MapNode wrapper, for tests
// that need the raw bytes (e.g. to write them to a file on disk).
func buildTestImage(t *testing.T, records []kv) []byte {
	t.Helper()

	type placed struct {
		hash uint32
		pos  uint64
	}
	var slots [Slots][]placed

	buf := make([]byte, HeaderSize)
	for _, r := range records {
		pos := uint64(len(buf))
		var hdr [8]byte
		putUint32(hdr[0:4], uint32(len(r.key)))
		putUint32(hdr[4:8], uint32(len(r.value)))
		buf = append(buf, hdr[:]...)
		buf = append(buf, r.key...)
		buf = append(buf, r.value...)

		h := HashBytes([]byte(r.key))
		slot := Slot(h)
		slots[slot] = append(slots[slot], placed{hash: h, pos: pos})
	}
	// pad record region to 8 bytes before tables start, as the builder does.
	for len(buf)%8 != 0 {
		buf = append(buf, 0)
	}

	directory := make([]byte, HeaderSize)
	tableOff := uint64(len(buf))
	var tables []byte
	for slot := 0; slot < Slots; slot++ {
		entries := slots[slot]
		tableLen := uint64(2 * len(entries))
		putUint64(directory[slot*16:slot*16+8], tableOff)
		putUint64(directory[slot*16+8:slot*16+16], tableLen)
		if tableLen == 0 {
			continue
		}
		table := make([]byte, tableLen*12)
		occupied := make([]bool, tableLen)
		for _, e := range entries {
			p := ProbeStart(e.hash, tableLen)
			for occupied[p] {
				p = (p + 1) % tableLen
			}
			occupied[p] = true
			putUint32(table[p*12:p*12+4], e.hash)
			putUint64(table[p*12+4:p*12+12], e.pos)
		}
		tables = append(tables, table...)
		tableOff += tableLen * 12
	}
	copy(buf[:HeaderSize], directory)
	buf = append(buf, tables...)

	return buf
}

func TestFindMissingKeyOnEmptyDB(t *testing.T) {
	n := buildTestNode(t, nil)
	var c Cursor
	ok, err := c.Find(n, []byte("anything"))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestFindSingleEntry(t *testing.T) {
	n := buildTestNode(t, []kv{{"hello", "world"}})
	var c Cursor
	ok, err := c.Find(n, []byte("hello"))
	require.NoError(t, err)
	require.True(t, ok)
	v, err := c.Value()
	require.NoError(t, err)
	require.Equal(t, "world", string(v))

	ok, err = c.Find(n, []byte("missing"))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestFindDuplicateKeysInInsertionOrder(t *testing.T) {
	n := buildTestNode(t, []kv{
		{"dup", "first"},
		{"other", "x"},
		{"dup", "second"},
	})

	var c Cursor
	c.FindStart(n, []byte("dup"))

	ok, err := c.FindNext([]byte("dup"))
	require.NoError(t, err)
	require.True(t, ok)
	v, err := c.Value()
	require.NoError(t, err)
	require.Equal(t, "first", string(v))

	ok, err = c.FindNext([]byte("dup"))
	require.NoError(t, err)
	require.True(t, ok)
	v, err = c.Value()
	require.NoError(t, err)
	require.Equal(t, "second", string(v))

	ok, err = c.FindNext([]byte("dup"))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestFindHashCollidingKeys(t *testing.T) {
	// "peggy" and "ursula" land in the same directory slot under djb2 mod
	// 256, exercising the matching-slot-but-different-key probe path.
	require.Equal(t, Slot(HashBytes([]byte("peggy"))), Slot(HashBytes([]byte("ursula"))))

	n := buildTestNode(t, []kv{
		{"peggy", "a"},
		{"ursula", "b"},
	})

	var c Cursor
	ok, err := c.Find(n, []byte("peggy"))
	require.NoError(t, err)
	require.True(t, ok)
	v, err := c.Value()
	require.NoError(t, err)
	require.Equal(t, "a", string(v))

	ok, err = c.Find(n, []byte("ursula"))
	require.NoError(t, err)
	require.True(t, ok)
	v, err = c.Value()
	require.NoError(t, err)
	require.Equal(t, "b", string(v))
}

func TestFindTagSeparatesKeySpaces(t *testing.T) {
	n := buildTestNode(t, []kv{
		{"n" + "alice", "by-name"},
		{"u" + "42", "by-uid"},
	})

	var c Cursor
	ok, err := c.FindTag(n, 'n', []byte("alice"))
	require.NoError(t, err)
	require.True(t, ok)
	v, err := c.Value()
	require.NoError(t, err)
	require.Equal(t, "by-name", string(v))

	ok, err = c.FindTag(n, 'u', []byte("42"))
	require.NoError(t, err)
	require.True(t, ok)
	v, err = c.Value()
	require.NoError(t, err)
	require.Equal(t, "by-uid", string(v))

	ok, err = c.FindTag(n, 'n', []byte("42"))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestLargeValueRoundTrip(t *testing.T) {
	big := make([]byte, 1<<20)
	for i := range big {
		big[i] = byte(i)
	}
	n := buildTestNode(t, []kv{{"big", string(big)}})

	var c Cursor
	ok, err := c.Find(n, []byte("big"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, len(big), c.Len())
	v, err := c.Value()
	require.NoError(t, err)
	require.Equal(t, big, v)
}
