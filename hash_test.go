// Copyright 2021 The bit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package mcdb

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashBytesKnownValues(t *testing.T) {
	// djb2 of the empty string is the seed itself.
	require.Equal(t, uint32(5381), HashBytes(nil))
	require.Equal(t, uint32(5381), HashBytes([]byte{}))
}

func TestHashBytesDeterministic(t *testing.T) {
	a := HashBytes([]byte("plumless"))
	b := HashBytes([]byte("plumless"))
	require.Equal(t, a, b)
}

func TestHashTaggedZeroTagMatchesHashBytes(t *testing.T) {
	key := []byte("buckeroo")
	require.Equal(t, HashBytes(key), HashTagged(0, key))
}

func TestHashTaggedDiffersByTag(t *testing.T) {
	key := []byte("alice")
	require.NotEqual(t, HashTagged('n', key), HashTagged('u', key))
}

func TestSlotMasksToDirectoryRange(t *testing.T) {
	for _, h := range []uint32{0, 1, 255, 256, 257, 0xffffffff} {
		s := Slot(h)
		require.Less(t, s, uint32(Slots))
	}
}

func TestProbeStartZeroTableLen(t *testing.T) {
	require.Equal(t, uint64(0), ProbeStart(12345, 0))
}

func TestPutGetUintRoundTrip(t *testing.T) {
	var b32 [4]byte
	putUint32(b32[:], 0xdeadbeef)
	require.Equal(t, uint32(0xdeadbeef), getUint32(b32[:]))

	var b64 [8]byte
	putUint64(b64[:], 0x0123456789abcdef)
	require.Equal(t, uint64(0x0123456789abcdef), getUint64(b64[:]))
}
