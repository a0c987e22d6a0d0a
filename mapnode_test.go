// Copyright 2021 The bit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package mcdb

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDirectorySlotReadsPackedEntry(t *testing.T) {
	data := make([]byte, HeaderSize)
	putUint64(data[16*3:16*3+8], 9000)
	putUint64(data[16*3+8:16*3+16], 7)
	n := &MapNode{data: data}

	off, count := n.directorySlot(3)
	require.Equal(t, uint64(9000), off)
	require.Equal(t, uint64(7), count)
}

func TestSliceBoundsChecked(t *testing.T) {
	n := &MapNode{data: make([]byte, 16)}

	got, err := n.slice(0, 16)
	require.NoError(t, err)
	require.Len(t, got, 16)

	_, err = n.slice(10, 10)
	require.ErrorIs(t, err, ErrCorrupt)

	_, err = n.slice(1<<40, 1)
	require.ErrorIs(t, err, ErrCorrupt)
}

func TestSliceZeroLengthNeverOutOfBounds(t *testing.T) {
	n := &MapNode{data: make([]byte, 4)}
	got, err := n.slice(4, 0)
	require.NoError(t, err)
	require.Len(t, got, 0)
}
