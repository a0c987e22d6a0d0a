// Copyright 2021 The bit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package mcdb

import (
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// MapNode is a live version of a mapped database file plus the metadata
// needed to detect replacement and to safely unmap once the last reader
// referencing it has gone.
//
// MapNode is never copied; always handled through a *MapNode. refcnt and
// next are accessed atomically so that register/unregister never need to
// take a lock on the read path.
type MapNode struct {
	data     []byte // mmap base; directory is data[:HeaderSize]
	identity fileIdentity

	dirFD int    // directory fd kept open for stat-by-name on refresh_check
	name  string // basename of the database file within dirFD

	refcnt      atomic.Uint32
	next        atomic.Pointer[MapNode]
	destroyOnce sync.Once
	unmapped    atomic.Bool // set once destroy has actually unmapped data
}

// openMapNode opens and memory-maps basename relative to dirFD, returning a
// fresh node with a refcount of 1 representing the caller's own reference.
// The directory fd is retained (for future refresh_check calls); the file
// descriptor for the database file itself is closed once mmap succeeds.
func openMapNode(dirFD int, name string) (*MapNode, error) {
	fd, err := unix.Openat(dirFD, name, unix.O_RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: openat(%s): %w", ErrOpenFailed, name, err)
	}
	n, err := initMapNode(fd, dirFD, name)
	_ = unix.Close(fd)
	return n, err
}

// initMapNode maps an already-open file descriptor, separating the
// filesystem step from the mmap step so test fixtures can pre-open files
// (e.g. from an *os.File) without going through openat.
func initMapNode(fd int, dirFD int, name string) (*MapNode, error) {
	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		return nil, fmt.Errorf("%w: fstat(%s): %w", ErrOpenFailed, name, err)
	}
	if st.Size < HeaderSize {
		return nil, fmt.Errorf("%w: %s is %d bytes, shorter than the %d-byte directory", ErrCorrupt, name, st.Size, HeaderSize)
	}

	data, err := mmapRegion(fd, st.Size)
	if err != nil {
		return nil, err
	}

	n := &MapNode{
		data: data,
		identity: fileIdentity{
			mtime: st.Mtim.Sec*1_000_000_000 + st.Mtim.Nsec,
			dev:   uint64(st.Dev),
			ino:   st.Ino,
		},
		dirFD: dirFD,
		name:  name,
	}
	n.refcnt.Store(1)
	return n, nil
}

// destroy unmaps the node's region. It must only be called once the node's
// refcount has reached zero and it has been superseded (or the caller is
// tearing down the whole database and knows no reader remains).
func (n *MapNode) destroy() error {
	err := munmapRegion(n.data)
	n.unmapped.Store(true)
	return err
}

// directorySlot reads the (offset, count) pair for slot s, 0 <= s < Slots,
// out of the map's directory region.
func (n *MapNode) directorySlot(s uint32) (offset, count uint64) {
	off := int(s) * directoryEntrySize
	b := n.data[off : off+directoryEntrySize]
	return getUint64(b[:8]), getUint64(b[8:])
}

// bounds-checked byte range accessor; every other read in this package
// funnels through it so an overflowed index always surfaces as ErrCorrupt
// rather than a panic or an out-of-process read.
func (n *MapNode) slice(off, length uint64) ([]byte, error) {
	if length == 0 {
		if off > uint64(len(n.data)) {
			return nil, fmt.Errorf("%w: offset %d exceeds map length %d", ErrCorrupt, off, len(n.data))
		}
		return n.data[off:off], nil
	}
	end := off + length
	if end < off || end > uint64(len(n.data)) {
		return nil, fmt.Errorf("%w: range [%d,%d) exceeds map length %d", ErrCorrupt, off, end, len(n.data))
	}
	return n.data[off:end], nil
}
