// Copyright 2021 The bit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package mcdb

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// fileIdentity is the (mtime, dev, ino) triple used to detect that a
// basename now refers to a different file than the one a MapNode has open.
type fileIdentity struct {
	mtime int64
	dev   uint64
	ino   uint64
}

// mmapRegion memory-maps fd read-only and shared, and hints the kernel that
// access will be random (hash lookups have no locality), matching the
// madvise call the teacher's index reader makes after mapping.
func mmapRegion(fd int, size int64) ([]byte, error) {
	if size == 0 {
		return nil, fmt.Errorf("%w: empty file", ErrMmapFailed)
	}
	data, err := unix.Mmap(fd, 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("%w: mmap: %w", ErrMmapFailed, err)
	}
	if err := unix.Madvise(data, unix.MADV_RANDOM); err != nil {
		// advisory only; continue without it
		_ = err
	}
	return data, nil
}

func munmapRegion(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	return unix.Munmap(data)
}
