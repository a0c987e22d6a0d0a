// Copyright 2021 The bit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package mcdb

import "errors"

// Error kinds surfaced to callers, per the core's error taxonomy.
var (
	// ErrOpenFailed means open or fstat on the database file failed.
	ErrOpenFailed = errors.New("mcdb: open failed")
	// ErrMmapFailed means mmap of the database file failed.
	ErrMmapFailed = errors.New("mcdb: mmap failed")
	// ErrCorrupt means a structural read would go out of bounds, or a
	// record header is impossible given the map's length.
	ErrCorrupt = errors.New("mcdb: corrupt database")
	// ErrNotFound means a lookup exhausted its probe sequence without a
	// match. It is a normal control-flow outcome, not an error condition.
	ErrNotFound = errors.New("mcdb: not found")
)
