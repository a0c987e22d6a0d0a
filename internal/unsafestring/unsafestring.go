// Copyright 2021 The bit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Package unsafestring provides an allocation-free string-to-[]byte
// conversion for the hot lookup path, where a caller with a string key
// would otherwise force an allocating copy just to call a []byte-typed
// Find.
package unsafestring

import "unsafe"

// ToBytes returns a byte slice referring to the contents of s.
// SAFETY: the returned byte slice must never be written to, only read --
// the backing memory is a Go string's immutable storage.
func ToBytes(s string) []byte {
	if len(s) == 0 {
		return nil
	}
	return unsafe.Slice(unsafe.StringData(s), len(s))
}
