// Copyright 2021 The bit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package mcdbmake

import (
	"encoding/binary"

	"github.com/bpowers/mcdb/internal/zero"
)

// putUint32 and putUint64 encode the big-endian integers that make up the
// directory and hash table entries; the core package's hash.go documents
// why big-endian was chosen for the format.
func putUint32(b []byte, v uint32) {
	binary.BigEndian.PutUint32(b, v)
}

func putUint64(b []byte, v uint64) {
	binary.BigEndian.PutUint64(b, v)
}

func zeroBytes(b []byte) {
	zero.Bytes(b)
}
