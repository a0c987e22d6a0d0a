// Copyright 2021 The bit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package mcdbmake

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dgryski/go-farm"

	"github.com/bpowers/mcdb"
)

// VerifyFile re-opens a published database and checks the invariants a
// conforming builder must establish: every record key reached by the
// sequential iterator is found by a lookup through its hash table, and
// the file's whole-file digest matches wantDigest (pass 0 to skip the
// digest check). It is the in-process equivalent of the external
// collision/sort checker mentioned as a build-time collaborator: this
// module runs it itself rather than shelling out to a separate tool.
func VerifyFile(path string, wantDigest uint64) error {
	dir, name := filepath.Split(path)
	if dir == "" {
		dir = "."
	}

	db, err := mcdb.Open(dir, name)
	if err != nil {
		return fmt.Errorf("mcdbmake.VerifyFile: %w", err)
	}
	defer func() { _ = db.Close() }()

	r := db.NewReader()
	defer r.Close()

	it, err := r.Iterator()
	if err != nil {
		return fmt.Errorf("mcdbmake.VerifyFile: %w", err)
	}

	count := 0
	for {
		item, ok, err := it.Next()
		if err != nil {
			return fmt.Errorf("mcdbmake.VerifyFile: record %d: %w", count, err)
		}
		if !ok {
			break
		}

		if _, err := r.Get(item.Key); err != nil && !errors.Is(err, mcdb.ErrNotFound) {
			return fmt.Errorf("mcdbmake.VerifyFile: key %q unreachable from its own table: %w", item.Key, err)
		} else if errors.Is(err, mcdb.ErrNotFound) {
			return fmt.Errorf("mcdbmake.VerifyFile: key %q present in record region but not reachable via its hash table", item.Key)
		}
		count++
	}

	if wantDigest != 0 {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("mcdbmake.VerifyFile: %w", err)
		}
		if got := farm.Hash64(data); got != wantDigest {
			return fmt.Errorf("mcdbmake.VerifyFile: digest mismatch: got %x, want %x", got, wantDigest)
		}
	}

	return nil
}
