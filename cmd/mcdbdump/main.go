// Copyright 2021 The bit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Command mcdbdump sequentially walks a database's record region and
// prints every key/value pair, one per line, colon-separated. It never
// touches the hash tables, so it also serves as a quick check that a
// file's record region is internally well-formed.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bpowers/mcdb"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s <database-file>\n", os.Args[0])
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	if err := run(flag.Arg(0)); err != nil {
		fmt.Fprintf(os.Stderr, "mcdbdump: %s\n", err)
		os.Exit(1)
	}
}

func run(path string) error {
	dir, name := filepath.Split(path)
	if dir == "" {
		dir = "."
	}

	db, err := mcdb.Open(dir, name)
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	defer func() { _ = db.Close() }()

	r := db.NewReader()
	defer r.Close()

	it, err := r.Iterator()
	if err != nil {
		return fmt.Errorf("iterator: %w", err)
	}

	out := bufio.NewWriter(os.Stdout)
	defer func() { _ = out.Flush() }()

	count := 0
	for {
		item, ok, err := it.Next()
		if err != nil {
			return fmt.Errorf("record %d: %w", count, err)
		}
		if !ok {
			break
		}
		if _, err := fmt.Fprintf(out, "%s:%s\n", item.Key, item.Value); err != nil {
			return fmt.Errorf("write: %w", err)
		}
		count++
	}
	return out.Flush()
}
