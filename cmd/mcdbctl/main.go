// Copyright 2021 The bit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Command mcdbctl builds mcdb database files from a colon-delimited
// key:value input stream, and inspects or verifies existing ones.
//
// Usage:
//
//	mcdbctl build <output-file>   < key:value lines on stdin
//	mcdbctl stat  <database-file>
//	mcdbctl verify <database-file> [digest-hex]
package main

import (
	"bufio"
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/bpowers/mcdb"
	"github.com/bpowers/mcdb/mcdbmake"
)

func main() {
	if len(os.Args) < 3 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "build":
		err = build(os.Args[2])
	case "stat":
		err = stat(os.Args[2])
	case "verify":
		var wantDigest uint64
		if len(os.Args) > 3 {
			wantDigest, err = strconv.ParseUint(os.Args[3], 16, 64)
		}
		if err == nil {
			err = verify(os.Args[2], wantDigest)
		}
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "mcdbctl: %s\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "usage:\n  %[1]s build <output-file>   < key:value lines\n  %[1]s stat <database-file>\n  %[1]s verify <database-file> [digest-hex]\n", os.Args[0])
}

func build(path string) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	b, err := mcdbmake.NewBuilder(path, mcdbmake.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("new builder: %w", err)
	}

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 64*1024), 1<<28)
	line := 0
	for scanner.Scan() {
		line++
		key, value, ok := bytes.Cut(scanner.Bytes(), []byte(":"))
		if !ok {
			return fmt.Errorf("line %d: missing ':' separator", line)
		}
		if err := b.Put(key, value); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read stdin: %w", err)
	}

	result, err := b.Finalize()
	if err != nil {
		return fmt.Errorf("finalize: %w", err)
	}
	fmt.Printf("wrote %s: %d keys, %d bytes, digest %016x\n", result.Path, result.Keys, result.Size, result.Digest)
	return nil
}

func stat(path string) error {
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
	count := 0
	var totalKeyBytes, totalValueBytes int64
	for {
		item, ok, err := it.Next()
		if err != nil {
			return fmt.Errorf("record %d: %w", count, err)
		}
		if !ok {
			break
		}
		count++
		totalKeyBytes += int64(len(item.Key))
		totalValueBytes += int64(len(item.Value))
	}
	fmt.Printf("%s: %d records, %d key bytes, %d value bytes\n", path, count, totalKeyBytes, totalValueBytes)
	return nil
}

func verify(path string, wantDigest uint64) error {
	if err := mcdbmake.VerifyFile(path, wantDigest); err != nil {
		return err
	}
	fmt.Printf("%s: ok\n", path)
	return nil
}
