// Copyright 2021 The bit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package mcdb

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func openTestDir(t *testing.T, dir string) int {
	t.Helper()
	fd, err := unix.Open(dir, unix.O_RDONLY|unix.O_DIRECTORY, 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = unix.Close(fd) })
	return fd
}

func writeTestFile(t *testing.T, dir, name string, records []kv) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), buildTestImage(t, records), 0644))
}

func TestRefreshCheckFalseWhenUnchanged(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "db", []kv{{"a", "1"}})
	dirFD := openTestDir(t, dir)

	n, err := openMapNode(dirFD, "db")
	require.NoError(t, err)
	defer func() { _ = n.destroy() }()

	require.False(t, n.RefreshCheck())
}

func TestRefreshCheckTrueAfterReplace(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "db", []kv{{"a", "1"}})
	dirFD := openTestDir(t, dir)

	n, err := openMapNode(dirFD, "db")
	require.NoError(t, err)
	defer func() { _ = n.destroy() }()

	// replace via rename so the new file gets a distinct inode, the same
	// way a real build publishes a new version.
	writeTestFile(t, dir, "db.tmp", []kv{{"a", "1"}, {"b", "2"}})
	require.NoError(t, os.Rename(filepath.Join(dir, "db.tmp"), filepath.Join(dir, "db")))

	require.True(t, n.RefreshCheck())
}

func TestRefreshInstallsNewVersionAndFreesOld(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "db", []kv{{"a", "1"}})
	dirFD := openTestDir(t, dir)

	// openMapNode's refcnt of 1 is this call's own reference, the same
	// single reference a Reader's sole registration would hold; Refresh's
	// contract is to move exactly that one reference from old to new.
	n, err := openMapNode(dirFD, "db")
	require.NoError(t, err)
	ptr := n

	writeTestFile(t, dir, "db.tmp", []kv{{"a", "1"}, {"b", "2"}})
	require.NoError(t, os.Rename(filepath.Join(dir, "db.tmp"), filepath.Join(dir, "db")))

	changed, err := Refresh(&ptr)
	require.NoError(t, err)
	require.True(t, changed)
	require.NotSame(t, n, ptr)

	// the old version's sole reference moved to the new version; its
	// refcount must drop to zero and it must actually be unmapped, not
	// just superseded.
	require.Equal(t, uint32(0), n.refcnt.Load())
	require.True(t, n.unmapped.Load())

	var c Cursor
	ok, err := c.Find(ptr, []byte("b"))
	require.NoError(t, err)
	require.True(t, ok)
	v, err := c.Value()
	require.NoError(t, err)
	require.Equal(t, "2", string(v))

	Release(&ptr)

	// the new version must still be mapped: it is current, and the sole
	// holder released above, so it remains un-destroyed (nothing has
	// superseded it).
	require.False(t, ptr.unmapped.Load())
}

func TestRefreshNoopWhenUnchanged(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "db", []kv{{"a", "1"}})
	dirFD := openTestDir(t, dir)

	n, err := openMapNode(dirFD, "db")
	require.NoError(t, err)
	defer func() { _ = n.destroy() }()

	ptr := n
	changed, err := Refresh(&ptr)
	require.NoError(t, err)
	require.False(t, changed)
	require.Same(t, n, ptr)
}
