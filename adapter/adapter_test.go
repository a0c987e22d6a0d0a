// Copyright 2021 The bit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package adapter

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bpowers/mcdb"
	"github.com/bpowers/mcdb/mcdbmake"
)

func TestNewRegistryHasBuiltins(t *testing.T) {
	r := NewRegistry()
	_, ok := r.Lookup("passwd")
	require.True(t, ok)
	_, ok = r.Lookup("group")
	require.True(t, ok)
	_, ok = r.Lookup("shadow")
	require.False(t, ok)
}

func TestRegisterOverridesAdapter(t *testing.T) {
	r := NewRegistry()
	r.Register("passwd", PasswdAdapter{})
	a, ok := r.Lookup("passwd")
	require.True(t, ok)
	require.IsType(t, PasswdAdapter{}, a)
}

func TestPasswdAdapterEncodeParseRoundTrip(t *testing.T) {
	pw := &Passwd{Name: "alice", UID: 1000, GID: 1000, Gecos: "Alice A", Dir: "/home/alice", Shell: "/bin/bash"}

	dir := t.TempDir()
	b, err := mcdbmake.NewBuilder(dir + "/passwd.mcdb")
	require.NoError(t, err)

	w := &mcdb.WriteInfo{Insert: func(key, value []byte) error { return b.Put(key, value) }}
	require.NoError(t, PasswdAdapter{}.Encode(w, pw))

	result, err := b.Finalize()
	require.NoError(t, err)

	db, err := mcdb.Open(dir, "passwd.mcdb")
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	r := db.NewReader()
	defer r.Close()

	byName, err := FindByName(r, "alice")
	require.NoError(t, err)
	require.Equal(t, pw, byName)

	byUID, err := FindByUID(r, 1000)
	require.NoError(t, err)
	require.Equal(t, pw, byUID)

	_, err = FindByName(r, "nobody")
	require.ErrorIs(t, err, mcdb.ErrNotFound)

	require.Equal(t, 2, result.Keys)
}

func TestGroupAdapterEncodeParseRoundTrip(t *testing.T) {
	gr := &Group{Name: "wheel", GID: 10, Members: []string{"alice", "bob"}}

	dir := t.TempDir()
	b, err := mcdbmake.NewBuilder(dir + "/group.mcdb")
	require.NoError(t, err)

	w := &mcdb.WriteInfo{Insert: func(key, value []byte) error { return b.Put(key, value) }}
	require.NoError(t, GroupAdapter{}.Encode(w, gr))

	_, err = b.Finalize()
	require.NoError(t, err)

	db, err := mcdb.Open(dir, "group.mcdb")
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	r := db.NewReader()
	defer r.Close()

	byName, err := FindGroupByName(r, "wheel")
	require.NoError(t, err)
	require.Equal(t, gr, byName)

	byGID, err := FindGroupByGID(r, 10)
	require.NoError(t, err)
	require.Equal(t, gr, byGID)
}

func TestPasswdAdapterEncodeRejectsWrongType(t *testing.T) {
	w := &mcdb.WriteInfo{Insert: func(key, value []byte) error { return nil }}
	err := PasswdAdapter{}.Encode(w, "not a passwd")
	require.Error(t, err)
}

func TestGroupAdapterParseMalformedRecord(t *testing.T) {
	_, err := GroupAdapter{}.Parse([]byte("no-colon-here"))
	require.Error(t, err)
}
