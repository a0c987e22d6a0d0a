// Copyright 2021 The bit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Package adapter implements the encode/parse capability set the core
// exposes to dataset-specific collaborators: name-service style records --
// user accounts, groups, and similar flat, colon-delimited datasets --
// that want to live in an mcdb file without the core package knowing
// anything about their shape.
//
// Adapters are registered by dataset identity rather than by inheritance,
// per the "dynamic dispatch over datasets" design note: a map from name to
// Adapter, not a type hierarchy.
package adapter

import (
	"fmt"

	"github.com/bpowers/mcdb"
)

// Adapter is the pair of operations a dataset must provide. Encode turns
// one in-memory record into zero or more (key, value) pairs via
// w.Insert -- "zero or more" because a dataset like group can be looked up
// by more than one key (name and gid) for the same underlying record.
// Parse inverts one stored value back into the dataset's native
// representation.
type Adapter interface {
	// Encode serializes record into w.Scratch (growing it as needed) and
	// calls w.Insert once per key the record should be reachable under.
	Encode(w *mcdb.WriteInfo, record any) error
	// Parse decodes a stored value back into the dataset's native type.
	Parse(value []byte) (any, error)
}

// Registry is a capability set of adapters keyed by dataset identity, e.g.
// "passwd" or "group". It replaces what an inheritance hierarchy would
// otherwise model as a base "dataset" type with per-dataset subclasses.
type Registry map[string]Adapter

// NewRegistry returns a Registry pre-populated with this module's built-in
// adapters.
func NewRegistry() Registry {
	return Registry{
		"passwd": PasswdAdapter{},
		"group":  GroupAdapter{},
	}
}

// Register adds or replaces the adapter for a dataset identity.
func (r Registry) Register(dataset string, a Adapter) {
	r[dataset] = a
}

// Lookup returns the adapter registered for dataset, if any.
func (r Registry) Lookup(dataset string) (Adapter, bool) {
	a, ok := r[dataset]
	return a, ok
}

// findTagged looks up key under tag via r's current map version, using
// the tagged lookup variant (Cursor.FindTag) rather than a plain Get,
// since the record's stored key carries the tag byte as its first byte.
func findTagged(r *mcdb.Reader, tag byte, key []byte) ([]byte, error) {
	c := r.Cursor()
	ok, err := c.FindTag(nil, tag, key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("adapter: %w: tag %q key %q", mcdb.ErrNotFound, []byte{tag}, key)
	}
	return c.Value()
}

// growScratch returns s grown to at least n bytes of capacity, reusing s's
// backing array when possible -- the same scratch-buffer reuse pattern the
// core's WriteInfo is designed around.
func growScratch(s []byte, n int) []byte {
	if cap(s) >= n {
		return s[:n]
	}
	return make([]byte, n)
}
