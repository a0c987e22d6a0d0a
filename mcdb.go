// Copyright 2021 The bit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package mcdb

import (
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sys/unix"

	"github.com/bpowers/mcdb/internal/unsafestring"
)

// OpenOption configures Open.
type OpenOption func(*openOptions)

type openOptions struct {
	logger *slog.Logger
}

// WithLogger sets a logger for DB to use for refresh diagnostics. Lookups
// themselves never log; if no logger is provided, output is discarded.
func WithLogger(logger *slog.Logger) OpenOption {
	return func(o *openOptions) {
		o.logger = logger
	}
}

// DB is a convenience, single-handle wrapper around a map version chain.
// It is safe for concurrent use by multiple goroutines: each Get acquires
// its own registration for the duration of the call. Callers that want to
// batch several lookups under one registration (e.g. a worker goroutine
// processing a batch of requests) should use NewReader instead.
type DB struct {
	head   atomic.Pointer[MapNode]
	dirFD  int
	logger *slog.Logger
	closed atomic.Bool
}

// Open opens and memory-maps name within dir, returning a DB ready to
// serve lookups. The directory fd is retained for stat-by-name on later
// refresh checks.
func Open(dir, name string, opts ...OpenOption) (*DB, error) {
	var options openOptions
	options.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	for _, opt := range opts {
		opt(&options)
	}

	dirFD, err := unix.Open(dir, unix.O_RDONLY|unix.O_DIRECTORY, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: open dir %s: %w", ErrOpenFailed, dir, err)
	}
	node, err := openMapNode(dirFD, name)
	if err != nil {
		_ = unix.Close(dirFD)
		return nil, err
	}

	db := &DB{dirFD: dirFD, logger: options.logger}
	db.head.Store(node)
	return db, nil
}

// Close unmaps every map version still reachable from the database's head
// -- not just the newest -- and closes its directory fd. A reopen can
// publish a successor that no Get call has caught up to yet, leaving it
// reachable only via the chain's next pointers, so Close walks the whole
// chain rather than just its newest node. Close assumes no reader holds an
// outstanding registration; callers that use NewReader must Close every
// Reader first.
func (db *DB) Close() error {
	if !db.closed.CompareAndSwap(false, true) {
		return nil
	}
	var err error
	for n := db.head.Load(); n != nil; n = n.next.Load() {
		if derr := n.destroy(); derr != nil && err == nil {
			err = derr
		}
	}
	if cerr := unix.Close(db.dirFD); cerr != nil && err == nil {
		err = fmt.Errorf("%w: close dir fd: %w", ErrOpenFailed, cerr)
	}
	return err
}

// RefreshIfNeeded checks whether db's backing file has been replaced and,
// if so, installs the new version. It is safe to call from any number of
// goroutines; only one will win the race to publish a given successor.
func (db *DB) RefreshIfNeeded() (bool, error) {
	ptr := db.head.Load()
	changed, err := Refresh(&ptr)
	if changed {
		db.head.Store(ptr)
		db.logger.Debug("mcdb: refreshed map", "name", ptr.name)
	}
	return changed, err
}

// Get looks up key and returns a copy of its value. ErrNotFound is
// returned (wrapped, so errors.Is(err, ErrNotFound) is true) when the key
// is absent; it is a normal outcome, not a failure worth logging.
func (db *DB) Get(key []byte) ([]byte, error) {
	old := db.head.Load()
	ptr := old
	Acquire(&ptr)
	defer Release(&ptr)

	if ptr != old {
		// db.head holds exactly one permanent reference on whatever it
		// points to, independent of this call's own Acquire/Release pair
		// above. Moving that reference from old to ptr takes an extra
		// acquire on ptr and a release of old's; CompareAndSwap keeps two
		// concurrent Get calls from both performing the move.
		ptr.refcnt.Add(1)
		if db.head.CompareAndSwap(old, ptr) {
			old.refcnt.Add(^uint32(0))
			old.maybeDestroy()
		} else {
			ptr.refcnt.Add(^uint32(0))
		}
	}

	var c Cursor
	ok, err := c.Find(ptr, key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, key)
	}
	v, err := c.Value()
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

// GetString is Get for a string key, returning a string value.
func (db *DB) GetString(key string) (string, error) {
	v, err := db.Get(unsafestring.ToBytes(key))
	if err != nil {
		return "", err
	}
	return string(v), nil
}

// Reader holds a single registration against a DB's map version chain
// across multiple lookups, amortizing the cost of walking to the newest
// node over a batch of Get/Cursor calls. It is not safe for concurrent use
// by multiple goroutines -- each goroutine should have its own Reader, the
// same way a caller would keep one *MapNode in thread-local storage in the
// C original this protocol is grounded on.
type Reader struct {
	node *MapNode
}

// NewReader registers a new Reader against db's current head.
func (db *DB) NewReader() *Reader {
	ptr := db.head.Load()
	Acquire(&ptr)
	return &Reader{node: ptr}
}

// Close releases the reader's registration.
func (r *Reader) Close() {
	Release(&r.node)
}

// Refresh checks for and installs a newer map version, re-registering r in
// place. It returns whether a new version was installed.
func (r *Reader) Refresh() (bool, error) {
	return Refresh(&r.node)
}

// Get looks up key against r's currently registered map version.
func (r *Reader) Get(key []byte) ([]byte, error) {
	var c Cursor
	ok, err := c.Find(r.node, key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, key)
	}
	return c.Value()
}

// Cursor returns a Cursor bound to r's currently registered map version,
// for callers that want to enumerate duplicate keys via FindStart/FindNext
// or drive the probe loop directly.
func (r *Reader) Cursor() *Cursor {
	return &Cursor{node: r.node}
}

// Iterator returns a sequential record iterator over r's currently
// registered map version.
func (r *Reader) Iterator() (*Iterator, error) {
	return NewIterator(r.node)
}

// WriteInfo is passed to a dataset adapter's Encode function by whatever
// drives a build (typically with Insert wired to a mcdbmake Builder's Put):
// scratch is a reusable buffer the adapter may grow and fill,
// and Insert is called once per logical key produced from one input
// record (datasets like "group" can produce several keys -- by name, by
// gid -- for one record). The core does not interpret the bytes an
// adapter writes; it only stores whatever Insert is called with.
type WriteInfo struct {
	Scratch []byte
	Insert  func(key, value []byte) error
}
