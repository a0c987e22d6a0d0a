// Copyright 2021 The bit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package mcdb

// RegisterFlag is a bitmask of options recognized by Register. The exact
// bit values are kept identical to the mcdb_flags enum this protocol is
// grounded on, in case a caller ever needs to interoperate with an
// on-disk or cross-language description of the same protocol; a Go-only
// caller can ignore the numeric values and use the named constants.
type RegisterFlag uint32

const (
	// UseDecr releases the caller's reference. It is the zero value: a
	// bare Register call with no flags set unregisters.
	UseDecr RegisterFlag = 0
	// UseIncr acquires a reference on the newest node in the chain,
	// rewriting the caller's pointer to it.
	UseIncr RegisterFlag = 1
	// MunmapSkip decrements the reference count but never unmaps the
	// node, even if the count reaches zero. Used at shutdown, when the
	// caller will tear down the region itself.
	MunmapSkip RegisterFlag = 2
	// MutexLockHold advises Register that a caller-owned mutex is
	// already held across the call; Register must not attempt to
	// re-enter a lock the caller holds. mcdb's own locking is limited
	// to the per-node destroy-once guard (see MapNode.destroyOnce),
	// which never blocks on a caller's lock, so this flag is accepted
	// for interface fidelity but has no effect.
	MutexLockHold RegisterFlag = 4
	// MutexUnlockHold is the release-side counterpart of
	// MutexLockHold; also accepted, also a no-op.
	MutexUnlockHold RegisterFlag = 8
)

// newest walks n's successor chain and returns the node with a nil next,
// i.e. the current head of the version chain.
func newest(n *MapNode) *MapNode {
	for {
		next := n.next.Load()
		if next == nil {
			return n
		}
		n = next
	}
}

// Register implements the reader registration protocol. Callers
// hold a *MapNode pointer per reader (goroutine, worker, whatever unit of
// concurrency issues lookups); Register is handed a pointer to that
// pointer so it can rewrite it in place when registering onto a newer
// version of the chain.
//
// With UseIncr set (the common case, via Acquire), Register walks from
// *nodePtr to the newest node, increments its refcount, and stores it back
// through nodePtr. Without UseIncr (via Release), Register decrements the
// refcount of *nodePtr's current node; if that drops the count to zero and
// the node has since been superseded, the node is unmapped and freed
// (unless MunmapSkip was given).
func Register(nodePtr **MapNode, flags RegisterFlag) {
	n := *nodePtr
	if flags&UseIncr != 0 {
		head := newest(n)
		head.refcnt.Add(1)
		*nodePtr = head
		return
	}

	remaining := n.refcnt.Add(^uint32(0)) // decrement by one, wrapping subtract
	if flags&MunmapSkip != 0 {
		return
	}
	if remaining == 0 {
		n.maybeDestroy()
	}
}

// Acquire registers *nodePtr onto the newest node in its chain. It is
// Register(nodePtr, UseIncr).
func Acquire(nodePtr **MapNode) {
	Register(nodePtr, UseIncr)
}

// Release unregisters *nodePtr's reference. It is Register(nodePtr,
// UseDecr).
func Release(nodePtr **MapNode) {
	Register(nodePtr, UseDecr)
}

// maybeDestroy frees n exactly once, the first time both of its retirement
// conditions are simultaneously observed true: refcount has reached zero,
// and the node has a successor (the head of the chain is never freed while
// it is current). destroyOnce makes the check-then-destroy race-free
// against a concurrent refresh publishing n's successor at the same moment
// a late Release decrements n's count to zero -- whichever of the two
// goroutines observes both conditions true runs the destroy, and the other
// is a no-op.
func (n *MapNode) maybeDestroy() {
	if n.refcnt.Load() == 0 && n.next.Load() != nil {
		n.destroyOnce.Do(func() {
			_ = n.destroy()
		})
	}
}
