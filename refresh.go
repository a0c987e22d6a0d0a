// Copyright 2021 The bit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package mcdb

import "golang.org/x/sys/unix"

// RefreshCheck stats n's database file by basename, relative to n's
// directory fd, and reports whether its (mtime, dev, ino) differ from the
// identity n was opened with. It is the only operation that must touch the
// filesystem on the read hot path, and only if the caller opts into
// periodic checks; ordinary lookups never call it.
//
// A failed stat (e.g. the file was briefly unlinked mid-rename) is treated
// as "no change", to avoid refresh churn on a transient condition; callers
// that need strict staleness detection should check the error themselves
// by calling stat directly.
func (n *MapNode) RefreshCheck() bool {
	var st unix.Stat_t
	if err := unix.Fstatat(n.dirFD, n.name, &st, 0); err != nil {
		return false
	}
	id := fileIdentity{
		mtime: st.Mtim.Sec*1_000_000_000 + st.Mtim.Nsec,
		dev:   uint64(st.Dev),
		ino:   st.Ino,
	}
	return id != n.identity
}

// reopen maps the current contents of n's basename into a fresh node and
// attempts to splice it in as n's successor via a CAS on n.next from nil.
// It must only be called after a positive RefreshCheck.
//
// If the CAS loses -- some other reader already published a successor --
// the freshly mapped node is unmapped immediately (it was never linked
// into the chain, so no refcount or destroyOnce protocol applies to it)
// and reopen reports the winner's node instead. mmap or open failure on
// the new file leaves n untouched and is reported as an error; the caller
// keeps using n.
func (n *MapNode) reopen() (*MapNode, error) {
	candidate, err := openMapNode(n.dirFD, n.name)
	if err != nil {
		return nil, err
	}
	// openMapNode's refcnt of 1 represents a caller's own registration,
	// but a freshly published successor has no registered holders yet --
	// the caller that wins the CAS below registers its own +1 the same
	// way it would for any other node. Reset it before publishing so the
	// winner's registration is the node's sole reference.
	candidate.refcnt.Store(0)
	if !n.next.CompareAndSwap(nil, candidate) {
		_ = candidate.destroy()
		return newest(n), nil
	}
	// n may already have dropped to a refcount of zero if the last
	// reader holding it released between our stat and our publish; give
	// the destroy-iff-superseded check a chance to run now that n has a
	// successor.
	n.maybeDestroy()
	return candidate, nil
}

// Refresh is the reader-thread convenience wrapper: if
// *nodePtr's database file has been replaced, Refresh opens the new
// version, publishes it (racing any other reader doing the same), and
// re-registers *nodePtr onto the current head, releasing the caller's
// prior reference on the old node. It reports whether a new version was
// installed; a false result with a nil error means the map was already
// current.
//
// Refresh never leaves *nodePtr unregistered: on every return path the
// caller's pointer still holds exactly one reference, either on the
// original node (no change, or a failed reopen) or on the new head
// (successful refresh).
func Refresh(nodePtr **MapNode) (bool, error) {
	old := *nodePtr
	if !old.RefreshCheck() {
		return false, nil
	}

	head := newest(old)
	if head != old {
		// someone already refreshed past us; just walk up.
		head.refcnt.Add(1)
		*nodePtr = head
		old.refcnt.Add(^uint32(0))
		old.maybeDestroy()
		return true, nil
	}

	newHead, err := old.reopen()
	if err != nil {
		// failure semantics: leave the current head untouched and let
		// the caller keep using it.
		return false, err
	}

	newHead.refcnt.Add(1)
	*nodePtr = newHead
	old.refcnt.Add(^uint32(0))
	old.maybeDestroy()
	return true, nil
}
