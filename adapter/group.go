// Copyright 2021 The bit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package adapter

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/bpowers/mcdb"
)

// tagGroupByName and tagGroupByGID mirror tagPasswdByName/tagPasswdByUID:
// a group record is reachable both by name and by numeric gid.
const (
	tagGroupByName byte = 'n'
	tagGroupByGID  byte = 'g'
)

// Group is the subset of a POSIX struct group this module round-trips.
type Group struct {
	Name    string
	GID     uint32
	Members []string
}

// GroupAdapter encodes and parses Group records as colon-delimited
// datastr lines, name:gid:members with a comma-separated member list (the
// /etc/group field order without the password field).
type GroupAdapter struct{}

// Encode writes record (which must be a Group or *Group) as one datastr
// value and inserts it under both its name and gid keys.
func (GroupAdapter) Encode(w *mcdb.WriteInfo, record any) error {
	gr, err := asGroup(record)
	if err != nil {
		return err
	}

	n := len(gr.Name) + 16
	for _, m := range gr.Members {
		n += len(m) + 1
	}
	w.Scratch = growScratch(w.Scratch, n)
	buf := w.Scratch[:0]
	buf = append(buf, gr.Name...)
	buf = append(buf, ':')
	buf = strconv.AppendUint(buf, uint64(gr.GID), 10)
	buf = append(buf, ':')
	for i, m := range gr.Members {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = append(buf, m...)
	}

	nameKey := append([]byte{tagGroupByName}, gr.Name...)
	if err := w.Insert(nameKey, buf); err != nil {
		return fmt.Errorf("adapter: insert group by name: %w", err)
	}
	gidKey := strconv.AppendUint([]byte{tagGroupByGID}, uint64(gr.GID), 10)
	if err := w.Insert(gidKey, buf); err != nil {
		return fmt.Errorf("adapter: insert group by gid: %w", err)
	}
	return nil
}

// Parse inverts a stored datastr value back into a Group.
func (GroupAdapter) Parse(value []byte) (any, error) {
	name, rest, ok := bytes.Cut(value, []byte(":"))
	if !ok {
		return nil, fmt.Errorf("adapter: malformed group record %q", value)
	}
	gidStr, membersStr, ok := bytes.Cut(rest, []byte(":"))
	if !ok {
		return nil, fmt.Errorf("adapter: malformed group record %q", value)
	}

	gid, err := strconv.ParseUint(string(gidStr), 10, 32)
	if err != nil {
		return nil, fmt.Errorf("adapter: malformed group gid %q: %w", gidStr, err)
	}

	var members []string
	if len(membersStr) > 0 {
		for _, m := range bytes.Split(membersStr, []byte(",")) {
			members = append(members, string(m))
		}
	}

	return &Group{
		Name:    string(name),
		GID:     uint32(gid),
		Members: members,
	}, nil
}

// FindGroupByName looks up a Group record by name.
func FindGroupByName(r *mcdb.Reader, name string) (*Group, error) {
	v, err := findTagged(r, tagGroupByName, []byte(name))
	if err != nil {
		return nil, err
	}
	rec, err := GroupAdapter{}.Parse(v)
	if err != nil {
		return nil, err
	}
	return rec.(*Group), nil
}

// FindGroupByGID looks up a Group record by numeric gid.
func FindGroupByGID(r *mcdb.Reader, gid uint32) (*Group, error) {
	key := strconv.AppendUint(nil, uint64(gid), 10)
	v, err := findTagged(r, tagGroupByGID, key)
	if err != nil {
		return nil, err
	}
	rec, err := GroupAdapter{}.Parse(v)
	if err != nil {
		return nil, err
	}
	return rec.(*Group), nil
}

func asGroup(record any) (*Group, error) {
	switch v := record.(type) {
	case *Group:
		return v, nil
	case Group:
		return &v, nil
	default:
		return nil, fmt.Errorf("adapter: GroupAdapter.Encode given %T, want *Group", record)
	}
}
