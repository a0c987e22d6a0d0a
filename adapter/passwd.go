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

// tagPasswdByName and tagPasswdByUID select the two key spaces a Passwd
// record is reachable under, grounded on nss_mcdb_acct_make_passwd_encode
// indexing the same datastr by both pw_name and pw_uid.
const (
	tagPasswdByName byte = 'n'
	tagPasswdByUID  byte = 'u'
)

// Passwd is the subset of a POSIX struct passwd this module round-trips.
type Passwd struct {
	Name  string
	UID   uint32
	GID   uint32
	Gecos string
	Dir   string
	Shell string
}

// PasswdAdapter encodes and parses Passwd records as colon-delimited
// datastr lines (name:uid:gid:gecos:dir:shell, the /etc/passwd field order
// without the password field), indexed under two tags so a
// built file supports lookup both by name and by numeric uid without
// storing the record twice.
type PasswdAdapter struct{}

// Encode writes record (which must be a Passwd or *Passwd) as one
// datastr value and inserts it under both its name and uid keys.
func (PasswdAdapter) Encode(w *mcdb.WriteInfo, record any) error {
	pw, err := asPasswd(record)
	if err != nil {
		return err
	}

	n := len(pw.Name) + len(pw.Gecos) + len(pw.Dir) + len(pw.Shell) + 32
	w.Scratch = growScratch(w.Scratch, n)
	buf := w.Scratch[:0]
	buf = append(buf, pw.Name...)
	buf = append(buf, ':')
	buf = strconv.AppendUint(buf, uint64(pw.UID), 10)
	buf = append(buf, ':')
	buf = strconv.AppendUint(buf, uint64(pw.GID), 10)
	buf = append(buf, ':')
	buf = append(buf, pw.Gecos...)
	buf = append(buf, ':')
	buf = append(buf, pw.Dir...)
	buf = append(buf, ':')
	buf = append(buf, pw.Shell...)

	nameKey := append([]byte{tagPasswdByName}, pw.Name...)
	if err := w.Insert(nameKey, buf); err != nil {
		return fmt.Errorf("adapter: insert passwd by name: %w", err)
	}
	uidKey := strconv.AppendUint([]byte{tagPasswdByUID}, uint64(pw.UID), 10)
	if err := w.Insert(uidKey, buf); err != nil {
		return fmt.Errorf("adapter: insert passwd by uid: %w", err)
	}
	return nil
}

// Parse inverts a stored datastr value back into a Passwd.
func (PasswdAdapter) Parse(value []byte) (any, error) {
	name, rest, ok := bytes.Cut(value, []byte(":"))
	if !ok {
		return nil, fmt.Errorf("adapter: malformed passwd record %q", value)
	}
	uidStr, rest, ok := bytes.Cut(rest, []byte(":"))
	if !ok {
		return nil, fmt.Errorf("adapter: malformed passwd record %q", value)
	}
	gidStr, rest, ok := bytes.Cut(rest, []byte(":"))
	if !ok {
		return nil, fmt.Errorf("adapter: malformed passwd record %q", value)
	}
	gecos, rest, ok := bytes.Cut(rest, []byte(":"))
	if !ok {
		return nil, fmt.Errorf("adapter: malformed passwd record %q", value)
	}
	dir, shell, ok := bytes.Cut(rest, []byte(":"))
	if !ok {
		return nil, fmt.Errorf("adapter: malformed passwd record %q", value)
	}

	uid, err := strconv.ParseUint(string(uidStr), 10, 32)
	if err != nil {
		return nil, fmt.Errorf("adapter: malformed passwd uid %q: %w", uidStr, err)
	}
	gid, err := strconv.ParseUint(string(gidStr), 10, 32)
	if err != nil {
		return nil, fmt.Errorf("adapter: malformed passwd gid %q: %w", gidStr, err)
	}

	return &Passwd{
		Name:  string(name),
		UID:   uint32(uid),
		GID:   uint32(gid),
		Gecos: string(gecos),
		Dir:   string(dir),
		Shell: string(shell),
	}, nil
}

// FindByName looks up a Passwd record by name via r's tagged name key
// space.
func FindByName(r *mcdb.Reader, name string) (*Passwd, error) {
	v, err := findTagged(r, tagPasswdByName, []byte(name))
	if err != nil {
		return nil, err
	}
	rec, err := PasswdAdapter{}.Parse(v)
	if err != nil {
		return nil, err
	}
	return rec.(*Passwd), nil
}

// FindByUID looks up a Passwd record by numeric uid via r's tagged uid
// key space.
func FindByUID(r *mcdb.Reader, uid uint32) (*Passwd, error) {
	key := strconv.AppendUint(nil, uint64(uid), 10)
	v, err := findTagged(r, tagPasswdByUID, key)
	if err != nil {
		return nil, err
	}
	rec, err := PasswdAdapter{}.Parse(v)
	if err != nil {
		return nil, err
	}
	return rec.(*Passwd), nil
}

func asPasswd(record any) (*Passwd, error) {
	switch v := record.(type) {
	case *Passwd:
		return v, nil
	case Passwd:
		return &v, nil
	default:
		return nil, fmt.Errorf("adapter: PasswdAdapter.Encode given %T, want *Passwd", record)
	}
}
