/*
 * Copyright 2026 The FileRipper Team
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package sftpclient

import (
	"path"
	"strings"
	"time"

	"fileripper/internal/core"
	"fileripper/internal/wire"

	"github.com/pkg/errors"
)

// realpath sends REALPATH(p) and expects a NAME frame with exactly one
// entry, returning its name.
func (s *Session) realpath(p string) (string, error) {
	id := s.allocID()
	w := wire.NewWriter()
	w.PutString(p)
	if err := s.send(wire.TypeRealpath, id, w.Bytes()); err != nil {
		return "", err
	}
	f, err := s.rt.GetReply(id)
	if err != nil {
		return "", err
	}
	if f.Type == wire.TypeStatus {
		return "", errors.Wrap(statusFromFrame(f), "realpath")
	}
	if f.Type != wire.TypeName {
		return "", errors.Wrap(core.ErrUnexpectedFrameType, "realpath")
	}
	r := wire.NewReader(f.Payload, s.sessionMax)
	count, err := r.GetU32()
	if err != nil {
		return "", err
	}
	if count != 1 {
		return "", errors.New("realpath: expected exactly one NAME entry")
	}
	name, err := r.GetString()
	if err != nil {
		return "", err
	}
	return name, nil
}

// CdOptions configures the cd-with-autocreate workaround.
type CdOptions struct {
	CreateDir bool
	Mode      uint32
	// CreatedPath, if non-nil, receives the components that were newly
	// created, joined with "/".
	CreatedPath *string
}

// Cd sends REALPATH and stores the result as the session CWD. Legacy
// servers (version < 4) can return a directory name even when the
// directory doesn't exist; as a workaround, if opts.CreateDir is set
// and a follow-up stat fails, this walks the path component by
// component, creating each missing segment, then retries Cd exactly
// once.
func (s *Session) Cd(target string, opts CdOptions) error {
	name, err := s.realpath(target)
	if err != nil {
		return err
	}

	_, statErr := s.Stat(name)
	if statErr == nil {
		s.mu.Lock()
		s.cwd = name
		s.mu.Unlock()
		return nil
	}
	if !opts.CreateDir {
		return statErr
	}

	created, err := s.createPathWalk(name, opts.Mode)
	if err != nil {
		return err
	}
	if opts.CreatedPath != nil {
		*opts.CreatedPath = strings.Join(created, "/")
	}

	name2, err := s.realpath(target)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.cwd = name2
	s.mu.Unlock()
	return nil
}

// createPathWalk stat+mkdir's each missing path component, in order,
// returning the names of the components that were newly created. This
// is the single helper both Cd and Move's legacy-retry path use,
// replacing the macro-expanded duplication of the original.
func (s *Session) createPathWalk(full string, mode uint32) ([]string, error) {
	clean := strings.Trim(path.Clean(full), "/")
	if clean == "" || clean == "." {
		return nil, nil
	}
	parts := strings.Split(clean, "/")
	prefix := ""
	if strings.HasPrefix(full, "/") {
		prefix = "/"
	}

	var created []string
	var cur string
	for _, part := range parts {
		if cur == "" {
			cur = prefix + part
		} else {
			cur = cur + "/" + part
		}
		if _, err := s.Stat(cur); err != nil {
			if err := s.Mkdir(cur, mode); err != nil {
				return created, err
			}
			created = append(created, part)
		}
	}
	return created, nil
}

// Stat sends STAT(path). From version 4 on it requests
// SIZE|MODIFYTIME for version > 4, else SIZE|ACMODTIME; a version 3
// STAT has no attribute-mask field and carries the path only. It caches
// the result in the session and returns it.
func (s *Session) Stat(p string) (wire.Stat, error) {
	s.mu.Lock()
	version := s.version
	s.mu.Unlock()

	id := s.allocID()
	w := wire.NewWriter()
	w.PutString(p)
	if version >= 4 {
		w.PutU32(wire.AttrMaskFor(version))
	}
	if err := s.send(wire.TypeStat, id, w.Bytes()); err != nil {
		return wire.Stat{}, err
	}
	f, err := s.rt.GetReply(id)
	if err != nil {
		return wire.Stat{}, err
	}
	if f.Type == wire.TypeStatus {
		return wire.Stat{}, errors.Wrap(statusFromFrame(f), "stat")
	}
	if f.Type != wire.TypeAttrs {
		return wire.Stat{}, errors.Wrap(core.ErrUnexpectedFrameType, "stat")
	}
	r := wire.NewReader(f.Payload, s.sessionMax)
	st, err := wire.DecodeAttrs(r, version)
	if err != nil {
		return wire.Stat{}, err
	}
	s.mu.Lock()
	s.cachedStat = st
	s.mu.Unlock()
	return st, nil
}

// Fstat sends FSTAT(handle) for the currently open file.
func (s *Session) Fstat() (wire.Stat, error) {
	s.mu.Lock()
	version := s.version
	fh := s.openFile
	s.mu.Unlock()
	if fh == nil {
		return wire.Stat{}, errors.New("fstat: no open file")
	}

	id := s.allocID()
	w := wire.NewWriter()
	w.PutString(fh.handle)
	if err := s.send(wire.TypeFstat, id, w.Bytes()); err != nil {
		return wire.Stat{}, err
	}
	f, err := s.rt.GetReply(id)
	if err != nil {
		return wire.Stat{}, err
	}
	if f.Type == wire.TypeStatus {
		return wire.Stat{}, errors.Wrap(statusFromFrame(f), "fstat")
	}
	if f.Type != wire.TypeAttrs {
		return wire.Stat{}, errors.Wrap(core.ErrUnexpectedFrameType, "fstat")
	}
	r := wire.NewReader(f.Payload, s.sessionMax)
	st, err := wire.DecodeAttrs(r, version)
	if err != nil {
		return wire.Stat{}, err
	}
	s.mu.Lock()
	s.cachedStat = st
	s.mu.Unlock()
	return st, nil
}

// Mkdir sends MKDIR(path, attrs{permissions=mode}).
func (s *Session) Mkdir(p string, mode uint32) error {
	s.mu.Lock()
	version := s.version
	s.mu.Unlock()

	id := s.allocID()
	w := wire.NewWriter()
	w.PutString(p)
	w.EncodeAttrs(wire.Stat{Flags: wire.AttrPermissions, Permissions: mode}, version)
	if err := s.send(wire.TypeMkdir, id, w.Bytes()); err != nil {
		return err
	}
	return s.expectStatusOK(id, "mkdir")
}

// Rmdir sends RMDIR(path).
func (s *Session) Rmdir(p string) error {
	return s.simplePathOp(wire.TypeRmdir, p, "rmdir")
}

// Remove sends REMOVE(path).
func (s *Session) Remove(p string) error {
	return s.simplePathOp(wire.TypeRemove, p, "remove")
}

func (s *Session) simplePathOp(t wire.Type, p string, op string) error {
	id := s.allocID()
	w := wire.NewWriter()
	w.PutString(p)
	if err := s.send(t, id, w.Bytes()); err != nil {
		return err
	}
	return s.expectStatusOK(id, op)
}

// Chmod sends SETSTAT(path, attrs{permissions=mode}).
func (s *Session) Chmod(p string, mode uint32) error {
	s.mu.Lock()
	version := s.version
	s.mu.Unlock()

	id := s.allocID()
	w := wire.NewWriter()
	w.PutString(p)
	w.EncodeAttrs(wire.Stat{Flags: wire.AttrPermissions, Permissions: mode}, version)
	if err := s.send(wire.TypeSetstat, id, w.Bytes()); err != nil {
		return err
	}
	return s.expectStatusOK(id, "chmod")
}

// SetTime sends SETSTAT(path, attrs{ac/mod time}).
func (s *Session) SetTime(p string, accessUnix, modifyUnix int64) error {
	s.mu.Lock()
	version := s.version
	s.mu.Unlock()

	var st wire.Stat
	if version < 4 {
		st = wire.Stat{
			Flags:      wire.AttrACModTime,
			AccessTime: unixTime(accessUnix),
			ModifyTime: unixTime(modifyUnix),
		}
	} else {
		st = wire.Stat{
			Flags:      wire.AttrAccessTime | wire.AttrModifyTime,
			AccessTime: unixTime(accessUnix),
			ModifyTime: unixTime(modifyUnix),
		}
	}

	id := s.allocID()
	w := wire.NewWriter()
	w.PutString(p)
	w.EncodeAttrs(st, version)
	if err := s.send(wire.TypeSetstat, id, w.Bytes()); err != nil {
		return err
	}
	return s.expectStatusOK(id, "set_time")
}

// MoveOptions configures the legacy-server retry behavior of Move.
type MoveOptions struct {
	CreateDir bool
	Mode      uint32
}

// Move renames old to new. If the
// server advertised posix-rename, it is used directly. Otherwise a
// RENAME is sent (with OVERWRITE|ATOMIC flags on version > 5). On a
// legacy server (version < 5) a FAILURE reply triggers one retry: if
// opts.CreateDir is set, the destination is removed first and the
// rename retried; a NO_SUCH_FILE reply with a destination containing a
// path directory triggers parent-chain creation (via the same helper
// Cd uses) and one retry. At most one retry per call.
func (s *Session) Move(oldPath, newPath string, opts MoveOptions) error {
	s.mu.Lock()
	version := s.version
	posixRename := false
	if _, ok := s.extensions["posix-rename@openssh.com"]; ok {
		posixRename = true
	}
	s.mu.Unlock()

	if posixRename {
		return s.posixRename(oldPath, newPath)
	}

	err := s.rename(oldPath, newPath, version)
	if err == nil {
		return nil
	}

	rse, ok := errors.Cause(err).(*core.RemoteStatusError)
	if !ok {
		return err
	}

	if version < 5 && rse.Code == core.StatusFailure && opts.CreateDir {
		if rmErr := s.Remove(newPath); rmErr != nil {
			return errors.Wrap(err, "move: legacy overwrite retry failed to remove destination")
		}
		return s.rename(oldPath, newPath, version)
	}

	if rse.Code == core.StatusNoSuchFile {
		dir := path.Dir(newPath)
		if dir != "." && dir != "/" && dir != "" {
			if _, walkErr := s.createPathWalk(dir, opts.Mode); walkErr != nil {
				return errors.Wrap(err, "move: parent chain creation failed")
			}
			return s.rename(oldPath, newPath, version)
		}
	}

	return err
}

func (s *Session) posixRename(oldPath, newPath string) error {
	id := s.allocID()
	w := wire.NewWriter()
	w.PutString("posix-rename@openssh.com")
	w.PutString(oldPath)
	w.PutString(newPath)
	if err := s.send(wire.TypeExtended, id, w.Bytes()); err != nil {
		return err
	}
	return s.expectStatusOK(id, "move")
}

func (s *Session) rename(oldPath, newPath string, version uint32) error {
	id := s.allocID()
	w := wire.NewWriter()
	w.PutString(oldPath)
	w.PutString(newPath)
	if version > 5 {
		w.PutU32(wire.RenameOverwrite | wire.RenameAtomic)
	}
	if err := s.send(wire.TypeRename, id, w.Bytes()); err != nil {
		return err
	}
	return s.expectStatusOK(id, "move")
}

func unixTime(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}
