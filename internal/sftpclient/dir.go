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
	"fileripper/internal/core"
	"fileripper/internal/wire"

	"github.com/pkg/errors"
)

// OpenDir sends OPENDIR(path) and stores the handle for subsequent
// ReadDir/CloseDir calls. Only one directory may be open per session at
// a time.
func (s *Session) OpenDir(p string) error {
	id := s.allocID()
	w := wire.NewWriter()
	w.PutString(p)
	if err := s.send(wire.TypeOpendir, id, w.Bytes()); err != nil {
		return err
	}
	f, err := s.rt.GetReply(id)
	if err != nil {
		return err
	}
	if f.Type == wire.TypeStatus {
		return errors.Wrap(statusFromFrame(f), "opendir")
	}
	if f.Type != wire.TypeHandle {
		return errors.Wrap(core.ErrUnexpectedFrameType, "opendir")
	}
	r := wire.NewReader(f.Payload, s.sessionMax)
	handle, err := r.GetString()
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.openDir = &dirHandle{handle: handle}
	s.mu.Unlock()
	return nil
}

// fetchBatch sends one READDIR and decodes its NAME frame into the
// handle's entry cache, or marks the handle EOF on a STATUS=EOF reply
// .
func (s *Session) fetchBatch() error {
	s.mu.Lock()
	version := s.version
	dh := s.openDir
	s.mu.Unlock()
	if dh == nil {
		return errors.New("readdir: no directory open")
	}

	id := s.allocID()
	w := wire.NewWriter()
	w.PutString(dh.handle)
	if err := s.send(wire.TypeReaddir, id, w.Bytes()); err != nil {
		return err
	}
	f, err := s.rt.GetReply(id)
	if err != nil {
		return err
	}
	if f.Type == wire.TypeStatus {
		if statusErr := statusFromFrame(f); statusErr != nil {
			if isEOFStatus(statusErr) {
				s.mu.Lock()
				dh.eof = true
				s.mu.Unlock()
				return nil
			}
			return errors.Wrap(statusErr, "readdir")
		}
		return nil
	}
	if f.Type != wire.TypeName {
		return errors.Wrap(core.ErrUnexpectedFrameType, "readdir")
	}

	r := wire.NewReader(f.Payload, s.sessionMax)
	count, err := r.GetU32()
	if err != nil {
		return err
	}

	entries := make([]DirEntry, 0, count)
	for i := uint32(0); i < count; i++ {
		name, err := r.GetString()
		if err != nil {
			return err
		}
		if version < 4 {
			// Long-form listing string, cosmetic only : decoded and discarded.
			if _, err := r.GetString(); err != nil {
				return err
			}
		}
		st, err := wire.DecodeAttrs(r, version)
		if err != nil {
			return err
		}
		entries = append(entries, DirEntry{Name: name, Stat: st})
	}

	s.mu.Lock()
	dh.entries = append(dh.entries, entries...)
	s.mu.Unlock()
	return nil
}

// ReadDir returns the next cached directory entry, fetching a new
// READDIR batch when the cache is empty. ok is false once the listing
// is exhausted.
func (s *Session) ReadDir() (entry DirEntry, ok bool, err error) {
	for {
		s.mu.Lock()
		dh := s.openDir
		if dh == nil {
			s.mu.Unlock()
			return DirEntry{}, false, errors.New("readdir: no directory open")
		}
		if dh.pos < len(dh.entries) {
			e := dh.entries[dh.pos]
			dh.pos++
			if dh.pos == len(dh.entries) {
				dh.entries = nil
				dh.pos = 0
			}
			s.mu.Unlock()
			return e, true, nil
		}
		if dh.eof {
			s.mu.Unlock()
			return DirEntry{}, false, nil
		}
		s.mu.Unlock()

		if err := s.fetchBatch(); err != nil {
			return DirEntry{}, false, err
		}
	}
}

// CloseDir sends CLOSE(handle) and frees the directory handle slot
// regardless of the reply.
func (s *Session) CloseDir() error {
	s.mu.Lock()
	dh := s.openDir
	s.mu.Unlock()
	if dh == nil {
		return nil
	}

	id := s.allocID()
	w := wire.NewWriter()
	w.PutString(dh.handle)
	closeErr := s.send(wire.TypeClose, id, w.Bytes())
	if closeErr == nil {
		closeErr = s.expectStatusOK(id, "closedir")
	}

	s.mu.Lock()
	s.openDir = nil
	s.mu.Unlock()
	return closeErr
}
