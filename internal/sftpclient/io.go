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

// pendingWriteWindow is the bounded ring of outstanding write request
// ids. Acks are credited in
// arrival order but the ring itself is unordered: any arriving id
// cancels the matching slot regardless of position.
type pendingWriteWindow struct {
	ids []uint32
	max int
}

func newPendingWriteWindow(max int) *pendingWriteWindow {
	return &pendingWriteWindow{max: max}
}

func (p *pendingWriteWindow) hasRoom() bool { return len(p.ids) < p.max }

func (p *pendingWriteWindow) add(id uint32) { p.ids = append(p.ids, id) }

func (p *pendingWriteWindow) remove(id uint32) bool {
	for i, v := range p.ids {
		if v == id {
			p.ids = append(p.ids[:i], p.ids[i+1:]...)
			return true
		}
	}
	return false
}

func (p *pendingWriteWindow) count() int { return len(p.ids) }

// OpenMode selects read or write semantics for OpenFile.
type OpenMode int

const (
	OpenForRead OpenMode = iota
	OpenForWrite
)

// OpenFileOptions configures OpenFile.
type OpenFileOptions struct {
	Mode             OpenMode
	Offset           uint64
	MaxPendingWrites int // configured cap
	BufferCapacity   int
	WriteBlockSize   int
}

// OpenFile sends OPEN with mode-appropriate flags and initializes
// per-handle pipeline state on success.
func (s *Session) OpenFile(path string, opts OpenFileOptions) error {
	s.mu.Lock()
	version := s.version
	s.mu.Unlock()

	var flags uint32
	if opts.Mode == OpenForWrite {
		if opts.Offset == 0 {
			flags = wire.OpenFlagWrite | wire.OpenFlagCreat | wire.OpenFlagTrunc
		} else {
			flags = wire.OpenFlagWrite | wire.OpenFlagCreat
			if version > 4 {
				flags |= wire.OpenFlagAppend
			}
		}
	} else {
		flags = wire.OpenFlagRead
	}

	id := s.allocID()
	w := wire.NewWriter()
	w.PutString(path)
	w.PutU32(flags)
	w.EncodeAttrs(wire.Stat{}, version)
	if err := s.send(wire.TypeOpen, id, w.Bytes()); err != nil {
		return err
	}
	f, err := s.rt.GetReply(id)
	if err != nil {
		return err
	}
	if f.Type == wire.TypeStatus {
		return errors.Wrap(statusFromFrame(f), "open_file")
	}
	if f.Type != wire.TypeHandle {
		return errors.Wrap(core.ErrUnexpectedFrameType, "open_file")
	}
	r := wire.NewReader(f.Payload, s.sessionMax)
	handle, err := r.GetString()
	if err != nil {
		return err
	}

	maxPending := opts.MaxPendingWrites
	if opts.WriteBlockSize > 0 && opts.BufferCapacity > 0 {
		byBuffer := opts.BufferCapacity / opts.WriteBlockSize
		if byBuffer < maxPending {
			maxPending = byBuffer
		}
	}
	if maxPending <= 0 {
		maxPending = 1
	}

	fh := &fileHandle{handle: handle, offset: opts.Offset}
	if opts.Mode == OpenForWrite {
		fh.pendingWrite = newPendingWriteWindow(maxPending)
	}

	s.mu.Lock()
	s.openFile = fh
	s.mu.Unlock()
	return nil
}

// Write sends WRITE(handle, offset, block). If the pending window has
// room, it records the request id and advances the offset
// optimistically without waiting for the ack. Otherwise it drains with
// GetWriteReply until room frees up. Any non-OK status seen during a
// drain aborts the transfer.
func (s *Session) Write(block []byte) error {
	s.mu.Lock()
	fh := s.openFile
	s.mu.Unlock()
	if fh == nil || fh.pendingWrite == nil {
		return errors.New("write: no file open for writing")
	}
	if fh.writeErr != nil {
		return fh.writeErr
	}

	id := s.allocID()
	w := wire.NewWriter()
	w.PutString(fh.handle)
	w.PutU64(fh.offset)
	w.PutStr(block)

	if !fh.pendingWrite.hasRoom() {
		if err := s.drainOneWriteAck(fh); err != nil {
			return err
		}
	}

	if err := s.send(wire.TypeWrite, id, w.Bytes()); err != nil {
		return err
	}
	fh.pendingWrite.add(id)
	fh.offset += uint64(len(block))
	return nil
}

// drainOneWriteAck waits for at least one outstanding write id to be
// credited, failing fast on any non-OK status.
func (s *Session) drainOneWriteAck(fh *fileHandle) error {
	if fh.pendingWrite.count() == 0 {
		return nil
	}
	target := fh.pendingWrite.ids[0]
	_, err := s.rt.GetWriteReply(target, func(id uint32, f wire.Frame) {
		s.creditWrite(fh, id, f)
	}, func() bool { return fh.pendingWrite.count() > 0 })
	if err != nil {
		return err
	}
	return fh.writeErr
}

// creditWrite applies one write-ack frame to the pending window. A
// non-OK status is fatal to the transfer: the first one seen is
// latched on fh.writeErr so every later Write/Flush/CloseFile call on
// this handle returns it, instead of the id silently vanishing from
// the window with the rejection unreported.
func (s *Session) creditWrite(fh *fileHandle, id uint32, f wire.Frame) {
	if f.Type == wire.TypeStatus {
		if err := statusFromFrame(f); err != nil && fh.writeErr == nil {
			fh.writeErr = errors.Wrap(err, "write")
		}
	}
	fh.pendingWrite.remove(id)
}

// Flush drains all outstanding write acks, failing on any non-OK
// reply.
func (s *Session) Flush() error {
	s.mu.Lock()
	fh := s.openFile
	s.mu.Unlock()
	if fh == nil || fh.pendingWrite == nil {
		return nil
	}
	if fh.writeErr != nil {
		return fh.writeErr
	}
	for fh.pendingWrite.count() > 0 {
		target := fh.pendingWrite.ids[0]
		f, err := s.rt.GetReply(target)
		if err != nil {
			return err
		}
		if f.Type != wire.TypeStatus {
			return errors.Wrap(core.ErrUnexpectedFrameType, "flush")
		}
		if err := statusFromFrame(f); err != nil {
			fh.pendingWrite.remove(target)
			fh.writeErr = errors.Wrap(err, "write")
			return errors.Wrap(err, "flush")
		}
		fh.pendingWrite.remove(target)
	}
	return nil
}

// ReadResult distinguishes a normal data return from the benign EOF
// sentinel.
type ReadResult struct {
	Data []byte
	EOF  bool
}

// Read sends READ(handle, offset, len) and advances the offset by the
// bytes returned. A data frame whose length differs from the request
// (and isn't the final chunk) triggers a fallback signal the caller
// should interpret as "downgrade to single-stream reads" upstream in
// the pipelined engine; Read itself just reports what it got.
func (s *Session) Read(length uint32) (ReadResult, error) {
	s.mu.Lock()
	fh := s.openFile
	s.mu.Unlock()
	if fh == nil {
		return ReadResult{}, errors.New("read: no file open")
	}

	id := s.allocID()
	w := wire.NewWriter()
	w.PutString(fh.handle)
	w.PutU64(fh.offset)
	w.PutU32(length)
	if err := s.send(wire.TypeRead, id, w.Bytes()); err != nil {
		return ReadResult{}, err
	}
	f, err := s.rt.GetReply(id)
	if err != nil {
		return ReadResult{}, err
	}
	if f.Type == wire.TypeStatus {
		err := statusFromFrame(f)
		if rse, ok := err.(*core.RemoteStatusError); ok && rse.Code == core.StatusEOF {
			return ReadResult{EOF: true}, nil
		}
		return ReadResult{}, errors.Wrap(err, "read")
	}
	if f.Type != wire.TypeData {
		return ReadResult{}, errors.Wrap(core.ErrUnexpectedFrameType, "read")
	}
	r := wire.NewReader(f.Payload, s.sessionMax)
	data, err := r.GetStr()
	if err != nil {
		return ReadResult{}, err
	}
	fh.offset += uint64(len(data))
	return ReadResult{Data: data}, nil
}

// CloseFile flushes any pending writes, sends CLOSE, and frees the
// handle slot. Close-time errors are tolerated: logged by the caller,
// but the slot is always freed.
func (s *Session) CloseFile() error {
	s.mu.Lock()
	fh := s.openFile
	s.mu.Unlock()
	if fh == nil {
		return nil
	}

	flushErr := s.Flush()

	id := s.allocID()
	w := wire.NewWriter()
	w.PutString(fh.handle)
	closeErr := s.send(wire.TypeClose, id, w.Bytes())
	if closeErr == nil {
		closeErr = s.expectStatusOK(id, "close_file")
	}

	s.mu.Lock()
	s.openFile = nil
	s.mu.Unlock()

	if flushErr != nil {
		return flushErr
	}
	return closeErr
}

// CurrentOffset returns the open file's current offset, for callers
// that need to observe rollback after a multi-read downgrade.
func (s *Session) CurrentOffset() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.openFile == nil {
		return 0
	}
	return s.openFile.offset
}
