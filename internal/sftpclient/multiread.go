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

// pendingReadWindow is the ring of outstanding read request ids
// consumed strictly in dispatch order : unlike writes, read replies must arrive in the order
// they were requested, or the session downgrades to sequential reads.
type pendingReadWindow struct {
	ids []uint32

	lowWater   int
	currentMax int
	hardCap    int
	growStep   int
	readsTodo  int // remaining reads still to be dispatched
}

// MultiReadOptions configures a pipelined multi-read pass.
type MultiReadOptions struct {
	TotalBytes uint64
	BlockSize  uint32
	InitialMax int
	HardCap    int
	GrowStep   int
	LowWater   int
}

// MultiRead drives one pipelined download of TotalBytes from the
// currently open file, growing its pending-read cap on successful
// retirement up to HardCap, and downgrading to sequential reads on any
// anomaly.
type MultiRead struct {
	s    *Session
	opts MultiReadOptions
	pend *pendingReadWindow

	startOffset uint64
}

// NewMultiRead computes readsTodo from TotalBytes/BlockSize and
// prepares the pending-read ring.
func (s *Session) NewMultiRead(opts MultiReadOptions) *MultiRead {
	if opts.InitialMax <= 0 {
		opts.InitialMax = 4
	}
	if opts.HardCap <= 0 {
		opts.HardCap = 64
	}
	if opts.GrowStep <= 0 {
		opts.GrowStep = 4
	}
	if opts.LowWater <= 0 {
		opts.LowWater = opts.InitialMax
	}
	readsTodo := int((opts.TotalBytes + uint64(opts.BlockSize) - 1) / uint64(opts.BlockSize))

	s.mu.Lock()
	offset := uint64(0)
	if s.openFile != nil {
		offset = s.openFile.offset
	}
	s.mu.Unlock()

	return &MultiRead{
		s:    s,
		opts: opts,
		pend: &pendingReadWindow{
			currentMax: opts.InitialMax,
			hardCap:    opts.HardCap,
			growStep:   opts.GrowStep,
			lowWater:   opts.LowWater,
			readsTodo:  readsTodo,
		},
		startOffset: offset,
	}
}

// Dispatch issues more READ requests as long as the queue depth is
// below both the low-water mark and the current cap, and reads remain
// to be dispatched.
func (mr *MultiRead) Dispatch() error {
	for len(mr.pend.ids) < mr.pend.lowWater && len(mr.pend.ids) < mr.pend.currentMax && mr.pend.readsTodo > 0 {
		s := mr.s
		s.mu.Lock()
		fh := s.openFile
		s.mu.Unlock()
		if fh == nil {
			return errors.New("multi_read dispatch: no file open")
		}

		id := s.allocID()
		w := wire.NewWriter()
		w.PutString(fh.handle)
		w.PutU64(fh.offset)
		w.PutU32(mr.opts.BlockSize)
		if err := s.send(wire.TypeRead, id, w.Bytes()); err != nil {
			return err
		}
		fh.offset += uint64(mr.opts.BlockSize)

		mr.pend.ids = append(mr.pend.ids, id)
		mr.pend.readsTodo--
	}
	return nil
}

// CatchResult is what Catch returns for the next chunk in ring order.
type CatchResult struct {
	Data          []byte
	EOF           bool
	DoSingleReads bool
}

// Catch reads the next reply in ring order. On a short or out-of-order
// chunk that violates the monotonic offset assumption, it rolls back
// file_offset by exactly one block and signals DoSingleReads so the
// caller downgrades to sequential Read.
func (mr *MultiRead) Catch() (CatchResult, error) {
	if len(mr.pend.ids) == 0 {
		return CatchResult{EOF: true}, nil
	}
	id := mr.pend.ids[0]
	s := mr.s

	f, err := s.rt.GetReply(id)
	if err != nil {
		return CatchResult{}, err
	}
	mr.pend.ids = mr.pend.ids[1:]

	if f.Type == wire.TypeStatus {
		if statusErr := statusFromFrame(f); statusErr != nil {
			if isEOFStatus(statusErr) {
				mr.pend.readsTodo = 0
				return CatchResult{EOF: true}, nil
			}
			return CatchResult{}, statusErr
		}
		return CatchResult{}, nil
	}
	if f.Type != wire.TypeData {
		return mr.downgrade(), nil
	}

	r := wire.NewReader(f.Payload, s.sessionMax)
	data, err := r.GetStr()
	if err != nil {
		return CatchResult{}, err
	}

	isFinal := mr.pend.readsTodo == 0 && len(mr.pend.ids) == 0
	if uint32(len(data)) != mr.opts.BlockSize && !isFinal {
		return mr.downgrade(), nil
	}

	// A full, in-order chunk: grow the pending cap by one step, up to
	// the hard cap, to keep the pipeline filling.
	if mr.pend.currentMax < mr.pend.hardCap {
		mr.pend.currentMax += mr.pend.growStep
		if mr.pend.currentMax > mr.pend.hardCap {
			mr.pend.currentMax = mr.pend.hardCap
		}
	}

	return CatchResult{Data: data}, nil
}

// downgrade rolls file_offset back by exactly one block size and
// signals the caller to fall back to sequential reads.
func (mr *MultiRead) downgrade() CatchResult {
	s := mr.s
	s.mu.Lock()
	if s.openFile != nil && s.openFile.offset >= uint64(mr.opts.BlockSize) {
		s.openFile.offset -= uint64(mr.opts.BlockSize)
	}
	s.mu.Unlock()
	mr.pend.readsTodo = 0
	mr.pend.ids = nil
	return CatchResult{DoSingleReads: true}
}

// Discard drains all queued reads unconditionally, rolling back the
// offset by one block per still-outstanding read, for cleanup after
// an error. The drain runs synchronously in the calling goroutine,
// bounded by the router's transport deadline per reply: this session's
// transport is owned exclusively by whichever goroutine holds it, so
// nothing else may read frames off it concurrently. If a reply never
// arrives (dead or reset peer) GetReply returns once its deadline
// elapses and the remaining ids are simply left undrained — the
// offset rollback below still accounts for every id that was
// outstanding, read or not.
func (mr *MultiRead) Discard() {
	s := mr.s
	outstanding := len(mr.pend.ids)
	for _, id := range mr.pend.ids {
		if _, err := s.rt.GetReply(id); err != nil {
			// Transport is presumed dead; further GetReply calls would
			// just block out to the same deadline for no benefit.
			break
		}
	}
	s.mu.Lock()
	if s.openFile != nil {
		rollback := uint64(outstanding) * uint64(mr.opts.BlockSize)
		if s.openFile.offset >= rollback {
			s.openFile.offset -= rollback
		}
	}
	s.mu.Unlock()
	mr.pend.ids = nil
	mr.pend.readsTodo = 0
}

func isEOFStatus(err error) bool {
	rse, ok := err.(*core.RemoteStatusError)
	return ok && rse.Code == core.StatusEOF
}
