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

package retrieve

import (
	"encoding/binary"
	"os"
	"path/filepath"

	"fileripper/internal/core"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// headerSize is the fixed prefix holding the row count; 8 bytes keeps
// the first row 8-byte aligned.
const headerSize = 8

// growStep is the number of rows the mapping grows by whenever it
// runs out of room.
const growStep = 256

// Mode selects RetrieveList's backing storage.
type Mode int

const (
	// Durable backs the list with a memory-mapped file under the work
	// directory, keyed by source alias, preserved across restarts.
	Durable Mode = iota
	// Transient backs the list with private memory, reset to empty on
	// every attach.
	Transient
)

// RetrieveList is the header + row array of a source's listing store,
// mapped either privately (Transient) or shared (Durable).
type RetrieveList struct {
	mode Mode
	path string

	f   *os.File // nil for Transient
	buf []byte   // mmap'd (Durable) or plain heap slice (Transient)

	capacity int // rows currently allocated
}

// Attach opens or creates the listing for source under workDir.
// Transient mode always starts empty; Durable mode preserves whatever
// was previously persisted.
func Attach(workDir, source string, transient bool) (*RetrieveList, error) {
	if transient {
		return &RetrieveList{mode: Transient, buf: make([]byte, headerSize)}, nil
	}

	path := filepath.Join(workDir, "files", "time", source+".list")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, "retrieve: attach")
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, errors.Wrap(err, "retrieve: attach")
	}

	rl := &RetrieveList{mode: Durable, path: path, f: f}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.Wrap(err, "retrieve: stat")
	}
	if info.Size() < headerSize+growStep*rowSize {
		if err := rl.growFile(growStep); err != nil {
			f.Close()
			return nil, err
		}
	} else if err := rl.mapExisting(int(info.Size())); err != nil {
		f.Close()
		return nil, err
	}
	return rl, nil
}

func (rl *RetrieveList) mapExisting(size int) error {
	buf, err := unix.Mmap(int(rl.f.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return errors.Wrap(err, "retrieve: mmap")
	}
	rl.buf = buf
	rl.capacity = (size - headerSize) / rowSize
	return nil
}

// growFile extends the backing file by extraRows and remaps it. The
// row count header is written last so concurrent readers never
// observe a size larger than
// the data actually present.
func (rl *RetrieveList) growFile(extraRows int) error {
	oldCount := rl.Count()
	newCapacity := rl.capacity + extraRows
	newSize := int64(headerSize + newCapacity*rowSize)

	if rl.buf != nil {
		if err := unix.Munmap(rl.buf); err != nil {
			return errors.Wrap(err, "retrieve: munmap before grow")
		}
		rl.buf = nil
	}
	if err := rl.f.Truncate(newSize); err != nil {
		return errors.Wrap(err, "retrieve: truncate")
	}
	if err := rl.mapExisting(int(newSize)); err != nil {
		return err
	}
	rl.setCount(oldCount)
	return nil
}

// Count returns the number of live rows.
func (rl *RetrieveList) Count() int {
	if len(rl.buf) < headerSize {
		return 0
	}
	return int(binary.BigEndian.Uint32(rl.buf[0:4]))
}

func (rl *RetrieveList) setCount(n int) {
	binary.BigEndian.PutUint32(rl.buf[0:4], uint32(n))
}

// Get decodes row i.
func (rl *RetrieveList) Get(i int) RetrieveRow {
	off := headerSize + i*rowSize
	return decodeRow(rl.buf[off : off+rowSize])
}

// Set encodes row i in place.
func (rl *RetrieveList) Set(i int, r RetrieveRow) {
	off := headerSize + i*rowSize
	encodeRow(r, rl.buf[off:off+rowSize])
}

// Append adds a new row, growing the mapping in fixed steps if the
// current capacity is exhausted, and returns its index.
func (rl *RetrieveList) Append(r RetrieveRow) (int, error) {
	count := rl.Count()
	if count >= rl.capacity {
		if rl.mode == Transient {
			rl.growTransient(growStep)
		} else if err := rl.growFile(growStep); err != nil {
			return 0, err
		}
	}
	rl.ensureRowSpace(count)
	rl.Set(count, r)
	rl.setCount(count + 1)
	return count, nil
}

func (rl *RetrieveList) growTransient(extraRows int) {
	rl.capacity += extraRows
	rl.ensureRowSpace(rl.capacity - 1)
}

func (rl *RetrieveList) ensureRowSpace(lastIndex int) {
	need := headerSize + (lastIndex+1)*rowSize
	if len(rl.buf) < need {
		grown := make([]byte, need)
		copy(grown, rl.buf)
		rl.buf = grown
	}
}

// PruneNotInList compacts out every row whose InList marker is false,
// after a fresh diff pass has run.
func (rl *RetrieveList) PruneNotInList() error {
	if rl.mode != Durable {
		return errors.New("retrieve: prune_not_in_list is durable-only")
	}
	count := rl.Count()
	kept := 0
	for i := 0; i < count; i++ {
		r := rl.Get(i)
		if !r.InList {
			continue
		}
		if kept != i {
			rl.Set(kept, r)
		}
		kept++
	}
	rl.setCount(kept)
	return nil
}

// Sync flushes the mapping to disk. No-op for Transient lists.
func (rl *RetrieveList) Sync() error {
	if rl.mode != Durable {
		return nil
	}
	if err := unix.Msync(rl.buf, unix.MS_SYNC); err != nil {
		return errors.Wrap(err, "retrieve: msync")
	}
	return nil
}

// Close unmaps and closes the backing file, if any.
func (rl *RetrieveList) Close() error {
	if rl.mode != Durable {
		return nil
	}
	var err error
	if rl.buf != nil {
		err = unix.Munmap(rl.buf)
		rl.buf = nil
	}
	if closeErr := rl.f.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	if err != nil {
		return errors.Wrap(err, "retrieve: close")
	}
	return nil
}

// assertDurable is used by lock.go, which only makes sense against a
// real file descriptor.
func (rl *RetrieveList) assertDurable() error {
	if rl.mode != Durable {
		return errors.Wrap(core.ErrInvalidState, "retrieve: row locks require durable mode")
	}
	return nil
}
