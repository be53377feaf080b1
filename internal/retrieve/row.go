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

// Package retrieve implements the durable, memory-mapped per-source
// listing store: RetrieveRow/RetrieveList with per-row advisory
// locking so multiple fetch workers can share one source's listing
// safely.
package retrieve

import (
	"encoding/binary"
	"time"
)

// nameCap bounds RetrieveRow.Name so each row has a fixed on-disk
// width; names longer than this are truncated at insert time.
const nameCap = 200

// rowSize is the fixed encoded width of one RetrieveRow: a 2-byte name
// length, nameCap bytes of name, then the fixed-width numeric fields.
const rowSize = 2 + nameCap + 8 /*size*/ + 8 /*modtime*/ + 8 /*prevsize*/ + 4 /*assigned*/ + 1 /*flags*/

const (
	flagGotDate = 1 << iota
	flagRetrieved
	flagInList
)

// RetrieveRow is one remote file in a source's current listing
// snapshot.
type RetrieveRow struct {
	Name      string
	Size      uint64
	ModTime   time.Time
	PrevSize  uint64
	Assigned  uint32 // 0 = unassigned, else worker id + 1
	GotDate   bool
	Retrieved bool
	InList    bool // diff-pruning marker, durable mode only
}

// IsAssigned reports whether some worker currently holds this row.
func (r RetrieveRow) IsAssigned() bool { return r.Assigned != 0 }

func encodeRow(r RetrieveRow, buf []byte) {
	name := r.Name
	if len(name) > nameCap {
		name = name[:nameCap]
	}
	binary.BigEndian.PutUint16(buf[0:2], uint16(len(name)))
	copy(buf[2:2+nameCap], name)
	off := 2 + nameCap
	binary.BigEndian.PutUint64(buf[off:off+8], r.Size)
	off += 8
	binary.BigEndian.PutUint64(buf[off:off+8], uint64(r.ModTime.Unix()))
	off += 8
	binary.BigEndian.PutUint64(buf[off:off+8], r.PrevSize)
	off += 8
	binary.BigEndian.PutUint32(buf[off:off+4], r.Assigned)
	off += 4
	var flags byte
	if r.GotDate {
		flags |= flagGotDate
	}
	if r.Retrieved {
		flags |= flagRetrieved
	}
	if r.InList {
		flags |= flagInList
	}
	buf[off] = flags
}

func decodeRow(buf []byte) RetrieveRow {
	nameLen := binary.BigEndian.Uint16(buf[0:2])
	if int(nameLen) > nameCap {
		nameLen = nameCap
	}
	name := string(buf[2 : 2+nameLen])
	off := 2 + nameCap
	size := binary.BigEndian.Uint64(buf[off : off+8])
	off += 8
	modUnix := binary.BigEndian.Uint64(buf[off : off+8])
	off += 8
	prevSize := binary.BigEndian.Uint64(buf[off : off+8])
	off += 8
	assigned := binary.BigEndian.Uint32(buf[off : off+4])
	off += 4
	flags := buf[off]
	return RetrieveRow{
		Name:      name,
		Size:      size,
		ModTime:   time.Unix(int64(modUnix), 0).UTC(),
		PrevSize:  prevSize,
		Assigned:  assigned,
		GotDate:   flags&flagGotDate != 0,
		Retrieved: flags&flagRetrieved != 0,
		InList:    flags&flagInList != 0,
	}
}
