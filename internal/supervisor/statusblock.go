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

package supervisor

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// historyBuckets is the rolling log-history ring: one byte per hour of
// the day.
const historyBuckets = 24

const hostnameCap = 64

// statusBlockSize is the fixed on-disk/mmap layout width: one status
// byte per role, four u32 counters, the history ring, a length-prefixed
// hostname, a u64 start time, and a u32 uid.
const statusBlockSize = int(roleCount) + 4*4 + historyBuckets + 2 + hostnameCap + 8 + 4

const (
	offRoles       = 0
	offForks       = offRoles + int(roleCount)
	offBurst       = offForks + 4
	offScans       = offBurst + 4
	offMaxQueue    = offScans + 4
	offHistory     = offMaxQueue + 4
	offHostnameLen = offHistory + historyBuckets
	offHostname    = offHostnameLen + 2
	offStartTime   = offHostname + hostnameCap
	offUserID      = offStartTime + 8
)

// StatusBlock is the single fixed-size record memory-mapped by the
// supervisor and by sibling tools. Every mapping, a sibling's included,
// is made read-write by OpenStatusBlock.
type StatusBlock struct {
	f   *os.File
	buf []byte
}

// statusFileName embeds the build's struct size in hex so an older
// binary never maps its status file against a newer layout.
func statusFileName() string {
	return fmt.Sprintf("status.%x", statusBlockSize)
}

// OpenStatusBlock maps the versioned status file under workDir,
// creating and zero-initializing it if absent or if an existing file's
// size doesn't match this build's layout — any stale differently-sized
// file is removed first.
func OpenStatusBlock(workDir string) (*StatusBlock, error) {
	dir := filepath.Join(workDir, "fifo")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "supervisor: status dir")
	}
	if err := removeStalePriorVersions(dir); err != nil {
		return nil, err
	}

	path := filepath.Join(dir, statusFileName())
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, errors.Wrap(err, "supervisor: open status file")
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.Wrap(err, "supervisor: stat status file")
	}
	fresh := info.Size() != int64(statusBlockSize)
	if fresh {
		if err := f.Truncate(int64(statusBlockSize)); err != nil {
			f.Close()
			return nil, errors.Wrap(err, "supervisor: truncate status file")
		}
	}

	buf, err := unix.Mmap(int(f.Fd()), 0, statusBlockSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, errors.Wrap(err, "supervisor: mmap status file")
	}

	sb := &StatusBlock{f: f, buf: buf}
	if fresh {
		sb.zeroInit()
	}
	return sb, nil
}

// removeStalePriorVersions deletes any status.<hex> file in dir whose
// hex size tag doesn't match the current build's layout.
func removeStalePriorVersions(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrap(err, "supervisor: scan status dir")
	}
	current := statusFileName()
	for _, e := range entries {
		name := e.Name()
		if len(name) > 7 && name[:7] == "status." && name != current {
			_ = os.Remove(filepath.Join(dir, name))
		}
	}
	return nil
}

func (sb *StatusBlock) zeroInit() {
	for i := range sb.buf {
		sb.buf[i] = 0
	}
	for r := Role(0); r < roleCount; r++ {
		sb.buf[offRoles+int(r)] = byte(StatusOff)
	}
}

// Status returns role's current status byte.
func (sb *StatusBlock) Status(r Role) StatusByte {
	return StatusByte(sb.buf[offRoles+int(r)])
}

// SetStatus sets role's status byte; a single aligned byte write is
// torn-read-safe for concurrent sibling readers.
func (sb *StatusBlock) SetStatus(r Role, s StatusByte) {
	sb.buf[offRoles+int(r)] = byte(s)
}

func (sb *StatusBlock) u32(off int) uint32       { return binary.BigEndian.Uint32(sb.buf[off : off+4]) }
func (sb *StatusBlock) setU32(off int, v uint32) { binary.BigEndian.PutUint32(sb.buf[off:off+4], v) }

func (sb *StatusBlock) Forks() uint32            { return sb.u32(offForks) }
func (sb *StatusBlock) IncrementForks()          { sb.setU32(offForks, sb.Forks()+1) }
func (sb *StatusBlock) BurstTransitions() uint32 { return sb.u32(offBurst) }
func (sb *StatusBlock) IncrementBurst()          { sb.setU32(offBurst, sb.BurstTransitions()+1) }
func (sb *StatusBlock) DirectoryScans() uint32   { return sb.u32(offScans) }
func (sb *StatusBlock) IncrementScans()          { sb.setU32(offScans, sb.DirectoryScans()+1) }
func (sb *StatusBlock) MaxQueueLength() uint32   { return sb.u32(offMaxQueue) }

// ObserveQueueLength updates MaxQueueLength if n is a new high-water
// mark.
func (sb *StatusBlock) ObserveQueueLength(n uint32) {
	if n > sb.MaxQueueLength() {
		sb.setU32(offMaxQueue, n)
	}
}

// ResetDailyCounters zeroes the four daily rollup counters.
func (sb *StatusBlock) ResetDailyCounters() {
	sb.setU32(offForks, 0)
	sb.setU32(offBurst, 0)
	sb.setU32(offScans, 0)
	sb.setU32(offMaxQueue, 0)
}

// RecordHistoryBucket stamps bucket (0..23, typically the hour of day)
// with level in the rolling log-history ring.
func (sb *StatusBlock) RecordHistoryBucket(bucket int, level byte) {
	if bucket < 0 || bucket >= historyBuckets {
		return
	}
	sb.buf[offHistory+bucket] = level
}

// Hostname returns the recorded host name, or "" if unset.
func (sb *StatusBlock) Hostname() string {
	n := binary.BigEndian.Uint16(sb.buf[offHostnameLen : offHostnameLen+2])
	if int(n) > hostnameCap {
		n = hostnameCap
	}
	return string(sb.buf[offHostname : offHostname+int(n)])
}

// SetHostname records the host name, or clears it when name == "" —
// the external signal siblings use to tell the system is down.
func (sb *StatusBlock) SetHostname(name string) {
	if len(name) > hostnameCap {
		name = name[:hostnameCap]
	}
	binary.BigEndian.PutUint16(sb.buf[offHostnameLen:offHostnameLen+2], uint16(len(name)))
	copy(sb.buf[offHostname:offHostname+hostnameCap], make([]byte, hostnameCap))
	copy(sb.buf[offHostname:offHostname+len(name)], name)
}

func (sb *StatusBlock) StartTimeUnix() int64 {
	return int64(binary.BigEndian.Uint64(sb.buf[offStartTime : offStartTime+8]))
}

func (sb *StatusBlock) SetStartTimeUnix(t int64) {
	binary.BigEndian.PutUint64(sb.buf[offStartTime:offStartTime+8], uint64(t))
}

func (sb *StatusBlock) UserID() uint32      { return sb.u32(offUserID) }
func (sb *StatusBlock) SetUserID(id uint32) { sb.setU32(offUserID, id) }

// Sync flushes the mapping to disk.
func (sb *StatusBlock) Sync() error {
	if err := unix.Msync(sb.buf, unix.MS_SYNC); err != nil {
		return errors.Wrap(err, "supervisor: msync status block")
	}
	return nil
}

// Close unmaps and closes the status file.
func (sb *StatusBlock) Close() error {
	if err := unix.Munmap(sb.buf); err != nil {
		return errors.Wrap(err, "supervisor: munmap status block")
	}
	return sb.f.Close()
}
