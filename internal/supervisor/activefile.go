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
	"os"
	"path/filepath"
	"time"

	"fileripper/internal/core"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

const sentinelEOF = 0xFF

// activeFileSize is pidSlots*4 (one per role, plus one extra "slot 0"
// for the supervisor itself) + heartbeat(4) + shutdown flag(1) +
// sentinel(1).
const activeFileSize = (int(roleCount)+1)*4 + 4 + 1 + 1

const (
	afOffPIDs      = 0
	afOffHeartbeat = (int(roleCount) + 1) * 4
	afOffShutdown  = afOffHeartbeat + 4
	afOffSentinel  = afOffShutdown + 1
)

// HeartbeatMap is the fixed-size shared record a sibling process polls
// to distinguish "supervisor alive" from "stale". It lives in the same
// mapped active-file as the PID table, so supervisor and siblings
// share one mapping.
type HeartbeatMap struct {
	af *ActiveFile
}

// ActiveFile is both the PID map and the "supervisor alive" beacon.
type ActiveFile struct {
	f    *os.File
	buf  []byte
	path string
}

// activeFilePath is the single well-known location single-instance
// detection is keyed on.
func activeFilePath(workDir string) string {
	return filepath.Join(workDir, "fifo", "active")
}

// AcquireActiveFile creates and pre-sizes the active-file if absent,
// or, if one exists, checks whether its heartbeat has advanced within
// staleAfter; if so refuse to start.
func AcquireActiveFile(workDir string, staleAfter time.Duration) (*ActiveFile, error) {
	dir := filepath.Join(workDir, "fifo")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "supervisor: active-file dir")
	}
	path := activeFilePath(workDir)

	existed := true
	if _, err := os.Stat(path); os.IsNotExist(err) {
		existed = false
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, errors.Wrap(err, "supervisor: open active-file")
	}

	if err := f.Truncate(int64(activeFileSize)); err != nil {
		f.Close()
		return nil, errors.Wrap(err, "supervisor: truncate active-file")
	}

	buf, err := unix.Mmap(int(f.Fd()), 0, activeFileSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, errors.Wrap(err, "supervisor: mmap active-file")
	}

	af := &ActiveFile{f: f, buf: buf, path: path}

	if existed && buf[afOffSentinel] == sentinelEOF {
		hb1 := af.heartbeat()
		time.Sleep(staleAfter)
		hb2 := af.heartbeat()
		if hb2 != hb1 {
			// Another supervisor owns this active-file and is alive:
			// unmap our view but leave its file on disk untouched.
			af.closeMapping()
			return nil, errors.Wrap(core.ErrAlreadyRunning, "active supervisor heartbeat advancing")
		}
	}

	for i := range buf {
		buf[i] = 0
	}
	buf[afOffSentinel] = sentinelEOF
	return af, nil
}

// PeekActiveFile maps an existing active-file read-only, for sibling
// tools that only want to inspect the heartbeat and pid table without
// taking ownership the way AcquireActiveFile does.
func PeekActiveFile(workDir string) (*ActiveFile, error) {
	path := activeFilePath(workDir)
	f, err := os.OpenFile(path, os.O_RDONLY, 0o644)
	if err != nil {
		return nil, errors.Wrap(err, "supervisor: open active-file for peek")
	}
	buf, err := unix.Mmap(int(f.Fd()), 0, activeFileSize, unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, errors.Wrap(err, "supervisor: mmap active-file for peek")
	}
	return &ActiveFile{f: f, buf: buf, path: path}, nil
}

func (af *ActiveFile) heartbeat() uint32 {
	return binary.BigEndian.Uint32(af.buf[afOffHeartbeat : afOffHeartbeat+4])
}

// IncrementHeartbeat advances the monotonic counter by one.
func (af *ActiveFile) IncrementHeartbeat() {
	binary.BigEndian.PutUint32(af.buf[afOffHeartbeat:afOffHeartbeat+4], af.heartbeat()+1)
}

// Heartbeat exposes the counter read-only, for sibling tools.
func (af *ActiveFile) Heartbeat() uint32 { return af.heartbeat() }

// SetPID records role's child process id (0 = stopped) in its slot.
func (af *ActiveFile) SetPID(r Role, pid int) {
	off := afOffPIDs + (int(r)+1)*4
	binary.BigEndian.PutUint32(af.buf[off:off+4], uint32(pid))
}

// PID returns role's currently recorded child process id.
func (af *ActiveFile) PID(r Role) int {
	off := afOffPIDs + (int(r)+1)*4
	return int(binary.BigEndian.Uint32(af.buf[off : off+4]))
}

// RequestShutdown sets the shared shutdown flag byte a sibling (or the
// supervisor's own signal handler) uses to request an orderly stop.
func (af *ActiveFile) RequestShutdown() {
	af.buf[afOffShutdown] = 1
}

// ShutdownRequested reports the shared shutdown flag.
func (af *ActiveFile) ShutdownRequested() bool {
	return af.buf[afOffShutdown] != 0
}

// Heartbeats wraps af as a HeartbeatMap view for sibling tools that
// only need the liveness contract.
func (af *ActiveFile) Heartbeats() *HeartbeatMap { return &HeartbeatMap{af: af} }

// Advancing reports whether the heartbeat counter moves within
// staleAfter.
func (hb *HeartbeatMap) Advancing(staleAfter time.Duration) bool {
	before := hb.af.heartbeat()
	time.Sleep(staleAfter)
	return hb.af.heartbeat() != before
}

// Sync flushes the mapping to disk.
func (af *ActiveFile) Sync() error {
	if err := unix.Msync(af.buf, unix.MS_SYNC); err != nil {
		return errors.Wrap(err, "supervisor: msync active-file")
	}
	return nil
}

// ClosePeek unmaps and closes a read-only mapping obtained from
// PeekActiveFile, without unlinking the file — callers that never took
// ownership must never call Close, which unlinks.
func (af *ActiveFile) ClosePeek() error {
	return af.closeMapping()
}

// closeMapping unmaps and closes the file descriptor without
// unlinking, for the case where this process never actually owns the
// active-file (another supervisor is alive).
func (af *ActiveFile) closeMapping() error {
	var err error
	if af.buf != nil {
		err = unix.Munmap(af.buf)
		af.buf = nil
	}
	if closeErr := af.f.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	return err
}

// Close unlinks the active-file and unmaps it. Only call this
// once this process has established ownership of the active-file.
func (af *ActiveFile) Close() error {
	err := af.closeMapping()
	_ = os.Remove(af.path)
	if err != nil {
		return errors.Wrap(err, "supervisor: close active-file")
	}
	return nil
}
