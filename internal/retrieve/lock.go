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
	"fileripper/internal/core"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// procGateOffset is a byte-range lock region, separate from any row,
// used by the process-level gate. It is byte 0, below rowLockBase, so
// it never overlaps a row lock.
const procGateOffset = 0

// rowLockBase is where per-row byte-range locks begin; kept apart from
// procGateOffset so the two lock kinds never collide.
const rowLockBase = 4096

// LockRetrProc takes the exclusive process-level gate used before a
// transient list reset, preventing concurrent helpers from racing a
// truncation.
func (rl *RetrieveList) LockRetrProc() error {
	if err := rl.assertDurable(); err != nil {
		return err
	}
	return rl.flock(procGateOffset, 1, unix.F_WRLCK, unix.F_SETLKW)
}

// UnlockRetrProc releases the process-level gate.
func (rl *RetrieveList) UnlockRetrProc() error {
	if err := rl.assertDurable(); err != nil {
		return err
	}
	return rl.flock(procGateOffset, 1, unix.F_UNLCK, unix.F_SETLK)
}

// LockRow blocks until row i's advisory lock is held.
func (rl *RetrieveList) LockRow(i int) error {
	if err := rl.assertDurable(); err != nil {
		return err
	}
	return rl.flock(rowLockBase+int64(i), 1, unix.F_WRLCK, unix.F_SETLKW)
}

// TryLockRow attempts row i's advisory lock without blocking; callers
// doing assignment scans skip rows already held by another worker.
func (rl *RetrieveList) TryLockRow(i int) error {
	if err := rl.assertDurable(); err != nil {
		return err
	}
	err := rl.flock(rowLockBase+int64(i), 1, unix.F_WRLCK, unix.F_SETLK)
	if err != nil {
		return errors.Wrap(core.ErrRowLocked, err.Error())
	}
	return nil
}

// UnlockRow releases row i's advisory lock.
func (rl *RetrieveList) UnlockRow(i int) error {
	if err := rl.assertDurable(); err != nil {
		return err
	}
	return rl.flock(rowLockBase+int64(i), 1, unix.F_UNLCK, unix.F_SETLK)
}

// Assign sets row i's Assigned field to worker+1 if currently zero,
// under that row's lock.
func (rl *RetrieveList) Assign(i int, worker int) (bool, error) {
	if err := rl.LockRow(i); err != nil {
		return false, err
	}
	defer rl.UnlockRow(i)

	r := rl.Get(i)
	if r.Assigned != 0 {
		return false, nil
	}
	r.Assigned = uint32(worker) + 1
	rl.Set(i, r)
	return true, nil
}

// Release marks row i retrieved and frees its assignment, writing
// "retrieved=true, assigned=0" in that order so a concurrent reader
// never observes the row as both unassigned and not yet retrieved.
func (rl *RetrieveList) Release(i int, retrieved bool) error {
	if err := rl.LockRow(i); err != nil {
		return err
	}
	defer rl.UnlockRow(i)

	r := rl.Get(i)
	r.Retrieved = retrieved
	rl.Set(i, r)
	r.Assigned = 0
	rl.Set(i, r)
	return rl.Sync()
}

func (rl *RetrieveList) flock(start, length int64, lockType int16, cmd int) error {
	lk := unix.Flock_t{
		Type:   lockType,
		Whence: int16(unix.SEEK_SET),
		Start:  start,
		Len:    length,
	}
	if err := unix.FcntlFlock(rl.f.Fd(), cmd, &lk); err != nil {
		return errors.Wrap(err, "retrieve: flock")
	}
	return nil
}
