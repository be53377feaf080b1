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
	"os/exec"
	"sync"
)

// ProcessEntry is the identity of one supervised worker: a stable role
// tag, its launcher, and its current child command. The child pid and
// status byte live in the ActiveFile and StatusBlock, indexed by Role.
// Exactly one
// entry exists per role; the role set is closed and fixed at build
// time.
type ProcessEntry struct {
	Role  Role
	Spawn func() (*exec.Cmd, error)
	cmd   *exec.Cmd
}

// Table is the fixed process table, one ProcessEntry per Role,
// bound to the shared StatusBlock/ActiveFile cells.
type Table struct {
	mu      sync.Mutex
	entries map[Role]*ProcessEntry
	status  *StatusBlock
	active  *ActiveFile
	onExit  func(ExitReport)
}

// OnExit installs the callback the table's reaper goroutines report
// through whenever a supervised child terminates. Install it before
// the first Start call.
func (t *Table) OnExit(f func(ExitReport)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onExit = f
}

// NewTable builds the closed role enumeration's process table, binding
// each entry's status cell to sb and its pid slot to af.
func NewTable(sb *StatusBlock, af *ActiveFile) *Table {
	t := &Table{
		entries: make(map[Role]*ProcessEntry, roleCount),
		status:  sb,
		active:  af,
	}
	for r := Role(0); r < roleCount; r++ {
		t.entries[r] = &ProcessEntry{Role: r}
		sb.SetStatus(r, StatusOff)
		af.SetPID(r, 0)
	}
	return t
}

// Register attaches the launcher function for role; call before Start.
func (t *Table) Register(r Role, spawn func() (*exec.Cmd, error)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[r].Spawn = spawn
}

// Start launches role's worker and records its pid, if a launcher was
// registered for it.
func (t *Table) Start(r Role) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	e := t.entries[r]
	if e.Spawn == nil {
		return nil
	}
	cmd, err := e.Spawn()
	if err != nil {
		t.status.SetStatus(r, StatusOff)
		return err
	}
	e.cmd = cmd
	t.status.IncrementForks()
	t.status.SetStatus(r, StatusOn)
	if cmd.Process != nil {
		t.active.SetPID(r, cmd.Process.Pid)
	}

	onExit := t.onExit
	go t.reap(r, cmd, onExit)
	return nil
}

// reap blocks on cmd's exit and reports it through onExit, classified
// into an exit code and a signaled flag (non-blocking from the main
// loop's point of view: each child gets its own goroutine, and
// ZombieCheck only ever consumes already-collected reports).
func (t *Table) reap(r Role, cmd *exec.Cmd, onExit func(ExitReport)) {
	err := cmd.Wait()
	if onExit == nil {
		return
	}
	report := ExitReport{Role: r}
	if err == nil {
		report.Code = 0
	} else if exitErr, ok := err.(*exec.ExitError); ok {
		if ws, ok := exitErr.Sys().(interface{ Signaled() bool }); ok && ws.Signaled() {
			report.Signaled = true
		}
		report.Code = exitErr.ExitCode()
	} else {
		report.Code = -1
	}
	onExit(report)
}

// Entry returns role's process-table entry.
func (t *Table) Entry(r Role) *ProcessEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.entries[r]
}

// Cmd returns role's currently tracked *exec.Cmd, or nil if not
// running under this table's own supervision (siblings launched out of
// band are tracked only via their pid in the ActiveFile).
func (t *Table) Cmd(r Role) *exec.Cmd {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.entries[r].cmd
}

// MarkExited clears role's pid slot and cmd handle; its status byte is
// set separately by the restart-policy decision in zombie_check.
func (t *Table) MarkExited(r Role) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[r].cmd = nil
	t.active.SetPID(r, 0)
}

// Roles returns every role in the closed enumeration.
func (t *Table) Roles() []Role {
	roles := make([]Role, 0, roleCount)
	for r := Role(0); r < roleCount; r++ {
		roles = append(roles, r)
	}
	return roles
}
