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
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"fileripper/internal/core"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// workDirs is the directory tree startup step 3 verifies and creates
// under the work directory.
var workDirs = []string{
	"fifo",
	"messages",
	"log",
	"archive",
	filepath.Join("etc", "groups"),
	filepath.Join("etc", "info"),
	filepath.Join("etc", "action"),
	"files",
	filepath.Join("files", "incoming", "mask"),
	filepath.Join("files", "incoming", "ls_data"),
	filepath.Join("files", "outgoing"),
	filepath.Join("files", "time"),
	filepath.Join("files", "tmp"),
}

// Command is a message sent on the supervisor's command channel (main
// loop: "select() with timeout on the supervisor command channel").
type Command int

const (
	CmdShutdown Command = iota
	CmdStop
	CmdStopMaskAgent
	CmdStopDispatcher
	CmdStartMaskAgent
	CmdStartDispatcher
	CmdMaskAgentReady
	CmdIsAlive
)

// Supervisor is the process-group parent: it owns the active-file, the
// status block, the process table, and the main cooperative loop.
type Supervisor struct {
	cfg core.Config
	log *logrus.Entry

	active *ActiveFile
	status *StatusBlock
	table  *Table

	commands chan Command
	replies  chan bool
	exited   chan ExitReport

	savedCores       int
	maskAgentStopped bool
	linkCounter      func() (int, error)
}

// New performs the early startup steps: acquires the single-instance
// lock, verifies the directory tree, maps the status block, and
// initializes the process table. Starting the worker roles in order
// is left to the caller via StartAll once launchers have been
// registered.
func New(cfg core.Config, staleAfter time.Duration) (*Supervisor, error) {
	af, err := AcquireActiveFile(cfg.WorkDir, staleAfter)
	if err != nil {
		return nil, err
	}

	if err := verifyDirectoryTree(cfg.WorkDir); err != nil {
		af.closeMapping()
		return nil, err
	}

	sb, err := OpenStatusBlock(cfg.WorkDir)
	if err != nil {
		af.closeMapping()
		return nil, err
	}
	sb.SetStartTimeUnix(time.Now().Unix())
	sb.SetUserID(uint32(os.Getuid()))
	if host, err := os.Hostname(); err == nil {
		sb.SetHostname(host)
	}

	table := NewTable(sb, af)

	s := &Supervisor{
		cfg:      cfg,
		log:      logrus.WithField("role", "supervisor"),
		active:   af,
		status:   sb,
		table:    table,
		commands: make(chan Command, 8),
		replies:  make(chan bool, 8),
		exited:   make(chan ExitReport, int(roleCount)),
	}
	table.OnExit(func(r ExitReport) { s.exited <- r })
	return s, nil
}

// verifyDirectoryTree creates any missing directory in workDirs under
// root with mode 0o755 (startup step 3).
func verifyDirectoryTree(root string) error {
	for _, d := range workDirs {
		full := filepath.Join(root, d)
		if err := os.MkdirAll(full, 0o755); err != nil {
			return errors.Wrapf(core.ErrWorkdirMissing, "create %s: %v", full, err)
		}
	}
	return nil
}

// Register attaches role's launcher; call before StartAll.
func (s *Supervisor) Register(r Role, spawn func() (*exec.Cmd, error)) {
	s.table.Register(r, spawn)
}

// StartAll runs startup step 6: the log/archive/event/stat roles
// first, then the mask agent, then the info/protocol daemons
// (whichever were registered), then the dispatcher.
func (s *Supervisor) StartAll() error {
	order := []Role{
		RoleSystemLog, RoleEventLog, RoleReceiveLog, RoleTransferLog,
		RoleTransferDebugLog, RoleInputLog, RoleOutputLog, RoleConfirmationLog,
		RoleDeleteLog, RoleProductionLog, RoleDistributionLog, RoleTransferRateLog,
		RoleLogAggregator, RoleArchiveWatch, RoleStatistics,
		RoleMaskAgent,
		RoleInfoDaemon,
		RoleWorkerHelper,
		RoleDispatcher,
	}
	for _, r := range order {
		if err := s.table.Start(r); err != nil {
			s.log.WithError(err).WithField("role", r).Error("startup: role failed to start")
			return errors.Wrapf(core.ErrChildSpawnFailed, "role %s: %v", r, err)
		}
	}
	return nil
}

// Commands returns the channel external callers (or the CLI's signal
// handler) send Command values on.
func (s *Supervisor) Commands() chan<- Command { return s.commands }

// SetLinkCounter installs the function the main loop polls for the
// file-spool directory's current hard-link count (main loop: "Monitor
// the file-spool directory's hard-link count").
func (s *Supervisor) SetLinkCounter(f func() (int, error)) { s.linkCounter = f }

// Shutdown performs the orderly shutdown sequence.
func (s *Supervisor) Shutdown(deadline time.Duration) {
	s.log.Info("shutdown: stopping worker helper")
	s.status.SetStatus(RoleWorkerHelper, StatusShutdown)
	s.waitForExit(RoleWorkerHelper, deadline)

	s.log.Info("shutdown: stopping mask agent and dispatcher")
	s.status.SetStatus(RoleMaskAgent, StatusShutdown)
	s.status.SetStatus(RoleDispatcher, StatusShutdown)
	s.waitForExit(RoleMaskAgent, deadline)
	s.waitForExit(RoleDispatcher, deadline)

	s.status.SetHostname("")

	s.status.Sync()
	s.active.Sync()

	s.status.Close()
	s.active.Close()

	s.log.Info("shutdown: terminating system log")
	if cmd := s.table.Cmd(RoleSystemLog); cmd != nil && cmd.Process != nil {
		_ = cmd.Process.Signal(os.Interrupt)
	}
}

// waitForExit polls role's pid slot until it reaches zero or deadline
// elapses.
func (s *Supervisor) waitForExit(r Role, deadline time.Duration) {
	until := time.Now().Add(deadline)
	for time.Now().Before(until) {
		if s.active.PID(r) == 0 {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
}

// Status, Active and Table expose the supervisor's status block,
// active-file and process table to in-process callers. Sibling
// processes (the CLI's `status` subcommand, `serve`) do not use them;
// they open the shared files with OpenStatusBlock and PeekActiveFile.
func (s *Supervisor) Status() *StatusBlock { return s.status }
func (s *Supervisor) Active() *ActiveFile  { return s.active }
func (s *Supervisor) Table() *Table        { return s.table }
