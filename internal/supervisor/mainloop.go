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
	"syscall"
	"time"
)

// maskAgentStopSignal is sent to the mask agent's process when the
// queue brake or an explicit stop command pauses it.
const maskAgentStopSignal = syscall.SIGTERM

// tickInterval is how often the single-threaded cooperative loop wakes
// to poll the link counter, drain exited children, and service the
// command channel, absent an incoming command (main loop: "select()
// with timeout").
const tickInterval = time.Second

// HostSlot is one entry of the host-status array a stuck-transfer pass
// inspects (GLOSSARY "Host status array"): active transfer count, the
// error counter, whether its queue is administratively stopped, and
// when it last retried.
type HostSlot struct {
	Host         string
	ActiveCount  int
	ErrorCount   int
	QueueStopped bool
	LastRetry    time.Time
	ActivePIDs   []int
}

// StuckTransferConfig bundles the timing inputs stuck_transfer_check
// compares the elapsed-since-last-retry against.
type StuckTransferConfig struct {
	RetryInterval   time.Duration
	TransferTimeout time.Duration
	Grace           time.Duration
}

// Interrupter sends an interrupt to a worker process, used by
// stuck_transfer_check to make the dispatcher reap a wedged slot.
type Interrupter func(pid int) error

// Run drives the single-threaded cooperative main loop until ctx-like
// shutdown is requested (via the active-file's shared shutdown flag or
// a CmdShutdown command). hostSlots, interrupt, and disabled may be
// nil if the caller has no host-status array or disabled-sources
// tracker wired up yet.
func (s *Supervisor) Run(hostSlots func() []HostSlot, stuckCfg StuckTransferConfig, interrupt Interrupter, disabled *DisabledSources, disabledInterval time.Duration, loadDisabledConfig func() map[string]bool) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	lastDay := time.Now().YearDay()
	lastMonth := time.Now().Month()
	lastDisabledCheck := time.Now()

	for {
		select {
		case cmd := <-s.commands:
			if s.handleCommand(cmd) {
				return
			}
		case <-ticker.C:
			s.active.IncrementHeartbeat()

			s.drainExited()
			if hostSlots != nil {
				s.stuckTransferCheck(hostSlots(), stuckCfg, interrupt)
			}
			s.checkLinkBrake()

			if disabled != nil && loadDisabledConfig != nil && time.Since(lastDisabledCheck) >= disabledInterval {
				s.checkDisabledSources(disabled, loadDisabledConfig())
				lastDisabledCheck = time.Now()
			}

			now := time.Now()
			if now.YearDay() != lastDay {
				s.rolloverDaily(now.Month() != lastMonth)
				lastDay = now.YearDay()
				lastMonth = now.Month()
			}

			if s.active.ShutdownRequested() {
				s.Shutdown(10 * time.Second)
				return
			}
		}
	}
}

// checkDisabledSources implements main loop: "Once per configured
// interval, check the 'disabled sources' configuration; diff against
// in-memory flags and flip DIR_DISABLED bits under advisory file
// locks; emit audit events for each change."
func (s *Supervisor) checkDisabledSources(disabled *DisabledSources, configured map[string]bool) {
	changed, err := disabled.Diff(configured)
	if err != nil {
		s.log.WithError(err).Warn("disabled-sources diff failed")
		return
	}
	for _, source := range changed {
		s.log.WithFields(map[string]interface{}{
			"source":   source,
			"disabled": disabled.Disabled(source),
		}).Info("audit: source disabled-state changed")
	}
}

// handleCommand services one command-channel message (main loop:
// "handle shutdown, stop, stop_mask_agent, stop_dispatcher,
// start_mask_agent, start_dispatcher, mask_agent_ready, is_alive").
// It returns true when the loop should exit.
func (s *Supervisor) handleCommand(cmd Command) bool {
	switch cmd {
	case CmdShutdown, CmdStop:
		s.Shutdown(10 * time.Second)
		return true
	case CmdStopMaskAgent:
		s.stopMaskAgent()
	case CmdStopDispatcher:
		s.status.SetStatus(RoleDispatcher, StatusShutdown)
	case CmdStartMaskAgent:
		s.startMaskAgent()
	case CmdStartDispatcher:
		_ = s.table.Start(RoleDispatcher)
	case CmdMaskAgentReady:
		s.log.Info("mask agent signaled ready")
	case CmdIsAlive:
		select {
		case s.replies <- true:
		default:
		}
	}
	return false
}

// drainExited consumes every ExitReport collected by the table's
// reaper goroutines since the last tick and applies the restart
// policy (main loop: "zombie_check(): non-blocking reap + restart
// policy").
func (s *Supervisor) drainExited() {
	var batch []ExitReport
	for {
		select {
		case r := <-s.exited:
			batch = append(batch, r)
		default:
			if len(batch) > 0 {
				s.ZombieCheck(batch)
			}
			return
		}
	}
}

// checkLinkBrake implements the queue-overflow brake: once the spool
// directory's hard-link count crosses the stop threshold the mask
// agent is paused; it resumes once the count falls back under the
// (lower) start threshold, producing hysteresis so it doesn't flap at
// the boundary.
func (s *Supervisor) checkLinkBrake() {
	if s.linkCounter == nil {
		return
	}
	count, err := s.linkCounter()
	if err != nil {
		s.log.WithError(err).Warn("link counter failed")
		return
	}

	stopAt := s.cfg.LinkMax - s.cfg.StopAMGThreshold - s.cfg.DirsInFileDir
	startAt := s.cfg.LinkMax - s.cfg.StartAMGThreshold

	if !s.maskAgentStopped && count > stopAt {
		s.log.WithField("link_count", count).Warn("spool link count over threshold, pausing mask agent")
		s.stopMaskAgent()
	} else if s.maskAgentStopped && count < startAt {
		s.log.WithField("link_count", count).Info("spool link count recovered, resuming mask agent")
		s.startMaskAgent()
	}
}

func (s *Supervisor) stopMaskAgent() {
	s.status.SetStatus(RoleMaskAgent, StatusShutdown)
	s.status.IncrementBurst()
	if cmd := s.table.Cmd(RoleMaskAgent); cmd != nil && cmd.Process != nil {
		_ = cmd.Process.Signal(maskAgentStopSignal)
	}
	s.status.SetStatus(RoleMaskAgent, StatusStopped)
	s.maskAgentStopped = true
}

func (s *Supervisor) startMaskAgent() {
	if err := s.table.Start(RoleMaskAgent); err != nil {
		s.log.WithError(err).Error("failed to resume mask agent")
		return
	}
	s.maskAgentStopped = false
}

// stuckTransferCheck runs the stuck-transfer check: for every host
// whose queue isn't administratively stopped but has
// active transfers and a nonzero error counter, once its last retry is
// older than retryInterval+transferTimeout+grace, interrupt every
// active per-slot pid so the dispatcher reaps it.
func (s *Supervisor) stuckTransferCheck(slots []HostSlot, cfg StuckTransferConfig, interrupt Interrupter) {
	if interrupt == nil {
		return
	}
	threshold := cfg.RetryInterval + cfg.TransferTimeout + cfg.Grace
	now := time.Now()
	for _, slot := range slots {
		if slot.QueueStopped || slot.ActiveCount == 0 || slot.ErrorCount == 0 {
			continue
		}
		if now.Sub(slot.LastRetry) <= threshold {
			continue
		}
		s.log.WithField("host", slot.Host).Warn("stuck transfer detected, interrupting active slots")
		for _, pid := range slot.ActivePIDs {
			if err := interrupt(pid); err != nil {
				s.log.WithError(err).WithField("pid", pid).Warn("interrupt failed")
			}
		}
	}
}

// rolloverDaily logs and resets the daily counters (main loop: "once
// per day boundary, log fork counters, burst counter, max queue
// length, directory-scan counter, then reset them; on month rollover
// emit a banner").
func (s *Supervisor) rolloverDaily(monthRollover bool) {
	s.log.WithFields(map[string]interface{}{
		"forks":     s.status.Forks(),
		"bursts":    s.status.BurstTransitions(),
		"max_queue": s.status.MaxQueueLength(),
		"dir_scans": s.status.DirectoryScans(),
	}).Info("daily counter rollover")
	s.status.ResetDailyCounters()

	if monthRollover {
		s.log.Info("=== month rollover ===")
	}
}
