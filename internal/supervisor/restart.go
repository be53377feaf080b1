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
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// restartCodeRestart is the exit code a worker uses to ask the
// supervisor for an unconditional restart ("please restart me").
const restartCodeRestart = 42

// Decision is the restart-policy verdict for one exited child.
type Decision int

const (
	DecisionStop    Decision = iota // leave stopped, no restart
	DecisionRestart                 // restart immediately
	DecisionOff                     // set off, then restart if protected
)

// classifyExit maps a child's exit state to a restart decision
// (restart policy, per role).
func classifyExit(exitCode int, signaled bool) Decision {
	if signaled {
		return DecisionOff
	}
	switch exitCode {
	case 0:
		return DecisionStop
	case 1:
		return DecisionStop
	case 2:
		return DecisionRestart
	case 3:
		return DecisionRestart
	case restartCodeRestart:
		return DecisionRestart
	default:
		return DecisionOff
	}
}

// ExitReport is what the caller's reaper learns about one child's
// termination.
type ExitReport struct {
	Role     Role
	Code     int
	Signaled bool
}

// ZombieCheck performs the non-blocking reap and restart-policy pass
// (main loop: "zombie_check(): non-blocking reap + restart policy").
// exited lists the children the caller's reaper already collected this
// cycle; ZombieCheck updates status bytes, saves core files where
// applicable, and restarts protected roles that went abnormal.
func (s *Supervisor) ZombieCheck(exited []ExitReport) {
	for _, r := range exited {
		s.handleExit(r)
	}
}

func (s *Supervisor) handleExit(r ExitReport) {
	s.table.MarkExited(r.Role)
	decision := classifyExit(r.Code, r.Signaled)

	switch decision {
	case DecisionStop:
		s.status.SetStatus(r.Role, StatusStopped)
		s.log.WithField("role", r.Role).Info("worker exited, left stopped")
		return
	case DecisionRestart:
		s.log.WithField("role", r.Role).Info("worker exited, restarting")
	case DecisionOff:
		s.status.SetStatus(r.Role, StatusOff)
		s.log.WithFields(map[string]interface{}{"role": r.Role, "code": r.Code, "signaled": r.Signaled}).
			Warn("worker exited abnormally")
		s.saveCoreFile(r.Role)
		if !protectedRoles[r.Role] {
			return
		}
		s.log.WithField("role", r.Role).Info("restarting protected role after abnormal exit")
	}

	if err := s.table.Start(r.Role); err != nil {
		s.log.WithError(err).WithField("role", r.Role).Error("restart failed")
	}
}

// saveCoreFile renames a core file left in the work directory with a
// timestamped suffix, up to the configured cap (restart policy: "if a
// core file exists ... and the saved-core counter is below its cap,
// rename it with a timestamped suffix").
func (s *Supervisor) saveCoreFile(r Role) {
	corePath := filepath.Join(s.cfg.WorkDir, "core")
	info, err := os.Stat(corePath)
	if err != nil || info.IsDir() {
		return
	}
	if s.savedCores >= s.cfg.SavedCoreFilesCap {
		return
	}
	dest := filepath.Join(s.cfg.WorkDir, "archive", fmt.Sprintf("core.%s.%d", r, time.Now().UnixNano()))
	if err := os.Rename(corePath, dest); err != nil {
		s.log.WithError(err).Warn("failed to archive core file")
		return
	}
	s.savedCores++
}
