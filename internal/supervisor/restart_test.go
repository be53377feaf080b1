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
	"testing"
	"time"

	"fileripper/internal/core"

	"github.com/stretchr/testify/require"
)

func TestClassifyExit(t *testing.T) {
	require.Equal(t, DecisionStop, classifyExit(0, false))
	require.Equal(t, DecisionStop, classifyExit(1, false))
	require.Equal(t, DecisionRestart, classifyExit(2, false))
	require.Equal(t, DecisionRestart, classifyExit(3, false))
	require.Equal(t, DecisionRestart, classifyExit(restartCodeRestart, false))
	require.Equal(t, DecisionOff, classifyExit(17, false))
	require.Equal(t, DecisionOff, classifyExit(0, true), "signaled termination always goes through the abnormal path")
}

// newTestSupervisor builds a fully acquired Supervisor under a fresh
// temp work directory, for tests that exercise the restart policy and
// process table without actually launching long-lived workers.
func newTestSupervisor(t *testing.T) *Supervisor {
	t.Helper()
	cfg := core.DefaultConfig(t.TempDir())
	s, err := New(cfg, 10*time.Millisecond)
	require.NoError(t, err)
	t.Cleanup(func() {
		s.status.Close()
		s.active.closeMapping()
	})
	return s
}

// quickSpawn launches a process that exits immediately, for exercising
// Table.Start/restart without leaving anything running.
func quickSpawn() (*exec.Cmd, error) {
	cmd := exec.Command("/bin/sh", "-c", "exit 0")
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return cmd, nil
}

func TestHandleExitRestartsProtectedRoleAfterAbnormalExit(t *testing.T) {
	s := newTestSupervisor(t)
	s.table.Register(RoleDispatcher, quickSpawn)

	// RoleDispatcher is protected; an abnormal exit (unmapped code) must
	// flip it off then immediately restart it.
	s.handleExit(ExitReport{Role: RoleDispatcher, Code: 99})
	require.Equal(t, StatusOn, s.status.Status(RoleDispatcher))
}

func TestHandleExitLeavesUnprotectedRoleOff(t *testing.T) {
	s := newTestSupervisor(t)

	// RoleMaskAgent is the one role outside the protected set, and has
	// no launcher registered, so it should stay off rather than restart.
	s.handleExit(ExitReport{Role: RoleMaskAgent, Code: 99})
	require.Equal(t, StatusOff, s.status.Status(RoleMaskAgent))
}

func TestHandleExitNormalExitLeavesStopped(t *testing.T) {
	s := newTestSupervisor(t)

	s.handleExit(ExitReport{Role: RoleWorkerHelper, Code: 0})
	require.Equal(t, StatusStopped, s.status.Status(RoleWorkerHelper))
}
