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
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestLinkBrakeHysteresis exercises scenario S6: once the spool
// link-count crosses the stop threshold the mask agent pauses, and it
// only resumes once the count falls under the (lower) start
// threshold — not merely back under the stop threshold.
func TestLinkBrakeHysteresis(t *testing.T) {
	s := newTestSupervisor(t)
	s.cfg.LinkMax = 32000
	s.cfg.StopAMGThreshold = 100
	s.cfg.StartAMGThreshold = 500
	s.cfg.DirsInFileDir = 4

	stopAt := s.cfg.LinkMax - s.cfg.StopAMGThreshold - s.cfg.DirsInFileDir // 31896
	startAt := s.cfg.LinkMax - s.cfg.StartAMGThreshold                     // 31500

	count := stopAt + 1
	s.linkCounter = func() (int, error) { return count, nil }

	s.checkLinkBrake()
	require.True(t, s.maskAgentStopped)
	require.Equal(t, StatusStopped, s.status.Status(RoleMaskAgent))

	// Still above startAt (between startAt and stopAt): must stay paused.
	count = startAt + 1
	s.checkLinkBrake()
	require.True(t, s.maskAgentStopped)

	// Drops under startAt: resumes.
	count = startAt - 1
	s.checkLinkBrake()
	require.False(t, s.maskAgentStopped)
}

func TestStuckTransferCheckInterruptsWedgedSlot(t *testing.T) {
	s := newTestSupervisor(t)
	cfg := StuckTransferConfig{
		RetryInterval:   time.Second,
		TransferTimeout: time.Second,
		Grace:           time.Second,
	}

	var interrupted []int
	interrupt := func(pid int) error {
		interrupted = append(interrupted, pid)
		return nil
	}

	slots := []HostSlot{
		{
			Host:        "wedged",
			ActiveCount: 1,
			ErrorCount:  1,
			LastRetry:   time.Now().Add(-10 * time.Second),
			ActivePIDs:  []int{111, 222},
		},
		{
			Host:         "stopped-by-admin",
			ActiveCount:  1,
			ErrorCount:   1,
			QueueStopped: true,
			LastRetry:    time.Now().Add(-10 * time.Second),
			ActivePIDs:   []int{333},
		},
		{
			Host:        "healthy",
			ActiveCount: 1,
			ErrorCount:  0,
			LastRetry:   time.Now(),
			ActivePIDs:  []int{444},
		},
	}

	s.stuckTransferCheck(slots, cfg, interrupt)
	require.ElementsMatch(t, []int{111, 222}, interrupted)
}

func TestDisabledSourcesDiffFlipsBitsAndReportsChanges(t *testing.T) {
	dir := t.TempDir()
	ds, err := OpenDisabledSources(dir, []string{"alpha", "beta"})
	require.NoError(t, err)
	defer ds.Close()

	changed, err := ds.Diff(map[string]bool{"alpha": true, "beta": false})
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"alpha"}, changed)
	require.True(t, ds.Disabled("alpha"))
	require.False(t, ds.Disabled("beta"))

	// No change: second call against the same configuration reports nothing.
	changed, err = ds.Diff(map[string]bool{"alpha": true, "beta": false})
	require.NoError(t, err)
	require.Empty(t, changed)

	changed, err = ds.Diff(map[string]bool{"alpha": false, "beta": true})
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"alpha", "beta"}, changed)
}
