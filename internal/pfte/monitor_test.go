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

package pfte

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMonitorResetClearsPriorBatch(t *testing.T) {
	m := NewMonitor()
	m.Reset(10, 1000)
	m.AddBytes(500)
	m.IncFileDone()

	stats := m.GetStats()
	require.Equal(t, int64(10), stats.TotalFiles)
	require.Equal(t, int64(1), stats.FilesDone)
	require.Equal(t, int64(500), stats.BytesDone)
	require.True(t, stats.IsRunning)

	m.Reset(3, 300)
	stats = m.GetStats()
	require.Equal(t, int64(3), stats.TotalFiles)
	require.Equal(t, int64(0), stats.FilesDone)
	require.Equal(t, int64(0), stats.BytesDone)
}

func TestMonitorProgressPercent(t *testing.T) {
	m := NewMonitor()
	m.Reset(1, 200)
	m.AddBytes(50)

	stats := m.GetStats()
	require.InDelta(t, 25.0, stats.ProgressPercent, 0.001)
}

func TestMonitorProgressPercentZeroTotalBytes(t *testing.T) {
	m := NewMonitor()
	m.Reset(1, 0)

	stats := m.GetStats()
	require.Equal(t, 0.0, stats.ProgressPercent)
}

func TestMonitorSetCurrentFileAndRunning(t *testing.T) {
	m := NewMonitor()
	m.Reset(1, 10)
	m.SetCurrentFile("report.csv")
	require.Equal(t, "report.csv", m.GetStats().CurrentFile)

	m.SetRunning(false)
	require.False(t, m.GetStats().IsRunning)
}
