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

package main

import (
	"testing"

	"fileripper/internal/pfte"

	"github.com/stretchr/testify/require"
)

func TestFormatBytes(t *testing.T) {
	require.Equal(t, "512B", formatBytes(512))
	require.Equal(t, "1.0KiB", formatBytes(1024))
	require.Equal(t, "1.5KiB", formatBytes(1536))
	require.Equal(t, "2.0MiB", formatBytes(2<<20))
}

func TestCalculateETAUnknownWhenIdle(t *testing.T) {
	require.Equal(t, "--", calculateETA(pfte.TransferStats{SpeedMBs: 0}))
	require.Equal(t, "--", calculateETA(pfte.TransferStats{SpeedMBs: 1, TotalBytes: 10, BytesDone: 10}))
}

func TestCalculateETAComputesRemaining(t *testing.T) {
	stats := pfte.TransferStats{SpeedMBs: 1, TotalBytes: 10 << 20, BytesDone: 5 << 20}
	require.Equal(t, "5s", calculateETA(stats))
}

func TestTruncateNamePadsShortNames(t *testing.T) {
	require.Equal(t, "short.txt           ", truncateName("short.txt", 20))
}

func TestTruncateNameClipsLongNamesFromTheFront(t *testing.T) {
	got := truncateName("a/very/long/deeply/nested/path/file.txt", 20)
	require.Len(t, got, 20)
	require.True(t, len(got) >= 3 && got[:3] == "...")
}
