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

package diff

import (
	"testing"
	"time"

	"fileripper/internal/retrieve"

	"github.com/stretchr/testify/require"
)

func basicPolicy() Policy {
	return Policy{
		Masks:             FileMaskGroup{Groups: [][]MaskPattern{{{Glob: "*", Accept: true}}}},
		MaxCopiedFiles:    100,
		MaxCopiedFileSize: 1 << 30,
	}
}

func TestClassifyAcceptAndReject(t *testing.T) {
	g := FileMaskGroup{Groups: [][]MaskPattern{
		{{Glob: "*.tmp", Accept: false}, {Glob: "*.dat", Accept: true}},
	}}
	require.Equal(t, Rejected, g.Classify("a.tmp"))
	require.Equal(t, Accepted, g.Classify("a.dat"))
	require.Equal(t, Unclassified, g.Classify("a.other"))
}

func TestRunInsertsNewFile(t *testing.T) {
	list, err := retrieve.Attach(t.TempDir(), "host", true)
	require.NoError(t, err)
	defer list.Close()

	now := time.Unix(1700003000, 0).UTC()
	fresh := []ListedEntry{{Name: "foo", Size: 1000, ModTime: now.Add(-time.Hour)}}

	res, err := Run(list, fresh, basicPolicy(), now)
	require.NoError(t, err)
	require.Len(t, res.InsertedOrUpdated, 1)
	require.Equal(t, 1, list.Count())
	require.Equal(t, "foo", list.Get(0).Name)
}

// TestRunAppendOnlyDelta covers an append-only file that grows from
// 600 (already retrieved) to 1000 bytes: only the delta should count
// against the per-cycle quota.
func TestRunAppendOnlyDelta(t *testing.T) {
	list, err := retrieve.Attach(t.TempDir(), "host", true)
	require.NoError(t, err)
	defer list.Close()

	modTime := time.Unix(1700000000, 0).UTC()
	idx, err := list.Append(retrieve.RetrieveRow{Name: "foo", Size: 600, ModTime: modTime, Retrieved: true})
	require.NoError(t, err)

	policy := basicPolicy()
	policy.AppendOnly = true
	policy.MaxCopiedFileSize = 400

	now := modTime.Add(time.Hour)
	fresh := []ListedEntry{{Name: "foo", Size: 1000, ModTime: modTime}}

	res, err := Run(list, fresh, policy, now)
	require.NoError(t, err)
	require.Equal(t, []int{idx}, res.InsertedOrUpdated)

	row := list.Get(idx)
	require.False(t, row.Retrieved)
	require.EqualValues(t, 600, row.PrevSize)
	require.EqualValues(t, 1000, row.Size)
}

func TestRunQuotaCapSetsMoreFilesInList(t *testing.T) {
	list, err := retrieve.Attach(t.TempDir(), "host", true)
	require.NoError(t, err)
	defer list.Close()

	policy := basicPolicy()
	policy.MaxCopiedFiles = 1
	policy.MaxCopiedFileSize = 1 << 30

	now := time.Unix(1700000000, 0).UTC()
	fresh := []ListedEntry{
		{Name: "a", Size: 10, ModTime: now},
		{Name: "b", Size: 10, ModTime: now},
	}

	res, err := Run(list, fresh, policy, now)
	require.NoError(t, err)
	require.Len(t, res.InsertedOrUpdated, 1)
	require.True(t, res.MoreFilesInList)
}

func TestRunDeletesUnknownFilesPastAgeThreshold(t *testing.T) {
	list, err := retrieve.Attach(t.TempDir(), "host", true)
	require.NoError(t, err)
	defer list.Close()

	policy := Policy{
		Masks:              FileMaskGroup{Groups: [][]MaskPattern{{{Glob: "*.dat", Accept: true}}}},
		DeleteUnknownFiles: true,
		UnknownFileTime:    time.Minute,
		MaxCopiedFiles:     10,
		MaxCopiedFileSize:  1 << 20,
	}

	now := time.Unix(1700000000, 0).UTC()
	fresh := []ListedEntry{{Name: "stray.log", Size: 5, ModTime: now.Add(-time.Hour)}}

	res, err := Run(list, fresh, policy, now)
	require.NoError(t, err)
	require.Equal(t, []string{"stray.log"}, res.ScheduledForDeletion)
	require.Empty(t, res.InsertedOrUpdated)
}

func TestRunLockedFileGC(t *testing.T) {
	list, err := retrieve.Attach(t.TempDir(), "host", true)
	require.NoError(t, err)
	defer list.Close()

	policy := basicPolicy()
	policy.LockedFileTime = time.Minute
	policy.DefaultTransferTimeout = time.Minute

	now := time.Unix(1700000000, 0).UTC()
	fresh := []ListedEntry{{Name: ".lockfile", Size: 1, ModTime: now.Add(-time.Hour)}}

	res, err := Run(list, fresh, policy, now)
	require.NoError(t, err)
	require.Equal(t, []string{".lockfile"}, res.ScheduledForDeletion)
	require.Zero(t, list.Count())
}
