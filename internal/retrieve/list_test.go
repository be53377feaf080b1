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
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTransientAppendAndGet(t *testing.T) {
	rl, err := Attach(t.TempDir(), "host1", true)
	require.NoError(t, err)
	defer rl.Close()

	idx, err := rl.Append(RetrieveRow{Name: "foo.dat", Size: 1000, ModTime: time.Unix(1700000000, 0).UTC()})
	require.NoError(t, err)
	require.Equal(t, 0, idx)
	require.Equal(t, 1, rl.Count())

	row := rl.Get(idx)
	require.Equal(t, "foo.dat", row.Name)
	require.EqualValues(t, 1000, row.Size)
	require.False(t, row.IsAssigned())
}

func TestTransientGrowsPastInitialCapacity(t *testing.T) {
	rl, err := Attach(t.TempDir(), "host1", true)
	require.NoError(t, err)
	defer rl.Close()

	for i := 0; i < growStep+5; i++ {
		_, err := rl.Append(RetrieveRow{Name: "f", Size: uint64(i)})
		require.NoError(t, err)
	}
	require.Equal(t, growStep+5, rl.Count())
	last := rl.Get(growStep + 4)
	require.EqualValues(t, growStep+4, last.Size)
}

func TestDurableAttachPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	rl, err := Attach(dir, "host1", false)
	require.NoError(t, err)
	idx, err := rl.Append(RetrieveRow{Name: "bar.dat", Size: 42, InList: true})
	require.NoError(t, err)
	require.NoError(t, rl.Sync())
	require.NoError(t, rl.Close())

	rl2, err := Attach(dir, "host1", false)
	require.NoError(t, err)
	defer rl2.Close()
	require.Equal(t, 1, rl2.Count())
	row := rl2.Get(idx)
	require.Equal(t, "bar.dat", row.Name)
	require.EqualValues(t, 42, row.Size)
	require.FileExists(t, filepath.Join(dir, "files", "time", "host1.list"))
}

func TestAssignIsExclusive(t *testing.T) {
	dir := t.TempDir()
	rl, err := Attach(dir, "host1", false)
	require.NoError(t, err)
	defer rl.Close()

	idx, err := rl.Append(RetrieveRow{Name: "x"})
	require.NoError(t, err)

	ok, err := rl.Assign(idx, 3)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = rl.Assign(idx, 7)
	require.NoError(t, err)
	require.False(t, ok, "row already assigned to another worker")

	require.NoError(t, rl.Release(idx, true))
	row := rl.Get(idx)
	require.True(t, row.Retrieved)
	require.False(t, row.IsAssigned())
}

func TestPruneNotInListCompacts(t *testing.T) {
	dir := t.TempDir()
	rl, err := Attach(dir, "host1", false)
	require.NoError(t, err)
	defer rl.Close()

	keep, err := rl.Append(RetrieveRow{Name: "keep", InList: true})
	require.NoError(t, err)
	_, err = rl.Append(RetrieveRow{Name: "drop", InList: false})
	require.NoError(t, err)

	require.NoError(t, rl.PruneNotInList())
	require.Equal(t, 1, rl.Count())
	require.Equal(t, "keep", rl.Get(0).Name)
	_ = keep
}
