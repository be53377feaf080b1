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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCalculateChecksumStableForSameContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.bin")
	require.NoError(t, os.WriteFile(path, []byte("the quick brown fox"), 0o644))

	sum1, err := CalculateChecksum(path)
	require.NoError(t, err)
	require.NotEmpty(t, sum1)

	sum2, err := CalculateChecksum(path)
	require.NoError(t, err)
	require.Equal(t, sum1, sum2)
}

func TestCalculateChecksumDiffersForDifferentContent(t *testing.T) {
	dir := t.TempDir()
	pathA := filepath.Join(dir, "a.bin")
	pathB := filepath.Join(dir, "b.bin")
	require.NoError(t, os.WriteFile(pathA, []byte("content one"), 0o644))
	require.NoError(t, os.WriteFile(pathB, []byte("content two"), 0o644))

	sumA, err := CalculateChecksum(pathA)
	require.NoError(t, err)
	sumB, err := CalculateChecksum(pathB)
	require.NoError(t, err)
	require.NotEqual(t, sumA, sumB)
}

func TestCalculateChecksumMissingFile(t *testing.T) {
	_, err := CalculateChecksum(filepath.Join(t.TempDir(), "missing.bin"))
	require.Error(t, err)
}
