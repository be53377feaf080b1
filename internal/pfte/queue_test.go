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
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestJobQueueFIFOOrder(t *testing.T) {
	q := NewQueue()
	require.Equal(t, 0, q.Count())

	q.Add(&TransferJob{RemotePath: "a"})
	q.Add(&TransferJob{RemotePath: "b"})
	q.Add(&TransferJob{RemotePath: "c"})
	require.Equal(t, 3, q.Count())

	require.Equal(t, "a", q.Pop().RemotePath)
	require.Equal(t, "b", q.Pop().RemotePath)
	require.Equal(t, "c", q.Pop().RemotePath)
	require.Nil(t, q.Pop())
}

func TestJobQueueConcurrentAddPop(t *testing.T) {
	q := NewQueue()
	const n = 200

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q.Add(&TransferJob{RemotePath: "x"})
		}()
	}
	wg.Wait()
	require.Equal(t, n, q.Count())

	popped := 0
	for q.Pop() != nil {
		popped++
	}
	require.Equal(t, n, popped)
	require.Equal(t, 0, q.Count())
}
