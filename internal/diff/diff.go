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
	"strings"
	"time"

	"fileripper/internal/retrieve"
)

// CompareOp is one of the three comparison operators the size/age
// ignore policy allows.
type CompareOp int

const (
	OpEqual CompareOp = iota
	OpLess
	OpGreater
)

func (op CompareOp) match(a, b int64) bool {
	switch op {
	case OpLess:
		return a < b
	case OpGreater:
		return a > b
	default:
		return a == b
	}
}

// SizePolicy ignores listed files whose size relates to Threshold by
// Op.
type SizePolicy struct {
	Op        CompareOp
	Threshold uint64
}

// AgePolicy ignores listed files whose (now - mtime), computed in
// UTC, relates to Threshold by Op.
type AgePolicy struct {
	Op        CompareOp
	Threshold time.Duration
}

// Policy bundles the per-source filter and quota configuration.
type Policy struct {
	Masks FileMaskGroup

	SizeIgnore *SizePolicy
	AgeIgnore  *AgePolicy

	DeleteUnknownFiles bool
	UnknownFileTime    time.Duration

	LockedFileTime         time.Duration
	DefaultTransferTimeout time.Duration

	AppendOnly bool

	MaxCopiedFiles    int
	MaxCopiedFileSize uint64
}

// ListedEntry is one parsed record from a fresh remote directory
// listing.
type ListedEntry struct {
	Name    string
	Size    uint64
	ModTime time.Time
}

// Result is the outcome of one diff pass.
type Result struct {
	// InsertedOrUpdated holds the RetrieveList index of every row this
	// pass touched (new or pre-existing).
	InsertedOrUpdated []int
	// ScheduledForDeletion holds remote names classified as unknown (and
	// past UnknownFileTime) or as stale lock files.
	ScheduledForDeletion []string
	// MoreFilesInList is true once the per-cycle quota caps were hit;
	// the remaining candidates are left for the next cycle.
	MoreFilesInList bool
}

// Run classifies fresh against the current contents of list, inserting
// or updating rows under the quota caps in policy, and returns which
// remote names should be scheduled for deletion. Every row Run visits
// (whether inserted, updated, or already present) has its InList
// marker set true; callers that want durable pruning should follow
// with list.PruneNotInList() once all sources for this cycle are
// diffed — Run itself never removes rows.
func Run(list *retrieve.RetrieveList, fresh []ListedEntry, policy Policy, now time.Time) (Result, error) {
	byName := make(map[string]int, list.Count())
	for i := 0; i < list.Count(); i++ {
		byName[list.Get(i).Name] = i
	}

	var result Result
	var copiedFiles int
	var copiedSize uint64

	for _, e := range fresh {
		decision := policy.Masks.Classify(e.Name)

		if decision == Unclassified {
			if policy.DeleteUnknownFiles && now.Sub(e.ModTime) >= policy.UnknownFileTime {
				result.ScheduledForDeletion = append(result.ScheduledForDeletion, e.Name)
			}
			continue
		}
		if decision == Rejected {
			continue
		}

		if policy.SizeIgnore != nil && policy.SizeIgnore.Op.match(int64(e.Size), int64(policy.SizeIgnore.Threshold)) {
			continue
		}
		age := now.Sub(e.ModTime)
		if policy.AgeIgnore != nil && policy.AgeIgnore.Op.match(int64(age), int64(policy.AgeIgnore.Threshold)) {
			continue
		}

		if strings.HasPrefix(e.Name, ".") && age > policy.LockedFileTime && age > policy.DefaultTransferTimeout {
			result.ScheduledForDeletion = append(result.ScheduledForDeletion, e.Name)
			continue
		}

		idx, exists := byName[e.Name]
		if !exists {
			delta := e.Size
			if result.MoreFilesInList || copiedFiles+1 > policy.MaxCopiedFiles || copiedSize+delta > policy.MaxCopiedFileSize {
				result.MoreFilesInList = true
				continue
			}
			newIdx, err := list.Append(retrieve.RetrieveRow{
				Name:    e.Name,
				Size:    e.Size,
				ModTime: e.ModTime,
				InList:  true,
			})
			if err != nil {
				return result, err
			}
			byName[e.Name] = newIdx
			copiedFiles++
			copiedSize += delta
			result.InsertedOrUpdated = append(result.InsertedOrUpdated, newIdx)
			continue
		}

		row := list.Get(idx)
		changed := row.Size != e.Size || !row.ModTime.Equal(e.ModTime)
		if !changed {
			row.InList = true
			list.Set(idx, row)
			result.InsertedOrUpdated = append(result.InsertedOrUpdated, idx)
			continue
		}

		delta := e.Size
		if policy.AppendOnly && e.Size > row.Size {
			delta = e.Size - row.Size
		}
		if result.MoreFilesInList || copiedFiles+1 > policy.MaxCopiedFiles || copiedSize+delta > policy.MaxCopiedFileSize {
			result.MoreFilesInList = true
			row.InList = true
			list.Set(idx, row)
			continue
		}

		row.PrevSize = row.Size
		row.Size = e.Size
		row.ModTime = e.ModTime
		row.Retrieved = false
		row.InList = true
		list.Set(idx, row)
		copiedFiles++
		copiedSize += delta
		result.InsertedOrUpdated = append(result.InsertedOrUpdated, idx)
	}

	return result, nil
}
