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

// Package diff implements the remote directory diff: FileMaskGroup
// filtering, size/age ignore policy, locked-file garbage collection,
// and quota-capped insertion into a retrieve.RetrieveList.
package diff

import "path/filepath"

// Decision is the filter outcome for one candidate name.
type Decision int

const (
	// Unclassified means no group's pattern matched at all.
	Unclassified Decision = iota
	// Accepted means a pattern in some group matched with accept
	// policy.
	Accepted
	// Rejected means a pattern in some group matched with an explicit
	// exclusion policy; scanning of that group stops at this pattern.
	Rejected
)

// MaskPattern is one filter entry within a FileMaskGroup.
type MaskPattern struct {
	Glob   string
	Accept bool // false = explicit exclusion
}

// FileMaskGroup is an ordered list of pattern groups sharing one
// acceptance policy walk.
type FileMaskGroup struct {
	Groups [][]MaskPattern
}

// Classify walks the groups in order. The first group containing a
// pattern that matches name decides the outcome for that group; a
// match with Accept=false ends scanning of that group only (the
// caller is free to keep checking later groups). If nothing in any
// group matches, the result is Unclassified.
func (g FileMaskGroup) Classify(name string) Decision {
	result := Unclassified
	for _, group := range g.Groups {
		for _, pat := range group {
			matched, err := filepath.Match(pat.Glob, name)
			if err != nil || !matched {
				continue
			}
			if pat.Accept {
				return Accepted
			}
			result = Rejected
			break
		}
	}
	return result
}
