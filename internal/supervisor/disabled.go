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
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// DisabledSources tracks, per source alias, a single `DIR_DISABLED`
// bit in a shared mapped file, flipped under a byte-range advisory
// lock so the main loop and any sibling inspecting tool never race a
// flip (main loop: "flip DIR_DISABLED bits under advisory file
// locks").
type DisabledSources struct {
	f     *os.File
	buf   []byte
	index map[string]int // alias -> byte offset
	inMem map[string]bool
}

const disabledSourcesCap = 256

// OpenDisabledSources maps (creating if absent) the shared bit array
// under workDir, sized for up to disabledSourcesCap distinct source
// aliases ever seen.
func OpenDisabledSources(workDir string, sources []string) (*DisabledSources, error) {
	path := filepath.Join(workDir, "fifo", "disabled_sources")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, "supervisor: disabled-sources dir")
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, errors.Wrap(err, "supervisor: open disabled-sources file")
	}
	if err := f.Truncate(disabledSourcesCap); err != nil {
		f.Close()
		return nil, errors.Wrap(err, "supervisor: truncate disabled-sources file")
	}
	buf, err := unix.Mmap(int(f.Fd()), 0, disabledSourcesCap, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, errors.Wrap(err, "supervisor: mmap disabled-sources file")
	}

	sorted := append([]string(nil), sources...)
	sort.Strings(sorted)
	index := make(map[string]int, len(sorted))
	for i, name := range sorted {
		if i >= disabledSourcesCap {
			break
		}
		index[name] = i
	}

	return &DisabledSources{f: f, buf: buf, index: index, inMem: make(map[string]bool)}, nil
}

func (d *DisabledSources) lock(off int, lockType int16, cmd int) error {
	lk := unix.Flock_t{Type: lockType, Whence: 0, Start: int64(off), Len: 1}
	return unix.FcntlFlock(d.f.Fd(), cmd, &lk)
}

// Disabled reports whether source is currently flagged disabled.
func (d *DisabledSources) Disabled(source string) bool {
	off, ok := d.index[source]
	if !ok {
		return false
	}
	return d.buf[off] != 0
}

// Diff compares configured (the freshly loaded "disabled sources"
// configuration) against the in-memory flags from the previous pass,
// flips any bit that changed under its byte-range lock, and returns
// the list of aliases whose state changed this pass for audit logging.
func (d *DisabledSources) Diff(configured map[string]bool) ([]string, error) {
	var changed []string
	for source, off := range d.index {
		want := configured[source]
		if d.inMem[source] == want {
			continue
		}
		if err := d.lock(off, unix.F_WRLCK, unix.F_SETLKW); err != nil {
			return changed, errors.Wrapf(err, "supervisor: lock disabled bit for %s", source)
		}
		if want {
			d.buf[off] = 1
		} else {
			d.buf[off] = 0
		}
		_ = d.lock(off, unix.F_UNLCK, unix.F_SETLK)
		d.inMem[source] = want
		changed = append(changed, source)
	}
	return changed, nil
}

// Close unmaps and closes the shared file.
func (d *DisabledSources) Close() error {
	if err := unix.Munmap(d.buf); err != nil {
		return err
	}
	return d.f.Close()
}
