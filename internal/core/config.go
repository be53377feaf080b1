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

package core

import (
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

// Config is the typed shape the TOML configuration parser produces,
// covering exactly what the supervisor and retrieval engine need
// directly.
type Config struct {
	WorkDir string `toml:"work_dir"`

	TransferTimeout    Duration `toml:"transfer_timeout"`
	RetryInterval      Duration `toml:"retry_interval"`
	StuckTransferGrace Duration `toml:"stuck_transfer_grace"`

	MaxCopiedFiles     int   `toml:"max_copied_files"`
	MaxCopiedFileSize  int64 `toml:"max_copied_file_size"`
	ReplyQueueCapacity int   `toml:"reply_queue_capacity"`

	LinkMax           int `toml:"link_max"`
	StopAMGThreshold  int `toml:"stop_amg_threshold"`
	StartAMGThreshold int `toml:"start_amg_threshold"`
	DirsInFileDir     int `toml:"dirs_in_file_dir"`
	SavedCoreFilesCap int `toml:"saved_core_files_cap"`

	Sources map[string]SourceConfig `toml:"source"`
}

// SourceConfig is the per-remote-host retrieval policy: max copied
// files, append-only mode, and related knobs. Mask groups are not
// part of it.
type SourceConfig struct {
	Host             string   `toml:"host"`
	Port             int      `toml:"port"`
	User             string   `toml:"user"`
	Transient        bool     `toml:"transient"` // "stupid mode"
	RemoveAfterFetch bool     `toml:"remove_after_fetch"`
	AppendOnly       bool     `toml:"append_only"`
	DeleteUnknown    bool     `toml:"delete_unknown_files"`
	UnknownFileAge   Duration `toml:"unknown_file_time"`
	LockedFileAge    Duration `toml:"locked_file_time"`
	MaxCopiedFiles   int      `toml:"max_copied_files"`
	MaxCopiedSize    int64    `toml:"max_copied_file_size"`
}

// Duration wraps time.Duration so it can be expressed in TOML as a plain
// string ("30s", "5m") the way the rest of the pack's config files do.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return errors.Wrap(err, "parsing duration")
	}
	d.Duration = parsed
	return nil
}

// DefaultConfig returns the built-in defaults applied before a TOML file
// is merged in, so a partially specified config file is always valid.
func DefaultConfig(workDir string) Config {
	return Config{
		WorkDir:            workDir,
		TransferTimeout:    Duration{120 * time.Second},
		RetryInterval:      Duration{30 * time.Second},
		StuckTransferGrace: Duration{60 * time.Second},
		MaxCopiedFiles:     1000,
		MaxCopiedFileSize:  10 << 30,
		ReplyQueueCapacity: 256,
		LinkMax:            32000,
		StopAMGThreshold:   100,
		StartAMGThreshold:  500,
		DirsInFileDir:      4,
		SavedCoreFilesCap:  10,
		Sources:            map[string]SourceConfig{},
	}
}

// LoadConfig reads "<work>/etc/fileripper.toml" if present and merges it
// over DefaultConfig. A missing file is not an error: a freshly
// initialized work directory has none yet.
func LoadConfig(workDir string) (Config, error) {
	cfg := DefaultConfig(workDir)
	path := filepath.Join(workDir, "etc", "fileripper.toml")
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		if os.IsNotExist(errors.Cause(err)) || errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, errors.Wrapf(err, "loading config from %s", path)
	}
	cfg.WorkDir = workDir
	return cfg, nil
}
