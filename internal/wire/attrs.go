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

package wire

import "time"

// Stat is the decoded form of an SFTP attributes block. Fields are
// zero when their flag bit was absent.
type Stat struct {
	Flags uint32

	FileType Type // only meaningful for version >= 4

	Size uint64
	UID  uint32
	GID  uint32

	OwnerName string
	GroupName string

	Permissions uint32

	// version < 4: both set together from ACMODTIME.
	// version >= 4: Access/Modify/Create/Change are independent.
	AccessTime time.Time
	ModifyTime time.Time
	CreateTime time.Time
	ChangeTime time.Time
	SubSecond  uint32

	Bits           uint32
	AllocationSize uint64

	// ExtendedLeftover counts flag bits this decoder recognized as
	// present but chose not to materialize (extended attributes
	// pairs). Non-fatal: logged by the caller, not an error.
	ExtendedLeftover int
}

// EncodeAttrs writes the present-flags word followed by each announced
// field in the version-specific order the session negotiated.
func (w *Writer) EncodeAttrs(s Stat, version uint32) {
	w.PutU32(s.Flags)

	if version >= 4 {
		w.PutByte(byte(s.FileType))
	}
	if s.Flags&AttrSize != 0 {
		w.PutU64(s.Size)
	}
	if version < 4 {
		if s.Flags&AttrUIDGID != 0 {
			w.PutU32(s.UID)
			w.PutU32(s.GID)
		}
	} else if s.Flags&AttrOwnerGroup != 0 {
		w.PutString(s.OwnerName)
		w.PutString(s.GroupName)
	}
	if s.Flags&AttrPermissions != 0 {
		w.PutU32(s.Permissions)
	}
	if version < 4 {
		if s.Flags&AttrACModTime != 0 {
			w.PutU32(uint32(s.AccessTime.Unix()))
			w.PutU32(uint32(s.ModifyTime.Unix()))
		}
	} else {
		if s.Flags&AttrAccessTime != 0 {
			w.PutU64(uint64(s.AccessTime.Unix()))
			if s.Flags&AttrSubSecond != 0 {
				w.PutU32(s.SubSecond)
			}
		}
		if s.Flags&AttrCreateTime != 0 {
			w.PutU64(uint64(s.CreateTime.Unix()))
			if s.Flags&AttrSubSecond != 0 {
				w.PutU32(s.SubSecond)
			}
		}
		if s.Flags&AttrModifyTime != 0 {
			w.PutU64(uint64(s.ModifyTime.Unix()))
			if s.Flags&AttrSubSecond != 0 {
				w.PutU32(s.SubSecond)
			}
		}
		if s.Flags&AttrCTime != 0 {
			w.PutU64(uint64(s.ChangeTime.Unix()))
			if s.Flags&AttrSubSecond != 0 {
				w.PutU32(s.SubSecond)
			}
		}
	}
	if s.Flags&AttrBits != 0 {
		w.PutU32(s.Bits)
	}
	if s.Flags&AttrAllocation != 0 {
		w.PutU64(s.AllocationSize)
	}
	// AttrExtended pairs are never emitted by this client; we only
	// ever send attribute blocks for writes we originate (setstat,
	// open with initial mode) which do not carry extended pairs.
}

// DecodeAttrs reads present flags, then (for version >= 4) a 1-byte
// type code, then the optional fields present flags announced, in
// version-specific order.
func DecodeAttrs(r *Reader, version uint32) (Stat, error) {
	var s Stat
	flags, err := r.GetU32()
	if err != nil {
		return s, err
	}
	s.Flags = flags

	if version >= 4 {
		t, err := r.GetByte()
		if err != nil {
			return s, err
		}
		s.FileType = Type(t)
	}

	if flags&AttrSize != 0 {
		v, err := r.GetU64()
		if err != nil {
			return s, err
		}
		s.Size = v
	}

	if version < 4 {
		if flags&AttrUIDGID != 0 {
			uid, err := r.GetU32()
			if err != nil {
				return s, err
			}
			gid, err := r.GetU32()
			if err != nil {
				return s, err
			}
			s.UID, s.GID = uid, gid
		}
	} else if flags&AttrOwnerGroup != 0 {
		owner, err := r.GetString()
		if err != nil {
			return s, err
		}
		group, err := r.GetString()
		if err != nil {
			return s, err
		}
		s.OwnerName, s.GroupName = owner, group
	}

	if flags&AttrPermissions != 0 {
		v, err := r.GetU32()
		if err != nil {
			return s, err
		}
		s.Permissions = v
	}

	if version < 4 {
		if flags&AttrACModTime != 0 {
			at, err := r.GetU32()
			if err != nil {
				return s, err
			}
			mt, err := r.GetU32()
			if err != nil {
				return s, err
			}
			s.AccessTime = time.Unix(int64(at), 0).UTC()
			s.ModifyTime = time.Unix(int64(mt), 0).UTC()
		}
	} else {
		readTime := func() (time.Time, uint32, error) {
			sec, err := r.GetU64()
			if err != nil {
				return time.Time{}, 0, err
			}
			var sub uint32
			if flags&AttrSubSecond != 0 {
				sub, err = r.GetU32()
				if err != nil {
					return time.Time{}, 0, err
				}
			}
			return time.Unix(int64(sec), 0).UTC(), sub, nil
		}
		if flags&AttrAccessTime != 0 {
			t, sub, err := readTime()
			if err != nil {
				return s, err
			}
			s.AccessTime, s.SubSecond = t, sub
		}
		if flags&AttrCreateTime != 0 {
			t, sub, err := readTime()
			if err != nil {
				return s, err
			}
			s.CreateTime, s.SubSecond = t, sub
		}
		if flags&AttrModifyTime != 0 {
			t, sub, err := readTime()
			if err != nil {
				return s, err
			}
			s.ModifyTime, s.SubSecond = t, sub
		}
		if flags&AttrCTime != 0 {
			t, sub, err := readTime()
			if err != nil {
				return s, err
			}
			s.ChangeTime, s.SubSecond = t, sub
		}
	}

	if flags&AttrBits != 0 {
		v, err := r.GetU32()
		if err != nil {
			return s, err
		}
		s.Bits = v
	}

	if flags&AttrAllocation != 0 {
		v, err := r.GetU64()
		if err != nil {
			return s, err
		}
		s.AllocationSize = v
	}

	if flags&AttrExtended != 0 {
		count, err := r.GetU32()
		if err != nil {
			return s, err
		}
		for i := uint32(0); i < count; i++ {
			if _, err := r.GetStr(); err != nil {
				return s, err
			}
			if _, err := r.GetStr(); err != nil {
				return s, err
			}
		}
		s.ExtendedLeftover = int(count)
	}

	return s, nil
}

// AttrMaskFor returns the attribute flags this client requests for
// stat/fstat : SIZE|MODIFYTIME for
// version > 4, else SIZE|ACMODTIME.
func AttrMaskFor(version uint32) uint32 {
	if version > 4 {
		return AttrSize | AttrModifyTime
	}
	return AttrSize | AttrACModTime
}
