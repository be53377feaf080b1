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

// Package wire implements the SFTP binary framing: big-endian
// length-prefixed messages, the elementary encode/decode primitives and
// the file-attribute block codec.
package wire

// Type is the SFTP packet type byte.
type Type byte

const (
	TypeInit     Type = 1
	TypeVersion  Type = 2
	TypeOpen     Type = 3
	TypeClose    Type = 4
	TypeRead     Type = 5
	TypeWrite    Type = 6
	TypeLstat    Type = 7
	TypeFstat    Type = 8
	TypeSetstat  Type = 9
	TypeFsetstat Type = 10
	TypeOpendir  Type = 11
	TypeReaddir  Type = 12
	TypeRemove   Type = 13
	TypeMkdir    Type = 14
	TypeRmdir    Type = 15
	TypeRealpath Type = 16
	TypeStat     Type = 17
	TypeRename   Type = 18
	TypeReadlink Type = 19
	TypeSymlink  Type = 20
	TypeLink     Type = 21
	TypeBlock    Type = 22
	TypeUnblock  Type = 23

	TypeStatus Type = 101
	TypeHandle Type = 102
	TypeData   Type = 103
	TypeName   Type = 104
	TypeAttrs  Type = 105

	TypeExtended      Type = 200
	TypeExtendedReply Type = 201
)

// MaxFrameSize is the default session maximum total encoded frame
// length.
const MaxFrameSize = 256 * 1024

// Frame is one decoded on-wire message: 4-byte length prefix (not
// stored here, only implied by len(Payload)+5), 1-byte type, 4-byte
// request id, and the type-dependent payload. INIT/VERSION frames
// carry no request id on the wire; callers special-case those two.
type Frame struct {
	Type      Type
	RequestID uint32
	Payload   []byte
}

// OpenFlags (version <= 4).
const (
	OpenFlagRead   uint32 = 1
	OpenFlagWrite  uint32 = 2
	OpenFlagAppend uint32 = 4
	OpenFlagCreat  uint32 = 8
	OpenFlagTrunc  uint32 = 16
	OpenFlagExcl   uint32 = 32
)

// Access mask, version > 4.
const (
	AccessReadData   uint32 = 1
	AccessWriteData  uint32 = 2
	AccessAppendData uint32 = 4
)

// Rename flags, version > 5.
const (
	RenameOverwrite uint32 = 1
	RenameAtomic    uint32 = 2
)

// Attribute flag bits. Bit-exact with the
// SSH file transfer draft.
const (
	AttrSize        uint32 = 0x00000001
	AttrUIDGID      uint32 = 0x00000002
	AttrPermissions uint32 = 0x00000004
	AttrACModTime   uint32 = 0x00000008 // version < 4
	AttrAccessTime  uint32 = 0x00000008 // version >= 4, same bit
	AttrCreateTime  uint32 = 0x00000010
	AttrModifyTime  uint32 = 0x00000020
	AttrSubSecond   uint32 = 0x00000040
	AttrOwnerGroup  uint32 = 0x00000080
	AttrBits        uint32 = 0x00000200
	AttrAllocation  uint32 = 0x00000400
	AttrCTime       uint32 = 0x00008000
	AttrExtended    uint32 = 0x80000000
)

// File type codes used for version >= 4 attribute blocks.
const (
	FileTypeRegular Type = 1
	FileTypeDir     Type = 2
	FileTypeSymlink Type = 3
	FileTypeSpecial Type = 4
	FileTypeUnknown Type = 5
	FileTypeSocket  Type = 6
	FileTypeChar    Type = 7
	FileTypeBlock   Type = 8
	FileTypeFifo    Type = 9
)
