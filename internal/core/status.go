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

import "fmt"

// StatusCode is the numeric code carried by an SFTP STATUS frame.
type StatusCode uint32

// Wire values, bit-exact with the SSH file transfer draft this
// protocol follows.
const (
	StatusOK                    StatusCode = 0
	StatusEOF                   StatusCode = 1
	StatusNoSuchFile            StatusCode = 2
	StatusPermissionDenied      StatusCode = 3
	StatusFailure               StatusCode = 4
	StatusBadMessage            StatusCode = 5
	StatusNoConnection          StatusCode = 6
	StatusConnectionLost        StatusCode = 7
	StatusOpUnsupported         StatusCode = 8
	StatusInvalidHandle         StatusCode = 9
	StatusNoSuchPath            StatusCode = 10
	StatusFileAlreadyExists     StatusCode = 11
	StatusWriteProtect          StatusCode = 12
	StatusNoMedia               StatusCode = 13
	StatusNoSpaceOnFilesystem   StatusCode = 14
	StatusQuotaExceeded         StatusCode = 15
	StatusUnknownPrincipal      StatusCode = 16
	StatusLockConflict          StatusCode = 17
	StatusDirNotEmpty           StatusCode = 18
	StatusNotADirectory         StatusCode = 19
	StatusInvalidFilename       StatusCode = 20
	StatusLinkLoop              StatusCode = 21
	StatusCannotDelete          StatusCode = 22
	StatusInvalidParameter      StatusCode = 23
	StatusFileIsADirectory      StatusCode = 24
	StatusByteRangeLockConflict StatusCode = 25
	StatusByteRangeLockRefused  StatusCode = 26
	StatusDeletePending         StatusCode = 27
	StatusFileCorrupt           StatusCode = 28
	StatusOwnerInvalid          StatusCode = 29
	StatusGroupInvalid          StatusCode = 30
	StatusNoMatchingByteRange   StatusCode = 31
)

var statusNames = map[StatusCode]string{
	StatusOK:                    "OK",
	StatusEOF:                   "EOF",
	StatusNoSuchFile:            "NO_SUCH_FILE",
	StatusPermissionDenied:      "PERMISSION_DENIED",
	StatusFailure:               "FAILURE",
	StatusBadMessage:            "BAD_MESSAGE",
	StatusNoConnection:          "NO_CONNECTION",
	StatusConnectionLost:        "CONNECTION_LOST",
	StatusOpUnsupported:         "OP_UNSUPPORTED",
	StatusInvalidHandle:         "INVALID_HANDLE",
	StatusNoSuchPath:            "NO_SUCH_PATH",
	StatusFileAlreadyExists:     "FILE_ALREADY_EXISTS",
	StatusWriteProtect:          "WRITE_PROTECT",
	StatusNoMedia:               "NO_MEDIA",
	StatusNoSpaceOnFilesystem:   "NO_SPACE_ON_FILESYSTEM",
	StatusQuotaExceeded:         "QUOTA_EXCEEDED",
	StatusUnknownPrincipal:      "UNKNOWN_PRINCIPAL",
	StatusLockConflict:          "LOCK_CONFLICT",
	StatusDirNotEmpty:           "DIR_NOT_EMPTY",
	StatusNotADirectory:         "NOT_A_DIRECTORY",
	StatusInvalidFilename:       "INVALID_FILENAME",
	StatusLinkLoop:              "LINK_LOOP",
	StatusCannotDelete:          "CANNOT_DELETE",
	StatusInvalidParameter:      "INVALID_PARAMETER",
	StatusFileIsADirectory:      "FILE_IS_A_DIRECTORY",
	StatusByteRangeLockConflict: "BYTE_RANGE_LOCK_CONFLICT",
	StatusByteRangeLockRefused:  "BYTE_RANGE_LOCK_REFUSED",
	StatusDeletePending:         "DELETE_PENDING",
	StatusFileCorrupt:           "FILE_CORRUPT",
	StatusOwnerInvalid:          "OWNER_INVALID",
	StatusGroupInvalid:          "GROUP_INVALID",
	StatusNoMatchingByteRange:   "NO_MATCHING_BYTE_RANGE_LOCK",
}

func (c StatusCode) String() string {
	if n, ok := statusNames[c]; ok {
		return n
	}
	return fmt.Sprintf("STATUS(%d)", uint32(c))
}

// RemoteStatusError wraps a non-OK SFTP status reply, EOF included
// (IsEOF tells EOF apart). Codec and
// transport errors never use this type; only remote-status replies do.
type RemoteStatusError struct {
	Code    StatusCode
	Message string
}

func (e *RemoteStatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("remote status %s", e.Code)
	}
	return fmt.Sprintf("remote status %s: %s", e.Code, e.Message)
}

// IsEOF reports whether err is the benign EOF remote status.
func IsEOF(err error) bool {
	rse, ok := err.(*RemoteStatusError)
	return ok && rse.Code == StatusEOF
}
