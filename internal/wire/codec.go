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

import (
	"encoding/binary"

	"fileripper/internal/core"

	"github.com/pkg/errors"
)

// Writer accumulates payload bytes for one outgoing packet. The zero
// value is ready to use.
type Writer struct {
	buf []byte
}

func NewWriter() *Writer { return &Writer{} }

func (w *Writer) Bytes() []byte { return w.buf }

// PutU32 appends a big-endian uint32. Always 4 bytes on the wire.
func (w *Writer) PutU32(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

// PutU64 appends a big-endian uint64. Always 8 bytes on the wire; on a
// host without true 64-bit math this would zero the high half on
// encode, but Go's uint64 is always full width so there is nothing to
// special-case here.
func (w *Writer) PutU64(v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

// PutByte appends a single byte.
func (w *Writer) PutByte(b byte) {
	w.buf = append(w.buf, b)
}

// PutStr appends a 4-byte length prefix followed by raw bytes.
func (w *Writer) PutStr(s []byte) {
	w.PutU32(uint32(len(s)))
	w.buf = append(w.buf, s...)
}

func (w *Writer) PutString(s string) {
	w.PutStr([]byte(s))
}

// Reader decodes the elementary payload pieces from a packet body.
type Reader struct {
	buf        []byte
	off        int
	sessionMax int
}

// NewReader wraps buf for decoding. sessionMax bounds GetStr's
// allowed length; pass 0 to use MaxFrameSize.
func NewReader(buf []byte, sessionMax int) *Reader {
	if sessionMax <= 0 {
		sessionMax = MaxFrameSize
	}
	return &Reader{buf: buf, sessionMax: sessionMax}
}

func (r *Reader) Remaining() int { return len(r.buf) - r.off }

func (r *Reader) need(n int) error {
	if r.Remaining() < n {
		return errors.Wrap(core.ErrOversizedFrame, "short payload")
	}
	return nil
}

// GetU32 decodes a big-endian uint32.
func (r *Reader) GetU32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(r.buf[r.off:])
	r.off += 4
	return v, nil
}

// GetU64 decodes a big-endian uint64.
func (r *Reader) GetU64() (uint64, error) {
	if err := r.need(8); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint64(r.buf[r.off:])
	r.off += 8
	return v, nil
}

func (r *Reader) GetByte() (byte, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	b := r.buf[r.off]
	r.off++
	return b, nil
}

// GetStr decodes a 4-byte length prefix followed by raw bytes. Fails
// with core.ErrOversizedString if the announced length exceeds the
// session maximum.
func (r *Reader) GetStr() ([]byte, error) {
	n, err := r.GetU32()
	if err != nil {
		return nil, err
	}
	if int(n) > r.sessionMax {
		return nil, core.ErrOversizedString
	}
	if err := r.need(int(n)); err != nil {
		return nil, err
	}
	s := r.buf[r.off : r.off+int(n)]
	r.off += int(n)
	return s, nil
}

func (r *Reader) GetString() (string, error) {
	b, err := r.GetStr()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Skip advances the cursor n bytes without interpreting them, used to
// tolerate unknown attribute flag bits of a documented width.
func (r *Reader) Skip(n int) error {
	if err := r.need(n); err != nil {
		return err
	}
	r.off += n
	return nil
}

// EncodeFrame produces the full on-wire bytes for a frame: 4-byte
// length, 1-byte type, 4-byte request id (omitted for INIT/VERSION,
// whose payload already begins with the version number), then payload.
func EncodeFrame(f Frame, hasRequestID bool) []byte {
	bodyLen := 1 + len(f.Payload)
	if hasRequestID {
		bodyLen += 4
	}
	out := make([]byte, 4+bodyLen)
	binary.BigEndian.PutUint32(out[0:4], uint32(bodyLen))
	out[4] = byte(f.Type)
	i := 5
	if hasRequestID {
		binary.BigEndian.PutUint32(out[i:i+4], f.RequestID)
		i += 4
	}
	copy(out[i:], f.Payload)
	return out
}

// DecodeHeader parses the 4-byte length prefix out of buf, returning
// the body length it announces.
func DecodeHeader(lengthBytes [4]byte) uint32 {
	return binary.BigEndian.Uint32(lengthBytes[:])
}

// DecodeBody splits a frame body (post length-prefix) into type,
// request id, and remaining payload. hasRequestID must be false only
// for the very first VERSION reply.
func DecodeBody(body []byte, hasRequestID bool) (Frame, error) {
	if len(body) < 1 {
		return Frame{}, errors.Wrap(core.ErrUnexpectedFrameType, "empty body")
	}
	f := Frame{Type: Type(body[0])}
	i := 1
	if hasRequestID {
		if len(body) < 5 {
			return Frame{}, errors.Wrap(core.ErrOversizedFrame, "body too short for request id")
		}
		f.RequestID = binary.BigEndian.Uint32(body[1:5])
		i = 5
	}
	f.Payload = body[i:]
	return f, nil
}
