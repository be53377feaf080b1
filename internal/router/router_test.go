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

package router

import (
	"bytes"
	"testing"
	"time"

	"fileripper/internal/core"
	"fileripper/internal/wire"

	"github.com/stretchr/testify/require"
)

// fakeReader is a minimal in-memory FrameReader driven from a
// pre-built byte stream, standing in for transport.ChildTransport.
type fakeReader struct {
	buf *bytes.Buffer
}

func (f *fakeReader) ReadExact(n int, _ time.Duration) ([]byte, error) {
	out := make([]byte, n)
	if _, err := f.buf.Read(out); err != nil {
		return nil, core.ErrConnectionClosed
	}
	return out, nil
}

func (f *fakeReader) TryReadFrame(n int) ([]byte, error) {
	if f.buf.Len() < n {
		return nil, nil
	}
	return f.ReadExact(n, 0)
}

func frameBytes(id uint32, t wire.Type, payload []byte) []byte {
	return wire.EncodeFrame(wire.Frame{Type: t, RequestID: id, Payload: payload}, true)
}

func TestGetReplyOutOfOrderParking(t *testing.T) {
	buf := &bytes.Buffer{}
	// Reply for id=2 arrives before id=1's reply.
	buf.Write(frameBytes(2, wire.TypeStatus, []byte{0}))
	buf.Write(frameBytes(1, wire.TypeStatus, []byte{0}))

	rt := New(&fakeReader{buf: buf}, time.Second, 4)

	f2, err := rt.GetReply(2)
	require.NoError(t, err)
	require.Equal(t, uint32(2), f2.RequestID)

	f1, err := rt.GetReply(1)
	require.NoError(t, err)
	require.Equal(t, uint32(1), f1.RequestID)
}

func TestGetReplySideBufferOverflow(t *testing.T) {
	buf := &bytes.Buffer{}
	for i := uint32(2); i < 6; i++ {
		buf.Write(frameBytes(i, wire.TypeStatus, []byte{0}))
	}
	rt := New(&fakeReader{buf: buf}, time.Second, 2)

	_, err := rt.GetReply(1) // never arrives; all frames get parked
	require.ErrorIs(t, err, core.ErrReplyQueueFull)
}

func TestGetReplyEachIDExactlyOnce(t *testing.T) {
	buf := &bytes.Buffer{}
	buf.Write(frameBytes(1, wire.TypeStatus, []byte{0}))
	buf.Write(frameBytes(2, wire.TypeStatus, []byte{0}))
	rt := New(&fakeReader{buf: buf}, time.Second, 4)

	_, err := rt.GetReply(1)
	require.NoError(t, err)
	_, err = rt.GetReply(2)
	require.NoError(t, err)
	require.Empty(t, rt.sideBuffer)
}
