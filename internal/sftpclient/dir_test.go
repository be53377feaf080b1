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

package sftpclient

import (
	"net"
	"testing"
	"time"

	"fileripper/internal/core"
	"fileripper/internal/transport"
	"fileripper/internal/wire"

	"github.com/stretchr/testify/require"
)

// fakeServer plays the remote half of a net.Pipe, decoding one frame at
// a time and handing it to fn for a scripted reply.
type fakeServer struct {
	conn net.Conn
}

func (fs *fakeServer) next() wire.Frame {
	lenBytes, err := readN(fs.conn, 4)
	if err != nil {
		return wire.Frame{}
	}
	length := uint32(lenBytes[0])<<24 | uint32(lenBytes[1])<<16 | uint32(lenBytes[2])<<8 | uint32(lenBytes[3])
	body, err := readN(fs.conn, int(length))
	if err != nil {
		return wire.Frame{}
	}
	f, _ := wire.DecodeBody(body, true)
	return f
}

func (fs *fakeServer) reply(f wire.Frame) {
	raw := wire.EncodeFrame(f, true)
	_, _ = fs.conn.Write(raw)
}

func readN(conn net.Conn, n int) ([]byte, error) {
	out := make([]byte, n)
	got := 0
	for got < n {
		m, err := conn.Read(out[got:])
		got += m
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func newTestSession(t *testing.T) (*Session, *fakeServer) {
	t.Helper()
	clientConn, serverConn := net.Pipe()
	t.Cleanup(func() {
		_ = clientConn.Close()
		_ = serverConn.Close()
	})
	tr := transport.New(clientConn, clientConn, clientConn)
	s := New(tr, Options{Deadline: 2 * time.Second, ReplyQueueCapacity: 8})
	s.version = 3
	s.state = stateReady
	return s, &fakeServer{conn: serverConn}
}

func TestReadDirSingleBatchThenEOF(t *testing.T) {
	s, fs := newTestSession(t)

	go func() {
		open := fs.next()
		require.Equal(t, wire.TypeOpendir, open.Type)
		fs.reply(wire.Frame{Type: wire.TypeHandle, RequestID: open.RequestID, Payload: func() []byte {
			w := wire.NewWriter()
			w.PutString("dh-1")
			return w.Bytes()
		}()})

		readdir1 := fs.next()
		require.Equal(t, wire.TypeReaddir, readdir1.Type)
		w := wire.NewWriter()
		w.PutU32(2)
		w.PutString("a.txt")
		w.EncodeAttrs(wire.Stat{Flags: wire.AttrSize, Size: 10}, 3)
		w.PutString("b.txt")
		w.EncodeAttrs(wire.Stat{Flags: wire.AttrSize, Size: 20}, 3)
		fs.reply(wire.Frame{Type: wire.TypeName, RequestID: readdir1.RequestID, Payload: w.Bytes()})

		readdir2 := fs.next()
		require.Equal(t, wire.TypeReaddir, readdir2.Type)
		status := wire.NewWriter()
		status.PutU32(uint32(core.StatusEOF))
		status.PutString("eof")
		fs.reply(wire.Frame{Type: wire.TypeStatus, RequestID: readdir2.RequestID, Payload: status.Bytes()})

		closeReq := fs.next()
		require.Equal(t, wire.TypeClose, closeReq.Type)
		okStatus := wire.NewWriter()
		okStatus.PutU32(uint32(core.StatusOK))
		okStatus.PutString("")
		fs.reply(wire.Frame{Type: wire.TypeStatus, RequestID: closeReq.RequestID, Payload: okStatus.Bytes()})
	}()

	require.NoError(t, s.OpenDir("/remote/dir"))

	e1, ok, err := s.ReadDir()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "a.txt", e1.Name)
	require.EqualValues(t, 10, e1.Stat.Size)

	e2, ok, err := s.ReadDir()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "b.txt", e2.Name)

	_, ok, err = s.ReadDir()
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.CloseDir())
}
