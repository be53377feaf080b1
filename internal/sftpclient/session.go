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

// Package sftpclient implements the request/response SFTP session
// state machine: init, pwd/cd, open/read/write/close, dir listing,
// stat, mkdir/rename/delete, chmod, set-time, noop, quit, including
// the pipelined multi-read and pending-write windows.
package sftpclient

import (
	"sync"
	"time"

	"fileripper/internal/core"
	"fileripper/internal/router"
	"fileripper/internal/transport"
	"fileripper/internal/wire"

	"github.com/pkg/errors"
)

// ClientVersion is the highest protocol version this client speaks.
const ClientVersion = 6

// extensions this client recognizes during negotiation.
var knownExtensions = map[string]bool{
	"posix-rename@openssh.com": true,
	"statvfs@openssh.com":      true,
	"fstatvfs@openssh.com":     true,
	"hardlink@openssh.com":     true,
	"fsync@openssh.com":        true,
}

// state is the coarse FSM position of a session.
type state int

const (
	stateStart state = iota
	stateInitSent
	stateVersionRcvd
	stateReady
	stateEnd
)

// Session is the per-connection SFTP client state. It is owned
// exclusively by the worker goroutine that created it.
type Session struct {
	t  *transport.ChildTransport
	rt *router.Router

	mu sync.Mutex

	state   state
	version uint32
	// extension name -> announced version string, cached at negotiation.
	extensions map[string]string

	nextRequestID uint32

	cwd string

	openFile *fileHandle
	openDir  *dirHandle

	cachedStat wire.Stat

	deadline time.Duration

	sessionMax int
}

type fileHandle struct {
	handle       string
	offset       uint64
	pendingWrite *pendingWriteWindow
	pendingRead  *pendingReadWindow

	// writeErr latches the first non-OK status seen crediting a
	// pending write. Once set, every later Write/Flush/CloseFile call
	// returns it instead of making further progress.
	writeErr error
}

type dirHandle struct {
	handle  string
	entries []DirEntry
	pos     int
	eof     bool
}

// DirEntry is one decoded READDIR entry.
type DirEntry struct {
	Name string
	Stat wire.Stat
}

// Options configures session construction.
type Options struct {
	Deadline           time.Duration
	ReplyQueueCapacity int
	SessionMax         int
}

// New wraps an already-open child transport in a fresh, unnegotiated
// session.
func New(t *transport.ChildTransport, opts Options) *Session {
	if opts.Deadline <= 0 {
		opts.Deadline = 120 * time.Second
	}
	if opts.SessionMax <= 0 {
		opts.SessionMax = wire.MaxFrameSize
	}
	return &Session{
		t:          t,
		rt:         router.New(t, opts.Deadline, opts.ReplyQueueCapacity),
		state:      stateStart,
		extensions: map[string]string{},
		deadline:   opts.Deadline,
		sessionMax: opts.SessionMax,
		cwd:        ".",
	}
}

func (s *Session) allocID() uint32 {
	s.nextRequestID++
	return s.nextRequestID
}

func (s *Session) send(t wire.Type, id uint32, payload []byte) error {
	raw := wire.EncodeFrame(wire.Frame{Type: t, RequestID: id, Payload: payload}, true)
	return s.t.WriteAll(raw, s.deadline)
}

// statusFromFrame decodes a STATUS payload into a *core.RemoteStatusError,
// or nil if the code is StatusOK.
func statusFromFrame(f wire.Frame) error {
	r := wire.NewReader(f.Payload, wire.MaxFrameSize)
	code, err := r.GetU32()
	if err != nil {
		return errors.Wrap(core.ErrUnexpectedFrameType, "decoding status code")
	}
	msg, _ := r.GetString()
	if core.StatusCode(code) == core.StatusOK {
		return nil
	}
	return &core.RemoteStatusError{Code: core.StatusCode(code), Message: msg}
}

// expectStatusOK reads the reply for id and requires it to be an OK
// STATUS frame.
func (s *Session) expectStatusOK(id uint32, op string) error {
	f, err := s.rt.GetReply(id)
	if err != nil {
		return err
	}
	if f.Type != wire.TypeStatus {
		return errors.Wrapf(core.ErrUnexpectedFrameType, "%s: got type %d", op, f.Type)
	}
	if err := statusFromFrame(f); err != nil {
		return errors.Wrap(err, op)
	}
	return nil
}

// Negotiate performs INIT -> VERSION negotiation.
func (s *Session) Negotiate() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != stateStart {
		return errors.New("session already negotiated")
	}

	w := wire.NewWriter()
	w.PutU32(ClientVersion)
	raw := wire.EncodeFrame(wire.Frame{Type: wire.TypeInit, Payload: w.Bytes()}, false)
	if err := s.t.WriteAll(raw, s.deadline); err != nil {
		return errors.Wrap(err, "sending init")
	}
	s.state = stateInitSent

	f, err := s.rt.ReadVersionFrame()
	if err != nil {
		return errors.Wrap(err, "reading version")
	}
	if f.Type != wire.TypeVersion {
		return errors.Wrap(core.ErrUnexpectedFrameType, "expected VERSION")
	}

	r := wire.NewReader(f.Payload, s.sessionMax)
	serverVersion, err := r.GetU32()
	if err != nil {
		return errors.Wrap(err, "decoding server version")
	}
	negotiated := serverVersion
	if ClientVersion < negotiated {
		negotiated = ClientVersion
	}
	s.version = negotiated

	for r.Remaining() > 0 {
		name, err := r.GetString()
		if err != nil {
			break
		}
		value, err := r.GetString()
		if err != nil {
			break
		}
		if knownExtensions[name] {
			s.extensions[name] = value
		}
		// Unrecognized extension pairs are skipped.
	}

	s.state = stateVersionRcvd
	s.state = stateReady
	return nil
}

// Version returns the negotiated protocol version.
func (s *Session) Version() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// HasExtension reports whether the server announced ext during
// negotiation.
func (s *Session) HasExtension(ext string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.extensions[ext]
	return ok
}

// Noop is executed as stat(".") because the protocol has no dedicated
// no-op.
func (s *Session) Noop() error {
	_, err := s.Stat(".")
	return err
}

// Quit frees per-session allocations and closes the transport.
// Reaping the child helper is the caller's (internal/network's)
// responsibility once the channel is closed.
func (s *Session) Quit() error {
	s.mu.Lock()
	s.state = stateEnd
	s.openFile = nil
	s.openDir = nil
	s.mu.Unlock()
	return s.t.Close()
}
