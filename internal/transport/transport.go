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

// Package transport owns the bidirectional byte pipe to the spawned
// remote-shell helper. The helper here is an SSH "sftp" subsystem
// channel opened by internal/network, not a local fork/exec child,
// but the contract is identical either way: a deadline-bounded
// read/write pipe with a sticky reset flag. Shutdown closes the
// channel; no bounded wait for, or force-kill of, the helper is done.
package transport

import (
	"bytes"
	"io"
	"sync"
	"time"

	"fileripper/internal/core"

	"github.com/pkg/errors"
)

// Closer is satisfied by the underlying channel; it lets the transport
// reap the helper on shutdown without importing the ssh package.
type Closer interface {
	Close() error
}

// ChildTransport wraps one read side and one write side of a byte pipe
// bound to a remote-shell helper process, with per-call deadlines.
//
// Reads are served by a single background pump goroutine that owns the
// only call into the underlying io.Reader. ReadExact/TryReadFrame then wait
// on that pump's buffer instead of racing their own goroutine against a
// timer — if they raced directly, a timed-out read would still be
// in-flight against the shared stream and would silently steal bytes
// from the next call. The pump makes "give up waiting" and "stop
// reading the stream" independent.
type ChildTransport struct {
	r io.Reader
	w io.Writer
	c Closer

	mu        sync.Mutex
	cond      *sync.Cond
	buf       bytes.Buffer
	pumpErr   error
	resetFlag bool
}

// New wraps an already-connected duplex pipe. r and w are typically the
// two halves of one ssh.Channel; c closes that channel.
func New(r io.Reader, w io.Writer, c Closer) *ChildTransport {
	t := &ChildTransport{r: r, w: w, c: c}
	t.cond = sync.NewCond(&t.mu)
	go t.pump()
	return t
}

func (t *ChildTransport) pump() {
	chunk := make([]byte, 32*1024)
	for {
		n, err := t.r.Read(chunk)
		t.mu.Lock()
		if n > 0 {
			t.buf.Write(chunk[:n])
		}
		if err != nil {
			t.pumpErr = err
			t.cond.Broadcast()
			t.mu.Unlock()
			return
		}
		t.cond.Broadcast()
		t.mu.Unlock()
	}
}

type ioWriterAdapter struct{ w io.Writer }

func (a ioWriterAdapter) Write(p []byte) (int, error) { return a.w.Write(p) }

// WriteAll blocks until all of p is written, the deadline expires, or
// the peer closes.
func (t *ChildTransport) WriteAll(p []byte, deadline time.Duration) error {
	type result struct {
		n   int
		err error
	}
	done := make(chan result, 1)
	go func() {
		n, err := io.WriteString(ioWriterAdapter{t.w}, string(p))
		done <- result{n, err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			t.markReset()
			if res.err == io.ErrClosedPipe || res.err == io.EOF {
				return core.ErrConnectionClosed
			}
			return errors.Wrap(res.err, "write_all")
		}
		if res.n != len(p) {
			return core.ErrShortWrite
		}
		return nil
	case <-time.After(deadline):
		t.markReset()
		return core.ErrTimeout
	}
}

// ReadExact blocks until n bytes have been read, the deadline expires,
// or the peer closes. On end-of-stream returns core.ErrConnectionClosed.
// End-of-stream, any other read error and a timeout all set the sticky
// reset flag.
func (t *ChildTransport) ReadExact(n int, deadline time.Duration) ([]byte, error) {
	deadlineAt := time.Now().Add(deadline)

	t.mu.Lock()
	defer t.mu.Unlock()
	for {
		if t.buf.Len() >= n {
			out := make([]byte, n)
			_, _ = t.buf.Read(out)
			return out, nil
		}
		if t.pumpErr != nil {
			t.resetFlag = true
			if t.pumpErr == io.EOF {
				return nil, core.ErrConnectionClosed
			}
			return nil, errors.Wrap(t.pumpErr, "read_exact")
		}
		remaining := time.Until(deadlineAt)
		if remaining <= 0 {
			t.resetFlag = true
			return nil, core.ErrTimeout
		}
		t.waitWithTimeout(remaining)
	}
}

// TryReadFrame attempts to read n bytes without blocking past a tiny
// readiness probe. It returns (nil, nil) rather than an error when
// not enough data is buffered yet — unlike ReadExact, this never
// consumes partial state because it only ever reads from the pump's
// already-filled buffer.
func (t *ChildTransport) TryReadFrame(n int) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.buf.Len() >= n {
		out := make([]byte, n)
		_, _ = t.buf.Read(out)
		return out, nil
	}
	if t.pumpErr != nil {
		t.resetFlag = true
		if t.pumpErr == io.EOF {
			return nil, core.ErrConnectionClosed
		}
		return nil, errors.Wrap(t.pumpErr, "try_read_frame")
	}
	return nil, nil
}

// waitWithTimeout blocks on t.cond until broadcast or remaining elapses.
// Must be called with t.mu held; re-acquires it before returning.
func (t *ChildTransport) waitWithTimeout(remaining time.Duration) {
	timer := time.AfterFunc(remaining, func() {
		t.mu.Lock()
		t.cond.Broadcast()
		t.mu.Unlock()
	})
	defer timer.Stop()
	t.cond.Wait()
}

func (t *ChildTransport) markReset() {
	t.mu.Lock()
	t.resetFlag = true
	t.mu.Unlock()
}

// TimedOut reports whether a prior call observed a timeout or reset.
// Sticky for the lifetime of the transport, matching the legacy
// process-global timeout_flag this abstracts.
func (t *ChildTransport) TimedOut() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.resetFlag
}

// Close closes both ends of the pipe by closing the underlying channel
// and returns its error. It does not wait for the helper to exit and
// does not kill it; internal/network only closes the ssh.Client after
// the session quits, likewise without a bounded wait or force-kill.
func (t *ChildTransport) Close() error {
	return t.c.Close()
}
