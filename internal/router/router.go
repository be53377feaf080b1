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

// Package router matches incoming SFTP reply frames to outstanding
// request ids, parking unmatched frames in a bounded side-buffer.
package router

import (
	"time"

	"fileripper/internal/core"
	"fileripper/internal/wire"
)

// FrameReader is the subset of transport.ChildTransport the router
// needs: read one length-prefixed frame off the wire, plus a
// non-blocking probe used by GetWriteReply.
type FrameReader interface {
	ReadExact(n int, deadline time.Duration) ([]byte, error)
	TryReadFrame(n int) ([]byte, error)
}

// Router parks out-of-order replies and serves get_reply(id) /
// get_write_reply(id) against a bounded side-buffer.
type Router struct {
	t          FrameReader
	deadline   time.Duration
	sideBuffer []wire.Frame
	capacity   int
}

// New builds a Router reading frames from t. capacity bounds the
// side-buffer ; exceeding it is fatal.
func New(t FrameReader, deadline time.Duration, capacity int) *Router {
	if capacity <= 0 {
		capacity = 256
	}
	return &Router{t: t, deadline: deadline, capacity: capacity}
}

// readOne reads one framed message off the wire: 4-byte length, then
// that many body bytes, then splits it into a Frame.
func (rt *Router) readOne() (wire.Frame, error) {
	lenBytes, err := rt.t.ReadExact(4, rt.deadline)
	if err != nil {
		return wire.Frame{}, err
	}
	bodyLen := wire.DecodeHeader([4]byte(lenBytes))
	if int(bodyLen) > wire.MaxFrameSize {
		return wire.Frame{}, core.ErrOversizedFrame
	}
	body, err := rt.t.ReadExact(int(bodyLen), rt.deadline)
	if err != nil {
		return wire.Frame{}, err
	}
	return wire.DecodeBody(body, true)
}

// ReadVersionFrame reads the one frame during negotiation that carries
// no request id (the server's VERSION reply).
func (rt *Router) ReadVersionFrame() (wire.Frame, error) {
	lenBytes, err := rt.t.ReadExact(4, rt.deadline)
	if err != nil {
		return wire.Frame{}, err
	}
	bodyLen := wire.DecodeHeader([4]byte(lenBytes))
	body, err := rt.t.ReadExact(int(bodyLen), rt.deadline)
	if err != nil {
		return wire.Frame{}, err
	}
	return wire.DecodeBody(body, false)
}

func (rt *Router) takeParked(id uint32) (wire.Frame, bool) {
	for i, f := range rt.sideBuffer {
		if f.RequestID == id {
			rt.sideBuffer = append(rt.sideBuffer[:i], rt.sideBuffer[i+1:]...)
			return f, true
		}
	}
	return wire.Frame{}, false
}

func (rt *Router) park(f wire.Frame) error {
	if len(rt.sideBuffer) >= rt.capacity {
		return core.ErrReplyQueueFull
	}
	rt.sideBuffer = append(rt.sideBuffer, f)
	return nil
}

// GetReply returns the frame matching id: first from the side-buffer,
// else by reading frames off the wire (parking any mismatches) until it
// arrives.
func (rt *Router) GetReply(id uint32) (wire.Frame, error) {
	if f, ok := rt.takeParked(id); ok {
		return f, nil
	}
	for {
		f, err := rt.readOne()
		if err != nil {
			return wire.Frame{}, err
		}
		if f.RequestID == id {
			return f, nil
		}
		if err := rt.park(f); err != nil {
			return wire.Frame{}, err
		}
	}
}

// WriteCredit is how a pending-write window gets told a given request
// id was acknowledged; see internal/sftpclient's pendingWriteWindow.
type WriteCredit func(id uint32, f wire.Frame)

// GetWriteReply drains all currently pending write-acks opportunistically:
// it reads available frames (zero-timeout readiness probe) and credits
// any that match a pending write id via credit, until id itself is seen
// or there is nothing left ready to read; then it falls back to a
// blocking read for id (bounded by the transport deadline, parking any
// other frame that arrives first) and credits it. pending reports
// whether any write ids are still outstanding.
func (rt *Router) GetWriteReply(id uint32, credit WriteCredit, pending func() bool) (wire.Frame, error) {
	if f, ok := rt.takeParked(id); ok {
		credit(id, f)
		return f, nil
	}
	for {
		f, err := rt.readOneNonBlocking()
		if err != nil {
			return wire.Frame{}, err
		}
		if f == nil {
			if !pending() {
				// nothing ready and nothing outstanding: fall back to a
				// blocking read for id itself.
				return rt.GetReply(id)
			}
			rf, err := rt.GetReply(id)
			if err != nil {
				return wire.Frame{}, err
			}
			credit(id, rf)
			return rf, nil
		}
		if f.RequestID == id {
			credit(id, *f)
			return *f, nil
		}
		credit(f.RequestID, *f)
	}
}

// readOneNonBlocking probes the transport's already-buffered bytes for
// a complete frame without blocking, a zero-timeout readiness probe;
// it returns (nil, nil) when nothing is ready.
func (rt *Router) readOneNonBlocking() (*wire.Frame, error) {
	lenBytes, err := rt.t.TryReadFrame(4)
	if err != nil {
		return nil, err
	}
	if lenBytes == nil {
		return nil, nil
	}
	bodyLen := wire.DecodeHeader([4]byte(lenBytes))
	if int(bodyLen) > wire.MaxFrameSize {
		return nil, core.ErrOversizedFrame
	}
	// The length prefix is already buffered, so the body is either
	// already fully buffered too (common case: server wrote the whole
	// frame in one go) or arriving imminently; a bounded blocking read
	// here is the documented fallback.
	body, err := rt.t.ReadExact(int(bodyLen), rt.deadline)
	if err != nil {
		return nil, err
	}
	f, err := wire.DecodeBody(body, true)
	if err != nil {
		return nil, err
	}
	return &f, nil
}
