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

import "errors"

// Common errors for the application.
// We define them here to avoid magic strings in the UI.
var (
	ErrConnectionFailed = errors.New("connection_failed")
	ErrHostUnreachable  = errors.New("host_unreachable")
	ErrAuthFailed       = errors.New("authentication_failed")

	// PFTE specific
	ErrPipelineStalled = errors.New("pipeline_stalled")

	// System
	ErrUnknownCommand = errors.New("unknown_command")

	// Transport
	ErrPeerReset        = errors.New("peer_reset")
	ErrPipeClosed       = errors.New("pipe_closed")
	ErrTimeout          = errors.New("timeout")
	ErrShortWrite       = errors.New("short_write")
	ErrConnectionClosed = errors.New("connection_closed")

	// Protocol
	ErrUnexpectedFrameType = errors.New("unexpected_frame_type")
	ErrOversizedFrame      = errors.New("oversized_frame")
	ErrOversizedString     = errors.New("oversized_string")
	ErrReplyQueueFull      = errors.New("reply_queue_full")

	// Supervisor
	ErrWorkdirMissing    = errors.New("workdir_missing")
	ErrFifoOpenFailed    = errors.New("fifo_open_failed")
	ErrStatusMapMismatch = errors.New("status_map_mismatch")
	ErrChildSpawnFailed  = errors.New("child_spawn_failed")
	ErrQueueOverflow     = errors.New("queue_overflow")
	ErrHeartbeatStuck    = errors.New("heartbeat_stuck")
	ErrAlreadyRunning    = errors.New("already_running")
	ErrChildAbnormalExit = errors.New("child_abnormal_exit")

	// Retrieve list
	ErrRowLocked     = errors.New("row_locked")
	ErrListClosed    = errors.New("list_closed")
	ErrInvalidState  = errors.New("invalid_state")
	ErrQuotaExceeded = errors.New("quota_exceeded")
)
