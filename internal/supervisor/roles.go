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

// Package supervisor is the process-group parent: it
// launches, monitors, restarts, and shuts down a fixed set of
// long-lived workers, maintains the shared status/heartbeat maps, and
// enforces the queue-overflow brake and stuck-transfer kill.
package supervisor

// Role is one entry of the closed, build-time-fixed process-table
// enumeration.
type Role int

const (
	RoleMaskAgent Role = iota
	RoleDispatcher
	RoleSystemLog
	RoleEventLog
	RoleReceiveLog
	RoleTransferLog
	RoleTransferDebugLog
	RoleArchiveWatch
	RoleStatistics
	RoleInfoDaemon
	RoleInputLog
	RoleOutputLog
	RoleConfirmationLog
	RoleDeleteLog
	RoleProductionLog
	RoleDistributionLog
	RoleTransferRateLog
	RoleWorkerHelper
	RoleLogAggregator

	roleCount
)

var roleNames = [roleCount]string{
	RoleMaskAgent:        "mask_agent",
	RoleDispatcher:       "dispatcher",
	RoleSystemLog:        "system_log",
	RoleEventLog:         "event_log",
	RoleReceiveLog:       "receive_log",
	RoleTransferLog:      "transfer_log",
	RoleTransferDebugLog: "transfer_debug_log",
	RoleArchiveWatch:     "archive_watch",
	RoleStatistics:       "statistics",
	RoleInfoDaemon:       "info_daemon",
	RoleInputLog:         "input_log",
	RoleOutputLog:        "output_log",
	RoleConfirmationLog:  "confirmation_log",
	RoleDeleteLog:        "delete_log",
	RoleProductionLog:    "production_log",
	RoleDistributionLog:  "distribution_log",
	RoleTransferRateLog:  "transfer_rate_log",
	RoleWorkerHelper:     "worker_helper",
	RoleLogAggregator:    "log_aggregator",
}

func (r Role) String() string {
	if r < 0 || int(r) >= len(roleNames) {
		return "unknown_role"
	}
	return roleNames[r]
}

// protectedRoles restarts unconditionally on any abnormal exit or
// termination-by-signal.
var protectedRoles = map[Role]bool{
	RoleSystemLog:        true,
	RoleEventLog:         true,
	RoleReceiveLog:       true,
	RoleTransferLog:      true,
	RoleTransferDebugLog: true,
	RoleInputLog:         true,
	RoleOutputLog:        true,
	RoleConfirmationLog:  true,
	RoleDeleteLog:        true,
	RoleProductionLog:    true,
	RoleDistributionLog:  true,
	RoleTransferRateLog:  true,
	RoleDispatcher:       true,
	RoleArchiveWatch:     true,
	RoleStatistics:       true,
	RoleInfoDaemon:       true,
	RoleWorkerHelper:     true,
	RoleLogAggregator:    true,
}

// StatusByte is the per-role status value stored in StatusBlock.
type StatusByte byte

const (
	StatusOff StatusByte = iota
	StatusOn
	StatusShutdown
	StatusStopped
	StatusNeither
)

func (s StatusByte) String() string {
	switch s {
	case StatusOff:
		return "off"
	case StatusOn:
		return "on"
	case StatusShutdown:
		return "shutdown"
	case StatusStopped:
		return "stopped"
	default:
		return "neither"
	}
}
