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

package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"fileripper/internal/supervisor"

	"github.com/spf13/cobra"
)

// statusRoles is the fixed display order for the "status" table. It
// mirrors roleBinaries in start.go but status.go never spawns
// anything, so it only needs the role list.
var statusRoles = []supervisor.Role{
	supervisor.RoleMaskAgent,
	supervisor.RoleDispatcher,
	supervisor.RoleSystemLog,
	supervisor.RoleEventLog,
	supervisor.RoleReceiveLog,
	supervisor.RoleTransferLog,
	supervisor.RoleTransferDebugLog,
	supervisor.RoleArchiveWatch,
	supervisor.RoleStatistics,
	supervisor.RoleInfoDaemon,
	supervisor.RoleInputLog,
	supervisor.RoleOutputLog,
	supervisor.RoleConfirmationLog,
	supervisor.RoleDeleteLog,
	supervisor.RoleProductionLog,
	supervisor.RoleDistributionLog,
	supervisor.RoleTransferRateLog,
	supervisor.RoleWorkerHelper,
	supervisor.RoleLogAggregator,
}

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Print the running supervisor's process table and counters",
		RunE: func(cmd *cobra.Command, args []string) error {
			workDir, _ := cmd.Flags().GetString("workdir")
			return runStatus(workDir)
		},
	}
	return cmd
}

func runStatus(workDir string) error {
	sb, err := supervisor.OpenStatusBlock(workDir)
	if err != nil {
		return err
	}
	defer sb.Close()

	af, err := supervisor.PeekActiveFile(workDir)
	if err != nil {
		return err
	}
	defer af.ClosePeek()

	hb := af.Heartbeats()
	alive := hb.Advancing(5 * time.Second)

	fmt.Printf("host=%s  start=%s  alive=%v  forks=%d  burst_transitions=%d  dir_scans=%d  max_queue=%d\n",
		sb.Hostname(),
		time.Unix(sb.StartTimeUnix(), 0).Format(time.RFC3339),
		alive,
		sb.Forks(),
		sb.BurstTransitions(),
		sb.DirectoryScans(),
		sb.MaxQueueLength(),
	)

	w := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
	fmt.Fprintln(w, "ROLE\tSTATUS\tPID")
	for _, r := range statusRoles {
		fmt.Fprintf(w, "%s\t%s\t%d\n", r, sb.Status(r), af.PID(r))
	}
	return w.Flush()
}
