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
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"fileripper/internal/core"
	"fileripper/internal/supervisor"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// roleBinaries maps each process-table role to the helper executable
// the supervisor spawns for it, resolved under "<workdir>/bin". The
// mask agent and the per-log processes are treated as external
// collaborators: this daemon only launches and supervises them.
var roleBinaries = map[supervisor.Role]string{
	supervisor.RoleMaskAgent:        "mask_agent",
	supervisor.RoleDispatcher:       "dispatcher",
	supervisor.RoleSystemLog:        "system_log",
	supervisor.RoleEventLog:         "event_log",
	supervisor.RoleReceiveLog:       "receive_log",
	supervisor.RoleTransferLog:      "transfer_log",
	supervisor.RoleTransferDebugLog: "transfer_debug_log",
	supervisor.RoleArchiveWatch:     "archive_watch",
	supervisor.RoleStatistics:       "statistics",
	supervisor.RoleInfoDaemon:       "info_daemon",
	supervisor.RoleInputLog:         "input_log",
	supervisor.RoleOutputLog:        "output_log",
	supervisor.RoleConfirmationLog:  "confirmation_log",
	supervisor.RoleDeleteLog:        "delete_log",
	supervisor.RoleProductionLog:    "production_log",
	supervisor.RoleDistributionLog:  "distribution_log",
	supervisor.RoleTransferRateLog:  "transfer_rate_log",
	supervisor.RoleWorkerHelper:     "worker_helper",
	supervisor.RoleLogAggregator:    "log_aggregator",
}

func newStartCmd() *cobra.Command {
	var staleAfter time.Duration

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Run the supervisor in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			workDir, _ := cmd.Flags().GetString("workdir")
			return runSupervisor(workDir, staleAfter)
		},
	}
	cmd.Flags().DurationVar(&staleAfter, "stale-after", 5*time.Second,
		"how long to wait for the heartbeat to advance before refusing a second instance")
	return cmd
}

func runSupervisor(workDir string, staleAfter time.Duration) error {
	log := logrus.WithField("role", "cli")

	cfg, err := core.LoadConfig(workDir)
	if err != nil {
		return err
	}

	sup, err := supervisor.New(cfg, staleAfter)
	if err != nil {
		return err
	}

	binDir := filepath.Join(workDir, "bin")
	for role, name := range roleBinaries {
		path := filepath.Join(binDir, name)
		role, path := role, path // capture for the closure
		sup.Register(role, func() (*exec.Cmd, error) {
			cmd := exec.Command(path)
			cmd.Dir = workDir
			if err := cmd.Start(); err != nil {
				return nil, err
			}
			return cmd, nil
		})
	}

	if err := sup.StartAll(); err != nil {
		return err
	}
	log.WithField("workdir", workDir).Info("supervisor started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		<-sigCh
		log.Info("received termination signal, requesting shutdown")
		sup.Commands() <- supervisor.CmdShutdown
	}()

	sup.Run(nil, supervisor.StuckTransferConfig{
		RetryInterval:   cfg.RetryInterval.Duration,
		TransferTimeout: cfg.TransferTimeout.Duration,
		Grace:           cfg.StuckTransferGrace.Duration,
	}, nil, nil, time.Minute, nil)

	log.Info("supervisor stopped")
	return nil
}
