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
	"fileripper/internal/server"
	"fileripper/internal/supervisor"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the REST API daemon the UI layer talks to",
		RunE: func(cmd *cobra.Command, args []string) error {
			workDir, _ := cmd.Flags().GetString("workdir")
			return runServe(workDir, port)
		},
	}
	cmd.Flags().IntVar(&port, "port", 8420, "local port to listen on")
	return cmd
}

// runServe opens the supervisor's shared status block with
// supervisor.OpenStatusBlock and attaches it, so /api/progress can
// report its counters too. That mapping is read-write, not read-only:
// a missing block is created and a differently-sized one is replaced
// by a zeroed one. Only an open error leaves the daemon without
// supervisor counters; it still serves file and transfer requests.
func runServe(workDir string, port int) error {
	log := logrus.WithField("role", "cli")

	sb, err := supervisor.OpenStatusBlock(workDir)
	if err != nil {
		log.WithError(err).Warn("no supervisor status block found, serving without it")
	} else {
		server.AttachSupervisor(sb)
		defer sb.Close()
	}

	server.StartDaemon(port)
	return nil
}
