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
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"fileripper"
	"fileripper/internal/pfte"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newTransferCmd() *cobra.Command {
	var (
		host     string
		port     int
		user     string
		password string
		upload   bool
		download bool
		boost    bool
		dest     string
	)

	cmd := &cobra.Command{
		Use:   "transfer <source>",
		Short: "Run a single ad hoc upload or download against one host",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if upload == download {
				return fmt.Errorf("exactly one of --upload or --download must be set")
			}
			operation := "DOWNLOAD"
			if upload {
				operation = "UPLOAD"
			}
			return runTransfer(host, port, user, password, boost, operation, args[0], dest)
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "remote host")
	cmd.Flags().IntVar(&port, "port", 22, "remote port")
	cmd.Flags().StringVar(&user, "user", "", "remote user")
	cmd.Flags().StringVar(&password, "password", "", "remote password")
	cmd.Flags().BoolVar(&upload, "upload", false, "copy source (local) to dest (remote)")
	cmd.Flags().BoolVar(&download, "download", false, "copy source (remote) to dest (local)")
	cmd.Flags().BoolVar(&boost, "boost", true, "use the wide-concurrency transfer mode instead of the conservative one")
	cmd.Flags().StringVar(&dest, "dest", ".", "destination path")
	cmd.MarkFlagRequired("host")
	cmd.MarkFlagRequired("user")
	return cmd
}

func runTransfer(host string, port int, user, password string, boost bool, operation, source, dest string) error {
	log := logrus.WithFields(logrus.Fields{"role": "cli", "host": host, "operation": operation})

	session := fileripper.NewSession(host, port, user, password)
	if err := session.Connect(); err != nil {
		return fmt.Errorf("connecting to %s: %w", host, err)
	}
	defer session.Close()

	client := fileripper.NewClient()
	if boost {
		client.SetMode(pfte.ModeBoost)
	} else {
		client.SetMode(pfte.ModeConservative)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go runProgressDashboard(ctx, done)

	err := client.Transfer(ctx, []*fileripper.Session{session}, operation, source, dest)
	cancel()
	<-done

	if err != nil {
		log.WithError(err).Error("transfer failed")
		return err
	}
	log.Info("transfer complete")
	return nil
}

// runProgressDashboard redraws a single status line from
// pfte.GlobalMonitor until ctx is canceled, then prints a final
// newline so the shell prompt doesn't land mid-line.
func runProgressDashboard(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			printProgressLine(pfte.GlobalMonitor.GetStats())
			fmt.Fprintln(os.Stderr)
			return
		case <-ticker.C:
			printProgressLine(pfte.GlobalMonitor.GetStats())
		}
	}
}

func printProgressLine(stats pfte.TransferStats) {
	eta := calculateETA(stats)
	fmt.Fprintf(os.Stderr, "\r%s  %d/%d files  %s/%s  %.1f MB/s  %6.2f%%  ETA %s   ",
		truncateName(stats.CurrentFile, 28),
		stats.FilesDone, stats.TotalFiles,
		formatBytes(stats.BytesDone), formatBytes(stats.TotalBytes),
		stats.SpeedMBs, stats.ProgressPercent, eta)
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%dB", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f%ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func calculateETA(stats pfte.TransferStats) string {
	if stats.SpeedMBs <= 0 || stats.TotalBytes <= stats.BytesDone {
		return "--"
	}
	remainingMB := float64(stats.TotalBytes-stats.BytesDone) / 1024 / 1024
	seconds := remainingMB / stats.SpeedMBs
	return time.Duration(seconds * float64(time.Second)).Round(time.Second).String()
}

func truncateName(name string, width int) string {
	if len(name) <= width {
		return name + strings.Repeat(" ", width-len(name))
	}
	return "..." + name[len(name)-(width-3):]
}
