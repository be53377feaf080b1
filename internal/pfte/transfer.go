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

package pfte

import (
	"context"
	"hash"
	"hash/crc32"
	"io"
	"os"
	"sync"
	"time"

	"fileripper/internal/network"
	"fileripper/internal/sftpclient"
)

const (
	BufferSize     = 64 * 1024 // 64KB for standard streams
	ReadBlockSize  = 32 * 1024 // block size offered to the remote on pipelined reads
	MaxPendingRead = 64        // hard cap on outstanding pipelined reads per file
)

// ProgressTracker wraps an io.Reader to update the monitor and compute
// a checksum simultaneously.
type ProgressTracker struct {
	Reader io.Reader
	Hasher hash.Hash32
	Mu     sync.Mutex
}

func (pt *ProgressTracker) Read(p []byte) (int, error) {
	n, err := pt.Reader.Read(p)
	if n > 0 {
		GlobalMonitor.AddBytes(int64(n))
		pt.Mu.Lock()
		pt.Hasher.Write(p[:n])
		pt.Mu.Unlock()
	}
	return n, err
}

// DownloadFileWithProgress pulls a remote file through the session's
// pipelined multi-read path, falling back to sequential Read calls the
// moment the session signals a downgrade (mirrors the wire client's own
// "wedged pipeline" recovery).
func DownloadFileWithProgress(ctx context.Context, session *network.SftpSession, remotePath, localPath string) error {
	var lastErr error

	for attempt := 1; attempt <= 3; attempt++ {
		lastErr = func() error {
			sess := session.Session

			stat, err := sess.Stat(remotePath)
			if err != nil {
				return err
			}
			if err := sess.OpenFile(remotePath, sftpclient.OpenFileOptions{Mode: sftpclient.OpenForRead}); err != nil {
				return err
			}
			defer sess.CloseFile()

			dst, err := os.Create(localPath)
			if err != nil {
				return err
			}
			defer dst.Close()

			hasher := crc32.NewIEEE()
			if err := downloadInto(ctx, sess, dst, hasher, stat.Size); err != nil {
				return err
			}

			_ = os.Chtimes(localPath, time.Now(), stat.ModifyTime)
			return nil
		}()

		if lastErr == nil {
			return nil
		}
	}
	return lastErr
}

// downloadInto drains a session's pipelined multi-read into dst,
// downgrading to single sequential reads on the first anomaly.
func downloadInto(ctx context.Context, sess *sftpclient.Session, dst io.Writer, hasher hash.Hash32, totalSize uint64) error {
	mr := sess.NewMultiRead(sftpclient.MultiReadOptions{
		TotalBytes: totalSize,
		BlockSize:  ReadBlockSize,
		HardCap:    MaxPendingRead,
	})

	for {
		select {
		case <-ctx.Done():
			mr.Discard()
			return ctx.Err()
		default:
		}

		if err := mr.Dispatch(); err != nil {
			mr.Discard()
			return err
		}
		result, err := mr.Catch()
		if err != nil {
			mr.Discard()
			return err
		}
		if result.DoSingleReads {
			return downloadSequential(ctx, sess, dst, hasher)
		}
		if result.EOF {
			return nil
		}
		if len(result.Data) > 0 {
			if _, err := dst.Write(result.Data); err != nil {
				mr.Discard()
				return err
			}
			hasher.Write(result.Data)
			GlobalMonitor.AddBytes(int64(len(result.Data)))
		}
	}
}

// downloadSequential is the fallback path once a pipelined multi-read
// has downgraded: one Read at a time, in offset order.
func downloadSequential(ctx context.Context, sess *sftpclient.Session, dst io.Writer, hasher hash.Hash32) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		result, err := sess.Read(ReadBlockSize)
		if err != nil {
			return err
		}
		if result.EOF {
			return nil
		}
		if len(result.Data) > 0 {
			if _, err := dst.Write(result.Data); err != nil {
				return err
			}
			hasher.Write(result.Data)
			GlobalMonitor.AddBytes(int64(len(result.Data)))
		}
	}
}

// UploadFileWithProgress pushes a local file over the session's
// pipelined write window.
func UploadFileWithProgress(ctx context.Context, session *network.SftpSession, localPath, remotePath string) error {
	return uploadSingleStream(ctx, session, localPath, remotePath)
}

// uploadSingleStream is the only upload strategy a single-handle
// session supports: one open file, one pipelined writer. The old
// multi-handle "swarm" upload needed several concurrent handles into
// the same remote file, which this wire client's one-handle-per-session
// model cannot provide (see design notes).
func uploadSingleStream(ctx context.Context, session *network.SftpSession, localPath, remotePath string) error {
	var lastErr error
	buf := make([]byte, BufferSize)

	for attempt := 1; attempt <= 3; attempt++ {
		lastErr = func() error {
			src, err := os.Open(localPath)
			if err != nil {
				return err
			}
			defer src.Close()

			info, err := src.Stat()
			if err != nil {
				return err
			}

			sess := session.Session
			if err := sess.OpenFile(remotePath, sftpclient.OpenFileOptions{
				Mode:             sftpclient.OpenForWrite,
				MaxPendingWrites: 16,
				BufferCapacity:   BufferSize * 16,
				WriteBlockSize:   BufferSize,
			}); err != nil {
				return err
			}
			defer sess.CloseFile()

			tracker := &ProgressTracker{Reader: src, Hasher: crc32.NewIEEE()}
			if err := writeAllWithContext(ctx, sess, tracker, buf); err != nil {
				return err
			}
			if err := sess.Flush(); err != nil {
				return err
			}

			modUnix := info.ModTime().Unix()
			_ = sess.SetTime(remotePath, modUnix, modUnix)
			_ = sess.Chmod(remotePath, uint32(info.Mode().Perm()))
			return nil
		}()

		if lastErr == nil {
			break
		}
	}
	return lastErr
}

// writeAllWithContext reads src in BufferSize chunks and pushes each
// one through the session's pipelined Write, honoring ctx cancellation
// between chunks.
func writeAllWithContext(ctx context.Context, sess *sftpclient.Session, src io.Reader, buf []byte) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n, err := src.Read(buf)
		if n > 0 {
			if werr := sess.Write(buf[:n]); werr != nil {
				return werr
			}
		}
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
	}
}

// Legacy wrappers, kept for callers that haven't migrated to the
// *WithProgress names.
func UploadFile(ctx context.Context, session *network.SftpSession, localPath, remotePath string) error {
	return UploadFileWithProgress(ctx, session, localPath, remotePath)
}

func DownloadFile(ctx context.Context, session *network.SftpSession, remotePath, localPath string) error {
	return DownloadFileWithProgress(ctx, session, remotePath, localPath)
}
