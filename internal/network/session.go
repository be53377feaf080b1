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

// Package network dials the remote-shell helper as an external
// collaborator: an SSH tunnel plus its "sftp" subsystem channel. What
// rides on top of that channel is our own wire client, not a
// pre-built SFTP library.
package network

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net"
	"time"

	"fileripper/internal/core"
	"fileripper/internal/sftpclient"
	"fileripper/internal/transport"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/ssh"
)

// SftpSession holds the SSH connection state and our hand-rolled SFTP
// client riding on top of its "sftp" subsystem channel.
type SftpSession struct {
	Hostname string
	Port     int
	User     string
	Password string

	SshClient *ssh.Client
	channel   ssh.Channel
	Session   *sftpclient.Session

	log *logrus.Entry
}

// NewSession prepares a session; it does not connect yet.
func NewSession(host string, port int, user, password string) *SftpSession {
	return &SftpSession{
		Hostname: host,
		Port:     port,
		User:     user,
		Password: password,
		log:      logrus.WithField("role", "network"),
	}
}

// Connect establishes the secure SSH tunnel.
func (s *SftpSession) Connect() error {
	address := fmt.Sprintf("%s:%d", s.Hostname, s.Port)
	s.log.WithField("address", address).Info("initiating secure handshake")

	config := &ssh.ClientConfig{
		User:            s.User,
		Auth:            []ssh.AuthMethod{ssh.Password(s.Password)},
		HostKeyCallback: s.logHostKey,
		Timeout:         10 * time.Second,
	}

	client, err := ssh.Dial("tcp", address, config)
	if err != nil {
		s.log.WithError(err).Warn("ssh handshake failed")
		return errors.Wrap(core.ErrAuthFailed, err.Error())
	}

	s.SshClient = client
	s.log.Info("authenticated and channel encrypted")
	return nil
}

func (s *SftpSession) logHostKey(hostname string, remote net.Addr, key ssh.PublicKey) error {
	h := sha256.Sum256(key.Marshal())
	fingerprint := base64.StdEncoding.EncodeToString(h[:])
	s.log.WithFields(logrus.Fields{"host": hostname, "fingerprint": fingerprint}).Info("server host key")
	return nil
}

// OpenSFTP opens the "sftp" subsystem channel on the existing SSH
// tunnel and negotiates our own wire-protocol session over it.
func (s *SftpSession) OpenSFTP() error {
	if s.SshClient == nil {
		return core.ErrConnectionFailed
	}

	s.log.Info("requesting sftp subsystem")

	ch, reqs, err := s.SshClient.OpenChannel("session", nil)
	if err != nil {
		s.log.WithError(err).Warn("failed to open session channel")
		return errors.Wrap(core.ErrConnectionFailed, err.Error())
	}
	go ssh.DiscardRequests(reqs)

	ok, err := ch.SendRequest("subsystem", true, ssh.Marshal(&struct{ Name string }{"sftp"}))
	if err != nil || !ok {
		ch.Close()
		s.log.WithError(err).Warn("failed to start sftp subsystem")
		return errors.Wrap(core.ErrConnectionFailed, "subsystem request refused")
	}

	s.channel = ch
	tr := transport.New(ch, ch, ch)
	sess := sftpclient.New(tr, sftpclient.Options{Deadline: 30 * time.Second, ReplyQueueCapacity: 64})
	if err := sess.Negotiate(); err != nil {
		ch.Close()
		s.log.WithError(err).Warn("sftp negotiation failed")
		return errors.Wrap(core.ErrConnectionFailed, err.Error())
	}

	s.Session = sess
	s.log.WithField("version", sess.Version()).Info("sftp subsystem active")
	return nil
}

// Close disconnects everything politely.
func (s *SftpSession) Close() {
	if s.Session != nil {
		_ = s.Session.Quit()
	}
	if s.SshClient != nil {
		_ = s.SshClient.Close()
	}
}
