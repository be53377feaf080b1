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

package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"fileripper/internal/pfte"

	"github.com/stretchr/testify/require"
)

func TestHandleConnectRejectsNonPost(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/connect", nil)
	w := httptest.NewRecorder()

	handleConnect(w, req)

	require.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestHandleConnectRejectsInvalidJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/connect", strings.NewReader("not json"))
	w := httptest.NewRecorder()

	handleConnect(w, req)

	var resp ApiResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.False(t, resp.Success)
}

func TestHandleListFilesWithoutConnectionFails(t *testing.T) {
	sessionMu.Lock()
	activeSession = nil
	sessionMu.Unlock()

	req := httptest.NewRequest(http.MethodGet, "/api/files", nil)
	w := httptest.NewRecorder()

	handleListFiles(w, req)

	var resp ApiResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.False(t, resp.Success)
	require.Equal(t, "Not connected", resp.Message)
}

func TestHandleProgressWithoutAttachedSupervisor(t *testing.T) {
	pfte.GlobalMonitor.AttachSupervisor(nil)
	pfte.GlobalMonitor.Reset(5, 500)
	pfte.GlobalMonitor.AddBytes(100)

	req := httptest.NewRequest(http.MethodGet, "/api/progress", nil)
	w := httptest.NewRecorder()

	handleProgress(w, req)

	var resp struct {
		Success bool               `json:"success"`
		Data    pfte.TransferStats `json:"data"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.True(t, resp.Success)
	require.Equal(t, int64(5), resp.Data.TotalFiles)
	require.Nil(t, resp.Data.Forks)
}

func TestHandleDisconnectIsIdempotent(t *testing.T) {
	sessionMu.Lock()
	activeSession = nil
	sessionMu.Unlock()

	req := httptest.NewRequest(http.MethodPost, "/api/disconnect", nil)
	w := httptest.NewRecorder()

	handleDisconnect(w, req)

	var resp ApiResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.True(t, resp.Success)
}
