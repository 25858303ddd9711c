// Copyright (C) 2025 SAGE-X Project
//
// This file is part of nostr-connect-go.
//
// nostr-connect-go is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// nostr-connect-go is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with nostr-connect-go.  If not, see <https://www.gnu.org/licenses/>.

package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	nostrconnect "github.com/sage-x-project/nostr-connect-go"
	"github.com/sage-x-project/nostr-connect-go/pkg/relay"
)

// recordingHandler notes whether the wrapped handler ran.
type recordingHandler struct {
	called bool
}

func (h *recordingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.called = true
	w.WriteHeader(http.StatusTeapot)
}

func TestInfoMiddleware_ServesDocument(t *testing.T) {
	// Setup
	next := &recordingHandler{}
	info := DefaultRelayInfo()
	info.Contact = "admin@example.com"
	handler := NewInfoMiddleware(info).Wrap(next)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept", "text/html, application/nostr+json;q=0.9")
	rec := httptest.NewRecorder()

	// Execute
	handler.ServeHTTP(rec, req)

	// Assert
	assert.False(t, next.called)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, InfoMediaType, rec.Header().Get("Content-Type"))
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	var got RelayInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, info, got)
	assert.Equal(t, nostrconnect.Version, got.Version)
	assert.Contains(t, got.SupportedNIPs, 11)
}

func TestInfoMiddleware_PassesOtherRequests(t *testing.T) {
	next := &recordingHandler{}
	handler := NewInfoMiddleware(DefaultRelayInfo()).Wrap(next)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept", "text/html")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.True(t, next.called)
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestInfoMiddleware_Preflight(t *testing.T) {
	t.Run("cors enabled", func(t *testing.T) {
		next := &recordingHandler{}
		handler := NewInfoMiddleware(DefaultRelayInfo()).Wrap(next)

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/", nil))

		assert.False(t, next.called)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("cors disabled", func(t *testing.T) {
		next := &recordingHandler{}
		mw := NewInfoMiddleware(DefaultRelayInfo())
		mw.SetCORS(false)

		rec := httptest.NewRecorder()
		mw.Wrap(next).ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/", nil))

		assert.True(t, next.called)
	})
}

func TestInfoMiddleware_MethodNotAllowed(t *testing.T) {
	// Setup
	var gotStatus int
	mw := NewInfoMiddleware(RelayInfo{})
	mw.SetErrorHandler(func(w http.ResponseWriter, r *http.Request, status int, err error) {
		gotStatus = status
		w.WriteHeader(status)
	})

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{}"))
	req.Header.Set("Accept", InfoMediaType)
	rec := httptest.NewRecorder()

	// Execute
	mw.Wrap(&recordingHandler{}).ServeHTTP(rec, req)

	// Assert
	assert.Equal(t, http.StatusMethodNotAllowed, gotStatus)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestInfoMiddleware_EmptyNIPList(t *testing.T) {
	mw := NewInfoMiddleware(RelayInfo{Name: "bare"})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept", InfoMediaType)
	rec := httptest.NewRecorder()
	mw.Wrap(&recordingHandler{}).ServeHTTP(rec, req)

	assert.Contains(t, rec.Body.String(), `"supported_nips":[]`)
}

func TestInfoMiddleware_WebsocketStillServed(t *testing.T) {
	// Setup: the middleware in front of a real relay
	srv := httptest.NewServer(NewInfoMiddleware(DefaultRelayInfo()).Wrap(relay.NewServer()))
	defer srv.Close()

	// Execute: the same URL serves the document and the websocket
	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	req.Header.Set("Accept", InfoMediaType)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	conn, err := relay.Dial(context.Background(), "ws"+strings.TrimPrefix(srv.URL, "http"))

	// Assert
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, err)
	assert.NoError(t, conn.Close())
}
