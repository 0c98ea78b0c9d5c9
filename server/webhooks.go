// Copyright 2025 CETEC Asistente Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package server

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/collazomanuel/cetec-asistente-backend/core"
	"github.com/collazomanuel/cetec-asistente-backend/relay"
)

// SignatureHeader carries the hex HMAC-SHA256 of the raw webhook body.
const SignatureHeader = "X-Webhook-Signature"

const maxWebhookBody = 1 << 20

// withSignature verifies the webhook body signature before dispatching.
// The body is re-wrapped so the handler can decode it normally.
func (s *Server) withSignature(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		if err != nil {
			writeError(w, core.ErrValidation)
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))

		if len(s.webhookSecret) > 0 {
			mac := hmac.New(sha256.New, s.webhookSecret)
			mac.Write(body)
			want := hex.EncodeToString(mac.Sum(nil))
			got := r.Header.Get(SignatureHeader)
			if got == "" || !hmac.Equal([]byte(want), []byte(got)) {
				s.logger.Warn("webhook signature rejected", "path", r.URL.Path)
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid signature"})
				return
			}
		}
		next(w, r)
	}
}

type storageEvent struct {
	Event     string `json:"event"`
	SessionID string `json:"sessionId,omitempty"`
	ObjectKey string `json:"objectKey,omitempty"`
	Size      int64  `json:"size"`
	Checksum  string `json:"checksum,omitempty"`
}

// handleStorageWebhook reconciles an object-store completion event with its
// upload session and kicks off ingestion. Replays are safe: completion is
// idempotent per session, and ingestion is only started on the delivery
// that actually created the document, so a replayed event can never
// re-trigger a finished job.
func (s *Server) handleStorageWebhook(w http.ResponseWriter, r *http.Request) {
	var event storageEvent
	if err := decodeJSON(r, &event); err != nil {
		writeError(w, err)
		return
	}

	if event.Event != "completed" {
		s.logger.Info("storage event ignored", "event", event.Event, "object", event.ObjectKey)
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	var doc *core.Document
	var created bool
	var err error
	switch {
	case event.SessionID != "":
		doc, created, err = s.uploads.Complete(r.Context(), event.SessionID, event.Size, event.Checksum)
	case event.ObjectKey != "":
		doc, created, err = s.uploads.CompleteByObjectKey(r.Context(), event.ObjectKey, event.Size, event.Checksum)
	default:
		err = core.ErrValidation
	}
	if err != nil {
		writeError(w, err)
		return
	}

	resp := map[string]any{"documentId": doc.ID}
	if created {
		job, err := s.ingestion.Start(r.Context(), doc.ID)
		if err != nil && !errors.Is(err, core.ErrConflict) {
			writeError(w, err)
			return
		}
		if job != nil {
			resp["jobId"] = job.ID
			resp["state"] = job.State
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleA2ACallback delivers an out-of-band backend completion: health is
// updated for the server and, on success, the assistant message is appended
// idempotently by message ID.
func (s *Server) handleA2ACallback(w http.ResponseWriter, r *http.Request) {
	var cb relay.Callback
	if err := decodeJSON(r, &cb); err != nil {
		writeError(w, err)
		return
	}

	serverID := chi.URLParam(r, "id")
	if !s.registry.Has(serverID) {
		writeError(w, core.ErrNotFound)
		return
	}

	appended, err := s.engine.HandleCallback(r.Context(), serverID, cb)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"accepted": appended})
}
