package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/collazomanuel/cetec-asistente-backend/core"
)

type createConversationRequest struct {
	SubjectID string `json:"subjectId"`
	Title     string `json:"title,omitempty"`
}

type sendMessageRequest struct {
	Content     string `json:"content"`
	SubjectHint string `json:"subjectHint,omitempty"`
}

func (s *Server) handleCreateConversation(w http.ResponseWriter, r *http.Request) {
	var req createConversationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	conv, err := s.engine.StartConversation(r.Context(), req.SubjectID, req.Title)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, conv)
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, core.ErrValidation)
			return
		}
		limit = parsed
	}
	messages, err := s.engine.History(r.Context(), chi.URLParam(r, "id"), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if messages == nil {
		messages = []*core.Message{}
	}
	writeJSON(w, http.StatusOK, messages)
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	msg, err := s.engine.Send(r.Context(), chi.URLParam(r, "id"), req.Content, req.SubjectHint)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, msg)
}

// handleStreamMessage relays a conversation turn as server-sent events.
// Each fragment is one data line; the stream ends with [DONE].
func (s *Server) handleStreamMessage(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, fmt.Errorf("streaming unsupported by connection"))
		return
	}

	fragments, err := s.engine.Stream(r.Context(), chi.URLParam(r, "id"), req.Content, req.SubjectHint)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for fragment := range fragments {
		data, err := json.Marshal(fragment)
		if err != nil {
			s.logger.Error("failed to encode fragment", "error", err)
			continue
		}
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()
	}

	fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()
}

// handleCancelRun aborts an in-flight stream by the run ID carried on its
// fragments.
func (s *Server) handleCancelRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "id")
	if !s.engine.Abort(runID) {
		writeError(w, fmt.Errorf("%w: run %s", core.ErrNotFound, runID))
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"runId": runID, "status": "cancelling"})
}
