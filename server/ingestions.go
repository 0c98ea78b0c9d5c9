package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/collazomanuel/cetec-asistente-backend/core"
)

type startIngestionRequest struct {
	DocumentID string `json:"documentId"`
}

func (s *Server) handleStartIngestion(w http.ResponseWriter, r *http.Request) {
	var req startIngestionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.DocumentID == "" {
		writeError(w, core.ErrValidation)
		return
	}
	job, err := s.ingestion.Start(r.Context(), req.DocumentID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

func (s *Server) handleGetIngestion(w http.ResponseWriter, r *http.Request) {
	job, err := s.ingestion.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleCancelIngestion(w http.ResponseWriter, r *http.Request) {
	job, err := s.ingestion.Cancel(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}
