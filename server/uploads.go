package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/collazomanuel/cetec-asistente-backend/core"
)

type presignRequest struct {
	Subject string `json:"subject"`
	Files   []struct {
		FileName    string `json:"fileName"`
		ContentType string `json:"contentType"`
	} `json:"files"`
}

type completeRequest struct {
	SessionID string `json:"sessionId"`
	ObjectKey string `json:"objectKey"`
	Size      int64  `json:"size"`
	Checksum  string `json:"checksum,omitempty"`
}

func (s *Server) handlePresign(w http.ResponseWriter, r *http.Request) {
	var req presignRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if len(req.Files) == 0 {
		writeError(w, core.ErrValidation)
		return
	}

	sessions := make([]*core.UploadSession, 0, len(req.Files))
	for _, f := range req.Files {
		session, err := s.uploads.Presign(r.Context(), req.Subject, f.FileName, f.ContentType)
		if err != nil {
			writeError(w, err)
			return
		}
		sessions = append(sessions, session)
	}
	writeJSON(w, http.StatusCreated, sessions)
}

func (s *Server) handleCompleteUpload(w http.ResponseWriter, r *http.Request) {
	var req completeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	var doc *core.Document
	var err error
	switch {
	case req.SessionID != "":
		doc, _, err = s.uploads.Complete(r.Context(), req.SessionID, req.Size, req.Checksum)
	case req.ObjectKey != "":
		doc, _, err = s.uploads.CompleteByObjectKey(r.Context(), req.ObjectKey, req.Size, req.Checksum)
	default:
		err = core.ErrValidation
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	session, err := s.uploads.GetSession(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	subject := r.URL.Query().Get("subject")
	if subject == "" {
		writeError(w, core.ErrValidation)
		return
	}
	docs, err := s.documents.ListDocumentsBySubject(r.Context(), subject)
	if err != nil {
		writeError(w, err)
		return
	}
	if docs == nil {
		docs = []*core.Document{}
	}
	writeJSON(w, http.StatusOK, docs)
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.documents.GetDocument(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}
