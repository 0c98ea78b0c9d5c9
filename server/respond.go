package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/collazomanuel/cetec-asistente-backend/core"
	"github.com/collazomanuel/cetec-asistente-backend/storage"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps the domain error taxonomy onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, core.ErrValidation), errors.Is(err, core.ErrInvalidPolicy):
		status = http.StatusBadRequest
	case errors.Is(err, core.ErrNotFound), errors.Is(err, storage.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, core.ErrConflict),
		errors.Is(err, core.ErrJobAlreadyTerminal),
		errors.Is(err, core.ErrInvalidTransition),
		errors.Is(err, storage.ErrDuplicateKey):
		status = http.StatusConflict
	case errors.Is(err, core.ErrGrantExpired):
		status = http.StatusGone
	case errors.Is(err, core.ErrNoRouteAvailable), errors.Is(err, core.ErrUpstreamUnavailable):
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return core.ErrValidation
	}
	return nil
}
