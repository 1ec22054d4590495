package api

import (
	"errors"
	"net/http"

	"github.com/roach88/brickbook/internal/store"
)

// errorBody is the JSON error envelope.
type errorBody struct {
	Code            string `json:"code"`
	Message         string `json:"message"`
	CurrentRevision *int64 `json:"current_revision,omitempty"`
}

// statusFor maps an error kind to an HTTP status. Conflict and an already
// recorded like share 409 and are told apart by code.
func statusFor(kind store.ErrorKind) int {
	switch kind {
	case store.KindConflict, store.KindAlreadyActed:
		return http.StatusConflict
	case store.KindValidation:
		return http.StatusBadRequest
	case store.KindNotFound:
		return http.StatusNotFound
	case store.KindTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := store.KindOf(err)
	status := statusFor(kind)
	body := errorBody{Code: string(kind), Message: err.Error()}

	var me *store.MutationError
	if kind == store.KindConflict && errors.As(err, &me) {
		rev := me.CurrentRevision
		body.CurrentRevision = &rev
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "error", err)
		body.Message = "internal error"
	}
	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "1")
	}

	s.logger.Debug("request rejected", "path", r.URL.Path, "code", body.Code)
	writeJSON(w, status, map[string]errorBody{"error": body})
}
