package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/authkeep/authkeep"
)

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// writeError maps engine errors onto statuses. Internal detail (store
// addresses, Redis errors) never reaches the client; those all collapse to
// a generic 503.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, authkeep.ErrBadRequest):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "bad request"})
	case errors.Is(err, authkeep.ErrUnauthorized), errors.Is(err, authkeep.ErrTokenInvalid):
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "unauthorized"})
	case errors.Is(err, authkeep.ErrSessionNotFound), errors.Is(err, authkeep.ErrCredentialNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not found"})
	case errors.Is(err, authkeep.ErrTwoFactorNotSetUp):
		writeJSON(w, http.StatusConflict, errorBody{Error: "two-factor not set up"})
	case errors.Is(err, authkeep.ErrTwoFactorNotEnabled):
		writeJSON(w, http.StatusConflict, errorBody{Error: "two-factor not enabled"})
	case errors.Is(err, authkeep.ErrCodeInvalid):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: "invalid code"})
	case errors.Is(err, authkeep.ErrTooManyAttempts):
		writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "too many attempts"})
	default:
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "service unavailable"})
	}
}
