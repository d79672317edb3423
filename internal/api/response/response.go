// Package response holds the JSON helpers shared by all handlers.
// Endpoint bodies are flat objects with a leading "success" flag;
// business-rule failures are reported as 200 with success=false so the
// client always gets a readable message, and 500 is reserved for
// genuinely unexpected errors.
package response

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/danverh/support-chat/internal/domain"
	"github.com/rs/zerolog/log"
)

// Write encodes payload as the response body with the given status.
func Write(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

// OK writes the payload with a 200 status.
func OK(w http.ResponseWriter, payload any) {
	Write(w, http.StatusOK, payload)
}

type failure struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// Fail reports a failure with the given status and message.
func Fail(w http.ResponseWriter, status int, message string) {
	Write(w, status, failure{Success: false, Error: message})
}

// BadRequest reports a malformed or invalid request body.
func BadRequest(w http.ResponseWriter, message string) {
	Fail(w, http.StatusBadRequest, message)
}

// BusinessError reports an expected service error. Known error kinds
// come back as 200 with success=false; anything else is a 500.
func BusinessError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrForbidden),
		errors.Is(err, domain.ErrInvalidArgument),
		errors.Is(err, domain.ErrUpstream):
		Fail(w, http.StatusOK, err.Error())
	default:
		log.Error().Err(err).Msg("unhandled service error")
		Fail(w, http.StatusInternalServerError, "internal server error")
	}
}
