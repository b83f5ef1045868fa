package apiv1

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"mymedaga-payments/internal/domain"
)

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrInvalidArgument), errors.Is(err, domain.ErrTargetMismatch):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrSignature), errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrCodeNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrState), errors.Is(err, domain.ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, domain.ErrConcurrency):
		return http.StatusConflict
	case errors.Is(err, domain.ErrProvider):
		return http.StatusBadGateway
	case errors.Is(err, domain.ErrConfiguration):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// publicMessage never exposes wrapped internals for server-side failures.
func publicMessage(status int, err error) string {
	switch status {
	case http.StatusInternalServerError:
		return "internal error"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusServiceUnavailable:
		return "payment method unavailable"
	case http.StatusBadGateway:
		return "payment provider error"
	case http.StatusNotFound:
		return "not found"
	}
	return err.Error()
}

func writeError(w http.ResponseWriter, log *zerolog.Logger, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Msg("request failed")
	} else {
		log.Debug().Err(err).Int("status", status).Msg("request rejected")
	}
	writeJSON(w, status, errorBody{Error: publicMessage(status, err)})
}
