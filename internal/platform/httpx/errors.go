package httpx

import (
	"errors"
	"net/http"

	"github.com/aurum-erp/aurum/internal/shared"
)

// RespondError maps domain errors to HTTP responses inside the envelope.
func RespondError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, shared.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, shared.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, shared.ErrInvalidState),
		errors.Is(err, shared.ErrDuplicate),
		errors.Is(err, shared.ErrIdempotencyConflict):
		status = http.StatusConflict
	case errors.Is(err, shared.ErrInsufficientStock):
		status = http.StatusUnprocessableEntity
	}
	JSON(w, status, Envelope{Success: false, Message: shared.UserSafeMessage(err)})
}
