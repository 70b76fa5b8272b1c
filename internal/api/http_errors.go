package api

import (
	"errors"
	"net/http"

	"github.com/maestro-ai/maestro/internal/core"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// respondError maps domain error categories to HTTP statuses.
func respondError(w http.ResponseWriter, err error) {
	var de *core.DomainError
	if !errors.As(err, &de) || de == nil {
		respondJSON(w, http.StatusInternalServerError, errorResponse{
			Code:    "INTERNAL",
			Message: err.Error(),
		})
		return
	}
	respondJSON(w, statusFor(de), errorResponse{Code: de.Code, Message: de.Message})
}

func statusFor(de *core.DomainError) int {
	switch de.Category {
	case core.ErrCatValidation:
		return http.StatusUnprocessableEntity
	case core.ErrCatNotFound:
		return http.StatusNotFound
	case core.ErrCatConflict:
		return http.StatusConflict
	case core.ErrCatTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
