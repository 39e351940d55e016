package handler

import (
	"errors"
	"net/http"

	"github.com/stemsi/provpass/internal/response"
	"github.com/stemsi/provpass/internal/service"
)

// serviceError maps a service error to its HTTP status and error code.
func serviceError(err error) (int, response.ErrCode) {
	switch {
	case errors.Is(err, service.ErrInvalidIdentity):
		return http.StatusBadRequest, response.ErrValidation
	case errors.Is(err, service.ErrInvalidQuestion):
		return http.StatusBadRequest, response.ErrInvalidQuestion
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, response.ErrSessionNotFound
	case errors.Is(err, service.ErrSessionCompleted):
		return http.StatusConflict, response.ErrSessionCompleted
	case errors.Is(err, service.ErrSessionClosed):
		return http.StatusGone, response.ErrSessionClosed
	case errors.Is(err, service.ErrSaveFailed):
		return http.StatusServiceUnavailable, response.ErrSaveFailed
	case errors.Is(err, service.ErrStorageUnavailable):
		return http.StatusServiceUnavailable, response.ErrStorageUnavailable
	default:
		return http.StatusInternalServerError, response.ErrInternal
	}
}
