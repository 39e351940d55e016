package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stemsi/provpass/internal/response"
	"github.com/stemsi/provpass/internal/service"
)

// ContextKeySession is the Gin context key for the live session handle.
const ContextKeySession = "active_session"

// RequireLiveSession resolves the :session_id path parameter to a live
// session handle and stores it in the context. Completed sessions are
// rejected with SESSION_COMPLETED.
func RequireLiveSession(svc *service.PracticeService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := uuid.Parse(c.Param("session_id"))
		if err != nil {
			response.AbortFail(c, http.StatusBadRequest, response.ErrInvalidID)
			return
		}

		as, err := svc.Session(c.Request.Context(), id)
		switch {
		case err == nil:
		case errors.Is(err, service.ErrNotFound):
			response.AbortFail(c, http.StatusNotFound, response.ErrSessionNotFound)
			return
		case errors.Is(err, service.ErrSessionCompleted):
			response.AbortFail(c, http.StatusConflict, response.ErrSessionCompleted)
			return
		case errors.Is(err, service.ErrStorageUnavailable):
			response.AbortFail(c, http.StatusServiceUnavailable, response.ErrStorageUnavailable)
			return
		default:
			response.AbortFail(c, http.StatusInternalServerError, response.ErrInternal)
			return
		}

		c.Set(ContextKeySession, as)
		c.Next()
	}
}

// GetSession retrieves the live session handle from the Gin context.
func GetSession(c *gin.Context) *service.ActiveSession {
	val, exists := c.Get(ContextKeySession)
	if !exists {
		return nil
	}
	as, ok := val.(*service.ActiveSession)
	if !ok {
		return nil
	}
	return as
}
