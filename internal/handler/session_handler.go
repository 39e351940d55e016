package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/provpass/internal/middleware"
	"github.com/stemsi/provpass/internal/model"
	"github.com/stemsi/provpass/internal/response"
	"github.com/stemsi/provpass/internal/service"
	"github.com/stemsi/provpass/internal/validator"
)

// SessionHandler handles the exam screen endpoints of one practice session.
type SessionHandler struct {
	practiceService *service.PracticeService
	log             zerolog.Logger
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(practiceService *service.PracticeService, log zerolog.Logger) *SessionHandler {
	return &SessionHandler{
		practiceService: practiceService,
		log:             log.With().Str("component", "session_handler").Logger(),
	}
}

// saveContext detaches saves from the request so a client that goes away
// does not abort a save in flight.
func saveContext(c *gin.Context) context.Context {
	return context.WithoutCancel(c.Request.Context())
}

// OpenSession godoc
// POST /api/v1/sessions/open
// Resumes the open session of the identity or starts a fresh one.
func (h *SessionHandler) OpenSession(c *gin.Context) {
	var req model.OpenSessionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	as, err := h.practiceService.Open(saveContext(c), req.Identity(), req.TimerEnabled)
	if err != nil {
		status, code := serviceError(err)
		h.log.Error().Err(err).
			Str("request_id", response.RequestID(c)).
			Str("identity", req.Identity().Key()).
			Msg("Open session failed")
		response.Fail(c, status, code)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"state": as.State()})
}

// GetSession godoc
// GET /api/v1/sessions/:session_id
func (h *SessionHandler) GetSession(c *gin.Context) {
	as := middleware.GetSession(c)
	response.Success(c, http.StatusOK, gin.H{"state": as.State()})
}

// RecordAnswer godoc
// POST /api/v1/sessions/:session_id/answers
// Selects an option, or clears it when it is already selected.
func (h *SessionHandler) RecordAnswer(c *gin.Context) {
	as := middleware.GetSession(c)

	var req model.RecordAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	h.respond(c, as, as.RecordAnswer(saveContext(c), req.QuestionNumber, req.Option))
}

// Advance godoc
// POST /api/v1/sessions/:session_id/advance
func (h *SessionHandler) Advance(c *gin.Context) {
	as := middleware.GetSession(c)

	var req model.AdvanceRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	h.respond(c, as, as.Advance(saveContext(c), req.Delta))
}

// Complete godoc
// POST /api/v1/sessions/:session_id/complete
func (h *SessionHandler) Complete(c *gin.Context) {
	as := middleware.GetSession(c)
	h.respond(c, as, as.Complete(saveContext(c)))
}

// Close godoc
// POST /api/v1/sessions/:session_id/close
// The user left the exam screen. Progress stays resumable.
func (h *SessionHandler) Close(c *gin.Context) {
	as := middleware.GetSession(c)
	as.Close()
	response.Success(c, http.StatusOK, gin.H{"message": "session closed"})
}

// respond sends the session state, or the error. A failed save still returns
// the in-memory state, which stays authoritative.
func (h *SessionHandler) respond(c *gin.Context, as *service.ActiveSession, err error) {
	if err == nil {
		response.Success(c, http.StatusOK, gin.H{"state": as.State()})
		return
	}

	status, code := serviceError(err)
	if code == response.ErrSaveFailed {
		response.FailWithData(c, status, code, gin.H{"state": as.State()})
		return
	}
	if status >= http.StatusInternalServerError {
		h.log.Error().Err(err).
			Str("request_id", response.RequestID(c)).
			Str("session_id", as.ID().String()).
			Msg("Session action failed")
	}
	response.Fail(c, status, code)
}
