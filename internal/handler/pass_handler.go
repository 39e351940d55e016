package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/provpass/internal/model"
	"github.com/stemsi/provpass/internal/repository"
	"github.com/stemsi/provpass/internal/response"
	"github.com/stemsi/provpass/internal/service"
	"github.com/stemsi/provpass/internal/validator"
)

// PassHandler handles pass listing, lookup and restart endpoints.
type PassHandler struct {
	practiceService *service.PracticeService
	log             zerolog.Logger
}

// NewPassHandler creates a new PassHandler.
func NewPassHandler(practiceService *service.PracticeService, log zerolog.Logger) *PassHandler {
	return &PassHandler{
		practiceService: practiceService,
		log:             log.With().Str("component", "pass_handler").Logger(),
	}
}

// Resumable godoc
// GET /api/v1/passes/resumable?kind=&pass_number=
// Reports whether the pass has an open session in any year or semester.
func (h *PassHandler) Resumable(c *gin.Context) {
	var req model.PassRequest
	if fields := validator.BindQuery(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	ok, err := h.practiceService.HasOpenSession(c.Request.Context(), model.TestKind(req.Kind), *req.PassNumber)
	if err != nil {
		h.fail(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"resumable": ok})
}

// OpenSession godoc
// GET /api/v1/passes/open?kind=&pass_number=&year=&semester=
// Returns the open session of the exact identity without loading it.
func (h *PassHandler) OpenSession(c *gin.Context) {
	var req model.IdentityRequest
	if fields := validator.BindQuery(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	s, err := h.practiceService.FindOpenSession(c.Request.Context(), req.Identity())
	if err != nil {
		h.fail(c, err)
		return
	}
	if s == nil {
		response.Fail(c, http.StatusNotFound, response.ErrSessionNotFound)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"session": s})
}

// ListSessions godoc
// GET /api/v1/passes/sessions?kind=&pass_number=&open_only=
func (h *PassHandler) ListSessions(c *gin.Context) {
	var req model.SessionListQuery
	if fields := validator.BindQuery(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	filter := repository.SessionFilter{PassNumber: req.PassNumber, OpenOnly: req.OpenOnly}
	if req.Kind != nil {
		kind := model.TestKind(*req.Kind)
		filter.Kind = &kind
	}

	sessions, err := h.practiceService.ListSessions(c.Request.Context(), filter)
	if err != nil {
		h.fail(c, err)
		return
	}
	if sessions == nil {
		sessions = []model.Session{}
	}

	response.Success(c, http.StatusOK, gin.H{"sessions": sessions})
}

// Restart godoc
// POST /api/v1/passes/restart
// Discards every session of the identity so the next open starts fresh.
func (h *PassHandler) Restart(c *gin.Context) {
	var req model.IdentityRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.practiceService.Restart(saveContext(c), req.Identity()); err != nil {
		h.fail(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message": "pass restarted"})
}

// RestartAll godoc
// POST /api/v1/passes/restart-all
// Discards every session of a kind and pass, e.g. all generated tests.
func (h *PassHandler) RestartAll(c *gin.Context) {
	var req model.PassRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.practiceService.RestartAll(saveContext(c), model.TestKind(req.Kind), *req.PassNumber); err != nil {
		h.fail(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message": "passes restarted"})
}

func (h *PassHandler) fail(c *gin.Context, err error) {
	status, code := serviceError(err)
	if status >= http.StatusInternalServerError {
		h.log.Error().Err(err).
			Str("request_id", response.RequestID(c)).
			Str("path", c.FullPath()).
			Msg("Pass request failed")
	}
	response.Fail(c, status, code)
}
