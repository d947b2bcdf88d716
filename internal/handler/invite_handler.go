package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/quizmine/quizmine-backend/internal/model"
	"github.com/quizmine/quizmine-backend/internal/response"
	"github.com/quizmine/quizmine-backend/internal/service"
	"github.com/quizmine/quizmine-backend/internal/validator"
)

// InviteHandler handles the participant-facing invite endpoints: resolving
// an invite, starting an attempt, submitting answers for grading, and
// fetching a graded result. These routes are unauthenticated beyond the
// invite token itself and sit behind the rate limiter.
type InviteHandler struct {
	participantService *service.ParticipantService
	gradingService     *service.GradingService
	resultService      *service.ResultService
}

// NewInviteHandler creates a new InviteHandler.
func NewInviteHandler(
	participantService *service.ParticipantService,
	gradingService *service.GradingService,
	resultService *service.ResultService,
) *InviteHandler {
	return &InviteHandler{
		participantService: participantService,
		gradingService:     gradingService,
		resultService:      resultService,
	}
}

// Process godoc
// POST /api/v1/invites/process
// Resolves an invite token to its test payload without consuming the attempt.
func (h *InviteHandler) Process(c *gin.Context) {
	var req model.InviteRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	details, err := h.participantService.ProcessInvite(c.Request.Context(), req.Invite)
	if err != nil {
		h.failInvite(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"test": details.Test,
		"participant": gin.H{
			"name":   details.Participant.Name,
			"status": details.Participant.Status,
		},
	})
}

// Start godoc
// POST /api/v1/invites/start
// Consumes the invite and stamps the authoritative start time. Most clients
// start through the WebSocket stream instead; this is the REST fallback.
func (h *InviteHandler) Start(c *gin.Context) {
	var req model.InviteRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	details, err := h.participantService.StartTest(c.Request.Context(), req.Invite)
	if err != nil {
		h.failInvite(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"test": details.Test})
}

// Grade godoc
// POST /api/v1/invites/grade
// The grading gateway: submits the full answer set and returns the
// authoritative result. Grading is idempotent per invite.
func (h *InviteHandler) Grade(c *gin.Context) {
	var req model.GradeRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	result, err := h.gradingService.Grade(c.Request.Context(), req.Invite, req.Answers)
	if err != nil {
		if errors.Is(err, service.ErrNotStarted) {
			response.Fail(c, http.StatusConflict, response.ErrSessionNotStarted)
			return
		}
		h.failInvite(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"result": result})
}

// Result godoc
// GET /api/v1/invites/:invite/result
// Returns the persisted grading record for a finished attempt.
func (h *InviteHandler) Result(c *gin.Context) {
	invite := c.Param("invite")
	if _, _, err := service.ParseInvite(invite); err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidInvite)
		return
	}

	record, err := h.resultService.GetByInvite(c.Request.Context(), invite)
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"result": record})
}

func (h *InviteHandler) failInvite(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidInvite):
		response.Fail(c, http.StatusNotFound, response.ErrInvalidInvite)
	case errors.Is(err, service.ErrTestNotOpen):
		response.Fail(c, http.StatusConflict, response.ErrTestNotAvailable)
	case errors.Is(err, service.ErrTestClosed):
		response.Fail(c, http.StatusConflict, response.ErrTestEnded)
	case errors.Is(err, service.ErrTestNotReady):
		response.Fail(c, http.StatusConflict, response.ErrTestNotReady)
	case errors.Is(err, service.ErrAlreadyTaken):
		response.Fail(c, http.StatusConflict, response.ErrAlreadyTaken)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
