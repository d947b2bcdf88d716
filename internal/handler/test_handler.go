package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/quizmine/quizmine-backend/internal/middleware"
	"github.com/quizmine/quizmine-backend/internal/model"
	"github.com/quizmine/quizmine-backend/internal/response"
	"github.com/quizmine/quizmine-backend/internal/service"
	"github.com/quizmine/quizmine-backend/internal/validator"
)

// TestHandler handles the tutor's test authoring and reporting endpoints.
type TestHandler struct {
	testService        *service.TestService
	participantService *service.ParticipantService
	resultService      *service.ResultService
}

// NewTestHandler creates a new TestHandler.
func NewTestHandler(
	testService *service.TestService,
	participantService *service.ParticipantService,
	resultService *service.ResultService,
) *TestHandler {
	return &TestHandler{
		testService:        testService,
		participantService: participantService,
		resultService:      resultService,
	}
}

// Create godoc
// POST /api/v1/tests
// Creates a test from authored sections and optionally invites participants.
func (h *TestHandler) Create(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.CreateTestRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	test, err := h.testService.Create(c.Request.Context(), claims.TutorID, &req)
	if err != nil {
		if errors.Is(err, service.ErrNoQuestions) {
			response.Fail(c, http.StatusBadRequest, response.ErrNoQuestions)
			return
		}
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidPayload)
		return
	}

	var participants []*model.Participant
	if len(req.Participants) > 0 {
		participants, err = h.participantService.AddParticipants(c.Request.Context(), test, req.Participants, false)
		if err != nil {
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
			return
		}
	}

	response.Success(c, http.StatusCreated, gin.H{
		"test":         test,
		"participants": participants,
	})
}

// List godoc
// GET /api/v1/tests?page=&per_page=
func (h *TestHandler) List(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "10"))

	tests, pagination, err := h.testService.ListByTutor(c.Request.Context(), claims.TutorID, page, perPage)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"tests": tests}, pagination)
}

// Get godoc
// GET /api/v1/tests/:test_id
func (h *TestHandler) Get(c *gin.Context) {
	claims, testID, ok := h.ownedTest(c)
	if !ok {
		return
	}

	test, err := h.testService.GetByID(c.Request.Context(), testID, claims.TutorID)
	if err != nil {
		h.failOwnership(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"test": test})
}

// Delete godoc
// DELETE /api/v1/tests/:test_id
func (h *TestHandler) Delete(c *gin.Context) {
	claims, testID, ok := h.ownedTest(c)
	if !ok {
		return
	}

	if err := h.testService.Delete(c.Request.Context(), testID, claims.TutorID); err != nil {
		h.failOwnership(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}

// AddParticipants godoc
// POST /api/v1/tests/:test_id/participants
// Invites a batch of participants; duplicates by email are skipped.
func (h *TestHandler) AddParticipants(c *gin.Context) {
	claims, testID, ok := h.ownedTest(c)
	if !ok {
		return
	}

	test, err := h.testService.GetByID(c.Request.Context(), testID, claims.TutorID)
	if err != nil {
		h.failOwnership(c, err)
		return
	}

	var req model.AddParticipantsRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	created, err := h.participantService.AddParticipants(c.Request.Context(), test, req.Participants, req.SendEmails)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"participants": created})
}

// ListParticipants godoc
// GET /api/v1/tests/:test_id/participants
func (h *TestHandler) ListParticipants(c *gin.Context) {
	claims, testID, ok := h.ownedTest(c)
	if !ok {
		return
	}

	if _, err := h.testService.GetByID(c.Request.Context(), testID, claims.TutorID); err != nil {
		h.failOwnership(c, err)
		return
	}

	participants, err := h.participantService.ListByTest(c.Request.Context(), testID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"participants": participants})
}

// ResendInvites godoc
// POST /api/v1/tests/:test_id/participants/resend
// Requeues invite mails for every participant who has not yet started.
func (h *TestHandler) ResendInvites(c *gin.Context) {
	claims, testID, ok := h.ownedTest(c)
	if !ok {
		return
	}

	test, err := h.testService.GetByID(c.Request.Context(), testID, claims.TutorID)
	if err != nil {
		h.failOwnership(c, err)
		return
	}

	queued, err := h.participantService.ResendInvites(c.Request.Context(), test)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"queued": queued})
}

// SendResults godoc
// POST /api/v1/tests/:test_id/results/send
// Queues a score mail for every graded attempt.
func (h *TestHandler) SendResults(c *gin.Context) {
	claims, testID, ok := h.ownedTest(c)
	if !ok {
		return
	}

	if _, err := h.testService.GetByID(c.Request.Context(), testID, claims.TutorID); err != nil {
		h.failOwnership(c, err)
		return
	}

	queued, err := h.resultService.SendResultMails(c.Request.Context(), testID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"queued": queued})
}

// ListResults godoc
// GET /api/v1/tests/:test_id/results?page=&per_page=
func (h *TestHandler) ListResults(c *gin.Context) {
	claims, testID, ok := h.ownedTest(c)
	if !ok {
		return
	}

	if _, err := h.testService.GetByID(c.Request.Context(), testID, claims.TutorID); err != nil {
		h.failOwnership(c, err)
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "10"))

	records, pagination, err := h.resultService.ListByTest(c.Request.Context(), testID, page, perPage)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"results": records}, pagination)
}

// Stats godoc
// GET /api/v1/tests/:test_id/stats
func (h *TestHandler) Stats(c *gin.Context) {
	claims, testID, ok := h.ownedTest(c)
	if !ok {
		return
	}

	if _, err := h.testService.GetByID(c.Request.Context(), testID, claims.TutorID); err != nil {
		h.failOwnership(c, err)
		return
	}

	stats, err := h.resultService.Stats(c.Request.Context(), testID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"stats": stats})
}

func (h *TestHandler) ownedTest(c *gin.Context) (*service.Claims, uuid.UUID, bool) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return nil, uuid.Nil, false
	}

	testID, err := uuid.Parse(c.Param("test_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return nil, uuid.Nil, false
	}
	return claims, testID, true
}

func (h *TestHandler) failOwnership(c *gin.Context, err error) {
	if errors.Is(err, service.ErrNotTestAuthor) {
		response.Fail(c, http.StatusForbidden, response.ErrNotTestAuthor)
		return
	}
	response.Fail(c, http.StatusNotFound, response.ErrNotFound)
}
