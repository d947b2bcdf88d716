package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/quizmine/quizmine-backend/internal/middleware"
	"github.com/quizmine/quizmine-backend/internal/model"
	"github.com/quizmine/quizmine-backend/internal/repository"
	"github.com/quizmine/quizmine-backend/internal/response"
	"github.com/quizmine/quizmine-backend/internal/service"
	"github.com/quizmine/quizmine-backend/internal/validator"
)

// AuthHandler handles tutor authentication endpoints.
type AuthHandler struct {
	authService *service.AuthService
	tutorRepo   *repository.TutorRepository
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService *service.AuthService, tutorRepo *repository.TutorRepository) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		tutorRepo:   tutorRepo,
	}
}

// Login godoc
// POST /api/v1/auth/login
// Validates email + password and returns a JWT.
func (h *AuthHandler) Login(c *gin.Context) {
	var req model.TutorLoginRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	tutor, token, err := h.authService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			response.Fail(c, http.StatusUnauthorized, response.ErrInvalidCredentials)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"token": token,
		"tutor": gin.H{
			"id":    tutor.ID,
			"name":  tutor.Name,
			"email": tutor.Email,
		},
	})
}

// Profile godoc
// GET /api/v1/auth/me
// Returns the profile of the currently authenticated tutor.
func (h *AuthHandler) Profile(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	tutor, err := h.tutorRepo.GetByID(c.Request.Context(), claims.TutorID)
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"tutor": tutor})
}
