package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/quizmine/quizmine-backend/internal/config"
	"github.com/quizmine/quizmine-backend/internal/model"
	"github.com/quizmine/quizmine-backend/internal/repository"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials covers both unknown emails and wrong passwords so a
// failed login never reveals which half was wrong.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Claims extends JWT standard claims with app-specific fields. Tutors are
// the only authenticated principals; participants authenticate per attempt
// with their invite token.
type Claims struct {
	jwt.RegisteredClaims
	TutorID int `json:"tutor_id"`
}

// AuthService handles tutor authentication and JWT issuance.
type AuthService struct {
	cfg    *config.Config
	tutors *repository.TutorRepository
}

// NewAuthService creates a new AuthService.
func NewAuthService(cfg *config.Config, tutors *repository.TutorRepository) *AuthService {
	return &AuthService{cfg: cfg, tutors: tutors}
}

// HashPassword hashes a password with the configured bcrypt cost.
func (s *AuthService) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.BcryptCost)
	return string(hash), err
}

// CheckPassword compares a plaintext password against a bcrypt hash.
func (s *AuthService) CheckPassword(hash, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// Login verifies a tutor's credentials and returns the tutor with a signed
// token.
func (s *AuthService) Login(ctx context.Context, email, password string) (*model.Tutor, string, error) {
	tutor, err := s.tutors.GetByEmail(ctx, email)
	if err != nil {
		return nil, "", ErrInvalidCredentials
	}
	if err := s.CheckPassword(tutor.PasswordHash, password); err != nil {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.GenerateToken(tutor.ID)
	if err != nil {
		return nil, "", err
	}
	return tutor, token, nil
}

// GenerateToken creates a JWT for a tutor.
func (s *AuthService) GenerateToken(tutorID int) (string, error) {
	now := time.Now()

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   strconv.Itoa(tutorID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.JWTExpiry)),
		},
		TutorID: tutorID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.cfg.JWTSecret))
}

// ValidateToken parses and validates a JWT, returning the claims.
func (s *AuthService) ValidateToken(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.cfg.JWTSecret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}

	return claims, nil
}
