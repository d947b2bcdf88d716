package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/quizmine/quizmine-backend/internal/model"
)

// TutorRepository handles tutor account data access.
type TutorRepository struct {
	pool *pgxpool.Pool
}

// NewTutorRepository creates a new TutorRepository.
func NewTutorRepository(pool *pgxpool.Pool) *TutorRepository {
	return &TutorRepository{pool: pool}
}

// GetByID retrieves a tutor by ID.
func (r *TutorRepository) GetByID(ctx context.Context, id int) (*model.Tutor, error) {
	t := &model.Tutor{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, email, password_hash, created_at
		 FROM tutors
		 WHERE id = $1`, id,
	).Scan(&t.ID, &t.Name, &t.Email, &t.PasswordHash, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// GetByEmail retrieves a tutor by their unique email.
func (r *TutorRepository) GetByEmail(ctx context.Context, email string) (*model.Tutor, error) {
	t := &model.Tutor{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, email, password_hash, created_at
		 FROM tutors
		 WHERE email = $1`, email,
	).Scan(&t.ID, &t.Name, &t.Email, &t.PasswordHash, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// Create inserts a new tutor.
func (r *TutorRepository) Create(ctx context.Context, t *model.Tutor) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO tutors (name, email, password_hash)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at`,
		t.Name, t.Email, t.PasswordHash,
	).Scan(&t.ID, &t.CreatedAt)
}
