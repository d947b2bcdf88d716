package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/quizmine/quizmine-backend/internal/model"
)

// TestRepository handles test data access. Sections and the answer key are
// stored as two separate jsonb columns so the participant payload can be
// served without ever loading the key.
type TestRepository struct {
	pool *pgxpool.Pool
}

// NewTestRepository creates a new TestRepository.
func NewTestRepository(pool *pgxpool.Pool) *TestRepository {
	return &TestRepository{pool: pool}
}

const testColumns = `id, tutor_id, name, description, timing, duration,
	start_date, end_date, passing_score, show_score, email_scores,
	randomize_questions, allow_multiple_attempts, allow_review, skip_questions,
	test_code, processing_status, sections, answers, created_at, updated_at`

func scanTest(row interface{ Scan(...any) error }) (*model.Test, error) {
	t := &model.Test{}
	var sections, answers []byte
	err := row.Scan(
		&t.ID, &t.TutorID, &t.Name, &t.Description, &t.Timing, &t.Duration,
		&t.StartDate, &t.EndDate, &t.PassingScore, &t.ShowScore, &t.EmailScores,
		&t.RandomizeQuestions, &t.AllowMultipleAttempts, &t.AllowReview, &t.SkipQuestions,
		&t.TestCode, &t.ProcessingStatus, &sections, &answers, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(sections, &t.Sections); err != nil {
		return nil, fmt.Errorf("decode sections: %w", err)
	}
	if len(answers) > 0 {
		if err := json.Unmarshal(answers, &t.Answers); err != nil {
			return nil, fmt.Errorf("decode answer key: %w", err)
		}
	}
	return t, nil
}

// Create inserts a new test.
func (r *TestRepository) Create(ctx context.Context, t *model.Test) error {
	sections, err := json.Marshal(t.Sections)
	if err != nil {
		return fmt.Errorf("encode sections: %w", err)
	}
	answers, err := json.Marshal(t.Answers)
	if err != nil {
		return fmt.Errorf("encode answer key: %w", err)
	}

	return r.pool.QueryRow(ctx,
		`INSERT INTO tests (
			id, tutor_id, name, description, timing, duration,
			start_date, end_date, passing_score, show_score, email_scores,
			randomize_questions, allow_multiple_attempts, allow_review, skip_questions,
			test_code, processing_status, sections, answers
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		RETURNING created_at, updated_at`,
		t.ID, t.TutorID, t.Name, t.Description, t.Timing, t.Duration,
		t.StartDate, t.EndDate, t.PassingScore, t.ShowScore, t.EmailScores,
		t.RandomizeQuestions, t.AllowMultipleAttempts, t.AllowReview, t.SkipQuestions,
		t.TestCode, t.ProcessingStatus, sections, answers,
	).Scan(&t.CreatedAt, &t.UpdatedAt)
}

// GetByID retrieves a test by ID, answer key included.
func (r *TestRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Test, error) {
	return scanTest(r.pool.QueryRow(ctx,
		`SELECT `+testColumns+` FROM tests WHERE id = $1`, id))
}

// GetByCode retrieves a test by its public test code.
func (r *TestRepository) GetByCode(ctx context.Context, code string) (*model.Test, error) {
	return scanTest(r.pool.QueryRow(ctx,
		`SELECT `+testColumns+` FROM tests WHERE test_code = $1`, code))
}

// ListByTutor retrieves a tutor's tests, newest first, without section
// bodies or keys. Listing views only need the header fields.
func (r *TestRepository) ListByTutor(ctx context.Context, tutorID, page, perPage int) ([]model.Test, int64, error) {
	var total int64
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM tests WHERE tutor_id = $1`, tutorID,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, tutor_id, name, description, timing, duration,
			start_date, end_date, passing_score, show_score, email_scores,
			randomize_questions, allow_multiple_attempts, allow_review, skip_questions,
			test_code, processing_status, created_at, updated_at
		 FROM tests
		 WHERE tutor_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2 OFFSET $3`,
		tutorID, perPage, (page-1)*perPage,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var tests []model.Test
	for rows.Next() {
		var t model.Test
		if err := rows.Scan(
			&t.ID, &t.TutorID, &t.Name, &t.Description, &t.Timing, &t.Duration,
			&t.StartDate, &t.EndDate, &t.PassingScore, &t.ShowScore, &t.EmailScores,
			&t.RandomizeQuestions, &t.AllowMultipleAttempts, &t.AllowReview, &t.SkipQuestions,
			&t.TestCode, &t.ProcessingStatus, &t.CreatedAt, &t.UpdatedAt,
		); err != nil {
			return nil, 0, err
		}
		tests = append(tests, t)
	}
	return tests, total, rows.Err()
}

// ListOpen retrieves every test whose availability window has not closed,
// answer keys included. Used to prewarm the caches on startup.
func (r *TestRepository) ListOpen(ctx context.Context) ([]model.Test, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+testColumns+` FROM tests WHERE end_date > NOW()`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tests []model.Test
	for rows.Next() {
		t, err := scanTest(rows)
		if err != nil {
			return nil, err
		}
		tests = append(tests, *t)
	}
	return tests, rows.Err()
}

// UpdateProcessingStatus transitions a test's ingestion status.
func (r *TestRepository) UpdateProcessingStatus(ctx context.Context, id uuid.UUID, status model.ProcessingStatus) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE tests SET processing_status = $1, updated_at = NOW() WHERE id = $2`,
		status, id)
	return err
}

// Delete removes a test owned by the given tutor. Returns the number of
// rows removed so callers can distinguish not-found from not-owned.
func (r *TestRepository) Delete(ctx context.Context, id uuid.UUID, tutorID int) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM tests WHERE id = $1 AND tutor_id = $2`, id, tutorID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
