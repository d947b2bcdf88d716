package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/quizmine/quizmine-backend/internal/model"
)

// ResultRepository handles graded result persistence.
type ResultRepository struct {
	pool *pgxpool.Pool
}

// NewResultRepository creates a new ResultRepository.
func NewResultRepository(pool *pgxpool.Pool) *ResultRepository {
	return &ResultRepository{pool: pool}
}

// UpsertBatch writes a batch of grading records in one round trip. Conflicts
// on invite keep the first write; grading is idempotent per invite, so a
// requeued record never overwrites an earlier one.
func (r *ResultRepository) UpsertBatch(ctx context.Context, records []model.ResultRecord) error {
	invites := make([]string, len(records))
	testIDs := make([]uuid.UUID, len(records))
	codes := make([]string, len(records))
	corrects := make([]int, len(records))
	totals := make([]int, len(records))
	passeds := make([]bool, len(records))
	passingScores := make([]float64, len(records))
	timeTakens := make([]int64, len(records))
	submittedAts := make([]any, len(records))
	submissions := make([][]byte, len(records))

	for i, rec := range records {
		invites[i] = rec.Invite
		testIDs[i] = rec.TestID
		codes[i] = rec.ParticipantCode
		corrects[i] = rec.Correct
		totals[i] = rec.Total
		passeds[i] = rec.Passed
		passingScores[i] = rec.PassingScore
		timeTakens[i] = rec.TimeTakenMs
		submittedAts[i] = rec.SubmittedAt

		body, err := json.Marshal(rec.Submissions)
		if err != nil {
			return fmt.Errorf("encode submissions for %s: %w", rec.Invite, err)
		}
		submissions[i] = body
	}

	_, err := r.pool.Exec(ctx,
		`INSERT INTO results (
			invite, test_id, participant_code, correct, total, passed,
			passing_score, time_taken_ms, submitted_at, submissions
		)
		SELECT u.invite, u.test_id, u.participant_code, u.correct, u.total, u.passed,
			u.passing_score, u.time_taken_ms, u.submitted_at, u.submissions
		FROM UNNEST(
			$1::text[], $2::uuid[], $3::text[], $4::int[], $5::int[], $6::boolean[],
			$7::float8[], $8::bigint[], $9::timestamptz[], $10::jsonb[]
		) AS u(invite, test_id, participant_code, correct, total, passed,
			passing_score, time_taken_ms, submitted_at, submissions)
		ON CONFLICT (invite) DO NOTHING`,
		invites, testIDs, codes, corrects, totals, passeds,
		passingScores, timeTakens, submittedAts, submissions,
	)
	return err
}

// Upsert writes a single grading record. Fallback path for batch failures.
func (r *ResultRepository) Upsert(ctx context.Context, rec model.ResultRecord) error {
	body, err := json.Marshal(rec.Submissions)
	if err != nil {
		return fmt.Errorf("encode submissions: %w", err)
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO results (
			invite, test_id, participant_code, correct, total, passed,
			passing_score, time_taken_ms, submitted_at, submissions
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (invite) DO NOTHING`,
		rec.Invite, rec.TestID, rec.ParticipantCode, rec.Correct, rec.Total, rec.Passed,
		rec.PassingScore, rec.TimeTakenMs, rec.SubmittedAt, body,
	)
	return err
}

// GetByInvite retrieves the grading record for one invite.
func (r *ResultRepository) GetByInvite(ctx context.Context, invite string) (*model.ResultRecord, error) {
	rec := &model.ResultRecord{}
	var body []byte
	err := r.pool.QueryRow(ctx,
		`SELECT invite, test_id, participant_code, correct, total, passed,
			passing_score, time_taken_ms, submitted_at, submissions
		 FROM results
		 WHERE invite = $1`, invite,
	).Scan(&rec.Invite, &rec.TestID, &rec.ParticipantCode, &rec.Correct, &rec.Total,
		&rec.Passed, &rec.PassingScore, &rec.TimeTakenMs, &rec.SubmittedAt, &body)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(body, &rec.Submissions); err != nil {
		return nil, fmt.Errorf("decode submissions: %w", err)
	}
	return rec, nil
}

// ListByTest retrieves a test's grading records newest first, without the
// per-question submissions.
func (r *ResultRepository) ListByTest(ctx context.Context, testID uuid.UUID, page, perPage int) ([]model.ResultRecord, int64, error) {
	var total int64
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM results WHERE test_id = $1`, testID,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT invite, test_id, participant_code, correct, total, passed,
			passing_score, time_taken_ms, submitted_at
		 FROM results
		 WHERE test_id = $1
		 ORDER BY submitted_at DESC
		 LIMIT $2 OFFSET $3`,
		testID, perPage, (page-1)*perPage,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var records []model.ResultRecord
	for rows.Next() {
		var rec model.ResultRecord
		if err := rows.Scan(&rec.Invite, &rec.TestID, &rec.ParticipantCode, &rec.Correct,
			&rec.Total, &rec.Passed, &rec.PassingScore, &rec.TimeTakenMs, &rec.SubmittedAt); err != nil {
			return nil, 0, err
		}
		records = append(records, rec)
	}
	return records, total, rows.Err()
}

// ScoresByTest returns every percentage score and pass flag for a test, for
// the aggregate statistics view.
func (r *ResultRepository) ScoresByTest(ctx context.Context, testID uuid.UUID) (scores []float64, passed []bool, err error) {
	rows, err := r.pool.Query(ctx,
		`SELECT CASE WHEN total = 0 THEN 0
			ELSE correct::float8 * 100 / total END,
			passed
		 FROM results
		 WHERE test_id = $1`, testID,
	)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var s float64
		var p bool
		if err := rows.Scan(&s, &p); err != nil {
			return nil, nil, err
		}
		scores = append(scores, s)
		passed = append(passed, p)
	}
	return scores, passed, rows.Err()
}
