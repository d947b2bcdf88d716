package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/quizmine/quizmine-backend/internal/model"
)

// ParticipantRepository handles participant data access.
type ParticipantRepository struct {
	pool *pgxpool.Pool
}

// NewParticipantRepository creates a new ParticipantRepository.
func NewParticipantRepository(pool *pgxpool.Pool) *ParticipantRepository {
	return &ParticipantRepository{pool: pool}
}

// CreateBatch inserts a batch of participants for one test. Emails already
// invited to the test are skipped, and only the actually inserted rows are
// returned so invite mails go to new participants alone.
func (r *ParticipantRepository) CreateBatch(ctx context.Context, participants []*model.Participant) ([]*model.Participant, error) {
	ids := make([]uuid.UUID, len(participants))
	testIDs := make([]uuid.UUID, len(participants))
	names := make([]string, len(participants))
	emails := make([]string, len(participants))
	phones := make([]string, len(participants))
	codes := make([]string, len(participants))
	for i, p := range participants {
		ids[i] = p.ID
		testIDs[i] = p.TestID
		names[i] = p.Name
		emails[i] = p.Email
		phones[i] = p.Phone
		codes[i] = p.Code
	}

	rows, err := r.pool.Query(ctx,
		`INSERT INTO participants (id, test_id, name, email, phone, code, status)
		 SELECT u.id, u.test_id, u.name, u.email, u.phone, u.code, $7
		 FROM UNNEST($1::uuid[], $2::uuid[], $3::text[], $4::text[], $5::text[], $6::text[])
			AS u(id, test_id, name, email, phone, code)
		 ON CONFLICT (test_id, email) DO NOTHING
		 RETURNING id, added_at`,
		ids, testIDs, names, emails, phones, codes, string(model.ParticipantStatusInvited),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	inserted := map[uuid.UUID]time.Time{}
	for rows.Next() {
		var id uuid.UUID
		var addedAt time.Time
		if err := rows.Scan(&id, &addedAt); err != nil {
			return nil, err
		}
		inserted[id] = addedAt
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var kept []*model.Participant
	for _, p := range participants {
		if addedAt, ok := inserted[p.ID]; ok {
			p.AddedAt = addedAt
			p.Status = model.ParticipantStatusInvited
			kept = append(kept, p)
		}
	}
	return kept, nil
}

// GetByTestAndCode retrieves a participant by the two halves of the invite
// token.
func (r *ParticipantRepository) GetByTestAndCode(ctx context.Context, testID uuid.UUID, code string) (*model.Participant, error) {
	p := &model.Participant{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, test_id, name, email, phone, code, status, added_at, last_invited_at, last_started_at
		 FROM participants
		 WHERE test_id = $1 AND code = $2`, testID, code,
	).Scan(&p.ID, &p.TestID, &p.Name, &p.Email, &p.Phone, &p.Code, &p.Status,
		&p.AddedAt, &p.LastInvitedAt, &p.LastStartedAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// ListByTest retrieves all participants of a test in invite order.
func (r *ParticipantRepository) ListByTest(ctx context.Context, testID uuid.UUID) ([]model.Participant, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, test_id, name, email, phone, code, status, added_at, last_invited_at, last_started_at
		 FROM participants
		 WHERE test_id = $1
		 ORDER BY added_at ASC`, testID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var participants []model.Participant
	for rows.Next() {
		var p model.Participant
		if err := rows.Scan(&p.ID, &p.TestID, &p.Name, &p.Email, &p.Phone, &p.Code, &p.Status,
			&p.AddedAt, &p.LastInvitedAt, &p.LastStartedAt); err != nil {
			return nil, err
		}
		participants = append(participants, p)
	}
	return participants, rows.Err()
}

// MarkInvited stamps the invite-mail send time.
func (r *ParticipantRepository) MarkInvited(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE participants SET last_invited_at = $1 WHERE id = $2`, at, id)
	return err
}

// MarkGraded moves a participant to GRADED once their result is durable.
func (r *ParticipantRepository) MarkGraded(ctx context.Context, testID uuid.UUID, code string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE participants SET status = $1 WHERE test_id = $2 AND code = $3`,
		model.ParticipantStatusGraded, testID, code)
	return err
}

// MarkStarted stamps the start time and moves the participant to TAKEN.
func (r *ParticipantRepository) MarkStarted(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE participants SET status = $1, last_started_at = $2 WHERE id = $3`,
		model.ParticipantStatusTaken, at, id)
	return err
}
