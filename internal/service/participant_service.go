package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/quizmine/quizmine-backend/internal/config"
	"github.com/quizmine/quizmine-backend/internal/model"
	"github.com/quizmine/quizmine-backend/internal/repository"
	"github.com/quizmine/quizmine-backend/internal/timesync"
)

// Invite lifecycle errors.
var (
	ErrInvalidInvite = errors.New("invite token is not valid")
	ErrTestNotOpen   = errors.New("test has not opened yet")
	ErrTestClosed    = errors.New("test availability window has closed")
	ErrTestNotReady  = errors.New("test is still being prepared")
	ErrAlreadyTaken  = errors.New("invite already used and repeat attempts are not allowed")
)

// InviteMailJob is one queued invite email.
type InviteMailJob struct {
	ParticipantID uuid.UUID `json:"participant_id"`
	TestID        uuid.UUID `json:"test_id"`
	TestName      string    `json:"test_name"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	Invite        string    `json:"invite"`
	EndDate       time.Time `json:"end_date"`
}

// InviteDetails is what an invite resolves to before the test starts: the
// participant-safe test payload plus the participant's own row.
type InviteDetails struct {
	Test        *model.Test        `json:"test"`
	Participant *model.Participant `json:"participant"`
}

// ParticipantService handles invite issuance and the invite lifecycle up to
// the moment a session starts.
type ParticipantService struct {
	participantRepo *repository.ParticipantRepository
	testService     *TestService
	rdb             *redis.Client
	clock           timesync.Clock
	log             zerolog.Logger
}

// NewParticipantService creates a new ParticipantService.
func NewParticipantService(
	participantRepo *repository.ParticipantRepository,
	testService *TestService,
	rdb *redis.Client,
	clock timesync.Clock,
	log zerolog.Logger,
) *ParticipantService {
	return &ParticipantService{
		participantRepo: participantRepo,
		testService:     testService,
		rdb:             rdb,
		clock:           clock,
		log:             log.With().Str("component", "participant_service").Logger(),
	}
}

// AddParticipants invites a batch of people to a test. Each participant gets
// a fresh random code; duplicates by email are silently skipped. With
// sendEmails set, one mail job per new participant is queued for the mail
// worker.
func (s *ParticipantService) AddParticipants(ctx context.Context, test *model.Test, inputs []model.ParticipantInput, sendEmails bool) ([]*model.Participant, error) {
	participants := make([]*model.Participant, len(inputs))
	for i, in := range inputs {
		participants[i] = &model.Participant{
			ID:     uuid.New(),
			TestID: test.ID,
			Name:   in.Name,
			Email:  strings.ToLower(strings.TrimSpace(in.Email)),
			Phone:  in.Phone,
			Code:   GenerateCode(8),
		}
	}

	created, err := s.participantRepo.CreateBatch(ctx, participants)
	if err != nil {
		return nil, fmt.Errorf("create participants: %w", err)
	}

	if sendEmails {
		for _, p := range created {
			job := InviteMailJob{
				ParticipantID: p.ID,
				TestID:        test.ID,
				TestName:      test.Name,
				Name:          p.Name,
				Email:         p.Email,
				Invite:        p.InviteToken(test.TestCode),
				EndDate:       test.EndDate,
			}
			body, err := json.Marshal(job)
			if err != nil {
				s.log.Error().Err(err).Str("email", p.Email).Msg("Failed to encode invite job")
				continue
			}
			if err := s.rdb.RPush(ctx, config.WorkerKey.SendInvitesQueue, body).Err(); err != nil {
				s.log.Error().Err(err).Str("email", p.Email).Msg("Failed to queue invite mail")
			}
		}
	}

	s.log.Info().
		Str("test_id", test.ID.String()).
		Int("requested", len(inputs)).
		Int("created", len(created)).
		Msg("Participants added")
	return created, nil
}

// ResendInvites queues a fresh invite mail for every participant who has not
// yet taken the test. Returns the number of mails queued.
func (s *ParticipantService) ResendInvites(ctx context.Context, test *model.Test) (int, error) {
	participants, err := s.participantRepo.ListByTest(ctx, test.ID)
	if err != nil {
		return 0, fmt.Errorf("list participants: %w", err)
	}

	queued := 0
	for i := range participants {
		p := &participants[i]
		if p.Status != model.ParticipantStatusInvited {
			continue
		}
		job := InviteMailJob{
			ParticipantID: p.ID,
			TestID:        test.ID,
			TestName:      test.Name,
			Name:          p.Name,
			Email:         p.Email,
			Invite:        p.InviteToken(test.TestCode),
			EndDate:       test.EndDate,
		}
		body, err := json.Marshal(job)
		if err != nil {
			s.log.Error().Err(err).Str("email", p.Email).Msg("Failed to encode invite job")
			continue
		}
		if err := s.rdb.RPush(ctx, config.WorkerKey.SendInvitesQueue, body).Err(); err != nil {
			s.log.Error().Err(err).Str("email", p.Email).Msg("Failed to queue invite mail")
			continue
		}
		queued++
	}

	s.log.Info().
		Str("test_id", test.ID.String()).
		Int("queued", queued).
		Msg("Invites requeued")
	return queued, nil
}

// NormalizeInvite canonicalizes an invite token. Every service entry point
// normalizes first, so Redis keys derived from the token never differ by
// case.
func NormalizeInvite(invite string) string {
	return strings.ToUpper(strings.TrimSpace(invite))
}

// ParseInvite splits an invite token into its test code and participant code
// halves. The token format is <testCode>-<participantCode>.
func ParseInvite(invite string) (testCode, participantCode string, err error) {
	parts := strings.SplitN(strings.TrimSpace(invite), "-", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", ErrInvalidInvite
	}
	return strings.ToUpper(parts[0]), strings.ToUpper(parts[1]), nil
}

// attemptGate rejects invites that can no longer lead to an attempt: a closed
// availability window, a test that is not done processing, or a spent invite
// when repeats are disallowed. The not-yet-open check applies only when
// starting, so the pre-start screen can still preview an upcoming test.
func attemptGate(test *model.Test, participant *model.Participant, now time.Time, forStart bool) error {
	if forStart && now.Before(test.StartDate) {
		return ErrTestNotOpen
	}
	if !now.Before(test.EndDate) {
		return ErrTestClosed
	}
	if test.ProcessingStatus != model.ProcessingReady {
		return ErrTestNotReady
	}
	if participant.Status != model.ParticipantStatusInvited && !test.AllowMultipleAttempts {
		return ErrAlreadyTaken
	}
	return nil
}

// ProcessInvite resolves an invite token to its test payload and participant
// without yet consuming the attempt. This backs the pre-start screen; dead
// invites (window closed, test not ready, attempt spent) are rejected here
// rather than at start time.
func (s *ParticipantService) ProcessInvite(ctx context.Context, invite string) (*InviteDetails, error) {
	invite = NormalizeInvite(invite)
	testCode, participantCode, err := ParseInvite(invite)
	if err != nil {
		return nil, err
	}

	testID, err := s.testService.ResolveTestCode(ctx, testCode)
	if err != nil {
		return nil, ErrInvalidInvite
	}

	test, err := s.testService.GetCachedPayload(ctx, testID)
	if err != nil {
		return nil, fmt.Errorf("load test payload: %w", err)
	}

	participant, err := s.participantRepo.GetByTestAndCode(ctx, testID, participantCode)
	if err != nil {
		return nil, ErrInvalidInvite
	}

	if err := attemptGate(test, participant, s.clock.Now(), false); err != nil {
		return nil, err
	}

	return &InviteDetails{Test: test, Participant: participant}, nil
}

// StartTest consumes an invite: it enforces the availability window and the
// repeat-attempt rule, stamps the synchronized start time in Redis for the
// time-taken calculation, and marks the participant TAKEN.
func (s *ParticipantService) StartTest(ctx context.Context, invite string) (*InviteDetails, error) {
	invite = NormalizeInvite(invite)
	details, err := s.ProcessInvite(ctx, invite)
	if err != nil {
		return nil, err
	}

	test, participant := details.Test, details.Participant
	now := s.clock.Now()

	if err := attemptGate(test, participant, now, true); err != nil {
		return nil, err
	}

	if err := s.rdb.Set(ctx, config.CacheKey.InviteStartKey(invite),
		now.UnixMilli(), time.Until(test.EndDate)+24*time.Hour).Err(); err != nil {
		return nil, fmt.Errorf("record start time: %w", err)
	}

	if err := s.participantRepo.MarkStarted(ctx, participant.ID, now); err != nil {
		return nil, fmt.Errorf("mark started: %w", err)
	}
	participant.Status = model.ParticipantStatusTaken
	participant.LastStartedAt = &now

	s.log.Info().
		Str("test_id", test.ID.String()).
		Str("participant", participant.Code).
		Msg("Test started")
	return details, nil
}

// ListByTest returns a test's participants for the tutor view.
func (s *ParticipantService) ListByTest(ctx context.Context, testID uuid.UUID) ([]model.Participant, error) {
	participants, err := s.participantRepo.ListByTest(ctx, testID)
	if err != nil {
		return nil, err
	}
	if participants == nil {
		participants = []model.Participant{}
	}
	return participants, nil
}

// MarkInvited stamps the send time after the mail worker delivers an invite.
func (s *ParticipantService) MarkInvited(ctx context.Context, id uuid.UUID) error {
	return s.participantRepo.MarkInvited(ctx, id, s.clock.Now())
}
