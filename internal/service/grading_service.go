package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/quizmine/quizmine-backend/internal/config"
	"github.com/quizmine/quizmine-backend/internal/model"
	"github.com/quizmine/quizmine-backend/internal/timesync"
)

// ErrNotStarted means grading was requested for an invite that never went
// through StartTest.
var ErrNotStarted = errors.New("no recorded start for this invite")

// resultTTL keeps graded results around long enough for reconnects and the
// tutor's same-day checks.
const resultTTL = 72 * time.Hour

// GradingService is the authoritative grader. It reads the cached answer
// key, scores the submission, and returns only what the test's configuration
// allows the participant to see. Results are graded exactly once per invite;
// repeat submissions get the stored result back.
type GradingService struct {
	testService *TestService
	rdb         *redis.Client
	clock       timesync.Clock
	log         zerolog.Logger
}

// NewGradingService creates a new GradingService.
func NewGradingService(testService *TestService, rdb *redis.Client, clock timesync.Clock, log zerolog.Logger) *GradingService {
	return &GradingService{
		testService: testService,
		rdb:         rdb,
		clock:       clock,
		log:         log.With().Str("component", "grading_service").Logger(),
	}
}

// Grade scores a full answer set for one invite. The first call wins: its
// result is stored and every later call for the same invite returns that
// stored result unchanged.
func (s *GradingService) Grade(ctx context.Context, invite string, answers []model.SubmittedAnswer) (*model.GradingResult, error) {
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
	key, err := s.testService.GetAnswerKey(ctx, testID)
	if err != nil {
		return nil, fmt.Errorf("load answer key: %w", err)
	}

	startMs, err := s.startTimeMs(ctx, invite)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	timeTaken := now.UnixMilli() - startMs
	if timeTaken < 0 {
		timeTaken = 0
	}

	graded, correct := scoreAnswers(test, key, answers)
	total := len(key)

	percentage := 0.0
	if total > 0 {
		percentage = float64(correct) * 100 / float64(total)
	}
	passed := percentage >= test.PassingScore

	result := &model.GradingResult{TimeTakenMs: timeTaken}
	if test.ShowScore {
		result.Score = &model.Score{Correct: correct, Total: total}
		result.Passed = &passed
		passingScore := test.PassingScore
		result.PassingScore = &passingScore
	}
	if test.AllowReview {
		result.Answers = graded
	}

	resultJSON, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}

	// First grade wins. If another submission for this invite got here
	// before us, return what it stored.
	stored, err := s.rdb.SetNX(ctx, config.CacheKey.InviteResultKey(invite), resultJSON, resultTTL).Result()
	if err != nil {
		return nil, fmt.Errorf("store result: %w", err)
	}
	if !stored {
		return s.storedResult(ctx, invite)
	}

	record := model.ResultRecord{
		Invite:          invite,
		TestID:          testID,
		ParticipantCode: participantCode,
		Correct:         correct,
		Total:           total,
		Passed:          passed,
		PassingScore:    test.PassingScore,
		TimeTakenMs:     timeTaken,
		SubmittedAt:     now,
		Submissions:     graded,
	}
	recordJSON, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("marshal record: %w", err)
	}
	if err := s.rdb.RPush(ctx, config.WorkerKey.PersistResultsQueue, recordJSON).Err(); err != nil {
		s.log.Error().Err(err).Str("invite", invite).Msg("Failed to queue result for persistence")
	}
	if test.EmailScores {
		if err := s.rdb.RPush(ctx, config.WorkerKey.SendResultsQueue, recordJSON).Err(); err != nil {
			s.log.Error().Err(err).Str("invite", invite).Msg("Failed to queue result mail")
		}
	}

	s.log.Info().
		Str("invite", invite).
		Int("correct", correct).
		Int("total", total).
		Bool("passed", passed).
		Msg("Submission graded")
	return result, nil
}

// scoreAnswers grades every question in the answer key. Questions the
// participant never sent count as wrong; answers to questions outside the
// key are ignored.
func scoreAnswers(test *model.Test, key map[int]model.AnswerOption, answers []model.SubmittedAnswer) ([]model.GradedAnswer, int) {
	questions := make(map[int]*model.Question)
	for si := range test.Sections {
		for qi := range test.Sections[si].Questions {
			q := &test.Sections[si].Questions[qi]
			questions[q.ID] = q
		}
	}

	selected := make(map[int]*int, len(answers))
	for _, a := range answers {
		if _, known := key[a.QuestionID]; known {
			selected[a.QuestionID] = a.OptionID
		}
	}

	// grade in section order so review output is stable
	graded := make([]model.GradedAnswer, 0, len(key))
	correct := 0
	for si := range test.Sections {
		for qi := range test.Sections[si].Questions {
			qid := test.Sections[si].Questions[qi].ID
			correctOpt, known := key[qid]
			if !known {
				continue
			}
			opt := selected[qid]
			isCorrect := opt != nil && *opt == correctOpt.ID
			if isCorrect {
				correct++
			}
			co := correctOpt
			graded = append(graded, model.GradedAnswer{
				QuestionID:    qid,
				OptionID:      opt,
				IsCorrect:     isCorrect,
				CorrectOption: &co,
				Question:      questions[qid],
			})
		}
	}
	return graded, correct
}

func (s *GradingService) startTimeMs(ctx context.Context, invite string) (int64, error) {
	startMs, err := s.rdb.Get(ctx, config.CacheKey.InviteStartKey(invite)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, ErrNotStarted
		}
		return 0, fmt.Errorf("get start time: %w", err)
	}
	return startMs, nil
}

func (s *GradingService) storedResult(ctx context.Context, invite string) (*model.GradingResult, error) {
	data, err := s.rdb.Get(ctx, config.CacheKey.InviteResultKey(invite)).Bytes()
	if err != nil {
		return nil, fmt.Errorf("get stored result: %w", err)
	}
	var result model.GradingResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("unmarshal stored result: %w", err)
	}
	return &result, nil
}
