package service

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/quizmine/quizmine-backend/internal/config"
	"github.com/quizmine/quizmine-backend/internal/model"
	"github.com/quizmine/quizmine-backend/internal/repository"
	"github.com/quizmine/quizmine-backend/internal/response"
)

// Domain Errors
var (
	ErrNotTestAuthor = errors.New("not the author of this test")
	ErrNoQuestions   = errors.New("test has no questions")
	ErrTestNotFound  = errors.New("test not found")
)

// codeAlphabet deliberately omits 0/O and 1/I.
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// GenerateCode returns a random n-character code for test codes and
// participant codes.
func GenerateCode(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("read random bytes: %v", err))
	}
	for i, b := range buf {
		buf[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(buf)
}

// TestService handles test authoring, the Redis payload cache, and the
// answer-key cache that grading reads from.
type TestService struct {
	testRepo *repository.TestRepository
	rdb      *redis.Client
	log      zerolog.Logger
}

// NewTestService creates a new TestService.
func NewTestService(testRepo *repository.TestRepository, rdb *redis.Client, log zerolog.Logger) *TestService {
	return &TestService{
		testRepo: testRepo,
		rdb:      rdb,
		log:      log.With().Str("component", "test_service").Logger(),
	}
}

// Create persists a new test from authored input and warms its caches. The
// inline correct options are split out of the sections into the answer key,
// so the stored sections are already participant-safe.
func (s *TestService) Create(ctx context.Context, tutorID int, req *model.CreateTestRequest) (*model.Test, error) {
	test := &model.Test{
		ID:                    uuid.New(),
		TutorID:               tutorID,
		Name:                  req.Name,
		Description:           req.Description,
		Timing:                model.TimingMode(req.Timing),
		Duration:              req.Duration,
		StartDate:             req.StartDate,
		EndDate:               req.EndDate,
		PassingScore:          req.PassingScore,
		ShowScore:             req.ShowScore,
		EmailScores:           req.EmailScores,
		RandomizeQuestions:    req.RandomizeQuestions,
		AllowMultipleAttempts: req.AllowMultipleAttempts,
		AllowReview:           req.AllowReview,
		SkipQuestions:         req.SkipQuestions,
		TestCode:              GenerateCode(6),
		ProcessingStatus:      model.ProcessingPending,
		Answers:               make(map[int]model.AnswerOption),
	}

	for _, sec := range req.Sections {
		section := model.Section{
			Name:         sec.Name,
			Instructions: sec.Instructions,
		}
		for _, q := range sec.Questions {
			var correct *model.AnswerOption
			for _, opt := range q.Options {
				if opt.ID == q.CorrectOption {
					correct = &model.AnswerOption{ID: opt.ID, Option: opt.Option, Solution: q.Solution}
					break
				}
			}
			if correct == nil {
				return nil, fmt.Errorf("question %d: correct option %d not among its options", q.ID, q.CorrectOption)
			}
			if _, dup := test.Answers[q.ID]; dup {
				return nil, fmt.Errorf("question id %d used twice", q.ID)
			}
			test.Answers[q.ID] = *correct

			section.Questions = append(section.Questions, model.Question{
				ID:       q.ID,
				Text:     q.Text,
				Resource: q.Resource,
				Options:  q.Options,
			})
		}
		test.Sections = append(test.Sections, section)
	}

	if test.NumberOfQuestions() == 0 {
		return nil, ErrNoQuestions
	}

	if err := s.testRepo.Create(ctx, test); err != nil {
		return nil, fmt.Errorf("create test: %w", err)
	}

	if err := s.WarmTestCache(ctx, test); err != nil {
		// the cache can be rebuilt lazily; the test itself is saved
		s.log.Warn().Err(err).Str("test_id", test.ID.String()).Msg("Failed to warm cache on create")
	} else if err := s.testRepo.UpdateProcessingStatus(ctx, test.ID, model.ProcessingReady); err != nil {
		s.log.Warn().Err(err).Str("test_id", test.ID.String()).Msg("Failed to mark test READY")
	} else {
		test.ProcessingStatus = model.ProcessingReady
	}

	s.log.Info().
		Str("test_id", test.ID.String()).
		Str("test_code", test.TestCode).
		Int("questions", test.NumberOfQuestions()).
		Msg("Test created")
	return test, nil
}

// GetByID retrieves a test, enforcing ownership.
func (s *TestService) GetByID(ctx context.Context, id uuid.UUID, tutorID int) (*model.Test, error) {
	test, err := s.testRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if test.TutorID != tutorID {
		return nil, ErrNotTestAuthor
	}
	return test, nil
}

// ListByTutor retrieves the tutor's tests with pagination.
func (s *TestService) ListByTutor(ctx context.Context, tutorID, page, perPage int) ([]model.Test, *response.Pagination, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 10
	}
	if perPage > 100 {
		perPage = 100
	}

	tests, total, err := s.testRepo.ListByTutor(ctx, tutorID, page, perPage)
	if err != nil {
		return nil, nil, err
	}
	if tests == nil {
		tests = []model.Test{}
	}

	pagination := &response.Pagination{
		Page:       page,
		PerPage:    perPage,
		TotalItems: int(total),
		TotalPages: (int(total) + perPage - 1) / perPage,
	}
	return tests, pagination, nil
}

// Delete removes a test and drops its cache entries.
func (s *TestService) Delete(ctx context.Context, id uuid.UUID, tutorID int) error {
	test, err := s.testRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if test.TutorID != tutorID {
		return ErrNotTestAuthor
	}

	removed, err := s.testRepo.Delete(ctx, id, tutorID)
	if err != nil {
		return err
	}
	if removed == 0 {
		return ErrTestNotFound
	}

	idStr := id.String()
	if err := s.rdb.Del(ctx,
		config.CacheKey.TestPayloadKey(idStr),
		config.CacheKey.TestAnswerKey(idStr),
		config.CacheKey.TestCodeKey(test.TestCode),
	).Err(); err != nil {
		s.log.Warn().Err(err).Str("test_id", idStr).Msg("Failed to drop cache entries")
	}
	return nil
}

// WarmTestCache loads one test's participant payload, answer key and code
// mapping into Redis. The payload is the participant view; the key never
// appears in it.
func (s *TestService) WarmTestCache(ctx context.Context, test *model.Test) error {
	if test.NumberOfQuestions() == 0 {
		return ErrNoQuestions
	}
	if len(test.Answers) == 0 {
		return errors.New("test has no answer key")
	}

	view := test.ParticipantView()
	payloadJSON, err := json.Marshal(&view)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	answerKey := make(map[string]interface{}, len(test.Answers))
	for qid, opt := range test.Answers {
		body, err := json.Marshal(opt)
		if err != nil {
			return fmt.Errorf("marshal answer for question %d: %w", qid, err)
		}
		answerKey[fmt.Sprintf("%d", qid)] = body
	}

	idStr := test.ID.String()
	pipe := s.rdb.Pipeline()
	pipe.Set(ctx, config.CacheKey.TestPayloadKey(idStr), payloadJSON, 0)
	pipe.Del(ctx, config.CacheKey.TestAnswerKey(idStr))
	pipe.HSet(ctx, config.CacheKey.TestAnswerKey(idStr), answerKey)
	pipe.Set(ctx, config.CacheKey.TestCodeKey(test.TestCode), idStr, 0)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache to redis: %w", err)
	}

	s.log.Debug().
		Str("test_id", idStr).
		Int("questions", test.NumberOfQuestions()).
		Msg("Cache warmed")
	return nil
}

// PrewarmAllCaches loads every still-open test into Redis on startup so the
// first participant of the day never hits a cold cache.
func (s *TestService) PrewarmAllCaches(ctx context.Context) error {
	tests, err := s.testRepo.ListOpen(ctx)
	if err != nil {
		return fmt.Errorf("list open tests: %w", err)
	}

	if len(tests) == 0 {
		s.log.Info().Msg("No open tests to prewarm")
		return nil
	}

	warmed := 0
	for i := range tests {
		if err := s.WarmTestCache(ctx, &tests[i]); err != nil {
			s.log.Warn().
				Err(err).
				Str("test_id", tests[i].ID.String()).
				Msg("Failed to warm test, skipping")
			continue
		}
		warmed++
	}

	s.log.Info().
		Int("warmed", warmed).
		Int("total", len(tests)).
		Msg("Prewarming complete")
	return nil
}

// GetCachedPayload retrieves the participant payload from Redis, falling
// back to PostgreSQL and rewarming on a miss.
func (s *TestService) GetCachedPayload(ctx context.Context, testID uuid.UUID) (*model.Test, error) {
	data, err := s.rdb.Get(ctx, config.CacheKey.TestPayloadKey(testID.String())).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("get payload: %w", err)
		}
		test, err := s.testRepo.GetByID(ctx, testID)
		if err != nil {
			return nil, ErrTestNotFound
		}
		if err := s.WarmTestCache(ctx, test); err != nil {
			return nil, fmt.Errorf("rewarm cache: %w", err)
		}
		view := test.ParticipantView()
		return &view, nil
	}

	var payload model.Test
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}
	return &payload, nil
}

// ResolveTestCode maps a public test code to the test ID, falling back to
// PostgreSQL on a miss.
func (s *TestService) ResolveTestCode(ctx context.Context, code string) (uuid.UUID, error) {
	idStr, err := s.rdb.Get(ctx, config.CacheKey.TestCodeKey(code)).Result()
	if err == nil {
		return uuid.Parse(idStr)
	}
	if !errors.Is(err, redis.Nil) {
		return uuid.Nil, fmt.Errorf("resolve test code: %w", err)
	}

	test, err := s.testRepo.GetByCode(ctx, code)
	if err != nil {
		return uuid.Nil, ErrTestNotFound
	}
	if err := s.WarmTestCache(ctx, test); err != nil {
		s.log.Warn().Err(err).Str("test_code", code).Msg("Failed to rewarm cache")
	}
	return test.ID, nil
}

// GetAnswerKey retrieves the cached answer key: bank question ID to its
// correct option.
func (s *TestService) GetAnswerKey(ctx context.Context, testID uuid.UUID) (map[int]model.AnswerOption, error) {
	result, err := s.rdb.HGetAll(ctx, config.CacheKey.TestAnswerKey(testID.String())).Result()
	if err != nil {
		return nil, fmt.Errorf("get answer key: %w", err)
	}
	if len(result) == 0 {
		return nil, errors.New("answer key not cached")
	}

	key := make(map[int]model.AnswerOption, len(result))
	for field, raw := range result {
		var qid int
		if _, err := fmt.Sscanf(field, "%d", &qid); err != nil {
			return nil, fmt.Errorf("bad answer key field %q", field)
		}
		var opt model.AnswerOption
		if err := json.Unmarshal([]byte(raw), &opt); err != nil {
			return nil, fmt.Errorf("decode answer for question %d: %w", qid, err)
		}
		key[qid] = opt
	}
	return key, nil
}
