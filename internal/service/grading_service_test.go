package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quizmine/quizmine-backend/internal/config"
	"github.com/quizmine/quizmine-backend/internal/model"
)

type stubClock struct {
	now time.Time
}

func (c *stubClock) Now() time.Time { return c.now }

func newRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func gradedTest(mutators ...func(*model.Test)) *model.Test {
	test := &model.Test{
		ID:           [16]byte{0xde, 0xad, 0xbe, 0xef, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1},
		Name:         "Fractions",
		Timing:       model.TimingPerTest,
		Duration:     20,
		StartDate:    time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
		EndDate:      time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC),
		PassingScore: 60,
		ShowScore:    true,
		AllowReview:  true,
		TestCode:     "MATH66",
		Sections: []model.Section{
			{
				Name: "Basics",
				Questions: []model.Question{
					{ID: 1, Text: "1/2 + 1/2", Options: []model.AnswerOption{{ID: 10, Option: "1"}, {ID: 11, Option: "2"}}},
					{ID: 2, Text: "1/4 * 4", Options: []model.AnswerOption{{ID: 20, Option: "1"}, {ID: 21, Option: "4"}}},
					{ID: 3, Text: "1/3 + 1/3", Options: []model.AnswerOption{{ID: 30, Option: "2/3"}, {ID: 31, Option: "2/6"}}},
				},
			},
		},
		Answers: map[int]model.AnswerOption{
			1: {ID: 10, Option: "1"},
			2: {ID: 20, Option: "1"},
			3: {ID: 30, Option: "2/3"},
		},
	}
	for _, m := range mutators {
		m(test)
	}
	return test
}

func newGrading(t *testing.T, mutators ...func(*model.Test)) (*GradingService, *redis.Client, *stubClock, *model.Test) {
	t.Helper()
	ctx := context.Background()
	rdb := newRedis(t)
	log := zerolog.Nop()

	test := gradedTest(mutators...)
	testService := NewTestService(nil, rdb, log)
	require.NoError(t, testService.WarmTestCache(ctx, test))

	clock := &stubClock{now: test.StartDate.Add(time.Hour)}
	gs := NewGradingService(testService, rdb, clock, log)

	// the invite started ten minutes ago
	invite := test.TestCode + "-ZX9QKW42"
	startedAt := clock.now.Add(-10 * time.Minute)
	require.NoError(t, rdb.Set(ctx, config.CacheKey.InviteStartKey(invite), startedAt.UnixMilli(), 0).Err())

	return gs, rdb, clock, test
}

const invite = "MATH66-ZX9QKW42"

func TestGradeScoresAgainstAnswerKey(t *testing.T) {
	gs, _, _, _ := newGrading(t)

	result, err := gs.Grade(context.Background(), invite, []model.SubmittedAnswer{
		{QuestionID: 1, OptionID: intPtr(10)}, // correct
		{QuestionID: 2, OptionID: intPtr(21)}, // wrong
		{QuestionID: 3, OptionID: nil},        // skipped
	})
	require.NoError(t, err)

	require.NotNil(t, result.Score)
	assert.Equal(t, 1, result.Score.Correct)
	assert.Equal(t, 3, result.Score.Total)
	require.NotNil(t, result.Passed)
	assert.False(t, *result.Passed) // 33% < 60%
	require.NotNil(t, result.PassingScore)
	assert.Equal(t, 60.0, *result.PassingScore)
	assert.Equal(t, int64(10*60*1000), result.TimeTakenMs)

	require.Len(t, result.Answers, 3)
	assert.Equal(t, 1, result.Answers[0].QuestionID)
	assert.True(t, result.Answers[0].IsCorrect)
	require.NotNil(t, result.Answers[0].CorrectOption)
	assert.Equal(t, 10, result.Answers[0].CorrectOption.ID)
	require.NotNil(t, result.Answers[0].Question)
	assert.False(t, result.Answers[1].IsCorrect)
	assert.False(t, result.Answers[2].IsCorrect)
	assert.Nil(t, result.Answers[2].OptionID)
}

func TestGradeMissingAnswersCountAsWrong(t *testing.T) {
	gs, _, _, _ := newGrading(t)

	result, err := gs.Grade(context.Background(), invite, []model.SubmittedAnswer{
		{QuestionID: 1, OptionID: intPtr(10)},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Score.Correct)
	assert.Equal(t, 3, result.Score.Total)
	require.Len(t, result.Answers, 3)
}

func TestGradePassesAtThreshold(t *testing.T) {
	gs, _, _, _ := newGrading(t, func(tt *model.Test) { tt.PassingScore = 100.0 / 3.0 })

	result, err := gs.Grade(context.Background(), invite, []model.SubmittedAnswer{
		{QuestionID: 1, OptionID: intPtr(10)},
	})
	require.NoError(t, err)
	assert.True(t, *result.Passed)
}

func TestGradeHidesScoreWhenConfigured(t *testing.T) {
	gs, _, _, _ := newGrading(t, func(tt *model.Test) { tt.ShowScore = false })

	result, err := gs.Grade(context.Background(), invite, nil)
	require.NoError(t, err)
	assert.Nil(t, result.Score)
	assert.Nil(t, result.Passed)
	assert.Nil(t, result.PassingScore)
	assert.NotEmpty(t, result.Answers) // review still allowed
}

func TestGradeWithholdsReviewWhenConfigured(t *testing.T) {
	gs, _, _, _ := newGrading(t, func(tt *model.Test) { tt.AllowReview = false })

	result, err := gs.Grade(context.Background(), invite, nil)
	require.NoError(t, err)
	assert.Nil(t, result.Answers)
	assert.NotNil(t, result.Score)
}

func TestGradeIsIdempotentPerInvite(t *testing.T) {
	gs, _, _, _ := newGrading(t)
	ctx := context.Background()

	first, err := gs.Grade(ctx, invite, []model.SubmittedAnswer{
		{QuestionID: 1, OptionID: intPtr(10)},
		{QuestionID: 2, OptionID: intPtr(20)},
		{QuestionID: 3, OptionID: intPtr(30)},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, first.Score.Correct)

	// a second submission with different answers returns the first result
	second, err := gs.Grade(ctx, invite, []model.SubmittedAnswer{
		{QuestionID: 1, OptionID: intPtr(11)},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, second.Score.Correct)
}

func TestGradeQueuesPersistenceExactlyOnce(t *testing.T) {
	gs, rdb, _, _ := newGrading(t, func(tt *model.Test) { tt.EmailScores = true })
	ctx := context.Background()

	_, err := gs.Grade(ctx, invite, nil)
	require.NoError(t, err)
	_, err = gs.Grade(ctx, invite, nil)
	require.NoError(t, err)

	persistLen, err := rdb.LLen(ctx, config.WorkerKey.PersistResultsQueue).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), persistLen)

	mailLen, err := rdb.LLen(ctx, config.WorkerKey.SendResultsQueue).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), mailLen)
}

func TestGradeNoMailQueueWithoutEmailScores(t *testing.T) {
	gs, rdb, _, _ := newGrading(t)
	ctx := context.Background()

	_, err := gs.Grade(ctx, invite, nil)
	require.NoError(t, err)

	mailLen, err := rdb.LLen(ctx, config.WorkerKey.SendResultsQueue).Result()
	require.NoError(t, err)
	assert.Zero(t, mailLen)
}

func TestGradeRequiresStartedInvite(t *testing.T) {
	gs, _, _, _ := newGrading(t)

	_, err := gs.Grade(context.Background(), "MATH66-NEVERRAN", nil)
	require.ErrorIs(t, err, ErrNotStarted)
}

func TestGradeRejectsMalformedInvite(t *testing.T) {
	gs, _, _, _ := newGrading(t)

	_, err := gs.Grade(context.Background(), "nodash", nil)
	require.ErrorIs(t, err, ErrInvalidInvite)
}

func intPtr(v int) *int { return &v }
