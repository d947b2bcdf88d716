package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quizmine/quizmine-backend/internal/model"
)

// fakeClock is a manually driven Clock.
type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) advance(d time.Duration) { c.now = c.now.Add(d) }
func (c *fakeClock) set(t time.Time)         { c.now = t }

// stubGrader records submissions and answers with a canned result.
type stubGrader struct {
	result  *model.GradingResult
	err     error
	invite  string
	answers []model.SubmittedAnswer
	calls   int
}

func (g *stubGrader) Grade(_ context.Context, invite string, answers []model.SubmittedAnswer) (*model.GradingResult, error) {
	g.calls++
	g.invite = invite
	g.answers = answers
	if g.err != nil {
		return nil, g.err
	}
	return g.result, nil
}

func newSession(t *testing.T, mutators ...func(*model.Test)) (*Session, *fakeClock, *stubGrader) {
	t.Helper()
	clock := newFakeClock()
	grader := &stubGrader{result: &model.GradingResult{TimeTakenMs: 1000}}
	s := New(buildTest(mutators...), "MATH01-ZX9Q", clock, grader)
	return s, clock, grader
}

func begun(t *testing.T, mutators ...func(*model.Test)) (*Session, *fakeClock, *stubGrader) {
	t.Helper()
	s, clock, grader := newSession(t, mutators...)
	require.NoError(t, s.Begin())
	return s, clock, grader
}

func TestBeginRejectsOutsideAvailabilityWindow(t *testing.T) {
	s, clock, _ := newSession(t)

	clock.set(s.Test().StartDate.Add(-time.Minute))
	require.ErrorIs(t, s.Begin(), ErrNotYetAvailable)
	assert.Equal(t, StateNotStarted, s.State())

	clock.set(s.Test().EndDate)
	require.ErrorIs(t, s.Begin(), ErrTestEnded)
	assert.Equal(t, StateNotStarted, s.State())
}

func TestBeginArmsWholeTestDeadlinePerTest(t *testing.T) {
	s, clock, _ := begun(t) // Duration 30, PER_TEST

	assert.Equal(t, StateInProgress, s.State())
	assert.Equal(t, clock.Now().Add(30*time.Minute), s.TestDeadline())
	assert.True(t, s.QuestionDeadline().IsZero())
	assert.Equal(t, clock.Now(), s.StartedAt())
}

func TestBeginArmsDeadlinesPerQuestion(t *testing.T) {
	s, clock, _ := begun(t, func(tt *model.Test) {
		tt.Timing = model.TimingPerQuestion
		tt.Duration = 45
	})

	// whole-test ceiling is duration per question times question count
	assert.Equal(t, clock.Now().Add(3*45*time.Second), s.TestDeadline())
	assert.Equal(t, clock.Now().Add(45*time.Second), s.QuestionDeadline())
}

func TestBeginClampsDeadlineToEndDate(t *testing.T) {
	s, clock, _ := newSession(t)
	clock.set(s.Test().EndDate.Add(-10 * time.Minute))

	require.NoError(t, s.Begin())
	assert.Equal(t, s.Test().EndDate, s.TestDeadline())
}

func TestBeginResetsPriorProgress(t *testing.T) {
	s, _, _ := begun(t)
	require.NoError(t, s.SelectAnswer(s.Current().PresentationID, intPtr(2)))
	require.NoError(t, s.Advance())

	require.NoError(t, s.Begin())
	assert.Equal(t, 0, s.Position())
	assert.Empty(t, s.Answers()[0].OptionID)
	assert.False(t, s.Questions()[0].Selected.Recorded)
}

func TestSelectAnswerRecordsAndOverwrites(t *testing.T) {
	s, _, _ := begun(t)
	q := s.Current()

	require.NoError(t, s.SelectAnswer(q.PresentationID, intPtr(1)))
	require.True(t, q.Selected.Recorded)
	require.Equal(t, 1, *q.Selected.OptionID)

	require.NoError(t, s.SelectAnswer(q.PresentationID, intPtr(2)))
	assert.Equal(t, 2, *q.Selected.OptionID)

	// explicit skip is recorded but empty
	require.NoError(t, s.SelectAnswer(q.PresentationID, nil))
	assert.True(t, q.Selected.Recorded)
	assert.Nil(t, q.Selected.OptionID)
}

func TestSelectAnswerValidatesTargets(t *testing.T) {
	s, _, _ := begun(t)

	err := s.SelectAnswer("bogus-id", intPtr(1))
	require.ErrorIs(t, err, ErrUnknownQuestion)

	err = s.SelectAnswer(s.Current().PresentationID, intPtr(99))
	require.ErrorIs(t, err, ErrUnknownOption)
	assert.False(t, s.Current().Selected.Recorded)
}

func TestSelectAnswerAddressesNonCurrentQuestion(t *testing.T) {
	s, _, _ := begun(t)
	last := s.Questions()[2]

	require.NoError(t, s.SelectAnswer(last.PresentationID, intPtr(5)))
	assert.Equal(t, 0, s.Position())
	assert.Equal(t, 5, *last.Selected.OptionID)
}

func TestAdvanceWalksToReview(t *testing.T) {
	s, _, _ := begun(t)

	require.NoError(t, s.Advance())
	assert.Equal(t, 1, s.Position())
	require.NoError(t, s.Advance())
	assert.Equal(t, 2, s.Position())
	assert.True(t, s.IsLastQuestion())

	require.NoError(t, s.Advance())
	assert.Equal(t, StateReviewing, s.State())
}

func TestAdvanceReturnsToReviewOnceSeen(t *testing.T) {
	s, _, _ := begun(t, func(tt *model.Test) { tt.SkipQuestions = true })

	require.NoError(t, s.Advance())
	require.NoError(t, s.Advance())
	require.NoError(t, s.Advance())
	require.Equal(t, StateReviewing, s.State())

	// jump back to fix an answer; the next advance goes straight to review
	require.NoError(t, s.JumpTo(0))
	require.Equal(t, StateInProgress, s.State())
	require.NoError(t, s.Advance())
	assert.Equal(t, StateReviewing, s.State())
}

func TestRetreatRespectsBoundsAndConfiguration(t *testing.T) {
	s, _, _ := begun(t, func(tt *model.Test) { tt.SkipQuestions = true })

	// no-op at the first question
	require.NoError(t, s.Retreat())
	assert.Equal(t, 0, s.Position())

	require.NoError(t, s.Advance())
	require.NoError(t, s.Retreat())
	assert.Equal(t, 0, s.Position())

	forward, _, _ := begun(t) // SkipQuestions false
	require.NoError(t, forward.Advance())
	require.NoError(t, forward.Retreat())
	assert.Equal(t, 1, forward.Position())
}

func TestMovementRequiresInProgress(t *testing.T) {
	s, _, _ := newSession(t)

	require.ErrorIs(t, s.Advance(), ErrNotInProgress)
	require.ErrorIs(t, s.Retreat(), ErrNotInProgress)
	require.ErrorIs(t, s.SelectAnswer("x", nil), ErrNotInProgress)
}

func TestForceEndFiresOnce(t *testing.T) {
	s, _, _ := begun(t)

	s.ForceEnd()
	assert.Equal(t, StateReviewing, s.State())
	assert.True(t, s.ForceEnded())

	// repeat and post-review calls change nothing
	s.ForceEnd()
	assert.Equal(t, StateReviewing, s.State())
}

func TestExpireDueWholeTestDeadline(t *testing.T) {
	s, clock, _ := begun(t)

	assert.False(t, s.ExpireDue(clock.Now()))

	clock.set(s.TestDeadline())
	require.True(t, s.ExpireDue(clock.Now()))
	assert.Equal(t, StateReviewing, s.State())
	assert.True(t, s.ForceEnded())
}

func TestExpireDuePerQuestionAutoAdvances(t *testing.T) {
	s, clock, _ := begun(t, func(tt *model.Test) {
		tt.Timing = model.TimingPerQuestion
		tt.Duration = 30
	})

	first := s.Current()
	require.NoError(t, s.SelectAnswer(first.PresentationID, intPtr(2)))

	clock.advance(30 * time.Second)
	require.True(t, s.ExpireDue(clock.Now()))

	// the current selection was committed and the cursor moved on with a
	// fresh countdown
	assert.Equal(t, 1, s.Position())
	assert.Equal(t, 2, *first.Selected.OptionID)
	assert.Equal(t, clock.Now().Add(30*time.Second), s.QuestionDeadline())

	// expiry with nothing selected records an explicit skip
	clock.advance(30 * time.Second)
	require.True(t, s.ExpireDue(clock.Now()))
	second := s.Questions()[1]
	assert.True(t, second.Selected.Recorded)
	assert.Nil(t, second.Selected.OptionID)
}

func TestExpireDuePerQuestionRunsOutIntoReview(t *testing.T) {
	s, clock, _ := begun(t, func(tt *model.Test) {
		tt.Timing = model.TimingPerQuestion
		tt.Duration = 30
	})

	// answer the first question early; the remaining countdowns then run out
	// before the whole-test ceiling, so this is a normal walk into review
	clock.advance(10 * time.Second)
	require.NoError(t, s.SelectAnswer(s.Current().PresentationID, intPtr(2)))
	require.NoError(t, s.Advance())

	clock.advance(30 * time.Second)
	require.True(t, s.ExpireDue(clock.Now()))
	clock.advance(30 * time.Second)
	require.True(t, s.ExpireDue(clock.Now()))

	assert.Equal(t, StateReviewing, s.State())
	assert.False(t, s.ForceEnded())
}

func TestExpireDuePerQuestionLastExpiryHitsCeiling(t *testing.T) {
	s, clock, _ := begun(t, func(tt *model.Test) {
		tt.Timing = model.TimingPerQuestion
		tt.Duration = 30
	})

	// spend the full countdown on every question; the last expiry lands
	// exactly on the whole-test ceiling, which takes precedence and forces
	// the end
	for i := 0; i < 3; i++ {
		clock.advance(30 * time.Second)
		require.True(t, s.ExpireDue(clock.Now()))
	}
	assert.Equal(t, StateReviewing, s.State())
	assert.True(t, s.ForceEnded())
}

func TestExpireDueTestDeadlineWinsOverQuestionDeadline(t *testing.T) {
	s, clock, _ := begun(t, func(tt *model.Test) {
		tt.Timing = model.TimingPerQuestion
		tt.Duration = 30
	})

	// jump past every deadline at once; the whole-test expiry must take
	// precedence and force the end instead of auto-advancing
	clock.set(s.TestDeadline().Add(time.Minute))
	require.True(t, s.ExpireDue(clock.Now()))
	assert.True(t, s.ForceEnded())
	assert.False(t, s.Questions()[0].Selected.Recorded)
}

func TestNextDeadline(t *testing.T) {
	perTest, _, _ := begun(t)
	assert.Equal(t, perTest.TestDeadline(), perTest.NextDeadline())

	perQuestion, _, _ := begun(t, func(tt *model.Test) {
		tt.Timing = model.TimingPerQuestion
		tt.Duration = 30
	})
	assert.Equal(t, perQuestion.QuestionDeadline(), perQuestion.NextDeadline())

	perQuestion.ForceEnd()
	assert.True(t, perQuestion.NextDeadline().IsZero())
}

func TestJumpToClearsReview(t *testing.T) {
	s, clock, _ := begun(t, func(tt *model.Test) {
		tt.Timing = model.TimingPerQuestion
		tt.Duration = 30
		tt.SkipQuestions = true
	})

	require.NoError(t, s.Advance())
	require.NoError(t, s.Advance())
	require.NoError(t, s.Advance())
	require.Equal(t, StateReviewing, s.State())
	require.True(t, s.QuestionDeadline().IsZero())

	require.NoError(t, s.JumpTo(1))
	assert.Equal(t, StateInProgress, s.State())
	assert.Equal(t, 1, s.Position())
	assert.Equal(t, clock.Now().Add(30*time.Second), s.QuestionDeadline())

	require.Error(t, s.JumpTo(99))
}

func TestIncompleteListsUnansweredInOrder(t *testing.T) {
	s, _, _ := begun(t)

	require.NoError(t, s.SelectAnswer(s.Questions()[1].PresentationID, intPtr(3)))
	require.NoError(t, s.SelectAnswer(s.Questions()[2].PresentationID, nil))

	incomplete := s.Incomplete()
	require.Len(t, incomplete, 2)
	assert.Equal(t, 101, incomplete[0].Question.ID)
	assert.Equal(t, 201, incomplete[1].Question.ID)
}

func TestSubmitRequiresReviewing(t *testing.T) {
	s, _, grader := begun(t)

	_, err := s.Submit(context.Background())
	require.ErrorIs(t, err, ErrNotReviewing)
	assert.Zero(t, grader.calls)
}

func TestSubmitSendsAnswersInPresentationOrder(t *testing.T) {
	s, _, grader := begun(t)
	require.NoError(t, s.SelectAnswer(s.Questions()[0].PresentationID, intPtr(2)))
	s.ForceEnd()

	result, err := s.Submit(context.Background())
	require.NoError(t, err)
	require.Same(t, grader.result, result)

	assert.Equal(t, "MATH01-ZX9Q", grader.invite)
	require.Len(t, grader.answers, 3)
	assert.Equal(t, 101, grader.answers[0].QuestionID)
	assert.Equal(t, 2, *grader.answers[0].OptionID)
	assert.Equal(t, 102, grader.answers[1].QuestionID)
	assert.Nil(t, grader.answers[1].OptionID)
	assert.Equal(t, 201, grader.answers[2].QuestionID)

	assert.Equal(t, StateSubmitted, s.State())
	assert.Same(t, result, s.Result())
}

func TestSubmitFailureStaysReviewing(t *testing.T) {
	s, _, grader := begun(t)
	s.ForceEnd()
	grader.err = errors.New("gateway unavailable")

	_, err := s.Submit(context.Background())
	require.Error(t, err)
	assert.Equal(t, StateReviewing, s.State())
	assert.Nil(t, s.Result())

	// retry after the backend recovers
	grader.err = nil
	_, err = s.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateSubmitted, s.State())
	assert.Equal(t, 2, grader.calls)
}

func TestSubmitAppliesReviewKey(t *testing.T) {
	s, _, grader := begun(t)
	grader.result = &model.GradingResult{
		TimeTakenMs: 5000,
		Answers: []model.GradedAnswer{
			{QuestionID: 101, IsCorrect: true, CorrectOption: &model.AnswerOption{ID: 2, Option: "2"}},
			{QuestionID: 102, IsCorrect: false, CorrectOption: &model.AnswerOption{ID: 3, Option: "2"}},
			{QuestionID: 201, IsCorrect: false, CorrectOption: &model.AnswerOption{ID: 5, Option: "3"}},
		},
	}
	s.ForceEnd()

	_, err := s.Submit(context.Background())
	require.NoError(t, err)

	for _, q := range s.Questions() {
		require.NotNil(t, q.CorrectOption, "question %d missing review key", q.Question.ID)
	}
	assert.Equal(t, 2, s.Questions()[0].CorrectOption.ID)
}

func TestSubmitWithoutReviewKeyLeavesQuestionsBlind(t *testing.T) {
	s, _, _ := begun(t)
	s.ForceEnd()

	_, err := s.Submit(context.Background())
	require.NoError(t, err)
	for _, q := range s.Questions() {
		assert.Nil(t, q.CorrectOption)
	}
}

func TestSubmittedSessionIsFrozen(t *testing.T) {
	s, clock, grader := begun(t)
	s.ForceEnd()
	_, err := s.Submit(context.Background())
	require.NoError(t, err)

	_, err = s.Submit(context.Background())
	require.ErrorIs(t, err, ErrSessionSubmitted)
	require.ErrorIs(t, s.Advance(), ErrSessionSubmitted)
	require.ErrorIs(t, s.SelectAnswer(s.Questions()[0].PresentationID, intPtr(1)), ErrSessionSubmitted)
	require.ErrorIs(t, s.JumpTo(0), ErrSessionSubmitted)
	assert.False(t, s.ExpireDue(clock.Now().Add(time.Hour)))
	assert.Equal(t, 1, grader.calls)
}
