package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quizmine/quizmine-backend/internal/model"
)

func TestControllerSkipRequiresConfiguration(t *testing.T) {
	locked, _, _ := begun(t)
	ctrl := NewController(locked)

	require.ErrorIs(t, ctrl.Skip(), ErrSkipDisabled)
	assert.Equal(t, 0, locked.Position())

	open, _, _ := begun(t, func(tt *model.Test) { tt.SkipQuestions = true })
	ctrl = NewController(open)
	require.NoError(t, ctrl.Skip())
	assert.Equal(t, 1, open.Position())
}

func TestControllerSkipRecordsExplicitSkip(t *testing.T) {
	s, _, _ := begun(t, func(tt *model.Test) { tt.SkipQuestions = true })
	ctrl := NewController(s)

	// skipping an untouched question leaves it visited with no option
	first := s.Current()
	require.NoError(t, ctrl.Skip())
	assert.True(t, first.Selected.Recorded)
	assert.Nil(t, first.Selected.OptionID)

	// skipping a question with a selection keeps that selection
	second := s.Current()
	require.NoError(t, s.SelectAnswer(second.PresentationID, intPtr(3)))
	require.NoError(t, ctrl.Skip())
	assert.True(t, second.Selected.Recorded)
	assert.Equal(t, 3, *second.Selected.OptionID)
}

func TestControllerPrevious(t *testing.T) {
	s, _, _ := begun(t, func(tt *model.Test) { tt.SkipQuestions = true })
	ctrl := NewController(s)

	require.NoError(t, ctrl.Skip())
	require.NoError(t, ctrl.Previous())
	assert.Equal(t, 0, s.Position())
}

func TestControllerNavigationNoOpOutsideProgress(t *testing.T) {
	s, _, _ := begun(t, func(tt *model.Test) { tt.SkipQuestions = true })
	ctrl := NewController(s)

	s.ForceEnd()
	require.Equal(t, StateReviewing, s.State())

	require.NoError(t, ctrl.Skip())
	require.NoError(t, ctrl.Advance())
	require.NoError(t, ctrl.Previous())
	assert.Equal(t, StateReviewing, s.State())

	// a submitted session stays loud
	_, err := s.Submit(context.Background())
	require.NoError(t, err)
	require.ErrorIs(t, ctrl.Skip(), ErrSessionSubmitted)
	require.ErrorIs(t, ctrl.Advance(), ErrSessionSubmitted)
	require.ErrorIs(t, ctrl.Previous(), ErrSessionSubmitted)
}

func TestControllerGoToQuestionFromReview(t *testing.T) {
	s, _, _ := begun(t, func(tt *model.Test) { tt.SkipQuestions = true })
	ctrl := NewController(s)

	s.ForceEnd()
	require.Equal(t, StateReviewing, s.State())

	target := s.Questions()[2]
	require.NoError(t, ctrl.GoToQuestion(target.PresentationID))
	assert.Equal(t, StateInProgress, s.State())
	assert.Equal(t, target.PresentationID, s.Current().PresentationID)

	require.ErrorIs(t, ctrl.GoToQuestion("not-a-question"), ErrUnknownQuestion)
}

func TestControllerGoToQuestionUsesReviewIdentifiers(t *testing.T) {
	s, _, _ := begun(t, func(tt *model.Test) { tt.SkipQuestions = true })
	ctrl := NewController(s)

	s.ForceEnd()

	// every identifier the review view lists must be directly navigable
	incomplete := s.Incomplete()
	require.Len(t, incomplete, 3)
	for _, q := range incomplete {
		require.NoError(t, ctrl.GoToQuestion(q.PresentationID))
		assert.Equal(t, q.PresentationID, s.Current().PresentationID)
	}
}

func TestControllerGoToQuestionGates(t *testing.T) {
	locked, _, _ := begun(t)
	pid := locked.Questions()[0].PresentationID
	require.ErrorIs(t, NewController(locked).GoToQuestion(pid), ErrSkipDisabled)

	s, _, _ := begun(t, func(tt *model.Test) { tt.SkipQuestions = true })
	pid = s.Questions()[0].PresentationID
	s.ForceEnd()
	_, err := s.Submit(context.Background())
	require.NoError(t, err)
	require.ErrorIs(t, NewController(s).GoToQuestion(pid), ErrSessionSubmitted)
}
