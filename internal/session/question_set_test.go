package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quizmine/quizmine-backend/internal/model"
)

func intPtr(v int) *int { return &v }

func buildTest(mutators ...func(*model.Test)) *model.Test {
	t := &model.Test{
		Name:      "Algebra Basics",
		Timing:    model.TimingPerTest,
		Duration:  30,
		StartDate: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC),
		Sections: []model.Section{
			{
				Name:         "Linear Equations",
				Instructions: "Solve for x.",
				Questions: []model.Question{
					{ID: 101, Text: "2x = 4", Options: []model.AnswerOption{{ID: 1, Option: "1"}, {ID: 2, Option: "2"}}},
					{ID: 102, Text: "x + 3 = 5", Options: []model.AnswerOption{{ID: 3, Option: "2"}, {ID: 4, Option: "8"}}},
				},
			},
			{
				Questions: []model.Question{
					{ID: 201, Text: "x^2 = 9", Options: []model.AnswerOption{{ID: 5, Option: "3"}, {ID: 6, Option: "81"}}},
				},
			},
		},
	}
	for _, m := range mutators {
		m(t)
	}
	return t
}

func TestBuildQuestionSetPreservesSectionOrder(t *testing.T) {
	set, err := BuildQuestionSet(buildTest(), false)
	require.NoError(t, err)
	require.Equal(t, 3, set.Len())

	assert.Equal(t, 101, set.At(0).Question.ID)
	assert.Equal(t, 102, set.At(1).Question.ID)
	assert.Equal(t, 201, set.At(2).Question.ID)

	assert.Equal(t, 0, set.At(0).SectionIndex)
	assert.Equal(t, 0, set.At(1).SectionIndex)
	assert.Equal(t, 1, set.At(2).SectionIndex)
}

func TestBuildQuestionSetNumbersWithinSection(t *testing.T) {
	set, err := BuildQuestionSet(buildTest(), false)
	require.NoError(t, err)

	assert.Equal(t, 1, set.At(0).QuestionNumber)
	assert.Equal(t, 2, set.At(1).QuestionNumber)
	// second section restarts from 1
	assert.Equal(t, 1, set.At(2).QuestionNumber)
}

func TestBuildQuestionSetDefaultsSectionName(t *testing.T) {
	set, err := BuildQuestionSet(buildTest(), false)
	require.NoError(t, err)

	assert.Equal(t, "Linear Equations", set.At(0).SectionName)
	assert.Equal(t, "Section 2", set.At(2).SectionName)
}

func TestBuildQuestionSetShuffleKeepsSectionMembership(t *testing.T) {
	test := buildTest(func(tt *model.Test) {
		questions := make([]model.Question, 20)
		for i := range questions {
			questions[i] = model.Question{
				ID:      300 + i,
				Text:    "q",
				Options: []model.AnswerOption{{ID: 1, Option: "a"}, {ID: 2, Option: "b"}},
			}
		}
		tt.Sections = append(tt.Sections, model.Section{Name: "Bulk", Questions: questions})
	})

	set, err := BuildQuestionSet(test, true)
	require.NoError(t, err)
	require.Equal(t, 23, set.Len())

	// a shuffle permutes within sections; every bank ID is still present
	// exactly once and section boundaries are untouched
	seen := map[int]int{}
	for _, q := range set.Questions() {
		seen[q.Question.ID]++
		switch {
		case q.Question.ID >= 300:
			assert.Equal(t, 2, q.SectionIndex)
		case q.Question.ID >= 200:
			assert.Equal(t, 1, q.SectionIndex)
		default:
			assert.Equal(t, 0, q.SectionIndex)
		}
	}
	assert.Len(t, seen, 23)
	for id, n := range seen {
		assert.Equalf(t, 1, n, "question %d duplicated", id)
	}
}

func TestBuildQuestionSetRejectsEmptySection(t *testing.T) {
	test := buildTest(func(tt *model.Test) {
		tt.Sections[1].Questions = nil
	})

	_, err := BuildQuestionSet(test, false)
	require.ErrorIs(t, err, ErrEmptySection)
}

func TestQuestionSetPresentationIDsAreUniqueAndResolvable(t *testing.T) {
	set, err := BuildQuestionSet(buildTest(), true)
	require.NoError(t, err)

	ids := map[string]bool{}
	for i, q := range set.Questions() {
		assert.NotEmpty(t, q.PresentationID)
		assert.False(t, ids[q.PresentationID], "presentation id reused")
		ids[q.PresentationID] = true

		got, ok := set.ByPresentationID(q.PresentationID)
		require.True(t, ok)
		assert.Same(t, q, got)

		pos, ok := set.PositionOf(q.PresentationID)
		require.True(t, ok)
		assert.Equal(t, i, pos)
	}

	_, ok := set.ByPresentationID("not-a-real-id")
	assert.False(t, ok)
}

func TestQuestionSetPositionOfQuestion(t *testing.T) {
	set, err := BuildQuestionSet(buildTest(), false)
	require.NoError(t, err)

	assert.Equal(t, 1, set.PositionOfQuestion(102))
	assert.Equal(t, -1, set.PositionOfQuestion(999))
}
