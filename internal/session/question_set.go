package session

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/google/uuid"
	"github.com/quizmine/quizmine-backend/internal/model"
)

// ErrEmptySection indicates a section with no questions. A live test with an
// empty section is a defect in test creation, surfaced before the participant
// starts rather than silently producing a shorter test.
var ErrEmptySection = errors.New("section has no questions")

// Selection is the tri-state answer record for one session question:
// never visited (Recorded false), explicitly skipped (Recorded true with a
// nil OptionID), or answered with an option.
type Selection struct {
	Recorded bool
	OptionID *int
}

// SessionQuestion wraps a bank question for one participant's session.
//
// PresentationID is a session-local random identifier used for all state
// lookups; the bank ID appears only in grading traffic, so a participant
// cannot infer bank ordering from what the UI handles. CorrectOption stays
// nil for the entire session until the grading gateway responds — the session
// side must never know the correct answer before submission.
type SessionQuestion struct {
	Question            model.Question
	PresentationID      string
	QuestionNumber      int // 1-based within the owning section
	SectionIndex        int
	SectionName         string
	SectionInstructions string
	Selected            Selection
	CorrectOption       *model.AnswerOption
}

// QuestionSet is the ordered question sequence built for one session.
//
// The slice fixed at build time is the canonical display order; the map is
// only a secondary presentation-id → index lookup. Re-reading the slice always
// reproduces the permutation chosen at build time.
type QuestionSet struct {
	ordered []*SessionQuestion
	index   map[string]int
}

// BuildQuestionSet flattens a test's sections into the sequence one
// participant will traverse. Each section's questions are shuffled with a
// fresh Fisher-Yates permutation when randomize is set, numbered from 1
// within the section, and concatenated in configured section order.
func BuildQuestionSet(t *model.Test, randomize bool) (*QuestionSet, error) {
	set := &QuestionSet{
		index: make(map[string]int),
	}

	for si, section := range t.Sections {
		if len(section.Questions) == 0 {
			return nil, fmt.Errorf("section %d (%q): %w", si+1, section.Name, ErrEmptySection)
		}

		questions := make([]model.Question, len(section.Questions))
		copy(questions, section.Questions)

		if randomize {
			rand.Shuffle(len(questions), func(i, j int) {
				questions[i], questions[j] = questions[j], questions[i]
			})
		}

		name := section.Name
		if name == "" {
			name = fmt.Sprintf("Section %d", si+1)
		}

		for qi, q := range questions {
			sq := &SessionQuestion{
				Question:            q,
				PresentationID:      uuid.NewString(),
				QuestionNumber:      qi + 1,
				SectionIndex:        si,
				SectionName:         name,
				SectionInstructions: section.Instructions,
			}
			set.index[sq.PresentationID] = len(set.ordered)
			set.ordered = append(set.ordered, sq)
		}
	}

	return set, nil
}

// Len returns the number of questions in the set.
func (qs *QuestionSet) Len() int { return len(qs.ordered) }

// At returns the question at the given display position.
func (qs *QuestionSet) At(i int) *SessionQuestion { return qs.ordered[i] }

// ByPresentationID looks up a question by its session-local identifier.
func (qs *QuestionSet) ByPresentationID(id string) (*SessionQuestion, bool) {
	i, ok := qs.index[id]
	if !ok {
		return nil, false
	}
	return qs.ordered[i], true
}

// PositionOf returns the display position for a presentation identifier.
func (qs *QuestionSet) PositionOf(id string) (int, bool) {
	i, ok := qs.index[id]
	return i, ok
}

// PositionOfQuestion returns the display position of a bank question ID,
// or -1 when the set does not contain it.
func (qs *QuestionSet) PositionOfQuestion(questionID int) int {
	for i, sq := range qs.ordered {
		if sq.Question.ID == questionID {
			return i
		}
	}
	return -1
}

// Questions returns the questions in display order. The returned slice is a
// copy; the elements are shared.
func (qs *QuestionSet) Questions() []*SessionQuestion {
	out := make([]*SessionQuestion, len(qs.ordered))
	copy(out, qs.ordered)
	return out
}
