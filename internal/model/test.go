package model

import (
	"time"

	"github.com/google/uuid"
)

// TimingMode selects how the test duration is interpreted.
type TimingMode string

const (
	// TimingPerTest: Duration is the whole-test allotment in minutes.
	TimingPerTest TimingMode = "PER_TEST"
	// TimingPerQuestion: Duration is the per-question allotment in seconds.
	TimingPerQuestion TimingMode = "PER_QUESTION"
)

// ProcessingStatus tracks question-bank ingestion for a test.
type ProcessingStatus string

const (
	ProcessingPending ProcessingStatus = "PENDING"
	ProcessingReady   ProcessingStatus = "READY"
	ProcessingFailed  ProcessingStatus = "FAILED"
)

// Test is a tutor-authored timed test built from a question bank.
// The answer key is stored separately from the sections so that
// participant-facing payloads can carry the sections verbatim.
type Test struct {
	ID                    uuid.UUID        `json:"id"`
	TutorID               int              `json:"tutor_id"`
	Name                  string           `json:"name"`
	Description           string           `json:"description"`
	Timing                TimingMode       `json:"timing"`
	Duration              int              `json:"duration"`
	StartDate             time.Time        `json:"start_date"`
	EndDate               time.Time        `json:"end_date"`
	PassingScore          float64          `json:"passing_score"`
	ShowScore             bool             `json:"show_score"`
	EmailScores           bool             `json:"email_scores"`
	RandomizeQuestions    bool             `json:"randomize_questions"`
	AllowMultipleAttempts bool             `json:"allow_multiple_attempts"`
	AllowReview           bool             `json:"allow_review"`
	SkipQuestions         bool             `json:"skip_questions"`
	TestCode              string           `json:"test_code"`
	ProcessingStatus      ProcessingStatus `json:"processing_status"`
	Sections              []Section        `json:"sections"`
	// Answers maps bank question IDs to their correct option. Never included
	// in participant payloads; stripped before caching or serving.
	Answers   map[int]AnswerOption `json:"answers,omitempty"`
	CreatedAt time.Time            `json:"created_at"`
	UpdatedAt time.Time            `json:"updated_at"`
}

// ParticipantView returns a copy of the test with the answer key removed.
// This is the only shape that may leave the server before grading.
func (t *Test) ParticipantView() Test {
	view := *t
	view.Answers = nil
	return view
}

// NumberOfQuestions counts questions across all sections.
func (t *Test) NumberOfQuestions() int {
	n := 0
	for i := range t.Sections {
		n += len(t.Sections[i].Questions)
	}
	return n
}

// Section groups an ordered list of questions under shared instructions.
type Section struct {
	Name         string     `json:"name"`
	Instructions string     `json:"instructions"`
	Questions    []Question `json:"questions"`
}

// CreateTestRequest is the payload for creating a new test.
type CreateTestRequest struct {
	Name                  string               `json:"name" binding:"required,min=3,max=255"`
	Description           string               `json:"description" binding:"omitempty,max=2000"`
	Timing                string               `json:"timing" binding:"required,oneof=PER_TEST PER_QUESTION"`
	Duration              int                  `json:"duration" binding:"required,min=1,max=1440"`
	StartDate             time.Time            `json:"start_date" binding:"required"`
	EndDate               time.Time            `json:"end_date" binding:"required,gtfield=StartDate"`
	PassingScore          float64              `json:"passing_score" binding:"min=0,max=100"`
	ShowScore             bool                 `json:"show_score"`
	EmailScores           bool                 `json:"email_scores"`
	RandomizeQuestions    bool                 `json:"randomize_questions"`
	AllowMultipleAttempts bool                 `json:"allow_multiple_attempts"`
	AllowReview           bool                 `json:"allow_review"`
	SkipQuestions         bool                 `json:"skip_questions"`
	Sections              []SectionInput       `json:"sections" binding:"required,min=1,dive"`
	Participants          []ParticipantInput   `json:"participants" binding:"omitempty,dive"`
}

// SectionInput carries authored questions with their correct options inline.
// The service splits it into a Section plus answer-key entries.
type SectionInput struct {
	Name         string          `json:"name" binding:"omitempty,max=255"`
	Instructions string          `json:"instructions" binding:"omitempty,max=5000"`
	Questions    []QuestionInput `json:"questions" binding:"required,min=1,dive"`
}

// QuestionInput is an authored question including its correct option.
type QuestionInput struct {
	ID            int            `json:"id" binding:"required"`
	Text          string         `json:"text" binding:"required,min=1,max=5000"`
	Resource      string         `json:"resource" binding:"omitempty"`
	Options       []AnswerOption `json:"options" binding:"required,min=2,dive"`
	CorrectOption int            `json:"correct_option" binding:"required"`
	Solution      string         `json:"solution" binding:"omitempty,max=5000"`
}
