package model

import (
	"time"

	"github.com/google/uuid"
)

// SubmittedAnswer is one (bank question ID, selected option) pair as sent to
// the grading gateway. A nil OptionID means the question was left unanswered.
type SubmittedAnswer struct {
	QuestionID int  `json:"question_id" binding:"required"`
	OptionID   *int `json:"option_id"`
}

// GradeRequest submits a full answer set for one invite.
type GradeRequest struct {
	Invite  string            `json:"invite" binding:"required,min=3,max=64"`
	Answers []SubmittedAnswer `json:"answers" binding:"required,dive"`
}

// Score is a correct/total pair.
type Score struct {
	Correct int `json:"correct"`
	Total   int `json:"total"`
}

// GradedAnswer is the per-question grading outcome. CorrectOption and
// Question are populated only when the test configuration permits review.
type GradedAnswer struct {
	QuestionID    int           `json:"question_id"`
	OptionID      *int          `json:"option_id"`
	IsCorrect     bool          `json:"is_correct"`
	CorrectOption *AnswerOption `json:"correct_option,omitempty"`
	Question      *Question     `json:"question,omitempty"`
}

// GradingResult is the authoritative grading response returned to the client.
// Score, Passed and PassingScore are present only when the test shows scores;
// Answers is present only when review is allowed. The client must treat every
// field as authoritative and display nothing it computed itself.
type GradingResult struct {
	Score        *Score         `json:"score,omitempty"`
	Passed       *bool          `json:"passed,omitempty"`
	PassingScore *float64       `json:"passing_score,omitempty"`
	TimeTakenMs  int64          `json:"time_taken_ms"`
	Answers      []GradedAnswer `json:"answers,omitempty"`
}

// ResultRecord is the full, unconditional grading record persisted for the
// tutor's reporting views. Unlike GradingResult it always carries the score
// and the per-question submissions.
type ResultRecord struct {
	Invite          string         `json:"invite"`
	TestID          uuid.UUID      `json:"test_id"`
	ParticipantCode string         `json:"participant_code"`
	Correct         int            `json:"correct"`
	Total           int            `json:"total"`
	Passed          bool           `json:"passed"`
	PassingScore    float64        `json:"passing_score"`
	TimeTakenMs     int64          `json:"time_taken_ms"`
	SubmittedAt     time.Time      `json:"submitted_at"`
	Submissions     []GradedAnswer `json:"submissions"`
}

// TestStats are simple aggregates over a test's graded results.
type TestStats struct {
	Attempts int     `json:"attempts"`
	Mean     float64 `json:"mean"`
	Median   float64 `json:"median"`
	StdDev   float64 `json:"std_dev"`
	PassRate float64 `json:"pass_rate"`
}
