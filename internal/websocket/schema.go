package websocket

import (
	"time"

	"github.com/quizmine/quizmine-backend/internal/model"
	"github.com/quizmine/quizmine-backend/internal/session"
)

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionBegin    Action = "begin"
	ActionAnswer   Action = "answer"
	ActionNext     Action = "next"
	ActionSkip     Action = "skip"
	ActionPrevious Action = "previous"
	ActionGoto     Action = "goto"
	ActionSubmit   Action = "submit"
	ActionPing     Action = "ping"
)

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action Action `json:"action"`
}

// AnswerRequest records a selection on one question. A null option_id is an
// explicit skip. The question is addressed by its presentation ID.
type AnswerRequest struct {
	Action   Action `json:"action"`
	QID      string `json:"q_id"`
	OptionID *int   `json:"option_id"`
	// Advance moves to the next question in the same message, saving the
	// common answer-and-continue round trip.
	Advance bool `json:"advance"`
}

// GotoRequest jumps to a question by its presentation ID, typically echoed
// from the review view's incomplete list.
type GotoRequest struct {
	Action Action `json:"action"`
	QID    string `json:"q_id"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventQuestion   Event = "question"
	EventReview     Event = "review"
	EventGraded     Event = "graded"
	EventForceEnded Event = "force_ended"
	EventError      Event = "error"
	EventPong       Event = "pong"
)

// OptionView is one selectable option.
type OptionView struct {
	ID     int    `json:"id"`
	Option string `json:"option"`
}

// QuestionView is the participant-facing shape of the current question.
// Questions carry only their presentation ID; bank IDs never reach the
// participant during the test.
type QuestionView struct {
	QID                 string       `json:"q_id"`
	Number              int          `json:"number"`
	SectionName         string       `json:"section_name"`
	SectionInstructions string       `json:"section_instructions,omitempty"`
	Text                string       `json:"text"`
	Resource            string       `json:"resource,omitempty"`
	Options             []OptionView `json:"options"`
	Selected            *int         `json:"selected,omitempty"`
	Visited             bool         `json:"visited"`
}

// QuestionResponse shows the current question with its countdown context.
type QuestionResponse struct {
	Event            Event        `json:"event"`
	Question         QuestionView `json:"question"`
	Position         int          `json:"position"`
	Total            int          `json:"total"`
	IsLast           bool         `json:"is_last"`
	TestDeadline     time.Time    `json:"test_deadline"`
	QuestionDeadline *time.Time   `json:"question_deadline,omitempty"`
}

// ReviewResponse shows the pre-submission review view.
type ReviewResponse struct {
	Event      Event          `json:"event"`
	Questions  []QuestionView `json:"questions"`
	Incomplete []string       `json:"incomplete"` // presentation IDs
	ForceEnded bool           `json:"force_ended"`
	CanRevisit bool           `json:"can_revisit"`
}

// GradedResponse carries the authoritative grading result.
type GradedResponse struct {
	Event  Event                `json:"event"`
	Result *model.GradingResult `json:"result"`
}

// ForceEndedResponse announces that the test timer expired; a review view
// follows immediately.
type ForceEndedResponse struct {
	Event Event `json:"event"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Code  string `json:"code,omitempty"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}

// NewQuestionView maps a session question to its wire shape.
func NewQuestionView(q *session.SessionQuestion) QuestionView {
	options := make([]OptionView, len(q.Question.Options))
	for i, opt := range q.Question.Options {
		options[i] = OptionView{ID: opt.ID, Option: opt.Option}
	}
	return QuestionView{
		QID:                 q.PresentationID,
		Number:              q.QuestionNumber,
		SectionName:         q.SectionName,
		SectionInstructions: q.SectionInstructions,
		Text:                q.Question.Text,
		Resource:            q.Question.Resource,
		Options:             options,
		Selected:            q.Selected.OptionID,
		Visited:             q.Selected.Recorded,
	}
}
