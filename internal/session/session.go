// Package session implements the test-taking session engine: the state
// machine that carries one participant through a randomized, time-boxed
// question set, plus the navigation policy layer and the grading gateway
// boundary.
//
// A Session is confined to a single goroutine (the connection loop that owns
// it); the Store is the only concurrency-safe type in the package. Timers are
// deadline-based against an injected Clock rather than self-driven, so the
// owning loop arms one timer from NextDeadline and feeds expiries back through
// ExpireDue.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/quizmine/quizmine-backend/internal/model"
	"github.com/quizmine/quizmine-backend/internal/timesync"
)

// State is the lifecycle position of a session.
type State string

const (
	StateNotStarted State = "NOT_STARTED"
	StateInProgress State = "IN_PROGRESS"
	StateReviewing  State = "REVIEWING"
	StateSubmitted  State = "SUBMITTED"
)

// Session lifecycle and operation errors. ErrSessionSubmitted in particular
// marks a programming error: nothing may mutate a submitted session, and
// silently accepting the call would mask double-submission bugs.
var (
	ErrNotInProgress    = errors.New("session is not in progress")
	ErrNotReviewing     = errors.New("session is not reviewing its submission")
	ErrSessionSubmitted = errors.New("session already submitted")
	ErrUnknownQuestion  = errors.New("unknown presentation id")
	ErrUnknownOption    = errors.New("option does not belong to question")
	ErrNotYetAvailable  = errors.New("test has not started yet")
	ErrTestEnded        = errors.New("test availability window has ended")
)

// Grader is the grading gateway: a single opaque call that submits the full
// answer set and returns the authoritative result. The session engine never
// computes a score of its own; correct answers exist only behind this
// boundary until it responds.
type Grader interface {
	Grade(ctx context.Context, invite string, answers []model.SubmittedAnswer) (*model.GradingResult, error)
}

// Session is one participant's one attempt at one test.
type Session struct {
	invite string
	test   *model.Test
	clock  timesync.Clock
	grader Grader

	set   *QuestionSet
	state State
	pos   int

	// reviewDirty is set the first time the review view is entered; once set,
	// any further Advance returns there instead of moving forward.
	reviewDirty bool
	forceEnded  bool

	startedAt        time.Time
	testDeadline     time.Time
	questionDeadline time.Time

	result *model.GradingResult
}

// New constructs a session in NOT_STARTED. Begin must be called after the
// backend start acknowledgement succeeds; no question is reachable before it.
func New(test *model.Test, invite string, clock timesync.Clock, grader Grader) *Session {
	return &Session{
		invite: invite,
		test:   test,
		clock:  clock,
		grader: grader,
		state:  StateNotStarted,
	}
}

// Begin builds the question set, arms the countdown deadlines and moves to
// IN_PROGRESS. Calling Begin on a running session resets it cleanly; this is
// the path taken when a participant's invite is reprocessed.
func (s *Session) Begin() error {
	now := s.clock.Now()
	if now.Before(s.test.StartDate) {
		return ErrNotYetAvailable
	}
	if !now.Before(s.test.EndDate) {
		return ErrTestEnded
	}

	set, err := BuildQuestionSet(s.test, s.test.RandomizeQuestions)
	if err != nil {
		return fmt.Errorf("build question set: %w", err)
	}

	s.set = set
	s.pos = 0
	s.state = StateInProgress
	s.reviewDirty = false
	s.forceEnded = false
	s.result = nil
	s.startedAt = now
	s.armTestDeadline(now)
	s.armQuestionDeadline(now)
	return nil
}

// armTestDeadline fixes the whole-test deadline: the configured allotment,
// clamped by the availability window's end. This ceiling applies in both
// timing modes.
func (s *Session) armTestDeadline(now time.Time) {
	total := s.totalAllotment()
	if ceiling := s.test.EndDate.Sub(now); ceiling < total {
		total = ceiling
	}
	s.testDeadline = now.Add(total)
}

// totalAllotment is the configured test time before clamping.
func (s *Session) totalAllotment() time.Duration {
	if s.test.Timing == model.TimingPerQuestion {
		return time.Duration(s.test.Duration) * time.Second * time.Duration(s.set.Len())
	}
	return time.Duration(s.test.Duration) * time.Minute
}

// armQuestionDeadline arms a fresh countdown for the current question in
// per-question mode. In per-test mode there is no per-question deadline.
func (s *Session) armQuestionDeadline(now time.Time) {
	if s.test.Timing == model.TimingPerQuestion && s.state == StateInProgress {
		s.questionDeadline = now.Add(time.Duration(s.test.Duration) * time.Second)
		return
	}
	s.questionDeadline = time.Time{}
}

// SelectAnswer records the selection on the addressed question. A nil
// optionID is an explicit skip, distinct from never having visited the
// question. Position does not change.
func (s *Session) SelectAnswer(presentationID string, optionID *int) error {
	if err := s.requireInProgress(); err != nil {
		return err
	}

	q, ok := s.set.ByPresentationID(presentationID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownQuestion, presentationID)
	}
	if optionID != nil && !hasOption(q.Question, *optionID) {
		return fmt.Errorf("%w: question %d option %d", ErrUnknownOption, q.Question.ID, *optionID)
	}

	q.Selected = Selection{Recorded: true, OptionID: optionID}
	return nil
}

// Advance moves forward one position. Leaving the last question, or any
// question once the review view has been seen, enters REVIEWING instead:
// there is no position equal to the set length.
func (s *Session) Advance() error {
	if err := s.requireInProgress(); err != nil {
		return err
	}

	if s.pos+1 >= s.set.Len() || s.reviewDirty {
		s.enterReview()
		return nil
	}
	s.pos++
	s.armQuestionDeadline(s.clock.Now())
	return nil
}

// Retreat moves backward one position. It is a no-op at position 0 and when
// the configuration does not allow revisiting questions.
func (s *Session) Retreat() error {
	if err := s.requireInProgress(); err != nil {
		return err
	}

	if !s.test.SkipQuestions || s.pos == 0 {
		return nil
	}
	s.pos--
	s.armQuestionDeadline(s.clock.Now())
	return nil
}

// ForceEnd terminates question traversal because time ran out. It fires at
// most once: repeated calls, and calls outside IN_PROGRESS, do nothing, which
// makes the whole-test expiry safe to race with per-question expiry.
func (s *Session) ForceEnd() {
	if s.state != StateInProgress || s.forceEnded {
		return
	}
	s.forceEnded = true
	s.enterReview()
}

// JumpTo moves directly to the question at the given position, returning from
// the review view if necessary. Policy checks (skip allowed, pre-submission
// only) belong to the Controller.
func (s *Session) JumpTo(pos int) error {
	switch s.state {
	case StateSubmitted:
		return ErrSessionSubmitted
	case StateInProgress, StateReviewing:
	default:
		return ErrNotInProgress
	}
	if pos < 0 || pos >= s.set.Len() {
		return fmt.Errorf("%w: position %d", ErrUnknownQuestion, pos)
	}

	s.state = StateInProgress
	s.pos = pos
	s.armQuestionDeadline(s.clock.Now())
	return nil
}

// Submit sends the full answer set, in presentation order, through the
// grading gateway. On success the review key (when present) is applied to
// the questions and the session becomes SUBMITTED. On failure the session
// stays in REVIEWING so the caller can retry the same call; the backend
// deduplicates by invite, not the client.
func (s *Session) Submit(ctx context.Context) (*model.GradingResult, error) {
	switch s.state {
	case StateSubmitted:
		return nil, ErrSessionSubmitted
	case StateReviewing:
	default:
		return nil, ErrNotReviewing
	}

	result, err := s.grader.Grade(ctx, s.invite, s.Answers())
	if err != nil {
		return nil, fmt.Errorf("grade answers: %w", err)
	}

	for i := range result.Answers {
		ga := &result.Answers[i]
		if ga.CorrectOption == nil {
			continue
		}
		if pos := s.set.PositionOfQuestion(ga.QuestionID); pos >= 0 {
			s.set.At(pos).CorrectOption = ga.CorrectOption
		}
	}

	s.result = result
	s.state = StateSubmitted
	return result, nil
}

// ExpireDue applies any deadline that has passed. When both deadlines are due
// in the same tick the whole-test expiry wins: a forced global end must not
// be undone by a local auto-advance. Per-question expiry auto-submits
// whatever is currently selected (possibly nothing) and advances.
// Returns true when the session changed.
func (s *Session) ExpireDue(now time.Time) bool {
	if s.state != StateInProgress {
		return false
	}

	if !now.Before(s.testDeadline) {
		s.ForceEnd()
		return true
	}

	if !s.questionDeadline.IsZero() && !now.Before(s.questionDeadline) {
		cur := s.set.At(s.pos)
		var opt *int
		if cur.Selected.Recorded {
			opt = cur.Selected.OptionID
		}
		// Equivalent to the participant submitting their current selection.
		if err := s.SelectAnswer(cur.PresentationID, opt); err != nil {
			return false
		}
		_ = s.Advance()
		return true
	}

	return false
}

// NextDeadline returns the earliest pending deadline, or the zero time when
// no countdown is armed. The owning loop arms a single timer from this.
func (s *Session) NextDeadline() time.Time {
	if s.state != StateInProgress {
		return time.Time{}
	}
	if s.questionDeadline.IsZero() || s.testDeadline.Before(s.questionDeadline) {
		return s.testDeadline
	}
	return s.questionDeadline
}

func (s *Session) enterReview() {
	s.state = StateReviewing
	s.reviewDirty = true
	s.questionDeadline = time.Time{}
}

func (s *Session) requireInProgress() error {
	switch s.state {
	case StateInProgress:
		return nil
	case StateSubmitted:
		return ErrSessionSubmitted
	default:
		return ErrNotInProgress
	}
}

func hasOption(q model.Question, optionID int) bool {
	for _, opt := range q.Options {
		if opt.ID == optionID {
			return true
		}
	}
	return false
}

// State returns the lifecycle state.
func (s *Session) State() State { return s.state }

// Invite returns the invite token this session belongs to.
func (s *Session) Invite() string { return s.invite }

// Test returns the immutable configuration the session was begun with.
func (s *Session) Test() *model.Test { return s.test }

// Position returns the current display position.
func (s *Session) Position() int { return s.pos }

// Current returns the question at the current position.
func (s *Session) Current() *SessionQuestion {
	if s.set == nil {
		return nil
	}
	return s.set.At(s.pos)
}

// IsLastQuestion reports whether the current position is the final one.
func (s *Session) IsLastQuestion() bool {
	return s.set != nil && s.pos+1 == s.set.Len()
}

// NumberOfQuestions returns the size of the built question set.
func (s *Session) NumberOfQuestions() int {
	if s.set == nil {
		return 0
	}
	return s.set.Len()
}

// Questions returns the question set in presentation order.
func (s *Session) Questions() []*SessionQuestion {
	if s.set == nil {
		return nil
	}
	return s.set.Questions()
}

// Incomplete returns the questions with no recorded option, in presentation
// order. Both never-visited and explicitly skipped questions qualify.
func (s *Session) Incomplete() []*SessionQuestion {
	if s.set == nil {
		return nil
	}
	var out []*SessionQuestion
	for _, q := range s.set.Questions() {
		if !q.Selected.Recorded || q.Selected.OptionID == nil {
			out = append(out, q)
		}
	}
	return out
}

// Answers returns the (bank question ID, selected option) pairs in
// presentation order, with nil options for unanswered questions. This is
// exactly what Submit hands to the grading gateway.
func (s *Session) Answers() []model.SubmittedAnswer {
	if s.set == nil {
		return nil
	}
	answers := make([]model.SubmittedAnswer, 0, s.set.Len())
	for _, q := range s.set.Questions() {
		answers = append(answers, model.SubmittedAnswer{
			QuestionID: q.Question.ID,
			OptionID:   q.Selected.OptionID,
		})
	}
	return answers
}

// ForceEnded reports whether the session was terminated by time expiry
// rather than user action.
func (s *Session) ForceEnded() bool { return s.forceEnded }

// Result returns the grading result, nil before a successful Submit.
func (s *Session) Result() *model.GradingResult { return s.result }

// TestDeadline returns the whole-test deadline fixed at Begin.
func (s *Session) TestDeadline() time.Time { return s.testDeadline }

// QuestionDeadline returns the current per-question deadline; zero outside
// per-question mode.
func (s *Session) QuestionDeadline() time.Time { return s.questionDeadline }

// StartedAt returns the synchronized time at which Begin succeeded.
func (s *Session) StartedAt() time.Time { return s.startedAt }
