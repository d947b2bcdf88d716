package session

import (
	"errors"
	"fmt"
)

// ErrSkipDisabled is returned by navigation operations that require the
// test's skip-questions setting.
var ErrSkipDisabled = errors.New("test does not allow revisiting questions")

// Controller layers navigation policy over a Session. The Session knows how
// to move; the Controller knows whether a given movement is allowed by the
// test configuration and the current view. Handlers call the Controller, not
// the Session's movement methods directly.
//
// Outside IN_PROGRESS, everything except GoToQuestion is a silent no-op; only
// mutation of a submitted session stays a loud error.
type Controller struct {
	s *Session
}

// NewController wraps a session.
func NewController(s *Session) *Controller {
	return &Controller{s: s}
}

// Skip moves forward without requiring an answer. The current selection is
// committed first, an explicit skip when nothing is selected, so a skipped
// question reads as visited rather than untouched. Requires the
// skip-questions setting.
func (c *Controller) Skip() error {
	if !c.s.Test().SkipQuestions {
		return ErrSkipDisabled
	}

	cur := c.s.Current()
	if cur == nil {
		return nil
	}
	var opt *int
	if cur.Selected.Recorded {
		opt = cur.Selected.OptionID
	}
	if err := c.s.SelectAnswer(cur.PresentationID, opt); err != nil {
		return ignoreNotInProgress(err)
	}
	return ignoreNotInProgress(c.s.Advance())
}

// Advance moves forward after the current selection has been recorded.
func (c *Controller) Advance() error {
	return ignoreNotInProgress(c.s.Advance())
}

// Previous moves backward one question. The Session makes this a no-op at
// the first question and when revisiting is disabled.
func (c *Controller) Previous() error {
	return ignoreNotInProgress(c.s.Retreat())
}

// GoToQuestion jumps to the question addressed by its presentation ID,
// typically echoed from the review view's incomplete list. Requires the
// skip-questions setting and an unsubmitted session.
func (c *Controller) GoToQuestion(presentationID string) error {
	if !c.s.Test().SkipQuestions {
		return ErrSkipDisabled
	}
	if c.s.State() == StateSubmitted {
		return ErrSessionSubmitted
	}
	if c.s.set == nil {
		return ErrNotInProgress
	}

	pos, ok := c.s.set.PositionOf(presentationID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownQuestion, presentationID)
	}
	return c.s.JumpTo(pos)
}

// ignoreNotInProgress turns navigation outside IN_PROGRESS into a silent
// no-op while letting ErrSessionSubmitted through.
func ignoreNotInProgress(err error) error {
	if errors.Is(err, ErrNotInProgress) {
		return nil
	}
	return err
}
