package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/quizmine/quizmine-backend/internal/response"
	"github.com/quizmine/quizmine-backend/internal/service"
	"github.com/quizmine/quizmine-backend/internal/session"
	"github.com/quizmine/quizmine-backend/internal/timesync"
	ws "github.com/quizmine/quizmine-backend/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// TakeHandler hosts live test-taking sessions over WebSocket. Each
// connection owns exactly one Session; all session access happens on the
// connection's goroutine, with inbound messages and timer expiries
// multiplexed through one select loop.
type TakeHandler struct {
	participantService *service.ParticipantService
	grader             session.Grader
	store              *session.Store
	clock              timesync.Clock
	log                zerolog.Logger
	upgrader           websocket.Upgrader
}

// NewTakeHandler creates a new TakeHandler.
func NewTakeHandler(
	participantService *service.ParticipantService,
	grader session.Grader,
	store *session.Store,
	clock timesync.Clock,
	log zerolog.Logger,
	allowedOrigins []string,
) *TakeHandler {
	return &TakeHandler{
		participantService: participantService,
		grader:             grader,
		store:              store,
		clock:              clock,
		log:                log.With().Str("component", "take_handler").Logger(),
		upgrader:           buildUpgrader(allowedOrigins),
	}
}

// TakeTestStream godoc
// WS /ws/v1/take/:invite
// Upgrades to WebSocket and drives one attempt from begin to graded.
func (h *TakeHandler) TakeTestStream(c *gin.Context) {
	invite := strings.ToUpper(c.Param("invite"))
	if _, _, err := service.ParseInvite(invite); err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidInvite)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	wsLog := h.log.With().Str("invite", invite).Logger()
	wsLog.Info().Msg("Participant connected")

	// read pump: the connection goroutine owns the session, so reads are
	// funneled through a channel into the select loop below
	msgs := make(chan []byte)
	readErr := make(chan error, 1)
	go func() {
		defer close(msgs)
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				readErr <- err
				return
			}
			msgs <- raw
		}
	}()

	// the timer stays unarmed until a session is running
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	var sess *session.Session
	defer func() {
		if sess != nil {
			h.store.Remove(invite)
		}
	}()

	rearm := func() {
		timer.Stop()
		if sess == nil {
			return
		}
		deadline := sess.NextDeadline()
		if deadline.IsZero() {
			return
		}
		d := deadline.Sub(h.clock.Now())
		if d < 0 {
			d = 0
		}
		timer.Reset(d)
	}

	for {
		select {
		case raw, ok := <-msgs:
			if !ok {
				err := <-readErr
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					wsLog.Warn().Err(err).Msg("Unexpected close")
				} else {
					wsLog.Debug().Msg("Connection closed")
				}
				return
			}
			sess = h.handleMessage(c.Request.Context(), conn, wsLog, invite, sess, raw)
			rearm()

		case <-timer.C:
			if sess == nil {
				continue
			}
			wasForced := sess.ForceEnded()
			if sess.ExpireDue(h.clock.Now()) {
				if sess.ForceEnded() && !wasForced {
					ws.WriteTyped(conn, ws.ForceEndedResponse{Event: ws.EventForceEnded})
				}
				h.sendState(conn, sess)
			}
			rearm()
		}
	}
}

// handleMessage applies one client action and replies with the resulting
// view. It returns the (possibly newly created) session.
func (h *TakeHandler) handleMessage(ctx context.Context, conn *websocket.Conn, wsLog zerolog.Logger, invite string, sess *session.Session, raw []byte) *session.Session {
	var envelope ws.RequestEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		ws.WriteError(conn, "malformed message")
		return sess
	}

	if envelope.Action == ws.ActionPing {
		ws.WriteTyped(conn, ws.PongResponse{Event: ws.EventPong})
		return sess
	}

	if envelope.Action == ws.ActionBegin {
		return h.handleBegin(ctx, conn, wsLog, invite)
	}

	if sess == nil {
		h.writeCode(conn, response.ErrSessionNotStarted, "no session, send begin first")
		return nil
	}

	ctrl := session.NewController(sess)
	var err error

	switch envelope.Action {
	case ws.ActionAnswer:
		var req ws.AnswerRequest
		if e := json.Unmarshal(raw, &req); e != nil {
			ws.WriteError(conn, "malformed answer")
			return sess
		}
		if err = sess.SelectAnswer(req.QID, req.OptionID); err == nil && req.Advance {
			err = ctrl.Advance()
		}

	case ws.ActionNext:
		err = ctrl.Advance()

	case ws.ActionSkip:
		err = ctrl.Skip()

	case ws.ActionPrevious:
		err = ctrl.Previous()

	case ws.ActionGoto:
		var req ws.GotoRequest
		if e := json.Unmarshal(raw, &req); e != nil {
			ws.WriteError(conn, "malformed goto")
			return sess
		}
		err = ctrl.GoToQuestion(req.QID)

	case ws.ActionSubmit:
		h.handleSubmit(ctx, conn, wsLog, sess)
		return sess

	default:
		wsLog.Warn().Str("action", string(envelope.Action)).Msg("Unknown action")
		ws.WriteError(conn, "unknown action: "+string(envelope.Action))
		return sess
	}

	if err != nil {
		h.writeSessionError(conn, err)
		return sess
	}
	h.sendState(conn, sess)
	return sess
}

func (h *TakeHandler) handleBegin(ctx context.Context, conn *websocket.Conn, wsLog zerolog.Logger, invite string) *session.Session {
	details, err := h.participantService.StartTest(ctx, invite)
	if err != nil {
		h.writeStartError(conn, err)
		return nil
	}

	sess := session.New(details.Test, invite, h.clock, h.grader)
	if err := sess.Begin(); err != nil {
		h.writeSessionError(conn, err)
		return nil
	}
	h.store.Put(sess)

	wsLog.Info().
		Str("test_id", details.Test.ID.String()).
		Int("questions", sess.NumberOfQuestions()).
		Msg("Session started")

	h.sendState(conn, sess)
	return sess
}

func (h *TakeHandler) handleSubmit(ctx context.Context, conn *websocket.Conn, wsLog zerolog.Logger, sess *session.Session) {
	result, err := sess.Submit(ctx)
	if err != nil {
		h.writeSessionError(conn, err)
		return
	}

	wsLog.Info().Msg("Submission graded")
	ws.WriteTyped(conn, ws.GradedResponse{Event: ws.EventGraded, Result: result})
}

// sendState writes the view matching the session's current state.
func (h *TakeHandler) sendState(conn *websocket.Conn, sess *session.Session) {
	switch sess.State() {
	case session.StateInProgress:
		q := sess.Current()
		resp := ws.QuestionResponse{
			Event:        ws.EventQuestion,
			Question:     ws.NewQuestionView(q),
			Position:     sess.Position(),
			Total:        sess.NumberOfQuestions(),
			IsLast:       sess.IsLastQuestion(),
			TestDeadline: sess.TestDeadline(),
		}
		if qd := sess.QuestionDeadline(); !qd.IsZero() {
			resp.QuestionDeadline = &qd
		}
		ws.WriteTyped(conn, resp)

	case session.StateReviewing:
		questions := sess.Questions()
		views := make([]ws.QuestionView, len(questions))
		for i, q := range questions {
			views[i] = ws.NewQuestionView(q)
		}
		incomplete := sess.Incomplete()
		incompleteIDs := make([]string, len(incomplete))
		for i, q := range incomplete {
			incompleteIDs[i] = q.PresentationID
		}
		ws.WriteTyped(conn, ws.ReviewResponse{
			Event:      ws.EventReview,
			Questions:  views,
			Incomplete: incompleteIDs,
			ForceEnded: sess.ForceEnded(),
			CanRevisit: sess.Test().SkipQuestions,
		})
	}
}

func (h *TakeHandler) writeStartError(conn *websocket.Conn, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidInvite):
		h.writeCode(conn, response.ErrInvalidInvite, err.Error())
	case errors.Is(err, service.ErrTestNotOpen):
		h.writeCode(conn, response.ErrTestNotAvailable, err.Error())
	case errors.Is(err, service.ErrTestClosed):
		h.writeCode(conn, response.ErrTestEnded, err.Error())
	case errors.Is(err, service.ErrTestNotReady):
		h.writeCode(conn, response.ErrTestNotReady, err.Error())
	case errors.Is(err, service.ErrAlreadyTaken):
		h.writeCode(conn, response.ErrAlreadyTaken, err.Error())
	default:
		h.log.Error().Err(err).Msg("Start failed")
		h.writeCode(conn, response.ErrInternal, "could not start the test")
	}
}

func (h *TakeHandler) writeSessionError(conn *websocket.Conn, err error) {
	switch {
	case errors.Is(err, session.ErrNotYetAvailable):
		h.writeCode(conn, response.ErrTestNotAvailable, err.Error())
	case errors.Is(err, session.ErrTestEnded):
		h.writeCode(conn, response.ErrTestEnded, err.Error())
	case errors.Is(err, session.ErrUnknownQuestion),
		errors.Is(err, session.ErrUnknownOption),
		errors.Is(err, session.ErrSkipDisabled),
		errors.Is(err, session.ErrNotInProgress),
		errors.Is(err, session.ErrNotReviewing),
		errors.Is(err, session.ErrSessionSubmitted):
		ws.WriteError(conn, err.Error())
	default:
		h.log.Error().Err(err).Msg("Session operation failed")
		h.writeCode(conn, response.ErrInternal, "operation failed")
	}
}

func (h *TakeHandler) writeCode(conn *websocket.Conn, code response.ErrCode, msg string) {
	ws.WriteTyped(conn, ws.ErrorResponse{Event: ws.EventError, Code: string(code), Error: msg})
}
