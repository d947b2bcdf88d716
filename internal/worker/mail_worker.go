package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/quizmine/quizmine-backend/internal/config"
	"github.com/quizmine/quizmine-backend/internal/mail"
	"github.com/quizmine/quizmine-backend/internal/model"
	"github.com/quizmine/quizmine-backend/internal/repository"
	"github.com/quizmine/quizmine-backend/internal/service"
)

const MailPollTimeout = 1 * time.Second

// MailWorker drains both mail queues: invite mails for newly added
// participants and score mails for graded attempts. Mails are sent one at a
// time; delivery is not the hot path.
type MailWorker struct {
	mailer          mail.Mailer
	participantRepo *repository.ParticipantRepository
	rdb             *redis.Client
	log             zerolog.Logger
}

func NewMailWorker(
	mailer mail.Mailer,
	participantRepo *repository.ParticipantRepository,
	rdb *redis.Client,
	log zerolog.Logger,
) *MailWorker {
	return &MailWorker{
		mailer:          mailer,
		participantRepo: participantRepo,
		rdb:             rdb,
		log:             log.With().Str("component", "mail_worker").Logger(),
	}
}

func (w *MailWorker) Start(ctx context.Context) {
	w.log.Info().Msg("MailWorker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Shutdown requested")
			return

		default:
			item, err := w.rdb.BLPop(ctx, MailPollTimeout,
				config.WorkerKey.SendInvitesQueue,
				config.WorkerKey.SendResultsQueue,
			).Result()
			if err != nil {
				if err != redis.Nil && ctx.Err() == nil {
					w.log.Error().Err(err).Msg("BLPop error")
				}
				continue
			}
			if len(item) < 2 {
				continue
			}

			queue, raw := item[0], []byte(item[1])
			switch queue {
			case config.WorkerKey.SendInvitesQueue:
				w.handleInvite(ctx, raw)
			case config.WorkerKey.SendResultsQueue:
				w.handleResult(ctx, raw)
			}
		}
	}
}

func (w *MailWorker) handleInvite(ctx context.Context, raw []byte) {
	var job service.InviteMailJob
	if err := json.Unmarshal(raw, &job); err != nil {
		w.log.Error().Err(err).Msg("Invalid invite job payload")
		return
	}

	msg := mail.Message{
		To:      job.Email,
		Subject: fmt.Sprintf("You are invited to take %q", job.TestName),
		Body: fmt.Sprintf(
			"Hi %s,\n\nYou have been invited to take the test %q.\n\n"+
				"Your invite code: %s\n\nThe test closes on %s.\n",
			job.Name, job.TestName, job.Invite, job.EndDate.Format(time.RFC1123)),
	}

	if err := w.mailer.Send(ctx, msg); err != nil {
		w.log.Error().Err(err).Str("email", job.Email).Msg("Invite mail failed — requeueing")
		w.rdb.RPush(ctx, config.WorkerKey.SendInvitesQueue, raw)
		return
	}

	if err := w.participantRepo.MarkInvited(ctx, job.ParticipantID, time.Now()); err != nil {
		w.log.Warn().Err(err).Str("email", job.Email).Msg("Failed to stamp invite time")
	}
}

func (w *MailWorker) handleResult(ctx context.Context, raw []byte) {
	var rec model.ResultRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		w.log.Error().Err(err).Msg("Invalid result payload")
		return
	}

	participant, err := w.participantRepo.GetByTestAndCode(ctx, rec.TestID, rec.ParticipantCode)
	if err != nil {
		w.log.Error().Err(err).Str("invite", rec.Invite).Msg("Unknown participant for result mail")
		return
	}

	verdict := "did not pass"
	if rec.Passed {
		verdict = "passed"
	}
	msg := mail.Message{
		To:      participant.Email,
		Subject: "Your test result",
		Body: fmt.Sprintf(
			"Hi %s,\n\nYour submission has been graded.\n\n"+
				"Score: %d/%d\nYou %s (passing score %.0f%%).\n",
			participant.Name, rec.Correct, rec.Total, verdict, rec.PassingScore),
	}

	if err := w.mailer.Send(ctx, msg); err != nil {
		w.log.Error().Err(err).Str("invite", rec.Invite).Msg("Result mail failed — requeueing")
		w.rdb.RPush(ctx, config.WorkerKey.SendResultsQueue, raw)
	}
}
