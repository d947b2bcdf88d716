package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/quizmine/quizmine-backend/internal/config"
	"github.com/quizmine/quizmine-backend/internal/model"
	"github.com/quizmine/quizmine-backend/internal/repository"
)

const (
	ResultBatchSize    = 50
	ResultBatchTimeout = 2 * time.Second
	ResultPollTimeout  = 1 * time.Second
)

// ResultWorker drains the grading queue into PostgreSQL. Grading itself
// answers the participant from Redis; this worker makes the result durable
// and flips the participant to GRADED, in batches off the hot path.
type ResultWorker struct {
	resultRepo      *repository.ResultRepository
	participantRepo *repository.ParticipantRepository
	rdb             *redis.Client
	log             zerolog.Logger
}

func NewResultWorker(
	resultRepo *repository.ResultRepository,
	participantRepo *repository.ParticipantRepository,
	rdb *redis.Client,
	log zerolog.Logger,
) *ResultWorker {
	return &ResultWorker{
		resultRepo:      resultRepo,
		participantRepo: participantRepo,
		rdb:             rdb,
		log:             log.With().Str("component", "result_worker").Logger(),
	}
}

// ----------------------------------------------------------------
// Worker loop with batching
// ----------------------------------------------------------------

func (w *ResultWorker) Start(ctx context.Context) {
	w.log.Info().Msg("ResultWorker started")

	batch := make([]model.ResultRecord, 0, ResultBatchSize)
	lastFlush := time.Now()

	for {
		if len(batch) > 0 &&
			(len(batch) >= ResultBatchSize || time.Since(lastFlush) >= ResultBatchTimeout) {

			w.flushSafe(ctx, batch)
			batch = batch[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.log.Info().Msg("Shutdown requested. Flushing remaining batch...")
			w.flushSafe(context.Background(), batch)
			return

		default:
			item, err := w.rdb.BLPop(ctx, ResultPollTimeout, config.WorkerKey.PersistResultsQueue).Result()
			if err != nil {
				if err != redis.Nil && ctx.Err() == nil {
					w.log.Error().Err(err).Msg("BLPop error")
				}
				continue
			}

			if len(item) < 2 {
				continue
			}

			var rec model.ResultRecord
			if err := json.Unmarshal([]byte(item[1]), &rec); err != nil {
				w.log.Error().Err(err).Msg("Invalid JSON payload")
				continue
			}

			batch = append(batch, rec)
		}
	}
}

// ----------------------------------------------------------------
// Batch upsert wrapper
// ----------------------------------------------------------------

func (w *ResultWorker) flushSafe(ctx context.Context, batch []model.ResultRecord) {
	if len(batch) == 0 {
		return
	}

	if err := w.resultRepo.UpsertBatch(ctx, batch); err != nil {
		w.log.Warn().Err(err).Msg("bulk result upsert failed, using fallback")

		persisted := make([]model.ResultRecord, 0, len(batch))
		for _, rec := range batch {
			if err := w.resultRepo.Upsert(ctx, rec); err != nil {
				w.log.Error().Err(err).Str("invite", rec.Invite).Msg("persistSingle failed — requeueing")
				raw, _ := json.Marshal(rec)
				w.rdb.RPush(ctx, config.WorkerKey.PersistResultsQueue, raw)
				continue
			}
			persisted = append(persisted, rec)
		}
		w.markGraded(ctx, persisted)
		return
	}

	w.markGraded(ctx, batch)
}

// markGraded flips the persisted participants to GRADED.
func (w *ResultWorker) markGraded(ctx context.Context, batch []model.ResultRecord) {
	for _, rec := range batch {
		if err := w.participantRepo.MarkGraded(ctx, rec.TestID, rec.ParticipantCode); err != nil {
			w.log.Warn().Err(err).Str("invite", rec.Invite).Msg("Failed to mark participant GRADED")
		}
	}
}
