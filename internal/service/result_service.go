package service

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/quizmine/quizmine-backend/internal/config"
	"github.com/quizmine/quizmine-backend/internal/model"
	"github.com/quizmine/quizmine-backend/internal/repository"
	"github.com/quizmine/quizmine-backend/internal/response"
)

// ResultService serves the tutor's reporting views over persisted grading
// records.
type ResultService struct {
	resultRepo *repository.ResultRepository
	rdb        *redis.Client
	log        zerolog.Logger
}

// NewResultService creates a new ResultService.
func NewResultService(resultRepo *repository.ResultRepository, rdb *redis.Client, log zerolog.Logger) *ResultService {
	return &ResultService{
		resultRepo: resultRepo,
		rdb:        rdb,
		log:        log.With().Str("component", "result_service").Logger(),
	}
}

// GetByInvite retrieves one attempt's full grading record.
func (s *ResultService) GetByInvite(ctx context.Context, invite string) (*model.ResultRecord, error) {
	return s.resultRepo.GetByInvite(ctx, NormalizeInvite(invite))
}

// ListByTest retrieves a test's grading records with pagination.
func (s *ResultService) ListByTest(ctx context.Context, testID uuid.UUID, page, perPage int) ([]model.ResultRecord, *response.Pagination, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 10
	}
	if perPage > 100 {
		perPage = 100
	}

	records, total, err := s.resultRepo.ListByTest(ctx, testID, page, perPage)
	if err != nil {
		return nil, nil, err
	}
	if records == nil {
		records = []model.ResultRecord{}
	}

	pagination := &response.Pagination{
		Page:       page,
		PerPage:    perPage,
		TotalItems: int(total),
		TotalPages: (int(total) + perPage - 1) / perPage,
	}
	return records, pagination, nil
}

// SendResultMails queues a score mail for every graded attempt of a test.
// Returns the number of mails queued.
func (s *ResultService) SendResultMails(ctx context.Context, testID uuid.UUID) (int, error) {
	queued := 0
	for page := 1; ; page++ {
		records, _, err := s.resultRepo.ListByTest(ctx, testID, page, 100)
		if err != nil {
			return queued, fmt.Errorf("list results: %w", err)
		}
		for i := range records {
			body, err := json.Marshal(records[i])
			if err != nil {
				s.log.Error().Err(err).Str("invite", records[i].Invite).Msg("Failed to encode result mail")
				continue
			}
			if err := s.rdb.RPush(ctx, config.WorkerKey.SendResultsQueue, body).Err(); err != nil {
				s.log.Error().Err(err).Str("invite", records[i].Invite).Msg("Failed to queue result mail")
				continue
			}
			queued++
		}
		if len(records) < 100 {
			break
		}
	}

	s.log.Info().
		Str("test_id", testID.String()).
		Int("queued", queued).
		Msg("Result mails queued")
	return queued, nil
}

// Stats computes aggregate score statistics for a test.
func (s *ResultService) Stats(ctx context.Context, testID uuid.UUID) (*model.TestStats, error) {
	scores, passed, err := s.resultRepo.ScoresByTest(ctx, testID)
	if err != nil {
		return nil, err
	}

	stats := &model.TestStats{Attempts: len(scores)}
	if len(scores) == 0 {
		return stats, nil
	}

	sum := 0.0
	passCount := 0
	for i, score := range scores {
		sum += score
		if passed[i] {
			passCount++
		}
	}
	n := float64(len(scores))
	stats.Mean = sum / n
	stats.PassRate = float64(passCount) * 100 / n

	sorted := make([]float64, len(scores))
	copy(sorted, scores)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		stats.Median = (sorted[mid-1] + sorted[mid]) / 2
	} else {
		stats.Median = sorted[mid]
	}

	variance := 0.0
	for _, score := range scores {
		d := score - stats.Mean
		variance += d * d
	}
	stats.StdDev = math.Sqrt(variance / n)

	return stats, nil
}
