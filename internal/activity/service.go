package activity

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/victornm/storefront/internal/domain"
	"github.com/victornm/storefront/internal/errors"
	"github.com/victornm/storefront/internal/event"
)

const defaultListLimit = 20

type Config struct {
	EventBus *event.Bus
	Redis    redis.UniversalClient
	Prefix   string
}

// Service indexes users by the time of their latest quiz result, so the admin
// dashboard can list who took a quiz without scanning the result keys.
type Service struct {
	redis  redis.UniversalClient
	prefix string
}

func NewService(c Config) *Service {
	s := &Service{
		redis:  c.Redis,
		prefix: c.Prefix,
	}

	if c.EventBus != nil {
		c.EventBus.Subscribe(domain.EventNameQuizResultSaved, func(ctx context.Context, e event.Event) error {
			return s.RecordQuizResult(ctx, e.(domain.EventQuizResultSaved))
		})
	}

	return s
}

// RecordQuizResult moves the user to the position of the saved result. An
// older result never moves a user back.
func (s *Service) RecordQuizResult(ctx context.Context, e domain.EventQuizResultSaved) error {
	// TODO: retry on error
	if err := s.redis.ZAddGT(ctx, s.getQuizTakersKey(), redis.Z{
		Score:  float64(e.Result.ID),
		Member: e.UserID,
	}).Err(); err != nil {
		return fmt.Errorf("record quiz taker: %w", err)
	}

	return nil
}

type ListRecentRequest struct {
	// Limit defaults to 20.
	Limit int64
}

// ListRecent returns quiz takers, most recent first.
func (s *Service) ListRecent(ctx context.Context, req ListRecentRequest) ([]domain.QuizTaker, error) {
	if req.Limit < 0 {
		return nil, errors.InvalidArgument("limit must not be negative: %d", req.Limit)
	}
	if req.Limit == 0 {
		req.Limit = defaultListLimit
	}

	res, err := s.redis.ZRevRangeWithScores(ctx, s.getQuizTakersKey(), 0, req.Limit-1).Result()
	if err != nil {
		return nil, errors.Unavailable(fmt.Errorf("list quiz takers: %w", err))
	}

	takers := make([]domain.QuizTaker, 0, len(res))
	for _, z := range res {
		takers = append(takers, domain.QuizTaker{
			UserID:       z.Member.(string),
			LastResultID: int64(z.Score),
		})
	}

	return takers, nil
}

func (s *Service) getQuizTakersKey() string {
	return fmt.Sprintf("%s:quiz_takers", s.prefix)
}
