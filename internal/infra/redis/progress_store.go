package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"moral-quiz-service/internal/domain"
	"github.com/redis/go-redis/v9"
)

// ProgressStore keeps in-progress quizzes in Redis, one JSON value per user.
// Abandoned progress expires after ttl.
type ProgressStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewProgressStore(client *redis.Client, ttl time.Duration) *ProgressStore {
	return &ProgressStore{client: client, ttl: ttl}
}

func (s *ProgressStore) GetProgress(ctx context.Context, userID string) (domain.Progress, error) {
	raw, err := s.client.Get(ctx, s.key(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Progress{}, domain.ErrProgressNotFound
	}
	if err != nil {
		return domain.Progress{}, err
	}
	var progress domain.Progress
	if err := json.Unmarshal(raw, &progress); err != nil {
		return domain.Progress{}, err
	}
	return progress, nil
}

func (s *ProgressStore) SaveProgress(ctx context.Context, progress domain.Progress) error {
	raw, err := json.Marshal(progress)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(progress.UserID), raw, s.ttl).Err()
}

func (s *ProgressStore) DeleteProgress(ctx context.Context, userID string) error {
	return s.client.Del(ctx, s.key(userID)).Err()
}

func (s *ProgressStore) key(userID string) string {
	return "quiz:progress:" + userID
}
