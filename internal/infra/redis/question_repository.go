package redis

import (
	"context"
	"encoding/json"
	"log"
	"math/rand"
	"sync"
	"time"

	"moral-quiz-service/internal/domain"
	"moral-quiz-service/internal/infra/memory"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// QuestionRepository caches the question catalog in Redis and falls back to a loader on cache miss.
// Questions are stored as: HSET quiz:questions {questionID} {json}
type QuestionRepository struct {
	client *redis.Client
	loader memory.QuestionLoader
	ttl    time.Duration
	sf     singleflight.Group

	mu  sync.Mutex
	rnd *rand.Rand
}

const questionsKey = "quiz:questions"

func NewQuestionRepository(client *redis.Client, loader memory.QuestionLoader, ttl time.Duration) *QuestionRepository {
	return &QuestionRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *QuestionRepository) ListQuestions(ctx context.Context) ([]domain.Question, error) {
	if questions, ok := r.cached(ctx); ok {
		return questions, nil
	}

	result, err, _ := r.sf.Do(questionsKey, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if questions, ok := r.cached(ctx); ok {
			return questions, nil
		}

		questions, err := r.loader.LoadQuestions(ctx)
		if err != nil {
			return nil, err
		}
		questions = domain.SortQuestions(questions)
		if len(questions) == 0 {
			return questions, nil
		}

		pipe := r.client.TxPipeline()
		pipe.Del(ctx, questionsKey)
		for _, q := range questions {
			raw, err := json.Marshal(q)
			if err != nil {
				return nil, err
			}
			pipe.HSet(ctx, questionsKey, q.ID, raw)
		}
		if ttl := r.ttlWithJitter(); ttl > 0 {
			pipe.Expire(ctx, questionsKey, ttl)
		}
		if _, err := pipe.Exec(ctx); err != nil {
			log.Printf("question cache fill failed err=%v", err)
		}
		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

// Invalidate drops the cached catalog so the next read reloads it.
func (r *QuestionRepository) Invalidate(ctx context.Context) error {
	return r.client.Del(ctx, questionsKey).Err()
}

func (r *QuestionRepository) cached(ctx context.Context) ([]domain.Question, bool) {
	raw, err := r.client.HGetAll(ctx, questionsKey).Result()
	if err != nil || len(raw) == 0 {
		return nil, false
	}
	questions := make([]domain.Question, 0, len(raw))
	for id, value := range raw {
		var q domain.Question
		if err := json.Unmarshal([]byte(value), &q); err != nil {
			log.Printf("question cache entry unreadable id=%s err=%v", id, err)
			return nil, false
		}
		questions = append(questions, q)
	}
	return domain.SortQuestions(questions), true
}

func (r *QuestionRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
