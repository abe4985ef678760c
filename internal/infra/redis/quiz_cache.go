package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"quizmaster-service/internal/domain"
)

const activeQuizKey = "quiz:active"

// QuizSource fetches the active quiz from a backing store (e.g., document DB).
type QuizSource interface {
	GetActiveQuiz(ctx context.Context) (domain.Quiz, error)
}

// QuizCache caches the marshaled active quiz in Redis and falls back to the
// source on a miss. Stored as: SET quiz:active {json} EX ttl.
type QuizCache struct {
	client *redis.Client
	source QuizSource
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewQuizCache(client *redis.Client, source QuizSource, ttl time.Duration) *QuizCache {
	return &QuizCache{
		client: client,
		source: source,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *QuizCache) GetActiveQuiz(ctx context.Context) (domain.Quiz, error) {
	if quiz, ok := c.fromCache(ctx); ok {
		return quiz, nil
	}

	result, err, _ := c.sf.Do(activeQuizKey, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if quiz, ok := c.fromCache(ctx); ok {
			return quiz, nil
		}

		quiz, err := c.source.GetActiveQuiz(ctx)
		if err != nil {
			return domain.Quiz{}, err
		}

		if data, err := json.Marshal(quiz); err == nil {
			// best-effort fill; a failed write just means the next call misses
			_ = c.client.Set(ctx, activeQuizKey, data, c.ttlWithJitter()).Err()
		}
		return quiz, nil
	})
	if err != nil {
		return domain.Quiz{}, err
	}
	return result.(domain.Quiz), nil
}

// Invalidate drops the cached quiz, e.g. after an admin activates another one.
func (c *QuizCache) Invalidate(ctx context.Context) error {
	return c.client.Del(ctx, activeQuizKey).Err()
}

func (c *QuizCache) fromCache(ctx context.Context) (domain.Quiz, bool) {
	data, err := c.client.Get(ctx, activeQuizKey).Bytes()
	if err != nil {
		return domain.Quiz{}, false
	}
	var quiz domain.Quiz
	if err := json.Unmarshal(data, &quiz); err != nil {
		return domain.Quiz{}, false
	}
	return quiz, true
}

func (c *QuizCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
