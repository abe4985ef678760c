package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"quizmaster-service/internal/app"
	"quizmaster-service/internal/domain"
)

// CompletionCache wraps a ResultStore and keeps positive completion flags in
// Redis so the start-of-play guard check rarely hits the backing store.
// Flags are stored as: SET result:{userID}:{quizTitle} {resultID} EX ttl.
//
// Only positive answers are cached; a miss always falls through, so a flag
// expiring early costs one extra store query, never a wrong gate decision.
type CompletionCache struct {
	app.ResultStore
	client *redis.Client
	ttl    time.Duration
}

func NewCompletionCache(client *redis.Client, store app.ResultStore, ttl time.Duration) *CompletionCache {
	return &CompletionCache{ResultStore: store, client: client, ttl: ttl}
}

func (c *CompletionCache) HasCompleted(ctx context.Context, userID, quizTitle string) (bool, error) {
	n, err := c.client.Exists(ctx, c.key(userID, quizTitle)).Result()
	if err == nil && n > 0 {
		return true, nil
	}
	done, err := c.ResultStore.HasCompleted(ctx, userID, quizTitle)
	if err != nil {
		return false, err
	}
	if done {
		_ = c.client.Set(ctx, c.key(userID, quizTitle), "1", c.ttl).Err()
	}
	return done, nil
}

func (c *CompletionCache) Save(ctx context.Context, result domain.QuizResult) (string, error) {
	id, err := c.ResultStore.Save(ctx, result)
	if err != nil {
		return "", err
	}
	_ = c.client.Set(ctx, c.key(result.UserID, result.QuizTitle), id, c.ttl).Err()
	return id, nil
}

func (c *CompletionCache) key(userID, quizTitle string) string {
	return "result:" + userID + ":" + quizTitle
}
