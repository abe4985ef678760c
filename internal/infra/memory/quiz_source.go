package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"quizmaster-service/internal/domain"
)

// StaticQuizSource serves the active quiz from an in-memory list (useful for
// tests/demos). The first quiz flagged active wins.
type StaticQuizSource struct {
	quizzes []domain.Quiz
}

func NewStaticQuizSource(quizzes []domain.Quiz) *StaticQuizSource {
	return &StaticQuizSource{quizzes: quizzes}
}

func (s *StaticQuizSource) GetActiveQuiz(_ context.Context) (domain.Quiz, error) {
	for _, q := range s.quizzes {
		if q.Active {
			return q, nil
		}
	}
	return domain.Quiz{}, domain.ErrNoActiveQuiz
}

// QuizSource abstracts where quiz content comes from (document DB, static set).
type QuizSource interface {
	GetActiveQuiz(ctx context.Context) (domain.Quiz, error)
}

// QuizCache caches the active quiz with a TTL so every session start does not
// hit the backing store. Quiz content is immutable once a session begins, so a
// slightly stale activation flip is acceptable.
type QuizCache struct {
	source QuizSource
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu        sync.RWMutex
	cached    domain.Quiz
	hasCached bool
	expiresAt time.Time
}

func NewQuizCache(source QuizSource, ttl time.Duration) *QuizCache {
	return &QuizCache{
		source: source,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *QuizCache) GetActiveQuiz(ctx context.Context) (domain.Quiz, error) {
	now := c.clock()

	c.mu.RLock()
	if c.hasCached && c.expiresAt.After(now) {
		quiz := c.cached
		c.mu.RUnlock()
		return quiz, nil
	}
	c.mu.RUnlock()

	result, err, _ := c.sf.Do("active", func() (interface{}, error) {
		now := c.clock()
		c.mu.RLock()
		if c.hasCached && c.expiresAt.After(now) {
			quiz := c.cached
			c.mu.RUnlock()
			return quiz, nil
		}
		c.mu.RUnlock()

		quiz, err := c.source.GetActiveQuiz(ctx)
		if err != nil {
			return domain.Quiz{}, err
		}

		c.mu.Lock()
		c.cached = quiz
		c.hasCached = true
		c.expiresAt = now.Add(c.ttlWithJitter())
		c.mu.Unlock()
		return quiz, nil
	})
	if err != nil {
		return domain.Quiz{}, err
	}
	return result.(domain.Quiz), nil
}

func (c *QuizCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
