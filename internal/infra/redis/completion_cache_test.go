package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"quizmaster-service/internal/app"
	"quizmaster-service/internal/domain"
	"quizmaster-service/internal/infra/memory"
)

func TestCompletionCacheMarksSaves(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	cache := NewCompletionCache(newClient(mr), memory.NewResultStore(), time.Minute)

	done, err := cache.HasCompleted(ctx, "u1", "Bowl 1")
	if err != nil || done {
		t.Fatalf("expected not completed, done=%v err=%v", done, err)
	}

	if _, err := cache.Save(ctx, domain.QuizResult{UserID: "u1", QuizTitle: "Bowl 1", Score: 2}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if !mr.Exists("result:u1:Bowl 1") {
		t.Fatalf("expected completion marker in redis")
	}

	done, err = cache.HasCompleted(ctx, "u1", "Bowl 1")
	if err != nil || !done {
		t.Fatalf("expected completed, done=%v err=%v", done, err)
	}
}

func TestCompletionCacheFastPathSkipsStore(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	inner := &countingResultStore{ResultStore: memory.NewResultStore()}
	cache := NewCompletionCache(newClient(mr), inner, time.Minute)

	if _, err := cache.Save(ctx, domain.QuizResult{UserID: "u1", QuizTitle: "Bowl 1"}); err != nil {
		t.Fatalf("save: %v", err)
	}

	if done, err := cache.HasCompleted(ctx, "u1", "Bowl 1"); err != nil || !done {
		t.Fatalf("expected completed, done=%v err=%v", done, err)
	}
	if inner.guardCalls != 0 {
		t.Fatalf("expected marker fast path, store queried %d times", inner.guardCalls)
	}

	// A miss still falls through to the store.
	if done, err := cache.HasCompleted(ctx, "u2", "Bowl 1"); err != nil || done {
		t.Fatalf("expected not completed, done=%v err=%v", done, err)
	}
	if inner.guardCalls != 1 {
		t.Fatalf("expected fallthrough on miss, got %d calls", inner.guardCalls)
	}
}

type countingResultStore struct {
	app.ResultStore
	guardCalls int
}

func (s *countingResultStore) HasCompleted(ctx context.Context, userID, quizTitle string) (bool, error) {
	s.guardCalls++
	return s.ResultStore.HasCompleted(ctx, userID, quizTitle)
}
