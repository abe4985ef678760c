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

func TestSessionStoreSetsAndClearsKeys(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	store := NewSessionStore(newClient(mr), time.Minute)
	source := memory.NewStaticQuizSource([]domain.Quiz{sampleQuiz()})
	timing := app.Timing{QuestionSeconds: 45, TotalSeconds: 300, TickInterval: time.Hour}
	service := app.NewQuizService(source, memory.NewResultStore(), store, timing)

	ctx := context.Background()
	outcome, err := service.Start(ctx, "u1", "Alice")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if outcome.Session == nil {
		t.Fatalf("expected session")
	}
	if !mr.Exists("quiz:session:u1") {
		t.Fatalf("expected redis liveness key to be set")
	}
	if _, ok := store.Get("u1"); !ok {
		t.Fatalf("expected session present")
	}

	service.Abandon(ctx, "u1")
	if mr.Exists("quiz:session:u1") {
		t.Fatalf("expected redis liveness key to be removed")
	}
	if _, ok := store.Get("u1"); ok {
		t.Fatalf("expected session removed")
	}
}
