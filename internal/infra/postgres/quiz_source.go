package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"quizmaster-service/internal/domain"
)

// QuizSource loads the active quiz JSONB from Postgres. Exactly one quiz is
// expected to carry the active flag; if several do, the most recently
// activated wins.
type QuizSource struct {
	pool *pgxpool.Pool
}

func NewQuizSource(pool *pgxpool.Pool) *QuizSource {
	return &QuizSource{pool: pool}
}

func (s *QuizSource) GetActiveQuiz(ctx context.Context) (domain.Quiz, error) {
	var (
		id  string
		raw []byte
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, data FROM quizzes WHERE active = 1 ORDER BY updated_at DESC LIMIT 1`,
	).Scan(&id, &raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Quiz{}, domain.ErrNoActiveQuiz
	}
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("load active quiz: %w", err)
	}
	var quiz domain.Quiz
	if err := json.Unmarshal(raw, &quiz); err != nil {
		return domain.Quiz{}, fmt.Errorf("unmarshal quiz: %w", err)
	}
	quiz.ID = id
	quiz.Active = true
	return quiz, nil
}
