package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"quizmaster-service/internal/domain"
)

// ResultStore persists quiz results as JSONB rows. The UNIQUE (user_id,
// quiz_title) constraint is the hard backstop for exactly-once submission:
// even if two saves race, only one row lands and both callers get its ID.
type ResultStore struct {
	pool *pgxpool.Pool
}

func NewResultStore(pool *pgxpool.Pool) *ResultStore {
	return &ResultStore{pool: pool}
}

func (s *ResultStore) HasCompleted(ctx context.Context, userID, quizTitle string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM quiz_results WHERE user_id = $1 AND quiz_title = $2)`,
		userID, quizTitle,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("completion check: %w", err)
	}
	return exists, nil
}

func (s *ResultStore) ResultFor(ctx context.Context, userID, quizTitle string) (domain.QuizResult, bool, error) {
	var (
		id  int64
		raw []byte
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, data FROM quiz_results WHERE user_id = $1 AND quiz_title = $2`,
		userID, quizTitle,
	).Scan(&id, &raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.QuizResult{}, false, nil
	}
	if err != nil {
		return domain.QuizResult{}, false, fmt.Errorf("load result: %w", err)
	}
	result, err := unmarshalResult(id, raw)
	if err != nil {
		return domain.QuizResult{}, false, err
	}
	return result, true, nil
}

func (s *ResultStore) Save(ctx context.Context, result domain.QuizResult) (string, error) {
	data, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("marshal result: %w", err)
	}

	var id int64
	err = s.pool.QueryRow(ctx,
		`INSERT INTO quiz_results (user_id, quiz_title, data, created_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (user_id, quiz_title) DO NOTHING
		 RETURNING id`,
		result.UserID, result.QuizTitle, data, result.Timestamp,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		// Conflict: a result for this pair already exists, return its ID.
		err = s.pool.QueryRow(ctx,
			`SELECT id FROM quiz_results WHERE user_id = $1 AND quiz_title = $2`,
			result.UserID, result.QuizTitle,
		).Scan(&id)
	}
	if err != nil {
		return "", fmt.Errorf("save result: %w", err)
	}
	return strconv.FormatInt(id, 10), nil
}

func (s *ResultStore) Leaderboard(ctx context.Context, quizTitle string, limit int) ([]domain.QuizResult, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, data FROM quiz_results
		 WHERE quiz_title = $1
		 ORDER BY (data->>'score')::int DESC, created_at ASC
		 LIMIT $2`,
		quizTitle, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("load leaderboard: %w", err)
	}
	defer rows.Close()
	return collectResults(rows)
}

func (s *ResultStore) UserHistory(ctx context.Context, userID string) ([]domain.QuizResult, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, data FROM quiz_results WHERE user_id = $1 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	defer rows.Close()
	return collectResults(rows)
}

func collectResults(rows pgx.Rows) ([]domain.QuizResult, error) {
	results := make([]domain.QuizResult, 0)
	for rows.Next() {
		var (
			id  int64
			raw []byte
		)
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		result, err := unmarshalResult(id, raw)
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}
	return results, rows.Err()
}

func unmarshalResult(id int64, raw []byte) (domain.QuizResult, error) {
	var result domain.QuizResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return domain.QuizResult{}, fmt.Errorf("unmarshal result: %w", err)
	}
	result.ID = strconv.FormatInt(id, 10)
	return result, nil
}
