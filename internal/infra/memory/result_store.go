package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"quizmaster-service/internal/domain"
)

// ResultStore is an in-memory implementation of app.ResultStore. One record
// per (user, quiz title): a second Save for the same pair returns the
// existing record's ID without overwriting it.
type ResultStore struct {
	mu      sync.RWMutex
	results map[resultKey]domain.QuizResult
	nextID  int
}

type resultKey struct {
	userID    string
	quizTitle string
}

func NewResultStore() *ResultStore {
	return &ResultStore{results: make(map[resultKey]domain.QuizResult)}
}

func (s *ResultStore) HasCompleted(_ context.Context, userID, quizTitle string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.results[resultKey{userID, quizTitle}]
	return ok, nil
}

func (s *ResultStore) ResultFor(_ context.Context, userID, quizTitle string) (domain.QuizResult, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result, ok := s.results[resultKey{userID, quizTitle}]
	return result, ok, nil
}

func (s *ResultStore) Save(_ context.Context, result domain.QuizResult) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := resultKey{result.UserID, result.QuizTitle}
	if existing, ok := s.results[key]; ok {
		return existing.ID, nil
	}
	s.nextID++
	result.ID = fmt.Sprintf("r-%d", s.nextID)
	s.results[key] = result
	return result.ID, nil
}

func (s *ResultStore) Leaderboard(_ context.Context, quizTitle string, limit int) ([]domain.QuizResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]domain.QuizResult, 0)
	for _, r := range s.results {
		if r.QuizTitle == quizTitle {
			entries = append(entries, r)
		}
	}
	// Best score first; ties go to whoever finished earlier.
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].Timestamp.Before(entries[j].Timestamp)
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (s *ResultStore) UserHistory(_ context.Context, userID string) ([]domain.QuizResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]domain.QuizResult, 0)
	for _, r := range s.results {
		if r.UserID == userID {
			entries = append(entries, r)
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})
	return entries, nil
}
