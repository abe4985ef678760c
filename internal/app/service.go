package app

import (
	"context"
	"log"

	"quizmaster-service/internal/domain"
)

// QuizSource supplies the currently active quiz (document store, cache, etc).
type QuizSource interface {
	GetActiveQuiz(ctx context.Context) (domain.Quiz, error)
}

// ResultStore persists and queries quiz results. Save must be idempotent for
// a (userID, quizTitle) pair: a second write returns the existing record's ID.
type ResultStore interface {
	HasCompleted(ctx context.Context, userID, quizTitle string) (bool, error)
	ResultFor(ctx context.Context, userID, quizTitle string) (domain.QuizResult, bool, error)
	Save(ctx context.Context, result domain.QuizResult) (string, error)
	Leaderboard(ctx context.Context, quizTitle string, limit int) ([]domain.QuizResult, error)
	UserHistory(ctx context.Context, userID string) ([]domain.QuizResult, error)
}

// SessionRepository tracks the running session per user.
type SessionRepository interface {
	Put(userID string, session *Session)
	Get(userID string) (*Session, bool)
	Delete(userID string)
}

// QuizService contains the quiz-taking use cases: gated start, answer
// submission, review, and the one-shot score save.
type QuizService struct {
	quizzes  QuizSource
	results  ResultStore
	sessions SessionRepository
	timing   Timing
}

func NewQuizService(quizzes QuizSource, results ResultStore, sessions SessionRepository, timing Timing) *QuizService {
	return &QuizService{
		quizzes:  quizzes,
		results:  results,
		sessions: sessions,
		timing:   timing.withDefaults(),
	}
}

// StartOutcome is the result of attempting to start a play session. When the
// user already has a persisted result for the active quiz, AlreadyCompleted is
// set and Prior carries the earlier score instead of a fresh session.
type StartOutcome struct {
	AlreadyCompleted bool
	Prior            *domain.QuizResult
	Session          *Session
}

// Start loads the active quiz, checks the completion guard, and either
// returns the user's prior result or creates a session with running timers.
//
// A failing guard query fails open: locking legitimate users out on a
// transient store error is worse than the odd repeat attempt.
func (s *QuizService) Start(ctx context.Context, userID, displayName string) (StartOutcome, error) {
	quiz, err := s.quizzes.GetActiveQuiz(ctx)
	if err != nil {
		return StartOutcome{}, err
	}
	if len(quiz.Questions) == 0 {
		return StartOutcome{}, domain.ErrNoQuestions
	}

	done, err := s.results.HasCompleted(ctx, userID, quiz.Title)
	if err != nil {
		log.Printf("completion check failed for user %s, allowing play: %v", userID, err)
		done = false
	}
	if done {
		outcome := StartOutcome{AlreadyCompleted: true}
		prior, ok, err := s.results.ResultFor(ctx, userID, quiz.Title)
		if err != nil {
			log.Printf("prior result lookup failed for user %s: %v", userID, err)
		} else if ok {
			outcome.Prior = &prior
		}
		return outcome, nil
	}

	// A fresh start replaces any session left over from an abandoned run.
	if old, ok := s.sessions.Get(userID); ok {
		old.stop()
		s.sessions.Delete(userID)
	}

	session := newSession(userID, displayName, quiz, s.timing, s.persistResult)
	s.sessions.Put(userID, session)
	session.begin()
	return StartOutcome{Session: session}, nil
}

// Submit records the user's answer for the question currently awaiting one.
func (s *QuizService) Submit(ctx context.Context, userID string, sub domain.Submission) (Feedback, error) {
	session, ok := s.sessions.Get(userID)
	if !ok {
		return Feedback{}, domain.ErrSessionNotFound
	}
	return session.submitAnswer(sub)
}

// Review replays the session's recorded answers against its questions.
func (s *QuizService) Review(ctx context.Context, userID string) ([]ReviewEntry, error) {
	session, ok := s.sessions.Get(userID)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	if !session.Completed() {
		return nil, domain.ErrNotCompleted
	}
	return BuildReview(session.Questions(), session.UserAnswers()), nil
}

// RetrySave re-attempts persisting a completed session whose save failed.
// There is no automatic retry; this is the manual path.
func (s *QuizService) RetrySave(ctx context.Context, userID string) (Summary, error) {
	session, ok := s.sessions.Get(userID)
	if !ok {
		return Summary{}, domain.ErrSessionNotFound
	}
	if !session.Completed() || session.SaveError() == nil {
		return Summary{}, domain.ErrNothingToRetry
	}
	id, err := s.results.Save(ctx, session.buildResult())
	session.recordSave(id, err)
	if err != nil {
		return session.Summary(), err
	}
	return session.Summary(), nil
}

// Abandon stops the session's timers and discards it.
func (s *QuizService) Abandon(ctx context.Context, userID string) {
	session, ok := s.sessions.Get(userID)
	if !ok {
		return
	}
	session.stop()
	s.sessions.Delete(userID)
}

// Leaderboard lists results for a quiz, best score first; ties go to the
// earlier submission.
func (s *QuizService) Leaderboard(ctx context.Context, quizTitle string, limit int) ([]domain.QuizResult, error) {
	return s.results.Leaderboard(ctx, quizTitle, limit)
}

// UserHistory lists a user's past results, newest first.
func (s *QuizService) UserHistory(ctx context.Context, userID string) ([]domain.QuizResult, error) {
	return s.results.UserHistory(ctx, userID)
}

// persistResult is the session completion hook. It runs once per session; a
// failure is recorded on the session and surfaced to the user, but the
// in-memory results stay fully reviewable.
func (s *QuizService) persistResult(session *Session) {
	result := session.buildResult()
	id, err := s.results.Save(context.Background(), result)
	session.recordSave(id, err)
	if err != nil {
		log.Printf("failed to save quiz result for user %s: %v", result.UserID, err)
	}
}
