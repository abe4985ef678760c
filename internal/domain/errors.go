package domain

import "errors"

var (
	// ErrNoActiveQuiz is returned when no quiz is currently flagged playable.
	ErrNoActiveQuiz = errors.New("no active quiz")
	// ErrNoQuestions is returned when the active quiz has an empty question list.
	ErrNoQuestions = errors.New("active quiz has no questions")
	// ErrSessionNotFound is returned when a user acts without a running session.
	ErrSessionNotFound = errors.New("quiz session not found")
	// ErrQuizCompleted rejects input after the session reached its terminal state.
	ErrQuizCompleted = errors.New("quiz already completed")
	// ErrAlreadyAnswered rejects a second submission for the same question.
	ErrAlreadyAnswered = errors.New("question already answered")
	// ErrNotCompleted is returned when review is requested mid-quiz.
	ErrNotCompleted = errors.New("quiz not completed yet")
	// ErrNothingToRetry is returned when a save retry is requested but the
	// result was already persisted (or the session never completed).
	ErrNothingToRetry = errors.New("no failed save to retry")
)
