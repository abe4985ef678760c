package app

import (
	"testing"
	"time"

	"quizmaster-service/internal/domain"
)

// fakeClock lets tests control response-time measurement.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func testTiming() Timing {
	// Hour-long ticks keep background timers inert; tests drive expiry by
	// calling the transition methods directly.
	return Timing{QuestionSeconds: 45, TotalSeconds: 300, TickInterval: time.Hour}
}

func fiveQuestionQuiz() domain.Quiz {
	qs := make([]domain.Question, 0, 5)
	for _, id := range []string{"q1", "q2", "q3", "q4", "q5"} {
		qs = append(qs, domain.Question{
			ID:           id,
			Text:         "Pick the right option",
			QuestionType: domain.QuestionTypeMultipleChoice,
			Answers: []domain.Answer{
				{ID: "a1", Text: "Right"},
				{ID: "a2", Text: "Wrong"},
			},
			CorrectAnswerID: "a1",
		})
	}
	return domain.Quiz{ID: "quiz-1", Title: "Bowl 1", Questions: qs}
}

func newTestSession(quiz domain.Quiz, clk *fakeClock, onComplete func(*Session)) *Session {
	s := newSessionWithClock("u1", "Alice", quiz, testTiming(), onComplete, clk.Now)
	s.begin()
	return s
}

// questionEpoch reads the epoch the current question's countdown is armed with.
func questionEpoch(s *Session) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.qEpoch
}

// expireQuestion simulates the current question's countdown expiring.
func expireQuestion(s *Session) {
	s.questionTimeUp(questionEpoch(s))
}

func assertInvariants(t *testing.T, s *Session) {
	t.Helper()
	s.mu.RLock()
	defer s.mu.RUnlock()

	correct := 0
	for _, a := range s.userAnswers {
		if a.IsCorrect {
			correct++
		}
	}
	if s.score != correct {
		t.Fatalf("score %d != correct answers %d", s.score, correct)
	}
	if s.completed {
		if len(s.userAnswers) != len(s.quiz.Questions) {
			t.Fatalf("completed with %d answers for %d questions", len(s.userAnswers), len(s.quiz.Questions))
		}
	} else if len(s.userAnswers) != s.index {
		t.Fatalf("in progress with %d answers at index %d", len(s.userAnswers), s.index)
	}
}

func TestSubmitMultipleChoiceCorrect(t *testing.T) {
	clk := &fakeClock{t: time.Unix(1000, 0)}
	quiz := domain.Quiz{
		ID:    "quiz-1",
		Title: "Bowl 1",
		Questions: []domain.Question{{
			ID:           "q1",
			Text:         "What is the capital of France?",
			QuestionType: domain.QuestionTypeMultipleChoice,
			Answers: []domain.Answer{
				{ID: "a1", Text: "Paris"},
				{ID: "a2", Text: "Rome"},
			},
			CorrectAnswerID: "a1",
		}},
	}
	s := newTestSession(quiz, clk, nil)

	clk.Advance(3 * time.Second)
	fb, err := s.submitAnswer(domain.OptionChoice{OptionID: "a1"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !fb.Correct || fb.Score != 1 {
		t.Fatalf("expected correct with score 1, got %+v", fb)
	}
	if fb.ResponseTime != 3 {
		t.Fatalf("expected response time 3s, got %v", fb.ResponseTime)
	}
	if fb.CorrectAnswerText != "Paris" {
		t.Fatalf("expected correct answer text Paris, got %q", fb.CorrectAnswerText)
	}
	if !fb.Completed || !s.Completed() {
		t.Fatalf("single-question quiz should complete on answer")
	}
	assertInvariants(t, s)
}

func TestSubmitTextAnswerNormalized(t *testing.T) {
	clk := &fakeClock{t: time.Unix(1000, 0)}
	quiz := domain.Quiz{
		ID:    "quiz-1",
		Title: "Bowl 1",
		Questions: []domain.Question{{
			ID:              "q1",
			Text:            "Capital of France?",
			QuestionType:    domain.QuestionTypeText,
			Answers:         []domain.Answer{{ID: "a1", Text: "Paris"}},
			CorrectAnswerID: "a1",
		}},
	}
	s := newTestSession(quiz, clk, nil)

	fb, err := s.submitAnswer(domain.FreeText{Raw: "  paris "})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !fb.Correct {
		t.Fatalf("expected case/whitespace-insensitive match, got %+v", fb)
	}
	answers := s.UserAnswers()
	if answers[0].AnswerID != "paris" {
		t.Fatalf("expected trimmed raw input recorded, got %q", answers[0].AnswerID)
	}
	assertInvariants(t, s)
}

func TestSubmitTextAnswerWrong(t *testing.T) {
	clk := &fakeClock{t: time.Unix(1000, 0)}
	quiz := domain.Quiz{
		ID:    "quiz-1",
		Title: "Bowl 1",
		Questions: []domain.Question{{
			ID:              "q1",
			QuestionType:    domain.QuestionTypeText,
			Answers:         []domain.Answer{{ID: "a1", Text: "Paris"}},
			CorrectAnswerID: "a1",
		}},
	}
	s := newTestSession(quiz, clk, nil)

	fb, err := s.submitAnswer(domain.FreeText{Raw: "Parris"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if fb.Correct {
		t.Fatalf("near-miss must not match: exact comparison only")
	}
	if s.Summary().Score != 0 {
		t.Fatalf("wrong answer must not score")
	}
}

func TestAutoAdvanceAndResponseClockPerQuestion(t *testing.T) {
	clk := &fakeClock{t: time.Unix(1000, 0)}
	s := newTestSession(fiveQuestionQuiz(), clk, nil)

	clk.Advance(5 * time.Second)
	fb, err := s.submitAnswer(domain.OptionChoice{OptionID: "a1"})
	if err != nil {
		t.Fatalf("submit q1: %v", err)
	}
	if fb.ResponseTime != 5 {
		t.Fatalf("q1 response time: got %v", fb.ResponseTime)
	}
	assertInvariants(t, s)

	// The next question gets an independent clock starting at advance time.
	clk.Advance(2 * time.Second)
	fb, err = s.submitAnswer(domain.OptionChoice{OptionID: "a2"})
	if err != nil {
		t.Fatalf("submit q2: %v", err)
	}
	if fb.ResponseTime != 2 {
		t.Fatalf("q2 response time should restart from question shown, got %v", fb.ResponseTime)
	}
	if fb.Correct {
		t.Fatalf("a2 is wrong for q2")
	}
	if fb.Score != 1 {
		t.Fatalf("score should remain 1, got %d", fb.Score)
	}
	assertInvariants(t, s)
}

func TestQuestionTimeoutRecordsUnansweredAndAdvances(t *testing.T) {
	clk := &fakeClock{t: time.Unix(1000, 0)}
	s := newTestSession(fiveQuestionQuiz(), clk, nil)

	expireQuestion(s)

	answers := s.UserAnswers()
	if len(answers) != 1 {
		t.Fatalf("expected one recorded answer, got %d", len(answers))
	}
	if answers[0].AnswerID != "" || answers[0].IsCorrect {
		t.Fatalf("timeout must record empty, incorrect answer: %+v", answers[0])
	}
	if s.Completed() {
		t.Fatalf("mid-quiz timeout must advance, not complete")
	}
	assertInvariants(t, s)
}

func TestQuestionTimeoutOnLastQuestionCompletes(t *testing.T) {
	clk := &fakeClock{t: time.Unix(1000, 0)}
	quiz := fiveQuestionQuiz()
	quiz.Questions = quiz.Questions[:1]
	completions := 0
	s := newTestSession(quiz, clk, func(*Session) { completions++ })

	expireQuestion(s)
	if !s.Completed() {
		t.Fatalf("last-question timeout must complete the quiz")
	}
	if completions != 1 {
		t.Fatalf("expected one completion callback, got %d", completions)
	}
	assertInvariants(t, s)
}

func TestWholeQuizTimeoutBackfillsRemaining(t *testing.T) {
	clk := &fakeClock{t: time.Unix(1000, 0)}
	s := newTestSession(fiveQuestionQuiz(), clk, nil)

	// Answer 2 of 5.
	if _, err := s.submitAnswer(domain.OptionChoice{OptionID: "a1"}); err != nil {
		t.Fatalf("submit q1: %v", err)
	}
	if _, err := s.submitAnswer(domain.OptionChoice{OptionID: "a1"}); err != nil {
		t.Fatalf("submit q2: %v", err)
	}

	clk.Advance(10 * time.Second)
	s.forceTimeUp()

	if !s.Completed() {
		t.Fatalf("whole-quiz timeout must complete immediately")
	}
	answers := s.UserAnswers()
	if len(answers) != 5 {
		t.Fatalf("expected 5 answers after backfill, got %d", len(answers))
	}
	// Current question carries its elapsed time, the rest zero.
	if answers[2].ResponseTime != 10 || answers[2].AnswerID != "" {
		t.Fatalf("current question: %+v", answers[2])
	}
	for _, a := range answers[3:] {
		if a.IsCorrect || a.AnswerID != "" || a.ResponseTime != 0 {
			t.Fatalf("backfilled answer should be empty/incorrect/zero: %+v", a)
		}
	}
	if got := s.Summary().Score; got != 2 {
		t.Fatalf("score after timeout: got %d, want 2", got)
	}
	assertInvariants(t, s)
}

func TestForceTimeUpCapsElapsedAtQuestionDuration(t *testing.T) {
	clk := &fakeClock{t: time.Unix(1000, 0)}
	s := newTestSession(fiveQuestionQuiz(), clk, nil)

	clk.Advance(500 * time.Second)
	s.forceTimeUp()

	answers := s.UserAnswers()
	if answers[0].ResponseTime != 45 {
		t.Fatalf("elapsed should cap at the question duration, got %v", answers[0].ResponseTime)
	}
}

func TestSubmitAfterCompletionRejected(t *testing.T) {
	clk := &fakeClock{t: time.Unix(1000, 0)}
	quiz := fiveQuestionQuiz()
	quiz.Questions = quiz.Questions[:1]
	s := newTestSession(quiz, clk, nil)

	if _, err := s.submitAnswer(domain.OptionChoice{OptionID: "a1"}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := s.submitAnswer(domain.OptionChoice{OptionID: "a1"}); err != domain.ErrQuizCompleted {
		t.Fatalf("expected ErrQuizCompleted, got %v", err)
	}
	if s.Summary().Score != 1 {
		t.Fatalf("rejected submit corrupted score")
	}
}

func TestCompletionCallbackFiresOnce(t *testing.T) {
	clk := &fakeClock{t: time.Unix(1000, 0)}
	completions := 0
	s := newTestSession(fiveQuestionQuiz(), clk, func(*Session) { completions++ })

	s.forceTimeUp()
	// Redundant expiries and re-observation of terminal state.
	s.forceTimeUp()
	expireQuestion(s)
	s.finish()
	_ = s.Summary()

	if completions != 1 {
		t.Fatalf("completion side effects must be edge-triggered, fired %d times", completions)
	}
}

func TestStaleQuestionExpiryAfterSubmitIsIgnored(t *testing.T) {
	clk := &fakeClock{t: time.Unix(1000, 0)}
	s := newTestSession(fiveQuestionQuiz(), clk, nil)

	staleEpoch := questionEpoch(s)
	if _, err := s.submitAnswer(domain.OptionChoice{OptionID: "a1"}); err != nil {
		t.Fatalf("submit q1: %v", err)
	}

	// Countdown.Stop cannot cancel an expiry already dispatched, so q1's
	// timeout can land after the submit advanced to q2. It must not mark q2
	// as a timeout the user never saw.
	s.questionTimeUp(staleEpoch)

	answers := s.UserAnswers()
	if len(answers) != 1 {
		t.Fatalf("stale expiry recorded an answer for an unseen question: %+v", answers)
	}
	if s.Completed() {
		t.Fatalf("stale expiry must not advance the session")
	}

	// q2 is still live and answerable.
	fb, err := s.submitAnswer(domain.OptionChoice{OptionID: "a1"})
	if err != nil {
		t.Fatalf("submit q2: %v", err)
	}
	if !fb.Correct || fb.Score != 2 {
		t.Fatalf("q2 should still score normally, got %+v", fb)
	}
	assertInvariants(t, s)
}

func TestExpiryAfterStopDoesNotCompleteOrSave(t *testing.T) {
	clk := &fakeClock{t: time.Unix(1000, 0)}
	quiz := fiveQuestionQuiz()
	quiz.Questions = quiz.Questions[:1]
	completions := 0
	s := newTestSession(quiz, clk, func(*Session) { completions++ })

	epoch := questionEpoch(s)
	s.stop()

	// Expiries dispatched before stop landed deliver afterwards.
	s.questionTimeUp(epoch)
	s.forceTimeUp()

	if s.Completed() {
		t.Fatalf("abandoned session must not complete")
	}
	if completions != 0 {
		t.Fatalf("abandoned session must not trigger persistence, callbacks fired %d times", completions)
	}
	if got := len(s.UserAnswers()); got != 0 {
		t.Fatalf("abandoned session must not record answers, got %d", got)
	}
}

func TestSubscribeAfterStopReturnsClosedChannel(t *testing.T) {
	clk := &fakeClock{t: time.Unix(1000, 0)}
	s := newTestSession(fiveQuestionQuiz(), clk, nil)
	s.stop()

	ch, cancel := s.Subscribe()
	defer cancel()
	if _, ok := <-ch; ok {
		t.Fatalf("subscribing to a stopped session must yield a closed channel")
	}
}

func TestPercentageRounding(t *testing.T) {
	cases := []struct {
		score, total int
		want         float64
	}{
		{0, 5, 0},
		{1, 3, 33.3},
		{2, 3, 66.7},
		{5, 5, 100},
		{1, 8, 12.5},
		{0, 0, 0},
	}
	for _, c := range cases {
		if got := Percentage(c.score, c.total); got != c.want {
			t.Fatalf("Percentage(%d, %d) = %v, want %v", c.score, c.total, got, c.want)
		}
	}
}

func TestSubscribeReceivesQuestionThenCompleted(t *testing.T) {
	clk := &fakeClock{t: time.Unix(1000, 0)}
	quiz := fiveQuestionQuiz()
	quiz.Questions = quiz.Questions[:2]
	s := newTestSession(quiz, clk, nil)

	ch, cancel := s.Subscribe()
	defer cancel()

	first := <-ch
	if first.Type != EventQuestion || first.Index != 0 {
		t.Fatalf("expected initial question event, got %+v", first)
	}

	if _, err := s.submitAnswer(domain.OptionChoice{OptionID: "a1"}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	next := <-ch
	if next.Type != EventQuestion || next.Index != 1 {
		t.Fatalf("expected advance to question 1, got %+v", next)
	}

	if _, err := s.submitAnswer(domain.OptionChoice{OptionID: "a1"}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	done := <-ch
	if done.Type != EventCompleted || done.Summary == nil {
		t.Fatalf("expected completed event with summary, got %+v", done)
	}
	if done.Summary.Score != 2 || done.Summary.Percentage != 100 {
		t.Fatalf("unexpected summary: %+v", done.Summary)
	}
}
