package app

import (
	"math"
	"strings"
	"sync"
	"time"

	"quizmaster-service/internal/domain"
)

// Timing configures the two countdowns of a play session.
type Timing struct {
	QuestionSeconds int
	TotalSeconds    int
	// TickInterval is the wall-clock length of one tick. Tests shrink it;
	// zero means one second.
	TickInterval time.Duration
}

const (
	DefaultQuestionSeconds = 45
	DefaultTotalSeconds    = 300
)

func (t Timing) withDefaults() Timing {
	if t.QuestionSeconds <= 0 {
		t.QuestionSeconds = DefaultQuestionSeconds
	}
	if t.TotalSeconds <= 0 {
		t.TotalSeconds = DefaultTotalSeconds
	}
	if t.TickInterval <= 0 {
		t.TickInterval = time.Second
	}
	return t
}

// Feedback summarizes the outcome of a single answer submission.
type Feedback struct {
	QuestionID        string  `json:"questionId"`
	Correct           bool    `json:"correct"`
	CorrectAnswerText string  `json:"correctAnswerText"`
	Explanation       string  `json:"explanation,omitempty"`
	ResponseTime      float64 `json:"responseTime"`
	Score             int     `json:"score"`
	Completed         bool    `json:"completed"`
}

// Summary is the terminal view of a session, including the persistence outcome.
type Summary struct {
	QuizTitle           string  `json:"quizTitle"`
	Score               int     `json:"score"`
	TotalQuestions      int     `json:"totalQuestions"`
	Percentage          float64 `json:"percentage"`
	AverageResponseTime float64 `json:"averageResponseTime"`
	ResultID            string  `json:"resultId,omitempty"`
	SaveError           string  `json:"saveError,omitempty"`
}

// EventType enumerates session events pushed to subscribers.
type EventType string

const (
	// EventQuestion announces the question now awaiting an answer.
	EventQuestion EventType = "question"
	// EventTick reports remaining time once per elapsed unit.
	EventTick EventType = "tick"
	// EventTimeUp reports a question (or the whole quiz) running out of time.
	EventTimeUp EventType = "timeUp"
	// EventCompleted carries the terminal summary.
	EventCompleted EventType = "completed"
)

// Event is a session state-change notification for transports.
type Event struct {
	Type              EventType       `json:"type"`
	Index             int             `json:"index"`
	TotalQuestions    int             `json:"totalQuestions"`
	Question          domain.Question `json:"question,omitempty"`
	QuestionRemaining int             `json:"questionRemaining"`
	QuizRemaining     int             `json:"quizRemaining"`
	Summary           *Summary        `json:"summary,omitempty"`
}

// Session owns the state of one user playing one quiz. All mutation goes
// through the transition methods; timer callbacks re-enter them under the
// same lock, so there is a single logical writer.
//
// Answered questions auto-advance: submitAnswer records the answer and moves
// to the next question in one transition. The returned Feedback carries the
// verdict the caller needs to render.
type Session struct {
	userID      string
	displayName string
	quiz        domain.Quiz
	timing      Timing
	now         func() time.Time
	onComplete  func(*Session)

	questionTimer *Countdown
	quizTimer     *Countdown

	mu          sync.RWMutex
	index       int
	score       int
	answered    bool
	completed   bool
	finished    bool   // one-shot latch for the completion callback
	stopped     bool   // set on abandon; all timer callbacks no-op
	qEpoch      uint64 // bumped on every question change; a stale expiry no-ops
	userAnswers []domain.UserAnswer
	shownAt     time.Time
	startedAt   time.Time
	resultID    string
	saveErr     error
	subscribers map[chan Event]struct{}
}

func newSession(userID, displayName string, quiz domain.Quiz, timing Timing, onComplete func(*Session)) *Session {
	return newSessionWithClock(userID, displayName, quiz, timing, onComplete, time.Now)
}

// newSessionWithClock allows deterministic timestamps in tests.
func newSessionWithClock(userID, displayName string, quiz domain.Quiz, timing Timing, onComplete func(*Session), now func() time.Time) *Session {
	timing = timing.withDefaults()
	if quiz.DurationSeconds > 0 {
		timing.TotalSeconds = quiz.DurationSeconds
	}
	return &Session{
		userID:        userID,
		displayName:   displayName,
		quiz:          quiz,
		timing:        timing,
		now:           now,
		onComplete:    onComplete,
		questionTimer: NewCountdown(timing.TickInterval),
		quizTimer:     NewCountdown(timing.TickInterval),
		subscribers:   make(map[chan Event]struct{}),
	}
}

// begin starts both countdowns and stamps the first question as shown.
func (s *Session) begin() {
	s.mu.Lock()
	t := s.now()
	s.startedAt = t
	s.shownAt = t
	epoch := s.qEpoch
	s.mu.Unlock()

	s.armQuestionTimer(epoch)
	s.quizTimer.Start(s.timing.TotalSeconds, nil, s.forceTimeUp)
}

// armQuestionTimer starts the per-question countdown bound to the question
// epoch it was armed for. Countdown.Stop cannot cancel a callback already in
// flight, so the expiry re-checks the epoch against session state and drops
// itself if the question changed in the meantime.
func (s *Session) armQuestionTimer(epoch uint64) {
	s.questionTimer.Start(s.timing.QuestionSeconds, s.onTick, func() {
		s.questionTimeUp(epoch)
	})
}

// submitAnswer is transition T1 (+T2 via auto-advance). It rejects input after
// completion and double answers, evaluates correctness per question type,
// records the response time, and advances to the next question or completes.
func (s *Session) submitAnswer(sub domain.Submission) (Feedback, error) {
	s.mu.Lock()
	if s.completed {
		s.mu.Unlock()
		return Feedback{}, domain.ErrQuizCompleted
	}
	if s.answered {
		s.mu.Unlock()
		return Feedback{}, domain.ErrAlreadyAnswered
	}

	q := s.quiz.Questions[s.index]
	s.answered = true
	answerID, correct := evaluate(q, sub)
	elapsed := s.now().Sub(s.shownAt).Seconds()
	s.userAnswers = append(s.userAnswers, domain.UserAnswer{
		QuestionID:   q.ID,
		AnswerID:     answerID,
		IsCorrect:    correct,
		ResponseTime: elapsed,
	})
	if correct {
		s.score++
	}

	fb := Feedback{
		QuestionID:   q.ID,
		Correct:      correct,
		Explanation:  q.Explanation,
		ResponseTime: elapsed,
	}
	if canonical, ok := q.CorrectAnswer(); ok {
		fb.CorrectAnswerText = canonical.Text
	}

	completedNow := s.advanceLocked()
	epoch := s.qEpoch
	fb.Score = s.score
	fb.Completed = completedNow
	var next Event
	if !completedNow {
		next = s.questionEventLocked()
	}
	s.mu.Unlock()

	s.questionTimer.Stop()
	if completedNow {
		s.quizTimer.Stop()
		s.finish()
	} else {
		s.armQuestionTimer(epoch)
		s.emit(next)
	}
	return fb, nil
}

// advanceLocked moves to the next question or completes the quiz, returning
// true on completion. Bumping the epoch invalidates any expiry callback still
// in flight for the question just left behind.
func (s *Session) advanceLocked() bool {
	s.qEpoch++
	if s.index+1 < len(s.quiz.Questions) {
		s.index++
		s.answered = false
		s.shownAt = s.now()
		return false
	}
	s.completed = true
	return true
}

// questionTimeUp fires when the per-question countdown expires: the current
// question is recorded as unanswered and the session advances. A callback
// carrying a stale epoch raced a submit or an abandon and must not touch the
// state of whatever question is current now.
func (s *Session) questionTimeUp(epoch uint64) {
	s.mu.Lock()
	if s.stopped || s.completed || epoch != s.qEpoch || s.answered {
		s.mu.Unlock()
		return
	}
	q := s.quiz.Questions[s.index]
	expiredIndex := s.index
	s.answered = true
	s.userAnswers = append(s.userAnswers, domain.UserAnswer{
		QuestionID:   q.ID,
		AnswerID:     "",
		IsCorrect:    false,
		ResponseTime: float64(s.timing.QuestionSeconds),
	})
	completedNow := s.advanceLocked()
	nextEpoch := s.qEpoch
	timeUp := Event{
		Type:           EventTimeUp,
		Index:          expiredIndex,
		TotalQuestions: len(s.quiz.Questions),
		QuizRemaining:  s.quizTimer.Remaining(),
	}
	var next Event
	if !completedNow {
		next = s.questionEventLocked()
	}
	s.mu.Unlock()

	s.emit(timeUp)
	if completedNow {
		s.quizTimer.Stop()
		s.finish()
	} else {
		s.armQuestionTimer(nextEpoch)
		s.emit(next)
	}
}

// forceTimeUp is transition T3: the whole-quiz countdown expired. The current
// question, if unanswered, is recorded with its elapsed time; every later
// question is back-filled as unanswered with zero response time.
func (s *Session) forceTimeUp() {
	s.mu.Lock()
	if s.stopped || s.completed {
		s.mu.Unlock()
		return
	}
	if !s.answered {
		q := s.quiz.Questions[s.index]
		elapsed := s.now().Sub(s.shownAt).Seconds()
		if limit := float64(s.timing.QuestionSeconds); elapsed > limit {
			elapsed = limit
		}
		s.userAnswers = append(s.userAnswers, domain.UserAnswer{
			QuestionID:   q.ID,
			AnswerID:     "",
			IsCorrect:    false,
			ResponseTime: elapsed,
		})
	}
	for i := s.index + 1; i < len(s.quiz.Questions); i++ {
		s.userAnswers = append(s.userAnswers, domain.UserAnswer{
			QuestionID: s.quiz.Questions[i].ID,
		})
	}
	s.completed = true
	timeUp := Event{
		Type:           EventTimeUp,
		Index:          s.index,
		TotalQuestions: len(s.quiz.Questions),
	}
	s.mu.Unlock()

	s.questionTimer.Stop()
	s.quizTimer.Stop()
	s.emit(timeUp)
	s.finish()
}

// finish runs the completion side effects exactly once, on the false->true
// edge of the completed flag. Observing the terminal state again never
// re-triggers the save.
func (s *Session) finish() {
	s.mu.Lock()
	if s.finished {
		s.mu.Unlock()
		return
	}
	s.finished = true
	cb := s.onComplete
	s.mu.Unlock()

	if cb != nil {
		cb(s)
	}

	s.mu.Lock()
	done := Event{
		Type:           EventCompleted,
		Index:          s.index,
		TotalQuestions: len(s.quiz.Questions),
		Summary:        s.summaryLocked(),
	}
	s.emitLocked(done)
	s.mu.Unlock()
}

// stop cancels both countdowns and drops all subscribers. Used when the user
// abandons the session so no orphaned timer callback can mutate discarded
// state. The stopped flag covers callbacks already past Countdown's own
// generation check when Stop lands.
func (s *Session) stop() {
	s.mu.Lock()
	s.stopped = true
	for ch := range s.subscribers {
		delete(s.subscribers, ch)
		close(ch)
	}
	s.mu.Unlock()

	s.questionTimer.Stop()
	s.quizTimer.Stop()
}

func (s *Session) onTick(remaining int) {
	s.mu.RLock()
	ev := Event{
		Type:              EventTick,
		Index:             s.index,
		TotalQuestions:    len(s.quiz.Questions),
		QuestionRemaining: remaining,
		QuizRemaining:     s.quizTimer.Remaining(),
	}
	s.mu.RUnlock()
	s.emit(ev)
}

// buildResult assembles the record persisted for this session.
func (s *Session) buildResult() domain.QuizResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.QuizResult{
		UserID:              s.userID,
		UserDisplayName:     s.displayName,
		QuizTitle:           s.quiz.Title,
		Score:               s.score,
		TotalQuestions:      len(s.quiz.Questions),
		Percentage:          Percentage(s.score, len(s.quiz.Questions)),
		Timestamp:           s.now(),
		UserAnswers:         append([]domain.UserAnswer(nil), s.userAnswers...),
		AverageResponseTime: averageResponseTime(s.userAnswers),
	}
}

func (s *Session) recordSave(id string, err error) {
	s.mu.Lock()
	s.resultID = id
	s.saveErr = err
	s.mu.Unlock()
}

// Completed reports whether the session reached its terminal state.
func (s *Session) Completed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.completed
}

// SaveError returns the error of the last persistence attempt, if any.
func (s *Session) SaveError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saveErr
}

// Summary returns the terminal view of the session.
func (s *Session) Summary() Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return *s.summaryLocked()
}

func (s *Session) summaryLocked() *Summary {
	sum := &Summary{
		QuizTitle:           s.quiz.Title,
		Score:               s.score,
		TotalQuestions:      len(s.quiz.Questions),
		Percentage:          Percentage(s.score, len(s.quiz.Questions)),
		AverageResponseTime: averageResponseTime(s.userAnswers),
		ResultID:            s.resultID,
	}
	if s.saveErr != nil {
		sum.SaveError = s.saveErr.Error()
	}
	return sum
}

// UserAnswers returns a copy of the recorded answers in question order.
func (s *Session) UserAnswers() []domain.UserAnswer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.UserAnswer(nil), s.userAnswers...)
}

// Questions returns the session's question list.
func (s *Session) Questions() []domain.Question {
	return s.quiz.Questions
}

// TimeRemaining reports the ticks left on the question and quiz countdowns.
func (s *Session) TimeRemaining() (question, quiz int) {
	return s.questionTimer.Remaining(), s.quizTimer.Remaining()
}

// Subscribe returns a channel receiving session events, primed with a
// snapshot of the current question (or the terminal summary). The caller must
// invoke cancel to avoid leaks. Subscribing to a stopped session yields an
// already-closed channel.
func (s *Session) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 16)

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	s.subscribers[ch] = struct{}{}
	var initial Event
	if s.completed {
		initial = Event{
			Type:           EventCompleted,
			Index:          s.index,
			TotalQuestions: len(s.quiz.Questions),
			Summary:        s.summaryLocked(),
		}
	} else {
		initial = s.questionEventLocked()
	}
	// Primed under the lock so a concurrent stop cannot close the channel
	// between registration and the first send.
	ch <- initial
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *Session) questionEventLocked() Event {
	return Event{
		Type:              EventQuestion,
		Index:             s.index,
		TotalQuestions:    len(s.quiz.Questions),
		Question:          s.quiz.Questions[s.index],
		QuestionRemaining: s.questionTimer.Remaining(),
		QuizRemaining:     s.quizTimer.Remaining(),
	}
}

func (s *Session) emit(ev Event) {
	s.mu.Lock()
	s.emitLocked(ev)
	s.mu.Unlock()
}

func (s *Session) emitLocked(ev Event) {
	for ch := range s.subscribers {
		select {
		case ch <- ev:
		default:
			// Slow subscribers shed the oldest event rather than block a transition.
			select {
			case <-ch:
			default:
			}
			ch <- ev
		}
	}
}

// evaluate scores a submission against a question. Multiple choice compares
// option IDs; free text compares trimmed, lowercased strings, exact match
// only. The recorded answer ID is the option ID or the trimmed raw input.
func evaluate(q domain.Question, sub domain.Submission) (answerID string, correct bool) {
	switch v := sub.(type) {
	case domain.OptionChoice:
		return v.OptionID, q.QuestionType == domain.QuestionTypeMultipleChoice && v.OptionID == q.CorrectAnswerID
	case domain.FreeText:
		raw := strings.TrimSpace(v.Raw)
		canonical, ok := q.CorrectAnswer()
		if !ok || q.QuestionType != domain.QuestionTypeText {
			return raw, false
		}
		return raw, domain.NormalizeText(raw) == domain.NormalizeText(canonical.Text)
	}
	return "", false
}

// Percentage computes score/total*100 rounded to one decimal place.
func Percentage(score, total int) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(float64(score)/float64(total)*1000) / 10
}

func averageResponseTime(answers []domain.UserAnswer) float64 {
	if len(answers) == 0 {
		return 0
	}
	var sum float64
	for _, a := range answers {
		sum += a.ResponseTime
	}
	return sum / float64(len(answers))
}
