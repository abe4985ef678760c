package domain

import "time"

// QuestionType distinguishes how an answer is evaluated.
type QuestionType string

const (
	// QuestionTypeMultipleChoice evaluates by option ID.
	QuestionTypeMultipleChoice QuestionType = "multiple-choice"
	// QuestionTypeText evaluates by normalized text comparison.
	QuestionTypeText QuestionType = "text"
)

// Answer is one selectable option of a question. For text questions the
// catalog conventionally holds a single canonical answer.
type Answer struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Question models a single quiz question. For multiple choice,
// CorrectAnswerID must reference exactly one entry of Answers.
type Question struct {
	ID              string       `json:"id"`
	Text            string       `json:"text"`
	QuestionType    QuestionType `json:"questionType"`
	Answers         []Answer     `json:"answers"`
	CorrectAnswerID string       `json:"correctAnswerId"`
	Explanation     string       `json:"explanation,omitempty"`
	Image           string       `json:"image,omitempty"`
	Context         string       `json:"context,omitempty"`
}

// CorrectAnswer returns the catalog entry referenced by CorrectAnswerID.
func (q Question) CorrectAnswer() (Answer, bool) {
	for _, a := range q.Answers {
		if a.ID == q.CorrectAnswerID {
			return a, true
		}
	}
	return Answer{}, false
}

// Option returns the answer option with the given ID.
func (q Question) Option(id string) (Answer, bool) {
	for _, a := range q.Answers {
		if a.ID == id {
			return a, true
		}
	}
	return Answer{}, false
}

// Quiz is an ordered collection of questions, fixed for the lifetime of a
// play session. DurationSeconds optionally overrides the whole-session countdown.
type Quiz struct {
	ID              string     `json:"id"`
	Title           string     `json:"quizTitle"`
	Questions       []Question `json:"questions"`
	DurationSeconds int        `json:"durationSeconds,omitempty"`
	Active          bool       `json:"-"`
}

// UserAnswer records one answered (or timed-out) question. An empty AnswerID
// denotes "no answer". Never mutated after creation.
type UserAnswer struct {
	QuestionID   string  `json:"questionId"`
	AnswerID     string  `json:"answerId"`
	IsCorrect    bool    `json:"isCorrect"`
	ResponseTime float64 `json:"responseTime,omitempty"`
}

// QuizResult is the persisted outcome of one (user, quiz) play. Field names
// are a contract with leaderboard/history consumers and must not change.
type QuizResult struct {
	ID                  string       `json:"id,omitempty"`
	UserID              string       `json:"userId"`
	UserDisplayName     string       `json:"userDisplayName"`
	QuizTitle           string       `json:"quizTitle"`
	Score               int          `json:"score"`
	TotalQuestions      int          `json:"totalQuestions"`
	Percentage          float64      `json:"percentage"`
	Timestamp           time.Time    `json:"timestamp"`
	UserAnswers         []UserAnswer `json:"userAnswers"`
	AverageResponseTime float64      `json:"averageResponseTime,omitempty"`
}
