package app

import "quizmaster-service/internal/domain"

// ReviewEntry is the per-question verdict shown after completion.
type ReviewEntry struct {
	QuestionID   string  `json:"questionId"`
	QuestionText string  `json:"questionText"`
	SelectedText string  `json:"selectedText"`
	CorrectText  string  `json:"correctText"`
	Correct      bool    `json:"correct"`
	Answered     bool    `json:"answered"`
	ResponseTime float64 `json:"responseTime"`
	Explanation  string  `json:"explanation,omitempty"`
}

// BuildReview replays recorded answers against the original questions. It is
// a pure projection with no side effects, safe to recompute any number of
// times.
func BuildReview(questions []domain.Question, answers []domain.UserAnswer) []ReviewEntry {
	byQuestion := make(map[string]domain.UserAnswer, len(answers))
	for _, a := range answers {
		byQuestion[a.QuestionID] = a
	}

	entries := make([]ReviewEntry, 0, len(questions))
	for _, q := range questions {
		entry := ReviewEntry{
			QuestionID:   q.ID,
			QuestionText: q.Text,
			Explanation:  q.Explanation,
			CorrectText:  correctAnswerText(q),
		}
		if ua, ok := byQuestion[q.ID]; ok {
			entry.Correct = ua.IsCorrect
			entry.Answered = ua.AnswerID != ""
			entry.ResponseTime = ua.ResponseTime
			entry.SelectedText = selectedAnswerText(q, ua)
		} else {
			entry.SelectedText = selectedAnswerText(q, domain.UserAnswer{})
		}
		entries = append(entries, entry)
	}
	return entries
}

// selectedAnswerText resolves what the user picked into display text: option
// lookup for multiple choice, the raw input for free text.
func selectedAnswerText(q domain.Question, ua domain.UserAnswer) string {
	if q.QuestionType == domain.QuestionTypeMultipleChoice {
		if opt, ok := q.Option(ua.AnswerID); ok {
			return opt.Text
		}
		return "No answer selected"
	}
	if ua.AnswerID != "" {
		return ua.AnswerID
	}
	return "No answer provided"
}

func correctAnswerText(q domain.Question) string {
	if canonical, ok := q.CorrectAnswer(); ok {
		return canonical.Text
	}
	return "No correct answer found"
}
