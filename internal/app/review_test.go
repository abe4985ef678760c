package app_test

import (
	"testing"

	"quizmaster-service/internal/app"
	"quizmaster-service/internal/domain"
)

func reviewFixture() ([]domain.Question, []domain.UserAnswer) {
	questions := []domain.Question{
		{
			ID:           "q1",
			Text:         "Capital of France?",
			QuestionType: domain.QuestionTypeMultipleChoice,
			Answers: []domain.Answer{
				{ID: "a1", Text: "Paris"},
				{ID: "a2", Text: "Rome"},
			},
			CorrectAnswerID: "a1",
			Explanation:     "Paris has been the capital since 987.",
		},
		{
			ID:              "q2",
			Text:            "Red Planet?",
			QuestionType:    domain.QuestionTypeText,
			Answers:         []domain.Answer{{ID: "a1", Text: "Mars"}},
			CorrectAnswerID: "a1",
		},
		{
			ID:           "q3",
			Text:         "Largest ocean?",
			QuestionType: domain.QuestionTypeMultipleChoice,
			Answers: []domain.Answer{
				{ID: "a1", Text: "Pacific"},
				{ID: "a2", Text: "Atlantic"},
			},
			CorrectAnswerID: "a1",
		},
	}
	answers := []domain.UserAnswer{
		{QuestionID: "q1", AnswerID: "a2", IsCorrect: false, ResponseTime: 4},
		{QuestionID: "q2", AnswerID: "mars", IsCorrect: true, ResponseTime: 7},
		{QuestionID: "q3", AnswerID: "", IsCorrect: false}, // timed out
	}
	return questions, answers
}

func TestBuildReview(t *testing.T) {
	questions, answers := reviewFixture()
	entries := app.BuildReview(questions, answers)

	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}

	if entries[0].SelectedText != "Rome" || entries[0].CorrectText != "Paris" || entries[0].Correct {
		t.Fatalf("q1 entry: %+v", entries[0])
	}
	if entries[0].Explanation == "" {
		t.Fatalf("q1 should carry its explanation")
	}

	// Free text shows the raw input, not an option lookup.
	if entries[1].SelectedText != "mars" || !entries[1].Correct {
		t.Fatalf("q2 entry: %+v", entries[1])
	}
	if entries[1].CorrectText != "Mars" {
		t.Fatalf("q2 correct text: %q", entries[1].CorrectText)
	}

	if entries[2].Answered || entries[2].SelectedText != "No answer selected" {
		t.Fatalf("q3 timeout entry: %+v", entries[2])
	}
}

func TestBuildReviewIsRecomputable(t *testing.T) {
	questions, answers := reviewFixture()
	first := app.BuildReview(questions, answers)
	second := app.BuildReview(questions, answers)

	if len(first) != len(second) {
		t.Fatalf("projection changed between runs")
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("entry %d differs between runs: %+v vs %+v", i, first[i], second[i])
		}
	}
}
