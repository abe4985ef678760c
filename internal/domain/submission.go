package domain

import "strings"

// Submission is the typed payload of a player's answer. Using a closed set of
// types keeps correctness evaluation an exhaustive switch instead of an ad hoc
// shape check on a shared option struct.
type Submission interface {
	isSubmission()
}

// OptionChoice selects one catalog option of a multiple-choice question.
type OptionChoice struct {
	OptionID string
}

// FreeText carries the raw typed input for a text question.
type FreeText struct {
	Raw string
}

func (OptionChoice) isSubmission() {}
func (FreeText) isSubmission()     {}

// NormalizeText prepares free-text input for comparison: surrounding
// whitespace is trimmed and the result lowercased. Idempotent.
func NormalizeText(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
