package domain

import (
	"fmt"
	"strings"
	"time"
)

// Quiz kinds
const (
	QuizKindMCQ         = "mcq"
	QuizKindTheoretical = "theoretical"
)

// Difficulty levels accepted by quiz generation
const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
)

// NormalizeQuizKind maps user input (case-insensitive) to a quiz kind.
func NormalizeQuizKind(s string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case QuizKindMCQ:
		return QuizKindMCQ, nil
	case QuizKindTheoretical, "theory":
		return QuizKindTheoretical, nil
	default:
		return "", fmt.Errorf("%w: unknown quiz type %q", ErrBadInput, s)
	}
}

// NormalizeDifficulty maps user input (case-insensitive) to a difficulty,
// defaulting to medium when empty.
func NormalizeDifficulty(s string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return DifficultyMedium, nil
	case DifficultyEasy:
		return DifficultyEasy, nil
	case DifficultyMedium:
		return DifficultyMedium, nil
	case DifficultyHard:
		return DifficultyHard, nil
	default:
		return "", fmt.Errorf("%w: unknown difficulty %q", ErrBadInput, s)
	}
}

// QuizItem is a single question. MCQ items carry Options and Correct;
// theoretical items carry CorrectAnswer.
type QuizItem struct {
	Question      string            `json:"question"`
	Options       map[string]string `json:"options,omitempty"`
	Correct       string            `json:"correct,omitempty"`
	CorrectAnswer string            `json:"correct_answer,omitempty"`
}

// ValidMCQ reports whether the item satisfies the MCQ shape: exactly the
// four option letters A-D with unique non-empty texts, and a correct letter
// that is one of them.
func (it *QuizItem) ValidMCQ() bool {
	if strings.TrimSpace(it.Question) == "" || len(it.Options) != 4 {
		return false
	}
	seen := make(map[string]bool, 4)
	for _, letter := range []string{"A", "B", "C", "D"} {
		text, ok := it.Options[letter]
		if !ok || strings.TrimSpace(text) == "" {
			return false
		}
		if seen[text] {
			return false
		}
		seen[text] = true
	}
	if _, ok := it.Options[it.Correct]; !ok {
		return false
	}
	lower := strings.ToLower(it.Question + " " + it.Options["A"] + " " + it.Options["B"] + " " + it.Options["C"] + " " + it.Options["D"])
	if strings.Contains(lower, "all of the above") || strings.Contains(lower, "none of the above") {
		return false
	}
	return true
}

// ValidTheoretical reports whether the item has a non-empty question and
// reference answer.
func (it *QuizItem) ValidTheoretical() bool {
	return strings.TrimSpace(it.Question) != "" && strings.TrimSpace(it.CorrectAnswer) != ""
}

// Quiz is an immutable set of generated items over one document.
type Quiz struct {
	ID         string     `json:"quiz_id"`
	DocumentID string     `json:"document_id"`
	Kind       string     `json:"kind"`
	Count      int        `json:"count"`
	Items      []QuizItem `json:"items"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Evaluation classifications
const (
	ClassCorrect    = "correct"
	ClassIncorrect  = "incorrect"
	ClassIrrelevant = "irrelevant"
	ClassError      = "error"
)

// Evaluation is the graded outcome of a single submitted answer.
type Evaluation struct {
	IsCorrect         bool    `json:"is_correct"`
	Classification    string  `json:"classification"`
	SimilarityScore   float64 `json:"similarity_score"`
	Feedback          string  `json:"feedback"`
	Explanation       string  `json:"explanation,omitempty"`
	CorrectAnswerText string  `json:"correct_answer_text,omitempty"`
}

// QuestionResult pairs a question with the submitted answer and its grade.
type QuestionResult struct {
	Question      string     `json:"question"`
	UserAnswer    string     `json:"user_answer"`
	CorrectAnswer string     `json:"correct_answer"`
	Evaluation    Evaluation `json:"evaluation"`
	Topic         string     `json:"topic,omitempty"`
}

// Analysis summarizes a completed submission.
type Analysis struct {
	OverallSummary string   `json:"overall_summary"`
	WeakAreas      []string `json:"weak_areas"`
	StrongAreas    []string `json:"strong_areas"`
}

// Submission is one persisted quiz attempt with its derived analysis.
type Submission struct {
	ID          int64            `json:"submission_id"`
	QuizID      string           `json:"quiz_id"`
	UserAnswers []string         `json:"user_answers"`
	Results     []QuestionResult `json:"results"`
	Analysis    *Analysis        `json:"analysis,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
}
