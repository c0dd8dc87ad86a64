package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liliang-cn/studydesk/internal/domain"
)

func TestRevisionSheet(t *testing.T) {
	env := newTestEnv(t)
	env.saveDocument(t, "doc-1", []string{"stacks are LIFO", "queues are FIFO"}, []string{"structures page"})
	quiz := storedMCQQuiz(t, env, "quiz-1", 2)

	sub := &domain.Submission{
		QuizID:      quiz.ID,
		UserAnswers: []string{"A", "B"},
		Results: []domain.QuestionResult{
			{
				Question:      quiz.Items[0].Question,
				UserAnswer:    "A",
				CorrectAnswer: "A",
				Evaluation:    domain.Evaluation{IsCorrect: true, Classification: domain.ClassCorrect},
				Topic:         "stacks",
			},
			{
				Question:      quiz.Items[1].Question,
				UserAnswer:    "B",
				CorrectAnswer: "A",
				Evaluation: domain.Evaluation{
					IsCorrect:      false,
					Classification: domain.ClassIncorrect,
					Explanation:    "Queues remove from the front.",
				},
				Topic: "queues",
			},
		},
	}
	require.NoError(t, env.svc.Quizzes.SaveSubmission(sub))

	env.llm.on("revision summary", "Queues process elements first in, first out. Review enqueue and dequeue.")

	eval := NewEvalService(env.svc)
	pdf, filename, err := NewRevisionService(env.svc, eval).Sheet(context.Background(), quiz.ID)
	require.NoError(t, err)
	assert.Equal(t, "doc-1_revision.pdf", filename)
	require.NotEmpty(t, pdf)
	assert.Equal(t, "%PDF", string(pdf[:4]))
}

func TestRevisionSheetRequiresSubmission(t *testing.T) {
	env := newTestEnv(t)
	quiz := storedMCQQuiz(t, env, "quiz-1", 1)

	_, _, err := NewRevisionService(env.svc, NewEvalService(env.svc)).Sheet(context.Background(), quiz.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRevisionSheetUnknownQuiz(t *testing.T) {
	env := newTestEnv(t)

	_, _, err := NewRevisionService(env.svc, NewEvalService(env.svc)).Sheet(context.Background(), "ghost")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
