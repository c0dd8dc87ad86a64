package service

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liliang-cn/studydesk/internal/domain"
)

func mcqResponse(n int) string {
	return fmt.Sprintf(`{"question": "Question number %d about sorting?",
		"options": {"A": "Answer %d-A", "B": "Answer %d-B", "C": "Answer %d-C", "D": "Answer %d-D"},
		"correct": "a"}`, n, n, n, n, n)
}

func TestGenerateMCQQuiz(t *testing.T) {
	env := newTestEnv(t)
	env.saveDocument(t, "doc-1",
		[]string{"merge sort divides", "quick sort partitions", "heap sort sifts", "insertion sort shifts"},
		[]string{"sorting algorithms page"})

	n := 0
	env.llm.onFunc("multiple-choice study question", func(string) (string, error) {
		n++
		return mcqResponse(n), nil
	})

	quiz, err := NewQuizService(env.svc).Generate(context.Background(), "doc-1", domain.QuizKindMCQ, 4, domain.DifficultyMedium)
	require.NoError(t, err)
	assert.Equal(t, "doc-1", quiz.DocumentID)
	assert.Equal(t, domain.QuizKindMCQ, quiz.Kind)
	assert.Equal(t, len(quiz.Items), quiz.Count)
	assert.LessOrEqual(t, len(quiz.Items), 4)
	for _, it := range quiz.Items {
		assert.True(t, it.ValidMCQ(), "every stored item is schema-valid")
		assert.Equal(t, "A", it.Correct, "correct letter is normalized to upper case")
		assert.Empty(t, it.CorrectAnswer)
	}

	// The quiz must be persisted.
	stored, err := env.svc.Quizzes.Get(quiz.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Len(t, stored.Items, len(quiz.Items))
}

func TestGenerateNormalizesKindAndDifficulty(t *testing.T) {
	env := newTestEnv(t)
	env.saveDocument(t, "doc-1",
		[]string{"merge sort divides", "quick sort partitions"},
		[]string{"sorting algorithms page"})

	n := 0
	var prompts []string
	env.llm.onFunc("multiple-choice study question", func(p string) (string, error) {
		n++
		prompts = append(prompts, p)
		return mcqResponse(n), nil
	})

	quiz, err := NewQuizService(env.svc).Generate(context.Background(), "doc-1", "MCQ", 2, "Easy")
	require.NoError(t, err)
	assert.Equal(t, domain.QuizKindMCQ, quiz.Kind, "stored kind is the canonical lowercase form")
	for _, it := range quiz.Items {
		assert.True(t, it.ValidMCQ())
	}
	require.NotEmpty(t, prompts)
	assert.Contains(t, prompts[0], `Difficulty "easy"`, "difficulty reaches the prompt in canonical form")
}

func TestGenerateRejectsUnknownKindAndDifficulty(t *testing.T) {
	env := newTestEnv(t)
	env.saveDocument(t, "doc-1", []string{"some content"}, []string{"page"})

	_, err := NewQuizService(env.svc).Generate(context.Background(), "doc-1", "essay", 2, domain.DifficultyMedium)
	assert.ErrorIs(t, err, domain.ErrBadInput)

	_, err = NewQuizService(env.svc).Generate(context.Background(), "doc-1", domain.QuizKindMCQ, 2, "nightmare")
	assert.ErrorIs(t, err, domain.ErrBadInput)

	// The "Theory" alias maps onto the theoretical generator.
	env.llm.on("short-answer study question",
		`{"question": "What is hashing?", "correct_answer": "Mapping keys to buckets."}`)
	quiz, err := NewQuizService(env.svc).Generate(context.Background(), "doc-1", "Theory", 1, "")
	require.NoError(t, err)
	assert.Equal(t, domain.QuizKindTheoretical, quiz.Kind)
}

func TestGenerateTheoreticalQuiz(t *testing.T) {
	env := newTestEnv(t)
	env.saveDocument(t, "doc-1",
		[]string{"hash tables store buckets", "collisions chain entries"},
		[]string{"hashing page"})

	n := 0
	env.llm.onFunc("short-answer study question", func(string) (string, error) {
		n++
		return fmt.Sprintf(`{"question": "Theory question %d?", "correct_answer": "Reference answer %d."}`, n, n), nil
	})

	quiz, err := NewQuizService(env.svc).Generate(context.Background(), "doc-1", domain.QuizKindTheoretical, 2, domain.DifficultyEasy)
	require.NoError(t, err)
	for _, it := range quiz.Items {
		assert.True(t, it.ValidTheoretical())
		assert.Nil(t, it.Options)
		assert.Empty(t, it.Correct)
	}
}

func TestGenerateSwallowsPerItemFailures(t *testing.T) {
	env := newTestEnv(t)
	env.saveDocument(t, "doc-1",
		[]string{"alpha chunk", "beta chunk", "gamma chunk", "delta chunk"},
		[]string{"page"})

	n := 0
	env.llm.onFunc("multiple-choice study question", func(string) (string, error) {
		n++
		if n%2 == 0 {
			return "sorry, I cannot help with that", nil
		}
		return mcqResponse(n), nil
	})

	quiz, err := NewQuizService(env.svc).Generate(context.Background(), "doc-1", domain.QuizKindMCQ, 4, domain.DifficultyMedium)
	require.NoError(t, err)
	assert.NotEmpty(t, quiz.Items, "valid items survive unparsable siblings")
	assert.Less(t, len(quiz.Items), 4, "failed contexts produce a short quiz, not an error")
}

func TestGenerateAllItemsFail(t *testing.T) {
	env := newTestEnv(t)
	env.saveDocument(t, "doc-1", []string{"only chunk"}, []string{"page"})

	env.llm.on("multiple-choice study question", "no json here at all")

	_, err := NewQuizService(env.svc).Generate(context.Background(), "doc-1", domain.QuizKindMCQ, 3, domain.DifficultyMedium)
	assert.ErrorIs(t, err, domain.ErrGenerationFailed)
}

func TestGenerateDedupesSimilarQuestions(t *testing.T) {
	env := newTestEnv(t)
	env.saveDocument(t, "doc-1",
		[]string{"chunk one", "chunk two", "chunk three", "chunk four"},
		[]string{"page"})

	// Every generated question embeds to the same vector, so after the
	// first acceptance all others are near-duplicates.
	same := []float32{1, 0, 0, 0}
	n := 0
	env.llm.onFunc("multiple-choice study question", func(string) (string, error) {
		n++
		resp := mcqResponse(n)
		env.embedder.overrides[fmt.Sprintf("Question number %d about sorting?", n)] = same
		return resp, nil
	})

	quiz, err := NewQuizService(env.svc).Generate(context.Background(), "doc-1", domain.QuizKindMCQ, 4, domain.DifficultyMedium)
	require.NoError(t, err)
	assert.Len(t, quiz.Items, 1, "cosine-identical questions collapse to one")
}

func TestGenerateEmbedderFailureAcceptsUnchecked(t *testing.T) {
	env := newTestEnv(t)
	env.saveDocument(t, "doc-1", []string{"chunk one", "chunk two"}, []string{"page"})
	env.embedder.fail = true

	n := 0
	env.llm.onFunc("multiple-choice study question", func(string) (string, error) {
		n++
		return mcqResponse(n), nil
	})

	quiz, err := NewQuizService(env.svc).Generate(context.Background(), "doc-1", domain.QuizKindMCQ, 2, domain.DifficultyMedium)
	require.NoError(t, err)
	assert.Len(t, quiz.Items, 2, "dedup degrades open when the embedder is down")
}

func TestGenerateUnknownDocument(t *testing.T) {
	env := newTestEnv(t)

	_, err := NewQuizService(env.svc).Generate(context.Background(), "ghost", domain.QuizKindMCQ, 3, domain.DifficultyMedium)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGenerateRejectsNonPositiveCount(t *testing.T) {
	env := newTestEnv(t)

	_, err := NewQuizService(env.svc).Generate(context.Background(), "doc-1", domain.QuizKindMCQ, 0, domain.DifficultyMedium)
	assert.ErrorIs(t, err, domain.ErrBadInput)
}

func TestEvenContextsDistributesWindows(t *testing.T) {
	chunks := []string{"c1", "c2", "c3", "c4", "c5"}

	contexts := evenContexts(chunks, 2)
	require.Len(t, contexts, 2)
	assert.Equal(t, "c1\n\nc2\n\nc3", contexts[0])
	assert.Equal(t, "c4\n\nc5", contexts[1])
}

func TestEvenContextsClampsToChunkCount(t *testing.T) {
	contexts := evenContexts([]string{"only"}, 5)
	assert.Len(t, contexts, 1)
	assert.Nil(t, evenContexts(nil, 3))
}

func TestEvenContextsFallsBackThroughFilterPasses(t *testing.T) {
	// A window made entirely of boilerplate still yields a context via
	// the raw join pass.
	chunks := []string{"Course Outline\nGrading scheme\nSyllabus"}

	contexts := evenContexts(chunks, 1)
	require.Len(t, contexts, 1)
	assert.Contains(t, contexts[0], "Course Outline")
}

func TestEvenContextsScrubsNoiseLines(t *testing.T) {
	chunks := []string{"Real content about graphs.\nPage 4 of 9"}

	contexts := evenContexts(chunks, 1)
	require.Len(t, contexts, 1)
	assert.Equal(t, "Real content about graphs.", contexts[0])
	assert.NotContains(t, contexts[0], "Page 4")
}

func TestQuizServiceListByDocument(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.svc.Quizzes.Save(&domain.Quiz{
		ID: "q1", DocumentID: "doc-1", Kind: domain.QuizKindMCQ, Count: 0,
		Items: []domain.QuizItem{},
	}))

	quizzes, err := NewQuizService(env.svc).ListByDocument("doc-1")
	require.NoError(t, err)
	assert.Len(t, quizzes, 1)
	assert.True(t, strings.HasPrefix(quizzes[0].ID, "q"))
}
