package service

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/liliang-cn/studydesk/internal/domain"
	"github.com/liliang-cn/studydesk/internal/llm"
	"github.com/liliang-cn/studydesk/internal/repository"
)

// EvalService grades submitted answers. Per-quiz buffers collect partial
// results until the final answer arrives, at which point the analysis is
// computed and a Submission row is persisted.
type EvalService struct {
	svc *Services

	mu      sync.Mutex
	buffers map[string]*answerBuffer
}

type answerBuffer struct {
	answers []string
	results []domain.QuestionResult
}

// NewEvalService creates a new evaluation service
func NewEvalService(svc *Services) *EvalService {
	return &EvalService{svc: svc, buffers: make(map[string]*answerBuffer)}
}

// EvaluateAnswer grades one answer of an in-progress quiz attempt.
// Answering question 0 starts a fresh buffer; the analysis is returned
// only with the final answer, alongside persisting the submission.
func (s *EvalService) EvaluateAnswer(ctx context.Context, documentID string, questionIndex int, userAnswer, quizID string) (*domain.Evaluation, *domain.Analysis, error) {
	quiz, err := s.svc.Quizzes.Get(quizID)
	if err != nil {
		return nil, nil, err
	}
	if quiz == nil {
		return nil, nil, fmt.Errorf("%w: quiz %s", domain.ErrNotFound, quizID)
	}
	if questionIndex < 0 || questionIndex >= len(quiz.Items) {
		return nil, nil, fmt.Errorf("%w: question_index %d out of range", domain.ErrBadInput, questionIndex)
	}
	if documentID == "" {
		documentID = quiz.DocumentID
	}

	rec, err := s.svc.Documents.Load(documentID)
	if err != nil {
		return nil, nil, err
	}

	result := s.gradeItem(ctx, quiz, rec, questionIndex, userAnswer)

	s.mu.Lock()
	buf := s.buffers[quizID]
	if buf == nil || questionIndex == 0 {
		buf = &answerBuffer{}
		s.buffers[quizID] = buf
	}
	buf.answers = append(buf.answers, userAnswer)
	buf.results = append(buf.results, result)
	complete := len(buf.results) >= quiz.Count
	var answers []string
	var results []domain.QuestionResult
	if complete {
		answers = buf.answers
		results = buf.results
		delete(s.buffers, quizID)
	}
	s.mu.Unlock()

	if !complete {
		return &result.Evaluation, nil, nil
	}

	analysis := s.analyze(results)
	sub := &domain.Submission{
		QuizID:      quizID,
		UserAnswers: answers,
		Results:     results,
		Analysis:    analysis,
	}
	if err := s.svc.Quizzes.SaveSubmission(sub); err != nil {
		return nil, nil, err
	}
	s.svc.Logger.Info("quiz attempt completed",
		zap.String("quiz_id", quizID),
		zap.String("summary", analysis.OverallSummary))
	return &result.Evaluation, analysis, nil
}

// EvaluateAll grades a full answer sheet in one call and persists the
// submission.
func (s *EvalService) EvaluateAll(ctx context.Context, quizID string, answers []string) ([]domain.QuestionResult, *domain.Analysis, error) {
	quiz, err := s.svc.Quizzes.Get(quizID)
	if err != nil {
		return nil, nil, err
	}
	if quiz == nil {
		return nil, nil, fmt.Errorf("%w: quiz %s", domain.ErrNotFound, quizID)
	}
	if len(answers) != len(quiz.Items) {
		return nil, nil, fmt.Errorf("%w: %d answers for %d questions", domain.ErrBadInput, len(answers), len(quiz.Items))
	}

	rec, err := s.svc.Documents.Load(quiz.DocumentID)
	if err != nil {
		return nil, nil, err
	}

	results := make([]domain.QuestionResult, len(answers))
	for i, a := range answers {
		results[i] = s.gradeItem(ctx, quiz, rec, i, a)
	}

	analysis := s.analyze(results)
	sub := &domain.Submission{
		QuizID:      quizID,
		UserAnswers: answers,
		Results:     results,
		Analysis:    analysis,
	}
	if err := s.svc.Quizzes.SaveSubmission(sub); err != nil {
		return nil, nil, err
	}
	return results, analysis, nil
}

// gradeItem grades one question and tags it with its topic.
func (s *EvalService) gradeItem(ctx context.Context, quiz *domain.Quiz, rec *repository.DocumentRecord, idx int, userAnswer string) domain.QuestionResult {
	item := quiz.Items[idx]

	var eval domain.Evaluation
	var correctAnswer string
	if quiz.Kind == domain.QuizKindMCQ {
		eval = s.gradeMCQ(ctx, item, rec, userAnswer)
		correctAnswer = item.Correct
	} else {
		eval = s.GradeTheoretical(ctx, item.Question, item.CorrectAnswer, userAnswer)
		correctAnswer = item.CorrectAnswer
	}

	return domain.QuestionResult{
		Question:      item.Question,
		UserAnswer:    userAnswer,
		CorrectAnswer: correctAnswer,
		Evaluation:    eval,
		Topic:         s.extractTopic(ctx, item.Question),
	}
}

// gradeMCQ compares the submitted letter to the stored one. A wrong
// answer gets an explanation grounded in retrieved context, falling back
// to general knowledge when the document offers nothing relevant.
func (s *EvalService) gradeMCQ(ctx context.Context, item domain.QuizItem, rec *repository.DocumentRecord, userAnswer string) domain.Evaluation {
	letter := strings.ToUpper(strings.TrimSpace(userAnswer))
	correctText := item.Options[item.Correct]

	if letter == item.Correct {
		return domain.Evaluation{
			IsCorrect:         true,
			Classification:    domain.ClassCorrect,
			SimilarityScore:   1.0,
			Feedback:          "Correct!",
			CorrectAnswerText: correctText,
		}
	}

	return domain.Evaluation{
		IsCorrect:         false,
		Classification:    domain.ClassIncorrect,
		SimilarityScore:   0.0,
		Feedback:          fmt.Sprintf("The correct answer is %s: %s", item.Correct, correctText),
		Explanation:       s.Explain(ctx, rec, item.Question, correctText),
		CorrectAnswerText: correctText,
	}
}

// GradeTheoretical classifies a free-text answer against the reference
// answer. An LLM failure degrades to a neutral error outcome instead of
// propagating.
func (s *EvalService) GradeTheoretical(ctx context.Context, question, correctAnswer, userAnswer string) domain.Evaluation {
	var graded struct {
		Classification  string  `json:"classification"`
		SimilarityScore float64 `json:"similarity_score"`
		Feedback        string  `json:"feedback"`
	}

	out, err := llm.Complete(ctx, s.svc.LLM, gradeAnswerPrompt(question, correctAnswer, userAnswer), true)
	if err == nil {
		if out.Kind == llm.OutputRaw {
			err = fmt.Errorf("%w: grader returned no JSON", domain.ErrParseFailed)
		} else {
			err = out.Decode(&graded)
		}
	}
	if err != nil {
		s.svc.Logger.Warn("answer grading failed", zap.Error(err))
		return domain.Evaluation{
			IsCorrect:         false,
			Classification:    domain.ClassError,
			SimilarityScore:   0.0,
			Feedback:          "evaluation error",
			CorrectAnswerText: correctAnswer,
		}
	}

	classification := strings.ToLower(strings.TrimSpace(graded.Classification))
	switch classification {
	case domain.ClassCorrect, domain.ClassIncorrect, domain.ClassIrrelevant:
	default:
		classification = domain.ClassError
	}
	score := graded.SimilarityScore
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}

	return domain.Evaluation{
		IsCorrect:         classification == domain.ClassCorrect,
		Classification:    classification,
		SimilarityScore:   score,
		Feedback:          graded.Feedback,
		CorrectAnswerText: correctAnswer,
	}
}

// Explain produces an explanation for the correct answer, grounded in
// the top-k retrieved chunks for the question when they carry substance.
func (s *EvalService) Explain(ctx context.Context, rec *repository.DocumentRecord, question, correctAnswer string) string {
	var contextText string
	if rec != nil {
		if c, err := s.svc.retrieveContext(ctx, rec, question, s.svc.Cfg.Study.RetrievalTopK); err == nil {
			contextText = c
		}
	}
	if len(strings.TrimSpace(contextText)) < 40 {
		// Not enough material to ground the explanation.
		contextText = ""
	}

	out, err := s.svc.LLM.GenerateText(ctx, explanationPrompt(question, correctAnswer, contextText))
	if err != nil {
		s.svc.Logger.Warn("explanation generation failed", zap.Error(err))
		return fmt.Sprintf("The correct answer is %q.", correctAnswer)
	}
	return strings.TrimSpace(out)
}

// extractTopic asks for a single concise topic tag for the question.
func (s *EvalService) extractTopic(ctx context.Context, question string) string {
	out, err := s.svc.LLM.GenerateText(ctx, topicPrompt(question))
	if err != nil {
		return "general"
	}
	topic := strings.Trim(strings.TrimSpace(out), `"'.`)
	if topic == "" {
		return "general"
	}
	return topic
}

// analyze derives the submission summary: overall score plus distinct
// weak and strong topic lists.
func (s *EvalService) analyze(results []domain.QuestionResult) *domain.Analysis {
	correct := 0
	weakSeen := map[string]bool{}
	strongSeen := map[string]bool{}
	weak := []string{}
	strong := []string{}

	for _, r := range results {
		topic := r.Topic
		if topic == "" {
			topic = "general"
		}
		if r.Evaluation.IsCorrect {
			correct++
			if !strongSeen[topic] {
				strongSeen[topic] = true
				strong = append(strong, topic)
			}
		} else if !weakSeen[topic] {
			weakSeen[topic] = true
			weak = append(weak, topic)
		}
	}

	return &domain.Analysis{
		OverallSummary: fmt.Sprintf("%d/%d correct", correct, len(results)),
		WeakAreas:      weak,
		StrongAreas:    strong,
	}
}
