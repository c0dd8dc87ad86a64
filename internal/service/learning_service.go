package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/liliang-cn/studydesk/internal/domain"
	"github.com/liliang-cn/studydesk/internal/repository"
)

// headSliceChars bounds the fallback context taken from the start of the
// page text when retrieval comes back empty.
const headSliceChars = 1500

// LearningService runs the stateful tutor loop. All operations are
// functions of (persisted session, input); no state lives outside the
// Store. Two concurrent responses for one session are not supported.
type LearningService struct {
	svc  *Services
	eval *EvalService
}

// NewLearningService creates a new learning service
func NewLearningService(svc *Services, eval *EvalService) *LearningService {
	return &LearningService{svc: svc, eval: eval}
}

// StartResult is returned when a session begins.
type StartResult struct {
	SessionID       string `json:"session_id"`
	InitialMessage  string `json:"initial_message"`
	InitialQuestion string `json:"initial_question"`
}

// Start opens a session on a topic. Only the first document of the set
// is used for retrieval so nothing gets re-embedded. The initial system
// message carries both the explanation and the first question.
func (s *LearningService) Start(ctx context.Context, documentIDs []string, topic string) (*StartResult, error) {
	if len(documentIDs) == 0 {
		return nil, fmt.Errorf("%w: document_ids must not be empty", domain.ErrBadInput)
	}
	if strings.TrimSpace(topic) == "" {
		return nil, fmt.Errorf("%w: topic must not be empty", domain.ErrBadInput)
	}

	rec, err := s.svc.Documents.Load(documentIDs[0])
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("%w: document %s", domain.ErrNotFound, documentIDs[0])
	}

	contextText, err := s.svc.retrieveContext(ctx, rec,
		fmt.Sprintf("Explanation of the topic %s with key definitions and examples", topic),
		s.svc.Cfg.Study.RetrievalTopK)
	if err != nil {
		s.svc.Logger.Warn("learning retrieval failed, using head slice", zap.Error(err))
	}
	if strings.TrimSpace(contextText) == "" {
		contextText = headSlice(rec.Doc.Pages, headSliceChars)
	}

	initial, err := s.svc.LLM.GenerateText(ctx, learningInitialPrompt(topic, contextText))
	if err != nil {
		return nil, err
	}
	initial = strings.TrimSpace(initial)

	question := trailingQuestion(initial)
	if question == "" {
		q, err := s.svc.LLM.GenerateText(ctx, learningNextQuestionPrompt(topic, contextText, ""))
		if err != nil {
			return nil, err
		}
		question = ensureQuestionMark(strings.TrimSpace(q))
		initial = initial + "\n\n" + question
	}

	session := &domain.ChatSession{
		ID:         uuid.New().String(),
		DocumentID: documentIDs[0],
		Kind:       domain.SessionKindLearning,
		Messages: []domain.ChatMessage{{
			Role:    domain.RoleSystem,
			Content: initial,
			Meta:    map[string]any{"document_ids": documentIDs, "topic": topic},
		}},
	}
	if err := s.svc.Sessions.Save(session); err != nil {
		return nil, err
	}

	return &StartResult{
		SessionID:       session.ID,
		InitialMessage:  initial,
		InitialQuestion: question,
	}, nil
}

// RespondResult is returned for every tutor turn.
type RespondResult struct {
	Evaluation  domain.Evaluation `json:"evaluation"`
	NextMessage string            `json:"next_message"`
}

// Respond grades the user's answer to the pending question, composes
// the reply, and always appends a freshly generated next question. The
// transcript alternates user/system after every turn.
func (s *LearningService) Respond(ctx context.Context, sessionID, userAnswer string, documentIDs []string, topic string) (*RespondResult, error) {
	session, err := s.svc.Sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, fmt.Errorf("%w: session %s", domain.ErrNotFound, sessionID)
	}

	sessionTopic, sessionDocs := sessionMeta(session)
	if topic == "" {
		topic = sessionTopic
	}
	if len(documentIDs) == 0 {
		documentIDs = sessionDocs
	}
	if len(documentIDs) == 0 && session.DocumentID != "" {
		documentIDs = []string{session.DocumentID}
	}

	question := s.pendingQuestion(session)
	if question == "" {
		return nil, fmt.Errorf("%w: session has no question to grade", domain.ErrBadInput)
	}

	var rec *repository.DocumentRecord
	if len(documentIDs) > 0 {
		rec, _ = s.svc.Documents.Load(documentIDs[0])
	}

	contextText := s.rebuildContext(ctx, session, documentIDs, topic)

	correctAnswer, err := s.svc.LLM.GenerateText(ctx, learningCorrectAnswerPrompt(question, contextText))
	if err != nil {
		return nil, err
	}
	correctAnswer = strings.TrimSpace(correctAnswer)

	eval := s.eval.GradeTheoretical(ctx, question, correctAnswer, userAnswer)
	eval.CorrectAnswerText = correctAnswer

	var reply strings.Builder
	switch eval.Classification {
	case domain.ClassCorrect:
		reply.WriteString("Correct! " + eval.Feedback)
	case domain.ClassIncorrect:
		explanation := s.eval.Explain(ctx, rec, question, correctAnswer)
		eval.Explanation = explanation
		fmt.Fprintf(&reply, "That's not quite right. %s\n\nThe correct answer is: %q\n\nExplanation: %s",
			eval.Feedback, correctAnswer, explanation)
	default:
		fmt.Fprintf(&reply, "Your answer seems off-topic. The question was: %q\n\nThe correct answer is: %q",
			question, correctAnswer)
	}

	nextQ, err := s.svc.LLM.GenerateText(ctx, learningNextQuestionPrompt(topic, contextText, question))
	if err != nil {
		return nil, err
	}
	nextQ = ensureQuestionMark(strings.TrimSpace(nextQ))
	reply.WriteString("\n\n" + nextQ)

	session.Messages = append(session.Messages,
		domain.ChatMessage{Role: domain.RoleUser, Content: userAnswer},
		domain.ChatMessage{Role: domain.RoleSystem, Content: reply.String()},
	)
	if err := s.svc.Sessions.Save(session); err != nil {
		return nil, err
	}

	return &RespondResult{Evaluation: eval, NextMessage: reply.String()}, nil
}

// pendingQuestion is the question of the last system message ending in
// a question mark.
func (s *LearningService) pendingQuestion(session *domain.ChatSession) string {
	for i := len(session.Messages) - 1; i >= 0; i-- {
		m := session.Messages[i]
		if m.Role != domain.RoleSystem {
			continue
		}
		if strings.HasSuffix(strings.TrimSpace(m.Content), "?") {
			return trailingQuestion(m.Content)
		}
	}
	return ""
}

// rebuildContext prefers the explanatory content already in the
// transcript, re-retrieves from the document when that is empty, and
// falls back to a head slice of the page text.
func (s *LearningService) rebuildContext(ctx context.Context, session *domain.ChatSession, documentIDs []string, topic string) string {
	var parts []string
	for _, m := range session.Messages {
		if m.Role != domain.RoleSystem {
			continue
		}
		if body := stripTrailingQuestion(m.Content); strings.TrimSpace(body) != "" {
			parts = append(parts, body)
		}
	}
	if len(parts) > 0 {
		return strings.Join(parts, "\n\n")
	}

	var rec *repository.DocumentRecord
	if len(documentIDs) > 0 {
		rec, _ = s.svc.Documents.Load(documentIDs[0])
	}
	if rec != nil {
		query := topic
		if query == "" {
			query = importanceQuery
		}
		if c, err := s.svc.retrieveContext(ctx, rec, query, s.svc.Cfg.Study.RetrievalTopK); err == nil && strings.TrimSpace(c) != "" {
			return c
		}
		return headSlice(rec.Doc.Pages, headSliceChars)
	}
	return ""
}

func sessionMeta(session *domain.ChatSession) (topic string, documentIDs []string) {
	if len(session.Messages) == 0 {
		return "", nil
	}
	meta := session.Messages[0].Meta
	if meta == nil {
		return "", nil
	}
	if t, ok := meta["topic"].(string); ok {
		topic = t
	}
	switch ids := meta["document_ids"].(type) {
	case []string:
		documentIDs = ids
	case []any:
		for _, v := range ids {
			if s, ok := v.(string); ok {
				documentIDs = append(documentIDs, s)
			}
		}
	}
	return topic, documentIDs
}

// trailingQuestion returns the final question-mark-terminated sentence
// of the text.
func trailingQuestion(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasSuffix(trimmed, "?") {
		return ""
	}
	start := strings.LastIndexAny(trimmed[:len(trimmed)-1], ".!?\n") + 1
	return strings.TrimSpace(trimmed[start:])
}

// stripTrailingQuestion removes the final question sentence, leaving the
// explanatory body.
func stripTrailingQuestion(text string) string {
	q := trailingQuestion(text)
	if q == "" {
		return text
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(text), q))
}

func ensureQuestionMark(q string) string {
	if q == "" || strings.HasSuffix(q, "?") {
		return q
	}
	return q + "?"
}
