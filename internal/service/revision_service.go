package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/liliang-cn/studydesk/internal/domain"
	"github.com/liliang-cn/studydesk/internal/pdfgen"
	"github.com/liliang-cn/studydesk/internal/repository"
)

// RevisionService renders a revision sheet for a quiz's latest
// submission: weak-area topic summaries grounded in retrieved context,
// followed by a recap of every incorrectly answered question.
type RevisionService struct {
	svc  *Services
	eval *EvalService
}

// NewRevisionService creates a new revision service
func NewRevisionService(svc *Services, eval *EvalService) *RevisionService {
	return &RevisionService{svc: svc, eval: eval}
}

// Sheet builds the revision PDF for the quiz. The returned filename is
// derived from the document title.
func (s *RevisionService) Sheet(ctx context.Context, quizID string) (pdf []byte, filename string, err error) {
	quiz, err := s.svc.Quizzes.Get(quizID)
	if err != nil {
		return nil, "", err
	}
	if quiz == nil {
		return nil, "", fmt.Errorf("%w: quiz %s", domain.ErrNotFound, quizID)
	}

	sub, err := s.svc.Quizzes.LatestSubmission(quizID)
	if err != nil {
		return nil, "", err
	}
	if sub == nil {
		return nil, "", fmt.Errorf("%w: no submission for quiz %s", domain.ErrNotFound, quizID)
	}

	rec, err := s.svc.Documents.Load(quiz.DocumentID)
	if err != nil {
		return nil, "", err
	}

	// The stored analysis may predate topic edits; recompute from the
	// persisted results.
	analysis := s.eval.analyze(sub.Results)

	title := "Revision Sheet"
	docTitle := "document"
	if rec != nil {
		docTitle = strings.TrimSuffix(rec.Doc.Filename, "."+rec.Doc.FileType())
		title = "Revision Sheet: " + docTitle
	}

	r := pdfgen.NewRenderer(title)
	r.Heading(2, "Performance")
	r.Body(analysis.OverallSummary)

	if len(analysis.WeakAreas) > 0 {
		r.Heading(2, "Topics to revisit")
		for _, topic := range analysis.WeakAreas {
			r.Heading(3, topic)
			r.Markdown(s.topicSummary(ctx, rec, topic))
		}
	}

	incorrect := false
	for _, res := range sub.Results {
		if res.Evaluation.IsCorrect {
			continue
		}
		if !incorrect {
			r.Heading(2, "Questions you missed")
			incorrect = true
		}
		r.Body("**Question:** " + res.Question)
		r.Body("**Your answer:** " + res.UserAnswer)
		r.Body("**Correct answer:** " + res.CorrectAnswer)
		if res.Evaluation.Explanation != "" {
			r.Body("**Explanation:** " + res.Evaluation.Explanation)
		}
	}

	out, err := r.Output()
	if err != nil {
		return nil, "", fmt.Errorf("render revision sheet: %w", err)
	}
	return out, fmt.Sprintf("%s_revision.pdf", strings.ReplaceAll(docTitle, " ", "_")), nil
}

// topicSummary produces a grounded summary for a weak-area topic,
// degrading to a short placeholder when generation fails.
func (s *RevisionService) topicSummary(ctx context.Context, rec *repository.DocumentRecord, topic string) string {
	var contextText string
	if rec != nil {
		if c, err := s.svc.retrieveContext(ctx, rec, topic, s.svc.Cfg.Study.RetrievalTopK); err == nil {
			contextText = c
		}
	}
	if strings.TrimSpace(contextText) == "" && rec != nil {
		contextText = headSlice(rec.Doc.Pages, 1500)
	}

	out, err := s.svc.LLM.GenerateText(ctx, topicSummaryPrompt(topic, contextText))
	if err != nil {
		s.svc.Logger.Warn("topic summary failed", zap.String("topic", topic), zap.Error(err))
		return "Review this topic in the source material."
	}
	return strings.TrimSpace(out)
}
