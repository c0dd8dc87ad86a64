package service

import (
	"context"
	"fmt"
	"math/rand"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/liliang-cn/studydesk/internal/domain"
	"github.com/liliang-cn/studydesk/internal/embedding"
	"github.com/liliang-cn/studydesk/internal/extract"
	"github.com/liliang-cn/studydesk/internal/llm"
	"github.com/liliang-cn/studydesk/internal/repository"
)

// importanceQuery drives retrieval of generally important material when
// no user topic is in play.
const importanceQuery = "key concepts, definitions and important ideas of this material"

// QuizService generates quizzes over an ingested document.
type QuizService struct {
	svc *Services
}

// NewQuizService creates a new quiz service
func NewQuizService(svc *Services) *QuizService {
	return &QuizService{svc: svc}
}

// Generate builds a quiz of up to count items. Half the candidate
// contexts come from retrieval for a generic-importance query, half from
// evenly distributed windows over the chunk sequence. Per-context
// generation failures are swallowed; the quiz may come back short.
func (s *QuizService) Generate(ctx context.Context, documentID, kind string, count int, difficulty string) (*domain.Quiz, error) {
	kind, err := domain.NormalizeQuizKind(kind)
	if err != nil {
		return nil, err
	}
	difficulty, err = domain.NormalizeDifficulty(difficulty)
	if err != nil {
		return nil, err
	}
	if count <= 0 {
		return nil, fmt.Errorf("%w: num_questions must be positive", domain.ErrBadInput)
	}

	rec, err := s.svc.Documents.Load(documentID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("%w: document %s", domain.ErrNotFound, documentID)
	}

	contexts := s.buildContexts(ctx, rec, count)

	var items []domain.QuizItem
	var accepted [][]float32
	for _, contextText := range contexts {
		item, ok := s.generateItem(ctx, kind, contextText, difficulty)
		if !ok {
			continue
		}
		dup, vec := s.isDuplicate(ctx, item.Question, accepted)
		if dup {
			continue
		}
		if vec != nil {
			accepted = append(accepted, vec)
		}
		items = append(items, item)
	}

	rand.Shuffle(len(items), func(i, j int) { items[i], items[j] = items[j], items[i] })
	if len(items) > count {
		items = items[:count]
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: could not generate any quiz items", domain.ErrGenerationFailed)
	}

	quiz := &domain.Quiz{
		ID:         uuid.New().String(),
		DocumentID: documentID,
		Kind:       kind,
		Count:      len(items),
		Items:      items,
	}
	if err := s.svc.Quizzes.Save(quiz); err != nil {
		return nil, err
	}

	s.svc.Logger.Info("quiz generated",
		zap.String("quiz_id", quiz.ID),
		zap.String("document_id", documentID),
		zap.String("kind", kind),
		zap.Int("requested", count),
		zap.Int("items", len(items)))
	return quiz, nil
}

// buildContexts assembles the hybrid context set: retrieved chunks for
// the first half, evenly distributed windows for the rest.
func (s *QuizService) buildContexts(ctx context.Context, rec *repository.DocumentRecord, count int) []string {
	retrievedN := count / 2
	evenN := count - retrievedN

	var contexts []string
	if retrievedN > 0 {
		chunks, err := s.svc.retrieveChunks(ctx, rec, importanceQuery, retrievedN)
		if err != nil {
			s.svc.Logger.Warn("retrieval for quiz contexts failed, using distributed contexts only", zap.Error(err))
			evenN = count
		} else {
			contexts = append(contexts, chunks...)
			evenN = count - len(chunks)
		}
	}
	contexts = append(contexts, evenContexts(rec.Doc.Chunks, evenN)...)
	return contexts
}

// evenContexts slices the chunk sequence into n roughly equal windows
// and joins each window into one context. The first pass drops
// boilerplate-heavy chunks, a lenient pass only scrubs noise lines, and
// a raw pass guarantees n contexts whenever chunks exist.
func evenContexts(chunks []string, n int) []string {
	if n <= 0 || len(chunks) == 0 {
		return nil
	}
	if n > len(chunks) {
		n = len(chunks)
	}

	windows := make([][]string, 0, n)
	size := len(chunks) / n
	rem := len(chunks) % n
	start := 0
	for i := 0; i < n; i++ {
		end := start + size
		if i < rem {
			end++
		}
		windows = append(windows, chunks[start:end])
		start = end
	}

	contexts := make([]string, 0, n)
	for _, w := range windows {
		if c := joinFiltered(w, true); c != "" {
			contexts = append(contexts, c)
			continue
		}
		if c := joinFiltered(w, false); c != "" {
			contexts = append(contexts, c)
			continue
		}
		contexts = append(contexts, strings.Join(w, "\n\n"))
	}
	return contexts
}

func joinFiltered(window []string, aggressive bool) string {
	var kept []string
	for _, c := range window {
		if aggressive && extract.IsBoilerplate(c) {
			continue
		}
		cleaned := extract.ScrubLines(c)
		if strings.TrimSpace(cleaned) == "" {
			continue
		}
		kept = append(kept, cleaned)
	}
	return strings.TrimSpace(strings.Join(kept, "\n\n"))
}

// generateItem prompts for one item over the context and validates its
// schema. Failures are logged and swallowed.
func (s *QuizService) generateItem(ctx context.Context, kind, contextText, difficulty string) (domain.QuizItem, bool) {
	var prompt string
	if kind == domain.QuizKindMCQ {
		prompt = mcqPrompt(contextText, difficulty)
	} else {
		prompt = theoreticalPrompt(contextText, difficulty)
	}

	out, err := llm.Complete(ctx, s.svc.LLM, prompt, true)
	if err != nil {
		s.svc.Logger.Warn("quiz item generation failed", zap.Error(err))
		return domain.QuizItem{}, false
	}
	if out.Kind == llm.OutputRaw {
		s.svc.Logger.Warn("quiz item output unparsable", zap.Int("raw_len", len(out.Raw)))
		return domain.QuizItem{}, false
	}

	var item domain.QuizItem
	if err := out.Decode(&item); err != nil {
		s.svc.Logger.Warn("quiz item output unparsable", zap.Error(err))
		return domain.QuizItem{}, false
	}
	item.Correct = strings.ToUpper(strings.TrimSpace(item.Correct))

	if kind == domain.QuizKindMCQ {
		if !item.ValidMCQ() {
			s.svc.Logger.Warn("quiz item rejected: invalid MCQ shape")
			return domain.QuizItem{}, false
		}
		item.CorrectAnswer = ""
	} else {
		if !item.ValidTheoretical() {
			s.svc.Logger.Warn("quiz item rejected: empty question or answer")
			return domain.QuizItem{}, false
		}
		item.Options = nil
		item.Correct = ""
	}
	return item, true
}

// isDuplicate embeds the candidate question and rejects it when its
// cosine similarity to any accepted question exceeds the threshold.
// The accepted embedding is returned for the caller to record.
func (s *QuizService) isDuplicate(ctx context.Context, question string, accepted [][]float32) (bool, []float32) {
	vecs, err := s.svc.Embedder.Embed(ctx, []string{question}, embedding.ModeDocument)
	if err != nil || len(vecs) == 0 {
		// Embedding trouble should not kill generation; accept unchecked.
		s.svc.Logger.Warn("dedup embedding failed, accepting item unchecked", zap.Error(err))
		return false, nil
	}
	for _, prev := range accepted {
		if embedding.Cosine(vecs[0], prev) > s.svc.Cfg.Study.DedupThreshold {
			return true, nil
		}
	}
	return false, vecs[0]
}

// ListByDocument returns a document's quizzes, newest first.
func (s *QuizService) ListByDocument(documentID string) ([]*domain.Quiz, error) {
	return s.svc.Quizzes.ListByDocument(documentID)
}
