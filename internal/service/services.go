package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/liliang-cn/studydesk/internal/config"
	"github.com/liliang-cn/studydesk/internal/embedding"
	"github.com/liliang-cn/studydesk/internal/llm"
	"github.com/liliang-cn/studydesk/internal/repository"
)

// Services bundles the shared capabilities constructed once at startup
// and passed into every engine service.
type Services struct {
	Cfg      *config.Config
	Logger   *zap.Logger
	LLM      llm.Client
	Embedder embedding.Embedder

	Documents *repository.DocumentRepository
	Quizzes   *repository.QuizRepository
	Sessions  *repository.SessionRepository
}

// retrieveChunks embeds the query and returns the top-k chunk texts of
// the record by ascending distance. k clamps to the chunk count.
func (s *Services) retrieveChunks(ctx context.Context, rec *repository.DocumentRecord, query string, k int) ([]string, error) {
	if rec.Index.Size() == 0 {
		return nil, nil
	}
	vecs, err := s.Embedder.Embed(ctx, []string{query}, embedding.ModeQuery)
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 {
		return nil, fmt.Errorf("empty embedding for query")
	}

	_, ids := rec.Index.Search(vecs[0], k)
	chunks := make([]string, 0, len(ids))
	for _, id := range ids {
		if id >= 0 && id < len(rec.Doc.Chunks) {
			chunks = append(chunks, rec.Doc.Chunks[id])
		}
	}
	return chunks, nil
}

// retrieveContext is retrieveChunks joined into a single prompt context.
func (s *Services) retrieveContext(ctx context.Context, rec *repository.DocumentRecord, query string, k int) (string, error) {
	chunks, err := s.retrieveChunks(ctx, rec, query, k)
	if err != nil {
		return "", err
	}
	return strings.Join(chunks, "\n\n"), nil
}

// headSlice returns the first maxChars characters of the joined page
// text, the retrieval fallback of last resort.
func headSlice(pages []string, maxChars int) string {
	joined := strings.Join(pages, "\n\n")
	if len(joined) <= maxChars {
		return joined
	}
	cut := joined[:maxChars]
	if i := strings.LastIndexByte(cut, ' '); i > 0 {
		cut = cut[:i]
	}
	return cut
}
