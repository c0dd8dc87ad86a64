// Package embedding maps text batches to fixed-dimension float vectors.
package embedding

import (
	"context"
	"fmt"
	"math"

	"github.com/liliang-cn/studydesk/internal/config"
	"github.com/liliang-cn/studydesk/internal/domain"
	"go.uber.org/zap"
)

// Mode distinguishes document-side from query-side embedding. Backends
// that support asymmetric retrieval use it as a task hint.
type Mode int

const (
	ModeDocument Mode = iota
	ModeQuery
)

// Embedder converts a batch of strings into one vector per input. The
// output is a matrix of shape (len(texts), d) for a model-fixed d;
// callers never assume a particular dimension.
type Embedder interface {
	Embed(ctx context.Context, texts []string, mode Mode) ([][]float32, error)
	Model() string
}

// New selects the embedding backend per configuration: "ollama" for the
// local model, "openai" for the remote API, "auto" probes the local
// server first and falls back to remote.
func New(cfg config.EmbeddingConfig, llm config.LLMConfig, logger *zap.Logger) (Embedder, error) {
	switch cfg.Provider {
	case "ollama":
		return NewOllama(cfg.OllamaBaseURL, cfg.Model), nil
	case "openai":
		return newOpenAI(cfg, llm)
	case "auto", "":
		local := NewOllama(cfg.OllamaBaseURL, cfg.Model)
		if local.Available(context.Background()) {
			logger.Info("using local embedding model",
				zap.String("model", cfg.Model),
				zap.String("base_url", cfg.OllamaBaseURL))
			return local, nil
		}
		remote, err := newOpenAI(cfg, llm)
		if err != nil {
			return nil, fmt.Errorf("%w: local server unreachable and %v", domain.ErrEmbeddingUnavailable, err)
		}
		logger.Info("local embedding server unreachable, using remote embeddings",
			zap.String("model", cfg.RemoteModel))
		return remote, nil
	default:
		return nil, fmt.Errorf("%w: unknown embedding provider %q", domain.ErrBadInput, cfg.Provider)
	}
}

// Cosine returns the cosine similarity of two vectors.
func Cosine(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
