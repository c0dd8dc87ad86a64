package service

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/liliang-cn/studydesk/internal/config"
	"github.com/liliang-cn/studydesk/internal/domain"
	"github.com/liliang-cn/studydesk/internal/embedding"
	"github.com/liliang-cn/studydesk/internal/llm"
	"github.com/liliang-cn/studydesk/internal/repository"
	"github.com/liliang-cn/studydesk/internal/vectorindex"
)

// fakeLLM routes prompts to canned responders by matching a distinctive
// substring of each prompt template.
type fakeLLM struct {
	responders map[string]func(prompt string) (string, error)
	calls      []string
}

func (f *fakeLLM) GenerateText(ctx context.Context, prompt string) (string, error) {
	f.calls = append(f.calls, prompt)
	for marker, respond := range f.responders {
		if strings.Contains(prompt, marker) {
			return respond(prompt)
		}
	}
	return "", fmt.Errorf("fakeLLM: no responder for prompt %q", prompt[:min(len(prompt), 60)])
}

func (f *fakeLLM) GenerateJSON(ctx context.Context, prompt string) (any, error) {
	raw, err := f.GenerateText(ctx, prompt)
	if err != nil {
		return nil, err
	}
	return llm.ExtractJSON(raw)
}

func (f *fakeLLM) on(marker, response string) {
	f.responders[marker] = func(string) (string, error) { return response, nil }
}

func (f *fakeLLM) onFunc(marker string, respond func(prompt string) (string, error)) {
	f.responders[marker] = respond
}

func newFakeLLM() *fakeLLM {
	return &fakeLLM{responders: make(map[string]func(string) (string, error))}
}

// fakeEmbedderDim is the vector width of the fake embedder's basis.
const fakeEmbedderDim = 8

// fakeEmbedder assigns each distinct text the next basis vector, so
// different texts are orthogonal and repeats are identical. Overrides
// let a test force specific similarity relationships.
type fakeEmbedder struct {
	overrides map[string][]float32
	assigned  map[string][]float32
	next      int
	fail      bool
}

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string, mode embedding.Mode) ([][]float32, error) {
	if f.fail {
		return nil, fmt.Errorf("embedder down")
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if v, ok := f.overrides[t]; ok {
			out[i] = v
			continue
		}
		v, ok := f.assigned[t]
		if !ok {
			v = make([]float32, fakeEmbedderDim)
			v[f.next%fakeEmbedderDim] = 1
			f.next++
			f.assigned[t] = v
		}
		out[i] = v
	}
	return out, nil
}

func (f *fakeEmbedder) Model() string { return "fake-embed" }

type testEnv struct {
	svc      *Services
	llm      *fakeLLM
	embedder *fakeEmbedder
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := repository.NewDB(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	fl := newFakeLLM()
	fe := &fakeEmbedder{
		overrides: make(map[string][]float32),
		assigned:  make(map[string][]float32),
	}

	cfg := &config.Config{
		Study: config.StudyConfig{
			ChunkSize:      250,
			ChunkOverlap:   25,
			RetrievalTopK:  2,
			DedupThreshold: 0.9,
			NoiseFilter:    true,
		},
	}

	return &testEnv{
		svc: &Services{
			Cfg:       cfg,
			Logger:    zap.NewNop(),
			LLM:       fl,
			Embedder:  fe,
			Documents: repository.NewDocumentRepository(db),
			Quizzes:   repository.NewQuizRepository(db),
			Sessions:  repository.NewSessionRepository(db),
		},
		llm:      fl,
		embedder: fe,
	}
}

// saveDocument ingests a prebuilt document through the repository with
// vectors from the fake embedder.
func (e *testEnv) saveDocument(t *testing.T, id string, chunks, pages []string) {
	t.Helper()
	doc := &domain.Document{ID: id, Filename: id + ".pdf", Pages: pages, Chunks: chunks}
	vecs, err := e.embedder.Embed(context.Background(), chunks, embedding.ModeDocument)
	require.NoError(t, err)
	index := vectorindex.NewFlat()
	require.NoError(t, index.Add(vecs))
	require.NoError(t, e.svc.Documents.Save(doc, index))
}
