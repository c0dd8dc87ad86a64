package service

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liliang-cn/studydesk/internal/domain"
	"github.com/liliang-cn/studydesk/internal/embedding"
	"github.com/liliang-cn/studydesk/internal/vectorindex"
)

func registerStoryResponder(env *testEnv) {
	env.llm.onFunc("Explain the following section", func(prompt string) (string, error) {
		return "A friendly walkthrough of this part.", nil
	})
}

func TestStoryPerPageForTextDocuments(t *testing.T) {
	env := newTestEnv(t)
	env.saveDocument(t, "doc-1",
		[]string{"chunk"},
		[]string{"first page", "second page", "third page"})
	registerStoryResponder(env)

	res, err := NewStoryService(env.svc).Explain(context.Background(), "doc-1")
	require.NoError(t, err)
	require.Len(t, res.Sections, 3)
	assert.Equal(t, "Page 1", res.Sections[0].Section)
	assert.Equal(t, "Page 3", res.Sections[2].Section)

	session, err := env.svc.Sessions.Get(res.SessionID)
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, domain.SessionKindStory, session.Kind)
	require.Len(t, session.Messages, 3)
	assert.Contains(t, session.Messages[0].Content, "Page 1")
	assert.NotNil(t, session.Messages[0].Meta)
	assert.Nil(t, session.Messages[1].Meta)
}

func TestStoryGroupsSlides(t *testing.T) {
	env := newTestEnv(t)
	var slides []string
	for i := 1; i <= 9; i++ {
		slides = append(slides, fmt.Sprintf("slide %d body", i))
	}
	doc := &domain.Document{ID: "deck-1", Filename: "deck-1.pptx", Pages: slides, Chunks: []string{"chunk"}}
	saveRaw(t, env, doc)
	registerStoryResponder(env)

	res, err := NewStoryService(env.svc).Explain(context.Background(), "deck-1")
	require.NoError(t, err)
	require.Len(t, res.Sections, 3, "9 slides in groups of 4")
	assert.Equal(t, "Slides 1-4", res.Sections[0].Section)
	assert.Equal(t, "Slides 5-8", res.Sections[1].Section)
	assert.Equal(t, "Slide 9", res.Sections[2].Section)
}

func TestStorySkipsFailedSections(t *testing.T) {
	env := newTestEnv(t)
	env.saveDocument(t, "doc-1", []string{"chunk"}, []string{"page one", "page two"})

	n := 0
	env.llm.onFunc("Explain the following section", func(string) (string, error) {
		n++
		if n == 1 {
			return "", fmt.Errorf("model unavailable")
		}
		return "Explanation of the surviving section.", nil
	})

	res, err := NewStoryService(env.svc).Explain(context.Background(), "doc-1")
	require.NoError(t, err)
	require.Len(t, res.Sections, 1)
	assert.Equal(t, "Page 2", res.Sections[0].Section)
}

func TestStoryAllSectionsFail(t *testing.T) {
	env := newTestEnv(t)
	env.saveDocument(t, "doc-1", []string{"chunk"}, []string{"page"})
	env.llm.onFunc("Explain the following section", func(string) (string, error) {
		return "", fmt.Errorf("model unavailable")
	})

	_, err := NewStoryService(env.svc).Explain(context.Background(), "doc-1")
	assert.ErrorIs(t, err, domain.ErrGenerationFailed)
}

func TestStoryUnknownDocument(t *testing.T) {
	env := newTestEnv(t)

	_, err := NewStoryService(env.svc).Explain(context.Background(), "ghost")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStoryPromptCarriesSectionContent(t *testing.T) {
	env := newTestEnv(t)
	env.saveDocument(t, "doc-1", []string{"chunk"}, []string{"the only page body"})

	var prompts []string
	env.llm.onFunc("Explain the following section", func(prompt string) (string, error) {
		prompts = append(prompts, prompt)
		return "ok", nil
	})

	_, err := NewStoryService(env.svc).Explain(context.Background(), "doc-1")
	require.NoError(t, err)
	require.Len(t, prompts, 1)
	assert.True(t, strings.Contains(prompts[0], "the only page body"))
}

// saveRaw persists a document as given, without the pdf-suffix default
// of saveDocument.
func saveRaw(t *testing.T, env *testEnv, doc *domain.Document) {
	t.Helper()
	vecs, err := env.embedder.Embed(context.Background(), doc.Chunks, embedding.ModeDocument)
	require.NoError(t, err)
	index := vectorindex.NewFlat()
	require.NoError(t, index.Add(vecs))
	require.NoError(t, env.svc.Documents.Save(doc, index))
}
