package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/liliang-cn/studydesk/internal/domain"
)

// slidesPerStorySection caps how many PPTX slides are explained in one
// story section. Pages of text documents always get their own section.
const slidesPerStorySection = 4

// StoryService walks a document front to back and narrates it section
// by section.
type StoryService struct {
	svc *Services
}

// NewStoryService creates a new story service
func NewStoryService(svc *Services) *StoryService {
	return &StoryService{svc: svc}
}

// StoryResult is the full narration of one document.
type StoryResult struct {
	SessionID string                `json:"session_id"`
	Sections  []domain.StorySection `json:"explanations"`
}

// Explain generates a pedagogical walkthrough of the document. Slide
// decks are grouped a few slides at a time, text documents go page by
// page. The transcript is archived as a story session so it shows up
// in the session list.
func (s *StoryService) Explain(ctx context.Context, documentID string) (*StoryResult, error) {
	rec, err := s.svc.Documents.Load(documentID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("%w: document %s", domain.ErrNotFound, documentID)
	}

	groups := storyGroups(rec.Doc)
	sections := make([]domain.StorySection, 0, len(groups))
	for _, g := range groups {
		explanation, err := s.svc.LLM.GenerateText(ctx, storyPrompt(g.label, g.content))
		if err != nil {
			s.svc.Logger.Warn("story section generation failed",
				zap.String("document_id", documentID),
				zap.String("section", g.label),
				zap.Error(err))
			continue
		}
		sections = append(sections, domain.StorySection{
			Section:     g.label,
			Explanation: strings.TrimSpace(explanation),
		})
	}
	if len(sections) == 0 {
		return nil, fmt.Errorf("%w: no story sections could be generated", domain.ErrGenerationFailed)
	}

	session := &domain.ChatSession{
		ID:         uuid.New().String(),
		DocumentID: documentID,
		Kind:       domain.SessionKindStory,
		Messages:   storyMessages(documentID, sections),
	}
	if err := s.svc.Sessions.Save(session); err != nil {
		return nil, err
	}

	return &StoryResult{SessionID: session.ID, Sections: sections}, nil
}

type storyGroup struct {
	label   string
	content string
}

func storyGroups(doc *domain.Document) []storyGroup {
	var groups []storyGroup
	if doc.FileType() == domain.FileTypePPTX {
		for start := 0; start < len(doc.Pages); start += slidesPerStorySection {
			end := start + slidesPerStorySection
			if end > len(doc.Pages) {
				end = len(doc.Pages)
			}
			label := fmt.Sprintf("Slides %d-%d", start+1, end)
			if end == start+1 {
				label = fmt.Sprintf("Slide %d", start+1)
			}
			groups = append(groups, storyGroup{
				label:   label,
				content: strings.Join(doc.Pages[start:end], "\n\n"),
			})
		}
		return groups
	}
	for i, page := range doc.Pages {
		groups = append(groups, storyGroup{
			label:   fmt.Sprintf("Page %d", i+1),
			content: page,
		})
	}
	return groups
}

func storyMessages(documentID string, sections []domain.StorySection) []domain.ChatMessage {
	messages := make([]domain.ChatMessage, 0, len(sections))
	for i, sec := range sections {
		m := domain.ChatMessage{
			Role:    domain.RoleSystem,
			Content: fmt.Sprintf("%s\n\n%s", sec.Section, sec.Explanation),
		}
		if i == 0 {
			m.Meta = map[string]any{"document_ids": []string{documentID}}
		}
		messages = append(messages, m)
	}
	return messages
}
