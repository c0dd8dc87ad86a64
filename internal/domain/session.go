package domain

import "time"

// Chat session kinds
const (
	SessionKindLearning = "learning"
	SessionKindStory    = "story"
)

// Message roles within a chat session
const (
	RoleSystem = "system"
	RoleUser   = "user"
)

// ChatMessage is one turn in a session transcript. The first system message
// of a session carries the document set and topic in Meta.
type ChatMessage struct {
	Role    string         `json:"role"`
	Content string         `json:"content"`
	Meta    map[string]any `json:"meta,omitempty"`
}

// ChatSession is a persisted transcript bound to a document.
type ChatSession struct {
	ID         string        `json:"session_id"`
	DocumentID string        `json:"document_id"`
	Kind       string        `json:"kind"`
	Messages   []ChatMessage `json:"messages"`
	CreatedAt  time.Time     `json:"created_at"`
}

// ChatSessionInfo is the listing view of a chat session. Filename falls
// back to a placeholder when the backing document has been deleted.
type ChatSessionInfo struct {
	ID         string    `json:"session_id"`
	DocumentID string    `json:"document_id"`
	Kind       string    `json:"kind"`
	Filename   string    `json:"filename"`
	CreatedAt  time.Time `json:"created_at"`
}

// StorySection is one pedagogical explanation in story mode.
type StorySection struct {
	Section     string `json:"section"`
	Explanation string `json:"explanation"`
}
