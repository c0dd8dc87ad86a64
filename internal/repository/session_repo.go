package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/liliang-cn/studydesk/internal/domain"
)

// DeletedDocumentPlaceholder is listed in place of a filename when the
// backing document has been removed.
const DeletedDocumentPlaceholder = "(deleted document)"

// SessionRepository handles chat session persistence
type SessionRepository struct {
	db *DB
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(db *DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Save upserts the session on chat_id, overwriting the stored messages
// with the full transcript and updating the kind if it changed.
func (r *SessionRepository) Save(session *domain.ChatSession) error {
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now()
	}
	messagesJSON, err := json.Marshal(session.Messages)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPersistenceFailed, err)
	}

	_, err = r.db.Exec(`
		INSERT INTO chat_sessions (chat_id, document_id, kind, messages_json, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(chat_id) DO UPDATE SET
			messages_json = excluded.messages_json,
			kind = excluded.kind
	`, session.ID, session.DocumentID, session.Kind, string(messagesJSON), session.CreatedAt)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPersistenceFailed, err)
	}
	return nil
}

// Get retrieves a session by id, or (nil, nil) when absent.
func (r *SessionRepository) Get(id string) (*domain.ChatSession, error) {
	session := &domain.ChatSession{ID: id}
	var messagesJSON string

	err := r.db.QueryRow(`
		SELECT document_id, kind, messages_json, created_at
		FROM chat_sessions WHERE chat_id = ?
	`, id).Scan(&session.DocumentID, &session.Kind, &messagesJSON, &session.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(messagesJSON), &session.Messages); err != nil {
		return nil, fmt.Errorf("decode messages for session %s: %w", id, err)
	}
	return session, nil
}

// List returns all sessions newest first. The left join keeps sessions
// listable after their document is deleted, under a placeholder filename.
func (r *SessionRepository) List() ([]domain.ChatSessionInfo, error) {
	rows, err := r.db.Query(`
		SELECT s.chat_id, s.document_id, s.kind, COALESCE(d.filename, ?), s.created_at
		FROM chat_sessions s
		LEFT JOIN documents d ON d.id = s.document_id
		ORDER BY s.created_at DESC
	`, DeletedDocumentPlaceholder)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []domain.ChatSessionInfo
	for rows.Next() {
		var s domain.ChatSessionInfo
		if err := rows.Scan(&s.ID, &s.DocumentID, &s.Kind, &s.Filename, &s.CreatedAt); err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// Delete removes the chat row and any quiz row sharing the same id, in
// one transaction. The shared-id cascade is a repo convention: a quiz's
// session may be created under the quiz id.
func (r *SessionRepository) Delete(id string) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPersistenceFailed, err)
	}

	res, err := tx.Exec(`DELETE FROM chat_sessions WHERE chat_id = ?`, id)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("%w: %v", domain.ErrPersistenceFailed, err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		tx.Rollback()
		return domain.ErrNotFound
	}

	if _, err := tx.Exec(`DELETE FROM quizzes WHERE quiz_id = ?`, id); err != nil {
		tx.Rollback()
		return fmt.Errorf("%w: %v", domain.ErrPersistenceFailed, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPersistenceFailed, err)
	}
	return nil
}
