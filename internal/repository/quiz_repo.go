package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/liliang-cn/studydesk/internal/domain"
)

// QuizRepository handles quiz and submission persistence
type QuizRepository struct {
	db *DB
}

// NewQuizRepository creates a new quiz repository
func NewQuizRepository(db *DB) *QuizRepository {
	return &QuizRepository{db: db}
}

// Save creates a new quiz row. Quizzes are immutable after creation;
// results_json starts as an empty array.
func (r *QuizRepository) Save(quiz *domain.Quiz) error {
	if quiz.CreatedAt.IsZero() {
		quiz.CreatedAt = time.Now()
	}
	itemsJSON, err := json.Marshal(quiz.Items)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPersistenceFailed, err)
	}

	_, err = r.db.Exec(`
		INSERT INTO quizzes (quiz_id, document_id, kind, count, items_json, results_json, created_at)
		VALUES (?, ?, ?, ?, ?, '[]', ?)
	`, quiz.ID, quiz.DocumentID, quiz.Kind, quiz.Count, string(itemsJSON), quiz.CreatedAt)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPersistenceFailed, err)
	}
	return nil
}

// Get retrieves a quiz by id, or (nil, nil) when absent.
func (r *QuizRepository) Get(id string) (*domain.Quiz, error) {
	quiz := &domain.Quiz{ID: id}
	var itemsJSON string
	var createdAt sql.NullTime

	err := r.db.QueryRow(`
		SELECT document_id, kind, count, items_json, created_at
		FROM quizzes WHERE quiz_id = ?
	`, id).Scan(&quiz.DocumentID, &quiz.Kind, &quiz.Count, &itemsJSON, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(itemsJSON), &quiz.Items); err != nil {
		return nil, fmt.Errorf("decode items for quiz %s: %w", id, err)
	}
	if createdAt.Valid {
		quiz.CreatedAt = createdAt.Time
	}
	return quiz, nil
}

// ListByDocument returns the document's quizzes, newest first.
func (r *QuizRepository) ListByDocument(documentID string) ([]*domain.Quiz, error) {
	rows, err := r.db.Query(`
		SELECT quiz_id, kind, count, items_json, created_at
		FROM quizzes WHERE document_id = ? ORDER BY created_at DESC
	`, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var quizzes []*domain.Quiz
	for rows.Next() {
		quiz := &domain.Quiz{DocumentID: documentID}
		var itemsJSON string
		var createdAt sql.NullTime
		if err := rows.Scan(&quiz.ID, &quiz.Kind, &quiz.Count, &itemsJSON, &createdAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(itemsJSON), &quiz.Items); err != nil {
			return nil, fmt.Errorf("decode items for quiz %s: %w", quiz.ID, err)
		}
		if createdAt.Valid {
			quiz.CreatedAt = createdAt.Time
		}
		quizzes = append(quizzes, quiz)
	}
	return quizzes, rows.Err()
}

// submissionPayload is the stored shape of results_json: the per-question
// results plus the derived analysis.
type submissionPayload struct {
	Results  []domain.QuestionResult `json:"results"`
	Analysis *domain.Analysis        `json:"analysis,omitempty"`
}

// SaveSubmission appends a new submission row with a server timestamp.
func (r *QuizRepository) SaveSubmission(sub *domain.Submission) error {
	answersJSON, err := json.Marshal(sub.UserAnswers)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPersistenceFailed, err)
	}
	resultsJSON, err := json.Marshal(submissionPayload{Results: sub.Results, Analysis: sub.Analysis})
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPersistenceFailed, err)
	}
	sub.CreatedAt = time.Now()

	res, err := r.db.Exec(`
		INSERT INTO quiz_submissions (quiz_id, user_answers_json, results_json, created_at)
		VALUES (?, ?, ?, ?)
	`, sub.QuizID, string(answersJSON), string(resultsJSON), sub.CreatedAt)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPersistenceFailed, err)
	}
	if id, err := res.LastInsertId(); err == nil {
		sub.ID = id
	}
	return nil
}

// LatestSubmission returns the newest submission for the quiz by
// timestamp, or (nil, nil) when none exists.
func (r *QuizRepository) LatestSubmission(quizID string) (*domain.Submission, error) {
	sub := &domain.Submission{QuizID: quizID}
	var answersJSON, resultsJSON string

	err := r.db.QueryRow(`
		SELECT submission_id, user_answers_json, results_json, created_at
		FROM quiz_submissions WHERE quiz_id = ?
		ORDER BY created_at DESC, submission_id DESC LIMIT 1
	`, quizID).Scan(&sub.ID, &answersJSON, &resultsJSON, &sub.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(answersJSON), &sub.UserAnswers); err != nil {
		return nil, fmt.Errorf("decode answers for submission %d: %w", sub.ID, err)
	}
	var payload submissionPayload
	if err := json.Unmarshal([]byte(resultsJSON), &payload); err != nil {
		return nil, fmt.Errorf("decode results for submission %d: %w", sub.ID, err)
	}
	sub.Results = payload.Results
	sub.Analysis = payload.Analysis
	return sub, nil
}

// Delete removes a quiz row by id. Used by the chat-delete cascade, where
// a session id may coincide with a quiz id.
func (r *QuizRepository) Delete(id string) error {
	_, err := r.db.Exec(`DELETE FROM quizzes WHERE quiz_id = ?`, id)
	return err
}
