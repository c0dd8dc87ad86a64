package repository

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// DB wraps the catalog database and the on-disk layout rooted at Root:
//
//	<root>/quiz_data.db
//	<root>/faiss_indexes/<doc_id>.index
//	<root>/faiss_indexes/<doc_id>_chunks.json
//	<root>/faiss_indexes/<doc_id>_pages.json
type DB struct {
	*sql.DB
	Root string
}

// NewDB opens (creating if needed) the catalog at root and runs
// migrations.
func NewDB(root string) (*DB, error) {
	indexDir := filepath.Join(root, "faiss_indexes")
	if err := os.MkdirAll(indexDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := sql.Open("sqlite", filepath.Join(root, "quiz_data.db"))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if err := runMigrations(db); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &DB{DB: db, Root: root}, nil
}

// IndexDir returns the directory holding per-document index sidecars.
func (db *DB) IndexDir() string {
	return filepath.Join(db.Root, "faiss_indexes")
}

func runMigrations(db *sql.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			id TEXT PRIMARY KEY,
			filename TEXT NOT NULL,
			index_path TEXT NOT NULL,
			chunks_path TEXT NOT NULL,
			pages_path TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS quizzes (
			quiz_id TEXT PRIMARY KEY,
			document_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			count INTEGER NOT NULL,
			items_json TEXT NOT NULL,
			results_json TEXT NOT NULL DEFAULT '[]',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS quiz_submissions (
			submission_id INTEGER PRIMARY KEY AUTOINCREMENT,
			quiz_id TEXT NOT NULL,
			user_answers_json TEXT NOT NULL,
			results_json TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS chat_sessions (
			chat_id TEXT PRIMARY KEY,
			document_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			messages_json TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS catalog_meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_quizzes_document ON quizzes(document_id)`,
		`CREATE INDEX IF NOT EXISTS idx_submissions_quiz ON quiz_submissions(quiz_id)`,
	}

	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}

	// Catalogs written before quizzes grew results_json/created_at get the
	// columns added on open.
	if err := ensureColumn(db, "quizzes", "results_json", `TEXT NOT NULL DEFAULT '[]'`); err != nil {
		return err
	}
	if err := ensureColumn(db, "quizzes", "created_at", `DATETIME`); err != nil {
		return err
	}

	return nil
}

func ensureColumn(db *sql.DB, table, column, decl string) error {
	rows, err := db.Query(fmt.Sprintf(`PRAGMA table_info(%s)`, table))
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid     int
			name    string
			ctype   string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notNull, &dflt, &pk); err != nil {
			return err
		}
		if name == column {
			return nil
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	_, err = db.Exec(fmt.Sprintf(`ALTER TABLE %s ADD COLUMN %s %s`, table, column, decl))
	return err
}

// EmbeddingModel returns the model name pinned for this catalog, or "".
func (db *DB) EmbeddingModel() (string, error) {
	var v string
	err := db.QueryRow(`SELECT value FROM catalog_meta WHERE key = 'embedding_model'`).Scan(&v)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return v, err
}

// PinEmbeddingModel records the embedding model for this catalog.
// Mixing vectors from different models in one catalog produces garbage
// distances, so opening with a different model must be refused upstream.
func (db *DB) PinEmbeddingModel(model string) error {
	_, err := db.Exec(`
		INSERT INTO catalog_meta (key, value) VALUES ('embedding_model', ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, model)
	return err
}
